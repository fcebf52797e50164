package domain

import "strings"

// Field identifies a logical session column independent of the header text in the workbook.
type Field string

const (
	FieldSiteName  Field = "site_name"
	FieldStartedAt Field = "started_at"
	FieldEndedAt   Field = "ended_at"
	FieldEnergyKWh Field = "energy_kwh"
	FieldCost      Field = "cost"
	FieldAuthType  Field = "auth_type"
	FieldProvider  Field = "provider"
)

// Fields lists every logical column in workbook order.
var Fields = []Field{
	FieldSiteName,
	FieldStartedAt,
	FieldEndedAt,
	FieldEnergyKWh,
	FieldCost,
	FieldAuthType,
	FieldProvider,
}

// ColumnMapping maps logical fields to header names.
type ColumnMapping struct {
	SiteName  string `yaml:"site_name"`
	StartedAt string `yaml:"started_at"`
	EndedAt   string `yaml:"ended_at"`
	EnergyKWh string `yaml:"energy_kwh"`
	Cost      string `yaml:"cost"`
	AuthType  string `yaml:"auth_type"`
	Provider  string `yaml:"provider"`
}

// DefaultColumns matches the charging backend export.
var DefaultColumns = ColumnMapping{
	SiteName:  "Standortname",
	StartedAt: "Gestartet",
	EndedAt:   "Beendet",
	EnergyKWh: "Verbrauch (kWh)",
	Cost:      "Kosten",
	AuthType:  "Auth. Typ",
	Provider:  "Provider",
}

// Header returns the header name configured for a field.
func (m ColumnMapping) Header(field Field) string {
	switch field {
	case FieldSiteName:
		return m.SiteName
	case FieldStartedAt:
		return m.StartedAt
	case FieldEndedAt:
		return m.EndedAt
	case FieldEnergyKWh:
		return m.EnergyKWh
	case FieldCost:
		return m.Cost
	case FieldAuthType:
		return m.AuthType
	case FieldProvider:
		return m.Provider
	default:
		return ""
	}
}

// Merge overrides non-empty headers from other.
func (m ColumnMapping) Merge(other ColumnMapping) ColumnMapping {
	if other.SiteName != "" {
		m.SiteName = other.SiteName
	}
	if other.StartedAt != "" {
		m.StartedAt = other.StartedAt
	}
	if other.EndedAt != "" {
		m.EndedAt = other.EndedAt
	}
	if other.EnergyKWh != "" {
		m.EnergyKWh = other.EnergyKWh
	}
	if other.Cost != "" {
		m.Cost = other.Cost
	}
	if other.AuthType != "" {
		m.AuthType = other.AuthType
	}
	if other.Provider != "" {
		m.Provider = other.Provider
	}
	return m
}

// Schema is the static column contract checked once at load time.
type Schema struct {
	Columns  ColumnMapping
	Required []Field
}

// DefaultRequired are the fields without which no KPI can be computed.
var DefaultRequired = []Field{
	FieldSiteName,
	FieldStartedAt,
	FieldEndedAt,
	FieldEnergyKWh,
	FieldCost,
}

// DefaultSchema returns the schema for the standard export.
func DefaultSchema() Schema {
	return Schema{
		Columns:  DefaultColumns,
		Required: append([]Field(nil), DefaultRequired...),
	}
}

// MissingColumns returns the required header names absent from headers, in schema order.
// Headers are compared after trimming surrounding whitespace.
func (s Schema) MissingColumns(headers []string) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[strings.TrimSpace(h)] = struct{}{}
	}
	var missing []string
	for _, field := range s.Required {
		name := strings.TrimSpace(s.Columns.Header(field))
		if name == "" {
			missing = append(missing, string(field))
			continue
		}
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Fingerprint identifies the schema for cache keys.
func (s Schema) Fingerprint() string {
	var b strings.Builder
	for _, field := range Fields {
		b.WriteString(s.Columns.Header(field))
		b.WriteByte(0x1f)
	}
	b.WriteByte(0x1e)
	for _, field := range s.Required {
		b.WriteString(string(field))
		b.WriteByte(0x1f)
	}
	return b.String()
}
