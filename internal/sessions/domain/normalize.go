package domain

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// IssueReason explains why a row left the valid partition.
type IssueReason string

const (
	IssueInvalidTimestamp    IssueReason = "invalid_timestamp"
	IssueMissingSite         IssueReason = "missing_site"
	IssueNonPositiveDuration IssueReason = "non_positive_duration"
	IssueNegativeEnergy      IssueReason = "negative_energy"
)

// RowIssue is a per-row validation warning. Cells holds the raw row for audit output.
type RowIssue struct {
	Row     int             `json:"row"`
	Reason  IssueReason     `json:"reason"`
	Field   Field           `json:"field,omitempty"`
	Cells   []string        `json:"cells"`
	Session *DerivedSession `json:"session,omitempty"`
}

// Warnings accumulates non-fatal normalization findings.
type Warnings struct {
	InvalidRows   []RowIssue `json:"invalid_rows"`
	AnomalousRows []RowIssue `json:"anomalous_rows"`
	CoercedValues int        `json:"coerced_values"`
}

// Dropped returns the number of rows excluded from the valid table.
func (w Warnings) Dropped() int {
	return len(w.InvalidRows) + len(w.AnomalousRows)
}

// NumericPolicy decides what a non-numeric cell becomes.
type NumericPolicy string

const (
	// NumericNull keeps missing values out of sums and mean denominators.
	NumericNull NumericPolicy = "null"
	// NumericZeroFill turns missing values into 0.
	NumericZeroFill NumericPolicy = "zero_fill"
)

// NormalizeOptions tunes type coercion.
type NormalizeOptions struct {
	Location      *time.Location
	ExtraLayouts  []string
	NumericPolicy NumericPolicy
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

var dayFirstLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2.1.2006 15:04",
	"02.01.2006",
	"02.01.06 15:04",
}

// Normalize coerces the raw table into typed sessions and splits off invalid and
// anomalous rows. The returned table contains only sessions with a positive duration
// and non-negative energy.
func Normalize(raw *RawTable, opts NormalizeOptions) (Table, Warnings) {
	var warnings Warnings
	if raw == nil {
		return Table{}, warnings
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	valid := make([]DerivedSession, 0, len(raw.Records))
	for _, rec := range raw.Records {
		site := raw.Value(rec, FieldSiteName)
		if site == "" {
			warnings.InvalidRows = append(warnings.InvalidRows, newIssue(rec, IssueMissingSite, FieldSiteName, nil))
			continue
		}
		started, ok := ParseTimestamp(raw.Value(rec, FieldStartedAt), loc, opts.ExtraLayouts)
		if !ok {
			warnings.InvalidRows = append(warnings.InvalidRows, newIssue(rec, IssueInvalidTimestamp, FieldStartedAt, nil))
			continue
		}
		ended, ok := ParseTimestamp(raw.Value(rec, FieldEndedAt), loc, opts.ExtraLayouts)
		if !ok {
			warnings.InvalidRows = append(warnings.InvalidRows, newIssue(rec, IssueInvalidTimestamp, FieldEndedAt, nil))
			continue
		}

		energy, coerced := coerceNumber(raw.Value(rec, FieldEnergyKWh), opts.NumericPolicy)
		if coerced {
			warnings.CoercedValues++
		}
		cost, coerced := coerceNumber(raw.Value(rec, FieldCost), opts.NumericPolicy)
		if coerced {
			warnings.CoercedValues++
		}

		session := Derive(ChargingSession{
			Row:       rec.Row,
			SiteName:  site,
			StartedAt: started,
			EndedAt:   ended,
			EnergyKWh: energy,
			Cost:      cost,
			AuthType:  raw.Value(rec, FieldAuthType),
			Provider:  raw.Value(rec, FieldProvider),
		})
		if session.DurationHours <= 0 {
			warnings.AnomalousRows = append(warnings.AnomalousRows, newIssue(rec, IssueNonPositiveDuration, "", &session))
			continue
		}
		if energy != nil && *energy < 0 {
			warnings.AnomalousRows = append(warnings.AnomalousRows, newIssue(rec, IssueNegativeEnergy, FieldEnergyKWh, &session))
			continue
		}
		valid = append(valid, session)
	}
	return Table{rows: valid}, warnings
}

// Derive computes duration, average power and calendar fields for a session.
func Derive(s ChargingSession) DerivedSession {
	duration := s.EndedAt.Sub(s.StartedAt).Hours()
	ended := s.EndedAt
	return DerivedSession{
		ChargingSession: s,
		DurationHours:   duration,
		AvgPowerKW:      averagePower(s.EnergyKWh, duration),
		Year:            ended.Year(),
		Month:           time.Date(ended.Year(), ended.Month(), 1, 0, 0, 0, 0, ended.Location()),
		Day:             time.Date(ended.Year(), ended.Month(), ended.Day(), 0, 0, 0, 0, ended.Location()),
		Hour:            ended.Hour(),
		ProviderBucket:  s.Provider,
	}
}

func averagePower(energy *float64, durationHours float64) *float64 {
	if energy == nil || durationHours <= 0 {
		return nil
	}
	power := *energy / durationHours
	if math.IsNaN(power) || math.IsInf(power, 0) {
		return nil
	}
	return &power
}

// ParseTimestamp tries ISO-like layouts, then day-first layouts, then extra layouts,
// then an Excel date serial.
func ParseTimestamp(value string, loc *time.Location, extra []string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, group := range [][]string{isoLayouts, dayFirstLayouts, extra} {
		for _, layout := range group {
			if t, err := time.ParseInLocation(layout, value, loc); err == nil {
				// explicit offsets are moved into loc so buckets share one calendar
				return t.In(loc), true
			}
		}
	}
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(serial) || math.IsInf(serial, 0) || serial <= 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	// excelize returns wall-clock values in UTC; reinterpret them in loc.
	t = t.Round(time.Second)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), true
}

// ParseNumber accepts "12.5", "12,5", "1.234,5" and "1,234.5". When both separators
// appear the last one is the decimal mark and the other must group digits in threes.
// NaN, Inf and ambiguous groupings are rejected.
func ParseNumber(value string) (float64, bool) {
	value = strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	if value == "" {
		return 0, false
	}
	comma, dot := strings.LastIndex(value, ","), strings.LastIndex(value, ".")
	switch {
	case comma >= 0 && dot >= 0:
		decimal, group := ",", "."
		if dot > comma {
			decimal, group = ".", ","
		}
		whole, frac, _ := strings.Cut(value, decimal)
		if strings.Contains(frac, decimal) || strings.Contains(frac, group) || !validGrouping(whole, group) {
			return 0, false
		}
		value = strings.ReplaceAll(whole, group, "") + "." + frac
	case comma >= 0:
		if strings.Count(value, ",") > 1 {
			return 0, false
		}
		value = strings.Replace(value, ",", ".", 1)
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}

// validGrouping reports whether every group after the first has exactly three digits.
func validGrouping(whole, sep string) bool {
	groups := strings.Split(strings.TrimLeft(whole, "+-"), sep)
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// coerceNumber reports coerced=true when a non-empty cell could not be parsed.
func coerceNumber(value string, policy NumericPolicy) (*float64, bool) {
	parsed, ok := ParseNumber(value)
	if ok {
		return &parsed, false
	}
	coerced := strings.TrimSpace(value) != ""
	if policy == NumericZeroFill {
		zero := 0.0
		return &zero, coerced
	}
	return nil, coerced
}

func newIssue(rec RawRecord, reason IssueReason, field Field, session *DerivedSession) RowIssue {
	return RowIssue{
		Row:     rec.Row,
		Reason:  reason,
		Field:   field,
		Cells:   append([]string(nil), rec.Cells...),
		Session: session,
	}
}
