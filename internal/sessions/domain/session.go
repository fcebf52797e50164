package domain

import (
	"slices"
	"time"
)

// RestLabel replaces categorical values outside the top N.
const RestLabel = "Rest"

// ChargingSession is one typed input row. Missing numbers are nil; missing strings are "".
type ChargingSession struct {
	Row       int       `json:"row"`
	SiteName  string    `json:"site_name"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	EnergyKWh *float64  `json:"energy_kwh"`
	Cost      *float64  `json:"cost"`
	AuthType  string    `json:"auth_type,omitempty"`
	Provider  string    `json:"provider,omitempty"`
}

// DerivedSession carries the computed fields. Calendar fields are derived from EndedAt.
type DerivedSession struct {
	ChargingSession

	DurationHours  float64   `json:"duration_hours"`
	AvgPowerKW     *float64  `json:"avg_power_kw"`
	Year           int       `json:"year"`
	Month          time.Time `json:"month"`
	Day            time.Time `json:"day"`
	Hour           int       `json:"hour"`
	ProviderBucket string    `json:"provider_bucket,omitempty"`
}

// Table is an immutable set of valid derived sessions.
// Every pipeline stage returns a new Table and never modifies its input.
type Table struct {
	rows []DerivedSession
}

// NewTable copies rows into a table.
func NewTable(rows []DerivedSession) Table {
	return Table{rows: slices.Clone(rows)}
}

// Len returns the number of sessions.
func (t Table) Len() int { return len(t.rows) }

// Rows returns a copy of the sessions.
func (t Table) Rows() []DerivedSession { return slices.Clone(t.rows) }

// At returns the i-th session by value.
func (t Table) At(i int) DerivedSession { return t.rows[i] }

// Empty reports whether the table has no sessions.
func (t Table) Empty() bool { return len(t.rows) == 0 }

// Providers returns the provider column in row order.
func (t Table) Providers() []string {
	values := make([]string, len(t.rows))
	for i, row := range t.rows {
		values[i] = row.Provider
	}
	return values
}

// AuthTypes returns the auth type column in row order.
func (t Table) AuthTypes() []string {
	values := make([]string, len(t.rows))
	for i, row := range t.rows {
		values[i] = row.AuthType
	}
	return values
}

// ProviderBuckets returns the categorized provider column in row order.
func (t Table) ProviderBuckets() []string {
	values := make([]string, len(t.rows))
	for i, row := range t.rows {
		values[i] = row.ProviderBucket
	}
	return values
}

// Sites returns the distinct site names in ascending order.
func (t Table) Sites() []string {
	seen := make(map[string]struct{}, len(t.rows))
	var sites []string
	for _, row := range t.rows {
		if _, ok := seen[row.SiteName]; ok {
			continue
		}
		seen[row.SiteName] = struct{}{}
		sites = append(sites, row.SiteName)
	}
	slices.Sort(sites)
	return sites
}

// Bounds returns the earliest and latest end timestamps. ok is false for an empty table.
func (t Table) Bounds() (minEnded, maxEnded time.Time, ok bool) {
	for i, row := range t.rows {
		if i == 0 || row.EndedAt.Before(minEnded) {
			minEnded = row.EndedAt
		}
		if i == 0 || row.EndedAt.After(maxEnded) {
			maxEnded = row.EndedAt
		}
	}
	return minEnded, maxEnded, len(t.rows) > 0
}

func (t Table) withProviderBuckets(buckets []string) Table {
	rows := slices.Clone(t.rows)
	for i := range rows {
		rows[i].ProviderBucket = buckets[i]
	}
	return Table{rows: rows}
}
