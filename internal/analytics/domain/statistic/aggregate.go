package statistic

import (
	"sort"
	"strings"
	"time"

	sessions "charging-kpi/internal/sessions/domain"
)

// KPI is a numeric session column that can be reduced.
type KPI string

const (
	KPIEnergyKWh     KPI = "energy_kwh"
	KPICost          KPI = "cost"
	KPIDurationHours KPI = "duration_hours"
	KPIAvgPowerKW    KPI = "avg_power_kw"
)

// ParseKPI validates a KPI name.
func ParseKPI(value string) (KPI, error) {
	k := KPI(strings.ToLower(strings.TrimSpace(value)))
	if !k.IsValid() {
		return "", ErrInvalidKPI
	}
	return k, nil
}

// IsValid reports whether the KPI is known.
func (k KPI) IsValid() bool {
	switch k {
	case KPIEnergyKWh, KPICost, KPIDurationHours, KPIAvgPowerKW:
		return true
	default:
		return false
	}
}

// Value extracts the KPI from a session; nil means missing.
func (k KPI) Value(s sessions.DerivedSession) *float64 {
	switch k {
	case KPIEnergyKWh:
		return s.EnergyKWh
	case KPICost:
		return s.Cost
	case KPIDurationHours:
		d := s.DurationHours
		return &d
	case KPIAvgPowerKW:
		return s.AvgPowerKW
	default:
		return nil
	}
}

// Reducer folds a group of values into one.
type Reducer string

const (
	ReducerSum   Reducer = "sum"
	ReducerMean  Reducer = "mean"
	ReducerCount Reducer = "count"
)

// ParseReducer validates a reducer name.
func ParseReducer(value string) (Reducer, error) {
	r := Reducer(strings.ToLower(strings.TrimSpace(value)))
	if !r.IsValid() {
		return "", ErrInvalidReducer
	}
	return r, nil
}

// IsValid reports whether the reducer is known.
func (r Reducer) IsValid() bool {
	switch r {
	case ReducerSum, ReducerMean, ReducerCount:
		return true
	default:
		return false
	}
}

// Category is a categorical column used as a secondary group key.
type Category string

const (
	CategoryNone     Category = ""
	CategoryAuthType Category = "auth_type"
	CategoryProvider Category = "provider"
)

// ParseCategory validates a category name.
func ParseCategory(value string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(value)))
	switch c {
	case CategoryNone, CategoryAuthType, CategoryProvider:
		return c, nil
	default:
		return "", ErrInvalidCategory
	}
}

// Value extracts the category label; providers use the categorized bucket.
func (c Category) Value(s sessions.DerivedSession) string {
	switch c {
	case CategoryAuthType:
		return s.AuthType
	case CategoryProvider:
		return s.ProviderBucket
	default:
		return ""
	}
}

// Metric names one reduced column of an aggregate row.
type Metric struct {
	KPI     KPI
	Reducer Reducer
}

// Name is the key of the metric in AggregateRow.Values.
func (m Metric) Name() string { return string(m.KPI) + "_" + string(m.Reducer) }

// GroupBy selects the group keys. Rows with an empty category are left out when
// Category is set.
type GroupBy struct {
	Site     bool
	Bucket   Granularity
	Category Category
}

// AggregateSpec configures Aggregate.
type AggregateSpec struct {
	GroupBy       GroupBy
	Metrics       []Metric
	ShareOfPeriod bool
}

// AggregateRow is one group of the aggregate table.
type AggregateRow struct {
	Site     string              `json:"site,omitempty"`
	Bucket   time.Time           `json:"bucket"`
	TimeKey  TimeKey             `json:"time_key,omitempty"`
	Category string              `json:"category,omitempty"`
	Count    int                 `json:"count"`
	Values   map[string]*float64 `json:"values,omitempty"`
	SharePct *float64            `json:"share_pct,omitempty"`
}

// Value returns the reduced metric, nil when it is undefined.
func (r AggregateRow) Value(m Metric) *float64 { return r.Values[m.Name()] }

type groupKey struct {
	site     string
	bucket   time.Time
	category string
}

type accumulator struct {
	key    groupKey
	count  int
	sums   []float64
	counts []int
}

// Aggregate groups the table and reduces the requested metrics. Sums skip missing
// values, means exclude them from the denominator and count counts present values.
// Output is ordered by bucket, site and category ascending.
func Aggregate(t sessions.Table, spec AggregateSpec) ([]AggregateRow, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	bucket := spec.GroupBy.Bucket
	if bucket == "" {
		bucket = GranularityNone
	}
	groups := make(map[groupKey]*accumulator)
	var order []*accumulator
	for i := 0; i < t.Len(); i++ {
		row := t.At(i)
		var key groupKey
		if spec.GroupBy.Site {
			key.site = row.SiteName
		}
		if bucket != GranularityNone {
			key.bucket = bucket.Truncate(row.EndedAt)
		}
		if spec.GroupBy.Category != CategoryNone {
			key.category = spec.GroupBy.Category.Value(row)
			if key.category == "" {
				continue
			}
		}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{
				key:    key,
				sums:   make([]float64, len(spec.Metrics)),
				counts: make([]int, len(spec.Metrics)),
			}
			groups[key] = acc
			order = append(order, acc)
		}
		acc.count++
		for m, metric := range spec.Metrics {
			if v := metric.KPI.Value(row); v != nil {
				acc.sums[m] += *v
				acc.counts[m]++
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i].key, order[j].key
		if !a.bucket.Equal(b.bucket) {
			return a.bucket.Before(b.bucket)
		}
		if a.site != b.site {
			return a.site < b.site
		}
		return a.category < b.category
	})

	rows := make([]AggregateRow, 0, len(order))
	for _, acc := range order {
		row := AggregateRow{
			Site:     acc.key.site,
			Category: acc.key.category,
			Count:    acc.count,
			Values:   make(map[string]*float64, len(spec.Metrics)),
		}
		if bucket != GranularityNone {
			row.Bucket = acc.key.bucket
			row.TimeKey, _ = NewTimeKey(bucket, acc.key.bucket)
		}
		for m, metric := range spec.Metrics {
			row.Values[metric.Name()] = reduce(metric.Reducer, acc.sums[m], acc.counts[m])
		}
		rows = append(rows, row)
	}

	if spec.ShareOfPeriod {
		applyShareOfPeriod(rows)
	}
	return rows, nil
}

func (s AggregateSpec) validate() error {
	if s.GroupBy.Bucket != "" && !s.GroupBy.Bucket.IsValid() {
		return ErrInvalidGranularity
	}
	if _, err := ParseCategory(string(s.GroupBy.Category)); err != nil {
		return err
	}
	if len(s.Metrics) == 0 && !s.ShareOfPeriod && !s.GroupBy.Site && s.GroupBy.Category == CategoryNone {
		return ErrNoMetrics
	}
	if s.ShareOfPeriod && (s.GroupBy.Bucket == "" || s.GroupBy.Bucket == GranularityNone) {
		return ErrShareWithoutBucket
	}
	for _, m := range s.Metrics {
		if !m.KPI.IsValid() {
			return ErrInvalidKPI
		}
		if !m.Reducer.IsValid() {
			return ErrInvalidReducer
		}
	}
	return nil
}

func reduce(reducer Reducer, sum float64, n int) *float64 {
	switch reducer {
	case ReducerSum:
		return &sum
	case ReducerMean:
		if n == 0 {
			return nil
		}
		mean := sum / float64(n)
		return &mean
	case ReducerCount:
		count := float64(n)
		return &count
	default:
		return nil
	}
}

// applyShareOfPeriod sets each row's share of the row count within its bucket, in percent.
func applyShareOfPeriod(rows []AggregateRow) {
	totals := make(map[time.Time]int)
	for _, row := range rows {
		totals[row.Bucket] += row.Count
	}
	for i := range rows {
		total := totals[rows[i].Bucket]
		if total == 0 {
			continue
		}
		pct := float64(rows[i].Count) / float64(total) * 100
		rows[i].SharePct = &pct
	}
}

// SiteKPI is the per-site summary shown in the KPI table.
type SiteKPI struct {
	Site              string   `json:"site"`
	EnergySumKWh      float64  `json:"energy_sum_kwh"`
	EnergyMeanKWh     *float64 `json:"energy_mean_kwh"`
	CostSum           float64  `json:"cost_sum"`
	CostMean          *float64 `json:"cost_mean"`
	AvgPowerMeanKW    *float64 `json:"avg_power_mean_kw"`
	DurationMeanHours *float64 `json:"duration_mean_hours"`
	Sessions          int      `json:"sessions"`
}

var siteKPIMetrics = []Metric{
	{KPI: KPIEnergyKWh, Reducer: ReducerSum},
	{KPI: KPIEnergyKWh, Reducer: ReducerMean},
	{KPI: KPICost, Reducer: ReducerSum},
	{KPI: KPICost, Reducer: ReducerMean},
	{KPI: KPIAvgPowerKW, Reducer: ReducerMean},
	{KPI: KPIDurationHours, Reducer: ReducerMean},
}

// SiteKPIs aggregates the standard per-site KPI table.
func SiteKPIs(t sessions.Table) []SiteKPI {
	rows, err := Aggregate(t, AggregateSpec{GroupBy: GroupBy{Site: true}, Metrics: siteKPIMetrics})
	if err != nil {
		return nil
	}
	out := make([]SiteKPI, 0, len(rows))
	for _, row := range rows {
		out = append(out, SiteKPI{
			Site:              row.Site,
			EnergySumKWh:      deref(row.Value(siteKPIMetrics[0])),
			EnergyMeanKWh:     row.Value(siteKPIMetrics[1]),
			CostSum:           deref(row.Value(siteKPIMetrics[2])),
			CostMean:          row.Value(siteKPIMetrics[3]),
			AvgPowerMeanKW:    row.Value(siteKPIMetrics[4]),
			DurationMeanHours: row.Value(siteKPIMetrics[5]),
			Sessions:          row.Count,
		})
	}
	return out
}

// CategoryShare is one slice of a distribution.
type CategoryShare struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Distribution counts sessions per category label; empty labels are excluded.
// Slices are ordered by count descending, then label.
func Distribution(t sessions.Table, category Category) ([]CategoryShare, error) {
	if category == CategoryNone {
		return nil, ErrInvalidCategory
	}
	rows, err := Aggregate(t, AggregateSpec{GroupBy: GroupBy{Category: category}})
	if err != nil {
		return nil, err
	}
	total := 0
	for _, row := range rows {
		total += row.Count
	}
	out := make([]CategoryShare, 0, len(rows))
	for _, row := range rows {
		share := CategoryShare{Label: row.Category, Count: row.Count}
		if total > 0 {
			share.Percent = float64(row.Count) / float64(total) * 100
		}
		out = append(out, share)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
