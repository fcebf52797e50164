package statistic

import (
	"sort"
	"time"

	sessions "charging-kpi/internal/sessions/domain"
)

// PortfolioLabel is the default name of the synthesized all-sites series.
const PortfolioLabel = "Portfolio total"

// TrendSpec configures BuildTrend.
type TrendSpec struct {
	KPI                   KPI
	Bucket                Granularity
	Reducer               Reducer
	IncludePortfolioTotal bool
	PortfolioLabel        string
	Cumulative            bool
}

// TrendPoint is one value of a time series.
// Synthetic marks the portfolio series so it cannot be confused with a site of the same name.
type TrendPoint struct {
	Bucket     time.Time `json:"bucket"`
	TimeKey    TimeKey   `json:"time_key"`
	Group      string    `json:"group"`
	Value      *float64  `json:"value"`
	SharePct   *float64  `json:"share_pct,omitempty"`
	Cumulative *float64  `json:"cumulative,omitempty"`
	Synthetic  bool      `json:"synthetic,omitempty"`
}

// BuildTrend produces per-site points ordered by bucket then site, optionally followed
// by the portfolio series. With GranularityNone every session becomes one point holding
// its unmodified KPI value.
func BuildTrend(t sessions.Table, spec TrendSpec) ([]TrendPoint, error) {
	if !spec.KPI.IsValid() {
		return nil, ErrInvalidKPI
	}
	bucket := spec.Bucket
	if bucket == "" {
		bucket = GranularityNone
	}
	if !bucket.IsValid() {
		return nil, ErrInvalidGranularity
	}
	if spec.Reducer != ReducerSum && spec.Reducer != ReducerMean {
		return nil, ErrInvalidReducer
	}

	var points []TrendPoint
	if bucket == GranularityNone {
		points = rawPoints(t, spec.KPI)
	} else {
		metric := Metric{KPI: spec.KPI, Reducer: spec.Reducer}
		rows, err := Aggregate(t, AggregateSpec{
			GroupBy: GroupBy{Site: true, Bucket: bucket},
			Metrics: []Metric{metric},
		})
		if err != nil {
			return nil, err
		}
		points = make([]TrendPoint, 0, len(rows))
		for _, row := range rows {
			points = append(points, TrendPoint{
				Bucket:  row.Bucket,
				TimeKey: row.TimeKey,
				Group:   row.Site,
				Value:   row.Value(metric),
			})
		}
	}

	if spec.IncludePortfolioTotal {
		label := spec.PortfolioLabel
		if label == "" {
			label = PortfolioLabel
		}
		points = append(points, portfolioSeries(points, bucket, label)...)
	}
	if spec.Cumulative {
		return Cumulative(points)
	}
	return points, nil
}

func rawPoints(t sessions.Table, kpi KPI) []TrendPoint {
	rows := t.Rows()
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].EndedAt.Equal(rows[j].EndedAt) {
			return rows[i].EndedAt.Before(rows[j].EndedAt)
		}
		return rows[i].SiteName < rows[j].SiteName
	})
	points := make([]TrendPoint, 0, len(rows))
	for _, row := range rows {
		key, _ := NewTimeKey(GranularityNone, row.EndedAt)
		points = append(points, TrendPoint{
			Bucket:  row.EndedAt,
			TimeKey: key,
			Group:   row.SiteName,
			Value:   kpi.Value(row),
		})
	}
	return points
}

// portfolioSeries sums the per-site values of each bucket. A bucket whose values are
// all missing has a missing total.
func portfolioSeries(points []TrendPoint, bucket Granularity, label string) []TrendPoint {
	type total struct {
		at    time.Time
		sum   float64
		valid bool
	}
	index := make(map[time.Time]int)
	var totals []total
	for _, p := range points {
		pos, ok := index[p.Bucket]
		if !ok {
			pos = len(totals)
			index[p.Bucket] = pos
			totals = append(totals, total{at: p.Bucket})
		}
		if p.Value != nil {
			totals[pos].sum += *p.Value
			totals[pos].valid = true
		}
	}
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].at.Before(totals[j].at) })

	series := make([]TrendPoint, 0, len(totals))
	for _, tot := range totals {
		key, _ := NewTimeKey(bucket, tot.at)
		point := TrendPoint{Bucket: tot.at, TimeKey: key, Group: label, Synthetic: true}
		if tot.valid {
			sum := tot.sum
			point.Value = &sum
		}
		series = append(series, point)
	}
	return series
}

// Cumulative adds a running total per series. The input must already be in ascending
// bucket order within each series; it is not re-sorted. Missing values add nothing.
func Cumulative(points []TrendPoint) ([]TrendPoint, error) {
	type seriesKey struct {
		group     string
		synthetic bool
	}
	type state struct {
		last    time.Time
		running float64
	}
	out := make([]TrendPoint, len(points))
	copy(out, points)
	series := make(map[seriesKey]*state)
	for i := range out {
		key := seriesKey{group: out[i].Group, synthetic: out[i].Synthetic}
		st, ok := series[key]
		if !ok {
			st = &state{last: out[i].Bucket}
			series[key] = st
		}
		if out[i].Bucket.Before(st.last) {
			return nil, ErrUnsortedSeries
		}
		st.last = out[i].Bucket
		if out[i].Value != nil {
			st.running += *out[i].Value
		}
		running := st.running
		out[i].Cumulative = &running
	}
	return out, nil
}

// CategoryTrend counts sessions per bucket and category and annotates each point with
// its share of the bucket. Sessions without a category label are not counted.
func CategoryTrend(t sessions.Table, bucket Granularity, category Category) ([]TrendPoint, error) {
	if category == CategoryNone {
		return nil, ErrInvalidCategory
	}
	rows, err := Aggregate(t, AggregateSpec{
		GroupBy:       GroupBy{Bucket: bucket, Category: category},
		ShareOfPeriod: true,
	})
	if err != nil {
		return nil, err
	}
	points := make([]TrendPoint, 0, len(rows))
	for _, row := range rows {
		count := float64(row.Count)
		points = append(points, TrendPoint{
			Bucket:   row.Bucket,
			TimeKey:  row.TimeKey,
			Group:    row.Category,
			Value:    &count,
			SharePct: row.SharePct,
		})
	}
	return points, nil
}
