package application

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"charging-kpi/internal/analytics/domain/statistic"
	sessions "charging-kpi/internal/sessions/domain"
)

// Default trend settings when a query leaves them out.
const (
	DefaultKPI     = statistic.KPIEnergyKWh
	DefaultBucket  = statistic.GranularityMonth
	DefaultReducer = statistic.ReducerMean
)

// QueryInput is the unparsed form of a dashboard query as it arrives from HTTP or the CLI.
type QueryInput struct {
	From string
	To   string
	// Sites restricts the view; nil selects every site unless NoSites is set.
	Sites   []string
	NoSites bool

	KPI     string
	Bucket  string
	Reducer string
	TopN    string

	Portfolio   bool
	Cumulative  bool
	IncludeRows bool
}

// Query is a validated dashboard query.
type Query struct {
	Range    sessions.DateRange
	Sites    []string
	AllSites bool

	KPI     statistic.KPI
	Bucket  statistic.Granularity
	Reducer statistic.Reducer
	TopN    int

	IncludePortfolio bool
	Cumulative       bool
	IncludeRows      bool
}

// ParseQuery validates in. defaultTopN applies when TopN is empty.
func ParseQuery(in QueryInput, loc *time.Location, defaultTopN int) (Query, error) {
	q := Query{
		KPI:              DefaultKPI,
		Bucket:           DefaultBucket,
		Reducer:          DefaultReducer,
		TopN:             defaultTopN,
		IncludePortfolio: in.Portfolio,
		Cumulative:       in.Cumulative,
		IncludeRows:      in.IncludeRows,
	}

	r, err := sessions.ParseDateRange(in.From, in.To, loc)
	if err != nil {
		return Query{}, fmt.Errorf("%w: date range: %v", ErrInvalidQuery, err)
	}
	if !r.Start.IsZero() && !r.EffectiveEnd().IsZero() && r.Start.After(r.EffectiveEnd()) {
		return Query{}, fmt.Errorf("%w: from is after to", ErrInvalidQuery)
	}
	q.Range = r

	sites := cleanSites(in.Sites)
	switch {
	case in.NoSites:
		q.Sites = []string{}
	case len(sites) == 0:
		q.AllSites = true
	default:
		q.Sites = sites
	}

	if strings.TrimSpace(in.KPI) != "" {
		if q.KPI, err = statistic.ParseKPI(in.KPI); err != nil {
			return Query{}, fmt.Errorf("%w: kpi %q", ErrInvalidQuery, in.KPI)
		}
	}
	if strings.TrimSpace(in.Bucket) != "" {
		if q.Bucket, err = statistic.ParseGranularity(in.Bucket); err != nil {
			return Query{}, fmt.Errorf("%w: bucket %q", ErrInvalidQuery, in.Bucket)
		}
	}
	if strings.TrimSpace(in.Reducer) != "" {
		if q.Reducer, err = statistic.ParseReducer(in.Reducer); err != nil {
			return Query{}, fmt.Errorf("%w: reducer %q", ErrInvalidQuery, in.Reducer)
		}
	}
	if q.Reducer == statistic.ReducerCount {
		return Query{}, fmt.Errorf("%w: trend reducer must be sum or mean", ErrInvalidQuery)
	}
	if value := strings.TrimSpace(in.TopN); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("%w: top_n %q", ErrInvalidQuery, in.TopN)
		}
		q.TopN = n
	}
	return q, nil
}

func cleanSites(values []string) []string {
	var out []string
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
