package statistic

import "errors"

var (
	// ErrInvalidGranularity is returned when granularity is unsupported.
	ErrInvalidGranularity = errors.New("statistic: invalid granularity")
	// ErrInvalidPeriodStart is returned when the period start is zero.
	ErrInvalidPeriodStart = errors.New("statistic: invalid period start")
	// ErrInvalidKPI is returned for an unknown KPI column.
	ErrInvalidKPI = errors.New("statistic: invalid kpi")
	// ErrInvalidReducer is returned for an unknown or unsupported reducer.
	ErrInvalidReducer = errors.New("statistic: invalid reducer")
	// ErrInvalidCategory is returned for an unknown category column.
	ErrInvalidCategory = errors.New("statistic: invalid category")
	// ErrNoMetrics is returned when an aggregation names no metric and no share.
	ErrNoMetrics = errors.New("statistic: no metrics requested")
	// ErrShareWithoutBucket is returned when share-of-period is requested without a time bucket.
	ErrShareWithoutBucket = errors.New("statistic: share of period requires a time bucket")
	// ErrUnsortedSeries is returned when a cumulative input is not in ascending bucket order.
	ErrUnsortedSeries = errors.New("statistic: series not sorted by bucket")
)
