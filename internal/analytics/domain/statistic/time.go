package statistic

import (
	"strings"
	"time"
)

// Granularity is the time resolution used to bucket sessions by end time.
type Granularity string

const (
	GranularityNone  Granularity = "NONE"
	GranularityHour  Granularity = "HOUR"
	GranularityDay   Granularity = "DAY"
	GranularityMonth Granularity = "MONTH"
	GranularityYear  Granularity = "YEAR"
)

// ParseGranularity accepts case-insensitive names; "" means none.
func ParseGranularity(value string) (Granularity, error) {
	g := Granularity(strings.ToUpper(strings.TrimSpace(value)))
	if g == "" {
		return GranularityNone, nil
	}
	if !g.IsValid() {
		return "", ErrInvalidGranularity
	}
	return g, nil
}

// IsValid checks if the granularity is one of the supported values.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityNone, GranularityHour, GranularityDay, GranularityMonth, GranularityYear:
		return true
	default:
		return false
	}
}

// Truncate returns the start of the bucket containing t. None returns t unchanged.
func (g Granularity) Truncate(t time.Time) time.Time {
	switch g {
	case GranularityHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case GranularityYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	default:
		return t
	}
}

// TimeKey is the printable label of a bucket.
type TimeKey string

// NewTimeKey builds a TimeKey for the given granularity and bucket start.
func NewTimeKey(granularity Granularity, periodStart time.Time) (TimeKey, error) {
	if !granularity.IsValid() {
		return "", ErrInvalidGranularity
	}
	if periodStart.IsZero() {
		return "", ErrInvalidPeriodStart
	}

	layout, err := timeKeyLayout(granularity)
	if err != nil {
		return "", err
	}
	return TimeKey(periodStart.Format(layout)), nil
}

// String returns the raw label.
func (k TimeKey) String() string { return string(k) }

func timeKeyLayout(granularity Granularity) (string, error) {
	switch granularity {
	case GranularityNone:
		return "2006-01-02T15:04:05", nil
	case GranularityHour:
		return "2006-01-02T15", nil
	case GranularityDay:
		return "2006-01-02", nil
	case GranularityMonth:
		return "2006-01", nil
	case GranularityYear:
		return "2006", nil
	default:
		return "", ErrInvalidGranularity
	}
}
