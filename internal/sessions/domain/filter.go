package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a date bound cannot be parsed.
var ErrInvalidDate = errors.New("sessions: invalid date")

// DateRange bounds sessions by end time, inclusive on both sides.
// A zero Start or End leaves that side open.
type DateRange struct {
	Start time.Time
	End   time.Time
	// EndIsDate extends End through the last instant of its calendar day.
	EndIsDate bool
}

// EffectiveEnd returns the inclusive upper bound.
func (r DateRange) EffectiveEnd() time.Time {
	if r.End.IsZero() || !r.EndIsDate {
		return r.End
	}
	day := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, r.End.Location())
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	end := r.EffectiveEnd()
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}

// ParseDateRange parses "2006-01-02" or RFC3339 bounds. Empty strings leave a side open.
func ParseDateRange(from, to string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	var r DateRange
	if from = strings.TrimSpace(from); from != "" {
		start, _, err := parseBound(from, loc)
		if err != nil {
			return DateRange{}, err
		}
		r.Start = start
	}
	if to = strings.TrimSpace(to); to != "" {
		end, dateOnly, err := parseBound(to, loc)
		if err != nil {
			return DateRange{}, err
		}
		r.End = end
		r.EndIsDate = dateOnly
	}
	return r, nil
}

func parseBound(value string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, true, nil
	}
	if t, err := time.ParseInLocation("02.01.2006", value, loc); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, ErrInvalidDate
}

// FilterResult is the narrowed working set.
type FilterResult struct {
	Table Table
}

// Empty is the "no data for this combination" signal. It is not an error.
func (r FilterResult) Empty() bool { return r.Table.Empty() }

// Filter keeps sessions whose end time lies in r and whose site is in sites.
// An empty site set always yields an empty result.
func Filter(t Table, r DateRange, sites []string) FilterResult {
	if len(sites) == 0 {
		return FilterResult{}
	}
	allowed := make(map[string]struct{}, len(sites))
	for _, s := range sites {
		allowed[s] = struct{}{}
	}
	rows := make([]DerivedSession, 0, len(t.rows))
	for _, row := range t.rows {
		if _, ok := allowed[row.SiteName]; !ok {
			continue
		}
		if !r.Contains(row.EndedAt) {
			continue
		}
		rows = append(rows, row)
	}
	return FilterResult{Table: Table{rows: rows}}
}
