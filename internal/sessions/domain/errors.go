package domain

import (
	"errors"
	"fmt"
	"strings"
)

// LoadErrorReason classifies fatal load failures.
type LoadErrorReason string

const (
	ReasonUnreadable     LoadErrorReason = "unreadable"
	ReasonMissingColumns LoadErrorReason = "missing_columns"
	ReasonFetchFailed    LoadErrorReason = "fetch_failed"
)

var (
	// ErrEmptySource is returned when the source carries neither bytes nor a URL.
	ErrEmptySource = errors.New("sessions: empty source")
	// ErrNoSheets is returned when a workbook has no worksheet.
	ErrNoSheets = errors.New("sessions: workbook has no sheets")
	// ErrNoHeader is returned when the first sheet has no header row.
	ErrNoHeader = errors.New("sessions: missing header row")
)

// LoadError stops the pipeline for the current request.
type LoadError struct {
	Reason  LoadErrorReason
	Columns []string
	Err     error
}

func (e *LoadError) Error() string {
	switch e.Reason {
	case ReasonMissingColumns:
		return fmt.Sprintf("sessions: missing columns: %s", strings.Join(e.Columns, ", "))
	default:
		if e.Err != nil {
			return fmt.Sprintf("sessions: %s: %v", e.Reason, e.Err)
		}
		return fmt.Sprintf("sessions: %s", e.Reason)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewUnreadableError wraps a parse failure.
func NewUnreadableError(err error) *LoadError {
	return &LoadError{Reason: ReasonUnreadable, Err: err}
}

// NewMissingColumnsError reports every missing column.
func NewMissingColumnsError(columns []string) *LoadError {
	return &LoadError{Reason: ReasonMissingColumns, Columns: append([]string(nil), columns...)}
}

// NewFetchError wraps a remote fetch failure.
func NewFetchError(err error) *LoadError {
	return &LoadError{Reason: ReasonFetchFailed, Err: err}
}

// AsLoadError extracts a LoadError from an error chain.
func AsLoadError(err error) (*LoadError, bool) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr, true
	}
	return nil, false
}
