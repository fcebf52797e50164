package domain

import "strings"

// RawRecord is one worksheet row as text. Row is the 1-based sheet row number.
type RawRecord struct {
	Row   int
	Cells []string
}

// RawTable is the loader output: trimmed headers and untyped rows.
type RawTable struct {
	Headers []string
	Records []RawRecord

	columns map[Field]int
}

// NewRawTable resolves field positions against the trimmed headers.
// The first occurrence of a duplicated header wins.
func NewRawTable(headers []string, records []RawRecord, columns ColumnMapping) *RawTable {
	trimmed := make([]string, len(headers))
	position := make(map[string]int, len(headers))
	for i, h := range headers {
		trimmed[i] = strings.TrimSpace(h)
		if _, ok := position[trimmed[i]]; !ok {
			position[trimmed[i]] = i
		}
	}
	resolved := make(map[Field]int, len(Fields))
	for _, field := range Fields {
		name := strings.TrimSpace(columns.Header(field))
		if name == "" {
			continue
		}
		if idx, ok := position[name]; ok {
			resolved[field] = idx
		}
	}
	return &RawTable{Headers: trimmed, Records: records, columns: resolved}
}

// HasField reports whether the field was found in the header row.
func (t *RawTable) HasField(field Field) bool {
	_, ok := t.columns[field]
	return ok
}

// Value returns the trimmed cell for field, or "" when the column or cell is absent.
func (t *RawTable) Value(rec RawRecord, field Field) string {
	idx, ok := t.columns[field]
	if !ok || idx >= len(rec.Cells) {
		return ""
	}
	return strings.TrimSpace(rec.Cells[idx])
}

// Len returns the number of data rows.
func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}
