package xlsx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	sessions "charging-kpi/internal/sessions/domain"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxBytes     = 32 << 20
)

// ErrTooLarge is returned when a fetched workbook exceeds the size limit.
var ErrTooLarge = errors.New("xlsx: workbook too large")

// Loader reads the first worksheet of an XLSX workbook.
type Loader struct {
	client   *http.Client
	maxBytes int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithFetchTimeout bounds the remote fetch.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(l *Loader) {
		if timeout > 0 {
			l.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the fetch client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		if client != nil {
			l.client = client
		}
	}
}

// WithMaxBytes caps the fetched body size.
func WithMaxBytes(limit int64) Option {
	return func(l *Loader) {
		if limit > 0 {
			l.maxBytes = limit
		}
	}
}

// NewLoader constructs a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		client:   &http.Client{Timeout: defaultFetchTimeout},
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves the source bytes and parses them.
func (l *Loader) Load(ctx context.Context, src sessions.Source, schema sessions.Schema) (*sessions.RawTable, error) {
	data, err := l.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}
	return Parse(data, schema)
}

// Resolve returns the workbook bytes, fetching remote sources once without retries.
func (l *Loader) Resolve(ctx context.Context, src sessions.Source) ([]byte, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if !src.IsRemote() {
		return src.Data, nil
	}
	return l.fetch(ctx, src.URL)
}

// Parse implements the workbook reader used by the caching loader.
func (l *Loader) Parse(data []byte, schema sessions.Schema) (*sessions.RawTable, error) {
	return Parse(data, schema)
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, sessions.NewFetchError(err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, sessions.NewFetchError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, sessions.NewFetchError(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, sessions.NewFetchError(err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, sessions.NewFetchError(ErrTooLarge)
	}
	return data, nil
}

// Parse reads the first worksheet. The first non-blank row is the header row; every
// required column missing from it is reported in one LoadError.
func Parse(data []byte, schema sessions.Schema) (*sessions.RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, sessions.NewUnreadableError(err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, sessions.NewUnreadableError(sessions.ErrNoSheets)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, sessions.NewUnreadableError(err)
	}

	headerIdx := -1
	for i, row := range rows {
		if !blank(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, sessions.NewUnreadableError(sessions.ErrNoHeader)
	}
	headers := rows[headerIdx]
	if missing := schema.MissingColumns(headers); len(missing) > 0 {
		return nil, sessions.NewMissingColumnsError(missing)
	}

	records := make([]sessions.RawRecord, 0, len(rows)-headerIdx-1)
	for i := headerIdx + 1; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		records = append(records, sessions.RawRecord{Row: i + 1, Cells: rows[i]})
	}
	return sessions.NewRawTable(headers, records, schema.Columns), nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
