package memory

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	sessions "charging-kpi/internal/sessions/domain"
)

const defaultCapacity = 16

// WorkbookReader resolves and parses workbooks.
type WorkbookReader interface {
	Resolve(ctx context.Context, src sessions.Source) ([]byte, error)
	Parse(data []byte, schema sessions.Schema) (*sessions.RawTable, error)
}

// CachingLoader memoizes parsed workbooks by content hash and schema.
// Parse failures are not cached. Cached tables are shared read-only.
type CachingLoader struct {
	reader WorkbookReader
	tables *lru.Cache[string, *sessions.RawTable]
	group  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachingLoader constructs a CachingLoader holding at most capacity tables.
func NewCachingLoader(reader WorkbookReader, capacity int) (*CachingLoader, error) {
	if reader == nil {
		return nil, errors.New("memory: nil workbook reader")
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	tables, err := lru.New[string, *sessions.RawTable](capacity)
	if err != nil {
		return nil, err
	}
	return &CachingLoader{reader: reader, tables: tables}, nil
}

// Load returns the parsed table, the content key of the workbook bytes and whether the
// table came from the cache.
func (c *CachingLoader) Load(ctx context.Context, src sessions.Source, schema sessions.Schema) (*sessions.RawTable, string, bool, error) {
	data, err := c.reader.Resolve(ctx, src)
	if err != nil {
		return nil, "", false, err
	}
	contentKey := ContentKey(data)
	key := contentKey + "|" + strconv.FormatUint(xxhash.Sum64String(schema.Fingerprint()), 16)

	if table, ok := c.tables.Get(key); ok {
		c.hits.Add(1)
		return table, contentKey, true, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key, func() (any, error) {
		if table, ok := c.tables.Peek(key); ok {
			return table, nil
		}
		table, err := c.reader.Parse(data, schema)
		if err != nil {
			return nil, err
		}
		c.tables.Add(key, table)
		return table, nil
	})
	if err != nil {
		return nil, contentKey, false, err
	}
	return v.(*sessions.RawTable), contentKey, false, nil
}

// Stats returns hit and miss counts.
func (c *CachingLoader) Stats() (hits, misses int) {
	return int(c.hits.Load()), int(c.misses.Load())
}

// Len returns the number of cached tables.
func (c *CachingLoader) Len() int {
	return c.tables.Len()
}

// ContentKey identifies workbook bytes.
func ContentKey(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
