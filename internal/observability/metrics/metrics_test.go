package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveHelpers(t *testing.T) {
	Init(nil)
	Init(nil)

	before := testutil.ToFloat64(loadTotal.WithLabelValues(SourceUpload, ResultSuccess))
	ObserveLoad(SourceUpload, "", 10*time.Millisecond)
	if got := testutil.ToFloat64(loadTotal.WithLabelValues(SourceUpload, ResultSuccess)); got != before+1 {
		t.Fatalf("expected load counter to increase, got %v", got)
	}

	IncLoadCache(true)
	IncLoadCache(false)
	if got := testutil.ToFloat64(loadCache.WithLabelValues(cacheHit)); got < 1 {
		t.Fatalf("expected cache hit recorded, got %v", got)
	}

	AddSessionRows(RowsInvalid, 0)
	AddSessionRows(RowsInvalid, 3)
	if got := testutil.ToFloat64(sessionRows.WithLabelValues(RowsInvalid)); got != 3 {
		t.Fatalf("expected 3 invalid rows, got %v", got)
	}

	IncLoadError("")
	if got := testutil.ToFloat64(loadErrors.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected unknown reason, got %v", got)
	}
}
