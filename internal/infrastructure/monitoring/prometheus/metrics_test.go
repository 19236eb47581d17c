package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMinerMetrics(t *testing.T) (*MinerMetrics, MetricsCollector) {
	c := newTestCollector(t)
	return NewMinerMetrics(c), c
}

func TestNewMinerMetrics_AllRegistered(t *testing.T) {
	m, _ := newTestMinerMetrics(t)
	require.NotNil(t, m)
	assert.NotNil(t, m.ArticlesProcessed)
	assert.NotNil(t, m.ArticlesSkipped)
	assert.NotNil(t, m.SentencesScanned)
	assert.NotNil(t, m.TuplesEmitted)
	assert.NotNil(t, m.ExtractionDuration)
	assert.NotNil(t, m.CacheHits)
	assert.NotNil(t, m.CacheMisses)
	assert.NotNil(t, m.TreeLeaves)
	assert.NotNil(t, m.TreeAggregates)
}

func TestNewMinerMetrics_NilCollector(t *testing.T) {
	m := NewMinerMetrics(nil)
	assert.NotPanics(t, func() {
		m.RecordArticle("captions", 3, time.Millisecond)
		m.RecordTree(1, 2)
	})
}

func TestRecordArticle(t *testing.T) {
	m, c := newTestMinerMetrics(t)
	m.RecordArticle("captions", 4, 2*time.Millisecond)
	m.RecordArticle("captions", 6, 3*time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_articles_processed_total{scope="captions"} 2`)
	assert.Contains(t, out, `test_unit_sentences_scanned_total{scope="captions"} 10`)
	assert.Contains(t, out, `test_unit_extraction_duration_seconds_count{scope="captions"} 2`)
}

func TestRecordSkipAndTuple(t *testing.T) {
	m, c := newTestMinerMetrics(t)
	m.RecordSkip("decode")
	m.RecordTuple("XANES", "K")
	m.RecordTuple("XANES", "K")
	m.RecordTuple("EXAFS", "L")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_articles_skipped_total{reason="decode"} 1`)
	assert.Contains(t, out, `test_unit_tuples_emitted_total{edge="K",region="XANES"} 2`)
	assert.Contains(t, out, `test_unit_tuples_emitted_total{edge="L",region="EXAFS"} 1`)
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestMinerMetrics(t)
	m.RecordCacheAccess("memory", true)
	m.RecordCacheAccess("redis", false)
	m.RecordCacheAccess("redis", false)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_cache_hits_total{tier="memory"} 1`)
	assert.Contains(t, out, `test_unit_cache_misses_total{tier="redis"} 2`)
}

func TestRecordTree(t *testing.T) {
	m, c := newTestMinerMetrics(t)
	m.RecordTree(12, 7)
	m.RecordTree(13, 7)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, "test_unit_tree_leaves 13")
	assert.Contains(t, out, "test_unit_tree_aggregate_nodes 7")
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestMinerMetrics(t)
	m.RecordHTTPRequest("GET", "/api/v1/tree", 200, 10*time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_http_requests_total{method="GET",path="/api/v1/tree",status_code="200"} 1`)
	assert.Contains(t, out, `test_unit_http_request_duration_seconds_count{method="GET",path="/api/v1/tree"} 1`)
}
