package prometheus

import (
	"strconv"
	"time"
)

// MinerMetrics holds every metric the miner reports.
type MinerMetrics struct {
	// Corpus pass
	ArticlesProcessed  CounterVec
	ArticlesSkipped    CounterVec
	SentencesScanned   CounterVec
	TuplesEmitted      CounterVec
	ExtractionDuration HistogramVec

	// Tuple cache
	CacheHits   CounterVec
	CacheMisses CounterVec

	// Tree
	TreeLeaves     GaugeVec
	TreeAggregates GaugeVec

	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
}

// Default buckets.
var (
	DefaultExtractionBuckets   = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
)

// NewMinerMetrics registers all miner metrics on collector.
func NewMinerMetrics(collector MetricsCollector) *MinerMetrics {
	if collector == nil {
		collector = NewNopCollector()
	}
	m := &MinerMetrics{}

	m.ArticlesProcessed = collector.RegisterCounter("articles_processed_total", "Articles run through extraction", "scope")
	m.ArticlesSkipped = collector.RegisterCounter("articles_skipped_total", "Articles skipped before extraction", "reason")
	m.SentencesScanned = collector.RegisterCounter("sentences_scanned_total", "Sentences scanned for edge mentions", "scope")
	m.TuplesEmitted = collector.RegisterCounter("tuples_emitted_total", "Classification tuples emitted", "region", "edge")
	m.ExtractionDuration = collector.RegisterHistogram("extraction_duration_seconds", "Per-article extraction duration", DefaultExtractionBuckets, "scope")

	m.CacheHits = collector.RegisterCounter("cache_hits_total", "Tuple cache hits", "tier")
	m.CacheMisses = collector.RegisterCounter("cache_misses_total", "Tuple cache misses", "tier")

	m.TreeLeaves = collector.RegisterGauge("tree_leaves", "Paper leaves in the taxonomy tree")
	m.TreeAggregates = collector.RegisterGauge("tree_aggregate_nodes", "Aggregate nodes left after pruning")

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")

	return m
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// RecordArticle records one extracted article.
func (m *MinerMetrics) RecordArticle(scope string, sentences int, duration time.Duration) {
	m.ArticlesProcessed.WithLabelValues(scope).Inc()
	m.SentencesScanned.WithLabelValues(scope).Add(float64(sentences))
	m.ExtractionDuration.WithLabelValues(scope).Observe(duration.Seconds())
}

func (m *MinerMetrics) RecordSkip(reason string) {
	m.ArticlesSkipped.WithLabelValues(reason).Inc()
}

func (m *MinerMetrics) RecordTuple(region, edge string) {
	m.TuplesEmitted.WithLabelValues(region, edge).Inc()
}

// RecordCacheAccess counts a lookup against one cache tier.
func (m *MinerMetrics) RecordCacheAccess(tier string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(tier).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(tier).Inc()
}

// RecordTree publishes the size of a pruned tree.
func (m *MinerMetrics) RecordTree(leaves, aggregates int) {
	m.TreeLeaves.WithLabelValues().Set(float64(leaves))
	m.TreeAggregates.WithLabelValues().Set(float64(aggregates))
}

func (m *MinerMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
