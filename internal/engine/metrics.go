package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	PagesFetched     atomic.Int64
	FetchErrors      atomic.Int64
	RateLimitHits    atomic.Int64
	VideosCollected  atomic.Int64
	ItemsSkipped     atomic.Int64
	FilesWritten     atomic.Int64
	CountriesDone    atomic.Int64
	Aggregations     atomic.Int64
	DeliveryPredicts atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"pages_fetched":     metrics.PagesFetched.Load(),
		"fetch_errors":      metrics.FetchErrors.Load(),
		"rate_limit_hits":   metrics.RateLimitHits.Load(),
		"videos_collected":  metrics.VideosCollected.Load(),
		"items_skipped":     metrics.ItemsSkipped.Load(),
		"files_written":     metrics.FilesWritten.Load(),
		"countries_done":    metrics.CountriesDone.Load(),
		"aggregations":      metrics.Aggregations.Load(),
		"delivery_predicts": metrics.DeliveryPredicts.Load(),
		"cache_hits":        hits,
		"cache_misses":      misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"pages_fetched", "fetch_errors", "rate_limit_hits",
		"videos_collected", "items_skipped",
		"files_written", "countries_done",
		"aggregations", "delivery_predicts",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sources/ sub-package.
func IncrPagesFetched()  { metrics.PagesFetched.Add(1) }
func IncrFetchErrors()   { metrics.FetchErrors.Add(1) }
func IncrRateLimitHits() { metrics.RateLimitHits.Add(1) }

// Incrementors for trending/ and delivery/ sub-packages.
func AddVideosCollected(n int) { metrics.VideosCollected.Add(int64(n)) }
func AddItemsSkipped(n int)    { metrics.ItemsSkipped.Add(int64(n)) }
func IncrFilesWritten()        { metrics.FilesWritten.Add(1) }
func IncrCountriesDone()       { metrics.CountriesDone.Add(1) }
func IncrAggregations()        { metrics.Aggregations.Add(1) }
func IncrDeliveryPredicts()    { metrics.DeliveryPredicts.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 30*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
