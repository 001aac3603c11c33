package db

import (
	"context"
	"log/slog"
	"time"
)

// QueryLatencyStats returns per-query latency samples, slowest p95 first.
func (c *Database) QueryLatencyStats() []queryLatencyStats {
	if c == nil || c.tracker == nil {
		return nil
	}
	return c.tracker.snapshot()
}

// SlowestQueries returns at most n entries of QueryLatencyStats.
func (c *Database) SlowestQueries(n int) []queryLatencyStats {
	stats := c.QueryLatencyStats()
	if n >= 0 && len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

// ReportLatency logs the top slowest queries every interval until ctx ends.
func (c *Database) ReportLatency(ctx context.Context, log *slog.Logger, interval time.Duration, top int) {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.logSlowest(ctx, log, top)
		}
	}
}

func (c *Database) logSlowest(ctx context.Context, log *slog.Logger, top int) {
	for _, entry := range c.SlowestQueries(top) {
		log.InfoContext(ctx, "db_query_latency",
			"driver", c.Driver(),
			"query", entry.Name,
			"count", entry.Count,
			"p50_ms", entry.P50.Milliseconds(),
			"p95_ms", entry.P95.Milliseconds(),
			"max_ms", entry.Max.Milliseconds(),
		)
	}
}
