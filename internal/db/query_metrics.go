package db

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/fr0stylo/ledgerlink/internal/observability"
)

const maxSamplesPerQuery = 512

type queryLatencyStats struct {
	Name  string
	Count int
	P50   time.Duration
	P95   time.Duration
	Max   time.Duration
}

type queryLatencyTracker struct {
	mu      sync.Mutex
	samples map[string][]time.Duration
}

func newQueryLatencyTracker() *queryLatencyTracker {
	return &queryLatencyTracker{samples: make(map[string][]time.Duration)}
}

func (t *queryLatencyTracker) observe(name string, duration time.Duration) {
	if t == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "unknown"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	window := append(t.samples[name], duration)
	if len(window) > maxSamplesPerQuery {
		window = window[len(window)-maxSamplesPerQuery:]
	}
	t.samples[name] = window
}

func (t *queryLatencyTracker) snapshot() []queryLatencyStats {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	stats := make([]queryLatencyStats, 0, len(t.samples))
	for name, durations := range t.samples {
		if len(durations) == 0 {
			continue
		}
		sorted := make([]time.Duration, len(durations))
		copy(sorted, durations)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		stats = append(stats, queryLatencyStats{
			Name:  name,
			Count: len(sorted),
			P50:   sorted[(len(sorted)-1)/2],
			P95:   sorted[int(float64(len(sorted)-1)*0.95)],
			Max:   sorted[len(sorted)-1],
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].P95 == stats[j].P95 {
			return stats[i].Name < stats[j].Name
		}
		return stats[i].P95 > stats[j].P95
	})

	return stats
}

type queryNameKey struct{}

type querySpanKey struct{}

// withQueryName labels the next query issued with ctx for spans and latency stats.
func withQueryName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, queryNameKey{}, name)
}

// queryHook traces every bun query as a db.<name> span and records its latency.
type queryHook struct {
	system  string
	tracker *queryLatencyTracker
}

func newQueryHook(system string, tracker *queryLatencyTracker) *queryHook {
	return &queryHook{system: system, tracker: tracker}
}

func (h *queryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	ctx, span := observability.StartDBSpan(ctx, h.system, queryName(ctx, event), strings.ToLower(event.Operation()))
	return context.WithValue(ctx, querySpanKey{}, span)
}

func (h *queryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	h.tracker.observe(queryName(ctx, event), time.Since(event.StartTime))

	span, ok := ctx.Value(querySpanKey{}).(observability.Span)
	if !ok {
		return
	}
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		span.RecordError(event.Err)
	}
	span.End()
}

func queryName(ctx context.Context, event *bun.QueryEvent) string {
	if name, ok := ctx.Value(queryNameKey{}).(string); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	if event == nil {
		return "unknown"
	}
	op := strings.ToLower(strings.TrimSpace(event.Operation()))
	if op == "" {
		return "unknown"
	}
	return op
}
