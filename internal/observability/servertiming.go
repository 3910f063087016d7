package observability

import (
	"context"
	"sync"
	"time"

	servertiming "github.com/mitchellh/go-server-timing"
)

// ServerTimingMetric wraps the server-timing library's Metric type.
type ServerTimingMetric struct {
	metric *servertiming.Metric
}

// Stop stops the timing metric.
func (m *ServerTimingMetric) Stop() {
	if m != nil && m.metric != nil {
		m.metric.Stop()
	}
}

// StartServerTiming starts a server-timing metric with the given name.
// If the request carries no Server-Timing header, a no-op metric is returned.
func StartServerTiming(ctx context.Context, name string) *ServerTimingMetric {
	return StartServerTimingWithDesc(ctx, name, "")
}

// StartServerTimingWithDesc starts a server-timing metric with a description.
func StartServerTimingWithDesc(ctx context.Context, name, description string) *ServerTimingMetric {
	timing := servertiming.FromContext(ctx)
	if timing == nil {
		return &ServerTimingMetric{}
	}
	m := timing.NewMetric(name)
	if description != "" {
		m = m.WithDesc(description)
	}
	return &ServerTimingMetric{metric: m.Start()}
}

// DBTimeAccumulator sums session store time spent by one request.
type DBTimeAccumulator struct {
	mu    sync.Mutex
	total time.Duration
	count int
}

// Add adds d to the total.
func (a *DBTimeAccumulator) Add(d time.Duration) {
	a.mu.Lock()
	a.total += d
	a.count++
	a.mu.Unlock()
}

// Duration returns the accumulated time.
func (a *DBTimeAccumulator) Duration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Count returns the number of recorded queries.
func (a *DBTimeAccumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

type dbTimeKey struct{}

// WithDBTimeAccumulator returns a context carrying a fresh accumulator.
func WithDBTimeAccumulator(ctx context.Context) context.Context {
	return context.WithValue(ctx, dbTimeKey{}, &DBTimeAccumulator{})
}

// DBTimeAccumulatorFromContext returns the accumulator in ctx, or nil.
func DBTimeAccumulatorFromContext(ctx context.Context) *DBTimeAccumulator {
	acc, _ := ctx.Value(dbTimeKey{}).(*DBTimeAccumulator)
	return acc
}

// AddDBTime adds d to the request's accumulator and, when the request
// carries a Server-Timing header, reports it as a "db" metric.
func AddDBTime(ctx context.Context, d time.Duration) {
	if acc := DBTimeAccumulatorFromContext(ctx); acc != nil {
		acc.Add(d)
	}
	if timing := servertiming.FromContext(ctx); timing != nil {
		timing.NewMetric("db").Duration = d
	}
}
