// Package sessions keeps one grid per authenticated session. A grid is
// created on the session's first request and released on logout or once the
// session has expired.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nlstn/go-datagrid/internal/auth"
	"github.com/nlstn/go-datagrid/internal/table"
)

// Factory creates the grid for a new session.
type Factory func(ctx context.Context, sess auth.Session) (*table.Table, error)

// ExpireFunc is called for every session evicted because it expired.
type ExpireFunc func(ctx context.Context, sess auth.Session)

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used to decide whether a session has expired.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithExpireFunc registers fn to run after an expired session's grid has
// been evicted.
func WithExpireFunc(fn ExpireFunc) Option {
	return func(r *Registry) {
		r.onExpire = fn
	}
}

type entry struct {
	table   *table.Table
	session auth.Session
}

// Registry maps session ids to their grids.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]entry
	factory  Factory
	logger   *slog.Logger
	now      func() time.Time
	onExpire ExpireFunc
}

// New creates a registry building grids with factory.
func New(factory Factory, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		entries: make(map[string]entry),
		factory: factory,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the grid of the session stored in ctx, creating it on first
// use. A context without a session yields auth.ErrUnauthenticated.
func (r *Registry) Table(ctx context.Context) (*table.Table, error) {
	sess, ok := auth.SessionFromContext(ctx)
	if !ok {
		return nil, auth.ErrUnauthenticated
	}

	r.mu.Lock()
	expired := r.evictLocked()
	t, err := r.tableLocked(ctx, sess)
	r.mu.Unlock()

	r.expire(ctx, expired)
	return t, err
}

func (r *Registry) tableLocked(ctx context.Context, sess auth.Session) (*table.Table, error) {
	if e, ok := r.entries[sess.ID]; ok {
		return e.table, nil
	}
	t, err := r.factory(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("create grid for session %s: %w", sess.ID, err)
	}
	r.entries[sess.ID] = entry{table: t, session: sess}
	r.logger.DebugContext(ctx, "grid created", "session_id", sess.ID, "records", len(t.Records()))
	return t, nil
}

// Drop releases the grid of session id. It reports whether one existed.
func (r *Registry) Drop(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	return ok
}

// Sweep evicts the grids of expired sessions and returns how many it
// released.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	expired := r.evictLocked()
	r.mu.Unlock()

	r.expire(ctx, expired)
	return len(expired)
}

// Len returns the number of live grids. Expired grids are evicted first.
func (r *Registry) Len() int {
	r.Sweep(context.Background())
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// evictLocked removes entries whose session has expired. Sessions without
// an expiry never expire.
func (r *Registry) evictLocked() []auth.Session {
	now := r.now()
	var expired []auth.Session
	for id, e := range r.entries {
		if e.session.ExpiresAt.IsZero() || now.Before(e.session.ExpiresAt) {
			continue
		}
		delete(r.entries, id)
		expired = append(expired, e.session)
	}
	return expired
}

func (r *Registry) expire(ctx context.Context, expired []auth.Session) {
	for _, sess := range expired {
		r.logger.DebugContext(ctx, "grid expired", "session_id", sess.ID)
		if r.onExpire != nil {
			r.onExpire(ctx, sess)
		}
	}
}
