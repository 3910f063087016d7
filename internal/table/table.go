// Package table is the grid session engine. A Table owns one record store and
// one query state, runs every mutation through the validation gateway, and
// keeps the derived view current after each change. Calls are serialized so
// that the session behaves as a single logical thread.
package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/nlstn/go-datagrid/internal/etag"
	"github.com/nlstn/go-datagrid/internal/notify"
	"github.com/nlstn/go-datagrid/internal/query"
	"github.com/nlstn/go-datagrid/internal/record"
	"github.com/nlstn/go-datagrid/internal/store"
	"github.com/nlstn/go-datagrid/internal/validation"
)

var (
	// ErrPreconditionFailed is returned when an If-Match value does not match
	// the record's current ETag.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrSuperseded is returned by a refresh that a later refresh replaced
	// before it finished loading.
	ErrSuperseded = errors.New("refresh superseded by a newer refresh")
	// ErrRefreshFailed is returned when the loader produced a record set the
	// store refused, such as one with duplicate ids.
	ErrRefreshFailed = errors.New("refresh failed")
)

// Option configures a Table.
type Option func(*Table)

// WithLoader sets the source of refreshed record sets.
func WithLoader(l Loader) Option {
	return func(t *Table) {
		if l != nil {
			t.loader = l
		}
	}
}

// WithNotifier sets the receiver of user-facing notifications.
func WithNotifier(n notify.Notifier) Option {
	return func(t *Table) {
		if n != nil {
			t.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithPageSize sets the initial page size.
func WithPageSize(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.state.PageSize = n
		}
	}
}

// Table is one session's grid.
type Table struct {
	mu       sync.Mutex
	store    *store.Store
	state    *query.State
	view     query.View
	loader   Loader
	notifier notify.Notifier
	logger   *slog.Logger

	refreshSeq    uint64
	cancelRefresh context.CancelFunc
}

// New creates a table holding records.
func New(records []record.Product, opts ...Option) (*Table, error) {
	s, err := store.New(records)
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	t := &Table{
		store:    s,
		state:    query.NewState(),
		loader:   SampleLoader{},
		notifier: notify.Discard,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	s.OnChange(func(uint64) { t.recompute() })
	t.recompute()
	return t, nil
}

// recompute must be called with t.mu held.
func (t *Table) recompute() {
	t.view = t.state.Apply(t.store.Snapshot())
}

// View returns the current derived view.
func (t *Table) View() query.View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// Records returns a copy of every stored product in store order.
func (t *Table) Records() []record.Product {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Snapshot()
}

// Version returns the store's mutation counter.
func (t *Table) Version() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Version()
}

// Refreshing reports whether a refresh is loading.
func (t *Table) Refreshing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelRefresh != nil
}

// Get returns the product with the given id.
func (t *Table) Get(id string) (record.Product, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.store.Get(id)
	if !ok {
		return record.Product{}, fmt.Errorf("get %s: %w", id, store.ErrNotFound)
	}
	return p, nil
}

// Create validates c and inserts it at the front of the store. Any id on the
// candidate is ignored; the store assigns one.
func (t *Table) Create(ctx context.Context, c validation.Candidate) (record.Product, error) {
	p, err := validation.Validate(c)
	if err != nil {
		return record.Product{}, err
	}
	p.ID = ""

	t.mu.Lock()
	defer t.mu.Unlock()
	created, err := t.store.Insert(p)
	if err != nil {
		return record.Product{}, err
	}
	t.logger.DebugContext(ctx, "product created", "id", created.ID)
	t.notifier.Notify(notify.LevelSuccess, fmt.Sprintf("Product %s has been added.", created.Name))
	return created, nil
}

// Update validates c and replaces the product with the given id in place.
// A non-empty ifMatch must match the product's current ETag.
func (t *Table) Update(ctx context.Context, id string, c validation.Candidate, ifMatch string) (record.Product, error) {
	p, err := validation.Validate(c)
	if err != nil {
		return record.Product{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkPrecondition(id, ifMatch); err != nil {
		return record.Product{}, err
	}
	updated, err := t.store.UpdateByID(id, p)
	if err != nil {
		return record.Product{}, err
	}
	t.logger.DebugContext(ctx, "product updated", "id", id)
	t.notifier.Notify(notify.LevelSuccess, fmt.Sprintf("Product %s has been updated.", updated.Name))
	return updated, nil
}

// Delete removes the product with the given id. A non-empty ifMatch must
// match the product's current ETag.
func (t *Table) Delete(ctx context.Context, id, ifMatch string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkPrecondition(id, ifMatch); err != nil {
		return err
	}
	p, _ := t.store.Get(id)
	t.store.DeleteByID(id)
	t.logger.DebugContext(ctx, "product deleted", "id", id)
	t.notifier.Notify(notify.LevelSuccess, fmt.Sprintf("Product %s has been deleted.", p.Name))
	return nil
}

// DeleteSelected removes every selected product and clears the selection.
func (t *Table) DeleteSelected(ctx context.Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.state.Selected()
	if len(ids) == 0 {
		return 0
	}
	t.state.SelectAll(false, nil)
	return t.deleteMany(ctx, ids)
}

// DeleteMany removes the listed products. Unknown ids are ignored.
func (t *Table) DeleteMany(ctx context.Context, ids []string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleteMany(ctx, ids)
}

func (t *Table) deleteMany(ctx context.Context, ids []string) int {
	n := t.store.DeleteByIDs(ids)
	if n == 0 {
		t.recompute()
		return 0
	}
	t.logger.DebugContext(ctx, "products deleted", "count", n)
	t.notifier.Notify(notify.LevelSuccess, fmt.Sprintf("%d products have been deleted.", n))
	return n
}

func (t *Table) checkPrecondition(id, ifMatch string) error {
	cur, ok := t.store.Get(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	if !etag.Match(ifMatch, etag.Generate(cur)) {
		return fmt.Errorf("%s: %w", id, ErrPreconditionFailed)
	}
	return nil
}

// Query applies URL query parameters to the query state. On error the state
// is left unchanged.
func (t *Table) Query(values url.Values) (query.View, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := *t.state
	if err := query.ParseValues(values, &next); err != nil {
		return t.view, err
	}
	*t.state = next
	t.recompute()
	return t.view, nil
}

// SetSearch changes the search term.
func (t *Table) SetSearch(term string) query.View {
	return t.mutate(func(s *query.State) error {
		s.SetSearch(term)
		return nil
	})
}

// SetSort applies header-click sort semantics to field.
func (t *Table) SetSort(field string) (query.View, error) {
	return t.mutateErr(func(s *query.State) error { return s.SetSort(field) })
}

// SetOrder sets the sort explicitly. An empty field restores store order.
func (t *Table) SetOrder(field string, dir query.Direction) (query.View, error) {
	return t.mutateErr(func(s *query.State) error { return s.SetOrder(field, dir) })
}

// SetPage moves to page n, clamped to the available pages.
func (t *Table) SetPage(n int) query.View {
	return t.mutate(func(s *query.State) error {
		s.SetPage(n, t.view.TotalPages)
		return nil
	})
}

// SetPageSize changes the page size.
func (t *Table) SetPageSize(n int) (query.View, error) {
	return t.mutateErr(func(s *query.State) error { return s.SetPageSize(n) })
}

// Toggle selects or deselects a row on the current page. It reports whether
// the id was on the page.
func (t *Table) Toggle(id string, checked bool) (query.View, bool) {
	var onPage bool
	v := t.mutate(func(s *query.State) error {
		onPage = s.Toggle(id, checked, t.view.IDs())
		return nil
	})
	return v, onPage
}

// SelectAll selects every row on the current page, or clears the selection.
func (t *Table) SelectAll(checked bool) query.View {
	return t.mutate(func(s *query.State) error {
		s.SelectAll(checked, t.view.IDs())
		return nil
	})
}

func (t *Table) mutate(fn func(*query.State) error) query.View {
	v, _ := t.mutateErr(fn)
	return v
}

func (t *Table) mutateErr(fn func(*query.State) error) (query.View, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := fn(t.state); err != nil {
		return t.view, err
	}
	t.recompute()
	return t.view, nil
}

// Refresh resets the query state, then replaces the whole store with a record
// set from the loader. The lock is released while loading so the session
// stays responsive. Starting a refresh cancels the one in flight, which then
// returns ErrSuperseded. If the store was mutated during the load the loaded
// set is discarded and store.ErrStaleOverwrite is returned. A loaded set the
// store rejects yields ErrRefreshFailed and leaves the records untouched.
func (t *Table) Refresh(ctx context.Context) (query.View, error) {
	t.mu.Lock()
	t.state.Reset()
	t.recompute()
	if t.cancelRefresh != nil {
		t.cancelRefresh()
	}
	t.refreshSeq++
	seq := t.refreshSeq
	version := t.store.Version()
	loadCtx, cancel := context.WithCancel(ctx)
	t.cancelRefresh = cancel
	t.mu.Unlock()

	records, loadErr := t.loader.Load(loadCtx)

	t.mu.Lock()
	defer t.mu.Unlock()
	cancel()
	if seq != t.refreshSeq {
		t.logger.DebugContext(ctx, "refresh superseded", "seq", seq)
		return t.view, ErrSuperseded
	}
	t.cancelRefresh = nil

	if loadErr != nil {
		t.logger.WarnContext(ctx, "refresh failed", "error", loadErr)
		t.notifier.Notify(notify.LevelError, "Failed to refresh data.")
		return t.view, fmt.Errorf("refresh: %w", loadErr)
	}
	if err := t.store.ReplaceAllIfVersion(version, records); err != nil {
		if errors.Is(err, store.ErrStaleOverwrite) {
			t.logger.WarnContext(ctx, "refresh discarded", "error", err)
			t.notifier.Notify(notify.LevelError, "Refresh discarded because the data changed while loading.")
			return t.view, fmt.Errorf("refresh: %w", err)
		}
		t.logger.WarnContext(ctx, "refresh failed", "error", err)
		t.notifier.Notify(notify.LevelError, "Failed to refresh data.")
		return t.view, fmt.Errorf("%w: loaded records are invalid: %v", ErrRefreshFailed, err)
	}
	t.notifier.Notify(notify.LevelSuccess, "Data refreshed successfully!")
	return t.view, nil
}
