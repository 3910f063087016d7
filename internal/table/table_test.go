package table

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/nlstn/go-datagrid/internal/etag"
	"github.com/nlstn/go-datagrid/internal/notify"
	"github.com/nlstn/go-datagrid/internal/query"
	"github.com/nlstn/go-datagrid/internal/record"
	"github.com/nlstn/go-datagrid/internal/store"
	"github.com/nlstn/go-datagrid/internal/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Notify(level notify.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, string(level)+": "+message)
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return ""
	}
	return r.events[len(r.events)-1]
}

func products(n int) []record.Product {
	out := make([]record.Product, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, record.Product{
			ID:       record.FormatID(record.IDBase + i),
			Name:     fmt.Sprintf("Item %02d", i),
			Category: "Books",
			Price:    decimal.NewFromInt(int64(10 + i)),
			Stock:    int64(i),
			Status:   record.StatusActive,
		})
	}
	return out
}

func validCandidate(name string) validation.Candidate {
	return validation.Candidate{Name: name, Category: "Toys", Price: "19.99", Stock: 5, Status: "active"}
}

func newTable(t *testing.T, n int, opts ...Option) (*Table, *recorder) {
	t.Helper()
	rec := &recorder{}
	tbl, err := New(products(n), append([]Option{WithNotifier(rec)}, opts...)...)
	require.NoError(t, err)
	return tbl, rec
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	p := products(1)
	_, err := New(append(p, p[0]))
	assert.ErrorIs(t, err, store.ErrDuplicateID)
}

func TestInitialView(t *testing.T) {
	tbl, _ := newTable(t, 45)
	v := tbl.View()
	assert.Equal(t, 45, v.Total)
	assert.Equal(t, 5, v.TotalPages)
	assert.Len(t, v.Rows, query.DefaultPageSize)
	assert.Equal(t, "PRD-1000", v.Rows[0].ID)
}

func TestCreate(t *testing.T) {
	tbl, rec := newTable(t, 3)

	c := validCandidate("Kite")
	c.ID = "PRD-1"
	p, err := tbl.Create(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "PRD-1003", p.ID)
	assert.Equal(t, "success: Product Kite has been added.", rec.last())

	v := tbl.View()
	assert.Equal(t, 4, v.Total)
	assert.Equal(t, p.ID, v.Rows[0].ID, "new products are shown first")
}

func TestCreateValidationFailure(t *testing.T) {
	tbl, rec := newTable(t, 3)
	before := tbl.Version()

	_, err := tbl.Create(context.Background(), validation.Candidate{Name: "x", Price: "abc", Stock: -1, Status: "gone"})
	require.ErrorIs(t, err, validation.ErrValidation)

	var fe validation.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Len(t, fe, 5)
	assert.Equal(t, before, tbl.Version(), "store untouched")
	assert.Empty(t, rec.last())
}

func TestUpdate(t *testing.T) {
	tbl, rec := newTable(t, 3)
	ctx := context.Background()
	cur, err := tbl.Get("PRD-1001")
	require.NoError(t, err)

	updated, err := tbl.Update(ctx, "PRD-1001", validCandidate("Renamed"), etag.Generate(cur))
	require.NoError(t, err)
	assert.Equal(t, "PRD-1001", updated.ID)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "success: Product Renamed has been updated.", rec.last())
	assert.Equal(t, "PRD-1001", tbl.Records()[1].ID, "position kept")

	_, err = tbl.Update(ctx, "PRD-1001", validCandidate("Again"), etag.Generate(cur))
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	_, err = tbl.Update(ctx, "PRD-9999", validCandidate("Ghost"), "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete(t *testing.T) {
	tbl, rec := newTable(t, 3)
	ctx := context.Background()

	assert.ErrorIs(t, tbl.Delete(ctx, "PRD-1000", `W/"nope"`), ErrPreconditionFailed)
	require.NoError(t, tbl.Delete(ctx, "PRD-1000", "*"))
	assert.Equal(t, "success: Product Item 00 has been deleted.", rec.last())
	assert.Equal(t, 2, tbl.View().Total)

	assert.ErrorIs(t, tbl.Delete(ctx, "PRD-1000", ""), store.ErrNotFound)
	_, err := tbl.Get("PRD-1000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteRemovesIDFromSelection(t *testing.T) {
	tbl, _ := newTable(t, 5)
	ctx := context.Background()

	tbl.SelectAll(true)
	require.Len(t, tbl.View().Selected, 5)

	require.NoError(t, tbl.Delete(ctx, "PRD-1002", ""))
	v := tbl.View()
	assert.NotContains(t, v.Selected, "PRD-1002")
	assert.Len(t, v.Selected, 4)
	assert.True(t, v.AllSelected)

	_, err := tbl.Create(ctx, validCandidate("Fresh"))
	require.NoError(t, err)
	v = tbl.View()
	assert.False(t, v.AllSelected, "new row is not selected")
}

func TestDeleteSelected(t *testing.T) {
	tbl, rec := newTable(t, 12)
	ctx := context.Background()

	assert.Zero(t, tbl.DeleteSelected(ctx))

	_, ok := tbl.Toggle("PRD-1001", true)
	require.True(t, ok)
	_, ok = tbl.Toggle("PRD-1003", true)
	require.True(t, ok)
	_, ok = tbl.Toggle("PRD-1011", true)
	assert.False(t, ok, "row on page 2 cannot be selected from page 1")

	assert.Equal(t, 2, tbl.DeleteSelected(ctx))
	assert.Equal(t, "success: 2 products have been deleted.", rec.last())
	v := tbl.View()
	assert.Equal(t, 10, v.Total)
	assert.Empty(t, v.Selected)
}

func TestDeleteMany(t *testing.T) {
	tbl, rec := newTable(t, 4)
	n := tbl.DeleteMany(context.Background(), []string{"PRD-1000", "PRD-1003", "PRD-9999"})
	assert.Equal(t, 2, n)
	assert.Equal(t, "success: 2 products have been deleted.", rec.last())
	assert.Zero(t, tbl.DeleteMany(context.Background(), []string{"PRD-9999"}))
}

func TestCreateAfterDeleteKeepsIDsUnique(t *testing.T) {
	tbl, _ := newTable(t, 3)
	ctx := context.Background()
	require.NoError(t, tbl.Delete(ctx, "PRD-1000", ""))

	p, err := tbl.Create(ctx, validCandidate("Unique"))
	require.NoError(t, err)
	assert.Equal(t, "PRD-1003", p.ID)

	seen := map[string]bool{}
	for _, r := range tbl.Records() {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}

func TestQueryMutators(t *testing.T) {
	tbl, _ := newTable(t, 25)

	v := tbl.SetPage(3)
	assert.Equal(t, 3, v.Page)
	v = tbl.SetPage(99)
	assert.Equal(t, 3, v.Page, "page clamps to the last page")

	v = tbl.SetSearch("Item 2")
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, 5, v.Total) // Item 20..24

	v, err := tbl.SetSort(record.FieldPrice)
	require.NoError(t, err)
	assert.Equal(t, "PRD-1020", v.Rows[0].ID)
	v, err = tbl.SetSort(record.FieldPrice)
	require.NoError(t, err)
	assert.Equal(t, query.Desc, v.SortDir)
	assert.Equal(t, "PRD-1024", v.Rows[0].ID)

	_, err = tbl.SetSort("colour")
	assert.ErrorIs(t, err, query.ErrUnknownField)

	v, err = tbl.SetOrder("", query.Asc)
	require.NoError(t, err)
	assert.Empty(t, v.SortField)

	_, err = tbl.SetPageSize(0)
	assert.ErrorIs(t, err, query.ErrInvalidPageSize)
	v, err = tbl.SetPageSize(2)
	require.NoError(t, err)
	assert.Equal(t, 3, v.TotalPages)
}

func TestSelectionIsPageScoped(t *testing.T) {
	tbl, _ := newTable(t, 15)
	v := tbl.SelectAll(true)
	require.True(t, v.AllSelected)

	v = tbl.SetPage(2)
	assert.Empty(t, v.Selected)
	v = tbl.SetPage(1)
	assert.Empty(t, v.Selected, "selection does not come back")

	tbl.SelectAll(true)
	v = tbl.SelectAll(false)
	assert.Empty(t, v.Selected)
}

func TestQueryValues(t *testing.T) {
	tbl, _ := newTable(t, 30)

	v, err := tbl.Query(url.Values{"orderby": {"stock desc"}, "pageSize": {"5"}, "page": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Page)
	assert.Equal(t, 5, v.PageSize)
	assert.Equal(t, "PRD-1024", v.Rows[0].ID)

	_, err = tbl.Query(url.Values{"pageSize": {"3"}, "orderby": {"bogus"}})
	require.Error(t, err)
	v = tbl.View()
	assert.Equal(t, 5, v.PageSize, "state unchanged on error")

	v, err = tbl.Query(url.Values{"page": {"100"}})
	require.NoError(t, err)
	assert.Equal(t, 6, v.Page)
}

func TestWithPageSize(t *testing.T) {
	tbl, _ := newTable(t, 30, WithPageSize(25))
	assert.Equal(t, 2, tbl.View().TotalPages)
}

func TestRefresh(t *testing.T) {
	loaded := products(7)
	tbl, rec := newTable(t, 20, WithLoader(LoaderFunc(func(context.Context) ([]record.Product, error) {
		return loaded, nil
	})))
	tbl.SetSearch("Item 1")
	tbl.SelectAll(true)

	v, err := tbl.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v.Total)
	assert.Empty(t, v.Search)
	assert.Empty(t, v.Selected)
	assert.Equal(t, 1, v.Page)
	assert.False(t, tbl.Refreshing())
	assert.Equal(t, "success: Data refreshed successfully!", rec.last())
}

func TestRefreshLoaderError(t *testing.T) {
	boom := errors.New("boom")
	tbl, rec := newTable(t, 5, WithLoader(LoaderFunc(func(context.Context) ([]record.Product, error) {
		return nil, boom
	})))
	_, err := tbl.Refresh(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5, tbl.View().Total)
	assert.Equal(t, "error: Failed to refresh data.", rec.last())
}

func TestRefreshRejectsDuplicateIDs(t *testing.T) {
	loaded := products(3)
	loaded[2].ID = loaded[0].ID
	tbl, rec := newTable(t, 5, WithLoader(LoaderFunc(func(context.Context) ([]record.Product, error) {
		return loaded, nil
	})))

	_, err := tbl.Refresh(context.Background())
	require.ErrorIs(t, err, ErrRefreshFailed)
	assert.NotErrorIs(t, err, store.ErrDuplicateID)
	assert.NotErrorIs(t, err, store.ErrStaleOverwrite)
	assert.Equal(t, 5, tbl.View().Total)
	assert.Equal(t, "error: Failed to refresh data.", rec.last())
}

func TestRefreshSupersededByNewerRefresh(t *testing.T) {
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex
	loader := LoaderFunc(func(ctx context.Context) ([]record.Product, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return products(3), nil
	})
	tbl, _ := newTable(t, 10, WithLoader(loader))

	errc := make(chan error, 1)
	go func() {
		_, err := tbl.Refresh(context.Background())
		errc <- err
	}()
	<-started
	assert.True(t, tbl.Refreshing())

	v, err := tbl.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v.Total)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded refresh did not return")
	}
	assert.Equal(t, 3, tbl.View().Total)
}

func TestRefreshDoesNotClobberNewerMutation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	loader := LoaderFunc(func(context.Context) ([]record.Product, error) {
		close(started)
		<-release
		return products(2), nil
	})
	tbl, rec := newTable(t, 4, WithLoader(loader))

	errc := make(chan error, 1)
	go func() {
		_, err := tbl.Refresh(context.Background())
		errc <- err
	}()
	<-started

	created, err := tbl.Create(context.Background(), validCandidate("Added while loading"))
	require.NoError(t, err)
	close(release)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, store.ErrStaleOverwrite)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not return")
	}

	_, err = tbl.Get(created.ID)
	assert.NoError(t, err, "newer record survives")
	assert.Equal(t, 5, tbl.View().Total)
	assert.Equal(t, "error: Refresh discarded because the data changed while loading.", rec.last())
}

func TestRefreshCancelledByCaller(t *testing.T) {
	tbl, _ := newTable(t, 4, WithLoader(SampleLoader{Latency: time.Minute}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tbl.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, tbl.View().Total)
}

func TestSampleLoader(t *testing.T) {
	got, err := SampleLoader{}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, DefaultSampleSize)

	got, err = SampleLoader{Count: 3, Latency: time.Millisecond}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
