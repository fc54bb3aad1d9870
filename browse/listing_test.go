package browse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ajperformance/storefront/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Fetcher over a fixed number of rows that remembers every query it served.
type recorder struct {
	mu      sync.Mutex
	total   int
	queries []models.ListQuery
	err     error
	gate    map[string]chan struct{} // blocks fetches for a search term until closed
}

func (r *recorder) fetch(ctx context.Context, q models.ListQuery) (models.Page[string], error) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	err := r.err
	gate := r.gate[q.Search]
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return models.Page[string]{}, err
	}
	page := models.Page[string]{Total: r.total, Limit: q.Limit, Offset: q.Offset}
	for i := q.Offset; i < r.total && i < q.Offset+q.Limit; i++ {
		page.Items = append(page.Items, fmt.Sprintf("%s#%d", q.Search, i))
	}
	return page, nil
}

func (r *recorder) calls() []models.ListQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ListQuery(nil), r.queries...)
}

func TestSearchIsDebounced(t *testing.T) {
	rec := &recorder{total: 3}
	l := NewListing(context.Background(), rec.fetch, WithDebounce(80*time.Millisecond))
	defer l.Close()

	for _, term := range []string{"m", "mi", "min"} {
		l.SetSearch(term)
		time.Sleep(5 * time.Millisecond)
	}
	assert.Empty(t, rec.calls())

	require.Eventually(t, func() bool { return len(rec.calls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	calls := rec.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "min", calls[0].Search)
	assert.Equal(t, Ready, l.Snapshot().State)
}

func TestSearchResetsToFirstPage(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{total: 100}
	l := NewListing(ctx, rec.fetch, WithPageSize(10), WithDebounce(time.Hour))
	defer l.Close()
	l.Load(ctx)
	l.SetPage(ctx, 4)

	l.SetSearch("core")
	assert.True(t, l.Pending())
	require.True(t, l.Flush(ctx))
	assert.False(t, l.Flush(ctx))

	calls := rec.calls()
	last := calls[len(calls)-1]
	assert.Equal(t, "core", last.Search)
	assert.Zero(t, last.Offset)
	assert.Equal(t, 1, l.Snapshot().Page)
}

func TestCategoryChangeResetsPage(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{total: 80}
	l := NewListing(ctx, rec.fetch, WithPageSize(25))
	defer l.Close()
	l.Load(ctx)

	snap := l.SetPage(ctx, 3)
	require.Equal(t, 3, snap.Page)
	assert.Equal(t, 50, rec.calls()[1].Offset)

	snap = l.SetCategory(ctx, "cat-a")
	assert.Equal(t, 1, snap.Page)
	calls := rec.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "cat-a", calls[2].CategoryID)
	assert.Zero(t, calls[2].Offset)

	// Page changes keep the filter.
	l.Next(ctx)
	calls = rec.calls()
	assert.Equal(t, "cat-a", calls[3].CategoryID)
	assert.Equal(t, 25, calls[3].Offset)
}

func TestAdminFilterResetsPage(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{total: 60}
	l := NewListing(ctx, rec.fetch)
	defer l.Close()
	l.Load(ctx)
	l.Next(ctx)

	yes := true
	snap := l.SetAdminFilter(ctx, &yes)
	assert.Equal(t, 1, snap.Page)
	calls := rec.calls()
	require.NotNil(t, calls[len(calls)-1].IsAdmin)
	assert.True(t, *calls[len(calls)-1].IsAdmin)
}

func TestPageNavigationStaysInRange(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{total: 30}
	l := NewListing(ctx, rec.fetch, WithPageSize(25))
	defer l.Close()

	snap := l.Load(ctx)
	assert.Equal(t, 2, snap.TotalPages)
	assert.Len(t, snap.Items, 25)

	assert.Equal(t, 1, l.Prev(ctx).Page)
	assert.Equal(t, 2, l.Next(ctx).Page)
	assert.Equal(t, 2, l.Next(ctx).Page)
	assert.Equal(t, 2, l.SetPage(ctx, 99).Page)
	assert.Equal(t, 1, l.SetPage(ctx, -1).Page)
	assert.Len(t, rec.calls(), 4)
}

func TestFetchFailureEmptiesListing(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{total: 5}
	l := NewListing(ctx, rec.fetch)
	defer l.Close()
	require.Len(t, l.Load(ctx).Items, 5)

	rec.mu.Lock()
	rec.err = errors.New("boom")
	rec.mu.Unlock()
	snap := l.Refresh(ctx)
	assert.Equal(t, Failed, snap.State)
	assert.Empty(t, snap.Items)
	assert.Zero(t, snap.Total)
	assert.Error(t, snap.Err)
}

func TestStaleResponseIsDropped(t *testing.T) {
	ctx := context.Background()
	slow := make(chan struct{})
	rec := &recorder{total: 2, gate: map[string]chan struct{}{"slow": slow}}
	l := NewListing(ctx, rec.fetch, WithDebounce(time.Hour))
	defer l.Close()

	l.SetSearch("slow")
	done := make(chan struct{})
	go func() {
		l.Flush(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(rec.calls()) == 1 }, time.Second, time.Millisecond)

	l.SetSearch("fast")
	l.Flush(ctx)
	close(slow)
	<-done

	snap := l.Snapshot()
	assert.Equal(t, Ready, snap.State)
	assert.Equal(t, []string{"fast#0", "fast#1"}, snap.Items)
}

func TestCloseCancelsPendingSearch(t *testing.T) {
	rec := &recorder{}
	l := NewListing(context.Background(), rec.fetch, WithDebounce(10*time.Millisecond))
	l.SetSearch("x")
	l.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.calls())
}

func TestOnChangeRunsAfterDebouncedFetch(t *testing.T) {
	changed := make(chan struct{}, 1)
	rec := &recorder{total: 1}
	l := NewListing(context.Background(), rec.fetch, WithDebounce(time.Millisecond), WithOnChange(func() { changed <- struct{}{} }))
	defer l.Close()

	l.SetSearch("q")
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
	assert.Equal(t, []string{"q#0"}, l.Snapshot().Items)
}
