// Package browse holds the listing state behind the storefront and the admin console:
// filters, debounced search, pagination and the load state of each list.
package browse

import (
	"context"
	"sync"
	"time"

	"github.com/ajperformance/storefront/backend/models"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is the quiet period after the last search keystroke before a fetch is issued.
const DefaultDebounce = 500 * time.Millisecond

type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	}
	return "idle"
}

// Fetcher loads one page for a query.
type Fetcher[T any] func(ctx context.Context, q models.ListQuery) (models.Page[T], error)

// Snapshot is a copy of a listing's state at one instant.
type Snapshot[T any] struct {
	State      State
	Items      []T
	Total      int
	Page       int
	TotalPages int
	Search     string
	CategoryID string
	IsAdmin    *bool
	Err        error
}

type options struct {
	pageSize int
	debounce time.Duration
	onChange func()
}

type Option func(*options)

func WithPageSize(n int) Option { return func(o *options) { o.pageSize = n } }

func WithDebounce(d time.Duration) Option { return func(o *options) { o.debounce = d } }

// WithOnChange registers fn to run after every fetch that lands, including debounced ones.
func WithOnChange(fn func()) Option { return func(o *options) { o.onChange = fn } }

// Listing is one paginated, filterable list. It is safe for concurrent use.
//
// Search changes are debounced; filter and page changes fetch immediately. Every fetch takes a
// sequence number and a response is applied only if no newer fetch has started since, so a slow
// response can never overwrite a newer one.
type Listing[T any] struct {
	fetch Fetcher[T]
	opts  options
	base  context.Context
	stop  context.CancelFunc

	mu         sync.Mutex
	search     string
	categoryID string
	isAdmin    *bool
	page       int
	state      State
	items      []T
	total      int
	err        error
	seq        uint64
	gen        uint64
	timer      *time.Timer
}

// NewListing returns an idle listing on page 1. Debounced fetches run under ctx until Close.
func NewListing[T any](ctx context.Context, fetch Fetcher[T], opts ...Option) *Listing[T] {
	o := options{pageSize: models.DefaultPageSize, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(&o)
	}
	base, stop := context.WithCancel(ctx)
	return &Listing[T]{fetch: fetch, opts: o, base: base, stop: stop, page: 1, items: []T{}}
}

// Load fetches the current page with the current filters.
func (l *Listing[T]) Load(ctx context.Context) Snapshot[T] {
	l.load(ctx)
	return l.Snapshot()
}

// Refresh is Load under another name, used after mutations.
func (l *Listing[T]) Refresh(ctx context.Context) Snapshot[T] {
	return l.Load(ctx)
}

// SetSearch records term and schedules a fetch of page 1 once input has been quiet for the
// debounce period. A newer call replaces the pending one.
func (l *Listing[T]) SetSearch(term string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.search = term
	l.cancelPendingLocked()
	gen := l.gen
	l.timer = time.AfterFunc(l.opts.debounce, func() { l.fire(gen) })
}

func (l *Listing[T]) fire(gen uint64) {
	l.mu.Lock()
	if gen != l.gen || l.timer == nil {
		l.mu.Unlock()
		return
	}
	l.timer = nil
	l.page = 1
	l.mu.Unlock()
	if l.base.Err() != nil {
		return
	}
	l.load(l.base)
}

// cancelPendingLocked stops the debounce timer. Bumping gen also disarms a timer that
// already fired and is waiting on the lock.
func (l *Listing[T]) cancelPendingLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.gen++
}

// Flush runs a pending debounced search now. It reports whether one was pending.
func (l *Listing[T]) Flush(ctx context.Context) bool {
	l.mu.Lock()
	if l.timer == nil {
		l.mu.Unlock()
		return false
	}
	l.cancelPendingLocked()
	l.page = 1
	l.mu.Unlock()
	l.load(ctx)
	return true
}

// Pending reports whether a debounced search is waiting to fire.
func (l *Listing[T]) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timer != nil
}

// SetCategory filters on a category id ("" for all), resets to page 1 and fetches.
func (l *Listing[T]) SetCategory(ctx context.Context, categoryID string) Snapshot[T] {
	l.mu.Lock()
	l.categoryID = categoryID
	l.page = 1
	l.mu.Unlock()
	return l.Load(ctx)
}

// SetAdminFilter filters users on the admin flag (nil for all), resets to page 1 and fetches.
func (l *Listing[T]) SetAdminFilter(ctx context.Context, isAdmin *bool) Snapshot[T] {
	l.mu.Lock()
	l.isAdmin = isAdmin
	l.page = 1
	l.mu.Unlock()
	return l.Load(ctx)
}

// SetPage moves to page, clamped to the known page range, and fetches. Filters are untouched.
func (l *Listing[T]) SetPage(ctx context.Context, page int) Snapshot[T] {
	l.mu.Lock()
	l.page = models.ClampPage(page, models.TotalPages(l.total, l.opts.pageSize))
	l.mu.Unlock()
	return l.Load(ctx)
}

// Next advances one page if there is one.
func (l *Listing[T]) Next(ctx context.Context) Snapshot[T] {
	l.mu.Lock()
	page, last := l.page, models.TotalPages(l.total, l.opts.pageSize)
	l.mu.Unlock()
	if page >= last {
		return l.Snapshot()
	}
	return l.SetPage(ctx, page+1)
}

// Prev goes back one page if not on the first.
func (l *Listing[T]) Prev(ctx context.Context) Snapshot[T] {
	l.mu.Lock()
	page := l.page
	l.mu.Unlock()
	if page <= 1 {
		return l.Snapshot()
	}
	return l.SetPage(ctx, page-1)
}

func (l *Listing[T]) Snapshot() Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot[T]{
		State:      l.state,
		Items:      append([]T(nil), l.items...),
		Total:      l.total,
		Page:       l.page,
		TotalPages: models.TotalPages(l.total, l.opts.pageSize),
		Search:     l.search,
		CategoryID: l.categoryID,
		IsAdmin:    l.isAdmin,
		Err:        l.err,
	}
}

// Close cancels any pending debounced search.
func (l *Listing[T]) Close() {
	l.mu.Lock()
	l.cancelPendingLocked()
	l.mu.Unlock()
	l.stop()
}

func (l *Listing[T]) load(ctx context.Context) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	q := models.ListQuery{
		Limit:      l.opts.pageSize,
		Offset:     models.OffsetFor(l.page, l.opts.pageSize),
		Search:     l.search,
		CategoryID: l.categoryID,
		IsAdmin:    l.isAdmin,
	}
	l.state = Loading
	l.mu.Unlock()

	page, err := l.fetch(ctx, q)

	l.mu.Lock()
	if seq != l.seq {
		l.mu.Unlock()
		log.Debug().Uint64("seq", seq).Msg("dropped stale listing response")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("listing fetch failed")
		l.state, l.items, l.total, l.err = Failed, []T{}, 0, err
	} else {
		items := page.Items
		if items == nil {
			items = []T{}
		}
		l.state, l.items, l.total, l.err = Ready, items, page.Total, nil
	}
	onChange := l.opts.onChange
	l.mu.Unlock()
	if onChange != nil {
		onChange()
	}
}
