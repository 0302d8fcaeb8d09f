package mapory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"mapory/internal/model"
)

// DefaultPageSize is the number of documents requested per feed page.
const DefaultPageSize = 5

// FeedStatus is the kind of result a FeedEngine currently holds.
type FeedStatus int

const (
	FeedNotStarted FeedStatus = iota
	FeedLoading
	FeedEmpty
	FeedLoaded
	FeedFailed
)

func (s FeedStatus) String() string {
	switch s {
	case FeedLoading:
		return "loading"
	case FeedEmpty:
		return "empty"
	case FeedLoaded:
		return "loaded"
	case FeedFailed:
		return "failed"
	default:
		return "not_started"
	}
}

// FeedState is the observable result of a FeedEngine.
// Locations is only meaningful for FeedLoaded and, during load-more, FeedLoading.
type FeedState struct {
	Status      FeedStatus
	Locations   []*model.Location
	CanLoadMore bool
	Err         string
}

// FeedFilters is the query state a feed is built from.
type FeedFilters struct {
	SortOrder  SortOrder
	Categories model.CategorySet
	Dates      DateRange
	SearchTerm string
}

// DefaultFeedFilters returns the filters of a fresh feed: newest id first,
// every category, no date range, no search.
func DefaultFeedFilters() FeedFilters {
	return FeedFilters{
		SortOrder:  SortByID,
		Categories: model.AllCategorySet(),
	}
}

// FeedEngine pages through one user's locations with sorting, date
// predicates, category filtering and title search.
//
// At most one fetch runs at a time; FetchFirstPage, LoadNextPage and Search
// called while another fetch is running return immediately without effect.
// Results are published through State and Subscribe, never returned.
type FeedEngine struct {
	querier  LocationQuerier
	userID   string
	logger   Logger
	pageSize int

	fetching atomic.Bool

	mu         sync.Mutex // guards filters, cursor and generation
	filters    FeedFilters
	cursor     *Document // last raw document of the previous page
	generation uint64    // bumped by every filter mutation

	state *Observable[FeedState]
}

// NewFeedEngine creates a feed over userID's locations.
// pageSize <= 0 selects DefaultPageSize.
func NewFeedEngine(querier LocationQuerier, userID string, logger Logger, pageSize int) *FeedEngine {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &FeedEngine{
		querier:  querier,
		userID:   userID,
		logger:   logger,
		pageSize: pageSize,
		filters:  DefaultFeedFilters(),
		state:    NewObservable(FeedState{Status: FeedNotStarted}),
	}
}

// State returns the current result.
func (e *FeedEngine) State() FeedState {
	return e.state.Value()
}

// Subscribe returns a channel yielding the current result and every later one.
// Slow readers only see the latest result.
func (e *FeedEngine) Subscribe() (<-chan FeedState, func()) {
	return e.state.Subscribe()
}

// Filters returns a copy of the current query state.
func (e *FeedEngine) Filters() FeedFilters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filters
}

// IsFetching reports whether a fetch is in flight.
func (e *FeedEngine) IsFetching() bool {
	return e.fetching.Load()
}

// HasCursor reports whether LoadNextPage has a position to resume from.
func (e *FeedEngine) HasCursor() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor != nil
}

// FetchFirstPage replaces the result with the first page under the current filters.
func (e *FeedEngine) FetchFirstPage(ctx context.Context) {
	if !e.begin("first_page") {
		return
	}
	defer e.fetching.Store(false)
	e.fetchFirstPage(ctx)
}

func (e *FeedEngine) fetchFirstPage(ctx context.Context) {
	e.mu.Lock()
	e.cursor = nil
	filters, gen := e.filters, e.generation
	e.mu.Unlock()

	prev := e.state.Value()
	e.state.Publish(FeedState{Status: FeedLoading})

	q := baseQuery(filters)
	q.Limit = e.pageSize
	docs, err := e.querier.QueryLocations(ctx, e.userID, q)
	if err != nil {
		e.fail(err, prev, "first_page")
		return
	}

	page := decodeDocuments(docs, LocationFilter{categories: filters.Categories}, e.logger)
	e.advance(docs, gen)

	if len(page) == 0 {
		e.state.Publish(FeedState{Status: FeedEmpty})
		return
	}
	e.state.Publish(FeedState{
		Status:      FeedLoaded,
		Locations:   page,
		CanLoadMore: len(docs) >= e.pageSize,
	})
	e.logger.Debug("feed first page", "raw", len(docs), "visible", len(page))
}

// LoadNextPage appends the next page to a loaded result. It does nothing
// unless the current result is loaded and a cursor is held. A full raw page
// whose documents are all filtered out is skipped and the following page is
// fetched in the same call.
func (e *FeedEngine) LoadNextPage(ctx context.Context) {
	if !e.begin("next_page") {
		return
	}
	defer e.fetching.Store(false)

	e.mu.Lock()
	cursor, filters, gen := e.cursor, e.filters, e.generation
	e.mu.Unlock()

	current := e.state.Value()
	if cursor == nil || current.Status != FeedLoaded {
		return
	}

	items := current.Locations
	e.state.Publish(FeedState{Status: FeedLoading, Locations: items, CanLoadMore: current.CanLoadMore})

	filter := LocationFilter{categories: filters.Categories}
	for {
		q := baseQuery(filters)
		q.Limit, q.StartAfter = e.pageSize, cursor
		docs, err := e.querier.QueryLocations(ctx, e.userID, q)
		if err != nil {
			e.fail(err, current, "next_page")
			return
		}
		if len(docs) == 0 {
			e.state.Publish(FeedState{Status: FeedLoaded, Locations: items, CanLoadMore: false})
			return
		}

		page := decodeDocuments(docs, filter, e.logger)
		cursor = docs[len(docs)-1]
		e.advance(docs, gen)

		full := len(docs) >= e.pageSize
		if len(page) == 0 && full {
			e.logger.Debug("feed page filtered out, fetching next", "raw", len(docs))
			continue
		}

		merged := make([]*model.Location, 0, len(items)+len(page))
		merged = append(merged, items...)
		merged = append(merged, page...)
		e.state.Publish(FeedState{Status: FeedLoaded, Locations: merged, CanLoadMore: full})
		return
	}
}

// Search replaces the result with every location whose title contains term,
// ignoring case, within the selected categories. Search results are not
// paginated. A blank term clears the search and fetches the first page.
func (e *FeedEngine) Search(ctx context.Context, term string) {
	if !e.begin("search") {
		return
	}
	defer e.fetching.Store(false)

	term = strings.TrimSpace(term)
	e.mu.Lock()
	e.filters.SearchTerm = term
	e.cursor = nil
	filters := e.filters
	e.mu.Unlock()

	if term == "" {
		e.fetchFirstPage(ctx)
		return
	}

	prev := e.state.Value()
	e.state.Publish(FeedState{Status: FeedLoading})

	docs, err := e.querier.QueryLocations(ctx, e.userID, baseQuery(filters))
	if err != nil {
		e.fail(err, prev, "search")
		return
	}

	// date range is already applied by the query
	found := decodeDocuments(docs, termFilter(filters.Categories, term), e.logger)
	if len(found) == 0 {
		e.state.Publish(FeedState{Status: FeedEmpty})
		return
	}
	e.state.Publish(FeedState{Status: FeedLoaded, Locations: found, CanLoadMore: false})
}

// baseQuery is the unpaginated query for filters. Category and search
// criteria are not part of it; they are applied to decoded results.
func baseQuery(filters FeedFilters) LocationQuery {
	return LocationQuery{OrderBy: filters.SortOrder, Dates: filters.Dates}
}

// UpdateSortOrder changes the ordering. Call FetchFirstPage to apply it.
func (e *FeedEngine) UpdateSortOrder(order SortOrder) {
	e.mutate(func(f *FeedFilters) { f.SortOrder = order })
}

// UpdateDateFilter sets the inclusive date range in dd/mm/yyyy form.
// Equal dates select a single day; a missing bound copies the other one;
// two empty strings clear the filter. Call FetchFirstPage to apply it.
func (e *FeedEngine) UpdateDateFilter(start, end string) error {
	dates, err := normalizeDateRange(DateRange{Start: start, End: end})
	if err != nil {
		return err
	}
	e.mutate(func(f *FeedFilters) { f.Dates = dates })
	return nil
}

// UpdateFilters replaces the selected categories. Call FetchFirstPage to apply it.
func (e *FeedEngine) UpdateFilters(categories model.CategorySet) {
	e.mutate(func(f *FeedFilters) { f.Categories = categories })
}

// ResetFilters restores DefaultFeedFilters. Call FetchFirstPage to apply it.
func (e *FeedEngine) ResetFilters() {
	e.mutate(func(f *FeedFilters) { *f = DefaultFeedFilters() })
}

// mutate applies fn to the filters and invalidates the cursor.
func (e *FeedEngine) mutate(fn func(*FeedFilters)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.filters)
	e.cursor = nil
	e.generation++
}

// begin claims the fetch guard, reporting false if a fetch is already running.
func (e *FeedEngine) begin(op string) bool {
	if !e.fetching.CompareAndSwap(false, true) {
		e.logger.Debug("feed fetch dropped, another fetch in flight", "op", op)
		return false
	}
	return true
}

// advance records the last raw document as the cursor unless the filters
// changed while the query ran.
func (e *FeedEngine) advance(docs []*Document, gen uint64) {
	if len(docs) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation == gen {
		e.cursor = docs[len(docs)-1]
	}
}

// fail publishes a query error. A cancelled call restores prev instead.
func (e *FeedEngine) fail(err error, prev FeedState, op string) {
	if errors.Is(err, context.Canceled) {
		e.state.Publish(prev)
		return
	}
	e.logger.Error("feed query failed", "op", op, "error", err)
	msg := err.Error()
	if msg == "" {
		msg = "Unknown error occurred"
	}
	e.state.Publish(FeedState{Status: FeedFailed, Err: msg})
}
