package mapory_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"mapory/internal/mapory"
	"mapory/internal/model"
	"mapory/internal/testutil"
)

// newLocation returns a location dated day/01/2024.
func newLocation(id string, day int, cat model.Category, title string) *model.Location {
	return &model.Location{
		ID:       id,
		Title:    title,
		Date:     fmt.Sprintf("%02d/01/2024", day),
		Category: cat,
	}
}

// seed adds locations with ids from..to (zero padded to two digits) in category cat.
func seed(t *testing.T, q *testutil.FakeQuerier, from, to int, cat model.Category) {
	t.Helper()
	for i := from; i <= to; i++ {
		q.Add(t, newLocation(fmt.Sprintf("%02d", i), i, cat, fmt.Sprintf("Place %d", i)))
	}
}

func newFeed(q mapory.LocationQuerier) *mapory.FeedEngine {
	return mapory.NewFeedEngine(q, "u1", mapory.NewNopLogger(), 0)
}

func ids(locs []*model.Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.ID
	}
	return out
}

func assertLoaded(t *testing.T, got mapory.FeedState, wantIDs []string, wantMore bool) {
	t.Helper()
	if got.Status != mapory.FeedLoaded {
		t.Fatalf("status = %v (err %q), want loaded", got.Status, got.Err)
	}
	if g := ids(got.Locations); !reflect.DeepEqual(g, wantIDs) {
		t.Errorf("ids = %v, want %v", g, wantIDs)
	}
	if got.CanLoadMore != wantMore {
		t.Errorf("CanLoadMore = %v, want %v", got.CanLoadMore, wantMore)
	}
}

func TestFeedEngine_InitialState(t *testing.T) {
	feed := newFeed(testutil.NewFakeQuerier())
	if got := feed.State().Status; got != mapory.FeedNotStarted {
		t.Errorf("status = %v, want not_started", got)
	}
	if got := feed.Filters(); got != mapory.DefaultFeedFilters() {
		t.Errorf("filters = %+v, want defaults", got)
	}
}

func TestFeedEngine_SevenRecordsPaginate(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 7, model.FoodAndDrink)
	feed := newFeed(q)

	feed.FetchFirstPage(ctx)
	assertLoaded(t, feed.State(), []string{"07", "06", "05", "04", "03"}, true)

	feed.LoadNextPage(ctx)
	assertLoaded(t, feed.State(), []string{"07", "06", "05", "04", "03", "02", "01"}, false)

	if got := q.Calls(); got != 2 {
		t.Errorf("queries = %d, want 2", got)
	}
	queries := q.Queries()
	if queries[0].Limit != mapory.DefaultPageSize || queries[0].StartAfter != nil {
		t.Errorf("first query = %+v, want limit 5 without cursor", queries[0])
	}
	if queries[1].StartAfter == nil || queries[1].StartAfter.ID != "03" {
		t.Errorf("second query cursor = %+v, want after 03", queries[1].StartAfter)
	}
}

func TestFeedEngine_LoadNextPageOnExhaustedFeed(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 10, model.Shopping)
	feed := newFeed(q)

	feed.FetchFirstPage(ctx)
	feed.LoadNextPage(ctx)
	assertLoaded(t, feed.State(), []string{"10", "09", "08", "07", "06", "05", "04", "03", "02", "01"}, true)

	// a full last page only learns it was the last one on the next call
	feed.LoadNextPage(ctx)
	assertLoaded(t, feed.State(), []string{"10", "09", "08", "07", "06", "05", "04", "03", "02", "01"}, false)
}

func TestFeedEngine_ConcurrentFetchIsDropped(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 7, model.Other)
	feed := newFeed(q)

	entered, release := q.Hold()
	done := make(chan struct{})
	go func() {
		defer close(done)
		feed.FetchFirstPage(ctx)
	}()
	<-entered

	if !feed.IsFetching() {
		t.Error("IsFetching() = false during fetch")
	}
	if got := feed.State().Status; got != mapory.FeedLoading {
		t.Errorf("status during fetch = %v, want loading", got)
	}

	feed.FetchFirstPage(ctx)
	feed.LoadNextPage(ctx)
	feed.Search(ctx, "place")

	release()
	<-done

	if got := q.Calls(); got != 1 {
		t.Errorf("queries = %d, want 1", got)
	}
	if feed.IsFetching() {
		t.Error("IsFetching() = true after fetch")
	}
	assertLoaded(t, feed.State(), []string{"07", "06", "05", "04", "03"}, true)
}

func TestFeedEngine_CursorAdvancesMonotonically(t *testing.T) {
	for _, order := range []mapory.SortOrder{mapory.SortByID, mapory.SortByDate} {
		t.Run(order.String(), func(t *testing.T) {
			ctx := context.Background()
			q := testutil.NewFakeQuerier()
			seed(t, q, 1, 23, model.Accommodation)
			// same day as 12, tie broken by id
			q.Add(t, newLocation("30", 12, model.Accommodation, "Tie"))
			feed := newFeed(q)
			feed.UpdateSortOrder(order)

			feed.FetchFirstPage(ctx)
			for feed.State().CanLoadMore {
				feed.LoadNextPage(ctx)
			}

			var last *mapory.Document
			for i, query := range q.Queries()[1:] {
				c := query.StartAfter
				if c == nil {
					t.Fatalf("query %d has no cursor", i+1)
				}
				if last != nil {
					before := c.ID < last.ID
					if order == mapory.SortByDate {
						before = c.DateMillis < last.DateMillis ||
							(c.DateMillis == last.DateMillis && c.ID < last.ID)
					}
					if !before {
						t.Errorf("cursor %s did not move past %s", c.ID, last.ID)
					}
				}
				last = c
			}

			got := ids(feed.State().Locations)
			if len(got) != 24 {
				t.Fatalf("loaded %d locations, want 24", len(got))
			}
			seen := map[string]bool{}
			for _, id := range got {
				if seen[id] {
					t.Errorf("location %s loaded twice", id)
				}
				seen[id] = true
			}
		})
	}
}

func TestFeedEngine_SkipsFilteredOutPages(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 15, model.FoodAndDrink)
	q.Add(t,
		newLocation("16", 16, model.NatureAndScenery, "Lake"),
		newLocation("00", 1, model.NatureAndScenery, "Hill"),
	)
	feed := newFeed(q)
	feed.UpdateFilters(model.NewCategorySet(model.NatureAndScenery))

	feed.FetchFirstPage(ctx)
	assertLoaded(t, feed.State(), []string{"16"}, true)

	// 11..07 and 06..02 are filtered out entirely, then 01,00 yields 00
	feed.LoadNextPage(ctx)
	assertLoaded(t, feed.State(), []string{"16", "00"}, false)

	if got := q.Calls(); got != 4 {
		t.Errorf("queries = %d, want 4", got)
	}
}

func TestFeedEngine_FilteredOutLastPageStopsPaging(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	q.Add(t, newLocation("10", 10, model.Shopping, "Mall"))
	seed(t, q, 1, 7, model.FoodAndDrink)
	feed := newFeed(q)
	feed.UpdateFilters(model.NewCategorySet(model.Shopping))

	feed.FetchFirstPage(ctx)
	assertLoaded(t, feed.State(), []string{"10"}, true)

	// a short page filtered to nothing ends the feed without another query
	feed.LoadNextPage(ctx)
	assertLoaded(t, feed.State(), []string{"10"}, false)
	if got := q.Calls(); got != 2 {
		t.Errorf("queries = %d, want 2", got)
	}
}

func TestFeedEngine_FilterWithNoMatchesIsEmpty(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 7, model.CultureAndArt)
	feed := newFeed(q)

	feed.UpdateFilters(model.NewCategorySet(model.Other))
	feed.FetchFirstPage(ctx)

	if got := feed.State().Status; got != mapory.FeedEmpty {
		t.Errorf("status = %v, want empty", got)
	}
}

func TestFeedEngine_NoLocations(t *testing.T) {
	feed := newFeed(testutil.NewFakeQuerier())
	feed.FetchFirstPage(context.Background())
	if got := feed.State().Status; got != mapory.FeedEmpty {
		t.Errorf("status = %v, want empty", got)
	}
}

func TestFeedEngine_MalformedDocumentsAreDropped(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 5, model.Other)
	seed(t, q, 7, 7, model.Other)
	q.AddMalformed("06", "06/01/2024")
	feed := newFeed(q)

	feed.FetchFirstPage(ctx)
	assertLoaded(t, feed.State(), []string{"07", "05", "04", "03"}, true)

	feed.LoadNextPage(ctx)
	assertLoaded(t, feed.State(), []string{"07", "05", "04", "03", "02", "01"}, false)
}

func TestFeedEngine_Search(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	for i := 1; i <= 12; i++ {
		title := fmt.Sprintf("Museum %d", i)
		if i%2 == 0 {
			title = fmt.Sprintf("Sunny BEACH %d", i)
		}
		q.Add(t, newLocation(fmt.Sprintf("%02d", i), i, model.TravelAndTourism, title))
	}
	feed := newFeed(q)

	feed.Search(ctx, "  beach ")
	assertLoaded(t, feed.State(), []string{"12", "10", "08", "06", "04", "02"}, false)

	if got := feed.Filters().SearchTerm; got != "beach" {
		t.Errorf("SearchTerm = %q, want beach", got)
	}
	if query := q.Queries()[0]; query.Limit != 0 || query.StartAfter != nil {
		t.Errorf("search query = %+v, want unlimited without cursor", query)
	}
	if feed.HasCursor() {
		t.Error("HasCursor() = true after search")
	}

	feed.LoadNextPage(ctx)
	if got := q.Calls(); got != 1 {
		t.Errorf("LoadNextPage after search ran a query (%d queries)", got)
	}

	t.Run("respects categories", func(t *testing.T) {
		feed.UpdateFilters(model.NewCategorySet(model.Shopping))
		feed.Search(ctx, "beach")
		if got := feed.State().Status; got != mapory.FeedEmpty {
			t.Errorf("status = %v, want empty", got)
		}
	})

	t.Run("blank term fetches first page", func(t *testing.T) {
		feed.ResetFilters()
		feed.Search(ctx, "   ")
		assertLoaded(t, feed.State(), []string{"12", "11", "10", "09", "08"}, true)
		if got := feed.Filters().SearchTerm; got != "" {
			t.Errorf("SearchTerm = %q, want empty", got)
		}
	})
}

func TestFeedEngine_SettersDoNotFetch(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 7, model.Entertainment)
	feed := newFeed(q)

	feed.FetchFirstPage(ctx)
	if !feed.HasCursor() {
		t.Fatal("HasCursor() = false after first page")
	}

	tests := []struct {
		name   string
		mutate func() error
	}{
		{"sort order", func() error { feed.UpdateSortOrder(mapory.SortByDate); return nil }},
		{"date filter", func() error { return feed.UpdateDateFilter("01/01/2024", "03/01/2024") }},
		{"categories", func() error { feed.UpdateFilters(model.NewCategorySet(model.Shopping)); return nil }},
		{"reset", func() error { feed.ResetFilters(); return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed.FetchFirstPage(ctx)
			calls := q.Calls()

			if err := tt.mutate(); err != nil {
				t.Fatalf("mutate error = %v", err)
			}
			if feed.HasCursor() {
				t.Error("cursor survived the filter change")
			}
			if q.Calls() != calls {
				t.Error("setter ran a query")
			}

			feed.LoadNextPage(ctx)
			if q.Calls() != calls {
				t.Error("LoadNextPage without cursor ran a query")
			}
		})
	}
}

func TestFeedEngine_SortSwitchRestartsFromTop(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	// ids ascend while dates descend
	for i := 1; i <= 7; i++ {
		q.Add(t, newLocation(fmt.Sprintf("%02d", i), 20-i, model.Other, ""))
	}
	feed := newFeed(q)

	feed.FetchFirstPage(ctx)
	assertLoaded(t, feed.State(), []string{"07", "06", "05", "04", "03"}, true)

	feed.UpdateSortOrder(mapory.SortByDate)
	feed.FetchFirstPage(ctx)
	assertLoaded(t, feed.State(), []string{"01", "02", "03", "04", "05"}, true)

	last := q.Queries()[q.Calls()-1]
	if last.OrderBy != mapory.SortByDate || last.StartAfter != nil {
		t.Errorf("query after sort switch = %+v, want by date from the top", last)
	}
}

func TestFeedEngine_ResetFiltersRestoresDefaults(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 9, model.FoodAndDrink)
	q.Add(t, newLocation("10", 10, model.Shopping, "Spice Market"), newLocation("11", 11, model.Other, "Fish Market"))

	feed := newFeed(q)
	feed.UpdateSortOrder(mapory.SortByDate)
	feed.UpdateFilters(model.NewCategorySet(model.Shopping, model.Other))
	if err := feed.UpdateDateFilter("01/02/2024", "10/02/2024"); err != nil {
		t.Fatalf("UpdateDateFilter() error = %v", err)
	}
	feed.Search(ctx, "market")

	feed.ResetFilters()
	if got := feed.Filters(); got != mapory.DefaultFeedFilters() {
		t.Errorf("filters after reset = %+v, want %+v", got, mapory.DefaultFeedFilters())
	}
	if feed.HasCursor() {
		t.Error("HasCursor() = true after reset")
	}

	fresh := newFeed(q)
	feed.FetchFirstPage(ctx)
	fresh.FetchFirstPage(ctx)

	got, want := feed.State(), fresh.State()
	if len(want.Locations) == 0 {
		t.Fatalf("fresh feed state = %+v, want a loaded page", want)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("state after reset = %v (more %v), fresh feed = %v (more %v)",
			ids(got.Locations), got.CanLoadMore, ids(want.Locations), want.CanLoadMore)
	}
}

func TestFeedEngine_DateFilter(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 9, model.Other)

	tests := []struct {
		name       string
		start, end string
		wantDates  mapory.DateRange
		wantIDs    []string
		wantErr    bool
	}{
		{
			name:      "single day",
			start:     "04/01/2024",
			end:       "04/01/2024",
			wantDates: mapory.DateRange{Start: "04/01/2024", End: "04/01/2024"},
			wantIDs:   []string{"04"},
		},
		{
			name:      "inclusive range",
			start:     "03/01/2024",
			end:       "06/01/2024",
			wantDates: mapory.DateRange{Start: "03/01/2024", End: "06/01/2024"},
			wantIDs:   []string{"06", "05", "04", "03"},
		},
		{
			name:      "reversed range",
			start:     "06/01/2024",
			end:       "05/01/2024",
			wantDates: mapory.DateRange{Start: "05/01/2024", End: "06/01/2024"},
			wantIDs:   []string{"06", "05"},
		},
		{
			name:      "missing end",
			start:     "02/01/2024",
			wantDates: mapory.DateRange{Start: "02/01/2024", End: "02/01/2024"},
			wantIDs:   []string{"02"},
		},
		{
			name:    "invalid date",
			start:   "2024-01-02",
			end:     "03/01/2024",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := newFeed(q)
			err := feed.UpdateDateFilter(tt.start, tt.end)
			if tt.wantErr {
				if !errors.Is(err, mapory.ErrInvalidDate) {
					t.Fatalf("UpdateDateFilter() error = %v, want ErrInvalidDate", err)
				}
				if !feed.Filters().Dates.IsZero() {
					t.Error("invalid dates changed the filter")
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateDateFilter() error = %v", err)
			}
			if got := feed.Filters().Dates; got != tt.wantDates {
				t.Errorf("Dates = %+v, want %+v", got, tt.wantDates)
			}

			feed.FetchFirstPage(ctx)
			assertLoaded(t, feed.State(), tt.wantIDs, false)
		})
	}
}

func TestFeedEngine_QueryErrorFails(t *testing.T) {
	ctx := context.Background()

	t.Run("error message", func(t *testing.T) {
		q := testutil.NewFakeQuerier()
		q.SetErr(errors.New("permission denied"))
		feed := newFeed(q)

		feed.FetchFirstPage(ctx)
		got := feed.State()
		if got.Status != mapory.FeedFailed || got.Err != "permission denied" {
			t.Errorf("state = %+v, want failed with message", got)
		}
		if feed.IsFetching() {
			t.Error("IsFetching() = true after failure")
		}
	})

	t.Run("empty message", func(t *testing.T) {
		q := testutil.NewFakeQuerier()
		q.SetErr(errors.New(""))
		feed := newFeed(q)

		feed.FetchFirstPage(ctx)
		if got := feed.State().Err; got != "Unknown error occurred" {
			t.Errorf("Err = %q, want Unknown error occurred", got)
		}
	})

	t.Run("load more failure", func(t *testing.T) {
		q := testutil.NewFakeQuerier()
		seed(t, q, 1, 7, model.Other)
		feed := newFeed(q)
		feed.FetchFirstPage(ctx)

		q.SetErr(errors.New("offline"))
		feed.LoadNextPage(ctx)
		if got := feed.State(); got.Status != mapory.FeedFailed || got.Err != "offline" {
			t.Errorf("state = %+v, want failed", got)
		}
	})
}

func TestFeedEngine_CancelledFetchRestoresState(t *testing.T) {
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 7, model.Other)
	feed := newFeed(q)

	ctx, cancel := context.WithCancel(context.Background())
	entered, release := q.Hold()
	defer release()
	done := make(chan struct{})
	go func() {
		defer close(done)
		feed.FetchFirstPage(ctx)
	}()
	<-entered
	cancel()
	<-done

	if got := feed.State().Status; got != mapory.FeedNotStarted {
		t.Errorf("status = %v, want not_started", got)
	}
	if feed.IsFetching() {
		t.Error("IsFetching() = true after cancelled fetch")
	}
}

func TestFeedEngine_FilterChangeDuringFetchDropsCursor(t *testing.T) {
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 7, model.Other)
	feed := newFeed(q)

	entered, release := q.Hold()
	done := make(chan struct{})
	go func() {
		defer close(done)
		feed.FetchFirstPage(context.Background())
	}()
	<-entered
	feed.UpdateSortOrder(mapory.SortByDate)
	release()
	<-done

	if feed.HasCursor() {
		t.Error("cursor from the stale query was kept")
	}
}

func TestFeedEngine_Subscribe(t *testing.T) {
	q := testutil.NewFakeQuerier()
	seed(t, q, 1, 3, model.Other)
	feed := newFeed(q)

	ch, cancel := feed.Subscribe()
	defer cancel()
	if got := <-ch; got.Status != mapory.FeedNotStarted {
		t.Fatalf("first state = %v, want not_started", got.Status)
	}

	feed.FetchFirstPage(context.Background())
	got := <-ch
	for got.Status == mapory.FeedLoading {
		got = <-ch
	}
	assertLoaded(t, got, []string{"03", "02", "01"}, false)
}

func TestFeedEngine_SQLite(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	if err := db.CreateUser(ctx, &model.User{UserID: "u1", Email: "u1@example.com"}, "hash"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	for i := 1; i <= 7; i++ {
		loc := newLocation(fmt.Sprintf("%d", i), i, model.FoodAndDrink, fmt.Sprintf("Cafe %d", i))
		loc.DateMillis, _ = model.DateMillis(loc.Date)
		if err := db.PutLocation(ctx, "u1", loc); err != nil {
			t.Fatalf("PutLocation() error = %v", err)
		}
	}

	feed := newFeed(db)
	feed.FetchFirstPage(ctx)
	assertLoaded(t, feed.State(), []string{"7", "6", "5", "4", "3"}, true)

	feed.LoadNextPage(ctx)
	assertLoaded(t, feed.State(), []string{"7", "6", "5", "4", "3", "2", "1"}, false)

	feed.UpdateFilters(model.NewCategorySet(model.Other))
	feed.FetchFirstPage(ctx)
	if got := feed.State().Status; got != mapory.FeedEmpty {
		t.Errorf("status with {Other} = %v, want empty", got)
	}

	feed.ResetFilters()
	if err := feed.UpdateDateFilter("02/01/2024", "04/01/2024"); err != nil {
		t.Fatal(err)
	}
	feed.UpdateSortOrder(mapory.SortByDate)
	feed.FetchFirstPage(ctx)
	assertLoaded(t, feed.State(), []string{"4", "3", "2"}, false)

	feed.Search(ctx, "cafe 3")
	assertLoaded(t, feed.State(), []string{"3"}, false)
}
