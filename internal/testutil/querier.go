package testutil

import (
	"context"
	"sort"
	"sync"
	"testing"

	"mapory/internal/mapory"
	"mapory/internal/model"
)

type fakeDoc struct {
	doc  mapory.Document
	date string
}

// FakeQuerier is an in-memory mapory.LocationQuerier that orders, resumes
// and applies date predicates the way the SQLite store does. It records
// every query and can hold a query in flight.
type FakeQuerier struct {
	mu      sync.Mutex
	docs    []fakeDoc
	err     error
	queries []mapory.LocationQuery
	gate    *gate
}

type gate struct {
	entered chan struct{}
	release chan struct{}
}

var _ mapory.LocationQuerier = (*FakeQuerier)(nil)

func NewFakeQuerier() *FakeQuerier {
	return &FakeQuerier{}
}

// Add stores loc. DateMillis is derived from Date when unset.
func (f *FakeQuerier) Add(t *testing.T, locs ...*model.Location) {
	t.Helper()
	for _, loc := range locs {
		if loc.DateMillis == 0 && loc.Date != "" {
			ms, err := model.DateMillis(loc.Date)
			if err != nil {
				t.Fatalf("location %s: %v", loc.ID, err)
			}
			loc.DateMillis = ms
		}
		data, err := loc.Encode()
		if err != nil {
			t.Fatalf("encoding location %s: %v", loc.ID, err)
		}
		f.put(fakeDoc{doc: mapory.Document{ID: loc.ID, DateMillis: loc.DateMillis, Data: data}, date: loc.Date})
	}
}

// AddMalformed stores a document whose body cannot be decoded.
func (f *FakeQuerier) AddMalformed(id, date string) {
	ms, _ := model.DateMillis(date)
	f.put(fakeDoc{doc: mapory.Document{ID: id, DateMillis: ms, Data: []byte("{not json")}, date: date})
}

func (f *FakeQuerier) put(d fakeDoc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, d)
}

// SetErr makes every following query fail with err. nil clears it.
func (f *FakeQuerier) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns the number of queries run so far.
func (f *FakeQuerier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// Queries returns a copy of every query received, in order.
func (f *FakeQuerier) Queries() []mapory.LocationQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mapory.LocationQuery(nil), f.queries...)
}

// Hold makes the next query block until release is called or its context
// ends. entered is closed once that query has started.
func (f *FakeQuerier) Hold() (entered <-chan struct{}, release func()) {
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.gate = g
	f.mu.Unlock()

	var once sync.Once
	return g.entered, func() { once.Do(func() { close(g.release) }) }
}

func (f *FakeQuerier) QueryLocations(ctx context.Context, _ string, q mapory.LocationQuery) ([]*mapory.Document, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	g := f.gate
	f.gate = nil
	err := f.err
	docs := append([]fakeDoc(nil), f.docs...)
	f.mu.Unlock()

	if g != nil {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	match, err := datePredicate(q.Dates)
	if err != nil {
		return nil, err
	}

	less := func(a, b mapory.Document) bool {
		if q.OrderBy == mapory.SortByDate && a.DateMillis != b.DateMillis {
			return a.DateMillis > b.DateMillis
		}
		return a.ID > b.ID
	}
	sort.Slice(docs, func(i, j int) bool { return less(docs[i].doc, docs[j].doc) })

	var out []*mapory.Document
	for _, d := range docs {
		if !match(d.date) {
			continue
		}
		if q.StartAfter != nil && !less(*q.StartAfter, d.doc) {
			continue
		}
		doc := d.doc
		out = append(out, &doc)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func datePredicate(r mapory.DateRange) (func(string) bool, error) {
	if r.IsZero() {
		return func(string) bool { return true }, nil
	}
	if r.Start == "" {
		r.Start = r.End
	}
	if r.End == "" {
		r.End = r.Start
	}
	if r.IsSingleDay() {
		return func(date string) bool { return date == r.Start }, nil
	}
	from, err := model.DateKey(r.Start)
	if err != nil {
		return nil, err
	}
	to, err := model.DateKey(r.End)
	if err != nil {
		return nil, err
	}
	return func(date string) bool {
		key, err := model.DateKey(date)
		return err == nil && key >= from && key <= to
	}, nil
}
