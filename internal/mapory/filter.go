package mapory

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"mapory/internal/model"
)

// LocationFilter selects decoded locations client-side.
// The zero value rejects everything; use NewLocationFilter.
type LocationFilter struct {
	categories model.CategorySet
	term       string // case-folded
	fromKey    string // inclusive yyyy-mm-dd bounds, "" = unbounded
	toKey      string
}

// NewLocationFilter builds a filter on category, title substring and date range.
// An empty term or zero range disables that criterion.
func NewLocationFilter(categories model.CategorySet, term string, dates DateRange) (LocationFilter, error) {
	f := termFilter(categories, term)
	if !dates.IsZero() {
		norm, err := normalizeDateRange(dates)
		if err != nil {
			return LocationFilter{}, err
		}
		f.fromKey, _ = model.DateKey(norm.Start)
		f.toKey, _ = model.DateKey(norm.End)
	}
	return f, nil
}

// termFilter builds a filter on category and title substring only.
func termFilter(categories model.CategorySet, term string) LocationFilter {
	f := LocationFilter{categories: categories}
	if term = strings.TrimSpace(term); term != "" {
		f.term = cases.Fold().String(term)
	}
	return f
}

// Match reports whether loc passes every criterion.
func (f LocationFilter) Match(loc *model.Location) bool {
	if !f.categories.IsAll() && !f.categories.Has(loc.Category) {
		return false
	}
	if f.term != "" && !strings.Contains(cases.Fold().String(loc.Title), f.term) {
		return false
	}
	if f.fromKey != "" {
		key, err := model.DateKey(loc.Date)
		if err != nil || key < f.fromKey || key > f.toKey {
			return false
		}
	}
	return true
}

// decodeDocuments decodes documents and keeps those matching f.
// Malformed documents are dropped.
func decodeDocuments(docs []*Document, f LocationFilter, logger Logger) []*model.Location {
	out := make([]*model.Location, 0, len(docs))
	for _, d := range docs {
		loc, err := model.DecodeLocation(d.Data)
		if err != nil {
			logger.Warn("skipping malformed location document", "id", d.ID, "error", err)
			continue
		}
		if f.Match(loc) {
			out = append(out, loc)
		}
	}
	return out
}

// normalizeDateRange fills a missing bound from the other one, validates both
// dates and orders them chronologically.
func normalizeDateRange(r DateRange) (DateRange, error) {
	r.Start, r.End = strings.TrimSpace(r.Start), strings.TrimSpace(r.End)
	if r.Start == "" && r.End == "" {
		return DateRange{}, nil
	}
	if r.Start == "" {
		r.Start = r.End
	}
	if r.End == "" {
		r.End = r.Start
	}

	startKey, err := model.DateKey(r.Start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	endKey, err := model.DateKey(r.End)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if startKey > endKey {
		r.Start, r.End = r.End, r.Start
	}
	return r, nil
}
