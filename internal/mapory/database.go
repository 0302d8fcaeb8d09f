package mapory

import (
	"context"

	"mapory/internal/model"
)

// SortOrder selects the field a location query is ordered by, always descending.
type SortOrder int

const (
	// SortByID orders by location id (creation order).
	SortByID SortOrder = iota
	// SortByDate orders by the memory's date, ties broken by id.
	SortByDate
)

func (o SortOrder) String() string {
	if o == SortByDate {
		return "date"
	}
	return "id"
}

// ParseSortOrder accepts "id" or "date"; anything else is SortByID.
func ParseSortOrder(s string) SortOrder {
	if s == "date" {
		return SortByDate
	}
	return SortByID
}

// DateRange is an inclusive range of dd/MM/yyyy dates.
// Start == End selects a single day. The zero value means no date filter.
type DateRange struct {
	Start string
	End   string
}

// IsZero reports whether no date filter is set.
func (r DateRange) IsZero() bool {
	return r.Start == "" && r.End == ""
}

// IsSingleDay reports whether the range selects exactly one date.
func (r DateRange) IsSingleDay() bool {
	return !r.IsZero() && r.Start == r.End
}

// Document is a stored location document as returned by a query, before decoding.
// A Document also serves as a page cursor: queries can resume after it.
type Document struct {
	ID         string
	DateMillis int64
	Data       []byte
}

// LocationQuery describes an ordered, optionally filtered and paginated query
// over one user's location documents.
type LocationQuery struct {
	OrderBy    SortOrder
	Dates      DateRange
	Limit      int       // 0 means unlimited
	StartAfter *Document // resume strictly after this document in OrderBy order
}

// LocationQuerier runs location queries. It is the only dependency of FeedEngine.
type LocationQuerier interface {
	QueryLocations(ctx context.Context, userID string, q LocationQuery) ([]*Document, error)
}

// Database provides persistence for location documents and user records.
// Lookups of missing records return nil, nil.
type Database interface {
	LocationQuerier

	// PutLocation writes the full document, replacing any previous version.
	PutLocation(ctx context.Context, userID string, loc *model.Location) error
	GetLocation(ctx context.Context, userID, locationID string) (*model.Location, error)
	DeleteLocation(ctx context.Context, userID, locationID string) error

	// CreateUser stores a new account. Returns ErrEmailInUse if the email is taken.
	CreateUser(ctx context.Context, user *model.User, passwordHash string) error
	FindUserByID(ctx context.Context, userID string) (*model.User, error)
	// FindUserByEmail returns the user and its password hash.
	FindUserByEmail(ctx context.Context, email string) (*model.User, string, error)
	UpdateUsername(ctx context.Context, userID, username string) error
	UpdateProfilePhoto(ctx context.Context, userID, url string) error
	UpdateUserPosition(ctx context.Context, userID string, pos model.LatLng) error

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error
	Close() error
}
