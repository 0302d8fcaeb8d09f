package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"mapory/internal/mapory"
	"mapory/internal/model"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func createUser(t *testing.T, db *SQLiteDatabase, id string) {
	t.Helper()
	u := &model.User{UserID: id, Email: id + "@example.com", Username: id}
	if err := db.CreateUser(context.Background(), u, "hash"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
}

func putLocation(t *testing.T, db *SQLiteDatabase, userID, id, date string, cat model.Category) {
	t.Helper()
	millis, err := model.DateMillis(date)
	if err != nil {
		t.Fatalf("DateMillis(%q) error = %v", date, err)
	}
	loc := &model.Location{ID: id, Title: "loc " + id, Date: date, DateMillis: millis, Category: cat}
	if err := db.PutLocation(context.Background(), userID, loc); err != nil {
		t.Fatalf("PutLocation(%s) error = %v", id, err)
	}
}

func ids(docs []*mapory.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func TestSQLiteDatabase_PutGetDeleteLocation(t *testing.T) {
	ctx := context.Background()

	t.Run("returns nil when location not found", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1")

		loc, err := db.GetLocation(ctx, "u1", "missing")
		if err != nil {
			t.Fatalf("GetLocation() error = %v", err)
		}
		if loc != nil {
			t.Errorf("GetLocation() = %+v, want nil", loc)
		}
	})

	t.Run("put overwrites the whole document", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1")
		putLocation(t, db, "u1", "1", "01/02/2024", model.Shopping)

		updated := &model.Location{ID: "1", Title: "renamed", Date: "03/02/2024", Category: model.Other}
		if err := db.PutLocation(ctx, "u1", updated); err != nil {
			t.Fatalf("PutLocation() error = %v", err)
		}

		got, err := db.GetLocation(ctx, "u1", "1")
		if err != nil {
			t.Fatalf("GetLocation() error = %v", err)
		}
		if got.Title != "renamed" || got.Category != model.Other || got.Date != "03/02/2024" {
			t.Errorf("GetLocation() = %+v, want overwritten document", got)
		}
	})

	t.Run("rejects invalid date", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1")

		err := db.PutLocation(ctx, "u1", &model.Location{ID: "1", Date: "2024-02-01"})
		if !errors.Is(err, mapory.ErrInvalidDate) {
			t.Errorf("PutLocation() error = %v, want ErrInvalidDate", err)
		}
	})

	t.Run("delete removes location and ignores missing", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1")
		putLocation(t, db, "u1", "1", "01/02/2024", model.Shopping)

		if err := db.DeleteLocation(ctx, "u1", "1"); err != nil {
			t.Fatalf("DeleteLocation() error = %v", err)
		}
		if err := db.DeleteLocation(ctx, "u1", "1"); err != nil {
			t.Fatalf("second DeleteLocation() error = %v", err)
		}
		got, _ := db.GetLocation(ctx, "u1", "1")
		if got != nil {
			t.Errorf("GetLocation() after delete = %+v, want nil", got)
		}
	})

	t.Run("locations are scoped per user", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1")
		createUser(t, db, "u2")
		putLocation(t, db, "u1", "1", "01/02/2024", model.Shopping)

		got, _ := db.GetLocation(ctx, "u2", "1")
		if got != nil {
			t.Errorf("GetLocation() for other user = %+v, want nil", got)
		}
	})
}

func TestSQLiteDatabase_QueryLocations(t *testing.T) {
	ctx := context.Background()

	db := newTestDB(t)
	createUser(t, db, "u1")
	createUser(t, db, "u2")
	putLocation(t, db, "u1", "1", "10/01/2024", model.FoodAndDrink)
	putLocation(t, db, "u1", "2", "05/03/2024", model.Shopping)
	putLocation(t, db, "u1", "3", "05/03/2024", model.Other)
	putLocation(t, db, "u1", "4", "20/02/2024", model.FoodAndDrink)
	putLocation(t, db, "u1", "5", "01/12/2023", model.Accommodation)
	putLocation(t, db, "u2", "9", "01/01/2024", model.Other)

	tests := []struct {
		name string
		q    mapory.LocationQuery
		want []string
	}{
		{
			name: "by id descending",
			q:    mapory.LocationQuery{OrderBy: mapory.SortByID},
			want: []string{"5", "4", "3", "2", "1"},
		},
		{
			name: "by date descending with id tiebreak",
			q:    mapory.LocationQuery{OrderBy: mapory.SortByDate},
			want: []string{"3", "2", "4", "1", "5"},
		},
		{
			name: "limit",
			q:    mapory.LocationQuery{OrderBy: mapory.SortByID, Limit: 2},
			want: []string{"5", "4"},
		},
		{
			name: "start after id cursor",
			q:    mapory.LocationQuery{OrderBy: mapory.SortByID, Limit: 2, StartAfter: &mapory.Document{ID: "4"}},
			want: []string{"3", "2"},
		},
		{
			name: "start after date cursor inside a tie",
			q: mapory.LocationQuery{
				OrderBy:    mapory.SortByDate,
				StartAfter: &mapory.Document{ID: "3", DateMillis: mustMillis(t, "05/03/2024")},
			},
			want: []string{"2", "4", "1", "5"},
		},
		{
			name: "single day uses equality",
			q:    mapory.LocationQuery{OrderBy: mapory.SortByID, Dates: mapory.DateRange{Start: "05/03/2024", End: "05/03/2024"}},
			want: []string{"3", "2"},
		},
		{
			name: "range is inclusive and chronological",
			q:    mapory.LocationQuery{OrderBy: mapory.SortByDate, Dates: mapory.DateRange{Start: "10/01/2024", End: "20/02/2024"}},
			want: []string{"4", "1"},
		},
		{
			name: "range across year boundary",
			q:    mapory.LocationQuery{OrderBy: mapory.SortByID, Dates: mapory.DateRange{Start: "01/12/2023", End: "31/01/2024"}},
			want: []string{"5", "1"},
		},
		{
			name: "missing end bound is a single day",
			q:    mapory.LocationQuery{OrderBy: mapory.SortByID, Dates: mapory.DateRange{Start: "20/02/2024"}},
			want: []string{"4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := db.QueryLocations(ctx, "u1", tt.q)
			if err != nil {
				t.Fatalf("QueryLocations() error = %v", err)
			}
			if got := ids(docs); !equalIDs(got, tt.want) {
				t.Errorf("QueryLocations() ids = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("invalid range date", func(t *testing.T) {
		_, err := db.QueryLocations(ctx, "u1", mapory.LocationQuery{Dates: mapory.DateRange{Start: "x", End: "y"}})
		if !errors.Is(err, mapory.ErrInvalidDate) {
			t.Errorf("QueryLocations() error = %v, want ErrInvalidDate", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := db.QueryLocations(cctx, "u1", mapory.LocationQuery{}); err == nil {
			t.Error("QueryLocations() with cancelled context error = nil, want error")
		}
	})
}

func TestSQLiteDatabase_QueryLocations_ReturnsMalformedDocuments(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createUser(t, db, "u1")
	putLocation(t, db, "u1", "1", "01/01/2024", model.Other)

	_, err := db.db.Exec(`INSERT INTO locations (user_id, id, date, date_key, date_millis, document, updated_at)
		VALUES ('u1', '2', '02/01/2024', '2024-01-02', 0, '{broken', datetime('now'))`)
	if err != nil {
		t.Fatalf("inserting malformed row: %v", err)
	}

	docs, err := db.QueryLocations(ctx, "u1", mapory.LocationQuery{})
	if err != nil {
		t.Fatalf("QueryLocations() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2 raw documents", len(docs))
	}
	if _, err := model.DecodeLocation(docs[0].Data); err == nil {
		t.Error("malformed document decoded without error")
	}
}

func TestSQLiteDatabase_Users(t *testing.T) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		db := newTestDB(t)
		u := &model.User{UserID: "u1", Email: "ada@example.com", Username: "ada"}
		if err := db.CreateUser(ctx, u, "secret-hash"); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}

		byID, err := db.FindUserByID(ctx, "u1")
		if err != nil {
			t.Fatalf("FindUserByID() error = %v", err)
		}
		if byID == nil || byID.Email != "ada@example.com" {
			t.Errorf("FindUserByID() = %+v, want ada", byID)
		}

		byEmail, hash, err := db.FindUserByEmail(ctx, "ada@example.com")
		if err != nil {
			t.Fatalf("FindUserByEmail() error = %v", err)
		}
		if byEmail == nil || byEmail.UserID != "u1" || hash != "secret-hash" {
			t.Errorf("FindUserByEmail() = %+v, %q", byEmail, hash)
		}
	})

	t.Run("missing user returns nil", func(t *testing.T) {
		db := newTestDB(t)
		u, err := db.FindUserByID(ctx, "nobody")
		if err != nil || u != nil {
			t.Errorf("FindUserByID() = %+v, %v, want nil, nil", u, err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1")
		err := db.CreateUser(ctx, &model.User{UserID: "u2", Email: "u1@example.com"}, "h")
		if !errors.Is(err, mapory.ErrEmailInUse) {
			t.Errorf("CreateUser() error = %v, want ErrEmailInUse", err)
		}
	})

	t.Run("updates", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "u1")

		if err := db.UpdateUsername(ctx, "u1", "grace"); err != nil {
			t.Fatalf("UpdateUsername() error = %v", err)
		}
		if err := db.UpdateProfilePhoto(ctx, "u1", "mem://media/profilephotos/u1/profile.jpg"); err != nil {
			t.Fatalf("UpdateProfilePhoto() error = %v", err)
		}
		pos := model.LatLng{Latitude: 41.0, Longitude: 29.0}
		if err := db.UpdateUserPosition(ctx, "u1", pos); err != nil {
			t.Fatalf("UpdateUserPosition() error = %v", err)
		}

		u, _ := db.FindUserByID(ctx, "u1")
		if u.Username != "grace" || u.ProfilePhoto == "" || u.LatLng != pos {
			t.Errorf("user after updates = %+v", u)
		}
	})

	t.Run("update unknown user", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.UpdateUsername(ctx, "nobody", "x"); !errors.Is(err, mapory.ErrNotFound) {
			t.Errorf("UpdateUsername() error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "u1")
	putLocation(t, db, "u1", "1", "01/01/2024", model.Other)

	path := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(path); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := NewSQLiteDatabase(path, nil)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()

	loc, err := restored.GetLocation(context.Background(), "u1", "1")
	if err != nil || loc == nil {
		t.Errorf("GetLocation() from backup = %v, %v", loc, err)
	}
}

func mustMillis(t *testing.T, date string) int64 {
	t.Helper()
	m, err := model.DateMillis(date)
	if err != nil {
		t.Fatalf("DateMillis(%q) error = %v", date, err)
	}
	return m
}
