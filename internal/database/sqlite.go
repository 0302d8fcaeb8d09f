package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"mapory/internal/database/migrations"
	"mapory/internal/mapory"
	"mapory/internal/model"
)

// SQLiteDatabase implements mapory.Database using SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock mapory.Clock
}

var _ mapory.Database = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
// A nil clock uses the real time.
func NewSQLiteDatabase(path string, clock mapory.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteDatabaseFromDB(db, clock), nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock mapory.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = mapory.RealClock{}
	}
	return &SQLiteDatabase{db: db, clock: clock}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	return db, nil
}

// Migrate brings the schema to the latest version.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Status reports the schema version.
func (s *SQLiteDatabase) Status() (migrations.Status, error) {
	return migrations.ReadStatus(s.db)
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// Location operations

func (s *SQLiteDatabase) PutLocation(ctx context.Context, userID string, loc *model.Location) error {
	dateKey, err := model.DateKey(loc.Date)
	if err != nil {
		return fmt.Errorf("%w: %v", mapory.ErrInvalidDate, err)
	}
	doc, err := loc.Encode()
	if err != nil {
		return err
	}

	query, args, err := sqb.Insert("locations").
		Columns("user_id", "id", "date", "date_key", "date_millis", "document", "updated_at").
		Values(userID, loc.ID, loc.Date, dateKey, loc.DateMillis, string(doc), s.clock.Now().UTC()).
		Suffix(`ON CONFLICT (user_id, id) DO UPDATE SET
			date = excluded.date,
			date_key = excluded.date_key,
			date_millis = excluded.date_millis,
			document = excluded.document,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadQuery, err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("writing location %s: %w", loc.ID, err)
	}
	return nil
}

func (s *SQLiteDatabase) GetLocation(ctx context.Context, userID, locationID string) (*model.Location, error) {
	query, args, err := sqb.Select("document").
		From("locations").
		Where(sq.Eq{"user_id": userID, "id": locationID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadQuery, err)
	}

	var doc string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading location %s: %w", locationID, err)
	}
	return model.DecodeLocation([]byte(doc))
}

func (s *SQLiteDatabase) DeleteLocation(ctx context.Context, userID, locationID string) error {
	query, args, err := sqb.Delete("locations").
		Where(sq.Eq{"user_id": userID, "id": locationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadQuery, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting location %s: %w", locationID, err)
	}
	return nil
}

// QueryLocations returns raw documents in descending sort order.
// Documents are not decoded here so callers can tell a short page from a
// page whose documents failed to decode.
func (s *SQLiteDatabase) QueryLocations(ctx context.Context, userID string, q mapory.LocationQuery) ([]*mapory.Document, error) {
	b := sqb.Select("id", "date_millis", "document").
		From("locations").
		Where(sq.Eq{"user_id": userID})

	b, err := withDatePredicate(b, q.Dates)
	if err != nil {
		return nil, err
	}

	if c := q.StartAfter; c != nil {
		if q.OrderBy == mapory.SortByDate {
			b = b.Where(sq.Or{
				sq.Lt{"date_millis": c.DateMillis},
				sq.And{sq.Eq{"date_millis": c.DateMillis}, sq.Lt{"id": c.ID}},
			})
		} else {
			b = b.Where(sq.Lt{"id": c.ID})
		}
	}

	if q.OrderBy == mapory.SortByDate {
		b = b.OrderBy("date_millis DESC", "id DESC")
	} else {
		b = b.OrderBy("id DESC")
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadQuery, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var docs []*mapory.Document
	for rows.Next() {
		var (
			d   mapory.Document
			raw string
		)
		if err := rows.Scan(&d.ID, &d.DateMillis, &raw); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		d.Data = []byte(raw)
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating locations: %w", err)
	}
	return docs, nil
}

// withDatePredicate adds equality on the display date for a single day, or an
// inclusive range on the sortable date key otherwise.
func withDatePredicate(b sq.SelectBuilder, dates mapory.DateRange) (sq.SelectBuilder, error) {
	if dates.IsZero() {
		return b, nil
	}
	if dates.Start == "" {
		dates.Start = dates.End
	}
	if dates.End == "" {
		dates.End = dates.Start
	}
	if dates.IsSingleDay() {
		return b.Where(sq.Eq{"date": dates.Start}), nil
	}

	from, err := model.DateKey(dates.Start)
	if err != nil {
		return b, fmt.Errorf("%w: %v", mapory.ErrInvalidDate, err)
	}
	to, err := model.DateKey(dates.End)
	if err != nil {
		return b, fmt.Errorf("%w: %v", mapory.ErrInvalidDate, err)
	}
	return b.Where(sq.GtOrEq{"date_key": from}).Where(sq.LtOrEq{"date_key": to}), nil
}

// User operations

func (s *SQLiteDatabase) CreateUser(ctx context.Context, user *model.User, passwordHash string) error {
	query, args, err := sqb.Insert("users").
		Columns("id", "email", "password_hash", "username", "profile_photo", "latitude", "longitude", "created_at").
		Values(user.UserID, user.Email, passwordHash, user.Username, user.ProfilePhoto,
			user.LatLng.Latitude, user.LatLng.Longitude, s.clock.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadQuery, err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return mapory.ErrEmailInUse
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

var userColumns = []string{"id", "email", "username", "profile_photo", "latitude", "longitude", "password_hash"}

func (s *SQLiteDatabase) FindUserByID(ctx context.Context, userID string) (*model.User, error) {
	user, _, err := s.findUser(ctx, sq.Eq{"id": userID})
	return user, err
}

func (s *SQLiteDatabase) FindUserByEmail(ctx context.Context, email string) (*model.User, string, error) {
	return s.findUser(ctx, sq.Eq{"email": email})
}

func (s *SQLiteDatabase) findUser(ctx context.Context, where sq.Eq) (*model.User, string, error) {
	query, args, err := sqb.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadQuery, err)
	}

	var (
		u    model.User
		hash string
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&u.UserID, &u.Email, &u.Username, &u.ProfilePhoto, &u.LatLng.Latitude, &u.LatLng.Longitude, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("finding user: %w", err)
	}
	return &u, hash, nil
}

func (s *SQLiteDatabase) UpdateUsername(ctx context.Context, userID, username string) error {
	return s.updateUser(ctx, userID, sq.Eq{"username": username})
}

func (s *SQLiteDatabase) UpdateProfilePhoto(ctx context.Context, userID, url string) error {
	return s.updateUser(ctx, userID, sq.Eq{"profile_photo": url})
}

func (s *SQLiteDatabase) UpdateUserPosition(ctx context.Context, userID string, pos model.LatLng) error {
	return s.updateUser(ctx, userID, sq.Eq{"latitude": pos.Latitude, "longitude": pos.Longitude})
}

// updateUser sets the given columns, returning mapory.ErrNotFound for unknown users.
func (s *SQLiteDatabase) updateUser(ctx context.Context, userID string, set sq.Eq) error {
	query, args, err := sqb.Update("users").SetMap(set).Where(sq.Eq{"id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadQuery, err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating user %s: %w", userID, err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, mapory.ErrNotFound)
	}
	return nil
}

// BackupTo writes a consistent snapshot of the database to path.
func (s *SQLiteDatabase) BackupTo(path string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("backing up database to %s: %w", path, err)
	}
	return nil
}
