package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mapory/internal/auth"
	"mapory/internal/config"
	"mapory/internal/database"
	"mapory/internal/database/migrations"
	"mapory/internal/encryption"
	"mapory/internal/geocode"
	"mapory/internal/mapory"
	"mapory/internal/media"
	"mapory/internal/model"
	"mapory/internal/retry"
)

// Options tune how a MaporyApp reports to the terminal.
type Options struct {
	Stderr  io.Writer // defaults to os.Stderr
	Verbose bool      // also print INFO and DEBUG records to Stderr
}

// MaporyApp is the application layer between the CLI and the mapory services.
// It constructs all dependencies from config, exposes high-level operations
// that resolve the signed-in user and raw file paths, and manages the DB
// lifecycle on Close.
type MaporyApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	media     mapory.MediaStore
	encryptor mapory.Encryptor
	auth      *auth.Service
	service   *mapory.Service
	logger    *slog.Logger
	logFile   *os.File
}

// NewMaporyApp creates a fully wired MaporyApp from the given config.
// operation identifies the CLI command being run (e.g. "AddLocation", "Feed").
// The caller must call Close when done.
func NewMaporyApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*MaporyApp, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	stderrLevel := slog.LevelWarn
	if opts.Verbose {
		stderrLevel = slog.LevelDebug
	}

	opID := operation + "-" + time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, opts.Stderr, stderrLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	a := &MaporyApp{cfg: cfg, logger: logger, logFile: logFile}
	fail := func(err error) (*MaporyApp, error) {
		a.Close()
		return nil, err
	}

	a.db, err = database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fail(fmt.Errorf("creating database: %w", err))
	}
	if err := a.db.CheckMigrations(); err != nil {
		return fail(fmt.Errorf("database schema out of date (run `mapory db migrate`): %w", err))
	}

	a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fail(fmt.Errorf("creating encryptor: %w", err))
	}

	a.media, err = media.NewStoreFromConfig(ctx, cfg.Media, a.encryptor)
	if err != nil {
		return fail(fmt.Errorf("creating media store: %w", err))
	}

	geocoder, err := geocode.NewFromConfig(cfg.Geocoder)
	if err != nil {
		return fail(fmt.Errorf("creating geocoder: %w", err))
	}

	secret, err := auth.LoadOrCreateSecret(cfg.Auth.SecretPath)
	if err != nil {
		return fail(err)
	}
	a.auth = auth.NewService(a.db, cfg.Auth.SessionPath, secret, cfg.Auth.TokenTTL(),
		mapory.RealClock{}, mapory.UUIDGenerator{}, log)

	retryCfg := retry.FromConfig(cfg.Retry)
	retryFn := func(ctx context.Context, name string, op func() error) error {
		return retry.Do(ctx, log, name, op, retryCfg)
	}
	a.service = mapory.NewService(a.db, a.media, geocoder, media.SidecarThumbnails{}, log, mapory.RealClock{}, retryFn)

	return a, nil
}

// Close closes the database and the log file.
func (a *MaporyApp) Close() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// ValidateSetup checks that the media store and its encryption are usable.
func (a *MaporyApp) ValidateSetup(ctx context.Context) error {
	return a.media.ValidateSetup(ctx)
}

// InitKeys generates the media encryption key pair.
func (a *MaporyApp) InitKeys(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is disabled in the config")
	}
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption keys: %w", err)
	}
	return nil
}

// UnlockMedia unlocks encrypted media for reading. It is a no-op when
// media is stored unencrypted.
func (a *MaporyApp) UnlockMedia(passphrase string) error {
	enc, ok := a.media.(*media.EncryptedStore)
	if !ok {
		return nil
	}
	return enc.Unlock(passphrase)
}

// MediaEncrypted reports whether reading media needs a passphrase.
func (a *MaporyApp) MediaEncrypted() bool {
	_, ok := a.media.(*media.EncryptedStore)
	return ok
}

// Account operations

func (a *MaporyApp) Register(ctx context.Context, email, password, username string) (*model.User, error) {
	return a.auth.Register(ctx, email, password, username)
}

func (a *MaporyApp) Login(ctx context.Context, email, password string) (*model.User, error) {
	return a.auth.Login(ctx, email, password)
}

func (a *MaporyApp) Logout() error {
	return a.auth.Logout()
}

// CurrentUser returns the signed-in user's stored profile.
func (a *MaporyApp) CurrentUser(ctx context.Context) (*model.User, error) {
	uid, err := a.auth.CurrentUserID()
	if err != nil {
		return nil, err
	}
	return a.service.Profile(ctx, uid)
}

// DB maintenance

// MigrateDatabase brings the configured database to the latest schema.
// It does not require a MaporyApp, since NewMaporyApp refuses outdated schemas.
func MigrateDatabase(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return migrations.Status{}, err
	}
	return db.Status()
}

// DatabaseStatus reports the schema version of the configured database.
func DatabaseStatus(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()
	return db.Status()
}

// BackupDatabase writes a snapshot of the database to path.
func (a *MaporyApp) BackupDatabase(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	if _, err := os.Stat(abs); err == nil {
		return fmt.Errorf("%s already exists", abs)
	}
	a.logger.Info("backing up database", "path", abs)
	return a.db.BackupTo(abs)
}
