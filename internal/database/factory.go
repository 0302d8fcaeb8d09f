package database

import (
	"fmt"
	"os"
	"path/filepath"

	"mapory/internal/config"
	"mapory/internal/mapory"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// In-memory databases are migrated immediately since they start empty.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, "mapory.db"), mapory.RealClock{})
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", mapory.RealClock{})
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
