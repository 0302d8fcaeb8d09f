package media

import (
	"context"
	"fmt"

	"mapory/internal/config"
	"mapory/internal/mapory"
)

// NewStoreFromConfig creates a MediaStore based on the media config type.
// When cfg.Encrypt is set the store is wrapped in an EncryptedStore.
func NewStoreFromConfig(ctx context.Context, cfg config.MediaConfig, enc mapory.Encryptor) (mapory.MediaStore, error) {
	var (
		store mapory.MediaStore
		err   error
	)
	switch cfg.Type {
	case "memory":
		store = NewMemoryStore(cfg.Name)
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem media store requires fs_root to be set")
		}
		store, err = NewFileSystemStore(cfg.Name, cfg.FSRoot)
	case "s3":
		store, err = NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown media store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Encrypt {
		if enc == nil {
			return nil, fmt.Errorf("media encryption enabled but no encryptor configured")
		}
		return NewEncryptedStore(store, enc), nil
	}
	return store, nil
}
