package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mapory/internal/mapory"
)

// FileSystemStore keeps media objects as files below a root directory.
// Keys map directly to relative paths:
//
//	<root>/users/<uid>/locations/<lid>/images/image_0.jpg
//	<root>/profilephotos/<uid>/profile.jpg
type FileSystemStore struct {
	name string
	root string
}

var _ mapory.MediaStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates a store rooted at root, creating the directory if needed.
func NewFileSystemStore(name, root string) (*FileSystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving media root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return &FileSystemStore{name: name, root: abs}, nil
}

func (s *FileSystemStore) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put writes the object atomically (temp file + rename).
func (s *FileSystemStore) Put(_ context.Context, key string, r io.Reader, size int64) (string, error) {
	dest, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}

	committed = true
	return s.URL(key), nil
}

func (s *FileSystemStore) Get(_ context.Context, key string, w io.Writer) error {
	src, err := s.path(key)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("media %s: %w", key, mapory.ErrNotFound)
		}
		return fmt.Errorf("failed to open media: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read media: %w", err)
	}
	return nil
}

// List walks the directory holding prefix and returns matching keys.
func (s *FileSystemStore) List(_ context.Context, prefix string) ([]string, error) {
	// walk from the deepest directory fully contained in prefix
	dir := s.root
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		dir = filepath.Join(s.root, filepath.FromSlash(prefix[:i]))
	}

	var keys []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing media under %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileSystemStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting media %s: %w", key, err)
	}
	return nil
}

func (s *FileSystemStore) URL(key string) string {
	return "file://" + filepath.ToSlash(s.root) + "/" + key
}

func (s *FileSystemStore) Key(url string) (string, error) {
	return trimURL(url, "file://"+filepath.ToSlash(s.root)+"/")
}

// ValidateSetup verifies that the root exists and is a directory.
func (s *FileSystemStore) ValidateSetup(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("media root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root is not a directory: %s", s.root)
	}
	return nil
}
