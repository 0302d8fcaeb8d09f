package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mapory/internal/mapory"
)

func newTestFSStore(t *testing.T) *FileSystemStore {
	t.Helper()
	s, err := NewFileSystemStore("local", filepath.Join(t.TempDir(), "media"))
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	return s
}

func TestFileSystemStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestFSStore(t)
	key := "users/u1/locations/1/images/image_0.jpg"

	url, err := s.Put(ctx, key, strings.NewReader("jpeg-bytes"), 10)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, key) {
		t.Errorf("Put() url = %q", url)
	}
	if _, err := os.Stat(filepath.Join(s.root, "users", "u1", "locations", "1", "images", "image_0.jpg")); err != nil {
		t.Errorf("object file not created: %v", err)
	}

	var buf bytes.Buffer
	if err := s.Get(ctx, key, &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if buf.String() != "jpeg-bytes" {
		t.Errorf("Get() = %q, want %q", buf.String(), "jpeg-bytes")
	}

	got, err := s.Key(url)
	if err != nil || got != key {
		t.Errorf("Key(%q) = %q, %v, want %q", url, got, err, key)
	}
}

func TestFileSystemStore_PutSizeMismatchLeavesNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestFSStore(t)
	key := "users/u1/locations/1/audios/audio_0.mp3"

	if _, err := s.Put(ctx, key, strings.NewReader("short"), 100); err == nil {
		t.Fatal("Put() error = nil, want size mismatch")
	}

	keys, err := s.List(ctx, "users/u1/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List() = %v, want no objects after failed put", keys)
	}
}

func TestFileSystemStore_GetMissing(t *testing.T) {
	s := newTestFSStore(t)
	err := s.Get(context.Background(), "users/u1/nothing.jpg", &bytes.Buffer{})
	if !errors.Is(err, mapory.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestFileSystemStore_ListDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestFSStore(t)
	for _, k := range []string{
		"users/u1/locations/1/images/image_0.jpg",
		"users/u1/locations/1/notes/note_0.pdf",
		"users/u1/locations/12/images/image_0.jpg",
	} {
		if _, err := s.Put(ctx, k, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("Put(%s) error = %v", k, err)
		}
	}

	keys, err := s.List(ctx, "users/u1/locations/1/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("List() = %v, want 2 keys", keys)
	}

	missing, err := s.List(ctx, "users/u2/locations/1/")
	if err != nil || len(missing) != 0 {
		t.Errorf("List() of missing prefix = %v, %v", missing, err)
	}

	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			t.Fatalf("Delete(%s) error = %v", k, err)
		}
	}
	if err := s.Delete(ctx, keys[0]); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestFileSystemStore_ValidateSetup(t *testing.T) {
	s := newTestFSStore(t)
	if err := s.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	os.RemoveAll(s.root)
	if err := s.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() with missing root error = nil, want error")
	}
}
