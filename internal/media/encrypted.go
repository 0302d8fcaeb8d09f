package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"mapory/internal/mapory"
)

// EncryptedStore encrypts objects before handing them to an inner store.
// Reading requires Unlock; listing, deleting and URL mapping pass through.
type EncryptedStore struct {
	inner     mapory.MediaStore
	encryptor mapory.Encryptor

	mu sync.RWMutex
	dc mapory.DecryptionContext
}

var _ mapory.MediaStore = (*EncryptedStore)(nil)

// NewEncryptedStore wraps inner with encryptor.
func NewEncryptedStore(inner mapory.MediaStore, encryptor mapory.Encryptor) *EncryptedStore {
	return &EncryptedStore{inner: inner, encryptor: encryptor}
}

// Unlock unwraps the private key so Get can decrypt.
func (s *EncryptedStore) Unlock(passphrase string) error {
	dc, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc = dc
	return nil
}

// Put encrypts r in memory, since the ciphertext size must be known up front.
func (s *EncryptedStore) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	counted := &countingReader{r: r}
	var buf bytes.Buffer
	if err := s.encryptor.Encrypt(counted, &buf); err != nil {
		return "", fmt.Errorf("encrypting %s: %w", key, err)
	}
	if counted.n != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counted.n)
	}
	return s.inner.Put(ctx, key, &buf, int64(buf.Len()))
}

func (s *EncryptedStore) Get(ctx context.Context, key string, w io.Writer) error {
	s.mu.RLock()
	dc := s.dc
	s.mu.RUnlock()
	if dc == nil {
		return fmt.Errorf("media is encrypted: unlock with the passphrase first")
	}

	var buf bytes.Buffer
	if err := s.inner.Get(ctx, key, &buf); err != nil {
		return err
	}
	if err := dc.Decrypt(&buf, w); err != nil {
		return fmt.Errorf("decrypting %s: %w", key, err)
	}
	return nil
}

func (s *EncryptedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *EncryptedStore) URL(key string) string { return s.inner.URL(key) }

func (s *EncryptedStore) Key(url string) (string, error) { return s.inner.Key(url) }

func (s *EncryptedStore) ValidateSetup(ctx context.Context) error {
	if !s.encryptor.IsConfigured() {
		return fmt.Errorf("media encryption enabled but keys are not set up (run `mapory config keys init`)")
	}
	return s.inner.ValidateSetup(ctx)
}
