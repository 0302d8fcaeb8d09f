package testutil

import (
	"mapory/internal/encryption"
	"mapory/internal/mapory"
	"mapory/internal/media"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() mapory.Encryptor {
	return encryption.NewTestEncryptor()
}

// NewTestMediaStore creates an empty in-memory media store.
func NewTestMediaStore() *media.MemoryStore {
	return media.NewMemoryStore("test")
}
