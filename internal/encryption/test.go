package encryption

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"

	"mapory/internal/mapory"
)

// testHeader opens every object written by TestEncryptor.
var testHeader = []byte("MAPENC\x00\x01")

// testKey is XORed over the payload so stored objects never contain the plaintext.
const testKey = 0x5a

// TestEncryptor is a reversible, key-free Encryptor for tests and demo
// setups. Before Setup any passphrase unlocks it; after Setup only the
// passphrase given to Setup does.
type TestEncryptor struct {
	mu         sync.Mutex
	passphrase string
	setUp      bool
}

var _ mapory.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.setUp {
		return ErrKeysExist
	}
	e.passphrase, e.setUp = passphrase, true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, xorReader{r}); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (mapory.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.setUp && passphrase != e.passphrase {
		return nil, mapory.ErrWrongPassphrase
	}
	return TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext reverses TestEncryptor.
type TestDecryptionContext struct{}

func (TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	header, err := br.Peek(len(testHeader))
	if err != nil || !bytes.Equal(header, testHeader) {
		return fmt.Errorf("not a test-encrypted object")
	}
	br.Discard(len(testHeader))
	if _, err := io.Copy(w, xorReader{br}); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}

type xorReader struct{ r io.Reader }

func (x xorReader) Read(p []byte) (int, error) {
	n, err := x.r.Read(p)
	for i := range p[:n] {
		p[i] ^= testKey
	}
	return n, err
}
