package encryption

import (
	"fmt"

	"mapory/internal/config"
	"mapory/internal/mapory"
)

// NewEncryptorFromConfig creates the media Encryptor named by cfg.Type.
// "none" yields a nil Encryptor; media stores configured with encrypt=true
// then refuse to start.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (mapory.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
