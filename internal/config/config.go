package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for mapory.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Media      MediaConfig      `toml:"media"`
	Encryption EncryptionConfig `toml:"encryption"`
	Geocoder   GeocoderConfig   `toml:"geocoder"`
	Auth       AuthConfig       `toml:"auth"`
	Feed       FeedConfig       `toml:"feed"`
	Retry      RetryConfig      `toml:"retry"`
}

// DatabaseConfig represents configuration for the location/user store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// MediaConfig represents configuration for the media blob store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MediaConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"
	Name string `toml:"name"`

	// Encrypt stores media encrypted with the configured encryptor.
	Encrypt bool `toml:"encrypt"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible services
	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for media encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "test" or "none"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// GeocoderConfig selects the reverse geocoder.
type GeocoderConfig struct {
	Type      string `toml:"type"` // "none" or "nominatim"
	Endpoint  string `toml:"endpoint,omitempty"`
	UserAgent string `toml:"user_agent,omitempty"`
	Language  string `toml:"language,omitempty"`
	TimeoutMS int    `toml:"timeout_ms,omitempty"`
}

// AuthConfig holds the session settings.
type AuthConfig struct {
	SessionPath   string `toml:"session_path"`
	SecretPath    string `toml:"secret_path"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// TokenTTL returns the session token lifetime, defaulting to 30 days.
func (c AuthConfig) TokenTTL() time.Duration {
	if c.TokenTTLHours <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// FeedConfig holds feed paging settings.
type FeedConfig struct {
	PageSize int `toml:"page_size"`
}

// RetryConfig controls retries of media uploads.
type RetryConfig struct {
	MaxRetries        uint64  `toml:"max_retries"`
	InitialIntervalMS int     `toml:"initial_interval_ms"`
	MaxIntervalMS     int     `toml:"max_interval_ms"`
	Multiplier        float64 `toml:"multiplier"`
}

// NewConfig creates a new Config rooted at baseDir with a local sqlite
// database, filesystem media store and default key and session paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Media: MediaConfig{
			Type:   "filesystem",
			Name:   "local",
			FSRoot: filepath.Join(baseDir, "media"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "mapory.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "mapory.key"),
		},
		Geocoder: GeocoderConfig{Type: "none"},
		Auth: AuthConfig{
			SessionPath:   filepath.Join(baseDir, "session.toml"),
			SecretPath:    filepath.Join(baseDir, "keys", "session.secret"),
			TokenTTLHours: 24 * 30,
		},
		Feed: FeedConfig{PageSize: 5},
		Retry: RetryConfig{
			MaxRetries:        3,
			InitialIntervalMS: 500,
			MaxIntervalMS:     5000,
			Multiplier:        1.5,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to path, creating parent directories.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
// It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
