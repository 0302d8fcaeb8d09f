// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mapory/internal/config"
)

// Logger receives a warning for every failed attempt that will be retried.
type Logger interface {
	Warn(msg string, args ...any)
}

type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      1.5,
	}
}

// FromConfig converts the [retry] config section, using defaults for unset fields.
func FromConfig(c config.RetryConfig) Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = c.MaxRetries
	if c.InitialIntervalMS > 0 {
		cfg.InitialInterval = time.Duration(c.InitialIntervalMS) * time.Millisecond
	}
	if c.MaxIntervalMS > 0 {
		cfg.MaxInterval = time.Duration(c.MaxIntervalMS) * time.Millisecond
	}
	if c.Multiplier >= 1 {
		cfg.Multiplier = c.Multiplier
	}
	return cfg
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs operation until it succeeds, returns a Permanent error, ctx is
// done, or MaxRetries retries have failed.
func Do(ctx context.Context, log Logger, operationName string, operation func() error, cfg Config) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	bo.Multiplier = cfg.Multiplier
	bo.MaxElapsedTime = 0
	bo.Reset()

	retryable := backoff.WithMaxRetries(bo, cfg.MaxRetries)
	retryableWithContext := backoff.WithContext(retryable, ctx)

	notify := func(err error, t time.Duration) {
		log.Warn(
			"operation failed, retrying",
			"operation", operationName,
			"error", err,
			"next_attempt_in", t.Round(time.Millisecond).String(),
		)
	}

	return backoff.RetryNotify(operation, retryableWithContext, notify)
}
