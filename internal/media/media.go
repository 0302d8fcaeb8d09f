// Package media provides the blob stores that hold location media.
package media

import (
	"fmt"
	"strings"
)

// validateKey rejects keys that could escape a store's namespace.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty media key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("invalid media key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid media key %q", key)
		}
	}
	return nil
}

// trimURL strips prefix from url, failing if url does not belong to the store.
func trimURL(url, prefix string) (string, error) {
	key, ok := strings.CutPrefix(url, prefix)
	if !ok {
		return "", fmt.Errorf("media url %q does not belong to this store", url)
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	return key, nil
}
