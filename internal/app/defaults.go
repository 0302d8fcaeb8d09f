package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the locations mapory uses when the config does not say otherwise.
type Defaults struct {
	ConfigPath string
	BaseDir    string
}

// GetDefaults resolves the default paths. Each one is taken from the first
// source that is set:
//
//	config: $MAPORY_CONFIG_PATH, $XDG_CONFIG_HOME/mapory.toml, ~/.config/mapory.toml
//	data:   $MAPORY_HOME, $XDG_DATA_HOME/mapory, ~/.local/share/mapory
func GetDefaults() (Defaults, error) {
	configPath, err := resolvePath("MAPORY_CONFIG_PATH", "XDG_CONFIG_HOME", "mapory.toml", ".config")
	if err != nil {
		return Defaults{}, err
	}
	baseDir, err := resolvePath("MAPORY_HOME", "XDG_DATA_HOME", "mapory", ".local", "share")
	if err != nil {
		return Defaults{}, err
	}
	return Defaults{ConfigPath: configPath, BaseDir: baseDir}, nil
}

// resolvePath returns $override, else $xdgVar/name, else ~/homeParts.../name.
func resolvePath(override, xdgVar, name string, homeParts ...string) (string, error) {
	if p := os.Getenv(override); p != "" {
		return p, nil
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, name), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	parts := append([]string{homeDir}, homeParts...)
	return filepath.Join(append(parts, name)...), nil
}
