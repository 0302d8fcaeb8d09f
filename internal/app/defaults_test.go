package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		name       string
		env        map[string]string
		wantConfig string
		wantBase   string
	}{
		{
			name:       "mapory env vars win",
			env:        map[string]string{"MAPORY_CONFIG_PATH": "/custom/config.toml", "MAPORY_HOME": "/custom/mapory", "XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			wantConfig: "/custom/config.toml",
			wantBase:   "/custom/mapory",
		},
		{
			name:       "xdg dirs",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			wantConfig: "/xdg/config/mapory.toml",
			wantBase:   "/xdg/data/mapory",
		},
		{
			name:       "home dir fallback",
			wantConfig: filepath.Join(homeDir, ".config", "mapory.toml"),
			wantBase:   filepath.Join(homeDir, ".local", "share", "mapory"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"MAPORY_CONFIG_PATH", "MAPORY_HOME", "XDG_CONFIG_HOME", "XDG_DATA_HOME"} {
				t.Setenv(k, tt.env[k])
			}

			got, err := GetDefaults()
			if err != nil {
				t.Fatalf("GetDefaults() error = %v", err)
			}
			if got.ConfigPath != tt.wantConfig {
				t.Errorf("ConfigPath = %q, want %q", got.ConfigPath, tt.wantConfig)
			}
			if got.BaseDir != tt.wantBase {
				t.Errorf("BaseDir = %q, want %q", got.BaseDir, tt.wantBase)
			}
		})
	}
}
