package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ConfigDir returns the driveclaw data directory (~/.driveclaw), creating
// it if needed.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dir := filepath.Join(home, ".driveclaw")
	os.MkdirAll(dir, 0o755)
	return dir
}

// ConfigPath returns the default config file location.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
