package config

import (
	"os"
	"path/filepath"
)

const appDir = "vthlab"

// baseDir resolves an XDG base directory: the env var when set, else
// $HOME joined with fallback, else the working directory.
func baseDir(env string, fallback ...string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// DefaultConfigPath is where vthctl looks for its TOML file
func DefaultConfigPath() string {
	return filepath.Join(baseDir("XDG_CONFIG_HOME", ".config"), appDir, "config.toml")
}

// DefaultDBPath is the SQLite record store used when --db is not given
func DefaultDBPath() string {
	return filepath.Join(baseDir("XDG_DATA_HOME", ".local", "share"), appDir, "records.db")
}
