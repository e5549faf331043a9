// Package config loads promptkit settings from defaults, an optional YAML
// file and PROMPTKIT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirName is the per-user directory holding config and database.
const DirName = ".promptkit"

// DefaultConfigDir returns ~/.promptkit.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// DefaultConfigPath returns ~/.promptkit/config.yaml.
func DefaultConfigPath() (string, error) {
	return inConfigDir("config.yaml")
}

// DefaultDatabasePath returns ~/.promptkit/renders.db.
func DefaultDatabasePath() (string, error) {
	return inConfigDir("renders.db")
}

func inConfigDir(name string) (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ExpandPath expands a leading ~ to the user home directory.
func ExpandPath(path string) (string, error) {
	switch {
	case path == "":
		return "", nil
	case path == "~":
		return os.UserHomeDir()
	case strings.HasPrefix(path, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
