package config

import (
	"os"
	"path/filepath"
)

// ConfigDir returns the eitype configuration directory,
// $XDG_CONFIG_HOME/eitype or ~/.config/eitype.
func ConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "eitype")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "eitype")
	}
	return filepath.Join(home, ".config", "eitype")
}
