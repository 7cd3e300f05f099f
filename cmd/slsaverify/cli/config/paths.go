// Package config provides configuration management for the slsaverify CLI.
package config

import (
	"os"
	"path/filepath"
)

// Dir returns the slsaverify config directory.
// Uses XDG_CONFIG_HOME/slsaverify, defaulting to ~/.config/slsaverify.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "slsaverify"), nil
}
