// ABOUTME: Per-user preference loading for mitra-chat
// ABOUTME: Optional TOML file layered over the main config; absence is not an error

package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Prefs are lightweight per-user overrides kept separate from the main
// client config, so a shared config file can stay untouched.
type Prefs struct {
	Gateway GatewayPrefs `toml:"gateway"`
	UI      UIPrefs      `toml:"ui"`
}

type GatewayPrefs struct {
	URL string `toml:"url"`
}

type UIPrefs struct {
	NoColor bool `toml:"no_color"`
}

// getPrefsPath returns XDG_CONFIG_HOME/mitra/prefs.toml (or the ~/.config
// equivalent).
func getPrefsPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "prefs.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "mitra", "prefs.toml")
}

// loadPrefs reads the preferences file. A missing or unreadable file yields
// zero-value prefs; preferences never block startup.
func loadPrefs() Prefs {
	var prefs Prefs
	if _, err := toml.DecodeFile(getPrefsPath(), &prefs); err != nil {
		return Prefs{}
	}
	return prefs
}
