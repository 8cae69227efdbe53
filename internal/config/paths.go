package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// appName names the config file and the XDG directories.
const appName = "recall"

// ResolveConfigPath returns the first existing config file among
// $XDG_CONFIG_HOME/recall/recall.yaml (or ~/.config/recall/recall.yaml)
// and ./recall.yaml.
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, appName, appName+".yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", appName, appName+".yaml"))
	}

	candidates = append(candidates, appName+".yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("config: no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns $XDG_DATA_HOME/recall, or ~/.local/share/recall.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}
