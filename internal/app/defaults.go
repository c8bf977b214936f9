package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that override the default locations.
const (
	EnvConfigPath = "RECOLEDGER_CONFIG_PATH"
	EnvHome       = "RECOLEDGER_HOME"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - RECOLEDGER_CONFIG_PATH: config file location (default: ~/.config/recoledger.toml)
//   - RECOLEDGER_HOME: base directory for ledger data (default: ~/.local/share/recoledger)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "recoledger.toml"), nil
}

// getBaseDir falls back to the XDG data location when RECOLEDGER_HOME is unset.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "recoledger"), nil
}
