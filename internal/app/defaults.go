package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - WADLIB_CONFIG_PATH: config file location (default: ~/.config/wadlib.toml)
//   - WADLIB_HOME: base directory for wadlib data (default: ~/.local/share/wadlib)
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
		"data_dir":    filepath.Join(baseDir, "data"),
	}, nil
}

// getConfigPath returns the config file path, checking WADLIB_CONFIG_PATH env var first,
// then falling back to the default ~/.config/wadlib.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("WADLIB_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "wadlib.toml"), nil
}

// getBaseDir returns the base directory for wadlib data, checking WADLIB_HOME env var first,
// then falling back to the XDG default ~/.local/share/wadlib.
func getBaseDir() (string, error) {
	if path := os.Getenv("WADLIB_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "wadlib"), nil
}
