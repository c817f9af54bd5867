package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - SWCAT_CONFIG_PATH: config file location (default: ~/.config/swcat.toml)
//   - SWCAT_HOME: base directory for swcat data (default: ~/.local/share/swcat)
//   - SWCAT_RECORDINGS_DIR: SuperWhisper recordings directory
//     (default: ~/Documents/superwhisper/recordings)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	recordingsDir, err := getRecordingsDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path":    configPath,
		"base_dir":       baseDir,
		"log_dir":        filepath.Join(baseDir, "log"),
		"recordings_dir": recordingsDir,
	}, nil
}

// getConfigPath returns the config file path, checking SWCAT_CONFIG_PATH env var
// first, then falling back to the default ~/.config/swcat.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("SWCAT_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "swcat.toml"), nil
}

// getBaseDir returns the base directory for swcat data, checking SWCAT_HOME env
// var first, then falling back to the XDG default ~/.local/share/swcat.
func getBaseDir() (string, error) {
	if path := os.Getenv("SWCAT_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "swcat"), nil
}

// getRecordingsDir returns the SuperWhisper recordings directory, checking
// SWCAT_RECORDINGS_DIR env var first.
func getRecordingsDir() (string, error) {
	if path := os.Getenv("SWCAT_RECORDINGS_DIR"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, "Documents", "superwhisper", "recordings"), nil
}
