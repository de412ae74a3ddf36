package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// DefaultPaths returns the conventional config locations.
// Global: ~/.deliverygate/config.json
// Project: .deliverygate/config.json (relative to cwd)
func DefaultPaths() (globalPath, projectPath string, err error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".deliverygate", "config.json"), filepath.Join(".deliverygate", "config.json"), nil
}

// LoadDefault loads configuration from the conventional paths.
func LoadDefault() (*Config, error) {
	globalPath, projectPath, err := DefaultPaths()
	if err != nil {
		return nil, err
	}
	return Load(globalPath, projectPath)
}

// DatabasePath returns the database path with a leading "~/" expanded.
func (c *Config) DatabasePath() (string, error) {
	p := c.Database.Path
	if !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, p[2:]), nil
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Zero values in the file leave the base untouched.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Database.Path != "" {
		base.Database.Path = loaded.Database.Path
	}

	if loaded.Portfolio.Concurrency > 0 {
		base.Portfolio.Concurrency = loaded.Portfolio.Concurrency
	}
	if loaded.Portfolio.RefreshSeconds > 0 {
		base.Portfolio.RefreshSeconds = loaded.Portfolio.RefreshSeconds
	}
	if loaded.Portfolio.RecordUnchanged {
		base.Portfolio.RecordUnchanged = true
	}

	if loaded.Retry.InitialIntervalMS > 0 {
		base.Retry.InitialIntervalMS = loaded.Retry.InitialIntervalMS
	}
	if loaded.Retry.MaxIntervalMS > 0 {
		base.Retry.MaxIntervalMS = loaded.Retry.MaxIntervalMS
	}
	if loaded.Retry.MaxElapsedMS > 0 {
		base.Retry.MaxElapsedMS = loaded.Retry.MaxElapsedMS
	}

	if loaded.Breaker.ConsecutiveFailures > 0 {
		base.Breaker.ConsecutiveFailures = loaded.Breaker.ConsecutiveFailures
	}
	if loaded.Breaker.OpenTimeoutSeconds > 0 {
		base.Breaker.OpenTimeoutSeconds = loaded.Breaker.OpenTimeoutSeconds
	}

	if base.Templates == nil {
		base.Templates = make(map[string]string)
	}
	for name, path := range loaded.Templates {
		base.Templates[name] = path
	}

	return nil
}
