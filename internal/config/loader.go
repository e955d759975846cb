package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"gauth/pkg/logging"
)

const (
	userConfigDir  = ".config/gauth"
	configFileName = "config.yaml"
)

// osUserHomeDir is replaced in tests.
var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigPath returns ~/.config/gauth.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from configPath over the defaults, applies
// environment overrides and validates the result. An empty configPath uses
// GetDefaultConfigPath. A missing config.yaml is not an error.
func LoadConfig(configPath string) (Config, error) {
	if configPath == "" {
		var err error
		if configPath, err = GetDefaultConfigPath(); err != nil {
			return Config{}, err
		}
	}

	config := GetDefaultConfig()
	configFilePath := filepath.Join(configPath, configFileName)

	// #nosec G304 -- the path comes from the user's --config-path flag
	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	if err := ParseEnv(&config); err != nil {
		return Config{}, err
	}
	if err := config.expandPaths(configPath); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ParseEnv applies GAUTH_* environment variables to target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// expandPaths resolves "~/" prefixes and fills backend paths that were left
// empty with locations inside the config directory.
func (c *Config) expandPaths(configPath string) error {
	var err error
	if c.Storage.Dir, err = expandHome(c.Storage.Dir); err != nil {
		return err
	}
	if c.Storage.Path, err = expandHome(c.Storage.Path); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			c.Storage.Dir = filepath.Join(configPath, "credentials")
		}
	case BackendSQLite:
		if c.Storage.Path == "" {
			c.Storage.Path = filepath.Join(configPath, "credentials.db")
		}
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not expand %s: %w", path, err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}
