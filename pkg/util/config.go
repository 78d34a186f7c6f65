// Package util provides configuration file helpers for logcheck.
package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/supporttools/logcheck/pkg/types"
)

// Format is a configuration file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported config file extension %q (use .yaml, .yml, .json or .toml)", filepath.Ext(path))
	}
}

// ReadConfig parses a check configuration file without applying defaults, so
// command line flags can still be layered on top. Environment variables are
// expanded in path fields only; match expressions may legitimately contain
// "$".
func ReadConfig(path string) (*types.CheckConfig, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config types.CheckConfig
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &config)
	case FormatJSON:
		err = json.Unmarshal(data, &config)
	case FormatTOML:
		err = toml.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.SubstituteEnvVars()
	return &config, nil
}

// LoadConfig reads a configuration file, applies defaults and validates it.
func LoadConfig(path string) (*types.CheckConfig, error) {
	config, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// MarshalConfig encodes config in the given format.
func MarshalConfig(config *types.CheckConfig, format Format) ([]byte, error) {
	var data []byte
	var err error

	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(config)
	case FormatJSON:
		data, err = json.MarshalIndent(config, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	case FormatTOML:
		data, err = toml.Marshal(config)
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// SaveConfig writes config to path, in the format named by its extension.
func SaveConfig(config *types.CheckConfig, path string) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}

	data, err := MarshalConfig(config, format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
