package config

// This file implements the optional YAML config file layer. Values from the
// file overlay the defaults; CLI flags applied afterwards win over both.

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays cfg with values from a YAML file. A missing file is an
// error: the flag was given explicitly, so silence would hide a typo.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
