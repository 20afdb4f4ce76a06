package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML decoding. Durations are strings in the
// file ("5s", "250ms") because yaml.v3 has no native time.Duration support.
type fileConfig struct {
	Config        `yaml:",inline"`
	RetryInterval string `yaml:"retryInterval"`
}

// LoadFile reads a YAML configuration file, applies defaults and validates
// the result.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	conf := fc.Config
	if fc.RetryInterval != "" {
		d, err := time.ParseDuration(fc.RetryInterval)
		if err != nil {
			return nil, fmt.Errorf("parse retryInterval: %w", err)
		}
		conf.RetryInterval = d
	}

	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
