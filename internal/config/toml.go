// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Fit     FitConfig     `toml:"fit"`
	Advisor AdvisorConfig `toml:"advisor"`
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
}

// FitConfig maps model fitting settings.
type FitConfig struct {
	MinSamples *int `toml:"min-samples"`
}

// AdvisorConfig maps forecast settings.
type AdvisorConfig struct {
	MaxRounds          *int `toml:"max-rounds"`
	PracticeIterations *int `toml:"practice-iterations"`
}

// ServiceConfig maps refit scheduling settings.
type ServiceConfig struct {
	Deferred   *bool `toml:"deferred"`
	Precompute *bool `toml:"precompute"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Mode *string `toml:"mode"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

func (c FileConfig) validate() error {
	if c.Fit.MinSamples != nil && *c.Fit.MinSamples < 1 {
		return fmt.Errorf("fit.min-samples must be >= 1")
	}
	if c.Advisor.MaxRounds != nil && *c.Advisor.MaxRounds < 1 {
		return fmt.Errorf("advisor.max-rounds must be >= 1")
	}
	if c.Advisor.PracticeIterations != nil && *c.Advisor.PracticeIterations < 1 {
		return fmt.Errorf("advisor.practice-iterations must be >= 1")
	}
	return nil
}
