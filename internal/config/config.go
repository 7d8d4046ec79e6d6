// Package config loads the strategy/run configuration the CLI and
// server share, in the same load-a-YAML-file-with-defaults idiom the
// GoSim reference config loader uses, re-derived here rather than
// imported since that package lives outside this module's reach.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/minuitgrad/internal/ngk"
)

// Config is the on-disk shape of a strategy/run configuration file.
type Config struct {
	Strategy   StrategyConfig `yaml:"strategy"`
	Workers    int            `yaml:"workers"`
	LogLevel   string         `yaml:"log_level"`
	DataDir    string         `yaml:"data_dir"`
	MultiProc  bool           `yaml:"multi_process"`
}

// StrategyConfig mirrors ngk.Strategy in YAML-friendly form.
type StrategyConfig struct {
	StepTolerance float64 `yaml:"step_tolerance"`
	GradTolerance float64 `yaml:"grad_tolerance"`
	NCycles       int     `yaml:"ncycles"`
	Up            float64 `yaml:"up"`
}

// Default returns the built-in defaults, equivalent to Minuit2's
// strategy 1 plus a workers-per-core worker count.
func Default() Config {
	return Config{
		Strategy: StrategyConfig{
			StepTolerance: 0.5,
			GradTolerance: 0.1,
			NCycles:       2,
			Up:            1.0,
		},
		Workers:   0,
		LogLevel:  "info",
		DataDir:   "./data",
		MultiProc: false,
	}
}

// Load reads a YAML config file, falling back to Default for any field
// the file does not set. A missing path is not an error: Load returns
// Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ToNGK converts the YAML config into an ngk.Strategy/Up pair.
func (c Config) ToNGK() (ngk.Strategy, float64) {
	return ngk.Strategy{
		StepTolerance: c.Strategy.StepTolerance,
		GradTolerance: c.Strategy.GradTolerance,
		NCycles:       c.Strategy.NCycles,
	}, c.Strategy.Up
}
