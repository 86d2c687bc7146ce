package pipeline

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/TheCacophonyProject/battery-soh/degradation"
	"github.com/TheCacophonyProject/battery-soh/lowess"
)

// DefaultCycleFitOrder is the default order of the per-cycle voltage
// versus state-of-charge polynomial.
const DefaultCycleFitOrder = 8

// Config holds the tunable parameters of the estimation pipeline.
type Config struct {
	CycleFitOrder    int     `yaml:"cycle-fit-order"`
	TrendFitOrder    int     `yaml:"trend-fit-order"`
	LowessFraction   float64 `yaml:"lowess-fraction"`
	LowessIterations int     `yaml:"lowess-iterations"`
	Pattern          string  `yaml:"pattern"`
	Workers          int     `yaml:"workers"`
}

func DefaultConfig() Config {
	return Config{
		CycleFitOrder:    DefaultCycleFitOrder,
		TrendFitOrder:    degradation.DefaultFitOrder,
		LowessFraction:   lowess.DefaultFraction,
		LowessIterations: lowess.DefaultIterations,
		Pattern:          "*.csv",
		Workers:          runtime.NumCPU(),
	}
}

// ParseConfigFile loads the pipeline configuration at path over the
// defaults. An empty path returns the defaults unchanged.
func ParseConfigFile(path string) (Config, error) {
	conf := DefaultConfig()
	if path == "" {
		return conf, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return conf, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("config %s: %w", path, err)
	}
	return conf, nil
}

func (c Config) Validate() error {
	if c.CycleFitOrder < 1 {
		return fmt.Errorf("cycle-fit-order must be positive, got %d", c.CycleFitOrder)
	}
	if c.TrendFitOrder < 1 {
		return fmt.Errorf("trend-fit-order must be positive, got %d", c.TrendFitOrder)
	}
	if c.LowessFraction <= 0 || c.LowessFraction > 1 {
		return fmt.Errorf("lowess-fraction must be in (0, 1], got %v", c.LowessFraction)
	}
	if c.LowessIterations < 0 {
		return fmt.Errorf("lowess-iterations must not be negative, got %d", c.LowessIterations)
	}
	if c.Pattern == "" {
		return fmt.Errorf("pattern must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// TrendOptions returns the degradation estimator options described by
// the config.
func (c Config) TrendOptions() degradation.Options {
	return degradation.Options{
		FitOrder:         c.TrendFitOrder,
		LowessFraction:   c.LowessFraction,
		LowessIterations: c.LowessIterations,
	}
}
