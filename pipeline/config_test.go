package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	conf := DefaultConfig()
	assert.Equal(t, 8, conf.CycleFitOrder)
	assert.Equal(t, 5, conf.TrendFitOrder)
	assert.Equal(t, 0.3, conf.LowessFraction)
	assert.Equal(t, 3, conf.LowessIterations)
	assert.Equal(t, "*.csv", conf.Pattern)
	assert.NoError(t, conf.Validate())
}

func TestParseConfigFileEmptyPath(t *testing.T) {
	conf, err := ParseConfigFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), conf)
}

func TestParseConfigFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cycle-fit-order: 6\nlowess-fraction: 0.5\n"), 0644))

	conf, err := ParseConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 6, conf.CycleFitOrder)
	assert.Equal(t, 0.5, conf.LowessFraction)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, conf.TrendFitOrder)
	assert.Equal(t, "*.csv", conf.Pattern)
}

func TestParseConfigFileRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lowess-fraction: 2\n"), 0644))

	_, err := ParseConfigFile(path)
	assert.Error(t, err)
}

func TestParseConfigFileMissing(t *testing.T) {
	_, err := ParseConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.CycleFitOrder = 0 },
		func(c *Config) { c.TrendFitOrder = -1 },
		func(c *Config) { c.LowessFraction = 0 },
		func(c *Config) { c.LowessIterations = -1 },
		func(c *Config) { c.Pattern = "" },
		func(c *Config) { c.Workers = 0 },
	} {
		conf := DefaultConfig()
		mutate(&conf)
		assert.Error(t, conf.Validate())
	}
}

func TestTrendOptions(t *testing.T) {
	conf := DefaultConfig()
	conf.TrendFitOrder = 4
	opts := conf.TrendOptions()
	assert.Equal(t, 4, opts.FitOrder)
	assert.Equal(t, conf.LowessFraction, opts.LowessFraction)
	assert.Equal(t, conf.LowessIterations, opts.LowessIterations)
}
