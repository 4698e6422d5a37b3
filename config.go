package screen

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Config for a Session.
type Config struct {
	// Width, Height and Depth are used by Activate for zero arguments. Zero
	// values here select the mode the display was in when the session started.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Depth  int `yaml:"depth"`

	// DoubleBuffer requests two display buffers for every activation.
	DoubleBuffer bool `yaml:"double_buffer"`

	// Metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Registerer for the session metrics; nil keeps them unregistered.
	Registerer prometheus.Registerer `yaml:"-"`
}

// MetricsConfig configures the session metrics.
type MetricsConfig struct {
	// Namespace of the metric names, DefaultMetricsNamespace if empty.
	Namespace string `yaml:"namespace"`
}

// DefaultMetricsNamespace is the default metric namespace.
const DefaultMetricsNamespace = defaultMetricsSpace

// DefaultConfig is used when no config is passed to New.
var DefaultConfig = Config{
	Metrics: MetricsConfig{
		Namespace: DefaultMetricsNamespace,
	},
}

// LoadConfig reads a YAML config file. Omitted settings keep their
// DefaultConfig value.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("screen: failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML config.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("screen: failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the config for impossible settings.
func (c *Config) Validate() error {
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("screen: invalid geometry %dx%d", c.Width, c.Height)
	}
	if (c.Width == 0) != (c.Height == 0) {
		return errors.New("screen: width and height must be set together")
	}
	switch c.Depth {
	case 0, 1, 2, 4, 8, 15, 16, 24, 32:
	default:
		return fmt.Errorf("screen: invalid depth %d", c.Depth)
	}
	return nil
}
