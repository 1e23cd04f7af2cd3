// Package config loads nv-swaptop settings.
//
// Configuration comes from a single optional YAML file named by the --config
// flag or the NV_SWAPTOP_CONFIG environment variable. There is no discovery:
// without either, the built-in defaults apply. Command-line flags override
// file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/srodi/nv-swaptop/pkg/parse"
	"github.com/srodi/nv-swaptop/pkg/types"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "NV_SWAPTOP_CONFIG"

// Refresh interval bounds and the step used by interactive adjustment.
const (
	MinRefreshInterval = 100 * time.Millisecond
	MaxRefreshInterval = 10 * time.Second
	IntervalStep       = 100 * time.Millisecond
)

// Config is the complete nv-swaptop configuration.
type Config struct {
	// RefreshInterval is the tick period and the TTL of swap data.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// Units is KB, MB or GB.
	Units string `yaml:"units"`

	// Sort is swap, gpu_mem, numa or name.
	Sort string `yaml:"sort"`

	// Aggregate groups swap processes by name.
	Aggregate bool `yaml:"aggregate"`

	// Filter keeps only processes whose name contains it.
	Filter string `yaml:"filter"`

	// CommandTimeout bounds each external command.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// NumaMaxProcesses is how many of the heaviest swap users get their
	// numa_maps sampled, in addition to GPU processes.
	NumaMaxProcesses int `yaml:"numa_max_processes"`

	TTL      TTLConfig      `yaml:"ttl"`
	Classify ClassifyConfig `yaml:"classify"`
	Log      LogConfig      `yaml:"log"`
}

// TTLConfig sets the freshness window of the slower sources.
type TTLConfig struct {
	NumaTopology time.Duration `yaml:"numa_topology"`
	NumaMaps     time.Duration `yaml:"numa_maps"`
	GPUDevices   time.Duration `yaml:"gpu_devices"`
	GPUProcesses time.Duration `yaml:"gpu_processes"`
}

// ClassifyConfig is the policy used to recognise GPU HBM nodes.
type ClassifyConfig struct {
	// Signals are tried in order: bus_hint, memory_size.
	Signals []string `yaml:"signals"`

	// HBMMin and HBMMax bound the memory_size signal, e.g. "64 GiB".
	HBMMin string `yaml:"hbm_min"`
	HBMMax string `yaml:"hbm_max"`
}

// LogConfig configures the log file. The terminal belongs to the UI, so
// logging is off unless File is set.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RefreshInterval:  time.Second,
		Units:            "KB",
		Sort:             "swap",
		CommandTimeout:   5 * time.Second,
		NumaMaxProcesses: types.DefaultNumaProcesses,
		TTL: TTLConfig{
			NumaTopology: 30 * time.Second,
			NumaMaps:     5 * time.Second,
			GPUDevices:   10 * time.Second,
			GPUProcesses: time.Second,
		},
		Classify: ClassifyConfig{
			Signals: []string{string(parse.SignalBusHint), string(parse.SignalMemorySize)},
			HBMMin:  "64 GiB",
			HBMMax:  "256 GiB",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the file at path, or at $NV_SWAPTOP_CONFIG when path is empty.
// With neither set it returns Default().
func Load(path string) (*Config, string, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), "", nil
	}
	cfg, err := LoadFile(path)
	return cfg, path, err
}

// LoadFile overlays the YAML file at path on Default().
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.RefreshInterval < MinRefreshInterval || c.RefreshInterval > MaxRefreshInterval {
		errs = append(errs, fmt.Errorf("refresh_interval %v outside [%v, %v]", c.RefreshInterval, MinRefreshInterval, MaxRefreshInterval))
	}
	if _, err := types.ParseUnits(c.Units); err != nil {
		errs = append(errs, err)
	}
	if _, err := types.ParseSortColumn(c.Sort); err != nil {
		errs = append(errs, err)
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("command_timeout must be positive, got %v", c.CommandTimeout))
	}
	if c.NumaMaxProcesses < 0 {
		errs = append(errs, fmt.Errorf("numa_max_processes must not be negative, got %d", c.NumaMaxProcesses))
	}
	for name, ttl := range map[string]time.Duration{
		"ttl.numa_topology": c.TTL.NumaTopology,
		"ttl.numa_maps":     c.TTL.NumaMaps,
		"ttl.gpu_devices":   c.TTL.GPUDevices,
		"ttl.gpu_processes": c.TTL.GPUProcesses,
	} {
		if ttl < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %v", name, ttl))
		}
	}
	if _, err := c.ClassifyPolicy(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	return errors.Join(errs...)
}

// ParsedUnits returns the display units, KB when invalid.
func (c *Config) ParsedUnits() types.Units {
	u, _ := types.ParseUnits(c.Units)
	return u
}

// ParsedSort returns the sort column, swap when invalid.
func (c *Config) ParsedSort() types.SortColumn {
	s, _ := types.ParseSortColumn(c.Sort)
	return s
}

// ClassifyPolicy converts the classify section into a parse policy.
func (c *Config) ClassifyPolicy() (parse.ClassifyPolicy, error) {
	policy := parse.ClassifyPolicy{}
	for _, name := range c.Classify.Signals {
		sig, ok := parse.ParseSignal(name)
		if !ok {
			return parse.ClassifyPolicy{}, fmt.Errorf("classify.signals: unknown signal %q", name)
		}
		policy.Signals = append(policy.Signals, sig)
	}
	var err error
	if policy.HBMMinBytes, err = humanize.ParseBytes(c.Classify.HBMMin); err != nil {
		return parse.ClassifyPolicy{}, fmt.Errorf("classify.hbm_min: %w", err)
	}
	if policy.HBMMaxBytes, err = humanize.ParseBytes(c.Classify.HBMMax); err != nil {
		return parse.ClassifyPolicy{}, fmt.Errorf("classify.hbm_max: %w", err)
	}
	if policy.HBMMinBytes > policy.HBMMaxBytes {
		return parse.ClassifyPolicy{}, fmt.Errorf("classify.hbm_min %s above hbm_max %s", c.Classify.HBMMin, c.Classify.HBMMax)
	}
	return policy, nil
}

// ClampInterval bounds d to the supported refresh range.
func ClampInterval(d time.Duration) time.Duration {
	return min(max(d, MinRefreshInterval), MaxRefreshInterval)
}
