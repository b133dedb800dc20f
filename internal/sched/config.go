package sched

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors priosched.yml
type Config struct {
	Implementation string    `yaml:"implementation"` // "monitor" (by default)
	Workers        int       `yaml:"workers"`        // runtime.NumCPU() (by default)
	Tasks          int       `yaml:"tasks"`          // 100 (by default)
	StopPolicy     string    `yaml:"stop_policy"`    // "drain" (by default)
	PollMS         int       `yaml:"poll_ms"`        // 50 (by default)
	TraceCSV       string    `yaml:"trace_csv"`      // empty = no trace
	Log            LogConfig `yaml:"log"`
}

type LogConfig struct {
	Level string `yaml:"level"` // "info" (by default)
	File  string `yaml:"file"`  // empty = console only
}

// DefaultConfig is used when no config file is given.
func DefaultConfig() Config {
	return Config{
		Implementation: DefaultImplementation,
		Workers:        runtime.NumCPU(),
		Tasks:          100,
		StopPolicy:     StopDrain.String(),
		PollMS:         50,
		Log:            LogConfig{Level: "info"},
	}
}

// Load reads YAML and overrides defaults; an empty path or a missing file
// yields the defaults. A file that cannot be parsed is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("sched: read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("sched: parse config %q: %w", path, err)
	}

	cfg.clamp()
	return cfg, nil
}

// clamp replaces nonsensical values with defaults.
func (c *Config) clamp() {
	def := DefaultConfig()
	if c.Implementation == "" {
		c.Implementation = def.Implementation
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.Tasks <= 0 {
		c.Tasks = def.Tasks
	}
	if c.PollMS <= 0 {
		c.PollMS = def.PollMS
	}
	if _, err := ParseStopPolicy(c.StopPolicy); err != nil {
		c.StopPolicy = def.StopPolicy
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// PollInterval is PollMS as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollMS) * time.Millisecond
}

// Policy returns the parsed stop policy, falling back to drain.
func (c Config) Policy() StopPolicy {
	p, err := ParseStopPolicy(c.StopPolicy)
	if err != nil {
		return StopDrain
	}
	return p
}
