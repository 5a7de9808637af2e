// Package config handles clidump.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
)

// FileName is the name looked up by FindAndLoad.
const FileName = "clidump.toml"

// Config represents a clidump.toml file.
type Config struct {
	Output Output `toml:"output"`
	Cache  Cache  `toml:"cache"`
	Log    Log    `toml:"log"`
	IL     IL     `toml:"il"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

// Output configures how results are printed.
type Output struct {
	Format string `toml:"format"` // text, json or cbor
	Color  *bool  `toml:"color"`
}

// Cache configures the image cache.
type Cache struct {
	Capacity int `toml:"capacity"`
}

// Log configures the logger installed by the CLI.
type Log struct {
	Level string `toml:"level"`
}

// IL configures method body listings.
type IL struct {
	Normalize  bool `toml:"normalize"`
	Statements bool `toml:"statements"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Path = path
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a clidump.toml file and loads
// it. Without a file it returns Default.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	if c.Output.Format == "" {
		c.Output.Format = "text"
	}
	if c.Output.Color == nil {
		on := true
		c.Output.Color = &on
	}
	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = 8
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
}

func (c *Config) validate() error {
	switch c.Output.Format {
	case "text", "json", "cbor":
	default:
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return lvl, nil
}

// ColorEnabled reports whether styled output is allowed.
func (c *Config) ColorEnabled() bool {
	return c.Output.Color == nil || *c.Output.Color
}
