// Package config loads and validates the sitebuilder project file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	fnderr "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// DefaultFileName is the project file looked up when --config is not given.
const DefaultFileName = "site.yaml"

// Config represents the project configuration.
type Config struct {
	// Title is the site title passed to every template context.
	Title string `yaml:"title"`

	Dirs    DirsConfig     `yaml:"dirs"`
	Ignore  IgnoreConfig   `yaml:"ignore"`
	Serve   ServeConfig    `yaml:"serve"`
	Plugins []PluginConfig `yaml:"plugins,omitempty"`

	// BaseDir is the directory containing the project file. All relative
	// directories resolve against it. Set by Load, not by the file itself.
	BaseDir string `yaml:"-"`
}

// DirsConfig names the project directory layout, relative to the project file.
type DirsConfig struct {
	Source    string `yaml:"source"`
	Templates string `yaml:"templates"`
	Assets    string `yaml:"assets"`
	Output    string `yaml:"output"`
	Cache     string `yaml:"cache"`
}

// IgnoreConfig controls which directory entries scans skip.
type IgnoreConfig struct {
	// Hidden skips dot-entries. Defaults to true.
	Hidden *bool `yaml:"hidden,omitempty"`
	// Patterns are doublestar globs applied to entry names and relative paths.
	Patterns []string `yaml:"patterns,omitempty"`
}

// HiddenEnabled resolves the tri-state Hidden flag with its default.
func (i IgnoreConfig) HiddenEnabled() bool {
	return i.Hidden == nil || *i.Hidden
}

// ServeConfig configures the local preview server.
type ServeConfig struct {
	Port int `yaml:"port"`
	// RescanInterval triggers a periodic full rescan as a fallback for missed
	// filesystem events. Zero disables it.
	RescanInterval time.Duration `yaml:"rescan_interval"`
}

// PluginConfig declares one plugin to activate, with free-form options.
type PluginConfig struct {
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options,omitempty"`
}

// Load reads, expands and validates the project file. Any problem with the
// file itself is a fatal config error.
func Load(configPath string) (*Config, error) {
	// A .env alongside the project file may supply values for ${VAR}
	// expansion. Missing .env is fine.
	if err := godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env")); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment variables from .env")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fnderr.ConfigError("project file not found").
				WithContext("path", configPath).Build()
		}
		return nil, fnderr.Wrap(err, fnderr.CategoryConfig, "reading project file").Fatal().Build()
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fnderr.Wrap(err, fnderr.CategoryConfig, "invalid project file").Fatal().Build()
	}

	base, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, fnderr.Wrap(err, fnderr.CategoryConfig, "resolving project directory").Fatal().Build()
	}
	cfg.BaseDir = base

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Title == "" {
		cfg.Title = "Untitled Site"
	}
	if cfg.Dirs.Source == "" {
		cfg.Dirs.Source = "content"
	}
	if cfg.Dirs.Templates == "" {
		cfg.Dirs.Templates = "templates"
	}
	if cfg.Dirs.Assets == "" {
		cfg.Dirs.Assets = "assets"
	}
	if cfg.Dirs.Output == "" {
		cfg.Dirs.Output = "_site"
	}
	if cfg.Dirs.Cache == "" {
		cfg.Dirs.Cache = ".sitebuilder"
	}
	if cfg.Serve.Port == 0 {
		cfg.Serve.Port = 8080
	}
}

func (c *Config) validate() error {
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return fnderr.ConfigError("serve.port out of range").
			WithContext("port", c.Serve.Port).Build()
	}
	seen := make(map[string]bool, len(c.Plugins))
	for _, p := range c.Plugins {
		if p.Name == "" {
			return fnderr.ConfigError("plugin entry without a name").Build()
		}
		if seen[p.Name] {
			return fnderr.ConfigError("plugin declared twice").
				WithContext("plugin", p.Name).Build()
		}
		seen[p.Name] = true
	}
	return nil
}

// Resolve joins a configured directory with the project base directory.
func (c *Config) Resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.BaseDir, dir)
}

// SourceDir returns the absolute markup source directory.
func (c *Config) SourceDir() string { return c.Resolve(c.Dirs.Source) }

// TemplatesDir returns the absolute templates directory.
func (c *Config) TemplatesDir() string { return c.Resolve(c.Dirs.Templates) }

// AssetsDir returns the absolute assets directory.
func (c *Config) AssetsDir() string { return c.Resolve(c.Dirs.Assets) }

// OutputDir returns the absolute output directory.
func (c *Config) OutputDir() string { return c.Resolve(c.Dirs.Output) }

// CacheDir returns the absolute cache directory.
func (c *Config) CacheDir() string { return c.Resolve(c.Dirs.Cache) }

// PluginOptions returns the options block for a named plugin, or nil.
func (c *Config) PluginOptions(name string) map[string]any {
	for _, p := range c.Plugins {
		if p.Name == name {
			return p.Options
		}
	}
	return nil
}
