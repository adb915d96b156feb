package config

import "time"

type Config struct {
	ConfigVersion int           `yaml:"configVersion"`
	Site          SiteConfig    `yaml:"site"`
	Workers       int           `yaml:"workers"`
	Watch         WatchConfig   `yaml:"watch"`
	SlugMap       SlugMapConfig `yaml:"slugMap"`
	Logging       LoggingConfig `yaml:"logging"`
	Metrics       MetricsConfig `yaml:"metrics"`

	baseDir string `yaml:"-"`
}

type SiteConfig struct {
	DistDir     string   `yaml:"distDir"`
	BasePath    string   `yaml:"basePath"`
	AssetPrefix string   `yaml:"assetPrefix"`
	Extensions  []string `yaml:"extensions"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

type SlugMapConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	ChangeLog string `yaml:"changeLog"`
}

type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Listen   string `yaml:"listen"`
	Textfile string `yaml:"textfile"`
}

const (
	DefaultDistDir  = "dist"
	DefaultWorkers  = 4
	DefaultDebounce = 200 * time.Millisecond

	FormatText = "text"
	FormatJSON = "json"
)

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{ConfigVersion: 1}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Site.DistDir == "" {
		c.Site.DistDir = DefaultDistDir
	}
	if c.Site.BasePath == "" {
		c.Site.BasePath = "/thedaily"
	}
	if c.Site.AssetPrefix == "" {
		c.Site.AssetPrefix = "_"
	}
	if len(c.Site.Extensions) == 0 {
		c.Site.Extensions = []string{".html"}
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = DefaultDebounce
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = FormatText
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9464"
	}
}

func (c *Config) BaseDir() string {
	return c.baseDir
}

func (c *Config) ResolvePath(path string) string {
	return c.resolvePath(path)
}
