package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "ASSETFIX_"

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.baseDir = filepath.Dir(absPath)
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadOrDefault loads path when set and falls back to Default otherwise.
// A .env file in the working directory is read first (if present), then
// ASSETFIX_* variables override file values.
func LoadOrDefault(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv exports the variables in file without overriding the process
// environment. A missing file is not an error.
func loadDotEnv(file string) error {
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", file, err)
	}
	return nil
}

// ApplyEnv overrides fields from ASSETFIX_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envPrefix + "DIST_DIR"); ok && v != "" {
		c.Site.DistDir = v
	}
	if v, ok := lookup(envPrefix + "BASE_PATH"); ok && v != "" {
		c.Site.BasePath = v
	}
	if v, ok := lookup(envPrefix + "ASSET_PREFIX"); ok && v != "" {
		c.Site.AssetPrefix = v
	}
	if v, ok := lookup(envPrefix + "EXTENSIONS"); ok && v != "" {
		var exts []string
		for _, ext := range strings.Split(v, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				exts = append(exts, ext)
			}
		}
		c.Site.Extensions = exts
	}
	if v, ok := lookup(envPrefix + "WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sWORKERS: %w", envPrefix, err)
		}
		c.Workers = n
	}
	if v, ok := lookup(envPrefix + "LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(envPrefix + "LOG_FORMAT"); ok && v != "" {
		c.Logging.Format = v
	}
	return nil
}

func (c *Config) resolvePath(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	base := c.baseDir
	if base == "" {
		base = "."
	}
	return filepath.Join(base, p)
}
