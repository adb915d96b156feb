package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thedaily/assetfix/internal/rewrite"
)

const maxWorkers = 256

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

func (c *Config) Validate() error {
	v := &ValidationError{}

	if c.ConfigVersion != 1 {
		v.Add("configVersion must be 1")
	}

	if strings.TrimSpace(c.Site.DistDir) == "" {
		v.Add("site.distDir is required")
	} else if err := rejectFile(c.resolvePath(c.Site.DistDir)); err != nil {
		v.Add("site.distDir invalid: %v", err)
	}

	if _, err := rewrite.New(rewrite.Options{BasePath: c.Site.BasePath, AssetPrefix: c.Site.AssetPrefix}); err != nil {
		switch {
		case errors.Is(err, rewrite.ErrInvalidBasePath):
			v.Add("site.basePath invalid: %q", c.Site.BasePath)
		case errors.Is(err, rewrite.ErrInvalidPrefix):
			v.Add("site.assetPrefix invalid: %q", c.Site.AssetPrefix)
		default:
			v.Add("site invalid: %v", err)
		}
	}

	if len(c.Site.Extensions) == 0 {
		v.Add("site.extensions must not be empty")
	}
	for i, ext := range c.Site.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			v.Add("site.extensions[%d] %q must start with '.'", i, ext)
		}
	}

	if c.Workers <= 0 || c.Workers > maxWorkers {
		v.Add("workers must be between 1 and %d", maxWorkers)
	}

	if c.Watch.Debounce < 0 {
		v.Add("watch.debounce must be >= 0")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		v.Add("logging.level must be debug|info|warn|error")
	}
	switch c.Logging.Format {
	case FormatText, FormatJSON:
	default:
		v.Add("logging.format must be text|json")
	}
	if c.Logging.ChangeLog != "" {
		if err := rejectDir(c.resolvePath(c.Logging.ChangeLog)); err != nil {
			v.Add("logging.changeLog invalid: %v", err)
		}
	}

	if c.Metrics.Enabled {
		if err := validateListen(c.Metrics.Listen); err != nil {
			v.Add("metrics.listen invalid: %v", err)
		}
	}
	if c.Metrics.Textfile != "" {
		if err := rejectDir(c.resolvePath(c.Metrics.Textfile)); err != nil {
			v.Add("metrics.textfile invalid: %v", err)
		}
	}

	if c.SlugMap.Path != "" {
		if err := rejectDir(c.resolvePath(c.SlugMap.Path)); err != nil {
			v.Add("slugMap.path invalid: %v", err)
		}
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

// rejectFile fails when path exists and is not a directory. A missing path is
// accepted; the build may not have produced it yet.
func rejectFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// rejectDir fails when path exists as a directory or its parent exists as a
// regular file.
func rejectDir(path string) error {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	parent, err := os.Stat(filepath.Dir(path))
	if err == nil && !parent.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(path))
	}
	return nil
}
