package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assetfix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/thedaily", cfg.Site.BasePath)
	assert.Equal(t, "_", cfg.Site.AssetPrefix)
	assert.Equal(t, []string{".html"}, cfg.Site.Extensions)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, `
configVersion: 1
site:
  distDir: build/dist
  basePath: /custom-base
workers: 2
watch:
  debounce: 50ms
logging:
  format: json
  changeLog: logs/changes.jsonl
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	dir := filepath.Dir(path)
	assert.Equal(t, dir, cfg.BaseDir())
	assert.Equal(t, filepath.Join(dir, "build/dist"), cfg.ResolvePath(cfg.Site.DistDir))
	assert.Equal(t, "/custom-base", cfg.Site.BasePath)
	assert.Equal(t, "_", cfg.Site.AssetPrefix)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, FormatJSON, cfg.Logging.Format)
	assert.Equal(t, "/abs/x", cfg.ResolvePath("/abs/x"))
	assert.Empty(t, cfg.ResolvePath(""))
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "site: [unterminated")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidateCollectsProblems(t *testing.T) {
	path := writeConfig(t, `
configVersion: 2
site:
  basePath: '/the"daily'
  assetPrefix: "a/b"
  extensions: ["html"]
workers: 1000
logging:
  level: loud
  format: xml
metrics:
  enabled: true
  listen: "not an address"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	err = cfg.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems, "configVersion must be 1")
	assert.Contains(t, verr.Problems, `site.basePath invalid: "/the\"daily"`)
	assert.Contains(t, verr.Problems, `site.extensions[0] "html" must start with '.'`)
	assert.Contains(t, verr.Problems, "workers must be between 1 and 256")
	assert.Contains(t, verr.Problems, "logging.level must be debug|info|warn|error")
	assert.Contains(t, verr.Problems, "logging.format must be text|json")
	assert.IsIncreasing(t, verr.Problems)
}

func TestValidateAcceptsURLBasePath(t *testing.T) {
	cfg := Default()
	cfg.Site.BasePath = "https://cdn.example.com/thedaily/"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsPrefix(t *testing.T) {
	cfg := Default()
	cfg.Site.AssetPrefix = "a/b"

	err := cfg.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{`site.assetPrefix invalid: "a/b"`}, verr.Problems)
}

func TestValidateDistDirMustBeDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "dist")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	cfg := Default()
	cfg.Site.DistDir = file
	require.Error(t, cfg.Validate())

	cfg.Site.DistDir = filepath.Join(dir, "not-built-yet")
	require.NoError(t, cfg.Validate())
}

func TestLoadOrDefaultReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("ASSETFIX_BASE_PATH", "")
	require.NoError(t, os.Unsetenv("ASSETFIX_BASE_PATH"))

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "/thedaily", cfg.Site.BasePath)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ASSETFIX_BASE_PATH=/from-env\n"), 0o600))
	cfg, err = LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "/from-env", cfg.Site.BasePath)
}

func TestLoadOrDefaultRejectsMalformedDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NOT-A-KEY=1\n"), 0o600))

	_, err := LoadOrDefault("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load .env")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"ASSETFIX_BASE_PATH":  "/env-base",
		"ASSETFIX_DIST_DIR":   "out",
		"ASSETFIX_EXTENSIONS": ".html, .htm",
		"ASSETFIX_WORKERS":    "8",
		"ASSETFIX_LOG_LEVEL":  "debug",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "/env-base", cfg.Site.BasePath)
	assert.Equal(t, "out", cfg.Site.DistDir)
	assert.Equal(t, []string{".html", ".htm"}, cfg.Site.Extensions)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)

	env["ASSETFIX_WORKERS"] = "many"
	require.Error(t, cfg.ApplyEnv(lookup))
}

// chdir mirrors testing.T.Chdir (go1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
