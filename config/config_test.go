package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{Environ: []string{
		"RESTFUL_NAME=demo",
		"RESTFUL_BIND_HOST=127.0.0.1",
		"RESTFUL_BIND_PORT=8000",
	}})
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, "127.0.0.1:8000", cfg.Bind.Address())
	assert.Equal(t, "sqlite3", cfg.DB.Driver)
	assert.Equal(t, DefaultDatabaseURL, cfg.DB.URL)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 7200*time.Second, cfg.Auth.TokenDuration)
	assert.Equal(t, 1800*time.Second, cfg.Auth.TokenCacheMax)
	assert.Equal(t, "memory", cfg.Cache.Cache().Backend)
}

func TestLoad_MergeOrder(t *testing.T) {
	dir := t.TempDir()
	file := write(t, filepath.Join(dir, "app.yaml"), `
name: from-file
bind:
  host: 0.0.0.0
  port: 8080
logger:
  level: warn
db:
  driver: postgres
`)
	write(t, filepath.Join(dir, "conf.d", "10-db.json"), `{"db": {"url": "postgres://dir/one"}}`)
	write(t, filepath.Join(dir, "conf.d", "nested", "20-cache.toml"), "[cache]\nbackend = \"redis\"\n\n[cache.redis]\nurl = \"redis://localhost:6379/1\"\n")
	write(t, filepath.Join(dir, "conf.d", "README.md"), "ignored")
	envFile := write(t, filepath.Join(dir, ".env"), "RESTFUL_LOGGER_LEVEL=debug\nRESTFUL_AUTH_TOKEN_DURATION=60s\n")

	cfg, err := Load(Options{
		File:    file,
		Dir:     filepath.Join(dir, "conf.d"),
		EnvFile: envFile,
		Environ: []string{
			"RESTFUL_LOGGER_LEVEL=error",
			"RESTFUL_CORS_ALLOWED_ORIGINS=https://a.example,https://b.example",
			"OTHER_NAME=ignored",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.Bind.Address())
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "postgres://dir/one", cfg.DB.URL)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Cache.Redis.URL)
	assert.Equal(t, "error", cfg.Logger.Level, "environment beats .env")
	assert.Equal(t, time.Minute, cfg.Auth.TokenDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_MissingKey(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
		key     string
	}{
		{"no name", []string{"RESTFUL_BIND_HOST=h", "RESTFUL_BIND_PORT=1"}, "name"},
		{"no host", []string{"RESTFUL_NAME=n", "RESTFUL_BIND_PORT=1"}, "bind.host"},
		{"no port", []string{"RESTFUL_NAME=n", "RESTFUL_BIND_HOST=h"}, "bind.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Options{Environ: tt.environ})
			var missing *MissingKeyError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.key, missing.Key)
			assert.Equal(t, `config: attribute "`+tt.key+`" must be set`, err.Error())
		})
	}
}

func TestLoad_BadFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestBindConfig_IPv6(t *testing.T) {
	assert.Equal(t, "[::1]:9000", BindConfig{Host: "::1", Port: 9000}.Address())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{Logger: LoggerConfig{Level: "warn"}})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
	assert.True(t, logger.Core().Enabled(1))

	logger, err = NewLogger(&Config{Debug: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = NewLogger(&Config{Logger: LoggerConfig{Level: "loud"}})
	assert.Error(t, err)
}
