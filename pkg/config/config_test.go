package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, "/tmp/mini-cluster-worker/cache", cfg.CacheDir())
	assert.Equal(t, "/tmp/mini-cluster-worker/cache/db.sqlite", cfg.DatabasePath())
	assert.Equal(t, "/tmp/mini-cluster-worker/jobs.db", cfg.LedgerPath())
	assert.True(t, cfg.HonorShutdown)
	assert.Equal(t, 4, cfg.Cache.FetchConcurrency)
}

func TestLoad_AllFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	content := `listen:
  host: 0.0.0.0
  port: 9000
data_dir: /var/lib/minicluster
storage:
  region: eu-west-1
  endpoint: http://localhost:9001
  use_path_style: true
  max_attempts: 5
cache:
  fetch_concurrency: 8
log:
  level: debug
  json: true
metrics_addr: 127.0.0.1:9100
honor_shutdown: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, "/var/lib/minicluster", cfg.DataDir)
	assert.Equal(t, "eu-west-1", cfg.Storage.Region)
	assert.Equal(t, "http://localhost:9001", cfg.Storage.Endpoint)
	assert.True(t, cfg.Storage.UsePathStyle)
	assert.Equal(t, 5, cfg.Storage.MaxAttempts)
	assert.Equal(t, 8, cfg.Cache.FetchConcurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.False(t, cfg.HonorShutdown)

	s3 := cfg.S3()
	assert.Equal(t, "eu-west-1", s3.Region)
	assert.True(t, s3.UsePathStyle)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("listen:\n  port: 7000\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Listen.Port)
	assert.Equal(t, "127.0.0.1", cfg.Listen.Host)
	assert.Equal(t, "/tmp/mini-cluster-worker", cfg.DataDir)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	assert.True(t, cfg.HonorShutdown)
}

func TestLoad_NotFound(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.True(t, errors.Is(err, ErrConfigNotFound))
	require.NotNil(t, cfg)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("listen: [not, a, map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfigNotFound))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "port zero", modify: func(c *Config) { c.Listen.Port = 0 }},
		{name: "port too large", modify: func(c *Config) { c.Listen.Port = 70000 }},
		{name: "empty data dir", modify: func(c *Config) { c.DataDir = "" }},
		{name: "zero concurrency", modify: func(c *Config) { c.Cache.FetchConcurrency = 0 }},
		{name: "negative attempts", modify: func(c *Config) { c.Storage.MaxAttempts = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
