package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/resale-engine.db", cfg.DatabaseDSN())
	assert.Equal(t, "0.0.0.0:8090", cfg.Addr())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
artifacts:
  manifest: bundle/manifest.yaml
cache:
  ttl: 30s
batch:
  workers: 2
  chunk_size: 64
`), 0o644))

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DATABASE_URL", "postgres://user:pw@db:5432/prices?sslmode=disable")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("BATCH_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "bundle", "manifest.yaml"), cfg.Artifacts.Manifest)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://user:pw@db:5432/prices?sslmode=disable", cfg.DatabaseDSN())
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.Equal(t, 64, cfg.Batch.ChunkSize)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
}

func TestLoad_ManifestEnvWins(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ARTIFACT_MANIFEST", "/srv/artifacts/manifest.yaml")
	t.Setenv("NATS_URL", "nats://bus:4222")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/artifacts/manifest.yaml", cfg.Artifacts.Manifest)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "nats://bus:4222", cfg.Events.URL)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [1, 2"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"manifest", func(c *Config) { c.Artifacts.Manifest = "" }, "artifacts.manifest"},
		{"db driver", func(c *Config) { c.Database.Driver = "mysql" }, "invalid database driver"},
		{"postgres dsn", func(c *Config) { c.Database.Driver = "postgres" }, "requires a dsn"},
		{"cache driver", func(c *Config) { c.Cache.Driver = "memcached" }, "invalid cache driver"},
		{"workers", func(c *Config) { c.Batch.Workers = 0 }, "batch.workers"},
		{"chunk", func(c *Config) { c.Batch.ChunkSize = 0 }, "batch.chunk_size"},
		{"rate", func(c *Config) { c.RateLimit.RPS = 0 }, "rate_limit"},
		{"subject", func(c *Config) { c.Events.Enabled = true; c.Events.Subject = "" }, "events.subject"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.errMsg)
		})
	}
}

func TestResolveRelativePath(t *testing.T) {
	assert.Equal(t, "/etc/engine/artifacts/m.yaml", ResolveRelativePath("/etc/engine/config.yaml", "artifacts/m.yaml"))
	assert.Equal(t, "/abs/m.yaml", ResolveRelativePath("/etc/engine/config.yaml", "/abs/m.yaml"))
}
