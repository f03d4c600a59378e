package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "8080", cfg.App.HTTPPort)
	assert.Equal(t, "50051", cfg.App.GRPCPort)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, RateLimitBackendMemory, cfg.RateLimit.Backend)
	assert.Equal(t, 60, cfg.RateLimit.Requests)
	assert.Equal(t, 60, cfg.RateLimit.WindowSeconds)
	assert.Equal(t, uint32(64*1024), cfg.Hash.MemoryKiB)
	assert.Equal(t, uint8(2), cfg.Hash.Parallelism)
	assert.Equal(t, "uuid", cfg.ID.Format)
	assert.Empty(t, cfg.App.TrustedProxies)
	assert.Equal(t, int64(64<<10), cfg.App.MaxBodyBytes)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_TrustedProxiesFromEnv(t *testing.T) {
	t.Setenv("HTTP_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.10")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.App.TrustedProxies)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := "DB_DRIVER=sqlite\nDB_SQLITE_PATH=/tmp/authn-test.db\nRATE_LIMIT_REQUESTS=5\nID_FORMAT=ksuid\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o600))

	t.Setenv("RATE_LIMIT_REQUESTS", "7")
	t.Setenv("HASH_ITERATIONS", "4")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "/tmp/authn-test.db", cfg.DB.SQLitePath)
	assert.Equal(t, 7, cfg.RateLimit.Requests)
	assert.Equal(t, uint32(4), cfg.Hash.Iterations)
	assert.Equal(t, "ksuid", cfg.ID.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_ProductionLogging(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.True(t, cfg.Logger.EnableSampling)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.DB.Driver = "mysql" }, errorMsg: "unsupported DB_DRIVER"},
		{name: "sqlite without path", mutate: func(c *Config) { c.DB.Driver = DriverSQLite; c.DB.SQLitePath = "" }, errorMsg: "DB_SQLITE_PATH"},
		{name: "unknown backend", mutate: func(c *Config) { c.RateLimit.Backend = "memcached" }, errorMsg: "unsupported RATE_LIMIT_BACKEND"},
		{name: "zero requests", mutate: func(c *Config) { c.RateLimit.Requests = 0 }, errorMsg: "RATE_LIMIT_REQUESTS"},
		{name: "zero window", mutate: func(c *Config) { c.RateLimit.WindowSeconds = 0 }, errorMsg: "RATE_LIMIT_WINDOW_SECONDS"},
		{name: "weak hash", mutate: func(c *Config) { c.Hash.Iterations = 0 }, errorMsg: "invalid hash parameters"},
		{name: "unknown id format", mutate: func(c *Config) { c.ID.Format = "serial" }, errorMsg: "unsupported ID_FORMAT"},
		{name: "bad trusted proxy", mutate: func(c *Config) { c.App.TrustedProxies = []string{"10.0.0.0/33"} }, errorMsg: "HTTP_TRUSTED_PROXIES"},
		{name: "zero body limit", mutate: func(c *Config) { c.App.MaxBodyBytes = 0 }, errorMsg: "HTTP_MAX_BODY_BYTES"},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.App.ShutdownTimeoutSeconds = 0 }, errorMsg: "SHUTDOWN_TIMEOUT_SECONDS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(t.TempDir())
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestConfig_Validate_DisabledRateLimitSkipsBackend(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Backend = ""
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable", c.DSN())
}
