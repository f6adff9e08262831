package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noDotEnv(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PYSHARK_APP_TIMEZONE", "UTC")

	cfg, err := Load(noDotEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "pyshark", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "pyshark_progress", cfg.Store.Key)
	assert.Equal(t, 3*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 1, cfg.Store.BreakerSuccesses)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "00:00", cfg.Scheduler.RolloverAt)
	assert.Equal(t, "03:00", cfg.Scheduler.BackupAt)
	assert.False(t, cfg.Backup.Enabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PYSHARK_APP_TIMEZONE", "UTC")
	t.Setenv("PYSHARK_APP_ENV", "production")
	t.Setenv("PYSHARK_STORE_BACKEND", "memory")
	t.Setenv("PYSHARK_STORE_KEY", "custom_key")
	t.Setenv("PYSHARK_STORE_TIMEOUT", "250ms")
	t.Setenv("PYSHARK_HTTP_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("PYSHARK_BACKUP_ENDPOINT", "localhost:9000")

	cfg, err := Load(noDotEnv(t))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "custom_key", cfg.Store.Key)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.Timeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.HTTP.AllowedOrigins)
	assert.True(t, cfg.Backup.Enabled())
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PYSHARK_STORE_KEY=from_file\nPYSHARK_APP_TIMEZONE=UTC\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("PYSHARK_STORE_KEY")
		os.Unsetenv("PYSHARK_APP_TIMEZONE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_file", cfg.Store.Key)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("PYSHARK_APP_TIMEZONE", "Mars/Olympus")

	_, err := Load(noDotEnv(t))
	assert.Error(t, err)
}

func TestValidate_CollectsErrors(t *testing.T) {
	t.Setenv("PYSHARK_APP_TIMEZONE", "UTC")
	cfg, err := Load(noDotEnv(t))
	require.NoError(t, err)

	cfg.Store.Backend = "floppy"
	cfg.Store.Key = ""
	cfg.Scheduler.RolloverAt = "25:00"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration errors:")
	assert.Contains(t, err.Error(), "PYSHARK_STORE_BACKEND")
	assert.Contains(t, err.Error(), "PYSHARK_STORE_KEY is required")
	assert.Contains(t, err.Error(), "PYSHARK_SCHEDULER_ROLLOVER_AT")
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	t.Setenv("PYSHARK_APP_TIMEZONE", "UTC")
	t.Setenv("PYSHARK_STORE_BACKEND", "postgres")

	_, err := Load(noDotEnv(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PYSHARK_STORE_POSTGRES_URL")
}

func TestLocation_ZeroConfig(t *testing.T) {
	assert.Equal(t, time.UTC, (&Config{}).Location())
}
