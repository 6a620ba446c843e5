package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Ledger.Backend)
	assert.Equal(t, "bank-ledger.wal", cfg.Ledger.WALPath)
	assert.Equal(t, uint64(4), cfg.Ledger.Retry.MaxRetries)
	assert.Equal(t, 10, cfg.MySQL.MaxOpenConns)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
ledger:
  name: main
  backend: mysql
  retry:
    max_retries: 7
    initial_interval: 20ms
    max_interval: 1s
mysql:
  host: db
  max_open_conns: 50
`)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("LEDGER_NAME", "from-env")
	t.Setenv("SESSION_POOL_SIZE", "3")
	t.Setenv("MYSQL_PASSWORD", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Ledger.Name)
	assert.Equal(t, BackendMySQL, cfg.Ledger.Backend)
	assert.Equal(t, uint64(7), cfg.Ledger.Retry.MaxRetries)
	assert.Equal(t, 20*time.Millisecond, cfg.Ledger.Retry.InitialInterval)
	assert.Equal(t, "db", cfg.MySQL.Host)
	assert.Equal(t, "secret", cfg.MySQL.Password)
	assert.Equal(t, 50, cfg.MySQL.MaxOpenConns)
	assert.Equal(t, int32(3), cfg.Postgres.MaxConns)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "ledger:\n  backend: qldb\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
