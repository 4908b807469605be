package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Handler.ServerAddr)
	assert.Equal(t, 10*time.Second, cfg.Handler.ShutdownTimeout)
	assert.Equal(t, 5*time.Second, cfg.Store.QueryTimeout)
	assert.Equal(t, "info", cfg.Logger.LogLevel)
	assert.False(t, cfg.Service.RequireDifferenceApproval)
	assert.Empty(t, cfg.Hook.WebhookURL)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poscashup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
handler:
  server_addr: ":9090"
store:
  dsn: postgres://cashup@localhost/cashup
  query_timeout: 2s
service:
  require_difference_approval: true
hook:
  webhook_url: http://erp.local/hooks
`), 0o600))

	// окружение важнее файла
	t.Setenv("CASHUP_HANDLER_SERVER_ADDR", ":7070")
	t.Setenv("CASHUP_AUTH_SECRET", "s3cret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Handler.ServerAddr)
	assert.Equal(t, "postgres://cashup@localhost/cashup", cfg.Store.DBDsn)
	assert.Equal(t, 2*time.Second, cfg.Store.QueryTimeout)
	assert.Equal(t, 10, cfg.Store.MaxOpenConns)
	assert.True(t, cfg.Service.RequireDifferenceApproval)
	assert.Equal(t, "http://erp.local/hooks", cfg.Hook.WebhookURL)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
