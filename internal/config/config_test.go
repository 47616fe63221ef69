package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "PRADONSITOS", cfg.Ledger.AssetCode)
	assert.Equal(t, "ciudadano", cfg.Business.DefaultRole)
	assert.Equal(t, 8*time.Second, cfg.Business.SettleWait())
	assert.Equal(t, 30*time.Second, cfg.Ledger.Timeout())
	assert.False(t, cfg.Server.IsDebug())
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 8080
  mode: "debug"
ledger:
  asset_code: "ECO"
  timeout_seconds: 5
business:
  settle_wait_millis: 250
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("ISSUER_PUBLIC_KEY", "GISSUER")
	t.Setenv("LEDGER_DISTRIBUTION_ACCOUNT", "GDIST")
	t.Setenv("CONTRACT_ID", "CCONTRACT")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.IsDebug())
	assert.Equal(t, "ECO", cfg.Ledger.AssetCode)
	assert.Equal(t, 5*time.Second, cfg.Ledger.Timeout())
	assert.Equal(t, 250*time.Millisecond, cfg.Business.SettleWait())
	assert.Equal(t, "GISSUER", cfg.Ledger.IssuerPublicKey)
	assert.Equal(t, "GDIST", cfg.Ledger.DistributionAccount)
	assert.Equal(t, "CCONTRACT", cfg.Contract.ContractID)
}

func TestDurations_FallBackWhenUnset(t *testing.T) {
	var cfg Config
	assert.Equal(t, 30*time.Second, cfg.Ledger.Timeout())
	assert.Equal(t, time.Duration(0), cfg.Business.SettleWait())
	assert.Equal(t, 30*time.Second, cfg.Redis.SnapshotTTL())
}
