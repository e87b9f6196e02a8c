package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/sigilgate/internal/config"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, config.SapphireTestnetChainID, cfg.RequiredChainID)
	require.NoError(t, cfg.Validate())

	required, ok := cfg.Chain(cfg.RequiredChainID)
	require.True(t, ok)
	assert.Equal(t, "Oasis Sapphire Testnet", required.Name)
	assert.Equal(t, "TEST", required.NativeCurrency.Symbol)
	assert.Equal(t, uint8(18), required.NativeCurrency.Decimals)
	assert.Equal(t, []string{"https://testnet.sapphire.oasis.dev"}, required.RPCURLs)

	assert.Len(t, cfg.Connectors, 3)
	assert.Equal(t, 100*time.Millisecond, cfg.Probe.SettleDelay)
	assert.Equal(t, time.Second, cfg.Session.ConnectReloadDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Session.DisconnectReloadDelay)
	assert.Equal(t, 24*time.Hour, cfg.Auth.ProofTTL)
}

func TestLoadSave_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := config.Defaults()
	cfg.RequiredChainID = config.SapphireMainnetChainID
	cfg.Auth.Store = "sqlite"
	require.NoError(t, config.Save(cfg, path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.SapphireMainnetChainID, loaded.RequiredChainID)
	assert.Equal(t, "sqlite", loaded.Auth.Store)
	assert.Equal(t, cfg.Probe, loaded.Probe)
	assert.Equal(t, cfg.Chains, loaded.Chains)
}

func TestLoad_DurationStrings(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
probe:
  settle_delay: 250ms
  max_attempts: 2
session:
  connect_reload_delay: 2s
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Probe.SettleDelay)
	assert.Equal(t, 2, cfg.Probe.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Session.ConnectReloadDelay)
	// Untouched fields keep their defaults
	assert.Equal(t, 100*time.Millisecond, cfg.Session.DisconnectReloadDelay)
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, gateerr.ErrConfigNotFound)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chains: [unclosed"), 0o600))

	_, err := config.Load(path)
	require.ErrorIs(t, err, gateerr.ErrConfigInvalid)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"required chain missing", func(c *config.Config) { c.RequiredChainID = 1 }},
		{"no chains", func(c *config.Config) { c.Chains = nil }},
		{"chain without rpc", func(c *config.Config) { c.Chains[0].RPCURLs = nil }},
		{"duplicate connector", func(c *config.Config) { c.Connectors[1].ID = c.Connectors[0].ID }},
		{"empty connector id", func(c *config.Config) { c.Connectors[0].ID = "" }},
		{"unknown kind", func(c *config.Config) { c.Connectors[0].Kind = "ledger" }},
		{"unknown auth store", func(c *config.Config) { c.Auth.Store = "redis" }},
		{"endpoint without host", func(c *config.Config) { c.Agent.Endpoints[0].URL = "not a url" }},
		{"endpoint scheme", func(c *config.Config) { c.Agent.Endpoints[0].URL = "ftp://127.0.0.1:21" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Defaults()
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), gateerr.ErrConfigInvalid)
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("/tmp/gate", "config.yaml"), config.Path("/tmp/gate"))
}

func TestExpandHome(t *testing.T) {
	t.Parallel()
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x/y"), config.ExpandHome("~/x/y"))
	assert.Equal(t, "/abs/path", config.ExpandHome("/abs/path"))
}
