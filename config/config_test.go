package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const admin = "0x00000000000000000000000000000000000000ad"

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_ADMIN", admin)
	t.Setenv("LEDGER_PROTOCOL_FEE_BPS", "75")
	t.Setenv("SERVER_PORT", "9999")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, admin, cfg.AdminAddress)
	assert.Equal(t, admin, cfg.FeeAdminAddress)
	assert.Equal(t, admin, cfg.FeeRecipientAddress)
	assert.Equal(t, uint32(75), cfg.ProtocolFeeBps)
	assert.Equal(t, 10*time.Second, cfg.RateLimitWindow)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("LEDGER_ADMIN", admin)
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("journal:\n  path: /tmp/j.db\nserver:\n  environment: production\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/j.db", cfg.JournalPath)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
