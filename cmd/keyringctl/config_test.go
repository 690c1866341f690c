package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/pgp-seed-backup/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keyringctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.Derivation.SeedPhraseLength)
	assert.Equal(t, "backup@localhost", cfg.Derivation.SpecialIdentities[interfaces.RoleBackup])
	assert.Equal(t, "keyring.db", filepath.Base(cfg.storePath()))

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), true)
	assert.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/keyring
derivation:
  seed_phrase_length: 12
  special_identities:
    backup: backups@example.com
server:
  srv: _backup._tcp.example.com
  scheme: https
`)
	cfg, err := loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/keyring", cfg.DataDir)
	assert.Equal(t, 12, cfg.Derivation.SeedPhraseLength)
	assert.Equal(t, "backups@example.com", cfg.Derivation.SpecialIdentities[interfaces.RoleBackup])
	assert.Equal(t, "_backup._tcp.example.com", cfg.Server.SRV)
	assert.Equal(t, "https", cfg.Server.Scheme)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "derivation: [unterminated"},
		{"bad length", "derivation:\n  seed_phrase_length: 13\n"},
		{"unknown role", "derivation:\n  special_identities:\n    backup: a@example.com\n    archive: b@example.com\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.content), true)
			assert.ErrorIs(t, err, interfaces.ErrMalformedInput)
		})
	}
}
