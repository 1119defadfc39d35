package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaultPoolSize(t *testing.T) {
	path := writeConfig(t, `
[telegram]
token = bot-token

[xmpp]
host = xmpp.example.org
login = bridge@example.org
password = hunter2
upload_base_url = https://upload.example.org/bridge

[general]
key = s3cr3t
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "bot-token", cfg.Telegram.Token)
	require.Equal(t, 16, cfg.XMPP.ActorsPoolSizeLimit)
}

func TestLoadHonorsExplicitPoolSize(t *testing.T) {
	path := writeConfig(t, `
[telegram]
token = bot-token

[xmpp]
host = xmpp.example.org
login = bridge@example.org
password = hunter2
upload_base_url = https://upload.example.org/bridge
actors_pool_size_limit = 4

[general]
key = s3cr3t
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.XMPP.ActorsPoolSizeLimit)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
[telegram]
token =

[xmpp]
host = xmpp.example.org
login = bridge@example.org
password = hunter2
upload_base_url = https://upload.example.org/bridge

[general]
key = s3cr3t
`)

	_, err := Load(path)
	require.Error(t, err)
}
