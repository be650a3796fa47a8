package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, DefaultBaseURL, cfg.Backend.BaseURL)
	assert.Equal(t, DefaultModel, cfg.Backend.Model)
	assert.Equal(t, DefaultAPIKey, cfg.Backend.APIKey)
	assert.Equal(t, "json", cfg.Storage.Driver)
	assert.Equal(t, "users.json", cfg.Storage.UsersFile)
	assert.Equal(t, "chat_history.json", cfg.Storage.HistoryFile)
}

func TestLoadFileOverridesAndRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	doc := `{
  "basic_config": {"server_address": ":9000"},
  "backend": {"model": "some-org/some-model", "timeout_seconds": 5},
  "storage": {"driver": "json", "users_file": "data/users.json"}
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, "some-org/some-model", cfg.Backend.Model)
	// Unset fields keep their defaults.
	assert.Equal(t, DefaultBaseURL, cfg.Backend.BaseURL)
	// Relative storage paths resolve against the config file's directory.
	assert.Equal(t, filepath.Join(dir, "data/users.json"), cfg.Storage.UsersFile)
	// The history file was not set in the file, so the bare default applies.
	assert.Equal(t, "chat_history.json", cfg.Storage.HistoryFile)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HF_API_KEY", "env-key")
	t.Setenv("SYNBOT_MODEL", "env-org/env-model")
	t.Setenv("SYNBOT_ADDR", ":7777")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Backend.APIKey)
	assert.Equal(t, "env-org/env-model", cfg.Backend.Model)
	assert.Equal(t, ":7777", cfg.BasicConfig.ServerAddress)
}

func TestBackendTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, BackendConfig{}.Timeout())
	assert.Equal(t, 5*time.Second, BackendConfig{TimeoutSeconds: 5}.Timeout())
}
