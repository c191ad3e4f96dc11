package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg := FromLookup(mapLookup(nil))

	assert.Equal(t, ":8080", cfg.GetServerAddr())
	assert.Equal(t, []string{"general", "random", "tech"}, cfg.GetRooms())
	assert.Equal(t, "general", cfg.GetDefaultRoom())
	assert.Empty(t, cfg.GetAllowedOrigins())
	assert.Equal(t, int64(DefaultMaxMessageBytes), cfg.GetMaxMessageBytes())
	assert.Equal(t, DefaultMaxFileBytes, cfg.GetMaxFileBytes())
	assert.Equal(t, ScopeGlobal, cfg.GetReactionScope())
	assert.Equal(t, ".env", cfg.GetEnvFile())
	assert.Equal(t, DefaultShutdownTimeout, cfg.GetShutdownTimeout())
	assert.Contains(t, cfg.GetAllowedFileTypes(), "image/png")
	assert.NotContains(t, cfg.GetAllowedFileTypes(), "text/html")
}

func TestFromLookup_AllowedFileTypes(t *testing.T) {
	cfg := FromLookup(mapLookup(map[string]string{"ALLOWED_FILE_TYPES": " Image/PNG, text/plain ,"}))
	assert.Equal(t, []string{"image/png", "text/plain"}, cfg.GetAllowedFileTypes())
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg := FromLookup(mapLookup(map[string]string{
		"SERVER_ADDR":       "127.0.0.1:9000",
		"ROOMS":             " lobby , dev,,lobby ",
		"DEFAULT_ROOM":      "dev",
		"ALLOWED_ORIGINS":   "http://localhost:3000, https://chat.example",
		"MAX_MESSAGE_BYTES": "2048",
		"MAX_FILE_BYTES":    "1024",
		"REACTION_SCOPE":    "ROOM",
		"SHUTDOWN_TIMEOUT":  "3s",
	}))

	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
	assert.Equal(t, []string{"lobby", "dev"}, cfg.GetRooms())
	assert.Equal(t, "dev", cfg.GetDefaultRoom())
	assert.Equal(t, []string{"http://localhost:3000", "https://chat.example"}, cfg.GetAllowedOrigins())
	assert.Equal(t, int64(2048), cfg.GetMaxMessageBytes())
	assert.Equal(t, 1024, cfg.GetMaxFileBytes())
	assert.Equal(t, ScopeRoom, cfg.GetReactionScope())
	assert.Equal(t, 3*time.Second, cfg.GetShutdownTimeout())
}

func TestFromLookup_InvalidValuesFallBack(t *testing.T) {
	cfg := FromLookup(mapLookup(map[string]string{
		"ROOMS":            "lobby,dev",
		"DEFAULT_ROOM":     "nowhere",
		"MAX_FILE_BYTES":   "-5",
		"REACTION_SCOPE":   "galaxy",
		"SHUTDOWN_TIMEOUT": "soon",
	}))

	assert.Equal(t, "lobby", cfg.GetDefaultRoom())
	assert.Equal(t, DefaultMaxFileBytes, cfg.GetMaxFileBytes())
	assert.Equal(t, ScopeGlobal, cfg.GetReactionScope())
	assert.Equal(t, DefaultShutdownTimeout, cfg.GetShutdownTimeout())
}

func TestNew_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("ROOMS=alpha,beta\nDEFAULT_ROOM=beta\n"), 0o600))

	t.Setenv("ENV_FILE", envFile)
	// Registered with t.Setenv so the values godotenv sets are restored afterwards.
	t.Setenv("ROOMS", "")
	t.Setenv("DEFAULT_ROOM", "")
	require.NoError(t, os.Unsetenv("ROOMS"))
	require.NoError(t, os.Unsetenv("DEFAULT_ROOM"))

	cfg := New()
	assert.Equal(t, []string{"alpha", "beta"}, cfg.GetRooms())
	assert.Equal(t, "beta", cfg.GetDefaultRoom())
	assert.Equal(t, envFile, cfg.GetEnvFile())
}
