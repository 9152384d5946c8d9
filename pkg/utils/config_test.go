package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAuthConfig_Defaults(t *testing.T) {
	t.Setenv("RATE_JWT_SECRET", "")
	t.Setenv("RATE_JWT_TTL_HOURS", "")
	t.Setenv("RATE_ADMIN_EMAILS", "")

	cfg := LoadAuthConfig()
	assert.Equal(t, "dev-secret-change-me", cfg.JWTSecret)
	assert.Equal(t, "songrate", cfg.JWTIssuer)
	assert.Equal(t, 24*time.Hour, cfg.JWTDuration)
	assert.Empty(t, cfg.AdminEmails)
}

func TestLoadAuthConfig_TTLAndAdmins(t *testing.T) {
	t.Setenv("RATE_JWT_TTL_HOURS", "6")
	t.Setenv("RATE_ADMIN_EMAILS", " Host@Example.com, ,dj@example.com")

	cfg := LoadAuthConfig()
	assert.Equal(t, 6*time.Hour, cfg.JWTDuration)
	assert.Equal(t, []string{"host@example.com", "dj@example.com"}, cfg.AdminEmails)
	assert.True(t, cfg.IsAdmin("HOST@example.com"))
	assert.False(t, cfg.IsAdmin("guest@example.com"))
	assert.False(t, cfg.IsAdmin(""))
}

func TestLoadAuthConfig_BadTTLFallsBack(t *testing.T) {
	t.Setenv("RATE_JWT_TTL_HOURS", "soon")
	assert.Equal(t, 24*time.Hour, LoadAuthConfig().JWTDuration)
}

func TestLoadServerConfig(t *testing.T) {
	t.Setenv("RATE_SYNC_ADDR", "")
	t.Setenv("RATE_WRITE_RPS", "-1")
	cfg := LoadServerConfig()
	assert.Equal(t, ":7070", cfg.SyncAddr)
	assert.Equal(t, 2.0, cfg.WriteRPS)
	assert.Equal(t, ":9090", LoadGrpcConfig().Addr)
}

func TestEnabledFlags(t *testing.T) {
	t.Setenv("RATE_REDIS_ADDR", "")
	t.Setenv("RATE_SPOTIFY_CLIENT_ID", "id")
	t.Setenv("RATE_SPOTIFY_CLIENT_SECRET", "")
	assert.False(t, LoadRedisConfig().Enabled())
	assert.False(t, LoadSpotifyConfig().Enabled())

	t.Setenv("RATE_REDIS_ADDR", "localhost:6379")
	assert.True(t, LoadRedisConfig().Enabled())
}

func TestLoadEnv_FromConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RATE_TEST_ONLY_VAR=from-file\n"), 0o600))

	oldArgs := os.Args
	t.Cleanup(func() {
		os.Args = oldArgs
		os.Unsetenv("RATE_TEST_ONLY_VAR")
	})
	os.Args = []string{"bin", "-config", path, "serve"}

	LoadEnv()
	assert.Equal(t, "from-file", os.Getenv("RATE_TEST_ONLY_VAR"))
}
