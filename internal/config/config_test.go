package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("MODE", "")
	t.Setenv("UPSTREAM_TIMEOUT", "")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ModeOffline, cfg.Mode)
	assert.Equal(t, 15*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, cfg.CORSOriginsOffline, cfg.CORSOrigins())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("UPSTREAM_URL", "https://api.example.com/api")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("ENABLE_LOCAL_AUTH", "false")
	t.Setenv("CORS_ORIGINS_ONLINE", " https://a.example , ,https://b.example")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ModeOnline, cfg.Mode)
	assert.Equal(t, "https://api.example.com/api", cfg.UpstreamURL)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.EnableLocalAuth)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
}

func TestFromEnv_BadDuration(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	_, err := FromEnv()
	require.Error(t, err)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labeld.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: online
auth_hmac_secret: from-file
upstream_timeout: 3s
db_driver: postgres
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("AUTH_HMAC_SECRET", "")
	t.Setenv("UPSTREAM_TIMEOUT", "")
	t.Setenv("MODE", "")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ModeOnline, cfg.Mode)
	assert.Equal(t, "from-file", cfg.AuthHMACSecret)
	assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "sqlite", cfg.DBDriver)
}

func TestLoad_OnlineNeedsSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MODE", "online")
	t.Setenv("AUTH_HMAC_SECRET", "")
	_, err := Load()
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" WARN "))
	assert.Equal(t, slog.LevelInfo, parseLevel("chatty"))
}

func TestNewLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(Config{LogPath: dir, LogLevel: "info"})
	logger.Info("hello", "k", "v")

	b, err := os.ReadFile(filepath.Join(dir, "labeld.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "msg=hello k=v")
}
