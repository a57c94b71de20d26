package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STATS_REFRESH_INTERVAL", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg := Load()
	assert.Equal(t, "5200", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.StatsRefreshInterval)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("TELEGRAM_GROUP_ID", "-100123")
	t.Setenv("STATS_CACHE_TTL", "90s")

	cfg := Load()
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(-100123), cfg.TelegramGroupID)
	assert.Equal(t, 90*time.Second, cfg.StatsCacheTTL)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "GATEWAY_TOKEN")

	cfg = &Config{DatabaseURL: "postgres://x", GatewayToken: "t", TelegramBotToken: "bot"}
	require.Error(t, cfg.Validate())

	cfg.TelegramGroupID = -1
	require.NoError(t, cfg.Validate())
}
