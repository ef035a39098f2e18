package config_test

import (
	"testing"
	"time"

	"github.com/Houeta/rival-radar/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustLoad_Defaults(t *testing.T) {
	t.Setenv("RR_TELEGRAM_TOKEN", "123456:test-token")

	cfg := config.MustLoad()

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "rival-radar.db", cfg.StoragePath)
	assert.Equal(t, "123456:test-token", cfg.Tg.Token)
	assert.Equal(t, 15*time.Second, cfg.Tg.Timeout)
	assert.Equal(t, 6*time.Hour, cfg.Scrape.Interval)
	assert.Equal(t, 30*time.Second, cfg.Scrape.FetchTimeout)
	assert.Equal(t, 5, cfg.Scrape.Workers)
	assert.Equal(t, 1_000_000, cfg.Scrape.MaxContent)
	assert.Equal(t, 30*time.Second, cfg.Scrape.PageBudget)
	assert.Equal(t, 5, cfg.Scrape.FloodLimit)
	assert.Nil(t, cfg.Scrape.Stoplist)
}

func TestMustLoad_Overrides(t *testing.T) {
	t.Setenv("RR_TELEGRAM_TOKEN", "123456:test-token")
	t.Setenv("RR_ENV", "local")
	t.Setenv("RR_STORAGE_PATH", "/tmp/radar.db")
	t.Setenv("RR_SCRAPE_INTERVAL", "1h")
	t.Setenv("RR_WORKERS", "12")
	t.Setenv("RR_MAX_CONTENT_BYTES", "2048")
	t.Setenv("RR_FEATURE_FLOOD_LIMIT", "3")
	t.Setenv("RR_FEATURE_STOPLIST", "home, contact,, learn more")

	cfg := config.MustLoad()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "/tmp/radar.db", cfg.StoragePath)
	assert.Equal(t, time.Hour, cfg.Scrape.Interval)
	assert.Equal(t, 12, cfg.Scrape.Workers)
	assert.Equal(t, 2048, cfg.Scrape.MaxContent)
	assert.Equal(t, 3, cfg.Scrape.FloodLimit)
	assert.Equal(t, []string{"home", "contact", "learn more"}, cfg.Scrape.Stoplist)
}

func TestMustLoad_MissingToken(t *testing.T) {
	t.Setenv("RR_TELEGRAM_TOKEN", "")

	require.PanicsWithError(t, config.ErrEmptyToken.Error(), func() {
		config.MustLoad()
	})
}
