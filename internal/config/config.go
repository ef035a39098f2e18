package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrEmptyToken = errors.New("error getting RR_TELEGRAM_TOKEN: variable not specified or contains an empty string")

type Config struct {
	Env         string // Env is the current environment: local, dev, prod.
	StoragePath string // StoragePath is the sqlite database file location.
	Tg          Telegram
	Scrape      Scrape
}

type Telegram struct {
	Token   string        // Token is an unique telgram bot token.
	Timeout time.Duration // Timeout is a poller timeout duration.
}

type Scrape struct {
	Interval     time.Duration // Interval between full scrape runs.
	FetchTimeout time.Duration // FetchTimeout bounds one HTTP request.
	Workers      int           // Workers sizes the page cycle pool.
	MaxContent   int           // MaxContent caps canonical text bytes per snapshot.
	PageBudget   time.Duration // PageBudget bounds structured extraction per page.
	FloodLimit   int           // FloodLimit caps per-item feature change events.
	Stoplist     []string      // Stoplist overrides the built-in feature stoplist.
}

// MustLoad loads the configuration from environment variables and returns a Config struct.
func MustLoad() *Config {
	// Automatically binds environment variables to config keys
	viper.SetEnvPrefix("RR")
	viper.AutomaticEnv()

	// optional args
	viper.SetDefault("ENV", "production")
	viper.SetDefault("STORAGE_PATH", "rival-radar.db")
	viper.SetDefault("TELEGRAM_TIMEOUT", "15s")
	viper.SetDefault("SCRAPE_INTERVAL", "6h")
	viper.SetDefault("FETCH_TIMEOUT", "30s")
	viper.SetDefault("WORKERS", 5)
	viper.SetDefault("MAX_CONTENT_BYTES", 1_000_000)
	viper.SetDefault("PAGE_BUDGET", "30s")
	viper.SetDefault("FEATURE_FLOOD_LIMIT", 5)

	if viper.GetString("TELEGRAM_TOKEN") == "" {
		panic(ErrEmptyToken)
	}

	return &Config{
		Env:         viper.GetString("ENV"),
		StoragePath: viper.GetString("STORAGE_PATH"),
		Tg: Telegram{
			Token:   viper.GetString("TELEGRAM_TOKEN"),
			Timeout: viper.GetDuration("TELEGRAM_TIMEOUT"),
		},
		Scrape: Scrape{
			Interval:     viper.GetDuration("SCRAPE_INTERVAL"),
			FetchTimeout: viper.GetDuration("FETCH_TIMEOUT"),
			Workers:      viper.GetInt("WORKERS"),
			MaxContent:   viper.GetInt("MAX_CONTENT_BYTES"),
			PageBudget:   viper.GetDuration("PAGE_BUDGET"),
			FloodLimit:   viper.GetInt("FEATURE_FLOOD_LIMIT"),
			Stoplist:     splitList(viper.GetString("FEATURE_STOPLIST")),
		},
	}
}

// splitList parses a comma-separated env value; empty input keeps the
// consumer's defaults.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	if len(items) == 0 {
		return nil
	}

	return items
}
