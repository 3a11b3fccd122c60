package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SCRAPER_URL", "")
	t.Setenv("DB_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://webscraper.io/test-sites/e-commerce/more/computers/tablets", cfg.Scraper.URL)
	assert.Equal(t, 10*time.Second, cfg.Scraper.WaitTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Scraper.PollInterval)
	assert.Equal(t, "results.csv", cfg.Scraper.ExportPath)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "stream:listing_runs", cfg.Redis.Stream)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SCRAPER_WAIT_TIMEOUT", "3s")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("DB_MAX_CONNS", "not-a-number")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Scraper.WaitTimeout)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/tmp/x.db", cfg.Database.DSN())
	assert.Equal(t, int32(5), cfg.Database.MaxConns, "invalid values fall back to the default")
	assert.True(t, cfg.Redis.Enabled)
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{
		Driver:   "postgres",
		Host:     "db",
		Port:     5433,
		User:     "scraper",
		Password: "p@ss",
		DBName:   "listings",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://scraper:p%40ss@db:5433/listings?sslmode=disable", db.DSN())
	assert.True(t, db.PersistenceEnabled())

	db.Driver = "none"
	assert.False(t, db.PersistenceEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty url", func(c *Config) { c.Scraper.URL = "" }, true},
		{"relative url", func(c *Config) { c.Scraper.URL = "tablets" }, true},
		{"zero timeout", func(c *Config) { c.Scraper.WaitTimeout = 0 }, true},
		{"poll longer than timeout", func(c *Config) { c.Scraper.PollInterval = time.Minute }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"no database", func(c *Config) { c.Database.Driver = "none" }, false},
		{"sqlite without path", func(c *Config) {
			c.Database.Driver = "sqlite"
			c.Database.SQLitePath = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
