package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	URL             string
	ItemSelector    string
	ControlSelector string
	WaitTimeout     time.Duration
	PollInterval    time.Duration
	ExportPath      string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	UserAgent      string
	ProxyServer    string
}

type DatabaseConfig struct {
	// Driver selects the storage backend: "postgres", "sqlite" or "none".
	Driver      string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SQLitePath  string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Enabled  bool
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// Load reads the configuration from the environment. An optional .env file
// in the working directory is loaded first and never overrides variables
// that are already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			URL:             getEnvOrDefault("SCRAPER_URL", "https://webscraper.io/test-sites/e-commerce/more/computers/tablets"),
			ItemSelector:    getEnvOrDefault("SCRAPER_ITEM_SELECTOR", ".card-body"),
			ControlSelector: getEnvOrDefault("SCRAPER_CONTROL_SELECTOR", ".ecomerce-items-scroll-more"),
			WaitTimeout:     getDurationOrDefault("SCRAPER_WAIT_TIMEOUT", 10*time.Second),
			PollInterval:    getDurationOrDefault("SCRAPER_POLL_INTERVAL", 250*time.Millisecond),
			ExportPath:      getEnvOrDefault("SCRAPER_EXPORT_PATH", "results.csv"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", ""),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Database: DatabaseConfig{
			Driver:      getEnvOrDefault("DB_DRIVER", "postgres"),
			Host:        getEnvOrDefault("DB_HOST", "localhost"),
			Port:        getIntOrDefault("DB_PORT", 5432),
			User:        getEnvOrDefault("DB_USER", "postgres"),
			Password:    getEnvOrDefault("DB_PASSWORD", ""),
			DBName:      getEnvOrDefault("DB_NAME", "listings"),
			SSLMode:     getEnvOrDefault("DB_SSL_MODE", "disable"),
			SQLitePath:  getEnvOrDefault("DB_SQLITE_PATH", "listings.db"),
			MaxConns:    int32(getIntOrDefault("DB_MAX_CONNS", 5)),
			MinConns:    int32(getIntOrDefault("DB_MIN_CONNS", 0)),
			MaxConnLife: getDurationOrDefault("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdle: getDurationOrDefault("DB_MAX_CONN_IDLE", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:listing_runs"),
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
			File:   getEnvOrDefault("LOG_FILE", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.URL == "" {
		return fmt.Errorf("SCRAPER_URL is required")
	}

	if _, err := url.ParseRequestURI(c.Scraper.URL); err != nil {
		return fmt.Errorf("SCRAPER_URL is invalid: %w", err)
	}

	if c.Scraper.ItemSelector == "" || c.Scraper.ControlSelector == "" {
		return fmt.Errorf("SCRAPER_ITEM_SELECTOR and SCRAPER_CONTROL_SELECTOR must not be empty")
	}

	if c.Scraper.WaitTimeout <= 0 {
		return fmt.Errorf("SCRAPER_WAIT_TIMEOUT must be positive")
	}

	if c.Scraper.PollInterval <= 0 || c.Scraper.PollInterval > c.Scraper.WaitTimeout {
		return fmt.Errorf("SCRAPER_POLL_INTERVAL must be positive and not exceed SCRAPER_WAIT_TIMEOUT")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for the postgres driver")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("DB_SQLITE_PATH is required for the sqlite driver")
		}
	case "none":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1")
	}

	return nil
}

// PersistenceEnabled reports whether runs write to a store.
func (c *DatabaseConfig) PersistenceEnabled() bool {
	return c.Driver != "none"
}

// DSN renders the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func (c *Config) ServerAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
