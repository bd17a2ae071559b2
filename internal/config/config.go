package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Catalog  CatalogConfig
	Files    FilesConfig
	Media    MediaConfig
	FTP      FTPConfig
	Logging  LoggingConfig
	Cron     CronConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type ScraperConfig struct {
	RateLimitMin  time.Duration
	RateLimitMax  time.Duration
	MaxAttempts   int
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	WaitTimeout   time.Duration
	MinSanePrice  int64
	ShoppingTopN  int
	Workers       int
	Escalate      bool
	CompareOffers bool
	UseCatalog    bool
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	UserAgents     []string
	Proxy          string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type QueueConfig struct {
	// Type is "memory" or "redis".
	Type string
	Key  string
}

type CatalogConfig struct {
	// Type is "memory", "file" or "postgres".
	Type      string
	File      string
	Migrate   bool
	RelayPoll time.Duration
	RelayBulk int
}

type FilesConfig struct {
	Input    string
	Output   string
	Links    string
	BatchDir string
	Archive  bool
	Merge    []string
}

type MediaConfig struct {
	OriginalsDir string
	StyledDir    string
	Canvas       int
	Formats      []string
	Quality      int
	Workers      int
	RatePerSec   float64
	Burst        int
}

type FTPConfig struct {
	Addr        string
	User        string
	Password    string
	RemoteDir   string
	PublicURL   string
	StripPrefix string
	Timeout     time.Duration
}

func (f FTPConfig) Enabled() bool {
	return f.Addr != ""
}

type LoggingConfig struct {
	Level     string
	Format    string
	AuditFile string
}

type CronConfig struct {
	Recheck string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Scraper: ScraperConfig{
			RateLimitMin:  getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 2*time.Second),
			RateLimitMax:  getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 5*time.Second),
			MaxAttempts:   getIntOrDefault("SCRAPER_MAX_ATTEMPTS", 3),
			BackoffMin:    getDurationOrDefault("SCRAPER_BACKOFF_MIN", 2*time.Second),
			BackoffMax:    getDurationOrDefault("SCRAPER_BACKOFF_MAX", 5*time.Second),
			WaitTimeout:   getDurationOrDefault("SCRAPER_WAIT_TIMEOUT", 10*time.Second),
			MinSanePrice:  int64(getIntOrDefault("SCRAPER_MIN_SANE_PRICE", 1000)),
			ShoppingTopN:  getIntOrDefault("SCRAPER_SHOPPING_TOP_N", 10),
			Workers:       getIntOrDefault("SCRAPER_WORKERS", 1),
			Escalate:      getBoolOrDefault("SCRAPER_ESCALATE", true),
			CompareOffers: getBoolOrDefault("SCRAPER_COMPARE_OFFERS", false),
			UseCatalog:    getBoolOrDefault("SCRAPER_USE_CATALOG", true),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-IN,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Kolkata"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-IN"),
			UserAgents:     getStringSliceOrDefault("BROWSER_USER_AGENTS", defaultUserAgents()),
			Proxy:          getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Database: DatabaseConfig{
			URL:      getEnvOrDefault("DATABASE_URL", ""),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "catalog"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:catalog"),
		},
		Queue: QueueConfig{
			Type: getEnvOrDefault("QUEUE_TYPE", "memory"),
			Key:  getEnvOrDefault("QUEUE_KEY", "catalog:deferred"),
		},
		Catalog: CatalogConfig{
			Type:      getEnvOrDefault("CATALOG_TYPE", "memory"),
			File:      getEnvOrDefault("CATALOG_FILE", "output/catalog.json"),
			Migrate:   getBoolOrDefault("CATALOG_MIGRATE", true),
			RelayPoll: getDurationOrDefault("CATALOG_RELAY_POLL", 5*time.Second),
			RelayBulk: getIntOrDefault("CATALOG_RELAY_BATCH", 100),
		},
		Files: FilesConfig{
			Input:    getEnvOrDefault("INPUT_PATH", "data"),
			Output:   getEnvOrDefault("OUTPUT_PATH", "output/products.xlsx"),
			Links:    getEnvOrDefault("IMAGE_LINKS_PATH", "output/uploaded_image_links.xlsx"),
			BatchDir: getEnvOrDefault("BATCH_DIR", "batch"),
			Archive:  getBoolOrDefault("BATCH_ARCHIVE", false),
			Merge:    getStringSliceOrDefault("MERGE_CATEGORIES", []string{"phone"}),
		},
		Media: MediaConfig{
			OriginalsDir: getEnvOrDefault("MEDIA_ORIGINALS_DIR", "output/images"),
			StyledDir:    getEnvOrDefault("MEDIA_STYLED_DIR", "output/styled_images"),
			Canvas:       getIntOrDefault("MEDIA_CANVAS", 1664),
			Formats:      getStringSliceOrDefault("MEDIA_FORMATS", []string{"jpeg"}),
			Quality:      getIntOrDefault("MEDIA_QUALITY", 85),
			Workers:      getIntOrDefault("MEDIA_WORKERS", 4),
			RatePerSec:   getFloatOrDefault("MEDIA_RATE_PER_SEC", 4),
			Burst:        getIntOrDefault("MEDIA_BURST", 4),
		},
		FTP: FTPConfig{
			Addr:        getEnvOrDefault("FTP_ADDR", ""),
			User:        getEnvOrDefault("FTP_USER", ""),
			Password:    getEnvOrDefault("FTP_PASSWORD", ""),
			RemoteDir:   getEnvOrDefault("FTP_REMOTE_DIR", "images"),
			PublicURL:   getEnvOrDefault("FTP_PUBLIC_URL", ""),
			StripPrefix: getEnvOrDefault("FTP_STRIP_PREFIX", ""),
			Timeout:     getDurationOrDefault("FTP_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:     getEnvOrDefault("LOG_LEVEL", "info"),
			Format:    getEnvOrDefault("LOG_FORMAT", "json"),
			AuditFile: getEnvOrDefault("LOG_AUDIT_FILE", "logs/audit.log"),
		},
		Cron: CronConfig{
			Recheck: getEnvOrDefault("CRON_RECHECK", "0 */6 * * *"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.Workers < 1 {
		return fmt.Errorf("SCRAPER_WORKERS must be at least 1")
	}

	if c.Scraper.MaxAttempts < 1 {
		return fmt.Errorf("SCRAPER_MAX_ATTEMPTS must be at least 1")
	}

	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	if c.Scraper.BackoffMin > c.Scraper.BackoffMax {
		return fmt.Errorf("SCRAPER_BACKOFF_MIN cannot be greater than SCRAPER_BACKOFF_MAX")
	}

	switch c.Queue.Type {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when QUEUE_TYPE is redis")
		}
	default:
		return fmt.Errorf("QUEUE_TYPE must be memory or redis, got %q", c.Queue.Type)
	}

	switch c.Catalog.Type {
	case "memory", "postgres":
	case "file":
		if c.Catalog.File == "" {
			return fmt.Errorf("CATALOG_FILE is required when CATALOG_TYPE is file")
		}
	default:
		return fmt.Errorf("CATALOG_TYPE must be memory, file or postgres, got %q", c.Catalog.Type)
	}

	if c.Media.Canvas < 1 {
		return fmt.Errorf("MEDIA_CANVAS must be at least 1")
	}

	if c.FTP.Enabled() && c.FTP.PublicURL == "" {
		return fmt.Errorf("FTP_PUBLIC_URL is required when FTP_ADDR is set")
	}

	if c.Cron.Recheck != "" {
		if _, err := cron.ParseStandard(c.Cron.Recheck); err != nil {
			return fmt.Errorf("invalid CRON_RECHECK %q: %w", c.Cron.Recheck, err)
		}
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
