package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Ingestion IngestionConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds PostgreSQL connection parameters. An empty URL runs
// the service in memory-only mode.
type DatabaseConfig struct {
	URL            string
	MigrationsDir  string
	MaxConnections int
}

// IngestionConfig holds credentials and tunables for the ingestion pipeline.
type IngestionConfig struct {
	TwitterBearerToken string
	NewsAPIKey         string
	NewsProvider       string

	// DedupCapacity bounds the in-memory dedup set.
	DedupCapacity int

	// RecencyBoundaryYear anchors the recency filter; zero means the current
	// wall-clock year.
	RecencyBoundaryYear int

	// SchedulerInterval is how often the background runner sweeps for due rules.
	SchedulerInterval time.Duration

	// ExtractTimeout bounds a single landing-page fetch during scraping.
	ExtractTimeout time.Duration

	// InterQueryDelay paces consecutive queries against the same platform.
	InterQueryDelay time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultMigrationsDir     = "./migrations"
	defaultMaxConnections    = 25
	defaultDedupCapacity     = 100000
	defaultNewsProvider      = "newsapi"
	defaultSchedulerInterval = 5 * time.Minute
	defaultExtractTimeout    = 8 * time.Second
	defaultInterQueryDelay   = 1500 * time.Millisecond
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			MigrationsDir:  getEnv("MIGRATIONS_DIR", defaultMigrationsDir),
			MaxConnections: defaultMaxConnections,
		},
		Ingestion: IngestionConfig{
			TwitterBearerToken: os.Getenv("TWITTER_BEARER_TOKEN"),
			NewsAPIKey:         os.Getenv("NEWS_API_KEY"),
			NewsProvider:       getEnv("NEWS_PROVIDER", defaultNewsProvider),
			DedupCapacity:      defaultDedupCapacity,
			SchedulerInterval:  defaultSchedulerInterval,
			ExtractTimeout:     defaultExtractTimeout,
			InterQueryDelay:    defaultInterQueryDelay,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("DATABASE_MAX_CONNECTIONS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATABASE_MAX_CONNECTIONS: %w", err)
		}
		cfg.Database.MaxConnections = n
	}

	switch cfg.Ingestion.NewsProvider {
	case "newsapi", "gnews":
	default:
		return Config{}, fmt.Errorf("invalid NEWS_PROVIDER: must be 'newsapi' or 'gnews'")
	}

	if v := os.Getenv("DEDUP_CAPACITY"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEDUP_CAPACITY: %w", err)
		}
		cfg.Ingestion.DedupCapacity = n
	}

	if v := os.Getenv("RECENCY_BOUNDARY_YEAR"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year < 1970 {
			return Config{}, fmt.Errorf("invalid RECENCY_BOUNDARY_YEAR: must be a four-digit year")
		}
		cfg.Ingestion.RecencyBoundaryYear = year
	}

	if v := os.Getenv("SCHEDULER_INTERVAL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCHEDULER_INTERVAL_SECONDS: %w", err)
		}
		cfg.Ingestion.SchedulerInterval = d
	}

	if v := os.Getenv("EXTRACT_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid EXTRACT_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Ingestion.ExtractTimeout = d
	}

	if v := os.Getenv("INTER_QUERY_DELAY_MS"); v != "" {
		ms, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid INTER_QUERY_DELAY_MS: %w", err)
		}
		cfg.Ingestion.InterQueryDelay = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
