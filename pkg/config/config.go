package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Database      DatabaseConfig
	Storage       StorageConfig
	Geocode       GeocodeConfig
	Import        ImportConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSOrigins        []string
	ShutdownTimeout    time.Duration
}

// StoreConfig selects the key-value backend: "bolt" or "postgres".
type StoreConfig struct {
	Backend  string
	BoltPath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
}

type StorageConfig struct {
	Type      string
	LocalPath string
	GCSBucket string
}

type GeocodeConfig struct {
	YahooAppID         string
	YahooBaseURL       string
	NominatimBaseURL   string
	NominatimUserAgent string
	Country            string
}

type ImportConfig struct {
	RowDelay        time.Duration
	ProgressEvery   int
	Workers         int
	QueueSize       int
	Timezone        string
	StaleAfter      time.Duration
	UploadRetention time.Duration // 0 keeps stored statements forever
	MaxUploadBytes  int64
}

type AuthConfig struct {
	JWTSecret     string
	SessionSecret string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogFormat      string
	LogLevel       string
}

type ProfilingConfig struct {
	Enabled bool
	Port    int
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
			CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Backend:  strings.ToLower(getEnv("STORE_BACKEND", "bolt")),
			BoltPath: getEnv("BOLT_PATH", "./data/pins.db"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "pins-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("POSTGRES_MAX_CONNS", 10),
		},
		Storage: StorageConfig{
			Type:      strings.ToLower(getEnv("STORAGE_TYPE", "local")),
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./data/uploads"),
			GCSBucket: getEnv("GCS_BUCKET", ""),
		},
		Geocode: GeocodeConfig{
			YahooAppID:         getEnv("YAHOO_APP_ID", ""),
			YahooBaseURL:       getEnv("YAHOO_BASE_URL", ""),
			NominatimBaseURL:   getEnv("NOMINATIM_BASE_URL", ""),
			NominatimUserAgent: getEnv("NOMINATIM_USER_AGENT", "jig-pins/1.0"),
			Country:            strings.ToLower(getEnv("GEOCODE_COUNTRY", "jp")),
		},
		Import: ImportConfig{
			RowDelay:        getEnvAsDuration("IMPORT_ROW_DELAY", time.Second),
			ProgressEvery:   getEnvAsInt("IMPORT_PROGRESS_EVERY", 10),
			Workers:         getEnvAsInt("IMPORT_WORKERS", 2),
			QueueSize:       getEnvAsInt("IMPORT_QUEUE_SIZE", 64),
			Timezone:        getEnv("IMPORT_TIMEZONE", "Asia/Tokyo"),
			StaleAfter:      getEnvAsDuration("IMPORT_STALE_AFTER", time.Hour),
			UploadRetention: getEnvAsDuration("IMPORT_UPLOAD_RETENTION", 7*24*time.Hour),
			MaxUploadBytes:  getEnvAsInt64("IMPORT_MAX_UPLOAD_BYTES", 32<<20),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			SessionSecret: getEnv("SESSION_SECRET", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			LogFormat:      getEnv("LOG_FORMAT", "text"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
		Profiling: ProfilingConfig{
			Enabled: getEnvAsBool("PPROF_ENABLED", false),
			Port:    getEnvAsInt("PPROF_PORT", 6060),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "bolt", "postgres":
	default:
		return fmt.Errorf("STORE_BACKEND must be bolt or postgres, got %q", c.Store.Backend)
	}
	switch c.Storage.Type {
	case "local":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required when STORAGE_TYPE=gcs")
		}
	default:
		return fmt.Errorf("STORAGE_TYPE must be local or gcs, got %q", c.Storage.Type)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Auth.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if c.Import.Workers <= 0 {
		return errors.New("IMPORT_WORKERS must be positive")
	}
	if c.Import.MaxUploadBytes <= 0 {
		return errors.New("IMPORT_MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
