package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MirasRuslanJR/PyShark/pkg/timeutil"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "PYSHARK_"

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Store     StoreConfig     `envPrefix:"STORE_"`
	HTTP      HTTPConfig      `envPrefix:"HTTP_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Backup    BackupConfig    `envPrefix:"BACKUP_"`
	Scheduler SchedulerConfig `envPrefix:"SCHEDULER_"`

	location *time.Location
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string      `env:"NAME" envDefault:"pyshark"`
	Environment Environment `env:"ENV" envDefault:"development"`

	// Timezone in which calendar days, streaks and time-of-day achievements are evaluated.
	Timezone string `env:"TIMEZONE" envDefault:"Asia/Almaty"`

	// NotificationFeedSize is how many recent events GET /notifications keeps.
	NotificationFeedSize int `env:"NOTIFICATION_FEED_SIZE" envDefault:"50"`
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	Backend string `env:"BACKEND" envDefault:"sqlite"`
	Key     string `env:"KEY" envDefault:"pyshark_progress"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/pyshark.db"`

	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisTTL      time.Duration `env:"REDIS_TTL" envDefault:"0s"`

	PostgresURL string `env:"POSTGRES_URL"`

	Timeout          time.Duration `env:"TIMEOUT" envDefault:"3s"`
	RetryAttempts    int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	BreakerThreshold int           `env:"BREAKER_THRESHOLD" envDefault:"3"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN" envDefault:"10s"`
	BreakerSuccesses int           `env:"BREAKER_SUCCESSES" envDefault:"1"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	Mode            string        `env:"MODE" envDefault:"release"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `env:"LEVEL" envDefault:"info"`
	File        string `env:"FILE" envDefault:"logs/pyshark.log"`
	JSONConsole bool   `env:"JSON_CONSOLE" envDefault:"false"`
	MaxSizeMB   int    `env:"MAX_SIZE_MB" envDefault:"100"`
	MaxBackups  int    `env:"MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays  int    `env:"MAX_AGE_DAYS" envDefault:"30"`
}

// BackupConfig points at an S3-compatible bucket for export documents.
// Backups are disabled while Endpoint is empty.
type BackupConfig struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"pyshark-backups"`
	Prefix    string `env:"PREFIX" envDefault:"progress/"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
}

// Enabled reports whether an object store is configured.
func (b BackupConfig) Enabled() bool {
	return b.Endpoint != ""
}

// SchedulerConfig holds the nightly job settings. Times are HH:MM in App.Timezone.
type SchedulerConfig struct {
	Enabled    bool   `env:"ENABLED" envDefault:"true"`
	RolloverAt string `env:"ROLLOVER_AT" envDefault:"00:00"`
	BackupAt   string `env:"BACKUP_AT" envDefault:"03:00"`
}

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Load reads an optional .env file, then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	loc, err := timeutil.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app config: %w", err)
	}
	cfg.location = loc

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads the given files, or ".env" when none are given.
// A missing file is not an error; variables already set are not overridden.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Backend {
	case BackendMemory, BackendSQLite, BackendRedis, BackendPostgres:
	default:
		errs = append(errs, fmt.Sprintf("PYSHARK_STORE_BACKEND must be one of memory, sqlite, redis, postgres (got %q)", c.Store.Backend))
	}
	if c.Store.Key == "" {
		errs = append(errs, "PYSHARK_STORE_KEY is required")
	}
	if c.Store.Backend == BackendSQLite && c.Store.SQLitePath == "" {
		errs = append(errs, "PYSHARK_STORE_SQLITE_PATH is required for the sqlite backend")
	}
	if c.Store.Backend == BackendPostgres && c.Store.PostgresURL == "" {
		errs = append(errs, "PYSHARK_STORE_POSTGRES_URL is required for the postgres backend")
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, "PYSHARK_STORE_TIMEOUT must be positive")
	}
	if c.Store.RetryAttempts < 1 {
		errs = append(errs, "PYSHARK_STORE_RETRY_ATTEMPTS must be >= 1")
	}
	if c.Store.BreakerThreshold < 1 {
		errs = append(errs, "PYSHARK_STORE_BREAKER_THRESHOLD must be >= 1")
	}
	if c.Store.BreakerSuccesses < 1 {
		errs = append(errs, "PYSHARK_STORE_BREAKER_SUCCESSES must be >= 1")
	}

	if c.HTTP.RateLimitRPS <= 0 || c.HTTP.RateLimitBurst < 1 {
		errs = append(errs, "PYSHARK_HTTP_RATE_LIMIT_RPS and PYSHARK_HTTP_RATE_LIMIT_BURST must be positive")
	}
	switch c.HTTP.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Sprintf("PYSHARK_HTTP_MODE must be debug, release or test (got %q)", c.HTTP.Mode))
	}

	if c.App.NotificationFeedSize < 1 {
		errs = append(errs, "PYSHARK_APP_NOTIFICATION_FEED_SIZE must be >= 1")
	}
	if c.Scheduler.Enabled && !clockPattern.MatchString(c.Scheduler.RolloverAt) {
		errs = append(errs, "PYSHARK_SCHEDULER_ROLLOVER_AT must be HH:MM")
	}
	if c.Scheduler.Enabled && c.Backup.Enabled() && !clockPattern.MatchString(c.Scheduler.BackupAt) {
		errs = append(errs, "PYSHARK_SCHEDULER_BACKUP_AT must be HH:MM")
	}
	if c.Backup.Enabled() && c.Backup.Bucket == "" {
		errs = append(errs, "PYSHARK_BACKUP_BUCKET is required when PYSHARK_BACKUP_ENDPOINT is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Location returns the resolved App.Timezone, or UTC for a Config that
// was not produced by Load.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}
