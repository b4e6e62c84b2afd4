// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig      `envPrefix:"APP_"`
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	Storage  StorageConfig  `envPrefix:"STORAGE_"`
	Grading  GradingConfig  `envPrefix:"GRADING_"`
	Log      LogConfig      `envPrefix:"LOG_"`

	// Features is filled after parsing.
	Features *FeatureFlags `env:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name            string        `env:"NAME" envDefault:"academic-records"`
	Environment     Environment   `env:"ENV" envDefault:"development"`
	Version         string        `env:"VERSION" envDefault:"dev"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// HTTPConfig holds the REST listener settings.
type HTTPConfig struct {
	Addr           string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" envSeparator:","`
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL selects
// in-memory storage.
type DatabaseConfig struct {
	URL             string        `env:"URL"`
	MaxConns        int32         `env:"MAX_CONNS" envDefault:"20"`
	MinConns        int32         `env:"MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"MAX_CONN_IDLE_TIME" envDefault:"30m"`
	ConnectTimeout  time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"true"`
}

// RedisConfig holds Redis connection settings for the lookup cache.
type RedisConfig struct {
	Disabled     bool          `env:"DISABLED" envDefault:"false"`
	Addr         string        `env:"ADDR" envDefault:"localhost:6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB" envDefault:"0"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
	KeyPrefix    string        `env:"KEY_PREFIX" envDefault:"records:"`
	LookupTTL    time.Duration `env:"LOOKUP_TTL" envDefault:"10m"`
}

// AuthConfig holds JWT verification settings.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
	Issuer    string `env:"ISSUER" envDefault:"academic-records"`
}

// StorageConfig holds S3 settings for uploaded batch files. An empty bucket
// disables uploads.
type StorageConfig struct {
	S3Bucket   string `env:"S3_BUCKET"`
	S3Region   string `env:"S3_REGION" envDefault:"sa-east-1"`
	S3Endpoint string `env:"S3_ENDPOINT"`
	S3Prefix   string `env:"S3_PREFIX" envDefault:"batches/"`
}

// GradingConfig holds the grade engine thresholds.
type GradingConfig struct {
	PassingAverage         float64 `env:"PASSING_AVERAGE" envDefault:"7"`
	RecoveryFloor          float64 `env:"RECOVERY_FLOOR" envDefault:"4"`
	RecoveryPassingAverage float64 `env:"RECOVERY_PASSING_AVERAGE" envDefault:"5"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load reads an optional .env file, then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds the configuration from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Features = LoadFeatureFlags()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	switch c.App.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, "APP_ENV must be development, staging or production")
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, "AUTH_JWT_SECRET is required")
	} else if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, "AUTH_JWT_SECRET must be at least 32 characters in production")
	}

	if c.IsProduction() && c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required in production")
	}

	g := c.Grading
	if g.RecoveryFloor < 0 || g.PassingAverage > 10 || g.RecoveryFloor > g.PassingAverage {
		errs = append(errs, "GRADING_* thresholds must satisfy 0 <= RECOVERY_FLOOR <= PASSING_AVERAGE <= 10")
	}
	if g.RecoveryPassingAverage < 0 || g.RecoveryPassingAverage > 10 {
		errs = append(errs, "GRADING_RECOVERY_PASSING_AVERAGE must be 0-10")
	}

	if c.HTTP.MaxUploadBytes <= 0 {
		errs = append(errs, "HTTP_MAX_UPLOAD_BYTES must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// UsesPostgres reports whether a database URL was configured.
func (c *Config) UsesPostgres() bool {
	return c.Database.URL != ""
}

// UploadsEnabled reports whether uploaded files are stored.
func (c *Config) UploadsEnabled() bool {
	return c.Storage.S3Bucket != ""
}
