// Package config loads autotagger configuration from YAML with .env and
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
)

const (
	defaultServiceName    = "autotagger"
	defaultServiceVersion = "1.0.0"
	defaultServicePort    = 8074
	defaultDBHost         = "localhost"
	defaultDBPort         = 5432
	defaultDBUser         = "postgres"
	defaultDBName         = "autotagger"
	defaultDBSSLMode      = "disable"
	defaultDBMaxConns     = 25
	defaultDBMaxIdleConns = 5
	defaultRedisURL       = "localhost:6379"
	defaultDiagnosticsTTL = 7 * 24 * time.Hour
	defaultLanguage       = "en"
	defaultAnalysisTO     = 60 * time.Second
	defaultAuthScheme     = "basic"
	defaultConcurrency    = 1
	defaultRetryAttempts  = 3
	defaultRetryDelay     = 500 * time.Millisecond
)

// Config is the full autotagger configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  logger.Config  `yaml:"logging"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Batch    BatchConfig    `yaml:"batch"`
}

// ServiceConfig holds service-level settings.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"AUTOTAGGER_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"       yaml:"debug"`
}

// DatabaseConfig holds PostgreSQL settings for the term, content and settings stores.
type DatabaseConfig struct {
	Host            string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port            int           `env:"POSTGRES_PORT"     yaml:"port"`
	User            string        `env:"POSTGRES_USER"     yaml:"user"`
	Password        string        `env:"POSTGRES_PASSWORD" yaml:"password"` //nolint:gosec // G117: DB connection config
	Database        string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode         string        `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// DSN returns the lib/pq keyword/value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// URL returns the postgres:// form used by golang-migrate.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the diagnostics store connection.
type RedisConfig struct {
	URL            string        `env:"REDIS_URL"      yaml:"url"`
	Password       string        `env:"REDIS_PASSWORD" yaml:"password"`
	Database       int           `yaml:"database"`
	DiagnosticsTTL time.Duration `yaml:"diagnostics_ttl"`
}

// AnalysisConfig holds the remote analysis provider settings.
type AnalysisConfig struct {
	Endpoint     string        `env:"AUTOTAGGER_NLU_ENDPOINT"    yaml:"endpoint"`
	AuthScheme   string        `env:"AUTOTAGGER_NLU_AUTH_SCHEME" yaml:"auth_scheme"`
	AuthHeader   string        `yaml:"auth_header"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"` //nolint:gosec // G117: provider credential
	Language     string        `yaml:"language"`
	Timeout      time.Duration `env:"AUTOTAGGER_NLU_TIMEOUT"     yaml:"timeout"`
	IncludeTitle *bool         `yaml:"include_title"`
}

// TitleIncluded reports whether the title is prepended to the analysed text.
func (a AnalysisConfig) TitleIncluded() bool {
	return a.IncludeTitle == nil || *a.IncludeTitle
}

// BatchConfig controls the batch driver used by the CLI and batch endpoint.
type BatchConfig struct {
	Concurrency   int           `env:"AUTOTAGGER_BATCH_CONCURRENCY" yaml:"concurrency"`
	MaxErrors     int           `yaml:"max_errors"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// Load reads path (missing file means defaults), applies env overrides,
// fills defaults and validates.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	cfg := &Config{}
	if err := readYAML(path, cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Analysis.AuthScheme) {
	case "basic", "bearer":
	case "header":
		if c.Analysis.AuthHeader == "" {
			errs = append(errs, errors.New("analysis.auth_header is required when auth_scheme is header"))
		}
	default:
		errs = append(errs, fmt.Errorf("analysis.auth_scheme %q is not one of basic, bearer, header", c.Analysis.AuthScheme))
	}
	if c.Batch.Concurrency < 0 {
		errs = append(errs, errors.New("batch.concurrency must not be negative"))
	}
	return errors.Join(errs...)
}

func setDefaults(cfg *Config) {
	s := &cfg.Service
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}

	d := &cfg.Database
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = time.Hour
	}

	if cfg.Redis.URL == "" {
		cfg.Redis.URL = defaultRedisURL
	}
	if cfg.Redis.DiagnosticsTTL == 0 {
		cfg.Redis.DiagnosticsTTL = defaultDiagnosticsTTL
	}

	a := &cfg.Analysis
	if a.AuthScheme == "" {
		a.AuthScheme = defaultAuthScheme
	}
	if a.Language == "" {
		a.Language = defaultLanguage
	}
	if a.Timeout == 0 {
		a.Timeout = defaultAnalysisTO
	}

	b := &cfg.Batch
	if b.Concurrency == 0 {
		b.Concurrency = defaultConcurrency
	}
	if b.RetryAttempts == 0 {
		b.RetryAttempts = defaultRetryAttempts
	}
	if b.RetryDelay == 0 {
		b.RetryDelay = defaultRetryDelay
	}
}
