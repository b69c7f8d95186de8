// Package config loads ledger.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the default configuration file name.
const FileName = "ledger.yaml"

// Sequence backends.
const (
	BackendDatabase = "database"
	BackendRedis    = "redis"
)

// Config represents the top-level ledger.yaml configuration.
type Config struct {
	Ledger   LedgerConfig   `yaml:"ledger"`
	Database DatabaseConfig `yaml:"database"`
	Sequence SequenceConfig `yaml:"sequence"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Audit    AuditConfig    `yaml:"audit"`
}

// LedgerConfig holds bookkeeping settings.
type LedgerConfig struct {
	Name string `yaml:"name"`
	// AmountScale is the number of decimal places stored per amount. It is
	// fixed once the database is migrated.
	AmountScale     int32 `yaml:"amount_scale"`
	SequenceRetries int   `yaml:"sequence_retries"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // "sqlite3" or "postgres"
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// SequenceConfig selects the journal number allocator.
type SequenceConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"` // gin mode: "release" or "debug"
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Mode  string `yaml:"mode"` // "production" or "development"
	Level string `yaml:"level"`
}

// AuditConfig controls the CSV audit trail. An empty path disables it.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// Load reads a ledger.yaml file from disk. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger.
func Default(name string) *Config {
	return &Config{
		Ledger: LedgerConfig{
			Name:            name,
			AmountScale:     2,
			SequenceRetries: 3,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite3",
			DSN:             "ledger.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Sequence: SequenceConfig{
			Backend: BackendDatabase,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Mode:  "production",
			Level: "info",
		},
		Audit: AuditConfig{
			Path: "logs/audit.csv",
		},
	}
}

// ApplyEnv loads envFile (or .env in the working directory when envFile is
// empty and the file exists) and applies LEDGER_* overrides.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	setString(&c.Database.Driver, "LEDGER_DB_DRIVER")
	setString(&c.Database.DSN, "LEDGER_DB_DSN")
	setString(&c.Sequence.Backend, "LEDGER_SEQUENCE_BACKEND")
	setString(&c.Sequence.RedisAddr, "LEDGER_REDIS_ADDR")
	setString(&c.Sequence.RedisPassword, "LEDGER_REDIS_PASSWORD")
	setString(&c.Server.Addr, "LEDGER_HTTP_ADDR")
	setString(&c.Server.Mode, "LEDGER_HTTP_MODE")
	setString(&c.Log.Mode, "LEDGER_LOG_MODE")
	setString(&c.Log.Level, "LEDGER_LOG_LEVEL")
	setString(&c.Audit.Path, "LEDGER_AUDIT_PATH")

	if v := os.Getenv("LEDGER_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_REDIS_DB: %w", err)
		}
		c.Sequence.RedisDB = n
	}
	if v := os.Getenv("LEDGER_SEQUENCE_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_SEQUENCE_RETRIES: %w", err)
		}
		c.Ledger.SequenceRetries = n
	}
	return nil
}

// Resolve makes relative file paths (the SQLite database and the audit
// log) relative to baseDir, normally the directory holding ledger.yaml.
func (c *Config) Resolve(baseDir string) {
	if c.Database.Driver == "sqlite3" && c.Database.DSN != ":memory:" &&
		!strings.HasPrefix(c.Database.DSN, "file:") && !filepath.IsAbs(c.Database.DSN) {
		c.Database.DSN = filepath.Join(baseDir, c.Database.DSN)
	}
	if c.Audit.Path != "" && !filepath.IsAbs(c.Audit.Path) {
		c.Audit.Path = filepath.Join(baseDir, c.Audit.Path)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the configuration for values the ledger cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Ledger.AmountScale < 0 || c.Ledger.AmountScale > 6 {
		errs = append(errs, fmt.Errorf("ledger.amount_scale must be 0..6, got %d", c.Ledger.AmountScale))
	}
	if c.Ledger.SequenceRetries < 0 {
		errs = append(errs, errors.New("ledger.sequence_retries must not be negative"))
	}
	switch c.Sequence.Backend {
	case BackendDatabase:
	case BackendRedis:
		if c.Sequence.RedisAddr == "" {
			errs = append(errs, errors.New("sequence.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("sequence.backend must be database or redis, got %q", c.Sequence.Backend))
	}
	return errors.Join(errs...)
}
