// Package config loads process settings from the environment, optionally
// seeded from a .env file.
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

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPPort      string
	LogLevel      string
	StorageDriver string
	DB            db.Params

	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	KafkaBrokers []string
	KafkaTopic   string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	AuditWorkers      int
	AuditBatchSize    int
	AuditFlushTimeout time.Duration
}

// Load seeds the environment from envFile, or when it is empty from the first
// .env or .example.env found in the working directory or its parents, and
// then parses it. Variables already set win over the file.
func Load(envFile string) (*Config, error) {
	path, ok := envFile, envFile != ""
	if !ok {
		path, ok = findEnvFile()
	}
	if ok {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}
	cfg := &Config{
		HTTPPort:      p.str("HTTP_PORT", "9000"),
		LogLevel:      p.str("LOG_LEVEL", "info"),
		StorageDriver: strings.ToLower(p.str("STORAGE_DRIVER", DriverPostgres)),
		DB: db.Params{
			Host:     p.str("DB_HOST", "localhost"),
			Port:     p.number("DB_PORT", 5432),
			User:     p.str("POSTGRES_USER", "postgres"),
			Password: p.str("POSTGRES_PASSWORD", ""),
			Name:     p.str("POSTGRES_DB", "foodshare"),
		},
		JWTSecret:          p.str("JWT_SECRET", ""),
		TokenTTL:           p.duration("TOKEN_TTL", 168*time.Hour),
		BcryptCost:         p.number("BCRYPT_COST", 10),
		KafkaBrokers:       p.list("KAFKA_BROKERS"),
		KafkaTopic:         p.str("KAFKA_TOPIC", "listing_events"),
		OutboxPollInterval: p.duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    p.number("OUTBOX_BATCH_SIZE", 20),
		OutboxMaxAttempts:  p.number("OUTBOX_MAX_ATTEMPTS", 5),
		AuditWorkers:       p.number("AUDIT_WORKERS", 2),
		AuditBatchSize:     p.number("AUDIT_BATCH_SIZE", 5),
		AuditFlushTimeout:  p.duration("AUDIT_FLUSH_TIMEOUT", 500*time.Millisecond),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.StorageDriver != DriverPostgres && c.StorageDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StorageDriver))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 || c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox settings must be positive"))
	}
	if c.AuditWorkers <= 0 || c.AuditBatchSize <= 0 || c.AuditFlushTimeout <= 0 {
		errs = append(errs, errors.New("audit settings must be positive"))
	}
	return errors.Join(errs...)
}

// RequireSecret fails when no token signing secret is configured. Only the
// API process needs one.
func (c *Config) RequireSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

func findEnvFile() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		for _, name := range []string{".env", ".example.env"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) number(key string, def int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.err = errors.Join(p.err, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.err = errors.Join(p.err, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) list(key string) []string {
	var out []string
	for _, part := range strings.Split(p.getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
