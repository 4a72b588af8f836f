// Package db owns the PostgreSQL side of transcript storage: the pgx pool,
// the embedded schema and its migrations, and pool health and metrics.
package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config describes how to reach the transcript database.
type Config struct {
	// URL is a full connection string. When set, the discrete fields are ignored.
	URL             string
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig targets a local "transcripts" database.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "transcripts",
		User:            "penf",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// ConfigFromEnv overlays DATABASE_URL and the DB_* variables (DB_HOST,
// DB_PORT, DB_NAME, DB_USER, DB_PASSWORD, DB_SSLMODE, DB_MAX_CONNS and
// DB_MIN_CONNS) on DefaultConfig. Unparseable numbers keep the default.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.URL = os.Getenv("DATABASE_URL")

	for env, dst := range map[string]*string{
		"DB_HOST":     &cfg.Host,
		"DB_NAME":     &cfg.Database,
		"DB_USER":     &cfg.User,
		"DB_PASSWORD": &cfg.Password,
		"DB_SSLMODE":  &cfg.SSLMode,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	if n, ok := envInt("DB_PORT", 16); ok {
		cfg.Port = int(n)
	}
	if n, ok := envInt("DB_MAX_CONNS", 32); ok {
		cfg.MaxConns = int32(n)
	}
	if n, ok := envInt("DB_MIN_CONNS", 32); ok {
		cfg.MinConns = int32(n)
	}
	return cfg
}

func envInt(name string, bits int) (int64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, bits)
	return n, err == nil
}

// ConnectionString returns URL when set, otherwise a postgres:// URL built
// from the discrete fields.
func (c *Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Redacted returns the connection target without credentials, for logs.
func (c *Config) Redacted() string {
	if c.URL == "" {
		return fmt.Sprintf("%s@%s:%d/%s", c.User, c.Host, c.Port, c.Database)
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return "<unparseable url>"
	}
	return u.Redacted()
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("max connections (%d) must be >= min connections (%d)", c.MaxConns, c.MinConns)
	}
	if c.URL != "" {
		return nil
	}
	switch {
	case c.Host == "":
		return errors.New("database host is required")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid database port: %d", c.Port)
	case c.Database == "":
		return errors.New("database name is required")
	case c.User == "":
		return errors.New("database user is required")
	}
	return nil
}

func (c *Config) poolConfig() (*pgxpool.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	pc, err := pgxpool.ParseConfig(c.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string for %s: %w", c.Redacted(), err)
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	pc.MinConns = c.MinConns
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = c.MaxConnIdleTime
	}
	return pc, nil
}

// Connect opens a pool and pings it. The caller closes the pool.
func Connect(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Redacted(), err)
	}
	return pool, nil
}

// ConnectWithRetry calls Connect up to maxAttempts times, doubling the delay
// after each failure. A configuration error is not retried.
func ConnectWithRetry(ctx context.Context, cfg *Config, maxAttempts int, retryDelay time.Duration) (*pgxpool.Pool, error) {
	if _, err := cfg.poolConfig(); err != nil {
		return nil, err
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	delay := retryDelay
	var lastErr error
	for attempt := 1; ; attempt++ {
		pool, err := Connect(ctx, cfg)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, lastErr)
}
