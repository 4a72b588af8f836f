package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otherjamesbrown/penf-transcripts/config"
	"github.com/otherjamesbrown/penf-transcripts/credentials"
	"github.com/otherjamesbrown/penf-transcripts/pkg/db"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/events"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/storage"
	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
	"github.com/otherjamesbrown/penf-transcripts/services/normalizer"
)

// Connection retry policy for commands that need the database.
const (
	dbConnectAttempts = 3
	dbRetryDelay      = 2 * time.Second
)

// errNoDatabase is returned by commands that need storage when none is configured.
var errNoDatabase = errors.New("no database configured; set DATABASE_URL or run 'penf-transcripts config set database.url <url>'")

// Backend holds the optional storage and event connections. Nil fields mean
// the corresponding backend is not configured.
type Backend struct {
	Pool      *pgxpool.Pool
	Repo      *storage.Repository
	Publisher *events.Publisher
}

// Store returns the transcript store, or nil when no database is configured.
func (b *Backend) Store() normalizer.Store {
	if b == nil || b.Repo == nil {
		return nil
	}
	return b.Repo
}

// Emitter returns the event publisher, or nil when Redis is disabled.
func (b *Backend) Emitter() events.Emitter {
	if b == nil || b.Publisher == nil {
		return nil
	}
	return b.Publisher
}

// Checks lists the dependencies probed by /readyz.
func (b *Backend) Checks() map[string]db.Pinger {
	checks := map[string]db.Pinger{}
	if b == nil {
		return checks
	}
	if b.Pool != nil {
		checks["database"] = b.Pool
	}
	if b.Publisher != nil {
		checks["redis"] = b.Publisher
	}
	return checks
}

// Close releases every connection.
func (b *Backend) Close() {
	if b == nil {
		return
	}
	if b.Publisher != nil {
		_ = b.Publisher.Close()
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
}

// connectBackend opens the database (applying embedded migrations) and the
// Redis publisher when each is configured.
func connectBackend(deps *CommandDeps) (*Backend, error) {
	cfg, err := deps.config()
	if err != nil {
		return nil, err
	}
	logger := deps.logger()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	b := &Backend{}

	if cfg.Database.IsConfigured() {
		pool, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if _, err := db.RunMigrations(ctx, pool, db.Schema()); err != nil {
			pool.Close()
			return nil, fmt.Errorf("applying migrations: %w", err)
		}
		b.Pool = pool
		b.Repo = storage.NewRepository(pool, logger)
	}

	if cfg.Redis.Enabled {
		password, err := credentials.Lookup(credentials.SecretRedisPassword)
		if err != nil {
			logger.Warn("Could not read Redis password", logging.Err(err))
		}
		pub, err := events.NewPublisherFromConfig(ctx, events.PublisherConfig{
			Addr:     cfg.Redis.Addr,
			Password: password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Publisher = pub
	}

	return b, nil
}

// openDatabase connects with the configured settings and stored password.
func openDatabase(ctx context.Context, cfg *config.CLIConfig) (*pgxpool.Pool, error) {
	password, err := credentials.Lookup(credentials.SecretDatabasePassword)
	if err != nil {
		return nil, fmt.Errorf("reading database password: %w", err)
	}
	pool, err := db.ConnectWithRetry(ctx, cfg.Database.DBConfig(password), dbConnectAttempts, dbRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// requireStore connects and fails when no database is configured.
func requireStore(deps *CommandDeps) (*Backend, error) {
	cfg, err := deps.config()
	if err != nil {
		return nil, err
	}
	if !cfg.Database.IsConfigured() {
		return nil, errNoDatabase
	}
	return deps.ConnectBackend(deps)
}
