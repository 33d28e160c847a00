package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hitster-live/internal/config"
	"github.com/hitster-live/internal/domain"
	"github.com/hitster-live/internal/store"
)

const (
	maxTxAttempts  = 8
	baseRetryDelay = 25 * time.Millisecond
	maxRetryDelay  = 800 * time.Millisecond
)

// ErrTxConflict is returned when a transaction keeps losing serialization races
var ErrTxConflict = fmt.Errorf("%w: too many concurrent updates, try again", domain.ErrConflict)

// Repository provides PostgreSQL-based game storage
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ store.Store = (*Repository)(nil)

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS players_name_lower ON players (lower(name))`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id BIGSERIAL PRIMARY KEY,
			question TEXT NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed')),
			correct_song TEXT,
			correct_artist TEXT,
			correct_year INT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			closed_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS rounds_one_open ON rounds ((true)) WHERE status = 'open'`,
		`CREATE TABLE IF NOT EXISTS guesses (
			round_id BIGINT NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
			player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			guess_song TEXT,
			guess_artist TEXT,
			guess_year INT,
			points_song INT NOT NULL DEFAULT 0,
			points_artist INT NOT NULL DEFAULT 0,
			points_year INT NOT NULL DEFAULT 0,
			total_points INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (round_id, player_id)
		)`,
		`CREATE TABLE IF NOT EXISTS standings_history (
			round_id BIGINT NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
			player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			rank INT NOT NULL,
			points INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (round_id, player_id)
		)`,
		`CREATE TABLE IF NOT EXISTS game_state (
			id INT PRIMARY KEY CHECK (id = 1),
			difficulty VARCHAR(10) NOT NULL DEFAULT 'easy',
			game_status VARCHAR(10) NOT NULL DEFAULT 'running',
			ended_at TIMESTAMPTZ,
			auto_rounds BOOLEAN NOT NULL DEFAULT false,
			next_round_at TIMESTAMPTZ,
			version BIGINT NOT NULL DEFAULT 0
		)`,
		`INSERT INTO game_state (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
		`CREATE INDEX IF NOT EXISTS idx_guesses_player ON guesses(player_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_closed ON rounds(id DESC) WHERE status = 'closed'`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// WithTx runs fn in a serializable transaction, retrying on serialization
// failures and deadlocks with exponential backoff.
func (r *Repository) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	delay := baseRetryDelay
	for attempt := 1; ; attempt++ {
		err := r.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		if attempt == maxTxAttempts {
			r.logger.Warn("transaction retries exhausted", "attempts", attempt, "error", err)
			return ErrTxConflict
		}
		r.logger.Debug("retrying transaction", "attempt", attempt, "error", err)
		if err := sleepWithContext(ctx, delay); err != nil {
			return err
		}
		if delay < maxRetryDelay {
			delay *= 2
		}
	}
}

func (r *Repository) runTx(ctx context.Context, fn func(tx store.Tx) error) error {
	pgTx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer pgTx.Rollback(ctx)

	if err := fn(&tx{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
