package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sovexe/helldivers2-data-pipeline/internal"
)

// Store persists war snapshots and ingest-run bookkeeping in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// BuildDSN assembles a postgres connection URL from the discrete connection
// parameters the environment provides.
func BuildDSN(host, port, name, user, password, sslmode string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   net.JoinHostPort(host, port),
		Path:   name,
	}

	if sslmode != "" {
		q := url.Values{}
		q.Set("sslmode", sslmode)
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// New creates a Store with retry logic around pool creation and the first
// ping, so a worker started alongside its database survives the race.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	connCtx, cancel := context.WithTimeout(ctx, internal.PostgresMaxConnectionWait)
	defer cancel()

	retryDelay := internal.PostgresInitialRetryDelay
	var pool *pgxpool.Pool
	var err error

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.ErrorContext(ctx, "failed to parse postgres config",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute

	for i := range internal.PostgresConnectionRetries {
		select {
		case <-connCtx.Done():
			return nil, fmt.Errorf("timeout after %v waiting to connect to Postgres", internal.PostgresMaxConnectionWait)
		default:
		}

		poolCtx, poolCancel := context.WithTimeout(connCtx, internal.PostgresConnectionTimeout)
		pool, err = pgxpool.NewWithConfig(poolCtx, config)
		poolCancel()

		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(connCtx, internal.PostgresConnectionTimeout)
			err = pool.Ping(pingCtx)
			pingCancel()

			if err == nil {
				break
			}

			pool.Close()
			pool = nil
		}

		if i < internal.PostgresConnectionRetries-1 {
			select {
			case <-time.After(retryDelay):
				logger.InfoContext(ctx, "retrying postgres connection",
					slog.Int("attempt", i+2),
					slog.Int("max_attempts", internal.PostgresConnectionRetries),
					slog.String("retry_delay", retryDelay.String()))
			case <-connCtx.Done():
				return nil, fmt.Errorf("timeout during retry delay for Postgres: %w", connCtx.Err())
			}
			// Exponential backoff
			retryDelay = min(time.Duration(float64(retryDelay)*1.5), internal.PostgresMaxRetryDelay)
		}
	}

	if err != nil {
		logger.ErrorContext(ctx, "failed to connect to postgres after retries",
			slog.Int("max_attempts", internal.PostgresConnectionRetries),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to connect to Postgres after %d attempts: %w", internal.PostgresConnectionRetries, err)
	}

	logger.InfoContext(ctx, "postgres connection established",
		slog.String("host", config.ConnConfig.Host),
		slog.String("database", config.ConnConfig.Database))

	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
