// Package mysql is the relational backend for internal/store.Store: a
// MySQL-wire-compatible database reached through database/sql and
// github.com/go-sql-driver/mysql, generalizing the teacher's dual
// sqlite/dolt database/sql backends into the single shared store the
// presentation tier also reads from (§1 "the contract with that tier is the
// database schema, not an API").
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"

	"github.com/clariona/mediawatch/internal/store"
)

var _ store.Store = (*Store)(nil)

var tracer = otel.Tracer("github.com/clariona/mediawatch/store/mysql")

// Store wraps a *sql.DB with the retry policy the teacher applies to its
// server-mode Dolt connections (internal/storage/dolt/store.go withRetry):
// transient connection errors are retried with exponential backoff,
// everything else is returned immediately.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open connects to dsn (a go-sql-driver/mysql DSN) and verifies
// connectivity. Schema objects are created with CREATE TABLE IF NOT EXISTS
// so Open is idempotent across process restarts.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if log == nil {
		log = slog.Default()
	}
	s := &Store{db: db, log: log}

	if err := s.withRetry(ctx, func() error { return db.PingContext(ctx) }); err != nil {
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("mysql: schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// newRetryBackoff bounds retries to the same 30s elapsed-time ceiling the
// teacher uses for its server-mode Dolt connections.
func newRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	return bo
}

// isRetryableError mirrors internal/storage/dolt/store.go's isRetryableError:
// transient connection blips are worth a retry, everything else is not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, transient := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"lost connection",
		"gone away",
		"i/o timeout",
	} {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}

func (s *Store) withRetry(ctx context.Context, op func() error) error {
	attempts := 0
	bo := newRetryBackoff()
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if isRetryableError(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
	if attempts > 1 {
		s.log.Warn("mysql: operation retried", "attempts", attempts)
	}
	return err
}

// withTx runs fn inside a short transaction, matching §5's "Long
// transactions are forbidden": fn should be a single logical unit of work
// (one mention's analysis commit, one issue lifecycle update, one
// aggregation upsert) and nothing more.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
