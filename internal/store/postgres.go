// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

// Package store provides storage implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/hiveframe/hiveframe/internal/game"
)

// poolIface abstracts pgxpool.Pool so pgxmock can stand in during tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

var _ poolIface = (*pgxpool.Pool)(nil)

// Connection ping backoff.
const (
	pingBaseDelay  = 250 * time.Millisecond
	pingMaxRetries = 5
)

// Upsert backoff for transient serialization conflicts.
const (
	upsertBaseDelay  = 50 * time.Millisecond
	upsertMaxRetries = 3
)

// PostgresFrameStore implements game.FrameStore using PostgreSQL.
type PostgresFrameStore struct {
	pool poolIface
}

var _ game.FrameStore = (*PostgresFrameStore)(nil)

// NewPostgresFrameStore connects to PostgreSQL and verifies the
// connection, retrying the initial ping with exponential backoff so a
// briefly unavailable database during startup is not fatal.
func NewPostgresFrameStore(ctx context.Context, dsn string) (*PostgresFrameStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrap(err)
	}

	backoff := retry.WithMaxRetries(pingMaxRetries, retry.NewExponential(pingBaseDelay))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrap(err)
	}

	return &PostgresFrameStore{pool: pool}, nil
}

// NewPostgresFrameStoreWithPool wraps an existing pool. Used by tests.
func NewPostgresFrameStoreWithPool(pool poolIface) *PostgresFrameStore {
	return &PostgresFrameStore{pool: pool}
}

// Close closes the database connection pool.
func (s *PostgresFrameStore) Close() {
	s.pool.Close()
}

// UpsertFrame durably writes the frame projection. Transient
// serialization and deadlock failures are retried; every other error
// propagates to the caller.
func (s *PostgresFrameStore) UpsertFrame(ctx context.Context, rec game.FrameRecord) error {
	backoff := retry.WithMaxRetries(upsertMaxRetries, retry.NewExponential(upsertBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO frames (id, players, status, board, turn, updated_at)
			 VALUES ($1, $2, $3, $4, $5, now())
			 ON CONFLICT (id) DO UPDATE
			 SET players = EXCLUDED.players,
			     status = EXCLUDED.status,
			     board = EXCLUDED.board,
			     turn = EXCLUDED.turn,
			     updated_at = now()`,
			rec.ID,
			rec.Players,
			string(rec.Status),
			rec.Board,
			rec.Turn,
		)
		if err != nil && isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return oops.Code("STORE_UPSERT_FAILED").With("frame_id", rec.ID).Wrap(err)
	}
	return nil
}

// isTransient reports whether the error is a PostgreSQL failure that a
// retry of the same statement can resolve.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}
