// Package postgres implements store.Driver on a Postgres database via a
// bounded pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/dungnx/chathist/store"
)

const (
	maxConns       = 20
	acquireTimeout = 10 * time.Second
)

// DB implements store.Driver.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to the database at url and ensures the schema exists.
func New(ctx context.Context, url string) (*DB, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing database url")
	}
	config.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "creating pool")
	}

	d := &DB{pool: pool}
	if err := d.createTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) createTables(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL PRIMARY KEY,
			session_token TEXT NOT NULL UNIQUE,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS conversations (
			id         BIGSERIAL PRIMARY KEY,
			user_id    BIGINT NOT NULL REFERENCES users (id),
			title      TEXT NOT NULL DEFAULT 'New Chat',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL PRIMARY KEY,
			conversation_id BIGINT NOT NULL REFERENCES conversations (id),
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			images          JSONB,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_user
			ON conversations (user_id, updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages (conversation_id, created_at);
	`)
	return errors.Wrap(err, "creating tables")
}

// withConn runs fn on an exclusively-leased pool connection, released on
// every exit path. Pool exhaustion past acquireTimeout maps to
// store.ErrUnavailable.
func (d *DB) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	leaseCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	conn, err := d.pool.Acquire(leaseCtx)
	if err != nil {
		// Only the lease timeout itself maps to ErrUnavailable; a
		// caller arriving with a dead context keeps its own error.
		if leaseCtx.Err() != nil && ctx.Err() == nil {
			return errors.Wrap(store.ErrUnavailable, "acquiring connection")
		}
		return errors.Wrap(err, "acquiring connection")
	}
	defer conn.Release()

	return fn(conn)
}

// withTx runs fn inside a transaction on a leased connection.
func (d *DB) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return d.withConn(ctx, func(conn *pgxpool.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return errors.Wrap(err, "beginning transaction")
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}
		return errors.Wrap(tx.Commit(ctx), "committing transaction")
	})
}

// Close closes the pool.
func (d *DB) Close() error {
	d.pool.Close()
	return nil
}

func marshalImages(images []*store.Image) ([]byte, error) {
	if len(images) == 0 {
		return nil, nil
	}
	bytes, err := json.Marshal(images)
	return bytes, errors.Wrap(err, "marshaling images")
}

func unmarshalImages(raw []byte) ([]*store.Image, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var images []*store.Image
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, errors.Wrap(err, "unmarshaling images")
	}
	return images, nil
}

var _ store.Driver = (*DB)(nil)
