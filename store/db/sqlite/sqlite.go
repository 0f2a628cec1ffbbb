// Package sqlite implements store.Driver on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/dungnx/chathist/internal/file"
	"github.com/dungnx/chathist/store"
)

const (
	// maxOpenConns bounds concurrent connection leases; excess demand
	// queues until acquireTimeout, then fails with ErrUnavailable.
	maxOpenConns   = 10
	acquireTimeout = 5 * time.Second
)

// DB implements store.Driver.
type DB struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite database at path.
func New(path string) (*DB, error) {
	if err := file.CreateDirectoryIfNotExist(filepath.Dir(path)); err != nil {
		return nil, errors.Wrap(err, "creating database directory")
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		url.PathEscape(path),
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	db.SetMaxOpenConns(maxOpenConns)

	d := &DB{db: db}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) createTables() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			session_token TEXT NOT NULL UNIQUE,
			created_at    INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS conversations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users (id),
			title      TEXT NOT NULL DEFAULT 'New Chat',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversations (id),
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			images          TEXT,
			created_at      INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_user
			ON conversations (user_id, updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages (conversation_id, created_at);
	`)
	if err != nil {
		return errors.Wrap(err, "creating tables")
	}
	return nil
}

// withConn runs fn on an exclusively-leased connection. Acquisition is
// bounded: once the pool is exhausted for longer than acquireTimeout the
// caller gets store.ErrUnavailable. The lease is released on every exit
// path.
func (d *DB) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	leaseCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	conn, err := d.db.Conn(leaseCtx)
	if err != nil {
		// Only the lease timeout itself maps to ErrUnavailable; a
		// caller arriving with a dead context keeps its own error.
		if leaseCtx.Err() != nil && ctx.Err() == nil {
			return errors.Wrap(store.ErrUnavailable, "acquiring connection")
		}
		return errors.Wrap(err, "acquiring connection")
	}
	defer conn.Close()

	return fn(conn)
}

// withTx runs fn inside a transaction on a leased connection.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return d.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "beginning transaction")
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		return errors.Wrap(tx.Commit(), "committing transaction")
	})
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Timestamps are stored as unix microseconds.
func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(micros int64) time.Time {
	return time.UnixMicro(micros).UTC()
}

func marshalImages(images []*store.Image) (sql.NullString, error) {
	if len(images) == 0 {
		return sql.NullString{}, nil
	}
	bytes, err := json.Marshal(images)
	if err != nil {
		return sql.NullString{}, errors.Wrap(err, "marshaling images")
	}
	return sql.NullString{String: string(bytes), Valid: true}, nil
}

func unmarshalImages(raw sql.NullString) ([]*store.Image, error) {
	if !raw.Valid {
		return nil, nil
	}
	var images []*store.Image
	if err := json.Unmarshal([]byte(raw.String), &images); err != nil {
		return nil, errors.Wrap(err, "unmarshaling images")
	}
	return images, nil
}
