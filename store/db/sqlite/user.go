package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/dungnx/chathist/store"
)

// GetOrCreateUser inserts a user for an unseen token, or returns the
// existing one. Two racing first requests both reach the INSERT; the
// uniqueness constraint lets exactly one row in and the re-select picks
// it up for both callers.
func (d *DB) GetOrCreateUser(ctx context.Context, sessionToken string) (*store.User, error) {
	user := &store.User{}
	err := d.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO users (session_token, created_at) VALUES (?, ?)
			ON CONFLICT (session_token) DO NOTHING
		`, sessionToken, toMicros(time.Now()))
		if err != nil {
			return errors.Wrap(err, "inserting user")
		}

		var createdAt int64
		err = conn.QueryRowContext(ctx, `
			SELECT id, session_token, created_at FROM users WHERE session_token = ?
		`, sessionToken).Scan(&user.ID, &user.SessionToken, &createdAt)
		if err == sql.ErrNoRows {
			return errors.Wrap(store.ErrConflict, "user insert raced and re-select missed")
		}
		if err != nil {
			return errors.Wrap(err, "selecting user")
		}
		user.CreatedAt = fromMicros(createdAt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// querier is satisfied by *sql.Conn and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func userExists(ctx context.Context, q querier, userID int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return errors.Wrapf(store.ErrNotFound, "user %d", userID)
	}
	return errors.Wrap(err, "checking user")
}
