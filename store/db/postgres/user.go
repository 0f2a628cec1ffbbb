package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/dungnx/chathist/store"
)

// GetOrCreateUser inserts a user for an unseen token, or returns the
// existing one. The uniqueness constraint on session_token resolves
// concurrent first requests: one insert wins, the other no-ops, and both
// re-select the same row.
func (d *DB) GetOrCreateUser(ctx context.Context, sessionToken string) (*store.User, error) {
	user := &store.User{}
	err := d.withConn(ctx, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO users (session_token) VALUES ($1)
			ON CONFLICT (session_token) DO NOTHING
		`, sessionToken)
		if err != nil {
			return errors.Wrap(err, "inserting user")
		}

		err = conn.QueryRow(ctx, `
			SELECT id, session_token, created_at FROM users WHERE session_token = $1
		`, sessionToken).Scan(&user.ID, &user.SessionToken, &user.CreatedAt)
		if err == pgx.ErrNoRows {
			return errors.Wrap(store.ErrConflict, "user insert raced and re-select missed")
		}
		return errors.Wrap(err, "selecting user")
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// querier is satisfied by *pgxpool.Conn and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func userExists(ctx context.Context, q querier, userID int64) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1`, userID).Scan(&one)
	if err == pgx.ErrNoRows {
		return errors.Wrapf(store.ErrNotFound, "user %d", userID)
	}
	return errors.Wrap(err, "checking user")
}
