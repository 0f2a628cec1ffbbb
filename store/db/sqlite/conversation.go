package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/dungnx/chathist/store"
)

// CreateConversation creates a new conversation row for the user.
func (d *DB) CreateConversation(ctx context.Context, userID int64, title string) (*store.Conversation, error) {
	conversation := &store.Conversation{UserID: userID, Title: title}
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}

		now := toMicros(time.Now())
		result, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (user_id, title, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, userID, title, now, now)
		if err != nil {
			return errors.Wrap(err, "inserting conversation")
		}
		id, err := result.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "reading conversation id")
		}
		conversation.ID = id
		conversation.CreatedAt = fromMicros(now)
		conversation.UpdatedAt = fromMicros(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// ListConversations returns the user's conversations ordered by most
// recent activity.
func (d *DB) ListConversations(ctx context.Context, userID int64) ([]*store.Conversation, error) {
	var conversations []*store.Conversation
	err := d.withConn(ctx, func(conn *sql.Conn) error {
		if err := userExists(ctx, conn, userID); err != nil {
			return err
		}

		rows, err := conn.QueryContext(ctx, `
			SELECT id, user_id, title, created_at, updated_at
			FROM conversations
			WHERE user_id = ?
			ORDER BY updated_at DESC, id DESC
		`, userID)
		if err != nil {
			return errors.Wrap(err, "querying conversations")
		}
		defer rows.Close()

		for rows.Next() {
			conversation, err := scanConversation(rows)
			if err != nil {
				return err
			}
			conversations = append(conversations, conversation)
		}
		return errors.Wrap(rows.Err(), "iterating conversation rows")
	})
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

// RenameConversation updates the title and bumps updated_at.
func (d *DB) RenameConversation(ctx context.Context, conversationID int64, title string) (*store.Conversation, error) {
	conversation := &store.Conversation{}
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?
		`, title, toMicros(time.Now()), conversationID)
		if err != nil {
			return errors.Wrap(err, "updating conversation")
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "checking rows affected")
		}
		if affected == 0 {
			return errors.Wrapf(store.ErrNotFound, "conversation %d", conversationID)
		}

		row := tx.QueryRowContext(ctx, `
			SELECT id, user_id, title, created_at, updated_at
			FROM conversations WHERE id = ?
		`, conversationID)
		conversation, err = scanConversation(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*store.Conversation, error) {
	conversation := &store.Conversation{}
	var createdAt, updatedAt int64
	if err := row.Scan(
		&conversation.ID, &conversation.UserID, &conversation.Title, &createdAt, &updatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "scanning conversation row")
	}
	conversation.CreatedAt = fromMicros(createdAt)
	conversation.UpdatedAt = fromMicros(updatedAt)
	return conversation, nil
}
