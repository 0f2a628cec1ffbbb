package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/dungnx/chathist/store"
)

// CreateConversation creates a new conversation row for the user.
func (d *DB) CreateConversation(ctx context.Context, userID int64, title string) (*store.Conversation, error) {
	conversation := &store.Conversation{}
	err := d.withTx(ctx, func(tx pgx.Tx) error {
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO conversations (user_id, title)
			VALUES ($1, $2)
			RETURNING id, user_id, title, created_at, updated_at
		`, userID, title).Scan(
			&conversation.ID, &conversation.UserID, &conversation.Title,
			&conversation.CreatedAt, &conversation.UpdatedAt,
		)
		return errors.Wrap(err, "inserting conversation")
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
	err := d.withConn(ctx, func(conn *pgxpool.Conn) error {
		if err := userExists(ctx, conn, userID); err != nil {
			return err
		}

		rows, err := conn.Query(ctx, `
			SELECT id, user_id, title, created_at, updated_at
			FROM conversations
			WHERE user_id = $1
			ORDER BY updated_at DESC, id DESC
		`, userID)
		if err != nil {
			return errors.Wrap(err, "querying conversations")
		}
		defer rows.Close()

		for rows.Next() {
			conversation := &store.Conversation{}
			if err := rows.Scan(
				&conversation.ID, &conversation.UserID, &conversation.Title,
				&conversation.CreatedAt, &conversation.UpdatedAt,
			); err != nil {
				return errors.Wrap(err, "scanning conversation row")
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
	err := d.withConn(ctx, func(conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, `
			UPDATE conversations SET title = $1, updated_at = NOW()
			WHERE id = $2
			RETURNING id, user_id, title, created_at, updated_at
		`, title, conversationID).Scan(
			&conversation.ID, &conversation.UserID, &conversation.Title,
			&conversation.CreatedAt, &conversation.UpdatedAt,
		)
		if err == pgx.ErrNoRows {
			return errors.Wrapf(store.ErrNotFound, "conversation %d", conversationID)
		}
		return errors.Wrap(err, "updating conversation")
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}
