package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/dungnx/chathist/store"
)

// AppendMessage inserts the message and bumps the parent conversation's
// updated_at in one transaction. The bump doubles as the existence
// check.
func (d *DB) AppendMessage(ctx context.Context, append *store.AppendMessage) (*store.Message, error) {
	message := &store.Message{
		ConversationID: append.ConversationID,
		Role:           append.Role,
		Content:        append.Content,
		Images:         append.Images,
	}
	err := d.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE conversations SET updated_at = NOW() WHERE id = $1
		`, append.ConversationID)
		if err != nil {
			return errors.Wrap(err, "bumping conversation")
		}
		if tag.RowsAffected() == 0 {
			return errors.Wrapf(store.ErrNotFound, "conversation %d", append.ConversationID)
		}

		images, err := marshalImages(append.Images)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO messages (conversation_id, role, content, images)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, append.ConversationID, string(append.Role), append.Content, images).Scan(
			&message.ID, &message.CreatedAt,
		)
		return errors.Wrap(err, "inserting message")
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// ListMessages returns the conversation's messages oldest first.
func (d *DB) ListMessages(ctx context.Context, conversationID int64) ([]*store.Message, error) {
	var messages []*store.Message
	err := d.withConn(ctx, func(conn *pgxpool.Conn) error {
		var one int
		err := conn.QueryRow(ctx, `SELECT 1 FROM conversations WHERE id = $1`, conversationID).Scan(&one)
		if err == pgx.ErrNoRows {
			return errors.Wrapf(store.ErrNotFound, "conversation %d", conversationID)
		}
		if err != nil {
			return errors.Wrap(err, "checking conversation")
		}

		rows, err := conn.Query(ctx, `
			SELECT id, conversation_id, role, content, images, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at ASC, id ASC
		`, conversationID)
		if err != nil {
			return errors.Wrap(err, "querying messages")
		}
		defer rows.Close()

		for rows.Next() {
			message := &store.Message{}
			var role string
			var images []byte
			if err := rows.Scan(
				&message.ID, &message.ConversationID, &role, &message.Content, &images, &message.CreatedAt,
			); err != nil {
				return errors.Wrap(err, "scanning message row")
			}
			message.Role = store.Role(role)
			if message.Images, err = unmarshalImages(images); err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return errors.Wrap(rows.Err(), "iterating message rows")
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}
