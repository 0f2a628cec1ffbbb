package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/dungnx/chathist/store"
)

// AppendMessage inserts the message and bumps the parent conversation's
// updated_at in one transaction. The bump doubles as the existence
// check: zero rows updated means the conversation is gone (possibly
// deleted by the retention sweep between the caller's read and now).
func (d *DB) AppendMessage(ctx context.Context, append *store.AppendMessage) (*store.Message, error) {
	message := &store.Message{
		ConversationID: append.ConversationID,
		Role:           append.Role,
		Content:        append.Content,
		Images:         append.Images,
	}
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		now := toMicros(time.Now())

		result, err := tx.ExecContext(ctx, `
			UPDATE conversations SET updated_at = ? WHERE id = ?
		`, now, append.ConversationID)
		if err != nil {
			return errors.Wrap(err, "bumping conversation")
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "checking rows affected")
		}
		if affected == 0 {
			return errors.Wrapf(store.ErrNotFound, "conversation %d", append.ConversationID)
		}

		images, err := marshalImages(append.Images)
		if err != nil {
			return err
		}
		result, err = tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, role, content, images, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, append.ConversationID, string(append.Role), append.Content, images, now)
		if err != nil {
			return errors.Wrap(err, "inserting message")
		}
		id, err := result.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "reading message id")
		}
		message.ID = id
		message.CreatedAt = fromMicros(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// ListMessages returns the conversation's messages oldest first. The id
// tiebreak keeps same-microsecond appends in insertion order.
func (d *DB) ListMessages(ctx context.Context, conversationID int64) ([]*store.Message, error) {
	var messages []*store.Message
	err := d.withConn(ctx, func(conn *sql.Conn) error {
		var one int
		err := conn.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&one)
		if err == sql.ErrNoRows {
			return errors.Wrapf(store.ErrNotFound, "conversation %d", conversationID)
		}
		if err != nil {
			return errors.Wrap(err, "checking conversation")
		}

		rows, err := conn.QueryContext(ctx, `
			SELECT id, conversation_id, role, content, images, created_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at ASC, id ASC
		`, conversationID)
		if err != nil {
			return errors.Wrap(err, "querying messages")
		}
		defer rows.Close()

		for rows.Next() {
			message := &store.Message{}
			var role string
			var images sql.NullString
			var createdAt int64
			if err := rows.Scan(
				&message.ID, &message.ConversationID, &role, &message.Content, &images, &createdAt,
			); err != nil {
				return errors.Wrap(err, "scanning message row")
			}
			message.Role = store.Role(role)
			message.CreatedAt = fromMicros(createdAt)
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
