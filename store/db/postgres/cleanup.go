package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// DeleteExpiredConversations removes all conversations whose updated_at
// is older than cutoff, messages first to satisfy the foreign key. The
// DELETEs re-evaluate the age predicate against the row versions they
// act on, so a conversation bumped by a concurrent append survives the
// sweep intact.
func (d *DB) DeleteExpiredConversations(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := d.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM messages
			WHERE conversation_id IN (
				SELECT id FROM conversations WHERE updated_at < $1
			)
		`, cutoff)
		if err != nil {
			return errors.Wrap(err, "deleting expired messages")
		}

		tag, err := tx.Exec(ctx, `
			DELETE FROM conversations WHERE updated_at < $1
		`, cutoff)
		if err != nil {
			return errors.Wrap(err, "deleting expired conversations")
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
