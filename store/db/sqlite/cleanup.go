package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/dungnx/chathist/store"
)

// DeleteExpiredConversations removes all conversations whose updated_at
// is older than cutoff, messages first to satisfy the foreign key. Both
// deletes re-evaluate the age predicate inside the same transaction, so
// a conversation bumped by a concurrent append falls out of the matching
// set rather than being half-deleted.
func (d *DB) DeleteExpiredConversations(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		cutoffMicros := toMicros(cutoff)

		_, err := tx.ExecContext(ctx, `
			DELETE FROM messages
			WHERE conversation_id IN (
				SELECT id FROM conversations WHERE updated_at < ?
			)
		`, cutoffMicros)
		if err != nil {
			return errors.Wrap(err, "deleting expired messages")
		}

		result, err := tx.ExecContext(ctx, `
			DELETE FROM conversations WHERE updated_at < ?
		`, cutoffMicros)
		if err != nil {
			return errors.Wrap(err, "deleting expired conversations")
		}
		deleted, err = result.RowsAffected()
		return errors.Wrap(err, "checking rows affected")
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

var _ store.Driver = (*DB)(nil)
