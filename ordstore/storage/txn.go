package storage

import (
	"context"
	"database/sql"
)

// WithTransaction runs fn inside a transaction. When tx is non-nil it is
// reused and left open for the caller to commit; otherwise a transaction is
// begun on db, committed when fn returns nil and rolled back when it
// errors. fn's error propagates unwrapped so callers see the original
// failure.
func WithTransaction(ctx context.Context, db *sql.DB, tx *sql.Tx, fn func(tx *sql.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
