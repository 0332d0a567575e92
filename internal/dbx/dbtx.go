// Package dbx holds the database handle abstraction shared by the account
// repositories and the transaction helper used by multi-step updates.
package dbx

import (
	"context"
	"database/sql"

	"github.com/samber/oops"
)

// DBTX is implemented by both *sql.DB and *sql.Tx, so a repository can be
// bound to either.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back when fn fails or panics; panics are re-raised. Errors from fn
// are returned as is, so callers can still match sentinels.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    current, err := accounts.NewPostgresRepository(tx).FindByID(ctx, id)
//	    ...
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = oops.Code("TX_COMMIT_FAILED").Wrap(cerr)
		}
	}()

	return fn(ctx, tx)
}
