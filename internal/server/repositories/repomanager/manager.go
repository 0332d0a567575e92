// Package repomanager vends account repositories bound to a database handle
// and owns schema migrations. Two managers exist: PostgreSQL and in-memory.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophaccounts/internal/dbx"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/accounts"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	// WithTx runs fn so that every repository built from tx shares one
	// transaction.
	WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error
}
