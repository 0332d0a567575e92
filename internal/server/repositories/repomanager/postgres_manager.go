package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/dbx"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/migrations"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/accounts"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories.
type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Accounts returns an accounts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, db, nil, fn)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded goose migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	return nil
}

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// Open returns a manager for dsn together with its database handle.
// config.MemoryDSN selects the in-memory manager and a nil handle.
func Open(ctx context.Context, dsn string) (*sql.DB, RepositoryManager, error) {
	if dsn == config.MemoryDSN {
		return nil, NewMemoryRepositoryManager(), nil
	}

	if dsn == "" {
		return nil, nil, oops.Code("CONFIG_INVALID").Wrapf(common.ErrValidation, "database DSN is required")
	}

	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "open database").Wrap(err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping database").Wrap(err)
	}

	return db, NewPostgresRepositoryManager(), nil
}
