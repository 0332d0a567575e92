package repomanager

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dmitrijs2005/gophaccounts/internal/dbx"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/accounts"
)

// MemoryRepositoryManager hands out one shared in-memory repository and
// ignores database handles.
type MemoryRepositoryManager struct {
	accounts *accounts.MemoryRepository
	txMu     sync.Mutex
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{accounts: accounts.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return m.accounts
}

// WithTx serializes callers. There is no rollback: writes made by fn before
// it fails stay applied.
func (m *MemoryRepositoryManager) WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	return fn(ctx, nil)
}
