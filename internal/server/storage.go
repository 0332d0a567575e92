package server

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/credentials"
	"github.com/dmitrijs2005/gophaccounts/internal/server/mail"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
	"golang.org/x/crypto/bcrypt"
)

// Storage is an opened account registry with its schema up to date. The
// server and the accountctl commands share it.
type Storage struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	hasher credentials.Hasher
}

// OpenStorage opens the registry named by dsn and applies pending
// migrations. The memory DSN yields a Storage without a database handle.
func OpenStorage(ctx context.Context, dsn string) (*Storage, error) {
	db, repos, err := repomanager.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := repos.RunMigrations(ctx, db); err != nil {
		closeDB(db)
		return nil, err
	}

	return &Storage{
		db:     db,
		repos:  repos,
		hasher: credentials.NewBcryptHasher(bcrypt.DefaultCost),
	}, nil
}

// AccountService builds the account lifecycle service on top of s.
func (s *Storage) AccountService(mailer mail.Sender, passwordResetURL string, logger logging.Logger) *services.AccountService {
	return services.NewAccountService(s.db, s.repos, s.hasher, mailer, passwordResetURL, logger)
}

// Close releases the database handle, if any.
func (s *Storage) Close() {
	closeDB(s.db)
}

func closeDB(db *sql.DB) {
	if db != nil {
		_ = db.Close()
	}
}
