package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/dbx"
	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/credentials"
	"github.com/dmitrijs2005/gophaccounts/internal/server/mail"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/policy"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fixture struct {
	auth     *AuthService
	accounts *AccountService
	mailer   *fakeMailer
	hasher   credentials.Hasher
	manager  repomanager.RepositoryManager
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
}

func newFixtureWithManager(t *testing.T, m repomanager.RepositoryManager) *fixture {
	t.Helper()
	hasher := credentials.NewBcryptHasher(bcrypt.MinCost)
	mailer := &fakeMailer{}
	logger := logging.Discard()

	auth, err := NewAuthService(nil, m, hasher, testConfig(), logger)
	require.NoError(t, err)

	return &fixture{
		auth:     auth,
		accounts: NewAccountService(nil, m, hasher, mailer, "http://example.com/reset/", logger),
		mailer:   mailer,
		hasher:   hasher,
		manager:  m,
	}
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithManager(t, repomanager.NewMemoryRepositoryManager())
}

func (f *fixture) register(t *testing.T, email, password string) *models.Account {
	t.Helper()
	a, err := f.accounts.Register(context.Background(), AccountInput{Email: email, FullName: "Name", Password: password})
	require.NoError(t, err)
	return a
}

func (f *fixture) admin(t *testing.T) *policy.Principal {
	t.Helper()
	a, err := f.accounts.CreateSuperuser(context.Background(), AccountInput{Email: "root@x.com", FullName: "Root", Password: "rootpw"})
	require.NoError(t, err)
	return policy.PrincipalFromAccount(a)
}

// brokenManager vends a repository whose every call fails.
type brokenManager struct {
	err error
}

func (m brokenManager) RunMigrations(context.Context, *sql.DB) error { return m.err }
func (m brokenManager) Accounts(dbx.DBTX) accounts.Repository    { return brokenRepo(m) }
func (m brokenManager) WithTx(ctx context.Context, _ *sql.DB, fn func(context.Context, dbx.DBTX) error) error {
	return fn(ctx, nil)
}

type brokenRepo struct {
	err error
}

func (r brokenRepo) Create(context.Context, *models.Account) (*models.Account, error) {
	return nil, r.err
}
func (r brokenRepo) FindByID(context.Context, string) (*models.Account, error) { return nil, r.err }
func (r brokenRepo) FindByEmail(context.Context, string) (*models.Account, error) {
	return nil, r.err
}
func (r brokenRepo) FindByEmailAnyStatus(context.Context, string) (*models.Account, error) {
	return nil, r.err
}
func (r brokenRepo) ListActive(context.Context) ([]*models.Account, error) { return nil, r.err }
func (r brokenRepo) Update(context.Context, string, models.AccountUpdate) (*models.Account, error) {
	return nil, r.err
}
func (r brokenRepo) Deactivate(context.Context, string) (*models.Account, error) {
	return nil, r.err
}
