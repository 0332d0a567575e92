package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MemoryRepository keeps accounts in process memory. It is used when the
// server runs with the "memory" DSN and in tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.Account
	order []string
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID: make(map[string]*models.Account),
		now:  time.Now,
	}
}

func clone(a *models.Account) *models.Account {
	c := *a
	return &c
}

// emailTakenLocked reports whether email belongs to an account other than
// exceptID. Inactive accounts still hold their email.
func (r *MemoryRepository) emailTakenLocked(email, exceptID string) bool {
	for id, a := range r.byID {
		if id != exceptID && a.Email == email {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := models.NormalizeEmail(account.Email)
	if r.emailTakenLocked(email, "") {
		return nil, oops.Code("DUPLICATE_EMAIL").With("operation", "create account").Wrap(common.ErrDuplicateEmail)
	}

	a := &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     account.FullName,
		PasswordHash: account.PasswordHash,
		CreatedAt:    r.now().UTC(),
		Status:       true,
		IsSuperuser:  account.IsSuperuser,
		IsStaff:      account.IsStaff,
	}
	r.byID[a.ID] = a
	r.order = append(r.order, a.ID)

	return clone(a), nil
}

// activeLocked is the in-memory counterpart of the activeOnly predicate.
func (r *MemoryRepository) activeLocked(id string) (*models.Account, bool) {
	a, ok := r.byID[id]
	if !ok || !a.Status {
		return nil, false
	}
	return a, true
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.activeLocked(id)
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(a), nil
}

func (r *MemoryRepository) findByEmailLocked(email string) *models.Account {
	email = models.NormalizeEmail(email)
	for _, a := range r.byID {
		if a.Email == email {
			return a
		}
	}
	return nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a := r.findByEmailLocked(email)
	if a == nil || !a.Status {
		return nil, common.ErrNotFound
	}
	return clone(a), nil
}

func (r *MemoryRepository) FindByEmailAnyStatus(ctx context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a := r.findByEmailLocked(email)
	if a == nil {
		return nil, common.ErrNotFound
	}
	return clone(a), nil
}

func (r *MemoryRepository) ListActive(ctx context.Context) ([]*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Account, 0, len(r.order))
	for _, id := range r.order {
		if a, ok := r.activeLocked(id); ok {
			result = append(result, clone(a))
		}
	}
	return result, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, upd models.AccountUpdate) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.activeLocked(id)
	if !ok {
		return nil, common.ErrNotFound
	}

	if upd.Email != nil {
		email := models.NormalizeEmail(*upd.Email)
		if r.emailTakenLocked(email, id) {
			return nil, oops.Code("DUPLICATE_EMAIL").With("operation", "update account").Wrap(common.ErrDuplicateEmail)
		}
		a.Email = email
	}
	if upd.FullName != nil {
		a.FullName = *upd.FullName
	}
	if upd.PasswordHash != nil {
		a.PasswordHash = *upd.PasswordHash
	}

	return clone(a), nil
}

func (r *MemoryRepository) Deactivate(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.activeLocked(id)
	if !ok {
		return nil, common.ErrNotFound
	}
	a.Status = false

	return clone(a), nil
}
