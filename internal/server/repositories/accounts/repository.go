// Package accounts is the account registry: identity, email uniqueness and
// active/inactive status. Deactivated accounts are invisible to every read
// except FindByEmailAnyStatus, which login needs to tell inactive accounts
// apart from unknown ones.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

type Repository interface {
	// Create stores a new active account. ID and CreatedAt are assigned here.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByEmailAnyStatus(ctx context.Context, email string) (*models.Account, error)
	// ListActive returns active accounts ordered by creation time.
	ListActive(ctx context.Context) ([]*models.Account, error)
	Update(ctx context.Context, id string, upd models.AccountUpdate) (*models.Account, error)
	Deactivate(ctx context.Context, id string) (*models.Account, error)
}
