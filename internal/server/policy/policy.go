// Package policy decides which principals may run administrative operations.
package policy

import (
	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

// Principal is the authenticated actor behind a request.
type Principal struct {
	AccountID   string
	Email       string
	IsSuperuser bool
	IsStaff     bool
}

// PrincipalFromAccount builds a Principal from an active account.
func PrincipalFromAccount(a *models.Account) *Principal {
	return &Principal{
		AccountID:   a.ID,
		Email:       a.Email,
		IsSuperuser: a.IsSuperuser,
		IsStaff:     a.IsStaff,
	}
}

// AuthorizeAdmin allows only authenticated superusers. A nil principal
// yields common.ErrUnauthenticated, any other refusal common.ErrForbidden.
// IsStaff does not grant access.
func AuthorizeAdmin(p *Principal) error {
	if p == nil {
		return common.ErrUnauthenticated
	}
	if !p.IsSuperuser {
		return common.ErrForbidden
	}
	return nil
}
