package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/dbx"
	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/credentials"
	"github.com/dmitrijs2005/gophaccounts/internal/server/mail"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/policy"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/repomanager"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/samber/oops"
)

const (
	maxEmailLength    = 254
	maxFullNameLength = 255
	// bcrypt ignores input past 72 bytes and x/crypto rejects it.
	maxPasswordLength = 72

	passwordResetSubject = "Password recovery"
)

// AccountInput is the body of registration and administrative creation.
// The permission flags are honored only by AdminCreate and CreateSuperuser.
type AccountInput struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	Password    string `json:"password"`
	IsSuperuser bool   `json:"is_superuser"`
	IsStaff     bool   `json:"is_staff"`
}

func (in AccountInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, validation.Length(0, maxEmailLength), is.EmailFormat),
		validation.Field(&in.FullName, validation.Required, validation.Length(0, maxFullNameLength)),
		validation.Field(&in.Password, validation.Required, validation.Length(0, maxPasswordLength)),
	)
}

// UpdateInput is a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
}

func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.NilOrNotEmpty, validation.Length(0, maxEmailLength), is.EmailFormat),
		validation.Field(&in.FullName, validation.NilOrNotEmpty, validation.Length(0, maxFullNameLength)),
		validation.Field(&in.Password, validation.NilOrNotEmpty, validation.Length(0, maxPasswordLength)),
	)
}

type PasswordResetInput struct {
	Email string `json:"email"`
}

func (in PasswordResetInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
	)
}

// fieldErrors converts ozzo-validation output into *common.ValidationError.
func fieldErrors(err error) error {
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return oops.Code("VALIDATION_FAILED").Wrap(err)
	}

	fields := make(map[string]string, len(errs))
	for k, v := range errs {
		fields[k] = v.Error()
	}
	return &common.ValidationError{Fields: fields}
}

// registryError turns a duplicate email into a field error on "email" so
// callers render it like any other validation failure.
func registryError(err error) error {
	if errors.Is(err, common.ErrDuplicateEmail) {
		return common.NewFieldError("email", common.ErrDuplicateEmail.Error(), err)
	}
	return err
}

// AccountService orchestrates the registry and the credential store. Every
// administrative operation is gated by policy.AuthorizeAdmin.
type AccountService struct {
	db               *sql.DB
	repomanager      repomanager.RepositoryManager
	hasher           credentials.Hasher
	mailer           mail.Sender
	passwordResetURL string
	logger           logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, hasher credentials.Hasher, mailer mail.Sender, passwordResetURL string, logger logging.Logger) *AccountService {
	return &AccountService{
		db:               db,
		repomanager:      m,
		hasher:           hasher,
		mailer:           mailer,
		passwordResetURL: strings.TrimRight(passwordResetURL, "/"),
		logger:           logger.With("module", "accounts"),
	}
}

func (s *AccountService) hashPassword(plaintext string) (string, error) {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, credentials.ErrPasswordTooLong) {
			return "", common.NewFieldError("password", "password is too long", err)
		}
		return "", oops.Code("HASH_FAILED").Wrap(err)
	}
	return hash, nil
}

func (s *AccountService) create(ctx context.Context, in AccountInput) (*models.Account, error) {
	in.Email = models.NormalizeEmail(in.Email)
	if err := fieldErrors(in.Validate()); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.repomanager.Accounts(s.db).Create(ctx, &models.Account{
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		IsSuperuser:  in.IsSuperuser,
		IsStaff:      in.IsStaff,
	})
	if err != nil {
		return nil, registryError(err)
	}

	s.logger.Info(ctx, "account created", "account_id", account.ID, "email", account.Email, "is_superuser", account.IsSuperuser)
	return account, nil
}

// Register is self-service sign-up. Permission flags in the input are
// dropped.
func (s *AccountService) Register(ctx context.Context, in AccountInput) (*models.Account, error) {
	in.IsSuperuser, in.IsStaff = false, false
	return s.create(ctx, in)
}

func (s *AccountService) AdminCreate(ctx context.Context, p *policy.Principal, in AccountInput) (*models.Account, error) {
	if err := policy.AuthorizeAdmin(p); err != nil {
		return nil, err
	}
	return s.create(ctx, in)
}

// CreateSuperuser is the operator path used by the admin CLI. It bypasses
// the policy check and forces both permission flags on.
func (s *AccountService) CreateSuperuser(ctx context.Context, in AccountInput) (*models.Account, error) {
	in.IsSuperuser, in.IsStaff = true, true
	return s.create(ctx, in)
}

func (s *AccountService) List(ctx context.Context, p *policy.Principal) ([]*models.Account, error) {
	if err := policy.AuthorizeAdmin(p); err != nil {
		return nil, err
	}
	return s.repomanager.Accounts(s.db).ListActive(ctx)
}

func (s *AccountService) Get(ctx context.Context, p *policy.Principal, id string) (*models.Account, error) {
	if err := policy.AuthorizeAdmin(p); err != nil {
		return nil, err
	}
	return s.repomanager.Accounts(s.db).FindByID(ctx, id)
}

// Update applies a partial update inside one transaction. The target must be
// active; a new email must not belong to any other account.
func (s *AccountService) Update(ctx context.Context, p *policy.Principal, id string, in UpdateInput) (*models.Account, error) {
	if err := policy.AuthorizeAdmin(p); err != nil {
		return nil, err
	}
	if in.Email != nil {
		email := models.NormalizeEmail(*in.Email)
		in.Email = &email
	}
	if err := fieldErrors(in.Validate()); err != nil {
		return nil, err
	}

	upd := models.AccountUpdate{Email: in.Email, FullName: in.FullName}
	if in.Password != nil {
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}

	var updated *models.Account
	err := s.repomanager.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		if upd.Email != nil && *upd.Email != current.Email {
			other, err := repo.FindByEmailAnyStatus(ctx, *upd.Email)
			switch {
			case err == nil && other.ID != current.ID:
				return common.ErrDuplicateEmail
			case err != nil && !errors.Is(err, common.ErrNotFound):
				return err
			}
		}

		if upd.Empty() {
			updated = current
			return nil
		}

		updated, err = repo.Update(ctx, id, upd)
		return err
	})
	if err != nil {
		return nil, registryError(err)
	}

	s.logger.Info(ctx, "account updated", "account_id", id, "by", p.AccountID)
	return updated, nil
}

// Deactivate soft-deletes the account. It stays stored but becomes invisible.
func (s *AccountService) Deactivate(ctx context.Context, p *policy.Principal, id string) (*models.Account, error) {
	if err := policy.AuthorizeAdmin(p); err != nil {
		return nil, err
	}

	account, err := s.repomanager.Accounts(s.db).Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "account deactivated", "account_id", id, "by", p.AccountID)
	return account, nil
}

// RequestPasswordReset mails a recovery link to an active account. No reset
// token is issued; the link only carries the account id.
func (s *AccountService) RequestPasswordReset(ctx context.Context, in PasswordResetInput) error {
	in.Email = models.NormalizeEmail(in.Email)
	if err := fieldErrors(in.Validate()); err != nil {
		return err
	}

	account, err := s.repomanager.Accounts(s.db).FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NewFieldError("email", "no active account with this email", err)
		}
		return err
	}

	link := fmt.Sprintf("%s/%s/", s.passwordResetURL, account.ID)
	msg := mail.Message{
		To:      account.Email,
		Subject: passwordResetSubject,
		Body:    fmt.Sprintf("Hello %s, follow this link to recover your password: %s", account.FullName, link),
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error(ctx, "password reset mail failed", "account_id", account.ID, "error", err)
		return fmt.Errorf("%w: %w", common.ErrMailDelivery, err)
	}

	s.logger.Info(ctx, "password reset mail sent", "account_id", account.ID)
	return nil
}
