// Package services contains server-side business logic: the login state
// machine and token handling (AuthService) and the account lifecycle
// operations (AccountService).
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/auth"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/credentials"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/policy"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/repomanager"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/samber/oops"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// AuthService verifies credentials and issues, refreshes and checks tokens.
// Tokens are never stored.
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	hasher                       credentials.Hasher
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	// dummyHash is verified against when the email is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyHash string
}

// NewAuthService fails when the dummy hash for unknown emails cannot be
// computed.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, hasher credentials.Hasher, cfg *config.Config, logger logging.Logger) (*AuthService, error) {
	s := &AuthService{
		db:                           db,
		repomanager:                  m,
		hasher:                       hasher,
		logger:                       logger.With("module", "auth"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}

	seed, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, oops.Code("DUMMY_HASH_FAILED").Wrap(err)
	}
	if s.dummyHash, err = hasher.Hash(seed); err != nil {
		return nil, oops.Code("DUMMY_HASH_FAILED").Wrap(err)
	}

	return s, nil
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required),
	)
}

// Login runs lookup, password verification and status check in that order.
// Unknown email and wrong password both yield common.ErrInvalidCredentials;
// a deactivated account with the right password yields
// common.ErrAccountInactive.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenPair, error) {
	in.Email = models.NormalizeEmail(in.Email)
	if err := fieldErrors(in.Validate()); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)

	account, err := repo.FindByEmailAnyStatus(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.Verify(in.Password, s.dummyHash)
			return nil, common.ErrInvalidCredentials
		}
		return nil, oops.Code("LOGIN_LOOKUP_FAILED").Wrap(err)
	}

	if !s.hasher.Verify(in.Password, account.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	if !account.Status {
		return nil, common.ErrAccountInactive
	}

	s.logger.Info(ctx, "login succeeded", "account_id", account.ID)

	return s.generateTokenPair(account.ID)
}

// Refresh exchanges a valid refresh token of an active account for a new
// pair. The presented token stays valid until it expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := auth.GetUserIDFromToken(refreshToken, common.TokenTypeRefresh, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	if _, err := s.repomanager.Accounts(s.db).FindByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, oops.Code("REFRESH_LOOKUP_FAILED").Wrap(err)
	}

	return s.generateTokenPair(userID)
}

// Authenticate resolves an access token into the principal of an active
// account. Any failure is reported as common.ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*policy.Principal, error) {
	userID, err := auth.GetUserIDFromToken(accessToken, common.TokenTypeAccess, s.jwtSecret)
	if err != nil {
		return nil, oops.Code("TOKEN_REJECTED").With("reason", err.Error()).Wrap(common.ErrUnauthenticated)
	}

	account, err := s.repomanager.Accounts(s.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, oops.Code("TOKEN_REJECTED").With("reason", "account not active").Wrap(common.ErrUnauthenticated)
		}
		return nil, oops.Code("AUTHENTICATE_LOOKUP_FAILED").Wrap(err)
	}

	return policy.PrincipalFromAccount(account), nil
}

func (s *AuthService) generateTokenPair(userID string) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, common.TokenTypeAccess, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	refresh, err := auth.GenerateToken(userID, common.TokenTypeRefresh, s.jwtSecret, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
