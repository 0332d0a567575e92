// Package common defines shared constants and sentinel errors used across
// the account service layers. Callers should use errors.Is to match these
// values; lower layers wrap them with context.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("an account with this email already exists")

	// Service-level errors.
	ErrorInternal         = errors.New("internal error")
	ErrValidation         = errors.New("validation error")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrAccountInactive    = errors.New("account is not active")
	ErrForbidden          = errors.New("you do not have permission to perform this action")
	ErrUnauthenticated    = errors.New("authentication credentials were not provided or are invalid")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Collaborator errors.
	ErrMailDelivery = errors.New("unable to send email")
)
