package models

import (
	"strings"
	"time"
)

// Account is a registered identity. Status false means the account was
// deactivated and is hidden from every lookup except login.
type Account struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	CreatedAt    time.Time
	Status       bool
	IsSuperuser  bool
	IsStaff      bool
}

// AccountUpdate holds the mutable subset of an account. Nil fields are left
// untouched.
type AccountUpdate struct {
	Email        *string
	FullName     *string
	PasswordHash *string
}

// Empty reports whether the update changes nothing.
func (u AccountUpdate) Empty() bool {
	return u.Email == nil && u.FullName == nil && u.PasswordHash == nil
}

// NormalizeEmail is the canonical form used for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
