// Package credentials hashes and verifies account passwords.
package credentials

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher turns plaintext passwords into salted one-way hashes.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// ErrPasswordTooLong is returned for passwords bcrypt cannot represent.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// BcryptHasher is a Hasher backed by bcrypt. Every Hash call draws a fresh
// salt, so equal inputs produce different stored values.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given cost. Values outside
// bcrypt's range fall back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compares in constant time. A malformed hash yields false.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
