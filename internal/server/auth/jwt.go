// Package auth issues and verifies the signed access/refresh token pair.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carries the registered claims plus the account id and the token
// type (common.TokenTypeAccess or common.TokenTypeRefresh).
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Type   string `json:"typ"`
}

func GenerateToken(userID, tokenType string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
		Type:   tokenType,
	})

	return token.SignedString(secretKey)
}

// ParseToken checks signature and expiry and returns the claims.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// verification yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// GetUserIDFromToken parses the token and requires it to be of tokenType.
func GetUserIDFromToken(tokenString, tokenType string, secretKey []byte) (string, error) {
	claims, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return "", err
	}

	if claims.Type != tokenType {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
