package jwtutil

import (
	"time"

	"quota-service/internal/model"
	"quota-service/pkg/config"

	"github.com/golang-jwt/jwt/v4"
)

var (
	signingKey      []byte
	expirationHours = 24
)

// Initialize sets the signing configuration. The claims themselves come from
// the external identity/session provider; this service only validates them.
func Initialize(cfg *config.JWTConfig) {
	signingKey = []byte(cfg.SigningKey)
	if cfg.ExpirationHours > 0 {
		expirationHours = cfg.ExpirationHours
	}
}

// SessionClaims are the identity claims the core trusts on every call: the
// account and its role. No authentication happens in this service.
type SessionClaims struct {
	AccountID uint       `json:"account_id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed session token. Used by provisioning and
// tests; real sessions are issued by the identity provider with the same key.
func GenerateToken(accountID uint, email string, role model.Role) (string, error) {
	claims := SessionClaims{
		AccountID: accountID,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken validates and parses the session token
func ValidateToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
