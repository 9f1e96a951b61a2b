// Package auth provides the minimal JWT bearer-token parsing the HTTP
// boundary needs to scope requests to a userID. Login, signup, and token
// issuance are a separate, excluded subsystem — this package only verifies
// and decodes tokens minted elsewhere.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// claims is the minimal shape this service trusts from a bearer token.
type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenParser validates HS256-signed bearer tokens and extracts the
// caller's userID.
type TokenParser struct {
	secret []byte
}

// NewTokenParser builds a TokenParser from a shared HMAC secret.
func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

// ParseUserID validates tokenString and returns the userID it carries.
func (p *TokenParser) ParseUserID(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return "", err
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.UserID == "" {
		return "", fmt.Errorf("invalid token claims")
	}
	return c.UserID, nil
}
