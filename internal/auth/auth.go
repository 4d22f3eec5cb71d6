// Package auth provides JWT bearer token issuance and verification for the
// platform's ingestion paths. Tokens carry a subject and a role; the role
// gates which callers may push observations and tracks.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken indicates no bearer token was supplied
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken indicates the token failed signature or claims validation
	ErrInvalidToken = errors.New("invalid token")
	// ErrInsufficientRole indicates the token's role is not allowed on this path
	ErrInsufficientRole = errors.New("insufficient role")
)

// Claims represents the verified identity of a caller
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}

// Verifier issues and verifies HS256 tokens with a shared secret
type Verifier struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewVerifier creates a new token verifier
func NewVerifier(secret string, tokenTTL time.Duration) *Verifier {
	return &Verifier{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// IssueToken issues a signed token for the given subject and role
func (v *Verifier) IssueToken(subject, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(v.tokenTTL).Unix(),
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken verifies a token string and returns its claims
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	if role, ok := mapClaims["role"].(string); ok {
		claims.Role = role
	}
	return claims, nil
}

// HasRole reports whether the claims' role is one of the allowed roles
func (c *Claims) HasRole(allowed []string) bool {
	for _, role := range allowed {
		if c.Role == role {
			return true
		}
	}
	return false
}
