// Package restoreauth guards the server's read-only query endpoints
// (File/List.json, Data/*.json) with an HS256 bearer token, independent of
// the unauthenticated backup wire protocol the Sender uses. It exists for
// deployments that expose the query surface to a network the restore
// operator doesn't otherwise trust; vigil-restore itself reads the
// server's storage directly and never presents a token.
package restoreauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken        = errors.New("restoreauth: invalid token")
	ErrExpiredToken        = errors.New("restoreauth: token has expired")
	ErrMissingToken        = errors.New("restoreauth: missing bearer token")
	ErrInvalidSecretLength = errors.New("restoreauth: secret must be at least 32 characters")
)

// Claims is the JWT payload issued for a restore operator.
type Claims struct {
	jwt.RegisteredClaims
	Subject string `json:"sub"`
}

// TokenAuth issues and validates HS256 bearer tokens for the query API.
type TokenAuth struct {
	secret []byte
	issuer string
}

// New builds a TokenAuth from a secret of at least 32 characters.
func New(secret, issuer string) (*TokenAuth, error) {
	if len(secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if issuer == "" {
		issuer = "vigil-server"
	}
	return &TokenAuth{secret: []byte(secret), issuer: issuer}, nil
}

// IssueToken creates a signed token identifying subject, valid for ttl.
func (a *TokenAuth) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Subject: subject,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("restoreauth: sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies tokenString, returning its claims.
func (a *TokenAuth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("restoreauth: unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type contextKey int

const claimsContextKey contextKey = iota

// Middleware rejects any request lacking a valid "Authorization: Bearer
// <token>" header and otherwise stores the parsed claims in the request
// context for downstream handlers.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		claims, err := a.ValidateToken(token)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrInvalidToken
	}
	token := strings.TrimPrefix(header, prefix)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// ClaimsFromContext returns the claims stored by Middleware, or nil if
// none are present.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}
