// Package auth authenticates API requests with a static bearer token or an
// HS256 JWT carrying a role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried by tokens. Viewers may only read.
const (
	RoleViewer     = "viewer"
	RoleDispatcher = "dispatcher"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims is the JWT payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// FromContext returns the claims of an authenticated request.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(Claims)
	return c, ok
}

// IssueToken signs a token for subject with the given role.
func IssueToken(conf Conf, subject, role string, now time.Time) (string, error) {
	conf.SetDefaults()
	if conf.JWTSecret == "" {
		return "", errors.New("jwt secret not configured")
	}
	if role != RoleViewer && role != RoleDispatcher {
		return "", fmt.Errorf("unknown role %q", role)
	}
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    conf.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(conf.JWTSecret))
}

// Verify checks a raw token against the configuration.
func Verify(conf Conf, raw string) (Claims, error) {
	conf.SetDefaults()
	if raw == "" {
		return Claims{}, ErrMissingToken
	}
	if conf.Token != "" && raw == conf.Token {
		return Claims{Role: RoleDispatcher, RegisteredClaims: jwt.RegisteredClaims{Subject: "static"}}, nil
	}
	if conf.JWTSecret == "" {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(conf.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(conf.Issuer))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// tokenFrom reads the bearer token, falling back to the token query
// parameter used by websocket clients.
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if raw, ok := strings.CutPrefix(h, "Bearer "); ok {
			return raw
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects unauthenticated requests with 401 and writes by
// viewers with 403.
func Middleware(conf Conf) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !conf.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := Verify(conf, tokenFrom(r))
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if claims.Role == RoleViewer && r.Method != http.MethodGet && r.Method != http.MethodHead {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
		})
	}
}
