// Package auth authenticates the store's event ingest requests with
// HS256-signed JWT bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"slack-bridge/internal/handler/http/respond"
)

// DefaultIssuer is the iss claim the store signs ingest tokens with.
const DefaultIssuer = "store"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type ctxKey string

const ctxSubject ctxKey = "subject"

// Config holds the ingest token settings.
type Config struct {
	Secret []byte
	Issuer string

	// Leeway tolerates clock skew between the store and the bridge.
	Leeway time.Duration
}

// SubjectFromContext returns the sub claim of the authenticated request.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(ctxSubject).(string)
	return sub
}

// Middleware rejects requests without a valid token with 401.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			sub, err := Validate(r.Header.Get("Authorization"), cfg)
			recordAuthzCheckDuration(time.Since(start).Seconds())
			if err != nil {
				recordAuthRequest("failure")
				respond.Error(w, http.StatusUnauthorized,
					respond.NewAppError(http.StatusUnauthorized, "unauthorized", err))
				return
			}
			recordAuthRequest("success")

			ctx := context.WithValue(r.Context(), ctxSubject, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Validate checks an Authorization header value and returns the token subject.
func Validate(authz string, cfg Config) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", ErrMissingToken
	}
	if len(cfg.Secret) == 0 {
		return "", fmt.Errorf("%w: no secret configured", ErrInvalidToken)
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(authz, prefix), &claims,
		func(*jwt.Token) (interface{}, error) { return cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}

// IssueToken signs an ingest token for subject valid for ttl. The store
// side and tests use it; the bridge only validates.
func IssueToken(secret []byte, issuer, subject string, ttl time.Duration) (string, error) {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}
