// Package auth validates bearer tokens for the chat history routes.
// Keys come from the identity provider's JWKS endpoint, cached and
// refreshed in the background to survive key rotation.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/lexlanka/gavel/pkg/config"
)

// Claims carries the identity extracted from a validated token.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// Validator checks bearer tokens against the provider's key set.
type Validator struct {
	jwksURL  string
	issuer   string
	audience string
	cache    *jwk.Cache
}

// jwksRefreshInterval floors the background key refresh.
const jwksRefreshInterval = 15 * time.Minute

// NewValidator builds a validator and fetches the key set once so a
// misconfigured endpoint fails at startup. Returns (nil, nil) when
// auth is disabled; the caller logs the open-access warning.
func NewValidator(ctx context.Context, cfg *config.AuthConfig) (*Validator, error) {
	if !cfg.Enabled() {
		slog.Warn("auth disabled, history routes are served without authentication")
		return nil, nil
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(jwksRefreshInterval)); err != nil {
		return nil, fmt.Errorf("registering jwks url: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("fetching jwks from %s: %w", cfg.JWKSURL, err)
	}

	return &Validator{
		jwksURL:  cfg.JWKSURL,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		cache:    cache,
	}, nil
}

// Validate parses and verifies a token, returning its claims.
func (v *Validator) Validate(ctx context.Context, token string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("loading key set: %w", err)
	}

	options := []jwt.ParseOption{
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.Parse([]byte(token), options...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims := &Claims{Subject: parsed.Subject()}
	if email, ok := parsed.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	return claims, nil
}

type contextKey struct{}

// ClaimsFrom returns the claims attached by Middleware, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(contextKey{}).(*Claims)
	return claims
}

// Middleware guards a route subtree with bearer token validation. A
// nil validator passes every request through (auth disabled).
func Middleware(v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if header == "" || !ok {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}

			claims, err := v.Validate(r.Context(), token)
			if err != nil {
				slog.Debug("token rejected", "error", err)
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
