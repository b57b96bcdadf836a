// Package identity resolves the request-scoped identity the Orchestration
// API attaches to every operation, per the external collaborator contract:
// the core uses it only for created_by and optional role checks, and falls
// back to a fixed anonymous identity when no bearer token is presented.
// Adapted from server.bearerTokenMiddleware, stripped of the OAuth2
// sliding-expiry refresh and store-backed profile resolution that belonged
// to the finance domain.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the resolved caller for one request.
type Identity struct {
	Subject string
	Email   string
	Roles   []string
}

// Anonymous is the fixed identity used in degraded mode, when no bearer
// token is presented.
func Anonymous() Identity {
	return Identity{Subject: "anonymous", Roles: []string{"anonymous"}}
}

// HasRole reports whether id carries the given role.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type contextKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx, or Anonymous if none was set.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}

// FromRequest resolves the identity carried by r's Authorization header. If
// no bearer token is present, it returns Anonymous with no error: the
// degraded mode is not itself a failure.
func FromRequest(r *http.Request, secret []byte) (Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return Anonymous(), nil
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := validateJWT(tokenString, secret)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid or expired token: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("token missing subject claim")
	}
	email, _ := claims["email"].(string)

	var roles []string
	switch v := claims["roles"].(type) {
	case []any:
		for _, r := range v {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
	case string:
		roles = append(roles, v)
	}
	if len(roles) == 0 {
		roles = []string{"user"}
	}

	return Identity{Subject: sub, Email: email, Roles: roles}, nil
}

func validateJWT(tokenString string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
