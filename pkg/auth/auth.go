// Package auth provides authentication for the navigation platform API:
// static API keys (plain or bcrypt-hashed) and HMAC-signed JWT bearer
// tokens.
package auth

import (
	"context"
	"fmt"
)

// contextKey is a private type for context keys.
type contextKey int

const (
	tokenContextKey contextKey = iota
	userContextKey
)

// UserInfo holds authenticated caller information.
type UserInfo struct {
	UserID   string   `json:"user_id"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	AuthType string   `json:"auth_type"` // "apikey", "jwt"
}

// HasRole checks if the user has a specific role.
func (u *UserInfo) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WithToken adds a bearer token to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken retrieves the bearer token from the context.
func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(tokenContextKey).(string); ok {
		return token
	}
	return ""
}

// WithUser adds authenticated user info to the context.
func WithUser(ctx context.Context, u *UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// GetUser retrieves authenticated user info from the context.
func GetUser(ctx context.Context) *UserInfo {
	if u, ok := ctx.Value(userContextKey).(*UserInfo); ok {
		return u
	}
	return nil
}

// Authenticator validates the credential carried in the context.
type Authenticator interface {
	// Authenticate validates the context's token and returns caller info.
	Authenticate(ctx context.Context) (*UserInfo, error)
}

// MultiAuthenticator tries each authenticator in order and returns the
// first success.
type MultiAuthenticator struct {
	authenticators []Authenticator
}

// NewMultiAuthenticator creates an authenticator chain.
func NewMultiAuthenticator(authenticators ...Authenticator) *MultiAuthenticator {
	return &MultiAuthenticator{authenticators: authenticators}
}

// Authenticate tries each configured authenticator in order.
func (m *MultiAuthenticator) Authenticate(ctx context.Context) (*UserInfo, error) {
	var lastErr error
	for _, a := range m.authenticators {
		info, err := a.Authenticate(ctx)
		if err == nil {
			return info, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no authenticators configured")
	}
	return nil, lastErr
}

// Verify interface compliance.
var _ Authenticator = (*MultiAuthenticator)(nil)
