package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// APIKey represents an API key entry. Either Key (plain, compared in
// constant time) or KeyHash (bcrypt) is set.
type APIKey struct {
	Key     string   // Plain key value
	KeyHash string   // bcrypt hash of the key
	Name    string   // Display name for the key
	Roles   []string // Roles assigned to this key
}

// APIKeyConfig holds API key configuration.
type APIKeyConfig struct {
	Keys []APIKey
}

// APIKeyAuthenticator authenticates using static API keys.
type APIKeyAuthenticator struct {
	keys []APIKey
}

// NewAPIKeyAuthenticator creates a new API key authenticator.
func NewAPIKeyAuthenticator(cfg APIKeyConfig) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: cfg.Keys}
}

// Authenticate validates the context's token against the configured keys.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context) (*UserInfo, error) {
	token := GetToken(ctx)
	if token == "" {
		return nil, fmt.Errorf("no API key found in context")
	}

	for i := range a.keys {
		key := &a.keys[i]
		if !matches(key, token) {
			continue
		}
		return &UserInfo{
			UserID:   "apikey:" + key.Name,
			Name:     key.Name,
			Roles:    key.Roles,
			AuthType: "apikey",
		}, nil
	}
	return nil, fmt.Errorf("invalid API key")
}

// matches compares the presented token against one key entry. Plain keys
// use constant-time comparison; hashed keys use bcrypt.
func matches(key *APIKey, token string) bool {
	if key.KeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(token)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(key.Key), []byte(token)) == 1
}

// Verify interface compliance.
var _ Authenticator = (*APIKeyAuthenticator)(nil)
