package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	authTestKey    = "nav-test-key-123"
	authTestIssuer = "https://auth.example.com"
)

var authTestSigningKey = []byte("0123456789abcdef0123456789abcdef")

func newAPIKeyAuth(t *testing.T, hashed bool) *APIKeyAuthenticator {
	t.Helper()
	key := APIKey{Name: "ops", Roles: []string{"navigator"}}
	if hashed {
		h, err := bcrypt.GenerateFromPassword([]byte(authTestKey), bcrypt.MinCost)
		require.NoError(t, err)
		key.KeyHash = string(h)
	} else {
		key.Key = authTestKey
	}
	return NewAPIKeyAuthenticator(APIKeyConfig{Keys: []APIKey{key}})
}

func TestAPIKeyAuthenticator(t *testing.T) {
	for _, hashed := range []bool{false, true} {
		name := "plain"
		if hashed {
			name = "bcrypt"
		}
		t.Run(name, func(t *testing.T) {
			a := newAPIKeyAuth(t, hashed)

			info, err := a.Authenticate(WithToken(context.Background(), authTestKey))
			require.NoError(t, err)
			assert.Equal(t, "apikey:ops", info.UserID)
			assert.True(t, info.HasRole("navigator"))
			assert.Equal(t, "apikey", info.AuthType)

			_, err = a.Authenticate(WithToken(context.Background(), "wrong"))
			require.Error(t, err)

			_, err = a.Authenticate(context.Background())
			require.Error(t, err, "missing token")
		})
	}
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(authTestSigningKey)
	require.NoError(t, err)
	return signed
}

func TestJWTAuthenticator(t *testing.T) {
	a, err := NewJWTAuthenticator(JWTConfig{Issuer: authTestIssuer, SigningKey: authTestSigningKey})
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		signed := signToken(t, jwt.MapClaims{
			"iss":   authTestIssuer,
			"sub":   "user-7",
			"name":  "Sam",
			"roles": []any{"navigator", "admin"},
			"exp":   time.Now().Add(time.Hour).Unix(),
		})

		info, err := a.Authenticate(WithToken(context.Background(), signed))
		require.NoError(t, err)
		assert.Equal(t, "user-7", info.UserID)
		assert.Equal(t, "Sam", info.Name)
		assert.True(t, info.HasRole("admin"))
		assert.Equal(t, "jwt", info.AuthType)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		signed := signToken(t, jwt.MapClaims{
			"iss": "https://evil.example.com",
			"sub": "user-7",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		_, err := a.Authenticate(WithToken(context.Background(), signed))
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		signed := signToken(t, jwt.MapClaims{
			"iss": authTestIssuer,
			"sub": "user-7",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		_, err := a.Authenticate(WithToken(context.Background(), signed))
		require.Error(t, err)
	})

	t.Run("missing sub", func(t *testing.T) {
		signed := signToken(t, jwt.MapClaims{
			"iss": authTestIssuer,
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		_, err := a.Authenticate(WithToken(context.Background(), signed))
		require.Error(t, err)
	})
}

func TestNewJWTAuthenticatorValidation(t *testing.T) {
	_, err := NewJWTAuthenticator(JWTConfig{SigningKey: authTestSigningKey})
	require.Error(t, err)

	_, err = NewJWTAuthenticator(JWTConfig{Issuer: authTestIssuer})
	require.Error(t, err)
}

func TestMultiAuthenticator(t *testing.T) {
	apiKeys := newAPIKeyAuth(t, false)
	jwtAuth, err := NewJWTAuthenticator(JWTConfig{Issuer: authTestIssuer, SigningKey: authTestSigningKey})
	require.NoError(t, err)

	multi := NewMultiAuthenticator(apiKeys, jwtAuth)

	info, err := multi.Authenticate(WithToken(context.Background(), authTestKey))
	require.NoError(t, err)
	assert.Equal(t, "apikey", info.AuthType)

	signed := signToken(t, jwt.MapClaims{
		"iss": authTestIssuer,
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	info, err = multi.Authenticate(WithToken(context.Background(), signed))
	require.NoError(t, err)
	assert.Equal(t, "jwt", info.AuthType)

	_, err = multi.Authenticate(WithToken(context.Background(), "bogus"))
	require.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ExtractToken(r))

	r.Header.Set("X-API-Key", "from-header")
	assert.Equal(t, "from-header", ExtractToken(r))

	r.Header.Set("Authorization", "Bearer from-bearer")
	assert.Equal(t, "from-bearer", ExtractToken(r), "bearer token wins over api key header")
}

func TestMiddleware(t *testing.T) {
	a := newAPIKeyAuth(t, false)
	var gotUser *UserInfo
	handler := Middleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("bad key", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-API-Key", "nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+authTestKey)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotUser)
		assert.Equal(t, "apikey:ops", gotUser.UserID)
	})

	t.Run("nil authenticator allows anonymous", func(t *testing.T) {
		anon := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		rec := httptest.NewRecorder()
		anon.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
