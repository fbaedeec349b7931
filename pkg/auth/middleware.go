package auth

import (
	"net/http"
	"strings"
)

// bearerPrefix is the Authorization scheme prefix.
const bearerPrefix = "Bearer "

// ExtractToken pulls the credential from the request: Bearer token first,
// then the X-API-Key header.
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimPrefix(authHeader, bearerPrefix)
	}
	return r.Header.Get("X-API-Key")
}

// Middleware returns HTTP middleware that authenticates every request with
// the given authenticator. A nil authenticator allows all requests through
// (anonymous mode).
func Middleware(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authenticator == nil {
				next.ServeHTTP(w, r)
				return
			}

			token := ExtractToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized: missing credentials", http.StatusUnauthorized)
				return
			}

			ctx := WithToken(r.Context(), token)
			info, err := authenticator.Authenticate(ctx)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, info)))
		})
	}
}
