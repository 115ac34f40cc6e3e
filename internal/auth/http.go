// ABOUTME: HTTP middleware for bearer token verification on API endpoints
// ABOUTME: Extracts the Authorization header and adds the principal to context

package auth

import (
	"errors"
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// HTTPAuthMiddleware creates an HTTP middleware that verifies bearer tokens
// via introspection and adds the Principal and raw token to the request
// context. An unreachable authorization server answers 503 rather than 401
// so clients can tell "come back later" from "your token is bad".
func HTTPAuthMiddleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeAuthError(w, errMsg, http.StatusUnauthorized)
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrIntrospectionUnavailable) {
					writeAuthError(w, "authorization server unavailable", http.StatusServiceUnavailable)
					return
				}
				writeAuthError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			ctx = WithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, msg string, status int) {
	http.Error(w, `{"error":"`+msg+`"}`, status)
}
