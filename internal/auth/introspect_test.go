// ABOUTME: Tests for the RFC 7662 introspection client against a fake authorization server.
// ABOUTME: Validates Basic auth, form encoding, and response shape validation.

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntrospectionServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *IntrospectionClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewIntrospectionClient(IntrospectionConfig{
		BaseURL:      srv.URL,
		ClientID:     "gateway-client",
		ClientSecret: "gateway-secret",
	})
	require.NoError(t, err)
	return srv, client
}

func TestIntrospect_ActiveToken(t *testing.T) {
	_, client := newIntrospectionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/2.1/introspect", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "introspection must use Basic auth")
		assert.Equal(t, "gateway-client", user)
		assert.Equal(t, "gateway-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "abc123", r.PostForm.Get("token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"active":true,"sub":"u1","email":"u1@example.com","scope":"read","client_id":"web","token_type":"access_token","exp":1700000000}`))
	})

	result, err := client.Introspect(context.Background(), "abc123")
	require.NoError(t, err)

	assert.True(t, result.Active)
	assert.Equal(t, "u1", result.Subject)
	assert.Equal(t, "u1@example.com", result.Email)
	assert.Equal(t, "read", result.Scope)
	assert.Equal(t, "web", result.ClientID)
	assert.Equal(t, "access_token", result.TokenType)
	// Uninterpreted claims are preserved.
	assert.Contains(t, result.Claims, "exp")
}

func TestIntrospect_InactiveToken(t *testing.T) {
	_, client := newIntrospectionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"active":false}`))
	})

	result, err := client.Introspect(context.Background(), "revoked")
	require.NoError(t, err)
	assert.False(t, result.Active)
}

func TestIntrospect_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"json array", `[true]`},
		{"json null", `null`},
		{"missing active", `{"sub":"u1"}`},
		{"active not boolean", `{"active":"yes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newIntrospectionServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			_, err := client.Introspect(context.Background(), "tok")
			assert.ErrorIs(t, err, ErrMalformedIntrospection)
		})
	}
}

func TestIntrospect_NonSuccessStatus(t *testing.T) {
	_, client := newIntrospectionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Introspect(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrIntrospectionUnavailable)
}

func TestIntrospect_ServerDown(t *testing.T) {
	srv, client := newIntrospectionServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := client.Introspect(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrIntrospectionUnavailable)
}

func TestNewIntrospectionClient_RequiresCredentials(t *testing.T) {
	_, err := NewIntrospectionClient(IntrospectionConfig{BaseURL: "http://auth.local"})
	assert.Error(t, err)

	_, err = NewIntrospectionClient(IntrospectionConfig{ClientID: "id", ClientSecret: "secret"})
	assert.Error(t, err)
}
