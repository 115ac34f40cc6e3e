// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithPrincipal/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// principalKey is the key type for storing a Principal in context.Context.
type principalKey struct{}

// tokenKey is the key type for storing the raw bearer token in context.Context.
type tokenKey struct{}

// WithPrincipal returns a new context with the Principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the Principal from the context, returning nil if not present.
func FromContext(ctx context.Context) *Principal {
	val := ctx.Value(principalKey{})
	if val == nil {
		return nil
	}
	p, ok := val.(*Principal)
	if !ok {
		return nil
	}
	return p
}

// MustFromContext retrieves the Principal from the context, panicking if not present.
func MustFromContext(ctx context.Context) *Principal {
	p := FromContext(ctx)
	if p == nil {
		panic("auth: Principal not found in context")
	}
	return p
}

// WithToken returns a new context carrying the verified raw bearer token.
// Entity handlers need it for downstream API calls made on the user's behalf.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext retrieves the raw bearer token, or "" if not present.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
