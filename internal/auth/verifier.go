// ABOUTME: Bearer token verification against the authorization server.
// ABOUTME: Consults the introspection cache before making a remote call.

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/compass-gateway/internal/metrics"
)

// Token errors
var (
	ErrTokenInactive  = errors.New("token is not active")
	ErrMissingSubject = errors.New("introspection result missing sub claim")
)

// Principal is the authenticated identity derived from a verified token.
// It is rebuilt from the introspection result (or cache) on every request
// and never persisted.
type Principal struct {
	SubjectID string
	Email     string
	Scopes    []string
	Claims    map[string]any
}

// HasScope returns true if the principal carries the given OAuth scope.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Verifier validates bearer tokens by remote introspection with a local
// cache in front. One Verifier instance exists per process; its cache is
// not shared across instances, so a load-balanced deployment re-verifies
// per instance.
type Verifier struct {
	introspector Introspector
	cache        *IntrospectionCache
	logger       *slog.Logger
}

// NewVerifier creates a token verifier backed by the given introspector and cache.
func NewVerifier(introspector Introspector, cache *IntrospectionCache, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		introspector: introspector,
		cache:        cache,
		logger:       logger.With("component", "verifier"),
	}
}

// Verify validates a bearer header value (or raw token) and returns the
// authenticated Principal. A leading "Bearer " prefix is stripped when
// present; the comparison is exact and case-sensitive.
//
// Inactive results are never cached: a revoked token must go back to the
// authorization server on every attempt.
func (v *Verifier) Verify(ctx context.Context, bearer string) (*Principal, error) {
	token := strings.TrimPrefix(bearer, "Bearer ")
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenInactive)
	}

	if result, ok := v.cache.Get(token); ok {
		metrics.IntrospectionCacheHits.Inc()
		return principalFromResult(result)
	}
	metrics.IntrospectionCacheMisses.Inc()

	result, err := v.introspector.Introspect(ctx, token)
	if err != nil {
		return nil, err
	}

	if !result.Active {
		v.logger.Debug("token introspected as inactive")
		return nil, ErrTokenInactive
	}

	principal, err := principalFromResult(result)
	if err != nil {
		return nil, err
	}

	v.cache.Put(token, result)
	return principal, nil
}

// principalFromResult builds a Principal from an active introspection result.
// The sub claim is required: all downstream tenant resolution keys on it.
func principalFromResult(result *IntrospectionResult) (*Principal, error) {
	if result.Subject == "" {
		return nil, ErrMissingSubject
	}

	var scopes []string
	if result.Scope != "" {
		scopes = strings.Fields(result.Scope)
	}

	return &Principal{
		SubjectID: result.Subject,
		Email:     result.Email,
		Scopes:    scopes,
		Claims:    result.Claims,
	}, nil
}
