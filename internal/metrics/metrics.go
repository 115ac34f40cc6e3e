// ABOUTME: Prometheus collectors for auth cache behavior and tool dispatch outcomes.
// ABOUTME: Exposed on the configurable /metrics endpoint when metrics are enabled.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IntrospectionCacheHits counts bearer tokens served from the introspection cache.
	IntrospectionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "compass_introspection_cache_hits_total",
		Help: "Number of token verifications served from the introspection cache.",
	})

	// IntrospectionCacheMisses counts bearer tokens that required a remote introspection call.
	IntrospectionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "compass_introspection_cache_misses_total",
		Help: "Number of token verifications that missed the introspection cache.",
	})

	// IntrospectionRequests counts remote introspection calls by outcome.
	IntrospectionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_introspection_requests_total",
		Help: "Number of remote token introspection requests by outcome.",
	}, []string{"outcome"}) // active | inactive | malformed | transport_error

	// ToolInvocations counts tool dispatches by tool name and outcome.
	ToolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_tool_invocations_total",
		Help: "Number of tool invocations by tool and outcome.",
	}, []string{"tool", "outcome"}) // ok | error | selection_required

	// WorkspaceAutoSelects counts unambiguous workspace auto-selections.
	WorkspaceAutoSelects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "compass_workspace_auto_selects_total",
		Help: "Number of workspace selections resolved automatically.",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
