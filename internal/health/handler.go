// Package health reports liveness of the API and its dependencies.
package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
)

// Checker probes one dependency.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Client to Checker.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type dependency struct {
	name    string
	checker Checker
}

// Handler probes a set of named dependencies. Any unhealthy dependency
// degrades the overall status but the endpoint itself always answers:
// the API keeps serving validation requests regardless (the rate limiter
// fails open without its store, analytics events are only logged).
type Handler struct {
	deps []dependency
}

// NewHandler creates a health handler with no dependencies registered.
func NewHandler() *Handler {
	return &Handler{}
}

// Register adds a named dependency to be probed on every check.
func (h *Handler) Register(name string, checker Checker) {
	h.deps = append(h.deps, dependency{name: name, checker: checker})
}

// Response is the response for the health check endpoint.
type Response struct {
	Body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies,omitempty"`
	}
}

// Check probes every registered dependency and reports per-dependency
// and overall status.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"

	if len(h.deps) == 0 {
		return resp, nil
	}

	resp.Body.Dependencies = make(map[string]string, len(h.deps))

	for _, dep := range h.deps {
		if err := dep.checker.Ping(ctx); err != nil {
			resp.Body.Dependencies[dep.name] = "unhealthy"
			resp.Body.Status = "degraded"
		} else {
			resp.Body.Dependencies[dep.name] = "healthy"
		}
	}

	return resp, nil
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Get(api, "/healthz", h.Check)
}
