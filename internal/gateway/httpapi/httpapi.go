// Package httpapi implements the HTTP API gateway for Actiondex.
//
// Security:
//   - API key authentication on every request (constant-time comparison)
//   - Request body size limits (default 1 MB)
//   - Per-client rate limiting via token bucket
//   - All requests logged with correlation IDs
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/actiondex/internal/catalog"
	"github.com/jkaninda/actiondex/internal/discovery"
	"github.com/jkaninda/actiondex/internal/matching"
	"github.com/jkaninda/actiondex/internal/observability"
	"github.com/jkaninda/actiondex/internal/ratelimit"
	"github.com/jkaninda/okapi"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

const defaultHistoryLimit = 50

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr     string // e.g., ":8080"
	EnableDocs     bool
	APIKeys        []string // Accepted API keys. Empty = authentication disabled.
	MaxRequestSize int64    // Maximum request body in bytes. 0 = 1 MB default.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz endpoint.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP API gateway.
type Gateway struct {
	config  Config
	svc     *discovery.Service
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	server  *http.Server

	// Extra handlers mounted on the HTTP mux (e.g., the WebSocket agent endpoint).
	extraRoutes []extraRoute

	okapi *okapi.Okapi
	group *okapi.Group
}

// extraRoute stores an additional handler to be mounted on the HTTP mux.
type extraRoute struct {
	pattern string
	handler http.Handler
}

// NewGateway creates an HTTP API gateway.
func NewGateway(cfg Config, svc *discovery.Service, rl *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:  cfg,
		svc:     svc,
		limiter: rl,
		logger:  logger,
		okapi:   okapi.New(okapi.WithMaxMultipartMemory(defaultMaxRequestSize)),
	}
}

// WithOpenAPIDocs enables the OpenAPI documentation UI.
func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "Actiondex",
			Version: "v0.1.0",
		},
	)
	return g
}

// WithHandler mounts an additional handler on the HTTP mux at the given pattern.
// Useful for adding the WebSocket agent endpoint alongside the API routes.
func (g *Gateway) WithHandler(pattern string, handler http.Handler) *Gateway {
	g.extraRoutes = append(g.extraRoutes, extraRoute{pattern: pattern, handler: handler})
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// Authenticated /v1 group.
	g.group = g.okapi.Group("/v1", g.authenticate)

	g.group.Post("/discover", g.handleDiscover,
		okapi.DocSummary("Rank advertised actions against a query"),
		okapi.DocTags("Discovery"),
		okapi.DocRequestBody(DiscoverRequest{}),
		okapi.DocResponse(DiscoverResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
	)
	g.group.Get("/discoveries", g.handleDiscoveryHistory,
		okapi.DocSummary("List recent discovery requests"),
		okapi.DocTags("Discovery"),
		okapi.DocResponse([]DiscoveryHistoryResponse{}),
	)
	g.group.Post("/actions", g.handleAdvertise,
		okapi.DocSummary("Advertise an action"),
		okapi.DocTags("Actions"),
		okapi.DocRequestBody(AdvertiseRequest{}),
		okapi.DocResponse(http.StatusCreated, ActionResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)
	g.group.Get("/actions", g.handleListActions,
		okapi.DocSummary("List advertised actions"),
		okapi.DocTags("Actions"),
		okapi.DocResponse([]ActionResponse{}),
	)
	g.group.Get("/actions/{name}", g.handleGetAction,
		okapi.DocSummary("Get an advertised action by name"),
		okapi.DocTags("Actions"),
		okapi.DocPathParam("name", "string", "Action name"),
		okapi.DocResponse(ActionResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Delete("/actions/{name}", g.handleWithdraw,
		okapi.DocSummary("Withdraw an advertised action"),
		okapi.DocTags("Actions"),
		okapi.DocPathParam("name", "string", "Action name"),
		okapi.DocResponse(map[string]string{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/healthz", g.handleHealth,
		okapi.DocSummary("Authenticated health check"),
		okapi.DocTags("Health"),
		okapi.DocResponse(HealthResponse{}),
	)

	// Extra handlers (e.g., WebSocket agent endpoint).
	for _, er := range g.extraRoutes {
		g.okapi.HandleStd("GET", er.pattern, er.handler.ServeHTTP)
	}

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// --- Handlers ---

func (g *Gateway) handleDiscover(c *okapi.Context) error {
	clientID := c.GetString("clientID")

	if g.limiter != nil {
		if err := g.limiter.Allow(clientID); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	var req DiscoverRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}

	var override *discovery.Params
	if req.MinScore != nil || req.MaxResults != 0 {
		override = &discovery.Params{MaxResults: req.MaxResults}
		if req.MinScore != nil {
			override.MinScore = *req.MinScore
		}
	}

	res, err := g.svc.Discover(c.Context(), req.Query(), override)
	if err != nil {
		if errors.Is(err, matching.ErrInvalidParams) {
			return c.AbortBadRequest(err.Error())
		}
		g.logger.Error("discovery failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("discovery failed")
	}

	return c.OK(DiscoverResponse{
		RequestID:   res.RequestID.String(),
		CatalogSize: res.CatalogSize,
		Results:     res.Matches,
	})
}

func (g *Gateway) handleDiscoveryHistory(c *okapi.Context) error {
	limit := defaultHistoryLimit
	if raw := c.Request().URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.AbortBadRequest("limit must be a positive integer")
		}
		limit = n
	}

	recs, err := g.svc.History(c.Context(), limit)
	if err != nil {
		g.logger.Error("listing discovery history failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("listing discovery history failed")
	}

	resp := make([]DiscoveryHistoryResponse, len(recs))
	for i, rec := range recs {
		resp[i] = toHistoryResponse(rec)
	}
	return c.OK(resp)
}

func (g *Gateway) handleAdvertise(c *okapi.Context) error {
	clientID := c.GetString("clientID")

	if g.limiter != nil {
		if err := g.limiter.Allow(clientID); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	var req AdvertiseRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.AgentID == "" {
		return c.AbortBadRequest("agent_id is required")
	}

	if err := g.svc.Advertise(c.Context(), req.Advertisement()); err != nil {
		return c.AbortBadRequest(err.Error())
	}

	ad, err := g.svc.Advertisement(req.Name)
	if err != nil {
		g.logger.Error("reading advertisement back failed",
			slog.String("name", req.Name),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("advertisement failed")
	}
	return c.JSON(http.StatusCreated, toActionResponse(ad))
}

func (g *Gateway) handleListActions(c *okapi.Context) error {
	ads := g.svc.Advertisements()
	resp := make([]ActionResponse, len(ads))
	for i, ad := range ads {
		resp[i] = toActionResponse(ad)
	}
	return c.OK(resp)
}

func (g *Gateway) handleGetAction(c *okapi.Context) error {
	name := c.Param("name")
	ad, err := g.svc.Advertisement(name)
	if err != nil {
		return c.JSON(http.StatusNotFound, okapi.M{"error": "action not found"})
	}
	return c.OK(toActionResponse(ad))
}

func (g *Gateway) handleWithdraw(c *okapi.Context) error {
	name := c.Param("name")
	if err := g.svc.Withdraw(c.Context(), name); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return c.JSON(http.StatusNotFound, okapi.M{"error": "action not found"})
		}
		g.logger.Error("withdraw failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("withdraw failed")
	}
	return c.OK(map[string]string{"status": "withdrawn"})
}

func (g *Gateway) handleHealth(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleLiveness is the Kubernetes liveness probe
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Authentication ---

// authenticate validates the API key against the configured set. When no
// keys are configured, authentication is disabled.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		if len(g.config.APIKeys) == 0 {
			c.Set("clientID", "anonymous")
			return next(c)
		}

		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		clientID := ""
		for i, key := range g.config.APIKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
				clientID = "key-" + strconv.Itoa(i)
			}
		}
		if clientID == "" {
			return c.AbortUnauthorized("invalid API key")
		}
		c.Set("clientID", clientID)
		return next(c)
	}
}
