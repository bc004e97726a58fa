package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/actiondex/internal/catalog"
	"github.com/jkaninda/actiondex/internal/config"
	"github.com/jkaninda/actiondex/internal/discovery"
	"github.com/jkaninda/actiondex/internal/gateway"
	"github.com/jkaninda/actiondex/internal/gateway/httpapi"
	"github.com/jkaninda/actiondex/internal/gateway/ws"
	"github.com/jkaninda/actiondex/internal/observability"
	"github.com/jkaninda/actiondex/internal/ratelimit"
	"github.com/jkaninda/actiondex/internal/storage"
	goutils "github.com/jkaninda/go-utils"
)

var (
	serveConfigPath string
	servePort       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the discovery server (HTTP API + WebSocket agent gateway)",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `actiondex --config path` and `actiondex serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().StringVar(&servePort, "port", "", "override HTTP listen address (e.g. :8080)")
	}
}

// runServe starts the Actiondex discovery server.
func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	// Apply CLI overrides.
	if servePort != "" {
		cfg.Server.ListenAddr = servePort
	}

	logger.Info("starting discovery server",
		slog.String("storage", cfg.StorageDriverName()),
	)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("closing store", slog.String("error", cerr.Error()))
		}
	}()

	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return err
	}
	if obs != nil && obs.Health != nil {
		obs.Health.AddCheck("storage", store.Ping)
	}

	cat := catalog.New(logger)

	svc := discovery.New(cat, store, obs, discovery.Params{
		MinScore:   cfg.Ranking.EffectiveMinScore(),
		MaxResults: cfg.Ranking.EffectiveMaxResults(),
	}, logger)

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer obs.Shutdown(context.Background())

	// Restore unexpired advertisements from the previous run.
	restored, err := svc.Rehydrate(ctx)
	if err != nil {
		return fmt.Errorf("rehydrating catalog: %w", err)
	}
	if restored > 0 {
		logger.Info("catalog rehydrated", slog.Int("advertisements", restored))
	}

	// Periodic expiry sweep.
	if interval := cfg.Catalog.PruneInterval(); interval > 0 {
		pruner := catalog.NewPruner(cat, interval, logger)
		pruner.Start()
		defer pruner.Stop()
	}

	// WebSocket server for agent connections (optional).
	var wsServer *ws.Server
	if cfg.WebSocket != nil && cfg.WebSocket.Enabled {
		wsServer = ws.NewServer(svc, cfg.WebSocket, obs, logger)
		logger.Debug("websocket server initialized",
			slog.String("path", cfg.WebSocket.WSPath()),
		)
	}

	// Per-client rate limiter for the HTTP API.
	var limiter *ratelimit.Limiter
	if !cfg.Server.Disabled {
		limiter = ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.Server.RateLimit.RequestsPerMinute,
			BurstSize:         cfg.Server.RateLimit.BurstSize,
		})
		go runLimiterJanitor(ctx, limiter)
	}

	gateways := buildGateways(cfg, svc, obs, wsServer, limiter, logger)
	if len(gateways) == 0 {
		return fmt.Errorf("no gateways enabled in config")
	}
	logger.Info("gateways configured", slog.Int("count", len(gateways)))

	// Start all gateways in goroutines.
	errs := make(chan error, len(gateways))
	for _, gw := range gateways {
		go func(g gateway.Gateway) {
			errs <- g.Start(ctx)
		}(gw)
	}

	// Wait for signal or first gateway error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			logger.Error("gateway exited with error", slog.String("error", err.Error()))
		}
	}

	// Graceful shutdown with deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := len(gateways) - 1; i >= 0; i-- {
		if err := gateways[i].Stop(shutdownCtx); err != nil {
			logger.Error("stopping gateway", slog.String("error", err.Error()))
		}
	}

	return nil
}

// loadConfig reads the config file, falling back to built-in defaults when
// no file exists at the resolved path.
func loadConfig(logger *slog.Logger) (*config.Config, error) {
	path := goutils.Env("ACTIONDEX_CONFIG", serveConfigPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("no config file found, using defaults", slog.String("path", path))
		return config.Default(), nil
	}
	return config.Load(path)
}

// openStore creates the persistence backend from config. The SQLite path
// defaults to a database file under the data directory.
func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	storeCfg := &storage.Config{Driver: cfg.StorageDriverName()}

	switch storeCfg.Driver {
	case storage.DriverSQLite:
		sqliteCfg := &storage.SQLiteConfig{Path: cfg.DatabasePath()}
		if cfg.Storage != nil && cfg.Storage.SQLite != nil {
			if cfg.Storage.SQLite.Path != "" {
				sqliteCfg.Path = cfg.Storage.SQLite.Path
			}
			sqliteCfg.JournalMode = cfg.Storage.SQLite.JournalMode
		}
		if err := os.MkdirAll(cfg.ResolvedDataDir(), 0o750); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		storeCfg.SQLite = sqliteCfg
	case storage.DriverPostgres:
		pg := cfg.Storage.Postgres
		storeCfg.Postgres = &storage.PostgresConfig{
			DSN:              pg.DSN,
			MaxOpenConns:     pg.MaxOpenConns,
			MaxIdleConns:     pg.MaxIdleConns,
			ConnMaxLifetimeS: pg.ConnMaxLifetimeS,
		}
	}

	return storage.Open(storeCfg, logger)
}

// runLimiterJanitor periodically drops idle rate-limit buckets.
func runLimiterJanitor(ctx context.Context, limiter *ratelimit.Limiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.PruneIdle(30 * time.Minute)
		}
	}
}

// buildGateways creates all enabled gateways from config.
func buildGateways(cfg *config.Config, svc *discovery.Service, obs *observability.Observability, wsServer *ws.Server, limiter *ratelimit.Limiter, logger *slog.Logger) []gateway.Gateway {
	var gws []gateway.Gateway

	// HTTP API gateway.
	var httpGW *httpapi.Gateway
	if !cfg.Server.Disabled {
		httpCfg := httpapi.Config{
			ListenAddr:     cfg.Server.Addr(),
			EnableDocs:     cfg.Server.EnableDocs,
			APIKeys:        cfg.Server.APIKeys,
			MaxRequestSize: cfg.Server.MaxRequestSize(),
		}
		if obs != nil {
			httpCfg.Metrics = obs.Metrics
			httpCfg.HealthChecker = obs.Health
			if obs.Metrics != nil {
				httpCfg.MetricsRegistry = obs.Metrics.Registry
			}
			if obs.Tracer != nil {
				httpCfg.Tracer = obs.Tracer.Tracer()
			}
			if cfg.Observability != nil && cfg.Observability.Metrics != nil {
				httpCfg.MetricsPath = cfg.Observability.Metrics.MetricsPath()
			}
		}
		httpGW = httpapi.NewGateway(httpCfg, svc, limiter, logger)
	}

	// Mount the WebSocket agent handler on the HTTP gateway if both are
	// enabled. Otherwise, start a standalone listener for the WebSocket
	// endpoint.
	if wsServer != nil {
		wsPath := cfg.WebSocket.WSPath()

		if httpGW != nil {
			httpGW.WithHandler(wsPath, wsServer.Handler())
			logger.Debug("websocket agent endpoint mounted on http gateway",
				slog.String("path", wsPath),
			)
		} else {
			addr := cfg.WebSocket.ListenAddr
			if addr == "" {
				addr = ":8081"
			}
			gws = append(gws, newStandaloneWSGateway(wsServer, addr, wsPath, logger))
			logger.Debug("gateway enabled",
				slog.String("type", "websocket"),
				slog.String("addr", addr),
				slog.String("path", wsPath),
			)
		}
	}

	if httpGW != nil {
		gws = append(gws, httpGW)
		logger.Debug("gateway enabled",
			slog.String("type", "http"),
			slog.String("addr", cfg.Server.Addr()),
			slog.Bool("websocket", wsServer != nil),
		)
	}

	return gws
}

// standaloneWSGateway wraps a ws.Server as a gateway.Gateway for cases
// where the HTTP API is disabled and the WebSocket endpoint needs its
// own HTTP listener.
type standaloneWSGateway struct {
	wsServer   *ws.Server
	addr       string
	path       string
	logger     *slog.Logger
	httpServer *http.Server
}

func newStandaloneWSGateway(wsServer *ws.Server, addr, path string, logger *slog.Logger) *standaloneWSGateway {
	return &standaloneWSGateway{
		wsServer: wsServer,
		addr:     addr,
		path:     path,
		logger:   logger,
	}
}

func (g *standaloneWSGateway) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(g.path, g.wsServer.Handler())

	g.httpServer = &http.Server{
		Addr:              g.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("standalone websocket gateway starting", slog.String("addr", g.addr))
	if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("websocket gateway: %w", err)
	}
	return nil
}

func (g *standaloneWSGateway) Stop(ctx context.Context) error {
	if g.httpServer != nil {
		return g.httpServer.Shutdown(ctx)
	}
	return nil
}
