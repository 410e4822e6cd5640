package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/BaSui01/agentrun/agent/persistence"
	"github.com/BaSui01/agentrun/api/handlers"
	"github.com/BaSui01/agentrun/config"
	"github.com/BaSui01/agentrun/internal/database"
	"github.com/BaSui01/agentrun/internal/metrics"
	"github.com/BaSui01/agentrun/internal/server"
	"github.com/BaSui01/agentrun/internal/telemetry"
)

// Server is the agentrun HTTP service.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	telemetry *telemetry.Providers
	stores    *storeHandle
	registry  *prometheus.Registry
	collector *metrics.Collector
	health    *handlers.HealthHandler
	runs      *handlers.RunHandler
}

// NewServer opens the run state store and builds the handlers.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	providers, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		providers = &telemetry.Providers{}
	}
	s.telemetry = providers

	stores, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, err
	}
	s.stores = stores

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollector("agentrun", s.registry, logger)

	store := s.collector.InstrumentStore(stores.store, string(cfg.Persistence().Type.OrDefault()))
	s.health = handlers.NewHealthHandler(logger)
	s.health.RegisterCheck(handlers.NewPingCheck("store", store.Ping))
	if stores.pool != nil {
		s.health.RegisterCheck(handlers.NewPingCheck("database", stores.pool.Ping))
	}
	s.runs = handlers.NewRunHandler(store, s.collector, logger)
	return s, nil
}

// Handler builds the routed, middleware-wrapped handler. Background work
// started for it stops when ctx is done.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health.HandleHealth)
	mux.HandleFunc("GET /ready", s.health.HandleReady)
	mux.HandleFunc("GET /version", s.health.HandleVersion(Version, BuildTime, GitCommit))
	if s.cfg.Server.EnableMetrics {
		mux.Handle("GET /metrics", metrics.Handler(s.registry))
	}
	s.runs.Register(mux)

	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
	}
	if s.cfg.RateLimit.Enabled {
		chain = append(chain, RateLimiter(ctx, s.cfg.RateLimit.RPS, s.cfg.RateLimit.Burst))
	}
	if s.cfg.Auth.Enabled {
		chain = append(chain, JWTAuth(s.cfg.Auth, publicPaths, s.logger))
	}
	chain = append(chain, MetricsMiddleware(s.collector))
	return Chain(mux, chain...)
}

// Run serves until ctx is done, then releases every resource.
func (s *Server) Run(ctx context.Context) error {
	handlerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := server.NewManager(s.Handler(handlerCtx), server.FromConfig(s.cfg.Server), s.logger)
	s.logger.Info("agentrun service starting",
		zap.String("addr", mgr.Addr()),
		zap.String("store", string(s.cfg.Persistence().Type.OrDefault())),
		zap.Bool("auth", s.cfg.Auth.Enabled),
		zap.Bool("rate_limit", s.cfg.RateLimit.Enabled),
	)
	runErr := mgr.Run(ctx)

	shutdownCtx, done := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownDeadline())
	defer done()
	return errors.Join(runErr, s.Close(shutdownCtx))
}

// Close releases the store and flushes telemetry.
func (s *Server) Close(ctx context.Context) error {
	return errors.Join(s.stores.Close(), s.telemetry.Shutdown(ctx))
}

// storeHandle owns the run state store and, for the database backend, the
// connection pool underneath it.
type storeHandle struct {
	store persistence.Store
	pool  *database.PoolManager
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storeHandle, error) {
	storeCfg := cfg.Persistence()
	h := &storeHandle{}
	if storeCfg.Type == persistence.StoreTypeDatabase {
		pool, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		h.pool = pool
		store, err := persistence.NewStore(ctx, storeCfg, pool.DB())
		if err != nil {
			_ = pool.Close()
			return nil, err
		}
		h.store = store
		return h, nil
	}

	store, err := persistence.NewStore(ctx, storeCfg, nil)
	if err != nil {
		return nil, err
	}
	h.store = store
	return h, nil
}

// Close closes the pool when there is one, since it owns the connections
// the store uses, and the store otherwise.
func (h *storeHandle) Close() error {
	if h.pool != nil {
		return h.pool.Close()
	}
	return h.store.Close()
}
