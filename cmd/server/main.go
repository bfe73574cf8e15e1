package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"edureg/internal/credential/events"
	registryhandler "edureg/internal/credential/handler"
	registrymetrics "edureg/internal/credential/metrics"
	registryservice "edureg/internal/credential/service"
	registrystore "edureg/internal/credential/store"
	jwttoken "edureg/internal/jwt_token"
	"edureg/internal/platform/config"
	"edureg/internal/platform/health"
	"edureg/internal/platform/logger"
	"edureg/internal/platform/sqlite"
	"edureg/internal/platform/tracer"
	id "edureg/pkg/domain"
	"edureg/pkg/platform/middleware/auth"
	"edureg/pkg/platform/middleware/metadata"
	"edureg/pkg/platform/middleware/request"
	"edureg/pkg/platform/middleware/requesttime"
)

const (
	shutdownTimeout = 10 * time.Second
	eventBufferSize = 256
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

type infra struct {
	store     registrystore.Store
	db        *sqlite.DB
	publisher *events.Async
	tracer    tracer.Tracer
	metrics   *registrymetrics.Metrics
}

func (i *infra) close(log *slog.Logger) {
	if i.publisher != nil {
		i.publisher.Close()
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}
}

func buildInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	i := &infra{
		metrics:   registrymetrics.New(),
		tracer:    tracer.NewNoop(),
		publisher: events.NewAsync(events.Fanout{events.NewLogPublisher(log)}, eventBufferSize, events.WithAsyncLogger(log)),
	}
	if cfg.TracingEnabled {
		i.tracer = tracer.NewOTel()
	}

	if cfg.InMemory() {
		log.Warn("no REGISTRY_DB_PATH set, registry state is lost on restart")
		i.store = registrystore.NewInMemoryStore()
		return i, nil
	}

	db, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		i.close(log)
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	i.db = db
	if err := registrystore.Migrate(db); err != nil {
		i.close(log)
		return nil, fmt.Errorf("migrate registry database: %w", err)
	}
	i.store = registrystore.NewSQLite(db)
	return i, nil
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	owner, err := id.ParseIdentity(cfg.Owner)
	if err != nil {
		return fmt.Errorf("REGISTRY_OWNER: %w", err)
	}

	log.Info("initializing edureg",
		"addr", cfg.Addr,
		"owner", owner,
		"db_path", cfg.DBPath,
		"tracing_enabled", cfg.TracingEnabled,
	)

	deps, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close(log)

	svc := registryservice.New(deps.store,
		registryservice.WithPublisher(deps.publisher),
		registryservice.WithMetrics(deps.metrics),
		registryservice.WithTracer(deps.tracer),
		registryservice.WithLogger(log),
	)
	if err := svc.Bootstrap(ctx, owner); err != nil {
		return fmt.Errorf("bootstrap registry: %w", err)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL)
	jwtService.SetEnv(cfg.Environment)

	healthHandler := health.New(cfg.Environment)
	healthHandler.RegisterCheck("registry", func(ctx context.Context) error {
		_, err := svc.State(ctx)
		return err
	})
	if deps.db != nil {
		healthHandler.RegisterCheck("sqlite", deps.db.Ping)
	}

	router := newRouter(routerDeps{
		cfg:       cfg,
		log:       log,
		registry:  registryhandler.New(svc, log),
		health:    healthHandler,
		validator: jwttoken.NewJWTServiceAdapter(jwtService),
		latency:   request.NewMetrics(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

type routerDeps struct {
	cfg       config.Server
	log       *slog.Logger
	registry  *registryhandler.Handler
	health    *health.Handler
	validator auth.JWTValidator
	latency   *request.Metrics
}

// newRouter wires every endpoint with middleware. Mutating registry routes sit
// behind bearer authentication; reads are public.
func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(request.Recovery(d.log))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.NewMiddleware(nil).Handler)
	r.Use(request.Logger(d.log))
	r.Use(request.LatencyMiddleware(d.latency))

	d.health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(d.cfg.RequestTimeout))
		r.Use(request.BodyLimit(d.cfg.MaxBodyBytes))
		r.Use(request.ContentTypeJSON)

		d.registry.RegisterPublic(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCaller(d.validator, d.log))
			d.registry.RegisterProtected(r)
		})
	})

	return r
}
