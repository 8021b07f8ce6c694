// Package server exposes the pipeline engine over HTTP. It owns persistence:
// every submitted definition is stored, and each run is recorded as running
// before it starts and updated to its terminal state afterwards.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/polisai/polis-dag/internal/governance"
	polistls "github.com/polisai/polis-dag/internal/tls"
	"github.com/polisai/polis-dag/pkg/config"
	"github.com/polisai/polis-dag/pkg/engine"
	"github.com/polisai/polis-dag/pkg/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMaxBodyBytes = 1 << 20

// Options wire the server's collaborators.
type Options struct {
	Executor *engine.Executor
	// Catalog holds the named pipelines loaded from disk. Optional.
	Catalog *engine.PipelineCatalog
	Store   storage.RunStore
	Logger  *slog.Logger
	Metrics *Metrics
	// RateLimiter throttles run submissions per client. Optional.
	RateLimiter  *governance.RateLimiter
	MaxBodyBytes int64
	// NewID generates pipeline and run ids. Defaults to random UUIDs.
	NewID func() string
	Clock func() time.Time
}

// Server is the HTTP front end of the engine.
type Server struct {
	executor     *engine.Executor
	catalog      *engine.PipelineCatalog
	store        storage.RunStore
	logger       *slog.Logger
	metrics      *Metrics
	limiter      *governance.RateLimiter
	maxBodyBytes int64
	newID        func() string
	now          func() time.Time
	handler      http.Handler
}

// New builds a Server. Executor and Store are required.
func New(opts Options) (*Server, error) {
	if opts.Executor == nil {
		return nil, errors.New("server: executor is required")
	}
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}

	s := &Server{
		executor:     opts.Executor,
		catalog:      opts.Catalog,
		store:        opts.Store,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		limiter:      opts.RateLimiter,
		maxBodyBytes: opts.MaxBodyBytes,
		newID:        opts.NewID,
		now:          opts.Clock,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.limiter == nil {
		s.limiter = governance.NewRateLimiter(governance.RateLimiterConfig{})
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.handler = otelhttp.NewHandler(s.routes(), "polis-dag",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/runners", s.handleRunners)

	r.Route("/pipelines", func(r chi.Router) {
		r.Get("/", s.handleListPipelines)
		r.Post("/plan", s.handlePlan)
		r.Get("/runs", s.handleListRuns)
		r.Get("/run/{id}", s.handleGetRun)

		limited := r.With(s.limiter.Middleware(governance.ClientIP))
		limited.Post("/run", s.handleRun)
		limited.Post("/{name}/run", s.handleRunNamed)
	})

	return r
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the server's Prometheus metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// RateLimiter returns the limiter guarding run submissions so callers can
// reconfigure it on reload.
func (s *Server) RateLimiter() *governance.RateLimiter {
	return s.limiter
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within cfg.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}
	return s.Serve(ctx, ln, cfg)
}

// Serve is ListenAndServe on an existing listener. The listener is wrapped in
// TLS when cfg.TLS names a certificate.
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg config.ServerConfig) error {
	tlsCfg := polistls.Config{
		CertFile:     cfg.TLS.CertFile,
		KeyFile:      cfg.TLS.KeyFile,
		ClientCAFile: cfg.TLS.ClientCAFile,
	}
	if tlsCfg.Enabled() {
		serverTLS, err := polistls.BuildServer(tlsCfg)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("tls: %w", err)
		}
		ln = tls.NewListener(ln, serverTLS)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "address", ln.Addr().String(), "tls", tlsCfg.Enabled())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	s.logger.Info("shutting down http server", "timeout", timeout.String())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
