// Package server wires the navigation platform into an HTTP server with
// health checks, request logging, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/txn2/arnav-platform/pkg/api"
	"github.com/txn2/arnav-platform/pkg/auth"
	"github.com/txn2/arnav-platform/pkg/health"
	"github.com/txn2/arnav-platform/pkg/platform"
)

// Version is set at build time.
var Version = "dev"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Server serves the navigation API over HTTP.
type Server struct {
	platform   *platform.Platform
	checker    *health.Checker
	apiHandler *api.Handler
	httpServer *http.Server
	log        *slog.Logger
}

// New builds a server around the platform.
func New(p *platform.Platform, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	checker := health.NewChecker().WithSessionStats(func() health.SessionStats {
		return health.SessionStats{
			Active: p.Engine().SessionCount(),
			Max:    p.Config().Sessions.MaxActive,
		}
	})

	var authMiddle func(http.Handler) http.Handler
	if p.Authenticator() != nil {
		authMiddle = auth.Middleware(p.Authenticator())
	}

	apiHandler := api.NewHandler(api.Config{
		Engine:         p.Engine(),
		PathRepository: p.PathRepository(),
		AuditLogger:    p.AuditLogger(),
		MaxActive:      p.Config().Sessions.MaxActive,
		AuthMiddleware: authMiddle,
		Logger:         log,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", checker.LivenessHandler())
	mux.HandleFunc("GET /readyz", checker.ReadinessHandler())
	mux.Handle("/api/v1/navigation/", apiHandler)

	s := &Server{
		platform:   p,
		checker:    checker,
		apiHandler: apiHandler,
		log:        log,
	}
	s.httpServer = &http.Server{
		Addr:              p.Config().Server.Address,
		Handler:           s.requestLogging(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Hub returns the SSE hub.
func (s *Server) Hub() *api.Hub {
	return s.apiHandler.Hub()
}

// Run starts the platform and serves until the context is canceled, then
// drains and shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.platform.Start(ctx); err != nil {
		return err
	}
	s.checker.SetReady()

	errCh := make(chan error, 1)
	go func() {
		tls := s.platform.Config().Server.TLS
		s.log.Info("server listening",
			"address", s.httpServer.Addr, "tls", tls.Enabled, "version", Version)

		var err error
		if tls.Enabled {
			err = s.httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.checker.SetDraining()
	s.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := s.platform.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the wrapped writer so SSE streams keep working.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// requestLogging tags each request with an id and logs its outcome.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started),
			"request_id", id)
	})
}
