// SPDX-License-Identifier: MIT

// Package status serves a small HTTP surface while a recording run is
// in flight: liveness, live run progress, and Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	xglog "github.com/tonband/aircheck/internal/log"
	"github.com/tonband/aircheck/internal/session"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second

	rateLimitRequests = 60
	rateLimitWindow   = time.Minute
)

// Options configures the status server.
type Options struct {
	// Addr is the listen address. Empty disables the server.
	Addr string

	// Version is reported by the health endpoint.
	Version string

	// Progress supplies the live run snapshot served under /status.
	// A nil func serves an empty snapshot.
	Progress func() session.Progress
}

// Server exposes /healthz, /status and /metrics over plain HTTP.
type Server struct {
	addr     string
	version  string
	progress func() session.Progress
	logger   zerolog.Logger
	router   *chi.Mux
}

// New builds the server and its route table. Call Run to serve.
func New(opts Options) *Server {
	s := &Server{
		addr:     opts.Addr,
		version:  opts.Version,
		progress: opts.Progress,
		logger:   xglog.WithComponent("status"),
	}

	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))
	r.Use(httprate.Limit(
		rateLimitRequests,
		rateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateLimitWindow.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded"}`))
		}),
	))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

// Handler returns the route table for serving through an external
// listener, mainly in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully. An
// empty listen address makes Run return immediately.
func (s *Server) Run(ctx context.Context) error {
	if s.addr == "" {
		s.logger.Debug().Msg("status server disabled, no listen address")
		return nil
	}

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("status server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		// Bounded shutdown independent from caller cancellation.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		s.logger.Info().Msg("status server stopped")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	logger := xglog.WithComponentFromContext(r.Context(), "status")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}{Status: "ok", Version: s.version}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "status.health.encode_error").Msg("failed to encode health response")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	logger := xglog.WithComponentFromContext(r.Context(), "status")

	var snapshot session.Progress
	if s.progress != nil {
		snapshot = s.progress()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		logger.Error().Err(err).Str("event", "status.progress.encode_error").Msg("failed to encode progress response")
	}
}

// statusWriter captures the response code for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msg("request served")
		})
	}
}
