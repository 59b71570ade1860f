package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wlts-go/internal/core/config"
	"github.com/mohammed-shakir/wlts-go/internal/core/health"
	middleware "github.com/mohammed-shakir/wlts-go/internal/core/middleware"
	"github.com/mohammed-shakir/wlts-go/internal/core/router"
)

// NewHandler wires the gateway routes. metrics may be nil to disable /metrics.
func NewHandler(logger *slog.Logger, svc router.Service, metrics http.Handler, metricsPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(func(ctx context.Context) error {
		_, err := svc.Collections(ctx)
		return err
	}))
	if metrics != nil {
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.Method(http.MethodGet, metricsPath, metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Metrics())
		r.Use(middleware.ETag())
		r.Get("/collections", router.HandleCollections(logger, svc))
		r.Get("/collections/{name}", router.HandleCollection(logger, svc))
		r.Get("/trajectory", router.HandleTrajectory(logger, svc))
	})
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.HTTPTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
