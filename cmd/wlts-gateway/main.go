// Command wlts-gateway serves WLTS trajectories, collections and harmonized
// classes over HTTP in JSON, GeoJSON or CSV.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammed-shakir/wlts-go/internal/app"
	"github.com/mohammed-shakir/wlts-go/internal/core/config"
	"github.com/mohammed-shakir/wlts-go/internal/core/observability"
	"github.com/mohammed-shakir/wlts-go/internal/core/server"
	"github.com/mohammed-shakir/wlts-go/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()
	appLog := app.NewLogger(cfg, "gateway", os.Stdout)

	appLog.Info("starting gateway",
		"addr", cfg.Addr,
		"version", Version,
		"wlts", cfg.WLTSURL,
		"workers", cfg.BatchWorkers)

	svc, err := app.NewService(cfg, appLog)
	if err != nil {
		appLog.Error("failed to initialize wlts client", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var inline http.Handler
	if cfg.MetricsEnabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.MetricsAddr,
			Path:    cfg.MetricsPath,
			Build: metrics.BuildInfo{
				Version:   os.Getenv("BUILD_VERSION"),
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(p.Registerer(), true)

		// same listener as the api when no separate address is configured
		if cfg.MetricsAddr == "" || cfg.MetricsAddr == cfg.Addr {
			inline = p.Handler()
		} else {
			go serveMetrics(ctx, appLog, cfg.MetricsAddr, p.Path(), p.Handler())
		}
	} else {
		observability.Init(nil, false)
	}

	handler := server.NewHandler(appLog, svc, inline, cfg.MetricsPath)
	if err := server.Run(ctx, cfg, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func serveMetrics(ctx context.Context, l *slog.Logger, addr, path string, h http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(path, h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error("metrics shutdown", "err", err)
		}
	}()

	l.Info("metrics listen", "addr", addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("metrics server exited", "err", err)
	}
}
