// Package app builds the pieces shared by the wlts binaries from configuration.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/mohammed-shakir/wlts-go/internal/core/config"
	"github.com/mohammed-shakir/wlts-go/internal/core/httpclient"
	"github.com/mohammed-shakir/wlts-go/internal/logger"
	"github.com/mohammed-shakir/wlts-go/pkg/wlts"
)

// NewLogger builds the zerolog-backed slog logger for one binary.
func NewLogger(cfg config.Config, component string, out io.Writer) *slog.Logger {
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "wlts",
		Component: component,
	}, out)
	return logger.NewSlog(&zl)
}

// NewService builds a WLTS client with one shared outbound http client.
func NewService(cfg config.Config, l *slog.Logger) (*wlts.Service, error) {
	opts := []wlts.Option{
		wlts.WithHTTPClient(httpclient.NewOutbound(cfg.HTTPTimeout)),
		wlts.WithLogger(l),
		wlts.WithBatchWorkers(cfg.BatchWorkers),
		wlts.WithHeaders(cfg.Headers),
	}
	if cfg.AccessToken != "" {
		opts = append(opts, wlts.WithAccessToken(cfg.AccessToken))
	}
	if cfg.LCCSURL != "" {
		opts = append(opts, wlts.WithLCCSURL(cfg.LCCSURL))
	}
	svc, err := wlts.New(cfg.WLTSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("build wlts service: %w", err)
	}
	return svc, nil
}
