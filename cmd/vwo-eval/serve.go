package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/matt-riley/vwo-openfeature-provider/instrument"
	"github.com/matt-riley/vwo-openfeature-provider/internal/config"
	"github.com/matt-riley/vwo-openfeature-provider/internal/metrics"
	"github.com/matt-riley/vwo-openfeature-provider/internal/middleware"
	"github.com/matt-riley/vwo-openfeature-provider/internal/server"
	"github.com/matt-riley/vwo-openfeature-provider/local"
)

const (
	shutdownTimeout       = 10 * time.Second
	httpReadHeaderTimeout = 5 * time.Second
	httpReadTimeout       = 30 * time.Second
	httpIdleTimeout       = 2 * time.Minute
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve flag evaluations over HTTP",
		Long: `Serve flag evaluations over HTTP until interrupted.

The flag file is reloaded when it changes on disk and on every resync
interval. A file that fails to parse keeps the previous flags.

Routes:
  POST /v1/evaluate   evaluate {"flag": ...} or {"requests": [...]}
  GET  /v1/flags      list flag keys
  GET  /healthz       liveness
  GET  /metrics       Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ln, err := net.Listen("tcp", a.cfg.HTTPAddr)
			if err != nil {
				return fmt.Errorf("listen HTTP %s: %w", a.cfg.HTTPAddr, err)
			}
			defer ln.Close()
			return a.serve(cmd.Context(), ln)
		},
	}

	f := cmd.Flags()
	f.String(config.FlagNames[config.KeyHTTPAddr], ":8080", "Listen address (env "+config.KeyHTTPAddr+")")
	f.Duration(config.FlagNames[config.KeyResyncInterval], time.Minute, "Periodic flag file reload, 0 disables (env "+config.KeyResyncInterval+")")
	f.Int(config.FlagNames[config.KeyRateLimitPerIP], middleware.DefaultRequestsPerMinute, "Requests per minute per client IP, 0 disables (env "+config.KeyRateLimitPerIP+")")

	return cmd
}

// serve runs the evaluation API on ln until ctx is done.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	flags, err := local.LoadFile(a.cfg.FlagsFile)
	if err != nil {
		return fmt.Errorf("load flags: %w", err)
	}

	clientMetrics := instrument.NewMetrics()
	m := metrics.New(clientMetrics.Registry)
	m.RecordFlagFileLoad(nil, len(flags))

	store := local.New(flags,
		local.WithLogger(a.log),
		local.WithResyncInterval(a.cfg.ResyncInterval),
		local.WithReloadHook(m.RecordFlagFileLoad),
	)
	if err := store.Watch(ctx, a.cfg.FlagsFile); err != nil {
		return fmt.Errorf("watch flags: %w", err)
	}

	client, err := a.registerProvider(store, clientMetrics)
	if err != nil {
		return err
	}

	var limiter *middleware.RateLimiter
	if a.cfg.RateLimitPerIP > 0 {
		limiter = middleware.NewRateLimiter(ctx, a.cfg.RateLimitPerIP, middleware.WithOnLimited(m.IncRateLimited))
		defer limiter.Stop()
	}

	handler := server.NewHTTPHandler(client, store, m)
	handler = middleware.HTTPRateLimit(limiter)(handler)
	handler = middleware.HTTPRequestLogging(a.log)(handler)

	httpServer := &http.Server{
		Handler:           otelhttp.NewHandler(handler, "vwo-eval-http"),
		ReadHeaderTimeout: httpReadHeaderTimeout,
		ReadTimeout:       httpReadTimeout,
		IdleTimeout:       httpIdleTimeout,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("serve HTTP: %w", err)
		}
	}()

	a.log.Info("server started", "http_addr", ln.Addr().String(), "flags", len(store.Keys()))

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-serveErrCh:
	}
	stop()

	a.log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		if serveErr != nil {
			return serveErr
		}
		return fmt.Errorf("shutdown HTTP: %w", err)
	}

	return serveErr
}
