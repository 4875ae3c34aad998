// Package main is the entry point for vwo-eval, a command-line tool that
// resolves feature flags through the VWO OpenFeature provider against a local
// YAML flag file.
//
// The bootstrap sequence is:
//  1. Initialise opt-in tracing from the OTEL_* environment.
//  2. Load configuration from the environment and command-line flags.
//  3. Load the flag file into an offline VWO client.
//  4. Wrap the client with tracing, metrics and logging.
//  5. Register the provider with OpenFeature, then evaluate the flag or
//     serve evaluations over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matt-riley/vwo-openfeature-provider/internal/tracing"
)

const tracerShutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("vwo-eval failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.Init(ctx)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			slog.Error("tracer shutdown error", "err", err)
		}
	}()

	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}
