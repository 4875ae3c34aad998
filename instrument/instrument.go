// Package instrument decorates a vwo.Client with OpenTelemetry tracing,
// Prometheus metrics and debug logging.
//
//	client := instrument.Wrap(vwoClient,
//		instrument.WithMetrics(instrument.NewMetrics()),
//		instrument.WithLogger(log),
//	)
//	p := provider.New(client)
//
// Tracing uses the global tracer provider unless WithTracerProvider is given.
package instrument

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	vwo "github.com/matt-riley/vwo-openfeature-provider"
)

const tracerName = "github.com/matt-riley/vwo-openfeature-provider/instrument"

// Call outcomes used as the status metric label.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

var _ vwo.Client = (*Client)(nil)

// Client is a vwo.Client that instruments every call to the wrapped client.
type Client struct {
	next    vwo.Client
	tracer  trace.Tracer
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	tracerProvider trace.TracerProvider
	metrics        *Metrics
	logger         *slog.Logger
}

// WithTracerProvider sets the tracer provider used for spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *clientOptions) {
		o.tracerProvider = tp
	}
}

// WithMetrics enables metric recording.
func WithMetrics(m *Metrics) Option {
	return func(o *clientOptions) {
		o.metrics = m
	}
}

// WithLogger sets the logger for per-call debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// Wrap returns next decorated with the configured instrumentation.
func Wrap(next vwo.Client, opts ...Option) *Client {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		next:    next,
		tracer:  o.tracerProvider.Tracer(tracerName),
		metrics: o.metrics,
		logger:  o.logger,
	}
}

// Unwrap returns the decorated client.
func (c *Client) Unwrap() vwo.Client {
	return c.next
}

func (c *Client) GetFlag(ctx context.Context, key string, userCtx vwo.Context) (vwo.FlagResult, error) {
	ctx, span := c.tracer.Start(ctx, "vwo.GetFlag", trace.WithAttributes(
		attribute.String("vwo.flag.key", key),
		attribute.Bool("vwo.user.present", !userCtx.IsZero()),
	))
	defer span.End()

	start := time.Now()
	result, err := c.next.GetFlag(ctx, key, userCtx)
	elapsed := time.Since(start)

	status := StatusOK
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = StatusCanceled
	case err != nil:
		status = StatusError
	}
	if c.metrics != nil {
		c.metrics.RecordCall(status, elapsed)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.DebugContext(ctx, "vwo get flag failed", "flag", key, "status", status, "duration", elapsed, "error", err)
		return nil, err
	}

	enabled := result != nil && result.IsEnabled()
	span.SetAttributes(attribute.Bool("vwo.flag.enabled", enabled))
	if c.metrics != nil {
		c.metrics.RecordResult(enabled)
	}
	c.logger.DebugContext(ctx, "vwo get flag", "flag", key, "enabled", enabled, "duration", elapsed)

	return result, nil
}
