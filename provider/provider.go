// Package provider implements an OpenFeature provider backed by a VWO client.
//
// The provider only translates: it converts the OpenFeature evaluation
// context into a VWO user context, asks the client for the flag and extracts a
// typed value from the result. Every failure resolves to the caller's default
// value with a resolution error attached; nothing is returned as an error or
// panic to the caller.
//
//	client := local.New(flags)
//	if err := openfeature.SetProviderAndWait(provider.New(client)); err != nil {
//		return err
//	}
//	of := openfeature.NewClient("checkout")
//	enabled, _ := of.BooleanValue(ctx, "checkout-redesign", false,
//		openfeature.NewEvaluationContext("user-123", nil))
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/open-feature/go-sdk/openfeature"

	vwo "github.com/matt-riley/vwo-openfeature-provider"
)

// Name is reported in the provider metadata.
const Name = "VWOProvider"

var errNilClient = errors.New("vwo client is nil")

var _ openfeature.FeatureProvider = (*Provider)(nil)

// Provider resolves OpenFeature flags through a vwo.Client.
type Provider struct {
	client vwo.Client
	hooks  []openfeature.Hook
	logger atomic.Pointer[slog.Logger]
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.SetLogger(logger)
	}
}

// WithHooks attaches provider hooks. The list is fixed after construction.
func WithHooks(hooks ...openfeature.Hook) Option {
	return func(p *Provider) {
		p.hooks = append(p.hooks, hooks...)
	}
}

// New returns a Provider that delegates to client.
func New(client vwo.Client, opts ...Option) *Provider {
	p := &Provider{client: client}
	p.SetLogger(nil)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Metadata() openfeature.Metadata {
	return openfeature.Metadata{Name: Name}
}

// Hooks returns a copy of the hooks given at construction.
func (p *Provider) Hooks() []openfeature.Hook {
	return slices.Clone(p.hooks)
}

// SetLogger replaces the diagnostics logger. A nil logger discards output.
// It is safe to call while evaluations are running.
func (p *Provider) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p.logger.Store(logger)
}

// Client returns the VWO client the provider delegates to.
func (p *Provider) Client() vwo.Client {
	return p.client
}

// BooleanEvaluation without a "key" attribute reports whether the flag is
// enabled for the user. With one, it returns the boolean variable of that
// name, or defaultValue.
func (p *Provider) BooleanEvaluation(ctx context.Context, flag string, defaultValue bool, flatCtx openfeature.FlattenedContext) openfeature.BoolResolutionDetail {
	value, detail := evaluate(p, ctx, flag, defaultValue, flatCtx, func(result vwo.FlagResult, selector string) selection[bool] {
		if selector == "" {
			if result.IsEnabled() {
				return selection[bool]{value: true, reason: openfeature.TargetingMatchReason}
			}
			return selection[bool]{value: false, reason: openfeature.DisabledReason}
		}
		return matchVariable(result.Variables(), selector, defaultValue, vwo.Value.AsBool)
	})
	return openfeature.BoolResolutionDetail{Value: value, ProviderResolutionDetail: detail}
}

// StringEvaluation returns the string variable named by the "key" attribute.
// Without a "key" attribute it always returns defaultValue.
func (p *Provider) StringEvaluation(ctx context.Context, flag string, defaultValue string, flatCtx openfeature.FlattenedContext) openfeature.StringResolutionDetail {
	value, detail := evaluate(p, ctx, flag, defaultValue, flatCtx, scalar(defaultValue, vwo.Value.AsString))
	return openfeature.StringResolutionDetail{Value: value, ProviderResolutionDetail: detail}
}

// FloatEvaluation behaves like StringEvaluation for float variables. Integer
// variables do not match.
func (p *Provider) FloatEvaluation(ctx context.Context, flag string, defaultValue float64, flatCtx openfeature.FlattenedContext) openfeature.FloatResolutionDetail {
	value, detail := evaluate(p, ctx, flag, defaultValue, flatCtx, scalar(defaultValue, vwo.Value.AsFloat))
	return openfeature.FloatResolutionDetail{Value: value, ProviderResolutionDetail: detail}
}

// IntEvaluation behaves like StringEvaluation for integer variables.
func (p *Provider) IntEvaluation(ctx context.Context, flag string, defaultValue int64, flatCtx openfeature.FlattenedContext) openfeature.IntResolutionDetail {
	value, detail := evaluate(p, ctx, flag, defaultValue, flatCtx, scalar(defaultValue, vwo.Value.AsInt))
	return openfeature.IntResolutionDetail{Value: value, ProviderResolutionDetail: detail}
}

// ObjectEvaluation returns all of the flag's variables as a map, or the single
// variable named by the "key" attribute with no type filtering. When the flag
// has no variables, defaultValue stands in for them.
func (p *Provider) ObjectEvaluation(ctx context.Context, flag string, defaultValue any, flatCtx openfeature.FlattenedContext) openfeature.InterfaceResolutionDetail {
	value, detail := evaluate(p, ctx, flag, defaultValue, flatCtx, func(result vwo.FlagResult, selector string) selection[any] {
		var source any = defaultValue
		reason := openfeature.DefaultReason
		if vars := result.Variables(); vars.Len() > 0 {
			source = vars
			reason = openfeature.TargetingMatchReason
		}

		if selector == "" {
			return selection[any]{value: source, reason: reason}
		}
		if value, ok := lookup(source, selector); ok {
			return selection[any]{value: value, variant: selector, reason: reason}
		}
		return selection[any]{value: defaultValue, reason: openfeature.DefaultReason}
	})
	return openfeature.InterfaceResolutionDetail{Value: value, ProviderResolutionDetail: detail}
}

func (p *Provider) log() *slog.Logger {
	return p.logger.Load()
}

// fetch converts the context and asks the client for the flag.
func (p *Provider) fetch(ctx context.Context, flag string, flatCtx openfeature.FlattenedContext) (vwo.FlagResult, error) {
	userCtx, err := ToVWOContext(flatCtx)
	if err != nil {
		return nil, err
	}
	if p.client == nil {
		return nil, errNilClient
	}

	result, err := p.client.GetFlag(ctx, flag, userCtx)
	if err != nil {
		return nil, fmt.Errorf("get flag %q: %w", flag, err)
	}
	if result == nil {
		return vwo.Flag{}, nil
	}
	return result, nil
}
