package provider

import (
	"context"
	"fmt"

	"github.com/open-feature/go-sdk/openfeature"

	vwo "github.com/matt-riley/vwo-openfeature-provider"
)

// selection is the value an extraction rule picked out of a flag result.
type selection[T any] struct {
	value   T
	variant string
	reason  openfeature.Reason
}

// evaluate runs one resolution: fetch, pick, package. Errors and panics from
// the client or the result it returned resolve to defaultValue.
func evaluate[T any](
	p *Provider,
	ctx context.Context,
	flag string,
	defaultValue T,
	flatCtx openfeature.FlattenedContext,
	pick func(result vwo.FlagResult, selector string) selection[T],
) (value T, detail openfeature.ProviderResolutionDetail) {
	defer func() {
		if r := recover(); r != nil {
			value, detail = fail(p, flag, defaultValue, fmt.Errorf("vwo client panic: %v", r))
		}
	}()

	result, err := p.fetch(ctx, flag, flatCtx)
	if err != nil {
		return fail(p, flag, defaultValue, err)
	}

	picked := pick(result, selectorKey(flatCtx))
	return buildDetail(picked.value, nil, picked.reason, picked.variant)
}

// scalar is the extraction rule shared by string, integer and float flags:
// no selector means defaultValue, never the flag's enabled state.
func scalar[T any](defaultValue T, as func(vwo.Value) (T, bool)) func(vwo.FlagResult, string) selection[T] {
	return func(result vwo.FlagResult, selector string) selection[T] {
		if selector == "" {
			return selection[T]{value: defaultValue, reason: openfeature.DefaultReason}
		}
		return matchVariable(result.Variables(), selector, defaultValue, as)
	}
}

// matchVariable scans vars in order for the first variable named selector
// whose value has the requested type.
func matchVariable[T any](vars vwo.Variables, selector string, defaultValue T, as func(vwo.Value) (T, bool)) selection[T] {
	for _, v := range vars {
		if v.Key != selector {
			continue
		}
		if typed, ok := as(v.Value); ok {
			return selection[T]{value: typed, variant: v.Key, reason: openfeature.TargetingMatchReason}
		}
	}
	return selection[T]{value: defaultValue, reason: openfeature.DefaultReason}
}

// lookup finds key in an object source: the flag's variables, or a default
// value standing in for them.
func lookup(source any, key string) (any, bool) {
	switch typed := source.(type) {
	case vwo.Variables:
		return typed.Lookup(key)
	case vwo.Value:
		fields, ok := typed.Fields()
		if !ok {
			return nil, false
		}
		return fields.Lookup(key)
	case map[string]any:
		value, ok := typed[key]
		return value, ok && value != nil
	default:
		return nil, false
	}
}

func fail[T any](p *Provider, flag string, defaultValue T, err error) (T, openfeature.ProviderResolutionDetail) {
	p.log().Warn("flag resolution failed, serving default", "flag", flag, "error", err)
	return buildDetail(defaultValue, err, openfeature.ErrorReason, "")
}

// buildDetail packages a resolved value. Structured values are normalized to
// plain maps and slices first; err and reason are attached only when set.
func buildDetail[T any](value T, err error, reason openfeature.Reason, variant string) (T, openfeature.ProviderResolutionDetail) {
	if normalized, ok := normalize(value).(T); ok {
		value = normalized
	}

	detail := openfeature.ProviderResolutionDetail{Variant: variant}
	if err != nil {
		detail.ResolutionError = openfeature.NewGeneralResolutionError(err.Error())
	}
	if reason != "" {
		detail.Reason = reason
	}
	return value, detail
}

func normalize(value any) any {
	switch typed := value.(type) {
	case vwo.Value:
		return typed.Interface()
	case vwo.Variables:
		return typed.ToMap()
	case interface{ ToMap() map[string]any }:
		return typed.ToMap()
	default:
		return value
	}
}
