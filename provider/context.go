package provider

import (
	"errors"
	"fmt"
	"maps"

	"github.com/open-feature/go-sdk/openfeature"

	vwo "github.com/matt-riley/vwo-openfeature-provider"
)

// Evaluation context attributes read by the provider.
const (
	// AttrKey selects a single variable out of a flag's variables.
	AttrKey                         = "key"
	AttrUserAgent                   = "userAgent"
	AttrIPAddress                   = "ipAddress"
	AttrCustomVariables             = "customVariables"
	AttrVariationTargetingVariables = "variationTargetingVariables"
)

// ErrInvalidContext is wrapped by every context conversion failure.
var ErrInvalidContext = errors.New("invalid evaluation context")

// ToVWOContext converts an OpenFeature evaluation context into the VWO user
// context. A context without a targeting key converts to the zero vwo.Context:
// no user fields are derived at all, not even the empty user agent and IP
// address.
func ToVWOContext(flatCtx openfeature.FlattenedContext) (vwo.Context, error) {
	if flatCtx == nil {
		return vwo.Context{}, nil
	}

	id, err := stringAttribute(flatCtx, openfeature.TargetingKey)
	if err != nil {
		return vwo.Context{}, err
	}
	// The SDK drops empty targeting keys when flattening, so "" means no user.
	if id == "" {
		return vwo.Context{}, nil
	}

	userAgent, err := stringAttribute(flatCtx, AttrUserAgent)
	if err != nil {
		return vwo.Context{}, err
	}
	ipAddress, err := stringAttribute(flatCtx, AttrIPAddress)
	if err != nil {
		return vwo.Context{}, err
	}
	customVariables, err := mapAttribute(flatCtx, AttrCustomVariables)
	if err != nil {
		return vwo.Context{}, err
	}
	variationTargetingVariables, err := mapAttribute(flatCtx, AttrVariationTargetingVariables)
	if err != nil {
		return vwo.Context{}, err
	}

	return vwo.Context{
		ID:                          id,
		UserAgent:                   userAgent,
		IPAddress:                   ipAddress,
		CustomVariables:             customVariables,
		VariationTargetingVariables: variationTargetingVariables,
	}, nil
}

// selectorKey returns the variable selector, or "" when the context has none.
// Only a string counts, and "" and "0" are treated as absent.
func selectorKey(flatCtx openfeature.FlattenedContext) string {
	key, _ := flatCtx[AttrKey].(string)
	if key == "0" {
		return ""
	}
	return key
}

func stringAttribute(flatCtx openfeature.FlattenedContext, name string) (string, error) {
	raw, ok := flatCtx[name]
	if !ok || raw == nil {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidContext, name, raw)
	}
	return value, nil
}

// mapAttribute returns a copy of a string-keyed map attribute so the VWO
// context never aliases caller-owned data.
func mapAttribute(flatCtx openfeature.FlattenedContext, name string) (map[string]any, error) {
	raw, ok := flatCtx[name]
	if !ok || raw == nil {
		return nil, nil
	}

	switch typed := raw.(type) {
	case map[string]any:
		return maps.Clone(typed), nil
	case map[string]string:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a map[string]any, got %T", ErrInvalidContext, name, raw)
	}
}
