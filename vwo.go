// Package vwo defines the vendor-side contract consumed by the OpenFeature
// provider: the VWO client interface, the user context it expects and the
// typed flag variables it returns.
//
// Use the sub-packages to work with it:
//
//	import "github.com/matt-riley/vwo-openfeature-provider/provider"   // OpenFeature provider
//	import "github.com/matt-riley/vwo-openfeature-provider/instrument" // tracing + metrics decorator
//	import "github.com/matt-riley/vwo-openfeature-provider/local"      // offline client
package vwo

import "context"

// Context field names as they appear in the vendor mapping.
const (
	FieldID                          = "id"
	FieldUserAgent                   = "userAgent"
	FieldIPAddress                   = "ipAddress"
	FieldCustomVariables             = "customVariables"
	FieldVariationTargetingVariables = "variationTargetingVariables"
)

// Client covers flag retrieval from the VWO SDK.
// Implementations must be safe for concurrent use when shared across requests.
type Client interface {
	GetFlag(ctx context.Context, key string, userCtx Context) (FlagResult, error)
}

// FlagResult is the vendor's answer for a single flag.
type FlagResult interface {
	IsEnabled() bool
	Variables() Variables
}

// Context is the user context handed to the VWO SDK.
// The zero Context carries no user at all.
type Context struct {
	ID                          string
	UserAgent                   string
	IPAddress                   string
	CustomVariables             map[string]any // may be nil
	VariationTargetingVariables map[string]any // may be nil
}

// IsZero reports whether the context identifies no user.
func (c Context) IsZero() bool {
	return c.ID == ""
}

// Fields renders the context as the vendor mapping. Without an ID the mapping
// is empty; otherwise id, userAgent and ipAddress are always present and the
// variable maps only when set.
func (c Context) Fields() map[string]any {
	fields := make(map[string]any)
	if c.IsZero() {
		return fields
	}

	fields[FieldID] = c.ID
	fields[FieldUserAgent] = c.UserAgent
	fields[FieldIPAddress] = c.IPAddress
	if c.CustomVariables != nil {
		fields[FieldCustomVariables] = c.CustomVariables
	}
	if c.VariationTargetingVariables != nil {
		fields[FieldVariationTargetingVariables] = c.VariationTargetingVariables
	}

	return fields
}

// Flag is a plain FlagResult. The zero Flag is disabled and has no variables,
// which is what the SDK reports for unknown keys.
type Flag struct {
	enabled   bool
	variables Variables
}

// NewFlag returns a Flag with the given state and variables.
func NewFlag(enabled bool, variables Variables) Flag {
	return Flag{enabled: enabled, variables: variables}
}

func (f Flag) IsEnabled() bool { return f.enabled }
func (f Flag) Variables() Variables { return f.variables }
