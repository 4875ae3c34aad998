// Package evaluation runs typed flag requests through an OpenFeature client.
// It is shared by the vwo-eval resolve command and its HTTP server.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/open-feature/go-sdk/openfeature"

	vwo "github.com/matt-riley/vwo-openfeature-provider"
)

// Flag value types.
const (
	TypeBool   = "bool"
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeObject = "object"
)

// ErrInvalidRequest is wrapped by every request validation failure.
var ErrInvalidRequest = errors.New("invalid evaluation request")

// Request asks for one flag. Type defaults to bool. Default must be
// convertible to Type; integral floats are accepted for int and integers for
// float.
type Request struct {
	Flag         string         `json:"flag"`
	Type         string         `json:"type,omitempty"`
	Default      any            `json:"default,omitempty"`
	TargetingKey string         `json:"targetingKey,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// Resolution is the outcome of one evaluation. Resolution failures are
// reported in ErrorCode and Error alongside the default value.
type Resolution struct {
	Flag      string `json:"flag" yaml:"flag"`
	Type      string `json:"type" yaml:"type"`
	Value     any    `json:"value" yaml:"value"`
	Variant   string `json:"variant,omitempty" yaml:"variant,omitempty"`
	Reason    string `json:"reason,omitempty" yaml:"reason,omitempty"`
	ErrorCode string `json:"errorCode,omitempty" yaml:"errorCode,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Evaluate resolves req through c. It returns an error only for an invalid
// request.
func Evaluate(ctx context.Context, c *openfeature.Client, req Request) (Resolution, error) {
	flag := strings.TrimSpace(req.Flag)
	if flag == "" {
		return Resolution{}, fmt.Errorf("%w: flag is required", ErrInvalidRequest)
	}
	valueType := strings.ToLower(strings.TrimSpace(req.Type))
	if valueType == "" {
		valueType = TypeBool
	}

	evalCtx := openfeature.NewEvaluationContext(req.TargetingKey, req.Attributes)
	res := Resolution{Flag: flag, Type: valueType}

	var details openfeature.EvaluationDetails
	switch valueType {
	case TypeBool:
		def, err := coerce(req.Default, TypeBool, vwo.Value.AsBool)
		if err != nil {
			return Resolution{}, err
		}
		d, _ := c.BooleanValueDetails(ctx, flag, def, evalCtx)
		res.Value, details = d.Value, d.EvaluationDetails
	case TypeString:
		def, err := coerce(req.Default, TypeString, vwo.Value.AsString)
		if err != nil {
			return Resolution{}, err
		}
		d, _ := c.StringValueDetails(ctx, flag, def, evalCtx)
		res.Value, details = d.Value, d.EvaluationDetails
	case TypeInt:
		def, err := coerce(req.Default, TypeInt, integral)
		if err != nil {
			return Resolution{}, err
		}
		d, _ := c.IntValueDetails(ctx, flag, def, evalCtx)
		res.Value, details = d.Value, d.EvaluationDetails
	case TypeFloat:
		def, err := coerce(req.Default, TypeFloat, numeric)
		if err != nil {
			return Resolution{}, err
		}
		d, _ := c.FloatValueDetails(ctx, flag, def, evalCtx)
		res.Value, details = d.Value, d.EvaluationDetails
	case TypeObject:
		d, _ := c.ObjectValueDetails(ctx, flag, req.Default, evalCtx)
		res.Value, details = d.Value, d.EvaluationDetails
	default:
		return Resolution{}, fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, req.Type)
	}

	res.Variant = details.Variant
	res.Reason = string(details.Reason)
	res.ErrorCode = string(details.ErrorCode)
	res.Error = details.ErrorMessage
	return res, nil
}

// coerce converts a decoded default to T. A nil default is the zero value.
func coerce[T any](raw any, valueType string, as func(vwo.Value) (T, bool)) (T, error) {
	var zero T
	if raw == nil {
		return zero, nil
	}
	v, err := vwo.ValueOf(raw)
	if err != nil {
		return zero, fmt.Errorf("%w: default: %v", ErrInvalidRequest, err)
	}
	typed, ok := as(v)
	if !ok {
		return zero, fmt.Errorf("%w: default: want %s, got %s", ErrInvalidRequest, valueType, v.Kind())
	}
	return typed, nil
}

func integral(v vwo.Value) (int64, bool) {
	if i, ok := v.AsInt(); ok {
		return i, true
	}
	f, ok := v.AsFloat()
	if !ok || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func numeric(v vwo.Value) (float64, bool) {
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	i, ok := v.AsInt()
	return float64(i), ok
}
