package provider

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/open-feature/go-sdk/openfeature"

	vwo "github.com/matt-riley/vwo-openfeature-provider"
)

func TestResolutionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	ctx := context.Background()

	properties.Property("client errors always serve the default with a message", prop.ForAll(
		func(msg string, defBool bool, defStr string, defInt int64, defFloat float64) bool {
			p := New(&fakeClient{err: errors.New("e:" + msg)})
			flatCtx := withUser(nil)

			b := p.BooleanEvaluation(ctx, "flag", defBool, flatCtx)
			s := p.StringEvaluation(ctx, "flag", defStr, flatCtx)
			i := p.IntEvaluation(ctx, "flag", defInt, flatCtx)
			f := p.FloatEvaluation(ctx, "flag", defFloat, flatCtx)
			o := p.ObjectEvaluation(ctx, "flag", defStr, flatCtx)

			return b.Value == defBool && b.Error() != nil &&
				s.Value == defStr && s.Error() != nil &&
				i.Value == defInt && i.Error() != nil &&
				(f.Value == defFloat || f.Value != f.Value) && f.Error() != nil &&
				o.Value == defStr && o.Error() != nil
		},
		gen.AlphaString(),
		gen.Bool(),
		gen.AnyString(),
		gen.Int64(),
		gen.Float64(),
	))

	properties.Property("contexts without a targeting key convert to nothing", prop.ForAll(
		func(userAgent, ip, plan string) bool {
			got, err := ToVWOContext(openfeature.FlattenedContext{
				AttrUserAgent:       userAgent,
				AttrIPAddress:       ip,
				AttrCustomVariables: map[string]any{"plan": plan},
			})
			return err == nil && len(got.Fields()) == 0
		},
		gen.AnyString(),
		gen.AnyString(),
		gen.AlphaString(),
	))

	properties.Property("targeting key becomes id with empty agent and ip", prop.ForAll(
		func(id string) bool {
			got, err := ToVWOContext(openfeature.FlattenedContext{openfeature.TargetingKey: id})
			if err != nil {
				return false
			}
			want := map[string]any{vwo.FieldID: id, vwo.FieldUserAgent: "", vwo.FieldIPAddress: ""}
			return reflect.DeepEqual(got.Fields(), want)
		},
		gen.Identifier(),
	))

	properties.Property("scalar types without a selector ignore matching variables", prop.ForAll(
		func(name string, enabled bool, defStr string, defInt int64) bool {
			p := New(flagWith(enabled,
				vwo.Variable{Key: name, Value: vwo.String("variable")},
				vwo.Variable{Key: name, Value: vwo.Int(defInt + 1)},
				vwo.Variable{Key: name, Value: vwo.Float(0.25)},
			))
			flatCtx := withUser(nil)

			return p.StringEvaluation(ctx, "flag", defStr, flatCtx).Value == defStr &&
				p.IntEvaluation(ctx, "flag", defInt, flatCtx).Value == defInt &&
				p.FloatEvaluation(ctx, "flag", 9.5, flatCtx).Value == 9.5
		},
		gen.Identifier(),
		gen.Bool(),
		gen.AnyString(),
		gen.Int64(),
	))

	properties.Property("boolean without a selector follows the enabled state", prop.ForAll(
		func(enabled, defBool bool) bool {
			p := New(flagWith(enabled))
			return p.BooleanEvaluation(ctx, "flag", defBool, withUser(nil)).Value == enabled
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("identical inputs resolve identically", prop.ForAll(
		func(name string, n int64, selected bool) bool {
			p := New(flagWith(true,
				vwo.Variable{Key: name, Value: vwo.Object(vwo.Variables{{Key: "n", Value: vwo.Int(n)}})},
				vwo.Variable{Key: "flag", Value: vwo.Bool(true)},
			))
			attrs := map[string]any{}
			if selected {
				attrs[AttrKey] = name
			}

			first := p.ObjectEvaluation(ctx, "flag", nil, withUser(attrs))
			second := p.ObjectEvaluation(ctx, "flag", nil, withUser(attrs))
			return reflect.DeepEqual(first, second)
		},
		gen.Identifier(),
		gen.Int64(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
