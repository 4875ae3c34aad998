package vwo

import (
	"reflect"
	"testing"
)

func TestContextFields(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want map[string]any
	}{
		{
			name: "zero context",
			ctx:  Context{},
			want: map[string]any{},
		},
		{
			name: "no id drops other fields",
			ctx:  Context{UserAgent: "curl", CustomVariables: map[string]any{"a": 1}},
			want: map[string]any{},
		},
		{
			name: "id only",
			ctx:  Context{ID: "user-1"},
			want: map[string]any{"id": "user-1", "userAgent": "", "ipAddress": ""},
		},
		{
			name: "full",
			ctx: Context{
				ID:                          "user-1",
				UserAgent:                   "curl",
				IPAddress:                   "10.0.0.1",
				CustomVariables:             map[string]any{"plan": "gold"},
				VariationTargetingVariables: map[string]any{},
			},
			want: map[string]any{
				"id":                          "user-1",
				"userAgent":                   "curl",
				"ipAddress":                   "10.0.0.1",
				"customVariables":             map[string]any{"plan": "gold"},
				"variationTargetingVariables": map[string]any{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.Fields(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Fields() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestZeroFlag(t *testing.T) {
	var f Flag
	if f.IsEnabled() || f.Variables().Len() != 0 {
		t.Fatalf("zero Flag = %+v, want disabled with no variables", f)
	}
}

func TestVariablesDuplicatesFirstWins(t *testing.T) {
	vars := Variables{
		{Key: "a", Value: Int(1)},
		{Key: "b", Value: String("x")},
		{Key: "a", Value: Int(2)},
	}

	got, ok := vars.Lookup("a")
	if !ok {
		t.Fatal("Lookup(a) ok = false")
	}
	if n, _ := got.AsInt(); n != 1 {
		t.Errorf("Lookup(a) = %d, want first occurrence 1", n)
	}
	if _, ok := vars.Lookup("missing"); ok {
		t.Error("Lookup(missing) ok = true")
	}

	want := map[string]any{"a": int64(1), "b": "x"}
	if m := vars.ToMap(); !reflect.DeepEqual(m, want) {
		t.Errorf("ToMap() = %#v, want %#v", m, want)
	}
}

func TestVariablesOf(t *testing.T) {
	vars, err := VariablesOf(map[string]any{"limit": 10, "name": "x"})
	if err != nil {
		t.Fatalf("VariablesOf() error = %v", err)
	}
	if vars.Len() != 2 || vars[0].Key != "limit" || vars[1].Key != "name" {
		t.Fatalf("VariablesOf() = %+v, want sorted limit, name", vars)
	}

	if _, err := VariablesOf(map[string]any{"bad": struct{}{}}); err == nil {
		t.Fatal("VariablesOf() error = nil, want error for unsupported value")
	}
}
