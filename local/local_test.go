package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	vwo "github.com/matt-riley/vwo-openfeature-provider"
)

const sampleFile = `flags:
  checkout-redesign:
    enabled: true
    variables:
      - key: title
        value: New checkout
      - key: limits
        value: {max: 3, tiers: [gold, silver], ratio: 0.5}
      - key: beta
        value: false
  legacy-banner:
    enabled: false
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestGetFlag(t *testing.T) {
	c := New(map[string]vwo.Flag{
		"on": vwo.NewFlag(true, vwo.Variables{{Key: "n", Value: vwo.Int(1)}}),
	})

	got, err := c.GetFlag(context.Background(), "on", vwo.Context{ID: "user-1"})
	if err != nil {
		t.Fatalf("GetFlag() error = %v", err)
	}
	if !got.IsEnabled() || got.Variables().Len() != 1 {
		t.Fatalf("GetFlag() = %+v, want enabled flag with one variable", got)
	}

	unknown, err := c.GetFlag(context.Background(), "missing", vwo.Context{})
	if err != nil {
		t.Fatalf("GetFlag(missing) error = %v", err)
	}
	if unknown.IsEnabled() || unknown.Variables().Len() != 0 {
		t.Fatalf("GetFlag(missing) = %+v, want disabled empty flag", unknown)
	}
}

func TestGetFlagCancelledContext(t *testing.T) {
	c := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.GetFlag(ctx, "any", vwo.Context{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("GetFlag() error = %v, want context.Canceled", err)
	}
}

func TestMutations(t *testing.T) {
	source := map[string]vwo.Flag{"b": vwo.NewFlag(true, nil)}
	c := New(source)
	source["z"] = vwo.NewFlag(true, nil)

	if got := c.Keys(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("Keys() = %v, want [b]; source map must be copied", got)
	}

	if err := c.Set("a", vwo.NewFlag(false, nil)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set("", vwo.NewFlag(false, nil)); err == nil {
		t.Fatal("Set(\"\") error = nil, want error")
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("Keys() = %v, want [a b]", got)
	}

	c.Delete("b")
	c.Delete("never-existed")
	if _, ok := c.Flag("b"); ok {
		t.Fatal("Flag(b) still present after Delete")
	}

	c.Replace(map[string]vwo.Flag{"c": vwo.NewFlag(true, nil)})
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("Keys() = %v, want [c]", got)
	}
}

func TestDecode(t *testing.T) {
	flags, err := Decode(strings.NewReader(sampleFile))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(flags) != 2 {
		t.Fatalf("len(flags) = %d, want 2", len(flags))
	}

	checkout := flags["checkout-redesign"]
	if !checkout.IsEnabled() {
		t.Fatal("checkout-redesign should be enabled")
	}

	vars := checkout.Variables()
	var names []string
	for _, v := range vars {
		names = append(names, v.Key)
	}
	if !reflect.DeepEqual(names, []string{"title", "limits", "beta"}) {
		t.Fatalf("variable order = %v, want file order", names)
	}

	if title, _ := vars.Lookup("title"); title.Kind() != vwo.KindString {
		t.Fatalf("title kind = %v, want string", title.Kind())
	}
	if beta, _ := vars.Lookup("beta"); beta.Kind() != vwo.KindBool {
		t.Fatalf("beta kind = %v, want bool", beta.Kind())
	}

	limits, _ := vars.Lookup("limits")
	fields, ok := limits.Fields()
	if !ok {
		t.Fatalf("limits kind = %v, want object", limits.Kind())
	}
	var fieldNames []string
	for _, f := range fields {
		fieldNames = append(fieldNames, f.Key)
	}
	if !reflect.DeepEqual(fieldNames, []string{"max", "tiers", "ratio"}) {
		t.Fatalf("object field order = %v, want file order", fieldNames)
	}
	want := map[string]any{
		"max":   int64(3),
		"tiers": []any{"gold", "silver"},
		"ratio": 0.5,
	}
	if got := limits.Interface(); !reflect.DeepEqual(got, want) {
		t.Fatalf("limits = %#v, want %#v", got, want)
	}

	legacy := flags["legacy-banner"]
	if legacy.IsEnabled() || legacy.Variables().Len() != 0 {
		t.Fatalf("legacy-banner = %+v, want disabled without variables", legacy)
	}
}

func TestDecodeEmpty(t *testing.T) {
	flags, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Decode(empty) error = %v", err)
	}
	if len(flags) != 0 {
		t.Fatalf("len(flags) = %d, want 0", len(flags))
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "malformed yaml",
			content: "flags: [",
		},
		{
			name:    "unknown field",
			content: "flags:\n  a:\n    enabled: true\n    rollout: 50\n",
		},
		{
			name:    "variable without key",
			content: "flags:\n  a:\n    variables:\n      - value: 1\n",
		},
		{
			name:    "variable without value",
			content: "flags:\n  a:\n    variables:\n      - key: x\n",
		},
		{
			name:    "null value",
			content: "flags:\n  a:\n    variables:\n      - key: x\n        value: null\n",
		},
		{
			name:    "nested null value",
			content: "flags:\n  a:\n    variables:\n      - key: x\n        value: {y: ~}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.content))
			if !errors.Is(err, ErrInvalidFile) {
				t.Fatalf("Decode() error = %v, want ErrInvalidFile", err)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadFile() error = %v, want os.ErrNotExist", err)
	}
}

func TestReloadKeepsFlagsOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.yaml")
	writeFile(t, path, sampleFile)

	c := New(nil)
	if err := c.Reload(path); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	writeFile(t, path, "flags: [")
	if err := c.Reload(path); err == nil {
		t.Fatal("Reload() error = nil, want decode error")
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"checkout-redesign", "legacy-banner"}) {
		t.Fatalf("Keys() = %v, want previous flags", got)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.yaml")
	writeFile(t, path, sampleFile)

	c := New(nil, WithResyncInterval(0))
	if err := c.Reload(path); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := c.Watch(ctx, path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeFile(t, path, "flags:\n  fresh:\n    enabled: true\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Flag("fresh"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("flag file was not reloaded; keys = %v", c.Keys())
}

func TestWatchResyncReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.yaml")
	writeFile(t, path, sampleFile)

	c := New(nil, WithResyncInterval(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := c.Watch(ctx, path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Flag("checkout-redesign"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("resync did not load the flag file")
}

func TestWatchReloadHook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.yaml")
	writeFile(t, path, "flags: [")

	type reload struct {
		err   error
		flags int
	}
	reloads := make(chan reload, 16)
	c := New(map[string]vwo.Flag{"kept": vwo.NewFlag(true, nil)},
		WithResyncInterval(20*time.Millisecond),
		WithReloadHook(func(err error, flags int) {
			select {
			case reloads <- reload{err, flags}:
			default:
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := c.Watch(ctx, path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	select {
	case got := <-reloads:
		if !errors.Is(got.err, ErrInvalidFile) || got.flags != 1 {
			t.Fatalf("reload = %+v, want decode error with the previous flag kept", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload hook was not called")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	c := New(nil)
	err := c.Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "flags.yaml"))
	if err == nil {
		t.Fatal("Watch() error = nil, want error for missing directory")
	}
}
