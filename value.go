package vwo

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// ErrUnsupportedValue is returned by ValueOf for Go values that have no
// variable representation.
var ErrUnsupportedValue = errors.New("vwo: unsupported variable value")

// Kind tags the concrete type held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindString
	KindInt
	KindFloat
	KindObject
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a flag variable value. Exactly one of the payload fields is
// meaningful, selected by kind.
type Value struct {
	kind   Kind
	b      bool
	s      string
	i      int64
	f      float64
	fields Variables
	items  []Value
}

func Bool(v bool) Value { return Value{kind: KindBool, b: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }
func Int(v int64) Value { return Value{kind: KindInt, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func List(items ...Value) Value { return Value{kind: KindList, items: items} }

// Object returns a structured value whose fields keep the given order.
func Object(fields Variables) Value {
	return Value{kind: KindObject, fields: fields}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) Fields() (Variables, bool) { return v.fields, v.kind == KindObject }
func (v Value) Items() ([]Value, bool) { return v.items, v.kind == KindList }

// Interface converts v to plain Go values: bool, string, int64, float64,
// map[string]any for objects and []any for lists, recursively. An invalid
// Value converts to nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindObject:
		return v.fields.ToMap()
	case KindList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// ToMap returns the fields of an object value as a map. It returns nil for
// any other kind.
func (v Value) ToMap() map[string]any {
	if v.kind != KindObject {
		return nil
	}
	return v.fields.ToMap()
}

// ValueOf classifies a decoded Go value. Integer types of any width become
// KindInt, float32 and float64 become KindFloat, string-keyed maps become
// objects with their keys in sorted order and slices become lists.
func ValueOf(raw any) (Value, error) {
	switch typed := raw.(type) {
	case Value:
		return typed, nil
	case Variables:
		return Object(typed), nil
	case bool:
		return Bool(typed), nil
	case string:
		return String(typed), nil
	}

	if i, ok := asInt64(raw); ok {
		return Int(i), nil
	}
	if u, ok := asUint64(raw); ok {
		if u > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, u)
		}
		return Int(int64(u)), nil
	}
	if f, ok := asFloat64(raw); ok {
		return Float(f), nil
	}

	rv := reflect.ValueOf(raw)
	if !rv.IsValid() {
		return Value{}, fmt.Errorf("%w: nil", ErrUnsupportedValue)
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("%w: map key type %s", ErrUnsupportedValue, rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)

		fields := make(Variables, 0, len(keys))
		for _, key := range keys {
			field, err := ValueOf(rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", key, err)
			}
			fields = append(fields, Variable{Key: key, Value: field})
		}
		return Object(fields), nil
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = item
		}
		return List(items...), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

func asInt64(value any) (int64, bool) {
	switch number := value.(type) {
	case int:
		return int64(number), true
	case int8:
		return int64(number), true
	case int16:
		return int64(number), true
	case int32:
		return int64(number), true
	case int64:
		return number, true
	default:
		return 0, false
	}
}

func asUint64(value any) (uint64, bool) {
	switch number := value.(type) {
	case uint:
		return uint64(number), true
	case uint8:
		return uint64(number), true
	case uint16:
		return uint64(number), true
	case uint32:
		return uint64(number), true
	case uint64:
		return number, true
	default:
		return 0, false
	}
}

func asFloat64(value any) (float64, bool) {
	switch number := value.(type) {
	case float32:
		return float64(number), true
	case float64:
		return number, true
	default:
		return 0, false
	}
}
