package vwo

// Variable is a named value attached to a flag.
type Variable struct {
	Key   string
	Value Value
}

// Variables is an ordered set of flag variables. Order is the vendor's
// natural order and is preserved by every operation.
type Variables []Variable

func (vs Variables) Len() int { return len(vs) }

// Lookup returns the first variable named key.
func (vs Variables) Lookup(key string) (Value, bool) {
	for _, v := range vs {
		if v.Key == key {
			return v.Value, true
		}
	}
	return Value{}, false
}

// ToMap converts the variables to a map of plain Go values. Duplicate keys
// resolve to the first occurrence, matching Lookup.
func (vs Variables) ToMap() map[string]any {
	out := make(map[string]any, len(vs))
	for _, v := range vs {
		if _, seen := out[v.Key]; seen {
			continue
		}
		out[v.Key] = v.Value.Interface()
	}
	return out
}

// VariablesOf builds Variables from a decoded map, in sorted key order.
func VariablesOf(raw map[string]any) (Variables, error) {
	value, err := ValueOf(raw)
	if err != nil {
		return nil, err
	}
	fields, _ := value.Fields()
	return fields, nil
}
