package local

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	vwo "github.com/matt-riley/vwo-openfeature-provider"
)

// ErrInvalidFile is wrapped by every flag file decoding failure.
var ErrInvalidFile = errors.New("invalid flag file")

type fileDocument struct {
	Flags map[string]fileFlag `yaml:"flags"`
}

type fileFlag struct {
	Enabled   bool           `yaml:"enabled"`
	Variables []fileVariable `yaml:"variables"`
}

type fileVariable struct {
	Key   string    `yaml:"key"`
	Value yaml.Node `yaml:"value"`
}

// LoadFile reads a YAML flag file.
func LoadFile(path string) (map[string]vwo.Flag, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flag file: %w", err)
	}
	flags, err := Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return flags, nil
}

// Decode reads a YAML flag document of the form
//
//	flags:
//	  checkout-redesign:
//	    enabled: true
//	    variables:
//	      - key: title
//	        value: New checkout
//	      - key: limits
//	        value: {max: 3, tiers: [gold, silver]}
//
// Variables and object fields keep their file order.
func Decode(r io.Reader) (map[string]vwo.Flag, error) {
	var doc fileDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]vwo.Flag{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	flags := make(map[string]vwo.Flag, len(doc.Flags))
	for key, ff := range doc.Flags {
		if key == "" {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, errEmptyKey)
		}
		vars := make(vwo.Variables, 0, len(ff.Variables))
		for i, fv := range ff.Variables {
			if fv.Key == "" {
				return nil, fmt.Errorf("%w: flag %q variable %d: key is required", ErrInvalidFile, key, i)
			}
			value, err := valueFromNode(&fv.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: flag %q variable %q: %v", ErrInvalidFile, key, fv.Key, err)
			}
			vars = append(vars, vwo.Variable{Key: fv.Key, Value: value})
		}
		flags[key] = vwo.NewFlag(ff.Enabled, vars)
	}

	return flags, nil
}

func valueFromNode(node *yaml.Node) (vwo.Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) != 1 {
			return vwo.Value{}, errors.New("empty document")
		}
		return valueFromNode(node.Content[0])
	case yaml.AliasNode:
		return valueFromNode(node.Alias)
	case yaml.ScalarNode:
		return scalarFromNode(node)
	case yaml.MappingNode:
		fields := make(vwo.Variables, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valueNode := node.Content[i], node.Content[i+1]
			field, err := valueFromNode(valueNode)
			if err != nil {
				return vwo.Value{}, fmt.Errorf("field %q: %w", keyNode.Value, err)
			}
			fields = append(fields, vwo.Variable{Key: keyNode.Value, Value: field})
		}
		return vwo.Object(fields), nil
	case yaml.SequenceNode:
		items := make([]vwo.Value, 0, len(node.Content))
		for i, itemNode := range node.Content {
			item, err := valueFromNode(itemNode)
			if err != nil {
				return vwo.Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, item)
		}
		return vwo.List(items...), nil
	default:
		return vwo.Value{}, errors.New("value is required")
	}
}

func scalarFromNode(node *yaml.Node) (vwo.Value, error) {
	switch node.ShortTag() {
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return vwo.Value{}, err
		}
		return vwo.Bool(b), nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return vwo.Value{}, err
		}
		return vwo.Int(i), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return vwo.Value{}, err
		}
		return vwo.Float(f), nil
	case "!!str", "!!timestamp":
		return vwo.String(node.Value), nil
	case "!!null":
		return vwo.Value{}, errors.New("null values are not supported")
	default:
		return vwo.Value{}, fmt.Errorf("unsupported tag %s", node.ShortTag())
	}
}
