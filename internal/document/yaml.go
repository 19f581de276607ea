package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseYAML parses YAML (or JSON, which YAML accepts) text into a Node.
// Empty input yields an empty mapping.
func ParseYAML(data []byte) (*Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return Mapping(), nil
	}
	return fromYAMLNode(root.Content[0])
}

func fromYAMLNode(y *yaml.Node) (*Node, error) {
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return Mapping(), nil
		}
		return fromYAMLNode(y.Content[0])
	case yaml.AliasNode:
		return fromYAMLNode(y.Alias)
	case yaml.MappingNode:
		m := Mapping()
		for i := 0; i+1 < len(y.Content); i += 2 {
			k, v := y.Content[i], y.Content[i+1]
			child, err := fromYAMLNode(v)
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, child)
		}
		return m, nil
	case yaml.SequenceNode:
		s := Sequence()
		for _, it := range y.Content {
			child, err := fromYAMLNode(it)
			if err != nil {
				return nil, err
			}
			s.Append(child)
		}
		return s, nil
	case yaml.ScalarNode:
		if y.ShortTag() == "!!timestamp" {
			return Scalar(Timestamp(y.Value)), nil
		}
		var v any
		if err := y.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", y.Line, err)
		}
		return Scalar(v), nil
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", y.Line, y.Kind)
	}
}

// MarshalYAML renders the node with 2-space indentation, keys in insertion order.
func (n *Node) MarshalYAML() (string, error) {
	y, err := toYAMLNode(n)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(y); err != nil {
		return "", fmt.Errorf("render yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("render yaml: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func toYAMLNode(n *Node) (*yaml.Node, error) {
	switch n.kind {
	case MappingKind:
		y := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range n.keys {
			key := &yaml.Node{}
			if err := key.Encode(k); err != nil {
				return nil, err
			}
			val, err := toYAMLNode(n.fields[k])
			if err != nil {
				return nil, err
			}
			y.Content = append(y.Content, key, val)
		}
		return y, nil
	case SequenceKind:
		y := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range n.items {
			val, err := toYAMLNode(it)
			if err != nil {
				return nil, err
			}
			y.Content = append(y.Content, val)
		}
		return y, nil
	default:
		if ts, ok := n.value.(Timestamp); ok {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: string(ts)}, nil
		}
		y := &yaml.Node{}
		if err := y.Encode(plainScalar(n.value)); err != nil {
			return nil, err
		}
		return y, nil
	}
}

// plainScalar turns json.Number into a native number so it renders unquoted.
func plainScalar(v any) any {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := num.Int64(); err == nil {
		return i
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return num.String()
}
