package document

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Kind tags the variant held by a Node.
type Kind int

const (
	ScalarKind Kind = iota
	SequenceKind
	MappingKind
)

func (k Kind) String() string {
	switch k {
	case ScalarKind:
		return "scalar"
	case SequenceKind:
		return "sequence"
	case MappingKind:
		return "mapping"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

/**
 * Node is one element of a structured document
 * @property {Kind} kind - Variant tag: scalar, sequence or mapping
 * @property {any} value - Scalar value (nil, bool, int, int64, float64, string, json.Number, Timestamp)
 * @property {[]*Node} items - Sequence elements
 * @property {[]string} keys - Mapping keys in insertion order
 * @property {map[string]*Node} fields - Mapping values by key
 */
type Node struct {
	kind   Kind
	value  any
	items  []*Node
	keys   []string
	fields map[string]*Node
}

// Timestamp is an unquoted YAML timestamp kept as written.
type Timestamp string

// Scalar wraps a scalar value.
func Scalar(v any) *Node {
	return &Node{kind: ScalarKind, value: v}
}

// Sequence builds a sequence node from its elements.
func Sequence(items ...*Node) *Node {
	n := &Node{kind: SequenceKind, items: make([]*Node, 0, len(items))}
	n.items = append(n.items, items...)
	return n
}

// Mapping builds an empty mapping node.
func Mapping() *Node {
	return &Node{kind: MappingKind, fields: map[string]*Node{}}
}

func (n *Node) Kind() Kind { return n.kind }

// Value returns the scalar value, nil for non-scalars.
func (n *Node) Value() any {
	if n.kind != ScalarKind {
		return nil
	}
	return n.value
}

// Items returns the sequence elements. The slice must not be modified.
func (n *Node) Items() []*Node {
	return n.items
}

// Keys returns mapping keys in insertion order.
func (n *Node) Keys() []string {
	return append([]string(nil), n.keys...)
}

// Len reports the number of elements of a sequence or mapping.
func (n *Node) Len() int {
	switch n.kind {
	case SequenceKind:
		return len(n.items)
	case MappingKind:
		return len(n.keys)
	default:
		return 0
	}
}

// Get returns the value stored under key in a mapping.
func (n *Node) Get(key string) (*Node, bool) {
	if n.kind != MappingKind {
		return nil, false
	}
	v, ok := n.fields[key]
	return v, ok
}

// Set stores value under key, keeping the original position of an existing key.
func (n *Node) Set(key string, value *Node) *Node {
	if n.kind != MappingKind {
		panic(fmt.Sprintf("document: Set on %s node", n.kind))
	}
	if _, ok := n.fields[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = value
	return n
}

// Delete removes key from a mapping.
func (n *Node) Delete(key string) {
	if n.kind != MappingKind {
		return
	}
	if _, ok := n.fields[key]; !ok {
		return
	}
	delete(n.fields, key)
	for i, k := range n.keys {
		if k == key {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			break
		}
	}
}

// Append adds elements to a sequence.
func (n *Node) Append(items ...*Node) *Node {
	if n.kind != SequenceKind {
		panic(fmt.Sprintf("document: Append on %s node", n.kind))
	}
	n.items = append(n.items, items...)
	return n
}

// Prepend inserts elements at the head of a sequence.
func (n *Node) Prepend(items ...*Node) *Node {
	if n.kind != SequenceKind {
		panic(fmt.Sprintf("document: Prepend on %s node", n.kind))
	}
	n.items = append(append([]*Node(nil), items...), n.items...)
	return n
}

// Clone returns a deep copy sharing no storage with n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	switch n.kind {
	case SequenceKind:
		out := &Node{kind: SequenceKind, items: make([]*Node, len(n.items))}
		for i, it := range n.items {
			out.items[i] = it.Clone()
		}
		return out
	case MappingKind:
		out := &Node{kind: MappingKind, keys: append([]string(nil), n.keys...), fields: make(map[string]*Node, len(n.fields))}
		for k, v := range n.fields {
			out.fields[k] = v.Clone()
		}
		return out
	default:
		return &Node{kind: ScalarKind, value: n.value}
	}
}

// Equal reports structural equality. Mapping key order is not significant.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.kind != o.kind {
		return false
	}
	switch n.kind {
	case SequenceKind:
		if len(n.items) != len(o.items) {
			return false
		}
		for i := range n.items {
			if !n.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case MappingKind:
		if len(n.fields) != len(o.fields) {
			return false
		}
		for k, v := range n.fields {
			ov, ok := o.fields[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return scalarEqual(n.value, o.value)
	}
}

func scalarEqual(a, b any) bool {
	an, aok := numeric(a)
	bn, bok := numeric(b)
	if aok && bok {
		return an == bn
	}
	return reflect.DeepEqual(a, b)
}

// numeric normalizes integers and json numbers so 8080 and json.Number("8080") compare equal.
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// FromValue converts plain Go values (maps, slices, scalars) into a Node.
// Keys of Go maps carry no order, so they are sorted for a stable result.
func FromValue(v any) *Node {
	switch x := v.(type) {
	case *Node:
		return x.Clone()
	case map[string]any:
		m := Mapping()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Set(k, FromValue(x[k]))
		}
		return m
	case []any:
		s := Sequence()
		for _, it := range x {
			s.Append(FromValue(it))
		}
		return s
	case []string:
		s := Sequence()
		for _, it := range x {
			s.Append(Scalar(it))
		}
		return s
	default:
		return Scalar(x)
	}
}

// Interface converts the node back to plain Go values.
func (n *Node) Interface() any {
	switch n.kind {
	case SequenceKind:
		out := make([]any, len(n.items))
		for i, it := range n.items {
			out[i] = it.Interface()
		}
		return out
	case MappingKind:
		out := make(map[string]any, len(n.fields))
		for k, v := range n.fields {
			out[k] = v.Interface()
		}
		return out
	default:
		return n.value
	}
}
