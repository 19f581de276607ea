package document

/**
 * Deep-merge two structured documents
 * @param {*Node} target - Base document
 * @param {*Node} source - Overlay document, wins on incompatible shapes
 * @returns {*Node} Newly allocated merged document
 * @description
 * - mapping + mapping: union of keys, shared keys merged recursively
 * - sequence + sequence: target ++ source, later duplicates removed
 * - any other pair: copy of source
 * - inputs are never mutated and never aliased by the result
 */
func Merge(target, source *Node) *Node {
	if source == nil {
		return target.Clone()
	}
	if target == nil {
		return source.Clone()
	}
	switch {
	case target.kind == MappingKind && source.kind == MappingKind:
		return mergeMappings(target, source)
	case target.kind == SequenceKind && source.kind == SequenceKind:
		return mergeSequences(target, source)
	default:
		return source.Clone()
	}
}

// MergeAll folds nodes left to right, later nodes taking precedence.
func MergeAll(nodes ...*Node) *Node {
	var out *Node
	for _, n := range nodes {
		if n == nil {
			continue
		}
		out = Merge(out, n)
	}
	if out == nil {
		return Mapping()
	}
	return out
}

func mergeMappings(target, source *Node) *Node {
	out := Mapping()
	for _, k := range target.keys {
		if sv, ok := source.fields[k]; ok {
			out.Set(k, Merge(target.fields[k], sv))
		} else {
			out.Set(k, target.fields[k].Clone())
		}
	}
	for _, k := range source.keys {
		if _, ok := target.fields[k]; ok {
			continue
		}
		out.Set(k, source.fields[k].Clone())
	}
	return out
}

func mergeSequences(target, source *Node) *Node {
	out := Sequence()
	for _, it := range append(append([]*Node(nil), target.items...), source.items...) {
		if containsNode(out.items, it) {
			continue
		}
		out.items = append(out.items, it.Clone())
	}
	return out
}

func containsNode(items []*Node, n *Node) bool {
	for _, it := range items {
		if it.Equal(n) {
			return true
		}
	}
	return false
}
