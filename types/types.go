package types

// VectorMatch represents a single match from a vector search
type VectorMatch struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Filter restricts a vector search by metadata, using Pinecone's filter
// syntax. A key maps either to a value that must be equal or to an
// operator map; "$eq" and "$in" are supported. A nil filter matches all.
type Filter map[string]any

// In builds a filter matching vectors whose key metadata is one of values
func In(key string, values []string) Filter {
	in := make([]any, len(values))
	for i, v := range values {
		in[i] = v
	}
	return Filter{key: map[string]any{"$in": in}}
}

// Matches reports whether metadata satisfies every condition of f
func (f Filter) Matches(metadata map[string]any) bool {
	for key, cond := range f {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		op, isOp := cond.(map[string]any)
		if !isOp {
			if got != cond {
				return false
			}
			continue
		}
		if eq, ok := op["$eq"]; ok && got != eq {
			return false
		}
		if in, ok := op["$in"]; ok && !contains(in, got) {
			return false
		}
	}
	return true
}

func contains(list any, v any) bool {
	switch l := list.(type) {
	case []any:
		for _, item := range l {
			if item == v {
				return true
			}
		}
	case []string:
		for _, item := range l {
			if item == v {
				return true
			}
		}
	}
	return false
}
