package tree

import "strconv"

// RenameKeys returns a copy of v in which every map key for which rename
// reports true is replaced by the returned name. Nested maps are rewritten
// too; v itself is left untouched.
func RenameKeys(v Value, rename func(key string) (string, bool)) Value {
	switch v.kind {
	case Map:
		out := NewMap()
		for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
			key := pair.Key
			if renamed, ok := rename(key); ok {
				key = renamed
			}
			out.m.Set(key, RenameKeys(pair.Value, rename))
		}
		return out
	case Sequence:
		seq := make([]Value, len(v.seq))
		for i, item := range v.seq {
			seq[i] = RenameKeys(item, rename)
		}
		return Value{kind: Sequence, seq: seq}
	}
	return v
}

// ReplaceScalars returns a copy of v in which every scalar for which replace
// reports true is substituted. Map keys are not touched.
func ReplaceScalars(v Value, replace func(Value) (Value, bool)) Value {
	switch v.kind {
	case Map:
		out := NewMap()
		for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
			out.m.Set(pair.Key, ReplaceScalars(pair.Value, replace))
		}
		return out
	case Sequence:
		seq := make([]Value, len(v.seq))
		for i, item := range v.seq {
			seq[i] = ReplaceScalars(item, replace)
		}
		return Value{kind: Sequence, seq: seq}
	}
	if r, ok := replace(v); ok {
		return r
	}
	return v
}

// Paths lists the path of every leaf of v in document order. Leaves are
// scalars and empty containers.
func Paths(v Value) [][]string {
	var out [][]string
	var visit func(cur Value, prefix []string)
	visit = func(cur Value, prefix []string) {
		switch {
		case cur.kind == Map && cur.m.Len() > 0:
			for pair := cur.m.Oldest(); pair != nil; pair = pair.Next() {
				visit(pair.Value, appendPath(prefix, pair.Key))
			}
		case cur.kind == Sequence && len(cur.seq) > 0:
			for i, item := range cur.seq {
				visit(item, appendPath(prefix, strconv.Itoa(i)))
			}
		default:
			out = append(out, prefix)
		}
	}
	visit(v, nil)
	return out
}

func appendPath(prefix []string, part string) []string {
	p := make([]string, len(prefix), len(prefix)+1)
	copy(p, prefix)
	return append(p, part)
}
