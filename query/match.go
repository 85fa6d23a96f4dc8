package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Lookup returns every value reachable through path, fanning out over arrays.
// A path ending on an array yields its elements.
func Lookup(doc any, path string) []any {
	return lookup(doc, strings.Split(path, "."))
}

func lookup(v any, segs []string) []any {
	if arr, ok := v.([]any); ok {
		var out []any
		for _, e := range arr {
			out = append(out, lookup(e, segs)...)
		}
		return out
	}
	if len(segs) == 0 {
		return []any{v}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	child, ok := obj[segs[0]]
	if !ok {
		return nil
	}
	return lookup(child, segs[1:])
}

// Value returns the value at path without array fan-out.
func Value(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Match reports whether doc satisfies every clause. Missing fields never match.
func Match(doc map[string]any, clauses []Clause, params map[string]any) (bool, error) {
	for _, c := range clauses {
		want, err := c.Resolve(params)
		if err != nil {
			return false, err
		}
		ok, err := matchClause(doc, c, want)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchClause(doc map[string]any, c Clause, want any) (bool, error) {
	var members []any
	if c.Op == In {
		var err error
		if members, err = toSlice(want); err != nil {
			return false, fmt.Errorf("%s: %w", c.Field, err)
		}
	}
	want = normalize(want)

	for _, got := range Lookup(doc, c.Field) {
		got = normalize(got)
		switch c.Op {
		case In:
			for _, m := range members {
				if sameKind(got, m) && Compare(got, m) == 0 {
					return true, nil
				}
			}
		case EqFold:
			gs, ok1 := got.(string)
			ws, ok2 := want.(string)
			if ok1 && ok2 && strings.EqualFold(gs, ws) {
				return true, nil
			}
		default:
			if !sameKind(got, want) {
				continue
			}
			if compareHolds(c.Op, Compare(got, want)) {
				return true, nil
			}
		}
	}
	return false, nil
}

func compareHolds(op Op, cmp int) bool {
	switch op {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Ge:
		return cmp >= 0
	}
	return false
}

func toSlice(v any) ([]any, error) {
	var out []any
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			out = append(out, normalize(e))
		}
	case []string:
		for _, e := range t {
			out = append(out, e)
		}
	case []int:
		for _, e := range t {
			out = append(out, float64(e))
		}
	default:
		return nil, fmt.Errorf("in operator needs a slice, got %T", v)
	}
	return out, nil
}

// normalize maps Go numeric types onto float64, the type encoding/json decodes numbers into.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	}
	return v
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}

func sameKind(a, b any) bool {
	return rank(a) == rank(b) && rank(a) < 4
}

// Compare orders two scalar values: nil, then booleans, numbers and strings.
// Values of different kinds compare by kind alone.
func Compare(a, b any) int {
	a, b = normalize(a), normalize(b)
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, b.(string))
	}
	return 0
}
