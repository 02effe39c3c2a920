package statesync

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
)

// Documents are JSON trees: map[string]any, []any, json.Number, string, bool and nil.
// Every value entering the synchronizer is normalized into that form so that
// checksums computed before a write match the ones computed after a reload.

func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := decodeJSON(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeDocument(v any) (map[string]any, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return map[string]any{}, nil
	}
	doc, ok := n.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return doc, nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

func cloneDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	return cloneValue(doc).(map[string]any)
}

func splitPath(path string) []string {
	path = strings.Trim(path, ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// GetPath returns the value at a dot path. The empty path addresses the whole document.
func GetPath(doc map[string]any, path string) (any, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return doc, doc != nil
	}
	var cur any = doc
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes value at path, creating intermediate objects. A nil value removes the key.
func setPath(doc map[string]any, path string, value any) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return errEmptyPath
	}
	cur := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			if value == nil {
				return nil
			}
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	last := segments[len(segments)-1]
	if value == nil {
		delete(cur, last)
		return nil
	}
	cur[last] = value
	return nil
}

// pathsOverlap reports whether one path addresses a subtree of the other.
func pathsOverlap(a, b string) bool {
	as, bs := splitPath(a), splitPath(b)
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func jsonEqual(a, b any) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return reflect.DeepEqual(na, nb)
}

// Diff lists the field updates that turn prev into next. Objects are descended
// up to depth levels so that sibling keys can be written independently; lists
// and scalars are replaced whole. Removed keys yield an update with a nil value.
func Diff(prev, next map[string]any, depth int) []FieldUpdate {
	var updates []FieldUpdate
	diffInto(&updates, "", prev, next, depth)
	return updates
}

func diffInto(out *[]FieldUpdate, prefix string, prev, next map[string]any, depth int) {
	keys := make(map[string]struct{}, len(prev)+len(next))
	for k := range prev {
		keys[k] = struct{}{}
	}
	for k := range next {
		keys[k] = struct{}{}
	}
	for _, k := range sortedKeys(keys) {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		pv, hadPrev := prev[k]
		nv, hasNext := next[k]
		switch {
		case !hasNext:
			*out = append(*out, FieldUpdate{Path: path, Value: nil})
		case !hadPrev:
			*out = append(*out, FieldUpdate{Path: path, Value: nv})
		case reflect.DeepEqual(pv, nv):
		default:
			pm, pok := pv.(map[string]any)
			nm, nok := nv.(map[string]any)
			if pok && nok && depth > 1 {
				diffInto(out, path, pm, nm, depth-1)
				continue
			}
			*out = append(*out, FieldUpdate{Path: path, Value: nv})
		}
	}
}
