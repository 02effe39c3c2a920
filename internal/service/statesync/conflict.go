package statesync

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// ConflictHandler resolves a concurrent write. oldValue is the value currently
// stored at fieldPath, newValue the one being written. Returning false means
// the handler cannot resolve the conflict and the write fails.
type ConflictHandler func(sessionID, fieldPath string, oldValue, newValue any, playerID string) (any, bool)

// LastWriterWins adopts the incoming value.
func LastWriterWins(_, _ string, _, newValue any, _ string) (any, bool) {
	return newValue, true
}

// MaxValueWins adopts the larger of two numbers. Non-numeric values are not resolvable.
func MaxValueWins(_, _ string, oldValue, newValue any, _ string) (any, bool) {
	if oldValue == nil {
		return newValue, true
	}
	a, okA := toFloat(oldValue)
	b, okB := toFloat(newValue)
	if !okA || !okB {
		return nil, false
	}
	if a >= b {
		return oldValue, true
	}
	return newValue, true
}

// SetUnion merges lists (deduplicated by an "id" member when elements are
// objects, by value otherwise) and objects (key union, incoming entries win).
func SetUnion(_, _ string, oldValue, newValue any, _ string) (any, bool) {
	if oldValue == nil {
		return newValue, true
	}
	if newValue == nil {
		return oldValue, true
	}
	switch o := oldValue.(type) {
	case []any:
		n, ok := newValue.([]any)
		if !ok {
			return nil, false
		}
		return unionLists(o, n), true
	case map[string]any:
		n, ok := newValue.(map[string]any)
		if !ok {
			return nil, false
		}
		out := make(map[string]any, len(o)+len(n))
		for k, v := range o {
			out[k] = v
		}
		for k, v := range n {
			out[k] = v
		}
		return out, true
	default:
		return newValue, true
	}
}

func unionLists(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	index := make(map[string]int, len(a)+len(b))
	for _, list := range [][]any{a, b} {
		for _, item := range list {
			key := elementKey(item)
			if pos, seen := index[key]; seen {
				out[pos] = item
				continue
			}
			index[key] = len(out)
			out = append(out, item)
		}
	}
	return out
}

func elementKey(item any) string {
	if m, ok := item.(map[string]any); ok {
		if id, ok := m["id"]; ok {
			return fmt.Sprintf("id:%v", id)
		}
	}
	data, _ := json.Marshal(item)
	return "v:" + string(data)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() >= reflect.Int && rv.Kind() <= reflect.Int64 {
			return float64(rv.Int()), true
		}
		return 0, false
	}
}

type handlerEntry struct {
	key      string
	pattern  []string
	wildcard int
	handler  ConflictHandler
}

// handlerRegistry maps field-path patterns to handlers. A pattern matches the
// trailing segments of a path; "*" matches exactly one segment.
type handlerRegistry struct {
	mu      sync.RWMutex
	entries map[string]handlerEntry
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{entries: make(map[string]handlerEntry)}
}

func (r *handlerRegistry) register(pattern string, h ConflictHandler) {
	segments := splitPath(pattern)
	wildcards := 0
	for _, s := range segments {
		if s == "*" {
			wildcards++
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.Join(segments, ".")
	r.entries[key] = handlerEntry{key: key, pattern: segments, wildcard: wildcards, handler: h}
}

// lookup returns the handler of the longest matching pattern. The boolean is
// false when nothing matched and the caller should use the default handler.
func (r *handlerRegistry) lookup(path string) (ConflictHandler, bool) {
	segments := splitPath(path)
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *handlerEntry
	for _, e := range r.entries {
		if !suffixMatch(e.pattern, segments) {
			continue
		}
		if best == nil ||
			len(e.pattern) > len(best.pattern) ||
			(len(e.pattern) == len(best.pattern) && e.wildcard < best.wildcard) ||
			(len(e.pattern) == len(best.pattern) && e.wildcard == best.wildcard && e.key < best.key) {
			entry := e
			best = &entry
		}
	}
	if best == nil {
		return nil, false
	}
	return best.handler, true
}

func (r *handlerRegistry) resolve(path string) ConflictHandler {
	if h, ok := r.lookup(path); ok {
		return h
	}
	return LastWriterWins
}

func suffixMatch(pattern, path []string) bool {
	if len(pattern) == 0 || len(pattern) > len(path) {
		return false
	}
	offset := len(path) - len(pattern)
	for i, seg := range pattern {
		if seg != "*" && seg != path[offset+i] {
			return false
		}
	}
	return true
}
