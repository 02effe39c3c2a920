package statesync_test

import (
	"context"
	"testing"

	"party-service/internal/service/statesync"
)

func TestDiffDescendsToDepth(t *testing.T) {
	prev := map[string]any{
		"phase":   "NIGHT",
		"players": map[string]any{"p1": map[string]any{"alive": true}, "p2": map[string]any{"alive": true}},
		"gone":    "x",
	}
	next := map[string]any{
		"phase":   "DAY",
		"players": map[string]any{"p1": map[string]any{"alive": false}, "p2": map[string]any{"alive": true}},
		"added":   []any{"a"},
	}

	updates := statesync.Diff(prev, next, 2)
	want := map[string]bool{"added": true, "gone": true, "phase": true, "players.p1": true}
	if len(updates) != len(want) {
		t.Fatalf("unexpected updates %+v", updates)
	}
	for _, u := range updates {
		if !want[u.Path] {
			t.Fatalf("unexpected path %s", u.Path)
		}
		if u.Path == "gone" && u.Value != nil {
			t.Fatalf("removed key should carry nil, got %v", u.Value)
		}
	}
	if updates[0].Path != "added" {
		t.Fatalf("expected sorted paths, got %s first", updates[0].Path)
	}
}

func TestNormalizeAndDecode(t *testing.T) {
	type doc struct {
		Round int               `json:"round"`
		Tags  map[string]string `json:"tags"`
	}
	m, err := statesync.Normalize(doc{Round: 3, Tags: map[string]string{"a": "b"}})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	var out doc
	if err := statesync.Decode(m, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Round != 3 || out.Tags["a"] != "b" {
		t.Fatalf("round trip mismatch %+v", out)
	}
	if _, err := statesync.Normalize([]int{1}); err == nil {
		t.Fatalf("expected error for non-object document")
	}
}

func TestLongestPatternHandlerWins(t *testing.T) {
	ctx := context.Background()
	_, rdb := newStore(t)
	a := newSync(rdb, "proc-a")
	b := newSync(rdb, "proc-b")
	// "score" alone resolves with MaxValueWins; the longer pattern overrides it.
	b.RegisterConflictHandler("players.*.score", statesync.LastWriterWins)

	if _, err := a.CreateState(ctx, "s1", "party", map[string]any{"players": map[string]any{"p1": map[string]any{"score": 0}}}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := a.UpdateField(ctx, "s1", "players.p1.score", 8, ""); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	snap, err := b.UpdateField(ctx, "s1", "players.p1.score", 5, "")
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := number(t, mustField(t, snap, "players.p1.score")); got != 5 {
		t.Fatalf("expected last writer 5, got %v", got)
	}

	if _, err := a.UpdateField(ctx, "s1", "players.p1.score", 4, ""); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	snap, err = a.GetState(ctx, "s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got := number(t, mustField(t, snap, "players.p1.score")); got != 5 {
		t.Fatalf("expected max value 5 on owner without override, got %v", got)
	}
}

func TestBuiltinHandlers(t *testing.T) {
	if v, ok := statesync.MaxValueWins("", "", 3, 7, ""); !ok || v != 7 {
		t.Fatalf("max value wins returned %v %v", v, ok)
	}
	if _, ok := statesync.MaxValueWins("", "", "x", 7, ""); ok {
		t.Fatalf("non-numeric values should be unresolvable")
	}
	merged, ok := statesync.SetUnion("", "", map[string]any{"a": 1}, map[string]any{"b": 2}, "")
	if !ok || len(merged.(map[string]any)) != 2 {
		t.Fatalf("object union returned %v %v", merged, ok)
	}
	list, ok := statesync.SetUnion("", "", []any{"a", "b"}, []any{"b", "c"}, "")
	if !ok || len(list.([]any)) != 3 {
		t.Fatalf("list union returned %v %v", list, ok)
	}
}
