package rete

import "testing"

// TestToken_ChainAndBinding exercises the chain accessors directly.
func TestToken_ChainAndBinding(t *testing.T) {
	root := newToken(nil, nil, nil, nil)
	if !root.IsRoot() {
		t.Fatal("expected root token")
	}

	w1 := newWME("alice", "parent", "bob")
	w2 := newWME("bob", "parent", "carol")
	t1 := newToken(root, w1, nil, Binding{"$x": "alice", "$y": "bob"})
	t2 := newToken(t1, w2, nil, Binding{"$z": "carol"})

	if t2.IsRoot() || t1.IsRoot() {
		t.Error("non-root tokens misreported as root")
	}

	wmes := t2.WMEs()
	if len(wmes) != 2 || wmes[0] != w1 || wmes[1] != w2 {
		t.Errorf("WMEs() = %v, want chain [w1 w2]", wmes)
	}

	b := t2.Binding()
	want := Binding{"$x": "alice", "$y": "bob", "$z": "carol"}
	if len(b) != len(want) {
		t.Fatalf("binding = %v, want %v", b, want)
	}
	for k, v := range want {
		if b[k] != v {
			t.Errorf("binding[%s] = %q, want %q", k, b[k], v)
		}
	}

	if v, ok := t2.lookup("$y"); !ok || v != "bob" {
		t.Errorf("lookup($y) = %q,%v, want bob,true", v, ok)
	}
	if _, ok := t2.lookup("$missing"); ok {
		t.Error("lookup of unknown variable must fail")
	}
}

// TestToken_DeeperLevelOverrides verifies the composition order of the
// full binding: later levels win.
func TestToken_DeeperLevelOverrides(t *testing.T) {
	root := newToken(nil, nil, nil, nil)
	t1 := newToken(root, nil, nil, Binding{"$v": "old"})
	t2 := newToken(t1, nil, nil, Binding{"$v": "new"})
	if got := t2.Binding()["$v"]; got != "new" {
		t.Errorf("binding[$v] = %q, want new", got)
	}
	if got, _ := t2.lookup("$v"); got != "new" {
		t.Errorf("lookup($v) = %q, want new", got)
	}
}

// TestToken_DeletionIsIdempotent guards the double-free behaviour of the
// central deletion procedure.
func TestToken_DeletionIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	rule := NewProduction("r", AND(
		Cond{ID: "$x", Attr: "a", Value: "1"},
	), nil)
	mustAddProduction(t, e, rule)
	mustAssert(t, e, "k", "a", "1")

	matches := e.Matches(rule)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	tok := matches[0].Token

	tok.deleteSelfAndDescendents()
	if got := len(e.Matches(rule)); got != 0 {
		t.Fatalf("expected match removed, got %d", got)
	}
	// A second deletion of the detached token must be a no-op.
	tok.deleteSelfAndDescendents()
	if got := len(e.Matches(rule)); got != 0 {
		t.Errorf("idempotent deletion violated, got %d matches", got)
	}

	// Retraction after the manual deletion must not double-free either.
	mustRetract(t, e, "k", "a", "1")
	if got := len(e.Facts()); got != 0 {
		t.Errorf("expected empty working memory, got %d facts", got)
	}
}

// TestToken_WMEBackReferences verifies the bookkeeping retraction relies on.
func TestToken_WMEBackReferences(t *testing.T) {
	e := newTestEngine(t)
	rule := NewProduction("pair", AND(
		Cond{ID: "$x", Attr: "left", Value: "$y"},
		Cond{ID: "$y", Attr: "right", Value: "$z"},
	), nil)
	mustAddProduction(t, e, rule)

	mustAssert(t, e, "a", "left", "b")
	mustAssert(t, e, "b", "right", "c")

	w := e.facts[factKey{id: "b", attr: "right", value: "c"}]
	if w == nil {
		t.Fatal("fact not in working memory")
	}
	if len(w.tokens) != 1 {
		t.Fatalf("expected 1 token referencing the fact, got %d", len(w.tokens))
	}
	if len(w.alphaMems) != 1 {
		t.Fatalf("expected 1 alpha memory referencing the fact, got %d", len(w.alphaMems))
	}

	mustRetract(t, e, "b", "right", "c")
	if len(w.tokens) != 0 || len(w.alphaMems) != 0 {
		t.Error("expected back-references cleared on retract")
	}
}
