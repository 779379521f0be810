package rete

import (
	"reflect"
	"sort"
	"testing"
)

// findAlphaMemory walks the constant-test tree for the memory a pattern
// compiles to, without creating anything.
func findAlphaMemory(e *Engine, c Cond) *alphaMemory {
	node := e.alphaRoot
	for _, f := range [...]wmeField{fieldID, fieldAttr, fieldValue} {
		v := c.field(f)
		if IsVariable(v) {
			continue
		}
		var next *constantTestNode
		for _, child := range node.children {
			if !child.wildcard && child.field == f && child.symbol == v {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}
	return node.memory
}

// TestCompile_Sharing verifies structural sharing: two rules with the same
// leading conditions reuse the alpha memory and the first join node, and
// removing one rule keeps the shared path alive.
func TestCompile_Sharing(t *testing.T) {
	e := newTestEngine(t)
	c1 := Cond{ID: "$x", Attr: "type", Value: "person"}
	c2 := Cond{ID: "$x", Attr: "likes", Value: "$y"}

	rule1 := NewProduction("r1", AND(c1, c2, Cond{ID: "$y", Attr: "type", Value: "food"}), nil)
	rule2 := NewProduction("r2", AND(c1, c2, Cond{ID: "$y", Attr: "type", Value: "drink"}), nil)
	mustAddProduction(t, e, rule1)

	am := findAlphaMemory(e, c1)
	if am == nil {
		t.Fatal("alpha memory for first condition not found")
	}
	if am.refCount != 1 {
		t.Fatalf("expected reference count 1 after one rule, got %d", am.refCount)
	}
	if len(e.betaRoot.children) != 1 {
		t.Fatalf("expected a single first join node, got %d children", len(e.betaRoot.children))
	}
	firstJoin := e.betaRoot.children[0]

	mustAddProduction(t, e, rule2)
	if got := findAlphaMemory(e, c1); got != am {
		t.Error("expected the alpha memory instance to be shared")
	}
	if am.refCount != 2 {
		t.Errorf("expected reference count 2 after both rules, got %d", am.refCount)
	}
	if len(e.betaRoot.children) != 1 || e.betaRoot.children[0] != firstJoin {
		t.Error("expected the first join node instance to be shared")
	}

	if err := e.RemoveProduction(rule2); err != nil {
		t.Fatalf("RemoveProduction returned error: %v", err)
	}
	if got := findAlphaMemory(e, c1); got != am {
		t.Error("expected shared alpha memory to survive removal")
	}
	if am.refCount != 1 {
		t.Errorf("expected reference count 1 after removal, got %d", am.refCount)
	}
	if len(e.betaRoot.children) != 1 || e.betaRoot.children[0] != firstJoin {
		t.Error("expected shared join node to survive removal")
	}

	// The surviving rule still matches.
	mustAssert(t, e, "alice", "type", "person")
	mustAssert(t, e, "alice", "likes", "stew")
	mustAssert(t, e, "stew", "type", "food")
	if got := len(e.Matches(rule1)); got != 1 {
		t.Errorf("expected surviving rule to match, got %d", got)
	}
}

// TestCompile_RemoveLastRuleFreesAlphaMemory verifies that dropping the
// last sharer unlinks the alpha memory from the constant-test tree.
func TestCompile_RemoveLastRuleFreesAlphaMemory(t *testing.T) {
	e := newTestEngine(t)
	c := Cond{ID: "$x", Attr: "color", Value: "red"}
	rule := NewProduction("red-things", AND(c), nil)
	mustAddProduction(t, e, rule)

	if findAlphaMemory(e, c) == nil {
		t.Fatal("alpha memory not built")
	}
	if err := e.RemoveProduction(rule); err != nil {
		t.Fatalf("RemoveProduction returned error: %v", err)
	}
	if findAlphaMemory(e, c) != nil {
		t.Error("expected alpha memory freed with its last sharer")
	}

	// A WME asserted afterwards routes through nothing and is still
	// retractable.
	mustAssert(t, e, "apple", "color", "red")
	mustRetract(t, e, "apple", "color", "red")
}

// TestCompile_RemovalDropsMatches verifies that removing a rule clears its
// conflict-set contribution without touching other rules.
func TestCompile_RemovalDropsMatches(t *testing.T) {
	e := newTestEngine(t)
	shared := Cond{ID: "$x", Attr: "a", Value: "1"}
	r1 := NewProduction("r1", AND(shared), nil)
	r2 := NewProduction("r2", AND(shared), nil)
	mustAddProduction(t, e, r1)
	mustAddProduction(t, e, r2)
	mustAssert(t, e, "k", "a", "1")

	if got := len(e.ConflictSet()); got != 2 {
		t.Fatalf("expected 2 matches, got %d", got)
	}
	if err := e.RemoveProduction(r1); err != nil {
		t.Fatalf("RemoveProduction returned error: %v", err)
	}
	cs := e.ConflictSet()
	if len(cs) != 1 || cs[0].Production != r2 {
		t.Fatalf("expected only r2's match to remain, got %d", len(cs))
	}
	if len(r1.Activations()) != 0 {
		t.Error("removed rule must have no activations")
	}
}

// bindingKey renders a match binding in a canonical comparable form.
func bindingKey(p *Production, b Binding) string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := p.Name() + "{"
	for _, k := range keys {
		out += k + "=" + b[k] + ";"
	}
	return out + "}"
}

func conflictSetKeys(e *Engine) []string {
	var out []string
	for _, m := range e.ConflictSet() {
		out = append(out, bindingKey(m.Production, m.Binding))
	}
	sort.Strings(out)
	return out
}

// TestCompile_RuleOrderCommutative checks that rule insertion order does
// not affect the conflict set for a fixed working memory, in both
// facts-first and rules-first regimes.
func TestCompile_RuleOrderCommutative(t *testing.T) {
	makeRules := func() []*Production {
		return []*Production{
			NewProduction("grandparent", AND(
				Cond{ID: "$x", Attr: "parent", Value: "$y"},
				Cond{ID: "$y", Attr: "parent", Value: "$z"},
			), nil),
			NewProduction("unbanned", AND(
				Cond{ID: "$x", Attr: "type", Value: "person"},
				NOT(Cond{ID: "$x", Attr: "banned", Value: "true"}),
			), nil),
			NewProduction("carless", AND(
				Cond{ID: "$x", Attr: "type", Value: "person"},
				NOT(
					Cond{ID: "$x", Attr: "owns", Value: "$v"},
					Cond{ID: "$v", Attr: "type", Value: "car"},
				),
			), nil),
		}
	}
	assertFacts := func(t *testing.T, e *Engine) {
		mustAssert(t, e, "alice", "parent", "bob")
		mustAssert(t, e, "bob", "parent", "carol")
		mustAssert(t, e, "alice", "type", "person")
		mustAssert(t, e, "bob", "type", "person")
		mustAssert(t, e, "alice", "owns", "v1")
		mustAssert(t, e, "v1", "type", "car")
	}

	var baselines [][]string
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}
	for _, order := range orders {
		for _, factsFirst := range []bool{true, false} {
			e := newTestEngine(t)
			rules := makeRules()
			if factsFirst {
				assertFacts(t, e)
			}
			for _, i := range order {
				mustAddProduction(t, e, rules[i])
			}
			if !factsFirst {
				assertFacts(t, e)
			}
			baselines = append(baselines, conflictSetKeys(e))
		}
	}
	for i := 1; i < len(baselines); i++ {
		if !reflect.DeepEqual(baselines[0], baselines[i]) {
			t.Fatalf("conflict set differs between insertion orders:\n%v\nvs\n%v",
				baselines[0], baselines[i])
		}
	}
}

// TestCompile_NegativeFirst allows an all-constant negated pattern at the
// start of a disjunct.
func TestCompile_NegativeFirst(t *testing.T) {
	e := newTestEngine(t)
	rule := NewProduction("no-freeze", AND(
		NOT(Cond{ID: "system", Attr: "mode", Value: "frozen"}),
		Cond{ID: "$x", Attr: "kind", Value: "job"},
	), nil)
	mustAddProduction(t, e, rule)

	mustAssert(t, e, "j1", "kind", "job")
	if got := len(e.Matches(rule)); got != 1 {
		t.Fatalf("expected 1 match, got %d", got)
	}

	mustAssert(t, e, "system", "mode", "frozen")
	if got := len(e.Matches(rule)); got != 0 {
		t.Fatalf("expected matches blocked while frozen, got %d", got)
	}

	mustRetract(t, e, "system", "mode", "frozen")
	if got := len(e.Matches(rule)); got != 1 {
		t.Errorf("expected match restored after unfreeze, got %d", got)
	}
}

// TestCompile_SharedPrefixIndependentSuffix runs two sharing rules side by
// side and checks both keep matching correctly.
func TestCompile_SharedPrefixIndependentSuffix(t *testing.T) {
	e := newTestEngine(t)
	r1 := NewProduction("likes-food", AND(
		Cond{ID: "$x", Attr: "type", Value: "person"},
		Cond{ID: "$x", Attr: "likes", Value: "$y"},
		Cond{ID: "$y", Attr: "type", Value: "food"},
	), nil)
	r2 := NewProduction("likes-anything", AND(
		Cond{ID: "$x", Attr: "type", Value: "person"},
		Cond{ID: "$x", Attr: "likes", Value: "$y"},
	), nil)
	mustAddProduction(t, e, r1)
	mustAddProduction(t, e, r2)

	mustAssert(t, e, "alice", "type", "person")
	mustAssert(t, e, "alice", "likes", "stew")
	mustAssert(t, e, "alice", "likes", "rocks")
	mustAssert(t, e, "stew", "type", "food")

	if got := len(e.Matches(r1)); got != 1 {
		t.Errorf("expected 1 food match, got %d", got)
	}
	if got := len(e.Matches(r2)); got != 2 {
		t.Errorf("expected 2 likes matches, got %d", got)
	}

	mustRetract(t, e, "alice", "likes", "stew")
	if got := len(e.Matches(r1)); got != 0 {
		t.Errorf("expected food match retracted, got %d", got)
	}
	if got := len(e.Matches(r2)); got != 1 {
		t.Errorf("expected 1 likes match left, got %d", got)
	}
}

// TestCompile_RestoreSharedAfterRemoval ensures removal followed by
// re-adding an identical rule yields a working path.
func TestCompile_RestoreSharedAfterRemoval(t *testing.T) {
	e := newTestEngine(t)
	pattern := AND(
		Cond{ID: "$x", Attr: "type", Value: "person"},
		NOT(Cond{ID: "$x", Attr: "banned", Value: "true"}),
	)
	r1 := NewProduction("gate", pattern, nil)
	mustAddProduction(t, e, r1)
	mustAssert(t, e, "alice", "type", "person")

	if err := e.RemoveProduction(r1); err != nil {
		t.Fatalf("RemoveProduction returned error: %v", err)
	}

	r2 := NewProduction("gate", pattern, nil)
	mustAddProduction(t, e, r2)
	if got := len(e.Matches(r2)); got != 1 {
		t.Errorf("expected re-added rule to rebuild its matches, got %d", got)
	}

	// The retired handle stays detached.
	if len(r1.Activations()) != 0 {
		t.Error("removed production must stay empty")
	}
}
