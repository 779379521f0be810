package rete

import (
	"context"
	"sort"
	"time"

	"github.com/dshills/rete-go/rete/emit"
	"github.com/dshills/rete-go/rete/store"
)

// Engine owns a working memory of ground facts and a Rete discrimination
// network compiled from the registered productions. Asserting or
// retracting a fact incrementally updates the full set of variable
// bindings under which every production is satisfied.
//
// The engine is single-threaded: Assert and Retract are synchronous and
// propagate through the entire affected sub-network before returning.
// Production actions fired by Run may re-enter the engine through the
// public API; re-entry also completes synchronously.
//
// Example:
//
//	engine, _ := rete.New()
//	grandparent := rete.NewProduction("grandparent",
//	    rete.AND(
//	        rete.Cond{ID: "$x", Attr: "parent", Value: "$y"},
//	        rete.Cond{ID: "$y", Attr: "parent", Value: "$z"},
//	    ),
//	    func(ctx context.Context, e *rete.Engine, b rete.Binding) error {
//	        return e.Assert(ctx, b["$x"], "grandparent", b["$z"])
//	    })
//	_ = engine.AddProduction(grandparent)
//	_ = engine.Assert(ctx, "alice", "parent", "bob")
//	_ = engine.Assert(ctx, "bob", "parent", "carol")
//	fired, _ := engine.Run(ctx, 0)
type Engine struct {
	alphaRoot *constantTestNode
	betaRoot  *betaMemory

	facts map[factKey]*WME

	productions []*Production
	byName      map[string]*Production

	emitter   emit.Emitter
	metrics   *Metrics
	store     store.Store
	journalID string

	maxFirings int

	// step counts engine operations for event ordering and the journal.
	step int
}

// New creates an engine configured by the given options.
func New(opts ...Option) (*Engine, error) {
	var cfg engineConfig
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.journalID == "" {
		cfg.journalID = "default"
	}

	e := &Engine{
		alphaRoot:  newAlphaRoot(),
		facts:      make(map[factKey]*WME),
		byName:     make(map[string]*Production),
		emitter:    cfg.emitter,
		metrics:    cfg.metrics,
		store:      cfg.store,
		journalID:  cfg.journalID,
		maxFirings: cfg.maxFirings,
	}
	e.betaRoot = &betaMemory{nodeLink: nodeLink{metrics: e.metrics}}
	root := newToken(nil, nil, e.betaRoot, nil)
	e.betaRoot.items = append(e.betaRoot.items, root)

	e.emitEvent("engine_start", "", "", nil)
	return e, nil
}

func (e *Engine) emitEvent(msg, production, fact string, meta map[string]interface{}) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(emit.Event{
		Step:       e.step,
		Msg:        msg,
		Production: production,
		Fact:       fact,
		Meta:       meta,
	})
}

func (e *Engine) refreshGauges() {
	e.metrics.SetFacts(len(e.facts))
	e.metrics.SetProductions(len(e.productions))
	e.metrics.SetConflictSet(e.conflictSetSize())
}

func (e *Engine) conflictSetSize() int {
	n := 0
	for _, p := range e.productions {
		for _, pn := range p.pNodes {
			n += len(pn.items)
		}
	}
	return n
}

// Assert adds a fact to working memory and propagates it through the
// network. Asserting a fact that is already present is a no-op. A field
// with a leading "$" is rejected with ErrVariableInFact before anything
// is mutated.
//
// With a store configured, the change is appended to the engine's journal
// after propagation; a journal failure is returned but the in-memory
// change stands.
func (e *Engine) Assert(ctx context.Context, id, attr, value string) error {
	if IsVariable(id) || IsVariable(attr) || IsVariable(value) {
		return &ReteError{
			Message: "fact (" + id + " ^" + attr + " " + value + ") contains a variable field",
			Code:    "INVALID_FACT",
			Cause:   ErrVariableInFact,
		}
	}
	key := factKey{id: id, attr: attr, value: value}
	if _, ok := e.facts[key]; ok {
		return nil
	}

	w := newWME(id, attr, value)
	e.facts[key] = w
	e.step++
	e.alphaRoot.activate(w)

	e.metrics.RecordAssert()
	e.refreshGauges()
	e.emitEvent("fact_assert", "", w.String(), map[string]interface{}{
		"conflict_set": e.conflictSetSize(),
	})

	if e.store != nil {
		change := store.Change{Seq: e.step, Op: store.OpAssert, Fact: store.Fact{ID: id, Attr: attr, Value: value}}
		if err := e.store.AppendChange(ctx, e.journalID, change); err != nil {
			return &ReteError{Message: "journal append failed", Code: "STORE_FAILED", Cause: err}
		}
	}
	return nil
}

// Retract removes a fact from working memory, deleting every token that
// contains it and severing every negative-join-result that references it,
// which may in turn unblock waiting negative and NCC tokens. Retracting an
// absent fact is a no-op.
func (e *Engine) Retract(ctx context.Context, id, attr, value string) error {
	key := factKey{id: id, attr: attr, value: value}
	w, ok := e.facts[key]
	if !ok {
		return nil
	}
	delete(e.facts, key)
	e.step++

	for _, am := range w.alphaMems {
		am.removeWME(w)
	}
	w.alphaMems = nil

	for len(w.tokens) > 0 {
		w.tokens[0].deleteSelfAndDescendents()
	}

	// Drained one result at a time: an unblocking activation can cascade
	// into deletions that sever other results on this same WME.
	for len(w.negJoinResults) > 0 {
		jr := w.negJoinResults[0]
		removeJoinResultFrom(&w.negJoinResults, jr)
		removeJoinResultFrom(&jr.owner.joinResults, jr)
		if len(jr.owner.joinResults) == 0 {
			if neg, ok := jr.owner.node.(*negativeNode); ok {
				for _, child := range neg.children {
					child.leftActivate(jr.owner, nil, nil)
				}
			}
		}
	}

	e.metrics.RecordRetract()
	e.refreshGauges()
	e.emitEvent("fact_retract", "", w.String(), map[string]interface{}{
		"conflict_set": e.conflictSetSize(),
	})

	if e.store != nil {
		change := store.Change{Seq: e.step, Op: store.OpRetract, Fact: store.Fact{ID: id, Attr: attr, Value: value}}
		if err := e.store.AppendChange(ctx, e.journalID, change); err != nil {
			return &ReteError{Message: "journal append failed", Code: "STORE_FAILED", Cause: err}
		}
	}
	return nil
}

// AddProduction registers a production and compiles each disjunct of its
// normalised pattern into the network, sharing alpha memories, join nodes,
// and beta memories with existing paths. Validation runs before any
// network mutation, so a compile error leaves the engine untouched.
func (e *Engine) AddProduction(p *Production) error {
	if p == nil || p.name == "" {
		return &ReteError{Message: "production requires a name", Code: "COMPILE_FAILED"}
	}
	if _, ok := e.byName[p.name]; ok {
		return &ReteError{
			Message:    "already registered",
			Code:       "COMPILE_FAILED",
			Production: p.name,
			Cause:      ErrDuplicateProduction,
		}
	}

	disjuncts := [][]Expr{{}}
	if p.pattern != nil {
		disjuncts = dnf(p.pattern)
	}
	lowered := make([][]condition, 0, len(disjuncts))
	for _, d := range disjuncts {
		conds, err := lower(d)
		if err != nil {
			return err
		}
		if err := validateConditions(conds, map[string]bool{}, map[string]bool{}, false); err != nil {
			if re, ok := err.(*ReteError); ok {
				re.Production = p.name
			}
			return err
		}
		lowered = append(lowered, conds)
	}

	for _, conds := range lowered {
		p.pNodes = append(p.pNodes, e.compileDisjunct(p, conds))
	}
	p.engine = e
	e.productions = append(e.productions, p)
	e.byName[p.name] = p
	e.step++

	e.refreshGauges()
	e.emitEvent("production_added", p.name, "", map[string]interface{}{
		"disjuncts":    len(lowered),
		"conflict_set": e.conflictSetSize(),
	})
	return nil
}

// RemoveProduction unregisters a production, tears down its terminal nodes,
// and unwires every network node left without a sharer. Alpha memories are
// freed when their reference count drops to zero.
func (e *Engine) RemoveProduction(p *Production) error {
	if p == nil || e.byName[p.name] != p {
		name := ""
		if p != nil {
			name = p.name
		}
		return &ReteError{
			Message:    "not registered",
			Code:       "COMPILE_FAILED",
			Production: name,
			Cause:      ErrUnknownProduction,
		}
	}

	for _, pn := range p.pNodes {
		e.deleteNodeAndAnyUnusedAncestors(pn)
	}
	p.pNodes = nil
	for _, am := range p.amemRefs {
		am.refCount--
		if am.refCount == 0 {
			am.host.detachMemory()
		}
	}
	p.amemRefs = nil
	p.engine = nil

	delete(e.byName, p.name)
	for i, x := range e.productions {
		if x == p {
			e.productions = append(e.productions[:i], e.productions[i+1:]...)
			break
		}
	}
	e.step++

	e.refreshGauges()
	e.emitEvent("production_removed", p.name, "", nil)
	return nil
}

// Matches enumerates the (token, binding) pairs currently satisfying any
// disjunct of the production.
func (e *Engine) Matches(p *Production) []Match {
	var out []Match
	for _, pn := range p.pNodes {
		for _, tok := range pn.items {
			out = append(out, Match{Production: p, Token: tok, Binding: tok.Binding()})
		}
	}
	return out
}

// ConflictSet returns every current match across all productions, in
// production insertion order.
func (e *Engine) ConflictSet() []Match {
	var out []Match
	for _, p := range e.productions {
		out = append(out, e.Matches(p)...)
	}
	return out
}

// Productions returns the registered productions in insertion order.
func (e *Engine) Productions() []*Production {
	return append([]*Production(nil), e.productions...)
}

// Facts returns the working memory as sorted triples.
func (e *Engine) Facts() []store.Fact {
	out := make([]store.Fact, 0, len(e.facts))
	for k := range e.facts {
		out = append(out, store.Fact{ID: k.id, Attr: k.attr, Value: k.value})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Attr != b.Attr {
			return a.Attr < b.Attr
		}
		return a.Value < b.Value
	})
	return out
}

// nextUnfired picks the first conflict-set entry Run has not fired yet,
// scanning productions in insertion order.
func (e *Engine) nextUnfired() (Match, bool) {
	for _, p := range e.productions {
		for _, pn := range p.pNodes {
			for _, tok := range pn.items {
				if !tok.fired {
					return Match{Production: p, Token: tok, Binding: tok.Binding()}, true
				}
			}
		}
	}
	return Match{}, false
}

// FireOnce fires a single unfired match, if any. The bool result reports
// whether a match was available. Each match fires at most once; a match
// deleted and re-derived by later changes is a fresh match and eligible
// again.
func (e *Engine) FireOnce(ctx context.Context) (bool, error) {
	m, ok := e.nextUnfired()
	if !ok {
		return false, nil
	}
	m.Token.fired = true
	e.step++

	start := time.Now()
	var err error
	if m.Production.action != nil {
		err = m.Production.action(ctx, e, m.Binding)
	}
	latency := time.Since(start)

	if err != nil {
		e.metrics.RecordFiring(m.Production.name, "error", latency)
		e.emitEvent("fire_error", m.Production.name, "", map[string]interface{}{
			"error":       err.Error(),
			"duration_ms": latency.Milliseconds(),
		})
		return true, &ReteError{
			Message:    "action failed",
			Code:       "FIRE_FAILED",
			Production: m.Production.name,
			Cause:      err,
		}
	}

	e.metrics.RecordFiring(m.Production.name, "success", latency)
	e.refreshGauges()
	e.emitEvent("production_fired", m.Production.name, "", map[string]interface{}{
		"duration_ms":  latency.Milliseconds(),
		"conflict_set": e.conflictSetSize(),
	})
	return true, nil
}

// Run repeatedly picks one match and fires it until the conflict set has
// no unfired entries, the limit is reached, the context is cancelled, or
// an action fails. A limit of 0 falls back to the engine's configured
// maximum (unlimited by default). It returns the number of successful
// firings.
func (e *Engine) Run(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = e.maxFirings
	}
	fired := 0
	for limit <= 0 || fired < limit {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		ok, err := e.FireOnce(ctx)
		if err != nil {
			return fired, err
		}
		if !ok {
			break
		}
		fired++
	}
	e.emitEvent("run_complete", "", "", map[string]interface{}{"fired": fired})
	return fired, nil
}

// SaveSnapshot persists the current working memory under snapID.
func (e *Engine) SaveSnapshot(ctx context.Context, snapID string) error {
	if e.store == nil {
		return &ReteError{Message: "no store configured", Code: "STORE_FAILED"}
	}
	if err := e.store.SaveSnapshot(ctx, snapID, e.Facts()); err != nil {
		return &ReteError{Message: "snapshot save failed", Code: "STORE_FAILED", Cause: err}
	}
	return nil
}

// RestoreSnapshot replaces the working memory with a previously saved
// snapshot: every current fact is retracted and the snapshot's facts are
// asserted, rebuilding all matches through normal propagation.
func (e *Engine) RestoreSnapshot(ctx context.Context, snapID string) error {
	if e.store == nil {
		return &ReteError{Message: "no store configured", Code: "STORE_FAILED"}
	}
	facts, err := e.store.LoadSnapshot(ctx, snapID)
	if err != nil {
		return &ReteError{Message: "snapshot load failed", Code: "STORE_FAILED", Cause: err}
	}
	for _, f := range e.Facts() {
		if err := e.Retract(ctx, f.ID, f.Attr, f.Value); err != nil {
			return err
		}
	}
	for _, f := range facts {
		if err := e.Assert(ctx, f.ID, f.Attr, f.Value); err != nil {
			return err
		}
	}
	return nil
}

// ReplayJournal re-applies a recorded change log through Assert and
// Retract. Replaying is meant for rebuilding a fresh engine; with a
// journal configured on this engine the replayed changes are themselves
// journalled, so replay a journal into a different journal ID.
func (e *Engine) ReplayJournal(ctx context.Context, journalID string) error {
	if e.store == nil {
		return &ReteError{Message: "no store configured", Code: "STORE_FAILED"}
	}
	changes, err := e.store.Changes(ctx, journalID)
	if err != nil {
		return &ReteError{Message: "journal load failed", Code: "STORE_FAILED", Cause: err}
	}
	for _, c := range changes {
		switch c.Op {
		case store.OpAssert:
			err = e.Assert(ctx, c.Fact.ID, c.Fact.Attr, c.Fact.Value)
		case store.OpRetract:
			err = e.Retract(ctx, c.Fact.ID, c.Fact.Attr, c.Fact.Value)
		default:
			err = &ReteError{Message: "unknown journal op " + string(c.Op), Code: "STORE_FAILED"}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
