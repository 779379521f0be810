package rete

import "context"

// Action is the body of a production. It runs when a match is fired and
// may re-enter the engine through Assert and Retract; re-entry propagates
// synchronously before the call returns.
type Action func(ctx context.Context, e *Engine, b Binding) error

// Production is a forward-chaining rule: a condition expression plus an
// optional action body. AddProduction normalises the expression to
// disjunctive normal form and compiles one network path per disjunct.
type Production struct {
	name    string
	pattern Expr
	action  Action

	// pNodes terminate the compiled disjuncts, in disjunct order.
	pNodes []*pNode

	// amemRefs lists the alpha memories this production holds a
	// reference on, one entry per compiled pattern (duplicates allowed).
	amemRefs []*alphaMemory

	engine *Engine
}

// NewProduction creates a production. The action may be nil for
// match-only rules; firing such a rule is a no-op for Run and an
// ErrNoAction for Fire.
func NewProduction(name string, pattern Expr, action Action) *Production {
	return &Production{name: name, pattern: pattern, action: action}
}

// Name returns the production's registered name.
func (p *Production) Name() string { return p.name }

// Activations returns the tokens currently satisfying any disjunct of the
// production, in disjunct then arrival order.
func (p *Production) Activations() []*Token {
	var out []*Token
	for _, pn := range p.pNodes {
		out = append(out, pn.items...)
	}
	return out
}

// Fire runs the production's action for one match.
func (p *Production) Fire(ctx context.Context, e *Engine, b Binding) error {
	if p.action == nil {
		return &ReteError{
			Message:    "fire without an action",
			Code:       "FIRE_FAILED",
			Production: p.name,
			Cause:      ErrNoAction,
		}
	}
	return p.action(ctx, e, b)
}

// Match is one entry of the conflict set: a production together with the
// token satisfying one of its disjuncts and the match's full binding.
type Match struct {
	Production *Production
	Token      *Token
	Binding    Binding
}
