package rete

// Expr is a condition combinator expression. The leaves are Cond, Filter,
// and Bind; And, Or, and Not combine them. AddProduction normalises the
// expression to disjunctive normal form before compiling, so rules may be
// written with arbitrary nesting.
type Expr interface {
	isExpr()
}

// Cond is a positive pattern over a working-memory triple. Each field is
// either a ground constant or a variable (leading "$"). A variable's first
// occurrence introduces it; later occurrences compile to equality tests.
type Cond struct {
	ID    string
	Attr  string
	Value string
}

func (Cond) isExpr() {}

// field returns the requested slot of the pattern.
func (c Cond) field(f wmeField) string {
	switch f {
	case fieldID:
		return c.ID
	case fieldAttr:
		return c.Attr
	default:
		return c.Value
	}
}

// matchesConstants reports whether a WME satisfies the pattern's ground
// fields, ignoring variables.
func (c Cond) matchesConstants(w *WME) bool {
	for _, f := range [...]wmeField{fieldID, fieldAttr, fieldValue} {
		if v := c.field(f); !IsVariable(v) && v != w.field(f) {
			return false
		}
	}
	return true
}

// Filter is an opaque predicate over the variables it declares. Every
// declared variable must be bound by an earlier condition in the disjunct.
type Filter struct {
	// Vars lists the free variables the predicate reads.
	Vars []string

	// Test is evaluated over the full binding of the partial match.
	Test FilterFunc
}

func (Filter) isExpr() {}

// Bind computes a value over the current binding and introduces Variable
// bound to it for the rest of the disjunct.
type Bind struct {
	Variable string
	Compute  BindFunc
}

func (Bind) isExpr() {}

// And is the conjunction of its elements.
type And []Expr

func (And) isExpr() {}

// Or is the disjunction of its elements.
type Or []Expr

func (Or) isExpr() {}

// Not negates the conjunction of its elements. A Not over a single pattern
// compiles to a negative node; a Not spanning several conditions compiles
// to a negated-conjunction (NCC) subnetwork.
type Not []Expr

func (Not) isExpr() {}

// AND, OR, and NOT are convenience constructors for rule patterns.
func AND(items ...Expr) And { return And(items) }
func OR(items ...Expr) Or   { return Or(items) }
func NOT(items ...Expr) Not { return Not(items) }

// dnf rewrites an expression into a disjunction of conjunctions: a slice
// of disjuncts, each a flat slice of leaves and Not elements.
//
// Double negation cancels and Not distributes over Or, but a Not over a
// conjunction is kept as a single negated-conjunction element rather than
// distributed: variables introduced inside the negation scope over the
// whole conjunction, and splitting it would change what the negation
// means. The compiler lowers exactly that element to an NCC pair.
func dnf(e Expr) [][]Expr {
	switch x := e.(type) {
	case Or:
		var out [][]Expr
		for _, sub := range x {
			out = append(out, dnf(sub)...)
		}
		return out
	case And:
		total := [][]Expr{{}}
		for _, sub := range x {
			branches := dnf(sub)
			next := make([][]Expr, 0, len(total)*len(branches))
			for _, acc := range total {
				for _, br := range branches {
					merged := make([]Expr, 0, len(acc)+len(br))
					merged = append(merged, acc...)
					merged = append(merged, br...)
					next = append(next, merged)
				}
			}
			total = next
		}
		return total
	case Not:
		if len(x) == 1 {
			if inner, ok := x[0].(Not); ok {
				return dnf(And(inner))
			}
		}
		inner := dnf(And(x))
		disjunct := make([]Expr, 0, len(inner))
		for _, br := range inner {
			disjunct = append(disjunct, Not(br))
		}
		return [][]Expr{disjunct}
	default:
		return [][]Expr{{e}}
	}
}

// condition is one element of a compiled disjunct.
type condition interface {
	isCondition()
}

type posCondition struct{ pattern Cond }
type negCondition struct{ pattern Cond }
type nccCondition struct{ subs []condition }
type filterCondition struct{ filter Filter }
type bindCondition struct{ bind Bind }

func (posCondition) isCondition()    {}
func (negCondition) isCondition()    {}
func (nccCondition) isCondition()    {}
func (filterCondition) isCondition() {}
func (bindCondition) isCondition()   {}

// lower flattens one DNF branch into the compiler's condition list.
func lower(items []Expr) ([]condition, error) {
	var out []condition
	for _, it := range items {
		switch x := it.(type) {
		case Cond:
			out = append(out, posCondition{pattern: x})
		case Filter:
			out = append(out, filterCondition{filter: x})
		case Bind:
			out = append(out, bindCondition{bind: x})
		case And:
			sub, err := lower(x)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		case Not:
			sub, err := lower(x)
			if err != nil {
				return nil, err
			}
			if len(sub) == 1 {
				if pos, ok := sub[0].(posCondition); ok {
					out = append(out, negCondition{pattern: pos.pattern})
					continue
				}
			}
			out = append(out, nccCondition{subs: sub})
		default:
			return nil, &ReteError{
				Message: "disjunction below the top level survived normalisation",
				Code:    "COMPILE_FAILED",
			}
		}
	}
	return out, nil
}

// patternVars yields the variable fields of a pattern in slot order.
func patternVars(c Cond) []bindingSpec {
	var out []bindingSpec
	for _, f := range [...]wmeField{fieldID, fieldAttr, fieldValue} {
		if v := c.field(f); IsVariable(v) {
			out = append(out, bindingSpec{variable: v, field: f})
		}
	}
	return out
}

// validateConditions rejects ill-formed disjuncts before the network is
// touched. bound holds variables introduced by earlier positive patterns,
// computed holds variables introduced by earlier bind elements; both maps
// are extended in place as the walk proceeds. hasLevel reports whether a
// token-level-contributing condition precedes the current position: a
// negated conjunction needs one, because its partner locates owners by
// walking the level above the sub-conjunction.
func validateConditions(conds []condition, bound, computed map[string]bool, hasLevel bool) error {
	for _, c := range conds {
		switch x := c.(type) {
		case posCondition:
			for _, pv := range patternVars(x.pattern) {
				if computed[pv.variable] {
					return &ReteError{
						Message: "pattern reuses variable " + pv.variable + " computed by an earlier bind",
						Code:    "COMPILE_FAILED",
						Cause:   ErrRebindVariable,
					}
				}
				bound[pv.variable] = true
			}
			hasLevel = true
		case negCondition:
			for _, pv := range patternVars(x.pattern) {
				if !bound[pv.variable] {
					return &ReteError{
						Message: "negated pattern references unbound variable " + pv.variable,
						Code:    "COMPILE_FAILED",
						Cause:   ErrUnboundVariable,
					}
				}
			}
			hasLevel = true
		case nccCondition:
			if !hasLevel {
				return &ReteError{
					Message: "negated conjunction requires a preceding condition",
					Code:    "COMPILE_FAILED",
				}
			}
			subBound := make(map[string]bool, len(bound))
			for k := range bound {
				subBound[k] = true
			}
			subComputed := make(map[string]bool, len(computed))
			for k := range computed {
				subComputed[k] = true
			}
			if err := validateConditions(x.subs, subBound, subComputed, true); err != nil {
				return err
			}
			hasLevel = true
		case filterCondition:
			for _, v := range x.filter.Vars {
				if !bound[v] && !computed[v] {
					return &ReteError{
						Message: "filter references unbound variable " + v,
						Code:    "COMPILE_FAILED",
						Cause:   ErrUnboundVariable,
					}
				}
			}
		case bindCondition:
			v := x.bind.Variable
			if bound[v] || computed[v] {
				return &ReteError{
					Message: "bind would rebind variable " + v,
					Code:    "COMPILE_FAILED",
					Cause:   ErrRebindVariable,
				}
			}
			if x.bind.Compute == nil {
				return &ReteError{
					Message: "bind for " + v + " has no compute function",
					Code:    "COMPILE_FAILED",
				}
			}
			computed[v] = true
		}
	}
	return nil
}
