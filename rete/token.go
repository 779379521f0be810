package rete

// Token is one partial match: a chain of (parent, wme, binding) levels
// leading back to the dummy root token. Each level corresponds to one
// compiled condition; negated and nested-negated conditions contribute a
// level with a nil WME.
//
// Role-specific slots are only populated for tokens owned by the matching
// node kind: joinResults on negative-node tokens, nccResults on NCC-node
// tokens, owner on NCC-partner result tokens, fired on p-node tokens.
type Token struct {
	parent *Token
	wme    *WME

	// node is the memory-like node holding this token.
	node reteNode

	// children are the tokens whose parent is this token.
	children []*Token

	// binding is the local binding introduced at this level.
	binding Binding

	// joinResults lists the WMEs currently blocking this token (negative nodes).
	joinResults []*negativeJoinResult

	// nccResults lists subnetwork matches owned by this token (NCC nodes).
	nccResults []*Token

	// owner is the NCC-node token this partner result belongs to.
	owner *Token

	// fired marks p-node tokens that Run has already fired.
	fired bool

	// deleted makes double deletion a no-op.
	deleted bool
}

// newToken links a token into the graph: onto its WME's token list and its
// parent's child list.
func newToken(parent *Token, w *WME, node reteNode, binding Binding) *Token {
	t := &Token{parent: parent, wme: w, node: node, binding: binding}
	if w != nil {
		w.tokens = append(w.tokens, t)
	}
	if parent != nil {
		parent.children = append(parent.children, t)
	}
	return t
}

// Parent returns the preceding level of the chain, nil for the root token.
func (t *Token) Parent() *Token { return t.parent }

// WME returns the fact matched at this level, nil for the root and for
// dummy negative or NCC levels.
func (t *Token) WME() *WME { return t.wme }

// IsRoot reports whether this is the dummy root token.
func (t *Token) IsRoot() bool { return t.parent == nil && t.wme == nil }

// WMEs returns the chain of facts from the oldest level to this one.
// Dummy levels appear as nil entries.
func (t *Token) WMEs() []*WME {
	var n int
	for x := t; x != nil && !x.IsRoot(); x = x.parent {
		n++
	}
	out := make([]*WME, n)
	for x := t; x != nil && !x.IsRoot(); x = x.parent {
		n--
		out[n] = x.wme
	}
	return out
}

// Binding returns the full variable binding of this match: the composition
// of every level's local binding, root first, deeper levels overriding.
// Conditions are compiled so the first introducer of a variable stays
// authoritative; the override order only matters for bind elements.
func (t *Token) Binding() Binding {
	var chain []*Token
	for x := t; x != nil; x = x.parent {
		chain = append(chain, x)
	}
	out := Binding{}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].binding {
			out[k] = v
		}
	}
	return out
}

// lookup walks up the chain for the nearest binding of v.
func (t *Token) lookup(v string) (string, bool) {
	for x := t; x != nil; x = x.parent {
		if val, ok := x.binding[v]; ok {
			return val, true
		}
	}
	return "", false
}

// deleteDescendents deletes every child token, leaving t itself in place.
func (t *Token) deleteDescendents() {
	for len(t.children) > 0 {
		t.children[0].deleteSelfAndDescendents()
	}
}

// deleteSelfAndDescendents removes a token and its whole subtree from the
// network. Children are deleted strictly before the token itself so the
// walk never observes a dangling parent. Deleting an already-detached
// token is a no-op.
//
// The node-specific tails mirror the node kinds: negative tokens sever
// their join results, NCC tokens detach their owned subnetwork results,
// and NCC partner results may unblock their owner as they go.
func (t *Token) deleteSelfAndDescendents() {
	if t.deleted {
		return
	}
	t.deleted = true

	for len(t.children) > 0 {
		t.children[0].deleteSelfAndDescendents()
	}

	// Partner results are held by their owner (or the partner's result
	// buffer), never by a node item list.
	if partner, ok := t.node.(*nccPartnerNode); ok {
		removeTokenFrom(&partner.newResultBuffer, t)
	} else if holder, ok := t.node.(tokenHolder); ok {
		holder.removeToken(t)
	}

	if t.wme != nil {
		removeTokenFrom(&t.wme.tokens, t)
	}
	if t.parent != nil {
		removeTokenFrom(&t.parent.children, t)
	}

	switch node := t.node.(type) {
	case *negativeNode:
		for _, jr := range t.joinResults {
			removeJoinResultFrom(&jr.wme.negJoinResults, jr)
		}
		t.joinResults = nil
	case *nccNode:
		for _, res := range t.nccResults {
			res.deleted = true
			if res.wme != nil {
				removeTokenFrom(&res.wme.tokens, res)
			}
			if res.parent != nil {
				removeTokenFrom(&res.parent.children, res)
			}
		}
		t.nccResults = nil
	case *nccPartnerNode:
		if t.owner != nil {
			removeTokenFrom(&t.owner.nccResults, t)
			if len(t.owner.nccResults) == 0 {
				for _, child := range node.nccNode.children {
					child.leftActivate(t.owner, nil, nil)
				}
			}
			t.owner = nil
		}
	}
}
