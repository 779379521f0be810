package rete

// nccNode implements a negated conjunctive condition together with its
// partner node. The compiler builds a subnetwork for the conjunction whose
// terminal is the partner; the NCC node itself hangs off the same parent
// as the subnetwork's root. A token propagates to children only while the
// set of subnetwork matches owned by it (nccResults) is empty.
type nccNode struct {
	nodeLink
	items   []*Token
	partner *nccPartnerNode
}

// leftActivate creates a token and adopts the partner results produced
// just before this activation. Activation order guarantees those results
// belong to this very match: the subnetwork root precedes the NCC node in
// the shared parent's child list, so the subnetwork runs first and parks
// its ownerless output in the partner's buffer.
func (n *nccNode) leftActivate(t *Token, w *WME, b Binding) {
	n.metrics.countActivation("ncc", "left")
	tok := newToken(t, w, n, b)
	n.items = append(n.items, tok)
	for _, res := range n.partner.newResultBuffer {
		res.owner = tok
		tok.nccResults = append(tok.nccResults, res)
	}
	n.partner.newResultBuffer = nil
	if len(tok.nccResults) == 0 {
		for _, child := range n.children {
			child.leftActivate(tok, nil, nil)
		}
	}
}

func (n *nccNode) removeToken(t *Token) {
	removeTokenFrom(&n.items, t)
}

// nccPartnerNode collects the subnetwork's output tokens and gates its NCC
// node. levels is the number of token levels the subnetwork spans, fixed
// at compile time; walking that many levels up a fresh result's chain
// lands on the (parent, wme) pair identifying the owning NCC token.
type nccPartnerNode struct {
	nodeLink
	nccNode *nccNode
	levels  int

	// newResultBuffer parks results whose owner has not been created yet.
	newResultBuffer []*Token
}

func (p *nccPartnerNode) leftActivate(t *Token, w *WME, b Binding) {
	p.metrics.countActivation("ncc_partner", "left")
	res := newToken(t, w, p, b)

	ownerT, ownerW := t, w
	for i := 0; i < p.levels; i++ {
		ownerW = ownerT.wme
		ownerT = ownerT.parent
	}

	for _, owner := range p.nccNode.items {
		if owner.parent == ownerT && owner.wme == ownerW {
			owner.nccResults = append(owner.nccResults, res)
			res.owner = owner
			if len(owner.nccResults) == 1 {
				owner.deleteDescendents()
			}
			return
		}
	}
	p.newResultBuffer = append(p.newResultBuffer, res)
}
