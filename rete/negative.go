package rete

// negativeNode implements a negated pattern. It stores tokens like a beta
// memory and, per token, the set of WMEs from its alpha memory that
// currently block it. A token propagates to children only while that set
// is empty; children receive a dummy level with no WME.
type negativeNode struct {
	nodeLink
	amem      *alphaMemory
	tests     []joinTest
	selfTests []fieldPair
	items     []*Token
}

func (n *negativeNode) leftActivate(t *Token, w *WME, b Binding) {
	n.metrics.countActivation("negative", "left")
	tok := newToken(t, w, n, b)
	n.items = append(n.items, tok)
	for _, cand := range n.amem.items {
		if performJoinTests(n.tests, n.selfTests, tok, cand) {
			jr := &negativeJoinResult{owner: tok, wme: cand}
			tok.joinResults = append(tok.joinResults, jr)
			cand.negJoinResults = append(cand.negJoinResults, jr)
		}
	}
	if len(tok.joinResults) == 0 {
		for _, child := range n.children {
			child.leftActivate(tok, nil, nil)
		}
	}
}

// rightActivate blocks any stored token the new WME matches. A token that
// was unblocked loses its descendants the moment its first join result
// appears.
func (n *negativeNode) rightActivate(w *WME) {
	n.metrics.countActivation("negative", "right")
	for _, tok := range n.items {
		if performJoinTests(n.tests, n.selfTests, tok, w) {
			if len(tok.joinResults) == 0 {
				tok.deleteDescendents()
			}
			jr := &negativeJoinResult{owner: tok, wme: w}
			tok.joinResults = append(tok.joinResults, jr)
			w.negJoinResults = append(w.negJoinResults, jr)
		}
	}
}

func (n *negativeNode) removeToken(t *Token) {
	removeTokenFrom(&n.items, t)
}
