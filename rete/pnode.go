package rete

// pNode is the terminal node of one compiled rule disjunct. Its item list
// is that disjunct's contribution to the conflict set.
type pNode struct {
	nodeLink
	production *Production
	items      []*Token
}

func (p *pNode) leftActivate(t *Token, w *WME, b Binding) {
	p.metrics.countActivation("production", "left")
	tok := newToken(t, w, p, b)
	p.items = append(p.items, tok)
}

func (p *pNode) removeToken(t *Token) {
	removeTokenFrom(&p.items, t)
}
