package rete

// reteNode is any node on the beta side of the network. Left activations
// carry a token from above, plus the WME and local binding contributed by
// the level being extended. Join nodes ignore the extra arguments; filter
// and bind nodes pass them on to their children.
type reteNode interface {
	leftActivate(t *Token, w *WME, b Binding)
	parentNode() reteNode
	childNodes() []reteNode
	addChild(n reteNode)
	removeChild(n reteNode)
}

// rightActivator is implemented by the node kinds an alpha memory feeds.
type rightActivator interface {
	rightActivate(w *WME)
}

// tokenHolder is implemented by node kinds that keep an item list of tokens.
// NCC partner results are held by their owner instead, which is why the
// partner is not a tokenHolder.
type tokenHolder interface {
	removeToken(t *Token)
}

// nodeLink carries the parent/children wiring shared by every beta node.
type nodeLink struct {
	parent   reteNode
	children []reteNode
	metrics  *Metrics
}

func (l *nodeLink) parentNode() reteNode   { return l.parent }
func (l *nodeLink) childNodes() []reteNode { return l.children }

func (l *nodeLink) addChild(n reteNode) {
	l.children = append(l.children, n)
}

func (l *nodeLink) removeChild(n reteNode) {
	for i, c := range l.children {
		if c == n {
			l.children = append(l.children[:i], l.children[i+1:]...)
			return
		}
	}
}

// betaMemory stores the tokens matching a prefix of conditions and fans
// activations out to the join nodes below it. The root beta memory holds
// exactly the dummy root token and seeds the whole network.
type betaMemory struct {
	nodeLink
	items []*Token
}

func (m *betaMemory) leftActivate(t *Token, w *WME, b Binding) {
	m.metrics.countActivation("beta_memory", "left")
	tok := newToken(t, w, m, b)
	m.items = append(m.items, tok)
	for _, child := range m.children {
		child.leftActivate(tok, nil, nil)
	}
}

func (m *betaMemory) removeToken(t *Token) {
	removeTokenFrom(&m.items, t)
}
