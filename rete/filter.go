package rete

// FilterFunc is a pure predicate over a match's full variable binding.
type FilterFunc func(b Binding) bool

// BindFunc computes a value from a match's full variable binding.
type BindFunc func(b Binding) string

// filterNode evaluates a predicate over the full binding accumulated so
// far and forwards the activation unchanged when it holds. It creates no
// tokens of its own.
type filterNode struct {
	nodeLink
	vars []string
	test FilterFunc
}

func (f *filterNode) leftActivate(t *Token, w *WME, b Binding) {
	f.metrics.countActivation("filter", "left")
	full := t.Binding()
	for k, v := range b {
		full[k] = v
	}
	if f.test != nil && !f.test(full) {
		return
	}
	for _, child := range f.children {
		child.leftActivate(t, w, b)
	}
}

// bindNode computes a value over the full binding and adds it to the local
// binding the next memory will store, then forwards the activation.
type bindNode struct {
	nodeLink
	variable string
	compute  BindFunc
}

func (n *bindNode) leftActivate(t *Token, w *WME, b Binding) {
	n.metrics.countActivation("bind", "left")
	full := t.Binding()
	for k, v := range b {
		full[k] = v
	}
	nb := b.clone()
	nb[n.variable] = n.compute(full)
	for _, child := range n.children {
		child.leftActivate(t, w, nb)
	}
}
