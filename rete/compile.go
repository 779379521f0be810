package rete

// earlierPattern records a positive pattern already compiled into the
// current path together with its token-level index. Join tests address
// ancestors by level distance, never by variable name.
type earlierPattern struct {
	pattern Cond
	level   int
}

// joinTestsFromPattern splits a pattern's variable fields three ways:
// variables bound by an earlier pattern become equality tests against the
// introducing level, repeats within the pattern become intra-WME field
// tests, and the rest are fresh introductions recorded in the binding
// spec. myLevel is the token level this pattern will occupy.
func joinTestsFromPattern(c Cond, earlier []earlierPattern, myLevel int) (tests []joinTest, selfTests []fieldPair, spec []bindingSpec) {
	type introduction struct {
		level int
		field wmeField
	}
	bound := map[string]introduction{}
	for _, ep := range earlier {
		for _, pv := range patternVars(ep.pattern) {
			if _, ok := bound[pv.variable]; !ok {
				bound[pv.variable] = introduction{level: ep.level, field: pv.field}
			}
		}
	}

	local := map[string]wmeField{}
	for _, pv := range patternVars(c) {
		if intro, ok := bound[pv.variable]; ok {
			tests = append(tests, joinTest{
				field:         pv.field,
				levelsUp:      myLevel - 1 - intro.level,
				ancestorField: intro.field,
			})
		} else if first, ok := local[pv.variable]; ok {
			selfTests = append(selfTests, fieldPair{a: pv.field, b: first})
		} else {
			local[pv.variable] = pv.field
			spec = append(spec, bindingSpec{variable: pv.variable, field: pv.field})
		}
	}
	return tests, selfTests, spec
}

// buildOrShareAlphaMemory walks the constant-test tree along the pattern's
// ground fields and returns the memory at the end, creating and seeding it
// from the current working memory if needed.
func (e *Engine) buildOrShareAlphaMemory(c Cond) *alphaMemory {
	node := e.alphaRoot
	for _, f := range [...]wmeField{fieldID, fieldAttr, fieldValue} {
		if v := c.field(f); !IsVariable(v) {
			node = node.buildOrShareChild(f, v)
		}
	}
	if node.memory == nil {
		am := &alphaMemory{host: node, metrics: e.metrics}
		node.memory = am
		for _, w := range e.facts {
			if c.matchesConstants(w) {
				am.activate(w)
			}
		}
	}
	return node.memory
}

// buildOrShareBetaMemory returns the beta memory below parent, creating it
// and back-filling it with existing matches if needed. A parent that is
// itself a beta memory (the root) is used directly.
func (e *Engine) buildOrShareBetaMemory(parent reteNode) *betaMemory {
	if bm, ok := parent.(*betaMemory); ok {
		return bm
	}
	for _, child := range parent.childNodes() {
		if bm, ok := child.(*betaMemory); ok {
			return bm
		}
	}
	bm := &betaMemory{nodeLink: nodeLink{parent: parent, metrics: e.metrics}}
	parent.addChild(bm)
	e.updateNewNodeWithMatchesFromAbove(bm)
	return bm
}

func (e *Engine) buildOrShareJoinNode(parent *betaMemory, am *alphaMemory, tests []joinTest, selfTests []fieldPair, spec []bindingSpec, cond Cond) *joinNode {
	for _, child := range parent.children {
		if j, ok := child.(*joinNode); ok &&
			j.amem == am && j.cond == cond &&
			sameJoinTests(j.tests, tests) && sameFieldPairs(j.selfTests, selfTests) {
			return j
		}
	}
	j := &joinNode{
		nodeLink:  nodeLink{parent: parent, metrics: e.metrics},
		amem:      am,
		tests:     tests,
		selfTests: selfTests,
		bindSpec:  spec,
		cond:      cond,
	}
	parent.addChild(j)
	am.successors = append(am.successors, j)
	return j
}

func (e *Engine) buildOrShareNegativeNode(parent reteNode, am *alphaMemory, tests []joinTest, selfTests []fieldPair) *negativeNode {
	for _, child := range parent.childNodes() {
		if n, ok := child.(*negativeNode); ok &&
			n.amem == am &&
			sameJoinTests(n.tests, tests) && sameFieldPairs(n.selfTests, selfTests) {
			return n
		}
	}
	n := &negativeNode{
		nodeLink:  nodeLink{parent: parent, metrics: e.metrics},
		amem:      am,
		tests:     tests,
		selfTests: selfTests,
	}
	parent.addChild(n)
	am.successors = append(am.successors, n)
	e.updateNewNodeWithMatchesFromAbove(n)
	return n
}

// buildOrShareNccNodes compiles the sub-conjunction below the shared
// parent and pairs an NCC node with the partner terminating it. The
// subnetwork root is wired before the NCC node on purpose: children run in
// insertion order, so the subnetwork's results reach the partner's buffer
// just before the NCC node processes the same activation.
func (e *Engine) buildOrShareNccNodes(parent reteNode, ncc nccCondition, earlier []earlierPattern, level int, p *Production) *nccNode {
	sub := append([]earlierPattern(nil), earlier...)
	bottom, endLevel := e.buildNetwork(parent, ncc.subs, sub, level, p)

	for _, child := range parent.childNodes() {
		if nc, ok := child.(*nccNode); ok && nc.partner.parentNode() == bottom && nc.partner.levels == endLevel-level {
			return nc
		}
	}

	node := &nccNode{nodeLink: nodeLink{parent: parent, metrics: e.metrics}}
	partner := &nccPartnerNode{
		nodeLink: nodeLink{parent: bottom, metrics: e.metrics},
		nccNode:  node,
		levels:   endLevel - level,
	}
	node.partner = partner
	parent.addChild(node)
	bottom.addChild(partner)
	e.updateNewNodeWithMatchesFromAbove(node)
	e.updateNewNodeWithMatchesFromAbove(partner)
	return node
}

func (e *Engine) buildFilterNode(parent reteNode, f Filter) *filterNode {
	node := &filterNode{
		nodeLink: nodeLink{parent: parent, metrics: e.metrics},
		vars:     f.Vars,
		test:     f.Test,
	}
	parent.addChild(node)
	return node
}

func (e *Engine) buildBindNode(parent reteNode, b Bind) *bindNode {
	node := &bindNode{
		nodeLink: nodeLink{parent: parent, metrics: e.metrics},
		variable: b.Variable,
		compute:  b.Compute,
	}
	parent.addChild(node)
	return node
}

// buildNetwork compiles one condition list under parent, sharing every
// step with existing paths. level is the token-level index the next
// level-contributing condition will occupy; the final value is returned so
// NCC compilation can fix its partner's hop count.
func (e *Engine) buildNetwork(parent reteNode, conds []condition, earlier []earlierPattern, level int, p *Production) (reteNode, int) {
	current := parent
	for _, c := range conds {
		switch x := c.(type) {
		case posCondition:
			bm := e.buildOrShareBetaMemory(current)
			tests, selfTests, spec := joinTestsFromPattern(x.pattern, earlier, level)
			am := e.buildOrShareAlphaMemory(x.pattern)
			am.refCount++
			p.amemRefs = append(p.amemRefs, am)
			current = e.buildOrShareJoinNode(bm, am, tests, selfTests, spec, x.pattern)
			earlier = append(earlier, earlierPattern{pattern: x.pattern, level: level})
			level++
		case negCondition:
			tests, selfTests, _ := joinTestsFromPattern(x.pattern, earlier, level)
			am := e.buildOrShareAlphaMemory(x.pattern)
			am.refCount++
			p.amemRefs = append(p.amemRefs, am)
			current = e.buildOrShareNegativeNode(current, am, tests, selfTests)
			level++
		case nccCondition:
			current = e.buildOrShareNccNodes(current, x, earlier, level, p)
			level++
		case filterCondition:
			current = e.buildFilterNode(current, x.filter)
		case bindCondition:
			current = e.buildBindNode(current, x.bind)
		}
	}
	return current, level
}

// compileDisjunct builds the full path for one disjunct and caps it with a
// production node.
func (e *Engine) compileDisjunct(p *Production, conds []condition) *pNode {
	bottom, _ := e.buildNetwork(e.betaRoot, conds, nil, 0, p)
	pn := &pNode{
		nodeLink:   nodeLink{parent: bottom, metrics: e.metrics},
		production: p,
	}
	bottom.addChild(pn)
	e.updateNewNodeWithMatchesFromAbove(pn)
	return pn
}

// updateNewNodeWithMatchesFromAbove replays the matches a freshly created
// node missed. Memory-like parents replay their items; a join parent is
// spliced to feed only the new node while its alpha memory is re-run;
// pass-through parents recurse upward with the same splice.
func (e *Engine) updateNewNodeWithMatchesFromAbove(node reteNode) {
	switch parent := node.parentNode().(type) {
	case *betaMemory:
		for _, tok := range append([]*Token(nil), parent.items...) {
			node.leftActivate(tok, nil, nil)
		}
	case *joinNode:
		saved := parent.children
		parent.children = []reteNode{node}
		for _, w := range append([]*WME(nil), parent.amem.items...) {
			parent.rightActivate(w)
		}
		parent.children = saved
	case *negativeNode:
		for _, tok := range append([]*Token(nil), parent.items...) {
			if len(tok.joinResults) == 0 {
				node.leftActivate(tok, nil, nil)
			}
		}
	case *nccNode:
		for _, tok := range append([]*Token(nil), parent.items...) {
			if len(tok.nccResults) == 0 {
				node.leftActivate(tok, nil, nil)
			}
		}
	case *filterNode:
		saved := parent.children
		parent.children = []reteNode{node}
		e.updateNewNodeWithMatchesFromAbove(parent)
		parent.children = saved
	case *bindNode:
		saved := parent.children
		parent.children = []reteNode{node}
		e.updateNewNodeWithMatchesFromAbove(parent)
		parent.children = saved
	}
}

// deleteNodeAndAnyUnusedAncestors tears down a node and climbs toward the
// root, removing every ancestor left without children. Alpha memories are
// not freed here; their reference counts are settled by RemoveProduction.
func (e *Engine) deleteNodeAndAnyUnusedAncestors(node reteNode) {
	switch n := node.(type) {
	case *nccNode:
		e.deleteNodeAndAnyUnusedAncestors(n.partner)
		for len(n.items) > 0 {
			n.items[0].deleteSelfAndDescendents()
		}
	case *nccPartnerNode:
		for len(n.newResultBuffer) > 0 {
			n.newResultBuffer[0].deleteSelfAndDescendents()
		}
	case *betaMemory:
		for len(n.items) > 0 {
			n.items[0].deleteSelfAndDescendents()
		}
	case *negativeNode:
		for len(n.items) > 0 {
			n.items[0].deleteSelfAndDescendents()
		}
		n.amem.removeSuccessor(n)
	case *joinNode:
		n.amem.removeSuccessor(n)
	case *pNode:
		for len(n.items) > 0 {
			n.items[0].deleteSelfAndDescendents()
		}
	}
	parent := node.parentNode()
	if parent != nil {
		parent.removeChild(node)
		if parent != reteNode(e.betaRoot) && len(parent.childNodes()) == 0 {
			e.deleteNodeAndAnyUnusedAncestors(parent)
		}
	}
}
