package xpath

import (
	"slices"

	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

// path evaluates its steps from left to right. Every step is evaluated once
// for each node produced by the previous one, the results are merged in
// document order without duplicates.
type path struct {
	base
	steps []Expr
}

func newPath(steps ...Expr) *path {
	var list []Expr
	for _, s := range steps {
		if p, ok := s.(*path); ok {
			list = append(list, p.steps...)
			continue
		}
		list = append(list, s)
	}
	e := path{
		steps: list,
	}
	e.info = combine(list...)
	e.info.Static = false
	e.info.Order = Sorted
	e.info.Bucket = list[0].Info().Bucket
	e.info.Subtree = true
	e.info.Peer = true
	for _, s := range list {
		x := s.Info()
		e.info.Subtree = e.info.Subtree && x.Subtree
		e.info.Peer = e.info.Peer && x.Peer
	}
	return &e
}

func (e *path) find(ctx Context) (*Sequence, error) {
	it := pathIterator{
		ctx:  ctx,
		path: e,
	}
	return Lazy(it.run), nil
}

type pathIterator struct {
	ctx  Context
	path *path

	stage   int
	started bool
	input   []Item
	peers   bool
	pos     int
	curr    *Sequence
	result  []Item
	nodes   int
	atomics int
}

func (p *pathIterator) run() (*Sequence, tree.Future, error) {
	facade := p.ctx.Facade()
	if !p.started {
		seq, err := eval(p.ctx, p.path.steps[0])
		if err != nil {
			return nil, nil, err
		}
		p.curr = seq
		p.started = true
	}
	if p.stage == 0 {
		items, fut, err := p.curr.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		p.curr = nil
		p.result, p.nodes, p.atomics = nil, 0, 0
		for _, i := range items {
			p.count(i)
		}
		p.result = items
		if p.atomics == 0 {
			p.result = normalize(facade, slices.Clone(items))
		}
		p.peers = len(p.result) <= 1 || p.path.steps[0].Info().Peer
		p.stage++
		if err := p.advance(); err != nil {
			return nil, nil, err
		}
	}
	for p.stage < len(p.path.steps) {
		step := p.path.steps[p.stage]
		info := step.Info()
		for p.pos < len(p.input) {
			if p.curr == nil {
				sub := p.ctx.Sub(p.input[p.pos], p.pos+1, len(p.input))
				seq, err := eval(sub, step)
				if err != nil {
					return nil, nil, err
				}
				p.curr = seq
			}
			chunk, fut, err := p.curr.Collect()
			if err != nil || fut != nil {
				return nil, fut, err
			}
			p.merge(facade, info, chunk)
			p.curr = nil
			p.pos++
		}
		if info.Order == Unsorted && p.atomics == 0 {
			p.result = normalize(facade, p.result)
		}
		p.peers = p.peers && info.Peer
		p.stage++
		if err := p.advance(); err != nil {
			return nil, nil, err
		}
	}
	if p.nodes > 0 && p.atomics > 0 {
		return nil, nil, xdm.Errorf(xdm.CodeMixedPath, "path result mixes nodes and atomic values")
	}
	return FromItems(p.result), nil, nil
}

// advance makes the result of the previous step the input of the next one.
func (p *pathIterator) advance() error {
	if p.stage >= len(p.path.steps) {
		return nil
	}
	if p.atomics > 0 {
		return xdm.Errorf(xdm.CodeStepNotNode, "path step applied to a non node item")
	}
	p.input = p.result
	p.result = nil
	p.pos = 0
	p.nodes, p.atomics = 0, 0
	return nil
}

func (p *pathIterator) count(i Item) {
	if IsNode(i) {
		p.nodes++
	} else {
		p.atomics++
	}
}

func (p *pathIterator) merge(f tree.Facade, info Info, chunk []Item) {
	for _, i := range chunk {
		p.count(i)
	}
	if p.atomics > 0 || info.Order == Unsorted {
		p.result = append(p.result, chunk...)
		return
	}
	if info.Order == ReverseSorted {
		chunk = slices.Clone(chunk)
		slices.Reverse(chunk)
	}
	if p.peers && info.Subtree && info.Order == Sorted {
		p.result = append(p.result, chunk...)
		return
	}
	for _, i := range chunk {
		p.result = insertSorted(f, p.result, i)
	}
}

type axis string

const (
	axisChild            axis = "child"
	axisDescendant       axis = "descendant"
	axisDescendantOrSelf axis = "descendant-or-self"
	axisSelf             axis = "self"
	axisParent           axis = "parent"
	axisAncestor         axis = "ancestor"
	axisAncestorOrSelf   axis = "ancestor-or-self"
	axisFollowingSibling axis = "following-sibling"
	axisPrecedingSibling axis = "preceding-sibling"
	axisFollowing        axis = "following"
	axisPreceding        axis = "preceding"
	axisAttribute        axis = "attribute"
)

func isAxis(str string) bool {
	switch axis(str) {
	case axisChild, axisDescendant, axisDescendantOrSelf, axisSelf, axisParent:
	case axisAncestor, axisAncestorOrSelf, axisFollowingSibling, axisPrecedingSibling:
	case axisFollowing, axisPreceding, axisAttribute:
	default:
		return false
	}
	return true
}

func (a axis) reverse() bool {
	switch a {
	case axisParent, axisAncestor, axisAncestorOrSelf, axisPrecedingSibling, axisPreceding:
		return true
	default:
		return false
	}
}

func (a axis) principal() tree.Kind {
	if a == axisAttribute {
		return tree.KindAttribute
	}
	return tree.KindElement
}

// axisStep selects the nodes of an axis of the context node matching a node
// test. Nodes are produced in axis order.
type axisStep struct {
	base
	axis axis
	test nodeTest
}

func newAxisStep(a axis, test nodeTest) *axisStep {
	e := axisStep{
		axis: a,
		test: test,
	}
	e.info.Specificity = test.specificity()
	e.info.Order = Sorted
	if a.reverse() {
		e.info.Order = ReverseSorted
	}
	switch a {
	case axisChild, axisAttribute, axisSelf:
		e.info.Peer = true
		e.info.Subtree = true
	case axisDescendant, axisDescendantOrSelf:
		e.info.Subtree = true
	case axisFollowingSibling, axisPrecedingSibling:
		e.info.Peer = true
	}
	if a == axisSelf {
		e.info.Bucket = test.bucket(a.principal())
	}
	return &e
}

func (e *axisStep) find(ctx Context) (*Sequence, error) {
	node, err := ctx.ContextNode()
	if err != nil {
		return nil, err
	}
	var (
		facade = ctx.Facade()
		move   func() (tree.Node, tree.Future)
	)
	switch e.axis {
	case axisSelf:
		move = once(node)
	case axisChild:
		move = siblings(node, facade.FirstChild, facade.NextSibling)
	case axisAttribute:
		move = attributes(facade, node)
	case axisParent:
		move = ancestors(facade, node, false, true)
	case axisAncestor:
		move = ancestors(facade, node, false, false)
	case axisAncestorOrSelf:
		move = ancestors(facade, node, true, false)
	case axisDescendant:
		move = descendants(facade, node, false)
	case axisDescendantOrSelf:
		move = descendants(facade, node, true)
	case axisFollowingSibling:
		if facade.Kind(node) == tree.KindAttribute {
			return Empty(), nil
		}
		move = siblings(node, facade.NextSibling, facade.NextSibling)
	case axisPrecedingSibling:
		if facade.Kind(node) == tree.KindAttribute {
			return Empty(), nil
		}
		move = siblings(node, facade.PreviousSibling, facade.PreviousSibling)
	case axisFollowing:
		move = following(facade, node)
	case axisPreceding:
		move = preceding(facade, node)
	default:
		return nil, xdm.Errorf(xdm.CodeSyntax, "%s: unsupported axis", e.axis)
	}
	it := axisIterator{
		facade:    facade,
		test:      e.test,
		principal: e.axis.principal(),
		move:      move,
	}
	return Create(&it), nil
}

// axisIterator filters the nodes produced by move. move must be safe to call
// again after reporting a future: it only updates its state once the facade
// gave an answer. It returns a nil node when the axis is exhausted.
type axisIterator struct {
	facade    tree.Facade
	test      nodeTest
	principal tree.Kind
	move      func() (tree.Node, tree.Future)
}

func (a *axisIterator) Next() (Step, error) {
	for {
		n, fut := a.move()
		if fut != nil {
			return pending(fut), nil
		}
		if n == nil {
			return done, nil
		}
		if a.test.match(a.facade, n, a.principal) {
			return ready(NodeItem(n)), nil
		}
	}
}

func once(node tree.Node) func() (tree.Node, tree.Future) {
	return func() (tree.Node, tree.Future) {
		n := node
		node = nil
		return n, nil
	}
}

func siblings(node tree.Node, first, next func(tree.Node) (tree.Node, tree.Future)) func() (tree.Node, tree.Future) {
	var (
		curr    tree.Node
		started bool
	)
	return func() (tree.Node, tree.Future) {
		if started && curr == nil {
			return nil, nil
		}
		var (
			n   tree.Node
			fut tree.Future
		)
		if !started {
			n, fut = first(node)
		} else {
			n, fut = next(curr)
		}
		if fut != nil {
			return nil, fut
		}
		started, curr = true, n
		return n, nil
	}
}

func attributes(f tree.Facade, node tree.Node) func() (tree.Node, tree.Future) {
	var (
		list   []tree.Node
		loaded bool
	)
	return func() (tree.Node, tree.Future) {
		if !loaded {
			if f.Kind(node) != tree.KindElement {
				loaded = true
				return nil, nil
			}
			attrs, fut := f.Attributes(node)
			if fut != nil {
				return nil, fut
			}
			list, loaded = attrs, true
		}
		if len(list) == 0 {
			return nil, nil
		}
		n := list[0]
		list = list[1:]
		return n, nil
	}
}

func ancestors(f tree.Facade, node tree.Node, self, parentOnly bool) func() (tree.Node, tree.Future) {
	var (
		curr     = node
		finished bool
	)
	return func() (tree.Node, tree.Future) {
		if finished {
			return nil, nil
		}
		if self {
			self = false
			return curr, nil
		}
		n, fut := f.Parent(curr)
		if fut != nil {
			return nil, fut
		}
		curr = n
		if n == nil || parentOnly {
			finished = true
		}
		return n, nil
	}
}

const (
	walkStart int8 = iota
	walkDown
	walkSide
	walkUp
	walkDone
)

// walker visits nodes in document order using only the navigation methods
// of the facade. When bounded, it stops once it climbs back to its root.
type walker struct {
	facade  tree.Facade
	root    tree.Node
	curr    tree.Node
	phase   int8
	bounded bool
}

func (w *walker) next() (tree.Node, tree.Future) {
	for {
		switch w.phase {
		case walkStart:
			n, fut := w.facade.FirstChild(w.root)
			if fut != nil {
				return nil, fut
			}
			if n == nil {
				w.phase = walkDone
				return nil, nil
			}
			w.curr, w.phase = n, walkDown
			return n, nil
		case walkDown:
			n, fut := w.facade.FirstChild(w.curr)
			if fut != nil {
				return nil, fut
			}
			if n != nil {
				w.curr = n
				return n, nil
			}
			w.phase = walkSide
		case walkSide:
			n, fut := w.facade.NextSibling(w.curr)
			if fut != nil {
				return nil, fut
			}
			if n != nil {
				w.curr, w.phase = n, walkDown
				return n, nil
			}
			w.phase = walkUp
		case walkUp:
			n, fut := w.facade.Parent(w.curr)
			if fut != nil {
				return nil, fut
			}
			if n == nil || (w.bounded && n == w.root) {
				w.phase = walkDone
				return nil, nil
			}
			w.curr, w.phase = n, walkSide
		default:
			return nil, nil
		}
	}
}

func descendants(f tree.Facade, node tree.Node, self bool) func() (tree.Node, tree.Future) {
	w := walker{
		facade:  f,
		root:    node,
		bounded: true,
	}
	if f.Kind(node) == tree.KindAttribute {
		w.phase = walkDone
	}
	return func() (tree.Node, tree.Future) {
		if self {
			self = false
			return node, nil
		}
		return w.next()
	}
}

func following(f tree.Facade, node tree.Node) func() (tree.Node, tree.Future) {
	w := walker{
		facade: f,
		curr:   node,
		phase:  walkSide,
	}
	var started bool
	return func() (tree.Node, tree.Future) {
		if !started && f.Kind(node) == tree.KindAttribute {
			parent, fut := f.Parent(node)
			if fut != nil {
				return nil, fut
			}
			if parent == nil {
				return nil, nil
			}
			w.curr, w.phase = parent, walkDown
		}
		started = true
		return w.next()
	}
}

// preceding buffers the nodes before the context node that are not its
// ancestors, then gives them in reverse document order.
func preceding(f tree.Facade, node tree.Node) func() (tree.Node, tree.Future) {
	var (
		target = node
		chain  = make(map[tree.Node]struct{})
		top    = node
		w      *walker
		list   []tree.Node
		loaded bool
	)
	if f.Kind(node) == tree.KindAttribute {
		target = nil
	}
	return func() (tree.Node, tree.Future) {
		for !loaded {
			if w == nil {
				n, fut := f.Parent(top)
				if fut != nil {
					return nil, fut
				}
				if n != nil {
					if target == nil {
						target = n
					}
					chain[n] = struct{}{}
					top = n
					continue
				}
				if top == node || top == target {
					loaded = true
					break
				}
				w = &walker{
					facade:  f,
					root:    top,
					bounded: true,
				}
			}
			n, fut := w.next()
			if fut != nil {
				return nil, fut
			}
			if n == nil || n == target {
				loaded = true
				slices.Reverse(list)
				break
			}
			if _, ok := chain[n]; !ok {
				list = append(list, n)
			}
		}
		if len(list) == 0 {
			return nil, nil
		}
		n := list[0]
		list = list[1:]
		return n, nil
	}
}
