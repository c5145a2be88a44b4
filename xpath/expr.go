package xpath

import (
	"fmt"
	"strings"

	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

// Specificity ranks competing matches. Composition is component wise
// addition.
type Specificity struct {
	Types     int
	Names     int
	Externals int
}

func (s Specificity) Add(other Specificity) Specificity {
	s.Types += other.Types
	s.Names += other.Names
	s.Externals += other.Externals
	return s
}

func (s Specificity) Compare(other Specificity) int {
	if s.Externals != other.Externals {
		return s.Externals - other.Externals
	}
	if s.Names != other.Names {
		return s.Names - other.Names
	}
	return s.Types - other.Types
}

type Ordering int8

const (
	Unsorted Ordering = iota
	Sorted
	ReverseSorted
)

func (o Ordering) String() string {
	switch o {
	case Sorted:
		return "sorted"
	case ReverseSorted:
		return "reverse-sorted"
	default:
		return "unsorted"
	}
}

// Info is computed once when an expression is built.
type Info struct {
	Specificity Specificity
	Order       Ordering
	// Static is set when the result does not depend on the dynamic context.
	Static bool
	// Peer is set when the nodes produced from peer context nodes are
	// themselves peers: none of them is an ancestor of another.
	Peer bool
	// Subtree is set when the nodes produced lie in the subtree of the
	// context node.
	Subtree  bool
	Updating bool
	Bucket   string
	Span     Span
}

// Expr is a compiled expression. The set of implementations is closed.
type Expr interface {
	Info() Info
	find(Context) (*Sequence, error)
}

type base struct {
	info Info
}

func (b base) Info() Info {
	return b.info
}

func combine(list ...Expr) Info {
	var info Info
	info.Static = true
	for _, e := range list {
		if e == nil {
			continue
		}
		x := e.Info()
		info.Specificity = info.Specificity.Add(x.Specificity)
		info.Static = info.Static && x.Static
		info.Updating = info.Updating || x.Updating
	}
	return info
}

// eval evaluates e, replaying the result of static expressions when caching
// is enabled and recording stack frames in debug mode.
func eval(ctx Context, e Expr) (*Sequence, error) {
	info := e.Info()
	if ctx.Caching && info.Static {
		if m, ok := ctx.static[e]; ok {
			return m.Iterate(), nil
		}
	}
	seq, err := e.find(ctx)
	if err != nil {
		if ctx.Debug {
			err = withFrame(err, e)
		}
		return nil, err
	}
	if ctx.Debug {
		seq = traced(seq, e)
	}
	if ctx.Caching && info.Static {
		m := seq.Cache()
		ctx.static[e] = m
		seq = m.Iterate()
	}
	return seq, nil
}

func traced(seq *Sequence, e Expr) *Sequence {
	return Create(IteratorFunc(func() (Step, error) {
		st, err := seq.Next()
		if err != nil {
			err = withFrame(err, e)
		}
		return st, err
	}))
}

func kindName(e Expr) string {
	name := fmt.Sprintf("%T", e)
	name = strings.TrimPrefix(name, "*xpath.")
	return name
}

type literal struct {
	base
	value xdm.Value
}

func newLiteral(v xdm.Value) *literal {
	e := literal{value: v}
	e.info.Static = true
	return &e
}

func (e *literal) find(_ Context) (*Sequence, error) {
	return Singleton(Atomic(e.value)), nil
}

type sequence struct {
	base
	all []Expr
}

func newSequence(all []Expr) *sequence {
	e := sequence{all: all}
	e.info = combine(all...)
	return &e
}

func (e *sequence) find(ctx Context) (*Sequence, error) {
	if len(e.all) == 0 {
		return Empty(), nil
	}
	list := make([]*Sequence, 0, len(e.all))
	for _, x := range e.all {
		seq, err := eval(ctx, x)
		if err != nil {
			return nil, err
		}
		list = append(list, seq)
	}
	return concat(list...), nil
}

func concat(list ...*Sequence) *Sequence {
	var pos int
	return Create(IteratorFunc(func() (Step, error) {
		for pos < len(list) {
			st, err := list[pos].Next()
			if err != nil || st.State != Done {
				return st, err
			}
			pos++
		}
		return done, nil
	}))
}

type rangeExpr struct {
	base
	from Expr
	to   Expr
}

func newRange(from, to Expr) *rangeExpr {
	e := rangeExpr{
		from: from,
		to:   to,
	}
	e.info = combine(from, to)
	e.info.Order = Sorted
	return &e
}

func (e *rangeExpr) find(ctx Context) (*Sequence, error) {
	left, err := eval(ctx, e.from)
	if err != nil {
		return nil, err
	}
	right, err := eval(ctx, e.to)
	if err != nil {
		return nil, err
	}
	var (
		first = optionalAtomic(ctx, left)
		last  = optionalAtomic(ctx, right)
	)
	return Lazy(func() (*Sequence, tree.Future, error) {
		lo, fut, err := first()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		hi, fut, err := last()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		if lo == nil || hi == nil {
			return Empty(), nil, nil
		}
		x, err := rangeBound(*lo)
		if err != nil {
			return nil, nil, err
		}
		y, err := rangeBound(*hi)
		if err != nil {
			return nil, nil, err
		}
		return integers(x, y), nil, nil
	}), nil
}

func rangeBound(v xdm.Value) (int64, error) {
	if v.Type == xdm.UntypedAtomic {
		c, err := xdm.Cast(v, xdm.Integer)
		if err != nil {
			return 0, err
		}
		v = c
	}
	if !xdm.InstanceOf(v.Type, xdm.Integer) {
		return 0, typeError("range operand must be an integer, got %s", v.Type)
	}
	d, _ := v.Decimal()
	return d.IntPart(), nil
}

func integers(from, to int64) *Sequence {
	curr := from
	return Create(IteratorFunc(func() (Step, error) {
		if curr > to {
			return done, nil
		}
		curr++
		return ready(Atomic(xdm.NewInteger(curr - 1))), nil
	}))
}

type varRef struct {
	base
	ident string
}

func newVarRef(ident string) *varRef {
	return &varRef{ident: ident}
}

func (e *varRef) find(ctx Context) (*Sequence, error) {
	m, err := ctx.Resolve(e.ident)
	if err != nil {
		return nil, xdm.Errorf(xdm.CodeUndefinedVar, "$%s: variable not defined", e.ident)
	}
	return m.Iterate(), nil
}

type current struct {
	base
}

func (e *current) find(ctx Context) (*Sequence, error) {
	if ctx.Item == nil {
		return nil, contextAbsent()
	}
	return Singleton(ctx.Item), nil
}

// root selects the topmost ancestor of the context node.
type root struct {
	base
}

func newRoot() *root {
	var e root
	e.info.Order = Sorted
	e.info.Peer = true
	e.info.Specificity.Types = 1
	return &e
}

func (e *root) find(ctx Context) (*Sequence, error) {
	node, err := ctx.ContextNode()
	if err != nil {
		return nil, err
	}
	facade := ctx.Facade()
	return Lazy(func() (*Sequence, tree.Future, error) {
		for {
			parent, fut := facade.Parent(node)
			if fut != nil {
				return nil, fut, nil
			}
			if parent == nil {
				break
			}
			node = parent
		}
		return Singleton(NodeItem(node)), nil, nil
	}), nil
}

type conditional struct {
	base
	test Expr
	csq  Expr
	alt  Expr
}

func newConditional(test, csq, alt Expr) *conditional {
	e := conditional{
		test: test,
		csq:  csq,
		alt:  alt,
	}
	e.info = combine(test, csq, alt)
	return &e
}

func (e *conditional) find(ctx Context) (*Sequence, error) {
	test, err := eval(ctx, e.test)
	if err != nil {
		return nil, err
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		ok, fut, err := test.EffectiveBooleanValue()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		var seq *Sequence
		if ok {
			seq, err = eval(ctx, e.csq)
		} else {
			seq, err = eval(ctx, e.alt)
		}
		return seq, nil, err
	}), nil
}

type binding struct {
	ident string
	expr  Expr
}

type let struct {
	base
	binds []binding
	body  Expr
}

func newLet(binds []binding, body Expr) *let {
	e := let{
		binds: binds,
		body:  body,
	}
	list := []Expr{body}
	for _, b := range binds {
		list = append(list, b.expr)
	}
	e.info = combine(list...)
	e.info.Static = false
	return &e
}

func (e *let) find(ctx Context) (*Sequence, error) {
	for _, b := range e.binds {
		seq, err := eval(ctx, b.expr)
		if err != nil {
			return nil, err
		}
		ctx = ctx.Bind(b.ident, seq.Cache())
	}
	return eval(ctx, e.body)
}

// odometer enumerates the cartesian product of binding sequences. The
// sequence of a binding is evaluated again each time an earlier binding
// advances since it can refer to earlier variables.
type odometer struct {
	ctx   Context
	binds []binding

	level  int
	seqs   []*Sequence
	items  [][]Item
	loaded []bool
	index  []int
}

func newOdometer(ctx Context, binds []binding) *odometer {
	return &odometer{
		ctx:    ctx,
		binds:  binds,
		seqs:   make([]*Sequence, len(binds)),
		items:  make([][]Item, len(binds)),
		loaded: make([]bool, len(binds)),
		index:  make([]int, len(binds)),
	}
}

// next moves to the next combination. It returns the context with every
// variable bound, or false when all combinations were visited.
func (o *odometer) next() (Context, bool, tree.Future, error) {
	for {
		if o.level < 0 {
			return o.ctx, false, nil, nil
		}
		if o.level == len(o.binds) {
			ctx := o.bound(o.level)
			o.level--
			if o.level >= 0 {
				o.index[o.level]++
			}
			return ctx, true, nil, nil
		}
		if !o.loaded[o.level] {
			if o.seqs[o.level] == nil {
				seq, err := eval(o.bound(o.level), o.binds[o.level].expr)
				if err != nil {
					return o.ctx, false, nil, err
				}
				o.seqs[o.level] = seq
			}
			items, fut, err := o.seqs[o.level].Collect()
			if err != nil || fut != nil {
				return o.ctx, false, fut, err
			}
			o.items[o.level] = items
			o.loaded[o.level] = true
			o.index[o.level] = 0
		}
		if o.index[o.level] >= len(o.items[o.level]) {
			o.loaded[o.level] = false
			o.seqs[o.level] = nil
			o.level--
			if o.level >= 0 {
				o.index[o.level]++
			}
			continue
		}
		o.level++
	}
}

func (o *odometer) bound(level int) Context {
	ctx := o.ctx
	for i := 0; i < level; i++ {
		item := o.items[i][o.index[i]]
		ctx = ctx.Bind(o.binds[i].ident, memoOf([]Item{item}))
	}
	return ctx
}

type quantified struct {
	base
	binds []binding
	test  Expr
	every bool
}

func newQuantified(binds []binding, test Expr, every bool) *quantified {
	e := quantified{
		binds: binds,
		test:  test,
		every: every,
	}
	list := []Expr{test}
	for _, b := range binds {
		list = append(list, b.expr)
	}
	e.info = combine(list...)
	e.info.Static = false
	return &e
}

func (e *quantified) find(ctx Context) (*Sequence, error) {
	var (
		odo  = newOdometer(ctx, e.binds)
		test *Sequence
	)
	return Lazy(func() (*Sequence, tree.Future, error) {
		for {
			if test == nil {
				sub, ok, fut, err := odo.next()
				if err != nil || fut != nil {
					return nil, fut, err
				}
				if !ok {
					return boolSeq(e.every), nil, nil
				}
				if test, err = eval(sub, e.test); err != nil {
					return nil, nil, err
				}
			}
			ok, fut, err := test.EffectiveBooleanValue()
			if err != nil || fut != nil {
				return nil, fut, err
			}
			test = nil
			if ok != e.every {
				return boolSeq(ok), nil, nil
			}
		}
	}), nil
}

type loop struct {
	base
	binds []binding
	body  Expr
}

func newLoop(binds []binding, body Expr) *loop {
	e := loop{
		binds: binds,
		body:  body,
	}
	list := []Expr{body}
	for _, b := range binds {
		list = append(list, b.expr)
	}
	e.info = combine(list...)
	e.info.Static = false
	return &e
}

func (e *loop) find(ctx Context) (*Sequence, error) {
	var (
		odo  = newOdometer(ctx, e.binds)
		curr *Sequence
	)
	return Create(IteratorFunc(func() (Step, error) {
		for {
			if curr == nil {
				sub, ok, fut, err := odo.next()
				if err != nil {
					return done, err
				}
				if fut != nil {
					return pending(fut), nil
				}
				if !ok {
					return done, nil
				}
				if curr, err = eval(sub, e.body); err != nil {
					return done, err
				}
			}
			st, err := curr.Next()
			if err != nil || st.State != Done {
				return st, err
			}
			curr = nil
		}
	})), nil
}

// simpleMap evaluates its right operand once for every item of its left
// operand.
type simpleMap struct {
	base
	left  Expr
	right Expr
}

func newSimpleMap(left, right Expr) *simpleMap {
	e := simpleMap{
		left:  left,
		right: right,
	}
	e.info = combine(left, right)
	return &e
}

func (e *simpleMap) find(ctx Context) (*Sequence, error) {
	left, err := eval(ctx, e.left)
	if err != nil {
		return nil, err
	}
	var (
		items  []Item
		pos    int
		curr   *Sequence
		loaded bool
	)
	return Create(IteratorFunc(func() (Step, error) {
		if !loaded {
			list, fut, err := left.Collect()
			if err != nil {
				return done, err
			}
			if fut != nil {
				return pending(fut), nil
			}
			items, loaded = list, true
		}
		for {
			if curr == nil {
				if pos >= len(items) {
					return done, nil
				}
				sub := ctx.Sub(items[pos], pos+1, len(items))
				pos++
				if curr, err = eval(sub, e.right); err != nil {
					return done, err
				}
			}
			st, err := curr.Next()
			if err != nil || st.State != Done {
				return st, err
			}
			curr = nil
		}
	})), nil
}

// optionalAtomic returns a resumable accessor to the single atomized item of
// seq. It gives nil for the empty sequence.
func optionalAtomic(ctx Context, seq *Sequence) func() (*xdm.Value, tree.Future, error) {
	atoms := seq.Atomize(ctx)
	return func() (*xdm.Value, tree.Future, error) {
		fut, err := atoms.fill(2)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		switch len(atoms.buf) {
		case 0:
			return nil, nil, nil
		case 1:
			v, _ := atoms.buf[0].Atomic()
			return &v, nil, nil
		default:
			return nil, nil, cardinalityError("expected at most one item")
		}
	}
}
