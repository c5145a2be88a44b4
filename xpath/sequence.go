package xpath

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

type State int8

const (
	Ready State = iota
	Done
	Pending
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Done:
		return "done"
	case Pending:
		return "pending"
	default:
		return "<state>"
	}
}

// Step is the result of a single pull on a sequence. Item is only set when
// State is Ready and Future only when State is Pending.
type Step struct {
	State  State
	Item   Item
	Future tree.Future
}

func ready(item Item) Step {
	return Step{State: Ready, Item: item}
}

func pending(fut tree.Future) Step {
	return Step{State: Pending, Future: fut}
}

var done = Step{State: Done}

// Iterator is a pull source. After returning Pending, the next call must
// give the answer the suspended call would have given.
type Iterator interface {
	Next() (Step, error)
}

type IteratorFunc func() (Step, error)

func (f IteratorFunc) Next() (Step, error) {
	return f()
}

// Sequence is a lazy ordered list of items. Items pulled ahead of time by
// EffectiveBooleanValue or Switch are kept and replayed by Next.
type Sequence struct {
	src  Iterator
	buf  []Item
	done bool
}

func Create(it Iterator) *Sequence {
	return &Sequence{src: it}
}

func Empty() *Sequence {
	return &Sequence{done: true}
}

func Singleton(item Item) *Sequence {
	return FromItems([]Item{item})
}

func FromItems(items []Item) *Sequence {
	return &Sequence{
		buf:  items,
		done: true,
	}
}

func FromValues(values ...xdm.Value) *Sequence {
	items := make([]Item, len(values))
	for i := range values {
		items[i] = Atomic(values[i])
	}
	return FromItems(items)
}

// Lazy defers the creation of a sequence until the first pull. prepare is
// called again after it reports a future.
func Lazy(prepare func() (*Sequence, tree.Future, error)) *Sequence {
	d := deferred{
		prepare: prepare,
	}
	return Create(&d)
}

type deferred struct {
	prepare func() (*Sequence, tree.Future, error)
	seq     *Sequence
}

func (d *deferred) Next() (Step, error) {
	if d.seq == nil {
		seq, fut, err := d.prepare()
		if err != nil {
			return done, err
		}
		if fut != nil {
			return pending(fut), nil
		}
		d.seq = seq
	}
	return d.seq.Next()
}

func (s *Sequence) Next() (Step, error) {
	if len(s.buf) > 0 {
		item := s.buf[0]
		s.buf = s.buf[1:]
		return ready(item), nil
	}
	if s.done || s.src == nil {
		return done, nil
	}
	st, err := s.src.Next()
	if err != nil {
		return st, err
	}
	if st.State == Done {
		s.done = true
	}
	return st, nil
}

// fill buffers items until n of them are available or the source is
// exhausted.
func (s *Sequence) fill(n int) (tree.Future, error) {
	for len(s.buf) < n && !s.done {
		if s.src == nil {
			s.done = true
			break
		}
		st, err := s.src.Next()
		if err != nil {
			return nil, err
		}
		switch st.State {
		case Pending:
			return st.Future, nil
		case Done:
			s.done = true
		default:
			s.buf = append(s.buf, st.Item)
		}
	}
	return nil, nil
}

// Collect pulls every item of the sequence. It reports a future when the
// source suspends; calling it again resumes the collection. Once complete,
// further calls return the same items.
func (s *Sequence) Collect() ([]Item, tree.Future, error) {
	fut, err := s.fill(math.MaxInt)
	if err != nil || fut != nil {
		return nil, fut, err
	}
	return slices.Clip(s.buf), nil, nil
}

// MapAll calls fn with every item of the sequence once they are all
// available.
func (s *Sequence) MapAll(fn func([]Item) (*Sequence, error)) *Sequence {
	return Lazy(func() (*Sequence, tree.Future, error) {
		items, fut, err := s.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		res, err := fn(items)
		return res, nil, err
	})
}

type Cases struct {
	Empty     func() (*Sequence, error)
	Singleton func(Item) (*Sequence, error)
	Multiple  func(*Sequence) (*Sequence, error)
}

// Switch dispatches on the cardinality of the sequence. At most two items
// are pulled: the sequence given to Multiple replays them then continues
// with the rest of the source.
func (s *Sequence) Switch(cs Cases) *Sequence {
	return Lazy(func() (*Sequence, tree.Future, error) {
		fut, err := s.fill(2)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		var res *Sequence
		switch len(s.buf) {
		case 0:
			if cs.Empty == nil {
				return Empty(), nil, nil
			}
			res, err = cs.Empty()
		case 1:
			if cs.Singleton == nil {
				return s, nil, nil
			}
			res, err = cs.Singleton(s.buf[0])
		default:
			if cs.Multiple == nil {
				return nil, nil, cardinalityError("more than one item")
			}
			res, err = cs.Multiple(s)
		}
		return res, nil, err
	})
}

// EffectiveBooleanValue computes the effective boolean value of the sequence.
// It can be called again after reporting a future.
func (s *Sequence) EffectiveBooleanValue() (bool, tree.Future, error) {
	fut, err := s.fill(1)
	if err != nil || fut != nil {
		return false, fut, err
	}
	if len(s.buf) == 0 {
		return false, nil, nil
	}
	if IsNode(s.buf[0]) {
		return true, nil, nil
	}
	if fut, err = s.fill(2); err != nil || fut != nil {
		return false, fut, err
	}
	if len(s.buf) > 1 {
		return false, nil, xdm.Errorf(xdm.CodeType, "effective boolean value not defined for sequence of more than one atomic value")
	}
	v, ok := s.buf[0].Atomic()
	if !ok {
		return false, nil, xdm.Errorf(xdm.CodeType, "effective boolean value not defined for %s", kindOf(s.buf[0]))
	}
	return valueTrue(v)
}

func valueTrue(v xdm.Value) (bool, tree.Future, error) {
	switch p := v.Primitive(); {
	case p == xdm.Boolean:
		return v.Bool(), nil, nil
	case v.Stringish():
		return v.String() != "", nil, nil
	case v.Numeric():
		f := v.Float()
		if p == xdm.Decimal {
			d, _ := v.Decimal()
			return !d.IsZero(), nil, nil
		}
		return f != 0 && !math.IsNaN(f), nil, nil
	default:
		return false, nil, xdm.Errorf(xdm.CodeType, "effective boolean value not defined for %s", v.Type)
	}
}

// Atomize converts nodes to their typed value and flattens arrays.
func (s *Sequence) Atomize(ctx Context) *Sequence {
	a := atomizer{
		src:    s,
		facade: ctx.Facade(),
	}
	return Create(&a)
}

type atomizer struct {
	src    *Sequence
	facade tree.Facade
	queue  []Item
	walker *textWalker
}

func (a *atomizer) Next() (Step, error) {
	for {
		if a.walker != nil {
			str, fut := a.walker.walk()
			if fut != nil {
				return pending(fut), nil
			}
			a.walker = nil
			return ready(Atomic(xdm.NewUntyped(str))), nil
		}
		var item Item
		if len(a.queue) > 0 {
			item, a.queue = a.queue[0], a.queue[1:]
		} else {
			st, err := a.src.Next()
			if err != nil || st.State != Ready {
				return st, err
			}
			item = st.Item
		}
		switch x := item.(type) {
		case atomicItem:
			return ready(x), nil
		case nodeItem:
			if a.facade == nil {
				return done, xdm.Errorf(xdm.CodeContextAbsent, "no tree facade available to atomize node")
			}
			switch k := a.facade.Kind(x.node); k {
			case tree.KindElement, tree.KindDocument:
				a.walker = newTextWalker(a.facade, x.node)
			case tree.KindComment, tree.KindInstruction:
				return ready(Atomic(xdm.NewString(a.facade.Data(x.node)))), nil
			default:
				return ready(Atomic(xdm.NewUntyped(a.facade.Data(x.node)))), nil
			}
		case *Array:
			var list []Item
			for _, m := range x.members {
				list = append(list, m...)
			}
			a.queue = append(list, a.queue...)
		case *Map:
			return done, xdm.Errorf(xdm.CodeAtomizeFunc, "map can not be atomized")
		default:
			return done, xdm.Errorf(xdm.CodeType, "item can not be atomized")
		}
	}
}

// textWalker computes the string value of a node by concatenating its text
// descendants. It keeps the nodes still to visit so that the walk can be
// resumed after the facade suspends.
type textWalker struct {
	facade tree.Facade
	stack  []tree.Node
	str    strings.Builder
}

func newTextWalker(f tree.Facade, n tree.Node) *textWalker {
	return &textWalker{
		facade: f,
		stack:  []tree.Node{n},
	}
}

func (w *textWalker) walk() (string, tree.Future) {
	for len(w.stack) > 0 {
		n := w.stack[len(w.stack)-1]
		switch k := w.facade.Kind(n); {
		case k.Textual():
			w.str.WriteString(w.facade.Data(n))
		case k == tree.KindElement || k == tree.KindDocument:
			nodes, fut := w.facade.Children(n)
			if fut != nil {
				return "", fut
			}
			w.stack = w.stack[:len(w.stack)-1]
			for i := len(nodes) - 1; i >= 0; i-- {
				w.stack = append(w.stack, nodes[i])
			}
			continue
		}
		w.stack = w.stack[:len(w.stack)-1]
	}
	return w.str.String(), nil
}

// StringValue returns the string value of a node, waiting on the facade when
// needed.
func StringValue(ctx context.Context, f tree.Facade, n tree.Node) (string, error) {
	switch f.Kind(n) {
	case tree.KindElement, tree.KindDocument:
	default:
		return f.Data(n), nil
	}
	w := newTextWalker(f, n)
	for {
		str, fut := w.walk()
		if fut == nil {
			return str, nil
		}
		if err := wait(ctx, fut); err != nil {
			return "", err
		}
	}
}

// Cache makes the sequence iterable more than once. Every call to Iterate
// returns a new sequence over the same items, the source is pulled only once.
func (s *Sequence) Cache() *Memo {
	return &Memo{src: s}
}

type Memo struct {
	src   *Sequence
	items []Item
	done  bool
}

func memoOf(items []Item) *Memo {
	return &Memo{
		items: items,
		done:  true,
	}
}

func (m *Memo) Iterate() *Sequence {
	var pos int
	return Create(IteratorFunc(func() (Step, error) {
		if pos < len(m.items) {
			pos++
			return ready(m.items[pos-1]), nil
		}
		if m.done {
			return done, nil
		}
		st, err := m.src.Next()
		if err != nil {
			return st, err
		}
		switch st.State {
		case Ready:
			m.items = append(m.items, st.Item)
			pos++
		case Done:
			m.done = true
		}
		return st, nil
	}))
}

// Drain pulls every item of seq, waiting on the futures it reports. ctx only
// bounds the waits: evaluation itself is never interrupted.
func Drain(ctx context.Context, seq *Sequence) ([]Item, error) {
	var items []Item
	for {
		st, err := seq.Next()
		if err != nil {
			return nil, err
		}
		switch st.State {
		case Done:
			return items, nil
		case Pending:
			if err := wait(ctx, st.Future); err != nil {
				return nil, err
			}
		default:
			items = append(items, st.Item)
		}
	}
}

func wait(ctx context.Context, fut tree.Future) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-fut.Done():
		return nil
	}
}

func cardinalityError(msg string) error {
	return xdm.Errorf(xdm.CodeType, "unexpected cardinality: %s", msg)
}
