package xpath

import (
	"slices"

	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

// Map is an immutable map item. Keys are atomic values compared with the
// same-key rule of the data model, entries keep their insertion order.
type Map struct {
	keys   []xdm.Value
	values map[string][]Item
}

func NewMap() *Map {
	return &Map{
		values: make(map[string][]Item),
	}
}

func (m *Map) Node() (tree.Node, bool) {
	return nil, false
}

func (m *Map) Atomic() (xdm.Value, bool) {
	return xdm.Value{}, false
}

func (m *Map) Len() int {
	return len(m.keys)
}

func (m *Map) Keys() []xdm.Value {
	return slices.Clone(m.keys)
}

func (m *Map) Get(key xdm.Value) ([]Item, bool) {
	items, ok := m.values[key.Key()]
	return items, ok
}

func (m *Map) Contains(key xdm.Value) bool {
	_, ok := m.values[key.Key()]
	return ok
}

// Put returns a new map where key is associated with items.
func (m *Map) Put(key xdm.Value, items []Item) *Map {
	res := m.clone()
	res.set(key, items)
	return res
}

// Remove returns a new map without key.
func (m *Map) Remove(key xdm.Value) *Map {
	k := key.Key()
	if _, ok := m.values[k]; !ok {
		return m
	}
	res := m.clone()
	delete(res.values, k)
	res.keys = slices.DeleteFunc(res.keys, func(v xdm.Value) bool {
		return v.Key() == k
	})
	return res
}

func (m *Map) set(key xdm.Value, items []Item) {
	k := key.Key()
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[k] = items
}

func (m *Map) clone() *Map {
	res := Map{
		keys:   slices.Clone(m.keys),
		values: make(map[string][]Item, len(m.values)),
	}
	for k, v := range m.values {
		res.values[k] = v
	}
	return &res
}

// Array is an immutable array item: an ordered list of members, each member
// being a sequence.
type Array struct {
	members [][]Item
}

func NewArray(members ...[]Item) *Array {
	return &Array{
		members: members,
	}
}

func (a *Array) Node() (tree.Node, bool) {
	return nil, false
}

func (a *Array) Atomic() (xdm.Value, bool) {
	return xdm.Value{}, false
}

func (a *Array) Len() int {
	return len(a.members)
}

func (a *Array) Members() [][]Item {
	return slices.Clone(a.members)
}

// Get returns the member at the 1-based position pos.
func (a *Array) Get(pos int) ([]Item, error) {
	if pos < 1 || pos > len(a.members) {
		return nil, xdm.Errorf(xdm.CodeArrayIndex, "array index %d out of bounds (size %d)", pos, len(a.members))
	}
	return a.members[pos-1], nil
}

type entry struct {
	key   Expr
	value Expr
}

type mapExpr struct {
	base
	entries []entry
}

func newMapExpr(entries []entry) *mapExpr {
	e := mapExpr{
		entries: entries,
	}
	var list []Expr
	for _, x := range entries {
		list = append(list, x.key, x.value)
	}
	e.info = combine(list...)
	return &e
}

func (e *mapExpr) find(ctx Context) (*Sequence, error) {
	var (
		keys   = make([]func() (*xdm.Value, tree.Future, error), len(e.entries))
		values = make([]*Sequence, len(e.entries))
	)
	for i, x := range e.entries {
		k, err := eval(ctx, x.key)
		if err != nil {
			return nil, err
		}
		v, err := eval(ctx, x.value)
		if err != nil {
			return nil, err
		}
		keys[i], values[i] = optionalAtomic(ctx, k), v
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		m := NewMap()
		for i := range e.entries {
			k, fut, err := keys[i]()
			if err != nil || fut != nil {
				return nil, fut, err
			}
			if k == nil {
				return nil, nil, typeError("map key can not be the empty sequence")
			}
			items, fut, err := values[i].Collect()
			if err != nil || fut != nil {
				return nil, fut, err
			}
			if m.Contains(*k) {
				return nil, nil, xdm.Errorf(xdm.CodeDuplicateMapKey, "%s: duplicate key in map constructor", k)
			}
			m.set(*k, items)
		}
		return Singleton(m), nil, nil
	}), nil
}

// arrayExpr is either the square constructor, one member per expression, or
// the curly constructor, one member per item.
type arrayExpr struct {
	base
	all   []Expr
	curly bool
}

func newArrayExpr(all []Expr, curly bool) *arrayExpr {
	e := arrayExpr{
		all:   all,
		curly: curly,
	}
	e.info = combine(all...)
	return &e
}

func (e *arrayExpr) find(ctx Context) (*Sequence, error) {
	list := make([]*Sequence, len(e.all))
	for i, x := range e.all {
		seq, err := eval(ctx, x)
		if err != nil {
			return nil, err
		}
		list[i] = seq
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		var members [][]Item
		for _, seq := range list {
			items, fut, err := seq.Collect()
			if err != nil || fut != nil {
				return nil, fut, err
			}
			if !e.curly {
				members = append(members, items)
				continue
			}
			for _, i := range items {
				members = append(members, []Item{i})
			}
		}
		return Singleton(NewArray(members...)), nil, nil
	}), nil
}

// lookup implements the ? operator. A nil key is the wildcard.
type lookup struct {
	base
	expr Expr
	key  Expr
}

func newLookup(expr, key Expr) *lookup {
	e := lookup{
		expr: expr,
		key:  key,
	}
	e.info = combine(expr, key)
	return &e
}

func (e *lookup) find(ctx Context) (*Sequence, error) {
	seq, err := eval(ctx, e.expr)
	if err != nil {
		return nil, err
	}
	var keys *Sequence
	if e.key != nil {
		k, err := eval(ctx, e.key)
		if err != nil {
			return nil, err
		}
		keys = k.Atomize(ctx)
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		items, fut, err := seq.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		var list []Item
		if keys != nil {
			if list, fut, err = keys.Collect(); err != nil || fut != nil {
				return nil, fut, err
			}
		}
		var res []Item
		for _, i := range items {
			found, err := lookupItem(i, list, keys == nil)
			if err != nil {
				return nil, nil, err
			}
			res = append(res, found...)
		}
		return FromItems(res), nil, nil
	}), nil
}

func lookupItem(item Item, keys []Item, all bool) ([]Item, error) {
	var res []Item
	switch x := item.(type) {
	case *Map:
		if all {
			for _, k := range x.keys {
				v, _ := x.Get(k)
				res = append(res, v...)
			}
			return res, nil
		}
		for _, k := range keys {
			v, _ := k.Atomic()
			found, _ := x.Get(v)
			res = append(res, found...)
		}
	case *Array:
		if all {
			for _, m := range x.members {
				res = append(res, m...)
			}
			return res, nil
		}
		for _, k := range keys {
			pos, err := arrayIndex(k)
			if err != nil {
				return nil, err
			}
			found, err := x.Get(pos)
			if err != nil {
				return nil, err
			}
			res = append(res, found...)
		}
	default:
		return nil, typeError("lookup operator requires a map or an array, got %s", kindOf(item))
	}
	return res, nil
}

func arrayIndex(item Item) (int, error) {
	v, ok := item.Atomic()
	if !ok || !xdm.InstanceOf(v.Type, xdm.Integer) {
		return 0, typeError("array index must be an integer")
	}
	d, _ := v.Decimal()
	return int(d.IntPart()), nil
}

// dynCall applies a map or an array to a single argument, as in $m("key")
// or $a(1).
type dynCall struct {
	base
	expr Expr
	args []Expr
}

func newDynCall(expr Expr, args []Expr) *dynCall {
	e := dynCall{
		expr: expr,
		args: args,
	}
	e.info = combine(append([]Expr{expr}, args...)...)
	return &e
}

func (e *dynCall) find(ctx Context) (*Sequence, error) {
	if len(e.args) != 1 {
		return nil, typeError("map and array lookup expect exactly one argument")
	}
	seq, err := eval(ctx, e.expr)
	if err != nil {
		return nil, err
	}
	arg, err := eval(ctx, e.args[0])
	if err != nil {
		return nil, err
	}
	get := optionalAtomic(ctx, arg)
	return Lazy(func() (*Sequence, tree.Future, error) {
		fut, err := seq.fill(2)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		if len(seq.buf) != 1 {
			return nil, nil, cardinalityError("function item expected")
		}
		key, fut, err := get()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		if key == nil {
			return nil, nil, typeError("lookup key can not be the empty sequence")
		}
		items, err := lookupItem(seq.buf[0], []Item{Atomic(*key)}, false)
		if err != nil {
			return nil, nil, err
		}
		return FromItems(items), nil, nil
	}), nil
}
