package xpath

import (
	"slices"
	"time"

	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

func registerMap(reg *Registry) {
	fn := func(local string, min, max int, call Builtin) {
		define(reg, NamespaceMap, "map", local, min, max, true, call)
	}
	fn("merge", 1, 2, mapMerge)
	fn("get", 2, 2, mapGet)
	fn("contains", 2, 2, mapContains)
	fn("keys", 1, 1, mapKeys)
	fn("size", 1, 1, mapSize)
	fn("put", 3, 3, mapPut)
	fn("remove", 2, 2, mapRemove)
	fn("entry", 2, 2, mapEntry)
}

func registerArray(reg *Registry) {
	fn := func(local string, min, max int, call Builtin) {
		define(reg, NamespaceArray, "array", local, min, max, true, call)
	}
	fn("size", 1, 1, arraySize)
	fn("get", 2, 2, arrayGet)
	fn("append", 2, 2, arrayAppend)
	fn("head", 1, 1, arrayHead)
	fn("tail", 1, 1, arrayTail)
	fn("reverse", 1, 1, arrayReverse)
	fn("join", 1, 1, arrayJoin)
	fn("flatten", 1, 1, arrayFlatten)
}

func oneMap(items []Item) (*Map, error) {
	if len(items) != 1 {
		return nil, cardinalityError("exactly one map expected")
	}
	m, ok := items[0].(*Map)
	if !ok {
		return nil, typeError("map expected, got %s", kindOf(items[0]))
	}
	return m, nil
}

func oneArray(items []Item) (*Array, error) {
	if len(items) != 1 {
		return nil, cardinalityError("exactly one array expected")
	}
	a, ok := items[0].(*Array)
	if !ok {
		return nil, typeError("array expected, got %s", kindOf(items[0]))
	}
	return a, nil
}

func oneKey(items []Item) (xdm.Value, error) {
	if len(items) != 1 {
		return xdm.Value{}, cardinalityError("exactly one key expected")
	}
	v, ok := items[0].Atomic()
	if !ok {
		return xdm.Value{}, typeError("key must be atomic, got %s", kindOf(items[0]))
	}
	return v, nil
}

type duplicates int8

const (
	useFirst duplicates = iota
	useLast
	useAny
	combineAll
	rejectAll
)

func mergeOption(items []Item) (duplicates, error) {
	if len(items) == 0 {
		return useFirst, nil
	}
	opts, err := oneMap(items)
	if err != nil {
		return useFirst, err
	}
	val, ok := opts.Get(xdm.NewString("duplicates"))
	if !ok || len(val) == 0 {
		return useFirst, nil
	}
	v, ok := val[0].Atomic()
	if !ok {
		return useFirst, typeError("duplicates option must be a string")
	}
	switch v.String() {
	case "use-first":
		return useFirst, nil
	case "use-last":
		return useLast, nil
	case "use-any":
		return useAny, nil
	case "combine":
		return combineAll, nil
	case "reject":
		return rejectAll, nil
	default:
		return useFirst, xdm.Errorf(xdm.CodeInvalidValue, "%s: invalid value for duplicates option", v)
	}
}

func mapMerge(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		var opts []Item
		if len(values) > 1 {
			opts = values[1]
		}
		dup, err := mergeOption(opts)
		if err != nil {
			return nil, err
		}
		res := NewMap()
		for _, i := range values[0] {
			m, ok := i.(*Map)
			if !ok {
				return nil, typeError("map:merge expects maps, got %s", kindOf(i))
			}
			for _, k := range m.keys {
				items, _ := m.Get(k)
				prev, exists := res.Get(k)
				if !exists {
					res.set(k, items)
					continue
				}
				switch dup {
				case rejectAll:
					return nil, xdm.Errorf(xdm.CodeDuplicateKey, "%s: duplicate key in map:merge", k)
				case useLast:
					res.set(k, items)
				case combineAll:
					res.set(k, slices.Concat(prev, items))
				}
			}
		}
		return Singleton(res), nil
	}), nil
}

func mapGet(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		m, err := oneMap(values[0])
		if err != nil {
			return nil, err
		}
		k, err := oneKey(values[1])
		if err != nil {
			return nil, err
		}
		items, _ := m.Get(k)
		return FromItems(items), nil
	}), nil
}

func mapContains(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		m, err := oneMap(values[0])
		if err != nil {
			return nil, err
		}
		k, err := oneKey(values[1])
		if err != nil {
			return nil, err
		}
		return boolSeq(m.Contains(k)), nil
	}), nil
}

func mapKeys(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		m, err := oneMap(values[0])
		if err != nil {
			return nil, err
		}
		return FromValues(m.Keys()...), nil
	}), nil
}

func mapSize(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		m, err := oneMap(values[0])
		if err != nil {
			return nil, err
		}
		return intSeq(m.Len()), nil
	}), nil
}

func mapPut(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		m, err := oneMap(values[0])
		if err != nil {
			return nil, err
		}
		k, err := oneKey(values[1])
		if err != nil {
			return nil, err
		}
		return Singleton(m.Put(k, values[2])), nil
	}), nil
}

func mapRemove(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		m, err := oneMap(values[0])
		if err != nil {
			return nil, err
		}
		for _, i := range values[1] {
			k, err := oneKey([]Item{i})
			if err != nil {
				return nil, err
			}
			m = m.Remove(k)
		}
		return Singleton(m), nil
	}), nil
}

func mapEntry(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		k, err := oneKey(values[0])
		if err != nil {
			return nil, err
		}
		return Singleton(NewMap().Put(k, values[1])), nil
	}), nil
}

func arraySize(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		a, err := oneArray(values[0])
		if err != nil {
			return nil, err
		}
		return intSeq(a.Len()), nil
	}), nil
}

func arrayGet(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		a, err := oneArray(values[0])
		if err != nil {
			return nil, err
		}
		if len(values[1]) != 1 {
			return nil, cardinalityError("exactly one position expected")
		}
		pos, err := arrayIndex(values[1][0])
		if err != nil {
			return nil, err
		}
		items, err := a.Get(pos)
		if err != nil {
			return nil, err
		}
		return FromItems(items), nil
	}), nil
}

func arrayAppend(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		a, err := oneArray(values[0])
		if err != nil {
			return nil, err
		}
		members := append(a.Members(), values[1])
		return Singleton(NewArray(members...)), nil
	}), nil
}

func arrayHead(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		a, err := oneArray(values[0])
		if err != nil {
			return nil, err
		}
		items, err := a.Get(1)
		if err != nil {
			return nil, err
		}
		return FromItems(items), nil
	}), nil
}

func arrayTail(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		a, err := oneArray(values[0])
		if err != nil {
			return nil, err
		}
		if a.Len() == 0 {
			return nil, xdm.Errorf(xdm.CodeArrayIndex, "array:tail on empty array")
		}
		return Singleton(NewArray(a.Members()[1:]...)), nil
	}), nil
}

func arrayReverse(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		a, err := oneArray(values[0])
		if err != nil {
			return nil, err
		}
		members := a.Members()
		slices.Reverse(members)
		return Singleton(NewArray(members...)), nil
	}), nil
}

func arrayJoin(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		var members [][]Item
		for _, i := range values[0] {
			a, err := oneArray([]Item{i})
			if err != nil {
				return nil, err
			}
			members = append(members, a.members...)
		}
		return Singleton(NewArray(members...)), nil
	}), nil
}

func arrayFlatten(_ Context, args []*Sequence) (*Sequence, error) {
	return collect(args, func(values [][]Item) (*Sequence, error) {
		return FromItems(flatten(values[0])), nil
	}), nil
}

func flatten(items []Item) []Item {
	var res []Item
	for _, i := range items {
		a, ok := i.(*Array)
		if !ok {
			res = append(res, i)
			continue
		}
		for _, m := range a.members {
			res = append(res, flatten(m)...)
		}
	}
	return res
}

func registerExtensions(reg *Registry) {
	define(reg, NamespaceXq, "xq", "sleep", 1, 1, false, xqSleep)
	define(reg, NamespaceXq, "xq", "related", 2, 2, false, xqRelated)
}

// xqSleep suspends the evaluation for the given number of milliseconds then
// gives the empty sequence.
func xqSleep(ctx Context, args []*Sequence) (*Sequence, error) {
	var sig tree.Signal
	return atomics(ctx, args, func(values []*xdm.Value) (*Sequence, error) {
		var ms float64
		if values[0] != nil {
			ms = numberOf(*values[0])
		}
		return Lazy(func() (*Sequence, tree.Future, error) {
			if ms <= 0 {
				return Empty(), nil, nil
			}
			if sig == nil {
				sig = tree.NewSignal()
				after(ms, sig.Resolve)
				return nil, sig, nil
			}
			select {
			case <-sig.Done():
				return Empty(), nil, nil
			default:
				return nil, sig, nil
			}
		}), nil
	}), nil
}

func after(ms float64, fn func()) {
	time.AfterFunc(time.Duration(ms*float64(time.Millisecond)), fn)
}

// xqRelated gives the nodes linked to a node by a named relation of the host
// tree.
func xqRelated(ctx Context, args []*Sequence) (*Sequence, error) {
	nodes := args[0]
	rel := optionalAtomic(ctx, args[1])
	return Lazy(func() (*Sequence, tree.Future, error) {
		fut, err := nodes.fill(2)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		if len(nodes.buf) != 1 {
			return nil, nil, cardinalityError("xq:related expects exactly one node")
		}
		n, ok := nodes.buf[0].Node()
		if !ok {
			return nil, nil, typeError("xq:related expects a node, got %s", kindOf(nodes.buf[0]))
		}
		name, fut, err := rel()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		list, fut := ctx.Facade().Related(n, stringOf(name))
		if fut != nil {
			return nil, fut, nil
		}
		return FromItems(normalize(ctx.Facade(), nodeItems(list))), nil, nil
	}), nil
}
