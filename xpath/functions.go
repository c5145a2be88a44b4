package xpath

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/midbel/xquery/environ"
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

// Builtin is the implementation of a function. It receives one sequence per
// argument and must not pull from them before its result is pulled.
type Builtin func(Context, []*Sequence) (*Sequence, error)

type Function struct {
	Name   tree.QName
	MinArg int
	// MaxArg is negative for variadic functions.
	MaxArg int
	// Static is set when the result only depends on the arguments.
	Static bool
	Call   Builtin
}

func (f Function) accept(arity int) bool {
	return arity >= f.MinArg && (f.MaxArg < 0 || arity <= f.MaxArg)
}

// Registry resolves function names. A registry can be extended by the
// caller, use DefaultRegistry to get a copy of the built-in functions.
type Registry struct {
	env environ.Environ[[]Function]
}

func NewRegistry() *Registry {
	return &Registry{
		env: environ.Empty[[]Function](),
	}
}

var builtins = sync.OnceValue(func() *Registry {
	reg := NewRegistry()
	registerFn(reg)
	registerConstructors(reg)
	registerMap(reg)
	registerArray(reg)
	registerExtensions(reg)
	return reg
})

// DefaultRegistry returns a new registry with every built-in function.
func DefaultRegistry() *Registry {
	return builtins().Clone()
}

func (r *Registry) Clone() *Registry {
	var x Registry
	if c, ok := r.env.(interface {
		Clone() environ.Environ[[]Function]
	}); ok {
		x.env = c.Clone()
	} else {
		x.env = environ.Enclosed(r.env)
	}
	return &x
}

// Define adds fn to the registry. It replaces a function with the same name
// accepting the same number of arguments.
func (r *Registry) Define(fn Function) {
	key := fn.Name.ExpandedName()
	list, _ := r.env.Resolve(key)
	var res []Function
	for _, f := range list {
		if f.MinArg == fn.MinArg && f.MaxArg == fn.MaxArg {
			continue
		}
		res = append(res, f)
	}
	r.env.Define(key, append(res, fn))
}

func (r *Registry) Resolve(name tree.QName, arity int) (Function, error) {
	list, err := r.env.Resolve(name.ExpandedName())
	if err == nil {
		for _, f := range list {
			if f.accept(arity) {
				return f, nil
			}
		}
	}
	return Function{}, xdm.Errorf(xdm.CodeUndefinedFunc, "%s#%d: function not defined", name.QualifiedName(), arity)
}

func (r *Registry) Names() []string {
	return r.env.Names()
}

type call struct {
	base
	fn   Function
	args []Expr
}

func newCall(fn Function, args []Expr) *call {
	e := call{
		fn:   fn,
		args: args,
	}
	e.info = combine(args...)
	e.info.Static = e.info.Static && fn.Static
	return &e
}

func (e *call) find(ctx Context) (*Sequence, error) {
	args := make([]*Sequence, len(e.args))
	for i, a := range e.args {
		seq, err := eval(ctx, a)
		if err != nil {
			return nil, err
		}
		args[i] = seq
	}
	return e.fn.Call(ctx, args)
}

func define(reg *Registry, uri, space, local string, min, max int, static bool, fn Builtin) {
	reg.Define(Function{
		Name:   tree.ExpandedName(local, space, uri),
		MinArg: min,
		MaxArg: max,
		Static: static,
		Call:   fn,
	})
}

// atomics calls fn once every argument is atomized to at most one value.
func atomics(ctx Context, args []*Sequence, fn func([]*xdm.Value) (*Sequence, error)) *Sequence {
	list := make([]func() (*xdm.Value, tree.Future, error), len(args))
	for i := range args {
		list[i] = optionalAtomic(ctx, args[i])
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		values := make([]*xdm.Value, len(list))
		for i, get := range list {
			v, fut, err := get()
			if err != nil || fut != nil {
				return nil, fut, err
			}
			values[i] = v
		}
		res, err := fn(values)
		return res, nil, err
	})
}

// collect calls fn once every argument is materialized.
func collect(args []*Sequence, fn func([][]Item) (*Sequence, error)) *Sequence {
	return Lazy(func() (*Sequence, tree.Future, error) {
		values := make([][]Item, len(args))
		for i, a := range args {
			items, fut, err := a.Collect()
			if err != nil || fut != nil {
				return nil, fut, err
			}
			values[i] = items
		}
		res, err := fn(values)
		return res, nil, err
	})
}

// contextOr returns the first argument or the context item when there is
// none.
func contextOr(ctx Context, args []*Sequence) (*Sequence, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if ctx.Item == nil {
		return nil, contextAbsent()
	}
	return Singleton(ctx.Item), nil
}

func stringOf(v *xdm.Value) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func registerFn(reg *Registry) {
	fn := func(local string, min, max int, static bool, call Builtin) {
		define(reg, NamespaceFn, "fn", local, min, max, static, call)
	}
	fn("true", 0, 0, true, fnTrue)
	fn("false", 0, 0, true, fnFalse)
	fn("boolean", 1, 1, true, fnBoolean)
	fn("not", 1, 1, true, fnNot)
	fn("count", 1, 1, true, fnCount)
	fn("empty", 1, 1, true, fnEmpty)
	fn("exists", 1, 1, true, fnExists)
	fn("position", 0, 0, false, fnPosition)
	fn("last", 0, 0, false, fnLast)
	fn("string", 0, 1, false, fnString)
	fn("data", 0, 1, false, fnData)
	fn("number", 0, 1, false, fnNumber)
	fn("concat", 2, -1, true, fnConcat)
	fn("string-length", 0, 1, false, fnStringLength)
	fn("string-join", 1, 2, true, fnStringJoin)
	fn("contains", 2, 2, true, fnContains)
	fn("starts-with", 2, 2, true, fnStartsWith)
	fn("ends-with", 2, 2, true, fnEndsWith)
	fn("substring", 2, 3, true, fnSubstring)
	fn("upper-case", 1, 1, true, fnUpperCase)
	fn("lower-case", 1, 1, true, fnLowerCase)
	fn("normalize-space", 0, 1, false, fnNormalizeSpace)
	fn("sum", 1, 2, true, fnSum)
	fn("abs", 1, 1, true, fnAbs)
	fn("name", 0, 1, false, fnName)
	fn("local-name", 0, 1, false, fnLocalName)
	fn("root", 0, 1, false, fnRoot)
	fn("reverse", 1, 1, true, fnReverse)
	fn("head", 1, 1, true, fnHead)
	fn("tail", 1, 1, true, fnTail)
	fn("distinct-values", 1, 1, true, fnDistinctValues)
	fn("error", 0, 3, false, fnError)
	fn("trace", 1, 2, false, fnTrace)
	fn("format-integer", 2, 2, true, fnFormatInteger)
}

func fnTrue(_ Context, _ []*Sequence) (*Sequence, error) {
	return boolSeq(true), nil
}

func fnFalse(_ Context, _ []*Sequence) (*Sequence, error) {
	return boolSeq(false), nil
}

func fnBoolean(_ Context, args []*Sequence) (*Sequence, error) {
	return Lazy(func() (*Sequence, tree.Future, error) {
		ok, fut, err := args[0].EffectiveBooleanValue()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		return boolSeq(ok), nil, nil
	}), nil
}

func fnNot(_ Context, args []*Sequence) (*Sequence, error) {
	return Lazy(func() (*Sequence, tree.Future, error) {
		ok, fut, err := args[0].EffectiveBooleanValue()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		return boolSeq(!ok), nil, nil
	}), nil
}

func fnCount(_ Context, args []*Sequence) (*Sequence, error) {
	return args[0].MapAll(func(items []Item) (*Sequence, error) {
		return intSeq(len(items)), nil
	}), nil
}

func fnEmpty(_ Context, args []*Sequence) (*Sequence, error) {
	return Lazy(func() (*Sequence, tree.Future, error) {
		fut, err := args[0].fill(1)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		return boolSeq(len(args[0].buf) == 0), nil, nil
	}), nil
}

func fnExists(_ Context, args []*Sequence) (*Sequence, error) {
	return Lazy(func() (*Sequence, tree.Future, error) {
		fut, err := args[0].fill(1)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		return boolSeq(len(args[0].buf) > 0), nil, nil
	}), nil
}

func fnPosition(ctx Context, _ []*Sequence) (*Sequence, error) {
	if ctx.Item == nil {
		return nil, contextAbsent()
	}
	return intSeq(ctx.Index), nil
}

func fnLast(ctx Context, _ []*Sequence) (*Sequence, error) {
	if ctx.Item == nil {
		return nil, contextAbsent()
	}
	return intSeq(ctx.Size), nil
}

func fnString(ctx Context, args []*Sequence) (*Sequence, error) {
	seq, err := contextOr(ctx, args)
	if err != nil {
		return nil, err
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		fut, err := seq.fill(2)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		switch len(seq.buf) {
		case 0:
			return stringSeq(""), nil, nil
		case 1:
		default:
			return nil, nil, cardinalityError("fn:string expects at most one item")
		}
		switch x := seq.buf[0].(type) {
		case *Map, *Array:
			return nil, nil, xdm.Errorf(xdm.CodeAtomizeFunc, "fn:string can not be applied to %s", kindOf(x))
		}
		atoms := Singleton(seq.buf[0]).Atomize(ctx)
		return atoms.MapAll(func(items []Item) (*Sequence, error) {
			var parts []string
			for _, i := range items {
				v, _ := i.Atomic()
				parts = append(parts, v.String())
			}
			return stringSeq(strings.Join(parts, " ")), nil
		}), nil, nil
	}), nil
}

func fnData(ctx Context, args []*Sequence) (*Sequence, error) {
	seq, err := contextOr(ctx, args)
	if err != nil {
		return nil, err
	}
	return seq.Atomize(ctx), nil
}

func fnNumber(ctx Context, args []*Sequence) (*Sequence, error) {
	seq, err := contextOr(ctx, args)
	if err != nil {
		return nil, err
	}
	return atomics(ctx, []*Sequence{seq}, func(values []*xdm.Value) (*Sequence, error) {
		nan := Singleton(Atomic(xdm.NewDouble(math.NaN())))
		if values[0] == nil {
			return nan, nil
		}
		v, err := xdm.Cast(*values[0], xdm.Double)
		if err != nil {
			return nan, nil
		}
		return Singleton(Atomic(v)), nil
	}), nil
}

func fnConcat(ctx Context, args []*Sequence) (*Sequence, error) {
	return atomics(ctx, args, func(values []*xdm.Value) (*Sequence, error) {
		var str strings.Builder
		for _, v := range values {
			str.WriteString(stringOf(v))
		}
		return stringSeq(str.String()), nil
	}), nil
}

func fnStringLength(ctx Context, args []*Sequence) (*Sequence, error) {
	seq, err := fnString(ctx, args)
	if err != nil {
		return nil, err
	}
	return atomics(ctx, []*Sequence{seq}, func(values []*xdm.Value) (*Sequence, error) {
		return intSeq(len([]rune(stringOf(values[0])))), nil
	}), nil
}

func fnStringJoin(ctx Context, args []*Sequence) (*Sequence, error) {
	var (
		items = args[0].Atomize(ctx)
		sep   func() (*xdm.Value, tree.Future, error)
	)
	if len(args) > 1 {
		sep = optionalAtomic(ctx, args[1])
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		list, fut, err := items.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		var delim string
		if sep != nil {
			v, fut, err := sep()
			if err != nil || fut != nil {
				return nil, fut, err
			}
			delim = stringOf(v)
		}
		parts := make([]string, 0, len(list))
		for _, i := range list {
			v, _ := i.Atomic()
			parts = append(parts, v.String())
		}
		return stringSeq(strings.Join(parts, delim)), nil, nil
	}), nil
}

func stringPredicate(test func(string, string) bool) Builtin {
	return func(ctx Context, args []*Sequence) (*Sequence, error) {
		return atomics(ctx, args, func(values []*xdm.Value) (*Sequence, error) {
			return boolSeq(test(stringOf(values[0]), stringOf(values[1]))), nil
		}), nil
	}
}

var (
	fnContains   = stringPredicate(strings.Contains)
	fnStartsWith = stringPredicate(strings.HasPrefix)
	fnEndsWith   = stringPredicate(strings.HasSuffix)
)

func stringMapper(fn func(string) string) Builtin {
	return func(ctx Context, args []*Sequence) (*Sequence, error) {
		return atomics(ctx, args, func(values []*xdm.Value) (*Sequence, error) {
			return stringSeq(fn(stringOf(values[0]))), nil
		}), nil
	}
}

var (
	fnUpperCase = stringMapper(strings.ToUpper)
	fnLowerCase = stringMapper(strings.ToLower)
)

func fnNormalizeSpace(ctx Context, args []*Sequence) (*Sequence, error) {
	seq, err := fnString(ctx, args)
	if err != nil {
		return nil, err
	}
	return stringMapper(xdm.Collapse.Normalize)(ctx, []*Sequence{seq})
}

func fnSubstring(ctx Context, args []*Sequence) (*Sequence, error) {
	return atomics(ctx, args, func(values []*xdm.Value) (*Sequence, error) {
		var (
			str   = []rune(stringOf(values[0]))
			start = math.Inf(-1)
			end   = math.Inf(1)
		)
		if values[1] != nil {
			start = math.RoundToEven(numberOf(*values[1]))
		}
		if len(values) > 2 && values[2] != nil {
			end = start + math.RoundToEven(numberOf(*values[2]))
		}
		var res []rune
		for i, r := range str {
			pos := float64(i + 1)
			if pos >= start && pos < end {
				res = append(res, r)
			}
		}
		return stringSeq(string(res)), nil
	}), nil
}

func numberOf(v xdm.Value) float64 {
	if v.Numeric() {
		return v.Float()
	}
	x, err := xdm.Cast(v, xdm.Double)
	if err != nil {
		return math.NaN()
	}
	return x.Float()
}

func fnSum(ctx Context, args []*Sequence) (*Sequence, error) {
	var (
		items = args[0].Atomize(ctx)
		zero  *Sequence
	)
	if len(args) > 1 {
		zero = args[1]
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		list, fut, err := items.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		if len(list) == 0 {
			if zero != nil {
				return zero, nil, nil
			}
			return intSeq(0), nil, nil
		}
		var total xdm.Value
		for i, item := range list {
			v, _ := item.Atomic()
			if v.Type == xdm.UntypedAtomic {
				if v, err = xdm.Cast(v, xdm.Double); err != nil {
					return nil, nil, err
				}
			}
			if i == 0 {
				total = v
				continue
			}
			if total, err = xdm.Arithmetic(xdm.OpAdd, total, v); err != nil {
				return nil, nil, err
			}
		}
		return Singleton(Atomic(total)), nil, nil
	}), nil
}

func fnAbs(ctx Context, args []*Sequence) (*Sequence, error) {
	return atomics(ctx, args, func(values []*xdm.Value) (*Sequence, error) {
		if values[0] == nil {
			return Empty(), nil
		}
		v := *values[0]
		if !v.Numeric() {
			return nil, typeError("fn:abs expects a number, got %s", v.Type)
		}
		if d, ok := v.Decimal(); ok && !xdm.InstanceOf(v.Type, xdm.Double) && !xdm.InstanceOf(v.Type, xdm.Float) {
			if d.IsNegative() {
				return xdmSeq(xdm.Negate(v))
			}
			return Singleton(Atomic(v)), nil
		}
		if v.Float() < 0 || math.Signbit(v.Float()) {
			return xdmSeq(xdm.Negate(v))
		}
		return Singleton(Atomic(v)), nil
	}), nil
}

func xdmSeq(v xdm.Value, err error) (*Sequence, error) {
	if err != nil {
		return nil, err
	}
	return Singleton(Atomic(v)), nil
}

// nodeArg gives the optional node of the first argument, or the context
// node.
func nodeArg(ctx Context, args []*Sequence, fn func(tree.Node) (*Sequence, tree.Future, error)) (*Sequence, error) {
	seq, err := contextOr(ctx, args)
	if err != nil {
		return nil, err
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		fut, err := seq.fill(2)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		switch len(seq.buf) {
		case 0:
			return fn(nil)
		case 1:
		default:
			return nil, nil, cardinalityError("expected at most one node")
		}
		n, ok := seq.buf[0].Node()
		if !ok {
			if len(args) == 0 {
				return nil, nil, contextNotNode()
			}
			return nil, nil, typeError("node expected, got %s", kindOf(seq.buf[0]))
		}
		return fn(n)
	}), nil
}

func fnName(ctx Context, args []*Sequence) (*Sequence, error) {
	return nodeArg(ctx, args, func(n tree.Node) (*Sequence, tree.Future, error) {
		if n == nil {
			return stringSeq(""), nil, nil
		}
		return stringSeq(ctx.Facade().Name(n).QualifiedName()), nil, nil
	})
}

func fnLocalName(ctx Context, args []*Sequence) (*Sequence, error) {
	return nodeArg(ctx, args, func(n tree.Node) (*Sequence, tree.Future, error) {
		if n == nil {
			return stringSeq(""), nil, nil
		}
		return stringSeq(ctx.Facade().Name(n).LocalName()), nil, nil
	})
}

func fnRoot(ctx Context, args []*Sequence) (*Sequence, error) {
	return nodeArg(ctx, args, func(n tree.Node) (*Sequence, tree.Future, error) {
		if n == nil {
			return Empty(), nil, nil
		}
		for {
			parent, fut := ctx.Facade().Parent(n)
			if fut != nil {
				return nil, fut, nil
			}
			if parent == nil {
				return Singleton(NodeItem(n)), nil, nil
			}
			n = parent
		}
	})
}

func fnReverse(_ Context, args []*Sequence) (*Sequence, error) {
	return args[0].MapAll(func(items []Item) (*Sequence, error) {
		list := make([]Item, len(items))
		for i := range items {
			list[len(items)-1-i] = items[i]
		}
		return FromItems(list), nil
	}), nil
}

func fnHead(_ Context, args []*Sequence) (*Sequence, error) {
	return nth(args[0], 1), nil
}

func fnTail(_ Context, args []*Sequence) (*Sequence, error) {
	var first bool
	seq := args[0]
	return Create(IteratorFunc(func() (Step, error) {
		for !first {
			st, err := seq.Next()
			if err != nil || st.State != Ready {
				return st, err
			}
			first = true
		}
		return seq.Next()
	})), nil
}

func fnDistinctValues(ctx Context, args []*Sequence) (*Sequence, error) {
	var (
		atoms = args[0].Atomize(ctx)
		seen  = make(map[string]struct{})
	)
	return Create(IteratorFunc(func() (Step, error) {
		for {
			st, err := atoms.Next()
			if err != nil || st.State != Ready {
				return st, err
			}
			v, _ := st.Item.Atomic()
			key := v.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			return st, nil
		}
	})), nil
}

func fnError(ctx Context, args []*Sequence) (*Sequence, error) {
	if len(args) == 0 {
		return nil, xdm.Errorf(xdm.CodeUnidentified, "error raised by fn:error")
	}
	return atomics(ctx, args[:min(len(args), 2)], func(values []*xdm.Value) (*Sequence, error) {
		code := xdm.CodeUnidentified
		if v := values[0]; v != nil {
			if v.Primitive() == xdm.QName {
				code = v.QName().LocalName()
			} else {
				code = v.String()
			}
		}
		msg := "error raised by fn:error"
		if len(values) > 1 && values[1] != nil {
			msg = values[1].String()
		}
		return nil, xdm.Errorf(code, "%s", msg)
	}), nil
}

func fnTrace(ctx Context, args []*Sequence) (*Sequence, error) {
	var label func() (*xdm.Value, tree.Future, error)
	if len(args) > 1 {
		label = optionalAtomic(ctx, args[1])
	}
	return args[0].MapAll(func(items []Item) (*Sequence, error) {
		var name string
		if label != nil {
			v, _, err := label()
			if err != nil {
				return nil, err
			}
			name = stringOf(v)
		}
		values := make([]string, 0, len(items))
		for _, i := range items {
			values = append(values, traceItem(ctx, i))
		}
		ctx.Logger.Info("trace", "label", name, "count", len(items), "items", values)
		return FromItems(items), nil
	}), nil
}

func traceItem(ctx Context, item Item) string {
	switch x := item.(type) {
	case *Map:
		return fmt.Sprintf("map(%d)", x.Len())
	case *Array:
		return fmt.Sprintf("array(%d)", x.Len())
	}
	if v, ok := item.Atomic(); ok {
		return v.String()
	}
	n, _ := item.Node()
	if f := ctx.Facade(); f != nil {
		return fmt.Sprintf("%s(%s)", f.Kind(n), f.Name(n))
	}
	return "node"
}

// registerConstructors defines the xs:T#1 constructor function of every
// concrete atomic type.
func registerConstructors(reg *Registry) {
	lattice := xdm.Builtins()
	for i := 0; i < lattice.Len(); i++ {
		t, ok := lattice.Get(xdm.TypeID(i))
		if !ok || !t.Atomic() || xdm.CastTarget(t.ID) != nil {
			continue
		}
		target := t.ID
		local := strings.TrimPrefix(t.Name, "xs:")
		define(reg, NamespaceXs, "xs", local, 1, 1, true, func(ctx Context, args []*Sequence) (*Sequence, error) {
			return atomics(ctx, args, func(values []*xdm.Value) (*Sequence, error) {
				if values[0] == nil {
					return Empty(), nil
				}
				return xdmSeq(xdm.Cast(*values[0], target))
			}), nil
		})
	}
}
