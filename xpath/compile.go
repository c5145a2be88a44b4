package xpath

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/midbel/xquery/pul"
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
	"github.com/shopspring/decimal"
)

// word operators are only recognized in operator position.
const (
	opAnd = -(iota + 2000)
	opOr
	opDiv
	opIdiv
	opMod
	opValEq
	opValNe
	opValLt
	opValLe
	opValGt
	opValGe
	opIs
	opRange
	opIntersect
	opExcept
	opInstanceOf
	opTreatAs
	opCastableAs
	opCastAs
)

var operators = map[string]rune{
	kwAnd:       opAnd,
	kwOr:        opOr,
	kwDiv:       opDiv,
	kwIdiv:      opIdiv,
	kwMod:       opMod,
	kwEq:        opValEq,
	kwNe:        opValNe,
	kwLt:        opValLt,
	kwLe:        opValLe,
	kwGt:        opValGt,
	kwGe:        opValGe,
	kwIs:        opIs,
	kwTo:        opRange,
	kwUnion:     opUnion,
	kwIntersect: opIntersect,
	kwExcept:    opExcept,
	kwInstance:  opInstanceOf,
	kwTreat:     opTreatAs,
	kwCastable:  opCastableAs,
	kwCast:      opCastAs,
}

// Compiler is a Pratt parser producing expressions ready to be evaluated.
// Prefixes, function names and variables are resolved while compiling.
type Compiler struct {
	scan *Scanner
	curr Token
	peek Token

	Tracer
	cfg    Config
	scopes []string

	infix  map[rune]func(Expr) (Expr, error)
	prefix map[rune]func() (Expr, error)
}

func NewCompiler(r io.Reader, options ...Option) *Compiler {
	cp := Compiler{
		scan:   Scan(r),
		Tracer: discardTracer{},
		cfg:    NewConfig(options...),
	}

	cp.infix = map[rune]func(Expr) (Expr, error){
		currLevel:    cp.compileStep,
		anyLevel:     cp.compileDescendantStep,
		begPred:      cp.compileFilter,
		begGrp:       cp.compileDynCall,
		opQuestion:   cp.compileLookup,
		opBang:       cp.compileSimpleMap,
		opArrow:      cp.compileArrow,
		opRange:      cp.compileRange,
		opConcat:     cp.compileConcat,
		opAdd:        cp.compileBinary,
		opSub:        cp.compileBinary,
		opMul:        cp.compileBinary,
		opDiv:        cp.compileBinary,
		opIdiv:       cp.compileBinary,
		opMod:        cp.compileBinary,
		opEq:         cp.compileCompare,
		opNe:         cp.compileCompare,
		opGt:         cp.compileCompare,
		opGe:         cp.compileCompare,
		opLt:         cp.compileCompare,
		opLe:         cp.compileCompare,
		opValEq:      cp.compileCompare,
		opValNe:      cp.compileCompare,
		opValGt:      cp.compileCompare,
		opValGe:      cp.compileCompare,
		opValLt:      cp.compileCompare,
		opValLe:      cp.compileCompare,
		opIs:         cp.compileIdentity,
		opBefore:     cp.compileIdentity,
		opAfter:      cp.compileIdentity,
		opAnd:        cp.compileLogical,
		opOr:         cp.compileLogical,
		opUnion:      cp.compileSet,
		opIntersect:  cp.compileSet,
		opExcept:     cp.compileSet,
		opInstanceOf: cp.compileInstanceOf,
		opTreatAs:    cp.compileTreat,
		opCastableAs: cp.compileCastable,
		opCastAs:     cp.compileCast,
	}
	cp.prefix = map[rune]func() (Expr, error){
		currLevel:  cp.compileRoot,
		anyLevel:   cp.compileDescendantRoot,
		Name:       cp.compileName,
		opMul:      cp.compileWildcard,
		attrAxis:   cp.compileAttr,
		variable:   cp.compileVariable,
		currNode:   cp.compileCurrent,
		parentNode: cp.compileParent,
		Literal:    cp.compileLiteral,
		Integer:    cp.compileNumber,
		Decimal:    cp.compileNumber,
		Double:     cp.compileNumber,
		opSub:      cp.compileUnary,
		opAdd:      cp.compileUnary,
		begGrp:     cp.compileSequence,
		begPred:    cp.compileSquareArray,
		opQuestion: cp.compileUnaryLookup,
	}

	cp.next()
	cp.next()
	return &cp
}

func CompileString(q string, options ...Option) (Expr, error) {
	return Compile(strings.NewReader(q), options...)
}

func Compile(r io.Reader, options ...Option) (Expr, error) {
	return NewCompiler(r, options...).Compile()
}

func (c *Compiler) Compile() (Expr, error) {
	if c.done() {
		return nil, c.syntaxError("empty expression")
	}
	expr, err := c.compile()
	if err != nil {
		c.Error("compile", err)
		return nil, err
	}
	if !c.done() {
		err = c.syntaxError("unexpected token after end of expression")
		c.Error("compile", err)
		return nil, err
	}
	return expr, nil
}

func (c *Compiler) compile() (Expr, error) {
	start := c.curr.Position
	expr, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	if !c.is(opSeq) {
		return expr, nil
	}
	return c.compileList(expr, start)
}

func (c *Compiler) compileList(left Expr, start Position) (Expr, error) {
	c.Enter("list")
	defer c.Leave("list")

	all := []Expr{left}
	for c.is(opSeq) {
		c.next()
		expr, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		all = append(all, expr)
	}
	return c.span(newSequence(all), start), nil
}

func (c *Compiler) compileExpr(pow int) (Expr, error) {
	c.Enter("expr")
	defer c.Leave("expr")

	start := c.curr.Position
	if c.is(Invalid) {
		return nil, c.syntaxError(c.curr.Literal)
	}
	fn, ok := c.prefix[c.curr.Type]
	if !ok {
		return nil, c.syntaxError("unexpected prefix expression")
	}
	left, err := fn()
	if err != nil {
		return nil, err
	}
	left = c.span(left, start)
	for !c.done() && pow < c.power() {
		fn, ok := c.infix[c.operator()]
		if !ok {
			return nil, c.syntaxError("unexpected infix expression")
		}
		if left, err = fn(left); err != nil {
			return nil, err
		}
		left = c.span(left, start)
	}
	return left, nil
}

func (c *Compiler) compileName() (Expr, error) {
	var (
		word = c.curr.Literal
		peek = c.peek
	)
	switch {
	case peek.Type == opAxis:
		return c.compileAxis()
	case (word == kwFor || word == kwLet || word == kwSome || word == kwEvery) && peek.Type == variable:
		switch word {
		case kwFor:
			return c.compileFor()
		case kwLet:
			return c.compileLet()
		default:
			return c.compileQuantified(word == kwEvery)
		}
	case word == kwIf && peek.Type == begGrp:
		return c.compileIf()
	case (word == kwMap || word == kwArray) && peek.Type == begCurl:
		if word == kwMap {
			return c.compileMap()
		}
		return c.compileCurlyArray()
	case word == kwDelete && isNodeKeyword(peek):
		return c.compileDelete()
	case word == kwInsert && isNodeKeyword(peek):
		return c.compileInsert()
	case word == kwReplace && (isNodeKeyword(peek) || peek.Literal == kwValue):
		return c.compileReplace()
	case word == kwRename && isNodeKeyword(peek):
		return c.compileRename()
	case isConstructor(word, peek):
		return c.compileConstructor()
	case isKindTest(word) && peek.Type == begGrp:
		test, err := c.compileKindTest()
		if err != nil {
			return nil, err
		}
		ax := axisChild
		if k, ok := test.(kindTest); ok && k.kind == tree.KindAttribute {
			ax = axisAttribute
		}
		return c.compilePredicates(newAxisStep(ax, test))
	case peek.Type == begGrp:
		return c.compileCall()
	default:
		test, err := c.compileNameTest(axisChild)
		if err != nil {
			return nil, err
		}
		return c.compilePredicates(newAxisStep(axisChild, test))
	}
}

func isNodeKeyword(tok Token) bool {
	return tok.Type == Name && (tok.Literal == kwNode || tok.Literal == kwNodes)
}

func isConstructor(word string, peek Token) bool {
	switch word {
	case kwElement, kwAttribute, kwPI:
		return peek.Type == begCurl || (peek.Type == Name && !isOperatorWord(peek.Literal))
	case kwText, kwComment, kwDocument:
		return peek.Type == begCurl
	default:
		return false
	}
}

func isOperatorWord(str string) bool {
	_, ok := operators[str]
	return ok
}

func (c *Compiler) compileAxis() (Expr, error) {
	c.Enter("axis")
	defer c.Leave("axis")

	if !isAxis(c.curr.Literal) {
		return nil, c.syntaxError("unknown axis")
	}
	ax := axis(c.curr.Literal)
	c.next()
	c.next()

	var (
		test nodeTest
		err  error
	)
	switch {
	case c.is(Name) && isKindTest(c.curr.Literal) && c.peek.Type == begGrp:
		test, err = c.compileKindTest()
	case c.is(Name) || c.is(opMul):
		test, err = c.compileNameTest(ax)
	default:
		err = c.syntaxError("node test expected after axis")
	}
	if err != nil {
		return nil, err
	}
	return c.compilePredicates(newAxisStep(ax, test))
}

func (c *Compiler) compileWildcard() (Expr, error) {
	test, err := c.compileNameTest(axisChild)
	if err != nil {
		return nil, err
	}
	return c.compilePredicates(newAxisStep(axisChild, test))
}

func (c *Compiler) compileAttr() (Expr, error) {
	c.Enter("attribute")
	defer c.Leave("attribute")
	c.next()

	var (
		test nodeTest
		err  error
	)
	switch {
	case c.is(Name) && isKindTest(c.curr.Literal) && c.peek.Type == begGrp:
		test, err = c.compileKindTest()
	case c.is(Name) || c.is(opMul):
		test, err = c.compileNameTest(axisAttribute)
	default:
		err = c.syntaxError("name expected after @")
	}
	if err != nil {
		return nil, err
	}
	return c.compilePredicates(newAxisStep(axisAttribute, test))
}

func (c *Compiler) compileParent() (Expr, error) {
	c.Enter("parent")
	defer c.Leave("parent")
	c.next()
	return c.compilePredicates(newAxisStep(axisParent, kindTest{}))
}

// compilePredicates attaches the predicates following a step. Steps on a
// reverse axis are filtered in axis order then put back in document order.
func (c *Compiler) compilePredicates(expr Expr) (Expr, error) {
	for c.is(begPred) {
		start := c.curr.Position
		pred, err := c.compilePredicate()
		if err != nil {
			return nil, err
		}
		expr = c.span(newFilter(expr, pred), start)
	}
	if expr.Info().Order == ReverseSorted {
		expr = newPath(expr)
	}
	return expr, nil
}

func (c *Compiler) compilePredicate() (Expr, error) {
	c.Enter("predicate")
	defer c.Leave("predicate")
	c.next()
	expr, err := c.compile()
	if err != nil {
		return nil, err
	}
	if !c.is(endPred) {
		return nil, c.syntaxError("missing ']' after predicate")
	}
	c.next()
	return expr, nil
}

func (c *Compiler) compileFilter(left Expr) (Expr, error) {
	c.Enter("filter")
	defer c.Leave("filter")
	pred, err := c.compilePredicate()
	if err != nil {
		return nil, err
	}
	return newFilter(left, pred), nil
}

// compileNameTest builds a name test from the current name. Unprefixed names
// use the namespace bound to the empty prefix, none by default.
func (c *Compiler) compileNameTest(ax axis) (nodeTest, error) {
	defer c.next()
	if c.is(opMul) {
		return nameTest{}, nil
	}
	lit := c.curr.Literal
	if local, ok := strings.CutPrefix(lit, "*:"); ok {
		return nameTest{Local: local}, nil
	}
	if strings.HasPrefix(lit, "Q{") {
		qn, err := c.resolveName(lit, "")
		if err != nil {
			return nil, err
		}
		return nameTest{Uri: &qn.Uri, Local: qn.Name}, nil
	}
	prefix, local, ok := strings.Cut(lit, ":")
	if !ok {
		prefix, local = "", lit
	}
	var uri string
	if prefix != "" || ax != axisAttribute {
		u, found := c.cfg.resolve(prefix)
		if !found && prefix != "" {
			return nil, xdm.Errorf(xdm.CodePrefix, "%s: prefix not bound", prefix)
		}
		uri = u
	}
	test := nameTest{
		Uri:   &uri,
		Space: prefix,
	}
	if local != "*" {
		test.Local = local
	}
	return test, nil
}

func (c *Compiler) compileKindTest() (nodeTest, error) {
	c.Enter("kind")
	defer c.Leave("kind")

	test := kindTest{
		kind: kindTests[c.curr.Literal],
	}
	c.next()
	c.next()
	if !c.is(endGrp) {
		switch test.kind {
		case tree.KindElement, tree.KindAttribute:
			ax := axisChild
			if test.kind == tree.KindAttribute {
				ax = axisAttribute
			}
			if !c.is(Name) && !c.is(opMul) {
				return nil, c.syntaxError("name expected in kind test")
			}
			name, err := c.compileNameTest(ax)
			if err != nil {
				return nil, err
			}
			n := name.(nameTest)
			test.name = &n
			if c.is(opSeq) {
				c.next()
				if !c.is(Name) {
					return nil, c.syntaxError("type annotation expected")
				}
				c.next()
				if c.is(opQuestion) {
					c.next()
				}
			}
		case tree.KindInstruction:
			if !c.is(Name) && !c.is(Literal) {
				return nil, c.syntaxError("target expected in processing-instruction test")
			}
			test.name = &nameTest{Local: c.curr.Literal}
			c.next()
		case tree.KindDocument:
			inner, err := c.compileKindTest()
			if err != nil {
				return nil, err
			}
			_ = inner
		default:
			return nil, c.syntaxError("unexpected argument in kind test")
		}
	}
	if !c.is(endGrp) {
		return nil, c.syntaxError("missing ')' in kind test")
	}
	c.next()
	return test, nil
}

func (c *Compiler) compileStep(left Expr) (Expr, error) {
	c.Enter("step")
	defer c.Leave("step")
	c.next()
	next, err := c.compileExpr(powStep)
	if err != nil {
		return nil, err
	}
	return newPath(left, next), nil
}

func (c *Compiler) compileDescendantStep(left Expr) (Expr, error) {
	c.Enter("descendant-step")
	defer c.Leave("descendant-step")
	c.next()
	next, err := c.compileExpr(powStep)
	if err != nil {
		return nil, err
	}
	return newPath(left, newAxisStep(axisDescendantOrSelf, kindTest{}), next), nil
}

func (c *Compiler) compileRoot() (Expr, error) {
	c.Enter("root")
	defer c.Leave("root")
	c.next()
	if !c.startStep() {
		return newRoot(), nil
	}
	next, err := c.compileExpr(powStep)
	if err != nil {
		return nil, err
	}
	return newPath(newRoot(), next), nil
}

func (c *Compiler) compileDescendantRoot() (Expr, error) {
	c.Enter("descendant-root")
	defer c.Leave("descendant-root")
	c.next()
	next, err := c.compileExpr(powStep)
	if err != nil {
		return nil, err
	}
	return newPath(newRoot(), newAxisStep(axisDescendantOrSelf, kindTest{}), next), nil
}

func (c *Compiler) startStep() bool {
	switch c.curr.Type {
	case Name, opMul, attrAxis, currNode, parentNode:
		return true
	default:
		return false
	}
}

func (c *Compiler) compileCurrent() (Expr, error) {
	c.Enter("current")
	defer c.Leave("current")
	c.next()
	return &current{}, nil
}

func (c *Compiler) compileVariable() (Expr, error) {
	c.Enter("variable")
	defer c.Leave("variable")
	defer c.next()
	ident := c.curr.Literal
	if !c.defined(ident) {
		return nil, xdm.Errorf(xdm.CodeUndefinedVar, "$%s: variable not defined", ident)
	}
	return newVarRef(ident), nil
}

func (c *Compiler) compileLiteral() (Expr, error) {
	c.Enter("literal")
	defer c.Leave("literal")
	defer c.next()
	return newLiteral(xdm.NewString(c.curr.Literal)), nil
}

func (c *Compiler) compileNumber() (Expr, error) {
	c.Enter("number")
	defer c.Leave("number")
	defer c.next()

	var (
		lit = c.curr.Literal
		v   xdm.Value
		err error
	)
	switch c.curr.Type {
	case Integer:
		var d decimal.Decimal
		if d, err = decimal.NewFromString(lit); err == nil {
			v = xdm.NewDecimal(d)
			v, err = xdm.Cast(v, xdm.Integer)
		}
	case Decimal:
		v, err = xdm.Parse(xdm.Decimal, lit)
	default:
		v, err = xdm.Parse(xdm.Double, lit)
	}
	if err != nil {
		return nil, c.syntaxError(fmt.Sprintf("invalid number %q", lit))
	}
	return newLiteral(v), nil
}

func (c *Compiler) compileUnary() (Expr, error) {
	c.Enter("unary")
	defer c.Leave("unary")
	negate := c.is(opSub)
	c.next()
	expr, err := c.compileExpr(powPrefix)
	if err != nil {
		return nil, err
	}
	return newUnary(expr, negate), nil
}

func (c *Compiler) compileSequence() (Expr, error) {
	c.Enter("sequence")
	defer c.Leave("sequence")
	c.next()
	if c.is(endGrp) {
		c.next()
		return newSequence(nil), nil
	}
	expr, err := c.compile()
	if err != nil {
		return nil, err
	}
	if !c.is(endGrp) {
		return nil, c.syntaxError("missing ')' at end of sequence")
	}
	c.next()
	return expr, nil
}

func (c *Compiler) compileArgs() ([]Expr, error) {
	c.Enter("arguments")
	defer c.Leave("arguments")
	if !c.is(begGrp) {
		return nil, c.syntaxError("'(' expected")
	}
	c.next()
	var args []Expr
	for !c.done() && !c.is(endGrp) {
		arg, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		switch {
		case c.is(opSeq):
			c.next()
			if c.is(endGrp) {
				return nil, c.syntaxError("argument expected after ','")
			}
		case c.is(endGrp):
		default:
			return nil, c.syntaxError("',' or ')' expected in argument list")
		}
	}
	if !c.is(endGrp) {
		return nil, c.syntaxError("missing closing ')'")
	}
	c.next()
	return args, nil
}

func (c *Compiler) compileCall() (Expr, error) {
	c.Enter("call")
	defer c.Leave("call")
	name, err := c.resolveName(c.curr.Literal, NamespaceFn)
	if err != nil {
		return nil, err
	}
	c.next()
	args, err := c.compileArgs()
	if err != nil {
		return nil, err
	}
	return c.resolveCall(name, args)
}

func (c *Compiler) resolveCall(name tree.QName, args []Expr) (Expr, error) {
	fn, err := c.cfg.Functions.Resolve(name, len(args))
	if err != nil {
		return nil, err
	}
	return newCall(fn, args), nil
}

func (c *Compiler) compileArrow(left Expr) (Expr, error) {
	c.Enter("arrow")
	defer c.Leave("arrow")
	c.next()
	if !c.is(Name) {
		return nil, c.syntaxError("function name expected after '=>'")
	}
	name, err := c.resolveName(c.curr.Literal, NamespaceFn)
	if err != nil {
		return nil, err
	}
	c.next()
	args, err := c.compileArgs()
	if err != nil {
		return nil, err
	}
	return c.resolveCall(name, append([]Expr{left}, args...))
}

func (c *Compiler) compileDynCall(left Expr) (Expr, error) {
	c.Enter("dynamic-call")
	defer c.Leave("dynamic-call")
	args, err := c.compileArgs()
	if err != nil {
		return nil, err
	}
	return newDynCall(left, args), nil
}

func (c *Compiler) compileLookup(left Expr) (Expr, error) {
	c.Enter("lookup")
	defer c.Leave("lookup")
	c.next()
	key, err := c.compileKeySpecifier()
	if err != nil {
		return nil, err
	}
	return newLookup(left, key), nil
}

func (c *Compiler) compileUnaryLookup() (Expr, error) {
	c.Enter("lookup")
	defer c.Leave("lookup")
	c.next()
	key, err := c.compileKeySpecifier()
	if err != nil {
		return nil, err
	}
	return newLookup(&current{}, key), nil
}

func (c *Compiler) compileKeySpecifier() (Expr, error) {
	switch c.curr.Type {
	case opMul:
		c.next()
		return nil, nil
	case Name:
		defer c.next()
		return newLiteral(xdm.NewString(c.curr.Literal)), nil
	case Integer:
		return c.compileNumber()
	case begGrp:
		return c.compileSequence()
	default:
		return nil, c.syntaxError("key specifier expected after '?'")
	}
}

func (c *Compiler) compileSimpleMap(left Expr) (Expr, error) {
	c.Enter("simple-map")
	defer c.Leave("simple-map")
	c.next()
	right, err := c.compileExpr(powMap)
	if err != nil {
		return nil, err
	}
	return newSimpleMap(left, right), nil
}

func (c *Compiler) compileRange(left Expr) (Expr, error) {
	c.Enter("range")
	defer c.Leave("range")
	c.next()
	right, err := c.compileExpr(powRange)
	if err != nil {
		return nil, err
	}
	return newRange(left, right), nil
}

func (c *Compiler) compileConcat(left Expr) (Expr, error) {
	c.Enter("concat")
	defer c.Leave("concat")
	c.next()
	right, err := c.compileExpr(powConcat)
	if err != nil {
		return nil, err
	}
	return newConcat(left, right), nil
}

var arithOps = map[rune]xdm.ArithOp{
	opAdd:  xdm.OpAdd,
	opSub:  xdm.OpSub,
	opMul:  xdm.OpMul,
	opDiv:  xdm.OpDiv,
	opIdiv: xdm.OpIdiv,
	opMod:  xdm.OpMod,
}

func (c *Compiler) compileBinary(left Expr) (Expr, error) {
	c.Enter("binary")
	defer c.Leave("binary")
	var (
		op  = c.operator()
		pow = bindings[op]
	)
	c.next()
	right, err := c.compileExpr(pow)
	if err != nil {
		return nil, err
	}
	return newBinary(arithOps[op], left, right), nil
}

var compareOps = map[rune]xdm.Op{
	opEq:    xdm.OpEq,
	opNe:    xdm.OpNe,
	opLt:    xdm.OpLt,
	opLe:    xdm.OpLe,
	opGt:    xdm.OpGt,
	opGe:    xdm.OpGe,
	opValEq: xdm.OpEq,
	opValNe: xdm.OpNe,
	opValLt: xdm.OpLt,
	opValLe: xdm.OpLe,
	opValGt: xdm.OpGt,
	opValGe: xdm.OpGe,
}

func (c *Compiler) compileCompare(left Expr) (Expr, error) {
	c.Enter("compare")
	defer c.Leave("compare")
	op := c.operator()
	c.next()
	right, err := c.compileExpr(powCmp)
	if err != nil {
		return nil, err
	}
	switch op {
	case opValEq, opValNe, opValLt, opValLe, opValGt, opValGe:
		return newValueCmp(compareOps[op], left, right), nil
	default:
		return newGeneralCmp(compareOps[op], left, right), nil
	}
}

func (c *Compiler) compileIdentity(left Expr) (Expr, error) {
	c.Enter("identity")
	defer c.Leave("identity")
	var kind nodeOp
	switch c.operator() {
	case opBefore:
		kind = nodeBefore
	case opAfter:
		kind = nodeAfter
	default:
		kind = nodeIs
	}
	c.next()
	right, err := c.compileExpr(powCmp)
	if err != nil {
		return nil, err
	}
	return newNodeCmp(kind, left, right), nil
}

func (c *Compiler) compileLogical(left Expr) (Expr, error) {
	c.Enter("logical")
	defer c.Leave("logical")
	var (
		op  = c.operator()
		pow = bindings[op]
	)
	c.next()
	right, err := c.compileExpr(pow)
	if err != nil {
		return nil, err
	}
	if op == opAnd {
		return newAnd(left, right), nil
	}
	return newOr(left, right), nil
}

func (c *Compiler) compileSet(left Expr) (Expr, error) {
	c.Enter("set")
	defer c.Leave("set")
	var (
		op  = c.operator()
		pow = bindings[op]
		set = setUnion
	)
	switch op {
	case opIntersect:
		set = setIntersect
	case opExcept:
		set = setExcept
	}
	c.next()
	right, err := c.compileExpr(pow)
	if err != nil {
		return nil, err
	}
	return newSetExpr(set, left, right), nil
}

// expectWords consumes a sequence of keywords.
func (c *Compiler) expectWords(words ...string) error {
	for _, w := range words {
		if !c.is(Name) || c.curr.Literal != w {
			return c.syntaxError(fmt.Sprintf("%q expected", w))
		}
		c.next()
	}
	return nil
}

func (c *Compiler) compileInstanceOf(left Expr) (Expr, error) {
	c.Enter("instance-of")
	defer c.Leave("instance-of")
	if err := c.expectWords(kwInstance, kwOf); err != nil {
		return nil, err
	}
	kind, err := c.compileSequenceType()
	if err != nil {
		return nil, err
	}
	return newInstanceOf(left, kind), nil
}

func (c *Compiler) compileTreat(left Expr) (Expr, error) {
	c.Enter("treat")
	defer c.Leave("treat")
	if err := c.expectWords(kwTreat, kwAs); err != nil {
		return nil, err
	}
	kind, err := c.compileSequenceType()
	if err != nil {
		return nil, err
	}
	return newTreat(left, kind), nil
}

func (c *Compiler) compileCast(left Expr) (Expr, error) {
	c.Enter("cast")
	defer c.Leave("cast")
	if err := c.expectWords(kwCast, kwAs); err != nil {
		return nil, err
	}
	target, optional, err := c.compileSingleType()
	if err != nil {
		return nil, err
	}
	return newCast(left, target, optional), nil
}

func (c *Compiler) compileCastable(left Expr) (Expr, error) {
	c.Enter("castable")
	defer c.Leave("castable")
	if err := c.expectWords(kwCastable, kwAs); err != nil {
		return nil, err
	}
	target, optional, err := c.compileSingleType()
	if err != nil {
		return nil, err
	}
	return newCastable(left, target, optional), nil
}

func (c *Compiler) compileSingleType() (xdm.TypeID, bool, error) {
	if !c.is(Name) {
		return 0, false, c.syntaxError("type name expected")
	}
	id, err := c.resolveType(c.curr.Literal)
	if err != nil {
		return id, false, err
	}
	if err := xdm.CastTarget(id); err != nil {
		return id, false, err
	}
	c.next()
	optional := c.is(opQuestion)
	if optional {
		c.next()
	}
	return id, optional, nil
}

func (c *Compiler) resolveType(lit string) (xdm.TypeID, error) {
	qn, err := c.resolveName(lit, NamespaceXs)
	if err != nil {
		return 0, err
	}
	if qn.Uri != NamespaceXs {
		return 0, xdm.Errorf("XPST0051", "%s: unknown atomic type", lit)
	}
	id, ok := xdm.LookupType(qn.Name)
	if !ok {
		return 0, xdm.Errorf("XPST0051", "%s: unknown atomic type", lit)
	}
	return id, nil
}

func (c *Compiler) compileSequenceType() (seqType, error) {
	c.Enter("sequence-type")
	defer c.Leave("sequence-type")
	var st seqType
	if !c.is(Name) {
		return st, c.syntaxError("sequence type expected")
	}
	switch lit := c.curr.Literal; {
	case lit == "empty-sequence" && c.peek.Type == begGrp:
		c.next()
		c.next()
		if !c.is(endGrp) {
			return st, c.syntaxError("missing ')' in empty-sequence()")
		}
		c.next()
		st.kind = itemEmpty
		return st, nil
	case (lit == "item" || lit == kwMap || lit == kwArray) && c.peek.Type == begGrp:
		c.next()
		c.next()
		switch lit {
		case "item":
			st.kind = itemAny
		case kwMap:
			st.kind = itemMap
		default:
			st.kind = itemArray
		}
		if c.is(opMul) {
			c.next()
		}
		if !c.is(endGrp) {
			return st, c.syntaxError(fmt.Sprintf("missing ')' in %s()", lit))
		}
		c.next()
	case isKindTest(lit) && c.peek.Type == begGrp:
		test, err := c.compileKindTest()
		if err != nil {
			return st, err
		}
		st.kind = itemNode
		if k, ok := test.(kindTest); !ok || k.kind != 0 {
			st.test = test
		}
	default:
		id, err := c.resolveType(lit)
		if err != nil {
			return st, err
		}
		c.next()
		st.kind = itemAtomic
		st.atomic = id
	}
	switch c.curr.Type {
	case opQuestion:
		st.occ = zeroOrOne
		c.next()
	case opMul:
		st.occ = zeroOrMore
		c.next()
	case opAdd:
		st.occ = oneOrMore
		c.next()
	}
	return st, nil
}

func (c *Compiler) compileIf() (Expr, error) {
	c.Enter("if")
	defer c.Leave("if")
	c.next()
	c.next()
	test, err := c.compile()
	if err != nil {
		return nil, err
	}
	if !c.is(endGrp) {
		return nil, c.syntaxError("missing ')' after condition")
	}
	c.next()
	if err := c.expectWords(kwThen); err != nil {
		return nil, err
	}
	csq, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	if err := c.expectWords(kwElse); err != nil {
		return nil, err
	}
	alt, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	return newConditional(test, csq, alt), nil
}

// compileFLWOR compiles the clauses following a for or a let clause: other
// for and let clauses, an optional where clause and the return clause.
func (c *Compiler) compileFLWOR() (Expr, error) {
	switch {
	case c.is(Name) && c.curr.Literal == kwFor && c.peek.Type == variable:
		return c.compileFor()
	case c.is(Name) && c.curr.Literal == kwLet && c.peek.Type == variable:
		return c.compileLet()
	case c.is(Name) && c.curr.Literal == "where":
		c.next()
		test, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		body, err := c.compileFLWOR()
		if err != nil {
			return nil, err
		}
		return newConditional(test, body, newSequence(nil)), nil
	default:
		if err := c.expectWords(kwReturn); err != nil {
			return nil, err
		}
		return c.compileExpr(powLowest)
	}
}

func (c *Compiler) compileFor() (Expr, error) {
	c.Enter("for")
	defer c.Leave("for")
	c.next()
	binds, err := c.compileBindings(kwIn)
	if err != nil {
		return nil, err
	}
	defer c.leaveScope(len(binds))
	body, err := c.compileFLWOR()
	if err != nil {
		return nil, err
	}
	return newLoop(binds, body), nil
}

func (c *Compiler) compileLet() (Expr, error) {
	c.Enter("let")
	defer c.Leave("let")
	c.next()
	binds, err := c.compileBindings("")
	if err != nil {
		return nil, err
	}
	defer c.leaveScope(len(binds))
	body, err := c.compileFLWOR()
	if err != nil {
		return nil, err
	}
	return newLet(binds, body), nil
}

func (c *Compiler) compileQuantified(every bool) (Expr, error) {
	c.Enter("quantified")
	defer c.Leave("quantified")
	c.next()
	binds, err := c.compileBindings(kwIn)
	if err != nil {
		return nil, err
	}
	defer c.leaveScope(len(binds))
	if err := c.expectWords(kwSatisfies); err != nil {
		return nil, err
	}
	test, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	return newQuantified(binds, test, every), nil
}

// compileBindings compiles "$x in expr" clauses when sep is "in" and
// "$x := expr" clauses otherwise. Every variable is in scope of the next
// clauses.
func (c *Compiler) compileBindings(sep string) ([]binding, error) {
	c.Enter("bindings")
	defer c.Leave("bindings")
	var binds []binding
	for {
		if !c.is(variable) {
			c.leaveScope(len(binds))
			return nil, c.syntaxError("variable expected")
		}
		b := binding{
			ident: c.curr.Literal,
		}
		c.next()
		var err error
		if sep == "" {
			if !c.is(opAssign) {
				err = c.syntaxError("':=' expected")
			} else {
				c.next()
			}
		} else {
			err = c.expectWords(sep)
		}
		if err == nil {
			b.expr, err = c.compileExpr(powLowest)
		}
		if err != nil {
			c.leaveScope(len(binds))
			return nil, err
		}
		binds = append(binds, b)
		c.enterScope(b.ident)
		if !c.is(opSeq) {
			break
		}
		c.next()
	}
	return binds, nil
}

func (c *Compiler) compileMap() (Expr, error) {
	c.Enter("map")
	defer c.Leave("map")
	c.next()
	c.next()
	var entries []entry
	for !c.done() && !c.is(endCurl) {
		key, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		if !c.is(opColon) {
			return nil, c.syntaxError("':' expected after map key")
		}
		c.next()
		value, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: key, value: value})
		switch {
		case c.is(opSeq):
			c.next()
			if c.is(endCurl) {
				return nil, c.syntaxError("entry expected after ','")
			}
		case c.is(endCurl):
		default:
			return nil, c.syntaxError("',' or '}' expected in map constructor")
		}
	}
	if !c.is(endCurl) {
		return nil, c.syntaxError("missing '}' at end of map")
	}
	c.next()
	return newMapExpr(entries), nil
}

func (c *Compiler) compileCurlyArray() (Expr, error) {
	c.Enter("array")
	defer c.Leave("array")
	c.next()
	c.next()
	if c.is(endCurl) {
		c.next()
		return newArrayExpr(nil, true), nil
	}
	expr, err := c.compile()
	if err != nil {
		return nil, err
	}
	if !c.is(endCurl) {
		return nil, c.syntaxError("missing '}' at end of array")
	}
	c.next()
	return newArrayExpr([]Expr{expr}, true), nil
}

func (c *Compiler) compileSquareArray() (Expr, error) {
	c.Enter("array")
	defer c.Leave("array")
	c.next()
	var all []Expr
	for !c.done() && !c.is(endPred) {
		expr, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		all = append(all, expr)
		switch {
		case c.is(opSeq):
			c.next()
			if c.is(endPred) {
				return nil, c.syntaxError("member expected after ','")
			}
		case c.is(endPred):
		default:
			return nil, c.syntaxError("',' or ']' expected in array constructor")
		}
	}
	if !c.is(endPred) {
		return nil, c.syntaxError("missing ']' at end of array")
	}
	c.next()
	return newArrayExpr(all, false), nil
}

// compileEnclosed compiles "{ expr? }". It gives nil for empty braces.
func (c *Compiler) compileEnclosed() (Expr, error) {
	if !c.is(begCurl) {
		return nil, c.syntaxError("'{' expected")
	}
	c.next()
	if c.is(endCurl) {
		c.next()
		return nil, nil
	}
	expr, err := c.compile()
	if err != nil {
		return nil, err
	}
	if !c.is(endCurl) {
		return nil, c.syntaxError("missing '}'")
	}
	c.next()
	return expr, nil
}

var constructorKinds = map[string]tree.Kind{
	kwElement:   tree.KindElement,
	kwAttribute: tree.KindAttribute,
	kwText:      tree.KindText,
	kwComment:   tree.KindComment,
	kwPI:        tree.KindInstruction,
	kwDocument:  tree.KindDocument,
}

func (c *Compiler) compileConstructor() (Expr, error) {
	c.Enter("constructor")
	defer c.Leave("constructor")
	var (
		kind     = constructorKinds[c.curr.Literal]
		name     tree.QName
		nameExpr Expr
		err      error
	)
	c.next()
	switch kind {
	case tree.KindElement, tree.KindAttribute, tree.KindInstruction:
		if c.is(begCurl) {
			if nameExpr, err = c.compileEnclosed(); err != nil {
				return nil, err
			}
			if nameExpr == nil {
				return nil, c.syntaxError("name expression expected")
			}
			break
		}
		if kind == tree.KindInstruction {
			name = tree.LocalName(c.curr.Literal)
		} else {
			space := ""
			if kind == tree.KindElement {
				space, _ = c.cfg.resolve("")
			}
			if name, err = c.resolveName(c.curr.Literal, space); err != nil {
				return nil, err
			}
		}
		c.next()
	}
	content, err := c.compileEnclosed()
	if err != nil {
		return nil, err
	}
	return newConstructor(kind, name, nameExpr, content), nil
}

func (c *Compiler) compileDelete() (Expr, error) {
	c.Enter("delete")
	defer c.Leave("delete")
	c.next()
	c.next()
	target, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	return newDelete(target), nil
}

func (c *Compiler) compileInsert() (Expr, error) {
	c.Enter("insert")
	defer c.Leave("insert")
	c.next()
	c.next()
	source, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	where := pul.KindInsertInto
	if c.is(Name) && c.curr.Literal == kwAs {
		c.next()
		switch {
		case c.is(Name) && c.curr.Literal == kwFirst:
			where = pul.KindInsertFirst
		case c.is(Name) && c.curr.Literal == kwLast:
			where = pul.KindInsertLast
		default:
			return nil, c.syntaxError("'first' or 'last' expected")
		}
		c.next()
		if err := c.expectWords(kwInto); err != nil {
			return nil, err
		}
	} else {
		switch {
		case c.is(Name) && c.curr.Literal == kwInto:
		case c.is(Name) && c.curr.Literal == kwBefore:
			where = pul.KindInsertBefore
		case c.is(Name) && c.curr.Literal == kwAfter:
			where = pul.KindInsertAfter
		default:
			return nil, c.syntaxError("'into', 'before' or 'after' expected")
		}
		c.next()
	}
	target, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	return newInsert(source, target, where), nil
}

func (c *Compiler) compileReplace() (Expr, error) {
	c.Enter("replace")
	defer c.Leave("replace")
	c.next()
	value := c.curr.Literal == kwValue
	if value {
		if err := c.expectWords(kwValue, kwOf); err != nil {
			return nil, err
		}
	}
	if err := c.expectWords(kwNode); err != nil {
		return nil, err
	}
	target, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	if err := c.expectWords(kwWith); err != nil {
		return nil, err
	}
	with, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	return newReplace(target, with, value), nil
}

func (c *Compiler) compileRename() (Expr, error) {
	c.Enter("rename")
	defer c.Leave("rename")
	c.next()
	c.next()
	target, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	if err := c.expectWords(kwAs); err != nil {
		return nil, err
	}
	name, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	return newRename(target, name), nil
}

// resolveName expands a lexical QName. space is the namespace of unprefixed
// names.
func (c *Compiler) resolveName(lit, space string) (tree.QName, error) {
	if rest, ok := strings.CutPrefix(lit, "Q{"); ok {
		uri, local, ok := strings.Cut(rest, "}")
		if !ok || local == "" {
			return tree.QName{}, c.syntaxError("invalid braced uri literal")
		}
		return tree.ExpandedName(local, "", uri), nil
	}
	qn, err := tree.ParseName(lit)
	if err != nil {
		return qn, c.syntaxError(err.Error())
	}
	if qn.Space == "" {
		qn.Uri = space
		return qn, nil
	}
	uri, ok := c.cfg.resolve(qn.Space)
	if !ok {
		return qn, xdm.Errorf(xdm.CodePrefix, "%s: prefix not bound", qn.Space)
	}
	qn.Uri = uri
	return qn, nil
}

func (c *Compiler) enterScope(ident string) {
	c.scopes = append(c.scopes, ident)
}

func (c *Compiler) leaveScope(n int) {
	c.scopes = c.scopes[:len(c.scopes)-n]
}

func (c *Compiler) defined(ident string) bool {
	if slices.Contains(c.scopes, ident) {
		return true
	}
	_, ok := c.cfg.Variables[ident]
	return ok
}

type spanner interface {
	setSpan(Span)
}

func (b *base) setSpan(s Span) {
	if b.info.Span.Start.Line == 0 {
		b.info.Span = s
	}
}

func (c *Compiler) span(e Expr, start Position) Expr {
	if s, ok := e.(spanner); ok {
		s.setSpan(Span{Start: start, End: c.curr.Position})
	}
	return e
}

func (c *Compiler) syntaxError(cause string) error {
	return syntaxError(c.curr.String(), cause, c.curr.Position)
}

// operator gives the type of the current token in operator position, words
// like "and" or "div" become operators.
func (c *Compiler) operator() rune {
	if !c.is(Name) {
		return c.curr.Type
	}
	op, ok := operators[c.curr.Literal]
	if !ok {
		return c.curr.Type
	}
	switch op {
	case opInstanceOf:
		ok = c.peek.Type == Name && c.peek.Literal == kwOf
	case opTreatAs, opCastableAs, opCastAs:
		ok = c.peek.Type == Name && c.peek.Literal == kwAs
	}
	if !ok {
		return c.curr.Type
	}
	return op
}

func (c *Compiler) power() int {
	return bindings[c.operator()]
}

func (c *Compiler) is(kind rune) bool {
	return c.curr.Type == kind
}

func (c *Compiler) done() bool {
	return c.is(EOF)
}

func (c *Compiler) next() {
	c.curr = c.peek
	c.peek = c.scan.Scan()
}

const (
	powLowest = iota
	powOr
	powAnd
	powCmp
	powConcat
	powRange
	powAdd
	powMul
	powUnion
	powIntersect
	powInstance
	powTreat
	powCastable
	powCast
	powArrow
	powPrefix
	powMap
	powStep
	powPred
)

var bindings = map[rune]int{
	opOr:         powOr,
	opAnd:        powAnd,
	opEq:         powCmp,
	opNe:         powCmp,
	opGt:         powCmp,
	opGe:         powCmp,
	opLt:         powCmp,
	opLe:         powCmp,
	opValEq:      powCmp,
	opValNe:      powCmp,
	opValGt:      powCmp,
	opValGe:      powCmp,
	opValLt:      powCmp,
	opValLe:      powCmp,
	opIs:         powCmp,
	opBefore:     powCmp,
	opAfter:      powCmp,
	opConcat:     powConcat,
	opRange:      powRange,
	opAdd:        powAdd,
	opSub:        powAdd,
	opMul:        powMul,
	opDiv:        powMul,
	opIdiv:       powMul,
	opMod:        powMul,
	opUnion:      powUnion,
	opIntersect:  powIntersect,
	opExcept:     powIntersect,
	opInstanceOf: powInstance,
	opTreatAs:    powTreat,
	opCastableAs: powCastable,
	opCastAs:     powCast,
	opArrow:      powArrow,
	opBang:       powMap,
	currLevel:    powStep,
	anyLevel:     powStep,
	begPred:      powPred,
	begGrp:       powPred,
	opQuestion:   powPred,
}
