package xpath

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/midbel/xquery/dom"
	"github.com/midbel/xquery/pul"
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
	"go.uber.org/goleak"
)

const document = `<?xml version="1.0" encoding="UTF-8"?>

<root>
	<item id="first">element-1</item>
	<item id="second">element-2</item>
	<group>
		<item lang="en">sub-element-1</item>
		<item lang="en">sub-element-2</item>
		<test ignore="true"/>
	</group>
</root>
`

const tips = `<xml><tips><tip>one</tip><tip>two</tip><tip>three</tip></tips></xml>`

func parseDocument(t *testing.T, str string) *dom.Node {
	t.Helper()
	doc, err := dom.ParseString(str)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	return doc
}

func stringsOf(items []Item) []string {
	var (
		f   dom.Facade
		res []string
	)
	for _, i := range items {
		if n, ok := i.Node(); ok {
			res = append(res, f.Data(n))
			continue
		}
		if v, ok := i.Atomic(); ok {
			res = append(res, v.String())
			continue
		}
		res = append(res, kindOf(i))
	}
	return res
}

func evaluate(t *testing.T, query string, node tree.Node, options ...Option) []Item {
	t.Helper()
	options = append([]Option{WithFacade(dom.Facade{}), WithFactory(dom.Factory{})}, options...)
	q, err := Build(query, options...)
	if err != nil {
		t.Fatalf("%s: fail to compile: %s", query, err)
	}
	items, err := q.Find(node)
	if err != nil {
		t.Fatalf("%s: fail to evaluate: %s", query, err)
	}
	return items
}

func TestEval(t *testing.T) {
	tests := []struct {
		Expr     string
		Expected []string
	}{
		{
			Expr:     "/root/item",
			Expected: []string{"element-1", "element-2"},
		},
		{
			Expr:     "/root/item[1]",
			Expected: []string{"element-1"},
		},
		{
			Expr:     "/root/item[last()]",
			Expected: []string{"element-2"},
		},
		{
			Expr:     "/root/item[position()>=1]",
			Expected: []string{"element-1", "element-2"},
		},
		{
			Expr:     "/root/item[position()>1]",
			Expected: []string{"element-2"},
		},
		{
			Expr:     "count(//item)",
			Expected: []string{"4"},
		},
		{
			Expr:     "//item",
			Expected: []string{"element-1", "element-2", "sub-element-1", "sub-element-2"},
		},
		{
			Expr:     "//group/item[1]",
			Expected: []string{"sub-element-1"},
		},
		{
			Expr:     "/root/item[2] | /root/item[1]",
			Expected: []string{"element-1", "element-2"},
		},
		{
			Expr:     "//item[text()=\"element-1\"]",
			Expected: []string{"element-1"},
		},
		{
			Expr:     "//@ignore",
			Expected: []string{"true"},
		},
		{
			Expr:     "//item[@lang='en'][2]",
			Expected: []string{"sub-element-2"},
		},
		{
			Expr:     "//test/ancestor::*/name()",
			Expected: []string{"root", "group"},
		},
		{
			Expr:     "//item intersect //group/*",
			Expected: []string{"sub-element-1", "sub-element-2"},
		},
		{
			Expr:     "//item except //group/item",
			Expected: []string{"element-1", "element-2"},
		},
		{
			Expr:     "(//item)[last()]/preceding-sibling::*",
			Expected: []string{"sub-element-1"},
		},
		{
			Expr:     "//item/@id/string()",
			Expected: []string{"first", "second"},
		},
		{
			Expr:     "string-join(//item[@id]/@id, ',')",
			Expected: []string{"first,second"},
		},
		{
			Expr:     "//item[1] is /root/item[1]",
			Expected: []string{"true"},
		},
		{
			Expr:     "//group/item[1] << /root/item[1]",
			Expected: []string{"false"},
		},
		{
			Expr:     "for $i in //item[@id] return upper-case($i/@id)",
			Expected: []string{"FIRST", "SECOND"},
		},
	}

	doc := parseDocument(t, document)
	for _, tt := range tests {
		items := evaluate(t, tt.Expr, doc)
		if diff := cmp.Diff(tt.Expected, stringsOf(items)); diff != "" {
			t.Errorf("%s: result mismatched (-want +got):\n%s", tt.Expr, diff)
		}
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		Expr string
		Want []string
		Type xdm.TypeID
	}{
		{Expr: "1 + 1", Want: []string{"2"}, Type: xdm.Decimal},
		{Expr: "(1,2,3)[. = 2]", Want: []string{"2"}, Type: xdm.Integer},
		{Expr: "if (1 = 1) then 'yes' else 'no'", Want: []string{"yes"}, Type: xdm.String},
		{Expr: "if (()) then 'yes' else 'no'", Want: []string{"no"}, Type: xdm.String},
		{Expr: "every $x in (1,2) satisfies $x = 1 or ($x+1) = 3", Want: []string{"true"}, Type: xdm.Boolean},
		{Expr: "some $x in (1,2) satisfies $x = 3", Want: []string{"false"}, Type: xdm.Boolean},
		{Expr: "'ab' || 'cd'", Want: []string{"abcd"}, Type: xdm.String},
		{Expr: "1 to 3", Want: []string{"1", "2", "3"}, Type: xdm.Integer},
		{Expr: "let $x := 2 return $x * 3", Want: []string{"6"}, Type: xdm.Decimal},
		{Expr: "'12' cast as xs:integer", Want: []string{"12"}, Type: xdm.Integer},
		{Expr: "'abc' castable as xs:integer", Want: []string{"false"}, Type: xdm.Boolean},
		{Expr: "1 instance of xs:decimal", Want: []string{"true"}, Type: xdm.Boolean},
		{Expr: "map{'a': 1, 'b': 2}?b", Want: []string{"2"}, Type: xdm.Integer},
		{Expr: "[10, 20, 30](2)", Want: []string{"20"}, Type: xdm.Integer},
		{Expr: "(1, 2) ! (. * 10)", Want: []string{"10", "20"}, Type: xdm.Decimal},
		{Expr: "'abc' => upper-case()", Want: []string{"ABC"}, Type: xdm.String},
		{Expr: "format-integer(1234567, '#,###')", Want: []string{"1,234,567"}, Type: xdm.String},
		{Expr: "format-integer(-255, '16^#')", Want: []string{"-ff"}, Type: xdm.String},
		{Expr: "map:size(map:merge((map{'a': 1}, map{'b': 2})))", Want: []string{"2"}, Type: xdm.Integer},
		{Expr: "array:size([1, [2, 3]])", Want: []string{"2"}, Type: xdm.Integer},
	}
	for _, tt := range tests {
		items := evaluate(t, tt.Expr, nil)
		if diff := cmp.Diff(tt.Want, stringsOf(items)); diff != "" {
			t.Errorf("%s: result mismatched (-want +got):\n%s", tt.Expr, diff)
			continue
		}
		for _, i := range items {
			v, _ := i.Atomic()
			if !xdm.InstanceOf(v.Type, tt.Type) {
				t.Errorf("%s: %s is not an instance of %s", tt.Expr, v.Type, tt.Type)
			}
		}
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		Expr string
		Code string
	}{
		{Expr: "1 div 0", Code: xdm.CodeDivideByZero},
		{Expr: "'a' + 1", Code: xdm.CodeType},
		{Expr: "(1, 2) eq 1", Code: xdm.CodeType},
		{Expr: "'abc' cast as xs:integer", Code: xdm.CodeInvalidValue},
		{Expr: "error()", Code: xdm.CodeUnidentified},
		{Expr: "[1, 2](5)", Code: xdm.CodeArrayIndex},
		{Expr: "(1, 2) treat as xs:string+", Code: xdm.CodeTreat},
		{Expr: "map:merge((map{'a': 1}, map{'a': 2}), map{'duplicates': 'reject'})", Code: xdm.CodeDuplicateKey},
		{Expr: ".", Code: xdm.CodeContextAbsent},
	}
	for _, tt := range tests {
		q, err := Build(tt.Expr, WithFacade(dom.Facade{}))
		if err != nil {
			t.Errorf("%s: fail to compile: %s", tt.Expr, err)
			continue
		}
		_, err = q.Find(nil)
		if !errors.Is(err, xdm.Code(tt.Code)) {
			t.Errorf("%s: want %s, got %v", tt.Expr, tt.Code, err)
		}
	}
}

func TestMixedPath(t *testing.T) {
	doc := parseDocument(t, document)
	q, err := Build("/root/(item, 1)", WithFacade(dom.Facade{}))
	if err != nil {
		t.Fatalf("fail to compile: %s", err)
	}
	if _, err := q.Find(doc); !errors.Is(err, xdm.Code(xdm.CodeMixedPath)) {
		t.Errorf("mixed path result: want %s, got %v", xdm.CodeMixedPath, err)
	}
}

func TestShortCircuit(t *testing.T) {
	tests := []struct {
		Expr string
		Want string
	}{
		{Expr: "false() and error()", Want: "false"},
		{Expr: "true() or error()", Want: "true"},
		{Expr: "if (true()) then 1 else error()", Want: "1"},
		{Expr: "some $x in (1, 2) satisfies ($x = 1 or error())", Want: "true"},
	}
	for _, tt := range tests {
		items := evaluate(t, tt.Expr, nil)
		if diff := cmp.Diff([]string{tt.Want}, stringsOf(items)); diff != "" {
			t.Errorf("%s: result mismatched (-want +got):\n%s", tt.Expr, diff)
		}
	}
}

func TestEffectiveBooleanValue(t *testing.T) {
	tests := []struct {
		Expr string
		Want bool
		Fail bool
	}{
		{Expr: "()", Want: false},
		{Expr: "''", Want: false},
		{Expr: "'a'", Want: true},
		{Expr: "0", Want: false},
		{Expr: "0.5", Want: true},
		{Expr: "xs:double('NaN')", Want: false},
		{Expr: "/root", Want: true},
		{Expr: "(/root, 1)", Want: true},
		{Expr: "(1, 2)", Fail: true},
		{Expr: "map{}", Fail: true},
	}
	doc := parseDocument(t, document)
	for _, tt := range tests {
		q, err := Build("boolean("+tt.Expr+")", WithFacade(dom.Facade{}))
		if err != nil {
			t.Errorf("%s: fail to compile: %s", tt.Expr, err)
			continue
		}
		items, err := q.Find(doc)
		if tt.Fail {
			if !errors.Is(err, xdm.Code(xdm.CodeType)) {
				t.Errorf("%s: want %s, got %v", tt.Expr, xdm.CodeType, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: fail to evaluate: %s", tt.Expr, err)
			continue
		}
		if got := stringsOf(items); len(got) != 1 || got[0] != boolString(tt.Want) {
			t.Errorf("%s: want %t, got %v", tt.Expr, tt.Want, got)
		}
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func TestTips(t *testing.T) {
	doc := parseDocument(t, tips)
	items := evaluate(t, "/xml/tips/tip", doc)
	if len(items) != 3 {
		t.Fatalf("want 3 nodes, got %d", len(items))
	}
	var f dom.Facade
	for i := 1; i < len(items); i++ {
		a, _ := items[i-1].Node()
		b, _ := items[i].Node()
		if f.Compare(a, b) >= 0 {
			t.Errorf("nodes not in document order at %d", i)
		}
	}
	if diff := cmp.Diff([]string{"one", "two", "three"}, stringsOf(items)); diff != "" {
		t.Errorf("result mismatched (-want +got):\n%s", diff)
	}
}

var pathQueries = []string{
	"//item",
	"//item/..",
	"//*/ancestor-or-self::*",
	"//item/following::*",
	"//item/preceding::*",
	"//group/descendant::node()",
	"//item/following-sibling::*",
	"(//item)[3]/preceding-sibling::*",
	"//@*/..",
	"//item | //test | //group",
	"/root/*/item/parent::*",
	"//item[@lang]/ancestor::*",
	"//text()/..",
}

func TestBuckets(t *testing.T) {
	doc := parseDocument(t, document)
	for _, q := range pathQueries {
		want := evaluate(t, q, doc)
		got := evaluate(t, q, doc, WithoutBuckets())
		if !sameNodes(want, got) {
			t.Errorf("%s: results differ without buckets", q)
		}
	}
}

func TestPathReference(t *testing.T) {
	var (
		f   dom.Facade
		doc = parseDocument(t, document)
	)
	for _, q := range pathQueries {
		items := evaluate(t, q, doc)
		nodes := nodesOf(items)
		for i := 1; i < len(nodes); i++ {
			if f.Compare(nodes[i-1], nodes[i]) >= 0 {
				t.Errorf("%s: result not sorted or not deduplicated at %d", q, i)
			}
		}
		want := reference(f, doc, nodes)
		if !sameNodes(nodeItems(want), items) {
			t.Errorf("%s: result differs from the sorted set of the nodes found", q)
		}
	}
}

// reference gives the nodes of the tree that are in found, in document
// order, by walking the whole tree.
func reference(f dom.Facade, doc *dom.Node, found []tree.Node) []tree.Node {
	set := make(map[tree.Node]struct{})
	for _, n := range found {
		set[n] = struct{}{}
	}
	var (
		list []tree.Node
		walk func(*dom.Node)
	)
	walk = func(n *dom.Node) {
		if _, ok := set[n]; ok {
			list = append(list, n)
		}
		for _, a := range n.Attributes() {
			if _, ok := set[tree.Node(a)]; ok {
				list = append(list, a)
			}
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(doc)
	return list
}

func sameNodes(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, ok1 := a[i].Node()
		y, ok2 := b[i].Node()
		if !ok1 || !ok2 || x != y {
			return false
		}
	}
	return true
}

func TestSuspension(t *testing.T) {
	defer goleak.VerifyNone(t)

	doc := parseDocument(t, document)
	queries := append([]string{
		"count(//item)",
		"//item[@lang = 'en'][last()]",
		"for $i in //item return string($i)",
		"//group/item[1]/following-sibling::*/name()",
	}, pathQueries...)
	for _, str := range queries {
		want := stringsOf(evaluate(t, str, doc))

		lazy := dom.NewLazy(time.Millisecond)
		got := stringsOf(evaluate(t, str, doc, WithFacade(lazy)))
		lazy.Wait()
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s: suspended result mismatched (-want +got):\n%s", str, diff)
		}
		if lazy.Suspended() == 0 && strings.Contains(str, "/") {
			t.Errorf("%s: evaluation never suspended", str)
		}
	}
}

func TestSleep(t *testing.T) {
	q, err := Build("(1, xq:sleep(5), 2)")
	if err != nil {
		t.Fatalf("fail to compile: %s", err)
	}
	seq, _, err := q.Sequence(nil)
	if err != nil {
		t.Fatalf("fail to start evaluation: %s", err)
	}
	var (
		items   []Item
		pending int
	)
	for {
		st, err := seq.Next()
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if st.State == Done {
			break
		}
		if st.State == Pending {
			pending++
			<-st.Future.Done()
			continue
		}
		items = append(items, st.Item)
	}
	if pending == 0 {
		t.Errorf("sleep never suspended the evaluation")
	}
	if diff := cmp.Diff([]string{"1", "2"}, stringsOf(items)); diff != "" {
		t.Errorf("result mismatched (-want +got):\n%s", diff)
	}
}

func TestFunctions(t *testing.T) {
	reg := DefaultRegistry()
	reg.Define(Function{
		Name:   tree.ExpandedName("double", "ex", "urn:example"),
		MinArg: 1,
		MaxArg: 1,
		Static: true,
		Call: func(ctx Context, args []*Sequence) (*Sequence, error) {
			return atomics(ctx, args, func(values []*xdm.Value) (*Sequence, error) {
				if values[0] == nil {
					return Empty(), nil
				}
				v, err := xdm.Arithmetic(xdm.OpMul, *values[0], xdm.NewInteger(2))
				if err != nil {
					return nil, err
				}
				return FromValues(v), nil
			}), nil
		},
	})
	q, err := Build("ex:double(21)", WithFunctions(reg), WithNamespace("ex", "urn:example"))
	if err != nil {
		t.Fatalf("fail to compile: %s", err)
	}
	items, err := q.Find(nil)
	if err != nil {
		t.Fatalf("fail to evaluate: %s", err)
	}
	if diff := cmp.Diff([]string{"42"}, stringsOf(items)); diff != "" {
		t.Errorf("result mismatched (-want +got):\n%s", diff)
	}
	if _, err := Build("ex:double(21)"); !errors.Is(err, xdm.Code(xdm.CodePrefix)) {
		t.Errorf("unbound prefix: want %s, got %v", xdm.CodePrefix, err)
	}
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	items := evaluate(t, "trace((1, 2), 'numbers')", nil, WithLogger(logger))
	if diff := cmp.Diff([]string{"1", "2"}, stringsOf(items)); diff != "" {
		t.Errorf("result mismatched (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "numbers") {
		t.Errorf("trace label not logged: %s", buf.String())
	}
}

func TestVariables(t *testing.T) {
	items := evaluate(t, "$answer + 1", nil, WithVariable("answer", Atomic(xdm.NewInteger(41))))
	if diff := cmp.Diff([]string{"42"}, stringsOf(items)); diff != "" {
		t.Errorf("result mismatched (-want +got):\n%s", diff)
	}
}

func TestCaching(t *testing.T) {
	doc := parseDocument(t, document)
	for _, q := range []string{"count(//item) + count(//item)", "//item[1]"} {
		want := stringsOf(evaluate(t, q, doc))
		got := stringsOf(evaluate(t, q, doc, WithCaching()))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s: cached result mismatched (-want +got):\n%s", q, diff)
		}
	}
}

func TestDebugTrace(t *testing.T) {
	q, err := Build("1 + (2 div 0)", WithDebug())
	if err != nil {
		t.Fatalf("fail to compile: %s", err)
	}
	_, err = q.Find(nil)
	var stack *StackError
	if !errors.As(err, &stack) {
		t.Fatalf("stack error expected, got %T (%v)", err, err)
	}
	if !errors.Is(err, xdm.Code(xdm.CodeDivideByZero)) {
		t.Errorf("cause lost in stack error: %v", err)
	}
}

func TestUpdates(t *testing.T) {
	tests := []struct {
		Expr string
		Want string
	}{
		{
			Expr: "delete node //tip[2]",
			Want: "<xml><tips><tip>one</tip><tip>three</tip></tips></xml>",
		},
		{
			Expr: "insert node element tip { 'four' } as last into //tips",
			Want: "<xml><tips><tip>one</tip><tip>two</tip><tip>three</tip><tip>four</tip></tips></xml>",
		},
		{
			Expr: "insert node //tip[3] before //tip[1]",
			Want: "<xml><tips><tip>three</tip><tip>one</tip><tip>two</tip><tip>three</tip></tips></xml>",
		},
		{
			Expr: "insert node attribute n { 1 } into //tip[1]",
			Want: `<xml><tips><tip n="1">one</tip><tip>two</tip><tip>three</tip></tips></xml>`,
		},
		{
			Expr: "replace value of node //tip[1] with 'first'",
			Want: "<xml><tips><tip>first</tip><tip>two</tip><tip>three</tip></tips></xml>",
		},
		{
			Expr: "replace node //tip[2] with element hint {}",
			Want: "<xml><tips><tip>one</tip><hint/><tip>three</tip></tips></xml>",
		},
		{
			Expr: "rename node //tips as 'hints'",
			Want: "<xml><hints><tip>one</tip><tip>two</tip><tip>three</tip></hints></xml>",
		},
		{
			Expr: "for $t in //tip return delete node $t",
			Want: "<xml><tips/></xml>",
		},
	}
	for _, tt := range tests {
		doc := parseDocument(t, tips)
		q, err := Build(tt.Expr, WithFacade(dom.Facade{}), WithFactory(dom.Factory{}))
		if err != nil {
			t.Errorf("%s: fail to compile: %s", tt.Expr, err)
			continue
		}
		if !q.Updating() {
			t.Errorf("%s: query should be updating", tt.Expr)
		}
		res, err := q.Evaluate(context.TODO(), doc)
		if err != nil {
			t.Errorf("%s: fail to evaluate: %s", tt.Expr, err)
			continue
		}
		if len(res.Items) != 0 {
			t.Errorf("%s: updating query gives items", tt.Expr)
		}
		if got := dom.String(doc); got == tt.Want {
			t.Errorf("%s: tree modified during evaluation", tt.Expr)
		}
		err = pul.Apply(context.TODO(), res.Updates, dom.Facade{}, dom.Factory{}, dom.Writer{})
		if err != nil {
			t.Errorf("%s: fail to apply updates: %s", tt.Expr, err)
			continue
		}
		if got := dom.String(doc); got != tt.Want {
			t.Errorf("%s: result mismatched:\nwant: %s\ngot:  %s", tt.Expr, tt.Want, got)
		}
	}
}

func TestUpdateConflicts(t *testing.T) {
	tests := []struct {
		Expr string
		Code string
	}{
		{
			Expr: "(rename node //tip[1] as 'a', rename node //tip[1] as 'b')",
			Code: xdm.CodeUpdateRenameTwice,
		},
		{
			Expr: "(replace node //tip[1] with (), replace node //tip[1] with ())",
			Code: xdm.CodeUpdateReplaceTwo,
		},
		{
			Expr: "(replace value of node //tip[1] with 'a', replace value of node //tip[1] with 'b')",
			Code: xdm.CodeUpdateValueTwice,
		},
		{
			Expr: "delete node 1",
			Code: xdm.CodeUpdateDelete,
		},
		{
			Expr: "insert node 'x' into (//tip[1], //tip[2])",
			Code: xdm.CodeUpdateTarget,
		},
		{
			Expr: "rename node //tip[1]/text() as 'x'",
			Code: xdm.CodeUpdateRename,
		},
	}
	doc := parseDocument(t, tips)
	for _, tt := range tests {
		q, err := Build(tt.Expr, WithFacade(dom.Facade{}))
		if err != nil {
			t.Errorf("%s: fail to compile: %s", tt.Expr, err)
			continue
		}
		_, err = q.Evaluate(context.TODO(), doc)
		if !errors.Is(err, xdm.Code(tt.Code)) {
			t.Errorf("%s: want %s, got %v", tt.Expr, tt.Code, err)
		}
	}
}

func TestCache(t *testing.T) {
	cache, err := NewCache(2, WithFacade(dom.Facade{}))
	if err != nil {
		t.Fatalf("fail to create cache: %s", err)
	}
	q1, err := BuildCached(cache, "//item")
	if err != nil {
		t.Fatalf("fail to build query: %s", err)
	}
	q2, _ := BuildCached(cache, "//item")
	if q1 != q2 {
		t.Errorf("query compiled twice")
	}
	BuildCached(cache, "1")
	BuildCached(cache, "2")
	if cache.Len() != 2 {
		t.Errorf("cache should be bounded to 2 queries, got %d", cache.Len())
	}
	if _, err := BuildCached(cache, "1 +"); err == nil {
		t.Errorf("invalid query should not be cached")
	}
}

func TestMissingFacade(t *testing.T) {
	doc := parseDocument(t, document)
	q, err := Build("/root")
	if err != nil {
		t.Fatalf("fail to compile: %s", err)
	}
	if _, err := q.Find(doc); !errors.Is(err, ErrFacade) {
		t.Errorf("want ErrFacade, got %v", err)
	}
}
