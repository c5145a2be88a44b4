package dom

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/midbel/xquery/tree"
	"go.uber.org/goleak"
)

const document = `<?xml version="1.0" encoding="UTF-8"?>
<!-- tips of the day -->
<xml>
	<tips>
		<tip id="t1" see="t3">first</tip>
		<tip id="t2">second</tip>
		<tip id="t3">third &amp; last</tip>
	</tips>
	<?render mode="fast"?>
</xml>
`

func parseDocument(t *testing.T) *Node {
	t.Helper()
	doc, err := ParseString(document)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	return doc
}

func TestParse(t *testing.T) {
	doc := parseDocument(t)
	if doc.Kind != tree.KindDocument {
		t.Fatalf("document node expected, got %s", doc.Kind)
	}
	if got := len(doc.Children()); got != 2 {
		t.Errorf("document: want 2 children, got %d", got)
	}
	root := doc.Element()
	if root == nil || root.Name.Name != "xml" {
		t.Fatalf("root element not found")
	}
	tips := root.Children()[0]
	var got []string
	for _, c := range tips.Children() {
		got = append(got, c.Value())
	}
	want := []string{"first", "second", "third & last"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tips mismatched (-want +got):\n%s", diff)
	}
	pi := root.Children()[1]
	if pi.Kind != tree.KindInstruction || pi.Name.Name != "render" || pi.Data != `mode="fast"` {
		t.Errorf("processing instruction not parsed correctly: %s %q", pi.Name, pi.Data)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"",
		"<root>",
		"<root></other>",
		"<root/><root/>",
		`<root id="1" id="2"/>`,
		`<root attr></root>`,
		`<?xml version="2.0"?><root/>`,
	}
	for _, str := range tests {
		_, err := ParseString(str)
		if err == nil {
			t.Errorf("%q: expected error but parsing succeeded", str)
			continue
		}
		var perr ParseError
		if !errors.As(err, &perr) {
			t.Errorf("%q: ParseError expected, got %T", str, err)
		}
	}
}

func TestParseStrictNamespace(t *testing.T) {
	p := NewParser(bytes.NewReader([]byte(`<x:root/>`)))
	p.StrictNS = true
	if _, err := p.Parse(); err == nil {
		t.Errorf("undeclared prefix should be rejected")
	}
	doc, err := ParseString(`<x:root xmlns:x="urn:x"><x:a xml:lang="en"/></x:root>`)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	root := doc.Element()
	if root.Name.Uri != "urn:x" {
		t.Errorf("namespace not resolved: %q", root.Name.Uri)
	}
	lang := root.Children()[0].Attr(tree.ExpandedName("lang", "xml", namespaceXml))
	if lang == nil || lang.Data != "en" {
		t.Errorf("xml:lang not found")
	}
}

func TestWrite(t *testing.T) {
	tests := []string{
		`<root><item id="a">one</item><item id="b">two</item></root>`,
		`<x:root xmlns:x="urn:x"><x:a/></x:root>`,
		`<root xmlns="urn:d"><child/></root>`,
		`<a>1 &lt; 2</a>`,
		`<a><![CDATA[<raw>]]><!--note--></a>`,
	}
	for _, str := range tests {
		doc, err := ParseString(str)
		if err != nil {
			t.Errorf("%s: fail to parse: %s", str, err)
			continue
		}
		if got := String(doc); got != str {
			t.Errorf("serialization mismatched: want %s, got %s", str, got)
		}
	}
}

func TestWriteIndent(t *testing.T) {
	doc, err := ParseString(`<root><a/><b>text</b></root>`)
	if err != nil {
		t.Fatalf("fail to parse: %s", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		t.Fatalf("fail to write: %s", err)
	}
	want := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<root>\n  <a/>\n  <b>text</b>\n</root>"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatched (-want +got):\n%s", diff)
	}
}

func TestCompare(t *testing.T) {
	var (
		doc   = parseDocument(t)
		root  = doc.Element()
		tips  = root.Children()[0]
		list  = tips.Children()
		first = list[0]
		attr  = first.Attr(tree.LocalName("id"))
		text  = first.Children()[0]
	)
	ordered := []*Node{doc, root, tips, first, attr, text, list[1], list[2]}
	for i := 1; i < len(ordered); i++ {
		if c := compare(ordered[i-1], ordered[i]); c >= 0 {
			t.Errorf("node %d should come before node %d (got %d)", i-1, i, c)
		}
		if c := compare(ordered[i], ordered[i-1]); c <= 0 {
			t.Errorf("node %d should come after node %d (got %d)", i, i-1, c)
		}
	}
	if compare(first, first) != 0 {
		t.Errorf("node should be equal to itself")
	}
	other := parseDocument(t)
	if compare(doc, other) >= 0 {
		t.Errorf("older tree should come first")
	}
}

func TestFacadeRelated(t *testing.T) {
	var (
		f     Facade
		doc   = parseDocument(t)
		first = doc.Element().Children()[0].Children()[0]
	)
	list, fut := f.Related(first, "see")
	if fut != nil {
		t.Fatalf("synchronous facade returned a future")
	}
	if len(list) != 1 || f.Data(list[0]) != "third & last" {
		t.Errorf("related node not found: %v", list)
	}
	if n, _ := f.Parent(doc); n != nil {
		t.Errorf("document has no parent, got %v", n)
	}
}

func TestWriterHierarchy(t *testing.T) {
	var (
		w    Writer
		doc  = parseDocument(t)
		root = doc.Element()
		attr = NewAttribute(tree.LocalName("x"), "1")
	)
	if err := w.InsertBefore(root, attr, nil); !errors.Is(err, ErrHierarchy) {
		t.Errorf("attribute inserted as child: %v", err)
	}
	if err := w.RemoveChild(root, NewText("orphan")); !errors.Is(err, ErrHierarchy) {
		t.Errorf("removing a non child should fail: %v", err)
	}
	if err := w.SetData(root, "data"); !errors.Is(err, ErrHierarchy) {
		t.Errorf("set data on element should fail: %v", err)
	}
	elem := NewElement(tree.LocalName("new"))
	if err := w.InsertBefore(root, elem, root.Children()[0]); err != nil {
		t.Fatalf("fail to insert: %s", err)
	}
	if root.Children()[0] != elem {
		t.Errorf("element not inserted at first position")
	}
}

func TestLazy(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		doc  = parseDocument(t)
		lazy = NewLazy(time.Millisecond)
	)
	n, fut := lazy.FirstChild(doc)
	if fut == nil || n != nil {
		t.Fatalf("first lookup should be suspended")
	}
	again, _ := lazy.FirstChild(doc)
	if again != nil {
		t.Errorf("pending lookup should stay suspended")
	}
	<-fut.Done()
	n, fut = lazy.FirstChild(doc)
	if fut != nil {
		t.Fatalf("resolved lookup should answer immediately")
	}
	if lazy.Kind(n) != tree.KindComment {
		t.Errorf("comment expected, got %s", lazy.Kind(n))
	}
	if got := lazy.Suspended(); got != 1 {
		t.Errorf("want 1 suspended lookup, got %d", got)
	}
	lazy.Wait()
}
