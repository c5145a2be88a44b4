package pul

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/midbel/xquery/dom"
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
	"go.uber.org/goleak"
)

const document = `<xml><tips><tip id="t1">first</tip><tip id="t2">second</tip></tips></xml>`

func parseDocument(t *testing.T) (*dom.Node, []*dom.Node) {
	t.Helper()
	doc, err := dom.ParseString(document)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	tips := doc.Element().Children()[0]
	return doc, tips.Children()
}

func apply(t *testing.T, list *List, facade tree.Facade) {
	t.Helper()
	if err := Apply(context.TODO(), list, facade, dom.Factory{}, dom.Writer{}); err != nil {
		t.Fatalf("fail to apply updates: %s", err)
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		Name    string
		Updates func([]*dom.Node) []Update
		Want    string
	}{
		{
			Name: "delete",
			Updates: func(tips []*dom.Node) []Update {
				return []Update{Delete{Node: tips[0]}, Delete{Node: tips[0]}}
			},
			Want: `<xml><tips><tip id="t2">second</tip></tips></xml>`,
		},
		{
			Name: "insert-after",
			Updates: func(tips []*dom.Node) []Update {
				return []Update{Insert{
					Where:   KindInsertAfter,
					Node:    tips[0],
					Content: []Content{NodeContent(tips[1])},
				}}
			},
			Want: `<xml><tips><tip id="t1">first</tip><tip id="t2">second</tip><tip id="t2">second</tip></tips></xml>`,
		},
		{
			Name: "insert-first",
			Updates: func(tips []*dom.Node) []Update {
				return []Update{Insert{
					Where:   KindInsertFirst,
					Node:    tips[1],
					Content: []Content{TextContent("0 ")},
				}}
			},
			Want: `<xml><tips><tip id="t1">first</tip><tip id="t2">0 second</tip></tips></xml>`,
		},
		{
			Name: "insert-attributes",
			Updates: func(tips []*dom.Node) []Update {
				return []Update{InsertAttributes{
					Node:       tips[0],
					Attributes: []tree.Node{dom.NewAttribute(tree.LocalName("lang"), "en")},
				}}
			},
			Want: `<xml><tips><tip id="t1" lang="en">first</tip><tip id="t2">second</tip></tips></xml>`,
		},
		{
			Name: "replace-node",
			Updates: func(tips []*dom.Node) []Update {
				return []Update{ReplaceNode{
					Node:    tips[0],
					Content: []Content{NodeContent(dom.NewElement(tree.LocalName("hint")))},
				}}
			},
			Want: `<xml><tips><hint/><tip id="t2">second</tip></tips></xml>`,
		},
		{
			Name: "replace-value",
			Updates: func(tips []*dom.Node) []Update {
				return []Update{
					ReplaceValue{Node: tips[0].Attr(tree.LocalName("id")), Value: "x1"},
					ReplaceContent{Node: tips[1], Text: "last"},
				}
			},
			Want: `<xml><tips><tip id="x1">first</tip><tip id="t2">last</tip></tips></xml>`,
		},
		{
			Name: "rename",
			Updates: func(tips []*dom.Node) []Update {
				return []Update{
					Rename{Node: tips[0], Name: tree.LocalName("hint")},
					Rename{Node: tips[1].Attr(tree.LocalName("id")), Name: tree.LocalName("ref")},
				}
			},
			Want: `<xml><tips><hint id="t1">first</hint><tip ref="t2">second</tip></tips></xml>`,
		},
		{
			Name: "delete-after-insert",
			Updates: func(tips []*dom.Node) []Update {
				return []Update{
					Delete{Node: tips[1]},
					Insert{
						Where:   KindInsertBefore,
						Node:    tips[1],
						Content: []Content{TextContent("gone")},
					},
				}
			},
			Want: `<xml><tips><tip id="t1">first</tip>gone</tips></xml>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			var (
				doc, tips = parseDocument(t)
				list      = New()
			)
			for _, u := range tt.Updates(tips) {
				list.Add(u)
			}
			list.Compact()
			apply(t, list, dom.Facade{})
			if got := dom.String(doc); got != tt.Want {
				t.Errorf("result mismatched:\nwant: %s\ngot:  %s", tt.Want, got)
			}
		})
	}
}

func TestApplyLazy(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		doc, tips = parseDocument(t)
		list      = New()
		lazy      = dom.NewLazy(time.Millisecond)
	)
	list.Add(Insert{
		Where:   KindInsertAfter,
		Node:    tips[1],
		Content: []Content{NodeContent(tips[0])},
	})
	list.Add(Rename{Node: tips[0], Name: tree.LocalName("hint")})
	apply(t, list, lazy)
	lazy.Wait()

	want := `<xml><tips><hint id="t1">first</hint><tip id="t2">second</tip><tip id="t1">first</tip></tips></xml>`
	if got := dom.String(doc); got != want {
		t.Errorf("result mismatched:\nwant: %s\ngot:  %s", want, got)
	}
}

func TestCheck(t *testing.T) {
	_, tips := parseDocument(t)
	tests := []struct {
		Updates []Update
		Code    string
	}{
		{
			Updates: []Update{
				Rename{Node: tips[0], Name: tree.LocalName("a")},
				Rename{Node: tips[0], Name: tree.LocalName("b")},
			},
			Code: xdm.CodeUpdateRenameTwice,
		},
		{
			Updates: []Update{
				ReplaceNode{Node: tips[0]},
				ReplaceNode{Node: tips[0]},
			},
			Code: xdm.CodeUpdateReplaceTwo,
		},
		{
			Updates: []Update{
				ReplaceContent{Node: tips[0], Text: "a"},
				ReplaceValue{Node: tips[0], Value: "b"},
			},
			Code: xdm.CodeUpdateValueTwice,
		},
		{
			Updates: []Update{
				Rename{Node: tips[0], Name: tree.LocalName("a")},
				Rename{Node: tips[1], Name: tree.LocalName("b")},
			},
		},
	}
	for _, tt := range tests {
		var list List
		for _, u := range tt.Updates {
			list.Add(u)
		}
		err := list.Check()
		if tt.Code == "" {
			if err != nil {
				t.Errorf("unexpected error: %s", err)
			}
			continue
		}
		if !errors.Is(err, xdm.Code(tt.Code)) {
			t.Errorf("%s expected, got %v", tt.Code, err)
		}
		if err := Apply(context.TODO(), &list, dom.Facade{}, dom.Factory{}, dom.Writer{}); err == nil {
			t.Errorf("conflicting list should not be applied")
		}
	}
}

func TestMergeAndOverlaps(t *testing.T) {
	_, tips := parseDocument(t)
	var a, b List
	a.Add(Delete{Node: tips[0]})
	a.Add(Delete{Node: tips[1]})
	b.Add(Delete{Node: tips[0]})
	b.Add(ReplaceValue{Node: tips[0], Value: "x"})

	list := Merge(&a, nil, &b)
	if list.Len() != 4 {
		t.Fatalf("want 4 updates, got %d", list.Len())
	}
	list.Compact()
	if list.Len() != 3 {
		t.Errorf("duplicate delete not compacted: %d updates", list.Len())
	}
	overlaps := list.Overlaps()
	if len(overlaps) != 1 {
		t.Fatalf("want 1 overlap, got %d", len(overlaps))
	}
	if overlaps[0].Node != tree.Node(tips[0]) || len(overlaps[0].Updates) != 1 {
		t.Errorf("wrong overlap reported")
	}
}

func TestTransferable(t *testing.T) {
	_, tips := parseDocument(t)
	list := New()
	list.Add(Insert{
		Where:   KindInsertLast,
		Node:    tips[0],
		Content: []Content{NodeContent(tips[1]), TextContent("!")},
	})
	list.Add(Rename{Node: tips[1], Name: tree.ExpandedName("hint", "x", "urn:x")})

	got, err := list.Transferable(context.TODO(), dom.Facade{})
	if err != nil {
		t.Fatalf("fail to project updates: %s", err)
	}
	id := func(v string) []*Node {
		return []*Node{{Kind: "attribute", Name: "id", Value: v}}
	}
	want := []*Transfer{
		{
			Kind:   "insertIntoAsLast",
			Target: &Node{Kind: "element", Name: "tip", Attributes: id("t1")},
			Content: []*Node{
				{
					Kind:       "element",
					Name:       "tip",
					Attributes: id("t2"),
					Children:   []*Node{{Kind: "text", Value: "second"}},
				},
				{Kind: "text", Value: "!"},
			},
		},
		{
			Kind:   "rename",
			Target: &Node{Kind: "element", Name: "tip", Attributes: id("t2")},
			Name:   "x:hint",
			Uri:    "urn:x",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("transferable mismatched (-want +got):\n%s", diff)
	}
}
