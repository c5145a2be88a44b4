package main

import (
	"testing"

	"github.com/midbel/xquery/dom"
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
	"github.com/midbel/xquery/xpath"
)

func TestFormatItem(t *testing.T) {
	var (
		one  = xpath.Atomic(xdm.NewInteger(1))
		two  = xpath.Atomic(xdm.NewInteger(2))
		str  = xpath.Atomic(xdm.NewString("foo"))
		elem = dom.NewElement(tree.LocalName("item"))
	)
	elem.Append(dom.NewText("text"))

	tests := []struct {
		Item xpath.Item
		Want string
	}{
		{Item: one, Want: "1"},
		{Item: str, Want: "foo"},
		{Item: xpath.NodeItem(elem), Want: "<item>text</item>"},
		{
			Item: xpath.NewArray([]xpath.Item{one}, []xpath.Item{one, two}, nil),
			Want: "[1, (1, 2), ()]",
		},
		{
			Item: xpath.NewMap().Put(xdm.NewString("a"), []xpath.Item{str}),
			Want: "map{a: foo}",
		},
	}
	for _, tt := range tests {
		if got := formatItem(tt.Item); got != tt.Want {
			t.Errorf("item mismatched: want %s, got %s", tt.Want, got)
		}
	}
}
