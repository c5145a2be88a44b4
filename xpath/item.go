package xpath

import (
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

// Item is one of an atomic value, a node handle, a map or an array.
type Item interface {
	Node() (tree.Node, bool)
	Atomic() (xdm.Value, bool)
}

type atomicItem struct {
	xdm.Value
}

func Atomic(v xdm.Value) Item {
	return atomicItem{Value: v}
}

func (i atomicItem) Node() (tree.Node, bool) {
	return nil, false
}

func (i atomicItem) Atomic() (xdm.Value, bool) {
	return i.Value, true
}

type nodeItem struct {
	node tree.Node
}

func NodeItem(n tree.Node) Item {
	return nodeItem{node: n}
}

func (i nodeItem) Node() (tree.Node, bool) {
	return i.node, true
}

func (i nodeItem) Atomic() (xdm.Value, bool) {
	return xdm.Value{}, false
}

func IsNode(i Item) bool {
	_, ok := i.Node()
	return ok
}

func IsAtomic(i Item) bool {
	_, ok := i.Atomic()
	return ok
}

func kindOf(i Item) string {
	switch i.(type) {
	case nodeItem:
		return "node"
	case atomicItem:
		return "atomic value"
	case *Map:
		return "map"
	case *Array:
		return "array"
	default:
		return "item"
	}
}

func nodesOf(items []Item) []tree.Node {
	list := make([]tree.Node, 0, len(items))
	for _, i := range items {
		if n, ok := i.Node(); ok {
			list = append(list, n)
		}
	}
	return list
}

func nodeItems(nodes []tree.Node) []Item {
	list := make([]Item, len(nodes))
	for i := range nodes {
		list[i] = NodeItem(nodes[i])
	}
	return list
}

func boolSeq(b bool) *Sequence {
	return Singleton(Atomic(xdm.NewBoolean(b)))
}

func stringSeq(s string) *Sequence {
	return Singleton(Atomic(xdm.NewString(s)))
}

func intSeq(n int) *Sequence {
	return Singleton(Atomic(xdm.NewInteger(int64(n))))
}
