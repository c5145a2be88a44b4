package dom

import (
	"strings"

	"github.com/midbel/xquery/tree"
)

// Facade gives the engine a synchronous view over dom nodes: it never returns
// a future.
type Facade struct{}

func node(n tree.Node) *Node {
	x, _ := n.(*Node)
	return x
}

// handle keeps a nil *Node from becoming a non nil tree.Node.
func handle(n *Node) tree.Node {
	if n == nil {
		return nil
	}
	return n
}

func handles(list []*Node) []tree.Node {
	res := make([]tree.Node, len(list))
	for i := range list {
		res[i] = list[i]
	}
	return res
}

func (Facade) Kind(n tree.Node) tree.Kind {
	return node(n).Kind
}

func (Facade) Name(n tree.Node) tree.QName {
	return node(n).Name
}

func (Facade) Data(n tree.Node) string {
	return node(n).Value()
}

func (Facade) Compare(a, b tree.Node) int {
	return compare(node(a), node(b))
}

func (Facade) Parent(n tree.Node) (tree.Node, tree.Future) {
	return handle(node(n).parent), nil
}

func (Facade) FirstChild(n tree.Node) (tree.Node, tree.Future) {
	x := node(n)
	if len(x.children) == 0 {
		return nil, nil
	}
	return x.children[0], nil
}

func (Facade) LastChild(n tree.Node) (tree.Node, tree.Future) {
	x := node(n)
	if len(x.children) == 0 {
		return nil, nil
	}
	return x.children[len(x.children)-1], nil
}

func (Facade) NextSibling(n tree.Node) (tree.Node, tree.Future) {
	return sibling(node(n), 1), nil
}

func (Facade) PreviousSibling(n tree.Node) (tree.Node, tree.Future) {
	return sibling(node(n), -1), nil
}

func sibling(n *Node, dir int) tree.Node {
	if n.parent == nil || n.Kind == tree.KindAttribute {
		return nil
	}
	ix := n.parent.index(n) + dir
	if ix < 0 || ix >= len(n.parent.children) {
		return nil
	}
	return n.parent.children[ix]
}

func (Facade) Children(n tree.Node) ([]tree.Node, tree.Future) {
	return handles(node(n).children), nil
}

func (Facade) Attribute(n tree.Node, name tree.QName) (tree.Node, tree.Future) {
	return handle(node(n).Attr(name)), nil
}

func (Facade) Attributes(n tree.Node) ([]tree.Node, tree.Future) {
	return handles(node(n).attrs), nil
}

// Related follows references by id: the value of the attribute rel of the
// node is a list of ids and the result are the elements of the same tree
// having one of these ids in their id or xml:id attribute.
func (Facade) Related(n tree.Node, rel string) ([]tree.Node, tree.Future) {
	x := node(n)
	ref := x.Attr(tree.LocalName(rel))
	if ref == nil {
		return nil, nil
	}
	ids := strings.Fields(ref.Data)
	if len(ids) == 0 {
		return nil, nil
	}
	var (
		list []tree.Node
		walk func(*Node)
	)
	walk = func(n *Node) {
		if n.Kind == tree.KindElement && hasID(n, ids) {
			list = append(list, n)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(x.Root())
	return list, nil
}

var xmlID = tree.ExpandedName("id", "xml", "http://www.w3.org/XML/1998/namespace")

func hasID(n *Node, ids []string) bool {
	for _, name := range []tree.QName{tree.LocalName("id"), xmlID} {
		a := n.Attr(name)
		if a == nil {
			continue
		}
		for _, id := range ids {
			if a.Data == id {
				return true
			}
		}
	}
	return false
}
