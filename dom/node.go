// Package dom is an in-memory tree usable with the xpath engine. It comes
// with a parser, a serializer, a synchronous facade and an asynchronous one.
package dom

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/midbel/xquery/tree"
)

var sequence atomic.Uint64

// Node is a node of any kind. Element and document nodes have children,
// only elements have attributes.
type Node struct {
	Kind tree.Kind
	Name tree.QName
	Data string

	id       uint64
	parent   *Node
	children []*Node
	attrs    []*Node
}

func newNode(kind tree.Kind, name tree.QName, data string) *Node {
	return &Node{
		Kind: kind,
		Name: name,
		Data: data,
		id:   sequence.Add(1),
	}
}

func NewDocument() *Node {
	return newNode(tree.KindDocument, tree.QName{}, "")
}

func NewElement(name tree.QName) *Node {
	return newNode(tree.KindElement, name, "")
}

func NewAttribute(name tree.QName, value string) *Node {
	return newNode(tree.KindAttribute, name, value)
}

func NewText(text string) *Node {
	return newNode(tree.KindText, tree.QName{}, text)
}

func NewCData(text string) *Node {
	return newNode(tree.KindCData, tree.QName{}, text)
}

func NewComment(text string) *Node {
	return newNode(tree.KindComment, tree.QName{}, text)
}

func NewInstruction(target, data string) *Node {
	return newNode(tree.KindInstruction, tree.LocalName(target), data)
}

func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) Children() []*Node {
	return slices.Clone(n.children)
}

func (n *Node) Attributes() []*Node {
	return slices.Clone(n.attrs)
}

// Root returns the top most ancestor of the node.
func (n *Node) Root() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// Element returns the document element of a document node.
func (n *Node) Element() *Node {
	for _, c := range n.children {
		if c.Kind == tree.KindElement {
			return c
		}
	}
	return nil
}

func (n *Node) Append(child *Node) {
	n.Insert(child, nil)
}

// Insert adds child before ref. A nil ref appends the child.
func (n *Node) Insert(child, ref *Node) {
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	ix := n.index(ref)
	if ix < 0 {
		n.children = append(n.children, child)
		return
	}
	n.children = slices.Insert(n.children, ix, child)
}

func (n *Node) Remove(child *Node) bool {
	if child.Kind == tree.KindAttribute {
		return n.RemoveAttr(child.Name)
	}
	ix := n.index(child)
	if ix < 0 {
		return false
	}
	n.children = slices.Delete(n.children, ix, ix+1)
	child.parent = nil
	return true
}

// Attr returns the attribute of the node with the given expanded name.
func (n *Node) Attr(name tree.QName) *Node {
	ix := slices.IndexFunc(n.attrs, func(a *Node) bool {
		return a.Name.Equal(name)
	})
	if ix < 0 {
		return nil
	}
	return n.attrs[ix]
}

// SetAttr creates or updates an attribute.
func (n *Node) SetAttr(name tree.QName, value string) *Node {
	if a := n.Attr(name); a != nil {
		a.Data = value
		return a
	}
	a := NewAttribute(name, value)
	n.AppendAttr(a)
	return a
}

func (n *Node) AppendAttr(attr *Node) {
	if attr.parent != nil {
		attr.parent.RemoveAttr(attr.Name)
	}
	if prev := n.Attr(attr.Name); prev != nil {
		n.RemoveAttr(prev.Name)
	}
	attr.parent = n
	n.attrs = append(n.attrs, attr)
}

func (n *Node) RemoveAttr(name tree.QName) bool {
	ix := slices.IndexFunc(n.attrs, func(a *Node) bool {
		return a.Name.Equal(name)
	})
	if ix < 0 {
		return false
	}
	n.attrs[ix].parent = nil
	n.attrs = slices.Delete(n.attrs, ix, ix+1)
	return true
}

// Value returns the string value of the node.
func (n *Node) Value() string {
	switch n.Kind {
	case tree.KindElement, tree.KindDocument:
	default:
		return n.Data
	}
	var str strings.Builder
	var walk func(*Node)
	walk = func(n *Node) {
		for _, c := range n.children {
			switch c.Kind {
			case tree.KindText, tree.KindCData:
				str.WriteString(c.Data)
			case tree.KindElement:
				walk(c)
			}
		}
	}
	walk(n)
	return str.String()
}

// Clone returns a deep copy of the node. The copy has no parent.
func (n *Node) Clone() *Node {
	c := newNode(n.Kind, n.Name, n.Data)
	for _, a := range n.attrs {
		c.AppendAttr(a.Clone())
	}
	for _, x := range n.children {
		c.Append(x.Clone())
	}
	return c
}

func (n *Node) index(child *Node) int {
	if child == nil {
		return -1
	}
	return slices.Index(n.children, child)
}

// path gives the position of the node from its root. Attributes are placed
// between their element and its children.
func (n *Node) path() []int {
	var list []int
	for c := n; c.parent != nil; c = c.parent {
		p := c.parent
		if c.Kind == tree.KindAttribute {
			ix := slices.Index(p.attrs, c)
			list = append(list, ix-len(p.attrs))
		} else {
			list = append(list, p.index(c))
		}
	}
	slices.Reverse(list)
	return list
}

// compare orders nodes in document order. Nodes of different trees are
// ordered by the creation of their root.
func compare(a, b *Node) int {
	if a == b {
		return 0
	}
	ra, rb := a.Root(), b.Root()
	if ra != rb {
		if ra.id < rb.id {
			return -1
		}
		return 1
	}
	if c := slices.Compare(a.path(), b.path()); c != 0 {
		return c
	}
	return 0
}
