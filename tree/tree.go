// Package tree defines the capabilities the engine expects from a host tree.
//
// Nodes are opaque handles: the engine never looks inside them and only passes
// them back to the Facade. Handles must be comparable since they are used as
// identity keys when deduplicating path results.
package tree

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNode = errors.New("node not supported by facade")

type Kind int8

// Kind values follow the DOM node type numbering, they are used to build
// the type-N bucket names.
const (
	KindElement     Kind = 1
	KindAttribute   Kind = 2
	KindText        Kind = 3
	KindCData       Kind = 4
	KindInstruction Kind = 7
	KindComment     Kind = 8
	KindDocument    Kind = 9
)

func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindAttribute:
		return "attribute"
	case KindText:
		return "text"
	case KindCData:
		return "cdata"
	case KindInstruction:
		return "processing-instruction"
	case KindComment:
		return "comment"
	case KindDocument:
		return "document-node"
	default:
		return "<unknown>"
	}
}

// Textual reports whether nodes of that kind are text nodes in the data model.
func (k Kind) Textual() bool {
	return k == KindText || k == KindCData
}

type Node any

type QName struct {
	Uri   string
	Space string
	Name  string
}

func ParseName(name string) (QName, error) {
	var (
		qn QName
		ok bool
	)
	qn.Space, qn.Name, ok = strings.Cut(name, ":")
	if !ok {
		qn.Name, qn.Space = qn.Space, ""
	}
	if ok && (qn.Space == "" || qn.Name == "") {
		return qn, fmt.Errorf("%s: invalid qualified name", name)
	}
	return qn, nil
}

func ExpandedName(name, space, uri string) QName {
	return QName{
		Name:  name,
		Space: space,
		Uri:   uri,
	}
}

func LocalName(name string) QName {
	return ExpandedName(name, "", "")
}

func QualifiedName(name, space string) QName {
	return ExpandedName(name, space, "")
}

func (q QName) Zero() bool {
	return q.Space == "" && q.Name == ""
}

// Equal compares expanded names, the prefix is ignored.
func (q QName) Equal(other QName) bool {
	return q.Uri == other.Uri && q.Name == other.Name
}

func (q QName) LocalName() string {
	return q.Name
}

func (q QName) ExpandedName() string {
	if q.Uri == "" {
		return q.LocalName()
	}
	return fmt.Sprintf("Q{%s}%s", q.Uri, q.Name)
}

func (q QName) QualifiedName() string {
	if q.Space == "" {
		return q.LocalName()
	}
	return fmt.Sprintf("%s:%s", q.Space, q.Name)
}

func (q QName) String() string {
	return q.QualifiedName()
}

// Future is handed out by a facade when a lookup can not be answered
// immediately. Once Done is closed, the same lookup must be retried and must
// give an answer.
type Future interface {
	Done() <-chan struct{}
}

type Signal chan struct{}

func NewSignal() Signal {
	return make(Signal)
}

func (s Signal) Done() <-chan struct{} {
	return s
}

func (s Signal) Resolve() {
	close(s)
}

var resolved = func() Signal {
	s := NewSignal()
	s.Resolve()
	return s
}()

// Resolved returns a future that is already done.
func Resolved() Future {
	return resolved
}

// Facade is the read only view over the host tree. Methods returning a
// Future can be asynchronous: when the future is not nil, the other results
// must be ignored and the call repeated after the future is done.
type Facade interface {
	Kind(Node) Kind
	Name(Node) QName
	Data(Node) string
	// Compare orders two handles in document order. It returns 0 when both
	// handles designate the same node.
	Compare(Node, Node) int

	Parent(Node) (Node, Future)
	FirstChild(Node) (Node, Future)
	LastChild(Node) (Node, Future)
	NextSibling(Node) (Node, Future)
	PreviousSibling(Node) (Node, Future)
	Children(Node) ([]Node, Future)
	Attribute(Node, QName) (Node, Future)
	Attributes(Node) ([]Node, Future)
	Related(Node, string) ([]Node, Future)
}

// Factory creates detached nodes. It is only used by node constructors and
// by the apply phase of pending updates.
type Factory interface {
	CreateDocument() Node
	CreateElement(QName) Node
	CreateAttribute(QName, string) Node
	CreateText(string) Node
	CreateCData(string) Node
	CreateComment(string) Node
	CreateInstruction(string, string) Node
}

// Builder can be implemented by a Factory to attach content to the nodes it
// created. Element and document constructors with content need it. An
// attribute given to AppendChild becomes an attribute of the element.
type Builder interface {
	AppendChild(parent, child Node) error
}

// Writer mutates the host tree. The engine never calls it while evaluating
// an expression.
type Writer interface {
	// InsertBefore inserts node as a child of parent before ref. A nil ref
	// appends the node.
	InsertBefore(parent, node, ref Node) error
	RemoveChild(parent, node Node) error
	SetAttribute(elem Node, name QName, value string) error
	RemoveAttribute(elem Node, name QName) error
	SetData(node Node, data string) error
}
