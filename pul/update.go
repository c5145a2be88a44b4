// Package pul holds the pending update lists produced by update expressions
// and the apply phase that hands them to a tree.Writer.
package pul

import (
	"github.com/midbel/xquery/tree"
)

type Kind int8

const (
	KindDelete Kind = iota
	KindInsertBefore
	KindInsertAfter
	KindInsertInto
	KindInsertFirst
	KindInsertLast
	KindInsertAttributes
	KindReplaceNode
	KindReplaceValue
	KindReplaceContent
	KindRename
)

func (k Kind) String() string {
	switch k {
	case KindDelete:
		return "delete"
	case KindInsertBefore:
		return "insertBefore"
	case KindInsertAfter:
		return "insertAfter"
	case KindInsertInto:
		return "insertInto"
	case KindInsertFirst:
		return "insertIntoAsFirst"
	case KindInsertLast:
		return "insertIntoAsLast"
	case KindInsertAttributes:
		return "insertAttributes"
	case KindReplaceNode:
		return "replaceNode"
	case KindReplaceValue:
		return "replaceValue"
	case KindReplaceContent:
		return "replaceElementContent"
	case KindRename:
		return "rename"
	default:
		return "<update>"
	}
}

// Update is a pending update primitive. The set of implementations is closed.
type Update interface {
	Kind() Kind
	Target() tree.Node
	update()
}

// Content is one item of the content of an insert or replace. Exactly one
// of Node and Text is used: text content becomes a new text node at apply
// time, node content is copied.
type Content struct {
	Node tree.Node
	Text string
}

func NodeContent(n tree.Node) Content {
	return Content{Node: n}
}

func TextContent(str string) Content {
	return Content{Text: str}
}

func (c Content) IsText() bool {
	return c.Node == nil
}

type Delete struct {
	Node tree.Node
}

func (d Delete) Kind() Kind        { return KindDelete }
func (d Delete) Target() tree.Node { return d.Node }
func (Delete) update()             {}

type Insert struct {
	Where   Kind
	Node    tree.Node
	Content []Content
}

func (i Insert) Kind() Kind        { return i.Where }
func (i Insert) Target() tree.Node { return i.Node }
func (Insert) update()             {}

type InsertAttributes struct {
	Node       tree.Node
	Attributes []tree.Node
}

func (i InsertAttributes) Kind() Kind        { return KindInsertAttributes }
func (i InsertAttributes) Target() tree.Node { return i.Node }
func (InsertAttributes) update()             {}

type ReplaceNode struct {
	Node    tree.Node
	Content []Content
}

func (r ReplaceNode) Kind() Kind        { return KindReplaceNode }
func (r ReplaceNode) Target() tree.Node { return r.Node }
func (ReplaceNode) update()             {}

type ReplaceValue struct {
	Node  tree.Node
	Value string
}

func (r ReplaceValue) Kind() Kind        { return KindReplaceValue }
func (r ReplaceValue) Target() tree.Node { return r.Node }
func (ReplaceValue) update()             {}

// ReplaceContent replaces every child of an element by a single text node,
// or by nothing when Text is empty.
type ReplaceContent struct {
	Node tree.Node
	Text string
}

func (r ReplaceContent) Kind() Kind        { return KindReplaceContent }
func (r ReplaceContent) Target() tree.Node { return r.Node }
func (ReplaceContent) update()             {}

type Rename struct {
	Node tree.Node
	Name tree.QName
}

func (r Rename) Kind() Kind        { return KindRename }
func (r Rename) Target() tree.Node { return r.Node }
func (Rename) update()             {}
