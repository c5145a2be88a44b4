package dom

import (
	"errors"
	"fmt"

	"github.com/midbel/xquery/tree"
)

var ErrHierarchy = errors.New("invalid hierarchy")

// Factory creates detached dom nodes.
type Factory struct{}

func (Factory) CreateDocument() tree.Node {
	return NewDocument()
}

func (Factory) CreateElement(name tree.QName) tree.Node {
	return NewElement(name)
}

func (Factory) CreateAttribute(name tree.QName, value string) tree.Node {
	return NewAttribute(name, value)
}

func (Factory) CreateText(text string) tree.Node {
	return NewText(text)
}

func (Factory) CreateCData(text string) tree.Node {
	return NewCData(text)
}

func (Factory) CreateComment(text string) tree.Node {
	return NewComment(text)
}

func (Factory) CreateInstruction(target, data string) tree.Node {
	return NewInstruction(target, data)
}

func (Factory) AppendChild(parent, child tree.Node) error {
	p, c := node(parent), node(child)
	if p == nil || c == nil {
		return fmt.Errorf("append: %w", tree.ErrNode)
	}
	if c.Kind == tree.KindAttribute {
		if p.Kind != tree.KindElement {
			return fmt.Errorf("attribute on %s: %w", p.Kind, ErrHierarchy)
		}
		p.AppendAttr(c)
		return nil
	}
	return Writer{}.InsertBefore(parent, child, nil)
}

// Writer mutates dom nodes in place.
type Writer struct{}

func (Writer) InsertBefore(parent, child, ref tree.Node) error {
	p, c := node(parent), node(child)
	if p == nil || c == nil {
		return fmt.Errorf("insert: %w", tree.ErrNode)
	}
	if p.Kind != tree.KindElement && p.Kind != tree.KindDocument {
		return fmt.Errorf("insert into %s: %w", p.Kind, ErrHierarchy)
	}
	switch c.Kind {
	case tree.KindAttribute, tree.KindDocument:
		return fmt.Errorf("insert %s as child: %w", c.Kind, ErrHierarchy)
	}
	r := node(ref)
	if r != nil && r.parent != p {
		return fmt.Errorf("insert: reference node is not a child: %w", ErrHierarchy)
	}
	p.Insert(c, r)
	return nil
}

func (Writer) RemoveChild(parent, child tree.Node) error {
	p, c := node(parent), node(child)
	if p == nil || c == nil {
		return fmt.Errorf("remove: %w", tree.ErrNode)
	}
	if !p.Remove(c) {
		return fmt.Errorf("remove: node is not a child: %w", ErrHierarchy)
	}
	return nil
}

func (Writer) SetAttribute(elem tree.Node, name tree.QName, value string) error {
	e := node(elem)
	if e == nil || e.Kind != tree.KindElement {
		return fmt.Errorf("set attribute: %w", tree.ErrNode)
	}
	e.SetAttr(name, value)
	return nil
}

func (Writer) RemoveAttribute(elem tree.Node, name tree.QName) error {
	e := node(elem)
	if e == nil || e.Kind != tree.KindElement {
		return fmt.Errorf("remove attribute: %w", tree.ErrNode)
	}
	e.RemoveAttr(name)
	return nil
}

func (Writer) SetData(n tree.Node, data string) error {
	x := node(n)
	if x == nil {
		return fmt.Errorf("set data: %w", tree.ErrNode)
	}
	switch x.Kind {
	case tree.KindElement, tree.KindDocument:
		return fmt.Errorf("set data on %s: %w", x.Kind, ErrHierarchy)
	}
	x.Data = data
	return nil
}
