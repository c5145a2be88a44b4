package pul

import (
	"context"
	"fmt"

	"github.com/midbel/xquery/tree"
)

// Node is a serialisable copy of a node handle.
type Node struct {
	Kind       string  `json:"kind"`
	Name       string  `json:"name,omitempty"`
	Uri        string  `json:"uri,omitempty"`
	Value      string  `json:"value,omitempty"`
	Attributes []*Node `json:"attributes,omitempty"`
	Children   []*Node `json:"children,omitempty"`
}

// Transfer is the serialisable form of an update primitive.
type Transfer struct {
	Kind    string  `json:"kind"`
	Target  *Node   `json:"target"`
	Content []*Node `json:"content,omitempty"`
	Value   string  `json:"value,omitempty"`
	Name    string  `json:"name,omitempty"`
	Uri     string  `json:"uri,omitempty"`
}

// ToTransferable projects the handles of an update into plain values. The
// target is given without its descendants, the content is copied deeply.
func ToTransferable(ctx context.Context, u Update, facade tree.Facade) (*Transfer, error) {
	var (
		p   = projector{ctx: ctx, facade: facade}
		res = Transfer{Kind: u.Kind().String()}
		err error
	)
	if res.Target, err = p.project(u.Target(), false); err != nil {
		return nil, err
	}
	switch u := u.(type) {
	case Delete:
	case Insert:
		res.Content, err = p.content(u.Content)
	case InsertAttributes:
		for _, a := range u.Attributes {
			x, err := p.project(a, true)
			if err != nil {
				return nil, err
			}
			res.Content = append(res.Content, x)
		}
	case ReplaceNode:
		res.Content, err = p.content(u.Content)
	case ReplaceValue:
		res.Value = u.Value
	case ReplaceContent:
		res.Value = u.Text
	case Rename:
		res.Name = u.Name.QualifiedName()
		res.Uri = u.Name.Uri
	default:
		return nil, ErrApply
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Transferable projects all the updates of a list.
func (l *List) Transferable(ctx context.Context, facade tree.Facade) ([]*Transfer, error) {
	var list []*Transfer
	for _, u := range l.updates {
		t, err := ToTransferable(ctx, u, facade)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, nil
}

type projector struct {
	ctx    context.Context
	facade tree.Facade
}

func (p projector) content(list []Content) ([]*Node, error) {
	var res []*Node
	for _, c := range list {
		if c.IsText() {
			res = append(res, &Node{
				Kind:  tree.KindText.String(),
				Value: c.Text,
			})
			continue
		}
		x, err := p.project(c.Node, true)
		if err != nil {
			return nil, err
		}
		res = append(res, x)
	}
	return res, nil
}

func (p projector) project(n tree.Node, deep bool) (*Node, error) {
	if n == nil {
		return nil, fmt.Errorf("project: %w", tree.ErrNode)
	}
	var (
		kind = p.facade.Kind(n)
		name = p.facade.Name(n)
		res  = Node{
			Kind: kind.String(),
			Name: name.QualifiedName(),
			Uri:  name.Uri,
		}
	)
	if kind != tree.KindElement && kind != tree.KindDocument {
		res.Value = p.facade.Data(n)
		return &res, nil
	}
	if kind == tree.KindElement {
		attrs, err := wait(p.ctx, func() ([]tree.Node, tree.Future) {
			return p.facade.Attributes(n)
		})
		if err != nil {
			return nil, err
		}
		for _, a := range attrs {
			x, err := p.project(a, false)
			if err != nil {
				return nil, err
			}
			res.Attributes = append(res.Attributes, x)
		}
	}
	if !deep {
		return &res, nil
	}
	children, err := wait(p.ctx, func() ([]tree.Node, tree.Future) {
		return p.facade.Children(n)
	})
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		x, err := p.project(c, true)
		if err != nil {
			return nil, err
		}
		res.Children = append(res.Children, x)
	}
	return &res, nil
}
