package pul

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/midbel/xquery/tree"
)

var ErrApply = errors.New("update can not be applied")

// order of application of the primitives. Primitives of the same stage keep
// the order in which they were accumulated.
var stages = map[Kind]int{
	KindInsertInto:       0,
	KindInsertAttributes: 0,
	KindReplaceValue:     0,
	KindRename:           0,
	KindInsertBefore:     1,
	KindInsertAfter:      1,
	KindInsertFirst:      1,
	KindInsertLast:       1,
	KindReplaceNode:      2,
	KindReplaceContent:   3,
	KindDelete:           4,
}

// Apply runs the primitives of the list against the host tree. Content nodes
// are deep copied with the factory before being attached. The facade is only
// used to read the tree and may be asynchronous, in which case Apply waits on
// its futures until ctx is done.
func Apply(ctx context.Context, list *List, facade tree.Facade, factory tree.Factory, writer tree.Writer) error {
	if list == nil || list.Empty() {
		return nil
	}
	if err := list.Check(); err != nil {
		return err
	}
	updates := list.Updates()
	slices.SortStableFunc(updates, func(a, b Update) int {
		return stages[a.Kind()] - stages[b.Kind()]
	})
	a := applier{
		ctx:     ctx,
		facade:  facade,
		factory: factory,
		writer:  writer,
		deleted: make(map[tree.Node]struct{}),
		copies:  make(map[int][]tree.Node),
	}
	// content is copied before the tree is modified by any primitive
	for i, u := range updates {
		var (
			nodes []tree.Node
			err   error
		)
		switch u := u.(type) {
		case Insert:
			nodes, err = a.content(u.Content)
		case ReplaceNode:
			if a.facade.Kind(u.Node) != tree.KindAttribute {
				nodes, err = a.content(u.Content)
			}
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", u.Kind(), err)
		}
		a.copies[i] = nodes
	}
	for i, u := range updates {
		if err := a.apply(u, a.copies[i]); err != nil {
			return fmt.Errorf("%s: %w", u.Kind(), err)
		}
	}
	return nil
}

type applier struct {
	ctx     context.Context
	facade  tree.Facade
	factory tree.Factory
	writer  tree.Writer
	deleted map[tree.Node]struct{}
	copies  map[int][]tree.Node
}

func (a *applier) apply(u Update, nodes []tree.Node) error {
	switch u := u.(type) {
	case Delete:
		return a.delete(u.Node)
	case Insert:
		return a.insert(u, nodes)
	case InsertAttributes:
		for _, n := range u.Attributes {
			name, value := a.facade.Name(n), a.facade.Data(n)
			if err := a.writer.SetAttribute(u.Node, name, value); err != nil {
				return err
			}
		}
		return nil
	case ReplaceNode:
		return a.replace(u, nodes)
	case ReplaceValue:
		if a.facade.Kind(u.Node) == tree.KindAttribute {
			parent, err := a.parent(u.Node)
			if err != nil {
				return err
			}
			return a.writer.SetAttribute(parent, a.facade.Name(u.Node), u.Value)
		}
		return a.writer.SetData(u.Node, u.Value)
	case ReplaceContent:
		return a.replaceContent(u)
	case Rename:
		return a.rename(u)
	default:
		return ErrApply
	}
}

func (a *applier) delete(n tree.Node) error {
	if _, ok := a.deleted[n]; ok {
		return nil
	}
	parent, err := a.parent(n)
	if err != nil {
		return err
	}
	if parent == nil {
		// a node without parent is detached already
		return nil
	}
	a.deleted[n] = struct{}{}
	if a.facade.Kind(n) == tree.KindAttribute {
		return a.writer.RemoveAttribute(parent, a.facade.Name(n))
	}
	return a.writer.RemoveChild(parent, n)
}

func (a *applier) insert(u Insert, nodes []tree.Node) error {
	var (
		parent = u.Node
		ref    tree.Node
		err    error
	)
	switch u.Where {
	case KindInsertBefore:
		if parent, err = a.parent(u.Node); err != nil {
			return err
		}
		ref = u.Node
	case KindInsertAfter:
		if parent, err = a.parent(u.Node); err != nil {
			return err
		}
		ref, err = wait(a.ctx, func() (tree.Node, tree.Future) {
			return a.facade.NextSibling(u.Node)
		})
	case KindInsertFirst:
		ref, err = wait(a.ctx, func() (tree.Node, tree.Future) {
			return a.facade.FirstChild(u.Node)
		})
	case KindInsertInto, KindInsertLast:
	default:
		return ErrApply
	}
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("target has no parent: %w", ErrApply)
	}
	return a.insertAll(parent, nodes, ref)
}

func (a *applier) replace(u ReplaceNode, nodes []tree.Node) error {
	parent, err := a.parent(u.Node)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("replaced node has no parent: %w", ErrApply)
	}
	if a.facade.Kind(u.Node) == tree.KindAttribute {
		if err := a.writer.RemoveAttribute(parent, a.facade.Name(u.Node)); err != nil {
			return err
		}
		for _, c := range u.Content {
			if c.IsText() {
				continue
			}
			name, value := a.facade.Name(c.Node), a.facade.Data(c.Node)
			if err := a.writer.SetAttribute(parent, name, value); err != nil {
				return err
			}
		}
		return nil
	}
	if err := a.insertAll(parent, nodes, u.Node); err != nil {
		return err
	}
	a.deleted[u.Node] = struct{}{}
	return a.writer.RemoveChild(parent, u.Node)
}

func (a *applier) replaceContent(u ReplaceContent) error {
	children, err := wait(a.ctx, func() ([]tree.Node, tree.Future) {
		return a.facade.Children(u.Node)
	})
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := a.writer.RemoveChild(u.Node, c); err != nil {
			return err
		}
	}
	if u.Text == "" {
		return nil
	}
	return a.writer.InsertBefore(u.Node, a.factory.CreateText(u.Text), nil)
}

// rename swaps an element or a processing instruction for a new node with the
// same content. Attributes are removed and set again under their new name.
func (a *applier) rename(u Rename) error {
	parent, err := a.parent(u.Node)
	if err != nil {
		return err
	}
	switch kind := a.facade.Kind(u.Node); kind {
	case tree.KindAttribute:
		if parent == nil {
			return fmt.Errorf("attribute has no parent: %w", ErrApply)
		}
		value := a.facade.Data(u.Node)
		if err := a.writer.RemoveAttribute(parent, a.facade.Name(u.Node)); err != nil {
			return err
		}
		return a.writer.SetAttribute(parent, u.Name, value)
	case tree.KindInstruction:
		if parent == nil {
			return fmt.Errorf("instruction has no parent: %w", ErrApply)
		}
		node := a.factory.CreateInstruction(u.Name.LocalName(), a.facade.Data(u.Node))
		if err := a.writer.InsertBefore(parent, node, u.Node); err != nil {
			return err
		}
		return a.writer.RemoveChild(parent, u.Node)
	case tree.KindElement:
		if parent == nil {
			return fmt.Errorf("renaming a root element: %w", ErrApply)
		}
		elem := a.factory.CreateElement(u.Name)
		attrs, err := wait(a.ctx, func() ([]tree.Node, tree.Future) {
			return a.facade.Attributes(u.Node)
		})
		if err != nil {
			return err
		}
		for _, n := range attrs {
			if err := a.writer.SetAttribute(elem, a.facade.Name(n), a.facade.Data(n)); err != nil {
				return err
			}
		}
		children, err := wait(a.ctx, func() ([]tree.Node, tree.Future) {
			return a.facade.Children(u.Node)
		})
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := a.writer.RemoveChild(u.Node, c); err != nil {
				return err
			}
			if err := a.writer.InsertBefore(elem, c, nil); err != nil {
				return err
			}
		}
		if err := a.writer.InsertBefore(parent, elem, u.Node); err != nil {
			return err
		}
		return a.writer.RemoveChild(parent, u.Node)
	default:
		return fmt.Errorf("%s can not be renamed: %w", kind, ErrApply)
	}
}

func (a *applier) insertAll(parent tree.Node, nodes []tree.Node, ref tree.Node) error {
	for _, n := range nodes {
		if err := a.writer.InsertBefore(parent, n, ref); err != nil {
			return err
		}
	}
	return nil
}

func (a *applier) content(list []Content) ([]tree.Node, error) {
	var nodes []tree.Node
	for _, c := range list {
		if c.IsText() {
			nodes = append(nodes, a.factory.CreateText(c.Text))
			continue
		}
		if a.facade.Kind(c.Node) == tree.KindDocument {
			children, err := wait(a.ctx, func() ([]tree.Node, tree.Future) {
				return a.facade.Children(c.Node)
			})
			if err != nil {
				return nil, err
			}
			for _, n := range children {
				x, err := a.copy(n)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, x)
			}
			continue
		}
		x, err := a.copy(c.Node)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, x)
	}
	return nodes, nil
}

// copy creates a detached deep copy of n.
func (a *applier) copy(n tree.Node) (tree.Node, error) {
	switch kind := a.facade.Kind(n); kind {
	case tree.KindText:
		return a.factory.CreateText(a.facade.Data(n)), nil
	case tree.KindCData:
		return a.factory.CreateCData(a.facade.Data(n)), nil
	case tree.KindComment:
		return a.factory.CreateComment(a.facade.Data(n)), nil
	case tree.KindInstruction:
		return a.factory.CreateInstruction(a.facade.Name(n).LocalName(), a.facade.Data(n)), nil
	case tree.KindAttribute:
		return a.factory.CreateAttribute(a.facade.Name(n), a.facade.Data(n)), nil
	case tree.KindElement:
		elem := a.factory.CreateElement(a.facade.Name(n))
		attrs, err := wait(a.ctx, func() ([]tree.Node, tree.Future) {
			return a.facade.Attributes(n)
		})
		if err != nil {
			return nil, err
		}
		for _, x := range attrs {
			if err := a.writer.SetAttribute(elem, a.facade.Name(x), a.facade.Data(x)); err != nil {
				return nil, err
			}
		}
		children, err := wait(a.ctx, func() ([]tree.Node, tree.Future) {
			return a.facade.Children(n)
		})
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			x, err := a.copy(c)
			if err != nil {
				return nil, err
			}
			if err := a.writer.InsertBefore(elem, x, nil); err != nil {
				return nil, err
			}
		}
		return elem, nil
	default:
		return nil, fmt.Errorf("copy %s: %w", kind, tree.ErrNode)
	}
}

func (a *applier) parent(n tree.Node) (tree.Node, error) {
	return wait(a.ctx, func() (tree.Node, tree.Future) {
		return a.facade.Parent(n)
	})
}

// wait repeats a facade lookup until it gives an answer.
func wait[T any](ctx context.Context, get func() (T, tree.Future)) (T, error) {
	for {
		v, fut := get()
		if fut == nil {
			return v, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-fut.Done():
		}
	}
}
