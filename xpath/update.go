package xpath

import (
	"strings"

	"github.com/midbel/xquery/pul"
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

// Update expressions never touch the tree: they append primitives to the
// pending list of the evaluation and give the empty sequence.

type deleteExpr struct {
	base
	target Expr
}

func newDelete(target Expr) *deleteExpr {
	e := deleteExpr{
		target: target,
	}
	e.info = combine(target)
	e.info.Static = false
	e.info.Updating = true
	return &e
}

func (e *deleteExpr) find(ctx Context) (*Sequence, error) {
	seq, err := eval(ctx, e.target)
	if err != nil {
		return nil, err
	}
	return seq.MapAll(func(items []Item) (*Sequence, error) {
		for _, i := range items {
			n, ok := i.Node()
			if !ok {
				return nil, xdm.Errorf(xdm.CodeUpdateDelete, "delete target must be a node, got %s", kindOf(i))
			}
			ctx.Updates.Add(pul.Delete{Node: n})
		}
		return Empty(), nil
	}), nil
}

type insertExpr struct {
	base
	source Expr
	target Expr
	where  pul.Kind
}

func newInsert(source, target Expr, where pul.Kind) *insertExpr {
	e := insertExpr{
		source: source,
		target: target,
		where:  where,
	}
	e.info = combine(source, target)
	e.info.Static = false
	e.info.Updating = true
	return &e
}

func (e *insertExpr) find(ctx Context) (*Sequence, error) {
	source, err := eval(ctx, e.source)
	if err != nil {
		return nil, err
	}
	target, err := eval(ctx, e.target)
	if err != nil {
		return nil, err
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		items, fut, err := source.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		targets, fut, err := target.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		code := xdm.CodeUpdateTarget
		if e.where == pul.KindInsertBefore || e.where == pul.KindInsertAfter {
			code = xdm.CodeUpdateInsertTo
		}
		node, err := updateTarget(targets, code)
		if err != nil {
			return nil, nil, err
		}
		var (
			f    = ctx.Facade()
			kind = f.Kind(node)
		)
		attrs, content := splitContent(f, items)
		switch e.where {
		case pul.KindInsertBefore, pul.KindInsertAfter:
			if kind == tree.KindAttribute || kind == tree.KindDocument {
				return nil, nil, xdm.Errorf(xdm.CodeUpdateInsertTo, "can not insert next to a %s", kind)
			}
			parent, fut := f.Parent(node)
			if fut != nil {
				return nil, fut, nil
			}
			if parent == nil {
				return nil, nil, xdm.Errorf(xdm.CodeUpdateParent, "insert target has no parent")
			}
			if len(attrs) > 0 {
				if f.Kind(parent) != tree.KindElement {
					return nil, nil, xdm.Errorf(xdm.CodeUpdateInsertTo, "attributes can only be inserted in an element")
				}
				ctx.Updates.Add(pul.InsertAttributes{Node: parent, Attributes: attrs})
			}
		default:
			if kind != tree.KindElement && kind != tree.KindDocument {
				return nil, nil, xdm.Errorf(xdm.CodeUpdateTarget, "insert target must be an element or a document, got %s", kind)
			}
			if len(attrs) > 0 {
				if kind != tree.KindElement {
					return nil, nil, xdm.Errorf(xdm.CodeUpdateTarget, "attributes can only be inserted in an element")
				}
				ctx.Updates.Add(pul.InsertAttributes{Node: node, Attributes: attrs})
			}
		}
		if len(content) > 0 {
			ctx.Updates.Add(pul.Insert{
				Where:   e.where,
				Node:    node,
				Content: content,
			})
		}
		return Empty(), nil, nil
	}), nil
}

type replaceExpr struct {
	base
	target Expr
	with   Expr
	value  bool
}

func newReplace(target, with Expr, value bool) *replaceExpr {
	e := replaceExpr{
		target: target,
		with:   with,
		value:  value,
	}
	e.info = combine(target, with)
	e.info.Static = false
	e.info.Updating = true
	return &e
}

func (e *replaceExpr) find(ctx Context) (*Sequence, error) {
	target, err := eval(ctx, e.target)
	if err != nil {
		return nil, err
	}
	with, err := eval(ctx, e.with)
	if err != nil {
		return nil, err
	}
	if e.value {
		with = with.Atomize(ctx)
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		targets, fut, err := target.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		items, fut, err := with.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		node, err := updateTarget(targets, xdm.CodeUpdateReplace)
		if err != nil {
			return nil, nil, err
		}
		f := ctx.Facade()
		if e.value {
			text := joinAtomics(items)
			switch f.Kind(node) {
			case tree.KindElement:
				ctx.Updates.Add(pul.ReplaceContent{Node: node, Text: text})
			case tree.KindDocument:
				return nil, nil, xdm.Errorf(xdm.CodeUpdateReplace, "can not replace the value of a document")
			default:
				ctx.Updates.Add(pul.ReplaceValue{Node: node, Value: text})
			}
			return Empty(), nil, nil
		}
		parent, fut := f.Parent(node)
		if fut != nil {
			return nil, fut, nil
		}
		if parent == nil {
			return nil, nil, xdm.Errorf(xdm.CodeUpdateParent, "replaced node has no parent")
		}
		attrs, content := splitContent(f, items)
		if f.Kind(node) == tree.KindAttribute {
			if len(content) > 0 {
				return nil, nil, xdm.Errorf("XUTY0011", "an attribute can only be replaced by attributes")
			}
			for _, a := range attrs {
				content = append(content, pul.NodeContent(a))
			}
		} else if len(attrs) > 0 {
			return nil, nil, xdm.Errorf("XUTY0010", "only an attribute can be replaced by attributes")
		}
		ctx.Updates.Add(pul.ReplaceNode{Node: node, Content: content})
		return Empty(), nil, nil
	}), nil
}

type renameExpr struct {
	base
	target Expr
	name   Expr
}

func newRename(target, name Expr) *renameExpr {
	e := renameExpr{
		target: target,
		name:   name,
	}
	e.info = combine(target, name)
	e.info.Static = false
	e.info.Updating = true
	return &e
}

func (e *renameExpr) find(ctx Context) (*Sequence, error) {
	target, err := eval(ctx, e.target)
	if err != nil {
		return nil, err
	}
	name, err := eval(ctx, e.name)
	if err != nil {
		return nil, err
	}
	get := optionalAtomic(ctx, name)
	return Lazy(func() (*Sequence, tree.Future, error) {
		targets, fut, err := target.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		v, fut, err := get()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		node, err := updateTarget(targets, xdm.CodeUpdateRename)
		if err != nil {
			return nil, nil, err
		}
		switch k := ctx.Facade().Kind(node); k {
		case tree.KindElement, tree.KindAttribute, tree.KindInstruction:
		default:
			return nil, nil, xdm.Errorf(xdm.CodeUpdateRename, "%s can not be renamed", k)
		}
		qn, err := nameOf(ctx, v)
		if err != nil {
			return nil, nil, err
		}
		ctx.Updates.Add(pul.Rename{Node: node, Name: qn})
		return Empty(), nil, nil
	}), nil
}

// updateTarget checks that the target of an update is exactly one node.
func updateTarget(items []Item, code string) (tree.Node, error) {
	if len(items) != 1 {
		return nil, xdm.Errorf(code, "update target must be a single node, got %d items", len(items))
	}
	n, ok := items[0].Node()
	if !ok {
		return nil, xdm.Errorf(code, "update target must be a node, got %s", kindOf(items[0]))
	}
	return n, nil
}

// splitContent separates the attributes from the rest of the content of an
// insert or a replace. Adjacent atomic values are joined into a single text.
func splitContent(f tree.Facade, items []Item) ([]tree.Node, []pul.Content) {
	var (
		attrs   []tree.Node
		content []pul.Content
		texts   []string
	)
	flush := func() {
		if len(texts) > 0 {
			content = append(content, pul.TextContent(strings.Join(texts, " ")))
			texts = texts[:0]
		}
	}
	for _, i := range items {
		if v, ok := i.Atomic(); ok {
			texts = append(texts, v.String())
			continue
		}
		flush()
		n, ok := i.Node()
		if !ok {
			continue
		}
		if f.Kind(n) == tree.KindAttribute {
			attrs = append(attrs, n)
			continue
		}
		content = append(content, pul.NodeContent(n))
	}
	flush()
	return attrs, content
}

func joinAtomics(items []Item) string {
	parts := make([]string, 0, len(items))
	for _, i := range items {
		v, _ := i.Atomic()
		parts = append(parts, v.String())
	}
	return strings.Join(parts, " ")
}
