package xpath

import (
	"strings"

	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

// constructor is a computed node constructor. The name is either fixed at
// compile time or computed by nameExpr.
type constructor struct {
	base
	kind     tree.Kind
	name     tree.QName
	nameExpr Expr
	content  Expr
}

func newConstructor(kind tree.Kind, name tree.QName, nameExpr, content Expr) *constructor {
	e := constructor{
		kind:     kind,
		name:     name,
		nameExpr: nameExpr,
		content:  content,
	}
	e.info = combine(nameExpr, content)
	e.info.Static = false
	return &e
}

func (e *constructor) find(ctx Context) (*Sequence, error) {
	if ctx.Factory == nil {
		return nil, xdm.Errorf(xdm.CodeUnidentified, "%s constructor: no node factory configured", e.kind)
	}
	var (
		getName func() (*xdm.Value, tree.Future, error)
		content *Sequence
	)
	if e.nameExpr != nil {
		seq, err := eval(ctx, e.nameExpr)
		if err != nil {
			return nil, err
		}
		getName = optionalAtomic(ctx, seq)
	}
	if e.content != nil {
		seq, err := eval(ctx, e.content)
		if err != nil {
			return nil, err
		}
		content = seq
		if e.kind != tree.KindElement && e.kind != tree.KindDocument {
			content = seq.Atomize(ctx)
		}
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		name := e.name
		if getName != nil {
			v, fut, err := getName()
			if err != nil || fut != nil {
				return nil, fut, err
			}
			if name, err = nameOf(ctx, v); err != nil {
				return nil, nil, err
			}
		}
		var (
			parts []string
			items []Item
			empty = true
		)
		if content != nil {
			var (
				fut tree.Future
				err error
			)
			if items, fut, err = content.Collect(); err != nil || fut != nil {
				return nil, fut, err
			}
		}
		if (e.kind == tree.KindElement || e.kind == tree.KindDocument) && len(items) > 0 {
			n, fut, err := e.build(ctx, name, items)
			if err != nil || fut != nil {
				return nil, fut, err
			}
			return Singleton(NodeItem(n)), nil, nil
		}
		if content != nil {
			for _, i := range items {
				v, _ := i.Atomic()
				parts = append(parts, v.String())
			}
			empty = len(items) == 0
		}
		text := strings.Join(parts, " ")
		n, err := e.create(ctx.Factory, name, text, empty)
		if err != nil || n == nil {
			return Empty(), nil, err
		}
		return Singleton(NodeItem(n)), nil, nil
	}), nil
}

func (e *constructor) create(f tree.Factory, name tree.QName, text string, empty bool) (tree.Node, error) {
	switch e.kind {
	case tree.KindElement:
		return f.CreateElement(name), nil
	case tree.KindAttribute:
		return f.CreateAttribute(name, text), nil
	case tree.KindText:
		if empty {
			return nil, nil
		}
		return f.CreateText(text), nil
	case tree.KindComment:
		if strings.Contains(text, "--") || strings.HasSuffix(text, "-") {
			return nil, xdm.Errorf("XQDY0072", "invalid comment content")
		}
		return f.CreateComment(text), nil
	case tree.KindInstruction:
		if strings.Contains(text, "?>") {
			return nil, xdm.Errorf("XQDY0026", "invalid processing instruction content")
		}
		return f.CreateInstruction(name.LocalName(), strings.TrimLeft(text, " \t\r\n")), nil
	case tree.KindDocument:
		return f.CreateDocument(), nil
	default:
		return nil, typeError("%s: node kind can not be constructed", e.kind)
	}
}

// build creates an element or a document and attaches copies of the content
// nodes to it. Adjacent atomic values become one text node. Attributes must
// come before any other content.
func (e *constructor) build(ctx Context, name tree.QName, items []Item) (tree.Node, tree.Future, error) {
	b, ok := ctx.Factory.(tree.Builder)
	if !ok {
		return nil, nil, xdm.Errorf(xdm.CodeUnidentified, "%s constructor: factory can not attach content", e.kind)
	}
	f := ctx.Facade()
	var (
		cp = copier{
			facade:  f,
			factory: ctx.Factory,
			builder: b,
		}
		list  []tree.Node
		texts []string
		seen  = make(map[string]struct{})
		other bool
	)
	flush := func() {
		if len(texts) > 0 {
			list = append(list, ctx.Factory.CreateText(strings.Join(texts, " ")))
			texts = texts[:0]
			other = true
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
			return nil, nil, typeError("%s can not be used as node content", kindOf(i))
		}
		if f == nil {
			return nil, nil, ErrFacade
		}
		kind := f.Kind(n)
		if kind == tree.KindAttribute {
			if e.kind == tree.KindDocument {
				return nil, nil, xdm.Errorf(xdm.CodeType, "document node can not have attributes")
			}
			if other {
				return nil, nil, xdm.Errorf("XQTY0024", "attribute after element content")
			}
			key := f.Name(n).ExpandedName()
			if _, ok := seen[key]; ok {
				return nil, nil, xdm.Errorf("XQDY0025", "%s: duplicate attribute", key)
			}
			seen[key] = struct{}{}
		} else {
			other = true
		}
		nodes, fut, err := cp.content(n)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		list = append(list, nodes...)
	}
	flush()
	res, err := e.create(ctx.Factory, name, "", true)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range list {
		if err := b.AppendChild(res, n); err != nil {
			return nil, nil, xdm.Wrap(xdm.CodeType, err)
		}
	}
	return res, nil, nil
}

// copier makes detached deep copies of nodes. A copy interrupted by a future
// is started again from scratch.
type copier struct {
	facade  tree.Facade
	factory tree.Factory
	builder tree.Builder
}

// content copies n, or the children of n when it is a document.
func (c copier) content(n tree.Node) ([]tree.Node, tree.Future, error) {
	if c.facade.Kind(n) != tree.KindDocument {
		x, fut, err := c.copy(n)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		return []tree.Node{x}, nil, nil
	}
	children, fut := c.facade.Children(n)
	if fut != nil {
		return nil, fut, nil
	}
	var list []tree.Node
	for _, x := range children {
		x, fut, err := c.copy(x)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		list = append(list, x)
	}
	return list, nil, nil
}

func (c copier) copy(n tree.Node) (tree.Node, tree.Future, error) {
	switch kind := c.facade.Kind(n); kind {
	case tree.KindText:
		return c.factory.CreateText(c.facade.Data(n)), nil, nil
	case tree.KindCData:
		return c.factory.CreateCData(c.facade.Data(n)), nil, nil
	case tree.KindComment:
		return c.factory.CreateComment(c.facade.Data(n)), nil, nil
	case tree.KindInstruction:
		return c.factory.CreateInstruction(c.facade.Name(n).LocalName(), c.facade.Data(n)), nil, nil
	case tree.KindAttribute:
		return c.factory.CreateAttribute(c.facade.Name(n), c.facade.Data(n)), nil, nil
	case tree.KindElement:
		elem := c.factory.CreateElement(c.facade.Name(n))
		attrs, fut := c.facade.Attributes(n)
		if fut != nil {
			return nil, fut, nil
		}
		children, fut := c.facade.Children(n)
		if fut != nil {
			return nil, fut, nil
		}
		for _, x := range append(attrs, children...) {
			x, fut, err := c.copy(x)
			if err != nil || fut != nil {
				return nil, fut, err
			}
			if err := c.builder.AppendChild(elem, x); err != nil {
				return nil, nil, err
			}
		}
		return elem, nil, nil
	default:
		return nil, nil, typeError("%s can not be copied", kind)
	}
}

// nameOf turns a computed name into a QName, resolving its prefix with the
// namespaces of the configuration.
func nameOf(ctx Context, v *xdm.Value) (tree.QName, error) {
	if v == nil {
		return tree.QName{}, typeError("computed name can not be the empty sequence")
	}
	if v.Primitive() == xdm.QName {
		return v.QName(), nil
	}
	if !v.Stringish() {
		return tree.QName{}, typeError("computed name must be a string or a QName, got %s", v.Type)
	}
	qn, err := tree.ParseName(strings.TrimSpace(v.String()))
	if err != nil {
		return qn, xdm.Wrap("XQDY0074", err)
	}
	if qn.Space != "" {
		uri, ok := ctx.resolve(qn.Space)
		if !ok {
			return qn, xdm.Errorf(xdm.CodePrefix, "%s: prefix not bound", qn.Space)
		}
		qn.Uri = uri
	}
	return qn, nil
}
