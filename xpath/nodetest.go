package xpath

import (
	"github.com/midbel/xquery/tree"
)

type nodeTest interface {
	match(tree.Facade, tree.Node, tree.Kind) bool
	specificity() Specificity
	bucket(tree.Kind) string
	String() string
}

// nameTest matches nodes of the principal kind of the axis by name. An empty
// Local or a nil Uri stands for the wildcard.
type nameTest struct {
	Uri   *string
	Space string
	Local string
}

func (n nameTest) match(f tree.Facade, node tree.Node, principal tree.Kind) bool {
	if f.Kind(node) != principal {
		return false
	}
	qn := f.Name(node)
	if n.Local != "" && qn.Name != n.Local {
		return false
	}
	return n.Uri == nil || *n.Uri == qn.Uri
}

func (n nameTest) specificity() Specificity {
	if n.Local == "" && n.Uri == nil {
		return Specificity{Types: 1}
	}
	return Specificity{Names: 1}
}

func (n nameTest) bucket(principal tree.Kind) string {
	if n.Local == "" {
		return tree.TypeBucket(principal)
	}
	return tree.NameBucket(n.Local)
}

func (n nameTest) String() string {
	var prefix string
	switch {
	case n.Uri == nil:
		prefix = "*:"
	case n.Space != "":
		prefix = n.Space + ":"
	}
	local := n.Local
	if local == "" {
		local = "*"
	}
	if prefix == "*:" && local == "*" {
		return "*"
	}
	return prefix + local
}

// kindTest matches nodes by kind. A zero kind matches any node.
type kindTest struct {
	kind tree.Kind
	name *nameTest
}

func (k kindTest) match(f tree.Facade, node tree.Node, _ tree.Kind) bool {
	curr := f.Kind(node)
	switch {
	case k.kind == 0:
		return true
	case k.kind == tree.KindText:
		return curr.Textual()
	case k.kind != curr:
		return false
	case k.name != nil:
		return k.name.match(f, node, curr)
	default:
		return true
	}
}

func (k kindTest) specificity() Specificity {
	spec := Specificity{Types: 1}
	if k.kind == 0 {
		spec.Types = 0
	}
	if k.name != nil && k.name.Local != "" {
		spec.Names++
	}
	return spec
}

func (k kindTest) bucket(_ tree.Kind) string {
	switch k.kind {
	case 0, tree.KindText:
		return ""
	case tree.KindElement, tree.KindAttribute:
		if k.name != nil && k.name.Local != "" {
			return tree.NameBucket(k.name.Local)
		}
	}
	return tree.TypeBucket(k.kind)
}

func (k kindTest) String() string {
	var name string
	if k.name != nil {
		name = k.name.String()
	}
	switch k.kind {
	case 0:
		return "node()"
	case tree.KindText:
		return "text()"
	case tree.KindComment:
		return "comment()"
	case tree.KindInstruction:
		return "processing-instruction(" + name + ")"
	case tree.KindDocument:
		return "document-node()"
	case tree.KindAttribute:
		return "attribute(" + name + ")"
	default:
		return "element(" + name + ")"
	}
}

var kindTests = map[string]tree.Kind{
	"node":                   0,
	"text":                   tree.KindText,
	"comment":                tree.KindComment,
	"processing-instruction": tree.KindInstruction,
	"document-node":          tree.KindDocument,
	"element":                tree.KindElement,
	"attribute":              tree.KindAttribute,
}

func isKindTest(str string) bool {
	_, ok := kindTests[str]
	return ok
}
