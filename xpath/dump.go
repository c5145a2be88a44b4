package xpath

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/midbel/xquery/tree"
)

// Debug gives a textual representation of the tree of a compiled expression.
func Debug(expr Expr) string {
	var str strings.Builder
	debugExpr(&str, expr)
	return str.String()
}

func debugExpr(w io.Writer, expr Expr) {
	switch v := expr.(type) {
	case nil:
		io.WriteString(w, "nil")
	case *Query:
		debugExpr(w, v.expr)
	case *root:
		io.WriteString(w, "root")
	case *current:
		io.WriteString(w, "current")
	case *literal:
		io.WriteString(w, "literal(")
		io.WriteString(w, strconv.Quote(v.value.String()))
		io.WriteString(w, ", ")
		io.WriteString(w, v.value.Type.String())
		io.WriteString(w, ")")
	case *varRef:
		io.WriteString(w, "variable(")
		io.WriteString(w, v.ident)
		io.WriteString(w, ")")
	case *axisStep:
		io.WriteString(w, "axis(")
		io.WriteString(w, string(v.axis))
		io.WriteString(w, ", ")
		io.WriteString(w, v.test.String())
		io.WriteString(w, ")")
	case *path:
		debugList(w, "path", v.steps...)
	case *filter:
		debugList(w, "filter", v.expr, v.pred)
	case *simpleMap:
		debugList(w, "map", v.left, v.right)
	case *sequence:
		debugList(w, "sequence", v.all...)
	case *rangeExpr:
		debugList(w, "range", v.from, v.to)
	case *concatenation:
		debugList(w, "concat", v.all...)
	case *logical:
		name := "or"
		if v.and {
			name = "and"
		}
		debugList(w, name, v.all...)
	case *binary:
		debugList(w, "binary["+v.op.String()+"]", v.left, v.right)
	case *unary:
		name := "plus"
		if v.negate {
			name = "negate"
		}
		debugList(w, name, v.expr)
	case *generalCmp:
		debugList(w, "general["+v.op.String()+"]", v.left, v.right)
	case *valueCmp:
		debugList(w, "value["+v.op.String()+"]", v.left, v.right)
	case *nodeCmp:
		name := "is"
		switch v.op {
		case nodeBefore:
			name = "before"
		case nodeAfter:
			name = "after"
		}
		debugList(w, name, v.left, v.right)
	case *setExpr:
		debugList(w, v.op.String(), v.left, v.right)
	case *conditional:
		debugList(w, "if", v.test, v.csq, v.alt)
	case *let:
		debugBindings(w, "let", v.binds, v.body)
	case *loop:
		debugBindings(w, "for", v.binds, v.body)
	case *quantified:
		name := "some"
		if v.every {
			name = "every"
		}
		debugBindings(w, name, v.binds, v.test)
	case *cast:
		debugList(w, "cast["+v.target.String()+optional(v.optional)+"]", v.expr)
	case *castable:
		debugList(w, "castable["+v.target.String()+optional(v.optional)+"]", v.expr)
	case *instanceOf:
		debugList(w, "instance-of["+v.kind.String()+"]", v.expr)
	case *treat:
		debugList(w, "treat["+v.kind.String()+"]", v.expr)
	case *call:
		debugList(w, "call["+v.fn.Name.ExpandedName()+"]", v.args...)
	case *dynCall:
		debugList(w, "dynamic-call", append([]Expr{v.expr}, v.args...)...)
	case *lookup:
		debugList(w, "lookup", v.expr, v.key)
	case *mapExpr:
		io.WriteString(w, "map(")
		for i, e := range v.entries {
			if i > 0 {
				io.WriteString(w, ", ")
			}
			debugExpr(w, e.key)
			io.WriteString(w, ": ")
			debugExpr(w, e.value)
		}
		io.WriteString(w, ")")
	case *arrayExpr:
		debugList(w, "array", v.all...)
	case *constructor:
		name := v.kind.String()
		if v.name != (tree.QName{}) {
			name += "[" + v.name.QualifiedName() + "]"
		}
		debugList(w, name, v.nameExpr, v.content)
	case *deleteExpr:
		debugList(w, "delete", v.target)
	case *insertExpr:
		debugList(w, "insert["+v.where.String()+"]", v.source, v.target)
	case *replaceExpr:
		name := "replace"
		if v.value {
			name = "replace-value"
		}
		debugList(w, name, v.target, v.with)
	case *renameExpr:
		debugList(w, "rename", v.target, v.name)
	default:
		io.WriteString(w, "unknown(")
		io.WriteString(w, fmt.Sprintf("%T", v))
		io.WriteString(w, ")")
	}
}

func debugList(w io.Writer, name string, list ...Expr) {
	io.WriteString(w, name)
	io.WriteString(w, "(")
	for i := range list {
		if i > 0 {
			io.WriteString(w, ", ")
		}
		debugExpr(w, list[i])
	}
	io.WriteString(w, ")")
}

func debugBindings(w io.Writer, name string, binds []binding, body Expr) {
	io.WriteString(w, name)
	io.WriteString(w, "(")
	for _, b := range binds {
		io.WriteString(w, "$")
		io.WriteString(w, b.ident)
		io.WriteString(w, " := ")
		debugExpr(w, b.expr)
		io.WriteString(w, ", ")
	}
	debugExpr(w, body)
	io.WriteString(w, ")")
}

func optional(opt bool) string {
	if opt {
		return "?"
	}
	return ""
}
