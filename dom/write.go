package dom

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/midbel/xquery/tree"
)

type WriterOptions uint64

const (
	OptionCompact WriterOptions = 1 << iota
	OptionNoNamespace
	OptionNoComment
	OptionNoProlog
)

func (w WriterOptions) Compact() bool {
	return w&OptionCompact > 0
}

func (w WriterOptions) NoNamespace() bool {
	return w&OptionNoNamespace > 0
}

func (w WriterOptions) NoComment() bool {
	return w&OptionNoComment > 0
}

func (w WriterOptions) NoProlog() bool {
	return w&OptionNoProlog > 0
}

// Encoder serializes nodes as XML text.
type Encoder struct {
	writer *bufio.Writer

	Indent string
	WriterOptions
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		writer: bufio.NewWriter(w),
		Indent: "  ",
	}
}

// Write serializes a node. A document gets an xml declaration unless
// OptionNoProlog is given.
func Write(w io.Writer, n *Node, options ...WriterOptions) error {
	e := NewEncoder(w)
	for _, o := range options {
		e.WriterOptions |= o
	}
	return e.Encode(n)
}

// String gives the compact serialization of a node without prolog.
func String(n *Node) string {
	var buf bytes.Buffer
	Write(&buf, n, OptionCompact|OptionNoProlog)
	return buf.String()
}

func (e *Encoder) Encode(n *Node) error {
	if n.Kind == tree.KindDocument {
		if !e.NoProlog() {
			e.writer.WriteString(`<?xml version="` + SupportedVersion + `" encoding="` + SupportedEncoding + `"?>`)
		}
		for i, c := range n.children {
			if i > 0 || !e.NoProlog() {
				e.writeNL()
			}
			if err := e.encode(c, 0); err != nil {
				return err
			}
		}
	} else if err := e.encode(n, 0); err != nil {
		return err
	}
	return e.writer.Flush()
}

func (e *Encoder) encode(n *Node, depth int) error {
	switch n.Kind {
	case tree.KindElement:
		e.writeElement(n, depth)
	case tree.KindText:
		e.writer.WriteString(escapeText(n.Data))
	case tree.KindCData:
		e.writer.WriteString("<![CDATA[")
		e.writer.WriteString(n.Data)
		e.writer.WriteString("]]>")
	case tree.KindComment:
		if e.NoComment() {
			return nil
		}
		e.writer.WriteString("<!--")
		e.writer.WriteString(n.Data)
		e.writer.WriteString("-->")
	case tree.KindInstruction:
		e.writer.WriteString("<?")
		e.writer.WriteString(n.Name.Name)
		if n.Data != "" {
			e.writer.WriteByte(' ')
			e.writer.WriteString(n.Data)
		}
		e.writer.WriteString("?>")
	case tree.KindAttribute:
		e.writer.WriteString(e.name(n.Name))
		e.writer.WriteString(`="`)
		e.writer.WriteString(escapeText(n.Data))
		e.writer.WriteByte('"')
	case tree.KindDocument:
		for _, c := range n.children {
			if err := e.encode(c, depth); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%s: %w", n.Kind, tree.ErrNode)
	}
	return nil
}

func (e *Encoder) writeElement(n *Node, depth int) {
	e.writer.WriteByte('<')
	e.writer.WriteString(e.name(n.Name))
	if !e.NoNamespace() {
		for _, ns := range declarations(n) {
			e.writer.WriteByte(' ')
			e.writer.WriteString(ns)
		}
	}
	for _, a := range n.attrs {
		e.writer.WriteByte(' ')
		e.encode(a, depth)
	}
	if len(n.children) == 0 {
		e.writer.WriteString("/>")
		return
	}
	e.writer.WriteByte('>')
	mixed := hasText(n)
	for _, c := range n.children {
		if !mixed {
			e.writeNL()
			e.writer.WriteString(e.indent(depth + 1))
		}
		e.encode(c, depth+1)
	}
	if !mixed {
		e.writeNL()
		e.writer.WriteString(e.indent(depth))
	}
	e.writer.WriteString("</")
	e.writer.WriteString(e.name(n.Name))
	e.writer.WriteByte('>')
}

func (e *Encoder) name(qn tree.QName) string {
	if e.NoNamespace() {
		return qn.LocalName()
	}
	return qn.QualifiedName()
}

// declarations gives the namespace declarations an element needs that are
// not already made by one of its ancestors.
func declarations(n *Node) []string {
	var (
		list  []string
		names = []tree.QName{n.Name}
	)
	for _, a := range n.attrs {
		if a.Name.Space != "" {
			names = append(names, a.Name)
		}
	}
	seen := make(map[string]struct{})
	for _, qn := range names {
		if qn.Space == "xml" || (qn.Uri == "" && qn.Space == "") {
			continue
		}
		if _, ok := seen[qn.Space]; ok {
			continue
		}
		seen[qn.Space] = struct{}{}
		if uri, ok := inScope(n.parent, qn.Space); ok && uri == qn.Uri {
			continue
		}
		attr := "xmlns"
		if qn.Space != "" {
			attr += ":" + qn.Space
		}
		list = append(list, attr+`="`+escapeText(qn.Uri)+`"`)
	}
	return list
}

func inScope(n *Node, space string) (string, bool) {
	for ; n != nil; n = n.parent {
		if n.Kind != tree.KindElement {
			continue
		}
		if n.Name.Space == space {
			return n.Name.Uri, true
		}
		for _, a := range n.attrs {
			if a.Name.Space == space && space != "" {
				return a.Name.Uri, true
			}
		}
	}
	return "", space == ""
}

func hasText(n *Node) bool {
	for _, c := range n.children {
		if c.Kind.Textual() {
			return true
		}
	}
	return false
}

func (e *Encoder) writeNL() {
	if e.Compact() {
		return
	}
	e.writer.WriteByte('\n')
}

func (e *Encoder) indent(depth int) string {
	if e.Compact() {
		return ""
	}
	return strings.Repeat(e.Indent, depth)
}

func escapeText(str string) string {
	var buf bytes.Buffer
	for i := 0; i < len(str); {
		r, z := utf8.DecodeRuneInString(str[i:])
		i += z

		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
