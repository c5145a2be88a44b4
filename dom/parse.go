package dom

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/midbel/xquery/environ"
	"github.com/midbel/xquery/tree"
)

const MaxDepth = 512

const (
	SupportedVersion  = "1.0"
	SupportedEncoding = "UTF-8"
)

const (
	attrXmlNS    = "xmlns"
	namespaceXml = "http://www.w3.org/XML/1998/namespace"
)

type ParseError struct {
	Position
	Element string
	Message string
}

func (p ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", p.Line, p.Column, p.Element, p.Message)
}

type Parser struct {
	scan *Scanner
	curr Token
	peek Token

	depth int

	TrimSpace  bool
	KeepEmpty  bool
	StrictNS   bool
	NeedProlog bool
	MaxDepth   int

	namespaces environ.Environ[string]
}

func NewParser(r io.Reader) *Parser {
	p := Parser{
		scan:       Scan(r),
		TrimSpace:  true,
		MaxDepth:   MaxDepth,
		namespaces: environ.Empty[string](),
	}
	p.namespaces.Define("xml", namespaceXml)
	p.next()
	p.next()
	return &p
}

func ParseFile(file string) (*Node, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Parse(r)
}

func ParseString(str string) (*Node, error) {
	return Parse(strings.NewReader(str))
}

// Parse reads a document. The xml declaration is optional.
func Parse(r io.Reader) (*Node, error) {
	return NewParser(r).Parse()
}

func (p *Parser) Parse() (*Node, error) {
	if err := p.parseProlog(); err != nil {
		return nil, err
	}
	var (
		doc  = NewDocument()
		root bool
	)
	for !p.done() {
		if p.is(DocTypeTag) {
			if root {
				return nil, p.createError("document", "doctype after root element")
			}
			p.next()
			continue
		}
		node, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		switch node.Kind {
		case tree.KindComment, tree.KindInstruction:
		case tree.KindElement:
			if root {
				return nil, p.createError("document", "only one root element allowed")
			}
			root = true
		case tree.KindText:
			if strings.TrimSpace(node.Data) == "" {
				continue
			}
			fallthrough
		default:
			return nil, p.createError("document", "invalid node type at top level")
		}
		doc.Append(node)
	}
	if !root {
		return nil, p.createError("document", "missing root element")
	}
	return doc, nil
}

func (p *Parser) parseProlog() error {
	for p.is(Literal) && strings.TrimSpace(p.curr.Literal) == "" {
		p.next()
	}
	if !p.is(ProcInstTag) || p.peek.Type != Name || p.peek.Literal != "xml" {
		if p.NeedProlog {
			return p.createError("document", "xml prolog missing")
		}
		return nil
	}
	p.next()
	p.next()
	attrs, err := p.parseAttributes(func() bool {
		return p.is(ProcInstTag)
	})
	if err != nil {
		return err
	}
	if !p.is(ProcInstTag) {
		return p.createError("document", "end of xml prolog expected")
	}
	p.next()
	var version, encoding string
	for _, a := range attrs {
		switch a.Name.Name {
		case "version":
			version = a.Data
		case "encoding":
			encoding = a.Data
		}
	}
	if version != SupportedVersion {
		return p.createError("document", "xml version not supported")
	}
	if encoding != "" && strings.ToUpper(encoding) != SupportedEncoding {
		return p.createError("document", "xml encoding not supported")
	}
	return nil
}

func (p *Parser) parseNode() (*Node, error) {
	p.enter()
	defer p.leave()
	if p.depth >= p.MaxDepth {
		return nil, p.createError("document", "maximum depth reached")
	}
	switch p.curr.Type {
	case OpenTag:
		return p.parseElement()
	case CommentTag:
		defer p.next()
		return NewComment(p.curr.Literal), nil
	case ProcInstTag:
		return p.parseInstruction()
	case Cdata:
		defer p.next()
		return NewCData(p.curr.Literal), nil
	case Literal:
		return p.parseLiteral(), nil
	default:
		return nil, p.createError("document", "unexpected token "+p.curr.String())
	}
}

func (p *Parser) parseElement() (*Node, error) {
	p.namespaces = environ.Enclosed[string](p.namespaces)
	defer func() {
		u, ok := p.namespaces.(interface {
			Unwrap() environ.Environ[string]
		})
		if ok {
			p.namespaces = u.Unwrap()
		}
	}()
	p.next()
	var name tree.QName
	if p.is(Namespace) {
		name.Space = p.curr.Literal
		p.next()
	}
	if !p.is(Name) {
		return nil, p.createError("element", "name is missing")
	}
	name.Name = p.curr.Literal
	p.next()

	attrs, err := p.parseAttributes(func() bool {
		return p.is(EndTag) || p.is(EmptyElemTag)
	})
	if err != nil {
		return nil, err
	}
	if name.Uri, err = p.resolve(name.Space, true); err != nil {
		return nil, err
	}
	elem := NewElement(name)
	for _, a := range attrs {
		if a.Name.Space != "" {
			if a.Name.Uri, err = p.resolve(a.Name.Space, false); err != nil {
				return nil, err
			}
		}
		if elem.Attr(a.Name) != nil {
			return nil, p.createError("attribute", a.Name.QualifiedName()+": attribute is already defined")
		}
		elem.AppendAttr(a)
	}

	switch p.curr.Type {
	case EmptyElemTag:
		p.next()
		return elem, nil
	case EndTag:
		p.next()
		for !p.done() && !p.is(CloseTag) {
			child, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			if child != nil {
				elem.Append(child)
			}
		}
		if !p.is(CloseTag) {
			return nil, p.createError("element", "closing element is missing")
		}
		p.next()
		return elem, p.parseCloseElement(name)
	default:
		return nil, p.createError("element", "end of element expected")
	}
}

func (p *Parser) parseCloseElement(name tree.QName) error {
	var space string
	if p.is(Namespace) {
		space = p.curr.Literal
		p.next()
	}
	if space != name.Space {
		return p.createError("element", "namespace mismatched with opening element")
	}
	if !p.is(Name) {
		return p.createError("element", "name is missing")
	}
	if p.curr.Literal != name.Name {
		return p.createError("element", "name mismatched with opening element")
	}
	p.next()
	if !p.is(EndTag) {
		return p.createError("element", "end of element expected")
	}
	p.next()
	return nil
}

func (p *Parser) parseInstruction() (*Node, error) {
	p.next()
	if !p.is(Name) {
		return nil, p.createError("processing instruction", "target is missing")
	}
	target := p.curr.Literal
	p.next()
	var data string
	if p.is(Literal) {
		data = strings.TrimSpace(p.curr.Literal)
		p.next()
	}
	if !p.is(ProcInstTag) {
		return nil, p.createError("processing instruction", "end of instruction expected")
	}
	p.next()
	return NewInstruction(target, data), nil
}

// parseAttributes reads the attributes of a start tag. Namespace declarations
// are registered in the current scope and are not returned.
func (p *Parser) parseAttributes(done func() bool) ([]*Node, error) {
	var attrs []*Node
	for !p.done() && !done() {
		var name tree.QName
		if p.is(Namespace) {
			name.Space = p.curr.Literal
			p.next()
		}
		if !p.is(Attr) {
			return nil, p.createError("attribute", "name is expected")
		}
		name.Name = p.curr.Literal
		p.next()
		if !p.is(Literal) {
			return nil, p.createError("attribute", "value is missing")
		}
		value := p.curr.Literal
		p.next()
		switch {
		case name.Space == "" && name.Name == attrXmlNS:
			p.namespaces.Define("", value)
		case name.Space == attrXmlNS:
			p.namespaces.Define(name.Name, value)
		default:
			attrs = append(attrs, NewAttribute(name, value))
		}
	}
	return attrs, nil
}

func (p *Parser) parseLiteral() *Node {
	defer p.next()
	text := p.curr.Literal
	if p.TrimSpace {
		text = strings.TrimSpace(text)
	}
	if !p.KeepEmpty && strings.TrimSpace(text) == "" {
		return nil
	}
	return NewText(text)
}

func (p *Parser) resolve(space string, elem bool) (string, error) {
	if space == "" && !elem {
		return "", nil
	}
	uri, err := p.namespaces.Resolve(space)
	if err == nil || space == "" {
		return uri, nil
	}
	if p.StrictNS {
		return "", p.createError("namespace", fmt.Sprintf("%s: prefix not declared", space))
	}
	return "", nil
}

func (p *Parser) createError(elem, msg string) error {
	return ParseError{
		Position: p.curr.Position,
		Element:  elem,
		Message:  msg,
	}
}

func (p *Parser) is(kind rune) bool {
	return p.curr.Type == kind
}

func (p *Parser) done() bool {
	return p.is(EOF)
}

func (p *Parser) enter() {
	p.depth++
}

func (p *Parser) leave() {
	p.depth--
}

func (p *Parser) next() {
	p.curr = p.peek
	p.peek = p.scan.Scan()
}
