package xpath

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"
)

const (
	kwLet       = "let"
	kwIf        = "if"
	kwElse      = "else"
	kwThen      = "then"
	kwFor       = "for"
	kwIn        = "in"
	kwTo        = "to"
	kwUnion     = "union"
	kwIntersect = "intersect"
	kwExcept    = "except"
	kwReturn    = "return"
	kwSome      = "some"
	kwEvery     = "every"
	kwSatisfies = "satisfies"
	kwAnd       = "and"
	kwOr        = "or"
	kwDiv       = "div"
	kwIdiv      = "idiv"
	kwMod       = "mod"
	kwAs        = "as"
	kwIs        = "is"
	kwCast      = "cast"
	kwCastable  = "castable"
	kwInstance  = "instance"
	kwTreat     = "treat"
	kwOf        = "of"
	kwMap       = "map"
	kwArray     = "array"
	kwEq        = "eq"
	kwNe        = "ne"
	kwLt        = "lt"
	kwLe        = "le"
	kwGt        = "gt"
	kwGe        = "ge"

	kwInsert  = "insert"
	kwDelete  = "delete"
	kwReplace = "replace"
	kwRename  = "rename"
	kwNode    = "node"
	kwNodes   = "nodes"
	kwValue   = "value"
	kwWith    = "with"
	kwInto    = "into"
	kwFirst   = "first"
	kwLast    = "last"
	kwBefore  = "before"
	kwAfter   = "after"

	kwElement   = "element"
	kwAttribute = "attribute"
	kwText      = "text"
	kwComment   = "comment"
	kwPI        = "processing-instruction"
	kwDocument  = "document"
)

const (
	EOF rune = -(1 + iota)
	Name
	Literal
	Integer
	Decimal
	Double
	Invalid
)

const (
	currNode = -(iota + 1000)
	parentNode
	attrAxis
	variable
	currLevel
	anyLevel
	begPred
	endPred
	begGrp
	endGrp
	begCurl
	endCurl
	opColon
	opAssign
	opArrow
	opConcat
	opBefore
	opAfter
	opQuestion
	opBang
	opAdd
	opSub
	opMul
	opEq
	opNe
	opGt
	opGe
	opLt
	opLe
	opUnion
	opSeq
	opAxis
)

type Token struct {
	Literal string
	Type    rune
	Position
}

func (t Token) String() string {
	switch t.Type {
	case opAxis:
		return "<axis>"
	case currNode:
		return "<current-node>"
	case parentNode:
		return "<parent-node>"
	case attrAxis:
		return "<attribute>"
	case currLevel:
		return "<current-level>"
	case anyLevel:
		return "<any-level>"
	case begPred:
		return "<begin-predicate>"
	case endPred:
		return "<end-predicate>"
	case begGrp:
		return "<begin-group>"
	case endGrp:
		return "<end-group>"
	case begCurl:
		return "<begin-curly>"
	case endCurl:
		return "<end-curly>"
	case opColon:
		return "<colon>"
	case opQuestion:
		return "<question>"
	case opBang:
		return "<bang>"
	case opAdd:
		return "<add>"
	case opSub:
		return "<subtract>"
	case opMul:
		return "<multiply>"
	case opAssign:
		return "<assignment>"
	case opArrow:
		return "<arrow>"
	case opConcat:
		return "<concat>"
	case opBefore:
		return "<before>"
	case opAfter:
		return "<after>"
	case opEq:
		return "<equal>"
	case opNe:
		return "<not-equal>"
	case opGt:
		return "<greater-than>"
	case opGe:
		return "<greater-eq>"
	case opLt:
		return "<lesser-than>"
	case opLe:
		return "<lesser-eq>"
	case opUnion:
		return "<union>"
	case opSeq:
		return "<sequence>"
	case EOF:
		return "<eof>"
	case Integer, Decimal, Double:
		return fmt.Sprintf("number(%s)", t.Literal)
	case Name:
		return fmt.Sprintf("name(%s)", t.Literal)
	case Literal:
		return fmt.Sprintf("literal(%s)", t.Literal)
	case variable:
		return fmt.Sprintf("variable(%s)", t.Literal)
	case Invalid:
		return fmt.Sprintf("<invalid(%s)>", t.Literal)
	default:
		return "<unknown>"
	}
}

// Scanner splits an expression into tokens. Names are given with their
// prefix (p:local, p:*, *:local or Q{uri}local); words are never turned into
// keywords by the scanner since their meaning depends on where they appear.
type Scanner struct {
	input *bufio.Reader
	char  rune
	str   bytes.Buffer

	Position
	old Position
}

func Scan(r io.Reader) *Scanner {
	scan := &Scanner{
		input: bufio.NewReader(r),
	}
	scan.Line = 1
	scan.read()
	return scan
}

func (s *Scanner) Scan() Token {
	var tok Token
	s.str.Reset()
	if err := s.skipBlank(); err != nil {
		tok.Position = s.Position
		tok.Type = Invalid
		tok.Literal = err.Error()
		return tok
	}
	tok.Position = s.Position
	if s.done() {
		tok.Type = EOF
		return tok
	}
	switch {
	case s.char == 'Q' && s.peek() == lcurly:
		s.scanBraced(&tok)
	case s.char == dot && isDigit(s.peek()):
		s.scanNumber(&tok)
	case isOperator(s.char):
		s.scanOperator(&tok)
	case isDelimiter(s.char):
		s.scanDelimiter(&tok)
	case s.char == apos || s.char == quote:
		s.scanLiteral(&tok)
	case s.char == dollar:
		s.scanVariable(&tok)
	case isNameStart(s.char):
		s.scanIdent(&tok)
	case isDigit(s.char):
		s.scanNumber(&tok)
	default:
		tok.Type = Invalid
		tok.Literal = string(s.char)
		s.read()
	}
	return tok
}

func (s *Scanner) scanOperator(tok *Token) {
	switch k := s.peek(); s.char {
	case question:
		tok.Type = opQuestion
	case plus:
		tok.Type = opAdd
	case dash:
		tok.Type = opSub
	case star:
		tok.Type = opMul
		if k == colon {
			s.read()
			s.read()
			s.scanLocal()
			tok.Type = Name
			tok.Literal = "*:" + s.str.String()
			return
		}
	case equal:
		tok.Type = opEq
		if k == rangle {
			s.read()
			tok.Type = opArrow
		}
	case bang:
		tok.Type = opBang
		if k == equal {
			s.read()
			tok.Type = opNe
		}
	case langle:
		tok.Type = opLt
		if k == equal {
			s.read()
			tok.Type = opLe
		} else if k == langle {
			s.read()
			tok.Type = opBefore
		}
	case rangle:
		tok.Type = opGt
		if k == equal {
			s.read()
			tok.Type = opGe
		} else if k == rangle {
			s.read()
			tok.Type = opAfter
		}
	case lparen:
		tok.Type = begGrp
	case rparen:
		tok.Type = endGrp
	}
	s.read()
}

func (s *Scanner) scanDelimiter(tok *Token) {
	switch k := s.peek(); s.char {
	case colon:
		tok.Type = opColon
		if k == colon {
			s.read()
			tok.Type = opAxis
		} else if k == equal {
			s.read()
			tok.Type = opAssign
		}
	case dot:
		tok.Type = currNode
		if k == dot {
			s.read()
			tok.Type = parentNode
		}
	case comma:
		tok.Type = opSeq
	case pipe:
		tok.Type = opUnion
		if k == pipe {
			s.read()
			tok.Type = opConcat
		}
	case lcurly:
		tok.Type = begCurl
	case rcurly:
		tok.Type = endCurl
	case lsquare:
		tok.Type = begPred
	case rsquare:
		tok.Type = endPred
	case arobase:
		tok.Type = attrAxis
	case slash:
		tok.Type = currLevel
		if k == slash {
			s.read()
			tok.Type = anyLevel
		}
	}
	s.read()
}

// scanLiteral reads a string literal, a doubled delimiter stands for the
// delimiter itself.
func (s *Scanner) scanLiteral(tok *Token) {
	quote := s.char
	s.read()
	for !s.done() {
		if s.char == quote {
			if s.peek() != quote {
				break
			}
			s.read()
		}
		s.write()
		s.read()
	}
	tok.Type = Literal
	tok.Literal = s.str.String()
	if s.char != quote {
		tok.Type = Invalid
		tok.Literal = "unterminated string literal"
		return
	}
	s.read()
}

func (s *Scanner) scanNumber(tok *Token) {
	tok.Type = Integer
	for !s.done() && isDigit(s.char) {
		s.write()
		s.read()
	}
	if s.char == dot && s.peek() != dot {
		tok.Type = Decimal
		s.write()
		s.read()
		for !s.done() && isDigit(s.char) {
			s.write()
			s.read()
		}
	}
	if s.char == 'e' || s.char == 'E' {
		tok.Type = Double
		s.write()
		s.read()
		if s.char == dash || s.char == plus {
			s.write()
			s.read()
		}
		if !isDigit(s.char) {
			tok.Type = Invalid
		}
		for !s.done() && isDigit(s.char) {
			s.write()
			s.read()
		}
	}
	tok.Literal = s.str.String()
	if isNameStart(s.char) {
		tok.Type = Invalid
	}
}

func (s *Scanner) scanVariable(tok *Token) {
	s.read()
	if s.char == 'Q' && s.peek() == lcurly {
		s.scanBraced(tok)
	} else {
		s.scanIdent(tok)
	}
	if tok.Type == Name {
		tok.Type = variable
	} else {
		tok.Type = Invalid
	}
}

// scanBraced reads an URI qualified name.
func (s *Scanner) scanBraced(tok *Token) {
	s.write()
	s.read()
	for !s.done() && s.char != rcurly {
		s.write()
		s.read()
	}
	if s.char != rcurly {
		tok.Type = Invalid
		tok.Literal = "unterminated braced uri"
		return
	}
	s.write()
	s.read()
	s.scanLocal()
	tok.Type = Name
	tok.Literal = s.str.String()
}

func (s *Scanner) scanIdent(tok *Token) {
	tok.Type = Name
	if !isNameStart(s.char) {
		tok.Type = Invalid
		return
	}
	s.scanLocal()
	if s.char == colon {
		switch k := s.peek(); {
		case k == star:
			s.write()
			s.read()
			s.write()
			s.read()
		case isNameStart(k):
			s.write()
			s.read()
			s.scanLocal()
		}
	}
	tok.Literal = s.str.String()
}

func (s *Scanner) scanLocal() {
	for !s.done() && isNameChar(s.char) {
		s.write()
		s.read()
	}
}

// skipBlank skips whitespaces and comments, comments can be nested.
func (s *Scanner) skipBlank() error {
	for {
		for unicode.IsSpace(s.char) {
			s.read()
		}
		if s.char != lparen || s.peek() != colon {
			return nil
		}
		s.read()
		s.read()
		for depth := 1; depth > 0; {
			if s.done() {
				return fmt.Errorf("unterminated comment")
			}
			switch k := s.peek(); {
			case s.char == lparen && k == colon:
				depth++
				s.read()
			case s.char == colon && k == rparen:
				depth--
				s.read()
			}
			s.read()
		}
	}
}

func (s *Scanner) write() {
	s.str.WriteRune(s.char)
}

func (s *Scanner) read() {
	s.old = s.Position
	if s.char == '\n' {
		s.Column = 0
		s.Line++
	}
	s.Column++
	c, _, err := s.input.ReadRune()
	if err != nil {
		s.char = utf8.RuneError
	} else {
		s.char = c
	}
}

func (s *Scanner) peek() rune {
	defer s.input.UnreadRune()
	c, _, err := s.input.ReadRune()
	if err != nil {
		return utf8.RuneError
	}
	return c
}

func (s *Scanner) done() bool {
	return s.char == utf8.RuneError
}

const (
	langle     = '<'
	rangle     = '>'
	lsquare    = '['
	rsquare    = ']'
	lparen     = '('
	rparen     = ')'
	lcurly     = '{'
	rcurly     = '}'
	colon      = ':'
	quote      = '"'
	apos       = '\''
	slash      = '/'
	question   = '?'
	bang       = '!'
	equal      = '='
	dash       = '-'
	underscore = '_'
	dot        = '.'
	arobase    = '@'
	comma      = ','
	plus       = '+'
	star       = '*'
	pipe       = '|'
	dollar     = '$'
)

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isNameStart(c rune) bool {
	return c == underscore || unicode.IsLetter(c)
}

func isNameChar(c rune) bool {
	return isNameStart(c) || unicode.IsDigit(c) || c == dash || c == dot
}

func isDelimiter(c rune) bool {
	return c == comma || c == dot || c == pipe || c == slash ||
		c == lsquare || c == rsquare || c == colon ||
		c == lcurly || c == rcurly || c == arobase
}

func isOperator(c rune) bool {
	return c == question || c == plus || c == dash || c == star ||
		c == equal || c == bang || c == langle || c == rangle ||
		c == lparen || c == rparen
}
