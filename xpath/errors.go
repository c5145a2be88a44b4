package xpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/midbel/xquery/xdm"
)

var (
	ErrSyntax = errors.New("syntax error")
	ErrEmpty  = errors.New("empty sequence")
)

type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type Span struct {
	Start Position
	End   Position
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

type SyntaxError struct {
	Code  string
	Expr  string
	Cause string
	Position
}

func syntaxError(expr, cause string, pos Position) error {
	return SyntaxError{
		Code:     xdm.CodeSyntax,
		Expr:     expr,
		Cause:    cause,
		Position: pos,
	}
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("[%s] %s (%s): %s", e.Code, e.Expr, e.Position, e.Cause)
}

// Is lets errors.Is match syntax errors against xdm.Code(XPST0003).
func (e SyntaxError) Is(target error) bool {
	if target == ErrSyntax {
		return true
	}
	var x *xdm.Error
	return errors.As(target, &x) && x.Code == e.Code
}

type Frame struct {
	Kind string
	Span
}

// StackError is produced in debug mode. It records the expressions an error
// went through while propagating to the caller.
type StackError struct {
	Frames []Frame
	Err    error
}

func (e *StackError) Error() string {
	return e.Err.Error()
}

func (e *StackError) Unwrap() error {
	return e.Err
}

func (e *StackError) Trace() string {
	var str strings.Builder
	str.WriteString(e.Err.Error())
	for _, f := range e.Frames {
		str.WriteString("\n\tat ")
		str.WriteString(f.Kind)
		str.WriteString(" (")
		str.WriteString(f.Span.String())
		str.WriteString(")")
	}
	return str.String()
}

func withFrame(err error, expr Expr) error {
	if err == nil {
		return nil
	}
	frame := Frame{
		Kind: kindName(expr),
		Span: expr.Info().Span,
	}
	var se *StackError
	if errors.As(err, &se) {
		se.Frames = append(se.Frames, frame)
		return err
	}
	return &StackError{
		Frames: []Frame{frame},
		Err:    err,
	}
}

func contextAbsent() error {
	return xdm.Errorf(xdm.CodeContextAbsent, "context item is absent")
}

func contextNotNode() error {
	return xdm.Errorf(xdm.CodeContextNotNode, "context item is not a node")
}

func typeError(format string, args ...any) error {
	return xdm.Errorf(xdm.CodeType, format, args...)
}
