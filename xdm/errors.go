package xdm

import (
	"errors"
	"fmt"
)

var (
	ErrImplemented = errors.New("not implemented")
	ErrCast        = errors.New("value can not be cast to target type")
	ErrZero        = errors.New("division by zero")
)

const (
	CodeSyntax           = "XPST0003"
	CodeUndefinedVar     = "XPST0008"
	CodeUndefinedFunc    = "XPST0017"
	CodeCastTarget       = "XPST0080"
	CodePrefix           = "XPST0081"
	CodeDuplicateAttr    = "XQST0040"
	CodeDuplicateNS      = "XQST0071"
	CodeDuplicateMapKey  = "XQDY0137"
	CodeContextAbsent    = "XPDY0002"
	CodeTreat            = "XPDY0050"
	CodeType             = "XPTY0004"
	CodeMixedPath        = "XPTY0018"
	CodeStepNotNode      = "XPTY0019"
	CodeContextNotNode   = "XPTY0020"
	CodeInvalidValue     = "FORG0001"
	CodeArgumentType     = "FORG0006"
	CodeDivideByZero     = "FOAR0001"
	CodeNumericOverflow  = "FOAR0002"
	CodeInvalidLexical   = "FOCA0002"
	CodeNaN              = "FOCA0005"
	CodeArrayIndex       = "FOAY0001"
	CodeDuplicateKey     = "FOJS0003"
	CodeDurationOverflow = "FODT0002"
	CodeAtomizeFunc      = "FOTY0013"
	CodeUnidentified     = "FOER0000"

	CodeUpdateTarget      = "XUTY0005"
	CodeUpdateInsertTo    = "XUTY0006"
	CodeUpdateDelete      = "XUTY0007"
	CodeUpdateReplace     = "XUTY0008"
	CodeUpdateRename      = "XUTY0012"
	CodeUpdateRenameTwice = "XUDY0015"
	CodeUpdateReplaceTwo  = "XUDY0016"
	CodeUpdateValueTwice  = "XUDY0017"
	CodeUpdateParent      = "XUDY0009"
	CodeUpdateNamespace   = "XUDY0027"
)

// Error is an error identified by one of the W3C error codes of XPath,
// XQuery and the Update Facility.
type Error struct {
	Code    string
	Message string
	Err     error
}

func Errorf(code, format string, args ...any) error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func Wrap(code string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{
		Code:    code,
		Message: err.Error(),
		Err:     err,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any other *Error carrying the same code.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Code == e.Code
}

// Code builds a target for errors.Is.
func Code(code string) error {
	return &Error{
		Code: code,
	}
}

// CodeOf returns the code of the first *Error found in the chain of err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func typeError(format string, args ...any) error {
	return Errorf(CodeType, format, args...)
}

func invalidValue(value string, t TypeID) error {
	return &Error{
		Code:    CodeInvalidValue,
		Message: fmt.Sprintf("%q is not a valid lexical form for %s", value, t),
		Err:     ErrCast,
	}
}

func notImplemented(what string) error {
	return &Error{
		Code:    CodeUnidentified,
		Message: fmt.Sprintf("%s: %s", what, ErrImplemented),
		Err:     ErrImplemented,
	}
}
