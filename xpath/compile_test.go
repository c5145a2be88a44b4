package xpath

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/midbel/xquery/xdm"
)

func TestCompile(t *testing.T) {
	tests := []string{
		"/root",
		"/root/item",
		"//item",
		"/root/item[1]",
		"/root/item[@id = 'first']/@lang",
		"../item | ./group/item",
		"child::item/descendant-or-self::node()",
		"ancestor::*[last()]",
		"1 + 2 * 3 - 4 div 2 idiv 1 mod 3",
		"-1 + +2",
		"1 to 10",
		"'foo' || 'bar'",
		"(1, 2, 3)[. = 2]",
		"1 eq 1 and 2 ne 3 or 4 lt 5",
		"1 = (1, 2) and (1, 2) != 3",
		"//item[1] is //item[1]",
		"//item[1] << //item[2]",
		"//item intersect //group/item except //test",
		"1 instance of xs:integer",
		"'1' cast as xs:integer?",
		"'1' castable as xs:double",
		"(1, 2) treat as xs:integer+",
		"if (true()) then 1 else 2",
		"for $i in (1, 2), $j in (3, 4) return $i * $j",
		"let $x := 1, $y := $x + 1 return $y",
		"some $x in (1, 2) satisfies $x = 2",
		"every $x in (1,2) satisfies $x = 1 or ($x+1) = 3",
		"array{1, 2, 3}",
		"array{1, 2, array{1, 2, 3}}",
		"[1, 2, 3]",
		"[1, 2, [1, 2]]",
		"map{'foo': 10, 'bar' : 20}",
		"map{'foo': 10, 'nest': map{'bar': 20}}",
		"map{'foo': 10, 'nest': [1, 2]}",
		"[1, 2, [1, 2]](1)",
		"[1, 2, [1, 2]](3)(1)",
		"let $arr := [1, 2, 3] return $arr(1)",
		"let $map := map{'name': 'foobar', 'answer': 42} return $map('answer')",
		"let $map := map{'name': 'foobar'}, $key := 'name' return $map($key)",
		"map{'a': 1}?a",
		"[1, 2]?*",
		"(1, 2) ! (. * 2)",
		"'abc' => upper-case()",
		"fn:count((1, 2))",
		"Q{http://www.w3.org/2005/xpath-functions}count(())",
		"//*:item",
		"element item { 'text' }",
		"attribute id { 'x' }",
		"delete node //item[1]",
		"insert node //item[1] as last into /root",
		"insert node //item[1] before //item[2]",
		"replace node //item[1] with //item[2]",
		"replace value of node //item[1] with 'foo'",
		"rename node //item[1] as 'entry'",
	}
	for _, str := range tests {
		_, err := CompileString(str)
		if err != nil {
			t.Errorf("%s: fail to compile expression: %s", str, err)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		Expr string
		Code string
	}{
		{Expr: "", Code: xdm.CodeSyntax},
		{Expr: "1 +", Code: xdm.CodeSyntax},
		{Expr: "(1, 2", Code: xdm.CodeSyntax},
		{Expr: "/root/item[1", Code: xdm.CodeSyntax},
		{Expr: "1 2", Code: xdm.CodeSyntax},
		{Expr: "$undefined", Code: xdm.CodeUndefinedVar},
		{Expr: "unknown-function()", Code: xdm.CodeUndefinedFunc},
		{Expr: "count(1, 2, 3)", Code: xdm.CodeUndefinedFunc},
		{Expr: "'1' cast as xs:anyAtomicType", Code: xdm.CodeCastTarget},
		{Expr: "undeclared:item", Code: xdm.CodePrefix},
	}
	for _, tt := range tests {
		_, err := CompileString(tt.Expr)
		if err == nil {
			t.Errorf("%q: expected error but compilation succeeded", tt.Expr)
			continue
		}
		if !errors.Is(err, xdm.Code(tt.Code)) {
			t.Errorf("%q: want %s, got %v", tt.Expr, tt.Code, err)
		}
	}
}

func TestCompileVariables(t *testing.T) {
	_, err := Build("$answer + 1", WithVariable("answer", Atomic(xdm.NewInteger(41))))
	if err != nil {
		t.Errorf("external variable not visible to the compiler: %s", err)
	}
}

func TestDebug(t *testing.T) {
	tests := []struct {
		Expr string
		Want []string
	}{
		{
			Expr: "/root/item[1]",
			Want: []string{"item"},
		},
		{
			Expr: "let $x := 1 return $x + 1",
			Want: []string{"let", "$x"},
		},
		{
			Expr: "if (true()) then 1 else 2",
			Want: []string{"if"},
		},
	}
	for _, tt := range tests {
		expr, err := CompileString(tt.Expr)
		if err != nil {
			t.Errorf("%s: fail to compile expression: %s", tt.Expr, err)
			continue
		}
		str := Debug(expr)
		for _, w := range tt.Want {
			if !strings.Contains(str, w) {
				t.Errorf("%s: %q not found in debug output\n%s", tt.Expr, w, str)
			}
		}
	}
}

func TestTracer(t *testing.T) {
	var (
		buf    bytes.Buffer
		opts   = slog.HandlerOptions{Level: slog.LevelDebug}
		logger = slog.New(slog.NewTextHandler(&buf, &opts))
	)
	cp := NewCompiler(strings.NewReader("1 +"))
	cp.Tracer = TraceLogger(logger)
	if _, err := cp.Compile(); err == nil {
		t.Fatalf("expected syntax error")
	}
	str := buf.String()
	for _, w := range []string{"enter rule", "compile failed"} {
		if !strings.Contains(str, w) {
			t.Errorf("%q not traced\n%s", w, str)
		}
	}
}
