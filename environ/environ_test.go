package environ

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolve(t *testing.T) {
	root := Empty[int]()
	root.Define("a", 1)
	root.Define("b", 2)

	child := With(root, "a", 10)
	if v, err := child.Resolve("a"); err != nil || v != 10 {
		t.Errorf("a: want 10, got %d (%v)", v, err)
	}
	if v, err := child.Resolve("b"); err != nil || v != 2 {
		t.Errorf("b: want 2, got %d (%v)", v, err)
	}
	if v, _ := root.Resolve("a"); v != 1 {
		t.Errorf("parent scope modified by child: want 1, got %d", v)
	}
	if _, err := child.Resolve("c"); !errors.Is(err, ErrUndefined) {
		t.Errorf("c: expected undefined error, got %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, child.Names()); diff != "" {
		t.Errorf("names mismatched (-want +got):\n%s", diff)
	}
	if !Defined(child, "b") || Defined(child, "c") {
		t.Errorf("defined reports wrong result")
	}
}

func TestClone(t *testing.T) {
	root := Empty[string]()
	root.Define("x", "foo")
	env := Enclosed(root)
	env.Define("y", "bar")

	c := env.(*Env[string]).Clone()
	c.Define("y", "baz")
	if v, _ := env.Resolve("y"); v != "bar" {
		t.Errorf("clone shares values with original: got %s", v)
	}
	if v, _ := c.Resolve("x"); v != "foo" {
		t.Errorf("clone lost parent definitions: got %s", v)
	}
}
