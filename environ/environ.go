// Package environ provides lexically scoped environments used to bind
// variables and in-scope namespaces during compilation and evaluation.
package environ

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var ErrUndefined = errors.New("undefined identifier")

type Environ[T any] interface {
	Resolve(string) (T, error)
	Define(string, T)
	Names() []string
	Len() int
}

// Env is a scope holding its own definitions and looking into its parent for
// everything else. A scope is never shared between two evaluations.
type Env[T any] struct {
	values map[string]T
	parent Environ[T]
}

func Empty[T any]() Environ[T] {
	return Enclosed[T](nil)
}

func Enclosed[T any](parent Environ[T]) Environ[T] {
	e := Env[T]{
		values: make(map[string]T),
		parent: parent,
	}
	return &e
}

// With returns a new scope on top of parent with a single definition.
func With[T any](parent Environ[T], ident string, value T) Environ[T] {
	e := Enclosed(parent)
	e.Define(ident, value)
	return e
}

func (e *Env[T]) Len() int {
	n := len(e.values)
	if e.parent != nil {
		n += e.parent.Len()
	}
	return n
}

// Names returns the names visible from the scope, sorted.
func (e *Env[T]) Names() []string {
	names := slices.Collect(maps.Keys(e.values))
	if e.parent != nil {
		names = append(names, e.parent.Names()...)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

func (e *Env[T]) Define(ident string, value T) {
	e.values[ident] = value
}

func (e *Env[T]) Resolve(ident string) (T, error) {
	value, ok := e.values[ident]
	if ok {
		return value, nil
	}
	if e.parent != nil {
		return e.parent.Resolve(ident)
	}
	var t T
	return t, fmt.Errorf("%s: %w", ident, ErrUndefined)
}

func Defined[T any](env Environ[T], ident string) bool {
	if env == nil {
		return false
	}
	_, err := env.Resolve(ident)
	return err == nil
}

func (e *Env[T]) Unwrap() Environ[T] {
	if e.parent == nil {
		return e
	}
	return e.parent
}

func (e *Env[T]) Clone() Environ[T] {
	var x Env[T]
	x.values = maps.Clone(e.values)
	if c, ok := e.parent.(interface{ Clone() Environ[T] }); ok {
		x.parent = c.Clone()
	} else {
		x.parent = e.parent
	}
	return &x
}
