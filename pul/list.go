package pul

import (
	"slices"

	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

// List accumulates the updates of one evaluation. It is not safe for
// concurrent use.
type List struct {
	updates []Update
}

func New() *List {
	return new(List)
}

func (l *List) Add(u Update) {
	l.updates = append(l.updates, u)
}

func (l *List) Len() int {
	return len(l.updates)
}

func (l *List) Empty() bool {
	return len(l.updates) == 0
}

func (l *List) Updates() []Update {
	return slices.Clone(l.updates)
}

// Merge returns a new list holding the updates of all the given lists.
func Merge(lists ...*List) *List {
	var res List
	for _, x := range lists {
		if x == nil {
			continue
		}
		res.updates = append(res.updates, x.updates...)
	}
	return &res
}

// Compact removes the duplicate deletions of a node.
func (l *List) Compact() {
	seen := make(map[tree.Node]struct{})
	l.updates = slices.DeleteFunc(l.updates, func(u Update) bool {
		if u.Kind() != KindDelete {
			return false
		}
		if _, ok := seen[u.Target()]; ok {
			return true
		}
		seen[u.Target()] = struct{}{}
		return false
	})
}

// Check reports the conflicts forbidden by the update facility: a node
// renamed twice, replaced twice or having its value replaced twice.
func (l *List) Check() error {
	var (
		renamed  = make(map[tree.Node]struct{})
		replaced = make(map[tree.Node]struct{})
		valued   = make(map[tree.Node]struct{})
	)
	for _, u := range l.updates {
		var (
			set  map[tree.Node]struct{}
			code string
		)
		switch u.Kind() {
		case KindRename:
			set, code = renamed, xdm.CodeUpdateRenameTwice
		case KindReplaceNode:
			set, code = replaced, xdm.CodeUpdateReplaceTwo
		case KindReplaceValue, KindReplaceContent:
			set, code = valued, xdm.CodeUpdateValueTwice
		default:
			continue
		}
		if _, ok := set[u.Target()]; ok {
			return xdm.Errorf(code, "conflicting %s on the same target", u.Kind())
		}
		set[u.Target()] = struct{}{}
	}
	return nil
}

// Overlap is a node both deleted and used as the target of another update.
type Overlap struct {
	Node    tree.Node
	Updates []Update
}

// Overlaps lists the deleted nodes that are also the target of inserts or
// replacements.
func (l *List) Overlaps() []Overlap {
	deleted := make(map[tree.Node]struct{})
	for _, u := range l.updates {
		if u.Kind() == KindDelete {
			deleted[u.Target()] = struct{}{}
		}
	}
	var (
		list  []Overlap
		index = make(map[tree.Node]int)
	)
	for _, u := range l.updates {
		if u.Kind() == KindDelete {
			continue
		}
		if _, ok := deleted[u.Target()]; !ok {
			continue
		}
		i, ok := index[u.Target()]
		if !ok {
			i = len(list)
			index[u.Target()] = i
			list = append(list, Overlap{Node: u.Target()})
		}
		list[i].Updates = append(list[i].Updates, u)
	}
	return list
}
