package main

import (
	"flag"
	"fmt"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/midbel/xquery/xdm"
)

// TypesCmd prints the built-in types. With names given, it prints the chain of
// base types of each of them.
type TypesCmd struct {
	Abstract bool
}

func (t TypesCmd) Run(args []string) error {
	set := flag.NewFlagSet("types", flag.ContinueOnError)
	set.BoolVar(&t.Abstract, "abstract", false, "include abstract types")
	if err := set.Parse(args); err != nil {
		return err
	}
	lattice := xdm.Builtins()
	if set.NArg() == 0 {
		for id := range lattice.Len() {
			node, ok := lattice.Get(xdm.TypeID(id))
			if !ok || node.Name == "" || (node.Abstract && !t.Abstract) {
				continue
			}
			printType(node)
		}
		return nil
	}
	for _, name := range set.Args() {
		id, ok := lattice.Lookup(name)
		if !ok {
			return fmt.Errorf("%s: unknown type", name)
		}
		for {
			node, ok := lattice.Get(id)
			if !ok || node.Name == "" {
				break
			}
			printType(node)
			if node.Base == xdm.NoType {
				break
			}
			id = node.Base
		}
	}
	return nil
}

func printType(node xdm.TypeNode) {
	base := "-"
	if node.Base != xdm.NoType {
		base = node.Base.String()
	}
	lipgloss.Fprintln(os.Stdout,
		typeStyle.Render(fmt.Sprintf("%-24s", node.Name)),
		fmt.Sprintf("%-10s", node.Variety),
		infoStyle.Render(base),
	)
}
