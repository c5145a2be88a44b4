package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/midbel/cli"
)

var errFail = errors.New("fail")

var (
	summary = "xq evaluates xpath and xquery update expressions against xml documents"
	help    = `
xq query  [options] <expr> [file...]   print the items selected by expr
xq update [options] <expr> [file...]   apply the updates produced by expr
xq debug  [options] <expr>             print the compiled expression tree
xq types  [name...]                    list the built-in atomic types
`
)

func main() {
	var (
		set  = cli.NewFlagSet("xq")
		root = prepare()
	)
	root.SetSummary(summary)
	root.SetHelp(help)
	if err := set.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			root.Help()
			os.Exit(2)
		}
	}
	err := root.Execute(set.Args())
	if err != nil {
		if s, ok := err.(cli.SuggestionError); ok && len(s.Others) > 0 {
			fmt.Fprintln(os.Stderr, "similar command(s)")
			for _, n := range s.Others {
				fmt.Fprintln(os.Stderr, "-", n)
			}
		}
		if !errors.Is(err, errFail) {
			printError(err)
		}
		os.Exit(1)
	}
}

func prepare() *cli.CommandTrie {
	root := cli.New()
	root.Register([]string{"query"}, &queryCmd)
	root.Register([]string{"exec"}, &queryCmd)
	root.Register([]string{"update"}, &updateCmd)
	root.Register([]string{"update", "list"}, &listCmd)
	root.Register([]string{"debug"}, &debugCmd)
	root.Register([]string{"types"}, &typesCmd)

	return root
}

var (
	queryCmd  QueryCmd
	updateCmd UpdateCmd
	listCmd   = UpdateCmd{List: true}
	debugCmd  DebugCmd
	typesCmd  TypesCmd
)
