package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/midbel/xquery/xpath"
)

type DebugCmd struct {
	Trace bool
	EngineOptions
}

func (d DebugCmd) Run(args []string) error {
	set := flag.NewFlagSet("debug", flag.ContinueOnError)
	set.BoolVar(&d.Trace, "trace-compiler", false, "log the rules entered by the compiler")
	d.EngineOptions.attach(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() == 0 {
		return fmt.Errorf("debug: no expression given")
	}
	cp := xpath.NewCompiler(strings.NewReader(set.Arg(0)), d.compile(d.facade())...)
	if d.Trace {
		cp.Tracer = xpath.TraceStderr()
	}
	expr, err := cp.Compile()
	if err != nil {
		return err
	}
	info := expr.Info()
	fmt.Fprintln(os.Stdout, strings.TrimRight(xpath.Debug(expr), "\n"))
	lipgloss.Fprintln(os.Stdout, infoStyle.Render(fmt.Sprintf("static: %t - updating: %t - order: %s", info.Static, info.Updating, info.Order)))
	return nil
}
