package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"charm.land/lipgloss/v2"
	"github.com/midbel/xquery/dom"
	"github.com/midbel/xquery/pul"
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xpath"
	"golang.org/x/sync/errgroup"
)

const updateInfo = "%d update(s) applied"

// UpdateCmd evaluates an updating expression against each document and
// applies the resulting pending update list. With List set, the updates are
// printed as json instead of being applied.
type UpdateCmd struct {
	InPlace bool
	List    bool
	Jobs    int
	ParserOptions
	WriterOptions
	EngineOptions
}

func (u UpdateCmd) Run(args []string) error {
	set := flag.NewFlagSet("update", flag.ContinueOnError)
	set.BoolVar(&u.InPlace, "w", false, "write the updated documents back to their files")
	set.BoolVar(&u.List, "list", u.List, "print the pending updates instead of applying them")
	set.IntVar(&u.Jobs, "jobs", runtime.NumCPU(), "number of documents updated concurrently")
	u.ParserOptions.attach(set)
	u.WriterOptions.attach(set)
	u.EngineOptions.attach(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() < 2 {
		return fmt.Errorf("update: expression and document(s) expected")
	}
	files, err := collectFiles(set.Args()[1:])
	if err != nil {
		return err
	}
	facade := u.facade()
	query, err := xpath.Build(set.Arg(0), u.compile(facade)...)
	if err != nil {
		return err
	}
	if !query.Updating() {
		return fmt.Errorf("%s: not an updating expression", query)
	}

	var (
		outputs  = make([]bytes.Buffer, len(files))
		grp, ctx = errgroup.WithContext(context.Background())
	)
	grp.SetLimit(max(u.Jobs, 1))
	for i, f := range files {
		grp.Go(func() error {
			doc, err := parseDocument(f, u.ParserOptions)
			if err != nil {
				return err
			}
			if err := u.update(ctx, query, doc, facade, &outputs[i]); err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	for i := range outputs {
		if len(files) > 1 && outputs[i].Len() > 0 {
			lipgloss.Fprintln(os.Stdout, fileStyle.Render(files[i]))
		}
		io.Copy(os.Stdout, &outputs[i])
	}
	return nil
}

func (u UpdateCmd) update(ctx context.Context, query *xpath.Query, doc *Document, facade tree.Facade, w io.Writer) error {
	res, err := query.Evaluate(ctx, doc.Root)
	if err != nil {
		return err
	}
	if u.List {
		return printUpdates(ctx, w, res.Updates, facade)
	}
	if err := pul.Apply(ctx, res.Updates, facade, dom.Factory{}, dom.Writer{}); err != nil {
		return err
	}
	if u.InPlace {
		if err := saveDocument(doc, u.WriterOptions); err != nil {
			return err
		}
		lipgloss.Fprintln(w, infoStyle.Render(fmt.Sprintf(updateInfo, res.Updates.Len())))
		return nil
	}
	if err := writeDocument(w, doc, u.WriterOptions); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func printUpdates(ctx context.Context, w io.Writer, list *pul.List, facade tree.Facade) error {
	all, err := list.Transferable(ctx, facade)
	if err != nil {
		return err
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(all)
}

func saveDocument(doc *Document, options WriterOptions) error {
	f, err := os.Create(doc.File)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeDocument(f, doc, options)
}
