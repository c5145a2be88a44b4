package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/midbel/xquery/dom"
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xpath"
	"golang.org/x/sync/errgroup"
)

const queryInfo = "query took %s - %d items matching %q"

type QueryCmd struct {
	Quiet bool
	Limit int
	Text  bool
	Types bool
	Jobs  int
	ParserOptions
	WriterOptions
	EngineOptions
}

// result is the output of a query against one document, buffered so that
// concurrent evaluations print in the order of the files.
type result struct {
	File    string
	Count   int
	Elapsed time.Duration
	Out     bytes.Buffer
}

func (q QueryCmd) Run(args []string) error {
	set := flag.NewFlagSet("query", flag.ContinueOnError)
	set.BoolVar(&q.Quiet, "quiet", false, "suppress output - default is to print the result items")
	set.IntVar(&q.Limit, "limit", 0, "limit number of items printed per document")
	set.BoolVar(&q.Text, "text", false, "print only the string value of nodes")
	set.BoolVar(&q.Types, "types", false, "print the type of atomic values")
	set.IntVar(&q.Jobs, "jobs", runtime.NumCPU(), "number of documents evaluated concurrently")
	q.ParserOptions.attach(set)
	q.WriterOptions.attach(set)
	q.EngineOptions.attach(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() == 0 {
		return fmt.Errorf("query: no expression given")
	}
	files, err := collectFiles(set.Args()[1:])
	if err != nil {
		return err
	}
	var (
		expr   = set.Arg(0)
		facade = q.facade()
	)
	cache, err := xpath.NewCache(len(files)+1, q.compile(facade)...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		res, err := q.execute(context.Background(), cache, expr, nil, facade)
		if err != nil {
			return err
		}
		return q.print([]*result{res}, expr)
	}

	var (
		results  = make([]*result, len(files))
		grp, ctx = errgroup.WithContext(context.Background())
	)
	grp.SetLimit(max(q.Jobs, 1))
	for i, f := range files {
		grp.Go(func() error {
			doc, err := parseDocument(f, q.ParserOptions)
			if err != nil {
				return err
			}
			res, err := q.execute(ctx, cache, expr, doc, facade)
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	return q.print(results, expr)
}

func (q QueryCmd) execute(ctx context.Context, cache *xpath.Cache, expr string, doc *Document, facade tree.Facade) (*result, error) {
	now := time.Now()
	query, err := xpath.BuildCached(cache, expr)
	if err != nil {
		return nil, err
	}
	var (
		res  result
		node tree.Node
	)
	if doc != nil {
		res.File = doc.File
		node = doc.Root
	}
	out, err := query.Evaluate(ctx, node)
	if err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(now)
	res.Count = len(out.Items)
	if q.Quiet {
		return &res, nil
	}
	items := out.Items
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	if err := q.printItems(ctx, &res.Out, items, facade); err != nil {
		return nil, err
	}
	return &res, nil
}

func (q QueryCmd) printItems(ctx context.Context, w io.Writer, items []xpath.Item, facade tree.Facade) error {
	for _, it := range items {
		switch it.(type) {
		case *xpath.Map, *xpath.Array:
			fmt.Fprintln(w, formatItem(it))
			continue
		}
		if v, ok := it.Atomic(); ok {
			if q.Types {
				lipgloss.Fprintln(w, v.String(), typeStyle.Render(v.Type.String()))
			} else {
				fmt.Fprintln(w, v.String())
			}
			continue
		}
		n, _ := it.Node()
		if q.Text {
			str, err := xpath.StringValue(ctx, facade, n)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, str)
			continue
		}
		x, ok := n.(*dom.Node)
		if !ok {
			return fmt.Errorf("%s: %w", facade.Kind(n), tree.ErrNode)
		}
		if err := dom.Write(w, x, q.WriterOptions.options()|dom.OptionNoProlog); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func (q QueryCmd) print(results []*result, expr string) error {
	var total int
	for _, r := range results {
		if r.File != "" && len(results) > 1 {
			lipgloss.Fprintln(os.Stdout, fileStyle.Render(r.File))
		}
		io.Copy(os.Stdout, &r.Out)
		lipgloss.Fprintln(os.Stdout, infoStyle.Render(fmt.Sprintf(queryInfo, r.Elapsed, r.Count, expr)))
		total += r.Count
	}
	if total == 0 {
		return errFail
	}
	return nil
}

func formatItem(it xpath.Item) string {
	switch x := it.(type) {
	case *xpath.Map:
		var parts []string
		for _, k := range x.Keys() {
			v, _ := x.Get(k)
			parts = append(parts, fmt.Sprintf("%s: %s", k, formatItems(v)))
		}
		return "map{" + strings.Join(parts, ", ") + "}"
	case *xpath.Array:
		var parts []string
		for _, m := range x.Members() {
			parts = append(parts, formatItems(m))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if v, ok := it.Atomic(); ok {
		return v.String()
	}
	if n, ok := it.Node(); ok {
		if x, ok := n.(*dom.Node); ok {
			return dom.String(x)
		}
	}
	return ""
}

func formatItems(items []xpath.Item) string {
	if len(items) == 1 {
		return formatItem(items[0])
	}
	parts := make([]string, len(items))
	for i := range items {
		parts[i] = formatItem(items[i])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
