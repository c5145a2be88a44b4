package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/midbel/xquery/dom"
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
	"github.com/midbel/xquery/xpath"
)

var ErrDocument = errors.New("bad xml document")

type ParserOptions struct {
	StrictNS  bool
	KeepEmpty bool
	NoTrim    bool
}

func (p *ParserOptions) attach(set *flag.FlagSet) {
	set.BoolVar(&p.StrictNS, "strict-ns", false, "strict namespace checking")
	set.BoolVar(&p.KeepEmpty, "keep-empty", false, "keep text nodes made only of blanks")
	set.BoolVar(&p.NoTrim, "no-trim", false, "keep leading and trailing spaces of text nodes")
}

type WriterOptions struct {
	NoNamespace bool
	NoProlog    bool
	NoComment   bool
	Compact     bool
}

func (w *WriterOptions) attach(set *flag.FlagSet) {
	set.BoolVar(&w.NoNamespace, "no-namespace", false, "don't write xml namespace into the output document")
	set.BoolVar(&w.NoProlog, "no-prolog", false, "don't write the xml prolog into the output document")
	set.BoolVar(&w.NoComment, "no-comment", false, "don't write the comments present in the input document")
	set.BoolVar(&w.Compact, "compact", false, "write compact output")
}

func (w WriterOptions) options() dom.WriterOptions {
	var opts dom.WriterOptions
	if w.NoNamespace {
		opts |= dom.OptionNoNamespace
	}
	if w.NoProlog {
		opts |= dom.OptionNoProlog
	}
	if w.NoComment {
		opts |= dom.OptionNoComment
	}
	if w.Compact {
		opts |= dom.OptionCompact
	}
	return opts
}

// EngineOptions are the flags shared by the commands evaluating an expression.
type EngineOptions struct {
	Lazy     time.Duration
	Caching  bool
	Debug    bool
	NoBucket bool
	Trace    bool

	options []xpath.Option
}

func (e *EngineOptions) attach(set *flag.FlagSet) {
	set.DurationVar(&e.Lazy, "lazy", 0, "navigate documents through an asynchronous facade resolving lookups after the given delay")
	set.BoolVar(&e.Caching, "cache", false, "cache the result of static sub expressions")
	set.BoolVar(&e.Debug, "debug", false, "report the evaluation frames of errors")
	set.BoolVar(&e.NoBucket, "no-bucket", false, "disable path buckets")
	set.BoolVar(&e.Trace, "trace", false, "write fn:trace output to stderr")
	set.Func("ns", "declare a namespace as prefix=uri", func(str string) error {
		prefix, uri, ok := strings.Cut(str, "=")
		if !ok {
			return fmt.Errorf("%s: namespace should be given as prefix=uri", str)
		}
		e.options = append(e.options, xpath.WithNamespace(prefix, uri))
		return nil
	})
	set.Func("var", "bind an external variable as name=value", func(str string) error {
		name, value, ok := strings.Cut(str, "=")
		if !ok {
			return fmt.Errorf("%s: variable should be given as name=value", str)
		}
		e.options = append(e.options, xpath.WithVariable(name, xpath.Atomic(xdm.NewUntyped(value))))
		return nil
	})
	set.Func("config", "context configuration", func(file string) error {
		all, err := getCompilerOptions(file)
		if err == nil {
			e.options = append(e.options, all...)
		}
		return err
	})
}

func (e EngineOptions) facade() tree.Facade {
	if e.Lazy > 0 {
		return dom.NewLazy(e.Lazy)
	}
	return dom.Facade{}
}

func (e EngineOptions) compile(facade tree.Facade) []xpath.Option {
	options := []xpath.Option{
		xpath.WithFacade(facade),
		xpath.WithFactory(dom.Factory{}),
	}
	if e.Caching {
		options = append(options, xpath.WithCaching())
	}
	if e.Debug {
		options = append(options, xpath.WithDebug())
	}
	if e.NoBucket {
		options = append(options, xpath.WithoutBuckets())
	}
	if e.Trace {
		options = append(options, xpath.WithLogger(traceLogger))
	}
	return append(options, e.options...)
}

type Document struct {
	File string
	Root *dom.Node
}

// collectFiles expands the directories of the list into the files they hold.
func collectFiles(files []string) ([]string, error) {
	var list []string
	for _, f := range files {
		s, err := os.Stat(f)
		if err != nil || !s.IsDir() {
			list = append(list, f)
			continue
		}
		es, err := os.ReadDir(f)
		if err != nil {
			return nil, err
		}
		for _, e := range es {
			if e.IsDir() || filepath.Ext(e.Name()) != ".xml" {
				continue
			}
			list = append(list, filepath.Join(f, e.Name()))
		}
	}
	return list, nil
}

func parseDocument(file string, options ParserOptions) (*Document, error) {
	r, err := openFile(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	p := dom.NewParser(r)
	p.StrictNS = options.StrictNS
	p.KeepEmpty = options.KeepEmpty
	p.TrimSpace = !options.NoTrim

	root, err := p.Parse()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", file, ErrDocument, err)
	}
	doc := Document{
		File: file,
		Root: root,
	}
	return &doc, nil
}

func writeDocument(w io.Writer, doc *Document, options WriterOptions) error {
	if doc == nil || doc.Root == nil {
		return fmt.Errorf("no document to be written")
	}
	return dom.Write(w, doc.Root, options.options())
}

// getCompilerOptions reads namespaces and variables from a configuration
// document of the form
//
//	<xq>
//	  <namespace prefix="x">urn:x</namespace>
//	  <variable name="limit">10</variable>
//	</xq>
func getCompilerOptions(file string) ([]xpath.Option, error) {
	doc, err := parseDocument(file, ParserOptions{})
	if err != nil {
		return nil, err
	}
	var (
		options []xpath.Option
		facade  = dom.Facade{}
	)
	configure := func(query, attr string, fn func(name, value string)) error {
		q, err := xpath.Build(query, xpath.WithFacade(facade))
		if err != nil {
			return err
		}
		items, err := q.Find(doc.Root)
		if err != nil {
			return err
		}
		for _, it := range items {
			n, ok := it.Node()
			if !ok {
				continue
			}
			el, ok := n.(*dom.Node)
			if !ok {
				continue
			}
			a := el.Attr(tree.LocalName(attr))
			if a == nil {
				return fmt.Errorf("%s: %s attribute missing", file, attr)
			}
			fn(a.Data, el.Value())
		}
		return nil
	}
	err = configure("/xq/namespace", "prefix", func(prefix, uri string) {
		options = append(options, xpath.WithNamespace(prefix, uri))
	})
	if err != nil {
		return nil, err
	}
	err = configure("/xq/variable", "name", func(name, value string) {
		options = append(options, xpath.WithVariable(name, xpath.Atomic(xdm.NewUntyped(value))))
	})
	if err != nil {
		return nil, err
	}
	return options, nil
}

func openFile(file string) (io.ReadCloser, error) {
	u, err := url.Parse(file)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("accept", "text/xml")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode != http.StatusOK {
			res.Body.Close()
			return nil, fmt.Errorf("%s: fail to retrieve remote file (%s)", file, res.Status)
		}
		return res.Body, nil
	default:
		return os.Open(file)
	}
}
