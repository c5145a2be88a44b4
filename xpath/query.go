package xpath

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/midbel/xquery/pul"
	"github.com/midbel/xquery/tree"
)

var ErrFacade = errors.New("no facade configured")

// Query is a compiled expression together with the configuration it was
// compiled with. A Query can be evaluated many times, each evaluation owns
// its runtime.
type Query struct {
	base
	expr   Expr
	cfg    Config
	source string
}

// Build compiles q with the given options.
func Build(q string, options ...Option) (*Query, error) {
	cp := NewCompiler(strings.NewReader(q), options...)
	expr, err := cp.Compile()
	if err != nil {
		return nil, err
	}
	query := Query{
		expr:   expr,
		cfg:    cp.cfg,
		source: q,
	}
	query.info = expr.Info()
	return &query, nil
}

func (q *Query) find(ctx Context) (*Sequence, error) {
	return eval(ctx, q.expr)
}

func (q *Query) String() string {
	return q.source
}

// Updating reports whether evaluating the query can produce pending updates.
func (q *Query) Updating() bool {
	return q.info.Updating
}

// Result is the outcome of an evaluation: the items of the query and the
// updates it left pending.
type Result struct {
	Items   []Item
	Updates *pul.List
}

// Find evaluates the query with node as the context item and returns the
// items of the result. Pending updates are discarded.
func (q *Query) Find(node tree.Node) ([]Item, error) {
	res, err := q.Evaluate(context.Background(), node)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Evaluate runs the query. node can be nil when the query does not need a
// context item. ctx bounds the waits on an asynchronous facade only.
func (q *Query) Evaluate(ctx context.Context, node tree.Node) (*Result, error) {
	seq, rt, err := q.start(node)
	if err != nil {
		return nil, err
	}
	items, err := Drain(ctx, seq)
	if err != nil {
		return nil, err
	}
	if err := rt.Updates.Check(); err != nil {
		return nil, err
	}
	rt.Updates.Compact()
	res := Result{
		Items:   items,
		Updates: rt.Updates,
	}
	return &res, nil
}

// Sequence gives the lazy result of the query for drivers pulling the items
// themselves. The pending updates are appended to list as the sequence is
// consumed.
func (q *Query) Sequence(node tree.Node) (*Sequence, *pul.List, error) {
	seq, rt, err := q.start(node)
	if err != nil {
		return nil, nil, err
	}
	return seq, rt.Updates, nil
}

func (q *Query) start(node tree.Node) (*Sequence, *Runtime, error) {
	rt := newRuntime(q.cfg)
	var item Item
	if node != nil {
		if rt.Facade == nil {
			return nil, nil, ErrFacade
		}
		item = NodeItem(node)
	}
	seq, err := eval(createContext(rt, item), q.expr)
	if err != nil {
		return nil, nil, err
	}
	return seq, rt, nil
}

// Cache keeps the most recently built queries. All the queries of a cache
// share the same options.
type Cache struct {
	queries *lru.Cache[string, *Query]
	options []Option
}

func NewCache(size int, options ...Option) (*Cache, error) {
	queries, err := lru.New[string, *Query](size)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	c := Cache{
		queries: queries,
		options: options,
	}
	return &c, nil
}

func (c *Cache) Len() int {
	return c.queries.Len()
}

// BuildCached returns the query compiled for q, compiling it only when the
// cache does not hold it yet.
func BuildCached(c *Cache, q string) (*Query, error) {
	if query, ok := c.queries.Get(q); ok {
		return query, nil
	}
	query, err := Build(q, c.options...)
	if err != nil {
		return nil, err
	}
	c.queries.Add(q, query)
	return query, nil
}
