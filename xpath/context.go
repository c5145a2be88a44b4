package xpath

import (
	"io"
	"log/slog"

	"github.com/midbel/xquery/environ"
	"github.com/midbel/xquery/pul"
	"github.com/midbel/xquery/tree"
)

const (
	NamespaceFn    = "http://www.w3.org/2005/xpath-functions"
	NamespaceMap   = "http://www.w3.org/2005/xpath-functions/map"
	NamespaceArray = "http://www.w3.org/2005/xpath-functions/array"
	NamespaceXs    = "http://www.w3.org/2001/XMLSchema"
	NamespaceXml   = "http://www.w3.org/XML/1998/namespace"
	NamespaceXq    = "http://github.com/midbel/xquery"
)

var defaultNamespaces = map[string]string{
	"fn":    NamespaceFn,
	"map":   NamespaceMap,
	"array": NamespaceArray,
	"xs":    NamespaceXs,
	"xml":   NamespaceXml,
	"xq":    NamespaceXq,
}

// Config is the set of collaborators injected at the start of an evaluation.
type Config struct {
	// Namespaces resolves a prefix into a namespace uri. The predefined
	// prefixes are used when it does not know the prefix.
	Namespaces func(string) (string, bool)
	Functions  *Registry
	Logger     *slog.Logger
	Variables  map[string][]Item

	Facade  tree.Facade
	Factory tree.Factory

	Caching        bool
	Debug          bool
	DisableBuckets bool
}

type Option func(*Config)

func NewConfig(options ...Option) Config {
	cfg := Config{
		Functions: DefaultRegistry(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range options {
		o(&cfg)
	}
	return cfg
}

func WithNamespace(prefix, uri string) Option {
	return func(c *Config) {
		prev := c.Namespaces
		c.Namespaces = func(p string) (string, bool) {
			if p == prefix {
				return uri, true
			}
			if prev != nil {
				return prev(p)
			}
			return "", false
		}
	}
}

func WithResolver(resolve func(string) (string, bool)) Option {
	return func(c *Config) {
		c.Namespaces = resolve
	}
}

func WithFunctions(reg *Registry) Option {
	return func(c *Config) {
		c.Functions = reg
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

func WithVariable(name string, items ...Item) Option {
	return func(c *Config) {
		if c.Variables == nil {
			c.Variables = make(map[string][]Item)
		}
		c.Variables[name] = items
	}
}

func WithFacade(f tree.Facade) Option {
	return func(c *Config) {
		c.Facade = f
	}
}

func WithFactory(f tree.Factory) Option {
	return func(c *Config) {
		c.Factory = f
	}
}

func WithCaching() Option {
	return func(c *Config) {
		c.Caching = true
	}
}

func WithDebug() Option {
	return func(c *Config) {
		c.Debug = true
	}
}

func WithoutBuckets() Option {
	return func(c *Config) {
		c.DisableBuckets = true
	}
}

func (c Config) resolve(prefix string) (string, bool) {
	if c.Namespaces != nil {
		if uri, ok := c.Namespaces(prefix); ok {
			return uri, ok
		}
	}
	uri, ok := defaultNamespaces[prefix]
	return uri, ok
}

// Runtime is the state owned by one top-level evaluation.
type Runtime struct {
	Config
	Updates *pul.List
	static  map[Expr]*Memo
}

func newRuntime(cfg Config) *Runtime {
	return &Runtime{
		Config:  cfg,
		Updates: pul.New(),
		static:  make(map[Expr]*Memo),
	}
}

// Context is the dynamic context of an expression: the context item, its
// position and the size of the sequence it belongs to.
type Context struct {
	Item  Item
	Index int
	Size  int

	env environ.Environ[*Memo]
	*Runtime
}

func createContext(rt *Runtime, item Item) Context {
	env := environ.Empty[*Memo]()
	for name, items := range rt.Variables {
		env.Define(name, memoOf(items))
	}
	ctx := Context{
		Item:    item,
		Index:   1,
		Size:    1,
		env:     env,
		Runtime: rt,
	}
	if item == nil {
		ctx.Index, ctx.Size = 0, 0
	}
	return ctx
}

func (c Context) Facade() tree.Facade {
	if c.Runtime == nil {
		return nil
	}
	return c.Config.Facade
}

// Sub returns a context focused on item.
func (c Context) Sub(item Item, pos, size int) Context {
	c.Item = item
	c.Index = pos
	c.Size = size
	return c
}

// Bind returns a context with a new variable in scope.
func (c Context) Bind(name string, value *Memo) Context {
	c.env = environ.With(c.env, name, value)
	return c
}

func (c Context) Resolve(name string) (*Memo, error) {
	return c.env.Resolve(name)
}

func (c Context) ContextNode() (tree.Node, error) {
	if c.Item == nil {
		return nil, contextAbsent()
	}
	n, ok := c.Item.Node()
	if !ok {
		return nil, contextNotNode()
	}
	return n, nil
}
