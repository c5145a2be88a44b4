package dom

import (
	"sync"
	"time"

	"github.com/midbel/xquery/tree"
)

type lookup struct {
	op   string
	node *Node
}

// Lazy is an asynchronous facade over dom nodes. The first time a node is
// navigated in some direction, the lookup gives a future resolved later by a
// goroutine. Once resolved, the same lookup answers immediately.
type Lazy struct {
	Facade
	// Delay is how long a lookup stays unresolved.
	Delay time.Duration

	mu      sync.Mutex
	ready   map[lookup]struct{}
	pending map[lookup]tree.Signal
	wg      sync.WaitGroup
}

func NewLazy(delay time.Duration) *Lazy {
	return &Lazy{
		Delay:   delay,
		ready:   make(map[lookup]struct{}),
		pending: make(map[lookup]tree.Signal),
	}
}

// Wait blocks until all the goroutines started by the facade are done.
func (z *Lazy) Wait() {
	z.wg.Wait()
}

// Suspended counts the lookups that were answered with a future.
func (z *Lazy) Suspended() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.ready) + len(z.pending)
}

func (z *Lazy) suspend(op string, n tree.Node) tree.Future {
	key := lookup{
		op:   op,
		node: node(n),
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	if _, ok := z.ready[key]; ok {
		return nil
	}
	if sig, ok := z.pending[key]; ok {
		return sig
	}
	sig := tree.NewSignal()
	z.pending[key] = sig
	z.wg.Add(1)
	go func() {
		defer z.wg.Done()
		if z.Delay > 0 {
			time.Sleep(z.Delay)
		}
		z.mu.Lock()
		delete(z.pending, key)
		z.ready[key] = struct{}{}
		z.mu.Unlock()
		sig.Resolve()
	}()
	return sig
}

func (z *Lazy) Parent(n tree.Node) (tree.Node, tree.Future) {
	if fut := z.suspend("parent", n); fut != nil {
		return nil, fut
	}
	return z.Facade.Parent(n)
}

func (z *Lazy) FirstChild(n tree.Node) (tree.Node, tree.Future) {
	if fut := z.suspend("first-child", n); fut != nil {
		return nil, fut
	}
	return z.Facade.FirstChild(n)
}

func (z *Lazy) LastChild(n tree.Node) (tree.Node, tree.Future) {
	if fut := z.suspend("last-child", n); fut != nil {
		return nil, fut
	}
	return z.Facade.LastChild(n)
}

func (z *Lazy) NextSibling(n tree.Node) (tree.Node, tree.Future) {
	if fut := z.suspend("next-sibling", n); fut != nil {
		return nil, fut
	}
	return z.Facade.NextSibling(n)
}

func (z *Lazy) PreviousSibling(n tree.Node) (tree.Node, tree.Future) {
	if fut := z.suspend("previous-sibling", n); fut != nil {
		return nil, fut
	}
	return z.Facade.PreviousSibling(n)
}

func (z *Lazy) Children(n tree.Node) ([]tree.Node, tree.Future) {
	if fut := z.suspend("children", n); fut != nil {
		return nil, fut
	}
	return z.Facade.Children(n)
}

func (z *Lazy) Attribute(n tree.Node, name tree.QName) (tree.Node, tree.Future) {
	if fut := z.suspend("attribute", n); fut != nil {
		return nil, fut
	}
	return z.Facade.Attribute(n, name)
}

func (z *Lazy) Attributes(n tree.Node) ([]tree.Node, tree.Future) {
	if fut := z.suspend("attributes", n); fut != nil {
		return nil, fut
	}
	return z.Facade.Attributes(n)
}

func (z *Lazy) Related(n tree.Node, rel string) ([]tree.Node, tree.Future) {
	if fut := z.suspend("related:"+rel, n); fut != nil {
		return nil, fut
	}
	return z.Facade.Related(n, rel)
}
