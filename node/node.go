// Package node defines the concrete node lifecycle contract and the
// layered decorator chain the compiler wraps every node in:
// Instrumented → [Batch] → Namespaced → Templated → Concrete.
package node

import (
	"context"

	"github.com/lyzr/flowcore/store"
)

// Action is the outcome a node's Post returns, used by the compiler
// to pick the successor ("default" for the linear chain).
type Action string

const DefaultAction Action = "default"

// StoreView is the read/write surface a concrete node's lifecycle
// methods see: its own namespace plus root.
type StoreView interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Keys() []string
}

// Node is the contract a concrete node implementation publishes
// prep/exec/post plus registry-declared interface metadata.
// Concrete node authors implement this directly; everything below a
// node's own params/retry settings is this interface.
type Node interface {
	// Name is the registry key this node was constructed under.
	Name() string
	// Prep reads whatever it needs from the store and returns a prep
	// result handed to Exec.
	Prep(ctx context.Context, store StoreView) (interface{}, error)
	// Exec performs the node's work. It must not touch the store —
	// all store access happens in Prep/Post so retries (which re-run
	// only Exec) stay pure with respect to store state.
	Exec(ctx context.Context, prep interface{}) (interface{}, error)
	// Post writes outputs back to the store and picks the next
	// action.
	Post(ctx context.Context, store StoreView, prep, exec interface{}) (Action, error)

	// MaxRetries and Wait configure the retry kernel.
	MaxRetries() int
	Wait() float64

	// Params returns the node's current (possibly template-bearing)
	// parameter map. Declared on the interface because the Templated
	// layer needs to read and temporarily mutate it.
	Params() map[string]interface{}
	SetParams(map[string]interface{})

	// Clone returns an independent copy of this node (and its current
	// params), used by the batch engine's per-worker deep copy.
	Clone() Node
}

// RetryConfigurable is implemented by a Node or by any Chain/innerChain
// layer wrapping one, whose retry settings are mutable after
// construction. The compiler applies a workflow node's declared
// max_retries/wait on top of whatever a registry factory built in; the
// batch engine then applies batch.max_retries/retry_wait on top of
// that, since a batch config present on a node takes precedence over
// the node's own retry settings for the per-item chain run. Each
// wrapper layer between the outermost Chain and the concrete Node
// implements this by delegating to whatever it wraps, so setting it on
// the outermost layer reaches all the way down.
type RetryConfigurable interface {
	SetRetry(maxRetries int, wait float64)
}

// Fallback is implemented by nodes that want to convert an exhausted
// retry into a recovered, error-valued result rather than letting the
// error propagate.
type Fallback interface {
	ExecFallback(ctx context.Context, prep interface{}, cause error) (interface{}, error)
}

// Chain is the uniform interface every wrapper layer exposes. The
// compiler builds one Chain per declared node by nesting layers
// outermost-first; the executor only ever calls Run on the outermost
// layer.
type Chain interface {
	// Run drives the wrapped behaviour against the shared store and
	// returns the action to follow next.
	Run(ctx context.Context, s *store.Store) (Action, error)
	// Clone deep-copies the entire chain, required before handing a
	// copy to a parallel batch worker.
	Clone() Chain
	// NodeID identifies which declared node this chain implements.
	NodeID() string
}
