package node

import (
	"context"

	"github.com/lyzr/flowcore/store"
)

// namespacedChain wraps the store argument into the per-node proxy
// described above for the duration of the call, then hands it down
// to the Templated/Concrete layers below.
type namespacedChain struct {
	nodeID string
	inner  innerChain
}

// NewNamespaced builds the Namespaced layer, promoting an innerChain
// (Templated wrapping Concrete) into a full Chain the compiler can
// hand to Batch/Instrumented.
func NewNamespaced(nodeID string, inner innerChain) Chain {
	return &namespacedChain{nodeID: nodeID, inner: inner}
}

func (n *namespacedChain) NodeID() string { return n.nodeID }

func (n *namespacedChain) Run(ctx context.Context, s *store.Store) (Action, error) {
	view := store.NewNamespaced(s, n.nodeID)
	return n.inner.run(ctx, view)
}

func (n *namespacedChain) Clone() Chain {
	return &namespacedChain{nodeID: n.nodeID, inner: n.inner.clone()}
}

// SetRetry delegates to the inner chain.
func (n *namespacedChain) SetRetry(maxRetries int, wait float64) {
	if rc, ok := n.inner.(RetryConfigurable); ok {
		rc.SetRetry(maxRetries, wait)
	}
}

// directChain is used when a workflow sets enable_namespacing: false
// the node sees the raw root store as its view instead of a
// per-node proxy.
type directChain struct {
	nodeID string
	inner  innerChain
}

// NewDirect builds a Chain that skips namespacing entirely.
func NewDirect(nodeID string, inner innerChain) Chain {
	return &directChain{nodeID: nodeID, inner: inner}
}

func (d *directChain) NodeID() string { return d.nodeID }

func (d *directChain) Run(ctx context.Context, s *store.Store) (Action, error) {
	return d.inner.run(ctx, s)
}

func (d *directChain) Clone() Chain {
	return &directChain{nodeID: d.nodeID, inner: d.inner.clone()}
}

// SetRetry delegates to the inner chain.
func (d *directChain) SetRetry(maxRetries int, wait float64) {
	if rc, ok := d.inner.(RetryConfigurable); ok {
		rc.SetRetry(maxRetries, wait)
	}
}
