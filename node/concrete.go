package node

import (
	"context"
	"time"

	"github.com/lyzr/flowcore/retry"
)

// innerChain is implemented by the two layers that sit below
// Namespaced in the wrapper order: Templated and Concrete.
// They operate against whatever StoreView the layer above hands
// them, rather than the raw Store, so Namespaced can substitute its
// proxy transparently.
type innerChain interface {
	run(ctx context.Context, view StoreView) (Action, error)
	clone() innerChain
}

// concreteChain is the innermost layer: prep → retry(exec) → post
// against a single Node.
type concreteChain struct {
	inner Node
}

// NewConcrete builds the innermost chain layer around a Node.
func NewConcrete(inner Node) innerChain {
	return &concreteChain{inner: inner}
}

func (c *concreteChain) run(ctx context.Context, view StoreView) (Action, error) {
	prep, err := c.inner.Prep(ctx, view)
	if err != nil {
		return "", err
	}

	wait := time.Duration(c.inner.Wait() * float64(time.Second))
	var fallback func(error) (interface{}, error)
	if fb, ok := c.inner.(Fallback); ok {
		fallback = func(cause error) (interface{}, error) {
			return fb.ExecFallback(ctx, prep, cause)
		}
	}

	execResult, err := retry.Run(ctx, c.inner.MaxRetries(), wait, func() (interface{}, error) {
		return c.inner.Exec(ctx, prep)
	}, fallback)
	if err != nil {
		return "", err
	}

	return c.inner.Post(ctx, view, prep, execResult)
}

func (c *concreteChain) clone() innerChain {
	return &concreteChain{inner: c.inner.Clone()}
}

// SetRetry delegates to the wrapped Node when it exposes mutable
// retry settings.
func (c *concreteChain) SetRetry(maxRetries int, wait float64) {
	if rc, ok := c.inner.(RetryConfigurable); ok {
		rc.SetRetry(maxRetries, wait)
	}
}
