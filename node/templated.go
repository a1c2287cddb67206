package node

import (
	"context"

	"github.com/lyzr/flowcore/ir"
	"github.com/lyzr/flowcore/resolver"
	"github.com/lyzr/flowcore/store"
)

// templatedChain resolves every template in the node's static
// parameters before invoking the inner chain, mutates the inner
// node's params for the duration of the call, then restores them
// This mutate-then-restore critical section is
// why parallel batch workers each need their own deep-copied chain —
// see batch.runParallel.
type templatedChain struct {
	inner        innerChain
	staticParams map[string]interface{}

	setParams func(map[string]interface{})
	getParams func() map[string]interface{}
	mode      ir.ResolutionMode
}

// NewTemplated builds the Templated layer. setParams/getParams let
// this layer mutate the concrete node's live params field without the
// node package needing to depend on a concrete struct shape.
func NewTemplated(inner innerChain, staticParams map[string]interface{}, mode ir.ResolutionMode, getParams func() map[string]interface{}, setParams func(map[string]interface{})) innerChain {
	return &templatedChain{
		inner:        inner,
		staticParams: staticParams,
		mode:         mode,
		getParams:    getParams,
		setParams:    setParams,
	}
}

func (t *templatedChain) run(ctx context.Context, view StoreView) (Action, error) {
	lookup, err := viewLookup(view)
	if err != nil {
		return "", err
	}

	resolved, err := resolveParams(t.staticParams, lookup, t.mode)
	if err != nil {
		return "", err
	}

	original := t.getParams()
	t.setParams(resolved)
	defer t.setParams(original)

	return t.inner.run(ctx, view)
}

func resolveParams(params map[string]interface{}, lookup resolver.Lookup, mode ir.ResolutionMode) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		rv, err := resolver.Resolve(v, lookup, mode)
		if err != nil {
			return nil, err
		}
		out[k] = rv
	}
	return out, nil
}

func (t *templatedChain) clone() innerChain {
	clonedInner := t.inner.clone()
	getParams, setParams := t.getParams, t.setParams
	if cc, ok := clonedInner.(*concreteChain); ok {
		getParams, setParams = cc.inner.Params, cc.inner.SetParams
	}
	return &templatedChain{
		inner:        clonedInner,
		staticParams: t.staticParams,
		mode:         t.mode,
		getParams:    getParams,
		setParams:    setParams,
	}
}

// SetRetry delegates to the inner chain.
func (t *templatedChain) SetRetry(maxRetries int, wait float64) {
	if rc, ok := t.inner.(RetryConfigurable); ok {
		rc.SetRetry(maxRetries, wait)
	}
}

// viewLookup adapts any StoreView into a resolver.Lookup. Both a
// Namespaced view and a raw Store (namespacing disabled) resolve
// against the root of the underlying store, not through the view's
// own namespace: the template resolver must see the *entire* root so
// it can reach other nodes' namespaces.
func viewLookup(view StoreView) (resolver.Lookup, error) {
	switch v := view.(type) {
	case *store.Namespaced:
		return resolver.StoreLookup{Store: v.Store()}, nil
	case *store.Store:
		return resolver.StoreLookup{Store: v}, nil
	default:
		return rawViewLookup{view}, nil
	}
}

// rawViewLookup is a fallback Lookup for StoreView implementations
// that aren't backed by a *store.Store (e.g. test doubles); it only
// sees the keys exposed by the view itself.
type rawViewLookup struct{ view StoreView }

func (r rawViewLookup) Resolve(expr string) (interface{}, []string, bool, error) {
	head, path := resolver.SplitHeadPath(expr)
	headVal, ok := r.view.Get(head)
	if !ok {
		return nil, r.view.Keys(), false, nil
	}
	value, found, err := resolver.GJSONDescend(headVal, path)
	if err != nil {
		return nil, nil, false, err
	}
	return value, nil, found, nil
}
