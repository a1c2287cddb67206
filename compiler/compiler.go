// Package compiler turns a normalised workflow IR into an executable
// Flow: one instantiated, fully wrapped node.Chain per declared node,
// linked into the linear successor chain the executor drives.
package compiler

import (
	"fmt"

	"github.com/lyzr/flowcore/batch"
	"github.com/lyzr/flowcore/common/config"
	"github.com/lyzr/flowcore/common/logger"
	"github.com/lyzr/flowcore/ir"
	"github.com/lyzr/flowcore/node"
	"github.com/lyzr/flowcore/registry"
)

// defaultBinaryWarnSize is the fallback advisory threshold used when
// Compile is called with a nil config.
const defaultBinaryWarnSize = 50 * 1024 * 1024

// Flow is the compiled, runnable form of a workflow: one Chain per
// node plus the linear successor links between them.
type Flow struct {
	order      []string
	chains     map[string]node.Chain
	successors map[string]map[node.Action]string
	start      string
}

// Order returns the node ids in declaration order.
func (f *Flow) Order() []string { return append([]string(nil), f.order...) }

// Start returns the id of the node execution begins at.
func (f *Flow) Start() string { return f.start }

// Chain returns the compiled wrapper chain for a node id.
func (f *Flow) Chain(nodeID string) (node.Chain, bool) {
	c, ok := f.chains[nodeID]
	return c, ok
}

// Successor returns the next node id to run after nodeID returned
// action, if any.
func (f *Flow) Successor(nodeID string, action node.Action) (string, bool) {
	next, ok := f.successors[nodeID][action]
	return next, ok
}

// Compile walks the normalised IR and builds a Flow: for each node,
// instantiate the registered type, wrap Templated → [Direct or
// Namespaced] → [Batch] → Instrumented, then link declaration-order
// successors under the "default" action. cfg supplies the
// Instrumented layer's binary-size advisory threshold; a nil cfg uses
// defaultBinaryWarnSize.
func Compile(w *ir.Workflow, reg registry.Registry, tracer node.Tracer, log *logger.Logger, cfg *config.Config) (*Flow, error) {
	if len(w.Nodes) == 0 {
		return nil, fmt.Errorf("compiler: workflow has no nodes")
	}

	warnSize := int64(defaultBinaryWarnSize)
	if cfg != nil && cfg.Engine.BinaryWarnSize > 0 {
		warnSize = cfg.Engine.BinaryWarnSize
	}

	flow := &Flow{
		chains:     make(map[string]node.Chain, len(w.Nodes)),
		successors: make(map[string]map[node.Action]string, len(w.Nodes)),
	}

	for _, n := range w.Nodes {
		chain, err := compileNode(w, n, reg, tracer, log, warnSize)
		if err != nil {
			return nil, fmt.Errorf("compiler: node %q: %w", n.ID, err)
		}
		flow.order = append(flow.order, n.ID)
		flow.chains[n.ID] = chain
	}

	for i, id := range flow.order {
		if i == len(flow.order)-1 {
			continue
		}
		flow.successors[id] = map[node.Action]string{node.DefaultAction: flow.order[i+1]}
	}

	flow.start = w.StartNode
	if flow.start == "" {
		flow.start = flow.order[0]
	}

	return flow, nil
}

// compileNode builds one node's full wrapper chain, innermost layer
// first.
func compileNode(w *ir.Workflow, n ir.Node, reg registry.Registry, tracer node.Tracer, log *logger.Logger, warnSize int64) (node.Chain, error) {
	concrete, err := reg.New(n.Type)
	if err != nil {
		return nil, err
	}
	concrete.SetParams(n.Params)
	if n.MaxRetries > 0 {
		if configurable, ok := concrete.(node.RetryConfigurable); ok {
			configurable.SetRetry(n.MaxRetries, n.Wait)
		}
	}

	concreteChain := node.NewConcrete(concrete)

	templated := node.NewTemplated(
		concreteChain,
		n.Params,
		w.TemplateResolutionMode,
		concrete.Params,
		concrete.SetParams,
	)

	var chain node.Chain
	if w.EnableNamespacing {
		chain = node.NewNamespaced(n.ID, templated)
	} else {
		chain = node.NewDirect(n.ID, templated)
	}

	if n.Batch != nil {
		chain = batch.New(n.ID, *n.Batch, chain, w.TemplateResolutionMode, log)
	}

	chain = node.NewInstrumented(n.ID, chain, log, tracer, warnSize)

	return chain, nil
}
