// Package nodes provides the concrete node.Node implementations the
// engine ships with out of the box: small, composable building
// blocks used to assemble and test workflows before a real operator
// catalog (HTTP calls, LLM calls, control flow) is layered on top.
package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lyzr/flowcore/node"
)

// base carries the lifecycle fields every node shares: its registry
// name, retry/backoff settings and its live params map. Concrete
// node types embed it and only implement Exec/Post.
type base struct {
	name       string
	params     map[string]interface{}
	maxRetries int
	wait       float64
}

func (b *base) Name() string                      { return b.name }
func (b *base) MaxRetries() int                    { return b.maxRetries }
func (b *base) Wait() float64                      { return b.wait }
func (b *base) Params() map[string]interface{}     { return b.params }
func (b *base) SetParams(p map[string]interface{}) { b.params = p }

// SetRetry overrides the retry settings baked in at construction time.
// The compiler calls this after instantiating a node so the IR's
// per-node max_retries/wait override the registry factory's defaults.
func (b *base) SetRetry(maxRetries int, wait float64) {
	b.maxRetries = maxRetries
	b.wait = wait
}

// Literal emits its params verbatim as its output, once templates
// have been resolved by the Templated layer above it. Useful as a
// workflow's seed node or as a stand-in for an operator under test.
type Literal struct{ base }

// NewLiteral constructs a Literal node with the given retry settings.
func NewLiteral(maxRetries int, wait float64) node.Node {
	return &Literal{base{name: "literal", maxRetries: maxRetries, wait: wait}}
}

func (n *Literal) Prep(ctx context.Context, store node.StoreView) (interface{}, error) {
	return n.params, nil
}

func (n *Literal) Exec(ctx context.Context, prep interface{}) (interface{}, error) {
	return prep, nil
}

func (n *Literal) Post(ctx context.Context, store node.StoreView, prep, exec interface{}) (node.Action, error) {
	out, _ := exec.(map[string]interface{})
	for k, v := range out {
		store.Set(k, v)
	}
	return node.DefaultAction, nil
}

func (n *Literal) Clone() node.Node {
	return &Literal{base{name: n.name, params: cloneParams(n.params), maxRetries: n.maxRetries, wait: n.wait}}
}

// Passthrough copies its resolved params straight through to its
// output, unchanged. It behaves exactly like Literal; only the
// registry name differs.
type Passthrough struct{ base }

func NewPassthrough(maxRetries int, wait float64) node.Node {
	return &Passthrough{base{name: "passthrough", maxRetries: maxRetries, wait: wait}}
}

func (n *Passthrough) Prep(ctx context.Context, store node.StoreView) (interface{}, error) {
	return n.params, nil
}

func (n *Passthrough) Exec(ctx context.Context, prep interface{}) (interface{}, error) {
	return prep, nil
}

func (n *Passthrough) Post(ctx context.Context, store node.StoreView, prep, exec interface{}) (node.Action, error) {
	out, _ := exec.(map[string]interface{})
	for k, v := range out {
		store.Set(k, v)
	}
	return node.DefaultAction, nil
}

func (n *Passthrough) Clone() node.Node {
	return &Passthrough{base{name: n.name, params: cloneParams(n.params), maxRetries: n.maxRetries, wait: n.wait}}
}

// JSONStdout marshals its resolved params and writes them to stdout,
// the engine's minimal "display" surface: a node that produces a
// side effect visible outside the store.
type JSONStdout struct {
	base
	writer *os.File
}

// NewJSONStdout constructs a JSONStdout node writing to os.Stdout.
func NewJSONStdout(maxRetries int, wait float64) node.Node {
	return &JSONStdout{base: base{name: "json_stdout", maxRetries: maxRetries, wait: wait}, writer: os.Stdout}
}

func (n *JSONStdout) Prep(ctx context.Context, store node.StoreView) (interface{}, error) {
	return n.params, nil
}

func (n *JSONStdout) Exec(ctx context.Context, prep interface{}) (interface{}, error) {
	encoded, err := json.Marshal(prep)
	if err != nil {
		return nil, fmt.Errorf("json_stdout: marshal params: %w", err)
	}
	fmt.Fprintln(n.writer, string(encoded))
	return map[string]interface{}{"written": true}, nil
}

func (n *JSONStdout) Post(ctx context.Context, store node.StoreView, prep, exec interface{}) (node.Action, error) {
	out, _ := exec.(map[string]interface{})
	for k, v := range out {
		store.Set(k, v)
	}
	return node.DefaultAction, nil
}

func (n *JSONStdout) Clone() node.Node {
	return &JSONStdout{base: base{name: n.name, params: cloneParams(n.params), maxRetries: n.maxRetries, wait: n.wait}, writer: n.writer}
}

// Failing always raises an error from Exec. It exists to exercise the
// retry kernel and the batch engine's error-handling modes in tests,
// and to model a node type that genuinely fails rather than returning
// an error-shaped result.
type Failing struct {
	base
	attempts int
}

// NewFailing constructs a Failing node. If params["message"] is set
// it is used as the error text; otherwise a generic message is used.
func NewFailing(maxRetries int, wait float64) node.Node {
	return &Failing{base: base{name: "failing", maxRetries: maxRetries, wait: wait}}
}

func (n *Failing) Prep(ctx context.Context, store node.StoreView) (interface{}, error) {
	return n.params, nil
}

func (n *Failing) Exec(ctx context.Context, prep interface{}) (interface{}, error) {
	n.attempts++
	msg := "failing node: intentional failure"
	if p, ok := prep.(map[string]interface{}); ok {
		if m, ok := p["message"].(string); ok && m != "" {
			msg = m
		}
	}
	return nil, fmt.Errorf("%s (attempt %d)", msg, n.attempts)
}

func (n *Failing) Post(ctx context.Context, store node.StoreView, prep, exec interface{}) (node.Action, error) {
	return node.DefaultAction, nil
}

func (n *Failing) Clone() node.Node {
	return &Failing{base: base{name: n.name, params: cloneParams(n.params), maxRetries: n.maxRetries, wait: n.wait}}
}

func cloneParams(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
