// Package executor drives a compiled Flow to completion: it owns the
// shared store, follows the successor chain, records the
// __execution__ trace, and projects declared outputs on success.
package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lyzr/flowcore/common/config"
	"github.com/lyzr/flowcore/common/logger"
	"github.com/lyzr/flowcore/compiler"
	"github.com/lyzr/flowcore/flowerr"
	"github.com/lyzr/flowcore/ir"
	"github.com/lyzr/flowcore/node"
	"github.com/lyzr/flowcore/registry"
	"github.com/lyzr/flowcore/resolver"
	"github.com/lyzr/flowcore/store"
)

// StepRecord is one row of the execution's step trace.
type StepRecord struct {
	NodeID            string `json:"node_id"`
	Status            string `json:"status"`
	DurationMS        int64  `json:"duration_ms"`
	Cached            bool   `json:"cached"`
	Repaired          bool   `json:"repaired,omitempty"`
	IsBatch           bool   `json:"is_batch,omitempty"`
	BatchTotal        int    `json:"batch_total,omitempty"`
	BatchSuccess      int    `json:"batch_success,omitempty"`
	BatchErrors       int    `json:"batch_errors,omitempty"`
	BatchErrorDetails string `json:"batch_error_details,omitempty"`
}

// Record is the __execution__ reserved key's shape.
type Record struct {
	CompletedNodes []string          `json:"completed_nodes"`
	FailedNode     string            `json:"failed_node,omitempty"`
	NodeActions    map[string]string `json:"node_actions"`
	NodeHashes     map[string]string `json:"node_hashes"`
}

// Result is what a run produces: the execution id, the full step
// trace, the execution record, and, on success, the projected
// outputs.
type Result struct {
	ExecutionID string
	Steps       []StepRecord
	Execution   Record
	Outputs     map[string]interface{}
	Store       *store.Store
}

// traceCollector implements node.Tracer, accumulating one StepTrace
// per node run in the order nodes complete (= declaration order for
// the MVP linear chain).
type traceCollector struct {
	steps []node.StepTrace
}

func (t *traceCollector) Record(trace node.StepTrace) {
	t.steps = append(t.steps, trace)
}

// Execute compiles w fresh (a flow's lifetime is one execution) and
// runs it against a store seeded with initialParams, following
// successors until the chain ends or a node fails. cfg supplies the
// compiler's binary-size advisory threshold; nil uses the compiler's
// own default.
func Execute(ctx context.Context, w *ir.Workflow, reg registry.Registry, initialParams map[string]interface{}, log *logger.Logger, cfg *config.Config) (*Result, error) {
	collector := &traceCollector{}

	flow, err := compiler.Compile(w, reg, collector, log, cfg)
	if err != nil {
		return nil, err
	}

	s := store.New(initialParams)

	rec := Record{
		NodeActions: make(map[string]string),
		NodeHashes:  make(map[string]string),
	}
	executionID := uuid.New().String()

	current := flow.Start()
	for current != "" {
		chain, ok := flow.Chain(current)
		if !ok {
			return nil, fmt.Errorf("executor: flow has no chain for node %q", current)
		}

		action, err := chain.Run(ctx, s)
		if err != nil {
			rec.FailedNode = current
			s.Set("__execution__", recordMap(rec))
			return buildResult(executionID, collector, rec, s, nil), flowerr.NodeExec(current, err, "node failed")
		}

		rec.CompletedNodes = append(rec.CompletedNodes, current)
		rec.NodeActions[current] = string(action)
		if out, ok := s.Get(current); ok {
			rec.NodeHashes[current] = hashOutput(out)
		}

		next, ok := flow.Successor(current, action)
		if !ok {
			current = ""
			break
		}
		current = next
	}

	s.Set("__execution__", recordMap(rec))

	outputs, err := projectOutputs(w, s)
	if err != nil {
		return buildResult(executionID, collector, rec, s, nil), err
	}

	return buildResult(executionID, collector, rec, s, outputs), nil
}

func buildResult(executionID string, collector *traceCollector, rec Record, s *store.Store, outputs map[string]interface{}) *Result {
	steps := make([]StepRecord, 0, len(collector.steps))
	for _, t := range collector.steps {
		status := t.Status
		steps = append(steps, StepRecord{
			NodeID:       t.NodeID,
			Status:       status,
			DurationMS:   t.DurationMS,
			Cached:       t.Cached,
			IsBatch:      t.IsBatch,
			BatchTotal:   t.BatchTotal,
			BatchSuccess: t.BatchSuccess,
			BatchErrors:  t.BatchErrors,
		})
	}
	return &Result{
		ExecutionID: executionID,
		Steps:       steps,
		Execution:   rec,
		Outputs:     outputs,
		Store:       s,
	}
}

// projectOutputs resolves each declared output's source template
// against the final store.
func projectOutputs(w *ir.Workflow, s *store.Store) (map[string]interface{}, error) {
	if len(w.Outputs) == 0 {
		return nil, nil
	}
	lookup := resolver.StoreLookup{Store: s}
	out := make(map[string]interface{}, len(w.Outputs))
	for name, decl := range w.Outputs {
		value, err := resolver.Resolve(decl.Source, lookup, w.TemplateResolutionMode)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}

func recordMap(rec Record) map[string]interface{} {
	out := map[string]interface{}{
		"completed_nodes": rec.CompletedNodes,
		"node_actions":    rec.NodeActions,
		"node_hashes":     rec.NodeHashes,
	}
	if rec.FailedNode != "" {
		out["failed_node"] = rec.FailedNode
	}
	return out
}

// hashOutput computes a short content hash of a node's namespace
// output, used by repair/caching consumers downstream to detect
// whether a node's result actually changed between runs.
func hashOutput(v interface{}) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])[:16]
}
