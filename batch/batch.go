// Package batch implements data-parallel fan-out of one node over a
// collection of items: sequential and parallel execution, isolated
// per-item store copies, deep-copied wrapper chains for thread
// safety, indexed result ordering, and two-mode error handling.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/lyzr/flowcore/common/logger"
	"github.com/lyzr/flowcore/flowerr"
	"github.com/lyzr/flowcore/ir"
	"github.com/lyzr/flowcore/node"
	"github.com/lyzr/flowcore/resolver"
	"github.com/lyzr/flowcore/store"
)

// ErrorRecord describes one failing item in a batch output.
type ErrorRecord struct {
	Index     int         `json:"index"`
	Item      interface{} `json:"item"`
	Error     string      `json:"error"`
	Exception string      `json:"exception,omitempty"`
}

// Timing is the aggregate timing block of batch_metadata.
type Timing struct {
	TotalItemsMS int64 `json:"total_items_ms"`
	AvgItemMS    int64 `json:"avg_item_ms"`
	MinItemMS    int64 `json:"min_item_ms"`
	MaxItemMS    int64 `json:"max_item_ms"`
}

// Metadata is the batch_metadata block written alongside results.
type Metadata struct {
	Parallel      bool    `json:"parallel"`
	MaxConcurrent int     `json:"max_concurrent"`
	MaxRetries    int     `json:"max_retries"`
	RetryWait     float64 `json:"retry_wait"`
	ExecutionMode string  `json:"execution_mode"`
	Timing        Timing  `json:"timing"`
}

// Output is the single result the batch wrapper writes into its own
// namespace.
type Output struct {
	Results      []interface{} `json:"results"`
	Count        int           `json:"count"`
	SuccessCount int           `json:"success_count"`
	ErrorCount   int           `json:"error_count"`
	Errors       []ErrorRecord `json:"errors"`
	BatchMeta    Metadata      `json:"batch_metadata"`
}

// AsMap renders Output into the plain map[string]interface{} shape
// that gets written into the store; templates read it back out by
// field name, e.g. ${node.results}.
func (o *Output) AsMap() map[string]interface{} {
	errList := make([]interface{}, len(o.Errors))
	for i, e := range o.Errors {
		errList[i] = map[string]interface{}{
			"index": e.Index, "item": e.Item, "error": e.Error, "exception": e.Exception,
		}
	}
	return map[string]interface{}{
		"results":       o.Results,
		"count":         o.Count,
		"success_count": o.SuccessCount,
		"error_count":   o.ErrorCount,
		"errors":        errList,
		"batch_metadata": map[string]interface{}{
			"parallel":       o.BatchMeta.Parallel,
			"max_concurrent": o.BatchMeta.MaxConcurrent,
			"max_retries":    o.BatchMeta.MaxRetries,
			"retry_wait":     o.BatchMeta.RetryWait,
			"execution_mode": o.BatchMeta.ExecutionMode,
			"timing": map[string]interface{}{
				"total_items_ms": o.BatchMeta.Timing.TotalItemsMS,
				"avg_item_ms":    o.BatchMeta.Timing.AvgItemMS,
				"min_item_ms":    o.BatchMeta.Timing.MinItemMS,
				"max_item_ms":    o.BatchMeta.Timing.MaxItemMS,
			},
		},
	}
}

// Wrapper is the Batch layer itself, applied only when the IR
// declares a batch config for a node. It sits directly on top of the
// Namespaced/Direct layer, so its inner chain always receives the
// raw root store.
type Wrapper struct {
	nodeID string
	cfg    ir.BatchConfig
	inner  node.Chain
	mode   ir.ResolutionMode
	log    *logger.Logger
}

// New builds the Batch wrapper.
func New(nodeID string, cfg ir.BatchConfig, inner node.Chain, mode ir.ResolutionMode, log *logger.Logger) *Wrapper {
	return &Wrapper{nodeID: nodeID, cfg: cfg, inner: inner, mode: mode, log: log}
}

func (w *Wrapper) NodeID() string { return w.nodeID }

func (w *Wrapper) Clone() node.Chain {
	return &Wrapper{nodeID: w.nodeID, cfg: w.cfg, inner: w.inner.Clone(), mode: w.mode, log: w.log}
}

// Run resolves batch.items against the shared store, fans out over
// the resulting list (sequential or parallel per cfg.Parallel), and
// writes the aggregated Output into the node's own namespace at root.
func (w *Wrapper) Run(ctx context.Context, s *store.Store) (node.Action, error) {
	itemsRaw, err := resolver.Resolve(w.cfg.Items, resolver.StoreLookup{Store: s}, w.mode)
	if err != nil {
		return "", err
	}
	itemsRaw = resolver.CoerceJSONArray(itemsRaw)

	items, ok := itemsRaw.([]interface{})
	if !ok {
		return "", flowerr.BatchItems(w.nodeID, "batch.items did not resolve to a list (got %T)", itemsRaw)
	}

	var out *Output
	if w.cfg.Parallel {
		out, err = w.runParallel(ctx, s, items)
	} else {
		out, err = w.runSequential(ctx, s, items)
	}
	if err != nil {
		return "", err
	}

	s.SetNamespace(w.nodeID, out.AsMap())
	if w.log != nil {
		w.log.Debug("batch completed", "node_id", w.nodeID, "count", out.Count, "success_count", out.SuccessCount, "error_count", out.ErrorCount)
	}
	return node.DefaultAction, nil
}

// runSequential drives the items one at a time on the calling
// goroutine, stopping immediately on the first error under
// fail_fast.
func (w *Wrapper) runSequential(ctx context.Context, s *store.Store, items []interface{}) (*Output, error) {
	results := make([]interface{}, len(items))
	var errs []ErrorRecord
	var durations []int64

	for idx, item := range items {
		itemStore := w.itemContext(s, item)
		start := time.Now()
		chain := w.inner.Clone()
		w.applyRetryOverride(chain)

		_, runErr := chain.Run(ctx, itemStore)
		durations = append(durations, itemDuration(start))

		result := harvestResult(itemStore, w.inner.NodeID())
		if runErr == nil && isError(result) {
			runErr = flowerr.Result(w.inner.NodeID(), "%v", result["error"])
		}

		if runErr != nil {
			if w.cfg.ErrorHandling == ir.ErrorHandlingFailFast {
				return nil, flowerr.NodeExec(w.nodeID, runErr, "Batch '%s' failed at item [%d]", w.nodeID, idx)
			}
			errs = append(errs, ErrorRecord{Index: idx, Item: item, Error: runErr.Error()})
			results[idx] = nil
			continue
		}

		results[idx] = result
	}

	return &Output{
		Results:      results,
		Count:        len(items),
		SuccessCount: len(items) - len(errs),
		ErrorCount:   len(errs),
		Errors:       errs,
		BatchMeta:    w.newMetadata("sequential", summarizeTiming(durations)),
	}, nil
}

// runParallel drives the items across a bounded worker pool sized by
// cfg.MaxConcurrent. Each worker gets its own deep-copied wrapper
// chain (node.Chain.Clone) so the Templated layer's mutate-then-
// restore of a node's params never races across goroutines. Results
// land at their original index regardless of completion order.
func (w *Wrapper) runParallel(ctx context.Context, s *store.Store, items []interface{}) (*Output, error) {
	concurrency := w.cfg.MaxConcurrent
	if concurrency <= 0 {
		concurrency = 10
	}

	results := make([]interface{}, len(items))
	errRecords := make([]*ErrorRecord, len(items))
	durations := make([]int64, len(items))

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	var firstErrIdx int
	failCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for idx, item := range items {
		idx, item := idx, item

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if failCtx.Err() != nil && w.cfg.ErrorHandling == ir.ErrorHandlingFailFast {
				return
			}

			itemStore := w.itemContext(s, item)
			start := time.Now()
			chain := w.inner.Clone()
			w.applyRetryOverride(chain)

			_, runErr := chain.Run(failCtx, itemStore)
			durations[idx] = itemDuration(start)

			result := harvestResult(itemStore, w.inner.NodeID())
			if runErr == nil && isError(result) {
				runErr = flowerr.Result(w.inner.NodeID(), "%v", result["error"])
			}

			if runErr != nil {
				mu.Lock()
				errRecords[idx] = &ErrorRecord{Index: idx, Item: item, Error: runErr.Error()}
				if firstErr == nil {
					firstErr = runErr
					firstErrIdx = idx
				}
				mu.Unlock()
				if w.cfg.ErrorHandling == ir.ErrorHandlingFailFast {
					cancel()
				}
				return
			}

			results[idx] = result
		}()
	}

	wg.Wait()

	if w.cfg.ErrorHandling == ir.ErrorHandlingFailFast && firstErr != nil {
		return nil, flowerr.NodeExec(w.nodeID, firstErr, "Batch '%s' failed at item [%d]", w.nodeID, firstErrIdx)
	}

	var errs []ErrorRecord
	for _, e := range errRecords {
		if e != nil {
			errs = append(errs, *e)
		}
	}

	return &Output{
		Results:      results,
		Count:        len(items),
		SuccessCount: len(items) - len(errs),
		ErrorCount:   len(errs),
		Errors:       errs,
		BatchMeta:    w.newMetadata("parallel", summarizeTiming(durations)),
	}, nil
}

// applyRetryOverride makes batch.max_retries/retry_wait govern the
// per-item chain run, taking precedence over whatever max_retries/wait
// the node itself declared — per the documented resolution when both
// are present on the same node.
func (w *Wrapper) applyRetryOverride(chain node.Chain) {
	if w.cfg.MaxRetries <= 0 {
		return
	}
	if rc, ok := chain.(node.RetryConfigurable); ok {
		rc.SetRetry(w.cfg.MaxRetries, w.cfg.RetryWait)
	}
}

func (w *Wrapper) newMetadata(mode string, timing Timing) Metadata {
	return Metadata{
		Parallel:      w.cfg.Parallel,
		MaxConcurrent: w.cfg.MaxConcurrent,
		MaxRetries:    w.cfg.MaxRetries,
		RetryWait:     w.cfg.RetryWait,
		ExecutionMode: mode,
		Timing:        timing,
	}
}

// itemContext builds the per-item store copy: shallow-copy the
// shared store (aliasing reserved keys), bind the alias at root, and
// clear the inner chain's own namespace entry so a stale result from
// a previous item never leaks through.
func (w *Wrapper) itemContext(s *store.Store, item interface{}) *store.Store {
	copyStore := s.ShallowCopy()
	copyStore.Set(w.cfg.As, item)
	copyStore.ClearNamespace(w.inner.NodeID())
	return copyStore
}

// isError reports whether a node's result map carries a truthy
// "error" field — the batch engine's error-detection layer for nodes
// that fail by returning an error value rather than raising one.
func isError(result map[string]interface{}) bool {
	if result == nil {
		return false
	}
	v, ok := result["error"]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

func harvestResult(s *store.Store, nodeID string) map[string]interface{} {
	v, ok := s.Get(nodeID)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}

func itemDuration(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func summarizeTiming(durations []int64) Timing {
	if len(durations) == 0 {
		return Timing{}
	}
	var total, min, max int64
	min = durations[0]
	for _, d := range durations {
		total += d
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return Timing{
		TotalItemsMS: total,
		AvgItemMS:    total / int64(len(durations)),
		MinItemMS:    min,
		MaxItemMS:    max,
	}
}
