package node

import (
	"context"
	"time"

	"github.com/lyzr/flowcore/common/logger"
	"github.com/lyzr/flowcore/store"
)

// StepTrace is one row of the execution's step-trace surface:
// per-step status for both batch and non-batch nodes.
type StepTrace struct {
	NodeID       string
	Status       string // "success" | "error"
	DurationMS   int64
	Cached       bool
	IsBatch      bool
	BatchTotal   int
	BatchSuccess int
	BatchErrors  int
}

// Tracer receives a StepTrace after every node run. Nil is a valid
// Tracer (no-op).
type Tracer interface {
	Record(StepTrace)
}

// instrumentedChain records per-node timing and status into the
// Tracer and tolerates any output shape without attempting field
// lookups on non-mappings. It does not capture a snapshot of the
// store.
type instrumentedChain struct {
	nodeID   string
	inner    Chain
	log      *logger.Logger
	tracer   Tracer
	warnSize int64
}

// NewInstrumented builds the outermost wrapper layer. warnSize is the
// advisory byte-size threshold above which a single string/binary
// output field logs a warning; 0 disables the check.
func NewInstrumented(nodeID string, inner Chain, log *logger.Logger, tracer Tracer, warnSize int64) Chain {
	return &instrumentedChain{nodeID: nodeID, inner: inner, log: log, tracer: tracer, warnSize: warnSize}
}

func (i *instrumentedChain) NodeID() string { return i.nodeID }

func (i *instrumentedChain) Run(ctx context.Context, s *store.Store) (Action, error) {
	start := time.Now()
	action, err := i.inner.Run(ctx, s)
	duration := time.Since(start)

	trace := StepTrace{
		NodeID:     i.nodeID,
		DurationMS: duration.Milliseconds(),
		Status:     "success",
	}

	if err != nil {
		trace.Status = "error"
		if i.log != nil {
			i.log.Error("node failed", "node_id", i.nodeID, "duration_ms", trace.DurationMS, "error", err)
		}
	} else {
		// Detect non-dict outputs safely: only a map namespace can be
		// probed for batch/cache metadata.
		if out, ok := s.Get(i.nodeID); ok {
			if ns, ok := out.(map[string]interface{}); ok {
				if _, isBatch := ns["batch_metadata"]; isBatch {
					trace.IsBatch = true
					if count, ok := ns["count"].(int); ok {
						trace.BatchTotal = count
					}
					if sc, ok := ns["success_count"].(int); ok {
						trace.BatchSuccess = sc
					}
					if ec, ok := ns["error_count"].(int); ok {
						trace.BatchErrors = ec
					}
				}
				i.warnOnOversizedFields(ns)
			}
		}
		if i.log != nil {
			i.log.Debug("node completed", "node_id", i.nodeID, "duration_ms", trace.DurationMS)
		}
	}

	if i.tracer != nil {
		i.tracer.Record(trace)
	}

	return action, err
}

func (i *instrumentedChain) Clone() Chain {
	return &instrumentedChain{nodeID: i.nodeID, inner: i.inner.Clone(), log: i.log, tracer: i.tracer, warnSize: i.warnSize}
}

// warnOnOversizedFields logs a warning for any string or []byte field
// in a node's namespace output that exceeds the advisory binary-size
// threshold, so a node that stuffs a large blob into the store is
// flagged instead of silently carried through the rest of the run.
func (i *instrumentedChain) warnOnOversizedFields(ns map[string]interface{}) {
	if i.warnSize <= 0 || i.log == nil {
		return
	}
	for field, v := range ns {
		var size int64
		switch val := v.(type) {
		case string:
			size = int64(len(val))
		case []byte:
			size = int64(len(val))
		default:
			continue
		}
		if size > i.warnSize {
			i.log.Warn("node output field exceeds binary size advisory threshold",
				"node_id", i.nodeID, "field", field, "size_bytes", size, "threshold_bytes", i.warnSize)
		}
	}
}
