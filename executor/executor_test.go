package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowcore/ir"
	"github.com/lyzr/flowcore/registry"
)

func mustWorkflow(t *testing.T, raw map[string]interface{}) *ir.Workflow {
	t.Helper()
	w, err := ir.Normalize(raw, nil)
	require.NoError(t, err)
	return w
}

func TestExecute_LinearFlowPreservesNativeTypeAcrossTemplate(t *testing.T) {
	w := mustWorkflow(t, map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{"id": "A", "type": "literal", "params": map[string]interface{}{"value": 42}},
			map[string]interface{}{"id": "B", "type": "passthrough", "params": map[string]interface{}{"x": "${A.value}"}},
		},
	})

	result, err := executeTest(t, w, nil)
	require.NoError(t, err)

	b, ok := result.Store.Get("B")
	require.True(t, ok, "expected node B to have written its namespace")
	out := b.(map[string]interface{})
	assert.Equal(t, float64(42), out["x"], "whole-value template substitution must preserve the native numeric type, not stringify it")

	assert.Equal(t, []string{"A", "B"}, result.Execution.CompletedNodes)
	assert.Empty(t, result.Execution.FailedNode)
}

func TestExecute_SequentialBatchFailFastNamesFailingIndex(t *testing.T) {
	w := mustWorkflow(t, map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{
				"id":   "batch_node",
				"type": "failing",
				"params": map[string]interface{}{
					"message": "item ${item} exploded",
				},
				"batch": map[string]interface{}{
					"items": "${items}",
				},
			},
		},
	})

	_, err := executeTest(t, w, map[string]interface{}{
		"items": []interface{}{float64(1), float64(2), float64(3), float64(4)},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_node")
	// The failing node fails on every item, so the first item aborts.
	assert.Contains(t, err.Error(), "[0]")
}

func TestExecute_ParallelBatchContinuePreservesOrderAndCounts(t *testing.T) {
	w := mustWorkflow(t, map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{
				"id":   "batch_node",
				"type": "passthrough",
				"params": map[string]interface{}{
					"seen": "${item}",
				},
				"batch": map[string]interface{}{
					"items":          "${items}",
					"parallel":       true,
					"error_handling": "continue",
					"max_concurrent": 3,
				},
			},
		},
	})

	items := make([]interface{}, 10)
	for i := range items {
		items[i] = float64(i)
	}

	result, err := executeTest(t, w, map[string]interface{}{"items": items})
	require.NoError(t, err)

	out, ok := result.Store.Get("batch_node")
	require.True(t, ok)
	m := out.(map[string]interface{})
	assert.Equal(t, 10, m["count"])
	assert.Equal(t, 10, m["success_count"])
	assert.Equal(t, 0, m["error_count"])

	results := m["results"].([]interface{})
	require.Len(t, results, 10)
	for i, item := range items {
		seen := results[i].(map[string]interface{})["seen"]
		assert.Equal(t, item, seen, "result order must match input order")
	}
}

func TestExecute_ProjectsDeclaredOutputs(t *testing.T) {
	w := mustWorkflow(t, map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{"id": "A", "type": "literal", "params": map[string]interface{}{"value": "hello"}},
		},
		"outputs": map[string]interface{}{
			"greeting": map[string]interface{}{"source": "${A.value}"},
		},
	})

	result, err := executeTest(t, w, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Outputs["greeting"])
}

func TestExecute_FailureStopsAtFailingNodeAndRecordsIt(t *testing.T) {
	w := mustWorkflow(t, map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{"id": "A", "type": "literal", "params": map[string]interface{}{"value": 1}},
			map[string]interface{}{"id": "B", "type": "failing", "params": map[string]interface{}{"message": "kaboom"}},
			map[string]interface{}{"id": "C", "type": "passthrough"},
		},
	})

	result, err := executeTest(t, w, nil)
	require.Error(t, err)
	assert.Equal(t, "B", result.Execution.FailedNode)
	assert.Equal(t, []string{"A"}, result.Execution.CompletedNodes)

	if _, ok := result.Store.Get("C"); ok {
		t.Error("expected node C, which follows the failing node, never to have run")
	}
}

func TestExecute_RoundTripHaltsWithOutputsOrANamedNode(t *testing.T) {
	workflows := []map[string]interface{}{
		{
			"nodes": []interface{}{
				map[string]interface{}{"id": "A", "type": "literal", "params": map[string]interface{}{"value": 1}},
			},
		},
		{
			"nodes": []interface{}{
				map[string]interface{}{"id": "A", "type": "literal"},
				map[string]interface{}{"id": "B", "type": "failing"},
			},
		},
	}

	for _, raw := range workflows {
		w := mustWorkflow(t, raw)
		result, err := executeTest(t, w, nil)
		if err == nil {
			assert.NotNil(t, result)
			continue
		}
		declared := map[string]bool{}
		for _, n := range w.Nodes {
			declared[n.ID] = true
		}
		assert.True(t, declared[result.Execution.FailedNode],
			"a failing round-trip execution must name one of the declared nodes, got %q", result.Execution.FailedNode)
	}
}

func executeTest(t *testing.T, w *ir.Workflow, initial map[string]interface{}) (*Result, error) {
	t.Helper()
	return Execute(context.Background(), w, registry.Default(), initial, nil, nil)
}
