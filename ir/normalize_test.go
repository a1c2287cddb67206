package ir

import (
	"testing"
	"time"

	"github.com/lyzr/flowcore/common/config"
)

func TestNormalize_InjectsVersionAndEdges(t *testing.T) {
	raw := map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{"id": "a", "type": "literal"},
			map[string]interface{}{"id": "b", "type": "passthrough"},
		},
	}

	w, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if w.IRVersion != CurrentIRVersion {
		t.Errorf("expected ir_version %q, got %q", CurrentIRVersion, w.IRVersion)
	}
	if len(w.Edges) != 1 || w.Edges[0].From != "a" || w.Edges[0].To != "b" {
		t.Errorf("expected derived edge a->b, got %v", w.Edges)
	}
	if w.StartNode != "a" {
		t.Errorf("expected start_node defaulted to first node, got %q", w.StartNode)
	}
	if !w.EnableNamespacing {
		t.Error("expected enable_namespacing to default true")
	}
	if w.TemplateResolutionMode != ModeStrict {
		t.Errorf("expected default resolution mode strict, got %q", w.TemplateResolutionMode)
	}
}

func TestNormalize_RenamesLegacyParameters(t *testing.T) {
	raw := map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{"id": "a", "type": "literal", "parameters": map[string]interface{}{"value": 1}},
		},
	}

	w, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if w.Nodes[0].Params["value"] != float64(1) {
		t.Errorf("expected legacy parameters renamed to params, got %v", w.Nodes[0].Params)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{"id": "a", "type": "literal"},
			map[string]interface{}{"id": "b", "type": "passthrough"},
		},
	}

	first, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("first Normalize failed: %v", err)
	}

	again := map[string]interface{}{
		"ir_version":               first.IRVersion,
		"nodes":                    raw["nodes"],
		"edges":                    []interface{}{map[string]interface{}{"from": "a", "to": "b"}},
		"enable_namespacing":       first.EnableNamespacing,
		"template_resolution_mode": string(first.TemplateResolutionMode),
	}
	second, err := Normalize(again, nil)
	if err != nil {
		t.Fatalf("second Normalize failed: %v", err)
	}

	if first.IRVersion != second.IRVersion || first.StartNode != second.StartNode {
		t.Errorf("normalisation was not idempotent: %+v vs %+v", first, second)
	}
}

func TestBatchConfig_ApplyDefaults(t *testing.T) {
	b := &BatchConfig{Items: "${x.items}"}
	b.ApplyDefaults(nil)

	if b.As != DefaultBatchAs {
		t.Errorf("expected as default %q, got %q", DefaultBatchAs, b.As)
	}
	if b.ErrorHandling != ErrorHandlingFailFast {
		t.Errorf("expected error_handling default %q, got %q", ErrorHandlingFailFast, b.ErrorHandling)
	}
	if b.MaxConcurrent != 10 {
		t.Errorf("expected max_concurrent default 10, got %d", b.MaxConcurrent)
	}
	if b.MaxRetries != 1 {
		t.Errorf("expected max_retries default 1, got %d", b.MaxRetries)
	}
}

func TestNormalize_FallsBackToConfigResolutionMode(t *testing.T) {
	raw := map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{"id": "a", "type": "literal"},
		},
	}
	cfg := &config.Config{Engine: config.EngineConfig{TemplateResolutionMode: "lenient"}}

	w, err := Normalize(raw, cfg)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if w.TemplateResolutionMode != ModeLenient {
		t.Errorf("expected config-supplied resolution mode %q, got %q", ModeLenient, w.TemplateResolutionMode)
	}
}

func TestBatchConfig_ApplyDefaults_FallsBackToConfig(t *testing.T) {
	b := &BatchConfig{Items: "${x.items}"}
	cfg := &config.Config{Engine: config.EngineConfig{
		BatchMaxConcurrent: 25,
		BatchMaxRetries:    4,
		BatchRetryWait:     2 * time.Second,
	}}

	b.ApplyDefaults(cfg)

	if b.MaxConcurrent != 25 {
		t.Errorf("expected max_concurrent from config (25), got %d", b.MaxConcurrent)
	}
	if b.MaxRetries != 4 {
		t.Errorf("expected max_retries from config (4), got %d", b.MaxRetries)
	}
	if b.RetryWait != 2 {
		t.Errorf("expected retry_wait from config (2s), got %v", b.RetryWait)
	}
}

func TestInputDecl_IsRequired(t *testing.T) {
	unset := InputDecl{}
	if !unset.IsRequired() {
		t.Error("expected unset required to default to true")
	}

	falseVal := false
	optional := InputDecl{Required: &falseVal}
	if optional.IsRequired() {
		t.Error("expected explicit required=false to be respected")
	}
}
