package ir

import (
	"encoding/json"
	"fmt"

	"github.com/lyzr/flowcore/common/config"
)

// Normalize mutates a raw decoded workflow mapping into canonical
// form and decodes it into a Workflow: it injects ir_version when
// missing, derives edges from declaration order when absent, and
// renames the legacy "parameters" field to "params" on every node.
// Purely syntactic — it never consults a registry or resolves a
// template. Idempotent: normalising an already-normalised mapping is
// a no-op. cfg supplies the engine-wide fallback defaults (template
// resolution mode, batch concurrency/retry knobs) for whatever the
// workflow itself leaves unset; a nil cfg falls back to the same
// hardcoded defaults Normalize has always used.
func Normalize(raw map[string]interface{}, cfg *config.Config) (*Workflow, error) {
	normalizeLegacyParams(raw)

	if _, ok := raw["ir_version"]; !ok {
		raw["ir_version"] = CurrentIRVersion
	}

	nodesRaw, _ := raw["nodes"].([]interface{})
	if _, ok := raw["edges"]; !ok {
		raw["edges"] = deriveEdges(nodesRaw)
	}

	if _, ok := raw["enable_namespacing"]; !ok {
		raw["enable_namespacing"] = true
	}
	if _, ok := raw["template_resolution_mode"]; !ok {
		mode := string(ModeStrict)
		if cfg != nil && cfg.Engine.TemplateResolutionMode != "" {
			mode = cfg.Engine.TemplateResolutionMode
		}
		raw["template_resolution_mode"] = mode
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize: marshal intermediate form: %w", err)
	}

	var w Workflow
	if err := json.Unmarshal(buf, &w); err != nil {
		return nil, fmt.Errorf("normalize: decode workflow: %w", err)
	}

	if w.StartNode == "" && len(w.Nodes) > 0 {
		w.StartNode = w.Nodes[0].ID
	}
	for i := range w.Nodes {
		if w.Nodes[i].Batch != nil {
			w.Nodes[i].Batch.ApplyDefaults(cfg)
		}
	}

	return &w, nil
}

// normalizeLegacyParams renames a node's "parameters" field to
// "params" in place, for every node in the raw mapping.
func normalizeLegacyParams(raw map[string]interface{}) {
	nodesRaw, ok := raw["nodes"].([]interface{})
	if !ok {
		return
	}
	for _, n := range nodesRaw {
		node, ok := n.(map[string]interface{})
		if !ok {
			continue
		}
		if params, ok := node["parameters"]; ok {
			if _, hasParams := node["params"]; !hasParams {
				node["params"] = params
			}
			delete(node, "parameters")
		}
	}
}

// deriveEdges synthesises a linear chain of edges from declaration
// order when the workflow supplies none.
func deriveEdges(nodesRaw []interface{}) []interface{} {
	edges := make([]interface{}, 0, len(nodesRaw))
	var prevID string
	for i, n := range nodesRaw {
		node, ok := n.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := node["id"].(string)
		if i > 0 && prevID != "" {
			edges = append(edges, map[string]interface{}{"from": prevID, "to": id})
		}
		prevID = id
	}
	return edges
}
