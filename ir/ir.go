// Package ir defines the canonical declarative shape of a workflow:
// the structure the external parser hands to the engine, and the
// normaliser that brings an arbitrary decoded mapping into that shape.
package ir

import (
	"time"

	"github.com/lyzr/flowcore/common/config"
)

// ResolutionMode controls how the template resolver behaves when a
// reference cannot be resolved.
type ResolutionMode string

const (
	ModeStrict  ResolutionMode = "strict"
	ModeLenient ResolutionMode = "lenient"

	// CurrentIRVersion is injected by Normalize when a workflow omits
	// ir_version.
	CurrentIRVersion = "1.0"

	// DefaultBatchAs is the default alias bound to the current item
	// during batch fan-out.
	DefaultBatchAs = "item"

	ErrorHandlingFailFast = "fail_fast"
	ErrorHandlingContinue = "continue"
)

// Workflow is the canonical declarative form.
type Workflow struct {
	IRVersion              string                `json:"ir_version"`
	Nodes                  []Node                `json:"nodes"`
	Edges                  []Edge                `json:"edges"`
	Inputs                 map[string]InputDecl  `json:"inputs,omitempty"`
	Outputs                map[string]OutputDecl `json:"outputs,omitempty"`
	StartNode              string                `json:"start_node,omitempty"`
	EnableNamespacing      bool                  `json:"enable_namespacing"`
	TemplateResolutionMode ResolutionMode        `json:"template_resolution_mode"`
}

// Node is a single unit of computation declared in the workflow.
type Node struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"`
	Purpose string                 `json:"purpose,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Batch   *BatchConfig           `json:"batch,omitempty"`

	MaxRetries int     `json:"max_retries,omitempty"`
	Wait       float64 `json:"wait,omitempty"`
}

// Edge is a declared or derived {from,to} pair. Used by
// validation, not by execution.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BatchConfig triggers batch fan-out for a node.
type BatchConfig struct {
	Items         string  `json:"items"`
	As            string  `json:"as,omitempty"`
	ErrorHandling string  `json:"error_handling,omitempty"`
	Parallel      bool    `json:"parallel,omitempty"`
	MaxConcurrent int     `json:"max_concurrent,omitempty"`
	MaxRetries    int     `json:"max_retries,omitempty"`
	RetryWait     float64 `json:"retry_wait,omitempty"`
}

// InputDecl declares a workflow-level parameter.
type InputDecl struct {
	Description string      `json:"description,omitempty"`
	Required    *bool       `json:"required,omitempty"`
	Type        string      `json:"type,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Stdin       bool        `json:"stdin,omitempty"`
}

// IsRequired returns the effective required-ness, defaulting to true
// when unspecified.
func (d InputDecl) IsRequired() bool {
	if d.Required == nil {
		return true
	}
	return *d.Required
}

// OutputDecl is a projection over node outputs.
type OutputDecl struct {
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Source      string `json:"source"`
}

// ApplyDefaults fills in a BatchConfig's documented defaults in
// place, falling back to cfg's engine defaults (nil uses the
// hardcoded fallbacks below) for the numeric knobs. Zero-valued
// fields that a caller genuinely set to zero (e.g. RetryWait: 0) are
// indistinguishable from "unset" for the numeric knobs that have a
// nonzero default; this matches the source's treatment of these as
// simple optional fields with defaults, not tri-state options.
func (b *BatchConfig) ApplyDefaults(cfg *config.Config) {
	maxConcurrent, maxRetries, retryWait := 10, 1, time.Duration(0)
	if cfg != nil {
		maxConcurrent = cfg.Engine.BatchMaxConcurrent
		maxRetries = cfg.Engine.BatchMaxRetries
		retryWait = cfg.Engine.BatchRetryWait
	}

	if b.As == "" {
		b.As = DefaultBatchAs
	}
	if b.ErrorHandling == "" {
		b.ErrorHandling = ErrorHandlingFailFast
	}
	if b.MaxConcurrent == 0 {
		b.MaxConcurrent = maxConcurrent
	}
	if b.MaxRetries == 0 {
		b.MaxRetries = maxRetries
	}
	if b.RetryWait == 0 && retryWait > 0 {
		b.RetryWait = retryWait.Seconds()
	}
}
