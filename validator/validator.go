// Package validator implements the six static-analysis layers that
// run over a normalised workflow IR before it is ever compiled or
// executed: schema shape, identifier syntax, node-type existence,
// graph shape, template reference soundness, and unknown-params
// warnings.
package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lyzr/flowcore/flowerr"
	"github.com/lyzr/flowcore/ir"
	"github.com/lyzr/flowcore/registry"
	"github.com/lyzr/flowcore/resolver"
)

// Severity distinguishes a hard validation failure from a warning
// that does not block compilation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one issue surfaced by a validation layer.
type Finding struct {
	Severity   Severity
	NodeID     string
	Message    string
	Suggestion string
}

var identifierPattern = regexp.MustCompile(`^[a-z0-9_]+(-[a-z0-9_]+)*$`)

var templateExpr = regexp.MustCompile(`\$\{([^}]*)\}?`)

var batchItemsPattern = regexp.MustCompile(`^\$\{.+\}$`)

// Validate runs every layer against w. Template heads are checked
// against declared input names rather than input values, so template
// structure is checked even when real argument values are unknown.
// It returns every finding; callers treat any SeverityError finding
// as fatal.
func Validate(w *ir.Workflow, reg registry.Registry) []Finding {
	var findings []Finding

	findings = append(findings, validateSchema(w)...)
	findings = append(findings, validateIdentifiers(w)...)
	findings = append(findings, validateNodeTypes(w, reg)...)
	findings = append(findings, validateGraphShape(w)...)
	findings = append(findings, validateTemplates(w, reg)...)
	findings = append(findings, validateUnknownParams(w, reg)...)

	return findings
}

// HasErrors reports whether any finding is a hard error.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ToError converts the first error-severity finding into a flowerr
// error, for callers that want Validate's result as a single Go
// error: a template error when the finding carries a suggestion,
// otherwise a schema error.
func ToError(findings []Finding) error {
	for _, f := range findings {
		if f.Severity == SeverityError {
			if f.Suggestion != "" {
				return flowerr.Template(f.NodeID, nil, f.Suggestion, "%s", f.Message)
			}
			return flowerr.Schema(f.NodeID, "%s", f.Message)
		}
	}
	return nil
}

// --- Layer 1: schema -------------------------------------------------

func validateSchema(w *ir.Workflow) []Finding {
	var findings []Finding
	if len(w.Nodes) == 0 {
		findings = append(findings, Finding{Severity: SeverityError, Message: "workflow declares no nodes"})
	}
	for _, n := range w.Nodes {
		if n.ID == "" {
			findings = append(findings, Finding{Severity: SeverityError, Message: "node missing required field \"id\""})
		}
		if n.Type == "" {
			findings = append(findings, Finding{Severity: SeverityError, NodeID: n.ID, Message: "node missing required field \"type\""})
		}
		if n.Batch != nil && !batchItemsPattern.MatchString(strings.TrimSpace(n.Batch.Items)) {
			findings = append(findings, Finding{Severity: SeverityError, NodeID: n.ID, Message: "batch.items must be a template expression of the form ${...}"})
		}
	}
	return findings
}

// --- Layer 2: identifier ---------------------------------------------

func validateIdentifiers(w *ir.Workflow) []Finding {
	var findings []Finding
	seen := make(map[string]bool)
	for _, n := range w.Nodes {
		if n.ID == "" {
			continue
		}
		if !identifierPattern.MatchString(n.ID) {
			findings = append(findings, Finding{Severity: SeverityError, NodeID: n.ID, Message: fmt.Sprintf("node id %q does not match required pattern", n.ID)})
		}
		if seen[n.ID] {
			findings = append(findings, Finding{Severity: SeverityError, NodeID: n.ID, Message: fmt.Sprintf("duplicate node id %q", n.ID)})
		}
		seen[n.ID] = true
	}
	return findings
}

// --- Layer 3: node types -----------------------------------------------

func validateNodeTypes(w *ir.Workflow, reg registry.Registry) []Finding {
	var findings []Finding
	for _, n := range w.Nodes {
		if n.Type == "" {
			continue
		}
		if _, ok := reg.Lookup(n.Type); !ok {
			findings = append(findings, Finding{
				Severity:   SeverityError,
				NodeID:     n.ID,
				Message:    fmt.Sprintf("unknown node type %q", n.Type),
				Suggestion: resolver.ClosestMatch(n.Type, reg.Types()),
			})
		}
	}
	return findings
}

// --- Layer 4: graph shape ----------------------------------------------

// validateGraphShape enforces that declaration order is the execution
// order and that no template references a node declared later.
func validateGraphShape(w *ir.Workflow) []Finding {
	var findings []Finding
	declaredBefore := make(map[string]int, len(w.Nodes))
	for i, n := range w.Nodes {
		declaredBefore[n.ID] = i
	}

	for i, n := range w.Nodes {
		walkTemplates(n.Params, func(expr string) {
			head, _ := resolver.SplitHeadPath(expr)
			if idx, ok := declaredBefore[head]; ok && idx >= i {
				findings = append(findings, Finding{
					Severity: SeverityError,
					NodeID:   n.ID,
					Message:  fmt.Sprintf("forward reference to node %q (declared at or after this node)", head),
				})
			}
		})
	}
	return findings
}

// --- Layer 5: templates -------------------------------------------------

// validateTemplates checks that every template's head identifier is
// either a declared input name or an earlier node. Dotted and indexed
// sub-paths after the head are not checked.
func validateTemplates(w *ir.Workflow, reg registry.Registry) []Finding {
	var findings []Finding
	known := make(map[string]bool)
	for name := range w.Inputs {
		known[name] = true
	}

	declaredEarlier := make(map[string]bool)
	for _, n := range w.Nodes {
		walkTemplates(n.Params, func(expr string) {
			validateOneTemplate(expr, n.ID, known, declaredEarlier, &findings)
		})
		declaredEarlier[n.ID] = true
	}

	for name, decl := range w.Outputs {
		if !strings.Contains(decl.Source, "${") {
			findings = append(findings, Finding{Severity: SeverityError, NodeID: name, Message: fmt.Sprintf("output %q source is not a template expression", name)})
			continue
		}
		walkTemplates(map[string]interface{}{"source": decl.Source}, func(expr string) {
			validateOneTemplate(expr, name, known, declaredEarlier, &findings)
		})
	}

	return findings
}

func validateOneTemplate(expr, ownerID string, knownInputs, declaredEarlier map[string]bool, findings *[]Finding) {
	head, _ := resolver.SplitHeadPath(expr)
	if knownInputs[head] || declaredEarlier[head] {
		return
	}
	available := make([]string, 0, len(knownInputs)+len(declaredEarlier))
	for k := range knownInputs {
		available = append(available, k)
	}
	for k := range declaredEarlier {
		available = append(available, k)
	}
	sort.Strings(available)
	*findings = append(*findings, Finding{
		Severity:   SeverityError,
		NodeID:     ownerID,
		Message:    fmt.Sprintf("unresolved reference ${%s}: %q is not a declared input or an earlier node", expr, head),
		Suggestion: resolver.ClosestMatch(head, available),
	})
}

// --- Layer 6: unknown params --------------------------------------------

func validateUnknownParams(w *ir.Workflow, reg registry.Registry) []Finding {
	var findings []Finding
	for _, n := range w.Nodes {
		decl, ok := reg.Lookup(n.Type)
		if !ok || decl.AllowAnyParam {
			continue
		}
		allowed := make(map[string]bool, len(decl.RequiredParams)+len(decl.OptionalParams))
		for _, p := range decl.RequiredParams {
			allowed[p] = true
		}
		for _, p := range decl.OptionalParams {
			allowed[p] = true
		}
		allowedList := append(append([]string{}, decl.RequiredParams...), decl.OptionalParams...)

		for key := range n.Params {
			if allowed[key] {
				continue
			}
			findings = append(findings, Finding{
				Severity:   SeverityWarning,
				NodeID:     n.ID,
				Message:    fmt.Sprintf("param %q is not declared for node type %q", key, n.Type),
				Suggestion: resolver.ClosestMatch(key, allowedList),
			})
		}
	}
	return findings
}

// --- template walking helpers --------------------------------------------

// walkTemplates visits every ${...} expression found anywhere in a
// node's params tree (strings, nested maps, nested slices) and calls
// fn with the raw expression text (without the surrounding ${ }).
func walkTemplates(value interface{}, fn func(expr string)) {
	switch v := value.(type) {
	case string:
		for _, m := range templateExpr.FindAllStringSubmatch(v, -1) {
			fn(m[1])
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkTemplates(v[k], fn)
		}
	case []interface{}:
		for _, item := range v {
			walkTemplates(item, fn)
		}
	}
}
