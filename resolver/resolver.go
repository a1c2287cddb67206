// Package resolver expands ${...} template expressions against the
// shared store, preserving native types on whole-value
// substitution and stringifying on interpolation.
package resolver

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/lyzr/flowcore/flowerr"
	"github.com/lyzr/flowcore/ir"
	"github.com/tidwall/gjson"
)

// jsonArrayCoercionCap is the safety cap on string size eligible for
// the JSON-array coercion used by batch.items.
const jsonArrayCoercionCap = 10 * 1024 * 1024

// wholeTemplate matches a value that is exactly one ${...} expression
// with nothing else around it.
var wholeTemplate = regexp.MustCompile(`^\$\{(.+)\}$`)

// anyTemplate finds every ${...} occurrence inside a larger string.
var anyTemplate = regexp.MustCompile(`\$\{([^}]*)\}`)

// Lookup resolves a full "${...}" expression (head identifier plus an
// optional dotted/indexed path) into a value.
type Lookup interface {
	// Resolve returns the value the expression points to, and found
	// reports whether the full path resolved. When found is false,
	// available lists the keys present on the object where resolution
	// stopped — the head's root siblings if the head itself is
	// unknown, or the head object's own fields if only the sub-path
	// is missing — for the "Available outputs: ..." error detail.
	Resolve(expr string) (value interface{}, available []string, found bool, err error)
}

// Resolve expands every ${...} expression found in value against
// lookup, honouring mode. It recurses into nested maps and arrays.
func Resolve(value interface{}, lookup Lookup, mode ir.ResolutionMode) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, lookup, mode)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			rv, err := Resolve(val, lookup, mode)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			rv, err := Resolve(val, lookup, mode)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return value, nil
	}
}

func resolveString(s string, lookup Lookup, mode ir.ResolutionMode) (interface{}, error) {
	if strings.Count(s, "${") == 1 {
		if m := wholeTemplate.FindStringSubmatch(s); m != nil {
			return resolveExpr(m[1], lookup, mode)
		}
	}
	if !strings.Contains(s, "${") {
		return s, nil
	}
	if strings.Contains(s, "${") && !anyTemplate.MatchString(s) {
		return nil, flowerr.Template("", nil, "", "malformed template expression in %q", s)
	}

	var sb strings.Builder
	last := 0
	matches := anyTemplate.FindAllStringSubmatchIndex(s, -1)
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		expr := s[m[2]:m[3]]
		val, err := resolveExpr(expr, lookup, mode)
		if err != nil {
			return nil, err
		}
		sb.WriteString(Stringify(val))
		last = m[1]
	}
	sb.WriteString(s[last:])
	return sb.String(), nil
}

// Stringify renders a resolved value for embedding inside a larger
// string: null becomes "", booleans render lowercase, arrays
// and mappings render in canonical JSON form.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64, int, int64:
		return fmt.Sprintf("%v", t)
	default:
		buf, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(buf)
	}
}

func resolveExpr(expr string, lookup Lookup, mode ir.ResolutionMode) (interface{}, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, flowerr.Template("", nil, "", "empty template expression")
	}

	value, available, found, err := lookup.Resolve(expr)
	if err != nil {
		return nil, err
	}
	if !found {
		head := headIdentifier(expr)
		suggestion := ClosestMatch(head, available)
		if mode == ir.ModeLenient {
			return "", nil
		}
		return nil, flowerr.Template(head, available, suggestion,
			"unresolved reference ${%s}", expr)
	}
	return value, nil
}

func headIdentifier(expr string) string {
	for i, c := range expr {
		if c == '.' || c == '[' {
			return expr[:i]
		}
	}
	return expr
}

// ClosestMatch returns the candidate in candidates most similar to
// target by substring containment, empty if none are close.
func ClosestMatch(target string, candidates []string) string {
	target = strings.ToLower(target)
	best := ""
	bestScore := -1
	for _, c := range candidates {
		lc := strings.ToLower(c)
		score := -1
		if strings.Contains(lc, target) || strings.Contains(target, lc) {
			score = len(lc)
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

// CoerceJSONArray implements the JSON-array coercion rule used
// by batch.items: if value is a string that looks like a JSON array
// (starts with '[' after trim, under the safety cap), parse it and
// return the resulting list; on parse failure, or if it isn't
// eligible, return the original value unchanged.
func CoerceJSONArray(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") || len(s) > jsonArrayCoercionCap {
		return value
	}
	var arr []interface{}
	if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
		return value
	}
	return arr
}

// GJSONDescend walks a dotted/indexed sub-path ("b[0].c") into head
// using gjson, returning the native Go value at that path. head may
// be any JSON-marshalable value.
func GJSONDescend(head interface{}, path string) (interface{}, bool, error) {
	if path == "" {
		return head, true, nil
	}
	buf, err := json.Marshal(head)
	if err != nil {
		return nil, false, fmt.Errorf("resolver: marshal head for path descent: %w", err)
	}
	result := gjson.GetBytes(buf, gjsonPath(path))
	if !result.Exists() {
		return nil, false, nil
	}
	return result.Value(), true, nil
}

// gjsonPath converts our "field[0].sub" dotted/bracket grammar into
// gjson's own "field.0.sub" path syntax.
func gjsonPath(path string) string {
	var sb strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch c {
		case '[':
			sb.WriteByte('.')
		case ']':
			// skip
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// SplitHeadPath splits "head.sub[0].path" into its head identifier
// and remaining path ("sub[0].path").
func SplitHeadPath(expr string) (head, path string) {
	for i, c := range expr {
		if c == '.' {
			return expr[:i], expr[i+1:]
		}
		if c == '[' {
			return expr[:i], expr[i:]
		}
	}
	return expr, ""
}
