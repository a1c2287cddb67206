package resolver

import (
	"testing"

	"github.com/lyzr/flowcore/ir"
	"github.com/lyzr/flowcore/store"
)

func TestResolve_WholeValuePreservesNativeType(t *testing.T) {
	s := store.New(nil)
	s.SetNamespace("A", map[string]interface{}{"value": 42})
	lookup := StoreLookup{Store: s}

	got, err := Resolve("${A.value}", lookup, ir.ModeStrict)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != 42.0 {
		t.Errorf("expected native int-as-float64 42, got %v (%T)", got, got)
	}
}

func TestResolve_EmbeddedTemplateStringifies(t *testing.T) {
	s := store.New(nil)
	s.SetNamespace("A", map[string]interface{}{"value": 42})
	lookup := StoreLookup{Store: s}

	got, err := Resolve("value is ${A.value}", lookup, ir.ModeStrict)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "value is 42" {
		t.Errorf("expected stringified embedding, got %v", got)
	}
}

func TestResolve_MultipleTemplatesInOneString(t *testing.T) {
	s := store.New(nil)
	s.SetNamespace("A", map[string]interface{}{"x": 1})
	s.SetNamespace("B", map[string]interface{}{"y": 2})
	lookup := StoreLookup{Store: s}

	got, err := Resolve("${A.x}-${B.y}", lookup, ir.ModeStrict)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "1-2" {
		t.Errorf("expected both templates substituted, got %v", got)
	}
}

func TestResolve_StrictModeFailsOnUnresolved(t *testing.T) {
	s := store.New(nil)
	lookup := StoreLookup{Store: s}

	_, err := Resolve("${missing.value}", lookup, ir.ModeStrict)
	if err == nil {
		t.Fatal("expected strict mode to fail on unresolved reference")
	}
}

func TestResolve_LenientModeSubstitutesEmptyString(t *testing.T) {
	s := store.New(nil)
	lookup := StoreLookup{Store: s}

	got, err := Resolve("${missing.value}", lookup, ir.ModeLenient)
	if err != nil {
		t.Fatalf("expected lenient mode to not fail, got %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string substitution, got %v", got)
	}
}

func TestResolve_UnresolvedSubPathFails(t *testing.T) {
	s := store.New(nil)
	s.SetNamespace("A", map[string]interface{}{"value": 1})
	lookup := StoreLookup{Store: s}

	_, err := Resolve("${A.nonexistent_field}", lookup, ir.ModeStrict)
	if err == nil {
		t.Fatal("expected strict mode to fail when head resolves but sub-path does not")
	}
}

func TestResolve_RecursesIntoMapsAndArrays(t *testing.T) {
	s := store.New(nil)
	s.SetNamespace("A", map[string]interface{}{"value": "x"})
	lookup := StoreLookup{Store: s}

	input := map[string]interface{}{
		"list": []interface{}{"${A.value}", "literal"},
		"nested": map[string]interface{}{
			"inner": "${A.value}",
		},
	}

	got, err := Resolve(input, lookup, ir.ModeStrict)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	m := got.(map[string]interface{})
	list := m["list"].([]interface{})
	if list[0] != "x" || list[1] != "literal" {
		t.Errorf("expected list resolved in place, got %v", list)
	}
	nested := m["nested"].(map[string]interface{})
	if nested["inner"] != "x" {
		t.Errorf("expected nested map resolved, got %v", nested)
	}
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{true, "true"},
		{false, "false"},
		{"already-a-string", "already-a-string"},
		{[]interface{}{1, 2}, "[1,2]"},
	}
	for _, c := range cases {
		if got := Stringify(c.in); got != c.want {
			t.Errorf("Stringify(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCoerceJSONArray(t *testing.T) {
	got := CoerceJSONArray(`["a","b","c"]`)
	arr, ok := got.([]interface{})
	if !ok || len(arr) != 3 {
		t.Errorf("expected parsed 3-element array, got %v", got)
	}

	// Not JSON-array-shaped: passed through unchanged.
	got = CoerceJSONArray("not an array")
	if got != "not an array" {
		t.Errorf("expected non-array string unchanged, got %v", got)
	}

	// Malformed JSON: passed through unchanged rather than erroring.
	got = CoerceJSONArray(`["unterminated`)
	if got != `["unterminated` {
		t.Errorf("expected malformed JSON passed through unchanged, got %v", got)
	}

	// Non-string values pass through untouched.
	if got := CoerceJSONArray(42); got != 42 {
		t.Errorf("expected non-string value unchanged, got %v", got)
	}
}

func TestSplitHeadPath(t *testing.T) {
	cases := []struct {
		expr     string
		wantHead string
		wantPath string
	}{
		{"A", "A", ""},
		{"A.value", "A", "value"},
		{"A[0]", "A", "[0]"},
		{"A.items[0].name", "A", "items[0].name"},
	}
	for _, c := range cases {
		head, path := SplitHeadPath(c.expr)
		if head != c.wantHead || path != c.wantPath {
			t.Errorf("SplitHeadPath(%q) = (%q, %q), want (%q, %q)", c.expr, head, path, c.wantHead, c.wantPath)
		}
	}
}

func TestGJSONDescend_ArrayIndexing(t *testing.T) {
	head := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"name": "first"},
			map[string]interface{}{"name": "second"},
		},
	}
	got, found, err := GJSONDescend(head, "items[1].name")
	if err != nil {
		t.Fatalf("GJSONDescend failed: %v", err)
	}
	if !found || got != "second" {
		t.Errorf("expected descent into items[1].name = second, got %v, found=%v", got, found)
	}
}

func TestClosestMatch(t *testing.T) {
	candidates := []string{"fetch_result", "fetch_status", "unrelated"}
	if got := ClosestMatch("fetc", candidates); got == "" {
		t.Error("expected a substring match to be found")
	}
	if got := ClosestMatch("zzz", candidates); got != "" {
		t.Errorf("expected no match for unrelated target, got %q", got)
	}
}
