package nodes

import (
	"context"
	"strings"
	"testing"

	"github.com/lyzr/flowcore/store"
)

func TestLiteral_EmitsParamsVerbatim(t *testing.T) {
	n := NewLiteral(1, 0)
	n.SetParams(map[string]interface{}{"value": 42})

	s := store.New(nil)
	view := store.NewNamespaced(s, "A")

	prep, err := n.Prep(context.Background(), view)
	if err != nil {
		t.Fatalf("Prep failed: %v", err)
	}
	exec, err := n.Exec(context.Background(), prep)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if _, err := n.Post(context.Background(), view, prep, exec); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	if v, ok := s.Namespace("A")["value"]; !ok || v != 42 {
		t.Errorf("expected literal value written through, got %v", s.Namespace("A"))
	}
}

func TestFailing_ReturnsErrorFromExec(t *testing.T) {
	n := NewFailing(1, 0)
	n.SetParams(map[string]interface{}{"message": "boom"})

	prep, _ := n.Prep(context.Background(), nil)
	_, err := n.Exec(context.Background(), prep)
	if err == nil {
		t.Fatal("expected Failing node to always error")
	}
}

func TestFailing_UsesDefaultMessageWhenUnset(t *testing.T) {
	n := NewFailing(1, 0)
	n.SetParams(map[string]interface{}{})

	prep, _ := n.Prep(context.Background(), nil)
	_, err := n.Exec(context.Background(), prep)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "failing node: intentional failure") {
		t.Errorf("expected default failure message, got %v", err)
	}
}

func TestClone_IsIndependentOfOriginal(t *testing.T) {
	n := NewPassthrough(1, 0)
	n.SetParams(map[string]interface{}{"x": 1})

	cloned := n.Clone()
	cloned.SetParams(map[string]interface{}{"x": 2})

	if n.Params()["x"] != 1 {
		t.Errorf("expected original node's params unaffected by clone mutation, got %v", n.Params())
	}
	if cloned.Params()["x"] != 2 {
		t.Errorf("expected cloned node to carry its own params, got %v", cloned.Params())
	}
}

func TestJSONStdout_WritesMarkerOutput(t *testing.T) {
	n := NewJSONStdout(1, 0)
	n.SetParams(map[string]interface{}{"hello": "world"})

	prep, _ := n.Prep(context.Background(), nil)
	exec, err := n.Exec(context.Background(), prep)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	out := exec.(map[string]interface{})
	if out["written"] != true {
		t.Errorf("expected written=true marker, got %v", out)
	}
}
