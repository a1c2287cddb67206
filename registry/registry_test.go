package registry

import (
	"testing"

	"github.com/lyzr/flowcore/node"
)

func TestStaticRegistry_LookupAndNew(t *testing.T) {
	reg := NewStatic(
		[]Declaration{{Type: "literal", AllowAnyParam: true}},
		map[string]Factory{"literal": func() node.Node { return nil }},
	)

	decl, ok := reg.Lookup("literal")
	if !ok || decl.Type != "literal" {
		t.Fatalf("expected to find literal declaration, got %+v, %v", decl, ok)
	}

	if _, ok := reg.Lookup("missing"); ok {
		t.Error("expected unknown type lookup to report not found")
	}
}

func TestStaticRegistry_NewUnknownTypeErrors(t *testing.T) {
	reg := NewStatic(nil, map[string]Factory{})
	if _, err := reg.New("missing"); err == nil {
		t.Fatal("expected error constructing an unregistered node type")
	}
}

func TestStaticRegistry_TypesSorted(t *testing.T) {
	reg := NewStatic(nil, map[string]Factory{
		"zebra": func() node.Node { return nil },
		"alpha": func() node.Node { return nil },
	})

	types := reg.Types()
	if len(types) != 2 || types[0] != "alpha" || types[1] != "zebra" {
		t.Errorf("expected sorted types [alpha zebra], got %v", types)
	}
}

func TestDefault_CoversShippedNodeTypes(t *testing.T) {
	reg := Default()
	for _, want := range []string{"literal", "passthrough", "json_stdout", "failing"} {
		if _, ok := reg.Lookup(want); !ok {
			t.Errorf("expected default registry to declare type %q", want)
		}
		if _, err := reg.New(want); err != nil {
			t.Errorf("expected default registry to construct type %q: %v", want, err)
		}
	}
}
