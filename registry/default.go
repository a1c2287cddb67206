package registry

import (
	"github.com/lyzr/flowcore/node"
	"github.com/lyzr/flowcore/nodes"
)

// Default builds the StaticRegistry covering the node types the
// engine ships with.
func Default() *StaticRegistry {
	declarations := []Declaration{
		{Type: "literal", AllowAnyParam: true},
		{Type: "passthrough", AllowAnyParam: true},
		{Type: "json_stdout", AllowAnyParam: true},
		{Type: "failing", OptionalParams: []string{"message"}},
	}
	factories := map[string]Factory{
		"literal":     func() node.Node { return nodes.NewLiteral(1, 0) },
		"passthrough": func() node.Node { return nodes.NewPassthrough(1, 0) },
		"json_stdout": func() node.Node { return nodes.NewJSONStdout(1, 0) },
		"failing":     func() node.Node { return nodes.NewFailing(1, 0) },
	}
	return NewStatic(declarations, factories)
}
