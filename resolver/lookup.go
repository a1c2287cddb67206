package resolver

import (
	"sort"

	"github.com/lyzr/flowcore/store"
)

// StoreLookup implements Lookup against the shared store's root
// view: the template resolver sees the entire root, and therefore
// all namespaces.
type StoreLookup struct {
	Store *store.Store
}

// Resolve implements Lookup.
func (l StoreLookup) Resolve(expr string) (interface{}, []string, bool, error) {
	head, path := SplitHeadPath(expr)

	root := l.Store.Root()
	headVal, headFound := root[head]
	if !headFound {
		return nil, sortedKeys(root), false, nil
	}

	value, pathFound, err := GJSONDescend(headVal, path)
	if err != nil {
		return nil, nil, false, err
	}
	if !pathFound {
		return nil, mapKeys(headVal), false, nil
	}
	return value, nil, true, nil
}

func mapKeys(v interface{}) []string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	return sortedKeys(m)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
