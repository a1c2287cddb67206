// Package store implements the shared key-value store: a
// root mapping holding workflow-root keys, per-node namespaces, and
// process-wide reserved keys, plus a namespaced proxy view over it.
package store

import (
	"strings"
	"sync"
)

// ReservedPrefix marks a key as process-wide: never namespaced,
// shared across the run and across batch-item copies.
const ReservedPrefix = "__"

// Store is the root mapping. Node namespaces live as nested maps
// under their node id; everything else is a workflow-root or reserved
// key. All access goes through the methods below so reads and writes
// are serialised against concurrent batch workers touching reserved
// keys.
type Store struct {
	mu   sync.Mutex
	root map[string]interface{}
}

// New creates a Store seeded with the given initial params at root
// level.
func New(initial map[string]interface{}) *Store {
	root := make(map[string]interface{}, len(initial))
	for k, v := range initial {
		root[k] = v
	}
	return &Store{root: root}
}

// Get reads a root-level key. Node namespace access goes through
// Namespaced.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.root[key]
	return v, ok
}

// Set writes a root-level key directly. Used for reserved keys and
// for the batch wrapper's per-item alias.
func (s *Store) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root[key] = value
}

// Delete removes a root-level key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.root, key)
}

// Namespace returns the node's own namespace map, creating it lazily
// if it does not yet exist: namespaces are created lazily on first
// write. The returned map is the live nested map — mutating it
// mutates the store.
func (s *Store) Namespace(nodeID string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namespaceLocked(nodeID)
}

func (s *Store) namespaceLocked(nodeID string) map[string]interface{} {
	ns, ok := s.root[nodeID].(map[string]interface{})
	if !ok {
		ns = make(map[string]interface{})
		s.root[nodeID] = ns
	}
	return ns
}

// SetNamespace replaces a node's namespace wholesale (used when a
// node's wrapper finalises with a fresh output map).
func (s *Store) SetNamespace(nodeID string, values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root[nodeID] = values
}

// ClearNamespace removes a node's namespace entry entirely. The batch
// engine calls it on each per-item store copy before the item runs.
func (s *Store) ClearNamespace(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.root, nodeID)
}

// Root returns a snapshot of the entire root mapping, used by the
// template resolver, which must be able to see every namespace from
// the root.
func (s *Store) Root() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.root))
	for k, v := range s.root {
		out[k] = v
	}
	return out
}

// ShallowCopy produces a new Store whose root map is a fresh copy of
// this store's root-level entries. Reserved (__-prefixed) entries are
// aliased (same underlying value, e.g. a pointer to a shared slice) so mutations
// accumulate across the copy and the original; every other key is a
// shallow top-level copy, isolating per-item namespaces while sharing
// reserved containers.
func (s *Store) ShallowCopy() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	root := make(map[string]interface{}, len(s.root))
	for k, v := range s.root {
		root[k] = v
	}
	return &Store{root: root}
}

// Keys returns every root-level key. Used when a workflow disables
// namespacing (enable_namespacing: false) and a node's view is the raw
// store itself.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.root))
	for k := range s.root {
		keys = append(keys, k)
	}
	return keys
}

// IsReserved reports whether a key is a process-wide reserved key.
func IsReserved(key string) bool {
	return strings.HasPrefix(key, ReservedPrefix)
}

// Namespaced is a per-node view over a Store. Reads search the
// node's own namespace, then the root; they never search other
// nodes' namespaces. Writes land in the node's own namespace, except
// reserved keys, which write through to the root.
type Namespaced struct {
	store  *Store
	nodeID string
}

// NewNamespaced wraps store with a view scoped to nodeID.
func NewNamespaced(store *Store, nodeID string) *Namespaced {
	return &Namespaced{store: store, nodeID: nodeID}
}

// Get implements the read contract: own namespace first, then root,
// then absent.
func (n *Namespaced) Get(key string) (interface{}, bool) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()

	if ns, ok := n.store.root[n.nodeID].(map[string]interface{}); ok {
		if v, ok := ns[key]; ok {
			return v, true
		}
	}
	if v, ok := n.store.root[key]; ok {
		return v, true
	}
	return nil, false
}

// Set implements the write contract: reserved keys write through to
// root, everything else lands in the node's own namespace.
func (n *Namespaced) Set(key string, value interface{}) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()

	if IsReserved(key) {
		n.store.root[key] = value
		return
	}
	ns := n.store.namespaceLocked(n.nodeID)
	ns[key] = value
}

// Keys returns the union of the node's own namespace keys and the
// root-level keys, excluding the proxy's own namespace entry.
func (n *Namespaced) Keys() []string {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()

	seen := make(map[string]struct{})
	var keys []string
	if ns, ok := n.store.root[n.nodeID].(map[string]interface{}); ok {
		for k := range ns {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	for k := range n.store.root {
		if k == n.nodeID {
			continue
		}
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}

// Store returns the underlying root store, the "identity" escape
// hatch outer wrappers use to see the underlying root store.
func (n *Namespaced) Store() *Store { return n.store }

// NodeID returns the namespace id this view is scoped to.
func (n *Namespaced) NodeID() string { return n.nodeID }
