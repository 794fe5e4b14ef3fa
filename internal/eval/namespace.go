// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"sort"
	"sync"
)

// Namespaces is the thread-safe table of registered function namespaces.
//
// An entry may be a ready instance whose methods are called directly, an
// *introspect.Class or reflect.Type to instantiate, a factory function
// taking the Context or nothing, a NamespaceFunctor, or the name of a
// registered class.
type Namespaces struct {
	mu    sync.RWMutex
	store map[string]any
}

// NewNamespaces creates an empty table.
func NewNamespaces() *Namespaces {
	return &Namespaces{
		store: make(map[string]any),
	}
}

// Get retrieves the entry registered under prefix.
func (n *Namespaces) Get(prefix string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ns, ok := n.store[prefix]
	return ns, ok
}

// Set registers an entry.
func (n *Namespaces) Set(prefix string, ns any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.store[prefix] = ns
}

// Has returns true if prefix is registered.
func (n *Namespaces) Has(prefix string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.store[prefix]
	return ok
}

// Delete removes an entry.
func (n *Namespaces) Delete(prefix string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.store, prefix)
}

// Prefixes returns the registered prefixes in sorted order.
func (n *Namespaces) Prefixes() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	prefixes := make([]string, 0, len(n.store))
	for p := range n.store {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Clone creates a shallow copy of the table.
func (n *Namespaces) Clone() *Namespaces {
	n.mu.RLock()
	defer n.mu.RUnlock()
	clone := NewNamespaces()
	for k, v := range n.store {
		clone.store[k] = v
	}
	return clone
}
