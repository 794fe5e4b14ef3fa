// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Context holds the global variables a script reads and writes by name.
type Context interface {
	Get(name string) any
	Has(name string) bool
	// Set returns ErrReadOnly when the context rejects writes.
	Set(name string, value any) error
}

// NamespaceResolver is an optional Context capability resolving
// prefix:name() namespaces before the engine's namespace table.
type NamespaceResolver interface {
	ResolveNamespace(prefix string) (any, bool)
}

// CancellationHandle is an optional Context capability sharing one
// cancellation flag with every evaluation run against the context.
type CancellationHandle interface {
	Cancellation() *Cancellation
}

// AnnotationProcessor is an optional Context capability processing
// @name(args) statements. stmt evaluates the annotated statement; the
// processor decides whether and how to run it.
type AnnotationProcessor interface {
	ProcessAnnotation(name string, args []any, stmt func() (any, error)) (any, error)
}

// NamespaceFunctor is implemented by namespace table entries that create
// the namespace object per evaluation.
type NamespaceFunctor interface {
	CreateFunctor(vars Context) any
}

// Cancellation is a sticky cancellation flag.
type Cancellation struct {
	flag atomic.Bool
}

// NewCancellation creates a flag that is not cancelled.
func NewCancellation() *Cancellation {
	return &Cancellation{}
}

// Cancel sets the flag. It returns true if this call cancelled it.
func (c *Cancellation) Cancel() bool {
	return c.flag.CompareAndSwap(false, true)
}

// Cancelled reports whether the flag is set.
func (c *Cancellation) Cancelled() bool {
	return c.flag.Load()
}

// MapContext is a thread-safe Context backed by a map.
type MapContext struct {
	mu   sync.RWMutex
	vars map[string]any
}

// NewMapContext creates a context holding a copy of vars.
func NewMapContext(vars map[string]any) *MapContext {
	c := &MapContext{vars: make(map[string]any, len(vars))}
	for k, v := range vars {
		c.vars[k] = v
	}
	return c
}

// Get retrieves a variable. Missing variables read as nil.
func (c *MapContext) Get(name string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vars[name]
}

// Has returns true if the variable exists, even when it holds nil.
func (c *MapContext) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.vars[name]
	return ok
}

// Set stores a variable.
func (c *MapContext) Set(name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[name] = value
	return nil
}

// Delete removes a variable.
func (c *MapContext) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vars, name)
}

// Names returns the variable names in sorted order.
func (c *MapContext) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.vars))
	for k := range c.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone creates a shallow copy of the context.
func (c *MapContext) Clone() *MapContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return NewMapContext(c.vars)
}

// ReadOnlyContext wraps a Context, rejecting writes.
type ReadOnlyContext struct {
	Context
}

// Set always fails with ErrReadOnly.
func (ReadOnlyContext) Set(string, any) error {
	return ErrReadOnly
}

var emptyContext Context = ReadOnlyContext{Context: NewMapContext(nil)}
