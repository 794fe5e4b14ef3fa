// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package introspect

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Class is a named set of constructor functions. Constructors are tried in
// registration order; the first whose parameters accept the arguments wins.
type Class struct {
	name  string
	ctors []reflect.Value
}

// NewClass creates a class from constructor functions. It panics if a
// constructor is not a function returning a value (and optionally an error).
func NewClass(name string, ctors ...any) *Class {
	c := &Class{name: name}
	for _, ctor := range ctors {
		v := reflect.ValueOf(ctor)
		t := v.Type()
		if t.Kind() != reflect.Func || t.NumOut() == 0 || t.NumOut() > 2 ||
			(t.NumOut() == 2 && t.Out(1) != errorType) {
			panic(fmt.Sprintf("introspect: constructor %s of %s is not a factory function", t, name))
		}
		c.ctors = append(c.ctors, v)
	}
	return c
}

// Name returns the class name.
func (c *Class) Name() string {
	return c.name
}

func (c *Class) String() string {
	return "class " + c.name
}

// Classes is a registry of class descriptors addressed by name, the
// equivalent of a class loader for scripts. It is safe for concurrent use.
type Classes struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewClasses creates an empty registry.
func NewClasses() *Classes {
	return &Classes{entries: make(map[string]any)}
}

// Register binds a name to a *Class or a reflect.Type.
func (c *Classes) Register(name string, class any) {
	switch class.(type) {
	case *Class, reflect.Type:
	default:
		panic(fmt.Sprintf("introspect: cannot register %T as class %s", class, name))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = class
}

// Lookup returns the class registered under name.
func (c *Classes) Lookup(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	class, ok := c.entries[name]
	return class, ok
}

// Names returns the registered names, sorted.
func (c *Classes) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
