// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"nickandperla.net/nexl/internal/store"
)

// StoreContext is a Context whose variables outlive the process. Plain
// data (null, booleans, numbers, strings, lists and maps of them) is
// written through to the store as JSON; other values such as closures and
// host objects are kept in memory only. Lookups are cached, misses
// included, so writes made to the store by others are not observed.
type StoreContext struct {
	store  store.Store
	logger *log.Logger

	mu        sync.RWMutex
	cache     map[string]any
	transient map[string]bool
	// names known to be absent from the store, until set
	missing map[string]bool
}

// NewStoreContext creates a context backed by s.
func NewStoreContext(s store.Store, logger *log.Logger) *StoreContext {
	if logger == nil {
		logger = log.Default()
	}
	return &StoreContext{
		store:     s,
		logger:    logger,
		cache:     make(map[string]any),
		transient: make(map[string]bool),
		missing:   make(map[string]bool),
	}
}

func (c *StoreContext) load(name string) (any, bool) {
	c.mu.RLock()
	v, ok := c.cache[name]
	absent := c.missing[name]
	c.mu.RUnlock()
	if ok {
		return v, true
	}
	if absent {
		return nil, false
	}
	text, ok, err := c.store.Get(name)
	if err != nil {
		c.logger.Warn("loading variable", "name", name, "err", err)
		return nil, false
	}
	if !ok {
		c.mu.Lock()
		if _, set := c.cache[name]; !set {
			c.missing[name] = true
		}
		c.mu.Unlock()
		return nil, false
	}
	v, err = decodeValue(text)
	if err != nil {
		c.logger.Warn("decoding variable", "name", name, "err", err)
		return nil, false
	}
	c.mu.Lock()
	c.cache[name] = v
	c.mu.Unlock()
	return v, true
}

// Get retrieves a variable, loading it from the store on first use.
func (c *StoreContext) Get(name string) any {
	v, _ := c.load(name)
	return v
}

// Has returns true if the variable exists in memory or in the store.
func (c *StoreContext) Has(name string) bool {
	_, ok := c.load(name)
	return ok
}

// Set stores a variable, persisting it when it is plain data.
func (c *StoreContext) Set(name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.missing, name)
	if !IsData(value) {
		c.logger.Debug("keeping variable in memory", "name", name, "type", fmt.Sprintf("%T", value))
		c.cache[name] = value
		c.transient[name] = true
		return nil
	}
	text, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := c.store.Put(name, string(text)); err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}
	c.cache[name] = value
	delete(c.transient, name)
	return nil
}

// Delete removes a variable from memory and from the store.
func (c *StoreContext) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, name)
	delete(c.transient, name)
	c.missing[name] = true
	return c.store.Delete(name)
}

// Names returns the names of the stored and in-memory variables.
func (c *StoreContext) Names() ([]string, error) {
	stored, err := c.store.Names()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(stored))
	for _, n := range stored {
		seen[n] = true
	}
	c.mu.RLock()
	for n := range c.transient {
		if !seen[n] {
			stored = append(stored, n)
		}
	}
	c.mu.RUnlock()
	sort.Strings(stored)
	return stored, nil
}

// History returns the stored versions of a variable, decoded, newest
// first. It returns nil when the store keeps no history.
func (c *StoreContext) History(name string, limit int) ([]any, error) {
	h, ok := c.store.(store.HistoryStore)
	if !ok {
		return nil, nil
	}
	entries, err := h.GetHistory(name, limit)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		v, err := decodeValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("decoding %s version %d: %w", name, e.Version, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// IsData reports whether v is plain data: null, a boolean, a number, a
// string, or a list or string-keyed map of plain data.
func IsData(v any) bool {
	switch x := v.(type) {
	case nil, bool, string, int, int32, int64, float32, float64:
		return true
	case []any:
		for _, e := range x {
			if !IsData(e) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, e := range x {
			if !IsData(e) {
				return false
			}
		}
		return true
	}
	return false
}

// decodeValue decodes JSON into script values: integral numbers become
// int64, others float64.
func decodeValue(text string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return numbers(v), nil
}

func numbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i, e := range x {
			x[i] = numbers(e)
		}
	case map[string]any:
		for k, e := range x {
			x[k] = numbers(e)
		}
	}
	return v
}
