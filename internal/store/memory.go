// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory store for testing.
type Memory struct {
	mu       sync.RWMutex
	data     map[string][]VersionEntry // oldest first
	metadata map[string]string
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string][]VersionEntry),
		metadata: make(map[string]string),
	}
}

// Get retrieves the latest value of a variable.
func (m *Memory) Get(name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.data[name]
	if len(versions) == 0 {
		return "", false, nil
	}
	return versions[len(versions)-1].Value, true, nil
}

// Put stores a new version of a variable.
func (m *Memory) Put(name string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.data[name]
	if n := len(versions); n > 0 && versions[n-1].Value == value {
		return nil
	}
	m.data[name] = append(versions, VersionEntry{
		Version: len(versions) + 1,
		Value:   value,
		Ts:      time.Now().UTC().Format(time.DateTime),
	})
	return nil
}

// Delete removes a variable and its history.
func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}

// Names returns the stored variable names in sorted order.
func (m *Memory) Names() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.data))
	for name := range m.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetHistory returns the versions of a variable, newest first.
func (m *Memory) GetHistory(name string, limit int) ([]VersionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.data[name]
	if len(versions) == 0 {
		return nil, nil
	}
	var entries []VersionEntry
	for i := len(versions) - 1; i >= 0; i-- {
		if limit > 0 && len(entries) == limit {
			break
		}
		entries = append(entries, versions[i])
	}
	return entries, nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}

// GetMetadata retrieves a metadata value by key.
func (m *Memory) GetMetadata(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadata[key], nil
}

// SetMetadata stores a metadata value by key.
func (m *Memory) SetMetadata(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key] = value
	return nil
}
