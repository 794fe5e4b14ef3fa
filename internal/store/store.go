// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package store provides persistence for nexl context variables.
//
// Values are stored as encoded text; every change of a variable is kept as
// a new version.
package store

// Store is the interface for variable persistence.
type Store interface {
	// Get retrieves the latest value of a variable. ok is false if the
	// variable does not exist.
	Get(name string) (value string, ok bool, err error)
	// Put stores a new version of a variable. Storing the current value
	// again is a no-op.
	Put(name string, value string) error
	// Delete removes a variable and its history.
	Delete(name string) error
	// Names returns the stored variable names in sorted order.
	Names() ([]string, error)
	// Close releases resources.
	Close() error
}

// VersionEntry represents a single version of a persisted variable.
type VersionEntry struct {
	Version int
	Value   string
	Ts      string
}

// HistoryStore extends Store with version history queries.
type HistoryStore interface {
	// GetHistory returns the versions of a variable, newest first. A limit
	// of 0 returns all of them.
	GetHistory(name string, limit int) ([]VersionEntry, error)
}

// MetadataStore extends Store with metadata operations.
type MetadataStore interface {
	GetMetadata(key string) (string, error)
	SetMetadata(key, value string) error
}
