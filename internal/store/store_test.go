// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"database/sql"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func tempDB(t *testing.T, pattern string) string {
	t.Helper()
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	path := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(path) })
	return path
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	// Test Put and Get
	if err := s.Put("test", `"hello"`); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := s.Get("test")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || got != `"hello"` {
		t.Errorf("expected '\"hello\"', got '%s' (found=%v)", got, ok)
	}

	// Test Delete
	if err := s.Delete("test"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, ok, err = s.Get("test")
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if ok {
		t.Error("expected variable to be gone after delete")
	}
}

func TestSQLiteStore(t *testing.T) {
	path := tempDB(t, "nexl-test-*.db")

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}

	// Test Put and Get
	if err := s.Put("test", "42"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put("other", "null"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := s.Get("test")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || got != "42" {
		t.Errorf("expected '42', got '%s' (found=%v)", got, ok)
	}

	// Close and reopen to verify persistence
	s.Close()

	s2, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to reopen SQLite store: %v", err)
	}
	defer s2.Close()

	got, ok, err = s2.Get("test")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if !ok || got != "42" {
		t.Errorf("expected '42' after reopen, got '%s'", got)
	}

	names, err := s2.Names()
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if diff := cmp.Diff([]string{"other", "test"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	if _, ok, _ := s2.Get("missing"); ok {
		t.Error("expected missing variable not to be found")
	}
}

func TestMemoryVersioning(t *testing.T) {
	s := NewMemory()

	// Put creates version 1
	s.Put("X", "first")
	got, _, _ := s.Get("X")
	if got != "first" {
		t.Errorf("expected 'first', got '%s'", got)
	}

	// Put again with different value creates version 2
	s.Put("X", "second")
	got, _, _ = s.Get("X")
	if got != "second" {
		t.Errorf("expected 'second', got '%s'", got)
	}

	// Put with same value is a no-op (dedup)
	s.Put("X", "second")

	// GetHistory returns newest-first
	entries, err := s.GetHistory("X", 0)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Version != 2 || entries[0].Value != "second" {
		t.Errorf("entry[0]: expected v2 'second', got v%d '%s'", entries[0].Version, entries[0].Value)
	}
	if entries[1].Version != 1 || entries[1].Value != "first" {
		t.Errorf("entry[1]: expected v1 'first', got v%d '%s'", entries[1].Version, entries[1].Value)
	}

	// GetHistory with limit
	entries, err = s.GetHistory("X", 1)
	if err != nil {
		t.Fatalf("GetHistory with limit failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry with limit, got %d", len(entries))
	}
	if entries[0].Version != 2 {
		t.Errorf("expected v2 with limit, got v%d", entries[0].Version)
	}

	// GetHistory on nonexistent returns nil
	entries, err = s.GetHistory("nope", 0)
	if err != nil {
		t.Fatalf("GetHistory nonexistent failed: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil for nonexistent, got %v", entries)
	}

	// Delete removes all versions
	s.Delete("X")
	entries, err = s.GetHistory("X", 0)
	if err != nil {
		t.Fatalf("GetHistory after delete failed: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil after delete, got %v", entries)
	}
}

func TestSQLiteVersioning(t *testing.T) {
	s, err := NewSQLite(tempDB(t, "nexl-ver-test-*.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()

	// First put creates version 1
	s.Put("X", "first")
	got, _, _ := s.Get("X")
	if got != "first" {
		t.Errorf("expected 'first', got '%s'", got)
	}

	// Second put with different value creates version 2
	s.Put("X", "second")
	got, _, _ = s.Get("X")
	if got != "second" {
		t.Errorf("expected 'second', got '%s'", got)
	}

	// Same value is a no-op
	s.Put("X", "second")

	// GetHistory returns newest first
	entries, err := s.GetHistory("X", 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Version != 2 || entries[0].Value != "second" {
		t.Errorf("entry[0]: expected v2 'second', got v%d '%s'", entries[0].Version, entries[0].Value)
	}
	if entries[1].Version != 1 || entries[1].Value != "first" {
		t.Errorf("entry[1]: expected v1 'first', got v%d '%s'", entries[1].Version, entries[1].Value)
	}
	// Timestamps should be non-empty
	if entries[0].Ts == "" {
		t.Error("expected non-empty timestamp")
	}

	// GetHistory with limit
	entries, _ = s.GetHistory("X", 1)
	if len(entries) != 1 {
		t.Fatalf("expected 1 with limit, got %d", len(entries))
	}

	// Delete removes all versions
	s.Delete("X")
	entries, _ = s.GetHistory("X", 0)
	if len(entries) != 0 {
		t.Errorf("expected 0 after delete, got %d", len(entries))
	}
}

func TestSQLiteMigrationV1toV2(t *testing.T) {
	path := tempDB(t, "nexl-migrate-test-*.db")

	// Create a v1 database manually
	db, err := sql.Open(driverName, path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE variables (name TEXT PRIMARY KEY, value TEXT NOT NULL);
		CREATE TABLE metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL);
		INSERT INTO metadata (key, value) VALUES ('schema_version', '1');
		INSERT INTO variables (name, value) VALUES ('greeting', '"hello world"');
	`)
	db.Close()
	if err != nil {
		t.Fatalf("creating v1 database: %v", err)
	}

	// Open with NewSQLite, which should migrate to v2
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite after migration: %v", err)
	}
	defer s.Close()

	if v, _ := s.GetMetadata("schema_version"); v != SchemaVersion {
		t.Errorf("expected schema version %s, got %q", SchemaVersion, v)
	}

	// Verify existing data preserved
	got, ok, err := s.Get("greeting")
	if err != nil {
		t.Fatalf("Get after migration: %v", err)
	}
	if !ok || got != `"hello world"` {
		t.Errorf("expected '\"hello world\"' after migration, got '%v'", got)
	}

	// Verify history works (existing row became version 1)
	entries, err := s.GetHistory("greeting", 0)
	if err != nil {
		t.Fatalf("GetHistory after migration: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after migration, got %d", len(entries))
	}
	if entries[0].Version != 1 || entries[0].Value != `"hello world"` {
		t.Errorf("unexpected entry: v%d '%s'", entries[0].Version, entries[0].Value)
	}

	// New puts should version correctly
	s.Put("greeting", `"updated"`)
	entries, _ = s.GetHistory("greeting", 0)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after update, got %d", len(entries))
	}
}

func TestSQLiteRejectsNewerSchema(t *testing.T) {
	path := tempDB(t, "nexl-schema-test-*.db")
	db, err := sql.Open(driverName, path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL);
		INSERT INTO metadata (key, value) VALUES ('schema_version', '99');
	`)
	db.Close()
	if err != nil {
		t.Fatalf("creating database: %v", err)
	}
	if s, err := NewSQLite(path); err == nil {
		s.Close()
		t.Fatal("expected unsupported schema version error")
	}
}
