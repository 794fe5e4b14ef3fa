// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package config

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"nickandperla.net/nexl/internal/eval"
	"nickandperla.net/nexl/internal/introspect"
)

func TestDefaults(t *testing.T) {
	c := Default()
	want := Engine{Strict: true, Cancellable: true, Cache: true}
	if diff := cmp.Diff(want, c.Engine); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	if len(c.Namespaces) != 0 || c.Store.Path != "" {
		t.Errorf("expected no namespaces and no store, got %+v", c)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	c, err := Parse([]byte(`
engine:
  strict: false
  lexical_shade: true
namespaces:
  str: Strings
store:
  path: vars.db
`))
	if err != nil {
		t.Fatal(err)
	}
	want := Engine{LexicalShade: true, Cancellable: true, Cache: true}
	if diff := cmp.Diff(want, c.Engine); diff != "" {
		t.Errorf("engine mismatch (-want +got):\n%s", diff)
	}
	if c.Namespaces["str"] != "Strings" || c.Store.Path != "vars.db" {
		t.Errorf("unexpected config %+v", c)
	}

	empty, err := Parse(nil)
	if err != nil {
		t.Fatalf("empty document: %v", err)
	}
	if !empty.Engine.Strict {
		t.Error("expected an empty document to keep the defaults")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("engine:\n  strcit: true\n")); err == nil {
		t.Error("expected an error for a misspelt key")
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	if err != nil || !c.Engine.Strict {
		t.Fatalf("Load(\"\") = %+v, %v", c, err)
	}
	path := filepath.Join(t.TempDir(), "nexl.yml")
	if err := os.WriteFile(path, []byte("engine: {silent: true}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Engine.Silent || !c.Engine.Strict {
		t.Errorf("unexpected engine flags %+v", c.Engine)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a missing file error, got %v", err)
	}
}

type stringsNS struct{}

func (stringsNS) Upper(s string) string { return strings.ToUpper(s) }

func TestOptionsConfigureEngine(t *testing.T) {
	c, err := Parse([]byte("engine: {strict: false, cancellable: false}\nnamespaces: {str: Strings}\n"))
	if err != nil {
		t.Fatal(err)
	}
	opts := append(c.Options(), eval.WithLogger(log.New(io.Discard)))
	e := eval.New(opts...)
	if e.IsStrict() || e.IsCancellable() {
		t.Errorf("expected a lenient, non-cancellable engine")
	}
	e.RegisterClass("Strings", introspect.NewClass("Strings", func() stringsNS { return stringsNS{} }))
	s, err := e.ParseScript(strings.NewReader(`{type: Call, namespace: str, name: upper, args: [abc]}`))
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Execute(context.Background(), nil)
	if err != nil || got != "ABC" {
		t.Errorf("Execute = %v, %v", got, err)
	}
	if diff := cmp.Diff([]string{"str"}, e.Namespaces().Prefixes()); diff != "" {
		t.Errorf("prefixes mismatch (-want +got):\n%s", diff)
	}
}
