// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf})
	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown", "name", "x")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected debug and info suppressed, got %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "name=x") {
		t.Errorf("expected the warning with its fields, got %q", out)
	}
	if !strings.Contains(out, "NEXL") {
		t.Errorf("expected the prefix, got %q", out)
	}

	buf.Reset()
	New(Options{Output: &buf, Debug: true}).Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug output, got %q", buf.String())
	}
}

func TestNoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf}).Error("plain")
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected no escape sequences for a buffer, got %q", buf.String())
	}
}

func TestInitSetsDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Default()
	defer log.SetDefault(prev)
	if Init(&buf, false, true) != log.Default() {
		t.Fatal("expected Init to install the default logger")
	}
	log.Error("through the default")
	if !strings.Contains(buf.String(), "through the default") {
		t.Errorf("expected default output in the buffer, got %q", buf.String())
	}
}
