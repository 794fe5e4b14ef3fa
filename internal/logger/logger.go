// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package logger configures the process-wide charmbracelet logger used by
// the nexl command.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Options controls New.
type Options struct {
	// Output defaults to os.Stderr.
	Output  io.Writer
	Debug   bool
	NoColor bool
}

// New builds a logger. Without Debug only warnings and errors are shown.
// Colour is dropped when NoColor is set or Output is not a terminal.
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l := log.NewWithOptions(out, log.Options{
		ReportCaller:    opts.Debug,
		ReportTimestamp: false,
		TimeFormat:      time.RFC3339,
		Prefix:          "NEXL",
	})
	if opts.Debug {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.WarnLevel)
	}
	if opts.NoColor || !isTerminal(out) {
		l.SetColorProfile(termenv.Ascii)
	} else {
		l.SetColorProfile(termenv.ANSI256)
	}
	return l
}

// Init installs a logger writing to w as the default and returns it.
func Init(w io.Writer, debug, noColor bool) *log.Logger {
	l := New(Options{Output: w, Debug: debug, NoColor: noColor})
	log.SetDefault(l)
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
