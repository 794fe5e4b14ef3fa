// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package nexl provides the public API for the nexl interpreter.
package nexl

import (
	"time"

	"github.com/charmbracelet/log"

	"nickandperla.net/nexl/internal/config"
	"nickandperla.net/nexl/internal/eval"
	"nickandperla.net/nexl/internal/store"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithSQLiteStore keeps the runtime's variables in a SQLite database.
func WithSQLiteStore(path string) Option {
	return func(r *Runtime) {
		s, err := store.NewSQLite(path)
		if err != nil {
			r.err = err
			return
		}
		r.store = s
	}
}

// WithMemoryStore keeps the runtime's variables in an in-memory store with
// version history (for testing).
func WithMemoryStore() Option {
	return func(r *Runtime) {
		r.store = store.NewMemory()
	}
}

// WithStore sets a custom store. The runtime closes it.
func WithStore(s Store) Option {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithContext evaluates against vars instead of a store-backed context.
func WithContext(vars Context) Option {
	return func(r *Runtime) {
		r.vars = vars
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithConfig applies engine flags and namespaces from a configuration.
// A store path in the configuration opens a SQLite store.
func WithConfig(c *config.Config) Option {
	return func(r *Runtime) {
		r.engineOpts = append(r.engineOpts, c.Options()...)
		if c.Store.Path != "" {
			WithSQLiteStore(c.Store.Path)(r)
		}
	}
}

// WithEngineOptions passes options to the engine.
func WithEngineOptions(opts ...EngineOption) Option {
	return func(r *Runtime) {
		r.engineOpts = append(r.engineOpts, opts...)
	}
}

// WithClass registers a class for new(name) and namespaces.
func WithClass(name string, class any) Option {
	return func(r *Runtime) {
		r.classes[name] = class
	}
}

// WithNamespace registers a function namespace.
func WithNamespace(prefix string, ns any) Option {
	return func(r *Runtime) {
		r.engineOpts = append(r.engineOpts, eval.WithNamespace(prefix, ns))
	}
}

// WithPrelude sets a script document evaluated against the runtime's
// context when the runtime is created, typically to define functions.
func WithPrelude(doc string) Option {
	return func(r *Runtime) {
		r.prelude = doc
	}
}

// WithShutdownTimeout bounds how long Close waits for running tasks.
func WithShutdownTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		r.shutdown = d
	}
}

// Store persists variables.
type Store = store.Store

// Context holds the variables scripts read and write.
type Context = eval.Context

// EngineOption configures the engine.
type EngineOption = eval.Option

// Script is an executable script.
type Script = eval.Script

// Closure is a function value created by a script.
type Closure = eval.Closure

// Task is a script running on its own goroutine.
type Task = eval.Task

// Error is an evaluation failure.
type Error = eval.Error

// Engine options.
var (
	Strict           = eval.WithStrict
	Safe             = eval.WithSafe
	Silent           = eval.WithSilent
	Lexical          = eval.WithLexical
	LexicalShade     = eval.WithLexicalShade
	Cancellable      = eval.WithCancellable
	Cache            = eval.WithCache
	StrictArithmetic = eval.WithStrictArithmetic
)

// Sentinel errors matched with errors.Is.
var (
	ErrUndefined  = eval.ErrUndefined
	ErrNullValue  = eval.ErrNullValue
	ErrRedefined  = eval.ErrRedefined
	ErrMethod     = eval.ErrMethod
	ErrProperty   = eval.ErrProperty
	ErrOperator   = eval.ErrOperator
	ErrAnnotation = eval.ErrAnnotation
	ErrInvocation = eval.ErrInvocation
	ErrCancelled  = eval.ErrCancelled
	ErrReadOnly   = eval.ErrReadOnly
)

// NewMapContext returns an in-memory context holding a copy of vars.
func NewMapContext(vars map[string]any) *eval.MapContext {
	return eval.NewMapContext(vars)
}
