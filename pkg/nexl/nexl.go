// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package nexl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"nickandperla.net/nexl/internal/eval"
	"nickandperla.net/nexl/internal/store"
)

// Runtime is the nexl interpreter runtime: an engine plus the context its
// scripts share.
type Runtime struct {
	engine     *eval.Engine
	store      store.Store
	vars       eval.Context
	logger     *log.Logger
	engineOpts []eval.Option
	classes    map[string]any
	prelude    string
	shutdown   time.Duration
	err        error
}

// New creates a runtime with the given options. Without a store or a
// context, variables live in memory for the runtime's lifetime.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		classes:  make(map[string]any),
		shutdown: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.logger == nil {
		r.logger = log.Default()
	}

	engineOpts := append([]eval.Option{eval.WithLogger(r.logger)}, r.engineOpts...)
	r.engine = eval.New(engineOpts...)
	for name, class := range r.classes {
		r.engine.RegisterClass(name, class)
	}

	switch {
	case r.vars != nil:
	case r.store != nil:
		r.vars = eval.NewStoreContext(r.store, r.logger)
	default:
		r.vars = eval.NewMapContext(nil)
	}

	if r.prelude != "" {
		if _, err := r.EvalString(context.Background(), r.prelude); err != nil {
			r.Close()
			return nil, fmt.Errorf("prelude: %w", err)
		}
	}
	return r, nil
}

// Engine returns the underlying engine.
func (r *Runtime) Engine() *eval.Engine { return r.engine }

// Context returns the variables shared by the runtime's scripts.
func (r *Runtime) Context() Context { return r.vars }

// Parse decodes a script document without running it.
func (r *Runtime) Parse(reader io.Reader) (*Script, error) {
	return r.engine.ParseScript(reader)
}

// ParseFile decodes a script document file without running it.
func (r *Runtime) ParseFile(path string) (*Script, error) {
	return r.engine.ParseScriptFile(path)
}

// Eval decodes a script document and executes it with args.
func (r *Runtime) Eval(ctx context.Context, reader io.Reader, args ...any) (any, error) {
	s, err := r.Parse(reader)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, r.vars, args...)
}

// EvalString evaluates a script document held in a string.
func (r *Runtime) EvalString(ctx context.Context, doc string, args ...any) (any, error) {
	return r.Eval(ctx, strings.NewReader(doc), args...)
}

// EvalFile evaluates a script document file.
func (r *Runtime) EvalFile(ctx context.Context, path string, args ...any) (any, error) {
	s, err := r.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, r.vars, args...)
}

// Call invokes a closure held in the runtime's context by name.
func (r *Runtime) Call(ctx context.Context, name string, args ...any) (any, error) {
	c, ok := r.vars.Get(name).(*Closure)
	if !ok {
		return nil, fmt.Errorf("%s is not a function", name)
	}
	return c.Execute(ctx, r.vars, args...)
}

// Go starts a script document on its own goroutine.
func (r *Runtime) Go(ctx context.Context, doc string, args ...any) (*Task, error) {
	s, err := r.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}
	return s.Go(ctx, r.vars, args...), nil
}

// Close cancels running tasks and releases the store.
func (r *Runtime) Close() error {
	var errs []error
	if !r.engine.Tasks().Shutdown(r.shutdown) {
		errs = append(errs, errors.New("tasks still running after shutdown"))
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}
