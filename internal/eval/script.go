// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"

	"nickandperla.net/nexl/internal/ast"
	"nickandperla.net/nexl/internal/scope"
)

// Script is a resolved tree bound to an engine.
type Script struct {
	engine *Engine
	// node is the *ast.Script or *ast.Lambda the body comes from.
	node  ast.Node
	scope *scope.Scope
	body  []ast.Node
	// frame holds the captured and curried values of a closure; nil for a
	// script that has not been curried.
	frame *scope.Frame
}

func newScript(e *Engine, node *ast.Script) *Script {
	return &Script{engine: e, node: node, scope: node.Scope, body: node.Body}
}

// Engine returns the engine the script was created by.
func (s *Script) Engine() *Engine { return s.engine }

// Node returns the tree of the script or lambda.
func (s *Script) Node() ast.Node { return s.node }

// String returns the source rendering of the script.
func (s *Script) String() string { return s.node.String() }

// Parameters returns the names of all declared parameters.
func (s *Script) Parameters() []string { return s.scope.Parameters() }

// LocalVariables returns the names of the declared local variables.
func (s *Script) LocalVariables() []string { return s.scope.LocalVariables() }

// ArgCount returns the number of declared parameters.
func (s *Script) ArgCount() int { return s.scope.ArgCount() }

// UnboundParameters returns the names of the parameters not bound by
// currying.
func (s *Script) UnboundParameters() []string {
	if s.frame == nil {
		return s.scope.Parameters()
	}
	return s.frame.UnboundParameters()
}

// Curry returns a closure with the leading unbound parameters bound to
// args.
func (s *Script) Curry(args ...any) *Closure {
	return &Closure{Script: Script{
		engine: s.engine,
		node:   s.node,
		scope:  s.scope,
		body:   s.body,
		frame:  s.callFrame(args),
	}}
}

func (s *Script) callFrame(args []any) *scope.Frame {
	if s.frame == nil {
		return s.scope.CreateFrame(nil, args...)
	}
	return s.frame.Assign(args...)
}

// Execute evaluates the script with args bound to its unbound parameters.
// ctx cancels the evaluation cooperatively; vars may be nil.
func (s *Script) Execute(ctx context.Context, vars Context, args ...any) (any, error) {
	in := newInterpreter(ctx, s.engine, vars, s.callFrame(args), nil)
	return in.interpret(s)
}

// Evaluate evaluates the script without arguments.
func (s *Script) Evaluate(ctx context.Context, vars Context) (any, error) {
	return s.Execute(ctx, vars)
}

// call evaluates the script from a running evaluation, sharing its
// cancellation and namespace functors.
func (s *Script) call(parent *Interpreter, args []any) (any, error) {
	in := newInterpreter(parent.ctx, s.engine, parent.vars, s.callFrame(args), parent)
	return in.run(s)
}

// Callable binds the script to vars and args for a later Call. The
// callable shares the cancellation flag of vars when it provides one.
func (s *Script) Callable(vars Context, args ...any) *Callable {
	return &Callable{script: s, vars: vars, args: args, cancel: sharedCancellation(vars)}
}

// Go starts the script on the engine's task registry.
func (s *Script) Go(ctx context.Context, vars Context, args ...any) *Task {
	return s.engine.tasks.Go(ctx, s.Callable(vars, args...))
}

// Closure is a lambda or curried script together with its frame.
type Closure struct {
	Script
}

func newClosure(e *Engine, lambda *ast.Lambda, frame *scope.Frame) *Closure {
	return &Closure{Script: Script{
		engine: e,
		node:   lambda,
		scope:  lambda.Scope,
		body:   lambda.Body,
		frame:  frame,
	}}
}

// Captured returns the value a closure captured for a symbol of the
// enclosing scope.
func (c *Closure) Captured(enclosing int) (any, bool) {
	reg, ok := c.scope.CapturedRegister(enclosing)
	if !ok {
		return nil, false
	}
	return c.frame.Get(reg), true
}

// SetCaptured overwrites the captured copy of an enclosing symbol. It is
// how a named local function refers to itself.
func (c *Closure) SetCaptured(enclosing int, value any) bool {
	reg, ok := c.scope.CapturedRegister(enclosing)
	if !ok {
		return false
	}
	c.frame.Set(reg, value)
	return true
}

// Equal reports whether both closures come from the same source with the
// same engine and equal frames.
func (c *Closure) Equal(other any) bool {
	o, ok := other.(*Closure)
	if !ok {
		return false
	}
	if c == o {
		return true
	}
	return c.engine == o.engine && c.node == o.node && c.frame.Equal(o.frame)
}

// Callable is a script bound to its variables and arguments, run later by
// Call and cancellable from another goroutine.
type Callable struct {
	script *Script
	vars   Context
	args   []any
	cancel *Cancellation
}

// Script returns the script to run.
func (c *Callable) Script() *Script { return c.script }

// Call runs the script.
func (c *Callable) Call(ctx context.Context) (any, error) {
	s := c.script
	in := newInterpreter(ctx, s.engine, c.vars, s.callFrame(c.args), nil)
	in.shared.cancel = c.cancel
	return in.interpret(s)
}

// Cancel cancels the evaluation, before or during Call. It returns false
// if it was already cancelled.
func (c *Callable) Cancel() bool { return c.cancel.Cancel() }

// IsCancelled reports whether Cancel was called.
func (c *Callable) IsCancelled() bool { return c.cancel.Cancelled() }
