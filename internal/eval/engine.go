// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package eval implements the nexl interpreter: the engine and its options,
// scripts and closures, and the tree-walking evaluation of resolved syntax
// trees against a Context.
package eval

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"nickandperla.net/nexl/internal/arith"
	"nickandperla.net/nexl/internal/ast"
	"nickandperla.net/nexl/internal/introspect"
	"nickandperla.net/nexl/internal/token"
)

// Arithmetic applies operators to script values. Exported methods of the
// arithmetic are also the built-in functions scripts call without a
// receiver.
type Arithmetic interface {
	Binary(op token.Operator, x, y any) (any, error)
	Negate(x any) (any, error)
	ToBoolean(x any) bool
	// IsStrict reports whether null operands are rejected.
	IsStrict() bool
}

// Overloads lets a delegate take over an operator for some operands. The
// boolean result is false when the operator is not handled.
type Overloads interface {
	TryOverload(node ast.Node, op token.Operator, operands ...any) (any, bool, error)
}

// Engine holds the options and collaborators shared by the scripts it
// creates. An engine is safe for concurrent use.
type Engine struct {
	logger       *log.Logger
	classes      *introspect.Classes
	uberspect    introspect.Uberspect
	arithmetic   Arithmetic
	overloads    Overloads
	namespaces   *Namespaces
	tasks        *Tasks
	strict       bool
	strictArith  bool
	safe         bool
	silent       bool
	lexical      bool
	lexicalShade bool
	cancellable  bool
	cache        bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Suppressed failures are logged at debug
// level, silenced ones at warn level.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStrict makes resolution failures abort evaluation (the default).
// A lenient engine logs them and evaluates to null instead.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithSafe makes member access on null and reads of unbound locals yield
// null instead of failing.
func WithSafe(safe bool) Option {
	return func(e *Engine) { e.safe = safe }
}

// WithSilent makes top-level evaluation log failures and return null.
// Cancellation is never silenced.
func WithSilent(silent bool) Option {
	return func(e *Engine) { e.silent = silent }
}

// WithLexical enables block scoping: variables live until the end of the
// block declaring them and cannot be declared twice in one block.
func WithLexical(lexical bool) Option {
	return func(e *Engine) { e.lexical = lexical }
}

// WithLexicalShade makes reading a local before its declaration fail, and
// forbids writing context variables that do not exist yet. It implies
// WithLexical.
func WithLexicalShade(shade bool) Option {
	return func(e *Engine) {
		e.lexicalShade = shade
		if shade {
			e.lexical = true
		}
	}
}

// WithCancellable controls whether a cancelled evaluation fails with
// ErrCancelled (the default) or quietly returns null.
func WithCancellable(cancellable bool) Option {
	return func(e *Engine) { e.cancellable = cancellable }
}

// WithCache enables per call site caching of resolved members (the default).
func WithCache(cache bool) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithStrictArithmetic makes the default arithmetic reject null operands.
func WithStrictArithmetic(strict bool) Option {
	return func(e *Engine) { e.strictArith = strict }
}

// WithArithmetic replaces the default arithmetic.
func WithArithmetic(a Arithmetic) Option {
	return func(e *Engine) { e.arithmetic = a }
}

// WithOverloads replaces the default operator overloads, which are the
// typed methods of the arithmetic.
func WithOverloads(o Overloads) Option {
	return func(e *Engine) { e.overloads = o }
}

// WithUberspect replaces the reflection-based introspection.
func WithUberspect(u introspect.Uberspect) Option {
	return func(e *Engine) { e.uberspect = u }
}

// WithClasses sets the class registry of the default introspection.
func WithClasses(c *introspect.Classes) Option {
	return func(e *Engine) { e.classes = c }
}

// WithNamespace registers a function namespace.
func WithNamespace(prefix string, ns any) Option {
	return func(e *Engine) { e.namespaces.Set(prefix, ns) }
}

// WithNamespaces replaces the namespace table.
func WithNamespaces(n *Namespaces) Option {
	return func(e *Engine) { e.namespaces = n }
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		namespaces:  NewNamespaces(),
		tasks:       NewTasks(),
		strict:      true,
		cancellable: true,
		cache:       true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	if e.classes == nil {
		e.classes = introspect.NewClasses()
	}
	if e.uberspect == nil {
		e.uberspect = introspect.New(e.classes)
	}
	if e.arithmetic == nil {
		e.arithmetic = arith.New(e.strictArith)
	}
	if e.overloads == nil {
		e.overloads = arith.NewOperators(e.uberspect, e.arithmetic)
	}
	return e
}

// Logger returns the engine logger.
func (e *Engine) Logger() *log.Logger { return e.logger }

// Uberspect returns the introspection strategy.
func (e *Engine) Uberspect() introspect.Uberspect { return e.uberspect }

// Arithmetic returns the arithmetic.
func (e *Engine) Arithmetic() Arithmetic { return e.arithmetic }

// Classes returns the class registry of the default introspection.
func (e *Engine) Classes() *introspect.Classes { return e.classes }

// Namespaces returns the namespace table.
func (e *Engine) Namespaces() *Namespaces { return e.namespaces }

// Tasks returns the registry of callables started with Go.
func (e *Engine) Tasks() *Tasks { return e.tasks }

// IsStrict reports whether resolution failures abort evaluation.
func (e *Engine) IsStrict() bool { return e.strict }

// IsSilent reports whether top-level failures are logged instead of returned.
func (e *Engine) IsSilent() bool { return e.silent }

// IsCancellable reports whether cancellation is reported as an error.
func (e *Engine) IsCancellable() bool { return e.cancellable }

// RegisterClass registers a class with the default introspection, making
// it available to new(name) and to namespaces naming it.
func (e *Engine) RegisterClass(name string, class any) {
	e.classes.Register(name, class)
}

// CreateScript resolves a tree and binds it to the engine.
func (e *Engine) CreateScript(node *ast.Script) (*Script, error) {
	if err := ast.Resolve(node); err != nil {
		return nil, err
	}
	return newScript(e, node), nil
}

// ParseScript decodes a script document and binds it to the engine.
func (e *Engine) ParseScript(r io.Reader) (*Script, error) {
	node, err := ast.Decode(r)
	if err != nil {
		return nil, err
	}
	return e.CreateScript(node)
}

// ParseScriptFile reads a script document from a file.
func (e *Engine) ParseScriptFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	s, err := e.ParseScript(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
