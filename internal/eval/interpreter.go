// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/charmbracelet/log"

	"nickandperla.net/nexl/internal/arith"
	"nickandperla.net/nexl/internal/ast"
	"nickandperla.net/nexl/internal/introspect"
	"nickandperla.net/nexl/internal/scope"
	"nickandperla.net/nexl/internal/token"
)

// shared is the state of one evaluation tree: a top-level evaluation and
// the closures it calls.
type shared struct {
	cancel   *Cancellation
	mu       sync.Mutex
	functors map[string]any
}

func (s *shared) functor(prefix string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.functors[prefix]
	return f, ok
}

func (s *shared) setFunctor(prefix string, f any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.functors == nil {
		s.functors = make(map[string]any)
	}
	s.functors[prefix] = f
}

// Interpreter evaluates one script or closure body against one frame and
// context. It is not safe for concurrent use; every call gets its own.
type Interpreter struct {
	ctx    context.Context
	engine *Engine
	arith  Arithmetic
	vars   Context
	frame  *scope.Frame
	// block is the innermost lexical block, nil unless the engine is lexical.
	block  *scope.LexicalFrame
	shared *shared
}

func newInterpreter(ctx context.Context, e *Engine, vars Context, frame *scope.Frame, parent *Interpreter) *Interpreter {
	if ctx == nil {
		ctx = context.Background()
	}
	if vars == nil {
		vars = emptyContext
	}
	in := &Interpreter{
		ctx:    ctx,
		engine: e,
		arith:  e.arithmetic,
		vars:   vars,
		frame:  frame,
	}
	if parent != nil {
		in.shared = parent.shared
		return in
	}
	in.shared = &shared{cancel: sharedCancellation(vars)}
	return in
}

func sharedCancellation(vars Context) *Cancellation {
	if h, ok := vars.(CancellationHandle); ok {
		if c := h.Cancellation(); c != nil {
			return c
		}
	}
	return NewCancellation()
}

func (in *Interpreter) logger() *log.Logger {
	return in.engine.logger
}

// interpret runs a top-level evaluation, applying the engine's silent and
// cancellable options to its outcome.
func (in *Interpreter) interpret(s *Script) (any, error) {
	v, err := in.run(s)
	if err == nil {
		return v, nil
	}
	if issueOf(err) == Cancelled {
		if !in.engine.cancellable {
			return nil, nil
		}
		return nil, err
	}
	if in.engine.silent {
		in.logger().Warn("evaluation failed", "err", err)
		return nil, nil
	}
	return nil, err
}

// run evaluates a script or closure body.
func (in *Interpreter) run(s *Script) (any, error) {
	if err := in.cancelCheck(s.node); err != nil {
		return nil, err
	}
	if in.engine.lexical {
		in.block = scope.NewLexicalFrame(in.frame, in.block)
		in.block.DefineArgs()
		defer func() { in.block = in.block.Pop() }()
	}
	v, err := in.statements(s.body)
	if ret, ok := err.(returnSignal); ok {
		return ret.value, nil
	}
	return v, err
}

// Cancellation

// isCancelled checks the shared flag and the Go context. Observing a done
// context sets the flag, so the whole evaluation tree stops.
func (in *Interpreter) isCancelled() bool {
	if in.shared.cancel.Cancelled() {
		return true
	}
	if in.ctx.Err() != nil {
		in.shared.cancel.Cancel()
		return true
	}
	return false
}

func (in *Interpreter) cancelCheck(node ast.Node) error {
	if in.isCancelled() {
		return &Error{Issue: Cancelled, Node: node, Cause: context.Cause(in.ctx)}
	}
	return nil
}

// Failures

// report is the single point resolution failures go through. A strict
// engine raises them unless the node is guard-protected; a lenient one
// logs them and evaluates to null.
func (in *Interpreter) report(issue Issue, node ast.Node, name string, cause error) (any, error) {
	err := &Error{Issue: issue, Node: node, Name: name, Cause: cause}
	if in.engine.strict && !node.Flags().Protected {
		return nil, err
	}
	in.logger().Debug("suppressed failure", "issue", issue, "name", name, "node", node, "err", cause)
	return nil, nil
}

func (in *Interpreter) undefinedVariable(node ast.Node, name string) (any, error) {
	return in.report(Undefined, node, name, nil)
}

// invocationError maps the error of a host call. Evaluation failures pass
// through unwrapped and context cancellation becomes Cancelled.
func (in *Interpreter) invocationError(node ast.Node, name string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if isCancellation(err) {
		in.shared.cancel.Cancel()
		return &Error{Issue: Cancelled, Node: node, Cause: err}
	}
	return &Error{Issue: InvocationFailure, Node: node, Name: name, Cause: err}
}

// propertyError maps a failed accessor call: evaluation failures and
// cancellation propagate, anything else is an unsolvable property.
func (in *Interpreter) propertyError(node ast.Node, name string, safe bool, err error) (any, error) {
	var e *Error
	if errors.As(err, &e) {
		return nil, err
	}
	if isCancellation(err) {
		return nil, in.invocationError(node, name, err)
	}
	if safe {
		return nil, nil
	}
	return in.report(PropertyFailure, node, name, err)
}

// Variables

// live reports whether a frame slot holds a value in scope.
func live(v any) bool {
	return v != scope.Undeclared && v != scope.Undefined
}

func (in *Interpreter) getVariable(id *ast.Identifier) (any, error) {
	if in.engine.lexicalShade && id.Shaded {
		return in.undefinedVariable(id, id.Name)
	}
	flags := id.Flags()
	if id.Symbol >= 0 {
		if v := in.frame.Get(id.Symbol); live(v) {
			if v == nil && flags.StrictOperand && in.arith.IsStrict() {
				return in.report(NullValue, id, id.Name, nil)
			}
			return v, nil
		}
	}
	v := in.vars.Get(id.Name)
	if v == nil {
		if !in.vars.Has(id.Name) {
			if flags.Safe || (in.engine.safe && id.Symbol >= 0) {
				return nil, nil
			}
			return in.undefinedVariable(id, id.Name)
		}
		if flags.StrictOperand && in.arith.IsStrict() {
			return in.report(NullValue, id, id.Name, nil)
		}
	}
	return v, nil
}

func (in *Interpreter) setVariable(id *ast.Identifier, value any) error {
	if id.Symbol >= 0 {
		in.frame.Set(id.Symbol, value)
		return nil
	}
	return in.setContextVariable(id, id.Name, value)
}

func (in *Interpreter) setContextVariable(node ast.Node, name string, value any) error {
	if in.engine.lexicalShade && !in.vars.Has(name) {
		_, err := in.report(Redefined, node, name, nil)
		return err
	}
	if err := in.vars.Set(name, value); err != nil {
		if errors.Is(err, ErrReadOnly) {
			return &Error{Issue: ReadOnly, Node: node, Name: name}
		}
		return in.invocationError(node, name, err)
	}
	return nil
}

// defineVariable declares a block-local symbol in the innermost lexical
// block. Outside lexical mode there is nothing to check.
func (in *Interpreter) defineVariable(node ast.Node, symbol int, name string) error {
	if in.block == nil {
		return nil
	}
	if !in.block.DefineSymbol(symbol, in.frame.Scope().IsCaptured(symbol)) {
		_, err := in.report(Redefined, node, name, nil)
		return err
	}
	return nil
}

// Attributes

func accessName(node *ast.Access, key any) string {
	if node.IsIndex() {
		return arith.Str(key)
	}
	return node.Name
}

func (in *Interpreter) getAttribute(node *ast.Access, object, key any) (any, error) {
	name := accessName(node, key)
	safe := node.Safe || in.engine.safe
	if object == nil {
		if safe {
			return nil, nil
		}
		return in.report(PropertyFailure, node, name, errNullObject)
	}
	if err := in.cancelCheck(node); err != nil {
		return nil, err
	}
	op := node.Operator()
	if v, ok, err := in.engine.overloads.TryOverload(node, op, object, key); ok {
		if err != nil {
			return in.operatorError(node, op, err)
		}
		return v, nil
	}
	if in.engine.cache {
		if r := node.Site.Load(); r.Kind == ast.ResolvedGetter {
			v, err := r.Getter.TryInvoke(object, key)
			if v != introspect.TryFailed {
				if err != nil {
					return in.propertyError(node, name, safe, err)
				}
				return v, nil
			}
			node.Site.Clear()
		}
	}
	u := in.engine.uberspect
	g := u.PropertyGet(u.Resolvers(op, object), object, key)
	if g == nil {
		if safe {
			return nil, nil
		}
		return in.report(PropertyFailure, node, name, nil)
	}
	v, err := g.Invoke(object)
	if err != nil {
		return in.propertyError(node, name, safe, err)
	}
	if in.engine.cache && g.Cacheable() {
		node.Site.Store(&ast.Resolution{Kind: ast.ResolvedGetter, Getter: g})
	}
	return v, nil
}

func setOperator(node *ast.Access) token.Operator {
	if node.IsIndex() {
		return token.ARRAY_SET
	}
	return token.PROPERTY_SET
}

func (in *Interpreter) setAttribute(node *ast.Access, object, key, value any) error {
	name := accessName(node, key)
	if object == nil {
		if node.Safe || in.engine.safe {
			return nil
		}
		_, err := in.report(PropertyFailure, node, name, errNullObject)
		return err
	}
	if err := in.cancelCheck(node); err != nil {
		return err
	}
	op := setOperator(node)
	if _, ok, err := in.engine.overloads.TryOverload(node, op, object, key, value); ok {
		if err != nil {
			_, err = in.operatorError(node, op, err)
		}
		return err
	}
	if in.engine.cache {
		if r := node.Site.Load(); r.Kind == ast.ResolvedSetter {
			v, err := r.Setter.TryInvoke(object, key, value)
			if v != introspect.TryFailed {
				if err != nil {
					_, err = in.propertyError(node, name, false, err)
				}
				return err
			}
			node.Site.Clear()
		}
	}
	u := in.engine.uberspect
	s := u.PropertySet(u.Resolvers(op, object), object, key, value)
	if s == nil {
		_, err := in.report(PropertyFailure, node, name, nil)
		return err
	}
	if err := s.Invoke(object, value); err != nil {
		_, err = in.propertyError(node, name, false, err)
		return err
	}
	if in.engine.cache && s.Cacheable() {
		node.Site.Store(&ast.Resolution{Kind: ast.ResolvedSetter, Setter: s})
	}
	return nil
}

func (in *Interpreter) operatorError(node ast.Node, op token.Operator, err error) (any, error) {
	var e *Error
	if errors.As(err, &e) {
		return nil, err
	}
	if isCancellation(err) {
		return nil, in.invocationError(node, op.String(), err)
	}
	return in.report(OperatorFailure, node, op.String(), err)
}

// Methods

// invoke calls the method name of target through the call site cache,
// resolving it on a miss. found is false if target has no such method.
func (in *Interpreter) invoke(node ast.Node, site *ast.Site, kind ast.CallTarget, target any, name string, args []any) (v any, found bool, err error) {
	if in.engine.cache {
		if r := site.Load(); r.Kind == ast.ResolvedMethod && r.Target == kind {
			v, err := r.Method.TryInvoke(name, target, args...)
			if v != introspect.TryFailed {
				return v, true, in.invocationError(node, name, err)
			}
			site.Clear()
		}
	}
	m := in.engine.uberspect.Method(target, name, args)
	if m == nil {
		return nil, false, nil
	}
	v, err = m.Invoke(target, args...)
	if err != nil {
		return nil, true, in.invocationError(node, name, err)
	}
	if in.engine.cache && m.Cacheable() {
		site.Store(&ast.Resolution{Kind: ast.ResolvedMethod, Method: m, Target: kind})
	}
	return v, true, nil
}

// isCallable reports whether a value can be called like a function.
func isCallable(v any) bool {
	switch v.(type) {
	case nil:
		return false
	case *Script, *Closure:
		return true
	}
	return reflect.TypeOf(v).Kind() == reflect.Func
}

// callValue calls a script, closure or Go function value.
func (in *Interpreter) callValue(node ast.Node, name string, fn any, args []any) (any, error) {
	if err := in.cancelCheck(node); err != nil {
		return nil, err
	}
	switch f := fn.(type) {
	case *Closure:
		return f.call(in, args)
	case *Script:
		return f.call(in, args)
	}
	v, err := introspect.Call(reflect.ValueOf(fn), args)
	return v, in.invocationError(node, name, err)
}

// callFunction resolves name(args): a local or context variable holding a
// callable, then a method of the context, then a built-in of the
// arithmetic.
func (in *Interpreter) callFunction(node *ast.Call, args []any) (any, error) {
	name := node.Name
	if node.Symbol >= 0 {
		if fn := in.frame.Get(node.Symbol); live(fn) && isCallable(fn) {
			return in.callValue(node, name, fn, args)
		}
	}
	if fn := in.vars.Get(name); isCallable(fn) {
		return in.callValue(node, name, fn, args)
	}
	if err := in.cancelCheck(node); err != nil {
		return nil, err
	}
	if v, found, err := in.invoke(node, &node.Site, ast.TargetContext, in.vars, name, args); found {
		return v, err
	}
	if v, found, err := in.invoke(node, &node.Site, ast.TargetArithmetic, in.arith, name, args); found {
		return v, err
	}
	return in.report(MethodFailure, node, name, nil)
}

// callNamespace resolves prefix:name(args) against the namespace object.
func (in *Interpreter) callNamespace(node *ast.Call, args []any) (any, error) {
	ns, err := in.resolveNamespace(node.Namespace, node)
	if err != nil || ns == nil {
		return nil, err
	}
	if err := in.cancelCheck(node); err != nil {
		return nil, err
	}
	if v, found, err := in.invoke(node, &node.Site, ast.TargetReceiver, ns, node.Name, args); found {
		return v, err
	}
	return in.report(MethodFailure, node, node.Namespace+":"+node.Name, nil)
}

// callMethod resolves receiver.name(args). A receiver without such a
// method may still hold a callable property of that name.
func (in *Interpreter) callMethod(node *ast.MethodCall, receiver any, args []any) (any, error) {
	safe := node.Safe || in.engine.safe
	if receiver == nil {
		if safe {
			return nil, nil
		}
		return in.report(MethodFailure, node, node.Name, errNullObject)
	}
	if err := in.cancelCheck(node); err != nil {
		return nil, err
	}
	if v, found, err := in.invoke(node, &node.Site, ast.TargetReceiver, receiver, node.Name, args); found {
		return v, err
	}
	u := in.engine.uberspect
	if g := u.PropertyGet(u.Resolvers(token.PROPERTY_GET, receiver), receiver, node.Name); g != nil {
		fn, err := g.Invoke(receiver)
		if err != nil {
			return in.propertyError(node, node.Name, safe, err)
		}
		if isCallable(fn) {
			return in.callValue(node, node.Name, fn, args)
		}
	}
	if safe {
		return nil, nil
	}
	return in.report(MethodFailure, node, node.Name, nil)
}

// construct instantiates new(class, args). A class given by name is
// loaded through the introspection.
func (in *Interpreter) construct(node *ast.New, class any, args []any) (any, error) {
	name := arith.Str(class)
	if s, ok := class.(string); ok {
		c, found := in.engine.uberspect.LoadClass(s)
		if !found {
			return in.report(MethodFailure, node, "new "+s, nil)
		}
		class = c
	}
	if err := in.cancelCheck(node); err != nil {
		return nil, err
	}
	if in.engine.cache {
		if r := node.Site.Load(); r.Kind == ast.ResolvedConstructor {
			v, err := r.Method.TryInvoke("", class, args...)
			if v != introspect.TryFailed {
				return v, in.invocationError(node, name, err)
			}
		}
	}
	ctor := in.engine.uberspect.Constructor(class, args)
	if ctor == nil {
		return in.report(MethodFailure, node, "new "+name, nil)
	}
	v, err := ctor.Invoke(nil, args...)
	if err != nil {
		return nil, in.invocationError(node, name, err)
	}
	if in.engine.cache && ctor.Cacheable() {
		node.Site.Store(&ast.Resolution{Kind: ast.ResolvedConstructor, Method: ctor})
	}
	return v, nil
}

// Namespaces

// resolveNamespace finds the object prefix:name() calls are dispatched
// to. Functors created for a prefix are kept for the rest of the
// evaluation tree.
func (in *Interpreter) resolveNamespace(prefix string, node *ast.Call) (any, error) {
	if f, ok := in.shared.functor(prefix); ok {
		return f, nil
	}
	var ns any
	found := false
	if r, ok := in.vars.(NamespaceResolver); ok {
		ns, found = r.ResolveNamespace(prefix)
	}
	if !found {
		ns, found = in.engine.namespaces.Get(prefix)
	}
	if !found {
		return in.report(MethodFailure, node, prefix, errNoNamespace)
	}
	functor, err := in.createFunctor(node, ns)
	if err != nil {
		return nil, err
	}
	if functor != nil {
		in.shared.setFunctor(prefix, functor)
		return functor, nil
	}
	return ns, nil
}

func instantiable(ns any) bool {
	switch ns.(type) {
	case *introspect.Class, reflect.Type:
		return true
	case nil:
		return false
	}
	return reflect.TypeOf(ns).Kind() == reflect.Func
}

// createFunctor instantiates a namespace entry: through a constructor
// taking the context, then one taking nothing. It returns nil when the
// entry is an instance to call directly, and marks the call site so it
// is not tried again.
func (in *Interpreter) createFunctor(node *ast.Call, ns any) (any, error) {
	site := &node.FunctorSite
	cached := site.Load()
	if in.engine.cache && cached.Kind == ast.NotAFunctor {
		return nil, nil
	}
	if f, ok := ns.(NamespaceFunctor); ok {
		return f.CreateFunctor(in.vars), nil
	}
	if name, ok := ns.(string); ok {
		class, found := in.engine.uberspect.LoadClass(name)
		if !found {
			site.Store(&ast.Resolution{Kind: ast.NotAFunctor})
			return nil, nil
		}
		ns = class
	}
	if !instantiable(ns) {
		site.Store(&ast.Resolution{Kind: ast.NotAFunctor})
		return nil, nil
	}
	argsets := [][]any{{in.vars}, nil}
	if in.engine.cache && cached.Kind == ast.ResolvedConstructor {
		for _, args := range argsets {
			v, err := cached.Method.TryInvoke("", ns, args...)
			if v != introspect.TryFailed {
				return v, in.invocationError(node, node.Namespace, err)
			}
		}
	}
	u := in.engine.uberspect
	for _, args := range argsets {
		ctor := u.Constructor(ns, args)
		if ctor == nil {
			continue
		}
		v, err := ctor.Invoke(nil, args...)
		if err != nil {
			return nil, in.invocationError(node, node.Namespace, err)
		}
		if in.engine.cache && ctor.Cacheable() {
			site.Store(&ast.Resolution{Kind: ast.ResolvedConstructor, Method: ctor})
		}
		return v, nil
	}
	site.Store(&ast.Resolution{Kind: ast.NotAFunctor})
	return nil, nil
}
