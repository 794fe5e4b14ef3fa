// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"nickandperla.net/nexl/internal/arith"
	"nickandperla.net/nexl/internal/ast"
	"nickandperla.net/nexl/internal/introspect"
	"nickandperla.net/nexl/internal/scope"
	"nickandperla.net/nexl/internal/token"
)

// IntRange is the value of a from .. to range: the integers from From to
// To, both included.
type IntRange struct {
	From, To int64
}

// Size returns the number of integers in the range.
func (r IntRange) Size() int {
	if r.To < r.From {
		return 0
	}
	return int(r.To - r.From + 1)
}

// Contains reports whether x is an integer within the range.
func (r IntRange) Contains(x any) bool {
	i, ok := integer(x)
	return ok && i >= r.From && i <= r.To
}

func (r IntRange) String() string {
	return fmt.Sprintf("%d .. %d", r.From, r.To)
}

func (in *Interpreter) statements(nodes []ast.Node) (any, error) {
	var result any
	for _, n := range nodes {
		v, err := in.eval(n)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

func (in *Interpreter) list(nodes []ast.Node) ([]any, error) {
	values := make([]any, len(nodes))
	for i, n := range nodes {
		v, err := in.eval(n)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func (in *Interpreter) eval(node ast.Node) (any, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil
	case *ast.Null:
		return nil, nil
	case *ast.Bool:
		return n.Value, nil
	case *ast.Int:
		return n.Value, nil
	case *ast.Float:
		return n.Value, nil
	case *ast.String:
		return n.Value, nil
	case *ast.List:
		return in.list(n.Items)
	case *ast.Map:
		return in.evalMap(n)
	case *ast.Range:
		return in.evalRange(n)
	case *ast.Identifier:
		return in.getVariable(n)
	case *ast.Var:
		return in.evalVar(n)
	case *ast.Assign:
		return in.evalAssign(n)
	case *ast.Binary:
		return in.evalBinary(n)
	case *ast.Unary:
		return in.evalUnary(n)
	case *ast.Ternary:
		cond, err := in.eval(n.Cond)
		if err != nil {
			return nil, err
		}
		if in.arith.ToBoolean(cond) {
			return in.eval(n.Then)
		}
		return in.eval(n.Else)
	case *ast.Access:
		object, err := in.eval(n.Object)
		if err != nil {
			return nil, err
		}
		key, err := in.accessKey(n)
		if err != nil {
			return nil, err
		}
		return in.getAttribute(n, object, key)
	case *ast.Call:
		args, err := in.list(n.Args)
		if err != nil {
			return nil, err
		}
		if n.Namespace != "" {
			return in.callNamespace(n, args)
		}
		return in.callFunction(n, args)
	case *ast.MethodCall:
		receiver, err := in.eval(n.Receiver)
		if err != nil {
			return nil, err
		}
		args, err := in.list(n.Args)
		if err != nil {
			return nil, err
		}
		return in.callMethod(n, receiver, args)
	case *ast.New:
		class, err := in.eval(n.Class)
		if err != nil {
			return nil, err
		}
		args, err := in.list(n.Args)
		if err != nil {
			return nil, err
		}
		return in.construct(n, class, args)
	case *ast.Lambda:
		return in.evalLambda(n)
	case *ast.Block:
		return in.evalBlock(n.Body)
	case *ast.If:
		cond, err := in.eval(n.Cond)
		if err != nil {
			return nil, err
		}
		if in.arith.ToBoolean(cond) {
			return in.eval(n.Then)
		}
		return in.eval(n.Else)
	case *ast.While:
		return in.evalWhile(n)
	case *ast.DoWhile:
		return in.evalDoWhile(n)
	case *ast.ForEach:
		return in.evalForEach(n)
	case *ast.Return:
		v, err := in.eval(n.Value)
		if err != nil {
			return nil, err
		}
		return nil, returnSignal{value: v}
	case *ast.Break:
		return nil, breakSignal{}
	case *ast.Continue:
		return nil, continueSignal{}
	case *ast.Annotated:
		return in.evalAnnotated(n)
	}
	return nil, &Error{Issue: RuntimeFailure, Node: node, Name: node.NodeType(), Cause: fmt.Errorf("cannot evaluate %s", node.NodeType())}
}

// evalBlock evaluates a braced statement list in its own lexical block.
func (in *Interpreter) evalBlock(body []ast.Node) (any, error) {
	if in.engine.lexical {
		in.block = scope.NewLexicalFrame(in.frame, in.block)
		defer func() { in.block = in.block.Pop() }()
	}
	return in.statements(body)
}

func (in *Interpreter) evalMap(n *ast.Map) (any, error) {
	m := make(map[string]any, len(n.Entries))
	for _, e := range n.Entries {
		k, err := in.eval(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := in.eval(e.Value)
		if err != nil {
			return nil, err
		}
		m[arith.Str(k)] = v
	}
	return m, nil
}

func (in *Interpreter) evalRange(n *ast.Range) (any, error) {
	from, err := in.eval(n.From)
	if err != nil {
		return nil, err
	}
	to, err := in.eval(n.To)
	if err != nil {
		return nil, err
	}
	f, fok := integer(from)
	t, tok := integer(to)
	if !fok || !tok {
		return in.report(OperatorFailure, n, "..", fmt.Errorf("range bounds must be integers, got %s and %s",
			introspect.TypeName(from), introspect.TypeName(to)))
	}
	return IntRange{From: f, To: t}, nil
}

func integer(v any) (int64, bool) {
	switch i := v.(type) {
	case int64:
		return i, true
	case int:
		return int64(i), true
	case float64:
		if i == float64(int64(i)) {
			return int64(i), true
		}
	}
	return 0, false
}

func (in *Interpreter) evalVar(n *ast.Var) (any, error) {
	v, err := in.eval(n.Value)
	if err != nil {
		return nil, err
	}
	if err := in.defineVariable(n, n.Symbol, n.Name); err != nil {
		return nil, err
	}
	in.frame.Set(n.Symbol, v)
	if c, ok := v.(*Closure); ok && c.node == n.Value {
		c.SetCaptured(n.Symbol, c)
	}
	return v, nil
}

func (in *Interpreter) accessKey(n *ast.Access) (any, error) {
	if n.IsIndex() {
		return in.eval(n.Key)
	}
	return n.Name, nil
}

func (in *Interpreter) evalAssign(n *ast.Assign) (any, error) {
	switch target := n.Target.(type) {
	case *ast.Identifier:
		value, err := in.eval(n.Value)
		if err != nil {
			return nil, err
		}
		if n.Op != token.ILLEGAL {
			current, err := in.getVariable(target)
			if err != nil {
				return nil, err
			}
			if value, err = in.binary(n, n.Op, current, value); err != nil {
				return nil, err
			}
		}
		return value, in.setVariable(target, value)
	case *ast.Access:
		object, err := in.eval(target.Object)
		if err != nil {
			return nil, err
		}
		key, err := in.accessKey(target)
		if err != nil {
			return nil, err
		}
		value, err := in.eval(n.Value)
		if err != nil {
			return nil, err
		}
		if n.Op != token.ILLEGAL {
			current, err := in.getAttribute(target, object, key)
			if err != nil {
				return nil, err
			}
			if value, err = in.binary(n, n.Op, current, value); err != nil {
				return nil, err
			}
		}
		return value, in.setAttribute(target, object, key, value)
	}
	return nil, &Error{Issue: RuntimeFailure, Node: n, Cause: fmt.Errorf("cannot assign to %s", n.Target.NodeType())}
}

func (in *Interpreter) evalBinary(n *ast.Binary) (any, error) {
	left, err := in.eval(n.Left)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.AND:
		if !in.arith.ToBoolean(left) {
			return false, nil
		}
		right, err := in.eval(n.Right)
		if err != nil {
			return nil, err
		}
		return in.arith.ToBoolean(right), nil
	case token.OR:
		if in.arith.ToBoolean(left) {
			return true, nil
		}
		right, err := in.eval(n.Right)
		if err != nil {
			return nil, err
		}
		return in.arith.ToBoolean(right), nil
	case token.COALESCE:
		if left != nil {
			return left, nil
		}
		return in.eval(n.Right)
	case token.ELVIS:
		if in.arith.ToBoolean(left) {
			return left, nil
		}
		return in.eval(n.Right)
	}
	right, err := in.eval(n.Right)
	if err != nil {
		return nil, err
	}
	return in.binary(n, n.Op, left, right)
}

// binary applies an operator, offering it to the overloads first.
func (in *Interpreter) binary(node ast.Node, op token.Operator, left, right any) (any, error) {
	if v, ok, err := in.engine.overloads.TryOverload(node, op, left, right); ok {
		if err != nil {
			return in.operatorError(node, op, err)
		}
		return v, nil
	}
	v, err := in.arith.Binary(op, left, right)
	if err != nil {
		return in.operatorError(node, op, err)
	}
	return v, nil
}

func (in *Interpreter) evalUnary(n *ast.Unary) (any, error) {
	operand, err := in.eval(n.Operand)
	if err != nil {
		return nil, err
	}
	if v, ok, err := in.engine.overloads.TryOverload(n, n.Op, operand); ok {
		if err != nil {
			return in.operatorError(n, n.Op, err)
		}
		return v, nil
	}
	switch n.Op {
	case token.NOT:
		return !in.arith.ToBoolean(operand), nil
	case token.NEGATE:
		v, err := in.arith.Negate(operand)
		if err != nil {
			return in.operatorError(n, n.Op, err)
		}
		return v, nil
	}
	return in.operatorError(n, n.Op, fmt.Errorf("%s is not a unary operator", n.Op))
}

// evalLambda creates a closure over the current frame. A named lambda is
// stored in its declared slot and in its own captured copy of that slot,
// so its body can call it.
func (in *Interpreter) evalLambda(n *ast.Lambda) (any, error) {
	c := newClosure(in.engine, n, n.Scope.CreateFrame(in.frame))
	if n.Symbol >= 0 {
		if err := in.defineVariable(n, n.Symbol, n.Name); err != nil {
			return nil, err
		}
		in.frame.Set(n.Symbol, c)
		c.SetCaptured(n.Symbol, c)
	}
	return c, nil
}

// loopBody evaluates one iteration. done is true when the loop must stop.
// A body that is not a block gets its own lexical frame per iteration.
func (in *Interpreter) loopBody(body ast.Node) (v any, done bool, err error) {
	if _, ok := body.(*ast.Block); !ok && in.engine.lexical {
		in.block = scope.NewLexicalFrame(in.frame, in.block)
		defer func() { in.block = in.block.Pop() }()
	}
	v, err = in.eval(body)
	switch err.(type) {
	case nil:
		return v, false, nil
	case breakSignal:
		return nil, true, nil
	case continueSignal:
		return nil, false, nil
	}
	return nil, true, err
}

func (in *Interpreter) evalWhile(n *ast.While) (any, error) {
	var result any
	for {
		if err := in.cancelCheck(n); err != nil {
			return nil, err
		}
		cond, err := in.eval(n.Cond)
		if err != nil {
			return nil, err
		}
		if !in.arith.ToBoolean(cond) {
			return result, nil
		}
		v, done, err := in.loopBody(n.Body)
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}
		result = v
	}
}

func (in *Interpreter) evalDoWhile(n *ast.DoWhile) (any, error) {
	var result any
	for {
		if err := in.cancelCheck(n); err != nil {
			return nil, err
		}
		v, done, err := in.loopBody(n.Body)
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}
		result = v
		cond, err := in.eval(n.Cond)
		if err != nil {
			return nil, err
		}
		if !in.arith.ToBoolean(cond) {
			return result, nil
		}
	}
}

func (in *Interpreter) evalForEach(n *ast.ForEach) (any, error) {
	iterable, err := in.eval(n.Iterable)
	if err != nil {
		return nil, err
	}
	if in.engine.lexical {
		in.block = scope.NewLexicalFrame(in.frame, in.block)
		defer func() { in.block = in.block.Pop() }()
		if err := in.defineVariable(n, n.Symbol, n.Var); err != nil {
			return nil, err
		}
	}
	var result any
	err = in.iterate(n, iterable, func(item any) (bool, error) {
		if err := in.cancelCheck(n); err != nil {
			return true, err
		}
		in.frame.Set(n.Symbol, item)
		v, done, err := in.loopBody(n.Body)
		if err == nil && !done {
			result = v
		}
		return done, err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// iterate calls yield for every element of a list, every key of a map in
// sorted order, every integer of a range, every rune of a string or every
// value received from a channel. Iterating null does nothing.
func (in *Interpreter) iterate(node ast.Node, iterable any, yield func(any) (bool, error)) error {
	switch it := iterable.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range it {
			if done, err := yield(item); done || err != nil {
				return err
			}
		}
		return nil
	case IntRange:
		for i := it.From; i <= it.To; i++ {
			if done, err := yield(i); done || err != nil {
				return err
			}
		}
		return nil
	case string:
		for _, r := range it {
			if done, err := yield(string(r)); done || err != nil {
				return err
			}
		}
		return nil
	}
	rv := reflect.ValueOf(iterable)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if done, err := yield(introspect.Normalize(rv.Index(i))); done || err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		keys := make([]any, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, introspect.Normalize(k))
		}
		sort.Slice(keys, func(i, j int) bool {
			less, err := in.arith.Binary(token.LT, keys[i], keys[j])
			if err != nil {
				return arith.Str(keys[i]) < arith.Str(keys[j])
			}
			return less == true
		})
		for _, k := range keys {
			if done, err := yield(k); done || err != nil {
				return err
			}
		}
		return nil
	case reflect.Chan:
		ctxDone := reflect.ValueOf(in.ctx.Done())
		for {
			cases := []reflect.SelectCase{{Dir: reflect.SelectRecv, Chan: rv}}
			if in.ctx.Done() != nil {
				cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: ctxDone})
			}
			chosen, v, ok := reflect.Select(cases)
			if chosen == 1 {
				return in.cancelCheck(node)
			}
			if !ok {
				return nil
			}
			if done, err := yield(introspect.Normalize(v)); done || err != nil {
				return err
			}
		}
	}
	_, err := in.report(OperatorFailure, node, "for", fmt.Errorf("cannot iterate over %s", introspect.TypeName(iterable)))
	return err
}

func (in *Interpreter) evalAnnotated(n *ast.Annotated) (any, error) {
	args, err := in.list(n.Args)
	if err != nil {
		return nil, err
	}
	p, ok := in.vars.(AnnotationProcessor)
	if !ok {
		if _, err := in.report(AnnotationFailure, n, n.Name, errNoProcessor); err != nil {
			return nil, err
		}
		return in.eval(n.Stmt)
	}
	v, err := p.ProcessAnnotation(n.Name, args, func() (any, error) {
		return in.eval(n.Stmt)
	})
	if err == nil {
		return v, nil
	}
	var e *Error
	if isSignal(err) || errors.As(err, &e) {
		return nil, err
	}
	if isCancellation(err) {
		return nil, in.invocationError(n, n.Name, err)
	}
	return in.report(AnnotationFailure, n, n.Name, err)
}
