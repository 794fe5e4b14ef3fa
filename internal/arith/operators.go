// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package arith

import (
	"errors"
	"reflect"

	"nickandperla.net/nexl/internal/ast"
	"nickandperla.net/nexl/internal/introspect"
	"nickandperla.net/nexl/internal/token"
)

// ErrNotHandled may be returned by an overload method to decline an
// operation, which then proceeds as if it were not overloaded.
var ErrNotHandled = errors.New("operator not handled")

var overloadable = []token.Operator{
	token.ADD, token.SUB, token.MUL, token.DIV, token.MOD,
	token.EQ, token.LT, token.LE, token.GT, token.GE,
	token.NOT, token.NEGATE, token.CONTAINS, token.SIZE, token.EMPTY,
	token.PROPERTY_GET, token.PROPERTY_SET, token.ARRAY_GET, token.ARRAY_SET,
}

// Operators overloads operators with the methods of a delegate value. The
// method named after an operator, such as Add for + or PropertyGet for
// property reads, is used when it accepts the operands. Methods whose
// parameters are all interfaces are ignored so that a delegate embedding
// *Arithmetic does not overload every operator.
type Operators struct {
	uberspect introspect.Uberspect
	delegate  any
	methods   map[token.Operator]bool
}

// NewOperators creates an overload delegate for the methods of delegate.
func NewOperators(uberspect introspect.Uberspect, delegate any) *Operators {
	o := &Operators{
		uberspect: uberspect,
		delegate:  delegate,
		methods:   make(map[token.Operator]bool),
	}
	t := reflect.TypeOf(delegate)
	for _, op := range overloadable {
		m, ok := t.MethodByName(op.MethodName())
		if !ok {
			continue
		}
		// the receiver is parameter 0
		for i := 1; i < m.Type.NumIn(); i++ {
			if m.Type.In(i).Kind() != reflect.Interface {
				o.methods[op] = true
				break
			}
		}
	}
	return o
}

// IsOverloaded reports whether the delegate has a method for op.
func (o *Operators) IsOverloaded(op token.Operator) bool {
	return o.methods[op]
}

// TryOverload applies the delegate method for op to the operands. The
// boolean result is false when the operator is not overloaded for these
// operands.
func (o *Operators) TryOverload(_ ast.Node, op token.Operator, operands ...any) (any, bool, error) {
	if op == token.NE {
		v, ok, err := o.TryOverload(nil, token.EQ, operands...)
		if !ok || err != nil {
			return v, ok, err
		}
		b, isBool := v.(bool)
		return isBool && !b, true, nil
	}
	if !o.methods[op] {
		return nil, false, nil
	}
	m := o.uberspect.Method(o.delegate, op.MethodName(), operands)
	if m == nil {
		return nil, false, nil
	}
	v, err := m.Invoke(o.delegate, operands...)
	if errors.Is(err, ErrNotHandled) {
		return nil, false, nil
	}
	return v, true, err
}
