// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package arith implements nexl operators on script values and the
// built-in functions scripts can call without a receiver.
//
// Script numbers are int64 or float64. Integer operations stay integral;
// mixing in a float promotes the result to float64.
package arith

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"nickandperla.net/nexl/internal/introspect"
	"nickandperla.net/nexl/internal/token"
)

var (
	// ErrNullOperand is returned by strict arithmetic for null operands.
	ErrNullOperand = errors.New("null operand")
	// ErrDivideByZero is returned for integer division or modulo by zero.
	ErrDivideByZero = errors.New("division by zero")
)

// OperandError reports operands an operator cannot be applied to.
type OperandError struct {
	Op          token.Operator
	Left, Right any
}

func (e *OperandError) Error() string {
	if e.Op == token.NOT || e.Op == token.NEGATE {
		return fmt.Sprintf("operator %s not defined on %s", e.Op, introspect.TypeName(e.Left))
	}
	return fmt.Sprintf("operator %s not defined on %s and %s", e.Op,
		introspect.TypeName(e.Left), introspect.TypeName(e.Right))
}

// Arithmetic is the default operator delegate. A strict arithmetic rejects
// null operands; a lenient one treats null as zero or the empty string.
type Arithmetic struct {
	strict bool
}

// New creates an arithmetic.
func New(strict bool) *Arithmetic {
	return &Arithmetic{strict: strict}
}

// IsStrict reports whether null operands are rejected.
func (a *Arithmetic) IsStrict() bool {
	return a.strict
}

type kind uint8

const (
	kindOther kind = iota
	kindInt
	kindFloat
)

func number(v any) (int64, float64, kind) {
	switch n := v.(type) {
	case int64:
		return n, float64(n), kindInt
	case float64:
		return int64(n), n, kindFloat
	case int:
		return int64(n), float64(n), kindInt
	case bool:
		if n {
			return 1, 1, kindInt
		}
		return 0, 0, kindInt
	}
	if v == nil {
		return 0, 0, kindOther
	}
	switch rv := reflect.ValueOf(v); {
	case rv.CanInt():
		return rv.Int(), float64(rv.Int()), kindInt
	case rv.CanUint():
		return int64(rv.Uint()), float64(rv.Uint()), kindInt
	case rv.CanFloat():
		return int64(rv.Float()), rv.Float(), kindFloat
	}
	return 0, 0, kindOther
}

// numbers coerces both operands, parsing numeric strings.
func (a *Arithmetic) numbers(op token.Operator, x, y any) (xi, yi int64, xf, yf float64, k kind, err error) {
	x, y, err = a.nulls(x, y, int64(0))
	if err != nil {
		return
	}
	x, y = parseNumeric(x), parseNumeric(y)
	xi, xf, xk := number(x)
	yi, yf, yk := number(y)
	if xk == kindOther || yk == kindOther {
		err = &OperandError{Op: op, Left: x, Right: y}
		return
	}
	k = kindInt
	if xk == kindFloat || yk == kindFloat {
		k = kindFloat
	}
	return
}

func (a *Arithmetic) nulls(x, y any, zero any) (any, any, error) {
	if x == nil || y == nil {
		if a.strict {
			return nil, nil, ErrNullOperand
		}
		if x == nil {
			x = zero
		}
		if y == nil {
			y = zero
		}
	}
	return x, y, nil
}

func parseNumeric(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return v
}

// Add adds numbers or concatenates when either operand is a string.
func (a *Arithmetic) Add(x, y any) (any, error) {
	_, xs := x.(string)
	_, ys := y.(string)
	if xs || ys {
		x, y, err := a.nulls(x, y, "")
		if err != nil {
			return nil, err
		}
		return Str(x) + Str(y), nil
	}
	xi, yi, xf, yf, k, err := a.numbers(token.ADD, x, y)
	if err != nil {
		return nil, err
	}
	if k == kindFloat {
		return xf + yf, nil
	}
	return xi + yi, nil
}

// Subtract subtracts numbers.
func (a *Arithmetic) Subtract(x, y any) (any, error) {
	xi, yi, xf, yf, k, err := a.numbers(token.SUB, x, y)
	if err != nil {
		return nil, err
	}
	if k == kindFloat {
		return xf - yf, nil
	}
	return xi - yi, nil
}

// Multiply multiplies numbers.
func (a *Arithmetic) Multiply(x, y any) (any, error) {
	xi, yi, xf, yf, k, err := a.numbers(token.MUL, x, y)
	if err != nil {
		return nil, err
	}
	if k == kindFloat {
		return xf * yf, nil
	}
	return xi * yi, nil
}

// Divide divides numbers; integer division truncates.
func (a *Arithmetic) Divide(x, y any) (any, error) {
	xi, yi, xf, yf, k, err := a.numbers(token.DIV, x, y)
	if err != nil {
		return nil, err
	}
	if k == kindFloat {
		return xf / yf, nil
	}
	if yi == 0 {
		return nil, ErrDivideByZero
	}
	return xi / yi, nil
}

// Mod returns the remainder of a division.
func (a *Arithmetic) Mod(x, y any) (any, error) {
	xi, yi, xf, yf, k, err := a.numbers(token.MOD, x, y)
	if err != nil {
		return nil, err
	}
	if k == kindFloat {
		return math.Mod(xf, yf), nil
	}
	if yi == 0 {
		return nil, ErrDivideByZero
	}
	return xi % yi, nil
}

// Negate returns -x.
func (a *Arithmetic) Negate(x any) (any, error) {
	if x == nil {
		if a.strict {
			return nil, ErrNullOperand
		}
		return int64(0), nil
	}
	i, f, k := number(parseNumeric(x))
	switch k {
	case kindInt:
		return -i, nil
	case kindFloat:
		return -f, nil
	}
	return nil, &OperandError{Op: token.NEGATE, Left: x}
}

// Not returns the logical negation of x's truth value.
func (a *Arithmetic) Not(x any) bool {
	return !a.ToBoolean(x)
}

// ToBoolean returns the truth value of x: null, false, zero and the empty
// string are false; everything else is true.
func (a *Arithmetic) ToBoolean(x any) bool {
	switch v := x.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	if i, f, k := number(x); k != kindOther {
		return i != 0 || f != 0
	}
	return true
}

// Equals compares two values. Numbers compare by value across int and
// float; values implementing Equal(any) bool decide for themselves.
func (a *Arithmetic) Equals(x, y any) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	if e, ok := x.(interface{ Equal(any) bool }); ok {
		return e.Equal(y)
	}
	xi, xf, xk := number(x)
	yi, yf, yk := number(y)
	_, xb := x.(bool)
	_, yb := y.(bool)
	if xk != kindOther && yk != kindOther && xb == yb {
		if xk == kindFloat || yk == kindFloat {
			return xf == yf
		}
		return xi == yi
	}
	tx, ty := reflect.TypeOf(x), reflect.TypeOf(y)
	if tx == ty && tx.Comparable() {
		return x == y
	}
	return reflect.DeepEqual(x, y)
}

// Compare returns the result of an ordering operator.
func (a *Arithmetic) Compare(op token.Operator, x, y any) (bool, error) {
	var c int
	xs, xok := x.(string)
	ys, yok := y.(string)
	if xok && yok {
		c = strings.Compare(xs, ys)
	} else {
		xi, yi, xf, yf, k, err := a.numbers(op, x, y)
		if err != nil {
			return false, err
		}
		switch {
		case k == kindFloat && xf < yf, k == kindInt && xi < yi:
			c = -1
		case k == kindFloat && xf > yf, k == kindInt && xi > yi:
			c = 1
		}
	}
	switch op {
	case token.LT:
		return c < 0, nil
	case token.LE:
		return c <= 0, nil
	case token.GT:
		return c > 0, nil
	case token.GE:
		return c >= 0, nil
	}
	return false, &OperandError{Op: op, Left: x, Right: y}
}

// Binary applies an arithmetic or comparison operator.
func (a *Arithmetic) Binary(op token.Operator, x, y any) (any, error) {
	switch op {
	case token.ADD:
		return a.Add(x, y)
	case token.SUB:
		return a.Subtract(x, y)
	case token.MUL:
		return a.Multiply(x, y)
	case token.DIV:
		return a.Divide(x, y)
	case token.MOD:
		return a.Mod(x, y)
	case token.EQ:
		return a.Equals(x, y), nil
	case token.NE:
		return !a.Equals(x, y), nil
	case token.LT, token.LE, token.GT, token.GE:
		return a.Compare(op, x, y)
	case token.CONTAINS:
		return a.Contains(x, y)
	}
	return nil, &OperandError{Op: op, Left: x, Right: y}
}
