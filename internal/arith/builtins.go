// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package arith

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"nickandperla.net/nexl/internal/introspect"
	"nickandperla.net/nexl/internal/token"
)

// The exported methods below are the built-in functions: a call without
// receiver such as size(x) resolves to them when neither the frame nor the
// context provides the name.

// Size returns the length of a string, list or map.
func (a *Arithmetic) Size(x any) (int64, error) {
	switch v := x.(type) {
	case nil:
		return 0, nil
	case string:
		return int64(utf8.RuneCountInString(v)), nil
	case interface{ Size() int }:
		return int64(v.Size()), nil
	}
	switch rv := reflect.ValueOf(x); rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return int64(rv.Len()), nil
	}
	return 0, fmt.Errorf("size not defined on %s", introspect.TypeName(x))
}

// Empty returns true for null, the empty string and empty collections.
func (a *Arithmetic) Empty(x any) bool {
	if x == nil {
		return true
	}
	n, err := a.Size(x)
	return err == nil && n == 0
}

// Contains implements =~: element of a list, key of a map, substring of a
// string, or equality otherwise.
func (a *Arithmetic) Contains(container, x any) (bool, error) {
	switch c := container.(type) {
	case nil:
		return x == nil, nil
	case string:
		return strings.Contains(c, Str(x)), nil
	case interface{ Contains(any) bool }:
		return c.Contains(x), nil
	}
	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if a.Equals(introspect.Normalize(rv.Index(i)), x) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Map:
		k, ok := introspect.Convert(x, rv.Type().Key())
		if !ok || !k.Comparable() {
			return false, nil
		}
		return rv.MapIndex(k).IsValid(), nil
	}
	return a.Equals(container, x), nil
}

// Abs returns the absolute value of a number.
func (a *Arithmetic) Abs(x any) (any, error) {
	i, f, k := number(x)
	switch k {
	case kindInt:
		if i < 0 {
			return -i, nil
		}
		return i, nil
	case kindFloat:
		if f < 0 {
			return -f, nil
		}
		return f, nil
	}
	return nil, &OperandError{Op: token.NEGATE, Left: x}
}

// Min returns the smallest of its arguments.
func (a *Arithmetic) Min(first any, rest ...any) (any, error) {
	return a.pick(token.LT, first, rest)
}

// Max returns the largest of its arguments.
func (a *Arithmetic) Max(first any, rest ...any) (any, error) {
	return a.pick(token.GT, first, rest)
}

func (a *Arithmetic) pick(op token.Operator, best any, rest []any) (any, error) {
	for _, v := range rest {
		better, err := a.Compare(op, v, best)
		if err != nil {
			return nil, err
		}
		if better {
			best = v
		}
	}
	return best, nil
}

// Str returns the string form of a value.
func (a *Arithmetic) Str(x any) string {
	return Str(x)
}

// Typeof returns the type name of a value.
func (a *Arithmetic) Typeof(x any) string {
	return introspect.TypeName(x)
}

// Str returns the string form of a script value.
func Str(x any) string {
	switch v := x.(type) {
	case nil:
		return "null"
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = Str(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(x)
}
