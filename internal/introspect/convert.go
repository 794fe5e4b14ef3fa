// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package introspect

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Exported returns the Go name a script member name maps to: the name with
// its first rune upper-cased.
func Exported(name string) string {
	r, n := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return name
	}
	return string(unicode.ToUpper(r)) + name[n:]
}

// Normalize converts a Go value to its script representation: integers
// become int64, floats float64, and invalid values nil.
func Normalize(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return float64(u)
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return Normalize(v.Elem())
	}
	if !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

func nillable(k reflect.Kind) bool {
	switch k {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice, reflect.UnsafePointer:
		return true
	}
	return false
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumber(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
}

// Convert converts a script value to a Go value of type to. Numbers are
// converted when no precision is lost; nil converts to the zero value of
// pointer-like types.
func Convert(v any, to reflect.Type) (reflect.Value, bool) {
	if v == nil {
		if nillable(to.Kind()) {
			return reflect.Zero(to), true
		}
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(to) {
		return rv, true
	}
	from := rv.Kind()
	switch {
	case isNumber(from) && isNumber(to.Kind()):
		return convertNumber(rv, to)
	case from == to.Kind() && rv.Type().ConvertibleTo(to):
		// named types sharing an underlying kind, e.g. string -> Name
		return rv.Convert(to), true
	}
	return reflect.Value{}, false
}

func convertNumber(rv reflect.Value, to reflect.Type) (reflect.Value, bool) {
	out := reflect.New(to).Elem()
	switch k := to.Kind(); {
	case isInt(k):
		var i int64
		switch {
		case isInt(rv.Kind()):
			i = rv.Int()
		case isUint(rv.Kind()):
			if rv.Uint() > math.MaxInt64 {
				return reflect.Value{}, false
			}
			i = int64(rv.Uint())
		default:
			f := rv.Float()
			if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
				return reflect.Value{}, false
			}
			i = int64(f)
		}
		if out.OverflowInt(i) {
			return reflect.Value{}, false
		}
		out.SetInt(i)
	case isUint(k):
		var u uint64
		switch {
		case isInt(rv.Kind()):
			if rv.Int() < 0 {
				return reflect.Value{}, false
			}
			u = uint64(rv.Int())
		case isUint(rv.Kind()):
			u = rv.Uint()
		default:
			f := rv.Float()
			if f != math.Trunc(f) || f < 0 || f > math.MaxUint64 {
				return reflect.Value{}, false
			}
			u = uint64(f)
		}
		if out.OverflowUint(u) {
			return reflect.Value{}, false
		}
		out.SetUint(u)
	default:
		switch {
		case isInt(rv.Kind()):
			out.SetFloat(float64(rv.Int()))
		case isUint(rv.Kind()):
			out.SetFloat(float64(rv.Uint()))
		default:
			out.SetFloat(rv.Float())
		}
	}
	return out, true
}

// Applicable reports whether a function of type fn can be called with args.
func Applicable(fn reflect.Type, args []any) bool {
	_, ok := convertArgs(fn, args)
	return ok
}

func convertArgs(fn reflect.Type, args []any) ([]reflect.Value, bool) {
	n := fn.NumIn()
	if fn.IsVariadic() {
		if len(args) < n-1 {
			return nil, false
		}
	} else if len(args) != n {
		return nil, false
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var to reflect.Type
		if fn.IsVariadic() && i >= n-1 {
			to = fn.In(n - 1).Elem()
		} else {
			to = fn.In(i)
		}
		v, ok := Convert(arg, to)
		if !ok {
			return nil, false
		}
		in[i] = v
	}
	return in, true
}

// Call calls fn with args, converting arguments and results. A trailing
// error result is returned as the error; a panic in fn is recovered into
// an error.
func Call(fn reflect.Value, args []any) (any, error) {
	in, ok := convertArgs(fn.Type(), args)
	if !ok {
		return nil, fmt.Errorf("cannot call %s with (%s)", fn.Type(), typeNames(args))
	}
	return call(fn, in)
}

func call(fn reflect.Value, in []reflect.Value) (result any, err error) {
	var out []reflect.Value
	if err := protect(func() { out = fn.Call(in) }); err != nil {
		return nil, err
	}
	t := fn.Type()
	if n := t.NumOut(); n > 0 && t.Out(n-1) == errorType {
		if e := out[n-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, err
	case 1:
		return Normalize(out[0]), err
	}
	values := make([]any, len(out))
	for i, v := range out {
		values[i] = Normalize(v)
	}
	return values, err
}

// protect runs f, turning a panic into an error.
func protect(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch x := r.(type) {
			case error:
				err = fmt.Errorf("panic in host call: %w", x)
			default:
				err = fmt.Errorf("panic in host call: %v", x)
			}
		}
	}()
	f()
	return nil
}

// TypeName returns the type name of a value as shown in error messages.
func TypeName(v any) string {
	if v == nil {
		return "null"
	}
	return reflect.TypeOf(v).String()
}

func typeNames(args []any) string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = TypeName(a)
	}
	return strings.Join(names, ", ")
}

// ErrNotSettable is returned when a resolved setter meets a receiver it cannot
// write through, such as a nil map.
var ErrNotSettable = errors.New("value is not settable")
