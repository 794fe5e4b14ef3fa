// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package scope

import "reflect"

// Frame is the storage of one activation of a Scope.
//
// A frame owns its slots. The frame it was created from is kept read-only
// as the source of captured values; frames never reference frames created
// after them.
type Frame struct {
	scope   *Scope
	slots   []any
	curried int
	source  *Frame
}

// Scope returns the scope this frame is an activation of.
func (f *Frame) Scope() *Scope {
	return f.scope
}

// Source returns the frame this frame captured its values from, if any.
func (f *Frame) Source() *Frame {
	return f.source
}

// Size returns the number of slots.
func (f *Frame) Size() int {
	return len(f.slots)
}

// Get returns the value of a slot; out of range symbols read as Undeclared.
func (f *Frame) Get(symbol int) any {
	if symbol < 0 || symbol >= len(f.slots) {
		return Undeclared
	}
	return f.slots[symbol]
}

// Has returns true if the slot has been bound.
func (f *Frame) Has(symbol int) bool {
	return symbol >= 0 && symbol < len(f.slots) && f.slots[symbol] != Undeclared
}

// Set binds a slot.
func (f *Frame) Set(symbol int, value any) {
	f.slots[symbol] = value
}

// Curried returns the number of parameters already bound.
func (f *Frame) Curried() int {
	return f.curried
}

// Assign returns a copy of the frame for a new call: captured slots are kept
// and values are bound to the parameters that are not yet bound. Extra
// values are ignored; parameters left without a value are bound to nil.
func (f *Frame) Assign(values ...any) *Frame {
	nparams := f.scope.ArgCount()
	slots := make([]any, len(f.slots))
	copy(slots, f.slots)
	n := 0
	if len(values) > 0 {
		n = min(nparams-f.curried, len(values))
		copy(slots[f.curried:], values[:n])
	}
	for i := f.curried + n; i < nparams; i++ {
		slots[i] = nil
	}
	return &Frame{
		scope:   f.scope,
		slots:   slots,
		curried: f.curried + n,
		source:  f.source,
	}
}

// UnboundParameters returns the names of parameters not bound by currying.
func (f *Frame) UnboundParameters() []string {
	return f.scope.parametersFrom(f.curried)
}

// Equal reports whether both frames activate the same scope with equal slots.
func (f *Frame) Equal(other *Frame) bool {
	if f == other {
		return true
	}
	if f == nil || other == nil || f.scope != other.scope || len(f.slots) != len(other.slots) {
		return false
	}
	for i := range f.slots {
		if !sameValue(f.slots[i], other.slots[i]) {
			return false
		}
	}
	return true
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
