// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package ast

import (
	"sync/atomic"

	"nickandperla.net/nexl/internal/introspect"
)

// ResolutionKind tags the content of a call-site cache slot.
type ResolutionKind uint8

const (
	Unresolved ResolutionKind = iota
	ResolvedGetter
	ResolvedSetter
	ResolvedMethod
	ResolvedConstructor
	// NotAFunctor records that a namespace entry could not be instantiated.
	NotAFunctor
)

var resolutionNames = [...]string{
	Unresolved:          "unresolved",
	ResolvedGetter:      "getter",
	ResolvedSetter:      "setter",
	ResolvedMethod:      "method",
	ResolvedConstructor: "constructor",
	NotAFunctor:         "not-a-functor",
}

func (k ResolutionKind) String() string { return resolutionNames[k] }

// CallTarget is the object a cached method was resolved on.
type CallTarget uint8

const (
	TargetReceiver CallTarget = iota
	TargetContext
	TargetArithmetic
)

// Resolution is the content of a cache slot.
type Resolution struct {
	Kind   ResolutionKind
	Getter introspect.PropertyGet
	Setter introspect.PropertySet
	Method introspect.Method
	Target CallTarget
}

var unresolved = &Resolution{Kind: Unresolved}

// Site is the single-slot inline cache of one call site. Concurrent
// evaluations may race on a slot; the loser's resolution is simply replaced.
type Site struct {
	slot atomic.Pointer[Resolution]
}

// Load returns the cached resolution, never nil.
func (s *Site) Load() *Resolution {
	if r := s.slot.Load(); r != nil {
		return r
	}
	return unresolved
}

// Store replaces the cached resolution.
func (s *Site) Store(r *Resolution) {
	s.slot.Store(r)
}

// Clear drops the cached resolution.
func (s *Site) Clear() {
	s.slot.Store(nil)
}
