// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package introspect defines how the interpreter discovers members of host
// objects, and provides a reflection-based default.
//
// Resolution is expensive and its results are meant to be cached per call
// site. Every accessor therefore has a TryInvoke variant that returns
// TryFailed, instead of an error, when the receiver or key it is handed does
// not have the shape the accessor was resolved for.
package introspect

import "nickandperla.net/nexl/internal/token"

type tryFailed struct{}

func (tryFailed) String() string { return "try failed" }

// TryFailed is returned by TryInvoke when a cached accessor does not apply.
var TryFailed any = tryFailed{}

// Method is an invocable method, function or constructor.
type Method interface {
	// Invoke calls the method on receiver (ignored by constructors).
	Invoke(receiver any, args ...any) (any, error)
	// TryInvoke calls the method if it applies to name, receiver and args,
	// returning TryFailed otherwise.
	TryInvoke(name string, receiver any, args ...any) (any, error)
	// Cacheable reports whether the method may be cached at a call site.
	Cacheable() bool
}

// PropertyGet reads one property of a receiver.
type PropertyGet interface {
	Invoke(receiver any) (any, error)
	TryInvoke(receiver any, key any) (any, error)
	Cacheable() bool
}

// PropertySet writes one property of a receiver.
type PropertySet interface {
	Invoke(receiver any, value any) error
	TryInvoke(receiver any, key any, value any) (any, error)
	Cacheable() bool
}

// Resolver names a property resolution strategy.
type Resolver int

const (
	// ResolveProperty uses GetX/IsX/X and SetX methods.
	ResolveProperty Resolver = iota
	// ResolveMap indexes maps.
	ResolveMap
	// ResolveList indexes slices and arrays.
	ResolveList
	// ResolveDuck uses Get(key) and Set(key, value) methods.
	ResolveDuck
	// ResolveField uses exported struct fields.
	ResolveField
)

var resolverNames = [...]string{
	ResolveProperty: "property",
	ResolveMap:      "map",
	ResolveList:     "list",
	ResolveDuck:     "duck",
	ResolveField:    "field",
}

func (r Resolver) String() string { return resolverNames[r] }

// Uberspect is the introspection strategy consumed by the interpreter.
type Uberspect interface {
	// Resolvers returns the ordered resolution strategies for an access
	// operator applied to receiver.
	Resolvers(op token.Operator, receiver any) []Resolver
	// PropertyGet resolves a getter for key on receiver, or nil.
	PropertyGet(resolvers []Resolver, receiver any, key any) PropertyGet
	// PropertySet resolves a setter for key on receiver accepting value, or nil.
	PropertySet(resolvers []Resolver, receiver any, key any, value any) PropertySet
	// Method resolves a method named name on receiver accepting args, or nil.
	Method(receiver any, name string, args []any) Method
	// Constructor resolves a constructor of target accepting args, or nil.
	Constructor(target any, args []any) Method
	// LoadClass resolves a class descriptor by name.
	LoadClass(name string) (any, bool)
}
