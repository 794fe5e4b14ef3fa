// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package introspect

import (
	"reflect"

	"nickandperla.net/nexl/internal/token"
)

var (
	propertyFirst = []Resolver{ResolveProperty, ResolveField, ResolveMap, ResolveList, ResolveDuck}
	indexFirst    = []Resolver{ResolveMap, ResolveList, ResolveDuck, ResolveProperty, ResolveField}
)

// Reflect is the default Uberspect. Script member names map to exported Go
// names; properties are read through getter methods, struct fields, map
// entries, slice elements or a Get(key) method.
type Reflect struct {
	classes *Classes
}

// New creates a reflection-based Uberspect loading classes from classes.
// A nil registry is replaced by an empty one.
func New(classes *Classes) *Reflect {
	if classes == nil {
		classes = NewClasses()
	}
	return &Reflect{classes: classes}
}

// Classes returns the class registry.
func (r *Reflect) Classes() *Classes {
	return r.classes
}

// LoadClass implements Uberspect.
func (r *Reflect) LoadClass(name string) (any, bool) {
	return r.classes.Lookup(name)
}

// Resolvers implements Uberspect. Index operators and map receivers try
// map, list and duck access first.
func (r *Reflect) Resolvers(op token.Operator, receiver any) []Resolver {
	switch op {
	case token.ARRAY_GET, token.ARRAY_SET:
		return indexFirst
	}
	if receiver != nil && reflect.TypeOf(receiver).Kind() == reflect.Map {
		return indexFirst
	}
	return propertyFirst
}

// PropertyGet implements Uberspect.
func (r *Reflect) PropertyGet(resolvers []Resolver, receiver any, key any) PropertyGet {
	if receiver == nil {
		return nil
	}
	rv := reflect.ValueOf(receiver)
	for _, res := range resolvers {
		var g PropertyGet
		switch res {
		case ResolveProperty:
			g = propertyGetter(rv, key)
		case ResolveMap:
			g = mapGetter(rv, key)
		case ResolveList:
			g = listGetter(rv, key)
		case ResolveDuck:
			g = duckGetter(rv, key)
		case ResolveField:
			g = fieldGetter(rv, key)
		}
		if g != nil {
			return g
		}
	}
	return nil
}

// PropertySet implements Uberspect.
func (r *Reflect) PropertySet(resolvers []Resolver, receiver any, key any, value any) PropertySet {
	if receiver == nil {
		return nil
	}
	rv := reflect.ValueOf(receiver)
	for _, res := range resolvers {
		var s PropertySet
		switch res {
		case ResolveProperty:
			s = propertySetter(rv, key, value)
		case ResolveMap:
			s = mapSetter(rv, key, value)
		case ResolveList:
			s = listSetter(rv, key, value)
		case ResolveDuck:
			s = duckSetter(rv, key, value)
		case ResolveField:
			s = fieldSetter(rv, key, value)
		}
		if s != nil {
			return s
		}
	}
	return nil
}

// Method implements Uberspect.
func (r *Reflect) Method(receiver any, name string, args []any) Method {
	if receiver == nil || name == "" {
		return nil
	}
	rv := reflect.ValueOf(receiver)
	goName := Exported(name)
	mv := rv.MethodByName(goName)
	if !mv.IsValid() || !Applicable(mv.Type(), args) {
		return nil
	}
	return &goMethod{typ: rv.Type(), name: name, method: goName}
}

// Constructor implements Uberspect. Targets may be a *Class, a reflect.Type
// (zero value, no arguments) or a factory function.
func (r *Reflect) Constructor(target any, args []any) Method {
	switch t := target.(type) {
	case nil:
		return nil
	case *Class:
		for _, fn := range t.ctors {
			if Applicable(fn.Type(), args) {
				return &ctor{class: t, fn: fn}
			}
		}
	case reflect.Type:
		if len(args) == 0 {
			return &zeroCtor{typ: t}
		}
	default:
		fn := reflect.ValueOf(target)
		if fn.Kind() == reflect.Func && fn.Type().NumOut() > 0 && Applicable(fn.Type(), args) {
			return &ctor{fn: fn}
		}
	}
	return nil
}
