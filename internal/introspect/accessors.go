// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package introspect

import (
	"fmt"
	"reflect"
)

var intType = reflect.TypeOf(0)

func sameType(receiver any, t reflect.Type) bool {
	return receiver != nil && reflect.TypeOf(receiver) == t
}

func propertyName(key any) (string, bool) {
	name, ok := key.(string)
	return name, ok && name != ""
}

func toIndex(key any) (int, bool) {
	v, ok := Convert(key, intType)
	if !ok {
		return 0, false
	}
	return int(v.Int()), true
}

func convertKey(key any, t reflect.Type) (reflect.Value, bool) {
	kv, ok := Convert(key, t)
	if !ok || !kv.Comparable() {
		return reflect.Value{}, false
	}
	return kv, true
}

func isGetter(t reflect.Type) bool {
	n := t.NumOut()
	return n == 1 || (n == 2 && t.Out(1) == errorType)
}

func isSetter(t reflect.Type) bool {
	n := t.NumOut()
	return n == 0 || (n == 1 && t.Out(0) == errorType)
}

// Getters

type methodGet struct {
	typ      reflect.Type
	property string
	method   string
}

func propertyGetter(rv reflect.Value, key any) PropertyGet {
	name, ok := propertyName(key)
	if !ok {
		return nil
	}
	exp := Exported(name)
	for _, m := range [...]string{"Get" + exp, "Is" + exp, exp} {
		mv := rv.MethodByName(m)
		if !mv.IsValid() {
			continue
		}
		t := mv.Type()
		if t.NumIn() != 0 || !isGetter(t) {
			continue
		}
		if m == "Is"+exp && t.Out(0).Kind() != reflect.Bool {
			continue
		}
		return &methodGet{typ: rv.Type(), property: name, method: m}
	}
	return nil
}

func (g *methodGet) Invoke(receiver any) (any, error) {
	return call(reflect.ValueOf(receiver).MethodByName(g.method), nil)
}

func (g *methodGet) TryInvoke(receiver any, key any) (any, error) {
	if name, ok := key.(string); !ok || name != g.property || !sameType(receiver, g.typ) {
		return TryFailed, nil
	}
	return g.Invoke(receiver)
}

func (g *methodGet) Cacheable() bool { return true }

type mapGet struct {
	typ reflect.Type
	key reflect.Value
}

func mapGetter(rv reflect.Value, key any) PropertyGet {
	if rv.Kind() != reflect.Map {
		return nil
	}
	kv, ok := convertKey(key, rv.Type().Key())
	if !ok {
		return nil
	}
	return &mapGet{typ: rv.Type(), key: kv}
}

func lookup(m reflect.Value, key reflect.Value) any {
	v := m.MapIndex(key)
	if !v.IsValid() {
		return nil
	}
	return Normalize(v)
}

func (g *mapGet) Invoke(receiver any) (any, error) {
	return lookup(reflect.ValueOf(receiver), g.key), nil
}

func (g *mapGet) TryInvoke(receiver any, key any) (any, error) {
	if !sameType(receiver, g.typ) {
		return TryFailed, nil
	}
	kv, ok := convertKey(key, g.typ.Key())
	if !ok {
		return TryFailed, nil
	}
	return lookup(reflect.ValueOf(receiver), kv), nil
}

func (g *mapGet) Cacheable() bool { return true }

type listGet struct {
	typ   reflect.Type
	index int
}

func listGetter(rv reflect.Value, key any) PropertyGet {
	if k := rv.Kind(); k != reflect.Slice && k != reflect.Array {
		return nil
	}
	i, ok := toIndex(key)
	if !ok {
		return nil
	}
	return &listGet{typ: rv.Type(), index: i}
}

func element(list reflect.Value, i int) (any, error) {
	if i < 0 || i >= list.Len() {
		return nil, fmt.Errorf("index %d out of range [0:%d]", i, list.Len())
	}
	return Normalize(list.Index(i)), nil
}

func (g *listGet) Invoke(receiver any) (any, error) {
	return element(reflect.ValueOf(receiver), g.index)
}

func (g *listGet) TryInvoke(receiver any, key any) (any, error) {
	if !sameType(receiver, g.typ) {
		return TryFailed, nil
	}
	i, ok := toIndex(key)
	if !ok {
		return TryFailed, nil
	}
	return element(reflect.ValueOf(receiver), i)
}

func (g *listGet) Cacheable() bool { return true }

type duckGet struct {
	typ reflect.Type
	in  reflect.Type
	key any
}

func duckGetter(rv reflect.Value, key any) PropertyGet {
	mv := rv.MethodByName("Get")
	if !mv.IsValid() {
		return nil
	}
	t := mv.Type()
	if t.NumIn() != 1 || !isGetter(t) {
		return nil
	}
	if _, ok := Convert(key, t.In(0)); !ok {
		return nil
	}
	return &duckGet{typ: rv.Type(), in: t.In(0), key: key}
}

func (g *duckGet) Invoke(receiver any) (any, error) {
	return Call(reflect.ValueOf(receiver).MethodByName("Get"), []any{g.key})
}

func (g *duckGet) TryInvoke(receiver any, key any) (any, error) {
	if !sameType(receiver, g.typ) {
		return TryFailed, nil
	}
	kv, ok := Convert(key, g.in)
	if !ok {
		return TryFailed, nil
	}
	return call(reflect.ValueOf(receiver).MethodByName("Get"), []reflect.Value{kv})
}

func (g *duckGet) Cacheable() bool { return true }

type fieldGet struct {
	typ   reflect.Type
	name  string
	index []int
}

func structField(t reflect.Type, key any) (reflect.StructField, string, bool) {
	name, ok := propertyName(key)
	if !ok {
		return reflect.StructField{}, "", false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return reflect.StructField{}, "", false
	}
	sf, ok := t.FieldByName(Exported(name))
	if !ok || !sf.IsExported() {
		return reflect.StructField{}, "", false
	}
	return sf, name, true
}

func fieldGetter(rv reflect.Value, key any) PropertyGet {
	sf, name, ok := structField(rv.Type(), key)
	if !ok {
		return nil
	}
	return &fieldGet{typ: rv.Type(), name: name, index: sf.Index}
}

func (g *fieldGet) Invoke(receiver any) (any, error) {
	v := reflect.ValueOf(receiver)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("field %s of nil %s", g.name, g.typ)
		}
		v = v.Elem()
	}
	f, err := v.FieldByIndexErr(g.index)
	if err != nil {
		return nil, err
	}
	return Normalize(f), nil
}

func (g *fieldGet) TryInvoke(receiver any, key any) (any, error) {
	if name, ok := key.(string); !ok || name != g.name || !sameType(receiver, g.typ) {
		return TryFailed, nil
	}
	return g.Invoke(receiver)
}

func (g *fieldGet) Cacheable() bool { return true }

// Setters

type methodSet struct {
	typ      reflect.Type
	property string
	method   string
	in       reflect.Type
}

func propertySetter(rv reflect.Value, key any, value any) PropertySet {
	name, ok := propertyName(key)
	if !ok {
		return nil
	}
	m := "Set" + Exported(name)
	mv := rv.MethodByName(m)
	if !mv.IsValid() {
		return nil
	}
	t := mv.Type()
	if t.NumIn() != 1 || !isSetter(t) {
		return nil
	}
	if _, ok := Convert(value, t.In(0)); !ok {
		return nil
	}
	return &methodSet{typ: rv.Type(), property: name, method: m, in: t.In(0)}
}

func (s *methodSet) Invoke(receiver any, value any) error {
	_, err := Call(reflect.ValueOf(receiver).MethodByName(s.method), []any{value})
	return err
}

func (s *methodSet) TryInvoke(receiver any, key any, value any) (any, error) {
	if name, ok := key.(string); !ok || name != s.property || !sameType(receiver, s.typ) {
		return TryFailed, nil
	}
	vv, ok := Convert(value, s.in)
	if !ok {
		return TryFailed, nil
	}
	_, err := call(reflect.ValueOf(receiver).MethodByName(s.method), []reflect.Value{vv})
	return value, err
}

func (s *methodSet) Cacheable() bool { return true }

type mapSet struct {
	typ reflect.Type
	key reflect.Value
}

func mapSetter(rv reflect.Value, key any, value any) PropertySet {
	if rv.Kind() != reflect.Map {
		return nil
	}
	kv, ok := convertKey(key, rv.Type().Key())
	if !ok {
		return nil
	}
	if _, ok := Convert(value, rv.Type().Elem()); !ok {
		return nil
	}
	return &mapSet{typ: rv.Type(), key: kv}
}

func store(m reflect.Value, key reflect.Value, value any) error {
	if m.IsNil() {
		return ErrNotSettable
	}
	vv, ok := Convert(value, m.Type().Elem())
	if !ok {
		return fmt.Errorf("cannot use %s as %s", TypeName(value), m.Type().Elem())
	}
	m.SetMapIndex(key, vv)
	return nil
}

func (s *mapSet) Invoke(receiver any, value any) error {
	return store(reflect.ValueOf(receiver), s.key, value)
}

func (s *mapSet) TryInvoke(receiver any, key any, value any) (any, error) {
	if !sameType(receiver, s.typ) {
		return TryFailed, nil
	}
	kv, ok := convertKey(key, s.typ.Key())
	if !ok {
		return TryFailed, nil
	}
	if _, ok := Convert(value, s.typ.Elem()); !ok {
		return TryFailed, nil
	}
	return value, store(reflect.ValueOf(receiver), kv, value)
}

func (s *mapSet) Cacheable() bool { return true }

type listSet struct {
	typ   reflect.Type
	index int
}

func listSetter(rv reflect.Value, key any, value any) PropertySet {
	if rv.Kind() != reflect.Slice {
		return nil
	}
	i, ok := toIndex(key)
	if !ok {
		return nil
	}
	if _, ok := Convert(value, rv.Type().Elem()); !ok {
		return nil
	}
	return &listSet{typ: rv.Type(), index: i}
}

func setElement(list reflect.Value, i int, value any) error {
	if i < 0 || i >= list.Len() {
		return fmt.Errorf("index %d out of range [0:%d]", i, list.Len())
	}
	vv, ok := Convert(value, list.Type().Elem())
	if !ok {
		return fmt.Errorf("cannot use %s as %s", TypeName(value), list.Type().Elem())
	}
	list.Index(i).Set(vv)
	return nil
}

func (s *listSet) Invoke(receiver any, value any) error {
	return setElement(reflect.ValueOf(receiver), s.index, value)
}

func (s *listSet) TryInvoke(receiver any, key any, value any) (any, error) {
	if !sameType(receiver, s.typ) {
		return TryFailed, nil
	}
	i, ok := toIndex(key)
	if !ok {
		return TryFailed, nil
	}
	if _, ok := Convert(value, s.typ.Elem()); !ok {
		return TryFailed, nil
	}
	return value, setElement(reflect.ValueOf(receiver), i, value)
}

func (s *listSet) Cacheable() bool { return true }

type duckSet struct {
	typ reflect.Type
	key any
	ins [2]reflect.Type
}

func duckSetter(rv reflect.Value, key any, value any) PropertySet {
	mv := rv.MethodByName("Set")
	if !mv.IsValid() {
		return nil
	}
	t := mv.Type()
	if t.NumIn() != 2 || !isSetter(t) {
		return nil
	}
	if _, ok := Convert(key, t.In(0)); !ok {
		return nil
	}
	if _, ok := Convert(value, t.In(1)); !ok {
		return nil
	}
	return &duckSet{typ: rv.Type(), key: key, ins: [2]reflect.Type{t.In(0), t.In(1)}}
}

func (s *duckSet) Invoke(receiver any, value any) error {
	_, err := Call(reflect.ValueOf(receiver).MethodByName("Set"), []any{s.key, value})
	return err
}

func (s *duckSet) TryInvoke(receiver any, key any, value any) (any, error) {
	if !sameType(receiver, s.typ) {
		return TryFailed, nil
	}
	kv, ok := Convert(key, s.ins[0])
	if !ok {
		return TryFailed, nil
	}
	vv, ok := Convert(value, s.ins[1])
	if !ok {
		return TryFailed, nil
	}
	_, err := call(reflect.ValueOf(receiver).MethodByName("Set"), []reflect.Value{kv, vv})
	return value, err
}

func (s *duckSet) Cacheable() bool { return true }

type fieldSet struct {
	typ   reflect.Type
	name  string
	index []int
}

func fieldSetter(rv reflect.Value, key any, value any) PropertySet {
	// only fields reached through a pointer are addressable
	if rv.Kind() != reflect.Ptr {
		return nil
	}
	sf, name, ok := structField(rv.Type(), key)
	if !ok {
		return nil
	}
	if _, ok := Convert(value, sf.Type); !ok {
		return nil
	}
	return &fieldSet{typ: rv.Type(), name: name, index: sf.Index}
}

func (s *fieldSet) Invoke(receiver any, value any) error {
	v := reflect.ValueOf(receiver)
	if v.IsNil() {
		return ErrNotSettable
	}
	f, err := v.Elem().FieldByIndexErr(s.index)
	if err != nil {
		return err
	}
	if !f.CanSet() {
		return ErrNotSettable
	}
	vv, ok := Convert(value, f.Type())
	if !ok {
		return fmt.Errorf("cannot use %s as %s", TypeName(value), f.Type())
	}
	f.Set(vv)
	return nil
}

func (s *fieldSet) TryInvoke(receiver any, key any, value any) (any, error) {
	if name, ok := key.(string); !ok || name != s.name || !sameType(receiver, s.typ) {
		return TryFailed, nil
	}
	return value, s.Invoke(receiver, value)
}

func (s *fieldSet) Cacheable() bool { return true }

// Methods and constructors

type goMethod struct {
	typ    reflect.Type
	name   string
	method string
}

func (m *goMethod) Invoke(receiver any, args ...any) (any, error) {
	mv := reflect.ValueOf(receiver).MethodByName(m.method)
	if !mv.IsValid() {
		return nil, fmt.Errorf("%s has no method %s", TypeName(receiver), m.name)
	}
	return Call(mv, args)
}

func (m *goMethod) TryInvoke(name string, receiver any, args ...any) (any, error) {
	if name != m.name || !sameType(receiver, m.typ) {
		return TryFailed, nil
	}
	mv := reflect.ValueOf(receiver).MethodByName(m.method)
	in, ok := convertArgs(mv.Type(), args)
	if !ok {
		return TryFailed, nil
	}
	return call(mv, in)
}

func (m *goMethod) Cacheable() bool { return true }

type ctor struct {
	class *Class
	fn    reflect.Value
}

func (c *ctor) Invoke(_ any, args ...any) (any, error) {
	return Call(c.fn, args)
}

func (c *ctor) TryInvoke(_ string, target any, args ...any) (any, error) {
	fn := c.fn
	switch t := target.(type) {
	case *Class:
		if t != c.class {
			return TryFailed, nil
		}
	default:
		if c.class != nil {
			return TryFailed, nil
		}
		v := reflect.ValueOf(target)
		if !v.IsValid() || v.Type() != c.fn.Type() {
			return TryFailed, nil
		}
		fn = v
	}
	in, ok := convertArgs(fn.Type(), args)
	if !ok {
		return TryFailed, nil
	}
	return call(fn, in)
}

func (c *ctor) Cacheable() bool { return true }

type zeroCtor struct {
	typ reflect.Type
}

func (c *zeroCtor) Invoke(_ any, _ ...any) (any, error) {
	switch c.typ.Kind() {
	case reflect.Ptr:
		return reflect.New(c.typ.Elem()).Interface(), nil
	case reflect.Struct:
		return reflect.New(c.typ).Interface(), nil
	case reflect.Map:
		return reflect.MakeMap(c.typ).Interface(), nil
	case reflect.Slice:
		return reflect.MakeSlice(c.typ, 0, 0).Interface(), nil
	}
	return Normalize(reflect.Zero(c.typ)), nil
}

func (c *zeroCtor) TryInvoke(_ string, target any, args ...any) (any, error) {
	if t, ok := target.(reflect.Type); !ok || t != c.typ || len(args) != 0 {
		return TryFailed, nil
	}
	return c.Invoke(nil)
}

func (c *zeroCtor) Cacheable() bool { return true }
