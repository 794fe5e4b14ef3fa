// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"nickandperla.net/nexl/internal/ast"
	"nickandperla.net/nexl/internal/introspect"
)

func quiet() *log.Logger {
	return log.New(io.Discard)
}

func newEngine(opts ...Option) *Engine {
	return New(append([]Option{WithLogger(quiet())}, opts...)...)
}

func parse(t *testing.T, e *Engine, doc string) *Script {
	t.Helper()
	s, err := e.ParseScript(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	return s
}

func fixture(t *testing.T, e *Engine, name string) *Script {
	t.Helper()
	s, err := e.ParseScriptFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("ParseScriptFile: %v", err)
	}
	return s
}

func run(t *testing.T, s *Script, vars Context, args ...any) any {
	t.Helper()
	v, err := s.Execute(context.Background(), vars, args...)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return v
}

type person struct {
	Name string
}

type product struct {
	SKU  string
	Name string
}

func (p *person) Describe() string { return "person " + p.Name }
func (p product) Describe() string { return "product " + p.SKU }
func (p *person) Rename(n string)  { p.Name = n }
func (p *person) Fail() error      { return errors.New("boom") }
func (p *person) Abort() error     { return context.Canceled }
func (p *person) Greeter() func(string) string {
	return func(who string) string { return p.Name + " greets " + who }
}

func TestUndefinedStrictAndLenient(t *testing.T) {
	doc := `{type: Identifier, name: z}`

	strict := newEngine()
	_, err := parse(t, strict, doc).Execute(context.Background(), nil)
	if !errors.Is(err, ErrUndefined) {
		t.Fatalf("expected undefined variable error, got %v", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Name != "z" {
		t.Errorf("expected error naming z, got %#v", err)
	}

	lenient := newEngine(WithStrict(false))
	v, err := parse(t, lenient, doc).Execute(context.Background(), nil)
	if err != nil || v != nil {
		t.Errorf("lenient: expected nil, nil; got %v, %v", v, err)
	}
}

func TestGuardedReads(t *testing.T) {
	e := newEngine()
	cases := []struct {
		name string
		doc  string
		want any
	}{
		{"coalesce", `{type: Coalesce, left: {type: Identifier, name: z}, right: 5}`, int64(5)},
		{"elvis", `{type: Elvis, left: {type: Identifier, name: z}, right: "d"}`, "d"},
		{"ternary", `{type: Ternary, cond: {type: Identifier, name: z}, then: 1, else: 2}`, int64(2)},
		{"safe access", `{type: Access, object: {type: Identifier, name: z}, name: p, safe: true}`, nil},
		{"safe chain", `{type: Coalesce, left: {type: Access, object: {type: Access, object: {type: Identifier, name: z}, name: a}, name: b}, right: 0}`, int64(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := run(t, parse(t, e, tc.doc), nil)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNullOperandUnderStrictArithmetic(t *testing.T) {
	doc := `{type: Binary, op: "+", left: {type: Identifier, name: v}, right: 1}`
	vars := NewMapContext(map[string]any{"v": nil})

	e := newEngine(WithStrictArithmetic(true))
	if _, err := parse(t, e, doc).Execute(context.Background(), vars); !errors.Is(err, ErrNullValue) {
		t.Fatalf("expected null value error, got %v", err)
	}

	lax := newEngine()
	if got := run(t, parse(t, lax, doc), vars); got != int64(1) {
		t.Errorf("expected null to count as zero, got %v", got)
	}
}

func TestSafeEngine(t *testing.T) {
	e := newEngine(WithSafe(true))
	doc := `{type: Access, object: {type: Access, object: {type: Identifier, name: o}, name: missing}, name: deeper}`
	vars := NewMapContext(map[string]any{"o": map[string]any{}})
	if got := run(t, parse(t, e, doc), vars); got != nil {
		t.Errorf("expected nil, got %v", got)
	}

	strict := newEngine()
	if _, err := parse(t, strict, doc).Execute(context.Background(), vars); !errors.Is(err, ErrProperty) {
		t.Errorf("expected property error on null, got %v", err)
	}
}

func TestInlineCacheFollowsShape(t *testing.T) {
	e := newEngine()
	s := parse(t, e, `{type: Script, params: [o], body: [{type: Access, object: {type: Identifier, name: o}, name: name}]}`)
	access := s.body[0].(*ast.Access)

	if got := run(t, s, nil, &person{Name: "ann"}); got != "ann" {
		t.Fatalf("shape A: expected ann, got %v", got)
	}
	first := access.Site.Load()
	if first.Kind != ast.ResolvedGetter {
		t.Fatalf("expected cached getter, got %v", first.Kind)
	}

	if got := run(t, s, nil, product{SKU: "x-1", Name: "lamp"}); got != "lamp" {
		t.Fatalf("shape B: expected lamp, got %v", got)
	}
	if access.Site.Load() == first {
		t.Error("expected the cache entry to be replaced for shape B")
	}

	if got := run(t, s, nil, map[string]any{"name": "map"}); got != "map" {
		t.Errorf("shape C: expected map, got %v", got)
	}
	if got := run(t, s, nil, &person{Name: "bob"}); got != "bob" {
		t.Errorf("back to shape A: expected bob, got %v", got)
	}
}

func TestInlineCacheMethods(t *testing.T) {
	e := newEngine()
	s := parse(t, e, `{type: Script, params: [o], body: [{type: MethodCall, receiver: {type: Identifier, name: o}, name: describe}]}`)
	call := s.body[0].(*ast.MethodCall)

	if got := run(t, s, nil, &person{Name: "ann"}); got != "person ann" {
		t.Fatalf("expected person ann, got %v", got)
	}
	if r := call.Site.Load(); r.Kind != ast.ResolvedMethod || r.Target != ast.TargetReceiver {
		t.Fatalf("expected cached receiver method, got %v", r.Kind)
	}
	if got := run(t, s, nil, product{SKU: "x-1"}); got != "product x-1" {
		t.Errorf("expected product x-1, got %v", got)
	}
}

func TestInlineCacheDropsStaleEntry(t *testing.T) {
	e := newEngine(WithStrict(false))
	s := parse(t, e, `
type: Script
params: [o]
body:
  - {type: Access, object: {type: Identifier, name: o}, name: name}
  - {type: MethodCall, receiver: {type: Identifier, name: o}, name: describe}
`)
	access := s.body[0].(*ast.Access)
	call := s.body[1].(*ast.MethodCall)

	if got := run(t, s, nil, &person{Name: "ann"}); got != "person ann" {
		t.Fatalf("expected person ann, got %v", got)
	}
	if access.Site.Load().Kind != ast.ResolvedGetter || call.Site.Load().Kind != ast.ResolvedMethod {
		t.Fatal("expected both sites cached")
	}
	if got := run(t, s, nil, doubler{}); got != nil {
		t.Fatalf("expected nil for a receiver without the members, got %v", got)
	}
	if k := access.Site.Load().Kind; k != ast.Unresolved {
		t.Errorf("expected the getter entry dropped, got %v", k)
	}
	if k := call.Site.Load().Kind; k != ast.Unresolved {
		t.Errorf("expected the method entry dropped, got %v", k)
	}
}

type faulty struct{}

func (faulty) GetRun() (func() int64, error) { return nil, errors.New("no runner") }

func TestMethodFallbackToProperty(t *testing.T) {
	e := newEngine()
	doc := `{type: Script, params: [o], body: [{type: MethodCall, receiver: {type: Identifier, name: o}, name: run}]}`
	_, err := parse(t, e, doc).Execute(context.Background(), nil, faulty{})
	if !errors.Is(err, ErrProperty) {
		t.Fatalf("expected the getter failure reported, got %v", err)
	}
	if !strings.Contains(err.Error(), "no runner") {
		t.Errorf("expected the getter error as cause, got %v", err)
	}

	safe := newEngine(WithSafe(true))
	for _, o := range []any{faulty{}, doubler{}} {
		v, err := parse(t, safe, doc).Execute(context.Background(), nil, o)
		if err != nil || v != nil {
			t.Errorf("%T: expected nil from a safe engine, got %v, %v", o, v, err)
		}
	}
}

func TestCacheDisabled(t *testing.T) {
	e := newEngine(WithCache(false))
	s := parse(t, e, `{type: Script, params: [o], body: [{type: Access, object: {type: Identifier, name: o}, name: name}]}`)
	if got := run(t, s, nil, &person{Name: "ann"}); got != "ann" {
		t.Fatalf("expected ann, got %v", got)
	}
	if k := s.body[0].(*ast.Access).Site.Load().Kind; k != ast.Unresolved {
		t.Errorf("expected no cache entry, got %v", k)
	}
}

func TestSetAttribute(t *testing.T) {
	e := newEngine()
	s := parse(t, e, `
type: Script
params: [p, m, l]
body:
  - {type: Assign, target: {type: Access, object: {type: Identifier, name: p}, name: name}, value: "cy"}
  - {type: Assign, target: {type: Access, object: {type: Identifier, name: m}, key: "k"}, value: 1}
  - {type: Assign, op: "+", target: {type: Access, object: {type: Identifier, name: m}, key: "k"}, value: 2}
  - {type: Assign, target: {type: Access, object: {type: Identifier, name: l}, key: 0}, value: "first"}
`)
	p := &person{}
	m := map[string]any{}
	l := []any{nil}
	run(t, s, nil, p, m, l)
	if p.Name != "cy" {
		t.Errorf("expected name cy, got %q", p.Name)
	}
	if diff := cmp.Diff(map[string]any{"k": int64(3)}, m); diff != "" {
		t.Errorf("map mismatch (-want +got):\n%s", diff)
	}
	if l[0] != "first" {
		t.Errorf("expected list element set, got %v", l[0])
	}
}

func TestMethodCalls(t *testing.T) {
	e := newEngine()
	p := &person{Name: "ann"}
	vars := NewMapContext(map[string]any{"p": p})

	run(t, parse(t, e, `{type: MethodCall, receiver: {type: Identifier, name: p}, name: rename, args: [bea]}`), vars)
	if p.Name != "bea" {
		t.Errorf("expected rename, got %q", p.Name)
	}

	got := run(t, parse(t, e, `{type: MethodCall, receiver: {type: Identifier, name: p}, name: greeter}`), vars)
	if _, ok := got.(func(string) string); !ok {
		t.Fatalf("expected a function, got %T", got)
	}

	// a property holding a callable is called like a method
	holder := map[string]any{"twice": func(n int64) int64 { return 2 * n }}
	got = run(t, parse(t, e, `{type: MethodCall, receiver: {type: Identifier, name: h}, name: twice, args: [21]}`),
		NewMapContext(map[string]any{"h": holder}))
	if got != int64(42) {
		t.Errorf("expected 42, got %v", got)
	}

	_, err := parse(t, e, `{type: MethodCall, receiver: {type: Identifier, name: p}, name: nope}`).Execute(context.Background(), vars)
	if !errors.Is(err, ErrMethod) {
		t.Errorf("expected method error, got %v", err)
	}
}

func TestInvocationErrors(t *testing.T) {
	e := newEngine(WithStrict(false))
	vars := NewMapContext(map[string]any{"p": &person{}})

	_, err := parse(t, e, `{type: MethodCall, receiver: {type: Identifier, name: p}, name: fail}`).Execute(context.Background(), vars)
	if !errors.Is(err, ErrInvocation) {
		t.Fatalf("expected invocation error even when lenient, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected cause in message, got %q", err)
	}

	_, err = parse(t, e, `{type: MethodCall, receiver: {type: Identifier, name: p}, name: abort}`).Execute(context.Background(), vars)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected host cancellation to surface as cancelled, got %v", err)
	}
}

func TestCallResolutionOrder(t *testing.T) {
	e := newEngine()
	vars := NewMapContext(map[string]any{
		"double": func(n int64) int64 { return 2 * n },
	})

	if got := run(t, parse(t, e, `{type: Call, name: double, args: [4]}`), vars); got != int64(8) {
		t.Errorf("context function: expected 8, got %v", got)
	}
	if got := run(t, parse(t, e, `{type: Call, name: size, args: [[1, 2, 3]]}`), nil); got != int64(3) {
		t.Errorf("built-in: expected 3, got %v", got)
	}
	if got := run(t, parse(t, e, `{type: Call, name: max, args: [3, 9, 4]}`), nil); got != int64(9) {
		t.Errorf("variadic built-in: expected 9, got %v", got)
	}

	_, err := parse(t, e, `{type: Call, name: nothing}`).Execute(context.Background(), nil)
	if !errors.Is(err, ErrMethod) {
		t.Errorf("expected unsolvable method, got %v", err)
	}
}

type counter struct {
	n int64
}

func (c *counter) Inc() int64     { c.n++; return c.n }
func (c *counter) Self() *counter { return c }
func (c *counter) Peek() int64    { return c.n }

type greeter struct {
	greeting string
}

func (g *greeter) Hello(who string) string { return g.greeting + ", " + who }

type doubler struct{}

func (doubler) Double(n int64) int64 { return 2 * n }

func TestNamespaceFunctorIdentity(t *testing.T) {
	created := 0
	class := introspect.NewClass("Counter", func() *counter {
		created++
		return &counter{}
	})
	e := newEngine(WithNamespace("ns", class))
	s := parse(t, e, `
type: Script
body:
  - type: Var
    name: f
    value:
      type: Lambda
      body:
        - {type: Return, value: {type: Call, namespace: ns, name: self}}
  - - {type: Call, namespace: ns, name: self}
    - {type: Call, namespace: ns, name: inc}
    - {type: Call, name: f}
    - {type: Call, namespace: ns, name: inc}
`)
	got := run(t, s, nil).([]any)
	if got[0] != got[2] {
		t.Error("expected the closure to see the same functor instance")
	}
	if got[1] != int64(1) || got[3] != int64(2) {
		t.Errorf("expected counts 1 and 2, got %v and %v", got[1], got[3])
	}
	if created != 1 {
		t.Errorf("expected one functor per evaluation, got %d", created)
	}

	second := run(t, s, nil).([]any)
	if second[0] == got[0] {
		t.Error("expected a fresh functor for a new evaluation")
	}
	if created != 2 {
		t.Errorf("expected two functors after two evaluations, got %d", created)
	}
}

func TestNamespaceFunctorReceivesContext(t *testing.T) {
	class := introspect.NewClass("Greeter", func(vars Context) *greeter {
		g, _ := vars.Get("greeting").(string)
		return &greeter{greeting: g}
	})
	e := newEngine(WithNamespace("hi", class))
	vars := NewMapContext(map[string]any{"greeting": "hello"})
	got := run(t, parse(t, e, `{type: Call, namespace: hi, name: hello, args: [world]}`), vars)
	if got != "hello, world" {
		t.Errorf("expected greeting from context, got %v", got)
	}
}

type nsContext struct {
	*MapContext
	namespaces map[string]any
}

func (c *nsContext) ResolveNamespace(prefix string) (any, bool) {
	ns, ok := c.namespaces[prefix]
	return ns, ok
}

func TestNamespaceSources(t *testing.T) {
	e := newEngine(WithNamespace("math", doubler{}))
	e.RegisterClass("Counter", introspect.NewClass("Counter", func() *counter { return &counter{n: 10} }))
	e.Namespaces().Set("byname", "Counter")

	if got := run(t, parse(t, e, `{type: Call, namespace: math, name: double, args: [4]}`), nil); got != int64(8) {
		t.Errorf("instance namespace: expected 8, got %v", got)
	}
	if got := run(t, parse(t, e, `{type: Call, namespace: byname, name: inc}`), nil); got != int64(11) {
		t.Errorf("class name namespace: expected 11, got %v", got)
	}

	vars := &nsContext{
		MapContext: NewMapContext(nil),
		namespaces: map[string]any{"math": &counter{n: 41}},
	}
	if got := run(t, parse(t, e, `{type: Call, namespace: math, name: inc}`), vars); got != int64(42) {
		t.Errorf("context namespace should win: expected 42, got %v", got)
	}

	_, err := parse(t, e, `{type: Call, namespace: nope, name: f}`).Execute(context.Background(), nil)
	if !errors.Is(err, ErrMethod) {
		t.Errorf("expected method error for unknown namespace, got %v", err)
	}
}

func TestNotAFunctorIsRemembered(t *testing.T) {
	e := newEngine(WithNamespace("math", doubler{}))
	s := parse(t, e, `{type: Call, namespace: math, name: double, args: [1]}`)
	run(t, s, nil)
	call := s.body[0].(*ast.Call)
	if k := call.FunctorSite.Load().Kind; k != ast.NotAFunctor {
		t.Errorf("expected call site marked not a functor, got %v", k)
	}
	if got := run(t, s, nil); got != int64(2) {
		t.Errorf("expected 2, got %v", got)
	}
}

type recorder struct {
	created int
}

func (r *recorder) CreateFunctor(vars Context) any {
	r.created++
	return &counter{n: 100}
}

func TestNamespaceFunctorCapability(t *testing.T) {
	factory := &recorder{}
	e := newEngine(WithNamespace("c", factory))
	got := run(t, parse(t, e, `[{type: Call, namespace: c, name: inc}, {type: Call, namespace: c, name: inc}]`), nil)
	if diff := cmp.Diff([]any{int64(101), int64(102)}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if factory.created != 1 {
		t.Errorf("expected one functor, got %d", factory.created)
	}
}

func TestConstruct(t *testing.T) {
	e := newEngine()
	e.RegisterClass("Counter", introspect.NewClass("Counter",
		func(n int64) *counter { return &counter{n: n} },
		func() *counter { return &counter{} },
	))
	s := parse(t, e, `{type: MethodCall, receiver: {type: New, class: Counter, args: [5]}, name: inc}`)
	if got := run(t, s, nil); got != int64(6) {
		t.Errorf("expected 6, got %v", got)
	}
	if got := run(t, parse(t, e, `{type: MethodCall, receiver: {type: New, class: Counter}, name: peek}`), nil); got != int64(0) {
		t.Errorf("expected 0, got %v", got)
	}
	if _, err := parse(t, e, `{type: New, class: Missing}`).Execute(context.Background(), nil); !errors.Is(err, ErrMethod) {
		t.Errorf("expected method error for unknown class, got %v", err)
	}
}

func TestReadOnlyContext(t *testing.T) {
	e := newEngine(WithStrict(false))
	vars := ReadOnlyContext{NewMapContext(map[string]any{"x": int64(1)})}
	_, err := parse(t, e, `{type: Assign, target: {type: Identifier, name: x}, value: 2}`).Execute(context.Background(), vars)
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected read-only error even when lenient, got %v", err)
	}
	if vars.Get("x") != int64(1) {
		t.Error("expected x unchanged")
	}
}

func TestSilentEngine(t *testing.T) {
	e := newEngine(WithSilent(true))
	v, err := parse(t, e, `{type: Identifier, name: z}`).Execute(context.Background(), nil)
	if err != nil || v != nil {
		t.Errorf("expected nil, nil; got %v, %v", v, err)
	}
}

func TestErrorFormat(t *testing.T) {
	e := newEngine()
	_, err := parse(t, e, "type: Script\nbody:\n  - {type: Identifier, name: z}\n").Execute(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := err.Error(); !strings.HasPrefix(got, "line 3:") || !strings.Contains(got, "z") {
		t.Errorf("unexpected message %q", got)
	}
}
