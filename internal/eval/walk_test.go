// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nickandperla.net/nexl/internal/arith"
)

func TestExpressions(t *testing.T) {
	e := newEngine()
	vars := NewMapContext(map[string]any{
		"xs":   []any{int64(1), int64(2), int64(3)},
		"m":    map[string]any{"a": int64(1)},
		"name": "nexl",
	})
	cases := []struct {
		name string
		doc  string
		want any
	}{
		{"arithmetic", `{type: Binary, op: "+", left: 2, right: {type: Binary, op: "*", left: 3, right: 4}}`, int64(14)},
		{"float", `{type: Binary, op: "/", left: 1.0, right: 4}`, 0.25},
		{"concat", `{type: Binary, op: "+", left: {type: Identifier, name: name}, right: "!"}`, "nexl!"},
		{"comparison", `{type: Binary, op: "<", left: 1, right: 2}`, true},
		{"negate", `{type: Unary, op: "-", operand: 5}`, int64(-5)},
		{"not", `{type: Unary, op: "!", operand: false}`, true},
		{"and short-circuits", `{type: Binary, op: "&&", left: false, right: {type: Identifier, name: undefined}}`, false},
		{"or short-circuits", `{type: Binary, op: "||", left: true, right: {type: Identifier, name: undefined}}`, true},
		{"index", `{type: Access, object: {type: Identifier, name: xs}, key: 1}`, int64(2)},
		{"map key", `{type: Access, object: {type: Identifier, name: m}, name: a}`, int64(1)},
		{"contains", `{type: Binary, op: "=~", left: {type: Identifier, name: xs}, right: 2}`, true},
		{"range contains", `{type: Binary, op: "=~", left: {type: Range, from: 1, to: 10}, right: 10}`, true},
		{"size of range", `{type: Call, name: size, args: [{type: Range, from: 1, to: 10}]}`, int64(10)},
		{"map literal", `{type: Map, entries: [{key: a, value: 1}, {key: 2, value: b}]}`, map[string]any{"a": int64(1), "2": "b"}},
		{"list literal", `[1, two, {type: Null}]`, []any{int64(1), "two", nil}},
		{"if", `{type: If, cond: {type: Binary, op: "==", left: 1, right: 1}, then: yes, else: no}`, "yes"},
		{"if without else", `{type: If, cond: false, then: yes}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := run(t, parse(t, e, tc.doc), vars)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoops(t *testing.T) {
	e := newEngine()
	cases := []struct {
		name string
		doc  string
		want any
	}{
		{"while", `
type: Script
body:
  - {type: Var, name: i, value: 0}
  - type: While
    cond: {type: Binary, op: "<", left: {type: Identifier, name: i}, right: 5}
    body:
      - {type: Assign, op: "+", target: {type: Identifier, name: i}, value: 1}
  - {type: Identifier, name: i}
`, int64(5)},
		{"do while runs once", `
type: Script
body:
  - {type: Var, name: i, value: 10}
  - type: DoWhile
    cond: false
    body:
      - {type: Assign, op: "+", target: {type: Identifier, name: i}, value: 1}
  - {type: Identifier, name: i}
`, int64(11)},
		{"break and continue", `
type: Script
body:
  - {type: Var, name: sum, value: 0}
  - type: ForEach
    var: x
    iterable: {type: Range, from: 1, to: 10}
    body:
      - type: If
        cond: {type: Binary, op: "==", left: {type: Binary, op: "%", left: {type: Identifier, name: x}, right: 2}, right: 0}
        then: {type: Continue}
      - type: If
        cond: {type: Binary, op: ">", left: {type: Identifier, name: x}, right: 7}
        then: {type: Break}
      - {type: Assign, op: "+", target: {type: Identifier, name: sum}, value: {type: Identifier, name: x}}
  - {type: Identifier, name: sum}
`, int64(1 + 3 + 5 + 7)},
		{"map keys in order", `
type: Script
body:
  - {type: Var, name: out, value: ""}
  - type: ForEach
    var: k
    iterable: {type: Map, entries: [{key: b, value: 2}, {key: a, value: 1}, {key: c, value: 3}]}
    body:
      - {type: Assign, op: "+", target: {type: Identifier, name: out}, value: {type: Identifier, name: k}}
  - {type: Identifier, name: out}
`, "abc"},
		{"string runes", `
type: Script
body:
  - {type: Var, name: n, value: 0}
  - type: ForEach
    var: r
    iterable: "héllo"
    body:
      - {type: Assign, op: "+", target: {type: Identifier, name: n}, value: 1}
  - {type: Identifier, name: n}
`, int64(5)},
		{"return from loop", `
type: Script
body:
  - type: ForEach
    var: x
    iterable: [1, 2, 3]
    body:
      - type: If
        cond: {type: Binary, op: "==", left: {type: Identifier, name: x}, right: 2}
        then: {type: Return, value: found}
  - missing
`, "found"},
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

func TestIterateChannel(t *testing.T) {
	e := newEngine()
	ch := make(chan int, 3)
	ch <- 1
	ch <- 2
	ch <- 3
	close(ch)
	s := parse(t, e, `
type: Script
params: [ch]
body:
  - {type: Var, name: sum, value: 0}
  - type: ForEach
    var: x
    iterable: {type: Identifier, name: ch}
    body:
      - {type: Assign, op: "+", target: {type: Identifier, name: sum}, value: {type: Identifier, name: x}}
  - {type: Identifier, name: sum}
`)
	if got := run(t, s, nil, ch); got != int64(6) {
		t.Errorf("expected 6, got %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Execute(ctx, nil, make(chan int)); !errors.Is(err, ErrCancelled) {
		t.Errorf("expected cancellation while waiting on a channel, got %v", err)
	}
}

func TestOperatorFailures(t *testing.T) {
	strict := newEngine()
	doc := `{type: Binary, op: "*", left: a, right: {type: List}}`
	if _, err := parse(t, strict, doc).Execute(context.Background(), nil); !errors.Is(err, ErrOperator) {
		t.Errorf("expected operator error, got %v", err)
	}
	lenient := newEngine(WithStrict(false))
	if got := run(t, parse(t, lenient, doc), nil); got != nil {
		t.Errorf("expected nil when lenient, got %v", got)
	}
	if _, err := parse(t, strict, `{type: ForEach, var: x, iterable: 1, body: []}`).Execute(context.Background(), nil); !errors.Is(err, ErrOperator) {
		t.Errorf("expected error iterating a number, got %v", err)
	}
	if _, err := parse(t, strict, `{type: Range, from: a, to: 2}`).Execute(context.Background(), nil); !errors.Is(err, ErrOperator) {
		t.Errorf("expected error for a non-integer range, got %v", err)
	}
}

type vector struct{ X, Y int64 }

type vectorArithmetic struct {
	*arith.Arithmetic
}

func (vectorArithmetic) Add(a, b vector) vector { return vector{a.X + b.X, a.Y + b.Y} }

func (vectorArithmetic) Divide(a, b vector) (vector, error) {
	return vector{}, errors.New("cannot divide vectors")
}

func TestOperatorOverloads(t *testing.T) {
	e := newEngine(WithArithmetic(vectorArithmetic{arith.New(false)}))
	vars := NewMapContext(map[string]any{
		"a": vector{1, 2},
		"b": vector{10, 20},
	})
	got := run(t, parse(t, e, `{type: Binary, op: "+", left: {type: Identifier, name: a}, right: {type: Identifier, name: b}}`), vars)
	if diff := cmp.Diff(vector{11, 22}, got); diff != "" {
		t.Errorf("overloaded add mismatch (-want +got):\n%s", diff)
	}
	if got := run(t, parse(t, e, `{type: Binary, op: "+", left: 1, right: 2}`), nil); got != int64(3) {
		t.Errorf("expected plain numbers to bypass the overload, got %v", got)
	}
	_, err := parse(t, e, `{type: Binary, op: "/", left: {type: Identifier, name: a}, right: {type: Identifier, name: b}}`).Execute(context.Background(), vars)
	if !errors.Is(err, ErrOperator) {
		t.Errorf("expected operator error from the overload, got %v", err)
	}
}

type annotations struct {
	*MapContext
	seen []string
}

func (a *annotations) ProcessAnnotation(name string, args []any, stmt func() (any, error)) (any, error) {
	a.seen = append(a.seen, name)
	switch name {
	case "repeat":
		n, _ := args[0].(int64)
		var v any
		for i := int64(0); i < n; i++ {
			var err error
			if v, err = stmt(); err != nil {
				return nil, err
			}
		}
		return v, nil
	case "skip":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown annotation %s", name)
}

func TestAnnotations(t *testing.T) {
	e := newEngine()
	vars := &annotations{MapContext: NewMapContext(map[string]any{"n": int64(0)})}
	doc := `
type: Script
body:
  - type: Annotated
    name: repeat
    args: [3]
    stmt: {type: Assign, op: "+", target: {type: Identifier, name: n}, value: 1}
  - {type: Annotated, name: skip, stmt: {type: Assign, target: {type: Identifier, name: n}, value: 100}}
  - {type: Identifier, name: n}
`
	if got := run(t, parse(t, e, doc), vars); got != int64(3) {
		t.Errorf("expected 3, got %v", got)
	}
	if diff := cmp.Diff([]string{"repeat", "skip"}, vars.seen); diff != "" {
		t.Errorf("annotations mismatch (-want +got):\n%s", diff)
	}

	_, err := parse(t, e, `{type: Annotated, name: bogus, stmt: 1}`).Execute(context.Background(), vars)
	if !errors.Is(err, ErrAnnotation) {
		t.Errorf("expected annotation error, got %v", err)
	}

	// without a processor a lenient engine runs the statement
	lenient := newEngine(WithStrict(false))
	if got := run(t, parse(t, lenient, `{type: Annotated, name: any, stmt: 7}`), nil); got != int64(7) {
		t.Errorf("expected 7, got %v", got)
	}
	if _, err := parse(t, e, `{type: Annotated, name: any, stmt: 7}`).Execute(context.Background(), nil); !errors.Is(err, ErrAnnotation) {
		t.Errorf("expected annotation error without a processor, got %v", err)
	}
}
