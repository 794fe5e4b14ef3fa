// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package ast defines nexl syntax tree nodes.
//
// Trees are built by Decode or by hand, then prepared for evaluation by
// Resolve, which assigns scope symbols and the per-node flags the
// interpreter relies on.
package ast

import (
	"strconv"
	"strings"

	"nickandperla.net/nexl/internal/scope"
	"nickandperla.net/nexl/internal/token"
)

// Node is the interface all syntax tree nodes implement.
type Node interface {
	// NodeType returns the document type name of the node.
	NodeType() string
	// String returns the source rendering of the node.
	String() string
	// Flags returns the resolver-computed facts about the node.
	Flags() *Flags
}

// Flags are set by Resolve.
type Flags struct {
	Line int
	// Protected nodes sit on the guarded side of a ternary, elvis or
	// coalescing operator; a missing value there is an expected outcome.
	Protected bool
	// StrictOperand nodes are operands of an operator that requires
	// non-null operands.
	StrictOperand bool
	// Safe nodes are the object of a null-safe navigation.
	Safe bool
}

type meta struct {
	flags Flags
}

func (m *meta) Flags() *Flags { return &m.flags }

// NoSymbol marks an identifier that is not a local of any scope.
const NoSymbol = -1

// Script is the root of a tree.
type Script struct {
	meta
	Params []string
	Body   []Node
	// Scope is set by Resolve.
	Scope *scope.Scope
}

func (*Script) NodeType() string { return "Script" }
func (s *Script) String() string {
	var sb strings.Builder
	if len(s.Params) > 0 {
		sb.WriteString("(" + strings.Join(s.Params, ", ") + ") -> ")
	}
	sb.WriteString(statements(s.Body))
	return sb.String()
}

// Null is the null literal.
type Null struct{ meta }

func (*Null) NodeType() string { return "Null" }
func (*Null) String() string   { return "null" }

// Bool is a boolean literal.
type Bool struct {
	meta
	Value bool
}

func (*Bool) NodeType() string  { return "Bool" }
func (b *Bool) String() string { return strconv.FormatBool(b.Value) }

// Int is an integer literal.
type Int struct {
	meta
	Value int64
}

func (*Int) NodeType() string  { return "Int" }
func (i *Int) String() string { return strconv.FormatInt(i.Value, 10) }

// Float is a floating point literal.
type Float struct {
	meta
	Value float64
}

func (*Float) NodeType() string  { return "Float" }
func (f *Float) String() string { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

// String is a string literal.
type String struct {
	meta
	Value string
}

func (*String) NodeType() string  { return "String" }
func (s *String) String() string { return strconv.Quote(s.Value) }

// List is a list literal.
type List struct {
	meta
	Items []Node
}

func (*List) NodeType() string  { return "List" }
func (l *List) String() string { return "[" + join(l.Items) + "]" }

// Entry is one key/value pair of a Map literal.
type Entry struct {
	Key, Value Node
}

// Map is a map literal.
type Map struct {
	meta
	Entries []Entry
}

func (*Map) NodeType() string { return "Map" }
func (m *Map) String() string {
	parts := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		parts[i] = e.Key.String() + ": " + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Range is an inclusive integer range literal.
type Range struct {
	meta
	From, To Node
}

func (*Range) NodeType() string  { return "Range" }
func (r *Range) String() string { return r.From.String() + " .. " + r.To.String() }

// Identifier is a variable reference.
type Identifier struct {
	meta
	Name string
	// Symbol is the frame slot, or NoSymbol for context variables.
	Symbol int
	// Shaded is set when the reference precedes its declaration in the
	// block that declares it.
	Shaded bool
}

func (*Identifier) NodeType() string  { return "Identifier" }
func (i *Identifier) String() string { return i.Name }

// Var declares a block-local variable, optionally initialized.
type Var struct {
	meta
	Name   string
	Value  Node
	Symbol int
}

func (*Var) NodeType() string { return "Var" }
func (v *Var) String() string {
	if v.Value == nil {
		return "var " + v.Name
	}
	return "var " + v.Name + " = " + v.Value.String()
}

// Assign writes a variable or a property. Op is ILLEGAL for plain
// assignment, or the operator of a compound assignment such as +=.
type Assign struct {
	meta
	Target Node
	Op     token.Operator
	Value  Node
}

func (*Assign) NodeType() string { return "Assign" }
func (a *Assign) String() string {
	op := "="
	if a.Op != token.ILLEGAL {
		op = a.Op.Symbol() + "="
	}
	return a.Target.String() + " " + op + " " + a.Value.String()
}

// Binary is a binary operation, including the short-circuit operators.
type Binary struct {
	meta
	Op          token.Operator
	Left, Right Node
}

func (*Binary) NodeType() string { return "Binary" }
func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op.Symbol() + " " + b.Right.String() + ")"
}

// Unary is a prefix operation.
type Unary struct {
	meta
	Op      token.Operator
	Operand Node
}

func (*Unary) NodeType() string  { return "Unary" }
func (u *Unary) String() string { return u.Op.Symbol() + u.Operand.String() }

// Ternary is cond ? then : else.
type Ternary struct {
	meta
	Cond, Then, Else Node
}

func (*Ternary) NodeType() string { return "Ternary" }
func (t *Ternary) String() string {
	return "(" + t.Cond.String() + " ? " + t.Then.String() + " : " + t.Else.String() + ")"
}

// Access reads a property (Name) or an indexed element (Key) of Object.
type Access struct {
	meta
	Object Node
	Name   string
	Key    Node
	// Safe access yields null when the object or the member is missing.
	Safe bool
	Site Site
}

func (*Access) NodeType() string { return "Access" }
func (a *Access) String() string {
	if a.Key != nil {
		if a.Safe {
			return a.Object.String() + "?[" + a.Key.String() + "]"
		}
		return a.Object.String() + "[" + a.Key.String() + "]"
	}
	if a.Safe {
		return a.Object.String() + "?." + a.Name
	}
	return a.Object.String() + "." + a.Name
}

// IsIndex returns true for obj[key] accesses.
func (a *Access) IsIndex() bool { return a.Key != nil }

// Operator returns the access operator used for reads.
func (a *Access) Operator() token.Operator {
	if a.Key != nil {
		return token.ARRAY_GET
	}
	return token.PROPERTY_GET
}

// Call is a call without receiver, name(args) or namespace:name(args).
type Call struct {
	meta
	Namespace string
	Name      string
	Args      []Node
	// Symbol is set when name denotes a local variable holding a callable.
	Symbol int
	// Site caches the method resolution; FunctorSite the namespace
	// constructor.
	Site        Site
	FunctorSite Site
}

func (*Call) NodeType() string { return "Call" }
func (c *Call) String() string {
	if c.Namespace != "" {
		return c.Namespace + ":" + c.Name + "(" + join(c.Args) + ")"
	}
	return c.Name + "(" + join(c.Args) + ")"
}

// MethodCall is receiver.name(args).
type MethodCall struct {
	meta
	Receiver Node
	Name     string
	Args     []Node
	Safe     bool
	Site     Site
}

func (*MethodCall) NodeType() string { return "MethodCall" }
func (m *MethodCall) String() string {
	dot := "."
	if m.Safe {
		dot = "?."
	}
	return m.Receiver.String() + dot + m.Name + "(" + join(m.Args) + ")"
}

// New instantiates a class: new(Class, args).
type New struct {
	meta
	Class Node
	Args  []Node
	Site  Site
}

func (*New) NodeType() string { return "New" }
func (n *New) String() string {
	args := append([]Node{n.Class}, n.Args...)
	return "new(" + join(args) + ")"
}

// Lambda is a function literal. A named lambda declares its name in the
// enclosing block and may refer to itself.
type Lambda struct {
	meta
	Name   string
	Params []string
	Body   []Node
	// Set by Resolve.
	Scope  *scope.Scope
	Symbol int
}

func (*Lambda) NodeType() string { return "Lambda" }
func (l *Lambda) String() string {
	params := "(" + strings.Join(l.Params, ", ") + ")"
	if l.Name != "" {
		return "function " + l.Name + params + " { " + statements(l.Body) + " }"
	}
	return params + " -> { " + statements(l.Body) + " }"
}

// Block is a braced statement list.
type Block struct {
	meta
	Body []Node
}

func (*Block) NodeType() string  { return "Block" }
func (b *Block) String() string { return "{ " + statements(b.Body) + " }" }

// If is a conditional statement; Else may be nil.
type If struct {
	meta
	Cond, Then, Else Node
}

func (*If) NodeType() string { return "If" }
func (n *If) String() string {
	s := "if (" + n.Cond.String() + ") " + n.Then.String()
	if n.Else != nil {
		s += " else " + n.Else.String()
	}
	return s
}

// While is a pre-tested loop.
type While struct {
	meta
	Cond, Body Node
}

func (*While) NodeType() string  { return "While" }
func (w *While) String() string { return "while (" + w.Cond.String() + ") " + w.Body.String() }

// DoWhile is a post-tested loop.
type DoWhile struct {
	meta
	Body, Cond Node
}

func (*DoWhile) NodeType() string { return "DoWhile" }
func (d *DoWhile) String() string {
	return "do " + d.Body.String() + " while (" + d.Cond.String() + ")"
}

// ForEach iterates over a list, map keys, range, string runes or channel.
type ForEach struct {
	meta
	Var      string
	Iterable Node
	Body     Node
	Symbol   int
}

func (*ForEach) NodeType() string { return "ForEach" }
func (f *ForEach) String() string {
	return "for (var " + f.Var + " : " + f.Iterable.String() + ") " + f.Body.String()
}

// Return exits the enclosing lambda or script; Value may be nil.
type Return struct {
	meta
	Value Node
}

func (*Return) NodeType() string { return "Return" }
func (r *Return) String() string {
	if r.Value == nil {
		return "return"
	}
	return "return " + r.Value.String()
}

// Break exits the innermost loop.
type Break struct{ meta }

func (*Break) NodeType() string { return "Break" }
func (*Break) String() string   { return "break" }

// Continue starts the next iteration of the innermost loop.
type Continue struct{ meta }

func (*Continue) NodeType() string { return "Continue" }
func (*Continue) String() string   { return "continue" }

// Annotated is a statement decorated by @name(args).
type Annotated struct {
	meta
	Name string
	Args []Node
	Stmt Node
}

func (*Annotated) NodeType() string { return "Annotated" }
func (a *Annotated) String() string {
	s := "@" + a.Name
	if len(a.Args) > 0 {
		s += "(" + join(a.Args) + ")"
	}
	return s + " " + a.Stmt.String()
}

func join(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

func statements(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, "; ")
}
