// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package scope implements the static symbol tables and runtime activation
// frames of nexl scripts and lambdas.
//
// A Scope is built once per script or lambda and maps every declared name to
// a stable integer symbol. Symbols are classified as parameters (the leading
// ArgCount symbols), locals, or captured: a name read by a lambda but declared
// by an enclosing scope gets a local symbol of its own, mapped to the
// enclosing symbol it is copied from when the lambda's frame is created.
package scope

import "fmt"

// Kind classifies a symbol.
type Kind uint8

const (
	Parameter Kind = iota
	Local
	Captured
)

var kindNames = [...]string{
	Parameter: "parameter",
	Local:     "local",
	Captured:  "captured",
}

func (k Kind) String() string { return kindNames[k] }

type sentinel struct{ name string }

func (s *sentinel) String() string { return s.name }

// Slot sentinels. Both are distinct from nil, which is the null value.
var (
	// Undeclared marks a slot that has never been bound.
	Undeclared any = &sentinel{"undeclared"}
	// Undefined marks a slot whose declaring block has been exited.
	Undefined any = &sentinel{"undefined"}
)

// Scope is the static symbol table of one script or lambda.
type Scope struct {
	parent   *Scope
	params   int
	vars     int
	names    map[string]int
	symbols  []string
	captured map[int]int // local symbol -> enclosing symbol
}

// NewScope creates a scope nested in parent (nil for a top-level script)
// declaring the given parameters.
func NewScope(parent *Scope, params ...string) *Scope {
	s := &Scope{
		parent: parent,
		names:  make(map[string]int),
	}
	for _, p := range params {
		s.DeclareParameter(p)
	}
	return s
}

// Parent returns the enclosing scope, nil for a top-level script.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Symbol returns the symbol of name, capturing it from an enclosing scope if
// this scope does not declare it.
func (s *Scope) Symbol(name string) (int, bool) {
	return s.symbol(name, true)
}

// LocalSymbol returns the symbol of name without looking at enclosing scopes.
func (s *Scope) LocalSymbol(name string) (int, bool) {
	return s.symbol(name, false)
}

func (s *Scope) symbol(name string, capture bool) (int, bool) {
	if sym, ok := s.names[name]; ok {
		return sym, true
	}
	if !capture || s.parent == nil {
		return -1, false
	}
	outer, ok := s.parent.symbol(name, true)
	if !ok {
		return -1, false
	}
	sym := s.add(name)
	if s.captured == nil {
		s.captured = make(map[int]int)
	}
	s.captured[sym] = outer
	return sym, true
}

func (s *Scope) add(name string) int {
	sym := len(s.symbols)
	s.names[name] = sym
	s.symbols = append(s.symbols, name)
	return sym
}

// DeclareParameter declares a parameter and returns its symbol.
// Parameters must be declared before any variable.
func (s *Scope) DeclareParameter(name string) int {
	if sym, ok := s.names[name]; ok {
		return sym
	}
	if s.vars > 0 || len(s.captured) > 0 {
		panic(fmt.Sprintf("scope: parameter %q declared after variables", name))
	}
	s.params++
	return s.add(name)
}

// DeclareVariable declares a local variable and returns its symbol. A name
// that is already known keeps its symbol, including a captured one: the
// block that declares it saves and restores the captured value.
func (s *Scope) DeclareVariable(name string) int {
	if sym, ok := s.names[name]; ok {
		return sym
	}
	s.vars++
	return s.add(name)
}

// ArgCount returns the number of declared parameters.
func (s *Scope) ArgCount() int {
	if s == nil {
		return 0
	}
	return s.params
}

// SymbolCount returns the number of symbols, the size of frames of this scope.
func (s *Scope) SymbolCount() int {
	if s == nil {
		return 0
	}
	return len(s.symbols)
}

// Name returns the name of a symbol.
func (s *Scope) Name(symbol int) string {
	if symbol < 0 || symbol >= len(s.symbols) {
		return ""
	}
	return s.symbols[symbol]
}

// Kind returns the classification of a symbol.
func (s *Scope) Kind(symbol int) Kind {
	switch {
	case symbol < s.params:
		return Parameter
	case s.IsCaptured(symbol):
		return Captured
	default:
		return Local
	}
}

// IsCaptured returns true if the symbol is copied from an enclosing frame.
func (s *Scope) IsCaptured(symbol int) bool {
	_, ok := s.captured[symbol]
	return ok
}

// CapturedRegister returns the local symbol capturing the given symbol of
// the enclosing scope.
func (s *Scope) CapturedRegister(enclosing int) (int, bool) {
	for local, outer := range s.captured {
		if outer == enclosing {
			return local, true
		}
	}
	return -1, false
}

// Symbols returns all symbol names in symbol order.
func (s *Scope) Symbols() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.symbols...)
}

// Parameters returns the parameter names.
func (s *Scope) Parameters() []string {
	return s.parametersFrom(0)
}

func (s *Scope) parametersFrom(bound int) []string {
	if s == nil || bound >= s.params {
		return nil
	}
	return append([]string(nil), s.symbols[bound:s.params]...)
}

// LocalVariables returns the names of the variables that are neither
// parameters nor captured.
func (s *Scope) LocalVariables() []string {
	if s == nil {
		return nil
	}
	var locals []string
	for sym := s.params; sym < len(s.symbols); sym++ {
		if !s.IsCaptured(sym) {
			locals = append(locals, s.symbols[sym])
		}
	}
	return locals
}

// CreateFrame allocates a frame for one activation of the scope. Captured
// symbols receive the value their enclosing symbol holds in caller at the
// time of the call; values are then bound to the parameters.
func (s *Scope) CreateFrame(caller *Frame, values ...any) *Frame {
	slots := make([]any, len(s.symbols))
	for i := range slots {
		slots[i] = Undeclared
	}
	if caller != nil {
		for local, outer := range s.captured {
			slots[local] = caller.Get(outer)
		}
	}
	f := &Frame{scope: s, slots: slots, source: caller}
	return f.Assign(values...)
}
