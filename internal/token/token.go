// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package token defines nexl operator kinds and their source symbols.
package token

// Operator represents a nexl operator kind.
type Operator int

const (
	ILLEGAL Operator = iota

	// Arithmetic
	ADD // +
	SUB // -
	MUL // *
	DIV // /
	MOD // %

	// Comparison
	EQ  // ==
	NE  // !=
	LT  // <
	LE  // <=
	GT  // >
	GE  // >=

	// Logical
	AND      // &&
	OR       // ||
	NOT      // !
	NEGATE   // unary -
	COALESCE // ??
	ELVIS    // ?:

	// Member access
	PROPERTY_GET // .name
	PROPERTY_SET // .name =
	ARRAY_GET    // [key]
	ARRAY_SET    // [key] =

	// Misc
	SIZE     // size(x)
	EMPTY    // empty(x)
	CONTAINS // =~
)

var symbols = [...]string{
	ILLEGAL:      "?",
	ADD:          "+",
	SUB:          "-",
	MUL:          "*",
	DIV:          "/",
	MOD:          "%",
	EQ:           "==",
	NE:           "!=",
	LT:           "<",
	LE:           "<=",
	GT:           ">",
	GE:           ">=",
	AND:          "&&",
	OR:           "||",
	NOT:          "!",
	NEGATE:       "-",
	COALESCE:     "??",
	ELVIS:        "?:",
	PROPERTY_GET: ".",
	PROPERTY_SET: ".=",
	ARRAY_GET:    "[]",
	ARRAY_SET:    "[]=",
	SIZE:         "size",
	EMPTY:        "empty",
	CONTAINS:     "=~",
}

// Method names looked up on an arithmetic delegate to overload an operator.
var methods = [...]string{
	ILLEGAL:      "",
	ADD:          "Add",
	SUB:          "Subtract",
	MUL:          "Multiply",
	DIV:          "Divide",
	MOD:          "Mod",
	EQ:           "Equals",
	NE:           "",
	LT:           "LessThan",
	LE:           "LessThanOrEqual",
	GT:           "GreaterThan",
	GE:           "GreaterThanOrEqual",
	AND:          "",
	OR:           "",
	NOT:          "Not",
	NEGATE:       "Negate",
	COALESCE:     "",
	ELVIS:        "",
	PROPERTY_GET: "PropertyGet",
	PROPERTY_SET: "PropertySet",
	ARRAY_GET:    "ArrayGet",
	ARRAY_SET:    "ArraySet",
	SIZE:         "Size",
	EMPTY:        "Empty",
	CONTAINS:     "Contains",
}

// FromSymbol returns the operator for a binary operator symbol, or ILLEGAL.
// The symbol "-" maps to SUB; NEGATE is only produced by unary nodes.
func FromSymbol(s string) Operator {
	switch s {
	case "-":
		return SUB
	case "!":
		return NOT
	}
	for op, sym := range symbols {
		if sym == s && Operator(op) != NEGATE {
			return Operator(op)
		}
	}
	return ILLEGAL
}

// Symbol returns the source symbol of the operator.
func (op Operator) Symbol() string {
	if op < 0 || int(op) >= len(symbols) {
		return symbols[ILLEGAL]
	}
	return symbols[op]
}

// String returns the source symbol; it is what error messages print.
func (op Operator) String() string { return op.Symbol() }

// MethodName returns the name of the arithmetic method that may overload the
// operator, or "" when the operator cannot be overloaded.
func (op Operator) MethodName() string {
	if op < 0 || int(op) >= len(methods) {
		return ""
	}
	return methods[op]
}

// IsStrict returns true if the operator requires non-null operands under a
// strict arithmetic.
func (op Operator) IsStrict() bool {
	switch op {
	case ADD, SUB, MUL, DIV, MOD, LT, LE, GT, GE, NEGATE:
		return true
	}
	return false
}

// IsAccess returns true for property and array access operators.
func (op Operator) IsAccess() bool {
	switch op {
	case PROPERTY_GET, PROPERTY_SET, ARRAY_GET, ARRAY_SET:
		return true
	}
	return false
}

// IsShortCircuit returns true if the right operand is evaluated lazily.
func (op Operator) IsShortCircuit() bool {
	switch op {
	case AND, OR, COALESCE, ELVIS:
		return true
	}
	return false
}
