// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nickandperla.net/nexl/internal/ast"
)

// Issue classifies an evaluation failure.
type Issue uint8

const (
	// Undefined: a variable, property or method is absent.
	Undefined Issue = iota
	// NullValue: a value is present but null where an operator needs one.
	NullValue
	// Redefined: a block-local variable is declared twice, or a global is
	// written before being declared under lexical shading.
	Redefined
	MethodFailure
	PropertyFailure
	OperatorFailure
	AnnotationFailure
	// InvocationFailure: a host function failed. Always propagated.
	InvocationFailure
	// Cancelled: the evaluation observed cancellation. Always propagated.
	Cancelled
	// ReadOnly: the context rejected a write. Always propagated.
	ReadOnly
	RuntimeFailure
)

var issueNames = [...]string{
	Undefined:         "undefined variable",
	NullValue:         "null value",
	Redefined:         "redefined variable",
	MethodFailure:     "unsolvable method",
	PropertyFailure:   "unsolvable property",
	OperatorFailure:   "operator failure",
	AnnotationFailure: "annotation failure",
	InvocationFailure: "invocation failure",
	Cancelled:         "execution cancelled",
	ReadOnly:          "context is read-only",
	RuntimeFailure:    "runtime failure",
}

func (i Issue) String() string {
	if int(i) < len(issueNames) {
		return issueNames[i]
	}
	return fmt.Sprintf("issue(%d)", uint8(i))
}

// Error is a structured evaluation failure identifying the node, the
// offending name and the kind of issue.
type Error struct {
	Issue Issue
	Node  ast.Node
	Name  string
	Cause error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Node != nil {
		if line := e.Node.Flags().Line; line > 0 {
			fmt.Fprintf(&sb, "line %d: ", line)
		}
	}
	sb.WriteString(e.Issue.String())
	if e.Name != "" {
		sb.WriteString(" " + e.Name)
	}
	if e.Cause != nil {
		sb.WriteString(": " + e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the bare sentinel of the same issue, so that
// errors.Is(err, ErrUndefined) holds for every undefined failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Node != nil || t.Name != "" || t.Cause != nil {
		return false
	}
	return t.Issue == e.Issue
}

// Sentinels for errors.Is.
var (
	ErrUndefined  = &Error{Issue: Undefined}
	ErrNullValue  = &Error{Issue: NullValue}
	ErrRedefined  = &Error{Issue: Redefined}
	ErrMethod     = &Error{Issue: MethodFailure}
	ErrProperty   = &Error{Issue: PropertyFailure}
	ErrOperator   = &Error{Issue: OperatorFailure}
	ErrAnnotation = &Error{Issue: AnnotationFailure}
	ErrInvocation = &Error{Issue: InvocationFailure}
	ErrCancelled  = &Error{Issue: Cancelled}
	// ErrReadOnly is also what read-only contexts return from Set.
	ErrReadOnly = &Error{Issue: ReadOnly}
)

var (
	errNullObject  = errors.New("object is null")
	errNoNamespace = errors.New("no such function namespace")
	errNoProcessor = errors.New("no annotation processor")
)

// issueOf returns the issue of an evaluation failure, or RuntimeFailure.
func issueOf(err error) Issue {
	var e *Error
	if errors.As(err, &e) {
		return e.Issue
	}
	return RuntimeFailure
}

// isCancellation reports whether err stems from a cancelled or expired
// Go context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Control flow travels up the walker as errors.

type returnSignal struct {
	value any
}

func (returnSignal) Error() string { return "return" }

type breakSignal struct{}

func (breakSignal) Error() string { return "break" }

type continueSignal struct{}

func (continueSignal) Error() string { return "continue" }

func isSignal(err error) bool {
	switch err.(type) {
	case returnSignal, breakSignal, continueSignal:
		return true
	}
	return false
}
