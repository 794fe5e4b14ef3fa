// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package ast

import (
	"fmt"

	"nickandperla.net/nexl/internal/scope"
	"nickandperla.net/nexl/internal/token"
)

// ResolveError reports a tree that cannot be evaluated.
type ResolveError struct {
	Node Node
	Msg  string
}

func (e *ResolveError) Error() string {
	if line := e.Node.Flags().Line; line > 0 {
		return fmt.Sprintf("line %d: %s: %s", line, e.Msg, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Node)
}

// block records the names a block declares and whether each declaration
// has been reached yet.
type block struct {
	names map[string]bool
}

type resolver struct {
	scope  *scope.Scope
	blocks []*block
	loops  int
}

// Resolve builds the scope of a script and of every lambda it contains,
// assigns symbols to identifiers and declarations, and sets node flags.
// Resolving a script twice is a no-op.
func Resolve(s *Script) error {
	if s.Scope != nil {
		return nil
	}
	sc := scope.NewScope(nil, s.Params...)
	r := &resolver{scope: sc}
	if err := r.body(s.Body); err != nil {
		return err
	}
	s.Scope = sc
	return nil
}

func (r *resolver) open(stmts []Node) {
	b := &block{names: make(map[string]bool)}
	for _, st := range stmts {
		switch n := st.(type) {
		case *Var:
			b.names[n.Name] = false
		case *Lambda:
			if n.Name != "" {
				b.names[n.Name] = false
			}
		}
	}
	r.blocks = append(r.blocks, b)
}

func (r *resolver) close() {
	r.blocks = r.blocks[:len(r.blocks)-1]
}

func (r *resolver) body(stmts []Node) error {
	r.open(stmts)
	defer r.close()
	return r.list(stmts)
}

func (r *resolver) declare(name string) int {
	if len(r.blocks) > 0 {
		r.blocks[len(r.blocks)-1].names[name] = true
	}
	return r.scope.DeclareVariable(name)
}

// shaded reports whether name is read before its declaration in the
// innermost block declaring it.
func (r *resolver) shaded(name string) bool {
	for i := len(r.blocks) - 1; i >= 0; i-- {
		if declared, ok := r.blocks[i].names[name]; ok {
			return !declared
		}
	}
	return false
}

func (r *resolver) symbol(name string) int {
	if sym, ok := r.scope.Symbol(name); ok {
		return sym
	}
	return NoSymbol
}

func (r *resolver) list(nodes []Node) error {
	for _, n := range nodes {
		if err := r.node(n); err != nil {
			return err
		}
	}
	return nil
}

// loop resolves a loop body. A body that is not a block still scopes its
// declarations to one iteration.
func (r *resolver) loop(body Node) error {
	r.loops++
	defer func() { r.loops-- }()
	if _, ok := body.(*Block); !ok {
		r.open([]Node{body})
		defer r.close()
	}
	return r.node(body)
}

func (r *resolver) node(n Node) error {
	switch n := n.(type) {
	case nil:
		return nil
	case *Null, *Bool, *Int, *Float, *String:
		return nil
	case *List:
		return r.list(n.Items)
	case *Map:
		for _, e := range n.Entries {
			if err := r.node(e.Key); err != nil {
				return err
			}
			if err := r.node(e.Value); err != nil {
				return err
			}
		}
		return nil
	case *Range:
		markStrict(n.From)
		markStrict(n.To)
		if err := r.node(n.From); err != nil {
			return err
		}
		return r.node(n.To)
	case *Identifier:
		n.Shaded = r.shaded(n.Name)
		n.Symbol = r.symbol(n.Name)
		return nil
	case *Var:
		// a function literal sees its own name, other initializers do not
		if _, ok := n.Value.(*Lambda); ok {
			n.Symbol = r.declare(n.Name)
			return r.node(n.Value)
		}
		if err := r.node(n.Value); err != nil {
			return err
		}
		n.Symbol = r.declare(n.Name)
		return nil
	case *Assign:
		switch t := n.Target.(type) {
		case *Identifier, *Access:
		default:
			return &ResolveError{Node: n, Msg: fmt.Sprintf("cannot assign to %s", t.NodeType())}
		}
		if n.Op != token.ILLEGAL && n.Op.IsStrict() {
			markStrict(n.Target)
			markStrict(n.Value)
		}
		if err := r.node(n.Target); err != nil {
			return err
		}
		return r.node(n.Value)
	case *Binary:
		switch {
		case n.Op.IsStrict():
			markStrict(n.Left)
			markStrict(n.Right)
		case n.Op == token.COALESCE || n.Op == token.ELVIS:
			protect(n.Left)
		}
		if err := r.node(n.Left); err != nil {
			return err
		}
		return r.node(n.Right)
	case *Unary:
		if n.Op.IsStrict() {
			markStrict(n.Operand)
		}
		return r.node(n.Operand)
	case *Ternary:
		protect(n.Cond)
		return r.list([]Node{n.Cond, n.Then, n.Else})
	case *Access:
		if n.Safe {
			n.Object.Flags().Safe = true
		}
		if err := r.node(n.Object); err != nil {
			return err
		}
		return r.node(n.Key)
	case *Call:
		if n.Namespace == "" {
			if sym, ok := r.scope.Symbol(n.Name); ok {
				n.Symbol = sym
			} else {
				n.Symbol = NoSymbol
			}
		} else {
			n.Symbol = NoSymbol
		}
		return r.list(n.Args)
	case *MethodCall:
		if n.Safe {
			n.Receiver.Flags().Safe = true
		}
		if err := r.node(n.Receiver); err != nil {
			return err
		}
		return r.list(n.Args)
	case *New:
		if err := r.node(n.Class); err != nil {
			return err
		}
		return r.list(n.Args)
	case *Lambda:
		return r.lambda(n)
	case *Block:
		return r.body(n.Body)
	case *If:
		return r.list([]Node{n.Cond, n.Then, n.Else})
	case *While:
		if err := r.node(n.Cond); err != nil {
			return err
		}
		return r.loop(n.Body)
	case *DoWhile:
		if err := r.loop(n.Body); err != nil {
			return err
		}
		return r.node(n.Cond)
	case *ForEach:
		if err := r.node(n.Iterable); err != nil {
			return err
		}
		r.open(nil)
		defer r.close()
		n.Symbol = r.declare(n.Var)
		return r.loop(n.Body)
	case *Return:
		return r.node(n.Value)
	case *Break, *Continue:
		if r.loops == 0 {
			return &ResolveError{Node: n, Msg: n.String() + " outside loop"}
		}
		return nil
	case *Annotated:
		if err := r.list(n.Args); err != nil {
			return err
		}
		return r.node(n.Stmt)
	case *Script:
		return &ResolveError{Node: n, Msg: "nested script"}
	}
	return &ResolveError{Node: n, Msg: "unknown node " + n.NodeType()}
}

func (r *resolver) lambda(n *Lambda) error {
	n.Symbol = NoSymbol
	if n.Name != "" {
		n.Symbol = r.declare(n.Name)
	}
	outer, blocks, loops := r.scope, r.blocks, r.loops
	r.scope, r.blocks, r.loops = scope.NewScope(outer, n.Params...), nil, 0
	defer func() { r.scope, r.blocks, r.loops = outer, blocks, loops }()
	if err := r.body(n.Body); err != nil {
		return err
	}
	n.Scope = r.scope
	return nil
}

func markStrict(n Node) {
	if n != nil {
		n.Flags().StrictOperand = true
	}
}

// protect marks a guard operand and the objects of the reference chain
// it reads through.
func protect(n Node) {
	for n != nil {
		n.Flags().Protected = true
		switch x := n.(type) {
		case *Access:
			n = x.Object
		case *MethodCall:
			n = x.Receiver
		default:
			return
		}
	}
}
