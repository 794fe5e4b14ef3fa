// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package ast

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"nickandperla.net/nexl/internal/token"
)

// ErrInvalidDocument is wrapped by every decoding error.
var ErrInvalidDocument = errors.New("invalid script document")

// Decode reads a YAML or JSON script document. A document whose root is
// not a Script is wrapped as the single statement of one.
func Decode(r io.Reader) (*Script, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Script{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	n, err := decodeNode(root)
	if err != nil {
		return nil, err
	}
	if s, ok := n.(*Script); ok {
		return s, nil
	}
	return &Script{Body: []Node{n}}, nil
}

// Parse decodes a script document held in memory.
func Parse(data []byte) (*Script, error) {
	return Decode(bytes.NewReader(data))
}

type nodeCategoryDecoder func(*object, string) (Node, bool, error)

var nodeDecoders []nodeCategoryDecoder

func init() {
	nodeDecoders = []nodeCategoryDecoder{
		decodeLiteralNodes,
		decodeExpressionNodes,
		decodeControlFlowNodes,
	}
}

func invalid(yn *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidDocument, yn.Line, fmt.Sprintf(format, args...))
}

func decodeNode(yn *yaml.Node) (Node, error) {
	var n Node
	switch yn.Kind {
	case yaml.ScalarNode:
		lit, err := decodeScalar(yn)
		if err != nil {
			return nil, err
		}
		n = lit
	case yaml.SequenceNode:
		items, err := decodeNodes(yn)
		if err != nil {
			return nil, err
		}
		n = &List{Items: items}
	case yaml.MappingNode:
		obj, err := asObject(yn)
		if err != nil {
			return nil, err
		}
		typ, err := obj.str("type")
		if err != nil {
			return nil, err
		}
		if typ == "" {
			return nil, invalid(yn, "node without type")
		}
		for _, decoder := range nodeDecoders {
			decoded, handled, err := decoder(obj, typ)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", typ, err)
			}
			if handled {
				n = decoded
				break
			}
		}
		if n == nil {
			return nil, invalid(yn, "unknown node type %q", typ)
		}
	default:
		return nil, invalid(yn, "unexpected yaml node kind %d", yn.Kind)
	}
	n.Flags().Line = yn.Line
	return n, nil
}

// decodeScalar turns a bare scalar into a literal node.
func decodeScalar(yn *yaml.Node) (Node, error) {
	switch yn.ShortTag() {
	case "!!null":
		return &Null{}, nil
	case "!!bool":
		var b bool
		if err := yn.Decode(&b); err != nil {
			return nil, invalid(yn, "%v", err)
		}
		return &Bool{Value: b}, nil
	case "!!int":
		var i int64
		if err := yn.Decode(&i); err != nil {
			return nil, invalid(yn, "%v", err)
		}
		return &Int{Value: i}, nil
	case "!!float":
		var f float64
		if err := yn.Decode(&f); err != nil {
			return nil, invalid(yn, "%v", err)
		}
		return &Float{Value: f}, nil
	}
	return &String{Value: yn.Value}, nil
}

func decodeNodes(yn *yaml.Node) ([]Node, error) {
	if yn.Kind != yaml.SequenceNode {
		return nil, invalid(yn, "expected a list of nodes")
	}
	nodes := make([]Node, 0, len(yn.Content))
	for _, child := range yn.Content {
		n, err := decodeNode(child)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

type object struct {
	node   *yaml.Node
	fields map[string]*yaml.Node
}

func asObject(yn *yaml.Node) (*object, error) {
	if yn.Kind != yaml.MappingNode {
		return nil, invalid(yn, "expected a mapping")
	}
	obj := &object{node: yn, fields: make(map[string]*yaml.Node, len(yn.Content)/2)}
	for i := 0; i+1 < len(yn.Content); i += 2 {
		obj.fields[yn.Content[i].Value] = yn.Content[i+1]
	}
	return obj, nil
}

func (o *object) str(key string) (string, error) {
	f, ok := o.fields[key]
	if !ok {
		return "", nil
	}
	if f.Kind != yaml.ScalarNode {
		return "", invalid(f, "%s must be a string", key)
	}
	return f.Value, nil
}

func (o *object) required(key string) (string, error) {
	s, err := o.str(key)
	if err == nil && s == "" {
		err = invalid(o.node, "missing %s", key)
	}
	return s, err
}

func (o *object) flag(key string) (bool, error) {
	f, ok := o.fields[key]
	if !ok {
		return false, nil
	}
	var b bool
	if err := f.Decode(&b); err != nil {
		return false, invalid(f, "%s: %v", key, err)
	}
	return b, nil
}

func (o *object) strings(key string) ([]string, error) {
	f, ok := o.fields[key]
	if !ok {
		return nil, nil
	}
	var out []string
	if err := f.Decode(&out); err != nil {
		return nil, invalid(f, "%s: %v", key, err)
	}
	return out, nil
}

// child decodes an optional node field.
func (o *object) child(key string) (Node, error) {
	f, ok := o.fields[key]
	if !ok {
		return nil, nil
	}
	return decodeNode(f)
}

// must decodes a required node field.
func (o *object) must(key string) (Node, error) {
	if _, ok := o.fields[key]; !ok {
		return nil, invalid(o.node, "missing %s", key)
	}
	return o.child(key)
}

func (o *object) children(key string) ([]Node, error) {
	f, ok := o.fields[key]
	if !ok {
		return nil, nil
	}
	return decodeNodes(f)
}

// statement decodes a loop or branch body; a list is a Block.
func (o *object) statement(key string) (Node, error) {
	f, ok := o.fields[key]
	if !ok {
		return nil, invalid(o.node, "missing %s", key)
	}
	if f.Kind == yaml.SequenceNode {
		body, err := decodeNodes(f)
		if err != nil {
			return nil, err
		}
		b := &Block{Body: body}
		b.Flags().Line = f.Line
		return b, nil
	}
	return decodeNode(f)
}

func (o *object) operator(key string, unary bool) (token.Operator, error) {
	sym, err := o.str(key)
	if err != nil || sym == "" {
		return token.ILLEGAL, err
	}
	op := token.FromSymbol(sym)
	if unary && op == token.SUB {
		op = token.NEGATE
	}
	if op == token.ILLEGAL {
		return op, invalid(o.fields[key], "unknown operator %q", sym)
	}
	return op, nil
}

func decodeLiteralNodes(o *object, typ string) (Node, bool, error) {
	switch typ {
	case "Null":
		return &Null{}, true, nil
	case "Bool", "Int", "Float", "String":
		f, ok := o.fields["value"]
		if !ok {
			return nil, true, invalid(o.node, "missing value")
		}
		var n Node
		var err error
		switch typ {
		case "Bool":
			var v bool
			err = f.Decode(&v)
			n = &Bool{Value: v}
		case "Int":
			var v int64
			err = f.Decode(&v)
			n = &Int{Value: v}
		case "Float":
			var v float64
			err = f.Decode(&v)
			n = &Float{Value: v}
		default:
			n = &String{Value: f.Value}
		}
		if err != nil {
			return nil, true, invalid(f, "%v", err)
		}
		return n, true, nil
	case "List":
		items, err := o.children("items")
		return &List{Items: items}, true, err
	case "Map":
		f, ok := o.fields["entries"]
		if !ok {
			return &Map{}, true, nil
		}
		if f.Kind != yaml.SequenceNode {
			return nil, true, invalid(f, "entries must be a list")
		}
		m := &Map{}
		for _, raw := range f.Content {
			e, err := asObject(raw)
			if err != nil {
				return nil, true, err
			}
			key, err := e.must("key")
			if err != nil {
				return nil, true, err
			}
			value, err := e.must("value")
			if err != nil {
				return nil, true, err
			}
			m.Entries = append(m.Entries, Entry{Key: key, Value: value})
		}
		return m, true, nil
	case "Range":
		from, err := o.must("from")
		if err != nil {
			return nil, true, err
		}
		to, err := o.must("to")
		return &Range{From: from, To: to}, true, err
	default:
		return nil, false, nil
	}
}

func decodeExpressionNodes(o *object, typ string) (Node, bool, error) {
	switch typ {
	case "Identifier":
		name, err := o.required("name")
		return &Identifier{Name: name, Symbol: NoSymbol}, true, err
	case "Var":
		name, err := o.required("name")
		if err != nil {
			return nil, true, err
		}
		value, err := o.child("value")
		return &Var{Name: name, Value: value}, true, err
	case "Assign":
		target, err := o.must("target")
		if err != nil {
			return nil, true, err
		}
		op, err := o.operator("op", false)
		if err != nil {
			return nil, true, err
		}
		value, err := o.must("value")
		return &Assign{Target: target, Op: op, Value: value}, true, err
	case "Binary", "Elvis", "Coalesce":
		var op token.Operator
		switch typ {
		case "Elvis":
			op = token.ELVIS
		case "Coalesce":
			op = token.COALESCE
		default:
			var err error
			if op, err = o.operator("op", false); err != nil {
				return nil, true, err
			}
			if op == token.ILLEGAL {
				return nil, true, invalid(o.node, "missing op")
			}
		}
		left, err := o.must("left")
		if err != nil {
			return nil, true, err
		}
		right, err := o.must("right")
		return &Binary{Op: op, Left: left, Right: right}, true, err
	case "Unary":
		op, err := o.operator("op", true)
		if err != nil {
			return nil, true, err
		}
		if op != token.NOT && op != token.NEGATE {
			return nil, true, invalid(o.node, "%s is not a unary operator", op)
		}
		operand, err := o.must("operand")
		return &Unary{Op: op, Operand: operand}, true, err
	case "Ternary":
		cond, err := o.must("cond")
		if err != nil {
			return nil, true, err
		}
		then, err := o.must("then")
		if err != nil {
			return nil, true, err
		}
		els, err := o.must("else")
		return &Ternary{Cond: cond, Then: then, Else: els}, true, err
	case "Access":
		obj, err := o.must("object")
		if err != nil {
			return nil, true, err
		}
		name, err := o.str("name")
		if err != nil {
			return nil, true, err
		}
		key, err := o.child("key")
		if err != nil {
			return nil, true, err
		}
		if (name == "") == (key == nil) {
			return nil, true, invalid(o.node, "access needs exactly one of name or key")
		}
		safe, err := o.flag("safe")
		return &Access{Object: obj, Name: name, Key: key, Safe: safe}, true, err
	case "Call":
		ns, err := o.str("namespace")
		if err != nil {
			return nil, true, err
		}
		name, err := o.required("name")
		if err != nil {
			return nil, true, err
		}
		args, err := o.children("args")
		return &Call{Namespace: ns, Name: name, Args: args, Symbol: NoSymbol}, true, err
	case "MethodCall":
		receiver, err := o.must("receiver")
		if err != nil {
			return nil, true, err
		}
		name, err := o.required("name")
		if err != nil {
			return nil, true, err
		}
		args, err := o.children("args")
		if err != nil {
			return nil, true, err
		}
		safe, err := o.flag("safe")
		return &MethodCall{Receiver: receiver, Name: name, Args: args, Safe: safe}, true, err
	case "New":
		class, err := o.must("class")
		if err != nil {
			return nil, true, err
		}
		args, err := o.children("args")
		return &New{Class: class, Args: args}, true, err
	case "Lambda":
		name, err := o.str("name")
		if err != nil {
			return nil, true, err
		}
		params, err := o.strings("params")
		if err != nil {
			return nil, true, err
		}
		body, err := o.children("body")
		return &Lambda{Name: name, Params: params, Body: body, Symbol: NoSymbol}, true, err
	default:
		return nil, false, nil
	}
}

func decodeControlFlowNodes(o *object, typ string) (Node, bool, error) {
	switch typ {
	case "Script":
		params, err := o.strings("params")
		if err != nil {
			return nil, true, err
		}
		body, err := o.children("body")
		return &Script{Params: params, Body: body}, true, err
	case "Block":
		body, err := o.children("body")
		return &Block{Body: body}, true, err
	case "If":
		cond, err := o.must("cond")
		if err != nil {
			return nil, true, err
		}
		then, err := o.statement("then")
		if err != nil {
			return nil, true, err
		}
		var els Node
		if _, ok := o.fields["else"]; ok {
			els, err = o.statement("else")
		}
		return &If{Cond: cond, Then: then, Else: els}, true, err
	case "While", "DoWhile":
		cond, err := o.must("cond")
		if err != nil {
			return nil, true, err
		}
		body, err := o.statement("body")
		if err != nil {
			return nil, true, err
		}
		if typ == "DoWhile" {
			return &DoWhile{Body: body, Cond: cond}, true, nil
		}
		return &While{Cond: cond, Body: body}, true, nil
	case "ForEach":
		v, err := o.required("var")
		if err != nil {
			return nil, true, err
		}
		iterable, err := o.must("iterable")
		if err != nil {
			return nil, true, err
		}
		body, err := o.statement("body")
		return &ForEach{Var: v, Iterable: iterable, Body: body}, true, err
	case "Return":
		value, err := o.child("value")
		return &Return{Value: value}, true, err
	case "Break":
		return &Break{}, true, nil
	case "Continue":
		return &Continue{}, true, nil
	case "Annotated":
		name, err := o.required("name")
		if err != nil {
			return nil, true, err
		}
		args, err := o.children("args")
		if err != nil {
			return nil, true, err
		}
		stmt, err := o.statement("stmt")
		return &Annotated{Name: name, Args: args, Stmt: stmt}, true, err
	default:
		return nil, false, nil
	}
}
