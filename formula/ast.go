package formula

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Node is an expression tree node
type Node interface {
	eval(env Env) (Value, error)
	String() string
}

// Env resolves references while an expression is evaluated
type Env interface {
	Resolve(ref Reference) (Value, error)
}

// EnvFunc adapts a function to Env
type EnvFunc func(ref Reference) (Value, error)

func (f EnvFunc) Resolve(ref Reference) (Value, error) { return f(ref) }

type numberNode struct {
	val  decimal.Decimal
	text string
}

func (n *numberNode) eval(Env) (Value, error) { return Number(n.val), nil }
func (n *numberNode) String() string         { return n.text }

type refNode struct {
	ref  Reference
	text string
}

func (n *refNode) eval(env Env) (Value, error) {
	if env == nil {
		return Value{}, Errorf(ReasonUnresolvedReference, n.text, "no context to resolve reference")
	}
	v, err := env.Resolve(n.ref)
	if err != nil {
		return Value{}, err
	}
	if v.IsNull() {
		return Value{}, Errorf(ReasonMissingValue, n.text, "no value")
	}
	return v, nil
}

func (n *refNode) String() string { return n.text }

type unaryNode struct {
	op      string
	operand Node
}

func (n *unaryNode) eval(env Env) (Value, error) {
	v, err := n.operand.eval(env)
	if err != nil {
		return Value{}, err
	}
	d, ok := v.AsNumber()
	if !ok {
		return Value{}, Errorf(ReasonNonNumeric, n.operand.String(), "unary %s needs a number, got %s", n.op, v.Kind)
	}
	if n.op == "-" {
		return Number(d.Neg()), nil
	}
	return Number(d), nil
}

func (n *unaryNode) String() string { return n.op + n.operand.String() }

type binaryNode struct {
	op          string
	left, right Node
}

func (n *binaryNode) eval(env Env) (Value, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return Value{}, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return Value{}, err
	}
	switch n.op {
	case "+", "-", "*", "/":
		return n.arith(l, r)
	default:
		return n.compare(l, r)
	}
}

func (n *binaryNode) arith(l, r Value) (Value, error) {
	a, ok := l.AsNumber()
	if !ok {
		return Value{}, Errorf(ReasonNonNumeric, n.left.String(), "operator %s needs a number, got %s", n.op, l.Kind)
	}
	b, ok := r.AsNumber()
	if !ok {
		return Value{}, Errorf(ReasonNonNumeric, n.right.String(), "operator %s needs a number, got %s", n.op, r.Kind)
	}
	switch n.op {
	case "+":
		return Number(a.Add(b)), nil
	case "-":
		return Number(a.Sub(b)), nil
	case "*":
		return Number(a.Mul(b)), nil
	default:
		if b.IsZero() {
			return Value{}, Errorf(ReasonDivisionByZero, n.String(), "division by zero")
		}
		return Number(a.Div(b)), nil
	}
}

func (n *binaryNode) compare(l, r Value) (Value, error) {
	if n.op == "=" {
		return Bool(l.Equal(r)), nil
	}
	if n.op == "!=" {
		return Bool(!l.Equal(r)), nil
	}

	var cmp int
	a, aok := l.AsNumber()
	b, bok := r.AsNumber()
	switch {
	case aok && bok:
		cmp = a.Cmp(b)
	case l.Kind == KindDate && r.Kind == KindDate:
		cmp = l.Time.Compare(r.Time)
	case l.Kind == KindString && r.Kind == KindString:
		cmp = strings.Compare(l.Str, r.Str)
	default:
		return Value{}, Errorf(ReasonNonNumeric, n.String(), "cannot compare %s with %s", l.Kind, r.Kind)
	}

	switch n.op {
	case ">":
		return Bool(cmp > 0), nil
	case "<":
		return Bool(cmp < 0), nil
	case ">=":
		return Bool(cmp >= 0), nil
	default:
		return Bool(cmp <= 0), nil
	}
}

func (n *binaryNode) String() string {
	return "(" + n.left.String() + " " + n.op + " " + n.right.String() + ")"
}

type callNode struct {
	name string
	fn   *function
	args []Node
}

func (n *callNode) eval(env Env) (Value, error) {
	return n.fn.call(n, env)
}

func (n *callNode) String() string {
	parts := make([]string, len(n.args))
	for i, a := range n.args {
		parts[i] = a.String()
	}
	return n.name + "(" + strings.Join(parts, ", ") + ")"
}
