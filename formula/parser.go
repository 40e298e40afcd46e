package formula

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Program is a parsed expression ready for evaluation
type Program struct {
	expr string
	root Node
	refs References
}

// Parse builds an expression tree.
//
//	expr    := compare
//	compare := sum (("=" | "!=" | ">" | "<" | ">=" | "<=") sum)*
//	sum     := product (("+" | "-") product)*
//	product := unary (("*" | "/") unary)*
//	unary   := ("-" | "+") unary | primary
//	primary := number | reference | func "(" args ")" | "(" expr ")"
func Parse(expr string, syms *Symbols) (*Program, error) {
	p := &parser{lexemes: lex(expr, syms), end: len(expr)}
	if len(p.lexemes) == 0 {
		return nil, &SyntaxError{Pos: 0, Msg: "empty expression"}
	}
	root, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != lexEOF {
		return nil, &SyntaxError{Pos: tok.pos, Msg: "unexpected '" + tok.text + "'"}
	}
	return &Program{expr: expr, root: root, refs: collectReferences(p.lexemes)}, nil
}

// Eval evaluates the program against env
func (p *Program) Eval(env Env) (Value, error) {
	v, err := p.root.eval(env)
	if err != nil {
		return Value{}, AsEvaluationError(err)
	}
	return v, nil
}

// Expression returns the source text
func (p *Program) Expression() string { return p.expr }

// References returns the references the expression uses
func (p *Program) References() References { return p.refs }

// String returns the fully parenthesized form of the expression
func (p *Program) String() string { return p.root.String() }

type parser struct {
	lexemes []lexeme
	pos     int
	end     int
}

func (p *parser) peek() lexeme {
	if p.pos >= len(p.lexemes) {
		return lexeme{kind: lexEOF, pos: p.end, text: "end of expression"}
	}
	return p.lexemes[p.pos]
}

func (p *parser) next() lexeme {
	tok := p.peek()
	if p.pos < len(p.lexemes) {
		p.pos++
	}
	return tok
}

func (p *parser) isOp(ops ...string) (string, bool) {
	tok := p.peek()
	if tok.kind != lexOp {
		return "", false
	}
	for _, op := range ops {
		if tok.text == op {
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseCompare() (Node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("=", "!=", ">", "<", ">=", "<=")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseSum() (Node, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("+", "-")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseProduct() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("*", "/")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	if op, ok := p.isOp("-", "+"); ok {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.kind {
	case lexNumber:
		d, err := decimal.NewFromString(tok.text)
		if err != nil {
			return nil, &SyntaxError{Pos: tok.pos, Msg: "invalid number '" + tok.text + "'"}
		}
		return &numberNode{val: d, text: tok.text}, nil

	case lexRef:
		return &refNode{ref: tok.ref, text: tok.text}, nil

	case lexWord:
		if p.peek().kind == lexLParen {
			return p.parseCall(tok)
		}
		return &refNode{ref: Reference{Kind: RefField, ID: tok.text, Name: tok.text}, text: tok.text}, nil

	case lexLParen:
		inner, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != lexRParen {
			return nil, &SyntaxError{Pos: closing.pos, Msg: "expected ')'"}
		}
		return inner, nil

	case lexEOF:
		return nil, &SyntaxError{Pos: tok.pos, Msg: "unexpected end of expression"}

	default:
		return nil, &SyntaxError{Pos: tok.pos, Msg: "unexpected '" + tok.text + "'"}
	}
}

func (p *parser) parseCall(name lexeme) (Node, error) {
	fn, ok := functions[strings.ToUpper(name.text)]
	if !ok {
		return nil, &SyntaxError{Pos: name.pos, Msg: "unknown function '" + name.text + "'", Reason: ReasonUnknownFunction}
	}
	p.next() // (

	var args []Node
	if p.peek().kind != lexRParen {
		for {
			arg, err := p.parseCompare()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != lexComma {
				break
			}
			p.next()
		}
	}
	if closing := p.next(); closing.kind != lexRParen {
		return nil, &SyntaxError{Pos: closing.pos, Msg: "expected ')' after arguments to " + fn.name}
	}

	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, &SyntaxError{Pos: name.pos, Msg: fn.name + " called with wrong number of arguments", Reason: ReasonArity}
	}
	return &callNode{name: fn.name, fn: fn, args: args}, nil
}
