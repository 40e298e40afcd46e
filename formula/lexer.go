package formula

import (
	"strings"
)

type lexKind int

const (
	lexEOF lexKind = iota
	lexNumber
	lexWord
	lexRef
	lexOp
	lexLParen
	lexRParen
	lexComma
	lexInvalid
)

type lexeme struct {
	kind lexKind
	text string
	pos  int
	ref  Reference
}

// lex splits an expression into lexemes. Whitespace is dropped. Ids and names
// that contain non-word characters are matched as whole references before
// falling back to plain words.
func lex(expr string, syms *Symbols) []lexeme {
	var out []lexeme
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isDigit(c) || (c == '.' && i+1 < len(expr) && isDigit(expr[i+1])):
			start := i
			for i < len(expr) && isDigit(expr[i]) {
				i++
			}
			if i < len(expr) && expr[i] == '.' {
				i++
				for i < len(expr) && isDigit(expr[i]) {
					i++
				}
			}
			out = append(out, lexeme{kind: lexNumber, text: expr[start:i], pos: start})

		case isIdentStart(c):
			if ph, ok := syms.matchPhrase(expr, i); ok {
				n := len(ph.text)
				out = append(out, lexeme{kind: lexRef, text: expr[i : i+n], pos: i, ref: ph.ref})
				i += n
				continue
			}
			start := i
			for i < len(expr) && isWordChar(expr[i]) {
				i++
			}
			word := expr[start:i]
			followedByParen := i < len(expr) && expr[i] == '('
			if followedByParen && isFunction(word) {
				out = append(out, lexeme{kind: lexWord, text: word, pos: start})
				continue
			}
			if ref, ok := syms.lookupWord(word); ok {
				out = append(out, lexeme{kind: lexRef, text: word, pos: start, ref: ref})
				continue
			}
			out = append(out, lexeme{kind: lexWord, text: word, pos: start})

		case c == '(':
			out = append(out, lexeme{kind: lexLParen, text: "(", pos: i})
			i++
		case c == ')':
			out = append(out, lexeme{kind: lexRParen, text: ")", pos: i})
			i++
		case c == ',':
			out = append(out, lexeme{kind: lexComma, text: ",", pos: i})
			i++

		default:
			if op := matchOperator(expr[i:]); op != "" {
				out = append(out, lexeme{kind: lexOp, text: normalizeOperator(op), pos: i})
				i += len(op)
				continue
			}
			out = append(out, lexeme{kind: lexInvalid, text: expr[i : i+1], pos: i})
			i++
		}
	}
	return out
}

var operators = []string{">=", "<=", "!=", "==", "+", "-", "*", "/", ">", "<", "="}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func normalizeOperator(op string) string {
	if op == "==" {
		return "="
	}
	return op
}
