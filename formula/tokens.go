package formula

import (
	"strings"
)

// TokenType classifies a token for display
type TokenType string

const (
	TokenNumber      TokenType = "number"
	TokenOperator    TokenType = "operator"
	TokenParenthesis TokenType = "parenthesis"
	TokenFunction    TokenType = "function"
	TokenColumn      TokenType = "column"
	TokenProperty    TokenType = "property"
)

// Token is one classified lexeme of an expression
type Token struct {
	Type        TokenType
	Value       string
	DisplayName string
	RefID       string
	Description string
}

// Tokenize classifies an expression for display and highlighting. Unknown
// identifiers and stray characters come back as operator tokens.
func Tokenize(expr string, syms *Symbols) []Token {
	lexemes := lex(expr, syms)
	tokens := make([]Token, 0, len(lexemes))
	for i, l := range lexemes {
		tok := Token{Type: TokenOperator, Value: l.text, DisplayName: l.text}
		switch l.kind {
		case lexNumber:
			tok.Type = TokenNumber
		case lexLParen, lexRParen:
			tok.Type = TokenParenthesis
		case lexWord:
			if i+1 < len(lexemes) && lexemes[i+1].kind == lexLParen && lexemes[i+1].pos == l.pos+len(l.text) && isFunction(l.text) {
				tok.Type = TokenFunction
				tok.DisplayName = strings.ToUpper(l.text)
			}
		case lexRef:
			tok.RefID = l.ref.ID
			tok.DisplayName = l.ref.Name
			if l.ref.Kind == RefColumn {
				tok.Type = TokenColumn
				if c, ok := syms.Column(l.ref.ID); ok {
					tok.Description = c.Description
				}
			} else {
				tok.Type = TokenProperty
				if p, ok := syms.Property(l.ref.ID); ok {
					tok.Description = p.Description
				}
			}
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// JoinDisplayNames renders tokens back into an expression using display names
func JoinDisplayNames(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.DisplayName
	}
	return strings.Join(parts, " ")
}

// References lists what an expression refers to, in order of first use
type References struct {
	Columns    []string
	Properties []string
	// Fields are identifiers that matched no column or property
	Fields []string
}

// ExtractReferences returns the column and property ids an expression uses
func ExtractReferences(expr string, syms *Symbols) References {
	return collectReferences(lex(expr, syms))
}

func collectReferences(lexemes []lexeme) References {
	var refs References
	seen := make(map[string]bool)
	add := func(list *[]string, key, id string) {
		if !seen[key] {
			seen[key] = true
			*list = append(*list, id)
		}
	}
	for i, l := range lexemes {
		switch l.kind {
		case lexRef:
			if l.ref.Kind == RefColumn {
				add(&refs.Columns, "c:"+l.ref.ID, l.ref.ID)
			} else {
				add(&refs.Properties, "p:"+l.ref.ID, l.ref.ID)
			}
		case lexWord:
			if i+1 < len(lexemes) && lexemes[i+1].kind == lexLParen && isFunction(l.text) {
				continue
			}
			add(&refs.Fields, "f:"+l.text, l.text)
		}
	}
	return refs
}
