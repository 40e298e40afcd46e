package formula

import (
	"regexp"
	"strings"
)

var allowedCharacters = regexp.MustCompile(`^[\w\s+\-*/()><=!.,]+$`)

// Validation messages
const (
	MsgExpressionRequired = "Formula expression is required"
	MsgMismatchedParens   = "Mismatched parentheses"
	MsgInvalidCharacters  = "Invalid characters in expression"
	MsgColumnsNotFound    = "Referenced columns not found: "
)

// Validate checks an expression and returns every problem found. selfID is
// the column being authored; a reference to it is not reported as missing.
func Validate(expr string, syms *Symbols, selfID string) []string {
	if strings.TrimSpace(expr) == "" {
		return []string{MsgExpressionRequired}
	}

	var errs []string
	balanced := strings.Count(expr, "(") == strings.Count(expr, ")")
	if !balanced {
		errs = append(errs, MsgMismatchedParens)
	}
	validChars := allowedCharacters.MatchString(expr)
	if !validChars {
		errs = append(errs, MsgInvalidCharacters)
	}

	syms = syms.withColumn(selfID)
	refs := ExtractReferences(expr, syms)
	var missing []string
	for _, f := range refs.Fields {
		if syms.IsKnownField(f) {
			continue
		}
		missing = append(missing, f)
	}
	if len(missing) > 0 {
		errs = append(errs, MsgColumnsNotFound+strings.Join(missing, ", "))
	}

	if balanced && validChars {
		if _, err := Parse(expr, syms); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// ValidateCondition checks a condition expression. Conditions may read any
// raw context field, so unknown identifiers are allowed.
func ValidateCondition(expr string, syms *Symbols) []string {
	if strings.TrimSpace(expr) == "" {
		return []string{MsgExpressionRequired}
	}
	var errs []string
	if strings.Count(expr, "(") != strings.Count(expr, ")") {
		errs = append(errs, MsgMismatchedParens)
	}
	if !allowedCharacters.MatchString(expr) {
		errs = append(errs, MsgInvalidCharacters)
	}
	if len(errs) == 0 {
		if _, err := Parse(expr, syms); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
