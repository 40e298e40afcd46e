package formula

import (
	"errors"
	"fmt"
)

// Reason classifies why an expression could not be evaluated for a row
type Reason string

const (
	ReasonSyntax              Reason = "syntax"
	ReasonUnresolvedReference Reason = "unresolved-reference"
	ReasonMissingValue        Reason = "missing-value"
	ReasonNonNumeric          Reason = "non-numeric"
	ReasonDivisionByZero      Reason = "division-by-zero"
	ReasonUnknownFunction     Reason = "unknown-function"
	ReasonArity               Reason = "arity"
	ReasonDomain              Reason = "domain"
	ReasonCircularReference   Reason = "circular-reference"
	ReasonOutOfRange          Reason = "out-of-range"
	ReasonInvalidValue        Reason = "invalid-value"
)

// EvaluationError is the typed failure outcome of evaluating one expression
// for one row
type EvaluationError struct {
	Reason  Reason
	Ref     string
	Message string
}

func (e *EvaluationError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s: %s", e.Ref, e.Message)
	}
	return e.Message
}

// Errorf builds an EvaluationError
func Errorf(reason Reason, ref string, format string, args ...any) *EvaluationError {
	return &EvaluationError{Reason: reason, Ref: ref, Message: fmt.Sprintf(format, args...)}
}

// AsEvaluationError extracts an EvaluationError from err. Errors of any other
// type are reported as unresolved references.
func AsEvaluationError(err error) *EvaluationError {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr
	}
	var synErr *SyntaxError
	if errors.As(err, &synErr) {
		reason := synErr.Reason
		if reason == "" {
			reason = ReasonSyntax
		}
		return &EvaluationError{Reason: reason, Message: synErr.Error()}
	}
	return &EvaluationError{Reason: ReasonUnresolvedReference, Message: err.Error()}
}

// SyntaxError reports an expression that does not parse. Reason is empty for
// plain grammar errors.
type SyntaxError struct {
	Pos    int
	Msg    string
	Reason Reason
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at position %d", e.Msg, e.Pos+1)
}
