package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrSchemaInvalid is wrapped by every ValidationError
	ErrSchemaInvalid = errors.New("schema is invalid")
	// ErrColumnNotFound is returned when an operation names an unknown column
	ErrColumnNotFound = errors.New("column not found")
	// ErrColumnLocked is returned when a column's permissions forbid the operation
	ErrColumnLocked = errors.New("column is locked")
)

// Validation messages
const (
	MsgDropdownOptionsRequired = "Dropdown columns must have at least one option"
	MsgFormulaRequired         = "Calculated columns must have a formula"
	MsgPropertiesRequired      = "Property-driven columns must have at least one property"
	MsgMissingColumns          = "Formula references missing columns: "
	MsgMissingProperties       = "Formula references missing properties: "
)

// Problems collects structural errors, which block a save, and warnings,
// which do not
type Problems struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// HasErrors reports whether any blocking problem was found
func (p Problems) HasErrors() bool {
	return len(p.Errors) > 0
}

func (p *Problems) errorf(format string, args ...any) {
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}

func (p *Problems) warnf(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

func (p *Problems) merge(other Problems) {
	p.Errors = append(p.Errors, other.Errors...)
	p.Warnings = append(p.Warnings, other.Warnings...)
}

// prefixed returns a copy with every message prefixed by label
func (p Problems) prefixed(label string) Problems {
	var out Problems
	for _, e := range p.Errors {
		out.Errors = append(out.Errors, label+": "+e)
	}
	for _, w := range p.Warnings {
		out.Warnings = append(out.Warnings, label+": "+w)
	}
	return out
}

// ValidationError is returned when a mutation would leave the schema
// inconsistent
type ValidationError struct {
	Problems Problems
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchemaInvalid, strings.Join(e.Problems.Errors, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrSchemaInvalid
}

// describe turns a struct-tag failure into a readable message. The leading
// type name is dropped from the field path.
func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	text := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		if text {
			return fmt.Sprintf("%s must be %s characters or less", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		if text {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func structProblems(v *validator.Validate, s any) Problems {
	var p Problems
	err := v.Struct(s)
	if err == nil {
		return p
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		p.errorf("%v", err)
		return p
	}
	for _, fe := range fieldErrs {
		p.Errors = append(p.Errors, describe(fe))
	}
	return p
}
