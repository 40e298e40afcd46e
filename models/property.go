package models

import (
	"github.com/shopspring/decimal"
)

// PropertyType selects how a property contributes to a row
type PropertyType string

const (
	PropertyTypePercentage        PropertyType = "percentage"
	PropertyTypeFixedAmount       PropertyType = "fixed-amount"
	PropertyTypePerMemberAmount   PropertyType = "per-member-amount"
	PropertyTypeTieredAmount      PropertyType = "tiered-amount"
	PropertyTypeConditionalAmount PropertyType = "conditional-amount"
)

// ConditionalOperator compares a context field against a condition value
type ConditionalOperator string

const (
	OperatorGreaterThan  ConditionalOperator = "greater-than"
	OperatorLessThan     ConditionalOperator = "less-than"
	OperatorEquals       ConditionalOperator = "equals"
	OperatorNotEquals    ConditionalOperator = "not-equals"
	OperatorGreaterEqual ConditionalOperator = "greater-equal"
	OperatorLessEqual    ConditionalOperator = "less-equal"
	OperatorContains     ConditionalOperator = "contains"
	OperatorStartsWith   ConditionalOperator = "starts-with"
	OperatorEndsWith     ConditionalOperator = "ends-with"
)

// IsValid reports whether the operator is one the resolver understands
func (op ConditionalOperator) IsValid() bool {
	switch op {
	case OperatorGreaterThan, OperatorLessThan, OperatorEquals, OperatorNotEquals,
		OperatorGreaterEqual, OperatorLessEqual, OperatorContains, OperatorStartsWith, OperatorEndsWith:
		return true
	}
	return false
}

// PropertyTier is one band of a tiered-amount property. Condition uses the
// formula grammar and is evaluated against the row context.
type PropertyTier struct {
	Condition   string          `json:"condition"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description,omitempty"`
}

// PropertyCondition is one rule of a conditional-amount property
type PropertyCondition struct {
	Field    string              `json:"field" validate:"required"`
	Operator ConditionalOperator `json:"operator" validate:"required"`
	Value    any                 `json:"value"`
	Result   any                 `json:"result"`
}

// ColumnProperty is a reusable named parameter consumed by formulas and
// property-driven columns
type ColumnProperty struct {
	ID          string              `json:"id" validate:"required"`
	Name        string              `json:"name" validate:"required,max=50"`
	Type        PropertyType        `json:"type" validate:"required,oneof=percentage fixed-amount per-member-amount tiered-amount conditional-amount"`
	Value       any                 `json:"value"`
	Description string              `json:"description,omitempty" validate:"max=200"`
	Tiers       []PropertyTier      `json:"tiers,omitempty"`
	Conditions  []PropertyCondition `json:"conditions,omitempty" validate:"dive"`
}
