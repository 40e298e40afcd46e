package models

import (
	"time"
)

// Well-known member and group fields that formulas may reference without a
// matching column
const (
	FieldMemberName         = "memberName"
	FieldLoanAmount         = "loanAmount"
	FieldContributionAmount = "contributionAmount"
	FieldFamilyMembersCount = "familyMembersCount"
	FieldSavingsBalance     = "savingsBalance"
	FieldTotalGroupProfit   = "totalGroupProfit"
	FieldTotalMembers       = "totalMembers"
)

// StandardFields lists the fields every group's rows are expected to carry
var StandardFields = []string{
	FieldMemberName,
	FieldLoanAmount,
	FieldContributionAmount,
	FieldFamilyMembersCount,
	FieldSavingsBalance,
	FieldTotalGroupProfit,
	FieldTotalMembers,
}

// CalculationContext is the per-row bag of values a formula or property is
// evaluated against. It is built fresh for each evaluation and never stored.
type CalculationContext struct {
	MemberData map[string]any
	GroupData  map[string]any
	PeriodData map[string]any
	// Properties holds pre-resolved property values by property id
	Properties map[string]any
	// AllMembers is the member data of every row in the batch
	AllMembers []map[string]any
}

// Field looks up a raw field in member, group and period data, in that order.
// totalMembers falls back to the size of AllMembers when no data carries it.
func (c *CalculationContext) Field(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	for _, src := range []map[string]any{c.MemberData, c.GroupData, c.PeriodData} {
		if v, ok := src[name]; ok {
			return v, true
		}
	}
	if name == FieldTotalMembers && c.AllMembers != nil {
		return len(c.AllMembers), true
	}
	return nil, false
}

// MemberCustomData is the persisted per-member state for one schema version
type MemberCustomData struct {
	ID               string         `json:"id"`
	MemberID         string         `json:"memberId"`
	GroupID          string         `json:"groupId"`
	SchemaID         string         `json:"schemaId"`
	SchemaVersion    int            `json:"schemaVersion"`
	ColumnValues     map[string]any `json:"columnValues"`
	CalculatedValues map[string]any `json:"calculatedValues"`
	LastUpdated      time.Time      `json:"lastUpdated"`
	UpdatedBy        string         `json:"updatedBy"`
}
