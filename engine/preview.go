package engine

import (
	"time"

	"shgcolumns/models"
)

var sampleMeetingDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

// SampleMembers is the fixed member data used for schema previews
func SampleMembers() []map[string]any {
	return []map[string]any{
		{models.FieldMemberName: "Aarti Sharma", models.FieldLoanAmount: 50000, models.FieldContributionAmount: 500, models.FieldFamilyMembersCount: 4, "attendance": "present", "meetingDate": sampleMeetingDate},
		{models.FieldMemberName: "Bhavna Devi", models.FieldLoanAmount: 30000, models.FieldContributionAmount: 500, models.FieldFamilyMembersCount: 3, "attendance": "present", "meetingDate": sampleMeetingDate},
		{models.FieldMemberName: "Champa Kumari", models.FieldLoanAmount: 75000, models.FieldContributionAmount: 500, models.FieldFamilyMembersCount: 5, "attendance": "absent", "meetingDate": sampleMeetingDate},
		{models.FieldMemberName: "Deepika Singh", models.FieldLoanAmount: 25000, models.FieldContributionAmount: 500, models.FieldFamilyMembersCount: 2, "attendance": "present", "meetingDate": sampleMeetingDate},
	}
}

// SampleGroup is the fixed group data used for schema previews
func SampleGroup() map[string]any {
	return map[string]any{
		models.FieldTotalGroupProfit: 12000,
		models.FieldTotalMembers:     12,
	}
}

// sampleValue is the placeholder entered value for a column in previews
func sampleValue(c *models.CustomColumn) any {
	switch c.DataType {
	case models.DataTypeCurrency, models.DataTypeNumber:
		return 1000
	case models.DataTypePercentage:
		return 10
	case models.DataTypeDropdown:
		if len(c.DropdownOptions) > 0 {
			return c.DropdownOptions[0].Value
		}
	case models.DataTypeBoolean:
		return true
	case models.DataTypeDate:
		return sampleMeetingDate
	case models.DataTypeText:
		return "Sample Value"
	}
	return nil
}

// sampleContext builds a preview context from member data. Entered columns
// the member data does not cover get their placeholder value.
func (e *Evaluator) sampleContext(member map[string]any) *models.CalculationContext {
	data := make(map[string]any, len(member)+len(e.columns))
	for k, v := range member {
		data[k] = v
	}
	for _, c := range e.columns {
		if c.IsComputed() {
			continue
		}
		if _, ok := lookupEntered(&models.CalculationContext{MemberData: data}, c); ok {
			continue
		}
		if v := sampleValue(c); v != nil {
			data[c.ID] = v
		}
	}
	return &models.CalculationContext{MemberData: data, GroupData: SampleGroup(), AllMembers: SampleMembers()}
}

// Preview evaluates a column, which need not be part of the schema yet,
// against the first sample member. A column with an existing id replaces
// that column for the preview.
func Preview(s *models.GroupCustomSchema, col models.CustomColumn, opts Options) Cell {
	draft := s.Clone()
	if existing, ok := draft.Column(col.ID); ok {
		*existing = col.Clone()
	} else {
		draft.Columns = append(draft.Columns, col.Clone())
	}
	e := New(draft, opts)
	return e.EvaluateColumn(e.sampleContext(SampleMembers()[0]), col.ID)
}

// PreviewSheet evaluates the whole schema against every sample member and
// summarises the result
func PreviewSheet(s *models.GroupCustomSchema, opts Options) ([]Row, []ColumnSummary) {
	e := New(s, opts)
	members := SampleMembers()
	contexts := make([]*models.CalculationContext, len(members))
	for i, m := range members {
		contexts[i] = e.sampleContext(m)
	}
	rows := e.EvaluateAll(contexts)
	return rows, e.Summaries(rows)
}
