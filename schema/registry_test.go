package schema

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgcolumns/models"
	"shgcolumns/templates"
)

var testNow = time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)

func newTestRegistry() *Registry {
	n := 0
	return NewRegistry(
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("col-gen-%d", n)
		}),
	)
}

func numberColumn(id, name string) models.CustomColumn {
	return models.CustomColumn{
		ID:          id,
		Name:        name,
		DataType:    models.DataTypeNumber,
		IsActive:    true,
		Permissions: models.DefaultPermissions(),
	}
}

func calculatedColumn(id, name, expr string, refs ...string) models.CustomColumn {
	return models.CustomColumn{
		ID:          id,
		Name:        name,
		DataType:    models.DataTypeCalculated,
		IsActive:    true,
		Formula:     &models.ColumnFormula{ID: id + "-formula", Expression: expr, ReferencedColumns: refs},
		Permissions: models.DefaultPermissions(),
	}
}

// buildSchema adds the columns in order and fails the test on any error
func buildSchema(t *testing.T, r *Registry, cols ...models.CustomColumn) *models.GroupCustomSchema {
	t.Helper()
	s := r.NewDefaultSchema("group-1", "admin")
	for _, c := range cols {
		var err error
		s, err = r.AddColumn(s, c)
		require.NoError(t, err, "adding %s", c.ID)
	}
	return s
}

func problemsOf(t *testing.T, err error) Problems {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, errors.Is(err, ErrSchemaInvalid))
	return verr.Problems
}

func assertHasMessage(t *testing.T, msgs []string, want string) {
	t.Helper()
	for _, m := range msgs {
		if strings.Contains(m, want) {
			return
		}
	}
	t.Errorf("no message containing %q in %q", want, msgs)
}

func withoutTimestamps(s *models.GroupCustomSchema) *models.GroupCustomSchema {
	out := s.Clone()
	out.UpdatedAt = time.Time{}
	for i := range out.Columns {
		out.Columns[i].UpdatedAt = time.Time{}
	}
	return out
}

func TestRegistry_NewDefaultSchema(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	s := r.NewDefaultSchema("group-7", "")
	assert.Equal(t, "schema-group-7", s.ID)
	assert.Equal(t, DefaultSchemaName, s.Name)
	assert.Equal(t, 1, s.Version)
	assert.True(t, s.IsDefault)
	assert.True(t, s.IsActive)
	assert.Equal(t, SystemActor, s.CreatedBy)
	assert.Empty(t, r.Validate(s).Errors)
}

func TestRegistry_AddColumn(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	base := buildSchema(t, r, numberColumn("col-a", "Savings"))

	out, err := r.AddColumn(base, models.CustomColumn{
		Name:        "Share Value",
		DataType:    models.DataTypeCurrency,
		IsActive:    true,
		Permissions: models.DefaultPermissions(),
	})
	require.NoError(t, err)

	require.Len(t, out.Columns, 2)
	added := out.Columns[1]
	assert.Equal(t, "col-gen-1", added.ID)
	assert.Equal(t, 2, added.Order)
	assert.Equal(t, models.FormatTypeCurrency, added.DisplayConfig.FormatType)
	assert.Equal(t, testNow, added.CreatedAt)

	// the input schema is untouched
	assert.Len(t, base.Columns, 1)
}

func TestRegistry_AddThenDeleteRoundTrip(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	base := buildSchema(t, r,
		numberColumn("col-a", "Savings"),
		calculatedColumn("col-b", "Double Savings", "col-a * 2"),
	)

	additions := []models.CustomColumn{
		numberColumn("col-c", "Attendance Days"),
		calculatedColumn("col-d", "Savings Plus Loan", "col-a + loanAmount"),
		{
			ID:              "col-e",
			Name:            "Status",
			DataType:        models.DataTypeDropdown,
			DropdownOptions: []models.DropdownOption{{Value: "active", Label: "Active"}},
			Permissions:     models.DefaultPermissions(),
		},
	}

	for _, col := range additions {
		col := col
		t.Run(col.ID, func(t *testing.T) {
			t.Parallel()

			added, err := r.AddColumn(base, col)
			require.NoError(t, err)
			deleted, problems, err := r.DeleteColumn(added, col.ID)
			require.NoError(t, err)
			assert.Empty(t, problems.Errors)
			assert.Equal(t, withoutTimestamps(base), withoutTimestamps(deleted))
		})
	}
}

func TestRegistry_AddColumnValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		column   models.CustomColumn
		expected string
	}{
		{
			name:     "dropdown without options",
			column:   models.CustomColumn{ID: "x", Name: "Status", DataType: models.DataTypeDropdown},
			expected: MsgDropdownOptionsRequired,
		},
		{
			name:     "calculated without formula",
			column:   models.CustomColumn{ID: "x", Name: "Total", DataType: models.DataTypeCalculated},
			expected: MsgFormulaRequired,
		},
		{
			name:     "property-driven without properties",
			column:   models.CustomColumn{ID: "x", Name: "Insurance", DataType: models.DataTypePropertyDriven},
			expected: MsgPropertiesRequired,
		},
		{
			name:     "options on a number column",
			column:   models.CustomColumn{ID: "x", Name: "Days", DataType: models.DataTypeNumber, DropdownOptions: []models.DropdownOption{{Value: "a", Label: "A"}}},
			expected: "Only dropdown columns can have options",
		},
		{
			name:     "name too long",
			column:   models.CustomColumn{ID: "x", Name: strings.Repeat("n", 51), DataType: models.DataTypeNumber},
			expected: "Name must be 50 characters or less",
		},
		{
			name:     "missing name",
			column:   models.CustomColumn{ID: "x", DataType: models.DataTypeNumber},
			expected: "Name is required",
		},
		{
			name:     "unknown data type",
			column:   models.CustomColumn{ID: "x", Name: "Odd", DataType: "money"},
			expected: "DataType must be one of",
		},
		{
			name:     "width below minimum",
			column:   models.CustomColumn{ID: "x", Name: "Narrow", DataType: models.DataTypeNumber, DisplayConfig: models.DisplayConfig{Width: 10}},
			expected: "DisplayConfig.Width must be at least 50",
		},
		{
			name:     "too many decimal places",
			column:   models.CustomColumn{ID: "x", Name: "Precise", DataType: models.DataTypeNumber, DisplayConfig: models.DisplayConfig{DecimalPlaces: 11}},
			expected: "DisplayConfig.DecimalPlaces must be at most 10",
		},
		{
			name:     "unbalanced formula",
			column:   calculatedColumn("x", "Broken", "(col-a + 2"),
			expected: "Mismatched parentheses",
		},
		{
			name:     "formula with invalid characters",
			column:   calculatedColumn("x", "Broken", "col-a $ 2"),
			expected: "Invalid characters in expression",
		},
		{
			name:     "dangling column reference",
			column:   calculatedColumn("x", "Broken", "col-999 * 2", "col-999"),
			expected: "Formula references missing columns: col-999",
		},
		{
			name: "dangling property reference",
			column: models.CustomColumn{
				ID: "x", Name: "Broken", DataType: models.DataTypeCalculated,
				Formula: &models.ColumnFormula{Expression: "col-a", ReferencedProperties: []string{"bonus-rate"}},
			},
			expected: "Formula references missing properties: bonus-rate",
		},
		{
			name: "bad tier condition",
			column: models.CustomColumn{
				ID: "x", Name: "Tiered", DataType: models.DataTypePropertyDriven,
				Properties: []models.ColumnProperty{{
					ID: "tier", Name: "Tier", Type: models.PropertyTypeTieredAmount,
					Tiers: []models.PropertyTier{{Condition: "loanAmount >", Value: decimal.NewFromInt(5)}},
				}},
			},
			expected: "Property Tier tier 1:",
		},
		{
			name: "unknown conditional operator",
			column: models.CustomColumn{
				ID: "x", Name: "Conditional", DataType: models.DataTypePropertyDriven,
				Properties: []models.ColumnProperty{{
					ID: "cond", Name: "Cond", Type: models.PropertyTypeConditionalAmount,
					Conditions: []models.PropertyCondition{{Field: "loanAmount", Operator: "between", Value: 1, Result: 2}},
				}},
			},
			expected: `unknown operator "between"`,
		},
		{
			name: "non-numeric percentage",
			column: models.CustomColumn{
				ID: "x", Name: "Rate", DataType: models.DataTypePropertyDriven,
				Properties: []models.ColumnProperty{{ID: "rate", Name: "Rate", Type: models.PropertyTypePercentage, Value: "high"}},
			},
			expected: "Property Rate must have a numeric value",
		},
		{
			name:     "duplicate id",
			column:   numberColumn("col-a", "Again"),
			expected: "Duplicate column id: col-a",
		},
	}

	r := newTestRegistry()
	base := buildSchema(t, r, numberColumn("col-a", "Savings"))

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := r.AddColumn(base, tt.column)
			assert.Nil(t, out)
			assertHasMessage(t, problemsOf(t, err).Errors, tt.expected)
		})
	}
}

func TestRegistry_SelfReferenceIsAllowed(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	base := buildSchema(t, r, numberColumn("col-a", "Savings"))

	_, err := r.AddColumn(base, calculatedColumn("col-self", "Running", "col-self + col-a", "col-self"))
	assert.NoError(t, err)
}

func TestRegistry_AddColumnSyncsReferences(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	base := buildSchema(t, r, numberColumn("col-a", "Savings"))

	out, err := r.AddColumn(base, calculatedColumn("col-b", "Total", "Savings + loanAmount + unknownThing * 0"))
	require.Error(t, err)
	assert.Nil(t, out)

	out, err = r.AddColumn(base, calculatedColumn("col-b", "Total", "Savings + loanAmount"))
	require.NoError(t, err)
	col, ok := out.Column("col-b")
	require.True(t, ok)
	assert.Equal(t, []string{"col-a", models.FieldLoanAmount}, col.Formula.ReferencedColumns)
}

func TestRegistry_DeleteColumnFlagsDependents(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	base := buildSchema(t, r,
		numberColumn("col-savings", "Savings"),
		calculatedColumn("col-double", "Double Savings", "col-savings * 2"),
	)

	out, problems, err := r.DeleteColumn(base, "col-savings")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Len(t, out.Columns, 1)
	assert.Equal(t, []string{"Double Savings: Formula references missing columns: col-savings"}, problems.Errors)

	// the dependent formula is kept as is and still fails whole-schema validation
	dependent, ok := out.Column("col-double")
	require.True(t, ok)
	assert.Equal(t, "col-savings * 2", dependent.Formula.Expression)
	assertHasMessage(t, r.Validate(out).Errors, "Formula references missing columns: col-savings")
}

func TestRegistry_DeleteColumnErrors(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	locked := numberColumn("col-locked", "Profit Share")
	locked.Permissions.CanDelete = false
	base := buildSchema(t, r, locked)

	_, _, err := r.DeleteColumn(base, "col-missing")
	assert.ErrorIs(t, err, ErrColumnNotFound)

	_, _, err = r.DeleteColumn(base, "col-locked")
	assert.ErrorIs(t, err, ErrColumnLocked)
}

func TestRegistry_UpdateColumn(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	base := buildSchema(t, r, numberColumn("col-a", "Savings"))

	name := "Monthly Savings"
	currency := models.DataTypeCurrency
	out, err := r.UpdateColumn(base, "col-a", ColumnPatch{Name: &name, DataType: &currency})
	require.NoError(t, err)

	col, _ := out.Column("col-a")
	assert.Equal(t, name, col.Name)
	assert.Equal(t, models.DataTypeCurrency, col.DataType)
	assert.Equal(t, models.FormatTypeCurrency, col.DisplayConfig.FormatType)

	original, _ := base.Column("col-a")
	assert.Equal(t, "Savings", original.Name)

	dropdown := models.DataTypeDropdown
	_, err = r.UpdateColumn(base, "col-a", ColumnPatch{DataType: &dropdown})
	assertHasMessage(t, problemsOf(t, err).Errors, MsgDropdownOptionsRequired)

	_, err = r.UpdateColumn(base, "col-x", ColumnPatch{Name: &name})
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestRegistry_UpdateColumnFormula(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	base := buildSchema(t, r, numberColumn("col-a", "Savings"), calculatedColumn("col-b", "Total", "col-a"))

	out, err := r.UpdateColumn(base, "col-b", ColumnPatch{
		Formula: &models.ColumnFormula{ID: "f", Expression: "col-a + contributionAmount"},
	})
	require.NoError(t, err)
	col, _ := out.Column("col-b")
	assert.Equal(t, []string{"col-a", models.FieldContributionAmount}, col.Formula.ReferencedColumns)

	_, err = r.UpdateColumn(base, "col-b", ColumnPatch{RemoveFormula: true})
	assertHasMessage(t, problemsOf(t, err).Errors, MsgFormulaRequired)
}

func TestRegistry_UpdateLockedColumn(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	locked := numberColumn("col-a", "Savings")
	locked.Permissions.CanEdit = false
	base := buildSchema(t, r, locked)

	name := "Renamed"
	_, err := r.UpdateColumn(base, "col-a", ColumnPatch{Name: &name})
	assert.ErrorIs(t, err, ErrColumnLocked)
}

func TestRegistry_ReorderColumns(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	base := buildSchema(t, r,
		numberColumn("col-a", "A"),
		numberColumn("col-b", "B"),
		numberColumn("col-c", "C"),
		numberColumn("col-d", "D"),
	)

	out, err := r.ReorderColumns(base, []string{"col-c", "col-a"})
	require.NoError(t, err)

	var ids []string
	for _, c := range out.ActiveColumns() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"col-c", "col-a", "col-b", "col-d"}, ids)
	for i, c := range out.ActiveColumns() {
		assert.Equal(t, i+1, c.Order)
	}

	_, err = r.ReorderColumns(base, []string{"col-z"})
	assert.ErrorIs(t, err, ErrColumnNotFound)

	_, err = r.ReorderColumns(base, []string{"col-a", "col-a"})
	assert.Error(t, err)
}

func TestRegistry_DuplicateColumn(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	base := buildSchema(t, r, numberColumn("col-a", "Savings"), calculatedColumn("col-b", "Total", "col-a * 2"))

	out, err := r.DuplicateColumn(base, "col-b")
	require.NoError(t, err)
	require.Len(t, out.Columns, 3)

	dup := out.Columns[2]
	assert.Equal(t, "col-gen-1", dup.ID)
	assert.Equal(t, "Total (Copy)", dup.Name)
	assert.Equal(t, 3, dup.Order)

	dup.Formula.Expression = "0"
	original, _ := out.Column("col-b")
	assert.Equal(t, "col-a * 2", original.Formula.Expression)

	_, err = r.DuplicateColumn(base, "col-z")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestRegistry_ToggleColumn(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	base := buildSchema(t, r, numberColumn("col-a", "Savings"), numberColumn("col-b", "Loans"))

	out, err := r.ToggleColumn(base, "col-a")
	require.NoError(t, err)
	require.Len(t, out.ActiveColumns(), 1)
	assert.Equal(t, "col-b", out.ActiveColumns()[0].ID)

	out, err = r.ToggleColumn(out, "col-a")
	require.NoError(t, err)
	assert.Len(t, out.ActiveColumns(), 2)
}

func TestRegistry_AddFromTemplate(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	base := buildSchema(t, r)

	for _, tmpl := range templates.All() {
		var err error
		base, err = r.AddFromTemplate(base, tmpl.ID, "admin")
		require.NoError(t, err, tmpl.ID)
	}
	assert.Len(t, base.Columns, len(templates.All()))
	assert.Empty(t, r.Validate(base).Errors)

	insurance := base.Columns[0]
	assert.Equal(t, templates.LoanInsurance, insurance.TemplateID)
	assert.Equal(t, 1, insurance.Order)
	assert.Contains(t, insurance.Formula.ReferencedColumns, models.FieldLoanAmount)

	_, err := r.AddFromTemplate(base, "missing", "admin")
	assert.Error(t, err)
}

func TestRegistry_BumpVersion(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	v1 := buildSchema(t, r, numberColumn("col-a", "Savings"))
	v2 := r.BumpVersion(v1, "treasurer")
	v3 := r.BumpVersion(v2, "treasurer")

	assert.Equal(t, 3, v3.Version)
	assert.Equal(t, "treasurer", v3.LastModifiedBy)
	require.NotNil(t, v3.PreviousVersion)
	assert.Equal(t, 2, v3.PreviousVersion.Version)
	assert.Nil(t, v3.PreviousVersion.PreviousVersion)
	assert.Equal(t, 1, v1.Version)
}

func TestRegistry_Validate(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	s := r.NewDefaultSchema("group-1", "admin")
	s.Columns = []models.CustomColumn{
		numberColumn("col-a", "Savings"),
		numberColumn("col-a", "Loan Balance"),
		numberColumn("col-c", "loan balance"),
	}
	s.GlobalProperties = []models.ColumnProperty{
		{ID: "fine", Name: "Fine", Type: models.PropertyTypeFixedAmount, Value: 5},
		{ID: "fine", Name: "Fine Again", Type: models.PropertyTypeFixedAmount, Value: 5},
	}

	p := r.Validate(s)
	assertHasMessage(t, p.Errors, "Duplicate column id: col-a")
	assertHasMessage(t, p.Errors, "Global properties: Duplicate property id: fine")
	assertHasMessage(t, p.Warnings, "share a name")
}

func TestRegistry_WithKnownFields(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithKnownFields("shareCount"))
	s := r.NewDefaultSchema("group-1", "admin")

	_, err := r.AddColumn(s, calculatedColumn("col-a", "Shares", "shareCount * 10"))
	assert.NoError(t, err)
	assert.Contains(t, r.KnownFields(), "shareCount")
	assert.Contains(t, r.KnownFields(), models.FieldLoanAmount)
}

func TestRegistry_ConditionElseIsIgnored(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	fee := calculatedColumn("col-fee", "Fee", "Loan Amount * 0.01", "col-loan")
	fee.Formula.Conditions = []models.FormulaCondition{
		{If: "Loan Amount > 40000", Then: "500", Else: "0"},
	}
	s := buildSchema(t, r, numberColumn("col-loan", "Loan Amount"), fee)

	p := r.Validate(s)
	assert.Empty(t, p.Errors)
	assertHasMessage(t, p.Warnings, "Condition 1 else is ignored; unmatched conditions use the base expression")
}
