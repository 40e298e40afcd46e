package templates

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgcolumns/formula"
	"shgcolumns/models"
)

func TestCatalog_Contents(t *testing.T) {
	t.Parallel()

	all := All()
	ids := make([]string, len(all))
	for i, tmpl := range all {
		ids[i] = tmpl.ID
		assert.True(t, tmpl.IsSystemTemplate, tmpl.ID)
	}
	assert.Equal(t, []string{LoanInsurance, GroupSocial, LateFine, EducationLoan, ProfitShare, Attendance}, ids)

	profit, ok := Get(ProfitShare)
	require.True(t, ok)
	assert.False(t, profit.DefaultPermissions.CanDelete)

	_, ok = Get("does-not-exist")
	assert.False(t, ok)

	assert.Len(t, ByCategory(models.TemplateCategoryInsurance), 1)
	assert.Empty(t, ByCategory("unknown"))
}

func TestCatalog_CopiesAreIndependent(t *testing.T) {
	t.Parallel()

	first, ok := Get(LoanInsurance)
	require.True(t, ok)
	first.DefaultProperties[0].Value = 99.0
	first.DefaultFormula.Expression = "1"
	first.Tags[0] = "changed"

	second, ok := Get(LoanInsurance)
	require.True(t, ok)
	assert.Equal(t, 0.2, second.DefaultProperties[0].Value)
	assert.Equal(t, "loanAmount * (insurance-percent / 100)", second.DefaultFormula.Expression)
	assert.Equal(t, "insurance", second.Tags[0])
}

func TestInstantiate(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tmpl, ok := Get(LoanInsurance)
	require.True(t, ok)

	col := Instantiate(tmpl, "admin-1", now)
	assert.True(t, strings.HasPrefix(col.ID, "col-"))
	assert.Equal(t, LoanInsurance, col.TemplateID)
	assert.Equal(t, "Loan Insurance", col.Name)
	assert.Equal(t, models.DataTypePropertyDriven, col.DataType)
	assert.True(t, col.IsActive)
	assert.Equal(t, "admin-1", col.CreatedBy)
	assert.Equal(t, now, col.CreatedAt)
	require.NotNil(t, col.Template)
	assert.Equal(t, tmpl, *col.Template)

	// edits to the column never flow back into the template or its snapshot
	col.Properties[0].Value = 1.5
	col.Formula.Expression = "loanAmount"
	assert.Equal(t, 0.2, tmpl.DefaultProperties[0].Value)
	assert.Equal(t, 0.2, col.Template.DefaultProperties[0].Value)
	assert.Equal(t, "loanAmount * (insurance-percent / 100)", tmpl.DefaultFormula.Expression)

	other := Instantiate(tmpl, "admin-1", now)
	assert.NotEqual(t, col.ID, other.ID)
}

func TestInstantiateByID(t *testing.T) {
	t.Parallel()

	col, err := InstantiateByID(Attendance, "admin-1", time.Now())
	require.NoError(t, err)
	assert.True(t, col.HasOption("present"))
	assert.Equal(t, models.AggregateTypeCount, col.DisplayConfig.AggregateType)

	_, err = InstantiateByID("bonus", "admin-1", time.Now())
	assert.Error(t, err)
}

func TestCatalog_FormulasResolve(t *testing.T) {
	t.Parallel()

	for _, tmpl := range All() {
		tmpl := tmpl
		t.Run(tmpl.ID, func(t *testing.T) {
			t.Parallel()
			if tmpl.DefaultFormula == nil {
				return
			}

			syms := formula.NewSymbols(nil, tmpl.DefaultProperties, models.StandardFields)
			assert.Empty(t, formula.Validate(tmpl.DefaultFormula.Expression, syms, ""))

			refs := formula.ExtractReferences(tmpl.DefaultFormula.Expression, syms)
			assert.ElementsMatch(t, tmpl.DefaultFormula.ReferencedColumns, refs.Fields)
			assert.ElementsMatch(t, tmpl.DefaultFormula.ReferencedProperties, refs.Properties)
		})
	}
}
