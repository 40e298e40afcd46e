package formula

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgcolumns/models"
)

type mapEnv map[string]Value

func (m mapEnv) Resolve(ref Reference) (Value, error) {
	if v, ok := m[ref.ID]; ok {
		return v, nil
	}
	return Value{}, Errorf(ReasonUnresolvedReference, ref.ID, "unknown reference")
}

func num(s string) Value {
	return Number(decimal.RequireFromString(s))
}

func testSymbols() *Symbols {
	columns := []models.CustomColumn{
		{ID: "col-1", Name: "Loan Balance", Description: "Outstanding loan"},
		{ID: "savings", Name: "Savings"},
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
		{ID: "c", Name: "C"},
	}
	properties := []models.ColumnProperty{
		{ID: "insurance-percent", Name: "Insurance Percentage", Type: models.PropertyTypePercentage, Value: 0.2},
	}
	return NewSymbols(columns, properties, models.StandardFields)
}

func TestProgram_Eval(t *testing.T) {
	t.Parallel()

	env := mapEnv{
		"loanAmount":        num("50000"),
		"insurance-percent": num("0.2"),
		"col-1":             num("1000"),
		"savings":           num("250"),
		"name":              String("Lakshmi"),
		"amountText":        String("1,500"),
	}

	tests := []struct {
		name     string
		expr     string
		expected Value
	}{
		{"loan insurance", "loanAmount * (insurance-percent / 100)", num("100")},
		{"precedence", "2 + 3 * 4", num("14")},
		{"parentheses", "(2 + 3) * 4", num("20")},
		{"unary minus", "-(2 + 3)", num("-5")},
		{"exact division", "10 / 4", num("2.5")},
		{"column by id", "col-1 + savings", num("1250")},
		{"column by name", "Loan Balance / 10", num("100")},
		{"numeric string coerces", "amountText * 2", num("3000")},
		{"comparison", "savings > 100", Bool(true)},
		{"equality", "savings = 250", Bool(true)},
		{"double equals", "savings == 250", Bool(true)},
		{"string equality", "name != name", Bool(false)},
		{"sum", "SUM(1, 2, 3)", num("6")},
		{"avg", "AVG(100, 200, 300)", num("200")},
		{"min", "MIN(savings, col-1, 900)", num("250")},
		{"max", "MAX(savings, col-1, 900)", num("1000")},
		{"if true branch", "IF(savings > 100, 1, 2)", num("1")},
		{"if skips other branch", "IF(0 = 0, 1, 1 / 0)", num("1")},
		{"round", "ROUND(2.345, 2)", num("2.35")},
		{"round default", "ROUND(2.5)", num("3")},
		{"abs", "ABS(-4)", num("4")},
		{"sqrt", "SQRT(16)", num("4")},
		{"count", "COUNT(savings, name, 0)", num("3")},
		{"lowercase function", "sum(1, 2)", num("3")},
	}

	syms := testSymbols()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			prog, err := Parse(tt.expr, syms)
			require.NoError(t, err)

			got, err := prog.Eval(env)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
			assert.Equal(t, tt.expected.Kind, got.Kind)
		})
	}
}

func TestProgram_EvalErrors(t *testing.T) {
	t.Parallel()

	env := mapEnv{
		"savings": num("250"),
		"name":    String("Lakshmi"),
		"empty":   Null(),
	}

	tests := []struct {
		name   string
		expr   string
		reason Reason
	}{
		{"division by zero", "savings / (10 - 10)", ReasonDivisionByZero},
		{"unresolved reference", "bogus + 1", ReasonUnresolvedReference},
		{"missing value", "empty * 2", ReasonMissingValue},
		{"non-numeric arithmetic", "name * 2", ReasonNonNumeric},
		{"non-numeric function argument", "SUM(name, 1)", ReasonNonNumeric},
		{"negative square root", "SQRT(0 - 1)", ReasonDomain},
		{"fractional round places", "ROUND(1.5, 0.5)", ReasonInvalidValue},
	}

	syms := testSymbols()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			prog, err := Parse(tt.expr, syms)
			require.NoError(t, err)

			_, err = prog.Eval(env)
			require.Error(t, err)

			var evalErr *EvaluationError
			require.ErrorAs(t, err, &evalErr)
			assert.Equal(t, tt.reason, evalErr.Reason)
		})
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		expr   string
		reason Reason
	}{
		{"dangling operator", "1 +", ReasonSyntax},
		{"unknown function", "FOO(1)", ReasonUnknownFunction},
		{"too many arguments", "ROUND(1, 2, 3)", ReasonArity},
		{"if needs three arguments", "IF(1, 2)", ReasonArity},
		{"missing close paren", "(1 + 2", ReasonSyntax},
		{"stray close paren", "1 + 2)", ReasonSyntax},
		{"empty", "   ", ReasonSyntax},
		{"bang alone", "1 ! 2", ReasonSyntax},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tt.expr, testSymbols())
			require.Error(t, err)

			var synErr *SyntaxError
			assert.ErrorAs(t, err, &synErr)
			assert.Equal(t, tt.reason, AsEvaluationError(err).Reason)
		})
	}
}

func TestCompiled_Conditions(t *testing.T) {
	t.Parallel()

	f := &models.ColumnFormula{
		ID:         "fine",
		Expression: "0",
		Conditions: []models.FormulaCondition{
			{If: "loanAmount > 10000", Then: "500"},
			{If: "loanAmount > 0", Then: "100"},
		},
	}
	compiled, err := Compile(f, testSymbols())
	require.NoError(t, err)

	tests := []struct {
		name     string
		loan     string
		expected string
	}{
		{"first branch wins", "50000", "500"},
		{"second branch", "5000", "100"},
		{"falls back to expression", "0", "0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := compiled.Eval(mapEnv{"loanAmount": num(tt.loan)})
			require.NoError(t, err)
			assert.True(t, num(tt.expected).Equal(got), "got %s", got)
		})
	}
}

func TestCompiled_FallbackAndValidation(t *testing.T) {
	t.Parallel()

	t.Run("unmatched conditions fall back to the base expression", func(t *testing.T) {
		t.Parallel()

		f := &models.ColumnFormula{
			Expression: "x * 10",
			Conditions: []models.FormulaCondition{{If: "x > 100", Then: "1", Else: "2"}},
		}
		compiled, err := Compile(f, nil)
		require.NoError(t, err)

		got, err := compiled.Eval(mapEnv{"x": num("5")})
		require.NoError(t, err)
		assert.True(t, num("50").Equal(got), "got %s", got)

		got, err = compiled.Eval(mapEnv{"x": num("500")})
		require.NoError(t, err)
		assert.True(t, num("1").Equal(got), "got %s", got)
	})

	t.Run("minimum violated", func(t *testing.T) {
		t.Parallel()

		floor := 0.0
		f := &models.ColumnFormula{
			Expression: "x - 10",
			Validation: &models.FormulaValidation{Min: &floor},
		}
		compiled, err := Compile(f, nil)
		require.NoError(t, err)

		_, err = compiled.Eval(mapEnv{"x": num("5")})
		var evalErr *EvaluationError
		require.ErrorAs(t, err, &evalErr)
		assert.Equal(t, ReasonOutOfRange, evalErr.Reason)
	})

	t.Run("bad condition does not compile", func(t *testing.T) {
		t.Parallel()

		f := &models.ColumnFormula{
			Expression: "1",
			Conditions: []models.FormulaCondition{{If: "x >", Then: "1"}},
		}
		_, err := Compile(f, nil)
		assert.ErrorContains(t, err, "condition 1 if")
	})
}
