package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tokens := Tokenize("SUM(col-1, insurance-percent) * 2 + mystery", testSymbols())
	require.Len(t, tokens, 10)

	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	assert.Equal(t, []TokenType{
		TokenFunction,
		TokenParenthesis,
		TokenColumn,
		TokenOperator,
		TokenProperty,
		TokenParenthesis,
		TokenOperator,
		TokenNumber,
		TokenOperator,
		TokenOperator,
	}, types)

	assert.Equal(t, "SUM", tokens[0].DisplayName)
	assert.Equal(t, "col-1", tokens[2].RefID)
	assert.Equal(t, "Loan Balance", tokens[2].DisplayName)
	assert.Equal(t, "Outstanding loan", tokens[2].Description)
	assert.Equal(t, "Insurance Percentage", tokens[4].DisplayName)
	assert.Equal(t, "mystery", tokens[9].Value)
}

func TestTokenize_FunctionNeedsParen(t *testing.T) {
	t.Parallel()

	tokens := Tokenize("sum + 1", nil)
	require.Len(t, tokens, 3)
	assert.Equal(t, TokenOperator, tokens[0].Type)
}

func TestDisplayNamesPreserveReferences(t *testing.T) {
	t.Parallel()

	exprs := []string{
		"col-1 * (insurance-percent / 100)",
		"SUM(savings, col-1) + Loan Balance",
		"savings * 2",
		"IF(Savings > 100, insurance-percent, 0)",
		"loanAmount * (Insurance Percentage / 100)",
	}

	syms := testSymbols()
	for _, expr := range exprs {
		expr := expr
		t.Run(expr, func(t *testing.T) {
			t.Parallel()

			want := ExtractReferences(expr, syms)
			rejoined := JoinDisplayNames(Tokenize(expr, syms))
			got := ExtractReferences(rejoined, syms)

			assert.ElementsMatch(t, want.Columns, got.Columns, "rejoined: %s", rejoined)
			assert.ElementsMatch(t, want.Properties, got.Properties, "rejoined: %s", rejoined)
		})
	}
}

func TestExtractReferences(t *testing.T) {
	t.Parallel()

	refs := ExtractReferences("col-1 + Loan Balance + savings * insurance-percent + loanAmount + ROUND(1)", testSymbols())
	assert.Equal(t, []string{"col-1", "savings"}, refs.Columns)
	assert.Equal(t, []string{"insurance-percent"}, refs.Properties)
	assert.Equal(t, []string{"loanAmount"}, refs.Fields)
}
