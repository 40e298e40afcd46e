package property

import (
	"strings"

	"github.com/shopspring/decimal"

	"shgcolumns/formula"
	"shgcolumns/models"
)

var hundred = decimal.NewFromInt(100)

// Input carries values a referencing column supplies to a property. Nil
// fields fall back to the conventional row fields.
type Input struct {
	// Base is the amount a percentage applies to. Defaults to loanAmount.
	Base *decimal.Decimal
	// Multiplier scales a per-member amount. Defaults to familyMembersCount,
	// or 1 when the row has no such field.
	Multiplier *decimal.Decimal

	// Symbols resolves identifiers in tier conditions the same way the
	// owning column's formula does. Nil allows plain field names only.
	Symbols *formula.Symbols
	// Env evaluates tier conditions. Defaults to ContextEnv.
	Env formula.Env
	// Tiers are the tier conditions already parsed, in tier order. Parsed
	// with Symbols when nil.
	Tiers []*formula.Program
}

// Resolve computes a property's contribution to a row. It never mutates the
// property.
func Resolve(p models.ColumnProperty, ctx *models.CalculationContext, in Input) (formula.Value, error) {
	switch p.Type {
	case models.PropertyTypePercentage:
		rate, err := numericValue(p)
		if err != nil {
			return formula.Value{}, err
		}
		base, err := resolveBase(ctx, in)
		if err != nil {
			return formula.Value{}, err
		}
		return formula.Number(base.Mul(rate).Div(hundred)), nil

	case models.PropertyTypeFixedAmount:
		v := formula.ValueOf(p.Value)
		if v.IsNull() {
			return formula.Value{}, formula.Errorf(formula.ReasonMissingValue, p.ID, "property has no value")
		}
		return v, nil

	case models.PropertyTypePerMemberAmount:
		amount, err := numericValue(p)
		if err != nil {
			return formula.Value{}, err
		}
		multiplier, err := resolveMultiplier(ctx, in)
		if err != nil {
			return formula.Value{}, err
		}
		return formula.Number(amount.Mul(multiplier)), nil

	case models.PropertyTypeTieredAmount:
		return resolveTiers(p, ctx, in)

	case models.PropertyTypeConditionalAmount:
		return resolveConditions(p, ctx)
	}
	return formula.Value{}, formula.Errorf(formula.ReasonInvalidValue, p.ID, "unknown property type %q", p.Type)
}

// Parameter returns the value a formula sees when it references the property.
// Rate-like properties expose their raw parameter so the formula can combine
// it with its own base; rule-based properties are resolved with in.
func Parameter(p models.ColumnProperty, ctx *models.CalculationContext, in Input) (formula.Value, error) {
	if ctx != nil {
		if v, ok := ctx.Properties[p.ID]; ok {
			return formula.ValueOf(v), nil
		}
	}
	switch p.Type {
	case models.PropertyTypeTieredAmount, models.PropertyTypeConditionalAmount:
		return Resolve(p, ctx, in)
	}
	v := formula.ValueOf(p.Value)
	if v.IsNull() {
		return formula.Value{}, formula.Errorf(formula.ReasonMissingValue, p.ID, "property has no value")
	}
	return v, nil
}

func numericValue(p models.ColumnProperty) (decimal.Decimal, error) {
	v := formula.ValueOf(p.Value)
	d, ok := v.AsNumber()
	if !ok {
		return decimal.Zero, formula.Errorf(formula.ReasonNonNumeric, p.ID, "property value %q is not a number", v.String())
	}
	return d, nil
}

func resolveBase(ctx *models.CalculationContext, in Input) (decimal.Decimal, error) {
	if in.Base != nil {
		return *in.Base, nil
	}
	raw, ok := ctx.Field(models.FieldLoanAmount)
	if !ok || formula.ValueOf(raw).IsNull() {
		return decimal.Zero, formula.Errorf(formula.ReasonMissingValue, models.FieldLoanAmount, "no base amount for percentage")
	}
	d, ok := formula.ValueOf(raw).AsNumber()
	if !ok {
		return decimal.Zero, formula.Errorf(formula.ReasonNonNumeric, models.FieldLoanAmount, "base amount is not a number")
	}
	return d, nil
}

func resolveMultiplier(ctx *models.CalculationContext, in Input) (decimal.Decimal, error) {
	if in.Multiplier != nil {
		return *in.Multiplier, nil
	}
	raw, ok := ctx.Field(models.FieldFamilyMembersCount)
	if !ok || formula.ValueOf(raw).IsEmpty() {
		return decimal.NewFromInt(1), nil
	}
	d, ok := formula.ValueOf(raw).AsNumber()
	if !ok {
		return decimal.Zero, formula.Errorf(formula.ReasonNonNumeric, models.FieldFamilyMembersCount, "multiplier is not a number")
	}
	return d, nil
}

// CompileTiers parses every tier condition of p against syms
func CompileTiers(p models.ColumnProperty, syms *formula.Symbols) ([]*formula.Program, error) {
	progs := make([]*formula.Program, len(p.Tiers))
	for i, tier := range p.Tiers {
		prog, err := formula.Parse(tier.Condition, syms)
		if err != nil {
			return nil, formula.Errorf(formula.AsEvaluationError(err).Reason, p.ID, "tier %d: %v", i+1, err)
		}
		progs[i] = prog
	}
	return progs, nil
}

// resolveTiers returns the value of the first tier whose condition holds
func resolveTiers(p models.ColumnProperty, ctx *models.CalculationContext, in Input) (formula.Value, error) {
	progs := in.Tiers
	if len(progs) != len(p.Tiers) {
		var err error
		if progs, err = CompileTiers(p, in.Symbols); err != nil {
			return formula.Value{}, err
		}
	}
	env := in.Env
	if env == nil {
		env = ContextEnv(ctx)
	}
	for i, prog := range progs {
		ok, err := prog.Eval(env)
		if err != nil {
			return formula.Value{}, err
		}
		if ok.Truthy() {
			return formula.Number(p.Tiers[i].Value), nil
		}
	}
	return formula.Int(0), nil
}

// resolveConditions returns the result of the first matching condition. A
// condition on a field the row does not have never matches.
func resolveConditions(p models.ColumnProperty, ctx *models.CalculationContext) (formula.Value, error) {
	for _, cond := range p.Conditions {
		raw, ok := lookupField(ctx, cond.Field)
		if !ok {
			continue
		}
		matched, err := Match(cond, formula.ValueOf(raw))
		if err != nil {
			return formula.Value{}, err
		}
		if matched {
			return formula.ValueOf(cond.Result), nil
		}
	}
	return formula.Int(0), nil
}

// Match reports whether actual satisfies the condition
func Match(cond models.PropertyCondition, actual formula.Value) (bool, error) {
	expected := formula.ValueOf(cond.Value)
	switch cond.Operator {
	case models.OperatorEquals:
		return actual.Equal(expected), nil
	case models.OperatorNotEquals:
		return !actual.Equal(expected), nil
	case models.OperatorContains:
		return strings.Contains(actual.String(), expected.String()), nil
	case models.OperatorStartsWith:
		return strings.HasPrefix(actual.String(), expected.String()), nil
	case models.OperatorEndsWith:
		return strings.HasSuffix(actual.String(), expected.String()), nil
	case models.OperatorGreaterThan, models.OperatorLessThan, models.OperatorGreaterEqual, models.OperatorLessEqual:
		cmp, err := compare(cond, actual, expected)
		if err != nil {
			return false, err
		}
		switch cond.Operator {
		case models.OperatorGreaterThan:
			return cmp > 0, nil
		case models.OperatorLessThan:
			return cmp < 0, nil
		case models.OperatorGreaterEqual:
			return cmp >= 0, nil
		default:
			return cmp <= 0, nil
		}
	}
	return false, formula.Errorf(formula.ReasonInvalidValue, cond.Field, "unknown operator %q", cond.Operator)
}

func compare(cond models.PropertyCondition, actual, expected formula.Value) (int, error) {
	a, aok := actual.AsNumber()
	b, bok := expected.AsNumber()
	if aok && bok {
		return a.Cmp(b), nil
	}
	if at, ok := actual.AsDate(); ok {
		if bt, ok := expected.AsDate(); ok {
			return at.Compare(bt), nil
		}
	}
	return 0, formula.Errorf(formula.ReasonNonNumeric, cond.Field, "cannot compare %q with %q", actual.String(), expected.String())
}

func lookupField(ctx *models.CalculationContext, name string) (any, bool) {
	if v, ok := ctx.Field(name); ok {
		return v, true
	}
	if ctx == nil {
		return nil, false
	}
	for _, src := range []map[string]any{ctx.MemberData, ctx.GroupData, ctx.PeriodData} {
		for k, v := range src {
			if strings.EqualFold(k, name) {
				return v, true
			}
		}
	}
	return nil, false
}
