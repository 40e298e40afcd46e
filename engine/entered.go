package engine

import (
	"github.com/shopspring/decimal"

	"shgcolumns/formula"
	"shgcolumns/models"
)

// entered reads a directly entered column from the member data, by id and
// then by normalised name, and coerces it to the column's data type. An
// absent value is an empty cell unless the column requires one.
func (re *rowEval) entered(col *models.CustomColumn) (formula.Value, error) {
	raw, found := lookupEntered(re.ctx, col)
	v := formula.ValueOf(raw)
	if !found || v.IsEmpty() {
		if col.Validation != nil && col.Validation.Required {
			return formula.Value{}, formula.Errorf(formula.ReasonMissingValue, col.ID, "%s is required", col.Name)
		}
		return formula.Null(), nil
	}

	switch col.DataType {
	case models.DataTypeNumber, models.DataTypeCurrency, models.DataTypePercentage:
		d, ok := v.AsNumber()
		if !ok {
			return formula.Value{}, formula.Errorf(formula.ReasonNonNumeric, col.ID, "%q is not a number", v.String())
		}
		v = formula.Number(d)
	case models.DataTypeDate:
		t, ok := v.AsDate()
		if !ok {
			return formula.Value{}, formula.Errorf(formula.ReasonInvalidValue, col.ID, "%q is not a date", v.String())
		}
		v = formula.Date(t)
	case models.DataTypeBoolean:
		b, ok := v.AsBool()
		if !ok {
			return formula.Value{}, formula.Errorf(formula.ReasonInvalidValue, col.ID, "%q is not a yes/no value", v.String())
		}
		v = formula.Bool(b)
	case models.DataTypeDropdown:
		if !col.HasOption(v.String()) {
			return formula.Value{}, formula.Errorf(formula.ReasonInvalidValue, col.ID, "%q is not one of the options", v.String())
		}
		v = formula.String(v.String())
	default:
		v = formula.String(v.String())
	}
	return v, re.e.checkEntered(col, v)
}

func (e *Evaluator) checkEntered(col *models.CustomColumn, v formula.Value) error {
	rules := col.Validation
	if rules == nil {
		return nil
	}
	if v.Kind == formula.KindNumber {
		d := v.Num
		if rules.Min != nil && d.LessThan(decimal.NewFromFloat(*rules.Min)) {
			return formula.Errorf(formula.ReasonOutOfRange, col.ID, "%s is below the minimum %v", d, *rules.Min)
		}
		if rules.Max != nil && d.GreaterThan(decimal.NewFromFloat(*rules.Max)) {
			return formula.Errorf(formula.ReasonOutOfRange, col.ID, "%s is above the maximum %v", d, *rules.Max)
		}
	}
	if re, ok := e.patterns[col.ID]; ok && !re.MatchString(v.String()) {
		return formula.Errorf(formula.ReasonInvalidValue, col.ID, "%q does not match the required pattern", v.String())
	}
	return nil
}

func lookupEntered(ctx *models.CalculationContext, col *models.CustomColumn) (any, bool) {
	if v, ok := ctx.MemberData[col.ID]; ok {
		return v, true
	}
	name := models.NormalizeName(col.Name)
	for k, v := range ctx.MemberData {
		if models.NormalizeName(k) == name {
			return v, true
		}
	}
	return nil, false
}
