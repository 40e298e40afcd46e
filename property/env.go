package property

import (
	"shgcolumns/formula"
	"shgcolumns/models"
)

// ContextEnv resolves expression references straight from a calculation
// context: columns and fields from the raw row data, properties from the
// pre-resolved property values.
func ContextEnv(ctx *models.CalculationContext) formula.Env {
	return formula.EnvFunc(func(ref formula.Reference) (formula.Value, error) {
		if ref.Kind == formula.RefProperty {
			if ctx != nil {
				if v, ok := ctx.Properties[ref.ID]; ok {
					return formula.ValueOf(v), nil
				}
			}
			return formula.Value{}, formula.Errorf(formula.ReasonUnresolvedReference, ref.ID, "property has no resolved value")
		}
		if v, ok := lookupField(ctx, ref.ID); ok {
			return formula.ValueOf(v), nil
		}
		return formula.Value{}, formula.Errorf(formula.ReasonUnresolvedReference, ref.ID, "not found in row data")
	})
}
