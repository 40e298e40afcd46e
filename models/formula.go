package models

// FormulaCondition is an if/then/else branch evaluated before the base expression
type FormulaCondition struct {
	If   string `json:"if"`
	Then string `json:"then"`
	Else string `json:"else,omitempty"`
}

// FormulaValidation constrains the value a formula produces
type FormulaValidation struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Required bool     `json:"required"`
}

// ColumnFormula computes a column's value from other columns and properties
type ColumnFormula struct {
	ID                   string             `json:"id"`
	Expression           string             `json:"expression"`
	ReferencedColumns    []string           `json:"referencedColumns"`
	ReferencedProperties []string           `json:"referencedProperties"`
	Conditions           []FormulaCondition `json:"conditions,omitempty"`
	Validation           *FormulaValidation `json:"validation,omitempty"`
}

// Expressions returns every expression string carried by the formula
func (f *ColumnFormula) Expressions() []string {
	exprs := []string{f.Expression}
	for _, c := range f.Conditions {
		exprs = append(exprs, c.If, c.Then)
		if c.Else != "" {
			exprs = append(exprs, c.Else)
		}
	}
	return exprs
}
