package formula

import (
	"fmt"

	"github.com/shopspring/decimal"

	"shgcolumns/models"
)

// Compiled is a column formula with its base expression and every condition
// branch parsed
type Compiled struct {
	base       *Program
	branches   []branch
	validation *models.FormulaValidation
}

type branch struct {
	when, then *Program
}

// Compile parses the base expression and every condition branch. A
// condition's else is not evaluated: when no condition matches, the base
// expression supplies the result.
func Compile(f *models.ColumnFormula, syms *Symbols) (*Compiled, error) {
	base, err := Parse(f.Expression, syms)
	if err != nil {
		return nil, fmt.Errorf("expression: %w", err)
	}
	c := &Compiled{base: base, validation: f.Validation}
	for i, cond := range f.Conditions {
		when, err := Parse(cond.If, syms)
		if err != nil {
			return nil, fmt.Errorf("condition %d if: %w", i+1, err)
		}
		then, err := Parse(cond.Then, syms)
		if err != nil {
			return nil, fmt.Errorf("condition %d then: %w", i+1, err)
		}
		c.branches = append(c.branches, branch{when: when, then: then})
	}
	return c, nil
}

// Eval evaluates the formula. The first branch whose condition is truthy
// supplies the result, otherwise the base expression does.
func (c *Compiled) Eval(env Env) (Value, error) {
	v, err := c.eval(env)
	if err != nil {
		return Value{}, err
	}
	return v, c.check(v)
}

func (c *Compiled) eval(env Env) (Value, error) {
	for _, b := range c.branches {
		ok, err := b.when.Eval(env)
		if err != nil {
			return Value{}, err
		}
		if ok.Truthy() {
			return b.then.Eval(env)
		}
	}
	return c.base.Eval(env)
}

func (c *Compiled) check(v Value) error {
	if c.validation == nil {
		return nil
	}
	if c.validation.Required && v.IsEmpty() {
		return Errorf(ReasonOutOfRange, "", "a value is required")
	}
	d, ok := v.AsNumber()
	if !ok {
		return nil
	}
	if c.validation.Min != nil && d.LessThan(decimal.NewFromFloat(*c.validation.Min)) {
		return Errorf(ReasonOutOfRange, "", "%s is below the minimum %v", d, *c.validation.Min)
	}
	if c.validation.Max != nil && d.GreaterThan(decimal.NewFromFloat(*c.validation.Max)) {
		return Errorf(ReasonOutOfRange, "", "%s is above the maximum %v", d, *c.validation.Max)
	}
	return nil
}

// References returns the union of references across all expressions
func (c *Compiled) References() References {
	var out References
	seen := make(map[string]bool)
	merge := func(r References) {
		for _, id := range r.Columns {
			if !seen["c:"+id] {
				seen["c:"+id] = true
				out.Columns = append(out.Columns, id)
			}
		}
		for _, id := range r.Properties {
			if !seen["p:"+id] {
				seen["p:"+id] = true
				out.Properties = append(out.Properties, id)
			}
		}
		for _, id := range r.Fields {
			if !seen["f:"+id] {
				seen["f:"+id] = true
				out.Fields = append(out.Fields, id)
			}
		}
	}
	merge(c.base.References())
	for _, b := range c.branches {
		merge(b.when.References())
		merge(b.then.References())
	}
	return out
}
