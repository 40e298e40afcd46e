package schema

import (
	"regexp"
	"strings"

	"shgcolumns/formula"
	"shgcolumns/models"
)

// SymbolsFor returns what a column's expressions may reference: every column
// of the schema, the column's own properties ahead of the global ones, and
// the known member and group fields
func SymbolsFor(s *models.GroupCustomSchema, col *models.CustomColumn, fields []string) *formula.Symbols {
	var props []models.ColumnProperty
	if col != nil {
		props = append(props, col.Properties...)
	}
	props = append(props, s.GlobalProperties...)
	return formula.NewSymbols(s.Columns, props, fields)
}

// Validate checks the whole schema
func (r *Registry) Validate(s *models.GroupCustomSchema) Problems {
	p := structProblems(r.validate, s)

	seen := make(map[string]bool, len(s.Columns))
	names := make(map[string]string, len(s.Columns))
	for _, c := range s.Columns {
		if seen[c.ID] {
			p.errorf("Duplicate column id: %s", c.ID)
		}
		seen[c.ID] = true

		norm := models.NormalizeName(c.Name)
		if other, ok := names[norm]; ok {
			p.warnf("Columns %q and %q share a name; references by name resolve to the first", other, c.Name)
		} else {
			names[norm] = c.Name
		}
	}

	globals := SymbolsFor(s, nil, r.knownFields)
	p.merge(r.checkProperties(s.GlobalProperties, globals).prefixed("Global properties"))

	for i := range s.Columns {
		p.merge(r.checkColumn(s, &s.Columns[i]))
	}
	return p
}

// checkColumn validates one column against the schema it belongs to.
// Messages are prefixed with the column name.
func (r *Registry) checkColumn(s *models.GroupCustomSchema, c *models.CustomColumn) Problems {
	p := structProblems(r.validate, c)

	switch {
	case c.DataType == models.DataTypeDropdown && len(c.DropdownOptions) == 0:
		p.Errors = append(p.Errors, MsgDropdownOptionsRequired)
	case c.DataType != models.DataTypeDropdown && len(c.DropdownOptions) > 0:
		p.errorf("Only dropdown columns can have options")
	}
	optionValues := make(map[string]bool, len(c.DropdownOptions))
	for _, opt := range c.DropdownOptions {
		if optionValues[opt.Value] {
			p.errorf("Duplicate dropdown option: %s", opt.Value)
		}
		optionValues[opt.Value] = true
	}

	switch {
	case c.DataType == models.DataTypeCalculated && c.Formula == nil:
		p.Errors = append(p.Errors, MsgFormulaRequired)
	case c.Formula != nil && !c.IsComputed():
		p.errorf("Only calculated and property-driven columns can have a formula")
	}

	switch {
	case c.DataType == models.DataTypePropertyDriven && len(c.Properties) == 0:
		p.Errors = append(p.Errors, MsgPropertiesRequired)
	case c.DataType != models.DataTypePropertyDriven && len(c.Properties) > 0:
		p.errorf("Only property-driven columns can have properties")
	}

	syms := SymbolsFor(s, c, r.knownFields)
	p.merge(r.checkProperties(c.Properties, syms))
	if c.Formula != nil {
		p.merge(r.checkFormula(s, c, syms))
	}
	if c.Validation != nil {
		v := c.Validation
		if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
			p.errorf("Validation minimum exceeds maximum")
		}
		if v.Pattern != "" {
			if _, err := regexp.Compile(v.Pattern); err != nil {
				p.errorf("Invalid validation pattern: %v", err)
			}
		}
	}

	label := c.Name
	if label == "" {
		label = c.ID
	}
	return p.prefixed(label)
}

func (r *Registry) checkFormula(s *models.GroupCustomSchema, c *models.CustomColumn, syms *formula.Symbols) Problems {
	var p Problems
	f := c.Formula

	p.Errors = append(p.Errors, formula.Validate(f.Expression, syms, c.ID)...)
	for i, cond := range f.Conditions {
		for _, msg := range formula.ValidateCondition(cond.If, syms) {
			p.errorf("Condition %d if: %s", i+1, msg)
		}
		for _, msg := range formula.Validate(cond.Then, syms, c.ID) {
			p.errorf("Condition %d then: %s", i+1, msg)
		}
		if cond.Else == "" {
			continue
		}
		p.warnf("Condition %d else is ignored; unmatched conditions use the base expression", i+1)
		for _, msg := range formula.Validate(cond.Else, syms, c.ID) {
			p.errorf("Condition %d else: %s", i+1, msg)
		}
	}

	var missingCols []string
	for _, id := range f.ReferencedColumns {
		if id == c.ID || syms.IsKnownField(id) {
			continue
		}
		if _, ok := s.Column(id); !ok {
			missingCols = append(missingCols, id)
		}
	}
	if len(missingCols) > 0 {
		p.Errors = append(p.Errors, MsgMissingColumns+strings.Join(missingCols, ", "))
	}

	var missingProps []string
	for _, id := range f.ReferencedProperties {
		if _, ok := syms.Property(id); !ok {
			missingProps = append(missingProps, id)
		}
	}
	if len(missingProps) > 0 {
		p.Errors = append(p.Errors, MsgMissingProperties+strings.Join(missingProps, ", "))
	}

	if v := f.Validation; v != nil && v.Min != nil && v.Max != nil && *v.Min > *v.Max {
		p.errorf("Formula minimum exceeds maximum")
	}
	return p
}

func (r *Registry) checkProperties(props []models.ColumnProperty, syms *formula.Symbols) Problems {
	var p Problems
	seen := make(map[string]bool, len(props))
	for _, prop := range props {
		if seen[prop.ID] {
			p.errorf("Duplicate property id: %s", prop.ID)
		}
		seen[prop.ID] = true

		switch prop.Type {
		case models.PropertyTypePercentage, models.PropertyTypeFixedAmount, models.PropertyTypePerMemberAmount:
			if _, ok := formula.ValueOf(prop.Value).AsNumber(); !ok {
				p.errorf("Property %s must have a numeric value", prop.Name)
			}
		case models.PropertyTypeTieredAmount:
			if len(prop.Tiers) == 0 {
				p.warnf("Property %s has no tiers and always resolves to 0", prop.Name)
			}
			for i, tier := range prop.Tiers {
				for _, msg := range formula.ValidateCondition(tier.Condition, syms) {
					p.errorf("Property %s tier %d: %s", prop.Name, i+1, msg)
				}
			}
		case models.PropertyTypeConditionalAmount:
			if len(prop.Conditions) == 0 {
				p.warnf("Property %s has no conditions and always resolves to 0", prop.Name)
			}
			for i, cond := range prop.Conditions {
				if !cond.Operator.IsValid() {
					p.errorf("Property %s condition %d: unknown operator %q", prop.Name, i+1, cond.Operator)
				}
				if _, ok := formula.ValueOf(cond.Result).AsNumber(); !ok {
					p.errorf("Property %s condition %d: result must be numeric", prop.Name, i+1)
				}
			}
		}
	}
	return p
}
