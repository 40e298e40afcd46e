package models

import (
	"time"
)

// GroupCustomSchema is the full set of custom column definitions for one group
type GroupCustomSchema struct {
	ID               string             `json:"id"`
	GroupID          string             `json:"groupId"`
	Name             string             `json:"name" validate:"required,max=100"`
	Description      string             `json:"description,omitempty" validate:"max=500"`
	Version          int                `json:"version"`
	Columns          []CustomColumn     `json:"columns"`
	GlobalProperties []ColumnProperty   `json:"globalProperties" validate:"dive"`
	IsActive         bool               `json:"isActive"`
	IsDefault        bool               `json:"isDefault"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
	CreatedBy        string             `json:"createdBy"`
	LastModifiedBy   string             `json:"lastModifiedBy"`
	PreviousVersion  *GroupCustomSchema `json:"previousVersion,omitempty"`
}

// Column returns the column with the given id
func (s *GroupCustomSchema) Column(id string) (*CustomColumn, bool) {
	for i := range s.Columns {
		if s.Columns[i].ID == id {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// ActiveColumns returns active columns in display order
func (s *GroupCustomSchema) ActiveColumns() []CustomColumn {
	cols := make([]CustomColumn, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.IsActive {
			cols = append(cols, c)
		}
	}
	SortColumns(cols)
	return cols
}

// MaxOrder returns the highest column order, or 0 for an empty schema
func (s *GroupCustomSchema) MaxOrder() int {
	highest := 0
	for _, c := range s.Columns {
		if c.Order > highest {
			highest = c.Order
		}
	}
	return highest
}

// Clone returns a deep copy of the schema. Property and option values held as
// `any` are scalars and are shared.
func (s *GroupCustomSchema) Clone() *GroupCustomSchema {
	if s == nil {
		return nil
	}
	out := *s
	if s.Columns != nil {
		out.Columns = make([]CustomColumn, len(s.Columns))
		for i := range s.Columns {
			out.Columns[i] = s.Columns[i].Clone()
		}
	}
	out.GlobalProperties = cloneProperties(s.GlobalProperties)
	out.PreviousVersion = s.PreviousVersion.Clone()
	return &out
}

// Clone returns a deep copy of the column
func (c CustomColumn) Clone() CustomColumn {
	out := c
	out.Properties = cloneProperties(c.Properties)
	if c.DropdownOptions != nil {
		out.DropdownOptions = append([]DropdownOption(nil), c.DropdownOptions...)
	}
	if c.Formula != nil {
		f := c.Formula.Clone()
		out.Formula = &f
	}
	if c.Validation != nil {
		v := *c.Validation
		out.Validation = &v
	}
	if c.Template != nil {
		t := c.Template.Clone()
		out.Template = &t
	}
	return out
}

// Clone returns a deep copy of the formula
func (f ColumnFormula) Clone() ColumnFormula {
	out := f
	if f.ReferencedColumns != nil {
		out.ReferencedColumns = append([]string(nil), f.ReferencedColumns...)
	}
	if f.ReferencedProperties != nil {
		out.ReferencedProperties = append([]string(nil), f.ReferencedProperties...)
	}
	if f.Conditions != nil {
		out.Conditions = append([]FormulaCondition(nil), f.Conditions...)
	}
	if f.Validation != nil {
		v := *f.Validation
		out.Validation = &v
	}
	return out
}

// Clone returns a deep copy of the property
func (p ColumnProperty) Clone() ColumnProperty {
	out := p
	if p.Tiers != nil {
		out.Tiers = append([]PropertyTier(nil), p.Tiers...)
	}
	if p.Conditions != nil {
		out.Conditions = append([]PropertyCondition(nil), p.Conditions...)
	}
	return out
}

func cloneProperties(props []ColumnProperty) []ColumnProperty {
	if props == nil {
		return nil
	}
	out := make([]ColumnProperty, len(props))
	for i, p := range props {
		out[i] = p.Clone()
	}
	return out
}
