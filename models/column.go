package models

import (
	"sort"
	"strings"
	"time"
)

// DataType represents how a column's value is produced and stored
type DataType string

const (
	DataTypeNumber         DataType = "number"
	DataTypeCurrency       DataType = "currency"
	DataTypePercentage     DataType = "percentage"
	DataTypeText           DataType = "text"
	DataTypeDate           DataType = "date"
	DataTypeBoolean        DataType = "boolean"
	DataTypeDropdown       DataType = "dropdown"
	DataTypeCalculated     DataType = "calculated"
	DataTypePropertyDriven DataType = "property-driven"
)

// FormatType selects how a value is rendered
type FormatType string

const (
	FormatTypeCurrency   FormatType = "currency"
	FormatTypePercentage FormatType = "percentage"
	FormatTypeNumber     FormatType = "number"
	FormatTypeText       FormatType = "text"
	FormatTypeDate       FormatType = "date"
)

// AggregateType selects the summary statistic shown for a column
type AggregateType string

const (
	AggregateTypeSum     AggregateType = "sum"
	AggregateTypeAverage AggregateType = "average"
	AggregateTypeCount   AggregateType = "count"
	AggregateTypeNone    AggregateType = "none"
)

// Alignment is the horizontal alignment of a column in tables
type Alignment string

const (
	AlignmentLeft   Alignment = "left"
	AlignmentCenter Alignment = "center"
	AlignmentRight  Alignment = "right"
)

// DropdownOption is one selectable value of a dropdown column
type DropdownOption struct {
	Value string `json:"value" validate:"required"`
	Label string `json:"label" validate:"required"`
	Color string `json:"color,omitempty"`
}

// DisplayConfig controls where and how a column is shown
type DisplayConfig struct {
	ShowInTable   bool          `json:"showInTable"`
	ShowInSummary bool          `json:"showInSummary"`
	ShowInReports bool          `json:"showInReports"`
	Width         int           `json:"width,omitempty" validate:"omitempty,min=50,max=500"`
	Alignment     Alignment     `json:"alignment,omitempty" validate:"omitempty,oneof=left center right"`
	AggregateType AggregateType `json:"aggregateType,omitempty" validate:"omitempty,oneof=sum average count none"`
	FormatType    FormatType    `json:"formatType,omitempty" validate:"omitempty,oneof=currency percentage number text date"`
	DecimalPlaces int           `json:"decimalPlaces" validate:"min=0,max=10"`
	Prefix        string        `json:"prefix,omitempty" validate:"max=10"`
	Suffix        string        `json:"suffix,omitempty" validate:"max=10"`
}

// ColumnValidation constrains values entered directly into a column
type ColumnValidation struct {
	Required bool     `json:"required"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
}

// ColumnPermissions controls which registry operations a column allows
type ColumnPermissions struct {
	CanEdit    bool `json:"canEdit"`
	CanDelete  bool `json:"canDelete"`
	CanReorder bool `json:"canReorder"`
	AdminOnly  bool `json:"adminOnly"`
}

// DefaultPermissions returns the permissions given to user-created columns
func DefaultPermissions() ColumnPermissions {
	return ColumnPermissions{CanEdit: true, CanDelete: true, CanReorder: true}
}

// CustomColumn is one named, typed field tracked per member
type CustomColumn struct {
	ID              string            `json:"id" validate:"required"`
	Name            string            `json:"name" validate:"required,max=50"`
	Description     string            `json:"description,omitempty" validate:"max=200"`
	DataType        DataType          `json:"dataType" validate:"required,oneof=number currency percentage text date boolean dropdown calculated property-driven"`
	Order           int               `json:"order"`
	IsActive        bool              `json:"isActive"`
	TemplateID      string            `json:"templateId,omitempty"`
	Template        *ColumnTemplate   `json:"template,omitempty"`
	Properties      []ColumnProperty  `json:"properties,omitempty" validate:"dive"`
	Formula         *ColumnFormula    `json:"formula,omitempty"`
	DropdownOptions []DropdownOption  `json:"dropdownOptions,omitempty" validate:"dive"`
	DisplayConfig   DisplayConfig     `json:"displayConfig"`
	Validation      *ColumnValidation `json:"validation,omitempty"`
	Permissions     ColumnPermissions `json:"permissions"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	CreatedBy       string            `json:"createdBy"`
}

// IsComputed reports whether the column's value is derived rather than entered
func (c *CustomColumn) IsComputed() bool {
	return c.DataType == DataTypeCalculated || c.DataType == DataTypePropertyDriven
}

// IsNumeric reports whether the column holds numbers
func (c *CustomColumn) IsNumeric() bool {
	switch c.DataType {
	case DataTypeNumber, DataTypeCurrency, DataTypePercentage, DataTypeCalculated, DataTypePropertyDriven:
		return true
	}
	return false
}

// HasOption reports whether value is one of the column's dropdown options
func (c *CustomColumn) HasOption(value string) bool {
	for _, opt := range c.DropdownOptions {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// DefaultFormatType maps a data type to the format used when none is configured
func DefaultFormatType(dt DataType) FormatType {
	switch dt {
	case DataTypeCurrency:
		return FormatTypeCurrency
	case DataTypePercentage:
		return FormatTypePercentage
	case DataTypeDate:
		return FormatTypeDate
	case DataTypeText, DataTypeBoolean, DataTypeDropdown:
		return FormatTypeText
	default:
		return FormatTypeNumber
	}
}

// NormalizeName lowercases a name and strips all whitespace, the form used
// when matching references and import fields by name
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "")
}

// SortColumns orders columns by Order, breaking ties by ID
func SortColumns(cols []CustomColumn) {
	sort.SliceStable(cols, func(i, j int) bool {
		if cols[i].Order != cols[j].Order {
			return cols[i].Order < cols[j].Order
		}
		return cols[i].ID < cols[j].ID
	})
}
