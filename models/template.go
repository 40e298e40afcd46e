package models

// TemplateCategory groups catalog templates by SHG concept
type TemplateCategory string

const (
	TemplateCategoryInsurance    TemplateCategory = "insurance"
	TemplateCategorySocial       TemplateCategory = "social"
	TemplateCategoryFine         TemplateCategory = "fine"
	TemplateCategoryLoan         TemplateCategory = "loan"
	TemplateCategoryContribution TemplateCategory = "contribution"
	TemplateCategoryCustom       TemplateCategory = "custom"
)

// ColumnTemplate is a ready-made seed for a new column
type ColumnTemplate struct {
	ID                     string            `json:"id"`
	Name                   string            `json:"name"`
	Description            string            `json:"description"`
	Category               TemplateCategory  `json:"category"`
	DataType               DataType          `json:"dataType"`
	DefaultProperties      []ColumnProperty  `json:"defaultProperties,omitempty"`
	DefaultFormula         *ColumnFormula    `json:"defaultFormula,omitempty"`
	DefaultDropdownOptions []DropdownOption  `json:"defaultDropdownOptions,omitempty"`
	DefaultDisplayConfig   DisplayConfig     `json:"defaultDisplayConfig"`
	DefaultPermissions     ColumnPermissions `json:"defaultPermissions"`
	IsSystemTemplate       bool              `json:"isSystemTemplate"`
	Tags                   []string          `json:"tags,omitempty"`
}

// Clone returns a deep copy of the template
func (t ColumnTemplate) Clone() ColumnTemplate {
	out := t
	out.DefaultProperties = cloneProperties(t.DefaultProperties)
	if t.DefaultFormula != nil {
		f := t.DefaultFormula.Clone()
		out.DefaultFormula = &f
	}
	if t.DefaultDropdownOptions != nil {
		out.DefaultDropdownOptions = append([]DropdownOption(nil), t.DefaultDropdownOptions...)
	}
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	return out
}
