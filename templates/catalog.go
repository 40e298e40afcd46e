package templates

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"shgcolumns/models"
)

// Template ids
const (
	LoanInsurance = "loan-insurance"
	GroupSocial   = "group-social"
	LateFine      = "late-fine"
	EducationLoan = "education-loan"
	ProfitShare   = "profit-share"
	Attendance    = "attendance"
)

// catalog is built once and only ever handed out as deep copies
var catalog = []models.ColumnTemplate{
	{
		ID:          LoanInsurance,
		Name:        "Loan Insurance",
		Description: "Insurance premium charged as a percentage of the loan amount",
		Category:    models.TemplateCategoryInsurance,
		DataType:    models.DataTypePropertyDriven,
		DefaultProperties: []models.ColumnProperty{{
			ID:          "insurance-percent",
			Name:        "Insurance Percentage",
			Type:        models.PropertyTypePercentage,
			Value:       0.2,
			Description: "Percentage of loan amount charged as insurance",
		}},
		DefaultFormula: &models.ColumnFormula{
			ID:                   "loan-insurance-calc",
			Expression:           "loanAmount * (insurance-percent / 100)",
			ReferencedColumns:    []string{models.FieldLoanAmount},
			ReferencedProperties: []string{"insurance-percent"},
		},
		DefaultDisplayConfig: currencyDisplay(models.AggregateTypeSum),
		DefaultPermissions:   models.DefaultPermissions(),
		IsSystemTemplate:     true,
		Tags:                 []string{"insurance", "loan", "percentage"},
	},
	{
		ID:          GroupSocial,
		Name:        "Group Social",
		Description: "Social fund contribution per family member",
		Category:    models.TemplateCategorySocial,
		DataType:    models.DataTypePropertyDriven,
		DefaultProperties: []models.ColumnProperty{{
			ID:          "social-amount-per-member",
			Name:        "Amount per Family Member",
			Type:        models.PropertyTypePerMemberAmount,
			Value:       10,
			Description: "Amount collected for each family member",
		}},
		DefaultFormula: &models.ColumnFormula{
			ID:                   "group-social-calc",
			Expression:           "familyMembersCount * social-amount-per-member",
			ReferencedColumns:    []string{models.FieldFamilyMembersCount},
			ReferencedProperties: []string{"social-amount-per-member"},
		},
		DefaultDisplayConfig: currencyDisplay(models.AggregateTypeSum),
		DefaultPermissions:   models.DefaultPermissions(),
		IsSystemTemplate:     true,
		Tags:                 []string{"social", "family"},
	},
	{
		ID:          LateFine,
		Name:        "Late Fine",
		Description: "Fixed fine for late payment or meeting attendance",
		Category:    models.TemplateCategoryFine,
		DataType:    models.DataTypePropertyDriven,
		DefaultProperties: []models.ColumnProperty{{
			ID:          "fine-amount",
			Name:        "Fine Amount",
			Type:        models.PropertyTypeFixedAmount,
			Value:       5,
			Description: "Fixed fine amount",
		}},
		DefaultDisplayConfig: currencyDisplay(models.AggregateTypeSum),
		DefaultPermissions:   models.DefaultPermissions(),
		IsSystemTemplate:     true,
		Tags:                 []string{"fine", "penalty"},
	},
	{
		ID:                   EducationLoan,
		Name:                 "Education Loan",
		Description:          "Separate tracking for education loans",
		Category:             models.TemplateCategoryLoan,
		DataType:             models.DataTypeCurrency,
		DefaultDisplayConfig: currencyDisplay(models.AggregateTypeSum),
		DefaultPermissions:   models.DefaultPermissions(),
		IsSystemTemplate:     true,
		Tags:                 []string{"loan", "education"},
	},
	{
		ID:          ProfitShare,
		Name:        "Profit Share",
		Description: "Equal share of group profit for each member",
		Category:    models.TemplateCategoryContribution,
		DataType:    models.DataTypeCalculated,
		DefaultFormula: &models.ColumnFormula{
			ID:                "profit-share-calc",
			Expression:        "totalGroupProfit / totalMembers",
			ReferencedColumns: []string{models.FieldTotalGroupProfit, models.FieldTotalMembers},
		},
		DefaultDisplayConfig: currencyDisplay(models.AggregateTypeSum),
		DefaultPermissions:   models.ColumnPermissions{CanEdit: true, CanDelete: false, CanReorder: true},
		IsSystemTemplate:     true,
		Tags:                 []string{"profit", "share"},
	},
	{
		ID:          Attendance,
		Name:        "Attendance",
		Description: "Meeting attendance status",
		Category:    models.TemplateCategoryCustom,
		DataType:    models.DataTypeDropdown,
		DefaultDropdownOptions: []models.DropdownOption{
			{Value: "present", Label: "Present", Color: "green"},
			{Value: "absent", Label: "Absent", Color: "red"},
			{Value: "late", Label: "Late", Color: "orange"},
		},
		DefaultDisplayConfig: models.DisplayConfig{
			ShowInTable:   true,
			ShowInSummary: false,
			ShowInReports: true,
			Alignment:     models.AlignmentCenter,
			AggregateType: models.AggregateTypeCount,
			FormatType:    models.FormatTypeText,
		},
		DefaultPermissions: models.DefaultPermissions(),
		IsSystemTemplate:   true,
		Tags:               []string{"attendance", "meeting"},
	},
}

func currencyDisplay(agg models.AggregateType) models.DisplayConfig {
	return models.DisplayConfig{
		ShowInTable:   true,
		ShowInSummary: true,
		ShowInReports: true,
		Alignment:     models.AlignmentRight,
		AggregateType: agg,
		FormatType:    models.FormatTypeCurrency,
		DecimalPlaces: 2,
		Prefix:        "₹",
	}
}

// All returns a copy of every catalog template
func All() []models.ColumnTemplate {
	out := make([]models.ColumnTemplate, len(catalog))
	for i, t := range catalog {
		out[i] = t.Clone()
	}
	return out
}

// Get returns a copy of the template with the given id
func Get(id string) (models.ColumnTemplate, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return models.ColumnTemplate{}, false
}

// ByCategory returns copies of the templates in a category
func ByCategory(category models.TemplateCategory) []models.ColumnTemplate {
	var out []models.ColumnTemplate
	for _, t := range catalog {
		if t.Category == category {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Instantiate seeds a new column from a template. Everything is copied by
// value; later template changes do not reach the column. The caller assigns
// the display order.
func Instantiate(t models.ColumnTemplate, actor string, now time.Time) models.CustomColumn {
	snapshot := t.Clone()
	col := models.CustomColumn{
		ID:            NewColumnID(),
		Name:          t.Name,
		Description:   t.Description,
		DataType:      t.DataType,
		IsActive:      true,
		TemplateID:    t.ID,
		Template:      &snapshot,
		DisplayConfig: t.DefaultDisplayConfig,
		Permissions:   t.DefaultPermissions,
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     actor,
	}
	seed := t.Clone()
	col.Properties = seed.DefaultProperties
	col.Formula = seed.DefaultFormula
	col.DropdownOptions = seed.DefaultDropdownOptions
	return col
}

// InstantiateByID looks a template up and instantiates it
func InstantiateByID(id, actor string, now time.Time) (models.CustomColumn, error) {
	t, ok := Get(id)
	if !ok {
		return models.CustomColumn{}, fmt.Errorf("template %q not found", id)
	}
	return Instantiate(t, actor, now), nil
}

// NewColumnID returns a fresh column id
func NewColumnID() string {
	return "col-" + uuid.NewString()
}
