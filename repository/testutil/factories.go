package testutil

import (
	"time"

	"shgcolumns/models"
	"shgcolumns/schema"
	"shgcolumns/templates"
)

// Fixed timestamp for stored test data. Postgres keeps microseconds, so
// anything finer would not round-trip.
var TestTime = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

// CreateTestSchema returns a valid default schema for the group with a loan
// insurance column and an entered savings column
func CreateTestSchema(groupID string) *models.GroupCustomSchema {
	r := schema.NewRegistry(
		schema.WithClock(func() time.Time { return TestTime }),
		schema.WithIDGenerator(func() string { return "col-insurance" }),
	)
	s := r.NewDefaultSchema(groupID, "admin")
	s, err := r.AddFromTemplate(s, templates.LoanInsurance, "admin")
	if err != nil {
		panic(err)
	}
	s, err = r.AddColumn(s, models.CustomColumn{
		ID:          "col-savings",
		Name:        "Savings",
		DataType:    models.DataTypeCurrency,
		IsActive:    true,
		Permissions: models.DefaultPermissions(),
	})
	if err != nil {
		panic(err)
	}
	return s
}

// CreateTestMemberData returns stored values for a member of the schema
func CreateTestMemberData(s *models.GroupCustomSchema, memberID string) *models.MemberCustomData {
	return &models.MemberCustomData{
		ID:               "data-" + memberID,
		MemberID:         memberID,
		GroupID:          s.GroupID,
		SchemaID:         s.ID,
		SchemaVersion:    s.Version,
		ColumnValues:     map[string]any{"col-savings": 1500},
		CalculatedValues: map[string]any{"col-insurance": 100},
		LastUpdated:      TestTime,
		UpdatedBy:        "treasurer",
	}
}
