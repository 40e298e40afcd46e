package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shgcolumns/events"
	"shgcolumns/models"
	"shgcolumns/schema"
	"shgcolumns/templates"
)

var testNow = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

// schemaMocks wires a unit of work around fresh repository mocks
type schemaMocks struct {
	factory    *MockUnitOfWorkFactory
	uow        *MockUnitOfWork
	schemaRepo *MockSchemaRepository
	memberRepo *MockMemberDataRepository
	publisher  *MockEventPublisher
	metrics    *MockMetrics
}

func newSchemaMocks() *schemaMocks {
	m := &schemaMocks{
		factory:    new(MockUnitOfWorkFactory),
		uow:        new(MockUnitOfWork),
		schemaRepo: new(MockSchemaRepository),
		memberRepo: new(MockMemberDataRepository),
		publisher:  new(MockEventPublisher),
		metrics:    new(MockMetrics),
	}
	m.uow.SetRepositories(m.schemaRepo, m.memberRepo, m.publisher)
	m.factory.On("Create").Return(m.uow)
	return m
}

func (m *schemaMocks) expectTransaction(ctx context.Context, commit bool) {
	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Rollback").Return(nil)
	if commit {
		m.uow.On("Commit").Return(nil)
	}
}

func (m *schemaMocks) assertExpectations(t *testing.T) {
	m.factory.AssertExpectations(t)
	m.uow.AssertExpectations(t)
	m.schemaRepo.AssertExpectations(t)
	m.memberRepo.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
	m.metrics.AssertExpectations(t)
}

func newTestRegistry(ids ...string) *schema.Registry {
	n := 0
	return schema.NewRegistry(
		schema.WithClock(func() time.Time { return testNow }),
		schema.WithIDGenerator(func() string {
			id := "col-gen"
			if n < len(ids) {
				id = ids[n]
			}
			n++
			return id
		}),
	)
}

// storedSchema is a saved group-1 default schema holding a loan insurance column
func storedSchema(t *testing.T, r *schema.Registry, version int) *models.GroupCustomSchema {
	t.Helper()
	s := r.NewDefaultSchema("group-1", "admin")
	s, err := r.AddFromTemplate(s, templates.LoanInsurance, "admin")
	require.NoError(t, err)
	s.Version = version
	return s
}

func TestSchemaService_GetOrCreateDefault_Existing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newSchemaMocks()
	r := newTestRegistry()
	existing := r.NewDefaultSchema("group-1", "admin")

	m.expectTransaction(ctx, false)
	m.schemaRepo.On("GetDefault", ctx, "group-1").Return(existing, nil)

	svc := NewSchemaService(m.factory, r, m.metrics)
	got, err := svc.GetOrCreateDefault(ctx, "group-1", "admin")

	require.NoError(t, err)
	assert.Same(t, existing, got)
	m.schemaRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestSchemaService_GetOrCreateDefault_Creates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newSchemaMocks()

	m.expectTransaction(ctx, true)
	m.schemaRepo.On("GetDefault", ctx, "group-1").Return(nil, nil)
	m.schemaRepo.On("ClearDefault", ctx, "group-1", "schema-group-1").Return(nil)
	m.schemaRepo.On("Upsert", ctx, mock.MatchedBy(func(s *models.GroupCustomSchema) bool {
		return s.ID == "schema-group-1" && s.Version == 1 && s.IsDefault && s.CreatedBy == schema.SystemActor
	})).Return(nil)
	m.publisher.On("Publish", events.SchemaSavedEvent{
		SchemaID:  "schema-group-1",
		GroupID:   "group-1",
		Version:   1,
		IsDefault: true,
		SavedBy:   schema.SystemActor,
	}).Return()

	svc := NewSchemaService(m.factory, newTestRegistry(), m.metrics)
	got, err := svc.GetOrCreateDefault(ctx, "group-1", "")

	require.NoError(t, err)
	assert.Equal(t, schema.DefaultSchemaName, got.Name)
	assert.Empty(t, got.Columns)
	m.assertExpectations(t)
}

func TestSchemaService_Get_NotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newSchemaMocks()

	m.expectTransaction(ctx, false)
	m.schemaRepo.On("GetByID", ctx, "schema-missing").Return(nil, nil)

	svc := NewSchemaService(m.factory, newTestRegistry(), m.metrics)
	_, err := svc.Get(ctx, "schema-missing")

	assert.ErrorIs(t, err, ErrSchemaNotFound)
	m.assertExpectations(t)
}

func TestSchemaService_Save_BlocksInvalidSchema(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newSchemaMocks()
	r := newTestRegistry("col-ins")

	s := storedSchema(t, r, 1)
	s.Columns = append(s.Columns, models.CustomColumn{
		ID:          "col-total",
		Name:        "Total",
		DataType:    models.DataTypeCalculated,
		IsActive:    true,
		Order:       2,
		Formula:     &models.ColumnFormula{ID: "f-total", Expression: "2 * 2", ReferencedColumns: []string{"col-999"}},
		Permissions: models.DefaultPermissions(),
	})

	m.expectTransaction(ctx, false)
	m.metrics.On("RecordValidationFailure", "group-1").Return()

	svc := NewSchemaService(m.factory, r, m.metrics)
	_, err := svc.Save(ctx, s)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaInvalid))
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems.Errors, "Total: Formula references missing columns: col-999")
	m.schemaRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestSchemaService_Save_BumpsVersionWithSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newSchemaMocks()
	r := newTestRegistry("col-ins", "col-social")

	stored := storedSchema(t, r, 2)
	stored.CreatedBy = "founder"

	edited, err := r.AddFromTemplate(stored, templates.GroupSocial, "treasurer")
	require.NoError(t, err)
	edited.LastModifiedBy = "treasurer"

	m.expectTransaction(ctx, true)
	m.schemaRepo.On("GetByID", ctx, stored.ID).Return(stored, nil)
	m.schemaRepo.On("ClearDefault", ctx, "group-1", stored.ID).Return(nil)
	m.schemaRepo.On("Upsert", ctx, mock.AnythingOfType("*models.GroupCustomSchema")).Return(nil)
	m.publisher.On("Publish", events.SchemaSavedEvent{
		SchemaID:        stored.ID,
		GroupID:         "group-1",
		Version:         3,
		PreviousVersion: 2,
		ColumnCount:     2,
		IsDefault:       true,
		SavedBy:         "treasurer",
	}).Return()
	m.metrics.On("RecordSchemaSaved", "group-1").Return()

	svc := NewSchemaService(m.factory, r, m.metrics)
	saved, err := svc.Save(ctx, edited)

	require.NoError(t, err)
	assert.Equal(t, 3, saved.Version)
	assert.Equal(t, "founder", saved.CreatedBy)
	assert.Equal(t, "treasurer", saved.LastModifiedBy)
	assert.Equal(t, testNow, saved.UpdatedAt)
	require.NotNil(t, saved.PreviousVersion)
	assert.Equal(t, 2, saved.PreviousVersion.Version)
	assert.Len(t, saved.PreviousVersion.Columns, 1)
	assert.Nil(t, saved.PreviousVersion.PreviousVersion)
	m.assertExpectations(t)
}

func TestSchemaService_SaveFunc(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newSchemaMocks()
	r := newTestRegistry()
	fresh := r.NewDefaultSchema("group-2", "admin")
	fresh.IsDefault = false

	m.expectTransaction(ctx, false)
	m.schemaRepo.On("GetByID", ctx, fresh.ID).Return(nil, nil)
	m.schemaRepo.On("Upsert", ctx, mock.Anything).Return(errors.New("connection reset"))

	save := NewSchemaService(m.factory, r, m.metrics).SaveFunc()
	err := save(ctx, fresh)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save schema")
	m.assertExpectations(t)
}

func TestSchemaService_Revert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRegistry("col-ins")

	t.Run("restores previous content as next version", func(t *testing.T) {
		m := newSchemaMocks()
		v1 := r.NewDefaultSchema("group-1", "admin")
		withColumn := storedSchema(t, r, 2)
		withColumn.PreviousVersion = v1

		m.expectTransaction(ctx, true)
		m.schemaRepo.On("GetByID", ctx, withColumn.ID).Return(withColumn, nil)
		m.schemaRepo.On("Upsert", ctx, mock.AnythingOfType("*models.GroupCustomSchema")).Return(nil)
		m.publisher.On("Publish", events.SchemaRevertedEvent{
			SchemaID:    withColumn.ID,
			GroupID:     "group-1",
			FromVersion: 2,
			ToVersion:   1,
			RevertedBy:  "admin",
		}).Return()

		svc := NewSchemaService(m.factory, r, m.metrics)
		reverted, err := svc.Revert(ctx, withColumn.ID, "admin")

		require.NoError(t, err)
		assert.Equal(t, 3, reverted.Version)
		assert.Empty(t, reverted.Columns)
		require.NotNil(t, reverted.PreviousVersion)
		assert.Len(t, reverted.PreviousVersion.Columns, 1)
		m.assertExpectations(t)
	})

	t.Run("no previous version", func(t *testing.T) {
		m := newSchemaMocks()
		stored := r.NewDefaultSchema("group-1", "admin")

		m.expectTransaction(ctx, false)
		m.schemaRepo.On("GetByID", ctx, stored.ID).Return(stored, nil)

		svc := NewSchemaService(m.factory, r, m.metrics)
		_, err := svc.Revert(ctx, stored.ID, "admin")

		assert.ErrorIs(t, err, ErrNoPreviousVersion)
		m.assertExpectations(t)
	})
}

func TestSchemaService_SetDefault(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newSchemaMocks()
	r := newTestRegistry()
	stored := r.NewDefaultSchema("group-1", "admin")
	stored.ID = "schema-alt"
	stored.IsDefault = false

	m.expectTransaction(ctx, true)
	m.schemaRepo.On("GetByID", ctx, "schema-alt").Return(stored, nil)
	m.schemaRepo.On("ClearDefault", ctx, "group-1", "schema-alt").Return(nil)
	m.schemaRepo.On("Upsert", ctx, mock.MatchedBy(func(s *models.GroupCustomSchema) bool {
		return s.ID == "schema-alt" && s.IsDefault
	})).Return(nil)
	m.publisher.On("Publish", events.DefaultSchemaChangedEvent{GroupID: "group-1", SchemaID: "schema-alt"}).Return()

	svc := NewSchemaService(m.factory, r, m.metrics)
	require.NoError(t, svc.SetDefault(ctx, "schema-alt"))
	m.assertExpectations(t)
}

func TestSchemaService_ExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRegistry("col-ins")
	source := storedSchema(t, r, 4)

	exportMocks := newSchemaMocks()
	exportMocks.expectTransaction(ctx, false)
	exportMocks.schemaRepo.On("GetByID", ctx, source.ID).Return(source, nil)

	data, err := NewSchemaService(exportMocks.factory, r, nil).Export(ctx, source.ID, "admin", "Mahila Bachat Gat")
	require.NoError(t, err)
	exportMocks.assertExpectations(t)

	target := r.NewDefaultSchema("group-1", "admin")
	target.Version = 7

	m := newSchemaMocks()
	m.expectTransaction(ctx, true)
	m.schemaRepo.On("GetByID", ctx, target.ID).Return(target, nil)
	m.schemaRepo.On("ClearDefault", ctx, "group-1", target.ID).Return(nil)
	m.schemaRepo.On("Upsert", ctx, mock.AnythingOfType("*models.GroupCustomSchema")).Return(nil)
	m.publisher.On("Publish", mock.AnythingOfType("events.SchemaSavedEvent")).Return()
	m.metrics.On("RecordSchemaSaved", "group-1").Return()

	result, err := NewSchemaService(m.factory, r, m.metrics).Import(ctx, target.ID, data, "importer")

	require.NoError(t, err)
	require.True(t, result.Success, result.Errors)
	require.NotNil(t, result.ImportedSchema)
	assert.Equal(t, 8, result.ImportedSchema.Version)
	assert.Len(t, result.ImportedSchema.Columns, 1)
	assert.Equal(t, target.ID, result.ImportedSchema.ID)
	m.assertExpectations(t)
}

func TestSchemaService_Import_RejectsMalformed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newSchemaMocks()
	r := newTestRegistry()
	target := r.NewDefaultSchema("group-1", "admin")

	m.expectTransaction(ctx, false)
	m.schemaRepo.On("GetByID", ctx, target.ID).Return(target, nil)

	result, err := NewSchemaService(m.factory, r, m.metrics).Import(ctx, target.ID, []byte("{not json"), "importer")

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Nil(t, result.ImportedSchema)
	m.schemaRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}
