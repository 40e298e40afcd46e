package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"shgcolumns/events"
	"shgcolumns/models"
)

// MockSchemaRepository is a mock implementation of SchemaRepository
type MockSchemaRepository struct {
	mock.Mock
}

func (m *MockSchemaRepository) GetByID(ctx context.Context, schemaID string) (*models.GroupCustomSchema, error) {
	args := m.Called(ctx, schemaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GroupCustomSchema), args.Error(1)
}

func (m *MockSchemaRepository) GetDefault(ctx context.Context, groupID string) (*models.GroupCustomSchema, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GroupCustomSchema), args.Error(1)
}

func (m *MockSchemaRepository) ListByGroup(ctx context.Context, groupID string) ([]*models.GroupCustomSchema, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GroupCustomSchema), args.Error(1)
}

func (m *MockSchemaRepository) Upsert(ctx context.Context, s *models.GroupCustomSchema) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSchemaRepository) ClearDefault(ctx context.Context, groupID, keepID string) error {
	args := m.Called(ctx, groupID, keepID)
	return args.Error(0)
}

// MockMemberDataRepository is a mock implementation of MemberDataRepository
type MockMemberDataRepository struct {
	mock.Mock
}

func (m *MockMemberDataRepository) Upsert(ctx context.Context, data *models.MemberCustomData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *MockMemberDataRepository) GetByMember(ctx context.Context, schemaID, memberID string) (*models.MemberCustomData, error) {
	args := m.Called(ctx, schemaID, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MemberCustomData), args.Error(1)
}

func (m *MockMemberDataRepository) ListBySchema(ctx context.Context, schemaID string) ([]*models.MemberCustomData, error) {
	args := m.Called(ctx, schemaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MemberCustomData), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockMetrics is a mock implementation of Metrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordRowsEvaluated(rows int, duration time.Duration) {
	m.Called(rows, duration)
}

func (m *MockMetrics) RecordCellError(reason string) {
	m.Called(reason)
}

func (m *MockMetrics) RecordSchemaSaved(groupID string) {
	m.Called(groupID)
}

func (m *MockMetrics) RecordValidationFailure(groupID string) {
	m.Called(groupID)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return whatever SetRepositories configured.
type MockUnitOfWork struct {
	mock.Mock
	schemaRepo     SchemaRepository
	memberDataRepo MemberDataRepository
	eventBus       EventPublisher
}

// SetRepositories configures the repositories handed out by the unit of work
func (m *MockUnitOfWork) SetRepositories(schemaRepo SchemaRepository, memberDataRepo MemberDataRepository, eventBus EventPublisher) {
	m.schemaRepo = schemaRepo
	m.memberDataRepo = memberDataRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) SchemaRepository() SchemaRepository {
	return m.schemaRepo
}

func (m *MockUnitOfWork) MemberDataRepository() MemberDataRepository {
	return m.memberDataRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
