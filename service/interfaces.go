package service

import (
	"context"
	"time"

	"shgcolumns/events"
	"shgcolumns/models"
)

// SaveFunc persists a schema. It is the boundary the schema editor hands
// finished schemas to.
type SaveFunc func(ctx context.Context, s *models.GroupCustomSchema) error

// SchemaRepository defines the interface for schema data access
type SchemaRepository interface {
	// GetByID returns nil when the schema does not exist
	GetByID(ctx context.Context, schemaID string) (*models.GroupCustomSchema, error)

	// GetDefault returns the group's default schema, or nil
	GetDefault(ctx context.Context, groupID string) (*models.GroupCustomSchema, error)

	// ListByGroup returns every schema of a group, default first
	ListByGroup(ctx context.Context, groupID string) ([]*models.GroupCustomSchema, error)

	// Upsert inserts or replaces a schema
	Upsert(ctx context.Context, s *models.GroupCustomSchema) error

	// ClearDefault unsets the default flag on every schema of the group except keepID
	ClearDefault(ctx context.Context, groupID, keepID string) error
}

// MemberDataRepository defines the interface for stored member column values
type MemberDataRepository interface {
	// Upsert inserts or replaces the member's values for a schema
	Upsert(ctx context.Context, data *models.MemberCustomData) error

	// GetByMember returns nil when the member has no stored values
	GetByMember(ctx context.Context, schemaID, memberID string) (*models.MemberCustomData, error)

	// ListBySchema returns all stored member values for a schema
	ListBySchema(ctx context.Context, schemaID string) ([]*models.MemberCustomData, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// Metrics records service-level measurements
type Metrics interface {
	RecordRowsEvaluated(rows int, duration time.Duration)
	RecordCellError(reason string)
	RecordSchemaSaved(groupID string)
	RecordValidationFailure(groupID string)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes queued events
	Commit() error

	// Rollback rolls back the transaction and drops queued events
	Rollback() error

	SchemaRepository() SchemaRepository
	MemberDataRepository() MemberDataRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// SchemaService manages the stored lifecycle of group schemas
type SchemaService interface {
	// GetOrCreateDefault returns the group's default schema, creating an
	// empty one on first use
	GetOrCreateDefault(ctx context.Context, groupID, actor string) (*models.GroupCustomSchema, error)

	Get(ctx context.Context, schemaID string) (*models.GroupCustomSchema, error)
	ListByGroup(ctx context.Context, groupID string) ([]*models.GroupCustomSchema, error)

	// Save validates and stores a new version of the schema
	Save(ctx context.Context, s *models.GroupCustomSchema) (*models.GroupCustomSchema, error)

	// SaveFunc adapts Save to the SaveFunc boundary
	SaveFunc() SaveFunc

	// Revert restores the schema's previous version as a new version
	Revert(ctx context.Context, schemaID, actor string) (*models.GroupCustomSchema, error)

	// SetDefault makes the schema its group's default
	SetDefault(ctx context.Context, schemaID string) error

	Export(ctx context.Context, schemaID, actor, groupName string) ([]byte, error)

	// Import replaces the schema with an export's contents. Nothing is
	// stored unless the result reports success.
	Import(ctx context.Context, schemaID string, data []byte, actor string) (*models.SchemaImportResult, error)
}

// CalculationService evaluates member rows against a group's default schema
type CalculationService interface {
	Calculate(ctx context.Context, req CalculationRequest) (*CalculationResult, error)
}
