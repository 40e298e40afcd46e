package service

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"shgcolumns/events"
	"shgcolumns/models"
	"shgcolumns/schema"
)

var (
	ErrSchemaNotFound    = errors.New("schema not found")
	ErrSchemaInvalid     = schema.ErrSchemaInvalid
	ErrNoPreviousVersion = errors.New("schema has no previous version")
)

// schemaService implements the SchemaService interface
type schemaService struct {
	uowFactory UnitOfWorkFactory
	registry   *schema.Registry
	metrics    Metrics
}

// NewSchemaService creates a new schema service. A nil metrics records nothing.
func NewSchemaService(uowFactory UnitOfWorkFactory, registry *schema.Registry, metrics Metrics) SchemaService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &schemaService{
		uowFactory: uowFactory,
		registry:   registry,
		metrics:    metrics,
	}
}

// GetOrCreateDefault returns the group's default schema, creating it on first use
func (s *schemaService) GetOrCreateDefault(ctx context.Context, groupID, actor string) (*models.GroupCustomSchema, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	existing, err := uow.SchemaRepository().GetDefault(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get default schema: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	created := s.registry.NewDefaultSchema(groupID, actor)
	if err := uow.SchemaRepository().ClearDefault(ctx, groupID, created.ID); err != nil {
		return nil, fmt.Errorf("failed to clear default schema: %w", err)
	}
	if err := uow.SchemaRepository().Upsert(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to create default schema: %w", err)
	}

	uow.EventBus().Publish(events.SchemaSavedEvent{
		SchemaID:  created.ID,
		GroupID:   groupID,
		Version:   created.Version,
		IsDefault: true,
		SavedBy:   created.CreatedBy,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"groupId":  groupID,
		"schemaId": created.ID,
	}).Info("Created default schema")
	return created, nil
}

// Get returns a schema by id
func (s *schemaService) Get(ctx context.Context, schemaID string) (*models.GroupCustomSchema, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return s.load(ctx, uow, schemaID)
}

// ListByGroup returns every schema of a group
func (s *schemaService) ListByGroup(ctx context.Context, groupID string) ([]*models.GroupCustomSchema, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	schemas, err := uow.SchemaRepository().ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	return schemas, nil
}

// Save validates the schema and stores it as the next version. Validation
// errors block the save and come back as a *schema.ValidationError.
func (s *schemaService) Save(ctx context.Context, in *models.GroupCustomSchema) (*models.GroupCustomSchema, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	saved, err := s.save(ctx, uow, in)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.metrics.RecordSchemaSaved(saved.GroupID)
	return saved, nil
}

// SaveFunc adapts Save to the SaveFunc boundary
func (s *schemaService) SaveFunc() SaveFunc {
	return func(ctx context.Context, in *models.GroupCustomSchema) error {
		_, err := s.Save(ctx, in)
		return err
	}
}

func (s *schemaService) save(ctx context.Context, uow UnitOfWork, in *models.GroupCustomSchema) (*models.GroupCustomSchema, error) {
	if in == nil {
		return nil, fmt.Errorf("schema is required")
	}

	problems := s.registry.Validate(in)
	if problems.HasErrors() {
		s.metrics.RecordValidationFailure(in.GroupID)
		log.WithFields(log.Fields{
			"schemaId": in.ID,
			"groupId":  in.GroupID,
			"errors":   problems.Errors,
		}).Warn("Rejected invalid schema")
		return nil, &schema.ValidationError{Problems: problems}
	}

	repo := uow.SchemaRepository()
	stored, err := repo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stored schema: %w", err)
	}

	next := in.Clone()
	previousVersion := 0
	if stored != nil {
		if stored.GroupID != in.GroupID {
			return nil, fmt.Errorf("schema %s belongs to group %s", in.ID, stored.GroupID)
		}
		previousVersion = stored.Version
		next = s.nextVersion(stored, in, in.LastModifiedBy)
		next.IsDefault = in.IsDefault
	} else if next.Version < 1 {
		next.Version = 1
	}

	if next.IsDefault {
		if err := repo.ClearDefault(ctx, next.GroupID, next.ID); err != nil {
			return nil, fmt.Errorf("failed to clear default schema: %w", err)
		}
	}
	if err := repo.Upsert(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save schema: %w", err)
	}

	uow.EventBus().Publish(events.SchemaSavedEvent{
		SchemaID:        next.ID,
		GroupID:         next.GroupID,
		Version:         next.Version,
		PreviousVersion: previousVersion,
		ColumnCount:     len(next.Columns),
		IsDefault:       next.IsDefault,
		SavedBy:         next.LastModifiedBy,
	})

	log.WithFields(log.Fields{
		"schemaId": next.ID,
		"groupId":  next.GroupID,
		"version":  next.Version,
		"warnings": len(problems.Warnings),
	}).Info("Saved schema")
	return next, nil
}

// nextVersion builds the version after stored with content's columns and
// settings. stored becomes the single undo snapshot; identity and creation
// fields stay with stored.
func (s *schemaService) nextVersion(stored, content *models.GroupCustomSchema, actor string) *models.GroupCustomSchema {
	bumped := s.registry.BumpVersion(stored, actor)

	next := content.Clone()
	next.ID = stored.ID
	next.GroupID = stored.GroupID
	next.IsDefault = stored.IsDefault
	next.CreatedAt = stored.CreatedAt
	next.CreatedBy = stored.CreatedBy
	next.Version = bumped.Version
	next.UpdatedAt = bumped.UpdatedAt
	next.LastModifiedBy = bumped.LastModifiedBy
	next.PreviousVersion = bumped.PreviousVersion
	return next
}

// Revert stores the previous version's content as a new version, so the
// revert itself can be undone
func (s *schemaService) Revert(ctx context.Context, schemaID, actor string) (*models.GroupCustomSchema, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stored, err := s.load(ctx, uow, schemaID)
	if err != nil {
		return nil, err
	}
	if stored.PreviousVersion == nil {
		return nil, ErrNoPreviousVersion
	}

	next := s.nextVersion(stored, stored.PreviousVersion, actor)
	if err := uow.SchemaRepository().Upsert(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save reverted schema: %w", err)
	}

	uow.EventBus().Publish(events.SchemaRevertedEvent{
		SchemaID:    next.ID,
		GroupID:     next.GroupID,
		FromVersion: stored.Version,
		ToVersion:   stored.PreviousVersion.Version,
		RevertedBy:  next.LastModifiedBy,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"schemaId":    next.ID,
		"fromVersion": stored.Version,
		"toVersion":   stored.PreviousVersion.Version,
	}).Info("Reverted schema")
	return next, nil
}

// SetDefault makes the schema its group's default
func (s *schemaService) SetDefault(ctx context.Context, schemaID string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stored, err := s.load(ctx, uow, schemaID)
	if err != nil {
		return err
	}
	if stored.IsDefault {
		return nil
	}

	if err := uow.SchemaRepository().ClearDefault(ctx, stored.GroupID, stored.ID); err != nil {
		return fmt.Errorf("failed to clear default schema: %w", err)
	}
	stored.IsDefault = true
	if err := uow.SchemaRepository().Upsert(ctx, stored); err != nil {
		return fmt.Errorf("failed to save default schema: %w", err)
	}

	uow.EventBus().Publish(events.DefaultSchemaChangedEvent{GroupID: stored.GroupID, SchemaID: stored.ID})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Export serialises a stored schema in the interchange format
func (s *schemaService) Export(ctx context.Context, schemaID, actor, groupName string) ([]byte, error) {
	stored, err := s.Get(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	data, err := s.registry.Export(stored, actor, groupName)
	if err != nil {
		return nil, fmt.Errorf("failed to export schema: %w", err)
	}
	return data, nil
}

// Import checks an export against the stored schema and, when it is valid,
// saves it as the schema's next version
func (s *schemaService) Import(ctx context.Context, schemaID string, data []byte, actor string) (*models.SchemaImportResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	target, err := s.load(ctx, uow, schemaID)
	if err != nil {
		return nil, err
	}

	result := s.registry.Import(target, data, actor)
	if !result.Success {
		log.WithFields(log.Fields{
			"schemaId": schemaID,
			"errors":   result.Errors,
		}).Warn("Rejected schema import")
		return result, nil
	}

	saved, err := s.save(ctx, uow, result.ImportedSchema)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.metrics.RecordSchemaSaved(saved.GroupID)
	result.ImportedSchema = saved
	return result, nil
}

func (s *schemaService) load(ctx context.Context, uow UnitOfWork, schemaID string) (*models.GroupCustomSchema, error) {
	stored, err := uow.SchemaRepository().GetByID(ctx, schemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, schemaID)
	}
	return stored, nil
}
