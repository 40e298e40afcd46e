package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"shgcolumns/database"
	"shgcolumns/infrastructure/observability"
	"shgcolumns/models"
)

// SchemaRepository stores schemas as JSONB documents. The indexed columns
// are authoritative over the same fields inside the document.
type SchemaRepository struct {
	q queryable
}

// NewSchemaRepository creates a new schema repository
func NewSchemaRepository(db *database.DB) *SchemaRepository {
	return &SchemaRepository{q: db.Pool}
}

// newSchemaRepositoryWithTx creates a new schema repository with a transaction
func newSchemaRepositoryWithTx(tx queryable) *SchemaRepository {
	return &SchemaRepository{q: tx}
}

const schemaColumns = `
	id, group_id, name, version, is_active, is_default, definition,
	previous_version, created_by, last_modified_by, created_at, updated_at
`

// GetByID returns nil when the schema does not exist
func (r *SchemaRepository) GetByID(ctx context.Context, schemaID string) (*models.GroupCustomSchema, error) {
	defer observability.GetMetrics().MeasureDatabaseQuery("schema", "GetByID")()

	query := `SELECT ` + schemaColumns + ` FROM group_custom_schemas WHERE id = $1`
	s, err := scanSchema(r.q.QueryRow(ctx, query, schemaID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema %s: %w", schemaID, err)
	}
	return s, nil
}

// GetDefault returns the group's default schema, or nil
func (r *SchemaRepository) GetDefault(ctx context.Context, groupID string) (*models.GroupCustomSchema, error) {
	defer observability.GetMetrics().MeasureDatabaseQuery("schema", "GetDefault")()

	query := `SELECT ` + schemaColumns + ` FROM group_custom_schemas WHERE group_id = $1 AND is_default`
	s, err := scanSchema(r.q.QueryRow(ctx, query, groupID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default schema for group %s: %w", groupID, err)
	}
	return s, nil
}

// ListByGroup returns every schema of a group, default first
func (r *SchemaRepository) ListByGroup(ctx context.Context, groupID string) ([]*models.GroupCustomSchema, error) {
	defer observability.GetMetrics().MeasureDatabaseQuery("schema", "ListByGroup")()

	query := `
		SELECT ` + schemaColumns + `
		FROM group_custom_schemas
		WHERE group_id = $1
		ORDER BY is_default DESC, created_at, id
	`
	rows, err := r.q.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas for group %s: %w", groupID, err)
	}
	defer rows.Close()

	var schemas []*models.GroupCustomSchema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schema: %w", err)
		}
		schemas = append(schemas, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schemas: %w", err)
	}
	return schemas, nil
}

// Upsert inserts or replaces a schema
func (r *SchemaRepository) Upsert(ctx context.Context, s *models.GroupCustomSchema) error {
	defer observability.GetMetrics().MeasureDatabaseQuery("schema", "Upsert")()

	doc := *s
	doc.PreviousVersion = nil
	definition, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode schema %s: %w", s.ID, err)
	}

	var previous any
	if s.PreviousVersion != nil {
		encoded, err := json.Marshal(s.PreviousVersion)
		if err != nil {
			return fmt.Errorf("failed to encode previous version of schema %s: %w", s.ID, err)
		}
		previous = string(encoded)
	}

	query := `
		INSERT INTO group_custom_schemas (
			id, group_id, name, version, is_active, is_default, definition,
			previous_version, created_by, last_modified_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			is_active = EXCLUDED.is_active,
			is_default = EXCLUDED.is_default,
			definition = EXCLUDED.definition,
			previous_version = EXCLUDED.previous_version,
			last_modified_by = EXCLUDED.last_modified_by,
			updated_at = EXCLUDED.updated_at
		WHERE group_custom_schemas.group_id = EXCLUDED.group_id
	`
	tag, err := r.q.Exec(ctx, query,
		s.ID, s.GroupID, s.Name, s.Version, s.IsActive, s.IsDefault, string(definition),
		previous, s.CreatedBy, s.LastModifiedBy, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert schema %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schema %s belongs to another group", s.ID)
	}
	return nil
}

// ClearDefault unsets the default flag on every schema of the group except keepID
func (r *SchemaRepository) ClearDefault(ctx context.Context, groupID, keepID string) error {
	defer observability.GetMetrics().MeasureDatabaseQuery("schema", "ClearDefault")()

	query := `
		UPDATE group_custom_schemas
		SET is_default = FALSE
		WHERE group_id = $1 AND id <> $2 AND is_default
	`
	if _, err := r.q.Exec(ctx, query, groupID, keepID); err != nil {
		return fmt.Errorf("failed to clear default schema for group %s: %w", groupID, err)
	}
	return nil
}

func scanSchema(row pgx.Row) (*models.GroupCustomSchema, error) {
	var (
		s                                            models.GroupCustomSchema
		definition, previous                         []byte
		id, groupID, name, createdBy, lastModifiedBy string
		version                                      int
		isActive, isDefault                          bool
	)
	err := row.Scan(
		&id, &groupID, &name, &version, &isActive, &isDefault, &definition,
		&previous, &createdBy, &lastModifiedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	createdAt, updatedAt := s.CreatedAt, s.UpdatedAt
	if err := json.Unmarshal(definition, &s); err != nil {
		return nil, fmt.Errorf("failed to decode schema %s: %w", id, err)
	}
	if previous != nil {
		s.PreviousVersion = &models.GroupCustomSchema{}
		if err := json.Unmarshal(previous, s.PreviousVersion); err != nil {
			return nil, fmt.Errorf("failed to decode previous version of schema %s: %w", id, err)
		}
	}

	s.ID = id
	s.GroupID = groupID
	s.Name = name
	s.Version = version
	s.IsActive = isActive
	s.IsDefault = isDefault
	s.CreatedBy = createdBy
	s.LastModifiedBy = lastModifiedBy
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt
	if s.Columns == nil {
		s.Columns = []models.CustomColumn{}
	}
	if s.GlobalProperties == nil {
		s.GlobalProperties = []models.ColumnProperty{}
	}
	return &s, nil
}
