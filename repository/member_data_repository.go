package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"shgcolumns/database"
	"shgcolumns/infrastructure/observability"
	"shgcolumns/models"
)

// MemberDataRepository stores per-member column values, one row per member
// and schema
type MemberDataRepository struct {
	q queryable
}

// NewMemberDataRepository creates a new member data repository
func NewMemberDataRepository(db *database.DB) *MemberDataRepository {
	return &MemberDataRepository{q: db.Pool}
}

// newMemberDataRepositoryWithTx creates a new member data repository with a transaction
func newMemberDataRepositoryWithTx(tx queryable) *MemberDataRepository {
	return &MemberDataRepository{q: tx}
}

const memberDataColumns = `
	id, member_id, group_id, schema_id, schema_version,
	column_values, calculated_values, last_updated, updated_by
`

// Upsert inserts or replaces the member's values for a schema. On replace the
// existing row id is kept and written back to data.ID.
func (r *MemberDataRepository) Upsert(ctx context.Context, data *models.MemberCustomData) error {
	defer observability.GetMetrics().MeasureDatabaseQuery("member_data", "Upsert")()

	columnValues, err := encodeValues(data.ColumnValues)
	if err != nil {
		return fmt.Errorf("failed to encode column values for member %s: %w", data.MemberID, err)
	}
	calculatedValues, err := encodeValues(data.CalculatedValues)
	if err != nil {
		return fmt.Errorf("failed to encode calculated values for member %s: %w", data.MemberID, err)
	}

	query := `
		INSERT INTO member_custom_data (` + memberDataColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (schema_id, member_id) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			column_values = EXCLUDED.column_values,
			calculated_values = EXCLUDED.calculated_values,
			last_updated = EXCLUDED.last_updated,
			updated_by = EXCLUDED.updated_by
		RETURNING id
	`
	err = r.q.QueryRow(ctx, query,
		data.ID, data.MemberID, data.GroupID, data.SchemaID, data.SchemaVersion,
		columnValues, calculatedValues, data.LastUpdated, data.UpdatedBy,
	).Scan(&data.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert values for member %s: %w", data.MemberID, err)
	}
	return nil
}

// GetByMember returns nil when the member has no stored values
func (r *MemberDataRepository) GetByMember(ctx context.Context, schemaID, memberID string) (*models.MemberCustomData, error) {
	defer observability.GetMetrics().MeasureDatabaseQuery("member_data", "GetByMember")()

	query := `SELECT ` + memberDataColumns + ` FROM member_custom_data WHERE schema_id = $1 AND member_id = $2`
	data, err := scanMemberData(r.q.QueryRow(ctx, query, schemaID, memberID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get values for member %s: %w", memberID, err)
	}
	return data, nil
}

// ListBySchema returns all stored member values for a schema ordered by member
func (r *MemberDataRepository) ListBySchema(ctx context.Context, schemaID string) ([]*models.MemberCustomData, error) {
	defer observability.GetMetrics().MeasureDatabaseQuery("member_data", "ListBySchema")()

	query := `SELECT ` + memberDataColumns + ` FROM member_custom_data WHERE schema_id = $1 ORDER BY member_id`
	rows, err := r.q.Query(ctx, query, schemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member values for schema %s: %w", schemaID, err)
	}
	defer rows.Close()

	var out []*models.MemberCustomData
	for rows.Next() {
		data, err := scanMemberData(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member values: %w", err)
		}
		out = append(out, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate member values: %w", err)
	}
	return out, nil
}

func scanMemberData(row pgx.Row) (*models.MemberCustomData, error) {
	var (
		data                     models.MemberCustomData
		columnValues, calculated []byte
	)
	err := row.Scan(
		&data.ID, &data.MemberID, &data.GroupID, &data.SchemaID, &data.SchemaVersion,
		&columnValues, &calculated, &data.LastUpdated, &data.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	if data.ColumnValues, err = decodeValues(columnValues); err != nil {
		return nil, fmt.Errorf("failed to decode column values: %w", err)
	}
	if data.CalculatedValues, err = decodeValues(calculated); err != nil {
		return nil, fmt.Errorf("failed to decode calculated values: %w", err)
	}
	return &data, nil
}

func encodeValues(values map[string]any) (string, error) {
	if values == nil {
		return "{}", nil
	}
	b, err := json.Marshal(values)
	return string(b), err
}

// decodeValues keeps numbers as json.Number so stored decimals round-trip exactly
func decodeValues(raw []byte) (map[string]any, error) {
	values := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}
