package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"shgcolumns/models"
)

// ExportFormatVersion is the interchange format version written by Export
const ExportFormatVersion = "1.0"

// Export serialises a schema for backup. The undo snapshot is not included.
func (r *Registry) Export(s *models.GroupCustomSchema, actor, groupName string) ([]byte, error) {
	snapshot := s.Clone()
	snapshot.PreviousVersion = nil

	data := models.SchemaExportData{
		Schema: *snapshot,
		Metadata: models.SchemaExportMetadata{
			ExportedAt: r.now(),
			ExportedBy: actor,
			Version:    ExportFormatVersion,
			GroupName:  groupName,
		},
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema export: %w", err)
	}
	return out, nil
}

// Import decodes an export and rebases it onto target, keeping target's id,
// group, version and default flag. Conflicting columns are reported as
// warnings; structural errors fail the import.
func (r *Registry) Import(target *models.GroupCustomSchema, data []byte, actor string) *models.SchemaImportResult {
	result := &models.SchemaImportResult{Errors: []string{}, Warnings: []string{}}

	var export models.SchemaExportData
	if err := json.Unmarshal(data, &export); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid schema export: %v", err))
		return result
	}
	if export.Metadata.Version != ExportFormatVersion {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Export format version %q differs from %q", export.Metadata.Version, ExportFormatVersion))
	}

	imported := export.Schema.Clone()
	if imported.GroupID != "" && imported.GroupID != target.GroupID {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Schema was exported from group %s", imported.GroupID))
	}
	result.ConflictingColumns = conflictingColumns(target, imported)
	if n := len(result.ConflictingColumns); n > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d imported columns replace existing columns", n))
	}

	now := r.now()
	imported.ID = target.ID
	imported.GroupID = target.GroupID
	imported.Version = target.Version
	imported.IsDefault = target.IsDefault
	imported.CreatedAt = target.CreatedAt
	imported.CreatedBy = target.CreatedBy
	imported.UpdatedAt = now
	imported.LastModifiedBy = actor
	imported.PreviousVersion = nil
	if imported.Columns == nil {
		imported.Columns = []models.CustomColumn{}
	}
	if imported.GlobalProperties == nil {
		imported.GlobalProperties = []models.ColumnProperty{}
	}

	p := r.Validate(imported)
	result.Errors = append(result.Errors, p.Errors...)
	result.Warnings = append(result.Warnings, p.Warnings...)
	if p.HasErrors() {
		return result
	}
	result.Success = true
	result.ImportedSchema = imported
	return result
}

// conflictingColumns lists imported column ids that clash with target: the
// same id with a different definition, or the same name under another id
func conflictingColumns(target, imported *models.GroupCustomSchema) []string {
	byName := make(map[string]string, len(target.Columns))
	for _, c := range target.Columns {
		byName[models.NormalizeName(c.Name)] = c.ID
	}

	var out []string
	for _, c := range imported.Columns {
		if existing, ok := target.Column(c.ID); ok {
			if !sameDefinition(*existing, c) {
				out = append(out, c.ID)
			}
			continue
		}
		if id, ok := byName[models.NormalizeName(c.Name)]; ok && id != c.ID {
			out = append(out, c.ID)
		}
	}
	return out
}

// sameDefinition compares two columns by their JSON form, ignoring audit
// fields and position. Decoded numbers are all float64.
func sameDefinition(a, b models.CustomColumn) bool {
	strip := func(c models.CustomColumn) []byte {
		c = c.Clone()
		c.Order = 0
		c.CreatedAt, c.UpdatedAt, c.CreatedBy = time.Time{}, time.Time{}, ""
		out, err := json.Marshal(c)
		if err != nil {
			return nil
		}
		return out
	}
	left, right := strip(a), strip(b)
	return left != nil && bytes.Equal(left, right)
}
