package models

import (
	"time"
)

// SchemaExportMetadata describes where and when an export was produced
type SchemaExportMetadata struct {
	ExportedAt time.Time `json:"exportedAt"`
	ExportedBy string    `json:"exportedBy"`
	Version    string    `json:"version"`
	GroupName  string    `json:"groupName"`
}

// SchemaExportData is the backup/restore interchange format
type SchemaExportData struct {
	Schema   GroupCustomSchema    `json:"schema"`
	Metadata SchemaExportMetadata `json:"metadata"`
}

// SchemaImportResult reports the outcome of importing an export
type SchemaImportResult struct {
	Success            bool               `json:"success"`
	Errors             []string           `json:"errors"`
	Warnings           []string           `json:"warnings"`
	ImportedSchema     *GroupCustomSchema `json:"importedSchema,omitempty"`
	ConflictingColumns []string           `json:"conflictingColumns,omitempty"`
}
