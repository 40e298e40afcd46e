package schema

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"shgcolumns/formula"
	"shgcolumns/models"
	"shgcolumns/templates"
)

// Default schema settings
const (
	DefaultSchemaName = "Default Schema"
	SystemActor       = "system"
	copySuffix        = " (Copy)"
)

// Registry owns the structural rules of a schema. Every mutation works on a
// copy and returns the new schema; the input is never modified.
type Registry struct {
	validate    *validator.Validate
	knownFields []string
	now         func() time.Time
	newID       func() string
}

// Option configures a Registry
type Option func(*Registry)

// WithClock sets the time source used for audit timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator sets the column id generator
func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) { r.newID = newID }
}

// WithKnownFields adds member or group fields formulas may reference in
// addition to the standard ones
func WithKnownFields(fields ...string) Option {
	return func(r *Registry) { r.knownFields = append(r.knownFields, fields...) }
}

// NewRegistry creates a registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		knownFields: append([]string(nil), models.StandardFields...),
		now:         time.Now,
		newID:       templates.NewColumnID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// KnownFields returns the non-column fields formulas may reference
func (r *Registry) KnownFields() []string {
	return append([]string(nil), r.knownFields...)
}

// NewDefaultSchema returns the empty default schema for a group
func (r *Registry) NewDefaultSchema(groupID, actor string) *models.GroupCustomSchema {
	if actor == "" {
		actor = SystemActor
	}
	now := r.now()
	return &models.GroupCustomSchema{
		ID:               "schema-" + groupID,
		GroupID:          groupID,
		Name:             DefaultSchemaName,
		Description:      "Default custom column schema",
		Version:          1,
		Columns:          []models.CustomColumn{},
		GlobalProperties: []models.ColumnProperty{},
		IsActive:         true,
		IsDefault:        true,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        actor,
		LastModifiedBy:   actor,
	}
}

// AddColumn appends a column after every existing one. A missing id is
// generated. The column and its formula are validated against the result.
func (r *Registry) AddColumn(s *models.GroupCustomSchema, col models.CustomColumn) (*models.GroupCustomSchema, error) {
	out := s.Clone()
	col = col.Clone()
	if col.ID == "" {
		col.ID = r.newID()
	}
	if _, exists := out.Column(col.ID); exists {
		return nil, &ValidationError{Problems: Problems{Errors: []string{"Duplicate column id: " + col.ID}}}
	}

	now := r.now()
	col.Order = out.MaxOrder() + 1
	if col.DisplayConfig.FormatType == "" {
		col.DisplayConfig.FormatType = models.DefaultFormatType(col.DataType)
	}
	if col.CreatedAt.IsZero() {
		col.CreatedAt = now
	}
	col.UpdatedAt = now

	out.Columns = append(out.Columns, col)
	added := &out.Columns[len(out.Columns)-1]
	r.syncReferences(out, added)
	out.UpdatedAt = now

	if p := r.checkColumn(out, added); p.HasErrors() {
		return nil, &ValidationError{Problems: p}
	}
	return out, nil
}

// ColumnPatch lists the fields of a column to change. Nil fields are left
// alone.
type ColumnPatch struct {
	Name            *string
	Description     *string
	DataType        *models.DataType
	IsActive        *bool
	Properties      *[]models.ColumnProperty
	Formula         *models.ColumnFormula
	RemoveFormula   bool
	DropdownOptions *[]models.DropdownOption
	DisplayConfig   *models.DisplayConfig
	Validation      *models.ColumnValidation
	Permissions     *models.ColumnPermissions
}

// UpdateColumn applies a patch. The touched column and every column whose
// formula references it are re-validated.
func (r *Registry) UpdateColumn(s *models.GroupCustomSchema, columnID string, patch ColumnPatch) (*models.GroupCustomSchema, error) {
	out := s.Clone()
	col, ok := out.Column(columnID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, columnID)
	}
	if !col.Permissions.CanEdit {
		return nil, fmt.Errorf("%w: %s cannot be edited", ErrColumnLocked, col.Name)
	}

	if patch.Name != nil {
		col.Name = *patch.Name
	}
	if patch.Description != nil {
		col.Description = *patch.Description
	}
	if patch.DataType != nil && *patch.DataType != col.DataType {
		col.DataType = *patch.DataType
		if patch.DisplayConfig == nil {
			col.DisplayConfig.FormatType = models.DefaultFormatType(col.DataType)
		}
	}
	if patch.IsActive != nil {
		col.IsActive = *patch.IsActive
	}
	if patch.Properties != nil {
		props := make([]models.ColumnProperty, len(*patch.Properties))
		for i, prop := range *patch.Properties {
			props[i] = prop.Clone()
		}
		col.Properties = props
	}
	switch {
	case patch.RemoveFormula:
		col.Formula = nil
	case patch.Formula != nil:
		f := patch.Formula.Clone()
		col.Formula = &f
	}
	if patch.DropdownOptions != nil {
		col.DropdownOptions = append([]models.DropdownOption(nil), *patch.DropdownOptions...)
	}
	if patch.DisplayConfig != nil {
		col.DisplayConfig = *patch.DisplayConfig
		if col.DisplayConfig.FormatType == "" {
			col.DisplayConfig.FormatType = models.DefaultFormatType(col.DataType)
		}
	}
	if patch.Validation != nil {
		v := *patch.Validation
		col.Validation = &v
	}
	if patch.Permissions != nil {
		col.Permissions = *patch.Permissions
	}

	now := r.now()
	col.UpdatedAt = now
	out.UpdatedAt = now
	r.syncReferences(out, col)

	p := r.checkColumn(out, col)
	for _, i := range r.dependents(s, columnID) {
		p.merge(r.checkColumn(out, &out.Columns[i]))
	}
	if p.HasErrors() {
		return nil, &ValidationError{Problems: p}
	}
	return out, nil
}

// DeleteColumn removes a column. Formulas that referenced it are not changed;
// they are reported in the returned problems and block a save until fixed.
func (r *Registry) DeleteColumn(s *models.GroupCustomSchema, columnID string) (*models.GroupCustomSchema, Problems, error) {
	col, ok := s.Column(columnID)
	if !ok {
		return nil, Problems{}, fmt.Errorf("%w: %s", ErrColumnNotFound, columnID)
	}
	if !col.Permissions.CanDelete {
		return nil, Problems{}, fmt.Errorf("%w: %s cannot be deleted", ErrColumnLocked, col.Name)
	}

	var p Problems
	for _, i := range r.dependents(s, columnID) {
		p.Errors = append(p.Errors, s.Columns[i].Name+": "+MsgMissingColumns+columnID)
	}

	out := s.Clone()
	kept := make([]models.CustomColumn, 0, len(out.Columns))
	for _, c := range out.Columns {
		if c.ID != columnID {
			kept = append(kept, c)
		}
	}
	out.Columns = kept
	out.UpdatedAt = r.now()
	return out, p, nil
}

// ReorderColumns assigns order index+1 to the given ids in sequence. Columns
// not listed keep their relative order after the listed ones.
func (r *Registry) ReorderColumns(s *models.GroupCustomSchema, orderedIDs []string) (*models.GroupCustomSchema, error) {
	out := s.Clone()
	position := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		if _, ok := out.Column(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, id)
		}
		if _, dup := position[id]; dup {
			return nil, fmt.Errorf("column %s listed more than once", id)
		}
		position[id] = i
	}

	var rest []*models.CustomColumn
	for i := range out.Columns {
		c := &out.Columns[i]
		if pos, ok := position[c.ID]; ok {
			c.Order = pos + 1
			continue
		}
		rest = append(rest, c)
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].Order != rest[j].Order {
			return rest[i].Order < rest[j].Order
		}
		return rest[i].ID < rest[j].ID
	})
	for i, c := range rest {
		c.Order = len(orderedIDs) + i + 1
	}

	out.UpdatedAt = r.now()
	return out, nil
}

// DuplicateColumn copies a column by value under a new id, with " (Copy)"
// appended to its name and placed last
func (r *Registry) DuplicateColumn(s *models.GroupCustomSchema, columnID string) (*models.GroupCustomSchema, error) {
	src, ok := s.Column(columnID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, columnID)
	}
	dup := src.Clone()
	dup.ID = r.newID()
	dup.Name = src.Name + copySuffix
	dup.CreatedAt = time.Time{}
	return r.AddColumn(s, dup)
}

// ToggleColumn flips a column between active and inactive
func (r *Registry) ToggleColumn(s *models.GroupCustomSchema, columnID string) (*models.GroupCustomSchema, error) {
	out := s.Clone()
	col, ok := out.Column(columnID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, columnID)
	}
	now := r.now()
	col.IsActive = !col.IsActive
	col.UpdatedAt = now
	out.UpdatedAt = now
	return out, nil
}

// AddFromTemplate instantiates a catalog template and adds it as a column
func (r *Registry) AddFromTemplate(s *models.GroupCustomSchema, templateID, actor string) (*models.GroupCustomSchema, error) {
	col, err := templates.InstantiateByID(templateID, actor, r.now())
	if err != nil {
		return nil, err
	}
	col.ID = r.newID()
	return r.AddColumn(s, col)
}

// BumpVersion increments the version and keeps the prior state as a
// single-level undo snapshot
func (r *Registry) BumpVersion(s *models.GroupCustomSchema, actor string) *models.GroupCustomSchema {
	prev := s.Clone()
	prev.PreviousVersion = nil

	out := s.Clone()
	out.PreviousVersion = prev
	out.Version++
	out.UpdatedAt = r.now()
	if actor != "" {
		out.LastModifiedBy = actor
	}
	return out
}

// dependents returns the indexes of columns whose formula references id
func (r *Registry) dependents(s *models.GroupCustomSchema, id string) []int {
	var out []int
	for i := range s.Columns {
		c := &s.Columns[i]
		if c.ID == id || c.Formula == nil {
			continue
		}
		if contains(c.Formula.ReferencedColumns, id) || contains(r.extract(s, c).Columns, id) {
			out = append(out, i)
		}
	}
	return out
}

// extract lists the references of every expression of a column's formula
func (r *Registry) extract(s *models.GroupCustomSchema, c *models.CustomColumn) formula.References {
	var refs formula.References
	if c.Formula == nil {
		return refs
	}
	syms := SymbolsFor(s, c, r.knownFields)
	for _, expr := range c.Formula.Expressions() {
		found := formula.ExtractReferences(expr, syms)
		refs.Columns = appendMissing(refs.Columns, found.Columns...)
		refs.Properties = appendMissing(refs.Properties, found.Properties...)
		refs.Fields = appendMissing(refs.Fields, found.Fields...)
	}
	return refs
}

// syncReferences adds what the expressions reference to the formula's stored
// reference lists. Stored ids are never removed so a dangling one stays
// visible to validation.
func (r *Registry) syncReferences(s *models.GroupCustomSchema, c *models.CustomColumn) {
	if c.Formula == nil {
		return
	}
	refs := r.extract(s, c)
	syms := SymbolsFor(s, c, r.knownFields)
	c.Formula.ReferencedColumns = appendMissing(c.Formula.ReferencedColumns, refs.Columns...)
	for _, f := range refs.Fields {
		if syms.IsKnownField(f) {
			c.Formula.ReferencedColumns = appendMissing(c.Formula.ReferencedColumns, f)
		}
	}
	c.Formula.ReferencedProperties = appendMissing(c.Formula.ReferencedProperties, refs.Properties...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendMissing(list []string, items ...string) []string {
	for _, it := range items {
		if !contains(list, it) {
			list = append(list, it)
		}
	}
	return list
}
