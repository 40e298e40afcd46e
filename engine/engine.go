package engine

import (
	"regexp"

	"github.com/shopspring/decimal"

	"shgcolumns/formula"
	"shgcolumns/models"
	"shgcolumns/property"
	"shgcolumns/report"
	"shgcolumns/schema"
)

// Options configures an Evaluator
type Options struct {
	// Formatter renders cell values. Defaults to en-IN rupees.
	Formatter *report.Formatter
	// KnownFields are the non-column fields formulas may reference. Defaults
	// to the standard member and group fields.
	KnownFields []string
}

// Cell is one column's outcome for one row. Exactly one of Value and Err is
// meaningful.
type Cell struct {
	ColumnID  string
	Value     formula.Value
	Formatted string
	Err       *formula.EvaluationError
}

// OK reports whether the cell evaluated
func (c Cell) OK() bool {
	return c.Err == nil
}

// Row is one member's evaluated cells in display order
type Row struct {
	Cells []Cell
}

// Cell returns the cell for a column
func (r Row) Cell(columnID string) (Cell, bool) {
	for _, c := range r.Cells {
		if c.ColumnID == columnID {
			return c, true
		}
	}
	return Cell{}, false
}

// Values returns the non-empty values of cells that evaluated, keyed by
// column id, in a JSON-friendly form
func (r Row) Values() map[string]any {
	out := make(map[string]any, len(r.Cells))
	for _, c := range r.Cells {
		if c.OK() && !c.Value.IsNull() {
			out[c.ColumnID] = c.Value.Interface()
		}
	}
	return out
}

// Failed returns the cells that did not evaluate
func (r Row) Failed() []Cell {
	var out []Cell
	for _, c := range r.Cells {
		if !c.OK() {
			out = append(out, c)
		}
	}
	return out
}

// propertyKey identifies a property as seen from one column; a column's own
// property shadows a global one with the same id
type propertyKey struct {
	column, property string
}

type compiledTiers struct {
	progs []*formula.Program
	err   error
}

// Evaluator turns member rows into cells for one schema. Formulas and tier
// conditions are compiled once in New.
type Evaluator struct {
	schema    *models.GroupCustomSchema
	display   []models.CustomColumn
	columns   map[string]*models.CustomColumn
	symbols   map[string]*formula.Symbols
	compiled  map[string]*formula.Compiled
	broken    map[string]*formula.EvaluationError
	tiers     map[propertyKey]compiledTiers
	patterns  map[string]*regexp.Regexp
	formatter *report.Formatter
}

// New prepares an evaluator. A formula that does not compile does not fail
// New; every cell of that column reports the compile error instead.
func New(s *models.GroupCustomSchema, opts Options) *Evaluator {
	s = s.Clone()
	fields := opts.KnownFields
	if fields == nil {
		fields = models.StandardFields
	}
	e := &Evaluator{
		schema:    s,
		display:   s.ActiveColumns(),
		columns:   make(map[string]*models.CustomColumn, len(s.Columns)),
		symbols:   make(map[string]*formula.Symbols, len(s.Columns)),
		compiled:  make(map[string]*formula.Compiled),
		broken:    make(map[string]*formula.EvaluationError),
		tiers:     make(map[propertyKey]compiledTiers),
		patterns:  make(map[string]*regexp.Regexp),
		formatter: opts.Formatter,
	}
	if e.formatter == nil {
		e.formatter = report.DefaultFormatter()
	}

	for i := range s.Columns {
		c := &s.Columns[i]
		e.columns[c.ID] = c
		syms := schema.SymbolsFor(s, c, fields)
		e.symbols[c.ID] = syms

		if c.Formula != nil {
			compiled, err := formula.Compile(c.Formula, syms)
			if err != nil {
				reason := formula.AsEvaluationError(err).Reason
				e.broken[c.ID] = &formula.EvaluationError{Reason: reason, Ref: c.ID, Message: err.Error()}
			} else {
				e.compiled[c.ID] = compiled
			}
		}
		e.compileTiers(c, append(append([]models.ColumnProperty(nil), c.Properties...), s.GlobalProperties...), syms)
		if c.Validation != nil && c.Validation.Pattern != "" {
			if re, err := regexp.Compile(c.Validation.Pattern); err == nil {
				e.patterns[c.ID] = re
			}
		}
	}
	return e
}

func (e *Evaluator) compileTiers(c *models.CustomColumn, props []models.ColumnProperty, syms *formula.Symbols) {
	for _, p := range props {
		key := propertyKey{column: c.ID, property: p.ID}
		if _, seen := e.tiers[key]; seen || p.Type != models.PropertyTypeTieredAmount {
			continue
		}
		progs, err := property.CompileTiers(p, syms)
		e.tiers[key] = compiledTiers{progs: progs, err: err}
	}
}

// Schema returns the evaluator's copy of the schema
func (e *Evaluator) Schema() *models.GroupCustomSchema {
	return e.schema
}

// Columns returns the active columns in display order
func (e *Evaluator) Columns() []models.CustomColumn {
	return e.display
}

// EvaluateRow evaluates every active column for one member. A failing cell
// never stops the others.
func (e *Evaluator) EvaluateRow(ctx *models.CalculationContext) Row {
	re := e.newRowEval(ctx)
	row := Row{Cells: make([]Cell, 0, len(e.display))}
	for i := range e.display {
		c := &e.display[i]
		v, err := re.column(c.ID)
		row.Cells = append(row.Cells, e.cell(c, v, err))
	}
	return row
}

// EvaluateColumn evaluates a single column, active or not
func (e *Evaluator) EvaluateColumn(ctx *models.CalculationContext, columnID string) Cell {
	c, ok := e.columns[columnID]
	if !ok {
		return Cell{ColumnID: columnID, Err: formula.Errorf(formula.ReasonUnresolvedReference, columnID, "column not found")}
	}
	v, err := e.newRowEval(ctx).column(columnID)
	return e.cell(c, v, err)
}

// Format renders a value with a column's display configuration
func (e *Evaluator) Format(c *models.CustomColumn, v formula.Value) string {
	return e.formatter.Format(v, displayConfig(c))
}

func (e *Evaluator) cell(c *models.CustomColumn, v formula.Value, err error) Cell {
	if err != nil {
		return Cell{ColumnID: c.ID, Err: formula.AsEvaluationError(err)}
	}
	return Cell{ColumnID: c.ID, Value: v, Formatted: e.Format(c, v)}
}

func displayConfig(c *models.CustomColumn) models.DisplayConfig {
	dc := c.DisplayConfig
	if dc.FormatType == "" {
		dc.FormatType = models.DefaultFormatType(c.DataType)
	}
	return dc
}

type result struct {
	value formula.Value
	err   error
}

// rowEval holds the per-row memo of column results. Calculated columns are
// evaluated on demand when another formula needs them.
type rowEval struct {
	e             *Evaluator
	ctx           *models.CalculationContext
	done          map[string]result
	visiting      map[string]bool
	visitingProps map[string]bool
}

func (e *Evaluator) newRowEval(ctx *models.CalculationContext) *rowEval {
	if ctx == nil {
		ctx = &models.CalculationContext{}
	}
	return &rowEval{
		e:             e,
		ctx:           ctx,
		done:          make(map[string]result),
		visiting:      make(map[string]bool),
		visitingProps: make(map[string]bool),
	}
}

func (re *rowEval) column(id string) (formula.Value, error) {
	if r, ok := re.done[id]; ok {
		return r.value, r.err
	}
	col, ok := re.e.columns[id]
	if !ok {
		return formula.Value{}, formula.Errorf(formula.ReasonUnresolvedReference, id, "column not found")
	}
	if re.visiting[id] {
		return formula.Value{}, formula.Errorf(formula.ReasonCircularReference, id, "circular reference through %s", col.Name)
	}

	re.visiting[id] = true
	v, err := re.compute(col)
	delete(re.visiting, id)

	re.done[id] = result{value: v, err: err}
	return v, err
}

func (re *rowEval) compute(col *models.CustomColumn) (formula.Value, error) {
	if err, ok := re.e.broken[col.ID]; ok {
		return formula.Value{}, err
	}
	if compiled, ok := re.e.compiled[col.ID]; ok {
		return compiled.Eval(re.env(col))
	}
	switch col.DataType {
	case models.DataTypePropertyDriven:
		return re.sumProperties(col)
	case models.DataTypeCalculated:
		return formula.Value{}, formula.Errorf(formula.ReasonInvalidValue, col.ID, "calculated column has no formula")
	}
	return re.entered(col)
}

// env resolves references in col's formula: columns by evaluating them,
// properties to their parameter, anything else from the raw row data
func (re *rowEval) env(col *models.CustomColumn) formula.Env {
	syms := re.e.symbols[col.ID]
	raw := property.ContextEnv(re.ctx)
	return formula.EnvFunc(func(ref formula.Reference) (formula.Value, error) {
		switch ref.Kind {
		case formula.RefColumn:
			return re.column(ref.ID)
		case formula.RefProperty:
			p, ok := syms.Property(ref.ID)
			if !ok {
				return formula.Value{}, formula.Errorf(formula.ReasonUnresolvedReference, ref.ID, "property not found")
			}
			return re.resolveProperty(col, p, property.Parameter)
		}
		v, err := raw.Resolve(ref)
		if err != nil && syms.IsKnownField(ref.ID) {
			return formula.Value{}, formula.Errorf(formula.ReasonMissingValue, ref.ID, "no value in row data")
		}
		return v, err
	})
}

// sumProperties totals a formula-less property-driven column. A value in
// ctx.Properties replaces the property's own resolution.
func (re *rowEval) sumProperties(col *models.CustomColumn) (formula.Value, error) {
	total := decimal.Zero
	for _, p := range col.Properties {
		var (
			v   formula.Value
			err error
		)
		if override, ok := re.ctx.Properties[p.ID]; ok {
			v = formula.ValueOf(override)
		} else {
			v, err = re.resolveProperty(col, p, property.Resolve)
		}
		if err != nil {
			return formula.Value{}, err
		}
		d, ok := v.AsNumber()
		if !ok {
			return formula.Value{}, formula.Errorf(formula.ReasonNonNumeric, p.ID, "property resolved to %q", v.String())
		}
		total = total.Add(d)
	}
	return formula.Number(total), nil
}

type resolveFunc func(models.ColumnProperty, *models.CalculationContext, property.Input) (formula.Value, error)

// resolveProperty resolves p for col. Tier conditions see the same references as
// col's formula, including other calculated columns.
func (re *rowEval) resolveProperty(col *models.CustomColumn, p models.ColumnProperty, resolve resolveFunc) (formula.Value, error) {
	if re.visitingProps[p.ID] {
		return formula.Value{}, formula.Errorf(formula.ReasonCircularReference, p.ID, "circular reference through property %s", p.Name)
	}
	in := property.Input{Symbols: re.e.symbols[col.ID], Env: re.env(col)}
	if t, ok := re.e.tiers[propertyKey{column: col.ID, property: p.ID}]; ok {
		if t.err != nil {
			return formula.Value{}, t.err
		}
		in.Tiers = t.progs
	}

	re.visitingProps[p.ID] = true
	defer delete(re.visitingProps, p.ID)
	return resolve(p, re.ctx, in)
}
