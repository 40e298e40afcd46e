package engine

import (
	"shgcolumns/models"
	"shgcolumns/report"
)

// ColumnSummary is one column's aggregate over a set of rows
type ColumnSummary struct {
	ColumnID  string
	Name      string
	Summary   report.Summary
	Formatted string
}

// EvaluateAll evaluates one row per context. Contexts without AllMembers get
// the member data of every context in the batch; the inputs are not modified.
func (e *Evaluator) EvaluateAll(contexts []*models.CalculationContext) []Row {
	all := make([]map[string]any, 0, len(contexts))
	for _, ctx := range contexts {
		if ctx != nil {
			all = append(all, ctx.MemberData)
		}
	}

	rows := make([]Row, len(contexts))
	for i, ctx := range contexts {
		var c models.CalculationContext
		if ctx != nil {
			c = *ctx
		}
		if c.AllMembers == nil {
			c.AllMembers = all
		}
		rows[i] = e.EvaluateRow(&c)
	}
	return rows
}

// Summaries aggregates every active column that is shown in the summary and
// has an aggregate type other than none. Failed cells are skipped.
func (e *Evaluator) Summaries(rows []Row) []ColumnSummary {
	var out []ColumnSummary
	for i := range e.display {
		c := &e.display[i]
		agg := c.DisplayConfig.AggregateType
		if !c.DisplayConfig.ShowInSummary || agg == "" || agg == models.AggregateTypeNone {
			continue
		}

		entries := make([]report.Entry, 0, len(rows))
		for _, row := range rows {
			cell, ok := row.Cell(c.ID)
			if !ok {
				continue
			}
			entries = append(entries, report.Entry{Value: cell.Value, Failed: !cell.OK()})
		}
		s := report.Aggregate(agg, entries)
		out = append(out, ColumnSummary{
			ColumnID:  c.ID,
			Name:      c.Name,
			Summary:   s,
			Formatted: s.Format(e.formatter, displayConfig(c)),
		})
	}
	return out
}
