package report

import (
	"github.com/shopspring/decimal"

	"shgcolumns/formula"
	"shgcolumns/models"
)

// Entry is one cell's outcome as seen by aggregation
type Entry struct {
	Value  formula.Value
	Failed bool
}

// Summary is a column's aggregate over a set of rows
type Summary struct {
	Type  models.AggregateType
	Value decimal.Decimal
	// Count is the number of cells that contributed
	Count int
	// Skipped is the number of cells left out because they failed to evaluate
	Skipped int
	// Valid is false when there is nothing to show
	Valid bool
}

// Aggregate computes a summary. Failed cells are skipped, never zero-filled;
// empty cells do not count.
func Aggregate(aggType models.AggregateType, entries []Entry) Summary {
	s := Summary{Type: aggType}
	if aggType == models.AggregateTypeNone || aggType == "" {
		return s
	}

	sum := decimal.Zero
	numeric := 0
	for _, e := range entries {
		if e.Failed {
			s.Skipped++
			continue
		}
		if e.Value.IsEmpty() {
			continue
		}
		if aggType == models.AggregateTypeCount {
			s.Count++
			continue
		}
		if d, ok := e.Value.AsNumber(); ok {
			sum = sum.Add(d)
			numeric++
		}
	}

	switch aggType {
	case models.AggregateTypeCount:
		s.Value = decimal.NewFromInt(int64(s.Count))
		s.Valid = true
	case models.AggregateTypeSum:
		s.Value = sum
		s.Count = numeric
		s.Valid = true
	case models.AggregateTypeAverage:
		s.Count = numeric
		if numeric > 0 {
			s.Value = sum.Div(decimal.NewFromInt(int64(numeric)))
			s.Valid = true
		}
	}
	return s
}

// Format renders the summary with the column's display configuration. Counts
// are plain integers regardless of format type.
func (s Summary) Format(f *Formatter, dc models.DisplayConfig) string {
	if !s.Valid {
		return EmptyValue
	}
	if s.Type == models.AggregateTypeCount {
		return f.FormatCount(s.Count)
	}
	return f.Format(formula.Number(s.Value), dc)
}
