package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"shgcolumns/engine"
	"shgcolumns/events"
	"shgcolumns/models"
	"shgcolumns/report"
	"shgcolumns/schema"
)

// MemberInput is one member's raw row
type MemberInput struct {
	MemberID string
	Data     map[string]any
	// Properties holds pre-resolved property values by property id
	Properties map[string]any
}

// CalculationRequest is a batch of member rows for one group
type CalculationRequest struct {
	GroupID      string
	PeriodID     string
	CalculatedBy string
	GroupData    map[string]any
	PeriodData   map[string]any
	Members      []MemberInput
}

// MemberResult is one member's evaluated row
type MemberResult struct {
	MemberID string
	Row      engine.Row
}

// CalculationResult is the outcome of a Calculate call
type CalculationResult struct {
	Schema    *models.GroupCustomSchema
	Members   []MemberResult
	Summaries []engine.ColumnSummary
	Stored    []*models.MemberCustomData
}

// calculationService implements the CalculationService interface
type calculationService struct {
	uowFactory UnitOfWorkFactory
	registry   *schema.Registry
	formatter  *report.Formatter
	metrics    Metrics
	now        func() time.Time
}

// NewCalculationService creates a new calculation service. A nil formatter
// uses en-IN rupees; a nil metrics records nothing.
func NewCalculationService(uowFactory UnitOfWorkFactory, registry *schema.Registry, formatter *report.Formatter, metrics Metrics) CalculationService {
	if formatter == nil {
		formatter = report.DefaultFormatter()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &calculationService{
		uowFactory: uowFactory,
		registry:   registry,
		formatter:  formatter,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Calculate evaluates every member row against the group's default schema
// and stores the results. Cell errors do not fail the call; they are left
// out of the stored values and reported in the rows.
func (s *calculationService) Calculate(ctx context.Context, req CalculationRequest) (*CalculationResult, error) {
	if req.GroupID == "" {
		return nil, fmt.Errorf("group id is required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	sch, err := uow.SchemaRepository().GetDefault(ctx, req.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get default schema: %w", err)
	}
	if sch == nil {
		return nil, fmt.Errorf("%w: no default schema for group %s", ErrSchemaNotFound, req.GroupID)
	}

	evaluator := engine.New(sch, engine.Options{
		Formatter:   s.formatter,
		KnownFields: s.registry.KnownFields(),
	})

	contexts := make([]*models.CalculationContext, len(req.Members))
	for i, m := range req.Members {
		contexts[i] = &models.CalculationContext{
			MemberData: m.Data,
			GroupData:  req.GroupData,
			PeriodData: req.PeriodData,
			Properties: m.Properties,
		}
	}

	start := time.Now()
	rows := evaluator.EvaluateAll(contexts)
	s.metrics.RecordRowsEvaluated(len(rows), time.Since(start))

	result := &CalculationResult{
		Schema:    evaluator.Schema(),
		Members:   make([]MemberResult, len(rows)),
		Summaries: evaluator.Summaries(rows),
	}

	failed := 0
	now := s.now()
	for i, row := range rows {
		memberID := req.Members[i].MemberID
		result.Members[i] = MemberResult{MemberID: memberID, Row: row}

		for _, cell := range row.Failed() {
			failed++
			s.metrics.RecordCellError(string(cell.Err.Reason))
			log.WithFields(log.Fields{
				"groupId":  req.GroupID,
				"memberId": memberID,
				"columnId": cell.ColumnID,
				"reason":   cell.Err.Reason,
			}).Debug("Cell failed to evaluate")
		}

		if memberID == "" {
			continue
		}
		data := memberData(evaluator, row)
		data.ID = uuid.NewString()
		data.MemberID = memberID
		data.GroupID = req.GroupID
		data.SchemaID = sch.ID
		data.SchemaVersion = sch.Version
		data.LastUpdated = now
		data.UpdatedBy = req.CalculatedBy

		if err := uow.MemberDataRepository().Upsert(ctx, data); err != nil {
			return nil, fmt.Errorf("failed to store values for member %s: %w", memberID, err)
		}
		result.Stored = append(result.Stored, data)
	}

	uow.EventBus().Publish(events.MemberValuesCalculatedEvent{
		GroupID:       req.GroupID,
		PeriodID:      req.PeriodID,
		SchemaID:      sch.ID,
		SchemaVersion: sch.Version,
		MemberCount:   len(rows),
		FailedCells:   failed,
		CalculatedBy:  req.CalculatedBy,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"groupId":     req.GroupID,
		"schemaId":    sch.ID,
		"members":     len(rows),
		"failedCells": failed,
	}).Info("Calculated member values")
	return result, nil
}

// memberData splits a row's successful values into entered and calculated
// column values
func memberData(e *engine.Evaluator, row engine.Row) *models.MemberCustomData {
	data := &models.MemberCustomData{
		ColumnValues:     make(map[string]any),
		CalculatedValues: make(map[string]any),
	}
	values := row.Values()
	for _, col := range e.Columns() {
		v, ok := values[col.ID]
		if !ok {
			continue
		}
		if col.IsComputed() {
			data.CalculatedValues[col.ID] = v
		} else {
			data.ColumnValues[col.ID] = v
		}
	}
	return data
}

type noopMetrics struct{}

func (noopMetrics) RecordRowsEvaluated(int, time.Duration) {}
func (noopMetrics) RecordCellError(string)                 {}
func (noopMetrics) RecordSchemaSaved(string)               {}
func (noopMetrics) RecordValidationFailure(string)         {}
