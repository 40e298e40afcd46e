package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"shgcolumns/infrastructure/observability"
	"shgcolumns/service"
)

// MemberImportRow is one imported member row. Every key other than memberId
// and properties is passed to the evaluator as member data.
type MemberImportRow struct {
	MemberID   string         `json:"memberId" validate:"required"`
	Properties map[string]any `json:"properties,omitempty"`
	Data       map[string]any `json:"-"`
}

// UnmarshalJSON keeps the whole object as member data
func (r *MemberImportRow) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	if id, ok := raw["memberId"].(string); ok {
		r.MemberID = id
	}
	if props, ok := raw["properties"].(map[string]any); ok {
		r.Properties = props
	}
	delete(raw, "memberId")
	delete(raw, "properties")
	r.Data = raw
	return nil
}

// MemberImportMessage is the payload published by the member import pipeline
type MemberImportMessage struct {
	GroupID    string            `json:"groupId" validate:"required"`
	PeriodID   string            `json:"periodId"`
	ImportedBy string            `json:"importedBy" validate:"required"`
	GroupData  map[string]any    `json:"groupData"`
	PeriodData map[string]any    `json:"periodData"`
	Rows       []MemberImportRow `json:"rows" validate:"required,min=1,dive"`
}

// MemberImportHandler turns member import messages into calculation runs.
// A group importing for the first time gets an empty default schema.
type MemberImportHandler struct {
	schemas    service.SchemaService
	calculator service.CalculationService
	validate   *validator.Validate
	subject    string
}

// NewMemberImportHandler creates a handler for the given subject
func NewMemberImportHandler(schemas service.SchemaService, calculator service.CalculationService, subject string) *MemberImportHandler {
	return &MemberImportHandler{
		schemas:    schemas,
		calculator: calculator,
		validate:   validator.New(),
		subject:    subject,
	}
}

// Handle processes one message. Malformed payloads and groups without a
// default schema are acknowledged and dropped; any other failure is returned
// so the message is redelivered.
func (l *MemberImportHandler) Handle(data []byte) error {
	return l.HandleContext(context.Background(), data)
}

// HandleContext is Handle with an explicit context
func (l *MemberImportHandler) HandleContext(ctx context.Context, data []byte) error {
	observability.GetMetrics().RecordNATSMessageReceived(l.subject)

	msg, err := l.decode(data)
	if err != nil {
		log.WithFields(log.Fields{
			"subject": l.subject,
			"error":   err,
		}).Warn("Dropping malformed member import")
		return nil
	}

	log.WithFields(log.Fields{
		"groupId":  msg.GroupID,
		"periodId": msg.PeriodID,
		"rows":     len(msg.Rows),
	}).Debug("Processing member import")

	if _, err := l.schemas.GetOrCreateDefault(ctx, msg.GroupID, msg.ImportedBy); err != nil {
		return fmt.Errorf("failed to ensure default schema: %w", err)
	}

	result, err := l.calculator.Calculate(ctx, toRequest(msg))
	if errors.Is(err, service.ErrSchemaNotFound) {
		log.WithFields(log.Fields{
			"groupId": msg.GroupID,
		}).Warn("Dropping member import for group without a default schema")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to calculate imported members: %w", err)
	}

	log.WithFields(log.Fields{
		"groupId": msg.GroupID,
		"stored":  len(result.Stored),
	}).Info("Processed member import")
	return nil
}

func (l *MemberImportHandler) decode(data []byte) (*MemberImportMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var msg MemberImportMessage
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode member import: %w", err)
	}
	if err := l.validate.Struct(&msg); err != nil {
		return nil, fmt.Errorf("invalid member import: %w", err)
	}
	return &msg, nil
}

func toRequest(msg *MemberImportMessage) service.CalculationRequest {
	req := service.CalculationRequest{
		GroupID:      msg.GroupID,
		PeriodID:     msg.PeriodID,
		CalculatedBy: msg.ImportedBy,
		GroupData:    msg.GroupData,
		PeriodData:   msg.PeriodData,
		Members:      make([]service.MemberInput, len(msg.Rows)),
	}
	for i, row := range msg.Rows {
		req.Members[i] = service.MemberInput{
			MemberID:   row.MemberID,
			Data:       row.Data,
			Properties: row.Properties,
		}
	}
	return req
}
