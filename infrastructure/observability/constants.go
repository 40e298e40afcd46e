package observability

// Metric name prefixes
const (
	MetricPrefix = "shg_columns"
)

// Metric names
const (
	// Evaluation metrics
	RowsEvaluatedTotal    = MetricPrefix + ".rows.evaluated_total"
	RowEvaluationDuration = MetricPrefix + ".rows.evaluation_duration"
	CellErrorsTotal       = MetricPrefix + ".cells.errors_total"

	// Schema metrics
	SchemaSavesTotal              = MetricPrefix + ".schemas.saves_total"
	SchemaValidationFailuresTotal = MetricPrefix + ".schemas.validation_failures_total"

	// NATS metrics
	NATSMessagesReceivedTotal  = MetricPrefix + ".nats.messages_received_total"
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Database metrics
	DatabaseQueriesTotal  = MetricPrefix + ".database.queries_total"
	DatabaseQueryDuration = MetricPrefix + ".database.query_duration"
)

// Label keys
const (
	LabelReason     = "reason"
	LabelGroupID    = "group_id"
	LabelSubject    = "subject"
	LabelEventType  = "event_type"
	LabelRepository = "repository"
	LabelMethod     = "method"
)
