package workers

import (
	"encoding/json"
	"time"

	"delphi/contexts/knowledge-market/question-service/ports"
)

func newRefundWindowEnvelope(
	eventID string,
	questionID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        "question.refund_window_opened",
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "question-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "question_id",
		PartitionKey:     questionID,
		Data:             payload,
	}, nil
}
