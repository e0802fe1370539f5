package commands

import (
	"encoding/json"
	"time"

	"delphi/contexts/knowledge-market/question-service/ports"
)

const (
	EventQuestionCreated          = "question.created"
	EventQuestionSeeded           = "question.seeded"
	EventAnswerSubmitted          = "answer.submitted"
	EventAnswerSubmittedReferral  = "answer.submitted_referral"
	EventQuestionEvaluated        = "question.evaluated"
	EventRewardClaimed            = "reward.claimed"
	EventFeeConfigUpdated         = "question.fee_config_updated"
	EventSubmitterAuthorized      = "question.submitter_authorized"
	EventSubmitterRevoked         = "question.submitter_revoked"
	EventRefundWindowOpened       = "question.refund_window_opened"
	eventSourceService            = "question-service"
	eventPartitionKeyPathQuestion = "question_id"
)

// newQuestionEnvelope builds the canonical envelope for question-scoped
// notifications. Events are partitioned by question for stable ordering on
// per-question consumers.
func newQuestionEnvelope(
	eventID string,
	eventType string,
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
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    eventSourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: eventPartitionKeyPathQuestion,
		PartitionKey:     questionID,
		Data:             payload,
	}, nil
}
