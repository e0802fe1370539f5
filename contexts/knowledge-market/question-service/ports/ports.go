package ports

import (
	"context"
	"time"

	contractsv1 "delphi/contracts/gen/events/v1"
	"delphi/contexts/knowledge-market/question-service/domain/entities"
)

// QuestionRepository persists question aggregates. SaveQuestion must commit
// the aggregate state and the supplied outbox envelopes atomically so every
// successful mutation emits its notification exactly once.
type QuestionRepository interface {
	CreateQuestion(ctx context.Context, question entities.Question, events []EventEnvelope) error
	GetQuestion(ctx context.Context, questionID string) (entities.Question, error)
	SaveQuestion(ctx context.Context, question entities.Question, events []EventEnvelope) error
	ListRegistry(ctx context.Context, limit int, offset int) ([]RegistryEntry, error)
}

// RefundWindowRepository feeds the refund-window watcher: questions past
// their evaluation deadline, unevaluated, and not yet announced.
type RefundWindowRepository interface {
	ListRefundWindowPending(ctx context.Context, now time.Time, limit int) ([]entities.Question, error)
	MarkRefundWindowNotified(ctx context.Context, questionID string, at time.Time) error
}

// RegistryEntry is the append-only discovery record written at creation.
type RegistryEntry struct {
	QuestionID     string
	CreatorID      string
	TokenID        string
	SubmissionCost int64
	Duration       time.Duration
	MaxWinners     int
	CreatedAt      time.Time
}

// LedgerLeg is one destination of a multi-way transfer.
type LedgerLeg struct {
	To     string
	Amount int64
}

// TokenLedger is the external value-transfer primitive. Transfer moves funds
// the caller already controls (the question escrow); TransferFrom draws on a
// payer's prior approval. SplitTransferFrom settles every leg against the
// payer as one atomic unit: either all legs commit or none do, so a rejected
// leg can never strand the earlier ones. Any error aborts the calling
// operation with no state change committed.
type TokenLedger interface {
	Transfer(ctx context.Context, tokenID string, from string, to string, amount int64) error
	TransferFrom(ctx context.Context, tokenID string, from string, to string, amount int64) error
	SplitTransferFrom(ctx context.Context, tokenID string, from string, legs []LedgerLeg) error
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
