package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"delphi/contexts/knowledge-market/question-service/domain/entities"
	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
	"delphi/contexts/knowledge-market/question-service/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the in-memory adapter backing unit tests and local runs. It
// implements the repository, idempotency, outbox, clock, and ID generator
// ports in one place, mirroring how the service is wired in production.
type Store struct {
	mu sync.RWMutex

	questions      map[string]entities.Question
	registry       []ports.RegistryEntry
	idempotency    map[string]ports.IdempotencyRecord
	outbox         []outboxRecord
	refundNotified map[string]bool

	now               time.Time
	failNextSave      bool
	failSaveCountdown int
}

func NewStore() *Store {
	return &Store{
		questions:      make(map[string]entities.Question),
		idempotency:    make(map[string]ports.IdempotencyRecord),
		refundNotified: make(map[string]bool),
	}
}

// SetNow pins the clock for deterministic phase transitions in tests.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AdvanceTime moves the pinned clock forward.
func (s *Store) AdvanceTime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now.IsZero() {
		s.now = time.Now().UTC()
	}
	s.now = s.now.Add(d)
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) CreateQuestion(_ context.Context, question entities.Question, events []ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	questionID := strings.TrimSpace(question.QuestionID)
	s.questions[questionID] = question.Clone()
	s.registry = append(s.registry, ports.RegistryEntry{
		QuestionID:     questionID,
		CreatorID:      question.CreatorID,
		TokenID:        question.TokenID,
		SubmissionCost: question.SubmissionCost,
		Duration:       question.EndsAt.Sub(question.CreatedAt),
		MaxWinners:     question.MaxWinners,
		CreatedAt:      question.CreatedAt,
	})
	s.appendOutboxLocked(events)
	return nil
}

func (s *Store) GetQuestion(_ context.Context, questionID string) (entities.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	question, ok := s.questions[strings.TrimSpace(questionID)]
	if !ok {
		return entities.Question{}, domainerrors.ErrQuestionNotFound
	}
	return question.Clone(), nil
}

// FailNextSave makes the next SaveQuestion call fail, for tests exercising
// repository faults mid-operation.
func (s *Store) FailNextSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextSave = true
}

// FailSaveNumber makes the nth SaveQuestion call from now fail, which lets
// tests reject a specific persistence step inside a multi-save operation.
func (s *Store) FailSaveNumber(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaveCountdown = n
}

func (s *Store) SaveQuestion(_ context.Context, question entities.Question, events []ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextSave {
		s.failNextSave = false
		return domainerrors.ErrConflict
	}
	if s.failSaveCountdown > 0 {
		s.failSaveCountdown--
		if s.failSaveCountdown == 0 {
			return domainerrors.ErrConflict
		}
	}
	questionID := strings.TrimSpace(question.QuestionID)
	if _, ok := s.questions[questionID]; !ok {
		return domainerrors.ErrQuestionNotFound
	}
	s.questions[questionID] = question.Clone()
	s.appendOutboxLocked(events)
	return nil
}

func (s *Store) ListRegistry(_ context.Context, limit int, offset int) ([]ports.RegistryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset >= len(s.registry) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.registry) {
		end = len(s.registry)
	}
	return append([]ports.RegistryEntry(nil), s.registry[offset:end]...), nil
}

func (s *Store) ListRefundWindowPending(_ context.Context, now time.Time, limit int) ([]entities.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []entities.Question
	for questionID, question := range s.questions {
		if question.Evaluated || !now.After(question.EvaluationDeadline) || s.refundNotified[questionID] {
			continue
		}
		pending = append(pending, question.Clone())
	}
	// Sort before truncating so a partial batch is deterministic regardless
	// of map iteration order.
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].QuestionID < pending[j].QuestionID
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) MarkRefundWindowNotified(_ context.Context, questionID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refundNotified[strings.TrimSpace(questionID)] = true
	return nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.idempotency[strings.TrimSpace(key)]
	if !ok || now.After(record.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotency[strings.TrimSpace(record.Key)] = record
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendOutboxLocked([]ports.EventEnvelope{envelope})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []ports.OutboxMessage
	for _, record := range s.outbox {
		if record.published {
			continue
		}
		pending = append(pending, record.message)
		if len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].message.OutboxID == outboxID {
			s.outbox[i].published = true
			return nil
		}
	}
	return domainerrors.ErrQuestionNotFound
}

// OutboxEventTypes lists appended event types in order, for tests asserting
// exactly-once notification emission.
func (s *Store) OutboxEventTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.outbox))
	for _, record := range s.outbox {
		types = append(types, record.message.EventType)
	}
	return types
}

func (s *Store) appendOutboxLocked(events []ports.EventEnvelope) {
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		s.outbox = append(s.outbox, outboxRecord{
			message: ports.OutboxMessage{
				OutboxID:     uuid.NewString(),
				EventType:    event.EventType,
				PartitionKey: event.PartitionKey,
				Payload:      payload,
				CreatedAt:    event.OccurredAt,
			},
		})
	}
}
