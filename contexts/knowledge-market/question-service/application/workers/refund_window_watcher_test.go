package workers

import (
	"context"
	"testing"
	"time"

	"delphi/contexts/knowledge-market/question-service/adapters/memory"
	"delphi/contexts/knowledge-market/question-service/domain/entities"
)

func storedQuestion(t *testing.T, store *memory.Store, questionID string, now time.Time) entities.Question {
	t.Helper()
	question, ok := entities.NewQuestion(questionID, "usdc", 0, 48*time.Hour, 3, "", "creator-1", "", entities.FeeConfig{TreasuryID: "treasury-1"}, now)
	if !ok {
		t.Fatalf("invalid question fixture")
	}
	question.AppendAnswer("user-1", "hash-1", 0, now)
	question.AppendAnswer("user-2", "hash-2", 0, now)
	question.Seed(100)
	if err := store.CreateQuestion(context.Background(), question, nil); err != nil {
		t.Fatalf("store question failed: %v", err)
	}
	return question
}

func TestRefundWindowWatcherAnnouncesOnce(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	store.SetNow(start)
	question := storedQuestion(t, store, "question-1", start)
	watcher := RefundWindowWatcher{Questions: store, Outbox: store, Clock: store, IDGen: store, BatchSize: 10}

	// Still inside the evaluation window: nothing to announce.
	store.SetNow(question.EvaluationDeadline)
	if err := watcher.RunOnce(context.Background()); err != nil {
		t.Fatalf("watcher run failed: %v", err)
	}
	if len(store.OutboxEventTypes()) != 0 {
		t.Fatalf("expected no events before the deadline, got %v", store.OutboxEventTypes())
	}

	store.SetNow(question.EvaluationDeadline.Add(time.Minute))
	if err := watcher.RunOnce(context.Background()); err != nil {
		t.Fatalf("watcher run failed: %v", err)
	}
	types := store.OutboxEventTypes()
	if len(types) != 1 || types[0] != "question.refund_window_opened" {
		t.Fatalf("expected one refund window event, got %v", types)
	}

	// The announcement is once per question; later sweeps skip it.
	if err := watcher.RunOnce(context.Background()); err != nil {
		t.Fatalf("second watcher run failed: %v", err)
	}
	if len(store.OutboxEventTypes()) != 1 {
		t.Fatalf("expected exactly one event, got %v", store.OutboxEventTypes())
	}
}

func TestRefundWindowWatcherSkipsEvaluatedQuestions(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	store.SetNow(start)
	question := storedQuestion(t, store, "question-1", start)

	question.Evaluate([]int{0}, question.EndsAt.Add(time.Hour))
	if err := store.SaveQuestion(context.Background(), question, nil); err != nil {
		t.Fatalf("save question failed: %v", err)
	}

	store.SetNow(question.EvaluationDeadline.Add(time.Minute))
	watcher := RefundWindowWatcher{Questions: store, Outbox: store, Clock: store, IDGen: store, BatchSize: 10}
	if err := watcher.RunOnce(context.Background()); err != nil {
		t.Fatalf("watcher run failed: %v", err)
	}
	if len(store.OutboxEventTypes()) != 0 {
		t.Fatalf("expected no events for evaluated question, got %v", store.OutboxEventTypes())
	}
}
