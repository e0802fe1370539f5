package memory

import (
	"context"
	"testing"
	"time"

	"delphi/contexts/knowledge-market/question-service/domain/entities"
)

func storedQuestion(t *testing.T, store *Store, questionID string, now time.Time) entities.Question {
	t.Helper()
	fees := entities.FeeConfig{ProtocolFeeBps: 1000, TreasuryID: "treasury-1"}
	question, ok := entities.NewQuestion(questionID, "usdc", 100, time.Hour, 3, "", "creator-1", "", fees, now)
	if !ok {
		t.Fatalf("expected valid question %s", questionID)
	}
	if err := store.CreateQuestion(context.Background(), question, nil); err != nil {
		t.Fatalf("create %s failed: %v", questionID, err)
	}
	return question
}

func TestListRefundWindowPendingTruncatesDeterministically(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	store.SetNow(now)
	for _, questionID := range []string{"question-c", "question-a", "question-b"} {
		storedQuestion(t, store, questionID, now)
	}
	past := now.Add(time.Hour + entities.EvaluationGraceWindow + time.Minute)

	// A partial batch always yields the same questions, regardless of map
	// iteration order.
	for i := 0; i < 5; i++ {
		pending, err := store.ListRefundWindowPending(context.Background(), past, 2)
		if err != nil {
			t.Fatalf("list pending failed: %v", err)
		}
		if len(pending) != 2 {
			t.Fatalf("expected batch of 2, got %d", len(pending))
		}
		if pending[0].QuestionID != "question-a" || pending[1].QuestionID != "question-b" {
			t.Fatalf("unexpected batch order: %s %s", pending[0].QuestionID, pending[1].QuestionID)
		}
	}

	if err := store.MarkRefundWindowNotified(context.Background(), "question-a", past); err != nil {
		t.Fatalf("mark notified failed: %v", err)
	}
	pending, err := store.ListRefundWindowPending(context.Background(), past, 2)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].QuestionID != "question-b" || pending[1].QuestionID != "question-c" {
		t.Fatalf("expected notified question skipped, got %+v", pending)
	}
}
