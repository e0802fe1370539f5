package commands

import (
	"context"
	"testing"
	"time"

	"delphi/contexts/knowledge-market/question-service/adapters/memory"
	application "delphi/contexts/knowledge-market/question-service/application"
	"delphi/contexts/knowledge-market/question-service/domain/entities"
)

var testStart = time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

// fixture wires every use case against the in-memory adapters with a pinned
// clock, mirroring the production wiring in the module constructor.
type fixture struct {
	store  *memory.Store
	ledger *memory.Ledger

	questions QuestionUseCase
	submits   SubmitUseCase
	evaluates EvaluateUseCase
	payouts   PayoutUseCase
	fees      FeeConfigUseCase
}

func newFixture() *fixture {
	store := memory.NewStore()
	store.SetNow(testStart)
	ledger := memory.NewLedger()
	locks := application.NewQuestionLocks()
	return &fixture{
		store:  store,
		ledger: ledger,
		questions: QuestionUseCase{
			Questions: store,
			Ledger:    ledger,
			Clock:     store,
			IDGen:     store,
			Locks:     locks,
		},
		submits: SubmitUseCase{
			Questions:      store,
			Ledger:         ledger,
			Idempotency:    store,
			Clock:          store,
			IDGen:          store,
			Locks:          locks,
			IdempotencyTTL: time.Hour,
		},
		evaluates: EvaluateUseCase{
			Questions: store,
			Clock:     store,
			IDGen:     store,
			Locks:     locks,
		},
		payouts: PayoutUseCase{
			Questions: store,
			Ledger:    ledger,
			Clock:     store,
			IDGen:     store,
			Locks:     locks,
		},
		fees: FeeConfigUseCase{
			Questions: store,
			Clock:     store,
			IDGen:     store,
			Locks:     locks,
		},
	}
}

func defaultCreateCommand() CreateQuestionCommand {
	return CreateQuestionCommand{
		TokenID:        "usdc",
		SubmissionCost: 100,
		Duration:       48 * time.Hour,
		MaxWinners:     3,
		CreatorID:      "creator-1",
		TreasuryID:     "treasury-1",
		ProtocolFeeBps: 1000,
		CreatorFeeBps:  500,
		ReferralFeeBps: 500,
	}
}

func (f *fixture) mustCreate(t *testing.T, cmd CreateQuestionCommand) entities.Question {
	t.Helper()
	question, err := f.questions.CreateQuestion(context.Background(), cmd)
	if err != nil {
		t.Fatalf("create question failed: %v", err)
	}
	return question
}

func (f *fixture) mustSubmit(t *testing.T, questionID string, userID string) SubmitAnswerResult {
	t.Helper()
	f.ledger.SetBalance("usdc", userID, 1000)
	result, err := f.submits.SubmitAnswer(context.Background(), SubmitAnswerCommand{
		QuestionID:  questionID,
		CallerID:    userID,
		ContentHash: "hash-" + userID,
	})
	if err != nil {
		t.Fatalf("submit for %s failed: %v", userID, err)
	}
	return result
}

func countEventType(types []string, eventType string) int {
	count := 0
	for _, t := range types {
		if t == eventType {
			count++
		}
	}
	return count
}
