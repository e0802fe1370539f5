package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
)

func TestSubmitAnswerSplitsFee(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())
	f.ledger.SetBalance("usdc", "user-1", 1000)

	result, err := f.submits.SubmitAnswer(context.Background(), SubmitAnswerCommand{
		QuestionID:  question.QuestionID,
		CallerID:    "user-1",
		ContentHash: "hash-1",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.AnswerIndex != 0 {
		t.Fatalf("expected index 0, got %d", result.AnswerIndex)
	}
	// 100 at 10% protocol, 5% creator; the unused referral share folds into
	// the reward cut.
	if result.ProtocolCut != 10 || result.CreatorCut != 5 || result.ReferralCut != 0 || result.RewardCut != 85 {
		t.Fatalf("unexpected split %+v", result)
	}

	if got := f.ledger.Balance("usdc", "user-1"); got != 900 {
		t.Fatalf("expected payer balance 900, got %d", got)
	}
	if got := f.ledger.Balance("usdc", "treasury-1"); got != 10 {
		t.Fatalf("expected treasury balance 10, got %d", got)
	}
	if got := f.ledger.Balance("usdc", "creator-1"); got != 5 {
		t.Fatalf("expected creator balance 5, got %d", got)
	}
	if got := f.ledger.Balance("usdc", question.EscrowAccountID()); got != 85 {
		t.Fatalf("expected escrow balance 85, got %d", got)
	}

	stored, err := f.submits.Questions.GetQuestion(context.Background(), question.QuestionID)
	if err != nil {
		t.Fatalf("get question failed: %v", err)
	}
	if stored.TotalRewardPool != 85 {
		t.Fatalf("expected pool 85, got %d", stored.TotalRewardPool)
	}
	if countEventType(f.store.OutboxEventTypes(), EventAnswerSubmitted) != 1 {
		t.Fatalf("expected one submitted event")
	}
}

func TestSubmitAnswerWithReferrer(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())
	f.ledger.SetBalance("usdc", "user-1", 1000)

	result, err := f.submits.SubmitAnswer(context.Background(), SubmitAnswerCommand{
		QuestionID:  question.QuestionID,
		CallerID:    "user-1",
		ContentHash: "hash-1",
		ReferrerID:  "referrer-1",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.ReferralCut != 5 || result.RewardCut != 80 {
		t.Fatalf("unexpected split %+v", result)
	}
	if got := f.ledger.Balance("usdc", "referrer-1"); got != 5 {
		t.Fatalf("expected referrer balance 5, got %d", got)
	}
	if countEventType(f.store.OutboxEventTypes(), EventAnswerSubmittedReferral) != 1 {
		t.Fatalf("expected referral submitted event")
	}
}

func TestSubmitAnswerRejectsDuplicateResponder(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())
	f.mustSubmit(t, question.QuestionID, "user-1")

	_, err := f.submits.SubmitAnswer(context.Background(), SubmitAnswerCommand{
		QuestionID:  question.QuestionID,
		CallerID:    "user-1",
		ContentHash: "hash-retry",
	})
	if !errors.Is(err, domainerrors.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered, got %v", err)
	}
}

func TestSubmitAnswerRejectsClosedQuestion(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())
	f.ledger.SetBalance("usdc", "user-1", 1000)
	f.store.AdvanceTime(48 * time.Hour)

	_, err := f.submits.SubmitAnswer(context.Background(), SubmitAnswerCommand{
		QuestionID:  question.QuestionID,
		CallerID:    "user-1",
		ContentHash: "hash-1",
	})
	if !errors.Is(err, domainerrors.ErrQuestionClosed) {
		t.Fatalf("expected question closed, got %v", err)
	}
}

func TestSubmitAnswerOnBehalfRequiresAuthorization(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())
	f.ledger.SetBalance("usdc", "agent-1", 1000)

	cmd := SubmitAnswerCommand{
		QuestionID:  question.QuestionID,
		CallerID:    "agent-1",
		ResponderID: "user-1",
		ContentHash: "hash-1",
	}
	if _, err := f.submits.SubmitAnswer(context.Background(), cmd); !errors.Is(err, domainerrors.ErrNotAuthorizedSubmitter) {
		t.Fatalf("expected authorization rejection, got %v", err)
	}

	if err := f.questions.AuthorizeSubmitter(context.Background(), question.QuestionID, "creator-1", "agent-1"); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	result, err := f.submits.SubmitAnswer(context.Background(), cmd)
	if err != nil {
		t.Fatalf("authorized submit failed: %v", err)
	}
	if result.ResponderID != "user-1" {
		t.Fatalf("expected answer recorded for user-1, got %s", result.ResponderID)
	}
	// The authorized submitter pays the fee, not the responder.
	if got := f.ledger.Balance("usdc", "agent-1"); got != 900 {
		t.Fatalf("expected agent balance 900, got %d", got)
	}
	if got := f.ledger.Balance("usdc", "user-1"); got != 0 {
		t.Fatalf("expected responder balance untouched, got %d", got)
	}
}

func TestSubmitAnswerTransferFailureLeavesNoState(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())
	f.ledger.SetBalance("usdc", "user-1", 1000)
	f.ledger.FailNextTransfer()

	_, err := f.submits.SubmitAnswer(context.Background(), SubmitAnswerCommand{
		QuestionID:  question.QuestionID,
		CallerID:    "user-1",
		ContentHash: "hash-1",
	})
	if !errors.Is(err, domainerrors.ErrLedgerTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}

	stored, err := f.submits.Questions.GetQuestion(context.Background(), question.QuestionID)
	if err != nil {
		t.Fatalf("get question failed: %v", err)
	}
	if len(stored.Answers) != 0 || stored.TotalRewardPool != 0 {
		t.Fatalf("expected no recorded state after failed transfer, got %+v", stored)
	}
	if got := f.ledger.Balance("usdc", "user-1"); got != 1000 {
		t.Fatalf("expected payer balance untouched, got %d", got)
	}
}

func TestSubmitAnswerMidSplitFailureStrandsNoLeg(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())
	f.ledger.SetBalance("usdc", "user-1", 1000)

	// Three legs settle per submission here: treasury, creator, reward pool.
	// Rejecting the second must leave the first unsettled too.
	f.ledger.FailTransferNumber(2)
	_, err := f.submits.SubmitAnswer(context.Background(), SubmitAnswerCommand{
		QuestionID:  question.QuestionID,
		CallerID:    "user-1",
		ContentHash: "hash-1",
	})
	if !errors.Is(err, domainerrors.ErrLedgerTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}

	if got := f.ledger.Balance("usdc", "user-1"); got != 1000 {
		t.Fatalf("expected payer balance untouched, got %d", got)
	}
	if got := f.ledger.Balance("usdc", "treasury-1"); got != 0 {
		t.Fatalf("expected no stranded treasury leg, got %d", got)
	}
	if got := f.ledger.Balance("usdc", "creator-1"); got != 0 {
		t.Fatalf("expected no stranded creator leg, got %d", got)
	}
	stored, err := f.submits.Questions.GetQuestion(context.Background(), question.QuestionID)
	if err != nil {
		t.Fatalf("get question failed: %v", err)
	}
	if len(stored.Answers) != 0 || stored.TotalRewardPool != 0 {
		t.Fatalf("expected no recorded state after failed split, got %+v", stored)
	}

	// The retry settles every leg.
	if _, err := f.submits.SubmitAnswer(context.Background(), SubmitAnswerCommand{
		QuestionID:  question.QuestionID,
		CallerID:    "user-1",
		ContentHash: "hash-1",
	}); err != nil {
		t.Fatalf("retry submit failed: %v", err)
	}
	if got := f.ledger.Balance("usdc", "user-1"); got != 900 {
		t.Fatalf("expected payer balance 900, got %d", got)
	}
	if got := f.ledger.Balance("usdc", "treasury-1"); got != 10 {
		t.Fatalf("expected treasury balance 10, got %d", got)
	}
	if got := f.ledger.Balance("usdc", question.EscrowAccountID()); got != 85 {
		t.Fatalf("expected escrow balance 85, got %d", got)
	}
}

func TestSubmitAnswerIdempotentReplay(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())
	f.ledger.SetBalance("usdc", "user-1", 1000)

	cmd := SubmitAnswerCommand{
		QuestionID:     question.QuestionID,
		CallerID:       "user-1",
		ContentHash:    "hash-1",
		IdempotencyKey: "submit-1",
	}
	first, err := f.submits.SubmitAnswer(context.Background(), cmd)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	second, err := f.submits.SubmitAnswer(context.Background(), cmd)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected replayed result")
	}
	if second.AnswerIndex != first.AnswerIndex || second.RewardCut != first.RewardCut {
		t.Fatalf("replay diverged: %+v vs %+v", first, second)
	}
	// The fee settled exactly once.
	if got := f.ledger.Balance("usdc", "user-1"); got != 900 {
		t.Fatalf("expected single charge, balance %d", got)
	}

	stored, err := f.submits.Questions.GetQuestion(context.Background(), question.QuestionID)
	if err != nil {
		t.Fatalf("get question failed: %v", err)
	}
	if len(stored.Answers) != 1 {
		t.Fatalf("expected one answer, got %d", len(stored.Answers))
	}

	conflicting := cmd
	conflicting.ContentHash = "hash-other"
	if _, err := f.submits.SubmitAnswer(context.Background(), conflicting); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestSubmitAnswerRejectsFeesAboveCost(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())
	f.ledger.SetBalance("usdc", "user-1", 1000)

	if err := f.fees.SetProtocolFeeBps(context.Background(), question.QuestionID, "creator-1", 6000); err != nil {
		t.Fatalf("set protocol fee failed: %v", err)
	}
	if err := f.fees.SetCreatorFeeBps(context.Background(), question.QuestionID, "creator-1", 5000); err != nil {
		t.Fatalf("set creator fee failed: %v", err)
	}

	_, err := f.submits.SubmitAnswer(context.Background(), SubmitAnswerCommand{
		QuestionID:  question.QuestionID,
		CallerID:    "user-1",
		ContentHash: "hash-1",
	})
	if !errors.Is(err, domainerrors.ErrFeeExceedsCost) {
		t.Fatalf("expected fee exceeds cost, got %v", err)
	}
}

func TestSubmitAnswerFreeQuestionSkipsLedger(t *testing.T) {
	f := newFixture()
	cmd := defaultCreateCommand()
	cmd.SubmissionCost = 0
	question := f.mustCreate(t, cmd)

	result, err := f.submits.SubmitAnswer(context.Background(), SubmitAnswerCommand{
		QuestionID:  question.QuestionID,
		CallerID:    "user-1",
		ContentHash: "hash-1",
	})
	if err != nil {
		t.Fatalf("free submit failed: %v", err)
	}
	if result.RewardCut != 0 || result.ProtocolCut != 0 {
		t.Fatalf("expected zero split, got %+v", result)
	}
}

func TestSubmitAnswerValidatesInput(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())

	_, err := f.submits.SubmitAnswer(context.Background(), SubmitAnswerCommand{
		QuestionID: question.QuestionID,
		CallerID:   "user-1",
	})
	if !errors.Is(err, domainerrors.ErrInvalidAnswerInput) {
		t.Fatalf("expected invalid input for missing content hash, got %v", err)
	}
}
