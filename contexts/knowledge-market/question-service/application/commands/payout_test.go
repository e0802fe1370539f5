package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
)

// seededQuestion creates a free-to-answer question with a 600 pool and the
// given responders submitted.
func seededQuestion(t *testing.T, f *fixture, responders ...string) string {
	t.Helper()
	cmd := defaultCreateCommand()
	cmd.SubmissionCost = 0
	cmd.InitialSeed = 600
	f.ledger.SetBalance("usdc", "creator-1", 600)
	question := f.mustCreate(t, cmd)
	for _, responder := range responders {
		f.mustSubmit(t, question.QuestionID, responder)
	}
	return question.QuestionID
}

func TestClaimRewardProportional(t *testing.T) {
	f := newFixture()
	questionID := seededQuestion(t, f, "user-1", "user-2", "user-3", "user-4")
	f.store.AdvanceTime(48*time.Hour + time.Minute)
	if _, err := f.evaluates.EvaluateAnswers(context.Background(), EvaluateAnswersCommand{
		QuestionID:    questionID,
		CallerID:      "creator-1",
		RankedIndices: []int{0, 1, 2},
	}); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	// Scores 3/2/1 over a 600 pool pay 300/200/100.
	expected := map[string]int64{"user-1": 300, "user-2": 200, "user-3": 100}
	for user, want := range expected {
		before := f.ledger.Balance("usdc", user)
		result, err := f.payouts.ClaimReward(context.Background(), ClaimRewardCommand{QuestionID: questionID, CallerID: user})
		if err != nil {
			t.Fatalf("claim for %s failed: %v", user, err)
		}
		if result.Amount != want || result.Refund {
			t.Fatalf("claim for %s: expected %d, got %+v", user, want, result)
		}
		if got := f.ledger.Balance("usdc", user); got != before+want {
			t.Fatalf("claim for %s: expected balance %d, got %d", user, before+want, got)
		}
	}
	if got := f.ledger.Balance("usdc", "question:"+questionID); got != 0 {
		t.Fatalf("expected drained escrow, got %d", got)
	}
	if countEventType(f.store.OutboxEventTypes(), EventRewardClaimed) != 3 {
		t.Fatalf("expected three claim events")
	}

	if _, err := f.payouts.ClaimReward(context.Background(), ClaimRewardCommand{QuestionID: questionID, CallerID: "user-1"}); !errors.Is(err, domainerrors.ErrAlreadyRewarded) {
		t.Fatalf("expected double claim rejection, got %v", err)
	}
	if _, err := f.payouts.ClaimReward(context.Background(), ClaimRewardCommand{QuestionID: questionID, CallerID: "user-4"}); !errors.Is(err, domainerrors.ErrNothingToClaim) {
		t.Fatalf("expected nothing-to-claim for unranked answer, got %v", err)
	}
	if _, err := f.payouts.ClaimReward(context.Background(), ClaimRewardCommand{QuestionID: questionID, CallerID: "stranger"}); !errors.Is(err, domainerrors.ErrAnswerNotFound) {
		t.Fatalf("expected answer not found, got %v", err)
	}
}

func TestClaimRewardRequiresEvaluation(t *testing.T) {
	f := newFixture()
	questionID := seededQuestion(t, f, "user-1")
	f.store.AdvanceTime(48*time.Hour + time.Minute)

	_, err := f.payouts.ClaimReward(context.Background(), ClaimRewardCommand{QuestionID: questionID, CallerID: "user-1"})
	if !errors.Is(err, domainerrors.ErrNotEvaluated) {
		t.Fatalf("expected not evaluated, got %v", err)
	}
}

func TestClaimRewardTransferFailureKeepsClaimable(t *testing.T) {
	f := newFixture()
	questionID := seededQuestion(t, f, "user-1")
	f.store.AdvanceTime(48*time.Hour + time.Minute)
	if _, err := f.evaluates.EvaluateAnswers(context.Background(), EvaluateAnswersCommand{
		QuestionID:    questionID,
		CallerID:      "creator-1",
		RankedIndices: []int{0},
	}); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	f.ledger.FailNextTransfer()
	if _, err := f.payouts.ClaimReward(context.Background(), ClaimRewardCommand{QuestionID: questionID, CallerID: "user-1"}); !errors.Is(err, domainerrors.ErrLedgerTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}

	// The rewarded mark is never persisted on a failed transfer, so the
	// retry succeeds.
	result, err := f.payouts.ClaimReward(context.Background(), ClaimRewardCommand{QuestionID: questionID, CallerID: "user-1"})
	if err != nil {
		t.Fatalf("retry claim failed: %v", err)
	}
	if result.Amount != 600 {
		t.Fatalf("expected full pool claim, got %d", result.Amount)
	}
}

func TestClaimRewardRepositoryFailureAbortsBeforeTransfer(t *testing.T) {
	f := newFixture()
	questionID := seededQuestion(t, f, "user-1")
	f.store.AdvanceTime(48*time.Hour + time.Minute)
	if _, err := f.evaluates.EvaluateAnswers(context.Background(), EvaluateAnswersCommand{
		QuestionID:    questionID,
		CallerID:      "creator-1",
		RankedIndices: []int{0},
	}); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	// The rewarded mark persists before tokens move, so a repository fault
	// aborts with the escrow untouched.
	f.store.FailNextSave()
	if _, err := f.payouts.ClaimReward(context.Background(), ClaimRewardCommand{QuestionID: questionID, CallerID: "user-1"}); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected repository conflict, got %v", err)
	}
	if got := f.ledger.Balance("usdc", "user-1"); got != 1000 {
		t.Fatalf("expected no payout on aborted claim, balance %d", got)
	}
	if got := f.ledger.Balance("usdc", "question:"+questionID); got != 600 {
		t.Fatalf("expected escrow untouched, got %d", got)
	}

	result, err := f.payouts.ClaimReward(context.Background(), ClaimRewardCommand{QuestionID: questionID, CallerID: "user-1"})
	if err != nil {
		t.Fatalf("retry claim failed: %v", err)
	}
	if result.Amount != 600 {
		t.Fatalf("expected full pool claim on retry, got %d", result.Amount)
	}
}

func TestClaimRewardPaysAtMostOnceAcrossFaults(t *testing.T) {
	f := newFixture()
	questionID := seededQuestion(t, f, "user-1", "user-2")
	f.store.AdvanceTime(48*time.Hour + time.Minute)
	if _, err := f.evaluates.EvaluateAnswers(context.Background(), EvaluateAnswersCommand{
		QuestionID:    questionID,
		CallerID:      "creator-1",
		RankedIndices: []int{0, 1},
	}); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	// Fail the save that runs after the tokens moved. The reserved mark is
	// already durable, so the claim still settles and a retry is rejected
	// instead of paying again.
	f.store.FailSaveNumber(2)
	result, err := f.payouts.ClaimReward(context.Background(), ClaimRewardCommand{QuestionID: questionID, CallerID: "user-1"})
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	// Scores 2/1 over a 600 pool pay 400 to the top answer.
	if result.Amount != 400 {
		t.Fatalf("expected 400, got %d", result.Amount)
	}
	if got := f.ledger.Balance("usdc", "user-1"); got != 1400 {
		t.Fatalf("expected balance 1400 after single payout, got %d", got)
	}

	if _, err := f.payouts.ClaimReward(context.Background(), ClaimRewardCommand{QuestionID: questionID, CallerID: "user-1"}); !errors.Is(err, domainerrors.ErrAlreadyRewarded) {
		t.Fatalf("expected retry rejection after settled payout, got %v", err)
	}
	if got := f.ledger.Balance("usdc", "user-1"); got != 1400 {
		t.Fatalf("expected total received to stay at the single entitlement, got %d", got)
	}
}

func TestEmergencyRefundEqualSplit(t *testing.T) {
	f := newFixture()
	questionID := seededQuestion(t, f, "user-1", "user-2", "user-3")
	f.store.AdvanceTime(48*time.Hour + 7*24*time.Hour + time.Minute)

	for _, user := range []string{"user-1", "user-2", "user-3"} {
		result, err := f.payouts.EmergencyRefund(context.Background(), EmergencyRefundCommand{QuestionID: questionID, CallerID: user})
		if err != nil {
			t.Fatalf("refund for %s failed: %v", user, err)
		}
		if result.Amount != 200 || !result.Refund {
			t.Fatalf("refund for %s: expected 200, got %+v", user, result)
		}
		if got := f.ledger.Balance("usdc", user); got != 1200 {
			t.Fatalf("refund for %s: expected balance 1200, got %d", user, got)
		}
	}
	if got := f.ledger.Balance("usdc", "question:"+questionID); got != 0 {
		t.Fatalf("expected drained escrow, got %d", got)
	}

	if _, err := f.payouts.EmergencyRefund(context.Background(), EmergencyRefundCommand{QuestionID: questionID, CallerID: "user-1"}); !errors.Is(err, domainerrors.ErrAlreadyRewarded) {
		t.Fatalf("expected double refund rejection, got %v", err)
	}
	if _, err := f.payouts.EmergencyRefund(context.Background(), EmergencyRefundCommand{QuestionID: questionID, CallerID: "stranger"}); !errors.Is(err, domainerrors.ErrAnswerNotFound) {
		t.Fatalf("expected answer not found, got %v", err)
	}
}

func TestEmergencyRefundPaysAtMostOnceAcrossFaults(t *testing.T) {
	f := newFixture()
	questionID := seededQuestion(t, f, "user-1", "user-2")
	f.store.AdvanceTime(48*time.Hour + 7*24*time.Hour + time.Minute)

	f.store.FailSaveNumber(2)
	result, err := f.payouts.EmergencyRefund(context.Background(), EmergencyRefundCommand{QuestionID: questionID, CallerID: "user-1"})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if result.Amount != 300 || !result.Refund {
		t.Fatalf("expected refund of 300, got %+v", result)
	}
	if got := f.ledger.Balance("usdc", "user-1"); got != 1300 {
		t.Fatalf("expected balance 1300 after single refund, got %d", got)
	}

	if _, err := f.payouts.EmergencyRefund(context.Background(), EmergencyRefundCommand{QuestionID: questionID, CallerID: "user-1"}); !errors.Is(err, domainerrors.ErrAlreadyRewarded) {
		t.Fatalf("expected retry rejection after settled refund, got %v", err)
	}
	if got := f.ledger.Balance("usdc", "user-1"); got != 1300 {
		t.Fatalf("expected total received to stay at one refund share, got %d", got)
	}
}

func TestEmergencyRefundOnlyAfterDeadline(t *testing.T) {
	f := newFixture()
	questionID := seededQuestion(t, f, "user-1")
	f.store.AdvanceTime(48 * time.Hour)

	_, err := f.payouts.EmergencyRefund(context.Background(), EmergencyRefundCommand{QuestionID: questionID, CallerID: "user-1"})
	if !errors.Is(err, domainerrors.ErrRefundNotAvailable) {
		t.Fatalf("expected refund not available during evaluation window, got %v", err)
	}
}

func TestEmergencyRefundBlockedOnceEvaluated(t *testing.T) {
	f := newFixture()
	questionID := seededQuestion(t, f, "user-1", "user-2")
	f.store.AdvanceTime(48*time.Hour + time.Minute)
	if _, err := f.evaluates.EvaluateAnswers(context.Background(), EvaluateAnswersCommand{
		QuestionID:    questionID,
		CallerID:      "creator-1",
		RankedIndices: []int{0},
	}); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	f.store.AdvanceTime(7 * 24 * time.Hour)

	_, err := f.payouts.EmergencyRefund(context.Background(), EmergencyRefundCommand{QuestionID: questionID, CallerID: "user-2"})
	if !errors.Is(err, domainerrors.ErrRefundNotAvailable) {
		t.Fatalf("expected refund blocked after evaluation, got %v", err)
	}
}
