package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "delphi/contexts/knowledge-market/question-service/application"
	"delphi/contexts/knowledge-market/question-service/domain/entities"
	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
	"delphi/contexts/knowledge-market/question-service/ports"
)

// ClaimRewardCommand requests the caller's proportional payout.
type ClaimRewardCommand struct {
	QuestionID string
	CallerID   string
}

// PayoutResult reports a settled claim or refund.
type PayoutResult struct {
	QuestionID string `json:"question_id"`
	UserID     string `json:"user_id"`
	Amount     int64  `json:"amount"`
	Refund     bool   `json:"refund"`
}

// PayoutUseCase settles claims and emergency refunds. The rewarded flag is
// persisted BEFORE the ledger transfer: a repository failure aborts with no
// tokens moved, and once the mark is durable a retry after any later fault
// is rejected by the rewarded guard, so a participant can never be paid
// twice. A failed transfer releases the mark again so the entitlement
// survives transient ledger outages.
type PayoutUseCase struct {
	Questions ports.QuestionRepository
	Ledger    ports.TokenLedger
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Locks     *application.QuestionLocks
	Logger    *slog.Logger
}

// ClaimReward pays floor(pool * score / totalScore) to an evaluated winner,
// at most once. Floor-division dust stays in the pool by design.
func (uc PayoutUseCase) ClaimReward(ctx context.Context, cmd ClaimRewardCommand) (PayoutResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	questionID := strings.TrimSpace(cmd.QuestionID)
	callerID := strings.TrimSpace(cmd.CallerID)
	if questionID == "" || callerID == "" {
		return PayoutResult{}, domainerrors.ErrInvalidQuestionInput
	}

	release := uc.Locks.Acquire(questionID)
	defer release()

	question, err := uc.Questions.GetQuestion(ctx, questionID)
	if err != nil {
		return PayoutResult{}, err
	}
	answer, ok := question.AnswerFor(callerID)
	if !ok {
		return PayoutResult{}, domainerrors.ErrAnswerNotFound
	}
	if !question.Evaluated {
		return PayoutResult{}, domainerrors.ErrNotEvaluated
	}
	if answer.Rewarded {
		return PayoutResult{}, domainerrors.ErrAlreadyRewarded
	}

	amount, ok := question.MarkClaimed(callerID)
	if !ok {
		return PayoutResult{}, domainerrors.ErrNothingToClaim
	}
	if err := uc.reservePayout(ctx, question); err != nil {
		return PayoutResult{}, err
	}
	if err := uc.Ledger.Transfer(ctx, question.TokenID, question.EscrowAccountID(), callerID, amount); err != nil {
		uc.releasePayoutMark(ctx, question, callerID)
		logger.Warn("reward claim transfer failed",
			"event", "reward_claim_transfer_failed",
			"module", "knowledge-market/question-service",
			"layer", "application",
			"question_id", questionID,
			"user_id", callerID,
			"amount", amount,
			"error", err.Error(),
		)
		return PayoutResult{}, err
	}

	now := uc.now()
	uc.commitPayout(ctx, question, callerID, amount, false, now)

	logger.Info("reward claimed",
		"event", "reward_claimed",
		"module", "knowledge-market/question-service",
		"layer", "application",
		"question_id", questionID,
		"user_id", callerID,
		"amount", amount,
		"score", answer.Score,
		"total_score", question.CachedTotalScore,
	)
	return PayoutResult{QuestionID: questionID, UserID: callerID, Amount: amount, Refund: false}, nil
}

// reservePayout commits the rewarded mark ahead of the transfer. Nothing has
// moved yet, so a failure here is a clean abort.
func (uc PayoutUseCase) reservePayout(ctx context.Context, question entities.Question) error {
	return uc.Questions.SaveQuestion(ctx, question, nil)
}

// releasePayoutMark undoes a reserved mark whose transfer failed. A failure
// here leaves the entitlement marked but unpaid, which still honors the
// at-most-once bound; the error log is the operator's signal to intervene.
func (uc PayoutUseCase) releasePayoutMark(ctx context.Context, question entities.Question, responderID string) {
	idx, ok := question.AnswerIndexByUser[strings.TrimSpace(responderID)]
	if !ok {
		return
	}
	question.Answers[idx].Rewarded = false
	if err := uc.Questions.SaveQuestion(ctx, question, nil); err != nil {
		application.ResolveLogger(uc.Logger).Error("payout mark release failed",
			"event", "payout_mark_release_failed",
			"module", "knowledge-market/question-service",
			"layer", "application",
			"question_id", question.QuestionID,
			"user_id", responderID,
			"error", err.Error(),
		)
	}
}

// commitPayout appends the claim notification after the tokens moved. The
// payout itself is already settled and reserved, so a failure here only
// loses the event; it is logged, never propagated. The same reward.claimed
// type is reused for emergency refunds, with the refund marker set in the
// payload.
func (uc PayoutUseCase) commitPayout(
	ctx context.Context,
	question entities.Question,
	userID string,
	amount int64,
	refund bool,
	now time.Time,
) {
	logger := application.ResolveLogger(uc.Logger)
	eventID, err := uc.IDGen.NewID(ctx)
	if err == nil {
		var event ports.EventEnvelope
		event, err = newQuestionEnvelope(eventID, EventRewardClaimed, question.QuestionID, now, map[string]any{
			"question_id": question.QuestionID,
			"user_id":     userID,
			"amount":      amount,
			"refund":      refund,
			"pool_total":  question.TotalRewardPool,
		})
		if err == nil {
			err = uc.Questions.SaveQuestion(ctx, question, []ports.EventEnvelope{event})
		}
	}
	if err != nil {
		logger.Error("payout notification commit failed",
			"event", "payout_notification_commit_failed",
			"module", "knowledge-market/question-service",
			"layer", "application",
			"question_id", question.QuestionID,
			"user_id", userID,
			"amount", amount,
			"refund", refund,
			"error", err.Error(),
		)
	}
}

func (uc PayoutUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
