package commands

import (
	"context"
	"strings"

	application "delphi/contexts/knowledge-market/question-service/application"
	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
)

// EmergencyRefundCommand requests the equal-split fallback payout.
type EmergencyRefundCommand struct {
	QuestionID string
	CallerID   string
}

// EmergencyRefund pays floor(pool / answerCount) to a participant when the
// ranker never evaluated before the grace deadline. The per-head amount is
// computed fresh from the current pool on every call, so all participants
// receive the identical amount and the sum never exceeds the pool. Same
// reserve-then-transfer ordering as ClaimReward: the rewarded mark is
// durable before any tokens move.
func (uc PayoutUseCase) EmergencyRefund(ctx context.Context, cmd EmergencyRefundCommand) (PayoutResult, error) {
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
	if answer.Rewarded {
		return PayoutResult{}, domainerrors.ErrAlreadyRewarded
	}

	now := uc.now()
	amount, ok := question.MarkRefunded(callerID, now)
	if !ok {
		return PayoutResult{}, domainerrors.ErrRefundNotAvailable
	}
	if err := uc.reservePayout(ctx, question); err != nil {
		return PayoutResult{}, err
	}
	if amount > 0 {
		if err := uc.Ledger.Transfer(ctx, question.TokenID, question.EscrowAccountID(), callerID, amount); err != nil {
			uc.releasePayoutMark(ctx, question, callerID)
			logger.Warn("emergency refund transfer failed",
				"event", "emergency_refund_transfer_failed",
				"module", "knowledge-market/question-service",
				"layer", "application",
				"question_id", questionID,
				"user_id", callerID,
				"amount", amount,
				"error", err.Error(),
			)
			return PayoutResult{}, err
		}
	}
	uc.commitPayout(ctx, question, callerID, amount, true, now)

	logger.Info("emergency refund paid",
		"event", "emergency_refund_paid",
		"module", "knowledge-market/question-service",
		"layer", "application",
		"question_id", questionID,
		"user_id", callerID,
		"amount", amount,
		"answer_count", len(question.Answers),
	)
	return PayoutResult{QuestionID: questionID, UserID: callerID, Amount: amount, Refund: true}, nil
}
