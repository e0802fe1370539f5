package commands

import (
	"context"
	"strings"

	application "delphi/contexts/knowledge-market/question-service/application"
	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
	"delphi/contexts/knowledge-market/question-service/ports"
)

// SeedQuestionCommand funds a question's reward pool from any identity's
// approved balance. Callable in any phase, no upper bound.
type SeedQuestionCommand struct {
	QuestionID string
	FunderID   string
	Amount     int64
}

// SeedQuestion pulls the amount into the question escrow and grows the pool
// counter atomically with the seeded notification.
func (uc QuestionUseCase) SeedQuestion(ctx context.Context, cmd SeedQuestionCommand) (int64, error) {
	logger := application.ResolveLogger(uc.Logger)
	questionID := strings.TrimSpace(cmd.QuestionID)
	funderID := strings.TrimSpace(cmd.FunderID)
	if questionID == "" || funderID == "" {
		return 0, domainerrors.ErrInvalidQuestionInput
	}
	if cmd.Amount <= 0 {
		return 0, domainerrors.ErrInvalidSeedAmount
	}

	release := uc.Locks.Acquire(questionID)
	defer release()

	question, err := uc.Questions.GetQuestion(ctx, questionID)
	if err != nil {
		return 0, err
	}
	if err := uc.Ledger.TransferFrom(ctx, question.TokenID, funderID, question.EscrowAccountID(), cmd.Amount); err != nil {
		return 0, err
	}
	question.Seed(cmd.Amount)

	now := uc.now()
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return 0, err
	}
	event, err := newQuestionEnvelope(eventID, EventQuestionSeeded, questionID, now, map[string]any{
		"question_id": questionID,
		"funder_id":   funderID,
		"amount":      cmd.Amount,
		"pool_total":  question.TotalRewardPool,
	})
	if err != nil {
		return 0, err
	}
	if err := uc.Questions.SaveQuestion(ctx, question, []ports.EventEnvelope{event}); err != nil {
		return 0, err
	}

	logger.Info("question pool seeded",
		"event", "question_seeded",
		"module", "knowledge-market/question-service",
		"layer", "application",
		"question_id", questionID,
		"funder_id", funderID,
		"amount", cmd.Amount,
		"pool_total", question.TotalRewardPool,
	)
	return question.TotalRewardPool, nil
}
