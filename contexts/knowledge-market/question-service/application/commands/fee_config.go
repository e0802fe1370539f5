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

// FeeConfigUseCase applies owner-restricted, bounded mutations to a
// question's fee configuration. Changes take effect immediately: later
// submissions split against the current values, never a creation-time
// snapshot. Individual fields are bounded at MaxBps; a combination summing
// above 100% is legal here and rejected at submission time instead.
type FeeConfigUseCase struct {
	Questions ports.QuestionRepository
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Locks     *application.QuestionLocks
	Logger    *slog.Logger
}

func (uc FeeConfigUseCase) SetProtocolFeeBps(ctx context.Context, questionID string, callerID string, value int64) error {
	return uc.mutate(ctx, questionID, callerID, "protocol_fee_bps", value, func(fees *entities.FeeConfig) error {
		if !entities.ValidBps(value) {
			return domainerrors.ErrInvalidFeeBps
		}
		fees.ProtocolFeeBps = value
		return nil
	})
}

func (uc FeeConfigUseCase) SetCreatorFeeBps(ctx context.Context, questionID string, callerID string, value int64) error {
	return uc.mutate(ctx, questionID, callerID, "creator_fee_bps", value, func(fees *entities.FeeConfig) error {
		if !entities.ValidBps(value) {
			return domainerrors.ErrInvalidFeeBps
		}
		fees.CreatorFeeBps = value
		return nil
	})
}

func (uc FeeConfigUseCase) SetReferralFeeBps(ctx context.Context, questionID string, callerID string, value int64) error {
	return uc.mutate(ctx, questionID, callerID, "referral_fee_bps", value, func(fees *entities.FeeConfig) error {
		if !entities.ValidBps(value) {
			return domainerrors.ErrInvalidFeeBps
		}
		fees.ReferralFeeBps = value
		return nil
	})
}

func (uc FeeConfigUseCase) SetTreasury(ctx context.Context, questionID string, callerID string, treasuryID string) error {
	treasuryID = strings.TrimSpace(treasuryID)
	return uc.mutate(ctx, questionID, callerID, "treasury_id", treasuryID, func(fees *entities.FeeConfig) error {
		if treasuryID == "" {
			return domainerrors.ErrInvalidTreasury
		}
		fees.TreasuryID = treasuryID
		return nil
	})
}

func (uc FeeConfigUseCase) mutate(
	ctx context.Context,
	questionID string,
	callerID string,
	field string,
	value any,
	apply func(*entities.FeeConfig) error,
) error {
	logger := application.ResolveLogger(uc.Logger)
	questionID = strings.TrimSpace(questionID)
	callerID = strings.TrimSpace(callerID)
	if questionID == "" || callerID == "" {
		return domainerrors.ErrInvalidQuestionInput
	}

	release := uc.Locks.Acquire(questionID)
	defer release()

	question, err := uc.Questions.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if callerID != question.OwnerID {
		return domainerrors.ErrNotOwner
	}
	if err := apply(&question.Fees); err != nil {
		return err
	}

	now := uc.now()
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	event, err := newQuestionEnvelope(eventID, EventFeeConfigUpdated, questionID, now, map[string]any{
		"question_id": questionID,
		"actor_id":    callerID,
		"field":       field,
		"value":       value,
	})
	if err != nil {
		return err
	}
	if err := uc.Questions.SaveQuestion(ctx, question, []ports.EventEnvelope{event}); err != nil {
		return err
	}

	logger.Info("fee config updated",
		"event", "question_fee_config_updated",
		"module", "knowledge-market/question-service",
		"layer", "application",
		"question_id", questionID,
		"actor_id", callerID,
		"field", field,
	)
	return nil
}

func (uc FeeConfigUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
