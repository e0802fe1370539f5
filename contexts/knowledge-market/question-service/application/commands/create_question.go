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

// CreateQuestionCommand carries the factory boundary parameters. RankerID
// and OwnerID default to the creator when empty; InitialSeed optionally
// funds the pool from the creator's balance at creation time.
type CreateQuestionCommand struct {
	TokenID        string
	SubmissionCost int64
	Duration       time.Duration
	MaxWinners     int
	CreatorID      string
	OwnerID        string
	RankerID       string
	TreasuryID     string
	ProtocolFeeBps int64
	CreatorFeeBps  int64
	ReferralFeeBps int64
	InitialSeed    int64
}

// QuestionUseCase orchestrates question lifecycle commands: creation,
// seeding, and the authorized-submitter set.
type QuestionUseCase struct {
	Questions ports.QuestionRepository
	Ledger    ports.TokenLedger
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Locks     *application.QuestionLocks
	Logger    *slog.Logger
}

// CreateQuestion constructs an immutable question instance, optionally seeds
// its pool, and appends the discovery registry entry.
func (uc QuestionUseCase) CreateQuestion(ctx context.Context, cmd CreateQuestionCommand) (entities.Question, error) {
	logger := application.ResolveLogger(uc.Logger)
	if cmd.InitialSeed < 0 {
		return entities.Question{}, domainerrors.ErrInvalidSeedAmount
	}

	now := uc.now()
	questionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Question{}, err
	}

	fees := entities.FeeConfig{
		ProtocolFeeBps: cmd.ProtocolFeeBps,
		CreatorFeeBps:  cmd.CreatorFeeBps,
		ReferralFeeBps: cmd.ReferralFeeBps,
		TreasuryID:     strings.TrimSpace(cmd.TreasuryID),
	}
	question, ok := entities.NewQuestion(
		questionID,
		cmd.TokenID,
		cmd.SubmissionCost,
		cmd.Duration,
		cmd.MaxWinners,
		cmd.OwnerID,
		cmd.CreatorID,
		cmd.RankerID,
		fees,
		now,
	)
	if !ok {
		logger.Warn("question create validation failed",
			"event", "question_create_validation_failed",
			"module", "knowledge-market/question-service",
			"layer", "application",
			"creator_id", strings.TrimSpace(cmd.CreatorID),
		)
		return entities.Question{}, domainerrors.ErrInvalidQuestionInput
	}

	if cmd.InitialSeed > 0 {
		if err := uc.Ledger.TransferFrom(ctx, question.TokenID, question.CreatorID, question.EscrowAccountID(), cmd.InitialSeed); err != nil {
			return entities.Question{}, err
		}
		question.Seed(cmd.InitialSeed)
	}

	events, err := uc.creationEvents(ctx, question, cmd.InitialSeed, now)
	if err != nil {
		return entities.Question{}, err
	}
	if err := uc.Questions.CreateQuestion(ctx, question, events); err != nil {
		return entities.Question{}, err
	}

	logger.Info("question created",
		"event", "question_created",
		"module", "knowledge-market/question-service",
		"layer", "application",
		"question_id", question.QuestionID,
		"creator_id", question.CreatorID,
		"token_id", question.TokenID,
		"submission_cost", question.SubmissionCost,
		"max_winners", question.MaxWinners,
		"ends_at", question.EndsAt,
	)
	return question, nil
}

// AuthorizeSubmitter adds an identity allowed to submit on behalf of others.
// Owner or creator only.
func (uc QuestionUseCase) AuthorizeSubmitter(ctx context.Context, questionID string, callerID string, submitterID string) error {
	return uc.setSubmitter(ctx, questionID, callerID, submitterID, true)
}

// RevokeSubmitter removes an identity from the authorized-submitter set.
func (uc QuestionUseCase) RevokeSubmitter(ctx context.Context, questionID string, callerID string, submitterID string) error {
	return uc.setSubmitter(ctx, questionID, callerID, submitterID, false)
}

func (uc QuestionUseCase) setSubmitter(ctx context.Context, questionID string, callerID string, submitterID string, allowed bool) error {
	callerID = strings.TrimSpace(callerID)
	submitterID = strings.TrimSpace(submitterID)
	if submitterID == "" {
		return domainerrors.ErrInvalidQuestionInput
	}

	release := uc.Locks.Acquire(strings.TrimSpace(questionID))
	defer release()

	question, err := uc.Questions.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if callerID != question.OwnerID && callerID != question.CreatorID {
		return domainerrors.ErrNotOwner
	}
	if allowed {
		question.AuthorizedSubmitters[submitterID] = true
	} else {
		delete(question.AuthorizedSubmitters, submitterID)
	}

	now := uc.now()
	eventType := EventSubmitterAuthorized
	if !allowed {
		eventType = EventSubmitterRevoked
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	event, err := newQuestionEnvelope(eventID, eventType, question.QuestionID, now, map[string]any{
		"question_id":  question.QuestionID,
		"submitter_id": submitterID,
		"actor_id":     callerID,
	})
	if err != nil {
		return err
	}
	return uc.Questions.SaveQuestion(ctx, question, []ports.EventEnvelope{event})
}

func (uc QuestionUseCase) creationEvents(
	ctx context.Context,
	question entities.Question,
	initialSeed int64,
	now time.Time,
) ([]ports.EventEnvelope, error) {
	createdID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return nil, err
	}
	created, err := newQuestionEnvelope(createdID, EventQuestionCreated, question.QuestionID, now, map[string]any{
		"question_id":     question.QuestionID,
		"creator_id":      question.CreatorID,
		"ranker_id":       question.RankerID,
		"token_id":        question.TokenID,
		"submission_cost": question.SubmissionCost,
		"max_winners":     question.MaxWinners,
		"ends_at":         question.EndsAt.UTC().Format(time.RFC3339),
		"created_at":      question.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	events := []ports.EventEnvelope{created}

	if initialSeed > 0 {
		seededID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return nil, err
		}
		seeded, err := newQuestionEnvelope(seededID, EventQuestionSeeded, question.QuestionID, now, map[string]any{
			"question_id": question.QuestionID,
			"funder_id":   question.CreatorID,
			"amount":      initialSeed,
			"pool_total":  question.TotalRewardPool,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, seeded)
	}
	return events, nil
}

func (uc QuestionUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
