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

// EvaluateAnswersCommand ranks answers by index, best first.
type EvaluateAnswersCommand struct {
	QuestionID    string
	CallerID      string
	RankedIndices []int
}

// EvaluateUseCase performs the single, irrevocable evaluation write.
type EvaluateUseCase struct {
	Questions ports.QuestionRepository
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Locks     *application.QuestionLocks
	Logger    *slog.Logger
}

// EvaluateAnswers assigns rank weights, caches the score sum, and flips the
// evaluated flag. Only the designated ranker may call it, only between the
// question deadline and the evaluation deadline, and only once.
func (uc EvaluateUseCase) EvaluateAnswers(ctx context.Context, cmd EvaluateAnswersCommand) (entities.Question, error) {
	logger := application.ResolveLogger(uc.Logger)
	questionID := strings.TrimSpace(cmd.QuestionID)
	callerID := strings.TrimSpace(cmd.CallerID)
	if questionID == "" || callerID == "" {
		return entities.Question{}, domainerrors.ErrInvalidQuestionInput
	}

	release := uc.Locks.Acquire(questionID)
	defer release()

	question, err := uc.Questions.GetQuestion(ctx, questionID)
	if err != nil {
		return entities.Question{}, err
	}
	if callerID != question.RankerID {
		return entities.Question{}, domainerrors.ErrNotRanker
	}

	now := uc.now()
	switch question.Evaluate(cmd.RankedIndices, now) {
	case entities.EvaluationOK:
	case entities.EvaluationAlreadyDone:
		return entities.Question{}, domainerrors.ErrAlreadyEvaluated
	case entities.EvaluationTooEarly:
		return entities.Question{}, domainerrors.ErrEvaluationTooEarly
	case entities.EvaluationWindowClosed:
		return entities.Question{}, domainerrors.ErrEvaluationWindowClosed
	case entities.EvaluationTooManyWinners:
		return entities.Question{}, domainerrors.ErrTooManyWinners
	case entities.EvaluationIndexOutOfRange:
		return entities.Question{}, domainerrors.ErrRankedIndexOutOfRange
	case entities.EvaluationDuplicateIndex:
		return entities.Question{}, domainerrors.ErrDuplicateRankedIndex
	default:
		return entities.Question{}, domainerrors.ErrInvalidQuestionInput
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Question{}, err
	}
	event, err := newQuestionEnvelope(eventID, EventQuestionEvaluated, questionID, now, map[string]any{
		"question_id":    questionID,
		"ranker_id":      callerID,
		"ranked_indices": cmd.RankedIndices,
		"total_score":    question.CachedTotalScore,
		"pool_total":     question.TotalRewardPool,
		"evaluated_at":   now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return entities.Question{}, err
	}
	if err := uc.Questions.SaveQuestion(ctx, question, []ports.EventEnvelope{event}); err != nil {
		return entities.Question{}, err
	}

	logger.Info("question evaluated",
		"event", "question_evaluated",
		"module", "knowledge-market/question-service",
		"layer", "application",
		"question_id", questionID,
		"ranker_id", callerID,
		"winner_count", len(cmd.RankedIndices),
		"total_score", question.CachedTotalScore,
		"pool_total", question.TotalRewardPool,
	)
	return question, nil
}

func (uc EvaluateUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
