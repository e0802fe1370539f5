package queries

import (
	"context"
	"strings"
	"time"

	"delphi/contexts/knowledge-market/question-service/domain/entities"
	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
	"delphi/contexts/knowledge-market/question-service/ports"
)

// QuestionQueries is the read-only view layer: pure computations over the
// stored aggregate, no mutation anywhere.
type QuestionQueries struct {
	Questions ports.QuestionRepository
	Clock     ports.Clock
}

// StatusSummary is the discrete status view of one question.
type StatusSummary struct {
	QuestionID         string
	Phase              entities.Phase
	EndsAt             time.Time
	EvaluationDeadline time.Time
	TimeRemaining      time.Duration
	IsActive           bool
	IsEvaluationPeriod bool
	CanEmergencyRefund bool
	Evaluated          bool
	AnswerCount        int
	TotalRewardPool    int64
	TotalScore         int64
}

// ClaimableEntry pairs an identity with its current claimable amount.
type ClaimableEntry struct {
	UserID string
	Amount int64
}

func (q QuestionQueries) GetQuestion(ctx context.Context, questionID string) (entities.Question, error) {
	return q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
}

// GetAnswer returns the answer at a zero-based index.
func (q QuestionQueries) GetAnswer(ctx context.Context, questionID string, index int) (entities.Answer, error) {
	question, err := q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return entities.Answer{}, err
	}
	if index < 0 || index >= len(question.Answers) {
		return entities.Answer{}, domainerrors.ErrAnswerNotFound
	}
	return question.Answers[index], nil
}

func (q QuestionQueries) GetAllAnswers(ctx context.Context, questionID string) ([]entities.Answer, error) {
	question, err := q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return nil, err
	}
	return append([]entities.Answer(nil), question.Answers...), nil
}

// GetUserAnswer fails with ErrAnswerNotFound when the identity never
// submitted; use GetClaimableAmount for the zero-instead-of-error view.
func (q QuestionQueries) GetUserAnswer(ctx context.Context, questionID string, userID string) (entities.Answer, error) {
	question, err := q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return entities.Answer{}, err
	}
	answer, ok := question.AnswerFor(userID)
	if !ok {
		return entities.Answer{}, domainerrors.ErrAnswerNotFound
	}
	return answer, nil
}

// TotalScore returns the cached sum once evaluated, a live scan before.
func (q QuestionQueries) TotalScore(ctx context.Context, questionID string) (int64, error) {
	question, err := q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return 0, err
	}
	return question.TotalScore(), nil
}

// GetClaimableAmount returns zero for every non-eligible condition rather
// than failing: absent answer, unevaluated, zero score, already claimed,
// zero total score.
func (q QuestionQueries) GetClaimableAmount(ctx context.Context, questionID string, userID string) (int64, error) {
	question, err := q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return 0, err
	}
	return question.ClaimableAmount(userID), nil
}

// GetClaimableAmounts is the batched variant of GetClaimableAmount.
func (q QuestionQueries) GetClaimableAmounts(ctx context.Context, questionID string, userIDs []string) ([]ClaimableEntry, error) {
	question, err := q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return nil, err
	}
	entries := make([]ClaimableEntry, 0, len(userIDs))
	for _, userID := range userIDs {
		entries = append(entries, ClaimableEntry{
			UserID: strings.TrimSpace(userID),
			Amount: question.ClaimableAmount(userID),
		})
	}
	return entries, nil
}

func (q QuestionQueries) GetWinnerAddresses(ctx context.Context, questionID string) ([]string, error) {
	question, err := q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return nil, err
	}
	return question.WinnerIDs(), nil
}

// GetRankedWinners returns scored answers in descending score order.
func (q QuestionQueries) GetRankedWinners(ctx context.Context, questionID string) ([]entities.Answer, error) {
	question, err := q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return nil, err
	}
	return question.RankedWinners(), nil
}

func (q QuestionQueries) GetTotalClaimed(ctx context.Context, questionID string) (int64, error) {
	question, err := q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return 0, err
	}
	return question.TotalClaimed(), nil
}

func (q QuestionQueries) GetUnclaimedRewards(ctx context.Context, questionID string) (int64, error) {
	question, err := q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return 0, err
	}
	return question.UnclaimedRewards(), nil
}

// Status derives the discrete phase summary from the clock.
func (q QuestionQueries) Status(ctx context.Context, questionID string) (StatusSummary, error) {
	question, err := q.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return StatusSummary{}, err
	}
	now := q.now()
	return StatusSummary{
		QuestionID:         question.QuestionID,
		Phase:              question.PhaseAt(now),
		EndsAt:             question.EndsAt,
		EvaluationDeadline: question.EvaluationDeadline,
		TimeRemaining:      question.TimeRemaining(now),
		IsActive:           question.IsActive(now),
		IsEvaluationPeriod: question.IsEvaluationPeriod(now),
		CanEmergencyRefund: question.CanEmergencyRefund(now),
		Evaluated:          question.Evaluated,
		AnswerCount:        len(question.Answers),
		TotalRewardPool:    question.TotalRewardPool,
		TotalScore:         question.TotalScore(),
	}, nil
}

// ListRegistry pages through the append-only discovery registry.
func (q QuestionQueries) ListRegistry(ctx context.Context, limit int, offset int) ([]ports.RegistryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return q.Questions.ListRegistry(ctx, limit, offset)
}

func (q QuestionQueries) now() time.Time {
	if q.Clock == nil {
		return time.Now().UTC()
	}
	return q.Clock.Now().UTC()
}
