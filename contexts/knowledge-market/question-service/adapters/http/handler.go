package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"delphi/contexts/knowledge-market/question-service/application/commands"
	"delphi/contexts/knowledge-market/question-service/application/queries"
	"delphi/contexts/knowledge-market/question-service/domain/entities"
	httptransport "delphi/contexts/knowledge-market/question-service/transport/http"
)

type Handler struct {
	Questions commands.QuestionUseCase
	Submits   commands.SubmitUseCase
	Evaluates commands.EvaluateUseCase
	Payouts   commands.PayoutUseCase
	Fees      commands.FeeConfigUseCase
	Views     queries.QuestionQueries
	Logger    *slog.Logger
}

func (h Handler) CreateQuestionHandler(
	ctx context.Context,
	creatorID string,
	req httptransport.CreateQuestionRequest,
) (httptransport.QuestionResponse, error) {
	question, err := h.Questions.CreateQuestion(ctx, commands.CreateQuestionCommand{
		TokenID:        req.TokenID,
		SubmissionCost: req.SubmissionCost,
		Duration:       time.Duration(req.DurationSeconds) * time.Second,
		MaxWinners:     req.MaxWinners,
		CreatorID:      creatorID,
		OwnerID:        req.OwnerID,
		RankerID:       req.RankerID,
		TreasuryID:     req.TreasuryID,
		ProtocolFeeBps: req.ProtocolFeeBps,
		CreatorFeeBps:  req.CreatorFeeBps,
		ReferralFeeBps: req.ReferralFeeBps,
		InitialSeed:    req.InitialSeed,
	})
	if err != nil {
		return httptransport.QuestionResponse{}, err
	}
	return mapQuestion(question), nil
}

func (h Handler) GetQuestionHandler(ctx context.Context, questionID string) (httptransport.QuestionResponse, error) {
	question, err := h.Views.GetQuestion(ctx, questionID)
	if err != nil {
		return httptransport.QuestionResponse{}, err
	}
	return mapQuestion(question), nil
}

func (h Handler) SeedQuestionHandler(
	ctx context.Context,
	questionID string,
	funderID string,
	req httptransport.SeedQuestionRequest,
) (httptransport.SeedQuestionResponse, error) {
	poolTotal, err := h.Questions.SeedQuestion(ctx, commands.SeedQuestionCommand{
		QuestionID: questionID,
		FunderID:   funderID,
		Amount:     req.Amount,
	})
	if err != nil {
		return httptransport.SeedQuestionResponse{}, err
	}
	return httptransport.SeedQuestionResponse{
		QuestionID: questionID,
		PoolTotal:  poolTotal,
	}, nil
}

func (h Handler) SubmitAnswerHandler(
	ctx context.Context,
	questionID string,
	callerID string,
	idempotencyKey string,
	req httptransport.SubmitAnswerRequest,
) (httptransport.SubmitAnswerResponse, error) {
	result, err := h.Submits.SubmitAnswer(ctx, commands.SubmitAnswerCommand{
		QuestionID:     questionID,
		CallerID:       callerID,
		ResponderID:    req.ResponderID,
		ContentHash:    req.ContentHash,
		ReferrerID:     req.ReferrerID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.SubmitAnswerResponse{}, err
	}
	return httptransport.SubmitAnswerResponse{
		QuestionID:  result.QuestionID,
		ResponderID: result.ResponderID,
		AnswerIndex: result.AnswerIndex,
		ProtocolCut: result.ProtocolCut,
		CreatorCut:  result.CreatorCut,
		ReferralCut: result.ReferralCut,
		RewardCut:   result.RewardCut,
		Phase:       string(result.Phase),
		Replayed:    result.Replayed,
	}, nil
}

func (h Handler) EvaluateHandler(
	ctx context.Context,
	questionID string,
	callerID string,
	req httptransport.EvaluateRequest,
) (httptransport.QuestionResponse, error) {
	question, err := h.Evaluates.EvaluateAnswers(ctx, commands.EvaluateAnswersCommand{
		QuestionID:    questionID,
		CallerID:      callerID,
		RankedIndices: req.RankedIndices,
	})
	if err != nil {
		return httptransport.QuestionResponse{}, err
	}
	return mapQuestion(question), nil
}

func (h Handler) ClaimRewardHandler(ctx context.Context, questionID string, callerID string) (httptransport.PayoutResponse, error) {
	result, err := h.Payouts.ClaimReward(ctx, commands.ClaimRewardCommand{
		QuestionID: questionID,
		CallerID:   callerID,
	})
	if err != nil {
		return httptransport.PayoutResponse{}, err
	}
	return mapPayout(result), nil
}

func (h Handler) EmergencyRefundHandler(ctx context.Context, questionID string, callerID string) (httptransport.PayoutResponse, error) {
	result, err := h.Payouts.EmergencyRefund(ctx, commands.EmergencyRefundCommand{
		QuestionID: questionID,
		CallerID:   callerID,
	})
	if err != nil {
		return httptransport.PayoutResponse{}, err
	}
	return mapPayout(result), nil
}

func (h Handler) AnswersHandler(ctx context.Context, questionID string) (httptransport.AnswersResponse, error) {
	answers, err := h.Views.GetAllAnswers(ctx, questionID)
	if err != nil {
		return httptransport.AnswersResponse{}, err
	}
	return httptransport.AnswersResponse{
		QuestionID: questionID,
		Items:      mapAnswers(answers),
	}, nil
}

func (h Handler) StatusHandler(ctx context.Context, questionID string) (httptransport.StatusResponse, error) {
	summary, err := h.Views.Status(ctx, questionID)
	if err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{
		QuestionID:           summary.QuestionID,
		Phase:                string(summary.Phase),
		EndsAt:               summary.EndsAt.UTC().Format(time.RFC3339),
		EvaluationDeadline:   summary.EvaluationDeadline.UTC().Format(time.RFC3339),
		TimeRemainingSeconds: int64(summary.TimeRemaining / time.Second),
		IsActive:             summary.IsActive,
		IsEvaluationPeriod:   summary.IsEvaluationPeriod,
		CanEmergencyRefund:   summary.CanEmergencyRefund,
		Evaluated:            summary.Evaluated,
		AnswerCount:          summary.AnswerCount,
		TotalRewardPool:      summary.TotalRewardPool,
		TotalScore:           summary.TotalScore,
	}, nil
}

func (h Handler) ClaimableHandler(ctx context.Context, questionID string, userID string) (httptransport.ClaimableResponse, error) {
	amount, err := h.Views.GetClaimableAmount(ctx, questionID, userID)
	if err != nil {
		return httptransport.ClaimableResponse{}, err
	}
	return httptransport.ClaimableResponse{
		QuestionID: questionID,
		UserID:     userID,
		Amount:     amount,
	}, nil
}

func (h Handler) ClaimableBatchHandler(
	ctx context.Context,
	questionID string,
	req httptransport.ClaimableBatchRequest,
) (httptransport.ClaimableBatchResponse, error) {
	entries, err := h.Views.GetClaimableAmounts(ctx, questionID, req.UserIDs)
	if err != nil {
		return httptransport.ClaimableBatchResponse{}, err
	}
	items := make([]httptransport.ClaimableBatchItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, httptransport.ClaimableBatchItem{
			UserID: entry.UserID,
			Amount: entry.Amount,
		})
	}
	return httptransport.ClaimableBatchResponse{
		QuestionID: questionID,
		Items:      items,
	}, nil
}

func (h Handler) WinnersHandler(ctx context.Context, questionID string) (httptransport.WinnersResponse, error) {
	userIDs, err := h.Views.GetWinnerAddresses(ctx, questionID)
	if err != nil {
		return httptransport.WinnersResponse{}, err
	}
	ranked, err := h.Views.GetRankedWinners(ctx, questionID)
	if err != nil {
		return httptransport.WinnersResponse{}, err
	}
	return httptransport.WinnersResponse{
		QuestionID: questionID,
		UserIDs:    userIDs,
		Ranked:     mapAnswers(ranked),
	}, nil
}

func (h Handler) PoolTotalsHandler(ctx context.Context, questionID string) (httptransport.PoolTotalsResponse, error) {
	question, err := h.Views.GetQuestion(ctx, questionID)
	if err != nil {
		return httptransport.PoolTotalsResponse{}, err
	}
	return httptransport.PoolTotalsResponse{
		QuestionID:      question.QuestionID,
		TotalRewardPool: question.TotalRewardPool,
		TotalClaimed:    question.TotalClaimed(),
		Unclaimed:       question.UnclaimedRewards(),
	}, nil
}

func (h Handler) SetProtocolFeeHandler(ctx context.Context, questionID string, callerID string, req httptransport.FeeUpdateRequest) error {
	return h.Fees.SetProtocolFeeBps(ctx, questionID, callerID, req.Value)
}

func (h Handler) SetCreatorFeeHandler(ctx context.Context, questionID string, callerID string, req httptransport.FeeUpdateRequest) error {
	return h.Fees.SetCreatorFeeBps(ctx, questionID, callerID, req.Value)
}

func (h Handler) SetReferralFeeHandler(ctx context.Context, questionID string, callerID string, req httptransport.FeeUpdateRequest) error {
	return h.Fees.SetReferralFeeBps(ctx, questionID, callerID, req.Value)
}

func (h Handler) SetTreasuryHandler(ctx context.Context, questionID string, callerID string, req httptransport.TreasuryUpdateRequest) error {
	return h.Fees.SetTreasury(ctx, questionID, callerID, req.TreasuryID)
}

func (h Handler) AuthorizeSubmitterHandler(ctx context.Context, questionID string, callerID string, req httptransport.SubmitterRequest) error {
	return h.Questions.AuthorizeSubmitter(ctx, questionID, callerID, req.SubmitterID)
}

func (h Handler) RevokeSubmitterHandler(ctx context.Context, questionID string, callerID string, req httptransport.SubmitterRequest) error {
	return h.Questions.RevokeSubmitter(ctx, questionID, callerID, req.SubmitterID)
}

func (h Handler) RegistryHandler(ctx context.Context, limit int, offset int) (httptransport.RegistryResponse, error) {
	entries, err := h.Views.ListRegistry(ctx, limit, offset)
	if err != nil {
		return httptransport.RegistryResponse{}, err
	}
	items := make([]httptransport.RegistryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, httptransport.RegistryItem{
			QuestionID:      entry.QuestionID,
			CreatorID:       entry.CreatorID,
			TokenID:         entry.TokenID,
			SubmissionCost:  entry.SubmissionCost,
			DurationSeconds: int64(entry.Duration / time.Second),
			MaxWinners:      entry.MaxWinners,
			CreatedAt:       entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return httptransport.RegistryResponse{Items: items}, nil
}

func mapQuestion(question entities.Question) httptransport.QuestionResponse {
	return httptransport.QuestionResponse{
		QuestionID:         question.QuestionID,
		TokenID:            question.TokenID,
		SubmissionCost:     question.SubmissionCost,
		MaxWinners:         question.MaxWinners,
		OwnerID:            question.OwnerID,
		CreatorID:          question.CreatorID,
		RankerID:           question.RankerID,
		TreasuryID:         question.Fees.TreasuryID,
		ProtocolFeeBps:     question.Fees.ProtocolFeeBps,
		CreatorFeeBps:      question.Fees.CreatorFeeBps,
		ReferralFeeBps:     question.Fees.ReferralFeeBps,
		CreatedAt:          question.CreatedAt.UTC().Format(time.RFC3339),
		EndsAt:             question.EndsAt.UTC().Format(time.RFC3339),
		EvaluationDeadline: question.EvaluationDeadline.UTC().Format(time.RFC3339),
		TotalRewardPool:    question.TotalRewardPool,
		Evaluated:          question.Evaluated,
		AnswerCount:        len(question.Answers),
	}
}

func mapAnswers(answers []entities.Answer) []httptransport.AnswerView {
	items := make([]httptransport.AnswerView, 0, len(answers))
	for i, answer := range answers {
		items = append(items, httptransport.AnswerView{
			AnswerIndex: i,
			ResponderID: answer.ResponderID,
			ContentHash: answer.ContentHash,
			SubmittedAt: answer.SubmittedAt.UTC().Format(time.RFC3339),
			Score:       answer.Score,
			Rewarded:    answer.Rewarded,
		})
	}
	return items
}

func mapPayout(result commands.PayoutResult) httptransport.PayoutResponse {
	return httptransport.PayoutResponse{
		QuestionID: result.QuestionID,
		UserID:     result.UserID,
		Amount:     result.Amount,
		Refund:     result.Refund,
	}
}
