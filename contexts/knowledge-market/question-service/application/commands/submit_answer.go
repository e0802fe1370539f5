package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "delphi/contexts/knowledge-market/question-service/application"
	"delphi/contexts/knowledge-market/question-service/domain/entities"
	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
	"delphi/contexts/knowledge-market/question-service/ports"
)

// SubmitAnswerCommand is the write-model input for answer submission.
// ResponderID may differ from CallerID only for authorized submitters, who
// pay the submission fee themselves. ReferrerID is optional; when absent the
// referral share folds into the reward pool. IdempotencyKey is optional and
// makes retried submissions replay-safe.
type SubmitAnswerCommand struct {
	QuestionID     string
	CallerID       string
	ResponderID    string
	ContentHash    string
	ReferrerID     string
	IdempotencyKey string
}

// SubmitAnswerResult reports the recorded answer position and the exact fee
// split that was settled.
type SubmitAnswerResult struct {
	QuestionID  string         `json:"question_id"`
	ResponderID string         `json:"responder_id"`
	AnswerIndex int            `json:"answer_index"`
	ProtocolCut int64          `json:"protocol_cut"`
	CreatorCut  int64          `json:"creator_cut"`
	ReferralCut int64          `json:"referral_cut"`
	RewardCut   int64          `json:"reward_cut"`
	Phase       entities.Phase `json:"phase"`
	Replayed    bool           `json:"replayed"`
}

// SubmitUseCase handles answer intake: fee splitting across treasury,
// creator, optional referrer, and the reward pool, then the append-only
// answer record. The ledger transfers run before the aggregate commit; any
// transfer failure aborts the submission with no recorded state.
type SubmitUseCase struct {
	Questions      ports.QuestionRepository
	Ledger         ports.TokenLedger
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Locks          *application.QuestionLocks
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// SubmitAnswer records one answer for the caller themselves.
func (uc SubmitUseCase) SubmitAnswer(ctx context.Context, cmd SubmitAnswerCommand) (SubmitAnswerResult, error) {
	cmd.ResponderID = strings.TrimSpace(cmd.ResponderID)
	if cmd.ResponderID == "" {
		cmd.ResponderID = strings.TrimSpace(cmd.CallerID)
	}
	return uc.submit(ctx, cmd)
}

func (uc SubmitUseCase) submit(ctx context.Context, cmd SubmitAnswerCommand) (SubmitAnswerResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	questionID := strings.TrimSpace(cmd.QuestionID)
	callerID := strings.TrimSpace(cmd.CallerID)
	responderID := strings.TrimSpace(cmd.ResponderID)
	referrerID := strings.TrimSpace(cmd.ReferrerID)
	contentHash := strings.TrimSpace(cmd.ContentHash)

	if questionID == "" || callerID == "" || responderID == "" || contentHash == "" {
		return SubmitAnswerResult{}, domainerrors.ErrInvalidAnswerInput
	}

	now := uc.now()
	idempotencyKey := strings.TrimSpace(cmd.IdempotencyKey)
	requestHash := hashSubmitCommand(questionID, callerID, responderID, contentHash, referrerID)
	if idempotencyKey != "" && uc.Idempotency != nil {
		record, found, err := uc.Idempotency.GetRecord(ctx, idempotencyKey, now)
		if err != nil {
			return SubmitAnswerResult{}, err
		}
		if found {
			if record.RequestHash != requestHash {
				return SubmitAnswerResult{}, domainerrors.ErrIdempotencyConflict
			}
			var replayed SubmitAnswerResult
			if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
				return SubmitAnswerResult{}, err
			}
			replayed.Replayed = true
			return replayed, nil
		}
	}

	release := uc.Locks.Acquire(questionID)
	defer release()

	question, err := uc.Questions.GetQuestion(ctx, questionID)
	if err != nil {
		return SubmitAnswerResult{}, err
	}
	if responderID != callerID && !question.AuthorizedSubmitters[callerID] {
		return SubmitAnswerResult{}, domainerrors.ErrNotAuthorizedSubmitter
	}
	if !question.IsActive(now) {
		return SubmitAnswerResult{}, domainerrors.ErrQuestionClosed
	}
	if question.HasAnswer(responderID) {
		return SubmitAnswerResult{}, domainerrors.ErrAlreadyAnswered
	}

	split, ok := question.Fees.SplitSubmissionCost(question.SubmissionCost, referrerID != "")
	if !ok {
		return SubmitAnswerResult{}, domainerrors.ErrFeeExceedsCost
	}
	if question.SubmissionCost > 0 {
		if err := uc.settleSubmissionFee(ctx, question, callerID, referrerID, split); err != nil {
			logger.Warn("answer submission fee settlement failed",
				"event", "answer_submit_fee_settlement_failed",
				"module", "knowledge-market/question-service",
				"layer", "application",
				"question_id", questionID,
				"responder_id", responderID,
				"error", err.Error(),
			)
			return SubmitAnswerResult{}, err
		}
	}

	index, ok := question.AppendAnswer(responderID, contentHash, split.RewardCut, now)
	if !ok {
		return SubmitAnswerResult{}, domainerrors.ErrInvalidAnswerInput
	}

	eventType := EventAnswerSubmitted
	data := map[string]any{
		"question_id":  questionID,
		"responder_id": responderID,
		"caller_id":    callerID,
		"answer_index": index,
		"content_hash": contentHash,
		"reward_cut":   split.RewardCut,
		"pool_total":   question.TotalRewardPool,
	}
	if referrerID != "" {
		eventType = EventAnswerSubmittedReferral
		data["referrer_id"] = referrerID
		data["referral_cut"] = split.ReferralCut
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return SubmitAnswerResult{}, err
	}
	event, err := newQuestionEnvelope(eventID, eventType, questionID, now, data)
	if err != nil {
		return SubmitAnswerResult{}, err
	}
	if err := uc.Questions.SaveQuestion(ctx, question, []ports.EventEnvelope{event}); err != nil {
		return SubmitAnswerResult{}, err
	}

	result := SubmitAnswerResult{
		QuestionID:  questionID,
		ResponderID: responderID,
		AnswerIndex: index,
		ProtocolCut: split.ProtocolCut,
		CreatorCut:  split.CreatorCut,
		ReferralCut: split.ReferralCut,
		RewardCut:   split.RewardCut,
		Phase:       question.PhaseAt(now),
	}
	if idempotencyKey != "" && uc.Idempotency != nil {
		payload, err := json.Marshal(result)
		if err != nil {
			return SubmitAnswerResult{}, err
		}
		if err := uc.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
			Key:             idempotencyKey,
			RequestHash:     requestHash,
			ResponsePayload: payload,
			ExpiresAt:       now.Add(uc.resolveIdempotencyTTL()),
		}); err != nil {
			return SubmitAnswerResult{}, err
		}
	}

	logger.Info("answer submitted",
		"event", "answer_submitted",
		"module", "knowledge-market/question-service",
		"layer", "application",
		"question_id", questionID,
		"responder_id", responderID,
		"answer_index", index,
		"reward_cut", split.RewardCut,
		"referrer_present", referrerID != "",
	)
	return result, nil
}

// settleSubmissionFee moves the up-to-four cuts of one submission as a
// single atomic split drawn on the caller's approval. Either every cut
// settles or none do, so an aborted submission never costs the payer
// anything.
func (uc SubmitUseCase) settleSubmissionFee(
	ctx context.Context,
	question entities.Question,
	payerID string,
	referrerID string,
	split entities.Split,
) error {
	legs := make([]ports.LedgerLeg, 0, 4)
	if split.ProtocolCut > 0 {
		legs = append(legs, ports.LedgerLeg{To: question.Fees.TreasuryID, Amount: split.ProtocolCut})
	}
	if split.CreatorCut > 0 {
		legs = append(legs, ports.LedgerLeg{To: question.CreatorID, Amount: split.CreatorCut})
	}
	if referrerID != "" && split.ReferralCut > 0 {
		legs = append(legs, ports.LedgerLeg{To: referrerID, Amount: split.ReferralCut})
	}
	if split.RewardCut > 0 {
		legs = append(legs, ports.LedgerLeg{To: question.EscrowAccountID(), Amount: split.RewardCut})
	}
	if len(legs) == 0 {
		return nil
	}
	return uc.Ledger.SplitTransferFrom(ctx, question.TokenID, payerID, legs)
}

func (uc SubmitUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func (uc SubmitUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func hashSubmitCommand(questionID, callerID, responderID, contentHash, referrerID string) string {
	raw, _ := json.Marshal(map[string]string{
		"question_id":  questionID,
		"caller_id":    callerID,
		"responder_id": responderID,
		"content_hash": contentHash,
		"referrer_id":  referrerID,
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
