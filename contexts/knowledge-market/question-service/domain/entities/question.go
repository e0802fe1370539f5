package entities

import (
	"math/big"
	"sort"
	"strings"
	"time"
)

// EvaluationGraceWindow is how long after endsAt the ranker may still
// evaluate. Once it lapses unevaluated, the question enters the
// emergency-refund path and evaluation is permanently rejected.
const EvaluationGraceWindow = 7 * 24 * time.Hour

type Phase string

const (
	PhaseActive              Phase = "active"
	PhaseAwaitingEvaluation  Phase = "awaiting_evaluation"
	PhaseEvaluated           Phase = "evaluated"
	PhaseEmergencyRefundable Phase = "emergency_refund_available"
)

// Answer is one submitted response. Score and Rewarded are the only fields
// mutated after creation; Rewarded also marks "already refunded" on the
// emergency path.
type Answer struct {
	ResponderID string
	ContentHash string
	SubmittedAt time.Time
	Score       int64
	Rewarded    bool
}

// Question is the aggregate root of one market instance: it owns the answer
// collection, the reward pool counter, and the phase state. All mutators are
// pure state transitions; moving tokens is the caller's concern.
type Question struct {
	QuestionID         string
	TokenID            string
	SubmissionCost     int64
	MaxWinners         int
	OwnerID            string
	CreatorID          string
	RankerID           string
	Fees               FeeConfig
	CreatedAt          time.Time
	EndsAt             time.Time
	EvaluationDeadline time.Time

	TotalRewardPool  int64
	Evaluated        bool
	CachedTotalScore int64

	Answers              []Answer
	AnswerIndexByUser    map[string]int
	AuthorizedSubmitters map[string]bool
}

// NewQuestion builds a question from the factory boundary parameters. The
// ranker defaults to the creator when left empty; deployments that want an
// independent evaluator set it explicitly.
func NewQuestion(
	questionID string,
	tokenID string,
	submissionCost int64,
	duration time.Duration,
	maxWinners int,
	ownerID string,
	creatorID string,
	rankerID string,
	fees FeeConfig,
	now time.Time,
) (Question, bool) {
	questionID = strings.TrimSpace(questionID)
	tokenID = strings.TrimSpace(tokenID)
	creatorID = strings.TrimSpace(creatorID)
	rankerID = strings.TrimSpace(rankerID)
	ownerID = strings.TrimSpace(ownerID)
	if questionID == "" || tokenID == "" || creatorID == "" ||
		submissionCost < 0 || duration <= 0 || maxWinners <= 0 || !fees.Validate() {
		return Question{}, false
	}
	if rankerID == "" {
		rankerID = creatorID
	}
	if ownerID == "" {
		ownerID = creatorID
	}
	endsAt := now.Add(duration)
	return Question{
		QuestionID:           questionID,
		TokenID:              tokenID,
		SubmissionCost:       submissionCost,
		MaxWinners:           maxWinners,
		OwnerID:              ownerID,
		CreatorID:            creatorID,
		RankerID:             rankerID,
		Fees:                 fees,
		CreatedAt:            now,
		EndsAt:               endsAt,
		EvaluationDeadline:   endsAt.Add(EvaluationGraceWindow),
		AnswerIndexByUser:    make(map[string]int),
		AuthorizedSubmitters: make(map[string]bool),
	}, true
}

// PhaseAt derives the phase from the clock and the evaluated flag. Evaluated
// is terminal; the refund phase persists until every participant refunds but
// never transitions back.
func (q Question) PhaseAt(now time.Time) Phase {
	if q.Evaluated {
		return PhaseEvaluated
	}
	if now.Before(q.EndsAt) {
		return PhaseActive
	}
	if now.After(q.EvaluationDeadline) {
		return PhaseEmergencyRefundable
	}
	return PhaseAwaitingEvaluation
}

func (q Question) IsActive(now time.Time) bool {
	return q.PhaseAt(now) == PhaseActive
}

func (q Question) IsEvaluationPeriod(now time.Time) bool {
	return q.PhaseAt(now) == PhaseAwaitingEvaluation
}

func (q Question) CanEmergencyRefund(now time.Time) bool {
	return q.PhaseAt(now) == PhaseEmergencyRefundable
}

// TimeRemaining returns the time left in the open phase, zero once closed.
func (q Question) TimeRemaining(now time.Time) time.Duration {
	if !now.Before(q.EndsAt) {
		return 0
	}
	return q.EndsAt.Sub(now)
}

// HasAnswer reports whether the identity already submitted.
func (q Question) HasAnswer(responderID string) bool {
	_, ok := q.AnswerIndexByUser[strings.TrimSpace(responderID)]
	return ok
}

// AnswerFor returns the identity's answer, if any.
func (q Question) AnswerFor(responderID string) (Answer, bool) {
	idx, ok := q.AnswerIndexByUser[strings.TrimSpace(responderID)]
	if !ok || idx < 0 || idx >= len(q.Answers) {
		return Answer{}, false
	}
	return q.Answers[idx], true
}

// AppendAnswer records a new answer and returns its zero-based index.
// Callers settle the submission fee before committing the aggregate.
func (q *Question) AppendAnswer(responderID string, contentHash string, rewardCut int64, now time.Time) (int, bool) {
	responderID = strings.TrimSpace(responderID)
	if responderID == "" || !q.IsActive(now) || q.HasAnswer(responderID) || rewardCut < 0 {
		return 0, false
	}
	q.Answers = append(q.Answers, Answer{
		ResponderID: responderID,
		ContentHash: strings.TrimSpace(contentHash),
		SubmittedAt: now,
	})
	idx := len(q.Answers) - 1
	q.AnswerIndexByUser[responderID] = idx
	q.TotalRewardPool += rewardCut
	return idx, true
}

// Seed grows the reward pool. Valid in any phase; the pool only shrinks
// through claims and refunds.
func (q *Question) Seed(amount int64) bool {
	if amount <= 0 {
		return false
	}
	q.TotalRewardPool += amount
	return true
}

// EvaluationError mirrors the evaluation preconditions for callers that need
// to distinguish rejection causes.
type EvaluationError int

const (
	EvaluationOK EvaluationError = iota
	EvaluationAlreadyDone
	EvaluationTooEarly
	EvaluationWindowClosed
	EvaluationTooManyWinners
	EvaluationIndexOutOfRange
	EvaluationDuplicateIndex
)

// Evaluate assigns rank weights to the listed answers and caches the score
// sum. Position 0 earns MaxWinners points, position 1 earns MaxWinners-1,
// and so on; unlisted answers keep score zero. Duplicate indices are
// rejected so the cached sum always equals a live re-scan.
func (q *Question) Evaluate(rankedIndices []int, now time.Time) EvaluationError {
	if q.Evaluated {
		return EvaluationAlreadyDone
	}
	if now.Before(q.EndsAt) {
		return EvaluationTooEarly
	}
	if now.After(q.EvaluationDeadline) {
		return EvaluationWindowClosed
	}
	if len(rankedIndices) > q.MaxWinners {
		return EvaluationTooManyWinners
	}
	seen := make(map[int]bool, len(rankedIndices))
	for _, idx := range rankedIndices {
		if idx < 0 || idx >= len(q.Answers) {
			return EvaluationIndexOutOfRange
		}
		if seen[idx] {
			return EvaluationDuplicateIndex
		}
		seen[idx] = true
	}

	var total int64
	for position, idx := range rankedIndices {
		score := int64(q.MaxWinners - position)
		q.Answers[idx].Score = score
		total += score
	}
	q.CachedTotalScore = total
	q.Evaluated = true
	return EvaluationOK
}

// TotalScore returns the cached sum once evaluated, otherwise a live scan.
func (q Question) TotalScore() int64 {
	if q.Evaluated {
		return q.CachedTotalScore
	}
	var total int64
	for _, answer := range q.Answers {
		total += answer.Score
	}
	return total
}

// ClaimableAmount computes the proportional payout for an identity. It
// returns zero for every non-eligible condition instead of failing: absent
// answer, unevaluated question, zero score, already rewarded, zero total.
func (q Question) ClaimableAmount(responderID string) int64 {
	answer, ok := q.AnswerFor(responderID)
	if !ok || !q.Evaluated || answer.Score <= 0 || answer.Rewarded || q.CachedTotalScore <= 0 {
		return 0
	}
	return proportionalShare(q.TotalRewardPool, answer.Score, q.CachedTotalScore)
}

// proportionalShare computes floor(pool * score / total) through big.Int so
// the intermediate product cannot overflow int64. The quotient is bounded by
// the pool and always fits.
func proportionalShare(pool int64, score int64, total int64) int64 {
	share := new(big.Int).Mul(big.NewInt(pool), big.NewInt(score))
	share.Quo(share, big.NewInt(total))
	return share.Int64()
}

// MarkClaimed flips the rewarded flag and returns the payout amount. The
// flag is set before any token movement so a reentrant claim observes the
// post-mutation state and is rejected by the same guard.
func (q *Question) MarkClaimed(responderID string) (int64, bool) {
	idx, ok := q.AnswerIndexByUser[strings.TrimSpace(responderID)]
	if !ok {
		return 0, false
	}
	amount := q.ClaimableAmount(responderID)
	if amount <= 0 {
		return 0, false
	}
	q.Answers[idx].Rewarded = true
	return amount, true
}

// RefundAmount is the equal-split per-head payout, computed fresh from the
// current pool and answer count on every call. The pool is not decremented
// per refund, so every caller receives the identical amount.
func (q Question) RefundAmount() int64 {
	if len(q.Answers) == 0 {
		return 0
	}
	return q.TotalRewardPool / int64(len(q.Answers))
}

// MarkRefunded flips the rewarded flag for the emergency path and returns
// the per-head amount. Same mark-before-transfer ordering as MarkClaimed.
func (q *Question) MarkRefunded(responderID string, now time.Time) (int64, bool) {
	idx, ok := q.AnswerIndexByUser[strings.TrimSpace(responderID)]
	if !ok || q.Evaluated || !q.CanEmergencyRefund(now) || q.Answers[idx].Rewarded {
		return 0, false
	}
	amount := q.RefundAmount()
	q.Answers[idx].Rewarded = true
	return amount, true
}

// RankedWinners returns scored answers in descending score order.
func (q Question) RankedWinners() []Answer {
	winners := make([]Answer, 0, q.MaxWinners)
	for _, answer := range q.Answers {
		if answer.Score > 0 {
			winners = append(winners, answer)
		}
	}
	sort.Slice(winners, func(i, j int) bool {
		if winners[i].Score == winners[j].Score {
			return winners[i].ResponderID < winners[j].ResponderID
		}
		return winners[i].Score > winners[j].Score
	})
	return winners
}

// WinnerIDs returns the responder identities of all scored answers.
func (q Question) WinnerIDs() []string {
	winners := q.RankedWinners()
	ids := make([]string, 0, len(winners))
	for _, answer := range winners {
		ids = append(ids, answer.ResponderID)
	}
	return ids
}

// TotalClaimed sums payouts already taken by rewarded winners, recomputed by
// scanning because claim amounts are a pure function of score and pool.
func (q Question) TotalClaimed() int64 {
	if !q.Evaluated || q.CachedTotalScore <= 0 {
		return 0
	}
	var claimed int64
	for _, answer := range q.Answers {
		if answer.Rewarded && answer.Score > 0 {
			claimed += proportionalShare(q.TotalRewardPool, answer.Score, q.CachedTotalScore)
		}
	}
	return claimed
}

// UnclaimedRewards is the pool share still owed to scored, unrewarded
// answers. Floor-division dust stays in the pool and is never reclaimed.
func (q Question) UnclaimedRewards() int64 {
	if !q.Evaluated || q.CachedTotalScore <= 0 {
		return 0
	}
	var unclaimed int64
	for _, answer := range q.Answers {
		if !answer.Rewarded && answer.Score > 0 {
			unclaimed += proportionalShare(q.TotalRewardPool, answer.Score, q.CachedTotalScore)
		}
	}
	return unclaimed
}

// EscrowAccountID is the ledger account that holds this question's pool.
func (q Question) EscrowAccountID() string {
	return "question:" + q.QuestionID
}

// Clone deep-copies the aggregate so adapters can hand out isolated state.
func (q Question) Clone() Question {
	copied := q
	copied.Answers = append([]Answer(nil), q.Answers...)
	copied.AnswerIndexByUser = make(map[string]int, len(q.AnswerIndexByUser))
	for user, idx := range q.AnswerIndexByUser {
		copied.AnswerIndexByUser[user] = idx
	}
	copied.AuthorizedSubmitters = make(map[string]bool, len(q.AuthorizedSubmitters))
	for user, ok := range q.AuthorizedSubmitters {
		copied.AuthorizedSubmitters[user] = ok
	}
	return copied
}
