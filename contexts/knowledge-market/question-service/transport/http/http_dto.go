package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateQuestionRequest struct {
	TokenID         string `json:"token_id"`
	SubmissionCost  int64  `json:"submission_cost"`
	DurationSeconds int64  `json:"duration_seconds"`
	MaxWinners      int    `json:"max_winners"`
	OwnerID         string `json:"owner_id,omitempty"`
	RankerID        string `json:"ranker_id,omitempty"`
	TreasuryID      string `json:"treasury_id"`
	ProtocolFeeBps  int64  `json:"protocol_fee_bps"`
	CreatorFeeBps   int64  `json:"creator_fee_bps"`
	ReferralFeeBps  int64  `json:"referral_fee_bps"`
	InitialSeed     int64  `json:"initial_seed,omitempty"`
}

type QuestionResponse struct {
	QuestionID         string `json:"question_id"`
	TokenID            string `json:"token_id"`
	SubmissionCost     int64  `json:"submission_cost"`
	MaxWinners         int    `json:"max_winners"`
	OwnerID            string `json:"owner_id"`
	CreatorID          string `json:"creator_id"`
	RankerID           string `json:"ranker_id"`
	TreasuryID         string `json:"treasury_id"`
	ProtocolFeeBps     int64  `json:"protocol_fee_bps"`
	CreatorFeeBps      int64  `json:"creator_fee_bps"`
	ReferralFeeBps     int64  `json:"referral_fee_bps"`
	CreatedAt          string `json:"created_at"`
	EndsAt             string `json:"ends_at"`
	EvaluationDeadline string `json:"evaluation_deadline"`
	TotalRewardPool    int64  `json:"total_reward_pool"`
	Evaluated          bool   `json:"evaluated"`
	AnswerCount        int    `json:"answer_count"`
}

type SeedQuestionRequest struct {
	Amount int64 `json:"amount"`
}

type SeedQuestionResponse struct {
	QuestionID string `json:"question_id"`
	PoolTotal  int64  `json:"pool_total"`
}

type SubmitAnswerRequest struct {
	ResponderID string `json:"responder_id,omitempty"`
	ContentHash string `json:"content_hash"`
	ReferrerID  string `json:"referrer_id,omitempty"`
}

type SubmitAnswerResponse struct {
	QuestionID  string `json:"question_id"`
	ResponderID string `json:"responder_id"`
	AnswerIndex int    `json:"answer_index"`
	ProtocolCut int64  `json:"protocol_cut"`
	CreatorCut  int64  `json:"creator_cut"`
	ReferralCut int64  `json:"referral_cut"`
	RewardCut   int64  `json:"reward_cut"`
	Phase       string `json:"phase"`
	Replayed    bool   `json:"replayed"`
}

type EvaluateRequest struct {
	RankedIndices []int `json:"ranked_indices"`
}

type PayoutResponse struct {
	QuestionID string `json:"question_id"`
	UserID     string `json:"user_id"`
	Amount     int64  `json:"amount"`
	Refund     bool   `json:"refund"`
}

type AnswerView struct {
	AnswerIndex int    `json:"answer_index"`
	ResponderID string `json:"responder_id"`
	ContentHash string `json:"content_hash"`
	SubmittedAt string `json:"submitted_at"`
	Score       int64  `json:"score"`
	Rewarded    bool   `json:"rewarded"`
}

type AnswersResponse struct {
	QuestionID string       `json:"question_id"`
	Items      []AnswerView `json:"items"`
}

type StatusResponse struct {
	QuestionID           string `json:"question_id"`
	Phase                string `json:"phase"`
	EndsAt               string `json:"ends_at"`
	EvaluationDeadline   string `json:"evaluation_deadline"`
	TimeRemainingSeconds int64  `json:"time_remaining_seconds"`
	IsActive             bool   `json:"is_active"`
	IsEvaluationPeriod   bool   `json:"is_evaluation_period"`
	CanEmergencyRefund   bool   `json:"can_emergency_refund"`
	Evaluated            bool   `json:"evaluated"`
	AnswerCount          int    `json:"answer_count"`
	TotalRewardPool      int64  `json:"total_reward_pool"`
	TotalScore           int64  `json:"total_score"`
}

type ClaimableResponse struct {
	QuestionID string `json:"question_id"`
	UserID     string `json:"user_id"`
	Amount     int64  `json:"amount"`
}

type ClaimableBatchRequest struct {
	UserIDs []string `json:"user_ids"`
}

type ClaimableBatchItem struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

type ClaimableBatchResponse struct {
	QuestionID string               `json:"question_id"`
	Items      []ClaimableBatchItem `json:"items"`
}

type WinnersResponse struct {
	QuestionID string       `json:"question_id"`
	UserIDs    []string     `json:"user_ids"`
	Ranked     []AnswerView `json:"ranked"`
}

type PoolTotalsResponse struct {
	QuestionID      string `json:"question_id"`
	TotalRewardPool int64  `json:"total_reward_pool"`
	TotalClaimed    int64  `json:"total_claimed"`
	Unclaimed       int64  `json:"unclaimed"`
}

type FeeUpdateRequest struct {
	Value int64 `json:"value"`
}

type TreasuryUpdateRequest struct {
	TreasuryID string `json:"treasury_id"`
}

type SubmitterRequest struct {
	SubmitterID string `json:"submitter_id"`
}

type RegistryItem struct {
	QuestionID      string `json:"question_id"`
	CreatorID       string `json:"creator_id"`
	TokenID         string `json:"token_id"`
	SubmissionCost  int64  `json:"submission_cost"`
	DurationSeconds int64  `json:"duration_seconds"`
	MaxWinners      int    `json:"max_winners"`
	CreatedAt       string `json:"created_at"`
}

type RegistryResponse struct {
	Items []RegistryItem `json:"items"`
}
