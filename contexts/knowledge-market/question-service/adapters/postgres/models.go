package postgresadapter

import (
	"strings"
	"time"

	"delphi/contexts/knowledge-market/question-service/domain/entities"
)

type questionModel struct {
	ID                     string     `gorm:"column:id;primaryKey"`
	TokenID                string     `gorm:"column:token_id"`
	SubmissionCost         int64      `gorm:"column:submission_cost"`
	MaxWinners             int        `gorm:"column:max_winners"`
	OwnerID                string     `gorm:"column:owner_id"`
	CreatorID              string     `gorm:"column:creator_id"`
	RankerID               string     `gorm:"column:ranker_id"`
	ProtocolFeeBps         int64      `gorm:"column:protocol_fee_bps"`
	CreatorFeeBps          int64      `gorm:"column:creator_fee_bps"`
	ReferralFeeBps         int64      `gorm:"column:referral_fee_bps"`
	TreasuryID             string     `gorm:"column:treasury_id"`
	CreatedAt              time.Time  `gorm:"column:created_at"`
	EndsAt                 time.Time  `gorm:"column:ends_at"`
	EvaluationDeadline     time.Time  `gorm:"column:evaluation_deadline"`
	TotalRewardPool        int64      `gorm:"column:total_reward_pool"`
	Evaluated              bool       `gorm:"column:evaluated"`
	CachedTotalScore       int64      `gorm:"column:cached_total_score"`
	RefundWindowNotifiedAt *time.Time `gorm:"column:refund_window_notified_at"`
}

func (questionModel) TableName() string {
	return "questions"
}

func questionModelFromEntity(question entities.Question) questionModel {
	return questionModel{
		ID:                 strings.TrimSpace(question.QuestionID),
		TokenID:            strings.TrimSpace(question.TokenID),
		SubmissionCost:     question.SubmissionCost,
		MaxWinners:         question.MaxWinners,
		OwnerID:            strings.TrimSpace(question.OwnerID),
		CreatorID:          strings.TrimSpace(question.CreatorID),
		RankerID:           strings.TrimSpace(question.RankerID),
		ProtocolFeeBps:     question.Fees.ProtocolFeeBps,
		CreatorFeeBps:      question.Fees.CreatorFeeBps,
		ReferralFeeBps:     question.Fees.ReferralFeeBps,
		TreasuryID:         strings.TrimSpace(question.Fees.TreasuryID),
		CreatedAt:          question.CreatedAt.UTC(),
		EndsAt:             question.EndsAt.UTC(),
		EvaluationDeadline: question.EvaluationDeadline.UTC(),
		TotalRewardPool:    question.TotalRewardPool,
		Evaluated:          question.Evaluated,
		CachedTotalScore:   question.CachedTotalScore,
	}
}

func (m questionModel) toEntity() entities.Question {
	return entities.Question{
		QuestionID:     m.ID,
		TokenID:        m.TokenID,
		SubmissionCost: m.SubmissionCost,
		MaxWinners:     m.MaxWinners,
		OwnerID:        m.OwnerID,
		CreatorID:      m.CreatorID,
		RankerID:       m.RankerID,
		Fees: entities.FeeConfig{
			ProtocolFeeBps: m.ProtocolFeeBps,
			CreatorFeeBps:  m.CreatorFeeBps,
			ReferralFeeBps: m.ReferralFeeBps,
			TreasuryID:     m.TreasuryID,
		},
		CreatedAt:            m.CreatedAt.UTC(),
		EndsAt:               m.EndsAt.UTC(),
		EvaluationDeadline:   m.EvaluationDeadline.UTC(),
		TotalRewardPool:      m.TotalRewardPool,
		Evaluated:            m.Evaluated,
		CachedTotalScore:     m.CachedTotalScore,
		AnswerIndexByUser:    make(map[string]int),
		AuthorizedSubmitters: make(map[string]bool),
	}
}

type answerModel struct {
	QuestionID  string    `gorm:"column:question_id;primaryKey"`
	AnswerIndex int       `gorm:"column:answer_index;primaryKey"`
	ResponderID string    `gorm:"column:responder_id;uniqueIndex:uniq_answers_question_responder,composite:question_id"`
	ContentHash string    `gorm:"column:content_hash"`
	SubmittedAt time.Time `gorm:"column:submitted_at"`
	Score       int64     `gorm:"column:score"`
	Rewarded    bool      `gorm:"column:rewarded"`
}

func (answerModel) TableName() string {
	return "answers"
}

func answerModelFromEntity(questionID string, index int, answer entities.Answer) answerModel {
	return answerModel{
		QuestionID:  strings.TrimSpace(questionID),
		AnswerIndex: index,
		ResponderID: strings.TrimSpace(answer.ResponderID),
		ContentHash: strings.TrimSpace(answer.ContentHash),
		SubmittedAt: answer.SubmittedAt.UTC(),
		Score:       answer.Score,
		Rewarded:    answer.Rewarded,
	}
}

func (m answerModel) toEntity() entities.Answer {
	return entities.Answer{
		ResponderID: m.ResponderID,
		ContentHash: m.ContentHash,
		SubmittedAt: m.SubmittedAt.UTC(),
		Score:       m.Score,
		Rewarded:    m.Rewarded,
	}
}

type authorizedSubmitterModel struct {
	QuestionID  string `gorm:"column:question_id;primaryKey"`
	SubmitterID string `gorm:"column:submitter_id;primaryKey"`
}

func (authorizedSubmitterModel) TableName() string {
	return "question_authorized_submitters"
}

type registryModel struct {
	QuestionID      string    `gorm:"column:question_id;primaryKey"`
	CreatorID       string    `gorm:"column:creator_id"`
	TokenID         string    `gorm:"column:token_id"`
	SubmissionCost  int64     `gorm:"column:submission_cost"`
	DurationSeconds int64     `gorm:"column:duration_seconds"`
	MaxWinners      int       `gorm:"column:max_winners"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (registryModel) TableName() string {
	return "question_registry"
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "question_service_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "question_outbox"
}
