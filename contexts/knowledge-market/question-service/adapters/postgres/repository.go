// Package postgresadapter persists question aggregates, the discovery
// registry, idempotency records, and the transactional outbox in Postgres.
package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"delphi/contexts/knowledge-market/question-service/domain/entities"
	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
	"delphi/contexts/knowledge-market/question-service/ports"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// Migrate creates or updates the adapter's tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&questionModel{},
		&answerModel{},
		&authorizedSubmitterModel{},
		&registryModel{},
		&idempotencyModel{},
		&outboxModel{},
	)
}

func (r *Repository) CreateQuestion(ctx context.Context, question entities.Question, events []ports.EventEnvelope) error {
	model := questionModelFromEntity(question)
	registry := registryModel{
		QuestionID:      model.ID,
		CreatorID:       model.CreatorID,
		TokenID:         model.TokenID,
		SubmissionCost:  model.SubmissionCost,
		DurationSeconds: int64(question.EndsAt.Sub(question.CreatedAt) / time.Second),
		MaxWinners:      model.MaxWinners,
		CreatedAt:       model.CreatedAt,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrConflict
			}
			return err
		}
		if err := tx.Create(&registry).Error; err != nil {
			return err
		}
		return insertOutbox(tx, events)
	})
	if err != nil && !errors.Is(err, domainerrors.ErrConflict) {
		r.logError(ctx, "question_create_failed", err)
	}
	return err
}

func (r *Repository) GetQuestion(ctx context.Context, questionID string) (entities.Question, error) {
	questionID = strings.TrimSpace(questionID)

	var model questionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", questionID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Question{}, domainerrors.ErrQuestionNotFound
	}
	if err != nil {
		r.logError(ctx, "question_load_failed", err)
		return entities.Question{}, err
	}

	var answers []answerModel
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("answer_index ASC").
		Find(&answers).Error; err != nil {
		r.logError(ctx, "question_answers_load_failed", err)
		return entities.Question{}, err
	}

	var submitters []authorizedSubmitterModel
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Find(&submitters).Error; err != nil {
		r.logError(ctx, "question_submitters_load_failed", err)
		return entities.Question{}, err
	}

	question := model.toEntity()
	question.Answers = make([]entities.Answer, 0, len(answers))
	for _, answer := range answers {
		question.Answers = append(question.Answers, answer.toEntity())
		question.AnswerIndexByUser[answer.ResponderID] = answer.AnswerIndex
	}
	for _, submitter := range submitters {
		question.AuthorizedSubmitters[submitter.SubmitterID] = true
	}
	return question, nil
}

// SaveQuestion commits the aggregate row, its answers, the authorized
// submitter set, and the supplied outbox envelopes in one transaction.
func (r *Repository) SaveQuestion(ctx context.Context, question entities.Question, events []ports.EventEnvelope) error {
	model := questionModelFromEntity(question)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&questionModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]any{
				"ranker_id":          model.RankerID,
				"protocol_fee_bps":   model.ProtocolFeeBps,
				"creator_fee_bps":    model.CreatorFeeBps,
				"referral_fee_bps":   model.ReferralFeeBps,
				"treasury_id":        model.TreasuryID,
				"total_reward_pool":  model.TotalRewardPool,
				"evaluated":          model.Evaluated,
				"cached_total_score": model.CachedTotalScore,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrQuestionNotFound
		}

		for index, answer := range question.Answers {
			row := answerModelFromEntity(model.ID, index, answer)
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "question_id"}, {Name: "answer_index"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"score",
					"rewarded",
				}),
			}).Create(&row).Error
			if err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrAlreadyAnswered
				}
				return err
			}
		}

		if err := tx.Where("question_id = ?", model.ID).
			Delete(&authorizedSubmitterModel{}).Error; err != nil {
			return err
		}
		for submitter := range question.AuthorizedSubmitters {
			row := authorizedSubmitterModel{
				QuestionID:  model.ID,
				SubmitterID: strings.TrimSpace(submitter),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		return insertOutbox(tx, events)
	})
	if err != nil &&
		!errors.Is(err, domainerrors.ErrQuestionNotFound) &&
		!errors.Is(err, domainerrors.ErrAlreadyAnswered) {
		r.logError(ctx, "question_save_failed", err)
	}
	return err
}

func (r *Repository) ListRegistry(ctx context.Context, limit int, offset int) ([]ports.RegistryEntry, error) {
	var rows []registryModel
	err := r.db.WithContext(ctx).
		Order("created_at ASC, question_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		r.logError(ctx, "registry_list_failed", err)
		return nil, err
	}
	entries := make([]ports.RegistryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ports.RegistryEntry{
			QuestionID:     row.QuestionID,
			CreatorID:      row.CreatorID,
			TokenID:        row.TokenID,
			SubmissionCost: row.SubmissionCost,
			Duration:       time.Duration(row.DurationSeconds) * time.Second,
			MaxWinners:     row.MaxWinners,
			CreatedAt:      row.CreatedAt.UTC(),
		})
	}
	return entries, nil
}

func (r *Repository) ListRefundWindowPending(ctx context.Context, now time.Time, limit int) ([]entities.Question, error) {
	var rows []questionModel
	err := r.db.WithContext(ctx).
		Where("evaluated = ? AND evaluation_deadline < ? AND refund_window_notified_at IS NULL", false, now.UTC()).
		Order("evaluation_deadline ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		r.logError(ctx, "refund_window_list_failed", err)
		return nil, err
	}
	questions := make([]entities.Question, 0, len(rows))
	for _, row := range rows {
		question, err := r.GetQuestion(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func (r *Repository) MarkRefundWindowNotified(ctx context.Context, questionID string, at time.Time) error {
	at = at.UTC()
	result := r.db.WithContext(ctx).
		Model(&questionModel{}).
		Where("id = ?", strings.TrimSpace(questionID)).
		Update("refund_window_notified_at", &at)
	if result.Error != nil {
		r.logError(ctx, "refund_window_mark_failed", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrQuestionNotFound
	}
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var model idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		r.logError(ctx, "idempotency_load_failed", err)
		return ports.IdempotencyRecord{}, false, err
	}
	if now.After(model.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:             model.Key,
		RequestHash:     model.RequestHash,
		ResponsePayload: model.ResponsePayload,
		ExpiresAt:       model.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	model := idempotencyModel{
		Key:             strings.TrimSpace(record.Key),
		RequestHash:     record.RequestHash,
		ResponsePayload: record.ResponsePayload,
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&model).Error
	if err != nil {
		r.logError(ctx, "idempotency_save_failed", err)
	}
	return err
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	err := insertOutbox(r.db.WithContext(ctx), []ports.EventEnvelope{envelope})
	if err != nil {
		r.logError(ctx, "outbox_append_failed", err)
	}
	return err
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		r.logError(ctx, "outbox_list_failed", err)
		return nil, err
	}
	messages := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return messages, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	publishedAt = publishedAt.UTC()
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &publishedAt,
		})
	if result.Error != nil {
		r.logError(ctx, "outbox_mark_failed", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func insertOutbox(tx *gorm.DB, events []ports.EventEnvelope) error {
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		row := outboxModel{
			OutboxID:     uuid.NewString(),
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      payload,
			Status:       outboxStatusPending,
			CreatedAt:    event.OccurredAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) logError(ctx context.Context, event string, err error) {
	r.logger.ErrorContext(ctx, "question repository failure",
		slog.String("event", event),
		slog.String("module", "question-service"),
		slog.String("layer", "adapters/postgres"),
		slog.String("error", err.Error()),
	)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var (
	_ ports.QuestionRepository     = (*Repository)(nil)
	_ ports.RefundWindowRepository = (*Repository)(nil)
	_ ports.IdempotencyStore       = (*Repository)(nil)
	_ ports.OutboxWriter           = (*Repository)(nil)
	_ ports.OutboxRepository       = (*Repository)(nil)
)
