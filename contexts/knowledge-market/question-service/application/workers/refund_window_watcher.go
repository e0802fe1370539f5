package workers

import (
	"context"
	"log/slog"
	"time"

	application "delphi/contexts/knowledge-market/question-service/application"
	"delphi/contexts/knowledge-market/question-service/ports"
)

// RefundWindowWatcher sweeps questions whose evaluation deadline lapsed
// without an evaluation and announces the opened refund window once per
// question, so indexers can notify participants.
type RefundWindowWatcher struct {
	Questions ports.RefundWindowRepository
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	BatchSize int
	Logger    *slog.Logger
}

func (w RefundWindowWatcher) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	now := time.Now().UTC()
	if w.Clock != nil {
		now = w.Clock.Now().UTC()
	}

	limit := w.BatchSize
	if limit <= 0 {
		limit = 100
	}
	pending, err := w.Questions.ListRefundWindowPending(ctx, now, limit)
	if err != nil {
		logger.Error("refund window sweep failed",
			"event", "question_refund_window_sweep_failed",
			"module", "knowledge-market/question-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, question := range pending {
		eventID, err := w.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		event, err := newRefundWindowEnvelope(eventID, question.QuestionID, now, map[string]any{
			"question_id":         question.QuestionID,
			"answer_count":        len(question.Answers),
			"pool_total":          question.TotalRewardPool,
			"per_head_amount":     question.RefundAmount(),
			"evaluation_deadline": question.EvaluationDeadline.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := w.Outbox.AppendOutbox(ctx, event); err != nil {
			return err
		}
		if err := w.Questions.MarkRefundWindowNotified(ctx, question.QuestionID, now); err != nil {
			return err
		}
		logger.Info("refund window opened",
			"event", "question_refund_window_opened",
			"module", "knowledge-market/question-service",
			"layer", "worker",
			"question_id", question.QuestionID,
			"answer_count", len(question.Answers),
			"per_head_amount", question.RefundAmount(),
		)
	}
	return nil
}
