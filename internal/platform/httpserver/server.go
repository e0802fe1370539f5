package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	questionservice "delphi/contexts/knowledge-market/question-service"
	questionerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
	questionhttp "delphi/contexts/knowledge-market/question-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "delphi/internal/platform/httpserver/docs"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	questions questionservice.Module
}

func New(questions questionservice.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		questions: questions,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/questions", s.handleCreateQuestion)
	s.mux.HandleFunc("GET /v1/questions", s.handleRegistry)
	s.mux.HandleFunc("GET /v1/questions/{question_id}", s.handleGetQuestion)
	s.mux.HandleFunc("POST /v1/questions/{question_id}/seed", s.handleSeedQuestion)
	s.mux.HandleFunc("POST /v1/questions/{question_id}/answers", s.handleSubmitAnswer)
	s.mux.HandleFunc("GET /v1/questions/{question_id}/answers", s.handleListAnswers)
	s.mux.HandleFunc("GET /v1/questions/{question_id}/status", s.handleStatus)
	s.mux.HandleFunc("POST /v1/questions/{question_id}/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("POST /v1/questions/{question_id}/claim", s.handleClaimReward)
	s.mux.HandleFunc("POST /v1/questions/{question_id}/refund", s.handleEmergencyRefund)
	s.mux.HandleFunc("GET /v1/questions/{question_id}/claimable/{user_id}", s.handleClaimable)
	s.mux.HandleFunc("POST /v1/questions/{question_id}/claimable", s.handleClaimableBatch)
	s.mux.HandleFunc("GET /v1/questions/{question_id}/winners", s.handleWinners)
	s.mux.HandleFunc("GET /v1/questions/{question_id}/pool", s.handlePoolTotals)
	s.mux.HandleFunc("PUT /v1/questions/{question_id}/fees/protocol", s.handleSetProtocolFee)
	s.mux.HandleFunc("PUT /v1/questions/{question_id}/fees/creator", s.handleSetCreatorFee)
	s.mux.HandleFunc("PUT /v1/questions/{question_id}/fees/referral", s.handleSetReferralFee)
	s.mux.HandleFunc("PUT /v1/questions/{question_id}/treasury", s.handleSetTreasury)
	s.mux.HandleFunc("POST /v1/questions/{question_id}/submitters", s.handleAuthorizeSubmitter)
	s.mux.HandleFunc("DELETE /v1/questions/{question_id}/submitters", s.handleRevokeSubmitter)
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	creatorID := requireUser(w, r)
	if creatorID == "" {
		return
	}

	var req questionhttp.CreateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeQuestionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.questions.Handler.CreateQuestionHandler(r.Context(), creatorID, req)
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	offset := 0
	if limitRaw := query.Get("limit"); limitRaw != "" {
		value, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeQuestionError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = value
	}
	if offsetRaw := query.Get("offset"); offsetRaw != "" {
		value, err := strconv.Atoi(offsetRaw)
		if err != nil {
			writeQuestionError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
			return
		}
		offset = value
	}

	resp, err := s.questions.Handler.RegistryHandler(r.Context(), limit, offset)
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	resp, err := s.questions.Handler.GetQuestionHandler(r.Context(), r.PathValue("question_id"))
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSeedQuestion(w http.ResponseWriter, r *http.Request) {
	funderID := requireUser(w, r)
	if funderID == "" {
		return
	}

	var req questionhttp.SeedQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeQuestionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.questions.Handler.SeedQuestionHandler(r.Context(), r.PathValue("question_id"), funderID, req)
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	callerID := requireUser(w, r)
	if callerID == "" {
		return
	}

	var req questionhttp.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeQuestionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.questions.Handler.SubmitAnswerHandler(
		r.Context(),
		r.PathValue("question_id"),
		callerID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAnswers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.questions.Handler.AnswersHandler(r.Context(), r.PathValue("question_id"))
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.questions.Handler.StatusHandler(r.Context(), r.PathValue("question_id"))
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	callerID := requireUser(w, r)
	if callerID == "" {
		return
	}

	var req questionhttp.EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeQuestionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.questions.Handler.EvaluateHandler(r.Context(), r.PathValue("question_id"), callerID, req)
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaimReward(w http.ResponseWriter, r *http.Request) {
	callerID := requireUser(w, r)
	if callerID == "" {
		return
	}
	resp, err := s.questions.Handler.ClaimRewardHandler(r.Context(), r.PathValue("question_id"), callerID)
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEmergencyRefund(w http.ResponseWriter, r *http.Request) {
	callerID := requireUser(w, r)
	if callerID == "" {
		return
	}
	resp, err := s.questions.Handler.EmergencyRefundHandler(r.Context(), r.PathValue("question_id"), callerID)
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	resp, err := s.questions.Handler.ClaimableHandler(
		r.Context(),
		r.PathValue("question_id"),
		r.PathValue("user_id"),
	)
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaimableBatch(w http.ResponseWriter, r *http.Request) {
	var req questionhttp.ClaimableBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeQuestionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.questions.Handler.ClaimableBatchHandler(r.Context(), r.PathValue("question_id"), req)
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWinners(w http.ResponseWriter, r *http.Request) {
	resp, err := s.questions.Handler.WinnersHandler(r.Context(), r.PathValue("question_id"))
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePoolTotals(w http.ResponseWriter, r *http.Request) {
	resp, err := s.questions.Handler.PoolTotalsHandler(r.Context(), r.PathValue("question_id"))
	if err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetProtocolFee(w http.ResponseWriter, r *http.Request) {
	s.handleFeeUpdate(w, r, s.questions.Handler.SetProtocolFeeHandler)
}

func (s *Server) handleSetCreatorFee(w http.ResponseWriter, r *http.Request) {
	s.handleFeeUpdate(w, r, s.questions.Handler.SetCreatorFeeHandler)
}

func (s *Server) handleSetReferralFee(w http.ResponseWriter, r *http.Request) {
	s.handleFeeUpdate(w, r, s.questions.Handler.SetReferralFeeHandler)
}

func (s *Server) handleFeeUpdate(
	w http.ResponseWriter,
	r *http.Request,
	update func(ctx context.Context, questionID string, callerID string, req questionhttp.FeeUpdateRequest) error,
) {
	callerID := requireUser(w, r)
	if callerID == "" {
		return
	}
	var req questionhttp.FeeUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeQuestionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := update(r.Context(), r.PathValue("question_id"), callerID, req); err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetTreasury(w http.ResponseWriter, r *http.Request) {
	callerID := requireUser(w, r)
	if callerID == "" {
		return
	}
	var req questionhttp.TreasuryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeQuestionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.questions.Handler.SetTreasuryHandler(r.Context(), r.PathValue("question_id"), callerID, req); err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuthorizeSubmitter(w http.ResponseWriter, r *http.Request) {
	callerID := requireUser(w, r)
	if callerID == "" {
		return
	}
	var req questionhttp.SubmitterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeQuestionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.questions.Handler.AuthorizeSubmitterHandler(r.Context(), r.PathValue("question_id"), callerID, req); err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeSubmitter(w http.ResponseWriter, r *http.Request) {
	callerID := requireUser(w, r)
	if callerID == "" {
		return
	}
	var req questionhttp.SubmitterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeQuestionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.questions.Handler.RevokeSubmitterHandler(r.Context(), r.PathValue("question_id"), callerID, req); err != nil {
		writeQuestionDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeQuestionError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
	}
	return userID
}

func writeQuestionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, questionerrors.ErrQuestionNotFound):
		writeQuestionError(w, http.StatusNotFound, "question_not_found", err.Error())
	case errors.Is(err, questionerrors.ErrAnswerNotFound):
		writeQuestionError(w, http.StatusNotFound, "answer_not_found", err.Error())
	case errors.Is(err, questionerrors.ErrInvalidQuestionInput),
		errors.Is(err, questionerrors.ErrInvalidAnswerInput),
		errors.Is(err, questionerrors.ErrInvalidSeedAmount),
		errors.Is(err, questionerrors.ErrInvalidFeeBps),
		errors.Is(err, questionerrors.ErrInvalidTreasury),
		errors.Is(err, questionerrors.ErrRankedIndexOutOfRange),
		errors.Is(err, questionerrors.ErrDuplicateRankedIndex),
		errors.Is(err, questionerrors.ErrTooManyWinners):
		writeQuestionError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, questionerrors.ErrNotOwner),
		errors.Is(err, questionerrors.ErrNotRanker),
		errors.Is(err, questionerrors.ErrNotAuthorizedSubmitter):
		writeQuestionError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, questionerrors.ErrAlreadyAnswered),
		errors.Is(err, questionerrors.ErrAlreadyEvaluated),
		errors.Is(err, questionerrors.ErrAlreadyRewarded),
		errors.Is(err, questionerrors.ErrIdempotencyConflict),
		errors.Is(err, questionerrors.ErrConflict):
		writeQuestionError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, questionerrors.ErrQuestionClosed),
		errors.Is(err, questionerrors.ErrEvaluationTooEarly),
		errors.Is(err, questionerrors.ErrEvaluationWindowClosed),
		errors.Is(err, questionerrors.ErrNotEvaluated),
		errors.Is(err, questionerrors.ErrNothingToClaim),
		errors.Is(err, questionerrors.ErrRefundNotAvailable):
		writeQuestionError(w, http.StatusUnprocessableEntity, "invalid_state", err.Error())
	case errors.Is(err, questionerrors.ErrFeeExceedsCost):
		writeQuestionError(w, http.StatusUnprocessableEntity, "fee_exceeds_cost", err.Error())
	case errors.Is(err, questionerrors.ErrLedgerTransferFailed):
		writeQuestionError(w, http.StatusPaymentRequired, "transfer_failed", err.Error())
	default:
		writeQuestionError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeQuestionError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, questionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
