package errors

import "errors"

var (
	ErrInvalidQuestionInput   = errors.New("invalid question input")
	ErrInvalidAnswerInput     = errors.New("invalid answer input")
	ErrInvalidSeedAmount      = errors.New("seed amount must be positive")
	ErrInvalidFeeBps          = errors.New("fee basis points out of range")
	ErrInvalidTreasury        = errors.New("treasury identity is required")
	ErrFeeExceedsCost         = errors.New("configured fees exceed submission cost")
	ErrQuestionNotFound       = errors.New("question not found")
	ErrAnswerNotFound         = errors.New("answer not found")
	ErrAlreadyAnswered        = errors.New("identity already submitted an answer")
	ErrQuestionClosed         = errors.New("question is no longer accepting answers")
	ErrNotOwner               = errors.New("caller is not the question owner")
	ErrNotRanker              = errors.New("caller is not the designated ranker")
	ErrNotAuthorizedSubmitter = errors.New("caller is not an authorized submitter")
	ErrAlreadyEvaluated       = errors.New("question is already evaluated")
	ErrEvaluationTooEarly     = errors.New("question has not reached its deadline")
	ErrEvaluationWindowClosed = errors.New("evaluation window has closed")
	ErrTooManyWinners         = errors.New("ranked list exceeds max winners")
	ErrRankedIndexOutOfRange  = errors.New("ranked index out of range")
	ErrDuplicateRankedIndex   = errors.New("ranked list contains a duplicate index")
	ErrNotEvaluated           = errors.New("question is not evaluated")
	ErrNothingToClaim         = errors.New("no reward claimable for identity")
	ErrAlreadyRewarded        = errors.New("reward already paid for identity")
	ErrRefundNotAvailable     = errors.New("emergency refund window is not open")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")
	ErrConflict               = errors.New("question state conflict")
	ErrLedgerTransferFailed   = errors.New("token ledger transfer failed")
)
