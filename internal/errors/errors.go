package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodePermissionDenied   = Code(codes.PermissionDenied)
	CodeInternal           = Code(codes.Internal)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeFailedPrecondition: http.StatusConflict,
	CodePermissionDenied:   http.StatusForbidden,
	CodeInternal:           http.StatusInternalServerError,
	CodeUnauthenticated:    http.StatusUnauthorized,
}

// Reason identifies a specific precondition failure, stable across releases.
// Callers branch on Reason, not on Message.
type Reason string

const (
	ReasonInvalidSchedule        Reason = "INVALID_SCHEDULE"
	ReasonInvalidPrizeSplit      Reason = "INVALID_PRIZE_SPLIT"
	ReasonInvalidQuestionNumber  Reason = "INVALID_QUESTION_NUMBER"
	ReasonSessionAlreadyActive   Reason = "SESSION_ALREADY_ACTIVE"
	ReasonRegistrationClosed     Reason = "REGISTRATION_CLOSED"
	ReasonTriviaAlreadyStarted   Reason = "TRIVIA_ALREADY_STARTED"
	ReasonAllRoundsCompleted     Reason = "ALL_ROUNDS_COMPLETED"
	ReasonRoundsRemaining        Reason = "ROUNDS_REMAINING"
	ReasonWrongFeeAmount         Reason = "WRONG_FEE_AMOUNT"
	ReasonAlreadyPaid            Reason = "ALREADY_PAID"
	ReasonNoDeposit              Reason = "NO_DEPOSIT"
	ReasonAnswerAlreadySubmitted Reason = "ANSWER_ALREADY_SUBMITTED"
	ReasonTooFewParticipants     Reason = "TOO_FEW_PARTICIPANTS"
	ReasonNoWinnersYet           Reason = "NO_WINNERS_YET"
	ReasonWinnersAlreadyDeclared Reason = "WINNERS_ALREADY_DECLARED"
	ReasonAlreadyDistributed     Reason = "REWARD_ALREADY_DISTRIBUTED"
	ReasonUnauthorized           Reason = "UNAUTHORIZED"
)

type Error struct {
	Code    Code   `json:"code"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.Reason != "" {
		s += fmt.Sprintf(", reason: %s", e.Reason)
	}
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

// ReasonOf returns the Reason of err, or "" for errors without one.
func ReasonOf(err error) Reason {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}

	return e.Reason
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithReason(r Reason) Option {
	return optionFunc(func(e *Error) {
		e.Reason = r
	})
}
