package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const domain = "avidquiz"

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodePermissionDenied   = Code(codes.PermissionDenied)
	CodeResourceExhausted  = Code(codes.ResourceExhausted)
	CodeUnavailable        = Code(codes.Unavailable)
	CodeInternal           = Code(codes.Internal)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeFailedPrecondition: http.StatusConflict,
	CodePermissionDenied:   http.StatusForbidden,
	CodeResourceExhausted:  http.StatusTooManyRequests,
	CodeUnavailable:        http.StatusServiceUnavailable,
	CodeInternal:           http.StatusInternalServerError,
	CodeUnauthenticated:    http.StatusUnauthorized,
}

// Reasons identify the error kinds a client can act on. They are stable and
// travel with the error on both transports.
const (
	ReasonNotFound        = "NOT_FOUND"
	ReasonNoQuizAvailable = "NO_QUIZ_AVAILABLE"
	ReasonNoActiveQuiz    = "NO_ACTIVE_QUIZ"
	ReasonGeneration      = "GENERATION_ERROR"
	ReasonValidation      = "VALIDATION_ERROR"
	ReasonCooldown        = "COOLDOWN"
	ReasonScoreRejected   = "SCORE_REJECTED"
	ReasonInternal        = "INTERNAL"
)

type Error struct {
	Code    Code   `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Reason:  codes.Code(code).String(),
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, reason: %s, message: %s", e.Code, e.Reason, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target carries the same reason, so callers can match
// with errors.Is(err, errors.NoActiveQuiz()).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Reason == t.Reason
}

func (e *Error) GRPCStatus() *status.Status {
	st := status.New(codes.Code(e.Code), e.Message)
	ds, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: e.Reason,
		Domain: domain,
	})
	if err != nil {
		return st
	}

	return ds
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

// FromStatus rebuilds an *Error from a gRPC status, reading the reason from
// the ErrorInfo detail when present.
func FromStatus(err error) *Error {
	st, ok := status.FromError(err)
	if !ok {
		return Internal(err)
	}

	e := &Error{
		Code:    Code(st.Code()),
		Reason:  st.Code().String(),
		Message: st.Message(),
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			e.Reason = info.Reason
		}
	}

	return e
}

func Internal(err error) *Error {
	return New(CodeInternal, WithReason(ReasonInternal), WithCause(err))
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, WithReason(ReasonNotFound), WithMessagef(format, args...))
}

func NoQuizAvailable() *Error {
	return New(CodeNotFound, WithReason(ReasonNoQuizAvailable), WithMessagef("no lessons to quiz"))
}

func NoActiveQuiz() *Error {
	return New(CodeFailedPrecondition, WithReason(ReasonNoActiveQuiz), WithMessagef("no active quiz"))
}

// GenerationFailed reports an AI generation failure. Code distinguishes a
// rejected request (InvalidArgument) from an upstream outage (Unavailable).
func GenerationFailed(code Code, err error, format string, args ...any) *Error {
	return New(code, WithReason(ReasonGeneration), WithMessagef(format, args...), WithCause(err))
}

func InvalidArgument(format string, args ...any) *Error {
	return New(CodeInvalidArgument, WithReason(ReasonValidation), WithMessagef(format, args...))
}

func CooldownActive(format string, args ...any) *Error {
	return New(CodeResourceExhausted, WithReason(ReasonCooldown), WithMessagef(format, args...))
}

func ScoreRejected(format string, args ...any) *Error {
	return New(CodePermissionDenied, WithReason(ReasonScoreRejected), WithMessagef(format, args...))
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

func WithReason(reason string) Option {
	return optionFunc(func(e *Error) {
		e.Reason = reason
	})
}
