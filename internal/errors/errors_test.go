package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/victornm/avidquiz/internal/errors"
)

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("answer: %w", errors.NoActiveQuiz())

	assert.True(t, stderrors.Is(err, errors.NoActiveQuiz()))
	assert.False(t, stderrors.Is(err, errors.NoQuizAvailable()))
}

func TestError_HTTPStatusCode(t *testing.T) {
	tests := map[string]struct {
		err  *errors.Error
		want int
	}{
		"not found":         {err: errors.NotFound("lesson"), want: http.StatusNotFound},
		"no active quiz":    {err: errors.NoActiveQuiz(), want: http.StatusConflict},
		"no quiz available": {err: errors.NoQuizAvailable(), want: http.StatusNotFound},
		"cooldown":          {err: errors.CooldownActive("wait"), want: http.StatusTooManyRequests},
		"rejected score":    {err: errors.ScoreRejected("nope"), want: http.StatusForbidden},
		"generation":        {err: errors.GenerationFailed(errors.CodeUnavailable, nil, "down"), want: http.StatusServiceUnavailable},
		"internal":          {err: errors.Internal(stderrors.New("boom")), want: http.StatusInternalServerError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatusCode())
		})
	}
}

func TestError_GRPCStatusRoundTrip(t *testing.T) {
	st := errors.NoActiveQuiz().GRPCStatus()
	require.Equal(t, codes.FailedPrecondition, st.Code())

	got := errors.FromStatus(st.Err())
	assert.Equal(t, errors.ReasonNoActiveQuiz, got.Reason)
	assert.Equal(t, "no active quiz", got.Message)
	assert.True(t, stderrors.Is(got, errors.NoActiveQuiz()))
}

func TestConvert(t *testing.T) {
	e := errors.Convert(fmt.Errorf("wrapped: %w", errors.NotFound("x")))
	assert.Equal(t, errors.ReasonNotFound, e.Reason)

	e = errors.Convert(stderrors.New("plain"))
	assert.Equal(t, errors.CodeInternal, e.Code)
	assert.Equal(t, errors.ReasonInternal, e.Reason)

	_, ok := status.FromError(errors.Internal(stderrors.New("plain")))
	assert.True(t, ok)
}
