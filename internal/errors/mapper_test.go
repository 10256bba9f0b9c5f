package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	svcErr "github.com/oggyb/jobswipe/internal/errors"
)

func TestWrapKeepsKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := svcErr.Fetch("get messages", cause)

	assert.ErrorIs(t, err, svcErr.ErrFetch)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, svcErr.ErrSend)
	assert.Equal(t, "get messages: fetch failed: connection refused", err.Error())

	assert.NoError(t, svcErr.Send("send", nil))
}

func TestRejected(t *testing.T) {
	err := svcErr.Rejected("invalid token")

	assert.ErrorIs(t, err, svcErr.ErrAuthRejected)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestMap(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"not found", fmt.Errorf("owner chat: %w", svcErr.ErrNotFound), codes.NotFound},
		{"auth missing", svcErr.ErrAuthMissing, codes.Unauthenticated},
		{"auth rejected", svcErr.Rejected("bad"), codes.Unauthenticated},
		{"transport", svcErr.Transport("read", errors.New("eof")), codes.Unavailable},
		{"not connected", svcErr.ErrNotConnected, codes.Unavailable},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"canceled", context.Canceled, codes.Canceled},
		{"other", errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(svcErr.Map(tt.err))
			assert.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
		})
	}

	assert.NoError(t, svcErr.Map(nil))
}
