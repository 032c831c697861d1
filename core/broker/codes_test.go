package broker_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/shmbroker/core/broker"
)

func TestResultCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int32
	}{
		{"nil", nil, broker.CodeOK},
		{"pending", broker.ErrPending, broker.CodePending},
		{"not found", fmt.Errorf("%w: buf", broker.ErrNotFound), broker.CodeNotFound},
		{"allocation", broker.ErrAllocation, broker.CodeAllocation},
		{"timeout", broker.ErrTimeout, broker.CodeTimeout},
		{"internal", broker.ErrInternal, broker.CodeInternal},
		{"closed", broker.ErrClosed, broker.CodeInternal},
		{"invalid argument", broker.ErrInvalidArgument, broker.CodeInvalidArgument},
		{"canceled", broker.ErrCanceled, broker.CodeCanceled},
		{"foreign error", errors.New("boom"), broker.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, broker.ResultCode(tt.err))
		})
	}
}

func TestErrorFromCode(t *testing.T) {
	t.Parallel()

	assert.NoError(t, broker.ErrorFromCode(broker.CodeOK))
	assert.ErrorIs(t, broker.ErrorFromCode(broker.CodePending), broker.ErrPending)
	assert.ErrorIs(t, broker.ErrorFromCode(broker.CodeNotFound), broker.ErrNotFound)
	assert.ErrorIs(t, broker.ErrorFromCode(broker.CodeAllocation), broker.ErrAllocation)
	assert.ErrorIs(t, broker.ErrorFromCode(broker.CodeTimeout), broker.ErrTimeout)
	assert.ErrorIs(t, broker.ErrorFromCode(broker.CodeInternal), broker.ErrInternal)
	assert.ErrorIs(t, broker.ErrorFromCode(broker.CodeInvalidArgument), broker.ErrInvalidArgument)
	assert.ErrorIs(t, broker.ErrorFromCode(broker.CodeCanceled), broker.ErrCanceled)
	assert.ErrorIs(t, broker.ErrorFromCode(-42), broker.ErrInternal)
	assert.NoError(t, broker.ErrorFromCode(7))

	for _, code := range []int32{-1, -2, -3, -5, -6} {
		assert.Equal(t, code, broker.ResultCode(broker.ErrorFromCode(code)))
	}
	assert.True(t, broker.IsFailure(broker.CodeTimeout))
	assert.False(t, broker.IsFailure(broker.CodePending))
}
