package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonCode(t *testing.T) {
	tests := []struct {
		err       error
		want      string
		retriable bool
	}{
		{err: nil, want: ReasonAccepted},
		{err: ErrDuplicateActivity, want: ReasonDuplicateActivity},
		{err: fmt.Errorf("%w: x", ErrNotFound), want: ReasonNotFound},
		{err: fmt.Errorf("%w: x", ErrUnreachable), want: ReasonUnreachable, retriable: true},
		{err: ErrUnauthorized, want: ReasonUnauthorized},
		{err: fmt.Errorf("%w: deep", ErrMissingParent), want: ReasonMissingParent, retriable: true},
		{err: ErrUnresolvableTarget, want: ReasonUnresolvableTarget, retriable: true},
		{err: ErrOutOfScope, want: ReasonOutOfScope},
		{err: ErrInvalidActivity, want: ReasonInvalidActivity},
		{err: errors.New("disk full"), want: ReasonInternal},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ReasonCode(tt.err))
			assert.Equal(t, tt.retriable, Retriable(tt.err))
		})
	}
}

func TestReasonCode_Precedence(t *testing.T) {
	// 父对象缺失时底层错误是 NotFound，对外仍报告 missing_parent
	err := fmt.Errorf("%w: %w", ErrMissingParent, ErrNotFound)
	assert.Equal(t, ReasonMissingParent, ReasonCode(err))

	err = fmt.Errorf("%w: %w", ErrUnresolvableTarget, ErrNotFound)
	assert.Equal(t, ReasonUnresolvableTarget, ReasonCode(err))
}
