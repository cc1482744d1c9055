package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{
			name: "risk_rejection_is_policy",
			err:  &RiskRejection{Rule: "daily_loss", Detail: "limit reached"},
			want: ErrClassPolicy,
		},
		{
			name: "wrapped_risk_rejection_is_policy",
			err:  fmt.Errorf("check signal: %w", &RiskRejection{Rule: "position"}),
			want: ErrClassPolicy,
		},
		{
			name: "partial_fill_without_unwind_error_is_partial",
			err:  &PartialFillError{SignalID: "s1", FilledLeg: "yes", FailedLeg: "no", Unwound: true},
			want: ErrClassPartial,
		},
		{
			name: "partial_fill_with_failed_unwind_is_fatal",
			err: &PartialFillError{
				SignalID: "s1", FilledLeg: "yes", FailedLeg: "no",
				UnwindErr: errors.New("timeout"),
			},
			want: ErrClassFatal,
		},
		{
			name: "fatal_error_is_fatal",
			err:  &FatalError{Reason: "signer pool closed"},
			want: ErrClassFatal,
		},
		{
			name: "order_error_is_transient",
			err:  &OrderError{Code: ErrMarketNotReady, Message: "not ready"},
			want: ErrClassTransient,
		},
		{
			name: "plain_error_defaults_to_transient",
			err:  errors.New("connection reset"),
			want: ErrClassTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestPartialFillError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("cancel rejected")
	err := &PartialFillError{SignalID: "s2", UnwindErr: cause}
	assert.True(t, errors.Is(err, cause))
}
