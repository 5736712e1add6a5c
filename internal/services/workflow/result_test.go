package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"meridian/pkg/errors"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Reason
	}{
		{nil, ReasonNone},
		{errors.ErrKYCNotApproved, ReasonKYCNotApproved},
		{errors.ErrTargetExceeded, ReasonValidation},
		{errors.ErrBelowMinimum, ReasonValidation},
		{errors.ErrValidation, ReasonValidation},
		{errors.ErrForbidden, ReasonForbidden},
		{errors.ErrNotFound, ReasonNotFound},
		{errors.ErrInvalidState, ReasonInvalidState},
		{errors.ErrUnavailable, ReasonUnavailable},
		{errors.ErrLedgerNotReady, ReasonUnavailable},
		{errors.New("something else"), ReasonInternal},
		{errors.Wrap(errors.ErrTargetExceeded, "raised amount adjustment out of bounds"), ReasonValidation},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), "err: %v", tc.err)
	}
}
