package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrAlreadyMarked, "already marked CS15 today")
	assert.True(t, stdErrors.Is(err, ErrAlreadyMarked))
	assert.False(t, stdErrors.Is(err, ErrReferential))
	assert.Equal(t, ReasonAlreadyMarked, err.Reason)
	assert.Equal(t, http.StatusConflict, err.Status)
}

func TestWithReason(t *testing.T) {
	err := WithReason(ErrUnauthorizedTransition, ReasonInvalidStatus, "")
	assert.Equal(t, ReasonInvalidStatus, err.Reason)
	assert.Equal(t, ErrUnauthorizedTransition.Message, err.Message)
	assert.Equal(t, ReasonInvalidRole, ErrUnauthorizedTransition.Reason)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	wrapped := fmt.Errorf("store: %w", Clone(ErrReferential, "unknown student x"))
	assert.Equal(t, ErrReferential.Code, FromError(wrapped).Code)

	plain := FromError(stdErrors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Nil(t, FromError(nil))
}
