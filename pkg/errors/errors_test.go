package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrNotDismissible, "reminder rem-1 is pinned")
	assert.True(t, stdErrors.Is(err, ErrNotDismissible))
	assert.False(t, stdErrors.Is(err, ErrNotFound))
	assert.Equal(t, "reminder rem-1 is pinned", err.Error())
	assert.Equal(t, "reminder cannot be dismissed", ErrNotDismissible.Message)
}

func TestWrappedErrorMatchesThroughFmt(t *testing.T) {
	err := fmt.Errorf("dismiss: %w", Clone(ErrForbiddenAudience, ""))
	assert.True(t, stdErrors.Is(err, ErrForbiddenAudience))
}

func TestFromErrorNormalisesUnknown(t *testing.T) {
	appErr := FromError(stdErrors.New("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, "internal server error: boom", appErr.Error())

	assert.Nil(t, FromError(nil))
	typed := Clone(ErrValidation, "title is required")
	assert.Same(t, typed, FromError(typed))
}
