package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneMatchesSentinelByCode(t *testing.T) {
	err := Clone(ErrValidation, "teamSize must be at least 1")

	assert.Equal(t, "teamSize must be at least 1", err.Error())
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, "validation failed", ErrValidation.Message)

	wrapped := fmt.Errorf("decode: %w", err)
	assert.True(t, errors.Is(wrapped, ErrValidation))
	assert.True(t, HasCode(wrapped, "VALIDATION_ERROR"))
}

func TestFromErrorHidesUntypedCause(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)

	typed := Clone(ErrNotOwner, "")
	assert.Same(t, typed, FromError(typed))
	assert.Nil(t, FromError(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(sql.ErrNoRows, ErrNotFound.Code, ErrNotFound.Status, "record not found")
	assert.Equal(t, "record not found: sql: no rows in result set", err.Error())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.ErrorIs(t, err, ErrNotFound)
}
