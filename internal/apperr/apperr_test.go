package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("split failed: %w", BlockSplit("position %d out of range", 0))

	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, CodeBlockSplit, CodeOf(err))
	assert.True(t, Is(err, CodeBlockSplit))
	assert.False(t, Is(err, CodeBlockMerge))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("connection reset")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestErrorMessage(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "block "+id.String()+" not found", BlockNotFound(id).Error())

	cause := errors.New("timeout")
	err := ExternalService("pexels", cause)
	assert.Equal(t, "pexels request failed: timeout", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindExternal, KindOf(err))
}
