package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKind(t *testing.T) {
	err := Conflict("quiz.Start", "attempt already in progress")

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "quiz.Start: attempt already in progress", err.Error())
}

func TestWrappedErrorKeepsKind(t *testing.T) {
	inner := NotFound("progress.Record", "lesson not found")
	wrapped := fmt.Errorf("record event: %w", inner)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, "lesson not found", Message(wrapped))
	assert.Equal(t, "", Message(errors.New("boom")))
}

func TestErrorWithCause(t *testing.T) {
	cause := errors.New("disk full")
	err := &Error{Op: "certification.Issue", Kind: ErrConflict, Message: "issue failed", Err: cause}

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "disk full")
}
