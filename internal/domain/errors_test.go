package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := ErrMalformedField("event.id", "event.id is required")
	assert.Equal(t, "malformed_payload: event.id is required (map[field:event.id])", err.Error())
}

func TestErrStore_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("ingest: %w", ErrStore("insert event", cause))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeStoreFailure, CodeOf(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrCode(""), CodeOf(errors.New("boom")))
	assert.Equal(t, ErrCode(""), CodeOf(nil))
}
