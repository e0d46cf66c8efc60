package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShowing_Status(t *testing.T) {
	now := time.Date(2025, 10, 31, 10, 0, 0, 0, time.UTC)

	t.Run("pending_without_timestamps", func(t *testing.T) {
		s := Showing{UID: "shw-1"}
		assert.Equal(t, ShowingPending, s.Status())
	})

	t.Run("confirmed_when_only_confirmed", func(t *testing.T) {
		s := Showing{UID: "shw-1", ConfirmedAt: &now}
		assert.Equal(t, ShowingConfirmed, s.Status())
	})

	t.Run("canceled_regardless_of_confirmation", func(t *testing.T) {
		s := Showing{UID: "shw-1", ConfirmedAt: &now, CanceledAt: &now}
		assert.Equal(t, ShowingCanceled, s.Status())

		s.ConfirmedAt = nil
		assert.Equal(t, ShowingCanceled, s.Status())
	})
}

func TestShowingStatus_Valid(t *testing.T) {
	assert.True(t, ShowingPending.Valid())
	assert.True(t, ShowingConfirmed.Valid())
	assert.True(t, ShowingCanceled.Valid())
	assert.False(t, ShowingStatus("scheduled").Valid())
}
