package release

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lab-computer-booking/internal/model"
)

func TestIsValidDate(t *testing.T) {
	assert.True(t, IsValidDate("2025-06-10"))
	assert.True(t, IsValidDate("2024-02-29")) // leap day
	assert.False(t, IsValidDate("2025-02-30"))
	assert.False(t, IsValidDate("10-06-2025"))
	assert.False(t, IsValidDate("2025-6-1"))
	assert.False(t, IsValidDate(""))
	assert.False(t, IsValidDate("not-a-date"))
}

func TestNormalizeDates(t *testing.T) {
	got := NormalizeDates([]string{" 2025-06-12 ", "2025-06-10", "2025-06-12", "", "2025-06-11"})
	assert.Equal(t, []string{"2025-06-10", "2025-06-11", "2025-06-12"}, got)

	assert.Empty(t, NormalizeDates(nil))
	assert.Empty(t, NormalizeDates([]string{" ", ""}))
}

func TestValidateReleaseRequest(t *testing.T) {
	booking := model.Booking{
		ID:        1,
		StartDate: "2025-06-10",
		EndDate:   "2025-06-20",
	}

	t.Run("accepts dates inside the inclusive range", func(t *testing.T) {
		// Both boundary days belong to the booking.
		err := ValidateReleaseRequest(booking, nil, []string{"2025-06-10", "2025-06-20"}, "exam week")
		assert.NoError(t, err)
	})

	t.Run("empty date list", func(t *testing.T) {
		err := ValidateReleaseRequest(booking, nil, nil, "reason")
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
	})

	t.Run("blank reason", func(t *testing.T) {
		err := ValidateReleaseRequest(booking, nil, []string{"2025-06-10"}, "   ")
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
	})

	t.Run("malformed date", func(t *testing.T) {
		err := ValidateReleaseRequest(booking, nil, []string{"2025-06-32"}, "reason")
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
	})

	t.Run("dates outside the range are all reported", func(t *testing.T) {
		err := ValidateReleaseRequest(booking, nil, []string{"2025-06-09", "2025-06-15", "2025-06-21"}, "reason")
		var oor *OutOfRangeError
		require.True(t, errors.As(err, &oor))
		assert.Equal(t, []string{"2025-06-09", "2025-06-21"}, oor.InvalidDates)
	})

	t.Run("already released dates are rejected even when booked", func(t *testing.T) {
		tmp := uint64(77)
		summary := []model.ReleasedDate{
			{BookingID: 1, Date: "2025-06-11"},
			{BookingID: 1, Date: "2025-06-12", IsBooked: true, TempBookingID: &tmp},
		}
		err := ValidateReleaseRequest(booking, summary, []string{"2025-06-11", "2025-06-12", "2025-06-13"}, "reason")
		var dup *DuplicateReleaseError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, []string{"2025-06-11", "2025-06-12"}, dup.DuplicateDates)
	})

	t.Run("validation precedes range check", func(t *testing.T) {
		err := ValidateReleaseRequest(booking, nil, []string{"bogus", "2025-07-01"}, "reason")
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
	})
}

func TestSummarize(t *testing.T) {
	total, hasActive := Summarize(nil)
	assert.Zero(t, total)
	assert.False(t, hasActive)

	total, hasActive = Summarize([]model.ReleasedDate{{Date: "2025-06-10"}, {Date: "2025-06-11", IsBooked: true}})
	assert.Equal(t, 2, total)
	assert.True(t, hasActive)
}

func TestSortSlots(t *testing.T) {
	slots := []AvailableSlot{
		{Date: "2025-06-12", OriginalBookingID: 1},
		{Date: "2025-06-10", OriginalBookingID: 2},
		{Date: "2025-06-12", OriginalBookingID: 3},
	}
	SortSlots(slots)
	assert.Equal(t, "2025-06-10", slots[0].Date)
	// Stable: same-date slots keep their original order.
	assert.Equal(t, uint64(1), slots[1].OriginalBookingID)
	assert.Equal(t, uint64(3), slots[2].OriginalBookingID)
}
