// Package release implements the temporary-release core: the ledger of
// release actions a booking owner performs, the denormalized summary
// kept on the booking, and the claim flow that converts a released day
// into a temporary booking for another user.
package release

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the service.  Handlers translate these
// into HTTP status codes; see handler/release.go.
var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrReleaseNotFound    = errors.New("release not found")
	ErrForbidden          = errors.New("forbidden")
	ErrBookingNotApproved = errors.New("booking is not approved")
	ErrAlreadyCancelled   = errors.New("release already cancelled")
	ErrHasBookedDates     = errors.New("release has booked dates and cannot be cancelled")
	ErrNoActiveReleases   = errors.New("booking has no active releases")
	ErrDateUnavailable    = errors.New("date is not available for temporary booking")
)

// ValidationError reports malformed or missing input: an empty date
// list, a date that is not YYYY-MM-DD, or a blank reason.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// OutOfRangeError reports requested dates that fall outside the
// booking's inclusive [StartDate, EndDate] window.  InvalidDates
// carries the offending dates so the client can highlight them.
type OutOfRangeError struct {
	InvalidDates []string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("dates outside booking range: %s", strings.Join(e.InvalidDates, ", "))
}

// DuplicateReleaseError reports requested dates that are already
// covered by a still-active release of the same booking.
type DuplicateReleaseError struct {
	DuplicateDates []string
}

func (e *DuplicateReleaseError) Error() string {
	return fmt.Sprintf("dates already released: %s", strings.Join(e.DuplicateDates, ", "))
}
