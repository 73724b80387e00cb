package release

import (
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/lab-computer-booking/internal/model"
)

// dateLayout is the only representation of a calendar day anywhere in
// this package.  ISO dates compare correctly as plain strings, so the
// inclusive range check below never touches time-of-day or timezones.
const dateLayout = "2006-01-02"

// IsValidDate reports whether s is a well-formed YYYY-MM-DD date.
func IsValidDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// NormalizeDates trims, deduplicates and sorts a list of date strings.
// The order of first occurrence is irrelevant because the result is
// sorted ascending.
func NormalizeDates(dates []string) []string {
	seen := make(map[string]struct{}, len(dates))
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// ValidateReleaseRequest checks a proposed release against the current
// summary snapshot of the booking.  It is a pure function with no side
// effects: the summary rows on the booking are the single source of
// truth for "is this date already under an active release", so no scan
// of the ledger is needed here.
//
// Checks, in order:
//   - requested dates non-empty, well-formed, reason non-blank
//     (*ValidationError)
//   - every date inside [booking.StartDate, booking.EndDate], both
//     ends inclusive (*OutOfRangeError with the offending dates)
//   - no date already present in the summary, booked or not
//     (*DuplicateReleaseError with the offending dates)
func ValidateReleaseRequest(booking model.Booking, summary []model.ReleasedDate, requested []string, reason string) error {
	if len(requested) == 0 {
		return &ValidationError{Msg: "release_dates is required"}
	}
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Msg: "reason is required"}
	}
	for _, d := range requested {
		if !IsValidDate(d) {
			return &ValidationError{Msg: "invalid date: " + d}
		}
	}

	var outOfRange []string
	for _, d := range requested {
		if d < booking.StartDate || d > booking.EndDate {
			outOfRange = append(outOfRange, d)
		}
	}
	if len(outOfRange) > 0 {
		return &OutOfRangeError{InvalidDates: outOfRange}
	}

	released := make(map[string]struct{}, len(summary))
	for _, s := range summary {
		released[s.Date] = struct{}{}
	}
	var duplicates []string
	for _, d := range requested {
		if _, ok := released[d]; ok {
			duplicates = append(duplicates, d)
		}
	}
	if len(duplicates) > 0 {
		return &DuplicateReleaseError{DuplicateDates: duplicates}
	}
	return nil
}

// Summarize recomputes the denormalized counters from the summary
// rows.  TotalReleasedDays is always the number of rows and
// HasActiveReleases is true exactly when at least one row exists.
func Summarize(summary []model.ReleasedDate) (total int, hasActive bool) {
	return len(summary), len(summary) > 0
}

// AvailableSlot is one claimable released day, flattened across all
// bookings of a computer.  It carries enough context for a client to
// render the slot and to issue a claim for it.
type AvailableSlot struct {
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	OriginalBookingID uint64 `json:"original_booking_id"`
	ComputerID        uint64 `json:"computer_id"`
	ComputerName      string `json:"computer_name"`
	LabName           string `json:"lab_name"`
	LabLocation       string `json:"lab_location"`
}

// SortSlots orders slots by date ascending.  The sort is stable so
// slots on the same date keep their discovery order.
func SortSlots(slots []AvailableSlot) {
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Date < slots[j].Date })
}
