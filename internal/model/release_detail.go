package model

import "time"

// ReleaseDetail statuses.  The status is derived from the entry's date
// rows on every save: no booked dates -> ACTIVE, some booked ->
// PARTIALLY_BOOKED, all booked -> FULLY_BOOKED.  CANCELLED is terminal
// and is never overwritten by the derivation.
const (
	ReleaseStatusActive          = "ACTIVE"
	ReleaseStatusPartiallyBooked = "PARTIALLY_BOOKED"
	ReleaseStatusFullyBooked     = "FULLY_BOOKED"
	ReleaseStatusCancelled       = "CANCELLED"
)

// ReleaseDetail is one entry of a booking's release ledger: a single
// release action performed by the booking owner.  Entries are never
// deleted; cancellation is a status transition.  ReleaseNumber is a
// per-booking monotonic sequence starting at 1.
//
// Fields:
//  ID            – primary key identifier.
//  BookingID     – booking whose days were released.
//  UserID        – user who performed the release (the booking owner).
//  ReleaseNumber – per-booking sequence number of this action.
//  Reason        – required free-text reason, trimmed.
//  UserMessage   – optional note from the owner to potential claimants.
//  ReleaseType   – optional client-supplied category, free text.
//  IsEmergency   – owner flagged this release as urgent.
//  Status        – one of the ReleaseStatus* constants.
//  Dates         – per-day rows of this action, one per released date.
type ReleaseDetail struct {
	ID            uint64              // release_details.id
	BookingID     uint64              // release_details.booking_id
	UserID        uint64              // release_details.user_id
	ReleaseNumber int                 // release_details.release_number
	Reason        string              // release_details.reason
	UserMessage   string              // release_details.user_message
	ReleaseType   string              // release_details.release_type
	IsEmergency   bool                // release_details.is_emergency
	Status        string              // release_details.status
	Dates         []ReleaseDetailDate // release_detail_dates rows
	CreatedAt     time.Time           // release_details.created_at
	UpdatedAt     time.Time           // release_details.updated_at
}

// ReleaseDetailDate tracks the booking state of one released day
// inside a ledger entry.  It mirrors the booking's ReleasedDate row
// for the same day and additionally records who claimed it and when.
//
// Fields:
//  ID            – primary key identifier.
//  ReleaseID     – ledger entry this day belongs to.
//  Date          – released calendar day (YYYY-MM-DD).
//  IsBooked      – true once the day has been claimed.
//  TempBookingID – temporary booking created by the claim.
//  BookedBy      – user who claimed the day.
//  BookedAt      – when the day was claimed.
type ReleaseDetailDate struct {
	ID            uint64     // release_detail_dates.id
	ReleaseID     uint64     // release_detail_dates.release_id
	Date          string     // release_detail_dates.date
	IsBooked      bool       // release_detail_dates.is_booked
	TempBookingID *uint64    // release_detail_dates.temp_booking_id (nullable)
	BookedBy      *uint64    // release_detail_dates.booked_by (nullable)
	BookedAt      *time.Time // release_detail_dates.booked_at (nullable)
}

// DerivedStatus recomputes the ledger entry status from its date rows
// according to the rule above.  A cancelled entry stays cancelled.
func (d *ReleaseDetail) DerivedStatus() string {
	if d.Status == ReleaseStatusCancelled {
		return ReleaseStatusCancelled
	}
	booked := 0
	for _, dd := range d.Dates {
		if dd.IsBooked {
			booked++
		}
	}
	switch {
	case booked == 0:
		return ReleaseStatusActive
	case booked < len(d.Dates):
		return ReleaseStatusPartiallyBooked
	default:
		return ReleaseStatusFullyBooked
	}
}
