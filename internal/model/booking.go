package model

import "time"

// Booking statuses.  A booking is created as PENDING by a student and
// moves to APPROVED or REJECTED by an admin.  Only APPROVED bookings
// can release days.  COMPLETED is set by the external expiration job
// once the booking window has passed.
const (
	BookingStatusPending   = "PENDING"
	BookingStatusApproved  = "APPROVED"
	BookingStatusRejected  = "REJECTED"
	BookingStatusCancelled = "CANCELLED"
	BookingStatusCompleted = "COMPLETED"
)

// Booking records a user's reservation of a lab computer for an
// inclusive range of calendar days.  Dates are stored as YYYY-MM-DD
// strings so that range comparisons never involve a timezone; times of
// day are carried separately as HH:MM strings.
//
// The HasActiveReleases / TotalReleasedDays / ReleaseUpdatedAt fields
// form a denormalized summary of this booking's released days.  They
// are kept consistent with the ReleasedDate rows and the ReleaseDetail
// ledger after every release, cancel and claim operation.
//
// Fields:
//  ID                 – primary key identifier.
//  UserID             – user who owns the booking.
//  ComputerID         – computer being reserved.
//  StartDate/EndDate  – inclusive booking window (YYYY-MM-DD).
//  StartTime/EndTime  – daily usage window (HH:MM).
//  Status             – one of the BookingStatus* constants.
//  ProjectName        – project metadata, free text.
//  Supervisor         – project metadata, free text.
//  IsTemporaryBooking – true when this booking was created by claiming
//                       a released day of another booking.
//  OriginalBookingID  – for temporary bookings, the booking whose
//                       released day was claimed.
type Booking struct {
	ID                 uint64     // bookings.id
	UserID             uint64     // bookings.user_id
	ComputerID         uint64     // bookings.computer_id
	StartDate          string     // bookings.start_date
	EndDate            string     // bookings.end_date
	StartTime          string     // bookings.start_time
	EndTime            string     // bookings.end_time
	Status             string     // bookings.status
	ProjectName        string     // bookings.project_name
	Supervisor         string     // bookings.supervisor
	IsTemporaryBooking bool       // bookings.is_temporary_booking
	OriginalBookingID  *uint64    // bookings.original_booking_id (nullable)
	HasActiveReleases  bool       // bookings.has_active_releases
	TotalReleasedDays  int        // bookings.total_released_days
	ReleaseUpdatedAt   *time.Time // bookings.release_updated_at (nullable)
	CreatedAt          time.Time  // bookings.created_at
	UpdatedAt          time.Time  // bookings.updated_at
}

// ReleasedDate is one entry of a booking's release summary: a single
// day the owner has given back to the pool.  The UNIQUE(booking_id,
// date) key in the database is what guarantees that active releases of
// the same booking never overlap.
//
// Fields:
//  ID            – primary key identifier.
//  BookingID     – booking whose day was released.
//  Date          – released calendar day (YYYY-MM-DD).
//  IsBooked      – true once another user has claimed the day.
//  TempBookingID – the temporary booking created by the claim.
type ReleasedDate struct {
	ID            uint64  // booking_released_dates.id
	BookingID     uint64  // booking_released_dates.booking_id
	Date          string  // booking_released_dates.date
	IsBooked      bool    // booking_released_dates.is_booked
	TempBookingID *uint64 // booking_released_dates.temp_booking_id (nullable)
}
