// Package queue defines message payloads exchanged over the message broker.
package queue

// Release event types published to the notifications queue.
const (
	ReleaseCreated   = "release.created"
	ReleaseCancelled = "release.cancelled"
	ReleaseBooked    = "release.booked"
)

// Booking lifecycle event types.
const (
	BookingApproved = "booking.approved"
	BookingRejected = "booking.rejected"
)

// ReleaseEvent is published whenever a release is created, cancelled
// or one of its days is claimed.  It carries enough information for
// downstream consumers to log or notify without querying the primary
// database.
type ReleaseEvent struct {
	Type          string   `json:"type"`
	ReleaseID     uint64   `json:"release_id,omitempty"`
	ReleaseNumber int      `json:"release_number,omitempty"`
	BookingID     uint64   `json:"booking_id"`
	TempBookingID uint64   `json:"temp_booking_id,omitempty"`
	UserID        uint64   `json:"user_id"`
	Dates         []string `json:"dates"`
	Reason        string   `json:"reason,omitempty"`
	OccurredAt    string   `json:"occurred_at"`
}

// BookingStatusEvent is published when an admin approves or rejects a
// booking request.
type BookingStatusEvent struct {
	Type       string `json:"type"`
	BookingID  uint64 `json:"booking_id"`
	UserID     uint64 `json:"user_id"`
	ComputerID uint64 `json:"computer_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Status     string `json:"status"`
	OccurredAt string `json:"occurred_at"`
}
