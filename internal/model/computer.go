package model

import "time"

// Computer describes a bookable workstation in a lab.  Computers are
// uniquely named within their lab.  Inactive computers stay in the
// catalog but cannot receive new bookings.
//
// Fields:
//  ID          – primary key identifier.
//  LabID       – lab to which this computer belongs.
//  Name        – unique computer name per lab (e.g. "PC-14").
//  Description – hardware/software summary (nil if unspecified).
//  IsActive    – whether the computer accepts bookings.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Computer struct {
	ID          uint64    // computers.id
	LabID       uint64    // computers.lab_id
	Name        string    // computers.name
	Description *string   // computers.description (nullable)
	IsActive    bool      // computers.is_active
	CreatedAt   time.Time // computers.created_at
	UpdatedAt   time.Time // computers.updated_at
}
