package model

import "time"

// Lab represents a university computer lab.  A lab contains multiple
// computers.  This struct corresponds to a row in the `labs` table.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – unique name of the lab (e.g. "CS Lab 2").
//  Location  – building and room, free text.
//  CreatedAt – timestamp when the lab was created.
//  UpdatedAt – timestamp of last update.
type Lab struct {
	ID        uint64    // labs.id
	Name      string    // labs.name
	Location  string    // labs.location
	CreatedAt time.Time // labs.created_at
	UpdatedAt time.Time // labs.updated_at
}
