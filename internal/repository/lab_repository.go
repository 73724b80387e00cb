package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/lab-computer-booking/internal/model"
)

// LabRepo provides data access to the labs table.
type LabRepo struct {
	db *sql.DB
}

// NewLabRepo returns a LabRepo bound to the provided database.
func NewLabRepo(db *sql.DB) *LabRepo { return &LabRepo{db: db} }

// Create inserts a lab and populates its ID.  Lab names are unique;
// a duplicate name returns ErrConflict.
func (r *LabRepo) Create(ctx context.Context, lab *model.Lab) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO labs (name, location) VALUES (?,?)",
		lab.Name, lab.Location)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	lab.ID = uint64(id)
	return nil
}

// Update changes a lab's name and location.
func (r *LabRepo) Update(ctx context.Context, id uint64, name, location string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE labs SET name=?, location=? WHERE id=?",
		name, location, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetByID fetches a lab by id.
func (r *LabRepo) GetByID(ctx context.Context, id uint64) (model.Lab, error) {
	var l model.Lab
	err := r.db.QueryRowContext(ctx,
		"SELECT id,name,location,created_at,updated_at FROM labs WHERE id=? LIMIT 1",
		id).Scan(&l.ID, &l.Name, &l.Location, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// List returns all labs ordered by name.
func (r *LabRepo) List(ctx context.Context) ([]model.Lab, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,name,location,created_at,updated_at FROM labs ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var labs []model.Lab
	for rows.Next() {
		var l model.Lab
		if err := rows.Scan(&l.ID, &l.Name, &l.Location, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		labs = append(labs, l)
	}
	return labs, rows.Err()
}
