package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/lab-computer-booking/internal/model"
)

// ComputerRepo provides data access to the computers table.
type ComputerRepo struct {
	db *sql.DB
}

// NewComputerRepo returns a ComputerRepo bound to the provided database.
func NewComputerRepo(db *sql.DB) *ComputerRepo { return &ComputerRepo{db: db} }

// Create inserts a computer and populates its ID.  Computer names are
// unique per lab; a duplicate returns ErrConflict.
func (r *ComputerRepo) Create(ctx context.Context, c *model.Computer) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO computers (lab_id, name, description, is_active) VALUES (?,?,?,?)",
		c.LabID, c.Name, c.Description, c.IsActive)
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
	c.ID = uint64(id)
	return nil
}

// Update changes a computer's mutable fields.
func (r *ComputerRepo) Update(ctx context.Context, id uint64, name string, description *string, isActive bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE computers SET name=?, description=?, is_active=? WHERE id=?",
		name, description, isActive, id)
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

// GetByID fetches a computer by id.
func (r *ComputerRepo) GetByID(ctx context.Context, id uint64) (model.Computer, error) {
	var c model.Computer
	err := r.db.QueryRowContext(ctx,
		"SELECT id,lab_id,name,description,is_active,created_at,updated_at FROM computers WHERE id=? LIMIT 1",
		id).Scan(&c.ID, &c.LabID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListByLab returns the computers of a lab ordered by name.  When
// activeOnly is true, inactive computers are filtered out.
func (r *ComputerRepo) ListByLab(ctx context.Context, labID uint64, activeOnly bool) ([]model.Computer, error) {
	q := "SELECT id,lab_id,name,description,is_active,created_at,updated_at FROM computers WHERE lab_id=?"
	if activeOnly {
		q += " AND is_active=1"
	}
	q += " ORDER BY name"
	rows, err := r.db.QueryContext(ctx, q, labID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Computer
	for rows.Next() {
		var c model.Computer
		if err := rows.Scan(&c.ID, &c.LabID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
