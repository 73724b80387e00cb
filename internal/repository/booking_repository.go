package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lab-computer-booking/internal/model"
)

// bookingColumns is the column list shared by every booking query.
// Dates are formatted back to YYYY-MM-DD strings in SQL so that no
// timezone conversion ever happens between the database and the
// application.
const bookingColumns = `id, user_id, computer_id,
	DATE_FORMAT(start_date, '%Y-%m-%d'), DATE_FORMAT(end_date, '%Y-%m-%d'),
	start_time, end_time, status, project_name, supervisor,
	is_temporary_booking, original_booking_id,
	has_active_releases, total_released_days, release_updated_at,
	created_at, updated_at`

func scanBooking(row interface{ Scan(dest ...interface{}) error }) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.UserID, &b.ComputerID,
		&b.StartDate, &b.EndDate,
		&b.StartTime, &b.EndTime, &b.Status, &b.ProjectName, &b.Supervisor,
		&b.IsTemporaryBooking, &b.OriginalBookingID,
		&b.HasActiveReleases, &b.TotalReleasedDays, &b.ReleaseUpdatedAt,
		&b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// BookingRepo encapsulates database operations for bookings outside
// the release core: requesting, approving, rejecting, cancelling and
// listing.  The release/claim flows live in ReleaseStore.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo constructs a BookingRepo given a DB handle.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts a new PENDING booking request and populates its ID.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings
			(user_id, computer_id, start_date, end_date, start_time, end_time,
			 status, project_name, supervisor, is_temporary_booking, original_booking_id)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		b.UserID, b.ComputerID, b.StartDate, b.EndDate, b.StartTime, b.EndTime,
		b.Status, b.ProjectName, b.Supervisor, b.IsTemporaryBooking, b.OriginalBookingID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID fetches a booking by id.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id=? LIMIT 1", id)
	return scanBooking(row)
}

// ListByUser returns all bookings owned by a user, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_id=? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListByStatus returns bookings in the given status, oldest first so
// admins process requests in arrival order.  An empty status lists
// everything.
func (r *BookingRepo) ListByStatus(ctx context.Context, status string) ([]model.Booking, error) {
	q := "SELECT " + bookingColumns + " FROM bookings"
	var args []interface{}
	if status != "" {
		q += " WHERE status=?"
		args = append(args, status)
	}
	q += " ORDER BY created_at ASC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetDecision moves a PENDING booking to APPROVED or REJECTED.  The
// status predicate makes the decision race-free: when two admins act
// on the same request, the second update matches no row and gets
// ErrConflict (or sql.ErrNoRows when the booking never existed).
func (r *BookingRepo) SetDecision(ctx context.Context, id uint64, status string) (model.Booking, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE bookings SET status=? WHERE id=? AND status=?",
		status, id, model.BookingStatusPending)
	if err != nil {
		return model.Booking{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Booking{}, err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return model.Booking{}, err
		}
		return model.Booking{}, ErrConflict
	}
	return r.GetByID(ctx, id)
}

// CancelOwn cancels the caller's own booking while it is still
// PENDING or APPROVED.  Bookings with active releases cannot be
// cancelled; the released days must be reclaimed or their claims
// honored first.
func (r *BookingRepo) CancelOwn(ctx context.Context, id, userID uint64) error {
	b, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.UserID != userID {
		return ErrForbidden
	}
	if b.HasActiveReleases {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE bookings SET status=? WHERE id=? AND user_id=? AND status IN (?,?) AND has_active_releases=0",
		model.BookingStatusCancelled, id, userID,
		model.BookingStatusPending, model.BookingStatusApproved)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
