package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/lab-computer-booking/internal/model"
	"github.com/iliyamo/lab-computer-booking/internal/release"
)

// ReleaseStore implements release.Store on MySQL.  Every method runs
// its statements on the transaction carried by the context when
// WithTx opened one, so a whole service operation shares a single
// transaction.
type ReleaseStore struct {
	db *sql.DB
}

// NewReleaseStore constructs a ReleaseStore given a DB handle.
func NewReleaseStore(db *sql.DB) *ReleaseStore { return &ReleaseStore{db: db} }

type txKey struct{}

// executor is the subset of *sql.DB / *sql.Tx the store needs.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *ReleaseStore) exec(ctx context.Context) executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTx runs fn inside a transaction, committing on nil and rolling
// back on error.  Nested calls reuse the already-open transaction.
func (s *ReleaseStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// GetBooking fetches a booking, mapping a missing row to the release
// core's not-found error.
func (s *ReleaseStore) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id=? LIMIT 1", id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, release.ErrBookingNotFound
	}
	return b, err
}

// GetBookingForUpdate locks the booking row until the surrounding
// transaction ends.  Release creation takes this lock first, which
// serializes release-number assignment per booking.
func (s *ReleaseStore) GetBookingForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id=? LIMIT 1 FOR UPDATE", id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, release.ErrBookingNotFound
	}
	return b, err
}

// CreateBooking inserts a booking row (used for temporary bookings
// created by claims) and populates its ID.
func (s *ReleaseStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	res, err := s.exec(ctx).ExecContext(ctx,
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

// ListReleasedDates returns the summary rows of a booking ordered by
// date.
func (s *ReleaseStore) ListReleasedDates(ctx context.Context, bookingID uint64) ([]model.ReleasedDate, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT id, booking_id, DATE_FORMAT(date, '%Y-%m-%d'), is_booked, temp_booking_id
		 FROM booking_released_dates WHERE booking_id=? ORDER BY date`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ReleasedDate
	for rows.Next() {
		var d model.ReleasedDate
		if err := rows.Scan(&d.ID, &d.BookingID, &d.Date, &d.IsBooked, &d.TempBookingID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// InsertReleasedDates appends unbooked summary rows for the given
// dates.  The UNIQUE(booking_id, date) key is the hard backstop for
// the disjointness invariant: if a validation race lets a duplicate
// date through, the insert fails here and the transaction rolls back.
func (s *ReleaseStore) InsertReleasedDates(ctx context.Context, bookingID uint64, dates []string) error {
	if len(dates) == 0 {
		return nil
	}
	query := "INSERT INTO booking_released_dates (booking_id, date) VALUES "
	args := make([]interface{}, 0, len(dates)*2)
	for i, d := range dates {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, bookingID, d)
	}
	if _, err := s.exec(ctx).ExecContext(ctx, query, args...); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return &release.DuplicateReleaseError{DuplicateDates: dates}
		}
		return err
	}
	return nil
}

// DeleteReleasedDates removes the given dates from a booking's
// summary (used by cancellation).  The is_booked=0 predicate keeps a
// concurrently claimed day out of reach: when fewer rows than dates
// are deleted, a claim won the race and the cancellation must fail.
func (s *ReleaseStore) DeleteReleasedDates(ctx context.Context, bookingID uint64, dates []string) error {
	if len(dates) == 0 {
		return nil
	}
	query := "DELETE FROM booking_released_dates WHERE booking_id=? AND is_booked=0 AND date IN ("
	args := []interface{}{bookingID}
	for i, d := range dates {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, d)
	}
	query += ")"
	res, err := s.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != int64(len(dates)) {
		return release.ErrHasBookedDates
	}
	return nil
}

// UpdateReleaseSummary writes the denormalized counters and stamps
// the summary timestamp.
func (s *ReleaseStore) UpdateReleaseSummary(ctx context.Context, bookingID uint64, total int, hasActive bool, at time.Time) error {
	_, err := s.exec(ctx).ExecContext(ctx,
		"UPDATE bookings SET total_released_days=?, has_active_releases=?, release_updated_at=? WHERE id=?",
		total, hasActive, at, bookingID)
	return err
}

// MarkSummaryDateBooked is the claim flow's compare-and-swap: the
// UPDATE only applies while the row is still unbooked, so of two
// concurrent claims exactly one observes RowsAffected=1.
func (s *ReleaseStore) MarkSummaryDateBooked(ctx context.Context, bookingID uint64, date string, tempBookingID uint64) (bool, error) {
	res, err := s.exec(ctx).ExecContext(ctx,
		"UPDATE booking_released_dates SET is_booked=1, temp_booking_id=? WHERE booking_id=? AND date=? AND is_booked=0",
		tempBookingID, bookingID, date)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// NextReleaseNumber returns max+1 over the booking's ledger entries.
// Callers must hold the booking row lock (GetBookingForUpdate) so two
// creations cannot read the same maximum.
func (s *ReleaseStore) NextReleaseNumber(ctx context.Context, bookingID uint64) (int, error) {
	var n int
	err := s.exec(ctx).QueryRowContext(ctx,
		"SELECT COALESCE(MAX(release_number),0)+1 FROM release_details WHERE booking_id=?",
		bookingID).Scan(&n)
	return n, err
}

// CreateReleaseDetail inserts a ledger entry and its date rows,
// populating the generated IDs.
func (s *ReleaseStore) CreateReleaseDetail(ctx context.Context, d *model.ReleaseDetail) error {
	ex := s.exec(ctx)
	res, err := ex.ExecContext(ctx,
		`INSERT INTO release_details
			(booking_id, user_id, release_number, reason, user_message, release_type, is_emergency, status)
		 VALUES (?,?,?,?,?,?,?,?)`,
		d.BookingID, d.UserID, d.ReleaseNumber, d.Reason, d.UserMessage, d.ReleaseType, d.IsEmergency, d.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)

	if len(d.Dates) == 0 {
		return nil
	}
	query := "INSERT INTO release_detail_dates (release_id, date) VALUES "
	args := make([]interface{}, 0, len(d.Dates)*2)
	for i := range d.Dates {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		d.Dates[i].ReleaseID = d.ID
		args = append(args, d.ID, d.Dates[i].Date)
	}
	_, err = ex.ExecContext(ctx, query, args...)
	return err
}

// GetReleaseDetail loads a ledger entry with its date rows.
func (s *ReleaseStore) GetReleaseDetail(ctx context.Context, id uint64) (model.ReleaseDetail, error) {
	return s.getReleaseDetail(ctx, id, "")
}

// GetReleaseDetailForUpdate locks the ledger entry row until the
// surrounding transaction ends.  Cancellation takes this lock so the
// booked-date check and the summary delete see the same state.
func (s *ReleaseStore) GetReleaseDetailForUpdate(ctx context.Context, id uint64) (model.ReleaseDetail, error) {
	return s.getReleaseDetail(ctx, id, " FOR UPDATE")
}

func (s *ReleaseStore) getReleaseDetail(ctx context.Context, id uint64, suffix string) (model.ReleaseDetail, error) {
	ex := s.exec(ctx)
	var d model.ReleaseDetail
	err := ex.QueryRowContext(ctx,
		`SELECT id, booking_id, user_id, release_number, reason, user_message, release_type, is_emergency,
		        status, created_at, updated_at
		 FROM release_details WHERE id=? LIMIT 1`+suffix, id).
		Scan(&d.ID, &d.BookingID, &d.UserID, &d.ReleaseNumber, &d.Reason, &d.UserMessage, &d.ReleaseType,
			&d.IsEmergency, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ReleaseDetail{}, release.ErrReleaseNotFound
	}
	if err != nil {
		return model.ReleaseDetail{}, err
	}
	d.Dates, err = s.listDetailDates(ctx, []uint64{d.ID})
	return d, err
}

func (s *ReleaseStore) listDetailDates(ctx context.Context, releaseIDs []uint64) ([]model.ReleaseDetailDate, error) {
	if len(releaseIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, release_id, DATE_FORMAT(date, '%Y-%m-%d'), is_booked, temp_booking_id, booked_by, booked_at
		 FROM release_detail_dates WHERE release_id IN (`
	args := make([]interface{}, 0, len(releaseIDs))
	for i, id := range releaseIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id)
	}
	query += ") ORDER BY date"
	rows, err := s.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ReleaseDetailDate
	for rows.Next() {
		var dd model.ReleaseDetailDate
		if err := rows.Scan(&dd.ID, &dd.ReleaseID, &dd.Date, &dd.IsBooked, &dd.TempBookingID, &dd.BookedBy, &dd.BookedAt); err != nil {
			return nil, err
		}
		out = append(out, dd)
	}
	return out, rows.Err()
}

// SetReleaseStatus writes a ledger entry's status.
func (s *ReleaseStore) SetReleaseStatus(ctx context.Context, id uint64, status string, at time.Time) error {
	_, err := s.exec(ctx).ExecContext(ctx,
		"UPDATE release_details SET status=?, updated_at=? WHERE id=?",
		status, at, id)
	return err
}

// MarkDetailDateBooked flips the ledger date row matching the claimed
// day on the booking's non-cancelled entry and returns that entry's
// id.  Disjointness guarantees at most one such row exists.
func (s *ReleaseStore) MarkDetailDateBooked(ctx context.Context, bookingID uint64, date string, tempBookingID, bookedBy uint64, at time.Time) (uint64, error) {
	ex := s.exec(ctx)
	var rowID, releaseID uint64
	err := ex.QueryRowContext(ctx,
		`SELECT dd.id, dd.release_id
		 FROM release_detail_dates dd
		 JOIN release_details rd ON rd.id = dd.release_id
		 WHERE rd.booking_id=? AND rd.status<>? AND dd.date=? AND dd.is_booked=0
		 LIMIT 1 FOR UPDATE`,
		bookingID, model.ReleaseStatusCancelled, date).Scan(&rowID, &releaseID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, release.ErrDateUnavailable
	}
	if err != nil {
		return 0, err
	}
	_, err = ex.ExecContext(ctx,
		"UPDATE release_detail_dates SET is_booked=1, temp_booking_id=?, booked_by=?, booked_at=? WHERE id=?",
		tempBookingID, bookedBy, at, rowID)
	return releaseID, err
}

// ListReleaseDetailsByUser returns the user's non-cancelled ledger
// entries with booking, computer and lab context, newest first.
func (s *ReleaseStore) ListReleaseDetailsByUser(ctx context.Context, userID uint64) ([]release.UserRelease, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT rd.id, rd.booking_id, rd.user_id, rd.release_number, rd.reason, rd.user_message,
		        rd.release_type, rd.is_emergency, rd.status,
		        rd.created_at, rd.updated_at, c.name, l.name
		 FROM release_details rd
		 JOIN bookings b ON b.id = rd.booking_id
		 JOIN computers c ON c.id = b.computer_id
		 JOIN labs l ON l.id = c.lab_id
		 WHERE rd.user_id=? AND rd.status<>?
		 ORDER BY rd.created_at DESC`, userID, model.ReleaseStatusCancelled)
	if err != nil {
		return nil, err
	}
	items, ids, err := collectUserReleases(rows)
	if err != nil {
		return nil, err
	}
	return s.attachDatesAndBookings(ctx, items, ids)
}

// ListAllReleaseDetails returns every ledger entry (cancelled ones
// included) joined with owner and claimant identity for the admin
// view.
func (s *ReleaseStore) ListAllReleaseDetails(ctx context.Context) ([]release.AdminRelease, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT rd.id, rd.booking_id, rd.user_id, rd.release_number, rd.reason, rd.user_message,
		        rd.release_type, rd.is_emergency, rd.status,
		        rd.created_at, rd.updated_at, c.name, l.name, u.email
		 FROM release_details rd
		 JOIN bookings b ON b.id = rd.booking_id
		 JOIN computers c ON c.id = b.computer_id
		 JOIN labs l ON l.id = c.lab_id
		 JOIN users u ON u.id = rd.user_id
		 ORDER BY rd.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []release.AdminRelease
	var ids []uint64
	for rows.Next() {
		var it release.AdminRelease
		if err := rows.Scan(&it.Detail.ID, &it.Detail.BookingID, &it.Detail.UserID,
			&it.Detail.ReleaseNumber, &it.Detail.Reason, &it.Detail.UserMessage,
			&it.Detail.ReleaseType, &it.Detail.IsEmergency, &it.Detail.Status,
			&it.Detail.CreatedAt, &it.Detail.UpdatedAt,
			&it.ComputerName, &it.LabName, &it.OwnerEmail); err != nil {
			return nil, err
		}
		out = append(out, it)
		ids = append(ids, it.Detail.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dates, err := s.listDetailDates(ctx, ids)
	if err != nil {
		return nil, err
	}
	byRelease := make(map[uint64][]model.ReleaseDetailDate, len(ids))
	for _, dd := range dates {
		byRelease[dd.ReleaseID] = append(byRelease[dd.ReleaseID], dd)
	}
	claimants, err := s.claimantEmails(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		id := out[i].Detail.ID
		out[i].Detail.Dates = byRelease[id]
		out[i].ClaimantEmail = claimants[id]
		b, err := s.GetBooking(ctx, out[i].Detail.BookingID)
		if err != nil {
			return nil, err
		}
		out[i].Booking = b
	}
	return out, nil
}

// claimantEmails maps release id -> date -> email of the claimant.
func (s *ReleaseStore) claimantEmails(ctx context.Context, releaseIDs []uint64) (map[uint64]map[string]string, error) {
	if len(releaseIDs) == 0 {
		return nil, nil
	}
	query := `SELECT dd.release_id, DATE_FORMAT(dd.date, '%Y-%m-%d'), u.email
		 FROM release_detail_dates dd
		 JOIN users u ON u.id = dd.booked_by
		 WHERE dd.is_booked=1 AND dd.release_id IN (`
	args := make([]interface{}, 0, len(releaseIDs))
	for i, id := range releaseIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id)
	}
	query += ")"
	rows, err := s.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]map[string]string)
	for rows.Next() {
		var id uint64
		var date, email string
		if err := rows.Scan(&id, &date, &email); err != nil {
			return nil, err
		}
		if out[id] == nil {
			out[id] = make(map[string]string)
		}
		out[id][date] = email
	}
	return out, rows.Err()
}

// FindAvailableSlots flattens the unbooked released days of a
// computer's approved bookings within the window.  Empty bounds leave
// that side of the window open.
func (s *ReleaseStore) FindAvailableSlots(ctx context.Context, computerID uint64, startDate, endDate string) ([]release.AvailableSlot, error) {
	query := `SELECT DATE_FORMAT(rd.date, '%Y-%m-%d'), b.start_time, b.end_time, b.id,
		        c.id, c.name, l.name, l.location
		 FROM booking_released_dates rd
		 JOIN bookings b ON b.id = rd.booking_id
		 JOIN computers c ON c.id = b.computer_id
		 JOIN labs l ON l.id = c.lab_id
		 WHERE b.computer_id=? AND b.status=? AND b.has_active_releases=1 AND rd.is_booked=0`
	args := []interface{}{computerID, model.BookingStatusApproved}
	if startDate != "" {
		query += " AND rd.date >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND rd.date <= ?"
		args = append(args, endDate)
	}
	query += " ORDER BY rd.date"
	rows, err := s.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []release.AvailableSlot
	for rows.Next() {
		var sl release.AvailableSlot
		if err := rows.Scan(&sl.Date, &sl.StartTime, &sl.EndTime, &sl.OriginalBookingID,
			&sl.ComputerID, &sl.ComputerName, &sl.LabName, &sl.LabLocation); err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

func collectUserReleases(rows *sql.Rows) ([]release.UserRelease, []uint64, error) {
	defer rows.Close()
	var items []release.UserRelease
	var ids []uint64
	for rows.Next() {
		var it release.UserRelease
		if err := rows.Scan(&it.Detail.ID, &it.Detail.BookingID, &it.Detail.UserID,
			&it.Detail.ReleaseNumber, &it.Detail.Reason, &it.Detail.UserMessage,
			&it.Detail.ReleaseType, &it.Detail.IsEmergency, &it.Detail.Status,
			&it.Detail.CreatedAt, &it.Detail.UpdatedAt,
			&it.ComputerName, &it.LabName); err != nil {
			return nil, nil, err
		}
		items = append(items, it)
		ids = append(ids, it.Detail.ID)
	}
	return items, ids, rows.Err()
}

func (s *ReleaseStore) attachDatesAndBookings(ctx context.Context, items []release.UserRelease, ids []uint64) ([]release.UserRelease, error) {
	dates, err := s.listDetailDates(ctx, ids)
	if err != nil {
		return nil, err
	}
	byRelease := make(map[uint64][]model.ReleaseDetailDate, len(ids))
	for _, dd := range dates {
		byRelease[dd.ReleaseID] = append(byRelease[dd.ReleaseID], dd)
	}
	for i := range items {
		items[i].Detail.Dates = byRelease[items[i].Detail.ID]
		b, err := s.GetBooking(ctx, items[i].Detail.BookingID)
		if err != nil {
			return nil, err
		}
		items[i].Booking = b
	}
	return items, nil
}
