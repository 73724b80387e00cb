package release

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/lab-computer-booking/internal/model"
	"github.com/iliyamo/lab-computer-booking/internal/queue"
)

// Store is the persistence contract the service needs.  All methods
// participate in the transaction opened by WithTx when one is active
// on the context.  MarkSummaryDateBooked must have conditional-update
// semantics: the write only applies when the row is still unbooked at
// write time, and the returned bool reports whether it did.  That
// compare-and-swap is what makes concurrent claims on the same date
// resolve to exactly one winner.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetBooking(ctx context.Context, id uint64) (model.Booking, error)
	// GetBookingForUpdate locks the booking row for the duration of
	// the transaction, serializing release creation per booking and
	// therefore release-number assignment.
	GetBookingForUpdate(ctx context.Context, id uint64) (model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking) error

	ListReleasedDates(ctx context.Context, bookingID uint64) ([]model.ReleasedDate, error)
	InsertReleasedDates(ctx context.Context, bookingID uint64, dates []string) error
	// DeleteReleasedDates removes only still-unbooked summary rows and
	// returns ErrHasBookedDates unless all requested dates were
	// removed.  A claimed day must never be deleted out from under its
	// temporary booking.
	DeleteReleasedDates(ctx context.Context, bookingID uint64, dates []string) error
	UpdateReleaseSummary(ctx context.Context, bookingID uint64, total int, hasActive bool, at time.Time) error
	// MarkSummaryDateBooked flips the summary row for (bookingID,
	// date) from unbooked to booked, recording the temporary booking.
	// It returns false when no unbooked row matched.
	MarkSummaryDateBooked(ctx context.Context, bookingID uint64, date string, tempBookingID uint64) (bool, error)

	NextReleaseNumber(ctx context.Context, bookingID uint64) (int, error)
	CreateReleaseDetail(ctx context.Context, d *model.ReleaseDetail) error
	GetReleaseDetail(ctx context.Context, id uint64) (model.ReleaseDetail, error)
	// GetReleaseDetailForUpdate locks the ledger entry row for the
	// duration of the transaction so the booked-date check in
	// cancellation cannot go stale under a concurrent claim.
	GetReleaseDetailForUpdate(ctx context.Context, id uint64) (model.ReleaseDetail, error)
	SetReleaseStatus(ctx context.Context, id uint64, status string, at time.Time) error
	// MarkDetailDateBooked updates the ledger date row matching
	// (bookingID, date) on a non-cancelled entry and returns the id of
	// the ledger entry it belongs to.
	MarkDetailDateBooked(ctx context.Context, bookingID uint64, date string, tempBookingID, bookedBy uint64, at time.Time) (uint64, error)

	ListReleaseDetailsByUser(ctx context.Context, userID uint64) ([]UserRelease, error)
	ListAllReleaseDetails(ctx context.Context) ([]AdminRelease, error)
	FindAvailableSlots(ctx context.Context, computerID uint64, startDate, endDate string) ([]AvailableSlot, error)
}

// Notifier delivers release events to the notification sink.  Calls
// are fire-and-forget from the service's point of view: failures are
// logged and never fail the operation that triggered them.
type Notifier interface {
	PublishReleaseEvent(ctx context.Context, ev queue.ReleaseEvent) error
}

// UserRelease is a ledger entry joined with its booking, as returned
// to the entry's owner.
type UserRelease struct {
	Detail       model.ReleaseDetail `json:"release"`
	Booking      model.Booking       `json:"booking"`
	ComputerName string              `json:"computer_name"`
	LabName      string              `json:"lab_name"`
}

// AdminRelease extends UserRelease with claimant identity for the
// admin ledger view.
type AdminRelease struct {
	UserRelease
	OwnerEmail    string            `json:"owner_email"`
	ClaimantEmail map[string]string `json:"claimants"` // date -> email of the user who claimed it
}

// Service implements the release core on top of a Store.  Every write
// operation runs inside a single database transaction; the notifier is
// invoked only after the transaction has committed.
type Service struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNow overrides the time source, used by tests for deterministic
// timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs the release service.  notifier may be nil, in
// which case events are silently dropped.
func NewService(store Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateReleaseInput carries one release action.  Dates and Reason are
// required; the rest is optional metadata stored on the ledger entry.
type CreateReleaseInput struct {
	BookingID   uint64
	UserID      uint64
	Dates       []string
	Reason      string
	UserMessage string
	ReleaseType string
	IsEmergency bool
}

// CreateRelease performs one release action: the booking owner gives
// the requested dates back to the pool.  The parent booking row is
// locked first, which totally orders release creations (and therefore
// release numbers) per booking.  The ledger entry, its date rows, the
// summary rows and the summary counters are all written in the same
// transaction.
func (s *Service) CreateRelease(ctx context.Context, in CreateReleaseInput) (model.ReleaseDetail, error) {
	var created model.ReleaseDetail
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		b, err := s.store.GetBookingForUpdate(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if b.UserID != in.UserID {
			return ErrForbidden
		}
		if b.Status != model.BookingStatusApproved {
			return ErrBookingNotApproved
		}

		summary, err := s.store.ListReleasedDates(ctx, in.BookingID)
		if err != nil {
			return err
		}
		requested := NormalizeDates(in.Dates)
		if err := ValidateReleaseRequest(b, summary, requested, in.Reason); err != nil {
			return err
		}

		num, err := s.store.NextReleaseNumber(ctx, in.BookingID)
		if err != nil {
			return err
		}
		now := s.now()
		detail := model.ReleaseDetail{
			BookingID:     in.BookingID,
			UserID:        in.UserID,
			ReleaseNumber: num,
			Reason:        strings.TrimSpace(in.Reason),
			UserMessage:   strings.TrimSpace(in.UserMessage),
			ReleaseType:   strings.TrimSpace(in.ReleaseType),
			IsEmergency:   in.IsEmergency,
			Status:        model.ReleaseStatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		for _, d := range requested {
			detail.Dates = append(detail.Dates, model.ReleaseDetailDate{Date: d})
		}
		if err := s.store.CreateReleaseDetail(ctx, &detail); err != nil {
			return err
		}
		if err := s.store.InsertReleasedDates(ctx, in.BookingID, requested); err != nil {
			return err
		}

		total, hasActive := Summarize(append(summary, toReleasedDates(in.BookingID, requested)...))
		if err := s.store.UpdateReleaseSummary(ctx, in.BookingID, total, hasActive, now); err != nil {
			return err
		}
		created = detail
		return nil
	})
	if err != nil {
		return model.ReleaseDetail{}, err
	}

	s.notify(ctx, queue.ReleaseEvent{
		Type:          queue.ReleaseCreated,
		ReleaseID:     created.ID,
		ReleaseNumber: created.ReleaseNumber,
		BookingID:     created.BookingID,
		UserID:        created.UserID,
		Dates:         datesOf(created),
		Reason:        created.Reason,
		OccurredAt:    created.CreatedAt.Format(time.RFC3339),
	})
	return created, nil
}

// CancelRelease rescinds a whole ledger entry.  Only the owner or an
// admin may cancel, an entry can be cancelled once, and an entry with
// any claimed date cannot be cancelled at all since that would orphan
// the claimant's temporary booking.  The entry row is locked for the
// whole transaction and the summary delete refuses booked rows, so a
// claim committing between the check and the write fails the cancel
// instead of being silently rescinded.  Cancellation removes exactly
// the entry's own dates from the summary; active entries never
// overlap, so the subtraction cannot touch another entry's dates.
func (s *Service) CancelRelease(ctx context.Context, releaseID, actorID uint64, actorRole string) (model.ReleaseDetail, error) {
	var cancelled model.ReleaseDetail
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		d, err := s.store.GetReleaseDetailForUpdate(ctx, releaseID)
		if err != nil {
			return err
		}
		if d.UserID != actorID && actorRole != model.RoleAdmin {
			return ErrForbidden
		}
		if d.Status == model.ReleaseStatusCancelled {
			return ErrAlreadyCancelled
		}
		for _, dd := range d.Dates {
			if dd.IsBooked {
				return ErrHasBookedDates
			}
		}

		now := s.now()
		// The guarded delete goes first: it is the write that detects a
		// claim committed after the checks above.
		if err := s.store.DeleteReleasedDates(ctx, d.BookingID, datesOf(d)); err != nil {
			return err
		}
		if err := s.store.SetReleaseStatus(ctx, releaseID, model.ReleaseStatusCancelled, now); err != nil {
			return err
		}
		remaining, err := s.store.ListReleasedDates(ctx, d.BookingID)
		if err != nil {
			return err
		}
		total, hasActive := Summarize(remaining)
		if err := s.store.UpdateReleaseSummary(ctx, d.BookingID, total, hasActive, now); err != nil {
			return err
		}
		d.Status = model.ReleaseStatusCancelled
		d.UpdatedAt = now
		cancelled = d
		return nil
	})
	if err != nil {
		return model.ReleaseDetail{}, err
	}

	s.notify(ctx, queue.ReleaseEvent{
		Type:          queue.ReleaseCancelled,
		ReleaseID:     cancelled.ID,
		ReleaseNumber: cancelled.ReleaseNumber,
		BookingID:     cancelled.BookingID,
		UserID:        actorID,
		Dates:         datesOf(cancelled),
		OccurredAt:    cancelled.UpdatedAt.Format(time.RFC3339),
	})
	return cancelled, nil
}

// ClaimReleasedDate converts one available released day into a new
// temporary booking for the claiming user.  The availability listing
// is only a snapshot; the authoritative re-check is the conditional
// update on the summary row.  When that update matches no unbooked
// row, the claim lost a race (or the day was never available) and the
// whole transaction, including the just-created temporary booking,
// rolls back.
func (s *Service) ClaimReleasedDate(ctx context.Context, originalBookingID uint64, date string, claimUserID uint64, reason string) (model.Booking, error) {
	if !IsValidDate(date) {
		return model.Booking{}, &ValidationError{Msg: "invalid date: " + date}
	}
	var temp model.Booking
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		orig, err := s.store.GetBooking(ctx, originalBookingID)
		if err != nil {
			return err
		}
		if !orig.HasActiveReleases {
			return ErrNoActiveReleases
		}

		now := s.now()
		origID := orig.ID
		temp = model.Booking{
			UserID:             claimUserID,
			ComputerID:         orig.ComputerID,
			StartDate:          date,
			EndDate:            date,
			StartTime:          orig.StartTime,
			EndTime:            orig.EndTime,
			Status:             model.BookingStatusApproved,
			ProjectName:        placeholderProject(reason),
			Supervisor:         "-",
			IsTemporaryBooking: true,
			OriginalBookingID:  &origID,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.store.CreateBooking(ctx, &temp); err != nil {
			return err
		}

		ok, err := s.store.MarkSummaryDateBooked(ctx, origID, date, temp.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDateUnavailable
		}

		releaseID, err := s.store.MarkDetailDateBooked(ctx, origID, date, temp.ID, claimUserID, now)
		if err != nil {
			return err
		}
		d, err := s.store.GetReleaseDetail(ctx, releaseID)
		if err != nil {
			return err
		}
		if err := s.store.SetReleaseStatus(ctx, releaseID, d.DerivedStatus(), now); err != nil {
			return err
		}

		// The counters do not change on a claim, but the summary
		// timestamp is stamped on every mutation.
		remaining, err := s.store.ListReleasedDates(ctx, origID)
		if err != nil {
			return err
		}
		total, hasActive := Summarize(remaining)
		return s.store.UpdateReleaseSummary(ctx, origID, total, hasActive, now)
	})
	if err != nil {
		return model.Booking{}, err
	}

	s.notify(ctx, queue.ReleaseEvent{
		Type:          queue.ReleaseBooked,
		BookingID:     originalBookingID,
		TempBookingID: temp.ID,
		UserID:        claimUserID,
		Dates:         []string{date},
		Reason:        strings.TrimSpace(reason),
		OccurredAt:    temp.CreatedAt.Format(time.RFC3339),
	})
	return temp, nil
}

// ListAvailableSlots returns the currently claimable released days for
// a computer within the given window, ordered by date ascending.  The
// result is a point-in-time snapshot with no isolation against
// concurrent claims; ClaimReleasedDate re-validates.
func (s *Service) ListAvailableSlots(ctx context.Context, computerID uint64, startDate, endDate string) ([]AvailableSlot, error) {
	if startDate != "" && !IsValidDate(startDate) {
		return nil, &ValidationError{Msg: "invalid date: " + startDate}
	}
	if endDate != "" && !IsValidDate(endDate) {
		return nil, &ValidationError{Msg: "invalid date: " + endDate}
	}
	slots, err := s.store.FindAvailableSlots(ctx, computerID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	SortSlots(slots)
	return slots, nil
}

// ListByUser returns the caller's non-cancelled ledger entries with
// their booking context.
func (s *Service) ListByUser(ctx context.Context, userID uint64) ([]UserRelease, error) {
	return s.store.ListReleaseDetailsByUser(ctx, userID)
}

// ListAll returns the full ledger joined with claimant identity.  The
// handler restricts this to admins.
func (s *Service) ListAll(ctx context.Context) ([]AdminRelease, error) {
	return s.store.ListAllReleaseDetails(ctx)
}

func (s *Service) notify(ctx context.Context, ev queue.ReleaseEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishReleaseEvent(ctx, ev); err != nil {
		log.Printf("release: publish %s event failed: %v", ev.Type, err)
	}
}

func datesOf(d model.ReleaseDetail) []string {
	out := make([]string, 0, len(d.Dates))
	for _, dd := range d.Dates {
		out = append(out, dd.Date)
	}
	return out
}

func toReleasedDates(bookingID uint64, dates []string) []model.ReleasedDate {
	out := make([]model.ReleasedDate, 0, len(dates))
	for _, d := range dates {
		out = append(out, model.ReleasedDate{BookingID: bookingID, Date: d})
	}
	return out
}

// placeholderProject fills the temporary booking's project metadata.
// The fields must always be valid, never empty; the claim reason is
// the most useful thing to put there.
func placeholderProject(reason string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return "Temporary booking"
}
