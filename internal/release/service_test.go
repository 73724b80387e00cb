package release

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lab-computer-booking/internal/model"
	"github.com/iliyamo/lab-computer-booking/internal/queue"
)

// fakeStore is an in-memory Store used by the service tests.  A single
// mutex stands in for the database's row locks: every method takes it,
// so the conditional update in MarkSummaryDateBooked is atomic exactly
// like the SQL UPDATE it models.
type fakeStore struct {
	mu       sync.Mutex
	bookings map[uint64]model.Booking
	summary  map[uint64][]model.ReleasedDate
	details  map[uint64]model.ReleaseDetail

	nextBookingID uint64
	nextDetailID  uint64

	// afterDetailLock runs after GetReleaseDetailForUpdate returns,
	// letting a test squeeze a concurrent operation into the
	// check-to-write window of a cancellation.
	afterDetailLock func()
}

func newFakeStore(bookings ...model.Booking) *fakeStore {
	s := &fakeStore{
		bookings: make(map[uint64]model.Booking),
		summary:  make(map[uint64][]model.ReleasedDate),
		details:  make(map[uint64]model.ReleaseDetail),
	}
	for _, b := range bookings {
		s.bookings[b.ID] = b
		if b.ID > s.nextBookingID {
			s.nextBookingID = b.ID
		}
	}
	return s
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *fakeStore) GetBooking(_ context.Context, id uint64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, nil
}

func (s *fakeStore) GetBookingForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	return s.GetBooking(ctx, id)
}

func (s *fakeStore) CreateBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBookingID++
	b.ID = s.nextBookingID
	s.bookings[b.ID] = *b
	return nil
}

func (s *fakeStore) ListReleasedDates(_ context.Context, bookingID uint64) ([]model.ReleasedDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ReleasedDate(nil), s.summary[bookingID]...), nil
}

func (s *fakeStore) InsertReleasedDates(_ context.Context, bookingID uint64, dates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := make(map[string]bool)
	for _, r := range s.summary[bookingID] {
		existing[r.Date] = true
	}
	var dup []string
	for _, d := range dates {
		if existing[d] {
			dup = append(dup, d)
		}
	}
	if len(dup) > 0 {
		return &DuplicateReleaseError{DuplicateDates: dup}
	}
	for _, d := range dates {
		s.summary[bookingID] = append(s.summary[bookingID], model.ReleasedDate{BookingID: bookingID, Date: d})
	}
	return nil
}

// DeleteReleasedDates mirrors the SQL store's guarded delete: booked
// rows stay put and cause the whole call to fail.
func (s *fakeStore) DeleteReleasedDates(_ context.Context, bookingID uint64, dates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool, len(dates))
	for _, d := range dates {
		drop[d] = true
	}
	removed := 0
	var kept []model.ReleasedDate
	for _, r := range s.summary[bookingID] {
		if drop[r.Date] && !r.IsBooked {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	if removed != len(dates) {
		return ErrHasBookedDates
	}
	s.summary[bookingID] = kept
	return nil
}

func (s *fakeStore) UpdateReleaseSummary(_ context.Context, bookingID uint64, total int, hasActive bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return ErrBookingNotFound
	}
	b.TotalReleasedDays = total
	b.HasActiveReleases = hasActive
	b.ReleaseUpdatedAt = &at
	s.bookings[bookingID] = b
	return nil
}

func (s *fakeStore) MarkSummaryDateBooked(_ context.Context, bookingID uint64, date string, tempBookingID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.summary[bookingID]
	for i := range rows {
		if rows[i].Date == date && !rows[i].IsBooked {
			rows[i].IsBooked = true
			id := tempBookingID
			rows[i].TempBookingID = &id
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) NextReleaseNumber(_ context.Context, bookingID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, d := range s.details {
		if d.BookingID == bookingID && d.ReleaseNumber > max {
			max = d.ReleaseNumber
		}
	}
	return max + 1, nil
}

func (s *fakeStore) CreateReleaseDetail(_ context.Context, d *model.ReleaseDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDetailID++
	d.ID = s.nextDetailID
	for i := range d.Dates {
		d.Dates[i].ReleaseID = d.ID
	}
	s.details[d.ID] = *d
	return nil
}

func (s *fakeStore) GetReleaseDetail(_ context.Context, id uint64) (model.ReleaseDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[id]
	if !ok {
		return model.ReleaseDetail{}, ErrReleaseNotFound
	}
	d.Dates = append([]model.ReleaseDetailDate(nil), d.Dates...)
	return d, nil
}

func (s *fakeStore) GetReleaseDetailForUpdate(ctx context.Context, id uint64) (model.ReleaseDetail, error) {
	d, err := s.GetReleaseDetail(ctx, id)
	if err == nil && s.afterDetailLock != nil {
		s.afterDetailLock()
	}
	return d, err
}

func (s *fakeStore) SetReleaseStatus(_ context.Context, id uint64, status string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[id]
	if !ok {
		return ErrReleaseNotFound
	}
	d.Status = status
	d.UpdatedAt = at
	s.details[id] = d
	return nil
}

func (s *fakeStore) MarkDetailDateBooked(_ context.Context, bookingID uint64, date string, tempBookingID, bookedBy uint64, at time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range s.details {
		if d.BookingID != bookingID || d.Status == model.ReleaseStatusCancelled {
			continue
		}
		for i := range d.Dates {
			if d.Dates[i].Date == date && !d.Dates[i].IsBooked {
				d.Dates[i].IsBooked = true
				tb, by, ts := tempBookingID, bookedBy, at
				d.Dates[i].TempBookingID = &tb
				d.Dates[i].BookedBy = &by
				d.Dates[i].BookedAt = &ts
				s.details[id] = d
				return id, nil
			}
		}
	}
	return 0, ErrDateUnavailable
}

func (s *fakeStore) ListReleaseDetailsByUser(_ context.Context, userID uint64) ([]UserRelease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []UserRelease
	for _, d := range s.details {
		if d.UserID != userID || d.Status == model.ReleaseStatusCancelled {
			continue
		}
		out = append(out, UserRelease{Detail: d, Booking: s.bookings[d.BookingID]})
	}
	return out, nil
}

func (s *fakeStore) ListAllReleaseDetails(_ context.Context) ([]AdminRelease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AdminRelease
	for _, d := range s.details {
		out = append(out, AdminRelease{UserRelease: UserRelease{Detail: d, Booking: s.bookings[d.BookingID]}})
	}
	return out, nil
}

func (s *fakeStore) FindAvailableSlots(_ context.Context, computerID uint64, startDate, endDate string) ([]AvailableSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AvailableSlot
	for _, b := range s.bookings {
		if b.ComputerID != computerID {
			continue
		}
		for _, r := range s.summary[b.ID] {
			if r.IsBooked {
				continue
			}
			if startDate != "" && r.Date < startDate {
				continue
			}
			if endDate != "" && r.Date > endDate {
				continue
			}
			out = append(out, AvailableSlot{
				Date:              r.Date,
				StartTime:         b.StartTime,
				EndTime:           b.EndTime,
				OriginalBookingID: b.ID,
				ComputerID:        b.ComputerID,
			})
		}
	}
	return out, nil
}

// fakeNotifier records published events; Fail makes every publish
// return an error to exercise the best-effort path.
type fakeNotifier struct {
	mu     sync.Mutex
	events []queue.ReleaseEvent
	Fail   bool
}

func (n *fakeNotifier) PublishReleaseEvent(_ context.Context, ev queue.ReleaseEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Fail {
		return errors.New("broker down")
	}
	n.events = append(n.events, ev)
	return nil
}

func (n *fakeNotifier) published() []queue.ReleaseEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]queue.ReleaseEvent(nil), n.events...)
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func approvedBooking(id, userID uint64) model.Booking {
	return model.Booking{
		ID:         id,
		UserID:     userID,
		ComputerID: 10,
		StartDate:  "2025-06-10",
		EndDate:    "2025-06-20",
		StartTime:  "09:00",
		EndTime:    "17:00",
		Status:     model.BookingStatusApproved,
	}
}

func newTestService(store *fakeStore) (*Service, *fakeNotifier) {
	n := &fakeNotifier{}
	svc := NewService(store, n, WithNow(func() time.Time { return testNow }))
	return svc, n
}

// createRelease is a shorthand for the common case where only the
// required input fields matter.
func createRelease(ctx context.Context, svc *Service, bookingID, userID uint64, dates []string, reason string) (model.ReleaseDetail, error) {
	return svc.CreateRelease(ctx, CreateReleaseInput{
		BookingID: bookingID,
		UserID:    userID,
		Dates:     dates,
		Reason:    reason,
	})
}

func TestService_CreateRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("creates ledger entry and summary rows", func(t *testing.T) {
		store := newFakeStore(approvedBooking(1, 100))
		svc, notifier := newTestService(store)

		d, err := createRelease(ctx, svc, 1, 100, []string{"2025-06-12", "2025-06-11", "2025-06-11"}, "away for exams")
		require.NoError(t, err)

		assert.Equal(t, 1, d.ReleaseNumber)
		assert.Equal(t, model.ReleaseStatusActive, d.Status)
		require.Len(t, d.Dates, 2)
		assert.Equal(t, "2025-06-11", d.Dates[0].Date)
		assert.Equal(t, "2025-06-12", d.Dates[1].Date)

		b, _ := store.GetBooking(ctx, 1)
		assert.True(t, b.HasActiveReleases)
		assert.Equal(t, 2, b.TotalReleasedDays)
		require.NotNil(t, b.ReleaseUpdatedAt)
		assert.Equal(t, testNow, *b.ReleaseUpdatedAt)

		evs := notifier.published()
		require.Len(t, evs, 1)
		assert.Equal(t, queue.ReleaseCreated, evs[0].Type)
		assert.Equal(t, []string{"2025-06-11", "2025-06-12"}, evs[0].Dates)
	})

	t.Run("release numbers increment per booking", func(t *testing.T) {
		store := newFakeStore(approvedBooking(1, 100))
		svc, _ := newTestService(store)

		d1, err := createRelease(ctx, svc, 1, 100, []string{"2025-06-11"}, "r1")
		require.NoError(t, err)
		d2, err := createRelease(ctx, svc, 1, 100, []string{"2025-06-12"}, "r2")
		require.NoError(t, err)
		assert.Equal(t, 1, d1.ReleaseNumber)
		assert.Equal(t, 2, d2.ReleaseNumber)

		b, _ := store.GetBooking(ctx, 1)
		assert.Equal(t, 2, b.TotalReleasedDays)
	})

	t.Run("only the owner may release", func(t *testing.T) {
		store := newFakeStore(approvedBooking(1, 100))
		svc, _ := newTestService(store)

		_, err := createRelease(ctx, svc, 1, 200, []string{"2025-06-11"}, "not mine")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("only approved bookings may release", func(t *testing.T) {
		b := approvedBooking(1, 100)
		b.Status = model.BookingStatusPending
		store := newFakeStore(b)
		svc, _ := newTestService(store)

		_, err := createRelease(ctx, svc, 1, 100, []string{"2025-06-11"}, "too early")
		assert.ErrorIs(t, err, ErrBookingNotApproved)
	})

	t.Run("unknown booking", func(t *testing.T) {
		store := newFakeStore()
		svc, _ := newTestService(store)

		_, err := createRelease(ctx, svc, 9, 100, []string{"2025-06-11"}, "x")
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("dates outside the booking window", func(t *testing.T) {
		store := newFakeStore(approvedBooking(1, 100))
		svc, _ := newTestService(store)

		_, err := createRelease(ctx, svc, 1, 100, []string{"2025-06-09"}, "x")
		var oor *OutOfRangeError
		require.True(t, errors.As(err, &oor))
		assert.Equal(t, []string{"2025-06-09"}, oor.InvalidDates)
	})

	t.Run("overlapping an active release is rejected", func(t *testing.T) {
		store := newFakeStore(approvedBooking(1, 100))
		svc, _ := newTestService(store)

		_, err := createRelease(ctx, svc, 1, 100, []string{"2025-06-11", "2025-06-12"}, "first")
		require.NoError(t, err)
		_, err = createRelease(ctx, svc, 1, 100, []string{"2025-06-12", "2025-06-13"}, "second")
		var dup *DuplicateReleaseError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, []string{"2025-06-12"}, dup.DuplicateDates)
	})

	t.Run("optional metadata is stored on the entry", func(t *testing.T) {
		store := newFakeStore(approvedBooking(1, 100))
		svc, _ := newTestService(store)

		d, err := svc.CreateRelease(ctx, CreateReleaseInput{
			BookingID:   1,
			UserID:      100,
			Dates:       []string{"2025-06-11"},
			Reason:      "conference",
			UserMessage: " machine is free all day ",
			ReleaseType: "planned",
			IsEmergency: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "machine is free all day", d.UserMessage)
		assert.Equal(t, "planned", d.ReleaseType)
		assert.True(t, d.IsEmergency)
	})

	t.Run("notifier failure does not fail the release", func(t *testing.T) {
		store := newFakeStore(approvedBooking(1, 100))
		n := &fakeNotifier{Fail: true}
		svc := NewService(store, n, WithNow(func() time.Time { return testNow }))

		_, err := createRelease(ctx, svc, 1, 100, []string{"2025-06-11"}, "x")
		assert.NoError(t, err)
	})
}

func TestService_CancelRelease(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *fakeStore, *fakeNotifier, model.ReleaseDetail) {
		t.Helper()
		store := newFakeStore(approvedBooking(1, 100))
		svc, notifier := newTestService(store)
		d, err := createRelease(ctx, svc, 1, 100, []string{"2025-06-11", "2025-06-12"}, "away")
		require.NoError(t, err)
		return svc, store, notifier, d
	}

	t.Run("owner cancels and summary is restored", func(t *testing.T) {
		svc, store, notifier, d := setup(t)

		got, err := svc.CancelRelease(ctx, d.ID, 100, model.RoleStudent)
		require.NoError(t, err)
		assert.Equal(t, model.ReleaseStatusCancelled, got.Status)

		b, _ := store.GetBooking(ctx, 1)
		assert.False(t, b.HasActiveReleases)
		assert.Zero(t, b.TotalReleasedDays)

		evs := notifier.published()
		require.Len(t, evs, 2)
		assert.Equal(t, queue.ReleaseCancelled, evs[1].Type)
	})

	t.Run("admin may cancel another user's release", func(t *testing.T) {
		svc, _, _, d := setup(t)

		_, err := svc.CancelRelease(ctx, d.ID, 999, model.RoleAdmin)
		assert.NoError(t, err)
	})

	t.Run("other users may not", func(t *testing.T) {
		svc, _, _, d := setup(t)

		_, err := svc.CancelRelease(ctx, d.ID, 999, model.RoleStudent)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("cancel is not repeatable", func(t *testing.T) {
		svc, _, _, d := setup(t)

		_, err := svc.CancelRelease(ctx, d.ID, 100, model.RoleStudent)
		require.NoError(t, err)
		_, err = svc.CancelRelease(ctx, d.ID, 100, model.RoleStudent)
		assert.ErrorIs(t, err, ErrAlreadyCancelled)
	})

	t.Run("claimed dates block cancellation", func(t *testing.T) {
		svc, _, _, d := setup(t)

		_, err := svc.ClaimReleasedDate(ctx, 1, "2025-06-11", 200, "need a machine")
		require.NoError(t, err)
		_, err = svc.CancelRelease(ctx, d.ID, 100, model.RoleStudent)
		assert.ErrorIs(t, err, ErrHasBookedDates)
	})

	t.Run("claim landing mid-cancellation aborts the cancel", func(t *testing.T) {
		svc, store, _, d := setup(t)

		// Complete a claim between the cancellation's booked-date
		// check and its summary delete.
		var temp model.Booking
		store.afterDetailLock = func() {
			store.afterDetailLock = nil
			var err error
			temp, err = svc.ClaimReleasedDate(ctx, 1, "2025-06-12", 200, "sneaking in")
			require.NoError(t, err)
		}

		_, err := svc.CancelRelease(ctx, d.ID, 100, model.RoleStudent)
		assert.ErrorIs(t, err, ErrHasBookedDates)

		// The claimant's day survives, still booked and pointing at
		// the temporary booking.
		rows, _ := store.ListReleasedDates(ctx, 1)
		require.Len(t, rows, 2)
		var claimed *model.ReleasedDate
		for i := range rows {
			if rows[i].Date == "2025-06-12" {
				claimed = &rows[i]
			}
		}
		require.NotNil(t, claimed)
		assert.True(t, claimed.IsBooked)
		require.NotNil(t, claimed.TempBookingID)
		assert.Equal(t, temp.ID, *claimed.TempBookingID)

		// The entry was not cancelled.
		got, err := store.GetReleaseDetail(ctx, d.ID)
		require.NoError(t, err)
		assert.NotEqual(t, model.ReleaseStatusCancelled, got.Status)
	})

	t.Run("cancel removes only the entry's own dates", func(t *testing.T) {
		svc, store, _, d1 := setup(t)

		d2, err := createRelease(ctx, svc, 1, 100, []string{"2025-06-15"}, "more days")
		require.NoError(t, err)

		_, err = svc.CancelRelease(ctx, d1.ID, 100, model.RoleStudent)
		require.NoError(t, err)

		remaining, _ := store.ListReleasedDates(ctx, 1)
		require.Len(t, remaining, 1)
		assert.Equal(t, "2025-06-15", remaining[0].Date)

		b, _ := store.GetBooking(ctx, 1)
		assert.True(t, b.HasActiveReleases)
		assert.Equal(t, 1, b.TotalReleasedDays)

		got, err := store.GetReleaseDetail(ctx, d2.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReleaseStatusActive, got.Status)
	})

	t.Run("unknown release", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		_, err := svc.CancelRelease(ctx, 424242, 100, model.RoleStudent)
		assert.ErrorIs(t, err, ErrReleaseNotFound)
	})
}

func TestService_ClaimReleasedDate(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *fakeStore, *fakeNotifier, model.ReleaseDetail) {
		t.Helper()
		store := newFakeStore(approvedBooking(1, 100))
		svc, notifier := newTestService(store)
		d, err := createRelease(ctx, svc, 1, 100, []string{"2025-06-11", "2025-06-12"}, "away")
		require.NoError(t, err)
		return svc, store, notifier, d
	}

	t.Run("creates an approved temporary booking for the day", func(t *testing.T) {
		svc, store, notifier, d := setup(t)

		temp, err := svc.ClaimReleasedDate(ctx, 1, "2025-06-11", 200, "urgent deadline")
		require.NoError(t, err)

		assert.Equal(t, uint64(200), temp.UserID)
		assert.Equal(t, uint64(10), temp.ComputerID)
		assert.Equal(t, "2025-06-11", temp.StartDate)
		assert.Equal(t, "2025-06-11", temp.EndDate)
		assert.Equal(t, "09:00", temp.StartTime)
		assert.Equal(t, "17:00", temp.EndTime)
		assert.Equal(t, model.BookingStatusApproved, temp.Status)
		assert.True(t, temp.IsTemporaryBooking)
		require.NotNil(t, temp.OriginalBookingID)
		assert.Equal(t, uint64(1), *temp.OriginalBookingID)
		assert.Equal(t, "urgent deadline", temp.ProjectName)

		// Summary row flipped to booked, pointing at the temp booking.
		rows, _ := store.ListReleasedDates(ctx, 1)
		var claimed *model.ReleasedDate
		for i := range rows {
			if rows[i].Date == "2025-06-11" {
				claimed = &rows[i]
			}
		}
		require.NotNil(t, claimed)
		assert.True(t, claimed.IsBooked)
		require.NotNil(t, claimed.TempBookingID)
		assert.Equal(t, temp.ID, *claimed.TempBookingID)

		// One of two dates booked -> partially booked.
		got, _ := store.GetReleaseDetail(ctx, d.ID)
		assert.Equal(t, model.ReleaseStatusPartiallyBooked, got.Status)

		// Counters unchanged by a claim.
		b, _ := store.GetBooking(ctx, 1)
		assert.Equal(t, 2, b.TotalReleasedDays)
		assert.True(t, b.HasActiveReleases)

		evs := notifier.published()
		require.Len(t, evs, 2)
		assert.Equal(t, queue.ReleaseBooked, evs[1].Type)
		assert.Equal(t, temp.ID, evs[1].TempBookingID)
	})

	t.Run("claiming every date marks the entry fully booked", func(t *testing.T) {
		svc, store, _, d := setup(t)

		_, err := svc.ClaimReleasedDate(ctx, 1, "2025-06-11", 200, "")
		require.NoError(t, err)
		_, err = svc.ClaimReleasedDate(ctx, 1, "2025-06-12", 201, "")
		require.NoError(t, err)

		got, _ := store.GetReleaseDetail(ctx, d.ID)
		assert.Equal(t, model.ReleaseStatusFullyBooked, got.Status)
	})

	t.Run("blank reason gets a placeholder project name", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		temp, err := svc.ClaimReleasedDate(ctx, 1, "2025-06-11", 200, "  ")
		require.NoError(t, err)
		assert.Equal(t, "Temporary booking", temp.ProjectName)
	})

	t.Run("malformed date", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		_, err := svc.ClaimReleasedDate(ctx, 1, "11.06.2025", 200, "x")
		var ve *ValidationError
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("booking without active releases", func(t *testing.T) {
		store := newFakeStore(approvedBooking(2, 100))
		svc, _ := newTestService(store)

		_, err := svc.ClaimReleasedDate(ctx, 2, "2025-06-11", 200, "x")
		assert.ErrorIs(t, err, ErrNoActiveReleases)
	})

	t.Run("already claimed date is unavailable", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		_, err := svc.ClaimReleasedDate(ctx, 1, "2025-06-11", 200, "first")
		require.NoError(t, err)
		_, err = svc.ClaimReleasedDate(ctx, 1, "2025-06-11", 201, "second")
		assert.ErrorIs(t, err, ErrDateUnavailable)
	})

	t.Run("never released date is unavailable", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		_, err := svc.ClaimReleasedDate(ctx, 1, "2025-06-13", 200, "x")
		assert.ErrorIs(t, err, ErrDateUnavailable)
	})

	t.Run("concurrent claims on one date have exactly one winner", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		const claimers = 8
		errs := make(chan error, claimers)
		var wg sync.WaitGroup
		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func(userID uint64) {
				defer wg.Done()
				_, err := svc.ClaimReleasedDate(ctx, 1, "2025-06-12", userID, "race")
				errs <- err
			}(uint64(200 + i))
		}
		wg.Wait()
		close(errs)

		won, lost := 0, 0
		for err := range errs {
			switch {
			case err == nil:
				won++
			case errors.Is(err, ErrDateUnavailable):
				lost++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, won)
		assert.Equal(t, claimers-1, lost)
	})
}

func TestService_ListAvailableSlots(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore(approvedBooking(1, 100))
	svc, _ := newTestService(store)
	_, err := createRelease(ctx, svc, 1, 100, []string{"2025-06-15", "2025-06-11", "2025-06-13"}, "away")
	require.NoError(t, err)

	t.Run("sorted ascending", func(t *testing.T) {
		slots, err := svc.ListAvailableSlots(ctx, 10, "", "")
		require.NoError(t, err)
		require.Len(t, slots, 3)
		assert.Equal(t, "2025-06-11", slots[0].Date)
		assert.Equal(t, "2025-06-13", slots[1].Date)
		assert.Equal(t, "2025-06-15", slots[2].Date)
	})

	t.Run("window bounds are inclusive", func(t *testing.T) {
		slots, err := svc.ListAvailableSlots(ctx, 10, "2025-06-11", "2025-06-13")
		require.NoError(t, err)
		require.Len(t, slots, 2)
		assert.Equal(t, "2025-06-11", slots[0].Date)
		assert.Equal(t, "2025-06-13", slots[1].Date)
	})

	t.Run("repeated queries return the same snapshot", func(t *testing.T) {
		first, err := svc.ListAvailableSlots(ctx, 10, "", "")
		require.NoError(t, err)
		second, err := svc.ListAvailableSlots(ctx, 10, "", "")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("claimed dates disappear", func(t *testing.T) {
		_, err := svc.ClaimReleasedDate(ctx, 1, "2025-06-13", 200, "x")
		require.NoError(t, err)
		slots, err := svc.ListAvailableSlots(ctx, 10, "", "")
		require.NoError(t, err)
		require.Len(t, slots, 2)
	})

	t.Run("malformed bound", func(t *testing.T) {
		_, err := svc.ListAvailableSlots(ctx, 10, "2025/06/11", "")
		var ve *ValidationError
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("unknown computer yields empty", func(t *testing.T) {
		slots, err := svc.ListAvailableSlots(ctx, 77, "", "")
		require.NoError(t, err)
		assert.Empty(t, slots)
	})
}
