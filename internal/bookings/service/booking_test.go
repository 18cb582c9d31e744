package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stazy/internal/bookings/repository/repotest"
	"stazy/internal/bookings/validator"
	"stazy/internal/catalog"
	"stazy/internal/lock"
	"stazy/internal/pricing"
	"stazy/pkg/config"
	apperrors "stazy/pkg/errors"
	"stazy/pkg/logger"
	"stazy/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHotelID = model.HotelID(12)

type mockCatalog struct {
	calls    atomic.Int32
	getHotel func(ctx context.Context, id model.HotelID) (*catalog.Hotel, error)
}

func (m *mockCatalog) GetHotel(ctx context.Context, id model.HotelID) (*catalog.Hotel, error) {
	m.calls.Add(1)
	return m.getHotel(ctx, id)
}

type mockPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
	// block holds each publish until ctx is done or block has passed.
	block time.Duration
}

func (m *mockPublisher) PublishBookingCreated(ctx context.Context, b *model.Booking) error {
	if m.block > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.block):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, b.ID)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

// countingLocker records how often a lease was attempted.
type countingLocker struct {
	*lock.MemoryLocker
	attempts atomic.Int32
}

func (c *countingLocker) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	c.attempts.Add(1)
	return c.MemoryLocker.TryAcquire(ctx, key, token, ttl)
}

type fixture struct {
	svc       BookingService
	repo      *repotest.Memory
	locker    *countingLocker
	locks     *lock.Manager
	catalog   *mockCatalog
	publisher *mockPublisher
	cfg       *config.Config
}

func seaView() *catalog.Hotel {
	return &catalog.Hotel{
		ID:          testHotelID,
		Name:        "Sea View",
		Slug:        "sea-view",
		Address:     "1 Beach Road",
		Stars:       4,
		NightlyRate: 500000,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.Discard()
	cfg := &config.Config{
		Log:                log,
		CreateTimeout:      5 * time.Second,
		MaxStayNights:      30,
		DefaultPhoneRegion: "US",
	}
	locker := &countingLocker{MemoryLocker: lock.NewMemoryLocker()}
	locks := lock.NewManager(locker, lock.Options{
		TTL:           5 * time.Second,
		WaitTimeout:   50 * time.Millisecond,
		RetryInterval: 5 * time.Millisecond,
	}, log)
	cat := &mockCatalog{
		getHotel: func(_ context.Context, id model.HotelID) (*catalog.Hotel, error) {
			if id != testHotelID {
				return nil, catalog.ErrHotelNotFound
			}
			return seaView(), nil
		},
	}
	repo := repotest.NewMemory()
	pub := &mockPublisher{}

	return &fixture{
		svc:       NewBookingService(repo, locks, cat, pub, validator.NewBookingValidator(log), cfg),
		repo:      repo,
		locker:    locker,
		locks:     locks,
		catalog:   cat,
		publisher: pub,
		cfg:       cfg,
	}
}

func request(checkIn, checkOut string) *model.CreateBookingRequest {
	return &model.CreateBookingRequest{
		UserID:   "user_1",
		HotelID:  testHotelID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		ContactDetails: model.ContactDetails{
			FullName: "Jane Doe",
			Email:    "jane@example.com",
			Phone:    "+14155550100",
		},
	}
}

func date(s string) time.Time {
	t, err := time.Parse(pricing.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func (f *fixture) seed(checkIn, checkOut string, status model.BookingStatus) string {
	return f.repo.Put(&model.Booking{
		UserID:   "someone_else",
		HotelID:  testHotelID,
		CheckIn:  date(checkIn),
		CheckOut: date(checkOut),
		Status:   status,
	})
}

func (f *fixture) assertNoLeases(t *testing.T, checkIn, checkOut string) {
	t.Helper()
	for _, key := range lock.HotelKeys(testHotelID, date(checkIn), date(checkOut)) {
		assert.False(t, f.locker.Held(key), "lease %s leaked", key)
	}
}

func requireCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, code, appErr.Code, "error: %v", err)
	assert.Equal(t, status, appErr.StatusCode())
}

func TestCreate_DerivesNightsAndPrice(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Create(context.Background(), request("2026-03-10", "2026-03-13"))
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, 3, b.Nights)
	assert.Equal(t, int64(1500000), b.TotalPrice)
	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, date("2026-03-10"), b.CheckIn)
	assert.Equal(t, date("2026-03-13"), b.CheckOut)
	assert.Equal(t, "Sea View", b.BookingSnapshot.Hotel.Name)
	assert.Equal(t, model.DefaultRoomName, b.BookingSnapshot.Room.Name)
	assert.Equal(t, int64(500000), b.BookingSnapshot.Room.PriceAtBooking)

	assert.Equal(t, 1, f.publisher.count())
	stored, err := f.repo.FindByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, stored.Notification.Published)
	f.assertNoLeases(t, "2026-03-10", "2026-03-13")
}

func TestCreate_RFC3339DatesUseCalendarDate(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Create(context.Background(), request("2026-03-10T23:30:00-05:00", "2026-03-12T01:00:00+09:00"))
	require.NoError(t, err)

	assert.Equal(t, date("2026-03-10"), b.CheckIn)
	assert.Equal(t, date("2026-03-12"), b.CheckOut)
	assert.Equal(t, 2, b.Nights)
}

func TestCreate_Overlap(t *testing.T) {
	tests := []struct {
		name     string
		checkIn  string
		checkOut string
		existing model.BookingStatus
		wantErr  string
	}{
		{"adjacent after", "2026-02-05", "2026-02-08", model.StatusPending, ""},
		{"adjacent before", "2026-01-01", "2026-02-01", model.StatusPending, ""},
		{"overlapping", "2026-02-04", "2026-02-06", model.StatusPending, apperrors.CodeAlreadyBooked},
		{"contained", "2026-02-02", "2026-02-03", model.StatusConfirmed, apperrors.CodeAlreadyBooked},
		{"enclosing", "2026-01-20", "2026-02-20", model.StatusPaid, apperrors.CodeAlreadyBooked},
		{"identical", "2026-02-01", "2026-02-05", model.StatusPending, apperrors.CodeAlreadyBooked},
		{"over cancelled", "2026-02-01", "2026-02-05", model.StatusCancelled, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed("2026-02-01", "2026-02-05", tt.existing)

			_, err := f.svc.Create(context.Background(), request(tt.checkIn, tt.checkOut))
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, 2, f.repo.Len())
			} else {
				requireCode(t, err, tt.wantErr, http.StatusConflict)
				assert.Equal(t, 1, f.repo.Len())
			}
			f.assertNoLeases(t, tt.checkIn, tt.checkOut)
		})
	}
}

func TestCreate_RejectsBadStayBeforeAnyLease(t *testing.T) {
	tests := []struct {
		name     string
		checkIn  string
		checkOut string
	}{
		{"zero nights", "2026-03-10", "2026-03-10"},
		{"inverted", "2026-03-13", "2026-03-10"},
		{"unparseable check-in", "10/03/2026", "2026-03-13"},
		{"unparseable check-out", "2026-03-10", "soon"},
		{"too long", "2026-01-01", "2026-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.Create(context.Background(), request(tt.checkIn, tt.checkOut))

			requireCode(t, err, apperrors.CodeValidation, http.StatusBadRequest)
			assert.Zero(t, f.locker.attempts.Load(), "no lease may be attempted")
			assert.Zero(t, f.catalog.calls.Load())
			assert.Zero(t, f.repo.Len())
		})
	}
}

func TestCreate_CatalogFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"unknown hotel", catalog.ErrHotelNotFound, apperrors.CodeNotFound, http.StatusBadRequest},
		{"catalog down", fmt.Errorf("%w: connection refused", catalog.ErrCatalogUnavailable), apperrors.CodeUpstreamUnavailable, http.StatusInternalServerError},
		{"invalid hotel", catalog.ErrInvalidHotel, apperrors.CodeUpstreamUnavailable, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.catalog.getHotel = func(context.Context, model.HotelID) (*catalog.Hotel, error) {
				return nil, tt.err
			}

			_, err := f.svc.Create(context.Background(), request("2026-03-10", "2026-03-13"))

			requireCode(t, err, tt.wantCode, tt.wantStatus)
			assert.Zero(t, f.locker.attempts.Load())
			assert.Zero(t, f.repo.Len())
		})
	}
}

func TestCreate_ValidationDetails(t *testing.T) {
	f := newFixture(t)
	req := request("2026-03-10", "2026-03-13")
	req.ContactDetails.Email = "not-an-email"

	_, err := f.svc.Create(context.Background(), req)

	requireCode(t, err, apperrors.CodeValidation, http.StatusBadRequest)
	fields, ok := apperrors.AsAppError(err).Details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "contactDetails.email")
}

func TestCreate_NormalizesContact(t *testing.T) {
	f := newFixture(t)
	req := request("2026-03-10", "2026-03-13")
	req.ContactDetails = model.ContactDetails{
		FullName: "  Jane   Doe ",
		Email:    " Jane@Example.COM ",
		Phone:    "(415) 555-0100",
	}

	b, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", b.ContactDetails.FullName)
	assert.Equal(t, "jane@example.com", b.ContactDetails.Email)
	assert.Equal(t, "+14155550100", b.ContactDetails.Phone)
}

func TestCreate_BusyLease(t *testing.T) {
	f := newFixture(t)
	keys := lock.HotelKeys(testHotelID, date("2026-03-10"), date("2026-03-13"))
	holder, err := f.locks.Acquire(context.Background(), keys...)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), request("2026-03-10", "2026-03-13"))

	requireCode(t, err, apperrors.CodeResourceBusy, http.StatusConflict)
	assert.Zero(t, f.repo.Len())
	require.NoError(t, holder.Release(context.Background()))
}

func TestCreate_ReleasesLeaseOnEveryOutcome(t *testing.T) {
	storeDown := errors.New("server selection timeout")

	tests := []struct {
		name    string
		prepare func(f *fixture)
		wantErr string
	}{
		{"success", func(*fixture) {}, ""},
		{"already booked", func(f *fixture) { f.seed("2026-03-11", "2026-03-12", model.StatusPending) }, apperrors.CodeAlreadyBooked},
		{"conflict query fails", func(f *fixture) { f.repo.Fail("FindOverlapping", storeDown) }, apperrors.CodeUpstreamUnavailable},
		{"insert fails", func(f *fixture) { f.repo.Fail("Create", storeDown) }, apperrors.CodeUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.prepare(f)

			_, err := f.svc.Create(context.Background(), request("2026-03-10", "2026-03-13"))
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, apperrors.AsAppError(err).Code)
			}

			f.assertNoLeases(t, "2026-03-10", "2026-03-13")
			h, err := f.locks.Acquire(context.Background(), lock.HotelKeys(testHotelID, date("2026-03-10"), date("2026-03-13"))...)
			require.NoError(t, err, "keys must be immediately acquirable")
			require.NoError(t, h.Release(context.Background()))
		})
	}
}

func TestCreate_PublishFailureKeepsBooking(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker unreachable")

	b, err := f.svc.Create(context.Background(), request("2026-03-10", "2026-03-13"))
	require.NoError(t, err)

	stored, err := f.repo.FindByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.False(t, stored.Notification.Published)
	assert.Equal(t, 1, stored.Notification.Attempts)
	assert.Contains(t, stored.Notification.LastError, "broker unreachable")
}

func TestCreate_SlowBrokerDoesNotHoldTheCaller(t *testing.T) {
	tests := []struct {
		name           string
		createTimeout  time.Duration
		publishTimeout time.Duration
		maxElapsed     time.Duration
	}{
		{"bounded by create deadline", 200 * time.Millisecond, time.Minute, 450 * time.Millisecond},
		{"bounded by publish timeout", 5 * time.Second, 100 * time.Millisecond, 400 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.cfg.CreateTimeout = tt.createTimeout
			f.cfg.PublishTimeout = tt.publishTimeout
			f.publisher.block = 3 * time.Second

			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			start := time.Now()
			b, err := f.svc.Create(ctx, request("2026-03-10", "2026-03-13"))
			elapsed := time.Since(start)

			require.NoError(t, err)
			assert.Less(t, elapsed, tt.maxElapsed)
			assert.Equal(t, 0, f.publisher.count())

			stored, err := f.repo.FindByID(context.Background(), b.ID)
			require.NoError(t, err)
			assert.False(t, stored.Notification.Published, "the outbox must still see the booking as unpublished")
		})
	}
}

func TestCreate_ConcurrentRequestsBookOnce(t *testing.T) {
	f := newFixture(t)
	// Widen the read-then-insert window so an unserialized writer would slip in.
	f.repo.OverlapDelay = 2 * time.Millisecond

	// Every interval contains the night of 2026-02-01; some span two months.
	intervals := [][2]string{
		{"2026-02-01", "2026-02-02"},
		{"2026-01-30", "2026-02-03"},
		{"2026-01-31", "2026-02-05"},
		{"2026-02-01", "2026-02-10"},
	}

	const workers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		errs      = make(chan error, workers)
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			iv := intervals[i%len(intervals)]
			req := request(iv[0], iv[1])
			req.UserID = fmt.Sprintf("user_%d", i)
			if _, err := f.svc.Create(context.Background(), req); err != nil {
				errs <- err
				return
			}
			successes.Add(1)
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, 1, f.repo.Len())
	for err := range errs {
		appErr := apperrors.AsAppError(err)
		assert.True(t, appErr.IsConflictClass(), "unexpected error: %v", err)
	}
	f.assertNoLeases(t, "2026-01-30", "2026-02-10")
}

func TestCreate_DifferentHotelsDoNotContend(t *testing.T) {
	f := newFixture(t)
	f.catalog.getHotel = func(_ context.Context, id model.HotelID) (*catalog.Hotel, error) {
		h := seaView()
		h.ID = id
		return h, nil
	}
	held, err := f.locks.Acquire(context.Background(), lock.HotelKeys(testHotelID, date("2026-03-10"), date("2026-03-13"))...)
	require.NoError(t, err)
	defer held.Release(context.Background())

	req := request("2026-03-10", "2026-03-13")
	req.HotelID = 99
	_, err = f.svc.Create(context.Background(), req)

	require.NoError(t, err)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	f.seed("2026-02-01", "2026-02-05", model.StatusConfirmed)
	f.seed("2026-02-06", "2026-02-08", model.StatusCancelled)
	ctx := context.Background()

	free, err := f.svc.Availability(ctx, testHotelID, "2026-02-05", "2026-02-09")
	require.NoError(t, err)
	assert.True(t, free.Available)
	assert.Zero(t, free.ConflictCount)

	taken, err := f.svc.Availability(ctx, testHotelID, "2026-02-03", "2026-02-07")
	require.NoError(t, err)
	assert.False(t, taken.Available)
	assert.Equal(t, 1, taken.ConflictCount)
	require.Len(t, taken.ConflictingDates, 1)
	assert.Equal(t, date("2026-02-01"), taken.ConflictingDates[0].CheckIn)
	assert.Equal(t, model.StatusConfirmed, taken.ConflictingDates[0].Status)

	_, err = f.svc.Availability(ctx, testHotelID, "2026-02-07", "2026-02-07")
	requireCode(t, err, apperrors.CodeValidation, http.StatusBadRequest)

	_, err = f.svc.Availability(ctx, 0, "2026-02-01", "2026-02-02")
	requireCode(t, err, apperrors.CodeInvalidInput, http.StatusBadRequest)

	assert.Zero(t, f.locker.attempts.Load(), "availability never takes a lease")
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("owner cancels and frees the dates", func(t *testing.T) {
		f := newFixture(t)
		b, err := f.svc.Create(ctx, request("2026-03-10", "2026-03-13"))
		require.NoError(t, err)

		cancelled, err := f.svc.Cancel(ctx, b.ID, "user_1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, cancelled.Status)

		avail, err := f.svc.Availability(ctx, testHotelID, "2026-03-10", "2026-03-13")
		require.NoError(t, err)
		assert.True(t, avail.Available)
	})

	t.Run("non-owner is refused", func(t *testing.T) {
		f := newFixture(t)
		id := f.seed("2026-03-10", "2026-03-13", model.StatusPending)

		_, err := f.svc.Cancel(ctx, id, "user_1")
		requireCode(t, err, apperrors.CodeForbidden, http.StatusForbidden)
	})

	t.Run("terminal booking cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		id := f.seed("2026-03-10", "2026-03-13", model.StatusPaid)

		_, err := f.svc.Cancel(ctx, id, "someone_else")
		requireCode(t, err, apperrors.CodeConflict, http.StatusConflict)
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Cancel(ctx, "0123456789abcdef01234567", "user_1")
		requireCode(t, err, apperrors.CodeNotFound, http.StatusNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Cancel(ctx, "nope", "user_1")
		requireCode(t, err, apperrors.CodeInvalidInput, http.StatusBadRequest)
	})
}

func TestListByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, iv := range [][2]string{{"2026-03-01", "2026-03-02"}, {"2026-03-05", "2026-03-06"}} {
		_, err := f.svc.Create(ctx, request(iv[0], iv[1]))
		require.NoError(t, err)
	}
	f.seed("2026-04-01", "2026-04-02", model.StatusPending)

	bookings, total, err := f.svc.ListByUser(ctx, "user_1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, bookings, 2)
	for _, b := range bookings {
		assert.Equal(t, "user_1", b.UserID)
	}

	_, _, err = f.svc.ListByUser(ctx, "", 10, 0)
	requireCode(t, err, apperrors.CodeUnauthorized, http.StatusUnauthorized)

	all, total, err := f.svc.GetAll(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)
}

func TestGetByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.seed("2026-03-10", "2026-03-13", model.StatusPending)

	b, err := f.svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, b.ID)

	_, err = f.svc.GetByID(ctx, "")
	requireCode(t, err, apperrors.CodeInvalidInput, http.StatusBadRequest)

	f.repo.Fail("FindByID", errors.New("socket closed"))
	_, err = f.svc.GetByID(ctx, id)
	requireCode(t, err, apperrors.CodeInternal, http.StatusInternalServerError)
}
