// Package repotest provides an in-memory BookingRepository for tests.
package repotest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	bookingserrors "stazy/internal/bookings/errors"
	"stazy/internal/bookings/repository"
	"stazy/pkg/model"
)

// Memory mirrors the Mongo repository's semantics on a map. Every method is
// atomic per call, like a single-document Mongo write.
type Memory struct {
	mu       sync.Mutex
	seq      int
	bookings map[string]*model.Booking

	// OverlapDelay widens the window between the conflict read and the insert.
	OverlapDelay time.Duration

	// Err, when set, is returned by the named method instead of running it.
	Err map[string]error

	Now func() time.Time
}

var _ repository.BookingRepository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		bookings: make(map[string]*model.Booking),
		Err:      make(map[string]error),
		Now:      time.Now,
	}
}

func (m *Memory) fail(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err[method]
}

// Fail makes method return err until cleared with Fail(method, nil).
func (m *Memory) Fail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Err, method)
		return
	}
	m.Err[method] = err
}

// Put stores b as is, assigning an id when it has none, and returns the id.
func (m *Memory) Put(b *model.Booking) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		m.seq++
		b.ID = fmt.Sprintf("%024x", m.seq)
	}
	m.bookings[b.ID] = clone(b)
	return b.ID
}

// Len is the number of stored bookings.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func (m *Memory) Create(ctx context.Context, b *model.Booking) error {
	if err := m.fail("Create"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := m.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.ID = ""
	m.Put(b)
	return nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if err := m.fail("FindByID"); err != nil {
		return nil, err
	}
	if len(id) != 24 {
		return nil, bookingserrors.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return clone(b), nil
}

func (m *Memory) FindAll(_ context.Context, limit int, offset int64) ([]*model.Booking, error) {
	if err := m.fail("FindAll"); err != nil {
		return nil, err
	}
	return m.page(func(*model.Booking) bool { return true }, limit, offset), nil
}

func (m *Memory) Count(_ context.Context) (int64, error) {
	if err := m.fail("Count"); err != nil {
		return 0, err
	}
	return int64(m.Len()), nil
}

func (m *Memory) FindByUser(_ context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	if err := m.fail("FindByUser"); err != nil {
		return nil, err
	}
	return m.page(func(b *model.Booking) bool { return b.UserID == userID }, limit, offset), nil
}

func (m *Memory) CountByUser(_ context.Context, userID string) (int64, error) {
	if err := m.fail("CountByUser"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.bookings {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) FindOverlapping(ctx context.Context, hotelID model.HotelID, checkIn, checkOut time.Time, statuses []model.BookingStatus, limit int) ([]*model.Booking, error) {
	if err := m.fail("FindOverlapping"); err != nil {
		return nil, err
	}
	if m.OverlapDelay > 0 {
		select {
		case <-time.After(m.OverlapDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.sorted(func(b *model.Booking) bool {
		return b.HotelID == hotelID &&
			b.CheckIn.Before(checkOut) &&
			b.CheckOut.After(checkIn) &&
			slices.Contains(statuses, b.Status)
	}) {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, clone(b))
	}
	return out, nil
}

func (m *Memory) Reconcile(_ context.Context, id string, u repository.SettlementUpdate) (repository.ReconcileResult, error) {
	if err := m.fail("Reconcile"); err != nil {
		return 0, err
	}
	if len(id) != 24 {
		return 0, bookingserrors.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return 0, bookingserrors.ErrNotFound
	}
	if !slices.Contains(model.ReconcilableStatuses, b.Status) {
		return repository.ReconcileSkipped, nil
	}

	p := model.Payment{ReconciledAt: u.At}
	if b.Payment != nil {
		p = *b.Payment
		if p.ReconciledAt.IsZero() || u.At.Before(p.ReconciledAt) {
			p.ReconciledAt = u.At
		}
	}
	p.Status = model.PaymentStatusPaid
	p.ExternalSessionID = u.SessionID
	if u.Amount != nil {
		p.Amount = u.Amount
	}
	if u.Currency != "" {
		p.Currency = u.Currency
	}
	b.Status = model.StatusConfirmed
	b.Payment = &p
	b.UpdatedAt = u.At
	return repository.Reconciled, nil
}

func (m *Memory) UpdateStatus(_ context.Context, id string, from []model.BookingStatus, to model.BookingStatus) (*model.Booking, error) {
	if err := m.fail("UpdateStatus"); err != nil {
		return nil, err
	}
	if len(id) != 24 {
		return nil, bookingserrors.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if !slices.Contains(from, b.Status) {
		return nil, bookingserrors.ErrStateConflict
	}
	b.Status = to
	b.UpdatedAt = m.Now().UTC()
	return clone(b), nil
}

func (m *Memory) FindUnpublished(_ context.Context, olderThan time.Time, maxAttempts int, limit int) ([]*model.Booking, error) {
	if err := m.fail("FindUnpublished"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.sorted(func(b *model.Booking) bool {
		return !b.Notification.Published &&
			b.Notification.Attempts < maxAttempts &&
			b.CreatedAt.Before(olderThan)
	}) {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, clone(b))
	}
	return out, nil
}

func (m *Memory) MarkPublished(_ context.Context, id string, at time.Time) error {
	if err := m.fail("MarkPublished"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	b.Notification.Published = true
	b.Notification.PublishedAt = &at
	b.Notification.LastError = ""
	return nil
}

func (m *Memory) MarkPublishFailed(_ context.Context, id string, cause string) error {
	if err := m.fail("MarkPublishFailed"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	b.Notification.Attempts++
	b.Notification.LastError = cause
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return m.fail("Ping")
}

// page returns bookings matching keep, newest first.
func (m *Memory) page(keep func(*model.Booking) bool, limit int, offset int64) []*model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(keep)
	slices.Reverse(all)
	if offset >= int64(len(all)) {
		return []*model.Booking{}
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]*model.Booking, 0, len(all))
	for _, b := range all {
		out = append(out, clone(b))
	}
	return out
}

// sorted returns matching bookings by insertion order. Callers hold m.mu.
func (m *Memory) sorted(keep func(*model.Booking) bool) []*model.Booking {
	var out []*model.Booking
	for _, b := range m.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b *model.Booking) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

func clone(b *model.Booking) *model.Booking {
	c := *b
	if b.Payment != nil {
		p := *b.Payment
		c.Payment = &p
	}
	if b.GuestCount != nil {
		g := *b.GuestCount
		c.GuestCount = &g
	}
	return &c
}
