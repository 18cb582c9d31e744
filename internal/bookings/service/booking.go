package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingserrors "stazy/internal/bookings/errors"
	"stazy/internal/bookings/repository"
	"stazy/internal/bookings/validator"
	"stazy/internal/catalog"
	"stazy/internal/events"
	"stazy/internal/lock"
	"stazy/internal/pricing"
	"stazy/pkg/config"
	apperrors "stazy/pkg/errors"
	"stazy/pkg/model"
	"stazy/pkg/sanitizer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("stazy/internal/bookings/service")

type BookingService interface {
	Create(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error)
	Availability(ctx context.Context, hotelID model.HotelID, checkIn, checkOut string) (*model.Availability, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
	Cancel(ctx context.Context, id, userID string) (*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	detector  *ConflictDetector
	locks     *lock.Manager
	catalog   catalog.Client
	publisher events.Publisher
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	locks *lock.Manager,
	catalogClient catalog.Client,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		detector:  NewConflictDetector(repo),
		locks:     locks,
		catalog:   catalogClient,
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create books a stay. The catalog call runs before any lease is taken and
// the event is published after the leases are gone; only the conflict check
// and the insert run under the hotel's leases.
func (s *bookingService) Create(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "bookings.create", trace.WithAttributes(
		attribute.Int64("hotel.id", int64(req.HotelID)),
		attribute.String("user.id", req.UserID),
	))
	defer span.End()

	if s.cfg.CreateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CreateTimeout)
		defer cancel()
	}

	booking, err := s.create(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.id", booking.ID))

	s.publishCreated(ctx, booking)
	return booking, nil
}

func (s *bookingService) create(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error) {
	log := s.cfg.Log.WithContext(ctx)

	req.ContactDetails = sanitizer.SanitizeContact(req.ContactDetails, s.cfg.DefaultPhoneRegion)
	if err := s.validator.ValidateCreate(req); err != nil {
		log.Warn("Booking validation failed", "error", err)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, apperrors.Validation("Booking validation failed", verrs.Details())
		}
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	checkIn, checkOut, _, err := parseStay(req.CheckIn, req.CheckOut, s.cfg.MaxStayNights)
	if err != nil {
		log.Warn("Rejected stay dates", "check_in", req.CheckIn, "check_out", req.CheckOut, "error", err)
		return nil, err
	}

	hotel, err := s.resolveHotel(ctx, req.HotelID)
	if err != nil {
		return nil, err
	}

	quote := pricing.NewQuote(checkIn, checkOut, hotel.NightlyRate)
	booking := &model.Booking{
		UserID:          req.UserID,
		HotelID:         req.HotelID,
		CheckIn:         quote.CheckIn,
		CheckOut:        quote.CheckOut,
		Nights:          quote.Nights,
		TotalPrice:      quote.Total,
		Status:          model.StatusPending,
		ContactDetails:  req.ContactDetails,
		GuestCount:      req.GuestCount,
		BookingSnapshot: hotel.Snapshot(),
	}

	if err := s.reserve(ctx, booking); err != nil {
		return nil, err
	}

	log.Info("Booking created successfully",
		"id", booking.ID,
		"hotel_id", booking.HotelID,
		"user_id", booking.UserID,
		"check_in", booking.CheckIn.Format(pricing.DateLayout),
		"check_out", booking.CheckOut.Format(pricing.DateLayout),
		"nights", booking.Nights,
		"total_price", booking.TotalPrice,
	)
	return booking, nil
}

func (s *bookingService) resolveHotel(ctx context.Context, hotelID model.HotelID) (*catalog.Hotel, error) {
	hotel, err := s.catalog.GetHotel(ctx, hotelID)
	if err == nil {
		return hotel, nil
	}

	s.cfg.Log.WithContext(ctx).Warn("Catalog lookup failed", "hotel_id", hotelID, "error", err)
	switch {
	case errors.Is(err, catalog.ErrHotelNotFound):
		return nil, apperrors.UnknownReference("Hotel", hotelID.String())
	default:
		return nil, apperrors.UpstreamUnavailable("Catalog service", err)
	}
}

// reserve holds the hotel's leases across the re-verified conflict check and
// the insert. The leases are released on every return path.
func (s *bookingService) reserve(ctx context.Context, b *model.Booking) error {
	log := s.cfg.Log.WithContext(ctx)

	handle, err := s.locks.Acquire(ctx, lock.HotelKeys(b.HotelID, b.CheckIn, b.CheckOut)...)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			log.Info("Booking lease busy", "hotel_id", b.HotelID, "error", err)
			return apperrors.ResourceBusy("These dates are being booked by another request, please try again")
		}
		log.Error("Failed to acquire booking lease", "hotel_id", b.HotelID, "error", err)
		return apperrors.UpstreamUnavailable("Lock service", err)
	}
	defer func() {
		if releaseErr := handle.Release(ctx); releaseErr != nil {
			log.Warn("Failed to release booking lease", "keys", handle.Keys(), "error", releaseErr)
		}
	}()

	conflicts, err := s.detector.FindConflicts(ctx, b.HotelID, b.CheckIn, b.CheckOut, 1)
	if err != nil {
		log.Error("Failed to check existing bookings", "hotel_id", b.HotelID, "error", err)
		return apperrors.UpstreamUnavailable("Booking store", err)
	}
	if len(conflicts) > 0 {
		existing := conflicts[0]
		log.Info("Booking rejected, dates already taken",
			"hotel_id", b.HotelID,
			"conflicting_id", existing.ID,
		)
		return apperrors.AlreadyBooked("The selected dates are not available for this hotel").
			WithDetails(map[string]any{
				"checkIn":  existing.CheckIn.Format(pricing.DateLayout),
				"checkOut": existing.CheckOut.Format(pricing.DateLayout),
			})
	}

	if err := s.repo.Create(ctx, b); err != nil {
		log.Error("Failed to persist booking", "hotel_id", b.HotelID, "error", err)
		return apperrors.UpstreamUnavailable("Booking store", err)
	}
	return nil
}

// publishCreated never fails the request. An unpublished booking stays
// flagged and the outbox dispatcher retries it. The publish survives a caller
// that went away but never outlives PublishTimeout or the create deadline.
func (s *bookingService) publishCreated(ctx context.Context, b *model.Booking) {
	log := s.cfg.Log.WithContext(ctx)

	budget := s.publishBudget(ctx)
	if budget <= 0 {
		log.Warn("No time left to publish booking.created, leaving it to the outbox", "id", b.ID)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget)
	defer cancel()

	if err := s.publisher.PublishBookingCreated(ctx, b); err != nil {
		log.Warn("Failed to publish booking.created, leaving it to the outbox", "id", b.ID, "error", err)
		if ctx.Err() != nil {
			return
		}
		if markErr := s.repo.MarkPublishFailed(ctx, b.ID, err.Error()); markErr != nil {
			log.Error("Failed to record publish failure", "id", b.ID, "error", markErr)
		}
		return
	}

	now := s.now().UTC()
	if err := s.repo.MarkPublished(ctx, b.ID, now); err != nil {
		log.Warn("Failed to mark booking as published, event may be sent twice", "id", b.ID, "error", err)
		return
	}
	b.Notification.Published = true
	b.Notification.PublishedAt = &now
}

func (s *bookingService) publishBudget(ctx context.Context) time.Duration {
	budget := s.cfg.PublishTimeout
	if budget <= 0 {
		budget = config.DefaultPublishTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		budget = min(budget, time.Until(deadline))
	}
	return budget
}

func (s *bookingService) Availability(ctx context.Context, hotelID model.HotelID, checkIn, checkOut string) (*model.Availability, error) {
	if hotelID <= 0 {
		return nil, apperrors.InvalidInput("hotelId must be a positive integer")
	}
	in, out, _, err := parseStay(checkIn, checkOut, s.cfg.MaxStayNights)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.detector.FindConflicts(ctx, hotelID, in, out, maxConflictsReported)
	if err != nil {
		s.cfg.Log.WithContext(ctx).Error("Failed to check availability", "hotel_id", hotelID, "error", err)
		return nil, apperrors.UpstreamUnavailable("Booking store", err)
	}

	if len(conflicts) == 0 {
		return &model.Availability{
			Available: true,
			Message:   "Hotel is available for the selected dates",
		}, nil
	}

	dates := make([]model.DateRange, 0, len(conflicts))
	for _, c := range conflicts {
		dates = append(dates, model.DateRange{CheckIn: c.CheckIn, CheckOut: c.CheckOut, Status: c.Status})
	}
	return &model.Availability{
		Available:        false,
		Message:          "Hotel is already booked for the selected dates",
		ConflictCount:    len(conflicts),
		ConflictingDates: dates,
	}, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateLookupError(id, err, "Failed to retrieve booking")
	}
	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.Unauthorized("User identity is required")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByUser(ctx, userID)
		if err != nil {
			s.cfg.Log.Error("Failed to count user bookings", "user_id", userID, "error", err)
			errCount = apperrors.Internal("Failed to count bookings", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		bookings, err = s.repo.FindByUser(ctx, userID, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list user bookings",
				"user_id", userID,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve bookings", err)
		}
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	s.cfg.Log.Debug("User bookings listed",
		"user_id", userID,
		"count", len(bookings),
		"total_count", count,
	)
	return bookings, count, nil
}

// Cancel moves an owned PENDING or CONFIRMED booking to CANCELLED, which
// frees its dates.
func (s *bookingService) Cancel(ctx context.Context, id, userID string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if userID == "" {
		return nil, apperrors.Unauthorized("User identity is required")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateLookupError(id, err, "Failed to retrieve booking")
	}
	if existing.UserID != userID {
		s.cfg.Log.Warn("Cancellation by non-owner refused", "id", id, "user_id", userID)
		return nil, apperrors.Forbidden("Only the guest who made the booking can cancel it")
	}
	if !existing.Status.CanTransitionTo(model.StatusCancelled) {
		return nil, apperrors.Conflict(fmt.Sprintf("A %s booking cannot be cancelled", existing.Status))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, []model.BookingStatus{model.StatusPending, model.StatusConfirmed}, model.StatusCancelled)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStateConflict) {
			return nil, apperrors.Conflict("Booking changed state while cancelling, it can no longer be cancelled")
		}
		return nil, s.translateLookupError(id, err, "Failed to cancel booking")
	}

	s.cfg.Log.Info("Booking cancelled", "id", id, "user_id", userID, "previous_status", existing.Status)
	return updated, nil
}

// --- Helpers ---

func (s *bookingService) translateLookupError(id string, err error, message string) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	s.cfg.Log.Error(message, "id", id, "error", err)
	return apperrors.Internal(message, err)
}

// parseStay parses both dates and rejects empty, inverted or overlong stays
// before anything else runs.
func parseStay(checkIn, checkOut string, maxNights int) (time.Time, time.Time, int, error) {
	in, err := pricing.ParseCalendarDate(checkIn)
	if err != nil {
		return time.Time{}, time.Time{}, 0, apperrors.Validation("Invalid check-in date", map[string]any{
			"field":  "checkIn",
			"format": "YYYY-MM-DD or RFC3339",
		})
	}
	out, err := pricing.ParseCalendarDate(checkOut)
	if err != nil {
		return time.Time{}, time.Time{}, 0, apperrors.Validation("Invalid check-out date", map[string]any{
			"field":  "checkOut",
			"format": "YYYY-MM-DD or RFC3339",
		})
	}

	nights := pricing.Nights(in, out)
	if nights <= 0 {
		return time.Time{}, time.Time{}, 0, apperrors.Validation(bookingserrors.ErrInvalidDateRange.Error(), map[string]any{
			"checkIn":  in.Format(pricing.DateLayout),
			"checkOut": out.Format(pricing.DateLayout),
		})
	}
	if maxNights > 0 && nights > maxNights {
		return time.Time{}, time.Time{}, 0, apperrors.Validation(bookingserrors.ErrStayTooLong.Error(), map[string]any{
			"nights":    nights,
			"maxNights": maxNights,
		})
	}
	return in, out, nights, nil
}
