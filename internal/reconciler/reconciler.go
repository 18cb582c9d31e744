// Package reconciler applies settlement events from the payment service to
// bookings.
package reconciler

import (
	"context"
	"errors"
	"time"

	bookingserrors "stazy/internal/bookings/errors"
	"stazy/internal/bookings/repository"
	"stazy/internal/events"
	"stazy/pkg/kafka"
	"stazy/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("stazy/internal/reconciler")

type Reconciler struct {
	repo repository.BookingRepository
	log  *logger.Logger
	now  func() time.Time
}

func New(repo repository.BookingRepository, log *logger.Logger) *Reconciler {
	return &Reconciler{repo: repo, log: log, now: time.Now}
}

// Handle is a kafka.MessageHandler. The returned error class decides what the
// consumer does with the message:
//   - malformed payloads and impossible ids are discarded
//   - a booking that is not visible yet is retried, then dead-lettered
//   - a settlement for a cancelled or paid booking is a logged no-op
func (r *Reconciler) Handle(ctx context.Context, msg kafka.Message) error {
	log := r.log.WithContext(ctx).With(
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)

	settlement, err := events.ParseSettlement(msg.Value)
	if err != nil {
		log.Warn("Discarding malformed settlement event", "key", msg.Key, "error", err)
		return kafka.NewDiscardError("malformed settlement event", err)
	}

	return r.Apply(ctx, settlement)
}

// Apply writes the settlement with a single conditional update, so a
// redelivered event leaves the booking as the first delivery did.
func (r *Reconciler) Apply(ctx context.Context, s *events.Settlement) error {
	ctx, span := tracer.Start(ctx, "reconciler.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.id", s.BookingID),
		attribute.String("payment.session_id", s.SessionID),
	)

	log := r.log.WithContext(ctx).With("booking_id", s.BookingID, "session_id", s.SessionID)

	result, err := r.repo.Reconcile(ctx, s.BookingID, repository.SettlementUpdate{
		SessionID: s.SessionID,
		Amount:    s.Amount,
		Currency:  s.Currency,
		At:        r.now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		switch {
		case errors.Is(err, bookingserrors.ErrInvalidID):
			log.Warn("Discarding settlement for an impossible booking id", "error", err)
			return kafka.NewDiscardError("settlement references an invalid booking id", err)
		case errors.Is(err, bookingserrors.ErrNotFound):
			log.Info("Booking not visible yet, settlement will be retried")
			return kafka.NewTransientError("booking not found yet", err).
				WithDetail("booking_id", s.BookingID)
		default:
			log.Error("Failed to reconcile settlement", "error", err)
			return kafka.NewTransientError("booking store unavailable", err)
		}
	}

	if result == repository.ReconcileSkipped {
		log.Info("Settlement ignored, booking is already in a terminal state")
		return nil
	}

	log.Info("Settlement reconciled", "amount", s.Amount, "currency", s.Currency)
	return nil
}
