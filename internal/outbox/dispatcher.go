// Package outbox republishes booking.created events whose first publish
// failed. The pending flag lives on the booking document itself.
package outbox

import (
	"context"
	"fmt"
	"time"

	"stazy/internal/bookings/repository"
	"stazy/internal/events"
	"stazy/pkg/logger"
)

type Options struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	// MinAge keeps the dispatcher off bookings whose request is still
	// publishing inline.
	MinAge time.Duration
}

type Dispatcher struct {
	repo      repository.BookingRepository
	publisher events.Publisher
	opts      Options
	log       *logger.Logger
	now       func() time.Time
}

func NewDispatcher(repo repository.BookingRepository, publisher events.Publisher, opts Options, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		opts:      opts,
		log:       log.With("component", "outbox"),
		now:       time.Now,
	}
}

// Result summarizes one dispatch pass.
type Result struct {
	Published int
	Failed    int
}

// DispatchOnce publishes one batch. A failed publish is recorded on the
// booking and retried on a later pass until MaxAttempts is reached.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (Result, error) {
	var res Result

	pending, err := d.repo.FindUnpublished(ctx, d.now().Add(-d.opts.MinAge), d.opts.MaxAttempts, d.opts.BatchSize)
	if err != nil {
		return res, fmt.Errorf("failed to load unpublished bookings: %w", err)
	}

	for _, b := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := d.publisher.PublishBookingCreated(ctx, b); err != nil {
			res.Failed++
			attempt := b.Notification.Attempts + 1
			d.log.Warn("Outbox publish failed",
				"booking_id", b.ID,
				"attempt", attempt,
				"max_attempts", d.opts.MaxAttempts,
				"error", err,
			)
			if markErr := d.repo.MarkPublishFailed(ctx, b.ID, err.Error()); markErr != nil {
				d.log.Error("Failed to record outbox failure", "booking_id", b.ID, "error", markErr)
			}
			if attempt >= d.opts.MaxAttempts {
				d.log.Error("Giving up on booking.created, manual replay needed", "booking_id", b.ID)
			}
			continue
		}

		if err := d.repo.MarkPublished(ctx, b.ID, d.now().UTC()); err != nil {
			d.log.Error("Published but failed to mark booking, event will be sent again", "booking_id", b.ID, "error", err)
			continue
		}
		res.Published++
	}

	if res.Published > 0 || res.Failed > 0 {
		d.log.Info("Outbox pass finished", "published", res.Published, "failed", res.Failed)
	}
	return res, nil
}

// Run dispatches every Interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	d.log.Info("Outbox dispatcher started", "interval", d.opts.Interval, "batch_size", d.opts.BatchSize)
	for {
		select {
		case <-ctx.Done():
			d.log.Info("Outbox dispatcher stopped")
			return nil
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				d.log.Error("Outbox pass failed", "error", err)
			}
		}
	}
}
