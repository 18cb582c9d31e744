package lock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"stazy/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const releaseTimeout = 2 * time.Second

var tracer = otel.Tracer("stazy/internal/lock")

type Options struct {
	TTL           time.Duration
	WaitTimeout   time.Duration
	RetryInterval time.Duration
}

type Manager struct {
	locker Locker
	opts   Options
	log    *logger.Logger
}

func NewManager(locker Locker, opts Options, log *logger.Logger) *Manager {
	return &Manager{locker: locker, opts: opts, log: log}
}

// Handle is a set of held leases sharing one holder token.
type Handle struct {
	m     *Manager
	token string
	keys  []string
}

func (h *Handle) Keys() []string { return h.keys }

// Acquire takes every key in ascending order. WaitTimeout bounds the whole
// call, however many keys there are. On failure any lease already taken is
// released and ErrBusy is returned.
func (m *Manager) Acquire(ctx context.Context, keys ...string) (*Handle, error) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)
	if len(keys) == 0 {
		return nil, errors.New("lock: no keys to acquire")
	}

	ctx, span := tracer.Start(ctx, "lock.acquire")
	defer span.End()
	span.SetAttributes(
		attribute.StringSlice("lock.keys", keys),
		attribute.String("lock.backend", m.locker.Name()),
	)

	waitCtx, cancel := context.WithTimeout(ctx, m.opts.WaitTimeout)
	defer cancel()

	h := &Handle{m: m, token: uuid.NewString()}
	for _, key := range keys {
		if err := m.acquireOne(waitCtx, key, h.token); err != nil {
			if releaseErr := h.Release(ctx); releaseErr != nil {
				m.log.Warn("Failed to roll back partially acquired leases", "keys", h.keys, "error", releaseErr)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		h.keys = append(h.keys, key)
	}

	m.log.Debug("Leases acquired", "keys", h.keys, "token", h.token)
	return h, nil
}

// acquireOne retries key until ctx, which carries the deadline shared by all
// keys of one Acquire, is done.
func (m *Manager) acquireOne(ctx context.Context, key, token string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.opts.RetryInterval
	b.MaxInterval = m.opts.RetryInterval * 2
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0.3

	attempts := 0
	op := func() error {
		attempts++
		ok, err := m.locker.TryAcquire(ctx, key, token, m.opts.TTL)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("lock backend %s: %w", m.locker.Name(), err))
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrBusy, key)
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s (gave up after %d attempts: %v)", ErrBusy, key, attempts, err)
	}
	if errors.Is(err, ErrBusy) {
		m.log.Info("Lease busy", "key", key, "attempts", attempts)
	}
	return err
}

// Release frees every held lease. It runs on a detached context so that a
// cancelled request still releases what it took.
func (h *Handle) Release(ctx context.Context) error {
	if h == nil || len(h.keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	var errs []error
	for i := len(h.keys) - 1; i >= 0; i-- {
		key := h.keys[i]
		released, err := h.m.locker.Release(ctx, key, h.token)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("release %s: %w", key, err))
		case !released:
			h.m.log.Warn("Lease already gone at release, TTL may be too short", "key", key)
			errs = append(errs, fmt.Errorf("%w: %s", ErrNotHeld, key))
		}
	}
	h.keys = nil
	return errors.Join(errs...)
}
