// Package driver runs the tick loop: it attaches to the target, invalidates
// the memory model at every tick boundary and hands control to the
// splitting policy.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"memwatch/internal/logging"
	"memwatch/split"
	"memwatch/timer"
)

// DefaultTickRate is the tick frequency in Hz when none is configured.
const DefaultTickRate = 120

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memwatch_driver_ticks_total",
		Help: "Total ticks run",
	})

	tickFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memwatch_driver_tick_failures_total",
		Help: "Ticks on which the policy reported a failure",
	})

	attachTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memwatch_driver_attach_total",
		Help: "Successful attaches to the target",
	})
)

// Driver owns the tick counter and calls the policy once per tick.
type Driver struct {
	log     logging.Logger
	model   Model
	policy  split.Policy
	timer   timer.Timer
	session *Session
	limiter *rate.Limiter
	tick    uint64
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Driver) { d.log = logging.OrNoOp(l) }
}

// WithTickRate sets the tick frequency in Hz. A non-positive rate runs
// unpaced.
func WithTickRate(hz float64) Option {
	return func(d *Driver) {
		if hz <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		d.limiter = rate.NewLimiter(rate.Limit(hz), 1)
	}
}

// WithSession makes Run return once the session's target closes.
func WithSession(s *Session) Option {
	return func(d *Driver) { d.session = s }
}

// New creates a driver. model may be nil for policies that own no watchers.
func New(model Model, policy split.Policy, t timer.Timer, opts ...Option) *Driver {
	d := &Driver{
		log:     logging.NewNoOpLogger(),
		model:   model,
		policy:  policy,
		timer:   t,
		limiter: rate.NewLimiter(DefaultTickRate, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TickCount returns the number of ticks started.
func (d *Driver) TickCount() uint64 { return d.tick }

// AdvanceTick ends the previous tick: every watcher in the model moves its
// current value to old.
func (d *Driver) AdvanceTick() {
	if d.model != nil {
		d.model.Invalidate()
	}
	d.tick++
	ticksTotal.Inc()
}

// Tick advances and runs the policy once. Policy failures are logged and
// counted; they never stop the loop.
func (d *Driver) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.AdvanceTick()
	if d.policy == nil {
		return nil
	}
	if err := d.policy.Update(d.timer); err != nil {
		tickFailures.Inc()
		d.log.Debug("tick failed", "tick", d.tick, "error", err)
		return err
	}
	return nil
}

// Run ticks at the configured rate until ctx is done or the session's
// target closes. A closed target is not an error.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if d.session != nil && !d.session.Open() {
			d.log.Info("target closed", "session", d.session.ID, "ticks", d.tick)
			return nil
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		_ = d.Tick(ctx)
	}
}

// AttachLoop attaches, runs onAttach until the target closes, and starts
// over. Every attach starts cold: onAttach builds its model from nothing.
// When onAttach fails, it waits delay before attaching again. It returns
// when ctx is done.
func AttachLoop(ctx context.Context, log logging.Logger, attacher Attacher, delay time.Duration, onAttach func(context.Context, *Session) error) error {
	log = logging.OrNoOp(log)
	for {
		s, err := TryLoad(ctx, log, delay, attacher.Attach)
		if err != nil {
			return err
		}
		attachTotal.Inc()
		log.Info("attached", "session", s.ID, "target", s.Name)

		sctx, cancel := s.UntilCloses(ctx, livenessInterval(delay))
		err = onAttach(sctx, s)
		cancel()
		if closeErr := s.Close(); closeErr != nil {
			log.Warning("failed to release target", "session", s.ID, "error", closeErr)
		}

		failed := err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled)
		if failed {
			log.Info("error occurred while attached", "session", s.ID, "error", err)
		} else {
			log.Info("detached from target", "session", s.ID)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if failed {
			if err := sleep(ctx, livenessInterval(delay)); err != nil {
				return err
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func livenessInterval(delay time.Duration) time.Duration {
	if delay <= 0 {
		return DefaultTryLoadDelay
	}
	return delay
}
