package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every scheduled run.
type TickFunc func(ctx context.Context, scheduled time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval time.Duration
	// At anchors runs to an offset from local midnight when Anchored is set,
	// e.g. 6h30m for a daily 06:30 run.
	At       time.Duration
	Anchored bool
	Location *time.Location
	// RunOnStartup fires one tick immediately before waiting.
	RunOnStartup bool
}

// Scheduler drives periodic verification runs.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick on schedule until ctx is cancelled. Tick errors
// are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.RunOnStartup {
		s.fire(ctx, tick, time.Now())
	}

	next := s.nextTick(time.Now())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextTick(time.Now())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_run", next).Msg("waiting for next run")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.fire(ctx, tick, next)
		next = s.nextTick(next)
	}
}

func (s *Scheduler) fire(ctx context.Context, tick TickFunc, scheduled time.Time) {
	s.logger.Info().Time("scheduled", scheduled).Msg("executing scheduled run")
	if err := tick(ctx, scheduled); err != nil {
		s.logger.Error().Err(err).Time("scheduled", scheduled).Msg("scheduled run failed")
	}
}

// nextTick returns the first scheduled instant strictly after now.
func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.Anchored {
		return now.Add(s.opts.Interval)
	}

	local := now.In(s.opts.Location)
	y, m, d := local.Date()
	anchor := time.Date(y, m, d, 0, 0, 0, 0, s.opts.Location).Add(s.opts.At)

	steps := now.Sub(anchor) / s.opts.Interval
	next := anchor.Add(steps * s.opts.Interval)
	for !next.After(now) {
		next = next.Add(s.opts.Interval)
	}
	return next
}
