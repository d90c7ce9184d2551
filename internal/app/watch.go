package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"mandi-pricecheck/internal/scheduler"
)

// Watch runs the verification on the configured schedule until interrupted,
// notifying on reports that cross alerting.notify_on.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runOpts, err := a.runOptions(WindowOptions{})
	if err != nil {
		return err
	}
	policy, err := a.newPolicy()
	if err != nil {
		return err
	}
	if policy == nil {
		a.Logger.Warn().Msg("alerting disabled; watch results are only logged")
	}

	at, anchored, err := a.Config.Scheduler.TimeOfDay()
	if err != nil {
		return err
	}
	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		At:           at,
		Anchored:     anchored,
		Location:     runOpts.Location,
		RunOnStartup: a.Config.Scheduler.RunOnStartup,
	}, a.Logger)

	runner := a.newRunner()
	tick := func(ctx context.Context, scheduled time.Time) error {
		rep := runner.Run(ctx, runOpts)
		a.Logger.Info().Str("run_id", rep.RunID).
			Str("status", string(rep.Status)).
			Time("scheduled", scheduled).
			Msg("scheduled verification finished")
		_, err := policy.Dispatch(ctx, rep)
		return err
	}

	a.Logger.Info().Str("at", a.Config.Scheduler.At).
		Dur("interval", a.Config.Scheduler.Interval).
		Str("timezone", runOpts.Location.String()).
		Msg("starting verification watch")
	err = sched.Run(ctx, tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch terminated with error")
		return err
	}

	a.Logger.Info().Msg("verification watch stopped")
	return nil
}
