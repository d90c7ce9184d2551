package app

import (
	"context"
	"fmt"
	"os"

	"mandi-pricecheck/internal/report"
	"mandi-pricecheck/internal/verify"
)

// Verify runs every check once, renders the report and maps the overall
// status onto ErrVerificationFailed.
func (a *App) Verify(ctx context.Context, opts VerifyOptions) error {
	runOpts, err := a.runOptions(opts.Window)
	if err != nil {
		return err
	}

	rep := a.newRunner().Run(ctx, runOpts)

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if err := report.Render(out, rep, report.Options{Format: opts.Format, Verbose: opts.Verbose}); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if opts.Notify {
		policy, err := a.newPolicy()
		if err != nil {
			return err
		}
		if _, err := policy.Dispatch(ctx, rep); err != nil {
			a.Logger.Warn().Err(err).Msg("verification notification not delivered")
		}
	}

	return verdict(rep.Status, opts.FailOnWarn)
}

func verdict(status verify.Status, failOnWarn bool) error {
	threshold := verify.StatusFail
	if failOnWarn {
		threshold = verify.StatusWarn
	}
	if status.AtLeast(threshold) {
		return fmt.Errorf("%w: overall status %s", ErrVerificationFailed, status)
	}
	return nil
}
