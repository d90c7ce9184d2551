package alerting

import (
	"context"

	"github.com/rs/zerolog"

	"mandi-pricecheck/internal/verify"
)

// Policy gates notifications on the overall run status.
type Policy struct {
	notifier Notifier
	notifyOn verify.Status
	logger   zerolog.Logger
}

// NewPolicy sends through notifier whenever a run is at least as severe as
// notifyOn.
func NewPolicy(notifier Notifier, notifyOn verify.Status, logger zerolog.Logger) *Policy {
	if notifyOn == "" {
		notifyOn = verify.StatusFail
	}
	return &Policy{notifier: notifier, notifyOn: notifyOn, logger: logger}
}

// ShouldNotify reports whether a run with status s crosses the threshold.
func (p *Policy) ShouldNotify(s verify.Status) bool {
	return s.AtLeast(p.notifyOn)
}

// Dispatch notifies for rep when it crosses the threshold. It reports whether
// a notification was sent.
func (p *Policy) Dispatch(ctx context.Context, rep verify.Report) (bool, error) {
	if p == nil || p.notifier == nil || !p.ShouldNotify(rep.Status) {
		return false, nil
	}
	if err := p.notifier.Notify(ctx, FromReport(rep)); err != nil {
		p.logger.Error().Err(err).Str("run_id", rep.RunID).Msg("notification failed")
		return false, err
	}
	return true, nil
}
