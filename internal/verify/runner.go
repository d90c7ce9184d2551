package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mandi-pricecheck/internal/logging"
	"mandi-pricecheck/internal/storage"
)

// Options parameterise one run.
type Options struct {
	SampleLimit        int
	LookbackCount      int
	StaleThresholdDays int
	// WindowDays sizes the integrity window when Window has no dates.
	WindowDays int
	Window     storage.IntegrityWindowQuery
	// Location decides which calendar day is today. Defaults to UTC.
	Location *time.Location
}

// Runner executes source, store, freshness and integrity checks in that order.
type Runner struct {
	source SourceSampler
	open   OpenFunc
	now    func() time.Time
	logger zerolog.Logger
}

// NewRunner constructs a runner. Either collaborator may be nil, in which
// case its checks fail as not configured.
func NewRunner(src SourceSampler, open OpenFunc, logger zerolog.Logger) *Runner {
	return &Runner{
		source: src,
		open:   open,
		now:    time.Now,
		logger: logging.Component(logger, "runner"),
	}
}

// WithClock overrides the time source.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run performs every check and returns the report. It never returns early:
// checks that cannot run are recorded as FAIL. The store handle, once opened,
// is closed before Run returns.
func (r *Runner) Run(ctx context.Context, opts Options) Report {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	started := r.now()
	today := storage.DateOf(started.In(loc))

	report := Report{
		RunID:     uuid.NewString(),
		Today:     storage.FormatDate(today),
		StartedAt: started,
	}
	logger := r.logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().Str("today", report.Today).Msg("verification started")

	sourceResult := r.guard(NameSource, KindSourceUnreachable, func() ProbeResult {
		return CheckSource(ctx, r.source, opts.SampleLimit)
	})
	report.Results = append(report.Results, r.logResult(logger, sourceResult))

	var store Store
	storeResult := r.guard(NameStore, KindStoreUnreachable, func() ProbeResult {
		var res ProbeResult
		res, store = CheckStore(ctx, r.open)
		return res
	})

	if store == nil {
		if storeResult.Status == StatusOK {
			storeResult = Fail(NameStore, KindStoreUnreachable, "store connection failed: no handle returned", nil)
		}
		report.Results = append(report.Results, r.logResult(logger, storeResult))
		for _, name := range []string{NameFreshness, NameIntegrity} {
			skipped := Fail(name, KindStoreUnreachable, "store unavailable", nil)
			report.Results = append(report.Results, r.logResult(logger, skipped))
		}
		return r.finish(logger, report)
	}

	results, records := r.runDataChecks(ctx, logger, store, storeResult, opts, today)
	report.Results = append(report.Results, results...)
	report.Records = records
	return r.finish(logger, report)
}

func (r *Runner) runDataChecks(ctx context.Context, logger zerolog.Logger, store Store, connected ProbeResult, opts Options, today time.Time) ([]ProbeResult, []storage.PriceRecord) {
	defer r.release(logger, store)

	results := make([]ProbeResult, 0, 3)

	storeResult := r.guard(NameStore, KindQueryFailed, func() ProbeResult {
		return InspectStore(ctx, store, connected)
	})
	results = append(results, r.logResult(logger, storeResult))

	freshness := r.guard(NameFreshness, KindQueryFailed, func() ProbeResult {
		_, res := CheckFreshness(ctx, store, opts.LookbackCount, opts.StaleThresholdDays, today)
		return res
	})
	results = append(results, r.logResult(logger, freshness))

	window := opts.Window.WithDefaults(today, opts.WindowDays)
	var records []storage.PriceRecord
	integrity := r.guard(NameIntegrity, KindQueryFailed, func() ProbeResult {
		recs, res, err := CheckIntegrity(ctx, store, window)
		if err != nil {
			return Fail(NameIntegrity, KindQueryFailed, fmt.Sprintf("integrity query failed for filter %s: %v", window.Describe(), err), nil)
		}
		records = recs
		return res
	})
	results = append(results, r.logResult(logger, integrity))

	return results, records
}

// guard converts a panic inside a check into a FAIL for that check so the
// run, and the deferred release of the store, carry on.
func (r *Runner) guard(name string, kind Kind, check func() ProbeResult) (result ProbeResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("check", name).Interface("panic", p).Msg("check aborted")
			result = Fail(name, kind, fmt.Sprintf("%s check aborted: %v", name, p), nil)
		}
	}()
	return check()
}

func (r *Runner) release(logger zerolog.Logger, store Store) {
	if err := store.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close store handle")
		return
	}
	logger.Debug().Msg("store handle released")
}

func (r *Runner) logResult(logger zerolog.Logger, res ProbeResult) ProbeResult {
	var event *zerolog.Event
	switch res.Status {
	case StatusFail:
		event = logger.Error()
	case StatusWarn:
		event = logger.Warn()
	default:
		event = logger.Info()
	}
	event.Str("check", res.Name).Str("status", string(res.Status)).Str("kind", string(res.Kind)).Msg(res.Message)
	return res
}

func (r *Runner) finish(logger zerolog.Logger, report Report) Report {
	report.FinishedAt = r.now()
	report.Status = report.Overall()
	logger.Info().
		Str("status", string(report.Status)).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("verification finished")
	return report
}
