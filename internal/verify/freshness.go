package verify

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"mandi-pricecheck/internal/storage"
)

// CheckFreshness reads the lookback newest distinct observation dates and
// compares the newest against today.
func CheckFreshness(ctx context.Context, store FreshnessStore, lookback, staleThresholdDays int, today time.Time) (FreshnessReport, ProbeResult) {
	if lookback <= 0 {
		lookback = storage.DefaultLookback
	}
	today = storage.DateOf(today)
	report := FreshnessReport{
		Dates:         []string{},
		Today:         storage.FormatDate(today),
		ThresholdDays: staleThresholdDays,
	}

	dates, err := store.LatestDates(ctx, storage.FreshnessQuery{Limit: lookback})
	if err != nil {
		if storage.IsTableMissing(err) {
			return report, Fail(NameFreshness, KindNoData, fmt.Sprintf("no price data: table daily_prices is missing (%v)", err), report.detail())
		}
		return report, Fail(NameFreshness, KindQueryFailed, fmt.Sprintf("freshness query failed: %v", err), report.detail())
	}

	dates = newestDistinct(dates, lookback)
	if len(dates) == 0 {
		return report, Fail(NameFreshness, KindNoData, "no price data: daily_prices has no rows", report.detail())
	}

	for _, d := range dates {
		report.Dates = append(report.Dates, storage.FormatDate(d))
	}
	latest := dates[0]
	report.Latest = storage.FormatDate(latest)
	report.StalenessDays = daysBetween(latest, today)

	if report.StalenessDays > staleThresholdDays {
		msg := fmt.Sprintf("latest observation %s is %d days old, threshold is %d", report.Latest, report.StalenessDays, staleThresholdDays)
		return report, Warn(NameFreshness, KindStaleData, msg, report.detail())
	}
	msg := fmt.Sprintf("latest observation %s is %d days old", report.Latest, report.StalenessDays)
	return report, OK(NameFreshness, msg, report.detail())
}

// detail copies the report for use as a result detail so later changes to
// the returned report do not reach the result.
func (r FreshnessReport) detail() FreshnessReport {
	r.Dates = slices.Clone(r.Dates)
	return r
}

// newestDistinct returns calendar dates sorted newest first without
// duplicates, capped at limit.
func newestDistinct(dates []time.Time, limit int) []time.Time {
	seen := make(map[time.Time]struct{}, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = storage.DateOf(d)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// daysBetween counts whole calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(storage.DateOf(b).Sub(storage.DateOf(a)).Hours() / 24)
}
