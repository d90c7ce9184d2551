package verify

import (
	"time"

	"mandi-pricecheck/internal/storage"
)

// Report is the aggregate of one verification run.
type Report struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	Status     Status        `json:"status" yaml:"status"`
	Today      string        `json:"today" yaml:"today"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Results    []ProbeResult `json:"results" yaml:"results"`

	// Records is the integrity window slice, kept for exporters.
	Records []storage.PriceRecord `json:"-" yaml:"-"`
}

// Overall recomputes the aggregate status from the results.
func (r Report) Overall() Status {
	return Reduce(r.Results...)
}

// Result returns the result for a named check.
func (r Report) Result(name string) (ProbeResult, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return ProbeResult{}, false
}

// Counts tallies results per status.
func (r Report) Counts() map[Status]int {
	counts := map[Status]int{StatusOK: 0, StatusWarn: 0, StatusFail: 0}
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// FreshnessReport lists the newest distinct observation dates, most recent
// first, and how far the newest lags behind today.
type FreshnessReport struct {
	Dates         []string `json:"dates" yaml:"dates"`
	Latest        string   `json:"latest" yaml:"latest"`
	Today         string   `json:"today" yaml:"today"`
	StalenessDays int      `json:"staleness_days" yaml:"staleness_days"`
	ThresholdDays int      `json:"threshold_days" yaml:"threshold_days"`
}
