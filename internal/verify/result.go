// Package verify probes the open-data source and the price store and checks
// that recently ingested prices look plausible.
package verify

import (
	"fmt"
	"strings"
)

// Status is the outcome class of a check.
type Status string

const (
	StatusOK   Status = "OK"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

func (s Status) severity() int {
	switch s {
	case StatusFail:
		return 2
	case StatusWarn:
		return 1
	default:
		return 0
	}
}

// ParseStatus accepts ok/warn/fail in any case.
func ParseStatus(v string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(v))) {
	case StatusOK:
		return StatusOK, nil
	case StatusWarn:
		return StatusWarn, nil
	case StatusFail:
		return StatusFail, nil
	}
	return "", fmt.Errorf("unknown status %q", v)
}

// AtLeast reports whether s is as severe as other or more.
func (s Status) AtLeast(other Status) bool {
	return s.severity() >= other.severity()
}

// Kind classifies why a check did not pass.
type Kind string

const (
	KindSourceUnreachable Kind = "source_unreachable"
	KindStoreUnreachable  Kind = "store_unreachable"
	KindQueryFailed       Kind = "query_failed"
	KindNoData            Kind = "no_data"
	KindStaleData         Kind = "stale_data"
	KindPartialGap        Kind = "partial_gap"
)

// Check names as they appear in reports.
const (
	NameSource    = "source"
	NameStore     = "store"
	NameFreshness = "freshness"
	NameIntegrity = "integrity"
)

// ProbeResult is the outcome of one check. It is built once by the check
// that observed it and passed by value afterwards.
type ProbeResult struct {
	Name    string `json:"name" yaml:"name"`
	Status  Status `json:"status" yaml:"status"`
	Kind    Kind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Message string `json:"message" yaml:"message"`
	Detail  any    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// OK builds a passing result.
func OK(name, message string, detail any) ProbeResult {
	return ProbeResult{Name: name, Status: StatusOK, Message: message, Detail: detail}
}

// Warn builds a non-fatal result.
func Warn(name string, kind Kind, message string, detail any) ProbeResult {
	return ProbeResult{Name: name, Status: StatusWarn, Kind: kind, Message: message, Detail: detail}
}

// Fail builds a failing result.
func Fail(name string, kind Kind, message string, detail any) ProbeResult {
	return ProbeResult{Name: name, Status: StatusFail, Kind: kind, Message: message, Detail: detail}
}

// Reduce folds statuses: FAIL dominates WARN dominates OK. The result does
// not depend on order, and an empty set is OK.
func Reduce(results ...ProbeResult) Status {
	overall := StatusOK
	for _, r := range results {
		if r.Status.severity() > overall.severity() {
			overall = r.Status
		}
	}
	return overall
}
