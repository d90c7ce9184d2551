package verify

import (
	"context"
	"fmt"
	"sort"

	"mandi-pricecheck/internal/storage"
)

// maxGapDays bounds how many missing calendar days are listed in a detail.
const maxGapDays = 62

// IntegrityDetail summarises an integrity window slice.
type IntegrityDetail struct {
	Filter       string   `json:"filter" yaml:"filter"`
	Records      int      `json:"records" yaml:"records"`
	Markets      []string `json:"markets,omitempty" yaml:"markets,omitempty"`
	Commodities  []string `json:"commodities,omitempty" yaml:"commodities,omitempty"`
	First        string   `json:"first,omitempty" yaml:"first,omitempty"`
	Last         string   `json:"last,omitempty" yaml:"last,omitempty"`
	MissingDates []string `json:"missing_dates,omitempty" yaml:"missing_dates,omitempty"`
}

// CheckIntegrity fetches the slice selected by q, which must carry a
// complete window. Zero rows is a WARN (possible upstream gap). A query error
// is returned as-is; the runner turns it into a FAIL.
func CheckIntegrity(ctx context.Context, store WindowStore, q storage.IntegrityWindowQuery) ([]storage.PriceRecord, ProbeResult, error) {
	records, err := store.WindowRecords(ctx, q)
	if err != nil {
		return nil, ProbeResult{}, err
	}

	detail := summarise(q, records)
	if len(records) == 0 {
		msg := fmt.Sprintf("no records in lookback window for filter %s, possible upstream data gap", q.Describe())
		return records, Warn(NameIntegrity, KindPartialGap, msg, detail), nil
	}

	msg := fmt.Sprintf("%d records for filter %s", len(records), q.Describe())
	return records, OK(NameIntegrity, msg, detail), nil
}

func summarise(q storage.IntegrityWindowQuery, records []storage.PriceRecord) IntegrityDetail {
	detail := IntegrityDetail{Filter: q.Describe(), Records: len(records)}

	markets := map[string]struct{}{}
	commodities := map[string]struct{}{}
	days := map[string]struct{}{}
	for _, rec := range records {
		markets[rec.MarketName] = struct{}{}
		commodities[rec.CommodityName] = struct{}{}
		days[storage.FormatDate(rec.ObservationDate)] = struct{}{}
	}
	detail.Markets = sortedKeys(markets)
	detail.Commodities = sortedKeys(commodities)

	if len(records) > 0 {
		detail.First = storage.FormatDate(records[0].ObservationDate)
		detail.Last = storage.FormatDate(records[len(records)-1].ObservationDate)
	}

	start, end := storage.DateOf(q.Start), storage.DateOf(q.End)
	for d := start; !d.After(end) && len(detail.MissingDates) < maxGapDays; d = d.AddDate(0, 0, 1) {
		key := storage.FormatDate(d)
		if _, ok := days[key]; !ok {
			detail.MissingDates = append(detail.MissingDates, key)
		}
	}
	return detail
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
