package verify

import (
	"context"
	"errors"
	"fmt"

	"mandi-pricecheck/internal/source"
	"mandi-pricecheck/internal/storage"
)

const previewSize = 3

// SourceSampler fetches a bounded sample from the upstream resource.
type SourceSampler interface {
	Sample(ctx context.Context, limit int) (source.Page, error)
}

// SourceDetail describes what the source returned.
type SourceDetail struct {
	Records     int             `json:"records" yaml:"records"`
	Total       int             `json:"total" yaml:"total"`
	UpdatedDate string          `json:"updated_date,omitempty" yaml:"updated_date,omitempty"`
	ElapsedMS   int64           `json:"elapsed_ms" yaml:"elapsed_ms"`
	Preview     []RecordPreview `json:"preview,omitempty" yaml:"preview,omitempty"`
}

// RecordPreview is a compact view of one upstream record.
type RecordPreview struct {
	Commodity   string `json:"commodity" yaml:"commodity"`
	Market      string `json:"market" yaml:"market"`
	District    string `json:"district" yaml:"district"`
	State       string `json:"state" yaml:"state"`
	ModalPrice  string `json:"modal_price" yaml:"modal_price"`
	ArrivalDate string `json:"arrival_date" yaml:"arrival_date"`
}

// CheckSource issues one bounded request for up to limit records. A present
// records field is OK even when empty; a timeout is WARN; anything else FAIL.
func CheckSource(ctx context.Context, sampler SourceSampler, limit int) ProbeResult {
	if sampler == nil {
		return Fail(NameSource, KindSourceUnreachable, "source not configured", nil)
	}

	page, err := sampler.Sample(ctx, limit)
	if err != nil {
		return classifySourceErr(err)
	}

	detail := SourceDetail{
		Records:     len(page.Records),
		Total:       page.Total,
		UpdatedDate: page.UpdatedDate,
		ElapsedMS:   page.Elapsed.Milliseconds(),
		Preview:     preview(page.Records),
	}
	return OK(NameSource, fmt.Sprintf("source reachable, %d sample records received", len(page.Records)), detail)
}

func classifySourceErr(err error) ProbeResult {
	var statusErr *source.StatusError
	switch {
	case errors.Is(err, source.ErrTimeout):
		return Warn(NameSource, KindSourceUnreachable, fmt.Sprintf("source request timeout, upstream may be slow: %v", err), nil)
	case errors.Is(err, source.ErrNotConfigured):
		return Fail(NameSource, KindSourceUnreachable, "source not configured: url and api key are required", nil)
	case errors.As(err, &statusErr):
		return Fail(NameSource, KindSourceUnreachable, fmt.Sprintf("source returned HTTP %d: %v", statusErr.Code, err), nil)
	case errors.Is(err, source.ErrMissingRecords):
		return Fail(NameSource, KindSourceUnreachable, "source response has no records field", nil)
	case errors.Is(err, source.ErrMalformed):
		return Fail(NameSource, KindSourceUnreachable, fmt.Sprintf("source response malformed: %v", err), nil)
	default:
		return Fail(NameSource, KindSourceUnreachable, fmt.Sprintf("source unreachable: %v", err), nil)
	}
}

func preview(records []source.Record) []RecordPreview {
	n := min(len(records), previewSize)
	out := make([]RecordPreview, 0, n)
	for _, rec := range records[:n] {
		modal := ""
		if rec.ModalPrice.Valid {
			modal = rec.ModalPrice.Decimal.String()
		}
		arrival := rec.ArrivalDate
		if d, err := rec.Date(); err == nil {
			arrival = storage.FormatDate(d)
		}
		out = append(out, RecordPreview{
			Commodity:   rec.Commodity,
			Market:      rec.Market,
			District:    rec.District,
			State:       rec.State,
			ModalPrice:  modal,
			ArrivalDate: arrival,
		})
	}
	return out
}
