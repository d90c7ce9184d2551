package storage

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultLookback is the number of distinct dates a freshness check reads.
	DefaultLookback = 5
	// DefaultWindowDays is the integrity window length ending today.
	DefaultWindowDays = 7

	countPricesSQL = `SELECT COUNT(*) FROM daily_prices;`

	serverVersionSQL = `SELECT version();`

	tableCountsSQL = `SELECT
        (SELECT COUNT(*) FROM states)       AS states,
        (SELECT COUNT(*) FROM districts)    AS districts,
        (SELECT COUNT(*) FROM markets)      AS markets,
        (SELECT COUNT(*) FROM commodities)  AS commodities,
        (SELECT COUNT(*) FROM daily_prices) AS prices,
        (SELECT MAX(arrival_date) FROM daily_prices) AS latest_date;`

	latestDatesSQL = `SELECT DISTINCT dp.arrival_date
    FROM daily_prices dp
    ORDER BY dp.arrival_date DESC
    LIMIT $1;`

	recentRecordsSQL = `SELECT
        dp.arrival_date,
        m.name,
        c.name,
        d.name,
        s.name,
        dp.min_price,
        dp.max_price,
        dp.modal_price
    FROM daily_prices dp
    JOIN markets m ON dp.market_id = m.id
    JOIN districts d ON m.district_id = d.id
    JOIN states s ON d.state_id = s.id
    JOIN commodities c ON dp.commodity_id = c.id
    ORDER BY dp.arrival_date DESC, m.name, c.name
    LIMIT $1;`

	windowSelectSQL = `SELECT
        dp.arrival_date,
        m.name,
        c.name,
        d.name,
        s.name,
        dp.min_price,
        dp.max_price,
        dp.modal_price
    FROM daily_prices dp
    JOIN markets m ON dp.market_id = m.id
    JOIN districts d ON m.district_id = d.id
    JOIN states s ON d.state_id = s.id
    JOIN commodities c ON dp.commodity_id = c.id`
)

// FreshnessQuery selects the most recent distinct observation dates.
type FreshnessQuery struct {
	Limit int
}

// Build returns the statement and its arguments.
func (q FreshnessQuery) Build() (string, []any) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLookback
	}
	return latestDatesSQL, []any{limit}
}

// IntegrityWindowQuery selects a slice of price records for one market
// pattern over an inclusive date window.
type IntegrityWindowQuery struct {
	// MarketPattern is matched as a case-insensitive substring.
	MarketPattern string
	// CommodityPattern optionally narrows the slice, same matching rules.
	CommodityPattern string
	Start            time.Time
	End              time.Time
	// Limit caps the rows returned; zero means unbounded.
	Limit int
}

// WithDefaults fills an unset window so that it ends on today and spans
// windowDays days before it.
func (q IntegrityWindowQuery) WithDefaults(today time.Time, windowDays int) IntegrityWindowQuery {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if q.End.IsZero() {
		q.End = DateOf(today)
	}
	if q.Start.IsZero() {
		q.Start = DateOf(q.End).AddDate(0, 0, -windowDays)
	}
	q.Start = DateOf(q.Start)
	q.End = DateOf(q.End)
	return q
}

// Validate rejects windows that cannot match any row.
func (q IntegrityWindowQuery) Validate() error {
	if q.Start.IsZero() || q.End.IsZero() {
		return fmt.Errorf("integrity window requires start and end dates")
	}
	if q.Start.After(q.End) {
		return fmt.Errorf("integrity window start %s is after end %s", FormatDate(q.Start), FormatDate(q.End))
	}
	if q.Limit < 0 {
		return fmt.Errorf("integrity window limit cannot be negative")
	}
	return nil
}

// Build returns the statement and its positional arguments.
func (q IntegrityWindowQuery) Build() (string, []any) {
	var b strings.Builder
	b.WriteString(windowSelectSQL)
	b.WriteString("\n    WHERE m.name ILIKE $1 ESCAPE '\\'")
	b.WriteString("\n      AND dp.arrival_date >= $2")
	b.WriteString("\n      AND dp.arrival_date <= $3")

	args := []any{likePattern(q.MarketPattern), DateOf(q.Start), DateOf(q.End)}
	if q.CommodityPattern != "" {
		args = append(args, likePattern(q.CommodityPattern))
		fmt.Fprintf(&b, "\n      AND c.name ILIKE $%d ESCAPE '\\'", len(args))
	}

	b.WriteString("\n    ORDER BY dp.arrival_date, m.name, c.name")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, "\n    LIMIT $%d", len(args))
	}
	b.WriteString(";")
	return b.String(), args
}

// Describe renders the filter for messages.
func (q IntegrityWindowQuery) Describe() string {
	desc := fmt.Sprintf("market~%q %s..%s", q.MarketPattern, FormatDate(q.Start), FormatDate(q.End))
	if q.CommodityPattern != "" {
		desc += fmt.Sprintf(" commodity~%q", q.CommodityPattern)
	}
	return desc
}

func likePattern(pattern string) string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + escaper.Replace(strings.TrimSpace(pattern)) + "%"
}

// DateOf strips the clock and zone from t, keeping its calendar date as seen
// in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}
