package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"mandi-pricecheck/internal/report"
	"mandi-pricecheck/internal/storage"
)

const defaultShowLimit = 10

// Show prints table counts, the latest arrival date and the most recent
// joined price records.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Limit <= 0 {
		opts.Limit = defaultShowLimit
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.TableCounts(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Table\tRows")
	fmt.Fprintf(writer, "states\t%d\n", counts.States)
	fmt.Fprintf(writer, "districts\t%d\n", counts.Districts)
	fmt.Fprintf(writer, "markets\t%d\n", counts.Markets)
	fmt.Fprintf(writer, "commodities\t%d\n", counts.Commodities)
	fmt.Fprintf(writer, "daily_prices\t%d\n", counts.Prices)
	latest := "-"
	if counts.LatestDate != nil {
		latest = storage.FormatDate(*counts.LatestDate)
	}
	fmt.Fprintf(writer, "latest arrival\t%s\n", latest)
	if err := writer.Flush(); err != nil {
		return err
	}

	records, err := store.RecentRecords(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "\nno price records found")
		return nil
	}

	fmt.Fprintln(out)
	writer = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tCommodity\tMarket\tDistrict\tState\tMin\tMax\tModal")
	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			storage.FormatDate(rec.ObservationDate),
			sanitizeInline(rec.CommodityName),
			sanitizeInline(rec.MarketName),
			sanitizeInline(rec.District),
			sanitizeInline(rec.State),
			report.FormatPrice(rec.MinPrice),
			report.FormatPrice(rec.MaxPrice),
			report.FormatPrice(rec.ModalPrice),
		)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
