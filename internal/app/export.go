package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"mandi-pricecheck/internal/storage"
)

// Export writes the integrity window slice as CSV and/or a PNG chart of modal
// prices, one series per commodity.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = a.Config.Export.MaxRecords
	}

	runOpts, err := a.runOptions(opts.Window)
	if err != nil {
		return err
	}
	today := storage.DateOf(a.now().In(runOpts.Location))
	window := runOpts.Window.WithDefaults(today, runOpts.WindowDays)
	window.Limit = opts.MaxRecords

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.WindowRecords(ctx, window)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Str("filter", window.Describe()).Msg("no records found for export window")
		return nil
	}
	a.Logger.Info().Int("records", len(records)).Str("filter", window.Describe()).Msg("exporting records")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, records); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRecordsPNG(opts.PNGPath, window.Describe(), records); err != nil {
			return err
		}
	}

	return nil
}

func writeRecordsCSV(path string, records []storage.PriceRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"arrival_date", "state", "district", "market", "commodity", "min_price", "max_price", "modal_price"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			storage.FormatDate(rec.ObservationDate),
			rec.State,
			rec.District,
			rec.MarketName,
			rec.CommodityName,
			csvPrice(rec.MinPrice),
			csvPrice(rec.MaxPrice),
			csvPrice(rec.ModalPrice),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func csvPrice(p decimal.NullDecimal) string {
	if !p.Valid {
		return ""
	}
	return p.Decimal.String()
}

type pricePoint struct {
	day   time.Time
	modal decimal.Decimal
}

// modalSeries averages modal prices per commodity and day across markets.
// Records without a modal price are skipped.
func modalSeries(records []storage.PriceRecord) map[string][]pricePoint {
	type key struct {
		commodity string
		day       time.Time
	}
	sums := make(map[key]decimal.Decimal)
	counts := make(map[key]int64)
	for _, rec := range records {
		if !rec.ModalPrice.Valid {
			continue
		}
		k := key{rec.CommodityName, storage.DateOf(rec.ObservationDate)}
		sums[k] = sums[k].Add(rec.ModalPrice.Decimal)
		counts[k]++
	}

	series := make(map[string][]pricePoint)
	for k, sum := range sums {
		avg := sum.Div(decimal.NewFromInt(counts[k]))
		series[k.commodity] = append(series[k.commodity], pricePoint{day: k.day, modal: avg})
	}
	for name := range series {
		points := series[name]
		sort.Slice(points, func(i, j int) bool { return points[i].day.Before(points[j].day) })
	}
	return series
}

func writeRecordsPNG(path, title string, records []storage.PriceRecord) error {
	series := modalSeries(records)

	names := make([]string, 0, len(series))
	for name, points := range series {
		// a single point gives the chart a zero-width time range
		if len(points) >= 2 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return errors.New("not enough dated modal prices to draw a chart (need two days per commodity)")
	}
	sort.Strings(names)

	lo, hi := decimal.Zero, decimal.Zero
	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Modal price (Rs/quintal)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
	}
	for i, name := range names {
		points := series[name]
		x := make([]time.Time, len(points))
		y := make([]float64, len(points))
		for j, p := range points {
			x[j] = p.day
			y[j] = p.modal.InexactFloat64()
			if (i == 0 && j == 0) || p.modal.LessThan(lo) {
				lo = p.modal
			}
			if (i == 0 && j == 0) || p.modal.GreaterThan(hi) {
				hi = p.modal
			}
		}
		graph.Series = append(graph.Series, chart.TimeSeries{Name: name, XValues: x, YValues: y})
	}
	if lo.Equal(hi) {
		// flat prices would collapse the y range
		mid := lo.InexactFloat64()
		graph.YAxis.Range = &chart.ContinuousRange{Min: mid - 1, Max: mid + 1}
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
