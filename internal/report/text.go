package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"mandi-pricecheck/internal/storage"
	"mandi-pricecheck/internal/verify"
)

const defaultRecordLimit = 50

var (
	okColor   = lipgloss.Color("#22C55E")
	warnColor = lipgloss.Color("#F59E0B")
	failColor = lipgloss.Color("#EF4444")
	dimColor  = lipgloss.Color("#6B7280")
)

type palette struct {
	status map[verify.Status]lipgloss.Style
	title  lipgloss.Style
	dim    lipgloss.Style
}

// newPalette binds styles to w so that colour is dropped when w is not a
// terminal.
func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	return palette{
		status: map[verify.Status]lipgloss.Style{
			verify.StatusOK:   r.NewStyle().Foreground(okColor).Bold(true),
			verify.StatusWarn: r.NewStyle().Foreground(warnColor).Bold(true),
			verify.StatusFail: r.NewStyle().Foreground(failColor).Bold(true),
		},
		title: r.NewStyle().Bold(true),
		dim:   r.NewStyle().Foreground(dimColor),
	}
}

func (p palette) marker(s verify.Status) string {
	return p.status[s].Render(fmt.Sprintf("%-6s", "["+string(s)+"]"))
}

func renderText(w io.Writer, rep verify.Report, opts Options) error {
	p := newPalette(w)
	var b strings.Builder

	b.WriteString(p.title.Render("Price pipeline verification"))
	b.WriteString(" ")
	b.WriteString(p.dim.Render(fmt.Sprintf("run %s, today %s", rep.RunID, rep.Today)))
	b.WriteString("\n\n")

	for _, res := range rep.Results {
		fmt.Fprintf(&b, "%s %-10s %s\n", p.marker(res.Status), res.Name, res.Message)
		if opts.Verbose {
			for _, line := range detailLines(res.Detail) {
				b.WriteString("           ")
				b.WriteString(p.dim.Render(line))
				b.WriteString("\n")
			}
		}
	}

	counts := rep.Counts()
	fmt.Fprintf(&b, "\noverall %s  %d ok, %d warn, %d fail\n",
		p.marker(rep.Status),
		counts[verify.StatusOK],
		counts[verify.StatusWarn],
		counts[verify.StatusFail],
	)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	if opts.Verbose && len(rep.Records) > 0 {
		limit := opts.RecordLimit
		if limit <= 0 {
			limit = defaultRecordLimit
		}
		return writeRecords(w, rep.Records, limit)
	}
	return nil
}

func detailLines(detail any) []string {
	switch d := detail.(type) {
	case verify.SourceDetail:
		lines := []string{fmt.Sprintf("records=%d total=%d updated=%s elapsed=%dms", d.Records, d.Total, d.UpdatedDate, d.ElapsedMS)}
		for _, p := range d.Preview {
			lines = append(lines, fmt.Sprintf("%s @ %s, %s, %s: modal %s on %s", p.Commodity, p.Market, p.District, p.State, p.ModalPrice, p.ArrivalDate))
		}
		return lines
	case verify.StoreDetail:
		var lines []string
		if d.ServerVersion != "" {
			lines = append(lines, firstClause(d.ServerVersion))
		}
		if d.PriceRows != nil {
			lines = append(lines, fmt.Sprintf("daily_prices rows=%d", *d.PriceRows))
		}
		return lines
	case verify.FreshnessReport:
		if len(d.Dates) == 0 {
			return nil
		}
		return []string{fmt.Sprintf("latest dates: %s", strings.Join(d.Dates, ", "))}
	case verify.IntegrityDetail:
		lines := []string{fmt.Sprintf("records=%d markets=%d commodities=%d", d.Records, len(d.Markets), len(d.Commodities))}
		if len(d.MissingDates) > 0 {
			lines = append(lines, fmt.Sprintf("days without rows: %s", strings.Join(d.MissingDates, ", ")))
		}
		return lines
	}
	return nil
}

// firstClause trims "PostgreSQL 16.2 on x86_64-pc-linux-gnu, compiled by ..."
// to its leading clause.
func firstClause(v string) string {
	if i := strings.Index(v, ","); i > 0 {
		return v[:i]
	}
	return v
}

func writeRecords(w io.Writer, records []storage.PriceRecord, limit int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nDate\tMarket\tCommodity\tModal")
	for i, rec := range records {
		if i == limit {
			fmt.Fprintf(tw, "...\t%d more\t\t\n", len(records)-limit)
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			storage.FormatDate(rec.ObservationDate),
			rec.MarketName,
			rec.CommodityName,
			FormatPrice(rec.ModalPrice),
		)
	}
	return tw.Flush()
}
