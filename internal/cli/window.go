package cli

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"mandi-pricecheck/internal/app"
)

// windowFlags select the integrity window slice.
type windowFlags struct {
	market    string
	commodity string
	from      string
	to        string
}

func (w *windowFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&w.market, "market", "", "Market name pattern, case-insensitive substring (defaults to checks.market_pattern)")
	fs.StringVar(&w.commodity, "commodity", "", "Commodity name pattern, case-insensitive substring")
	fs.StringVar(&w.from, "from", "", "Window start date YYYY-MM-DD (inclusive)")
	fs.StringVar(&w.to, "to", "", "Window end date YYYY-MM-DD (inclusive, defaults to today)")
}

func (w *windowFlags) options() (app.WindowOptions, error) {
	opts := app.WindowOptions{
		MarketPattern:    w.market,
		CommodityPattern: w.commodity,
	}
	if w.from != "" {
		from, err := time.Parse(time.DateOnly, w.from)
		if err != nil {
			return opts, fmt.Errorf("invalid --from value: %w", err)
		}
		opts.From = &from
	}
	if w.to != "" {
		to, err := time.Parse(time.DateOnly, w.to)
		if err != nil {
			return opts, fmt.Errorf("invalid --to value: %w", err)
		}
		opts.To = &to
	}
	return opts, nil
}
