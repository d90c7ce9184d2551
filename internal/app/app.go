package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"mandi-pricecheck/internal/alerting"
	"mandi-pricecheck/internal/config"
	"mandi-pricecheck/internal/report"
	"mandi-pricecheck/internal/source"
	"mandi-pricecheck/internal/storage"
	"mandi-pricecheck/internal/verify"
	"mandi-pricecheck/internal/version"
)

// ErrVerificationFailed signals a run whose overall status crossed the
// failure threshold. The CLI maps it to a non-zero exit code.
var ErrVerificationFailed = errors.New("verification failed")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// overridable in tests
	sampler  verify.SourceSampler
	opener   verify.OpenFunc
	reader   func(ctx context.Context) (readStore, error)
	notifier alerting.Notifier
	now      func() time.Time
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), now: time.Now}
}

func (a *App) newSampler() verify.SourceSampler {
	if a.sampler != nil {
		return a.sampler
	}
	cfg := a.Config.Source
	ua := cfg.UserAgent
	if ua == "" {
		ua = version.UserAgent()
	}
	return source.NewClient(source.Options{
		BaseURL:   cfg.URL,
		APIKey:    cfg.APIKey,
		Timeout:   cfg.Timeout,
		UserAgent: ua,
	}, a.Logger)
}

func (a *App) storeOpener() verify.OpenFunc {
	if a.opener != nil {
		return a.opener
	}
	return func(ctx context.Context) (verify.Store, error) {
		store, err := storage.Open(ctx, a.Config.Database)
		if err != nil {
			// a typed nil would satisfy the interface
			return nil, err
		}
		return store, nil
	}
}

// readStore is the query surface used by show and export.
type readStore interface {
	TableCounts(ctx context.Context) (storage.TableCounts, error)
	RecentRecords(ctx context.Context, limit int) ([]storage.PriceRecord, error)
	WindowRecords(ctx context.Context, q storage.IntegrityWindowQuery) ([]storage.PriceRecord, error)
	Close() error
}

func (a *App) openStore(ctx context.Context) (readStore, error) {
	if a.reader != nil {
		return a.reader(ctx)
	}
	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("database", a.Config.Database.Address()).Msg("store connected")
	return store, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.notifier != nil {
		return a.notifier
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

func (a *App) newPolicy() (*alerting.Policy, error) {
	if !a.Config.Alerting.Enabled {
		return nil, nil
	}
	notifyOn, err := verify.ParseStatus(a.Config.Alerting.NotifyOn)
	if err != nil {
		return nil, err
	}
	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("alerting enabled without a channel; notifications go to the log")
		notifier = alerting.NewLogNotifier(a.Logger)
	}
	return alerting.NewPolicy(notifier, notifyOn, a.Logger), nil
}

// WindowOptions override the configured integrity window.
type WindowOptions struct {
	MarketPattern    string
	CommodityPattern string
	From             *time.Time
	To               *time.Time
}

func (a *App) runOptions(w WindowOptions) (verify.Options, error) {
	checks := a.Config.Checks
	loc, err := checks.Location()
	if err != nil {
		return verify.Options{}, err
	}

	window := storage.IntegrityWindowQuery{
		MarketPattern:    checks.MarketPattern,
		CommodityPattern: checks.CommodityPattern,
	}
	if w.MarketPattern != "" {
		window.MarketPattern = w.MarketPattern
	}
	if w.CommodityPattern != "" {
		window.CommodityPattern = w.CommodityPattern
	}
	if w.From != nil {
		window.Start = storage.DateOf(*w.From)
	}
	if w.To != nil {
		window.End = storage.DateOf(*w.To)
	}
	if !window.Start.IsZero() && !window.End.IsZero() && window.Start.After(window.End) {
		return verify.Options{}, errors.New("from must not be after to")
	}

	return verify.Options{
		SampleLimit:        a.Config.Source.SampleLimit,
		LookbackCount:      checks.LookbackCount,
		StaleThresholdDays: checks.StaleThresholdDays,
		WindowDays:         checks.WindowDays,
		Window:             window,
		Location:           loc,
	}, nil
}

func (a *App) newRunner() *verify.Runner {
	runner := verify.NewRunner(a.newSampler(), a.storeOpener(), a.Logger)
	if a.now != nil {
		runner.WithClock(a.now)
	}
	return runner
}

// VerifyOptions configure a single verification run.
type VerifyOptions struct {
	Window     WindowOptions
	Format     report.Format
	Verbose    bool
	FailOnWarn bool
	Notify     bool
	Output     io.Writer
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Output io.Writer
}

// ExportOptions hold parameters for exporting the integrity window slice.
type ExportOptions struct {
	Window     WindowOptions
	PNGPath    string
	CSVPath    string
	MaxRecords int
}
