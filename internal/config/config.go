package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mandi-pricecheck/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Source    SourceConfig    `mapstructure:"source"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Checks    ChecksConfig    `mapstructure:"checks"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SourceConfig covers the open-data price resource.
type SourceConfig struct {
	URL         string        `mapstructure:"url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SampleLimit int           `mapstructure:"sample_limit"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. DSN wins over the
// discrete fields when set.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// ChecksConfig tunes the freshness and integrity checks.
type ChecksConfig struct {
	LookbackCount      int    `mapstructure:"lookback_count"`
	StaleThresholdDays int    `mapstructure:"stale_threshold_days"`
	MarketPattern      string `mapstructure:"market_pattern"`
	CommodityPattern   string `mapstructure:"commodity_pattern"`
	WindowDays         int    `mapstructure:"window_days"`
	Timezone           string `mapstructure:"timezone"`
}

// SchedulerConfig governs the watch cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	At           string        `mapstructure:"at"`
	RunOnStartup bool          `mapstructure:"run_on_startup"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	NotifyOn string         `mapstructure:"notify_on"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRecords int `mapstructure:"max_records"`
}

// legacyEnv maps config keys onto the variable names used by the ingestion
// pipeline's .env files.
var legacyEnv = map[string]string{
	"source.url":        "OPENGOV_API_URL",
	"source.api_key":    "OPENGOV_API_KEY",
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.name":     "DB_NAME",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"logging.level":     "LOG_LEVEL",
}

const envPrefix = "PRICECHECK"

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricecheck")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("source.url", "https://api.data.gov.in/resource/9ef84268-d588-465a-a308-a864a43d0070")
	v.SetDefault("source.timeout", "120s")
	v.SetDefault("source.sample_limit", 5)
	v.SetDefault("source.user_agent", "Mandi-Price-Tracker/1.0")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "agrimatrix_prices")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.query_timeout", "30s")

	v.SetDefault("checks.lookback_count", 5)
	v.SetDefault("checks.stale_threshold_days", 3)
	v.SetDefault("checks.market_pattern", "jaipur")
	v.SetDefault("checks.window_days", 7)
	v.SetDefault("checks.timezone", "Asia/Kolkata")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.at", "06:30")
	v.SetDefault("scheduler.run_on_startup", false)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.notify_on", "fail")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.max_records", 50000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be greater than zero")
	}
	if c.Source.SampleLimit <= 0 {
		return fmt.Errorf("source.sample_limit must be greater than zero")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port out of range: %d", c.Database.Port)
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be greater than zero")
	}
	if c.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("database.connect_timeout must be greater than zero")
	}
	if c.Checks.LookbackCount <= 0 {
		return fmt.Errorf("checks.lookback_count must be greater than zero")
	}
	if c.Checks.StaleThresholdDays < 0 {
		return fmt.Errorf("checks.stale_threshold_days cannot be negative")
	}
	if c.Checks.WindowDays <= 0 {
		return fmt.Errorf("checks.window_days must be greater than zero")
	}
	if _, err := c.Checks.Location(); err != nil {
		return err
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if _, _, err := c.Scheduler.TimeOfDay(); err != nil {
		return err
	}
	switch strings.ToLower(c.Alerting.NotifyOn) {
	case "fail", "warn":
	default:
		return fmt.Errorf("alerting.notify_on must be fail or warn, got %q", c.Alerting.NotifyOn)
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Export.MaxRecords <= 0 {
		return fmt.Errorf("export.max_records must be greater than zero")
	}
	return nil
}

// ConnString returns the pgx connection string. It carries the password and
// must never be logged; use Address for diagnostics.
func (c DatabaseConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	query := url.Values{}
	if c.SSLMode != "" {
		query.Set("sslmode", c.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		seconds := int(c.ConnectTimeout.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		query.Set("connect_timeout", strconv.Itoa(seconds))
	}
	u.RawQuery = query.Encode()
	if c.Password == "" {
		u.User = url.User(c.User)
	}
	return u.String()
}

// Address is a secret-free description of the store target.
func (c DatabaseConfig) Address() string {
	if c.DSN != "" {
		if parsed, err := url.Parse(c.DSN); err == nil && parsed.Host != "" {
			return parsed.Host + parsed.Path
		}
		return "dsn"
	}
	return fmt.Sprintf("%s/%s", net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.Name)
}

// Location resolves the timezone used to decide what "today" is.
func (c ChecksConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("checks.timezone: %w", err)
	}
	return loc, nil
}

// TimeOfDay parses scheduler.at (HH:MM) into an offset from midnight. ok is
// false when scheduler.at is empty.
func (c SchedulerConfig) TimeOfDay() (offset time.Duration, ok bool, err error) {
	at := strings.TrimSpace(c.At)
	if at == "" {
		return 0, false, nil
	}
	parsed, err := time.Parse("15:04", at)
	if err != nil {
		return 0, false, fmt.Errorf("scheduler.at must be HH:MM: %w", err)
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, true, nil
}
