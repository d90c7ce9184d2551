package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mandi-pricecheck/internal/verify"
)

// Notification carries the summary of one verification run.
type Notification struct {
	RunID         string
	Status        verify.Status
	Today         string
	FinishedAt    time.Time
	Results       []verify.ProbeResult
	AdditionalMsg string
}

// FromReport condenses a report into a notification.
func FromReport(rep verify.Report) Notification {
	return Notification{
		RunID:      rep.RunID,
		Status:     rep.Status,
		Today:      rep.Today,
		FinishedAt: rep.FinishedAt,
		Results:    rep.Results,
	}
}

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered summary.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep it out of the error.
		return fmt.Errorf("send telegram request: %w", unwrapURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false: %s", result.Description)
	}

	n.logger.Info().Str("run_id", note.RunID).
		Str("status", string(note.Status)).
		Msg("notification sent (telegram)")
	return nil
}

// LogNotifier records notifications in the log only. It stands in when no
// delivery channel is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier builds a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the summary at a level matching the run status.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	event := n.logger.Info()
	switch note.Status {
	case verify.StatusWarn:
		event = n.logger.Warn()
	case verify.StatusFail:
		event = n.logger.Error()
	}
	event.Str("run_id", note.RunID).
		Str("status", string(note.Status)).
		Str("summary", summaryLine(note)).
		Msg("verification notification")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[Mandi price check] %s\n", note.Status))
	builder.WriteString(fmt.Sprintf("Run: %s\n", note.RunID))
	if note.Today != "" {
		builder.WriteString(fmt.Sprintf("Date: %s\n", note.Today))
	}
	if !note.FinishedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Finished: %s UTC\n", note.FinishedAt.UTC().Format(time.RFC3339)))
	}
	for _, res := range note.Results {
		builder.WriteString(fmt.Sprintf("%s %s: %s\n", res.Status, res.Name, res.Message))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

func summaryLine(note Notification) string {
	parts := make([]string, 0, len(note.Results))
	for _, res := range note.Results {
		parts = append(parts, fmt.Sprintf("%s=%s", res.Name, res.Status))
	}
	return strings.Join(parts, " ")
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
