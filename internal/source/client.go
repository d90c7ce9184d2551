package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mandi-pricecheck/internal/logging"
)

var (
	// ErrNotConfigured indicates a missing resource URL or API key.
	ErrNotConfigured = errors.New("source: url or api key not configured")
	// ErrTimeout indicates the request did not complete in time.
	ErrTimeout = errors.New("source: request timed out")
	// ErrMissingRecords indicates a response without a records field.
	ErrMissingRecords = errors.New("source: response has no records field")
	// ErrMalformed indicates a body that is not the expected JSON shape.
	ErrMalformed = errors.New("source: malformed response")
)

const defaultTimeout = 120 * time.Second

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("open-data api error (%d)", e.Code)
	}
	return fmt.Sprintf("open-data api error (%d): %s", e.Code, e.Body)
}

// Options parameterise the open-data client.
type Options struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// Query selects a page of records.
type Query struct {
	Limit   int
	Offset  int
	Filters map[string]string
}

// Page is one decoded response.
type Page struct {
	Records     []Record
	Total       int
	Count       int
	UpdatedDate string
	Elapsed     time.Duration
}

// Client fetches records from the open-data resource.
type Client struct {
	opts   Options
	logger zerolog.Logger
	client *http.Client
}

// NewClient constructs a client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")

	return &Client{
		opts:   opts,
		logger: logging.Component(logger, "source_client"),
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// Sample fetches up to limit records from the first page.
func (c *Client) Sample(ctx context.Context, limit int) (Page, error) {
	return c.Fetch(ctx, Query{Limit: limit})
}

// Fetch issues a single GET for the query. No retries are attempted.
func (c *Client) Fetch(ctx context.Context, q Query) (Page, error) {
	if c.opts.BaseURL == "" || c.opts.APIKey == "" {
		return Page{}, ErrNotConfigured
	}

	endpoint, err := c.buildURL(q)
	if err != nil {
		return Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	started := time.Now()
	c.logger.Debug().Str("url", c.opts.BaseURL).Int("limit", q.Limit).Int("offset", q.Offset).Msg("requesting records")

	resp, err := c.client.Do(req)
	if err != nil {
		return Page{}, classifyTransport(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, classifyTransport(err)
	}
	elapsed := time.Since(started)

	if resp.StatusCode != http.StatusOK {
		return Page{}, &StatusError{Code: resp.StatusCode, Body: trimBody(payload)}
	}

	page, err := decodePage(payload)
	if err != nil {
		return Page{}, err
	}
	page.Elapsed = elapsed

	c.logger.Debug().Int("records", len(page.Records)).Int("total", page.Total).Dur("elapsed", elapsed).Msg("records received")
	return page, nil
}

func (c *Client) buildURL(q Query) (string, error) {
	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}

	params := u.Query()
	params.Set("api-key", c.opts.APIKey)
	params.Set("format", "json")
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	for field, value := range q.Filters {
		params.Set(fmt.Sprintf("filters[%s]", field), value)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

type pageResponse struct {
	Records     json.RawMessage `json:"records"`
	Total       flexInt         `json:"total"`
	Count       flexInt         `json:"count"`
	UpdatedDate string          `json:"updated_date"`
}

func decodePage(payload []byte) (Page, error) {
	var body pageResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(body.Records) == 0 {
		return Page{}, ErrMissingRecords
	}

	var records []Record
	if err := json.Unmarshal(body.Records, &records); err != nil {
		return Page{}, fmt.Errorf("%w: records: %v", ErrMalformed, err)
	}
	if records == nil {
		records = []Record{}
	}

	return Page{
		Records:     records,
		Total:       int(body.Total),
		Count:       int(body.Count),
		UpdatedDate: body.UpdatedDate,
	}, nil
}

func classifyTransport(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = redactURL(urlErr.URL)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("request records: %w", err)
}

// redactURL masks the api-key query parameter.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	params := u.Query()
	if params.Has("api-key") {
		params.Set("api-key", "***")
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func trimBody(payload []byte) string {
	body := strings.TrimSpace(string(payload))
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return body
}
