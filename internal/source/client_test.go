package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFetchNotConfigured(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://localhost"}, noopLogger())
	_, err := c.Sample(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSampleSendsQueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key-123", q.Get("api-key"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "Mandi-Price-Tracker/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"total": 4120,
			"count": "2",
			"updated_date": "2026-10-16T06:01:22Z",
			"records": [
				{"state":"Rajasthan","district":"Jaipur","market":"Jaipur (F&V)","commodity":"Tomato","variety":"Hybrid","grade":"FAQ","arrival_date":"15/10/2026","min_price":"1000","max_price":"1500","modal_price":"1200"},
				{"state":"Rajasthan","district":"Jaipur","market":"Jaipur (Grain)","commodity":"Wheat","variety":"Other","grade":"FAQ","arrival_date":"15/10/2026","min_price":2400,"max_price":2550,"modal_price":"NA"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/", APIKey: "key-123", Timeout: time.Second, UserAgent: "Mandi-Price-Tracker/1.0"}, noopLogger())
	page, err := c.Sample(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, 4120, page.Total)
	assert.Equal(t, 2, page.Count)
	require.Len(t, page.Records, 2)

	tomato := page.Records[0]
	assert.Equal(t, "Tomato", tomato.Commodity)
	require.True(t, tomato.ModalPrice.Valid)
	assert.True(t, tomato.ModalPrice.Decimal.Equal(decimal.NewFromInt(1200)))
	date, err := tomato.Date()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC), date)

	wheat := page.Records[1]
	assert.True(t, wheat.MinPrice.Valid)
	assert.False(t, wheat.ModalPrice.Valid)
}

func TestFetchFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Rajasthan", r.URL.Query().Get("filters[state]"))
		assert.Equal(t, "100", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(`{"records": []}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k"}, noopLogger())
	page, err := c.Fetch(context.Background(), Query{Limit: 10, Offset: 100, Filters: map[string]string{"state": "Rajasthan"}})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
}

func TestFetchResponseShapes(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
		records int
	}{
		{name: "empty records", status: http.StatusOK, body: `{"records": []}`},
		{name: "null records", status: http.StatusOK, body: `{"records": null}`},
		{name: "missing records", status: http.StatusOK, body: `{"total": 0}`, wantErr: ErrMissingRecords},
		{name: "not json", status: http.StatusOK, body: `<html>maintenance</html>`, wantErr: ErrMalformed},
		{name: "records not a list", status: http.StatusOK, body: `{"records": {"a": 1}}`, wantErr: ErrMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second}, noopLogger())
			page, err := c.Sample(context.Background(), 5)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, page.Records, tc.records)
		})
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "bad", Timeout: time.Second}, noopLogger())
	_, err := c.Sample(context.Background(), 5)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.Code)
	assert.Contains(t, statusErr.Error(), "invalid api key")
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", Timeout: 50 * time.Millisecond}, noopLogger())
	_, err := c.Sample(context.Background(), 5)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: addr, APIKey: "secret-key", Timeout: time.Second}, noopLogger())
	_, err := c.Sample(context.Background(), 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.NotContains(t, err.Error(), "secret-key")
	assert.Contains(t, err.Error(), "api-key=%2A%2A%2A")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://api.example/r?api-key=%2A%2A%2A&format=json", redactURL("https://api.example/r?api-key=abc&format=json"))
	assert.Equal(t, "https://api.example/r?format=json", redactURL("https://api.example/r?format=json"))
}
