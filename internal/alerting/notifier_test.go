package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandi-pricecheck/internal/verify"
)

func sampleReport(status verify.Status) verify.Report {
	results := []verify.ProbeResult{
		verify.OK(verify.NameSource, "source reachable, 5 sample records received", nil),
		verify.OK(verify.NameStore, "store connection established", nil),
	}
	switch status {
	case verify.StatusWarn:
		results = append(results, verify.Warn(verify.NameFreshness, verify.KindStaleData, "latest observation is 9 days old", nil))
	case verify.StatusFail:
		results = append(results, verify.Fail(verify.NameFreshness, verify.KindNoData, "no price data: daily_prices has no rows", nil))
	}
	return verify.Report{
		RunID:      "run-42",
		Status:     verify.Reduce(results...),
		Today:      "2024-05-10",
		FinishedAt: time.Date(2024, 5, 10, 1, 0, 0, 0, time.UTC),
		Results:    results,
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottoken/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL+"/", time.Second, testLogger())
	require.NoError(t, notifier.Notify(context.Background(), FromReport(sampleReport(verify.StatusFail))))

	assert.Equal(t, "chat", received["chat_id"])
	text := received["text"]
	assert.Contains(t, text, "[Mandi price check] FAIL")
	assert.Contains(t, text, "Run: run-42")
	assert.Contains(t, text, "FAIL freshness: no price data")
	assert.Contains(t, text, "Finished: 2024-05-10T01:00:00Z UTC")
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), FromReport(sampleReport(verify.StatusWarn)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramNotifierStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), Notification{Status: verify.StatusFail})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestTelegramNotifierHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	notifier := NewTelegramNotifier("secret-token", "chat", addr, time.Second, testLogger())
	err := notifier.Notify(context.Background(), Notification{Status: verify.StatusFail})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestLogNotifierLevels(t *testing.T) {
	var buf bytes.Buffer
	notifier := NewLogNotifier(zerolog.New(&buf))

	require.NoError(t, notifier.Notify(context.Background(), FromReport(sampleReport(verify.StatusWarn))))

	line := buf.String()
	assert.Contains(t, line, `"level":"warn"`)
	assert.Contains(t, line, `"component":"alert_log"`)
	assert.Contains(t, line, "freshness=WARN")
}

type recordingNotifier struct {
	calls []Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.calls = append(r.calls, n)
	return r.err
}

func TestPolicyThreshold(t *testing.T) {
	cases := []struct {
		notifyOn verify.Status
		status   verify.Status
		want     bool
	}{
		{verify.StatusFail, verify.StatusOK, false},
		{verify.StatusFail, verify.StatusWarn, false},
		{verify.StatusFail, verify.StatusFail, true},
		{verify.StatusWarn, verify.StatusWarn, true},
		{verify.StatusWarn, verify.StatusFail, true},
		{verify.StatusOK, verify.StatusOK, true},
		{"", verify.StatusWarn, false},
	}
	for _, tc := range cases {
		rec := &recordingNotifier{}
		policy := NewPolicy(rec, tc.notifyOn, testLogger())

		sent, err := policy.Dispatch(context.Background(), sampleReport(tc.status))
		require.NoError(t, err)
		assert.Equal(t, tc.want, sent, "notify_on=%s status=%s", tc.notifyOn, tc.status)
		assert.Len(t, rec.calls, map[bool]int{true: 1, false: 0}[tc.want])
	}
}

func TestPolicyPropagatesError(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("boom")}
	policy := NewPolicy(rec, verify.StatusWarn, testLogger())

	sent, err := policy.Dispatch(context.Background(), sampleReport(verify.StatusFail))
	assert.False(t, sent)
	assert.EqualError(t, err, "boom")
}

func TestNilPolicyIsInert(t *testing.T) {
	var policy *Policy
	sent, err := policy.Dispatch(context.Background(), sampleReport(verify.StatusFail))
	assert.False(t, sent)
	assert.NoError(t, err)
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
