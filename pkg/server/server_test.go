package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokaycavdar/go-loginguard/pkg/guard"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

type fakeGuard struct {
	last      guard.Request
	err       error
	locked    bool
	expiry    time.Time
	lastLimit int
}

func (f *fakeGuard) Process(_ context.Context, req guard.Request) (guard.Outcome, error) {
	f.last = req
	if f.err != nil {
		return guard.Outcome{}, f.err
	}
	return guard.Outcome{
		Event: req.Event,
		Assessment: models.RiskAssessment{
			UserID:    req.Event.UserID,
			RiskScore: 0,
			Reasons:   []string{models.NoAnomalies},
			Status:    models.StatusEvaluated,
		},
		Explanation: "✅ Login is SAFE (score 0)",
	}, nil
}

func (f *fakeGuard) LockStatus(string) (bool, time.Time) { return f.locked, f.expiry }

func (f *fakeGuard) Events(_ context.Context, limit int) ([]models.LoginEvent, error) {
	f.lastLimit = limit
	return []models.LoginEvent{{ID: "e1", UserID: "u1"}}, nil
}

func (f *fakeGuard) Results(_ context.Context, limit int) ([]models.RiskAssessment, error) {
	f.lastLimit = limit
	return []models.RiskAssessment{{UserID: "u1", RiskScore: 80}}, nil
}

func newTestServer(t *testing.T, g Guard, cfg Config) http.Handler {
	t.Helper()
	s, err := New(g, cfg)
	require.NoError(t, err)
	return s.Handler()
}

func do(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIngest_Success(t *testing.T) {
	g := &fakeGuard{}
	h := newTestServer(t, g, Config{})

	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	w := do(h, http.MethodPost, "/api/v1/ingest", map[string]any{
		"user_id":   "u1",
		"ip":        "203.0.113.5",
		"device_id": "d1",
		"browser":   "Chrome",
		"timestamp": ts,
		"success":   true,
		"features":  map[string]float64{"hour_of_day": 10},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, []string{models.NoAnomalies}, resp.Evaluation.Reasons)
	assert.NotEmpty(t, resp.Explanation)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	assert.Equal(t, "203.0.113.5", g.last.Event.IP)
	assert.True(t, g.last.Event.Timestamp.Equal(ts))
	require.NotNil(t, g.last.Event.Success)
	assert.True(t, *g.last.Event.Success)
	require.NotNil(t, g.last.Features)
	assert.Equal(t, 10.0, g.last.Features.HourOfDay)
}

func TestIngest_FallsBackToClientIP(t *testing.T) {
	g := &fakeGuard{}
	h := newTestServer(t, g, Config{})

	w := do(h, http.MethodPost, "/api/v1/ingest", map[string]any{"user_id": "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "192.0.2.1", g.last.Event.IP)
	assert.True(t, g.last.Event.Timestamp.IsZero(), "guard stamps the time")
}

func TestIngest_Validation(t *testing.T) {
	h := newTestServer(t, &fakeGuard{}, Config{})

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/v1/ingest", map[string]any{"ip": "1.2.3.4"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/v1/ingest", map[string]any{"user_id": "u1", "ip": "nope"}).Code)
}

func TestIngest_GuardErrors(t *testing.T) {
	g := &fakeGuard{err: fmt.Errorf("%w: bad", models.ErrInvalidEvent)}
	h := newTestServer(t, g, Config{})
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/v1/ingest", map[string]any{"user_id": "u1"}).Code)

	g.err = errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, do(h, http.MethodPost, "/api/v1/ingest", map[string]any{"user_id": "u1"}).Code)
}

func TestIngest_RateLimited(t *testing.T) {
	h := newTestServer(t, &fakeGuard{}, Config{IngestRatePerSecond: 0.001, IngestBurst: 2})

	body := map[string]any{"user_id": "u1"}
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/v1/ingest", body).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/v1/ingest", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/api/v1/ingest", body).Code)

	// Queries are not limited.
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/events", nil).Code)
}

func TestListEndpoints(t *testing.T) {
	g := &fakeGuard{}
	h := newTestServer(t, g, Config{})

	w := do(h, http.MethodGet, "/api/v1/events?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"events"`)
	assert.Equal(t, 5, g.lastLimit)

	w = do(h, http.MethodGet, "/api/v1/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"risk_score":80`)
	assert.Equal(t, 0, g.lastLimit)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/v1/results?limit=-1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/v1/results?limit=abc", nil).Code)
}

func TestLockStatus(t *testing.T) {
	expiry := time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)
	g := &fakeGuard{locked: true, expiry: expiry}
	h := newTestServer(t, g, Config{})

	w := do(h, http.MethodGet, "/api/v1/users/u1/lock", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp lockResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Locked)
	require.NotNil(t, resp.LockExpiresAt)
	assert.True(t, resp.LockExpiresAt.Equal(expiry))

	g.locked = false
	w = do(h, http.MethodGet, "/api/v1/users/u1/lock", nil)
	assert.JSONEq(t, `{"user_id":"u1","locked":false}`, w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, &fakeGuard{}, Config{})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", nil).Code)
	w := do(h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRequestID_Propagated(t *testing.T) {
	h := newTestServer(t, &fakeGuard{}, Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}
