package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokaycavdar/go-loginguard/pkg/bruteforce"
	"github.com/gokaycavdar/go-loginguard/pkg/engine"
	"github.com/gokaycavdar/go-loginguard/pkg/ensemble"
	"github.com/gokaycavdar/go-loginguard/pkg/geoip"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
	"github.com/gokaycavdar/go-loginguard/pkg/rules"
	"github.com/gokaycavdar/go-loginguard/pkg/storage"
)

type memLog struct {
	mu      sync.Mutex
	events  []models.LoginEvent
	results []models.RiskAssessment
	failing bool
}

func (m *memLog) SaveEvent(_ context.Context, e models.LoginEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memLog) SaveResult(_ context.Context, r models.RiskAssessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	m.results = append(m.results, r)
	return nil
}

func (m *memLog) ListEvents(context.Context, int) ([]models.LoginEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LoginEvent(nil), m.events...), nil
}

func (m *memLog) ListResults(context.Context, int) ([]models.RiskAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RiskAssessment(nil), m.results...), nil
}

func (m *memLog) Close() error { return nil }

type recordingNotifier struct {
	sent []models.RiskAssessment
}

func (r *recordingNotifier) Notify(_ context.Context, a models.RiskAssessment) error {
	r.sent = append(r.sent, a)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

type fixture struct {
	svc      *Service
	log      *memLog
	notifier *recordingNotifier
	clock    *clock
}

func newFixture(t *testing.T, combiner *ensemble.Combiner) *fixture {
	t.Helper()

	resolver := geoip.NewStaticResolver()
	resolver.Set("198.51.100.10", "Europe", "Germany", "Berlin", 52.52, 13.405)
	resolver.Set("198.51.100.20", "South America", "Peru", "Lima", -12.0464, -77.0428)

	clk := &clock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	tracker, err := bruteforce.NewTracker(bruteforce.DefaultTrackerConfig(), bruteforce.WithClock(clk.Now))
	require.NoError(t, err)

	log := &memLog{}
	notifier := &recordingNotifier{}
	svc, err := New(Deps{
		Resolver:  resolver,
		Evaluator: engine.NewDefault(storage.NewMemoryStore(), rules.DefaultConfig()),
		Policy:    bruteforce.NewPolicy(tracker, bruteforce.DefaultPolicyConfig()),
		Combiner:  combiner,
		Log:       log,
		Notifier:  notifier,
		Now:       clk.Now,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, log: log, notifier: notifier, clock: clk}
}

func login(ip string, ts time.Time, success bool) Request {
	return Request{Event: models.LoginEvent{
		UserID:    "u1",
		IP:        ip,
		DeviceID:  "d1",
		Browser:   "Chrome",
		Timestamp: ts,
		Success:   &success,
	}}
}

func TestProcess_InvalidEvent(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Process(context.Background(), Request{Event: models.LoginEvent{IP: "1.2.3.4"}})
	assert.ErrorIs(t, err, models.ErrInvalidEvent)
	assert.Empty(t, f.log.events)
}

func TestProcess_StampsIDAndTimestamp(t *testing.T) {
	f := newFixture(t, nil)

	out, err := f.svc.Process(context.Background(), Request{Event: models.LoginEvent{UserID: "u1", IP: "198.51.100.10"}})
	require.NoError(t, err)
	assert.Len(t, out.Event.ID, 36)
	assert.True(t, out.Event.Timestamp.Equal(f.clock.t))
	require.NotNil(t, out.Event.Geo)
	assert.Equal(t, "Berlin", out.Event.Geo.City)
	assert.Equal(t, models.StatusEvaluated, out.Assessment.Status)
	assert.Equal(t, "✅ Login is SAFE (score 0)", out.Explanation)
}

func TestProcess_ImpossibleTravelAlerts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	base := f.clock.t

	_, err := f.svc.Process(ctx, login("198.51.100.10", base, true))
	require.NoError(t, err)
	out, err := f.svc.Process(ctx, login("198.51.100.20", base.Add(30*time.Minute), true))
	require.NoError(t, err)

	assert.Equal(t, 80, out.Assessment.RiskScore)
	assert.Equal(t, "Lima", out.Assessment.Geo.City)
	assert.Contains(t, out.Explanation, "Suspicious Login (score 80)")

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, 80, f.notifier.sent[0].RiskScore)
	assert.Len(t, f.log.events, 2)
	assert.Len(t, f.log.results, 2)
}

func TestProcess_BruteForceLockAndRecovery(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ts := f.clock.t

	first, err := f.svc.Process(ctx, login("198.51.100.10", ts, false))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, first.Assessment.Status)

	second, err := f.svc.Process(ctx, login("198.51.100.10", ts, false))
	require.NoError(t, err)
	assert.Equal(t, models.StatusLockedNow, second.Assessment.Status)
	assert.Equal(t, 80, second.Assessment.RiskScore)
	require.Len(t, f.notifier.sent, 1, "lock raises an alert")

	// A correct password while locked is still rejected and not evaluated.
	blocked, err := f.svc.Process(ctx, login("198.51.100.10", ts, true))
	require.NoError(t, err)
	assert.Equal(t, models.StatusLocked, blocked.Assessment.Status)
	assert.Equal(t, []string{bruteforce.ReasonLocked}, blocked.Assessment.Reasons)

	locked, expiry := f.svc.LockStatus("u1")
	assert.True(t, locked)
	assert.Equal(t, f.clock.t.Add(15*time.Minute), expiry)

	f.clock.t = f.clock.t.Add(16 * time.Minute)
	locked, _ = f.svc.LockStatus("u1")
	assert.False(t, locked)

	ok, err := f.svc.Process(ctx, login("198.51.100.10", f.clock.t, true))
	require.NoError(t, err)
	assert.Equal(t, models.StatusEvaluated, ok.Assessment.Status)
}

func TestProcess_PersistenceFailureDoesNotChangeDecision(t *testing.T) {
	f := newFixture(t, nil)
	f.log.failing = true

	out, err := f.svc.Process(context.Background(), login("198.51.100.10", f.clock.t, true))
	require.NoError(t, err)
	assert.Equal(t, models.StatusEvaluated, out.Assessment.Status)
}

func TestProcess_UnknownIPStillEvaluates(t *testing.T) {
	f := newFixture(t, nil)

	out, err := f.svc.Process(context.Background(), login("192.0.2.99", f.clock.t, true))
	require.NoError(t, err)
	assert.True(t, out.Assessment.Geo.Failed())
	assert.Equal(t, []string{models.NoAnomalies}, out.Assessment.Reasons)
}

type constModel struct{}

func (constModel) Standardize(x []float64) ([]float64, error) { return x, nil }
func (constModel) AnomalyScore([]float64) float64             { return 1 }
func (constModel) ReconstructionError([]float64) float64      { return 1 }

func TestProcess_EnsembleBlendsAndDrivesAlert(t *testing.T) {
	// Both normalized scores sit at logistic(10) ~ 1, so a clean login
	// blends to ~50: below the alert threshold.
	c, err := ensemble.NewCombiner(constModel{}, ensemble.Stats{Mean: 0, Std: 0.1}, ensemble.Stats{Mean: 0, Std: 0.1}, ensemble.DefaultWeights())
	require.NoError(t, err)
	f := newFixture(t, c)

	out, err := f.svc.Process(context.Background(), login("198.51.100.10", f.clock.t, true))
	require.NoError(t, err)
	require.NotNil(t, out.Assessment.Ensemble)
	assert.InDelta(t, 50, out.Assessment.Ensemble.CombinedScore, 0.01)
	assert.Empty(t, f.notifier.sent)

	// New device (+20) on top: 0.5*0.2*100 + ~50 = ~60, still below 70.
	req := login("198.51.100.10", f.clock.t.Add(time.Hour), true)
	req.Event.DeviceID = "d2"
	req.Features = &models.FeatureVector{DeviceChange: 1}
	out, err = f.svc.Process(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 60, out.Assessment.Ensemble.CombinedScore, 0.01)
	assert.Empty(t, f.notifier.sent)
}

// captureModel records the last vector it standardized.
type captureModel struct {
	constModel
	last []float64
}

func (m *captureModel) Standardize(x []float64) ([]float64, error) {
	m.last = append([]float64(nil), x...)
	return x, nil
}

func TestProcess_DerivedFeaturesCountRecentFailures(t *testing.T) {
	model := &captureModel{}
	c, err := ensemble.NewCombiner(model, ensemble.Stats{Std: 1}, ensemble.Stats{Std: 1}, ensemble.DefaultWeights())
	require.NoError(t, err)
	f := newFixture(t, c)

	_, err = f.svc.Process(context.Background(), login("198.51.100.10", f.clock.t, false))
	require.NoError(t, err)

	// Two hours later the failure has left every window but is still one of
	// the user's last five attempts.
	f.clock.t = f.clock.t.Add(2 * time.Hour)
	out, err := f.svc.Process(context.Background(), login("198.51.100.10", f.clock.t, true))
	require.NoError(t, err)
	require.NotNil(t, out.Assessment.Ensemble)
	require.Len(t, model.last, len(models.FeatureNames))
	assert.Equal(t, 1.0, model.last[5])

	f.clock.t = f.clock.t.Add(time.Hour)
	_, err = f.svc.Process(context.Background(), login("198.51.100.10", f.clock.t, true))
	require.NoError(t, err)
	assert.Equal(t, 1.0, model.last[5])
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
