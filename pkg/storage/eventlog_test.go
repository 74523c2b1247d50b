package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

func sampleEvent(id string, ts time.Time) models.LoginEvent {
	lat, lon := 48.85, 2.35
	return models.LoginEvent{
		ID:        id,
		UserID:    "u1",
		Timestamp: ts,
		IP:        "203.0.113.9",
		DeviceID:  "d1",
		Browser:   "Chrome",
		Geo:       &models.GeoLocation{IP: "203.0.113.9", Country: "France", Latitude: &lat, Longitude: &lon},
	}
}

func sampleResult(score int, ts time.Time) models.RiskAssessment {
	return models.RiskAssessment{
		UserID:    "u1",
		RiskScore: score,
		Reasons:   []string{models.NoAnomalies},
		Geo:       models.GeoLocation{IP: "203.0.113.9", Country: "France"},
		Timestamp: ts,
		Status:    models.StatusEvaluated,
	}
}

// exerciseEventLog checks append order and the limit contract shared by all backends.
func exerciseEventLog(t *testing.T, log EventLog) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	events, err := log.ListEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	for i, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, log.SaveEvent(ctx, sampleEvent(id, base.Add(time.Duration(i)*time.Minute))))
		require.NoError(t, log.SaveResult(ctx, sampleResult(i*10, base.Add(time.Duration(i)*time.Minute))))
	}

	events, err = log.ListEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"e1", "e2", "e3"}, []string{events[0].ID, events[1].ID, events[2].ID})
	assert.Equal(t, "France", events[0].Geo.Country)
	assert.True(t, events[0].Timestamp.Equal(base))

	events, err = log.ListEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].ID)
	assert.Equal(t, "e3", events[1].ID)

	results, err := log.ListResults(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 20, results[0].RiskScore)
	assert.Equal(t, []string{models.NoAnomalies}, results[0].Reasons)
	assert.Equal(t, models.StatusEvaluated, results[0].Status)
}

func TestFileEventLog(t *testing.T) {
	dir := t.TempDir()
	log, err := NewFileEventLog(filepath.Join(dir, "data", "events.json"), filepath.Join(dir, "data", "results.json"))
	require.NoError(t, err)
	defer log.Close()

	exerciseEventLog(t, log)
}

func TestBadgerEventLog_InMemory(t *testing.T) {
	log, err := OpenBadgerEventLog("")
	require.NoError(t, err)
	defer log.Close()

	exerciseEventLog(t, log)
}

func TestBadgerEventLog_BurstKeepsInsertionOrder(t *testing.T) {
	log, err := OpenBadgerEventLog("")
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	want := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		id := fmt.Sprintf("e%03d", i)
		want = append(want, id)
		require.NoError(t, log.SaveEvent(ctx, sampleEvent(id, ts)))
	}

	events, err := log.ListEvents(ctx, 0)
	require.NoError(t, err)
	got := make([]string, 0, len(events))
	for _, e := range events {
		got = append(got, e.ID)
	}
	assert.Equal(t, want, got)
}

func TestBadgerEventLog_ReopenContinuesSequence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	log, err := OpenBadgerEventLog(dir)
	require.NoError(t, err)
	require.NoError(t, log.SaveEvent(ctx, sampleEvent("before", ts)))
	require.NoError(t, log.Close())

	log, err = OpenBadgerEventLog(dir)
	require.NoError(t, err)
	defer log.Close()
	require.NoError(t, log.SaveEvent(ctx, sampleEvent("after", ts)))

	events, err := log.ListEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "before", events[0].ID)
	assert.Equal(t, "after", events[1].ID)
}
