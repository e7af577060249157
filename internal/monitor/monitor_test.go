package monitor

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanledger/scanledger/constants"
)

func TestSessionLifecycle(t *testing.T) {
	m := New(nil, nil)

	id := m.StartSession("t1", "receipt.pdf")
	require.Len(t, m.ActiveSessions(), 1)
	assert.Empty(t, m.FinishedSessions())

	m.EndSession(id, constants.SessionSuccess, 0.87, 2)
	assert.Empty(t, m.ActiveSessions())

	finished := m.FinishedSessions()
	require.Len(t, finished, 1)
	s := finished[0]
	assert.Equal(t, "t1", s.TaskID)
	assert.Equal(t, "receipt.pdf", s.FileName)
	assert.Equal(t, constants.SessionSuccess, s.Status)
	assert.InDelta(t, 0.87, s.Confidence, 0.001)
	assert.Equal(t, 2, s.Extractions)
	require.NotNil(t, s.EndedAt)
	assert.False(t, s.StartedAt.IsZero())
}

func TestEndSessionUnknownIDIsIgnored(t *testing.T) {
	m := New(nil, nil)
	m.EndSession(uuid.New(), constants.SessionFailed, 0, 0)
	assert.Empty(t, m.FinishedSessions())
}

func TestHourlyStats(t *testing.T) {
	m := New(nil, nil)

	for i := 0; i < 3; i++ {
		id := m.StartSession("t", "f")
		m.EndSession(id, constants.SessionSuccess, 0.8, 1)
	}
	id := m.StartSession("t", "f")
	m.EndSession(id, constants.SessionFailed, 0.1, 0)

	stats := m.HourlyStats()
	require.Len(t, stats, 1)

	key := time.Now().UTC().Format("2006-01-02T15")
	stat, ok := stats[key]
	require.True(t, ok)
	assert.Equal(t, 4, stat.Total)
	assert.Equal(t, 3, stat.Succeeded)
	assert.Equal(t, 1, stat.Failed)
	assert.InDelta(t, (0.8*3+0.1)/4, stat.AvgConfidence, 0.001)
}

func TestPrune(t *testing.T) {
	m := New(nil, nil)
	id := m.StartSession("t", "f")
	m.EndSession(id, constants.SessionSuccess, 0.9, 1)

	assert.Zero(t, m.Prune(time.Hour), "fresh sessions stay")
	require.Len(t, m.FinishedSessions(), 1)

	assert.Equal(t, 1, m.Prune(-time.Minute), "negative age prunes everything")
	assert.Empty(t, m.FinishedSessions())
}

func TestInsightsNeedSampleSize(t *testing.T) {
	m := New(nil, nil)
	id := m.StartSession("t", "f")
	m.EndSession(id, constants.SessionFailed, 0, 0)
	assert.Nil(t, m.Insights())
}

func TestInsightsLowSuccessRate(t *testing.T) {
	m := New(nil, nil)
	for i := 0; i < 3; i++ {
		id := m.StartSession("t", "f")
		m.EndSession(id, constants.SessionFailed, 0.2, 0)
	}
	for i := 0; i < 2; i++ {
		id := m.StartSession("t", "f")
		m.EndSession(id, constants.SessionSuccess, 0.9, 1)
	}

	insights := m.Insights()
	require.NotEmpty(t, insights)
	assert.Contains(t, insights[0], "success rate")
}

func TestInsightsHealthy(t *testing.T) {
	m := New(nil, nil)
	for i := 0; i < 6; i++ {
		id := m.StartSession("t", "f")
		m.EndSession(id, constants.SessionSuccess, 0.85, 1)
	}

	insights := m.Insights()
	require.Len(t, insights, 1)
	assert.Contains(t, insights[0], "healthy")
}

func TestMetricsWiring(t *testing.T) {
	metrics := NewMetrics()
	m := New(nil, metrics)

	id := m.StartSession("t", "f")
	m.EndSession(id, constants.SessionSuccess, 0.9, 1)

	// handler must serve without panicking even before any scrape
	require.NotNil(t, metrics.Handler())
}
