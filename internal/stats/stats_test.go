package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Counts(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewWithClock(func() time.Time { return now })

	tr.RecordReceived("acme")
	tr.RecordReceived("acme")
	tr.RecordReceived("")
	tr.RecordForwarded("acme", "6")
	tr.RecordForwarded("acme", "3")
	tr.RecordFailed("acme")
	tr.RecordFailed("")

	now = now.Add(90 * time.Second)
	s := tr.Snapshot()

	assert.EqualValues(t, 3, s.TotalReceived)
	assert.EqualValues(t, 2, s.TotalForwarded)
	assert.EqualValues(t, 2, s.TotalFailed)
	assert.Equal(t, TenantCounts{Received: 2, Forwarded: 2, Failed: 1}, s.ByTenant["acme"])
	assert.Len(t, s.ByTenant, 1)
	assert.Equal(t, map[string]int64{"6": 1, "3": 1}, s.ByLevel)
	assert.InDelta(t, 0.5, s.SuccessRate, 1e-9)
	assert.InDelta(t, 90, s.UptimeSeconds, 1e-9)
	require.NotNil(t, s.LastEventTime)
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	tr := New()
	tr.RecordReceived("acme")
	s := tr.Snapshot()
	tr.RecordReceived("acme")
	assert.EqualValues(t, 1, s.ByTenant["acme"].Received)
	assert.EqualValues(t, 1, s.TotalReceived)
}

func TestTracker_SuccessRateZeroWithoutOutcomes(t *testing.T) {
	tr := New()
	tr.RecordReceived("acme")
	assert.Zero(t, tr.Snapshot().SuccessRate)
}

func TestTracker_Reset(t *testing.T) {
	tr := New()
	tr.RecordReceived("acme")
	tr.RecordForwarded("acme", "6")
	tr.RecordFailed("acme")

	tr.Reset()
	s := tr.Snapshot()

	assert.Zero(t, s.TotalReceived)
	assert.Zero(t, s.TotalForwarded)
	assert.Zero(t, s.TotalFailed)
	assert.Empty(t, s.ByTenant)
	assert.Empty(t, s.ByLevel)
	assert.Nil(t, s.LastEventTime)
	assert.Zero(t, s.SuccessRate)
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.RecordReceived("acme")
				tr.RecordForwarded("acme", "6")
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()
	s := tr.Snapshot()
	assert.EqualValues(t, 5000, s.TotalReceived)
	assert.EqualValues(t, 5000, s.ByTenant["acme"].Forwarded)
	assert.EqualValues(t, 1, s.SuccessRate)
}
