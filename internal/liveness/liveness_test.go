package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTouch_IgnoresEmptyWorkerID(t *testing.T) {
	r := New()
	r.Touch("")
	count, ids := r.Active()
	assert.Equal(t, 0, count)
	assert.Empty(t, ids)
}

func TestActive_ReturnsRecentlyTouchedWorkers(t *testing.T) {
	r := New()
	r.Touch("w1")
	r.Touch("w2")

	count, ids := r.Active()
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t, []string{"w1", "w2"}, ids)
}

func TestActive_EvictsEntriesOlderThanOneHour(t *testing.T) {
	r := New()
	r.Touch("stale")

	r.mu.Lock()
	r.lastSeen["stale"] = time.Now().Add(-2 * time.Hour)
	r.mu.Unlock()

	r.Touch("fresh")

	count, ids := r.Active()
	require.Equal(t, 1, count)
	assert.Equal(t, []string{"fresh"}, ids)

	r.mu.Lock()
	_, stillPresent := r.lastSeen["stale"]
	r.mu.Unlock()
	assert.False(t, stillPresent, "stale entries are evicted on read")
}
