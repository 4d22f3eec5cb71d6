package sqlite

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/audit"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

func newTestStorage(t *testing.T) *EventStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit-test.db")
	storage, err := NewEventStorage(dbPath, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func eventAt(id string, ts time.Time) *audit.Event {
	return &audit.Event{
		EventID:       id,
		TsUTC:         ts,
		SourceService: "track-fusion",
		Actor:         "system",
		Action:        audit.ActionTrackCreated,
		Details:       map[string]any{"track_id": "TRK-1"},
	}
}

func TestEventStorage_AppendAndGetRecent(t *testing.T) {
	storage := newTestStorage(t)

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		event := eventAt(fmt.Sprintf("EVT-%d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, storage.Append(event))
	}

	events, err := storage.GetRecent(3)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Newest first
	assert.Equal(t, "EVT-4", events[0].EventID)
	assert.Equal(t, "EVT-3", events[1].EventID)
	assert.Equal(t, "EVT-2", events[2].EventID)

	assert.Equal(t, "track-fusion", events[0].SourceService)
	assert.Equal(t, audit.ActionTrackCreated, events[0].Action)
	assert.Equal(t, "TRK-1", events[0].Details["track_id"])
	assert.True(t, events[0].TsUTC.Equal(base.Add(4*time.Second)))
}

func TestEventStorage_DuplicateEventIDRejected(t *testing.T) {
	storage := newTestStorage(t)

	event := eventAt("EVT-DUP", time.Now().UTC())
	require.NoError(t, storage.Append(event))
	assert.Error(t, storage.Append(event))
}

func TestEventStorage_Count(t *testing.T) {
	storage := newTestStorage(t)

	count, err := storage.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		require.NoError(t, storage.Append(eventAt(fmt.Sprintf("EVT-%d", i), base.Add(time.Duration(i)*time.Millisecond))))
	}

	count, err = storage.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestEventStorage_Reset(t *testing.T) {
	storage := newTestStorage(t)

	require.NoError(t, storage.Append(eventAt("EVT-1", time.Now().UTC())))
	require.NoError(t, storage.Reset())

	count, err := storage.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	events, err := storage.GetRecent(10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventStorage_TieBreaksOnInsertionOrder(t *testing.T) {
	storage := newTestStorage(t)

	ts := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, storage.Append(eventAt("EVT-FIRST", ts)))
	require.NoError(t, storage.Append(eventAt("EVT-SECOND", ts)))

	events, err := storage.GetRecent(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "EVT-SECOND", events[0].EventID)
	assert.Equal(t, "EVT-FIRST", events[1].EventID)
}
