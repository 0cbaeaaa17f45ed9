package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtecbridge/mtecbridge/pkg/types"
)

func TestPostgresProvider(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	p := &PostgresProvider{dsn: dsn}
	require.NoError(t, p.Validate())

	ctx := context.Background()
	require.NoError(t, p.Init(ctx))
	defer p.Close()

	// unique ids keep repeated runs apart
	stationID := fmt.Sprintf("test-station-%d", time.Now().UnixNano())
	deviceID := fmt.Sprintf("test-device-%d", time.Now().UnixNano())
	now := time.Now().Truncate(time.Second).UTC()

	t.Run("StationHistory", func(t *testing.T) {
		s1 := types.StationSnapshot{
			Timestamp: now.Add(-time.Hour),
			StationID: stationID,
			Metrics:   []types.Metric{{Name: "current_PV", Value: 4200.0, Unit: "W"}},
		}
		s2 := s1
		s2.Timestamp = now
		require.NoError(t, p.InsertStationSnapshot(ctx, s2))
		require.NoError(t, p.InsertStationSnapshot(ctx, s1))

		snaps, err := p.GetStationHistory(ctx, stationID, now.Add(-2*time.Hour), now.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.True(t, snaps[0].Timestamp.Equal(s1.Timestamp))
		assert.True(t, snaps[1].Timestamp.Equal(s2.Timestamp))

		snaps, err = p.GetStationHistory(ctx, stationID, now.Add(-2*time.Hour), now)
		require.NoError(t, err)
		assert.Len(t, snaps, 1)
	})

	t.Run("DeviceUpsert", func(t *testing.T) {
		d := types.DeviceSnapshot{
			Timestamp: now,
			DeviceID:  deviceID,
			Metrics:   []types.Metric{{Name: "battery_SOC", Value: 64.0}},
		}
		require.NoError(t, p.InsertDeviceSnapshot(ctx, d))
		d.Metrics[0].Value = 65.0
		require.NoError(t, p.InsertDeviceSnapshot(ctx, d))

		snaps, err := p.GetDeviceHistory(ctx, deviceID, now.Add(-time.Minute), now.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, snaps, 1)
		assert.Equal(t, 65.0, snaps[0].Metrics[0].Value)
	})

	t.Run("EmptyID", func(t *testing.T) {
		err := p.InsertStationSnapshot(ctx, types.StationSnapshot{Timestamp: now})
		assert.ErrorContains(t, err, "station id cannot be empty")
	})
}

func TestPostgresValidate(t *testing.T) {
	assert.ErrorContains(t, (&PostgresProvider{}).Validate(), "postgres-dsn is required")
}

func TestNone(t *testing.T) {
	ctx := context.Background()
	var db Database = None{}
	assert.NoError(t, db.InsertStationSnapshot(ctx, types.StationSnapshot{}))
	assert.NoError(t, db.InsertDeviceSnapshot(ctx, types.DeviceSnapshot{}))
	_, err := db.GetStationHistory(ctx, "1", time.Time{}, time.Now())
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = db.GetDeviceHistory(ctx, "1", time.Time{}, time.Now())
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, db.Close())

	assert.False(t, Enabled(db))
	assert.False(t, Enabled(&configured{Database: None{}}))
	assert.True(t, Enabled(&configured{Database: &PostgresProvider{}}))
	assert.True(t, Enabled(&FirestoreProvider{}))
}
