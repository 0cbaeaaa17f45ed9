package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mtecbridge/mtecbridge/pkg/sink"
	"github.com/mtecbridge/mtecbridge/pkg/storage/storagemock"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

func TestHistory(t *testing.T) {
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(12 * time.Hour)
	q := url.Values{}
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))

	t.Run("Station", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("GetStationHistory", mock.Anything, "1001", start, end).Return([]types.StationSnapshot{
			{Timestamp: start, StationID: "1001"},
			{Timestamp: start.Add(time.Minute), StationID: "1001"},
		}, nil)
		srv := New(testTopology(), sink.NewLatest(), db)

		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, httptest.NewRequest("GET", "/api/stations/1001/history?"+q.Encode(), nil))
		require.Equal(t, http.StatusOK, w.Code)

		var got []types.StationSnapshot
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Len(t, got, 2)
		db.AssertExpectations(t)
	})

	t.Run("Device", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("GetDeviceHistory", mock.Anything, "d1", start, end).Return([]types.DeviceSnapshot{
			{Timestamp: start, DeviceID: "d1"},
		}, nil)
		srv := New(testTopology(), sink.NewLatest(), db)

		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, httptest.NewRequest("GET", "/api/devices/d1/history?"+q.Encode(), nil))
		require.Equal(t, http.StatusOK, w.Code)
		db.AssertExpectations(t)
	})

	t.Run("StorageError", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("GetStationHistory", mock.Anything, "1001", start, end).Return(nil, errors.New("unavailable"))
		srv := New(testTopology(), sink.NewLatest(), db)

		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, httptest.NewRequest("GET", "/api/stations/1001/history?"+q.Encode(), nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("NoStorage", func(t *testing.T) {
		srv := New(testTopology(), sink.NewLatest(), nil)

		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, httptest.NewRequest("GET", "/api/stations/1001/history", nil))
		assert.Equal(t, http.StatusNotImplemented, w.Code)

		w = httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, httptest.NewRequest("GET", "/api/devices/d1/history", nil))
		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})

	t.Run("InvalidRange", func(t *testing.T) {
		srv := New(testTopology(), sink.NewLatest(), nil)
		bad := url.Values{}
		bad.Set("start", end.Format(time.RFC3339))
		bad.Set("end", start.Format(time.RFC3339))

		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, httptest.NewRequest("GET", "/api/stations/1001/history?"+bad.Encode(), nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestParseTimeRange(t *testing.T) {
	parse := func(query string) (time.Time, time.Time, error) {
		return parseTimeRange(httptest.NewRequest("GET", "/?"+query, nil))
	}

	start, end, err := parse("")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	start, end, err = parse("start=2024-03-15T00:00:00Z&end=2024-03-16T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), end)

	_, _, err = parse("start=yesterday&end=2024-03-16T00:00:00Z")
	assert.ErrorContains(t, err, "invalid start time")
	_, _, err = parse("start=2024-03-15T00:00:00Z&end=today")
	assert.ErrorContains(t, err, "invalid end time")
	_, _, err = parse("start=2024-03-01T00:00:00Z&end=2024-03-16T00:00:00Z")
	assert.ErrorContains(t, err, "cannot exceed")
}
