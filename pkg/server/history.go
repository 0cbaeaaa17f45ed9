package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/storage"
)

const maxHistoryRange = 7 * 24 * time.Hour

func (s *Server) handleStationHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	snaps, err := s.storage.GetStationHistory(ctx, id, start, end)
	if errors.Is(err, storage.ErrDisabled) {
		writeJSONError(w, "history storage is not configured", http.StatusNotImplemented)
		return
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get station history", slog.String("stationID", id), slog.Any("error", err))
		writeJSONError(w, "failed to get station history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snaps)
}

func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	snaps, err := s.storage.GetDeviceHistory(ctx, id, start, end)
	if errors.Is(err, storage.ErrDisabled) {
		writeJSONError(w, "history storage is not configured", http.StatusNotImplemented)
		return
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device history", slog.String("deviceID", id), slog.Any("error", err))
		writeJSONError(w, "failed to get device history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snaps)
}

func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		// Default to last 24 hours if not specified
		end := time.Now()
		start := end.Add(-24 * time.Hour)
		return start, end, nil
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > maxHistoryRange {
		return time.Time{}, time.Time{}, fmt.Errorf("time range cannot exceed %s", maxHistoryRange)
	}

	return start, end, nil
}
