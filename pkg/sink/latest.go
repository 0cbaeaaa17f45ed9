package sink

import (
	"context"
	"sync"

	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// Latest keeps the most recent snapshot of every station and device in
// memory.
type Latest struct {
	mu       sync.RWMutex
	stations map[string]types.StationSnapshot
	devices  map[string]types.DeviceSnapshot
}

var _ Sink = (*Latest)(nil)

// NewLatest returns an empty Latest.
func NewLatest() *Latest {
	return &Latest{
		stations: make(map[string]types.StationSnapshot),
		devices:  make(map[string]types.DeviceSnapshot),
	}
}

func (l *Latest) WriteStation(ctx context.Context, snap types.StationSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stations[snap.StationID] = snap
	return nil
}

func (l *Latest) WriteDevice(ctx context.Context, snap types.DeviceSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.devices[snap.DeviceID] = snap
	return nil
}

// Station returns the last snapshot written for the station.
func (l *Latest) Station(id string) (types.StationSnapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.stations[id]
	return s, ok
}

// Device returns the last snapshot written for the device.
func (l *Latest) Device(id string) (types.DeviceSnapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.devices[id]
	return s, ok
}

func (l *Latest) Close() error {
	return nil
}
