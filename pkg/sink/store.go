package sink

import (
	"context"
	"fmt"

	"github.com/mtecbridge/mtecbridge/pkg/storage"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// Store persists snapshots to a storage.Database.
type Store struct {
	db storage.Database
}

var _ Sink = (*Store)(nil)

// NewStore returns a sink writing to db. Closing the sink closes db.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func (s *Store) WriteStation(ctx context.Context, snap types.StationSnapshot) error {
	if err := s.db.InsertStationSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("storing station %s snapshot: %w", snap.StationID, err)
	}
	return nil
}

func (s *Store) WriteDevice(ctx context.Context, snap types.DeviceSnapshot) error {
	if err := s.db.InsertDeviceSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("storing device %s snapshot: %w", snap.DeviceID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
