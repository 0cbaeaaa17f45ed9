// Package sink contains the outputs station and device snapshots are written
// to.
package sink

import (
	"context"
	"errors"

	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// Sink receives snapshots read from the portal.
type Sink interface {
	WriteStation(ctx context.Context, snap types.StationSnapshot) error
	WriteDevice(ctx context.Context, snap types.DeviceSnapshot) error
	Close() error
}

// Multi writes every snapshot to all of its sinks. A failing sink does not
// stop the others, the errors are joined.
type Multi []Sink

var _ Sink = Multi(nil)

func (m Multi) WriteStation(ctx context.Context, snap types.StationSnapshot) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteStation(ctx, snap))
	}
	return errors.Join(errs...)
}

func (m Multi) WriteDevice(ctx context.Context, snap types.DeviceSnapshot) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteDevice(ctx, snap))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
