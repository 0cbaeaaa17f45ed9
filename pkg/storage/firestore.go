package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"

	"github.com/mtecbridge/mtecbridge/pkg/common"
	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

const (
	stationsCollection  = "stations"
	devicesCollection   = "devices"
	snapshotsCollection = "snapshots"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Snapshots are stored below stations/{id}/snapshots and
// devices/{id}/snapshots with the RFC3339 timestamp as the document ID.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

var _ Database = (*FirestoreProvider)(nil)

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", common.Getenv("FIRESTORE_PROJECT_ID", ""), "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks the configuration. The project ID may be left empty and is
// then detected from the environment.
func (f *FirestoreProvider) Validate() error {
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("creating firestore client for %s/%s: %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) snapshots(parent, id string) (*firestore.CollectionRef, error) {
	if id == "" {
		return nil, fmt.Errorf("%s id cannot be empty", parent)
	}
	return f.client.Collection(parent).Doc(id).Collection(snapshotsCollection), nil
}

func (f *FirestoreProvider) insert(ctx context.Context, coll *firestore.CollectionRef, ts time.Time, v interface{}) error {
	if ts.IsZero() {
		return fmt.Errorf("snapshot missing timestamp")
	}
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	// RFC3339 document IDs sort lexicographically which makes range
	// queries on the ID possible
	docID := ts.UTC().Format(time.RFC3339)
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": ts,
	})
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// InsertStationSnapshot stores a station snapshot as a JSON blob.
func (f *FirestoreProvider) InsertStationSnapshot(ctx context.Context, snap types.StationSnapshot) error {
	coll, err := f.snapshots(stationsCollection, snap.StationID)
	if err != nil {
		return err
	}
	return f.insert(ctx, coll, snap.Timestamp, snap)
}

// InsertDeviceSnapshot stores a device snapshot as a JSON blob.
func (f *FirestoreProvider) InsertDeviceSnapshot(ctx context.Context, snap types.DeviceSnapshot) error {
	coll, err := f.snapshots(devicesCollection, snap.DeviceID)
	if err != nil {
		return err
	}
	return f.insert(ctx, coll, snap.Timestamp, snap)
}

// history decodes the snapshots in [start, end). Document IDs are RFC3339 so
// the range is a query on the ID.
func history[T any](ctx context.Context, coll *firestore.CollectionRef, start, end time.Time) ([]T, error) {
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(start.UTC().Format(time.RFC3339))).
		Where(firestore.DocumentID, "<", coll.Doc(end.UTC().Format(time.RFC3339))).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("iterating %s: %w", coll.Path, err)
		}

		blob, ok := doc.Data()["json"].(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "snapshot without json blob", slog.String("path", doc.Ref.Path))
			return nil, fmt.Errorf("snapshot %s has no json blob", doc.Ref.Path)
		}
		var v T
		if err := json.Unmarshal([]byte(blob), &v); err != nil {
			return nil, fmt.Errorf("decoding snapshot %s: %w", doc.Ref.Path, err)
		}
		out = append(out, v)
	}
}

// GetStationHistory retrieves station snapshots within the time range.
func (f *FirestoreProvider) GetStationHistory(ctx context.Context, stationID string, start, end time.Time) ([]types.StationSnapshot, error) {
	coll, err := f.snapshots(stationsCollection, stationID)
	if err != nil {
		return nil, err
	}
	return history[types.StationSnapshot](ctx, coll, start, end)
}

// GetDeviceHistory retrieves device snapshots within the time range.
func (f *FirestoreProvider) GetDeviceHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.DeviceSnapshot, error) {
	coll, err := f.snapshots(devicesCollection, deviceID)
	if err != nil {
		return nil, err
	}
	return history[types.DeviceSnapshot](ctx, coll, start, end)
}
