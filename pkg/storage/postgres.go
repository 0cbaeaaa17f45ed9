package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/levenlabs/go-lflag"

	"github.com/mtecbridge/mtecbridge/pkg/common"
	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

const (
	kindStation = "station"
	kindDevice  = "device"

	postgresTimeout = 10 * time.Second
)

const createSnapshotTable = `create table if not exists mtec_snapshot (
	kind      text        not null,
	entity_id text        not null,
	ts        timestamptz not null,
	payload   jsonb       not null,
	primary key (kind, entity_id, ts)
)`

// PostgresProvider implements the Database interface on a single
// mtec_snapshot table through the pgx database/sql driver.
type PostgresProvider struct {
	db  *sql.DB
	dsn string
}

var _ Database = (*PostgresProvider)(nil)

func configuredPostgres() *PostgresProvider {
	dsn := lflag.String("postgres-dsn", common.Getenv("POSTGRES_DSN", ""), "Postgres connection string for the postgres storage provider")

	p := &PostgresProvider{}
	lflag.Do(func() {
		p.dsn = *dsn
	})
	return p
}

// Validate checks if the provider is properly configured.
func (p *PostgresProvider) Validate() error {
	if p.dsn == "" {
		return errors.New("postgres-dsn is required")
	}
	return nil
}

// Init opens the connection pool and creates the table if needed.
func (p *PostgresProvider) Init(ctx context.Context) error {
	db, err := sql.Open("pgx", p.dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, postgresTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createSnapshotTable); err != nil {
		db.Close()
		return fmt.Errorf("failed to create snapshot table: %w", err)
	}
	p.db = db
	return nil
}

// Close closes the connection pool.
func (p *PostgresProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *PostgresProvider) insert(ctx context.Context, kind, id string, ts time.Time, v interface{}) error {
	if id == "" {
		return fmt.Errorf("%s id cannot be empty", kind)
	}
	if ts.IsZero() {
		return fmt.Errorf("snapshot missing timestamp")
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, postgresTimeout)
	defer cancel()

	stmt := `insert into mtec_snapshot (kind, entity_id, ts, payload)
		values ($1, $2, $3, $4)
		on conflict (kind, entity_id, ts) do update set payload = excluded.payload`
	if _, err := p.db.ExecContext(ctx, stmt, kind, id, ts.UTC(), string(payload)); err != nil {
		return fmt.Errorf("failed to insert %s snapshot: %w", kind, err)
	}
	return nil
}

// InsertStationSnapshot stores a station snapshot, replacing one with the
// same timestamp.
func (p *PostgresProvider) InsertStationSnapshot(ctx context.Context, snap types.StationSnapshot) error {
	return p.insert(ctx, kindStation, snap.StationID, snap.Timestamp, snap)
}

// InsertDeviceSnapshot stores a device snapshot, replacing one with the same
// timestamp.
func (p *PostgresProvider) InsertDeviceSnapshot(ctx context.Context, snap types.DeviceSnapshot) error {
	return p.insert(ctx, kindDevice, snap.DeviceID, snap.Timestamp, snap)
}

func (p *PostgresProvider) history(ctx context.Context, kind, id string, start, end time.Time, fn func(blob []byte) error) error {
	ctx, cancel := context.WithTimeout(ctx, postgresTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `select payload from mtec_snapshot
		where kind = $1 and entity_id = $2 and ts >= $3 and ts < $4
		order by ts asc`, kind, id, start.UTC(), end.UTC())
	if err != nil {
		return fmt.Errorf("failed to query %s history: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return fmt.Errorf("failed to scan %s snapshot: %w", kind, err)
		}
		if err := fn(blob); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal snapshot", slog.String("kind", kind), slog.String("id", id), slog.Any("error", err))
			return fmt.Errorf("failed to unmarshal %s snapshot: %w", kind, err)
		}
	}
	return rows.Err()
}

// GetStationHistory retrieves station snapshots within the time range.
func (p *PostgresProvider) GetStationHistory(ctx context.Context, stationID string, start, end time.Time) ([]types.StationSnapshot, error) {
	var snaps []types.StationSnapshot
	err := p.history(ctx, kindStation, stationID, start, end, func(blob []byte) error {
		var s types.StationSnapshot
		if err := json.Unmarshal(blob, &s); err != nil {
			return err
		}
		snaps = append(snaps, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// GetDeviceHistory retrieves device snapshots within the time range.
func (p *PostgresProvider) GetDeviceHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.DeviceSnapshot, error) {
	var snaps []types.DeviceSnapshot
	err := p.history(ctx, kindDevice, deviceID, start, end, func(blob []byte) error {
		var s types.DeviceSnapshot
		if err := json.Unmarshal(blob, &s); err != nil {
			return err
		}
		snaps = append(snaps, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}
