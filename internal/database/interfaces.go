package database

import (
	"context"
	"time"

	"trip-planner/internal/models"
)

// DistanceCacheRepository handles distance cache persistence
type DistanceCacheRepository interface {
	Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error)
	Set(ctx context.Context, entry *models.DistanceCacheEntry) error
	SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error
	Clear(ctx context.Context) error
}

// StationRepository stores the rail network: stations and the line each stop belongs to
type StationRepository interface {
	UpsertStations(ctx context.Context, stations []models.Station) error
	AddLineStops(ctx context.Context, line string, stationCodes []string) error
	ListStations(ctx context.Context) ([]models.Station, error)
	GetStation(ctx context.Context, code string) (*models.Station, error)
	ConnectedStations(ctx context.Context, code string) ([]models.Station, error)
}

// Snapshot is a serialized candidate computation
type Snapshot struct {
	ID        string
	GiteID    string
	Data      []byte
	UpdatedAt time.Time
}

// SnapshotRepository persists candidate snapshots so long explorations can resume
type SnapshotRepository interface {
	Save(ctx context.Context, s *Snapshot) error
	Get(ctx context.Context, id string) (*Snapshot, error)
	List(ctx context.Context) ([]Snapshot, error)
	Delete(ctx context.Context, id string) error
}
