package rail

import (
	"context"
	"sync"

	"trip-planner/internal/database"
	"trip-planner/internal/models"
)

// StoreLocator serves stations from a StationRepository. The station list is
// read once and kept in memory; line lookups go to the repository.
type StoreLocator struct {
	repo database.StationRepository

	mu      sync.Mutex
	network *Network
}

func NewStoreLocator(repo database.StationRepository) *StoreLocator {
	return &StoreLocator{repo: repo}
}

func (l *StoreLocator) load(ctx context.Context) (*Network, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.network != nil {
		return l.network, nil
	}
	stations, err := l.repo.ListStations(ctx)
	if err != nil {
		return nil, err
	}
	l.network = NewNetwork(stations)
	return l.network, nil
}

func (l *StoreLocator) StationsInRadius(ctx context.Context, loc models.Coordinates, radiusKm float64) ([]models.Station, error) {
	n, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return n.StationsInRadius(ctx, loc, radiusKm)
}

func (l *StoreLocator) ConnectedStations(ctx context.Context, station models.Station) ([]models.Station, error) {
	return l.repo.ConnectedStations(ctx, station.Code)
}
