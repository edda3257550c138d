package testutil

import (
	"context"
	"fmt"
	"math"
	"sync"

	"trip-planner/internal/models"
)

// MockMatrixProvider is a mock matrix provider for testing.
// It calculates Euclidean distance (scaled) between node locations for deterministic tests,
// unless an override is set for a name pair.
type MockMatrixProvider struct {
	ScaleFactor float64
	// SpeedMps converts distance to duration
	SpeedMps  float64
	Overrides map[string]map[string]models.MatrixEntry
	Err       error

	mu        sync.Mutex
	fetches   int
	lastNodes map[string]models.Coordinates
}

func NewMockMatrixProvider() *MockMatrixProvider {
	return &MockMatrixProvider{
		ScaleFactor: 111000, // 1 degree ≈ 111km in meters
		SpeedMps:    50000.0 / 3600,
		Overrides:   make(map[string]map[string]models.MatrixEntry),
	}
}

// SetEntry sets a custom measurement for a name pair
func (m *MockMatrixProvider) SetEntry(from, to string, distMeters, durSecs float64) {
	if m.Overrides[from] == nil {
		m.Overrides[from] = make(map[string]models.MatrixEntry)
	}
	m.Overrides[from][to] = models.MatrixEntry{Distance: distMeters, Duration: durSecs}
}

func (m *MockMatrixProvider) Matrix(ctx context.Context, nodes map[string]models.Coordinates) (models.Matrix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetches++
	m.lastNodes = make(map[string]models.Coordinates, len(nodes))
	for name, loc := range nodes {
		m.lastNodes[name] = loc
	}
	if m.Err != nil {
		return nil, m.Err
	}

	out := make(models.Matrix, len(nodes))
	for from, a := range nodes {
		row := make(map[string]models.MatrixEntry, len(nodes))
		for to, b := range nodes {
			if from == to {
				row[to] = models.MatrixEntry{}
				continue
			}
			if e, ok := m.Overrides[from][to]; ok {
				row[to] = e
				continue
			}
			dist := EuclideanMeters(a, b, m.ScaleFactor)
			row[to] = models.MatrixEntry{Distance: dist, Duration: dist / m.SpeedMps}
		}
		out[from] = row
	}
	return out, nil
}

// Fetches returns how many times Matrix was called
func (m *MockMatrixProvider) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// LastNodes returns the node set of the latest Matrix call
func (m *MockMatrixProvider) LastNodes() map[string]models.Coordinates {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastNodes
}

// EuclideanMeters calculates scaled Euclidean distance between two coordinates
func EuclideanMeters(a, b models.Coordinates, scale float64) float64 {
	dLat := b.Lat - a.Lat
	dLng := b.Lng - a.Lng
	return math.Sqrt(dLat*dLat+dLng*dLng) * scale
}

// MockRouteProvider prices straight-line routes through the waypoints.
// Safe for concurrent use.
type MockRouteProvider struct {
	ScaleFactor float64
	CostPerKm   float64
	// Failures makes any route touching the location fail with the given error
	Failures map[models.Coordinates]error
	// NoGeometry drops the geometry from results
	NoGeometry bool

	mu    sync.Mutex
	calls [][]models.Coordinates
}

func NewMockRouteProvider(costPerKm float64) *MockRouteProvider {
	return &MockRouteProvider{
		ScaleFactor: 111000,
		CostPerKm:   costPerKm,
		Failures:    make(map[models.Coordinates]error),
	}
}

func (m *MockRouteProvider) Route(ctx context.Context, waypoints []models.Coordinates) (*models.RouteResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]models.Coordinates{}, waypoints...))
	m.mu.Unlock()

	if len(waypoints) < 2 {
		return nil, fmt.Errorf("route needs at least 2 waypoints, got %d", len(waypoints))
	}
	for _, w := range waypoints {
		if err, ok := m.Failures[w]; ok {
			return nil, err
		}
	}

	dist := 0.0
	for i := 1; i < len(waypoints); i++ {
		dist += EuclideanMeters(waypoints[i-1], waypoints[i], m.ScaleFactor)
	}

	result := &models.RouteResult{
		Cost:           dist / 1000 * m.CostPerKm,
		DistanceMeters: dist,
		DurationSecs:   dist / (50000.0 / 3600),
	}
	if !m.NoGeometry {
		result.Geometry = append([]models.Coordinates{}, waypoints...)
	}
	return result, nil
}

// Calls returns the recorded waypoint lists
func (m *MockRouteProvider) Calls() [][]models.Coordinates {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]models.Coordinates{}, m.calls...)
}

// MockDistanceCache is a mock implementation of DistanceCacheRepository for testing
type MockDistanceCache struct {
	mu      sync.Mutex
	entries map[string]*models.DistanceCacheEntry
}

func NewMockDistanceCache() *MockDistanceCache {
	return &MockDistanceCache{
		entries: make(map[string]*models.DistanceCacheEntry),
	}
}

func (c *MockDistanceCache) cacheKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

func (c *MockDistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[c.cacheKey(origin, dest)]; ok {
		return entry, nil
	}
	return nil, nil
}

func (c *MockDistanceCache) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.cacheKey(entry.Origin, entry.Destination)] = entry
	return nil
}

func (c *MockDistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	for i := range entries {
		c.Set(ctx, &entries[i])
	}
	return nil
}

func (c *MockDistanceCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.DistanceCacheEntry)
	return nil
}

// Count returns the number of entries in the cache
func (c *MockDistanceCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
