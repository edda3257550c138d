package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/database"
	"trip-planner/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreHealthCheck(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.HealthCheck(context.Background()))
}

func TestStoreReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Stations().UpsertStations(ctx, []models.Station{{Code: "A", Name: "Alpha"}}))
	require.NoError(t, store.Close())

	store, err = New(path)
	require.NoError(t, err)
	defer store.Close()

	st, err := store.Stations().GetStation(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", st.Name)
}

func TestDistanceCacheRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	origin := models.Coordinates{Lat: 48.856612345, Lng: 2.352212345}
	dest := models.Coordinates{Lat: 45.764, Lng: 4.8357}

	cached, err := store.DistanceCache().Get(ctx, origin, dest)
	require.NoError(t, err)
	assert.Nil(t, cached)

	require.NoError(t, store.DistanceCache().Set(ctx, &models.DistanceCacheEntry{
		Origin: origin, Destination: dest, DistanceMeters: 465000, DurationSecs: 16200,
	}))

	cached, err = store.DistanceCache().Get(ctx, models.Coordinates{Lat: 48.85661, Lng: 2.35221}, dest)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 465000.0, cached.DistanceMeters)
	assert.Equal(t, 16200.0, cached.DurationSecs)

	require.NoError(t, store.DistanceCache().Clear(ctx))
	cached, err = store.DistanceCache().Get(ctx, origin, dest)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestStationsConnectedThroughLines(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	repo := store.Stations()

	require.NoError(t, repo.UpsertStations(ctx, []models.Station{
		{Code: "A", Name: "Alpha", Location: models.Coordinates{Lat: 48, Lng: 2}},
		{Code: "B", Name: "Bravo", Location: models.Coordinates{Lat: 47, Lng: 2}},
		{Code: "C", Name: "Charlie", Location: models.Coordinates{Lat: 46, Lng: 3}},
		{Code: "D", Name: "Delta", Location: models.Coordinates{Lat: 44, Lng: 5}},
	}))
	require.NoError(t, repo.AddLineStops(ctx, "L1", []string{"A", "B"}))
	require.NoError(t, repo.AddLineStops(ctx, "L2", []string{"B", "C"}))
	// Re-adding a stop is a no-op
	require.NoError(t, repo.AddLineStops(ctx, "L1", []string{"A"}))

	all, err := repo.ListStations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	codes := func(stations []models.Station) []string {
		out := make([]string, len(stations))
		for i, s := range stations {
			out[i] = s.Code
		}
		return out
	}

	connected, err := repo.ConnectedStations(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, codes(connected))

	connected, err = repo.ConnectedStations(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, codes(connected))

	connected, err = repo.ConnectedStations(ctx, "D")
	require.NoError(t, err)
	assert.Empty(t, connected)
}

func TestGetStationNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Stations().GetStation(context.Background(), "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestSnapshotsLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	repo := store.Snapshots()

	snap := &database.Snapshot{ID: "c1", GiteID: "g1", Data: []byte(`{"stage":"solved"}`)}
	require.NoError(t, repo.Save(ctx, snap))
	assert.False(t, snap.UpdatedAt.IsZero())

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.GiteID)
	assert.JSONEq(t, `{"stage":"solved"}`, string(got.Data))

	snap.Data = []byte(`{"stage":"routes_finalized"}`)
	require.NoError(t, repo.Save(ctx, snap))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t, `{"stage":"routes_finalized"}`, string(list[0].Data))

	require.NoError(t, repo.Delete(ctx, "c1"))
	_, err = repo.Get(ctx, "c1")
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "c1"), database.ErrNotFound)
}
