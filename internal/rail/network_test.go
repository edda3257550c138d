package rail

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/models"
	"trip-planner/internal/sqlite"
)

var (
	paris      = models.Station{Code: "87391003", Name: "Paris Montparnasse", Location: models.Coordinates{Lat: 48.8412, Lng: 2.3210}, Affluence: 60000000}
	versailles = models.Station{Code: "87393009", Name: "Versailles Chantiers", Location: models.Coordinates{Lat: 48.7955, Lng: 2.1350}, Affluence: 9000000}
	chartres   = models.Station{Code: "87394007", Name: "Chartres", Location: models.Coordinates{Lat: 48.4480, Lng: 1.4813}, Affluence: 2000000}
	lyon       = models.Station{Code: "87723197", Name: "Lyon Part-Dieu", Location: models.Coordinates{Lat: 45.7606, Lng: 4.8593}, Affluence: 35000000}
)

func testNetwork() *Network {
	n := NewNetwork([]models.Station{paris, versailles, chartres, lyon})
	n.AddLine("TER1", []string{paris.Code, versailles.Code, chartres.Code})
	n.AddLine("TGV", []string{paris.Code, lyon.Code})
	return n
}

func codes(stations []models.Station) []string {
	out := make([]string, len(stations))
	for i, s := range stations {
		out[i] = s.Code
	}
	return out
}

func TestStationsInRadiusSortedByDistance(t *testing.T) {
	n := testNetwork()
	home := models.Coordinates{Lat: 48.82, Lng: 2.25}

	found, err := n.StationsInRadius(context.Background(), home, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{paris.Code, versailles.Code}, codes(found))

	found, err = n.StationsInRadius(context.Background(), home, 1)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestConnectedStationsSpansAllLines(t *testing.T) {
	n := testNetwork()

	connected, err := n.ConnectedStations(context.Background(), paris)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{paris.Code, versailles.Code, chartres.Code, lyon.Code}, codes(connected))

	connected, err = n.ConnectedStations(context.Background(), chartres)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{paris.Code, versailles.Code, chartres.Code}, codes(connected))
}

func TestLoadStopTimes(t *testing.T) {
	feed := `trip_id,arrival_time,departure_time,stop_id,stop_sequence,pickup_type,drop_off_type,shape_dist_traveled
OCESN1234F:2024-01-01,06:00:00,06:00:00,StopPoint:OCETrain TER-87391003,0,0,0,
OCESN1234F:2024-01-02,06:30:00,06:31:00,StopPoint:OCETrain TER-87393009,1,0,0,
OCESN9999F:2024-01-01,07:00:00,07:00:00,StopPoint:OCENavette-87394007,0,0,0,OCENavette
OCESN1234F:2024-01-01,06:30:00,06:31:00,StopPoint:OCETrain TER-87393009,1,0,0,
`
	lines, err := LoadStopTimes(strings.NewReader(feed), []string{"OCENavette"})
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{
		"OCESN1234F": {"87391003", "87393009"},
	}, lines)
}

func TestLoadStopTimesRejectsBadHeader(t *testing.T) {
	_, err := LoadStopTimes(strings.NewReader("a,b,c\n1,2,3\n"), nil)
	assert.Error(t, err)
}

func TestLoadStations(t *testing.T) {
	stations, err := LoadStations(strings.NewReader(`[{"code":"1","name":"A","location":{"lat":1,"lng":2}}]`))
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, models.Coordinates{Lat: 1, Lng: 2}, stations[0].Location)

	_, err = LoadStations(strings.NewReader(`[{"name":"no code"}]`))
	assert.Error(t, err)
}

func TestStoreLocatorMatchesNetwork(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "rail.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, testNetwork().SaveTo(ctx, store.Stations()))

	locator := NewStoreLocator(store.Stations())

	found, err := locator.StationsInRadius(ctx, models.Coordinates{Lat: 48.82, Lng: 2.25}, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{paris.Code, versailles.Code}, codes(found))

	connected, err := locator.ConnectedStations(ctx, chartres)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{paris.Code, versailles.Code, chartres.Code}, codes(connected))
}
