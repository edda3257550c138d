package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"trip-planner/internal/models"
)

func TestDistanceKm(t *testing.T) {
	paris := models.Coordinates{Lat: 48.8566, Lng: 2.3522}
	lyon := models.Coordinates{Lat: 45.7640, Lng: 4.8357}

	d := DistanceKm(paris, lyon)

	assert.InDelta(t, 392, d, 5)
	assert.Zero(t, DistanceKm(paris, paris))
}

func TestNearestDistanceKmUsesSegments(t *testing.T) {
	line := NewLineString([]models.Coordinates{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
	})
	// Midway above the segment: nearer to the segment than to either vertex
	p := models.Coordinates{Lat: 0.1, Lng: 0.5}

	d, ok := NearestDistanceKm(p, []*geom.LineString{line})

	require.True(t, ok)
	assert.InDelta(t, DistanceKm(p, models.Coordinates{Lat: 0, Lng: 0.5}), d, 0.01)
	assert.Less(t, d, DistanceKm(p, models.Coordinates{Lat: 0, Lng: 0}))
}

func TestNearestDistanceKmNoLines(t *testing.T) {
	_, ok := NearestDistanceKm(models.Coordinates{}, nil)
	assert.False(t, ok)
}

func TestMarshalGeoJSON(t *testing.T) {
	b, err := MarshalGeoJSON([]models.Coordinates{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}})
	require.NoError(t, err)

	var decoded struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"coordinates"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "LineString", decoded.Type)
	assert.Equal(t, []float64{2, 1}, decoded.Coordinates[0])
}
