package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/models"
)

func newTestGeocoder(t *testing.T, handler http.HandlerFunc, interval time.Duration) *NominatimGeocoder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g := NewNominatimGeocoder(server.URL, interval)
	t.Cleanup(g.Stop)
	return g
}

func writeResults(w http.ResponseWriter, results ...nominatimResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func TestNominatimGeocodeSuccess(t *testing.T) {
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/search")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "Lyon, France", r.URL.Query().Get("q"))
		assert.Equal(t, "TripPlanner/1.0", r.Header.Get("User-Agent"))

		writeResults(w, nominatimResponse{Lat: "45.7640", Lon: "4.8357", DisplayName: "Lyon, Métropole de Lyon, France"})
	}, time.Millisecond)

	result, err := geocoder.Geocode(context.Background(), "Lyon, France")

	require.NoError(t, err)
	assert.Equal(t, 45.764, result.Coords.Lat)
	assert.Equal(t, 4.8357, result.Coords.Lng)
	assert.Equal(t, "Lyon, Métropole de Lyon, France", result.DisplayName)
}

func TestNominatimGeocodeNotFound(t *testing.T) {
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		writeResults(w)
	}, time.Millisecond)

	result, err := geocoder.Geocode(context.Background(), "Nowhere")

	require.Error(t, err)
	assert.Nil(t, result)

	var geocodingErr *ErrGeocodingFailed
	require.True(t, errors.As(err, &geocodingErr))
	assert.Contains(t, geocodingErr.Reason, "no results found")
}

func TestNominatimGeocodeHTTPError(t *testing.T) {
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}, time.Millisecond)

	_, err := geocoder.Geocode(context.Background(), "Test Address")

	var geocodingErr *ErrGeocodingFailed
	require.True(t, errors.As(err, &geocodingErr))
	assert.Contains(t, geocodingErr.Reason, "HTTP 500")
}

func TestNominatimSearchSkipsInvalidCoordinates(t *testing.T) {
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeResults(w,
			nominatimResponse{Lat: "invalid", Lon: "4.8", DisplayName: "Broken"},
			nominatimResponse{Lat: "45.1", Lon: "5.7", DisplayName: "Grenoble"},
		)
	}, time.Millisecond)

	results, err := geocoder.Search(context.Background(), "gare", 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Grenoble", results[0].DisplayName)
}

func TestNominatimGeocodeRateLimiting(t *testing.T) {
	requestCount := 0
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		writeResults(w, nominatimResponse{Lat: "45", Lon: "5", DisplayName: "Test"})
	}, 50*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := geocoder.Geocode(context.Background(), "Test")
		require.NoError(t, err)
	}

	assert.True(t, time.Since(start) >= 100*time.Millisecond, "Rate limiting not working")
	assert.Equal(t, 3, requestCount)
}

func TestWithRetrySuccess(t *testing.T) {
	attemptCount := 0
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		if attemptCount < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeResults(w, nominatimResponse{Lat: "45.7640", Lon: "4.8357", DisplayName: "Lyon"})
	}, time.Millisecond)

	result, err := WithRetry(context.Background(), geocoder, "Lyon", 3)

	require.NoError(t, err)
	assert.Equal(t, 45.764, result.Coords.Lat)
	assert.Equal(t, 2, attemptCount)
}

func TestWithRetryAllFail(t *testing.T) {
	attemptCount := 0
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.WriteHeader(http.StatusInternalServerError)
	}, time.Millisecond)

	result, err := WithRetry(context.Background(), geocoder, "Test", 2)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 2, attemptCount)
}

func TestNominatimGeocodeContextCancellation(t *testing.T) {
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		writeResults(w, nominatimResponse{Lat: "45", Lon: "5", DisplayName: "Test"})
	}, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	result, err := geocoder.Geocode(ctx, "Test")

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestLocateParticipantsOnlyResolvesMissing(t *testing.T) {
	var queries []string
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		writeResults(w, nominatimResponse{Lat: "48.8566", Lon: "2.3522", DisplayName: "Paris"})
	}, time.Millisecond)

	participants := []models.Participant{
		{Name: "ann", Location: models.Coordinates{Lat: 45, Lng: 5}},
		{Name: "bob", Address: "Paris"},
	}

	require.NoError(t, LocateParticipants(context.Background(), geocoder, participants, 1))

	assert.Equal(t, []string{"Paris"}, queries)
	assert.Equal(t, models.Coordinates{Lat: 45, Lng: 5}, participants[0].Location)
	assert.Equal(t, models.Coordinates{Lat: 48.8566, Lng: 2.3522}, participants[1].Location)
}

func TestLocateParticipantsNeedsAddress(t *testing.T) {
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("geocoder should not be called")
	}, time.Millisecond)

	err := LocateParticipants(context.Background(), geocoder, []models.Participant{{Name: "ghost"}}, 1)
	assert.Error(t, err)
}

func TestLocateGites(t *testing.T) {
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		writeResults(w, nominatimResponse{Lat: "44.9", Lon: "6.6", DisplayName: "Briançon"})
	}, time.Millisecond)

	gites := []models.Gite{{ID: "g1", Address: "Briançon"}}
	require.NoError(t, LocateGites(context.Background(), geocoder, gites, 1))
	assert.Equal(t, models.Coordinates{Lat: 44.9, Lng: 6.6}, gites[0].Location)
}
