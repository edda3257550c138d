package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"trip-planner/internal/models"
)

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates
	DisplayName string
}

// Geocoder provides address-to-coordinates conversion
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
	Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error)
}

// ErrGeocodingFailed is returned when an address cannot be geocoded
type ErrGeocodingFailed struct {
	Address string
	Reason  string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

// NominatimGeocoder resolves addresses through a Nominatim server, one request per tick
type NominatimGeocoder struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	rateLimiter *time.Ticker
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a Nominatim geocoder; the public instance allows one request per second
func NewNominatimGeocoder(baseURL string, interval time.Duration) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &NominatimGeocoder{
		baseURL:   baseURL,
		userAgent: "TripPlanner/1.0",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rateLimiter: time.NewTicker(interval),
	}
}

// Stop releases the rate limiter
func (g *NominatimGeocoder) Stop() {
	g.rateLimiter.Stop()
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	results, err := g.search(ctx, address, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		log.Errorf("[ERROR] No geocoding results found: address=%s", address)
		return nil, &ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}

	log.Debugf("[GEOCODING] Response: address=%s lat=%.6f lng=%.6f display_name=%s",
		address, results[0].Coords.Lat, results[0].Coords.Lng, results[0].DisplayName)
	return &results[0], nil
}

func (g *NominatimGeocoder) Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error) {
	return g.search(ctx, query, limit)
}

func (g *NominatimGeocoder) search(ctx context.Context, query string, limit int) ([]GeocodingResult, error) {
	select {
	case <-g.rateLimiter.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	queryURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=%d", g.baseURL, url.QueryEscape(query), limit)
	log.Debugf("[GEOCODING] Request: query=%s limit=%d", query, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Errorf("[ERROR] Geocoding API request failed: query=%s err=%v", query, err)
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Errorf("[ERROR] Geocoding API error: query=%s status=%d", query, resp.StatusCode)
		return nil, &ErrGeocodingFailed{
			Address: query,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var raw []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}

	results := make([]GeocodingResult, 0, len(raw))
	for _, r := range raw {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			log.Warnf("[GEOCODING] Invalid latitude: query=%s lat=%s", query, r.Lat)
			continue
		}
		lng, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			log.Warnf("[GEOCODING] Invalid longitude: query=%s lng=%s", query, r.Lon)
			continue
		}
		results = append(results, GeocodingResult{
			Coords:      models.Coordinates{Lat: lat, Lng: lng},
			DisplayName: r.DisplayName,
		})
	}
	return results, nil
}

// WithRetry geocodes with exponential backoff between attempts
func WithRetry(ctx context.Context, g Geocoder, address string, maxRetries int) (*GeocodingResult, error) {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		result, err := g.Geocode(ctx, address)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if i < maxRetries-1 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			log.Warnf("[GEOCODING] Retry %d/%d: address=%s backoff=%v err=%v", i+1, maxRetries, address, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, lastErr
}

// LocateParticipants fills the location of participants that only have an address
func LocateParticipants(ctx context.Context, g Geocoder, participants []models.Participant, maxRetries int) error {
	for i := range participants {
		p := &participants[i]
		if !p.Location.IsZero() {
			continue
		}
		if p.Address == "" {
			return fmt.Errorf("participant %s has neither location nor address", p.Name)
		}
		res, err := WithRetry(ctx, g, p.Address, maxRetries)
		if err != nil {
			return fmt.Errorf("participant %s: %w", p.Name, err)
		}
		p.Location = res.Coords
		log.WithField("participant", p.Name).Infof("[GEOCODING] Located %s", res.DisplayName)
	}
	return nil
}

// LocateGites fills the location of gites that only have an address
func LocateGites(ctx context.Context, g Geocoder, gites []models.Gite, maxRetries int) error {
	for i := range gites {
		gite := &gites[i]
		if !gite.Location.IsZero() {
			continue
		}
		if gite.Address == "" {
			return fmt.Errorf("gite %s has neither location nor address", gite.ID)
		}
		res, err := WithRetry(ctx, g, gite.Address, maxRetries)
		if err != nil {
			return fmt.Errorf("gite %s: %w", gite.ID, err)
		}
		gite.Location = res.Coords
	}
	return nil
}
