package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/twpayne/go-polyline"

	"trip-planner/internal/models"
)

// ErrUnroutableLocation signals that a waypoint cannot be placed on the road network
var ErrUnroutableLocation = errors.New("unroutable location")

// UnroutableLocationError carries the waypoints of a failed route request
type UnroutableLocationError struct {
	Waypoints []models.Coordinates
	Code      string
}

func (e *UnroutableLocationError) Error() string {
	return fmt.Sprintf("unroutable location (%s) in %d waypoints", e.Code, len(e.Waypoints))
}

func (e *UnroutableLocationError) Unwrap() error {
	return ErrUnroutableLocation
}

// RouteProvider returns a concrete road route through ordered waypoints
type RouteProvider interface {
	Route(ctx context.Context, waypoints []models.Coordinates) (*models.RouteResult, error)
}

// OSRMRouter requests driving routes from OSRM and prices them per kilometer
type OSRMRouter struct {
	baseURL    string
	httpClient *http.Client
	costPerKm  float64
}

type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

// unroutableCodes are OSRM answers meaning a waypoint has no usable road
var unroutableCodes = map[string]bool{
	"NoRoute":   true,
	"NoSegment": true,
}

// NewOSRMRouter creates a route provider; costPerKm converts driven distance into money
func NewOSRMRouter(baseURL string, costPerKm float64) *OSRMRouter {
	return &OSRMRouter{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		costPerKm: costPerKm,
	}
}

func (r *OSRMRouter) Route(ctx context.Context, waypoints []models.Coordinates) (*models.RouteResult, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("route needs at least 2 waypoints, got %d", len(waypoints))
	}

	queryURL := fmt.Sprintf("%s/route/v1/driving/%s?overview=full&geometries=polyline", r.baseURL, joinCoords(waypoints))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrDistanceCalculationFailed{Reason: err.Error()}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		log.WithField("waypoints", len(waypoints)).Errorf("[ERROR] OSRM route request failed: %v", err)
		return nil, &ErrDistanceCalculationFailed{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ErrDistanceCalculationFailed{Reason: err.Error()}
	}

	var osrmResp osrmRouteResponse
	if err := json.Unmarshal(body, &osrmResp); err != nil && resp.StatusCode == http.StatusOK {
		return nil, &ErrDistanceCalculationFailed{Reason: err.Error()}
	}

	if unroutableCodes[osrmResp.Code] || resp.StatusCode == http.StatusNotFound {
		log.WithField("code", osrmResp.Code).Warnf("[OSRM] Unroutable waypoint: waypoints=%d", len(waypoints))
		return nil, &UnroutableLocationError{Waypoints: waypoints, Code: osrmResp.Code}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ErrDistanceCalculationFailed{
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	if osrmResp.Code != "Ok" || len(osrmResp.Routes) == 0 {
		return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("OSRM error: %s", osrmResp.Code)}
	}

	route := osrmResp.Routes[0]
	coords, _, err := polyline.DecodeCoords([]byte(route.Geometry))
	if err != nil {
		return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("invalid geometry: %v", err)}
	}

	geometry := make([]models.Coordinates, len(coords))
	for i, c := range coords {
		geometry[i] = models.Coordinates{Lat: c[0], Lng: c[1]}
	}

	log.Debugf("[OSRM] Route response: waypoints=%d distance=%.0fm duration=%.0fs", len(waypoints), route.Distance, route.Duration)

	return &models.RouteResult{
		Cost:           route.Distance / 1000 * r.costPerKm,
		DistanceMeters: route.Distance,
		DurationSecs:   route.Duration,
		Geometry:       geometry,
	}, nil
}
