package models

import (
	"encoding/json"
	"math"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point was never set
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// RoundCoordinate rounds to 5 decimal places (~1m precision), the precision used for cache keys
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// Participant is one traveler of the trip, as entered by the organizer
type Participant struct {
	Name     string      `json:"name"`
	Address  string      `json:"address,omitempty"`
	Location Coordinates `json:"location"`
	IsDriver bool        `json:"is_driver"`
	Capacity int         `json:"capacity,omitempty"`
	Budget   float64     `json:"budget"`
}

// GetCoords returns the coordinates of the participant
func (p *Participant) GetCoords() Coordinates {
	return p.Location
}

// Gite is an accommodation offer, the shared destination of a candidate
type Gite struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Link     string      `json:"link,omitempty"`
	Address  string      `json:"address,omitempty"`
	Location Coordinates `json:"location"`
	Price    float64     `json:"price"`
	Bedrooms int         `json:"bedrooms,omitempty"`
	Capacity int         `json:"capacity,omitempty"`
}

// GetCoords returns the gite coordinates
func (g *Gite) GetCoords() Coordinates {
	return g.Location
}

// Station is a rail station known to the station locator
type Station struct {
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	City      string      `json:"city,omitempty"`
	Location  Coordinates `json:"location"`
	Affluence int         `json:"affluence,omitempty"`
}

// CostKey selects which matrix metric drives optimization
type CostKey string

const (
	KeyDuration CostKey = "duration"
	KeyDistance CostKey = "distance"
)

// EndNode is the synthetic matrix key of the shared destination
const EndNode = "_end"

// MatrixEntry is one pairwise road measurement
type MatrixEntry struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// Value returns the metric selected by key
func (e MatrixEntry) Value(key CostKey) float64 {
	if key == KeyDistance {
		return e.Distance
	}
	return e.Duration
}

// Matrix maps origin name to destination name to road measurement
type Matrix map[string]map[string]MatrixEntry

// Edge returns the measurement between two named nodes
func (m Matrix) Edge(from, to string) (MatrixEntry, bool) {
	row, ok := m[from]
	if !ok {
		return MatrixEntry{}, false
	}
	e, ok := row[to]
	return e, ok
}

// Clone returns a deep copy of the matrix
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for from, row := range m {
		r := make(map[string]MatrixEntry, len(row))
		for to, e := range row {
			r[to] = e
		}
		out[from] = r
	}
	return out
}

// RouteResult is a concrete road route returned by the route provider
type RouteResult struct {
	Cost           float64       `json:"cost"`
	DistanceMeters float64       `json:"distance_meters"`
	DurationSecs   float64       `json:"duration_secs"`
	Geometry       []Coordinates `json:"geometry"`
}

// DistanceCacheEntry represents a cached distance lookup
type DistanceCacheEntry struct {
	Origin         Coordinates `json:"origin"`
	Destination    Coordinates `json:"destination"`
	DistanceMeters float64     `json:"distance_meters"`
	DurationSecs   float64     `json:"duration_secs"`
}

// PassengerStop is one pickup in a driver manifest. Detour is expressed in
// the optimization metric of the candidate.
type PassengerStop struct {
	Order   int     `json:"order"`
	Name    string  `json:"name"`
	ByRail  bool    `json:"by_rail"`
	Station string  `json:"station,omitempty"`
	Detour  float64 `json:"detour"`
}

// DriverManifest lists a driver's pickups in visiting order
type DriverManifest struct {
	Driver     string          `json:"driver"`
	Capacity   int             `json:"capacity"`
	Passengers []PassengerStop `json:"passengers"`
	RouteCost  float64         `json:"route_cost"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
}

// TravelerSummary is the allocated cost and time of one traveler
type TravelerSummary struct {
	Name     string  `json:"name"`
	IsDriver bool    `json:"is_driver"`
	ByRail   bool    `json:"by_rail"`
	Station  string  `json:"station,omitempty"`
	TripCost float64 `json:"trip_cost"`
	TripTime float64 `json:"trip_time_secs"`
}

// CandidateReport is the output of one finalized candidate
type CandidateReport struct {
	ID            string            `json:"id"`
	Key           CostKey           `json:"key"`
	Number        int               `json:"number,omitempty"`
	Gite          Gite              `json:"gite"`
	Drivers       []DriverManifest  `json:"drivers"`
	Travelers     []TravelerSummary `json:"travelers"`
	TotalTripTime float64           `json:"total_trip_time_secs"`
	TotalTripCost float64           `json:"total_trip_cost"`
	Rejected      bool              `json:"rejected"`
	Invalid       bool              `json:"invalid"`
}
