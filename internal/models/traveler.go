package models

import (
	"errors"
	"fmt"
)

// TravelerKind tags the Covoit variant
type TravelerKind string

const (
	KindCar  TravelerKind = "car"
	KindRail TravelerKind = "rail"
)

// ErrStationNotAssigned is returned when a rail traveler is asked for a location before a station is picked
var ErrStationNotAssigned = errors.New("train station not assigned")

// RailLeg holds the rail-specific state of a traveler
type RailLeg struct {
	Station         *Station `json:"station,omitempty"`
	StationRadiusKm float64  `json:"station_radius_km"`
}

// Covoit is one traveler's state for a specific destination candidate.
// Kind selects the variant: car travelers may drive and carry passengers,
// rail travelers never drive and are located at their assigned station.
type Covoit struct {
	Name           string       `json:"name"`
	Kind           TravelerKind `json:"kind"`
	Home           Coordinates  `json:"home"`
	Destination    Coordinates  `json:"destination"`
	IsDriver       bool         `json:"is_driver"`
	Capacity       int          `json:"capacity,omitempty"`
	PassengerNames []string     `json:"passenger_names,omitempty"`
	Route          *RouteResult `json:"route,omitempty"`
	TripCost       float64      `json:"trip_cost"`
	TripTime       float64      `json:"trip_time"`
	Rail           *RailLeg     `json:"rail,omitempty"`
}

// NewCovoit builds the car traveler of a participant for a destination
func NewCovoit(p Participant, destination Coordinates) *Covoit {
	c := &Covoit{
		Name:        p.Name,
		Kind:        KindCar,
		Home:        p.Location,
		Destination: destination,
	}
	if p.IsDriver {
		c.IsDriver = true
		c.Capacity = p.Capacity
		c.PassengerNames = []string{}
	}
	return c
}

// ToRail returns the rail variant of a car passenger, anchored at its home
func (c *Covoit) ToRail(radiusKm float64) (*Covoit, error) {
	if c.IsDriver {
		return nil, fmt.Errorf("covoit %s: drivers cannot travel by rail", c.Name)
	}
	return &Covoit{
		Name:        c.Name,
		Kind:        KindRail,
		Home:        c.Home,
		Destination: c.Destination,
		Rail:        &RailLeg{StationRadiusKm: radiusKm},
	}, nil
}

// Reset returns the traveler as it was built: a car traveler at home with
// no assignment, route or allocation
func (c *Covoit) Reset() *Covoit {
	out := &Covoit{
		Name:        c.Name,
		Kind:        KindCar,
		Home:        c.Home,
		Destination: c.Destination,
	}
	if c.IsDriver {
		out.IsDriver = true
		out.Capacity = c.Capacity
		out.PassengerNames = []string{}
	}
	return out
}

// IsRail reports whether the traveler was re-routed through rail
func (c *Covoit) IsRail() bool {
	return c.Kind == KindRail
}

// Location is where the traveler joins the road network.
// For rail travelers it is the station location and is unknown until a station is assigned.
func (c *Covoit) Location() (Coordinates, bool) {
	if c.Kind == KindRail {
		if c.Rail == nil || c.Rail.Station == nil {
			return Coordinates{}, false
		}
		return c.Rail.Station.Location, true
	}
	return c.Home, true
}

// DepartureLocation is the traveler's original home location
func (c *Covoit) DepartureLocation() Coordinates {
	return c.Home
}

// AssignStation pins a rail traveler to a station, which also sets its location
func (c *Covoit) AssignStation(s Station) error {
	if c.Kind != KindRail {
		return fmt.Errorf("covoit %s: station assigned to a car traveler", c.Name)
	}
	st := s
	c.Rail.Station = &st
	return nil
}

// Station returns the assigned station, nil while undecided or for car travelers
func (c *Covoit) Station() *Station {
	if c.Rail == nil {
		return nil
	}
	return c.Rail.Station
}

// SeatsLeft is the number of passengers the driver can still take
func (c *Covoit) SeatsLeft() int {
	if !c.IsDriver {
		return 0
	}
	return c.Capacity - 1 - len(c.PassengerNames)
}

// Validate checks the variant invariants
func (c *Covoit) Validate() error {
	if c.Kind != KindCar && c.Kind != KindRail {
		return fmt.Errorf("covoit %s: unknown kind %q", c.Name, c.Kind)
	}
	if c.Kind == KindRail && (c.IsDriver || c.Rail == nil) {
		return fmt.Errorf("covoit %s: invalid rail traveler", c.Name)
	}
	if !c.IsDriver && c.PassengerNames != nil {
		return fmt.Errorf("covoit %s: passenger list on a non-driver", c.Name)
	}
	if c.IsDriver && len(c.PassengerNames) > c.Capacity-1 {
		return fmt.Errorf("covoit %s: %d passengers exceed capacity %d", c.Name, len(c.PassengerNames), c.Capacity)
	}
	return nil
}

// Covoits is a candidate's traveler set keyed by name
type Covoits map[string]*Covoit

// Drivers returns the drivers of the set
func (cs Covoits) Drivers() Covoits {
	out := make(Covoits)
	for name, c := range cs {
		if c.IsDriver {
			out[name] = c
		}
	}
	return out
}

// RailUsers returns the rail travelers of the set
func (cs Covoits) RailUsers() Covoits {
	out := make(Covoits)
	for name, c := range cs {
		if c.IsRail() {
			out[name] = c
		}
	}
	return out
}

// Clone deep-copies the traveler set
func (cs Covoits) Clone() Covoits {
	out := make(Covoits, len(cs))
	for name, c := range cs {
		cp := *c
		if c.PassengerNames != nil {
			cp.PassengerNames = append([]string{}, c.PassengerNames...)
		}
		if c.Rail != nil {
			rail := *c.Rail
			cp.Rail = &rail
		}
		if c.Route != nil {
			route := *c.Route
			cp.Route = &route
		}
		out[name] = &cp
	}
	return out
}
