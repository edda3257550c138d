package routing

import (
	"errors"
	"fmt"
	"time"

	"trip-planner/internal/models"
)

// ErrNoSolution is returned when no assignment satisfies seats and the route ceiling
var ErrNoSolution = errors.New("no feasible solution")

// Vehicle is a driver start node with the number of passenger seats it offers
type Vehicle struct {
	Name  string
	Seats int
}

// Problem is an open capacitated routing problem over a name-keyed matrix.
// Every vehicle starts at its own node and ends at End; every stop has unit demand.
type Problem struct {
	Matrix   models.Matrix
	Key      models.CostKey
	Vehicles []Vehicle
	Stops    []string
	End      string
}

// Params bounds the search
type Params struct {
	// TimeBudget caps the local search phase; zero keeps the construction as is
	TimeBudget time.Duration
	// SpanCostCoefficient weighs the gap between the longest and shortest route
	SpanCostCoefficient float64
	// MaxRouteCost is a hard ceiling on each route's primary cost; zero disables it
	MaxRouteCost float64
}

// Solution maps every vehicle to its stops in visiting order
type Solution struct {
	Routes     map[string][]string
	RouteCosts map[string]float64
	Objective  float64
	Improved   int
}

// ErrRoutingFailed is returned when no valid route solution exists
type ErrRoutingFailed struct {
	Reason          string
	UnassignedCount int
	TotalSeats      int
	TotalStops      int
}

func (e *ErrRoutingFailed) Error() string {
	return fmt.Sprintf("routing failed: %s", e.Reason)
}

func (e *ErrRoutingFailed) Unwrap() error {
	return ErrNoSolution
}
