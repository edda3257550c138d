// Package covoit assigns travelers of one destination to drivers, moves the
// passengers that cost their driver too much onto rail, and shares route
// cost and time between travelers.
package covoit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"trip-planner/internal/distance"
	"trip-planner/internal/matrix"
	"trip-planner/internal/models"
	"trip-planner/internal/observability"
	"trip-planner/internal/rail"
	"trip-planner/internal/routing"
)

// Stage is the progress of a calculator through its computation
type Stage int

const (
	StageBuilt Stage = iota
	StageSolved
	StageRailConverted
	StageResolved
	StageRoutesFinalized
)

func (s Stage) String() string {
	switch s {
	case StageBuilt:
		return "built"
	case StageSolved:
		return "solved"
	case StageRailConverted:
		return "rail_converted"
	case StageResolved:
		return "resolved"
	case StageRoutesFinalized:
		return "routes_finalized"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Deps are the collaborators of a calculator
type Deps struct {
	Matrix   *matrix.Cache
	Routes   distance.RouteProvider
	Stations rail.Locator
}

// Calculator is the assignment engine of one destination. It mutates the
// traveler set it was given and is not safe for concurrent use.
type Calculator struct {
	cfg         Config
	destination models.Coordinates
	covoits     models.Covoits
	deps        Deps

	stage Stage
	table models.Matrix
}

// New creates a calculator for the travelers heading to destination
func New(covoits models.Covoits, destination models.Coordinates, deps Deps, cfg Config) *Calculator {
	for _, c := range covoits {
		c.Destination = destination
	}
	return &Calculator{
		cfg:         cfg,
		destination: destination,
		covoits:     covoits,
		deps:        deps,
	}
}

func (c *Calculator) Covoits() models.Covoits { return c.covoits }
func (c *Calculator) Stage() Stage            { return c.stage }
func (c *Calculator) Config() Config          { return c.cfg }

// Matrix returns the table used by the last solve
func (c *Calculator) Matrix() models.Matrix { return c.table }

// Restore resumes a calculator at a stage, reading its table from the matrix cache
func (c *Calculator) Restore(stage Stage) {
	c.stage = stage
	if stage > StageBuilt {
		c.table = c.deps.Matrix.Table()
	}
}

// Invalidate sends the calculator back to its first stage. Travelers are
// reset in place: rail travelers become car travelers again and every
// assignment, route and allocation is dropped.
func (c *Calculator) Invalidate() {
	for name, cv := range c.covoits {
		c.covoits[name] = cv.Reset()
	}
	c.stage = StageBuilt
	c.table = nil
}

// Advance runs every stage up to target. Satisfied stages are skipped.
func (c *Calculator) Advance(ctx context.Context, target Stage) error {
	for c.stage < target {
		var err error
		switch c.stage {
		case StageBuilt:
			err = c.Solve(ctx, false)
		case StageSolved:
			err = c.convertFlagged(ctx)
		case StageRailConverted:
			err = c.Solve(ctx, false)
		case StageResolved:
			err = c.FinalizeRoutes(ctx)
		}
		if err != nil {
			return fmt.Errorf("%s stage: %w", c.stage+1, err)
		}
		c.stage++
		log.WithField("stage", c.stage).Debug("[ENGINE] Stage complete")
	}
	return nil
}

func (c *Calculator) convertFlagged(ctx context.Context) error {
	flagged, err := c.RailCandidates(c.cfg.DetourThreshold)
	if err != nil {
		return err
	}
	reachable, err := c.ReachableByRail(ctx, flagged)
	if err != nil {
		return err
	}
	if err := c.ConvertToRail(ctx, reachable); err != nil {
		return err
	}
	return c.AssignStations(ctx)
}

// nodes returns the located travelers plus the end node. Rail travelers are
// left out when ignoreRail is set or while they have no station.
func (c *Calculator) nodes(ignoreRail bool) map[string]models.Coordinates {
	nodes := map[string]models.Coordinates{models.EndNode: c.destination}
	for name, cv := range c.covoits {
		if cv.IsRail() && ignoreRail {
			continue
		}
		if loc, ok := cv.Location(); ok {
			nodes[name] = loc
		}
	}
	return nodes
}

func (c *Calculator) driverNames() []string {
	names := lo.Keys(c.covoits.Drivers())
	sort.Strings(names)
	return names
}

// Solve assigns passengers to drivers. On failure the passenger lists are left untouched.
func (c *Calculator) Solve(ctx context.Context, ignoreRail bool) error {
	nodes := c.nodes(ignoreRail)
	table, err := c.deps.Matrix.Matrix(ctx, nodes)
	if err != nil {
		return err
	}

	drivers := c.driverNames()
	problem := &routing.Problem{
		Matrix: table,
		Key:    c.cfg.Key,
		End:    models.EndNode,
		Vehicles: lo.Map(drivers, func(name string, _ int) routing.Vehicle {
			return routing.Vehicle{Name: name, Seats: c.covoits[name].Capacity - 1}
		}),
	}
	for name := range nodes {
		if name != models.EndNode && !c.covoits[name].IsDriver {
			problem.Stops = append(problem.Stops, name)
		}
	}
	sort.Strings(problem.Stops)

	start := time.Now()
	sol, err := routing.Solve(problem, routing.Params{
		TimeBudget:          c.cfg.TimeBudget,
		SpanCostCoefficient: c.cfg.SpanCostCoefficient,
		MaxRouteCost:        c.cfg.MaxRouteCost,
	})
	observability.SolveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.SolvesTotal.WithLabelValues("failed").Inc()
		log.WithFields(log.Fields{"drivers": len(drivers), "passengers": len(problem.Stops)}).Warnf("[ENGINE] Solve failed: %v", err)
		return err
	}
	observability.SolvesTotal.WithLabelValues("ok").Inc()

	for _, name := range drivers {
		d := c.covoits[name]
		d.PassengerNames = append([]string{}, sol.Routes[name]...)
		d.Route = nil
	}
	c.table = table

	log.WithFields(log.Fields{
		"drivers":    len(drivers),
		"passengers": len(problem.Stops),
		"objective":  sol.Objective,
		"moves":      sol.Improved,
	}).Infof("[ENGINE] Solved in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// Trip sums the edge costs from the driver through passengers to the destination
func (c *Calculator) Trip(driverName string, passengers []string) (float64, error) {
	return c.pathCost(driverName, passengers, c.cfg.Key)
}

func (c *Calculator) pathCost(from string, through []string, key models.CostKey) (float64, error) {
	if c.table == nil {
		return 0, ErrNotSolved
	}
	total := 0.0
	prev := from
	for _, next := range append(append([]string{}, through...), models.EndNode) {
		e, ok := c.table.Edge(prev, next)
		if !ok {
			return 0, fmt.Errorf("matrix has no edge %s -> %s", prev, next)
		}
		total += e.Value(key)
		prev = next
	}
	return total, nil
}

func (c *Calculator) driver(name string) (*models.Covoit, error) {
	d, ok := c.covoits[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTraveler, name)
	}
	if !d.IsDriver {
		return nil, fmt.Errorf("%w: %s", ErrNotDriver, name)
	}
	return d, nil
}

// Detour is the cost the passenger adds to the driver's route, keeping the
// driver's order. It can be negative when the matrix breaks the triangle inequality.
func (c *Calculator) Detour(driverName, passengerName string) (float64, error) {
	d, err := c.driver(driverName)
	if err != nil {
		return 0, err
	}
	if !lo.Contains(d.PassengerNames, passengerName) {
		return 0, fmt.Errorf("%w: %s not carried by %s", ErrPassengerNotAssigned, passengerName, driverName)
	}

	full, err := c.Trip(driverName, d.PassengerNames)
	if err != nil {
		return 0, err
	}
	without, err := c.Trip(driverName, lo.Without(d.PassengerNames, passengerName))
	if err != nil {
		return 0, err
	}
	return full - without, nil
}

// RailCandidates flags the passengers whose detour exceeds threshold times their driver's route
func (c *Calculator) RailCandidates(threshold float64) ([]string, error) {
	var flagged []string
	for _, name := range c.driverNames() {
		d := c.covoits[name]
		if len(d.PassengerNames) == 0 {
			continue
		}
		full, err := c.Trip(name, d.PassengerNames)
		if err != nil {
			return nil, err
		}
		if full <= 0 {
			continue
		}
		for _, p := range d.PassengerNames {
			detour, err := c.Detour(name, p)
			if err != nil {
				return nil, err
			}
			if detour/full > threshold {
				log.WithFields(log.Fields{"driver": name, "passenger": p}).
					Debugf("[ENGINE] Detour %.0f is %.0f%% of route", detour, 100*detour/full)
				flagged = append(flagged, p)
			}
		}
	}
	sort.Strings(flagged)
	return flagged, nil
}

// ReachableByRail keeps the travelers with at least one station within the station radius of home
func (c *Calculator) ReachableByRail(ctx context.Context, names []string) ([]string, error) {
	var out []string
	for _, name := range names {
		cv, ok := c.covoits[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTraveler, name)
		}
		stations, err := c.deps.Stations.StationsInRadius(ctx, cv.DepartureLocation(), c.cfg.StationRadiusKm)
		if err != nil {
			return nil, fmt.Errorf("station lookup for %s: %w", name, err)
		}
		if len(stations) > 0 {
			out = append(out, name)
		}
	}
	return out, nil
}

// ConvertToRail turns the named passengers into rail travelers, drops them
// from the cached matrix and re-solves the remaining car travelers.
func (c *Calculator) ConvertToRail(ctx context.Context, names []string) error {
	var converted []string
	for _, name := range names {
		cv, ok := c.covoits[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTraveler, name)
		}
		if cv.IsRail() {
			continue
		}
		r, err := cv.ToRail(c.cfg.StationRadiusKm)
		if err != nil {
			return err
		}
		c.covoits[name] = r
		converted = append(converted, name)
	}
	if len(converted) == 0 {
		return nil
	}

	for _, d := range c.covoits.Drivers() {
		d.PassengerNames = lo.Without(d.PassengerNames, converted...)
	}
	c.deps.Matrix.Crop(converted)
	observability.RailConversions.Add(float64(len(converted)))
	log.WithField("passengers", converted).Infof("[ENGINE] Converted %d passengers to rail", len(converted))

	return c.Solve(ctx, true)
}
