package covoit

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"trip-planner/internal/geo"
	"trip-planner/internal/models"
)

// FinalizeRoutes fetches the road route of every driver, then shares out
// trip time and trip cost.
func (c *Calculator) FinalizeRoutes(ctx context.Context) error {
	if c.table == nil {
		return ErrNotSolved
	}
	drivers := c.driverNames()
	results, err := c.fetchRoutes(ctx, drivers)
	if err != nil {
		return err
	}
	for i, name := range drivers {
		c.covoits[name].Route = results[i]
	}

	for _, cv := range c.covoits {
		cv.TripCost, cv.TripTime = 0, 0
	}
	for _, name := range drivers {
		if err := c.allocateTimes(name); err != nil {
			return err
		}
		if err := c.allocateCosts(name); err != nil {
			return err
		}
	}
	c.allocateUnseated()

	log.WithField("drivers", len(drivers)).Info("[ENGINE] Routes finalized")
	return nil
}

// allocateTimes gives the driver the whole route duration and each passenger
// the rest of the route from its pickup. Rail travelers add the train leg.
func (c *Calculator) allocateTimes(driverName string) error {
	d := c.covoits[driverName]
	total, err := c.pathCost(driverName, d.PassengerNames, models.KeyDuration)
	if err != nil {
		return err
	}
	d.TripTime = total

	for i, name := range d.PassengerNames {
		remaining, err := c.pathCost(name, d.PassengerNames[i+1:], models.KeyDuration)
		if err != nil {
			return err
		}
		p := c.covoits[name]
		p.TripTime = remaining + c.railLegSecs(p)
	}
	return nil
}

func (c *Calculator) railLegSecs(cv *models.Covoit) float64 {
	s := cv.Station()
	if s == nil {
		return 0
	}
	return geo.DistanceKm(cv.DepartureLocation(), s.Location) / c.cfg.TrainSpeedKmh * 3600
}

// allocateCosts doubles the route cost for the way back and splits it in
// proportion to each traveler's road distance to the destination
func (c *Calculator) allocateCosts(driverName string) error {
	d := c.covoits[driverName]
	if d.Route == nil {
		return fmt.Errorf("driver %s has no route", driverName)
	}
	total := 2 * d.Route.Cost
	riders := append([]string{driverName}, d.PassengerNames...)

	weights := make([]float64, len(riders))
	sum := 0.0
	for i, name := range riders {
		e, ok := c.table.Edge(name, models.EndNode)
		if !ok {
			return fmt.Errorf("matrix has no edge %s -> %s", name, models.EndNode)
		}
		weights[i] = e.Distance
		sum += e.Distance
	}

	for i, name := range riders {
		share := 1.0 / float64(len(riders))
		if sum > 0 {
			share = weights[i] / sum
		}
		c.covoits[name].TripCost = total * share
	}
	return nil
}

// allocateUnseated estimates the trip of rail travelers left without a
// station as a train ride straight to the destination
func (c *Calculator) allocateUnseated() {
	for _, cv := range c.covoits.RailUsers() {
		if cv.Station() == nil {
			cv.TripTime = geo.DistanceKm(cv.DepartureLocation(), c.destination) / c.cfg.TrainSpeedKmh * 3600
		}
	}
}
