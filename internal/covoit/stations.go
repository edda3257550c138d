package covoit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/twpayne/go-geom"
	"golang.org/x/sync/errgroup"

	"trip-planner/internal/geo"
	"trip-planner/internal/models"
	"trip-planner/internal/observability"
)

// AssignStations picks a station for every rail traveler. Stations near home
// and the stations sharing a line with them are scored by their distance to
// the routes of drivers with a free seat, the access distance from home and
// the remaining distance to the destination. The lowest score wins.
func (c *Calculator) AssignStations(ctx context.Context) error {
	riders := c.covoits.RailUsers()
	if len(riders) == 0 {
		return nil
	}

	lines, err := c.spareSeatRoutes(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(riders))
	for name := range riders {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rider := riders[name]
		candidates, err := c.candidateStations(ctx, rider.DepartureLocation())
		if err != nil {
			return fmt.Errorf("stations for %s: %w", name, err)
		}
		if len(candidates) == 0 {
			log.WithField("traveler", name).Warn("[RAIL] No station in reach")
			continue
		}

		best, bestScore := candidates[0], math.Inf(1)
		for _, s := range candidates {
			score := c.stationScore(rider.DepartureLocation(), s, lines)
			if score < bestScore {
				best, bestScore = s, score
			}
		}
		if err := rider.AssignStation(best); err != nil {
			return err
		}
		log.WithFields(log.Fields{"traveler": name, "station": best.Name}).Infof("[RAIL] Station assigned (score=%.1f)", bestScore)
	}
	return nil
}

func (c *Calculator) stationScore(home models.Coordinates, s models.Station, lines []*geom.LineString) float64 {
	nearRoute, ok := geo.NearestDistanceKm(s.Location, lines)
	if !ok {
		nearRoute = 0
	}
	return c.cfg.DriverProximityWeight*nearRoute +
		c.cfg.RailAccessWeight*geo.DistanceKm(home, s.Location) +
		geo.DistanceKm(s.Location, c.destination)
}

// candidateStations returns the stations within the radius of loc and every
// station sharing a line with one of them, sorted by code
func (c *Calculator) candidateStations(ctx context.Context, loc models.Coordinates) ([]models.Station, error) {
	near, err := c.deps.Stations.StationsInRadius(ctx, loc, c.cfg.StationRadiusKm)
	if err != nil {
		return nil, err
	}

	byCode := make(map[string]models.Station)
	for _, s := range near {
		byCode[s.Code] = s
		connected, err := c.deps.Stations.ConnectedStations(ctx, s)
		if err != nil {
			return nil, err
		}
		for _, cs := range connected {
			byCode[cs.Code] = cs
		}
	}

	out := make([]models.Station, 0, len(byCode))
	for _, s := range byCode {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// spareSeatRoutes fetches the road geometry of every driver that can still take a passenger
func (c *Calculator) spareSeatRoutes(ctx context.Context) ([]*geom.LineString, error) {
	var drivers []string
	for _, name := range c.driverNames() {
		if c.covoits[name].SeatsLeft() > 0 {
			drivers = append(drivers, name)
		}
	}

	results, err := c.fetchRoutes(ctx, drivers)
	if err != nil {
		return nil, err
	}

	var lines []*geom.LineString
	for _, r := range results {
		if len(r.Geometry) >= 2 {
			lines = append(lines, geo.NewLineString(r.Geometry))
		}
	}
	return lines, nil
}

// waypoints lists the driver's home, the pickup locations in order and the destination
func (c *Calculator) waypoints(driverName string) ([]models.Coordinates, error) {
	d := c.covoits[driverName]
	points := []models.Coordinates{d.Home}
	for _, p := range d.PassengerNames {
		cv, ok := c.covoits[p]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTraveler, p)
		}
		loc, ok := cv.Location()
		if !ok {
			return nil, fmt.Errorf("passenger %s of %s: %w", p, driverName, models.ErrStationNotAssigned)
		}
		points = append(points, loc)
	}
	return append(points, c.destination), nil
}

// fetchRoutes requests one route per driver concurrently. Waypoints are
// resolved before any request starts. Every request runs to completion; the
// call fails afterwards if any of them failed.
func (c *Calculator) fetchRoutes(ctx context.Context, drivers []string) ([]*models.RouteResult, error) {
	waypoints := make([][]models.Coordinates, len(drivers))
	for i, name := range drivers {
		w, err := c.waypoints(name)
		if err != nil {
			return nil, err
		}
		waypoints[i] = w
	}

	results := make([]*models.RouteResult, len(drivers))
	errs := make([]error, len(drivers))

	var g errgroup.Group
	for i, name := range drivers {
		g.Go(func() error {
			r, err := c.deps.Routes.Route(ctx, waypoints[i])
			if err != nil {
				observability.RouteRequestsTotal.WithLabelValues("failed").Inc()
				errs[i] = fmt.Errorf("route for %s: %w", name, err)
				return errs[i]
			}
			observability.RouteRequestsTotal.WithLabelValues("ok").Inc()
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Join(errs...)
	}
	return results, nil
}
