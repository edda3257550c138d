package possibility

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"trip-planner/internal/covoit"
	"trip-planner/internal/geo"
	"trip-planner/internal/models"
)

// Report describes the finalized candidate. Invalid and rejected candidates
// report their identity and state only.
func (p *Possibility) Report() (*models.CandidateReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	report := &models.CandidateReport{
		ID:       p.id,
		Key:      p.cfg.Key,
		Number:   p.number,
		Gite:     p.gite,
		Rejected: p.rejected,
		Invalid:  p.invalid,
	}
	finalized := p.calc != nil && p.calc.Stage() >= covoit.StageRoutesFinalized
	if p.invalid || (p.rejected && !finalized) {
		return report, nil
	}
	if !finalized {
		return nil, covoit.ErrNotSolved
	}

	drivers := lo.Keys(p.covoits.Drivers())
	sort.Strings(drivers)
	for _, name := range drivers {
		manifest, err := p.manifest(name)
		if err != nil {
			return nil, err
		}
		report.Drivers = append(report.Drivers, *manifest)
	}

	names := lo.Keys(p.covoits)
	sort.Strings(names)
	for _, name := range names {
		cv := p.covoits[name]
		summary := models.TravelerSummary{
			Name:     name,
			IsDriver: cv.IsDriver,
			ByRail:   cv.IsRail(),
			TripCost: cv.TripCost,
			TripTime: cv.TripTime,
		}
		if s := cv.Station(); s != nil {
			summary.Station = s.Name
		}
		report.Travelers = append(report.Travelers, summary)
		report.TotalTripTime += cv.TripTime
		report.TotalTripCost += cv.TripCost
	}
	return report, nil
}

func (p *Possibility) manifest(driverName string) (*models.DriverManifest, error) {
	d := p.covoits[driverName]
	m := &models.DriverManifest{
		Driver:     driverName,
		Capacity:   d.Capacity,
		Passengers: []models.PassengerStop{},
	}
	if d.Route != nil {
		m.RouteCost = d.Route.Cost
		if len(d.Route.Geometry) >= 2 {
			gj, err := geo.MarshalGeoJSON(d.Route.Geometry)
			if err != nil {
				return nil, fmt.Errorf("geometry of %s: %w", driverName, err)
			}
			m.Geometry = gj
		}
	}

	for i, name := range d.PassengerNames {
		detour, err := p.calc.Detour(driverName, name)
		if err != nil {
			return nil, err
		}
		cv := p.covoits[name]
		stop := models.PassengerStop{
			Order:  i + 1,
			Name:   name,
			ByRail: cv.IsRail(),
			Detour: detour,
		}
		if s := cv.Station(); s != nil {
			stop.Station = s.Name
		}
		m.Passengers = append(m.Passengers, stop)
	}
	return m, nil
}
