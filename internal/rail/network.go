// Package rail locates train stations and the stations reachable from them
// through a shared line.
package rail

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"trip-planner/internal/database"
	"trip-planner/internal/geo"
	"trip-planner/internal/models"
)

// Locator finds candidate stations for rail travelers
type Locator interface {
	StationsInRadius(ctx context.Context, loc models.Coordinates, radiusKm float64) ([]models.Station, error)
	ConnectedStations(ctx context.Context, station models.Station) ([]models.Station, error)
}

// Network is an in-memory rail network: stations keyed by code and the
// stops of every line.
type Network struct {
	stations map[string]models.Station
	lines    map[string][]string
	byStop   map[string][]string
}

// NewNetwork creates a network from a station list
func NewNetwork(stations []models.Station) *Network {
	n := &Network{
		stations: make(map[string]models.Station, len(stations)),
		lines:    make(map[string][]string),
		byStop:   make(map[string][]string),
	}
	for _, s := range stations {
		n.stations[s.Code] = s
	}
	return n
}

// AddLine registers the stops of a line. Unknown station codes are kept so
// that stations added later still connect.
func (n *Network) AddLine(line string, codes []string) {
	for _, code := range codes {
		if lo.Contains(n.lines[line], code) {
			continue
		}
		n.lines[line] = append(n.lines[line], code)
		n.byStop[code] = append(n.byStop[code], line)
	}
}

// Len returns the number of stations
func (n *Network) Len() int {
	return len(n.stations)
}

// Station returns a station by code
func (n *Network) Station(code string) (models.Station, bool) {
	s, ok := n.stations[code]
	return s, ok
}

func (n *Network) StationsInRadius(ctx context.Context, loc models.Coordinates, radiusKm float64) ([]models.Station, error) {
	type hit struct {
		station models.Station
		dist    float64
	}
	var hits []hit
	for _, s := range n.stations {
		if d := geo.DistanceKm(loc, s.Location); d < radiusKm {
			hits = append(hits, hit{station: s, dist: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist == hits[j].dist {
			return hits[i].station.Code < hits[j].station.Code
		}
		return hits[i].dist < hits[j].dist
	})
	return lo.Map(hits, func(h hit, _ int) models.Station { return h.station }), nil
}

func (n *Network) ConnectedStations(ctx context.Context, station models.Station) ([]models.Station, error) {
	seen := make(map[string]bool)
	var out []models.Station
	for _, line := range n.byStop[station.Code] {
		for _, code := range n.lines[line] {
			s, ok := n.stations[code]
			if !ok || seen[code] {
				continue
			}
			seen[code] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// SaveTo persists the network into a station repository
func (n *Network) SaveTo(ctx context.Context, repo database.StationRepository) error {
	stations := lo.Values(n.stations)
	sort.Slice(stations, func(i, j int) bool { return stations[i].Code < stations[j].Code })
	if err := repo.UpsertStations(ctx, stations); err != nil {
		return err
	}
	for _, line := range lo.Keys(n.lines) {
		if err := repo.AddLineStops(ctx, line, n.lines[line]); err != nil {
			return err
		}
	}
	log.Infof("[RAIL] Saved network: stations=%d lines=%d", len(n.stations), len(n.lines))
	return nil
}

// LoadStations decodes a JSON array of stations
func LoadStations(r io.Reader) ([]models.Station, error) {
	var stations []models.Station
	if err := json.NewDecoder(r).Decode(&stations); err != nil {
		return nil, fmt.Errorf("failed to decode stations: %w", err)
	}
	for i, s := range stations {
		if s.Code == "" {
			return nil, fmt.Errorf("station %d has no code", i)
		}
	}
	return stations, nil
}

// LoadStopTimes reads a GTFS stop_times.txt feed and returns the stops of each
// line. The line is the trip_id prefix before the first ':' and the station
// code is the stop_id suffix after the last '-'. Rows whose last column
// contains a blacklisted marker are skipped.
func LoadStopTimes(r io.Reader, blacklist []string) (map[string][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read stop_times header: %w", err)
	}
	tripCol := lo.IndexOf(header, "trip_id")
	stopCol := lo.IndexOf(header, "stop_id")
	if tripCol < 0 || stopCol < 0 {
		return nil, errors.New("stop_times header lacks trip_id or stop_id")
	}

	lines := make(map[string][]string)
	seen := make(map[string]bool)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read stop_times: %w", err)
		}
		if len(row) <= tripCol || len(row) <= stopCol {
			continue
		}
		last := row[len(row)-1]
		if lo.SomeBy(blacklist, func(b string) bool { return strings.Contains(last, b) }) {
			continue
		}

		line, _, _ := strings.Cut(row[tripCol], ":")
		stop := row[stopCol]
		code := stop[strings.LastIndex(stop, "-")+1:]
		if seen[line+"|"+code] {
			continue
		}
		seen[line+"|"+code] = true
		lines[line] = append(lines[line], code)
	}
	return lines, nil
}
