package routing

import (
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

const improvementEpsilon = 1e-9

// Solve assigns stops to vehicles with cheapest insertion, then improves the
// assignment with relocate, swap and 2-opt moves until no move helps or the
// time budget runs out. Solve keeps no state between calls. Results are
// deterministic for a given input unless the budget interrupts the search.
func Solve(p *Problem, params Params) (*Solution, error) {
	start := time.Now()
	s, err := newSolver(p, params)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"vehicles": len(p.Vehicles),
		"stops":    len(p.Stops),
		"key":      p.Key,
	}).Debug("[SOLVER] Starting")

	if err := s.construct(); err != nil {
		return nil, err
	}
	log.Debugf("[TIMING] Construction: %v objective=%.1f", time.Since(start), s.objective(s.routeCost))

	improved := 0
	if params.TimeBudget > 0 {
		s.deadline = start.Add(params.TimeBudget)
		improved = s.localSearch()
	}

	sol := &Solution{
		Routes:     make(map[string][]string, len(p.Vehicles)),
		RouteCosts: make(map[string]float64, len(p.Vehicles)),
		Objective:  s.objective(s.routeCost),
		Improved:   improved,
	}
	for v, veh := range p.Vehicles {
		names := make([]string, len(s.routes[v]))
		for i, n := range s.routes[v] {
			names[i] = s.names[n]
		}
		sol.Routes[veh.Name] = names
		sol.RouteCosts[veh.Name] = s.routeCost[v]
	}

	log.Debugf("[TIMING] Solve: %v objective=%.1f moves=%d", time.Since(start), sol.Objective, improved)
	return sol, nil
}

type solver struct {
	names    []string
	cost     [][]float64
	starts   []int
	seats    []int
	stops    []int
	end      int
	params   Params
	deadline time.Time

	routes    [][]int
	routeCost []float64
}

func newSolver(p *Problem, params Params) (*solver, error) {
	s := &solver{params: params}
	index := make(map[string]int)
	add := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		index[name] = len(s.names)
		s.names = append(s.names, name)
		return index[name]
	}

	for _, v := range p.Vehicles {
		if _, dup := index[v.Name]; dup {
			return nil, fmt.Errorf("vehicle %s listed twice", v.Name)
		}
		s.starts = append(s.starts, add(v.Name))
		s.seats = append(s.seats, max(v.Seats, 0))
	}
	for _, name := range p.Stops {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("stop %s listed twice or as a vehicle", name)
		}
		s.stops = append(s.stops, add(name))
	}
	s.end = add(p.End)

	s.cost = make([][]float64, len(s.names))
	for i, from := range s.names {
		s.cost[i] = make([]float64, len(s.names))
		for j, to := range s.names {
			if i == j {
				continue
			}
			e, ok := p.Matrix.Edge(from, to)
			if !ok {
				return nil, fmt.Errorf("matrix has no edge %s -> %s", from, to)
			}
			s.cost[i][j] = e.Value(p.Key)
		}
	}

	s.routes = make([][]int, len(s.starts))
	s.routeCost = make([]float64, len(s.starts))
	for v := range s.starts {
		s.routes[v] = []int{}
		s.routeCost[v] = s.costOf(v, nil)
	}
	return s, nil
}

func (s *solver) costOf(v int, stops []int) float64 {
	prev := s.starts[v]
	total := 0.0
	for _, n := range stops {
		total += s.cost[prev][n]
		prev = n
	}
	return total + s.cost[prev][s.end]
}

func (s *solver) feasible(v int, stops []int, cost float64) bool {
	if len(stops) > s.seats[v] {
		return false
	}
	// The ceiling binds only routes that carry someone
	return len(stops) == 0 || s.params.MaxRouteCost <= 0 || cost <= s.params.MaxRouteCost
}

func (s *solver) objective(costs []float64) float64 {
	if len(costs) == 0 {
		return 0
	}
	sum, hi, lo := 0.0, math.Inf(-1), math.Inf(1)
	for _, c := range costs {
		sum += c
		hi = math.Max(hi, c)
		lo = math.Min(lo, c)
	}
	return sum + s.params.SpanCostCoefficient*(hi-lo)
}

// evaluate returns the objective after replacing the stops of vehicles a and
// (when b >= 0) b, or false if the change breaks a constraint.
func (s *solver) evaluate(a int, stopsA []int, b int, stopsB []int) (float64, bool) {
	costA := s.costOf(a, stopsA)
	if !s.feasible(a, stopsA, costA) {
		return 0, false
	}
	costs := append([]float64(nil), s.routeCost...)
	costs[a] = costA
	if b >= 0 {
		costB := s.costOf(b, stopsB)
		if !s.feasible(b, stopsB, costB) {
			return 0, false
		}
		costs[b] = costB
	}
	return s.objective(costs), true
}

func (s *solver) apply(a int, stopsA []int, b int, stopsB []int) {
	s.routes[a] = stopsA
	s.routeCost[a] = s.costOf(a, stopsA)
	if b >= 0 {
		s.routes[b] = stopsB
		s.routeCost[b] = s.costOf(b, stopsB)
	}
}

// construct inserts, one at a time, the stop whose best insertion raises the objective least
func (s *solver) construct() error {
	unassigned := append([]int(nil), s.stops...)

	for len(unassigned) > 0 {
		current := s.objective(s.routeCost)
		bestDelta := math.Inf(1)
		bestIdx, bestVehicle := -1, -1
		var bestStops []int

		for idx, n := range unassigned {
			for v := range s.starts {
				if len(s.routes[v]) >= s.seats[v] {
					continue
				}
				for pos := 0; pos <= len(s.routes[v]); pos++ {
					candidate := insertAt(s.routes[v], n, pos)
					obj, ok := s.evaluate(v, candidate, -1, nil)
					if !ok {
						continue
					}
					if delta := obj - current; delta < bestDelta {
						bestDelta, bestIdx, bestVehicle, bestStops = delta, idx, v, candidate
					}
				}
			}
		}

		if bestIdx < 0 {
			totalSeats := 0
			for _, seats := range s.seats {
				totalSeats += seats
			}
			log.Warnf("[SOLVER] Cannot place %d of %d stops (seats=%d)", len(unassigned), len(s.stops), totalSeats)
			return &ErrRoutingFailed{
				Reason:          "cannot assign all stops",
				UnassignedCount: len(unassigned),
				TotalSeats:      totalSeats,
				TotalStops:      len(s.stops),
			}
		}

		s.apply(bestVehicle, bestStops, -1, nil)
		unassigned = removeAt(unassigned, bestIdx)
	}
	return nil
}

func (s *solver) expired() bool {
	return time.Now().After(s.deadline)
}

// localSearch applies first-improvement moves until none helps or the deadline passes
func (s *solver) localSearch() int {
	moves := 0
	for !s.expired() {
		if s.relocate() || s.swap() || s.twoOpt() {
			moves++
			continue
		}
		break
	}
	return moves
}

// relocate moves a single stop to another position, in the same or another route
func (s *solver) relocate() bool {
	current := s.objective(s.routeCost)
	for a := range s.routes {
		for i := range s.routes[a] {
			n := s.routes[a][i]
			without := removeAt(s.routes[a], i)
			for b := range s.routes {
				if s.expired() {
					return false
				}
				if b == a {
					for j := 0; j <= len(without); j++ {
						if j == i {
							continue
						}
						candidate := insertAt(without, n, j)
						if obj, ok := s.evaluate(a, candidate, -1, nil); ok && obj < current-improvementEpsilon {
							s.apply(a, candidate, -1, nil)
							return true
						}
					}
					continue
				}
				if len(s.routes[b]) >= s.seats[b] {
					continue
				}
				for j := 0; j <= len(s.routes[b]); j++ {
					candidate := insertAt(s.routes[b], n, j)
					if obj, ok := s.evaluate(a, without, b, candidate); ok && obj < current-improvementEpsilon {
						s.apply(a, without, b, candidate)
						return true
					}
				}
			}
		}
	}
	return false
}

// swap exchanges two stops of different routes
func (s *solver) swap() bool {
	current := s.objective(s.routeCost)
	for a := range s.routes {
		for b := a + 1; b < len(s.routes); b++ {
			for i := range s.routes[a] {
				for j := range s.routes[b] {
					if s.expired() {
						return false
					}
					stopsA := append([]int(nil), s.routes[a]...)
					stopsB := append([]int(nil), s.routes[b]...)
					stopsA[i], stopsB[j] = stopsB[j], stopsA[i]
					if obj, ok := s.evaluate(a, stopsA, b, stopsB); ok && obj < current-improvementEpsilon {
						s.apply(a, stopsA, b, stopsB)
						return true
					}
				}
			}
		}
	}
	return false
}

// twoOpt reverses a segment of a route. Costs are recomputed over the whole
// route since the matrix need not be symmetric.
func (s *solver) twoOpt() bool {
	current := s.objective(s.routeCost)
	for a := range s.routes {
		stops := s.routes[a]
		for i := 0; i < len(stops)-1; i++ {
			for j := i + 1; j < len(stops); j++ {
				if s.expired() {
					return false
				}
				candidate := append([]int(nil), stops...)
				reverse(candidate, i, j)
				if obj, ok := s.evaluate(a, candidate, -1, nil); ok && obj < current-improvementEpsilon {
					s.apply(a, candidate, -1, nil)
					return true
				}
			}
		}
	}
	return false
}

func insertAt(stops []int, n int, pos int) []int {
	result := make([]int, len(stops)+1)
	copy(result[:pos], stops[:pos])
	result[pos] = n
	copy(result[pos+1:], stops[pos:])
	return result
}

func removeAt(stops []int, pos int) []int {
	result := make([]int, len(stops)-1)
	copy(result[:pos], stops[:pos])
	copy(result[pos:], stops[pos+1:])
	return result
}

func reverse(stops []int, i, j int) {
	for i < j {
		stops[i], stops[j] = stops[j], stops[i]
		i++
		j--
	}
}
