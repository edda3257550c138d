package routing

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"trip-planner/internal/models"
)

// symmetricMatrix builds a duration matrix from undirected edges
func symmetricMatrix(nodes []string, edges map[[2]string]float64) models.Matrix {
	m := make(models.Matrix)
	for _, from := range nodes {
		m[from] = make(map[string]models.MatrixEntry)
		for _, to := range nodes {
			if from == to {
				m[from][to] = models.MatrixEntry{}
				continue
			}
			d, ok := edges[[2]string{from, to}]
			if !ok {
				d = edges[[2]string{to, from}]
			}
			m[from][to] = models.MatrixEntry{Duration: d, Distance: d * 10}
		}
	}
	return m
}

func scenarioMatrix() models.Matrix {
	return symmetricMatrix([]string{"A", "B", "C", "D"}, map[[2]string]float64{
		{"A", "B"}: 600,
		{"A", "C"}: 900,
		{"B", "C"}: 300,
		{"B", "D"}: 1200,
		{"C", "D"}: 1500,
		{"A", "D"}: 2000,
	})
}

func TestSolve_SingleDriverTakesEveryone(t *testing.T) {
	problem := &Problem{
		Matrix:   scenarioMatrix(),
		Key:      models.KeyDuration,
		Vehicles: []Vehicle{{Name: "A", Seats: 3}},
		Stops:    []string{"B", "C"},
		End:      "D",
	}

	sol, err := Solve(problem, Params{TimeBudget: time.Second, SpanCostCoefficient: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	route := sol.Routes["A"]
	if len(route) != 2 {
		t.Fatalf("expected both passengers on A, got %v", route)
	}
	// A-B-C-D and A-C-B-D both cost 2400
	if sol.RouteCosts["A"] != 2400 {
		t.Errorf("expected route cost 2400, got %f", sol.RouteCosts["A"])
	}
}

func TestSolve_UsesDistanceKey(t *testing.T) {
	problem := &Problem{
		Matrix:   scenarioMatrix(),
		Key:      models.KeyDistance,
		Vehicles: []Vehicle{{Name: "A", Seats: 3}},
		Stops:    []string{"B"},
		End:      "D",
	}

	sol, err := Solve(problem, Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.RouteCosts["A"] != 18000 {
		t.Errorf("expected distance cost 18000, got %f", sol.RouteCosts["A"])
	}
}

func balancedProblem() *Problem {
	nodes := []string{"X", "Y", "P", "Q", "END"}
	edges := map[[2]string]float64{}
	for _, a := range []string{"X", "Y", "P", "Q"} {
		for _, b := range []string{"X", "Y", "P", "Q"} {
			if a != b {
				edges[[2]string{a, b}] = 100
			}
		}
		edges[[2]string{a, "END"}] = 1000
	}
	return &Problem{
		Matrix:   symmetricMatrix(nodes, edges),
		Key:      models.KeyDuration,
		Vehicles: []Vehicle{{Name: "X", Seats: 3}, {Name: "Y", Seats: 3}},
		Stops:    []string{"P", "Q"},
		End:      "END",
	}
}

func TestSolve_SpanCostBalancesRoutes(t *testing.T) {
	sol, err := Solve(balancedProblem(), Params{TimeBudget: time.Second, SpanCostCoefficient: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sol.Routes["X"]) != 1 || len(sol.Routes["Y"]) != 1 {
		t.Errorf("expected one passenger per driver, got X=%v Y=%v", sol.Routes["X"], sol.Routes["Y"])
	}
}

func TestSolve_RespectsSeats(t *testing.T) {
	problem := balancedProblem()
	problem.Vehicles = []Vehicle{{Name: "X", Seats: 1}, {Name: "Y", Seats: 1}}

	sol, err := Solve(problem, Params{TimeBudget: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for name, route := range sol.Routes {
		if len(route) > 1 {
			t.Errorf("vehicle %s exceeds its seats: %v", name, route)
		}
	}
	if len(sol.Routes["X"])+len(sol.Routes["Y"]) != 2 {
		t.Errorf("expected every stop assigned, got %v", sol.Routes)
	}
}

func TestSolve_NotEnoughSeats(t *testing.T) {
	problem := balancedProblem()
	problem.Vehicles = []Vehicle{{Name: "X", Seats: 1}}
	problem.Stops = []string{"P", "Q", "Y"}

	_, err := Solve(problem, Params{TimeBudget: time.Second})
	if !errors.Is(err, ErrNoSolution) {
		t.Fatalf("expected ErrNoSolution, got %v", err)
	}

	var routingErr *ErrRoutingFailed
	if !errors.As(err, &routingErr) {
		t.Fatalf("expected ErrRoutingFailed, got %T", err)
	}
	if routingErr.UnassignedCount != 2 || routingErr.TotalSeats != 1 {
		t.Errorf("unexpected failure details: %+v", routingErr)
	}
}

func TestSolve_RouteCeiling(t *testing.T) {
	problem := &Problem{
		Matrix:   scenarioMatrix(),
		Key:      models.KeyDuration,
		Vehicles: []Vehicle{{Name: "A", Seats: 3}},
		Stops:    []string{"C"},
		End:      "D",
	}

	// A-C-D costs 2400
	_, err := Solve(problem, Params{MaxRouteCost: 2000})
	if !errors.Is(err, ErrNoSolution) {
		t.Fatalf("expected ErrNoSolution, got %v", err)
	}

	if _, err := Solve(problem, Params{MaxRouteCost: 2400}); err != nil {
		t.Fatalf("ceiling equal to the route cost should be feasible: %v", err)
	}
}

func TestSolve_MissingEdge(t *testing.T) {
	m := scenarioMatrix()
	delete(m["B"], "D")

	_, err := Solve(&Problem{
		Matrix:   m,
		Key:      models.KeyDuration,
		Vehicles: []Vehicle{{Name: "A", Seats: 3}},
		Stops:    []string{"B"},
		End:      "D",
	}, Params{})
	if err == nil {
		t.Fatal("expected an error for a missing edge")
	}
	if errors.Is(err, ErrNoSolution) {
		t.Errorf("a malformed matrix is not an infeasible problem: %v", err)
	}
}

func TestSolve_NoStops(t *testing.T) {
	sol, err := Solve(&Problem{
		Matrix:   scenarioMatrix(),
		Key:      models.KeyDuration,
		Vehicles: []Vehicle{{Name: "A", Seats: 3}},
		End:      "D",
	}, Params{TimeBudget: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route, ok := sol.Routes["A"]; !ok || len(route) != 0 {
		t.Errorf("expected an empty route for A, got %v", route)
	}
	if sol.RouteCosts["A"] != 2000 {
		t.Errorf("expected direct cost 2000, got %f", sol.RouteCosts["A"])
	}
}

func TestSolve_LocalSearchNeverWorsens(t *testing.T) {
	// Asymmetric grid of stops served by three drivers
	nodes := []string{"END"}
	var stops []string
	for i := 0; i < 3; i++ {
		nodes = append(nodes, fmt.Sprintf("drv%d", i))
	}
	for i := 0; i < 8; i++ {
		stops = append(stops, fmt.Sprintf("p%d", i))
	}
	nodes = append(nodes, stops...)

	m := make(models.Matrix)
	for i, from := range nodes {
		m[from] = make(map[string]models.MatrixEntry)
		for j, to := range nodes {
			if i == j {
				m[from][to] = models.MatrixEntry{}
				continue
			}
			d := float64((i*7+j*13)%23+1) * 100
			m[from][to] = models.MatrixEntry{Duration: d}
		}
	}

	problem := &Problem{
		Matrix:   m,
		Key:      models.KeyDuration,
		Vehicles: []Vehicle{{Name: "drv0", Seats: 3}, {Name: "drv1", Seats: 3}, {Name: "drv2", Seats: 3}},
		Stops:    stops,
		End:      "END",
	}

	constructed, err := Solve(problem, Params{SpanCostCoefficient: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	searched, err := Solve(problem, Params{SpanCostCoefficient: 1, TimeBudget: 2 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if searched.Objective > constructed.Objective+improvementEpsilon {
		t.Errorf("local search worsened the objective: %f > %f", searched.Objective, constructed.Objective)
	}

	assigned := 0
	for name, route := range searched.Routes {
		if len(route) > 3 {
			t.Errorf("vehicle %s exceeds its seats: %v", name, route)
		}
		assigned += len(route)
	}
	if assigned != len(stops) {
		t.Errorf("expected %d stops assigned, got %d", len(stops), assigned)
	}
}
