package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatrixFetches   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_planner", Name: "matrix_fetches_total", Help: "Distance matrix fetches from the provider"})
	MatrixCacheHits = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_planner", Name: "matrix_cache_hits_total", Help: "Distance matrix requests served from cache"})
	RailConversions = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_planner", Name: "rail_conversions_total", Help: "Passengers converted to rail"})

	SolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trip_planner",
		Name:      "solve_duration_seconds",
		Help:      "Wall time spent in the capacitated routing solver",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
	})
	SolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_planner", Name: "solves_total", Help: "Solver invocations by result"},
		[]string{"result"},
	)
	RouteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_planner", Name: "route_requests_total", Help: "Driver route requests by result"},
		[]string{"result"},
	)
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_planner", Name: "candidates_total", Help: "Processed candidates by outcome"},
		[]string{"outcome"},
	)
)
