package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"trip-planner/internal/models"
)

// Server exposes metrics and the latest candidate reports over HTTP
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string

	mu      sync.RWMutex
	reports []models.CandidateReport
}

// Config holds server configuration
type Config struct {
	Addr string // e.g., "127.0.0.1:9090" or "127.0.0.1:0" for random port
}

// New creates the server (does not start it)
func New(cfg Config) *Server {
	s := &Server{addr: cfg.Addr}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /candidates", s.handleCandidates)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// SetReports replaces the reports served on /candidates
func (s *Server) SetReports(reports []models.CandidateReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append([]models.CandidateReport{}, reports...)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	reports := s.reports
	s.mu.RUnlock()
	if reports == nil {
		reports = []models.CandidateReport{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reports); err != nil {
		log.Errorf("[ERROR] Failed to encode candidates: %v", err)
	}
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Infof("Starting metrics server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Errorf("[ERROR] Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		log.Debugf("%s %s %d %v", r.Method, r.URL.Path, lrw.statusCode, time.Since(start))
	})
}
