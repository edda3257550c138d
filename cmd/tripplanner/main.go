package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"trip-planner/internal/config"
	"trip-planner/internal/database"
	"trip-planner/internal/distance"
	"trip-planner/internal/geocoding"
	"trip-planner/internal/logging"
	"trip-planner/internal/models"
	"trip-planner/internal/possibility"
	"trip-planner/internal/rail"
	"trip-planner/internal/server"
	"trip-planner/internal/sqlite"
)

type flags struct {
	input     string
	output    string
	stations  string
	stopTimes string
	blacklist string
	resume    bool
	recompute bool
	serve     bool
}

func main() {
	var f flags
	flag.StringVar(&f.input, "input", "trip.json", "trip input JSON (participants and gites)")
	flag.StringVar(&f.output, "output", "", "report output file (default stdout)")
	flag.StringVar(&f.stations, "stations", "", "stations JSON to import into the rail network")
	flag.StringVar(&f.stopTimes, "stop-times", "", "GTFS stop_times.txt defining the rail lines")
	flag.StringVar(&f.blacklist, "blacklist", "", "comma separated stop_times markers to skip")
	flag.BoolVar(&f.resume, "resume", false, "resume from saved candidate snapshots")
	flag.BoolVar(&f.recompute, "recompute", false, "recompute resumed candidates from scratch")
	flag.BoolVar(&f.serve, "serve", false, "keep serving metrics and reports until interrupted")
	flag.Parse()

	if err := run(f); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(f flags) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logCloser, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input, err := readInput(f.input)
	if err != nil {
		return err
	}

	dbPath := cfg.SQLitePath
	if dbPath == "" {
		if dbPath, err = database.GetDefaultDBPath(); err != nil {
			return err
		}
	}
	log.Info("Initializing data store...")
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize data store: %w", err)
	}
	defer store.Close()

	distanceCache, closeCache, err := openDistanceCache(cfg, store)
	if err != nil {
		return fmt.Errorf("failed to initialize distance cache: %w", err)
	}
	defer closeCache()

	if err := importNetwork(ctx, f, store.Stations()); err != nil {
		return err
	}

	geocoder := geocoding.NewNominatimGeocoder(cfg.NominatimURL, time.Second)
	defer geocoder.Stop()
	if err := geocoding.LocateParticipants(ctx, geocoder, input.Participants, 3); err != nil {
		return err
	}

	deps := possibility.Deps{
		Matrix:   distance.NewOSRMCalculator(cfg.OSRMURL, distanceCache),
		Routes:   distance.NewOSRMRouter(cfg.OSRMURL, cfg.Engine.FuelCostPerKm),
		Stations: rail.NewStoreLocator(store.Stations()),
	}
	planner := possibility.NewPlanner(input.Participants, deps, cfg.Engine, cfg.Planner)

	if f.resume {
		restored, err := loadSnapshots(ctx, store.Snapshots(), deps, cfg)
		if err != nil {
			return err
		}
		planner.AddCandidates(restored...)
		planner.RefreshParticipants(input.Participants)
		if f.recompute {
			planner.ResetCandidates()
		}
	} else {
		if err := geocoding.LocateGites(ctx, geocoder, input.Gites, 3); err != nil {
			return err
		}
		planner.SetGites(input.Gites)
	}

	var srv *server.Server
	if cfg.MetricsAddr != "" {
		srv = server.New(server.Config{Addr: cfg.MetricsAddr})
		if _, err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Errorf("[ERROR] Server shutdown: %v", err)
			}
		}()
	}

	ranked, err := planner.Rank(ctx)
	if err != nil {
		return err
	}

	for _, c := range planner.Candidates() {
		if err := c.Save(ctx, store.Snapshots()); err != nil {
			log.WithField("gite", c.Gite().Name).Errorf("[ERROR] Snapshot not saved: %v", err)
		}
	}

	out, err := buildOutput(ranked, planner.Rejected())
	if err != nil {
		return err
	}
	if err := writeOutput(f.output, out); err != nil {
		return err
	}

	if srv != nil {
		srv.SetReports(out.Candidates)
		if f.serve {
			log.Info("Serving reports, press Ctrl+C to stop")
			<-ctx.Done()
		}
	}
	return nil
}

// openDistanceCache returns the configured pairwise distance cache and its close function
func openDistanceCache(cfg config.Config, store *sqlite.Store) (database.DistanceCacheRepository, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheSQLite:
		return store.DistanceCache(), func() {}, nil
	case config.CacheRedis:
		c := database.NewRedisDistanceCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix, cfg.RedisTTL)
		return c, func() { c.Close() }, nil
	default:
		path, err := database.GetDistanceCachePath()
		if err != nil {
			return nil, nil, err
		}
		c, err := database.NewFileDistanceCache(path)
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	}
}

func loadSnapshots(ctx context.Context, repo database.SnapshotRepository, deps possibility.Deps, cfg config.Config) ([]*possibility.Possibility, error) {
	stored, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*possibility.Possibility, 0, len(stored))
	for _, s := range stored {
		p, err := possibility.Load(ctx, repo, s.ID, deps, cfg.Engine)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	log.Infof("[PLANNER] Resumed %d candidates", len(out))
	return out, nil
}

type output struct {
	Candidates []models.CandidateReport `json:"candidates"`
	Rejected   []models.CandidateReport `json:"rejected"`
}

func buildOutput(ranked, rejected []*possibility.Possibility) (*output, error) {
	out := &output{
		Candidates: []models.CandidateReport{},
		Rejected:   []models.CandidateReport{},
	}
	for _, c := range ranked {
		r, err := c.Report()
		if err != nil {
			return nil, fmt.Errorf("report of %s: %w", c.Gite().Name, err)
		}
		out.Candidates = append(out.Candidates, *r)
	}
	for _, c := range rejected {
		r, err := c.Report()
		if err != nil {
			return nil, fmt.Errorf("report of %s: %w", c.Gite().Name, err)
		}
		out.Rejected = append(out.Rejected, *r)
	}
	return out, nil
}

func writeOutput(path string, out *output) error {
	var w io.Writer = os.Stdout
	if path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer file.Close()
		w = file
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
