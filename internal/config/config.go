// Package config loads the planner settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"trip-planner/internal/covoit"
	"trip-planner/internal/models"
	"trip-planner/internal/possibility"
)

// Cache backends for the pairwise distance cache
const (
	CacheFile   = "file"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// Config captures every tunable of the planner process.
// Values come from environment variables, optionally read from a .env file.
type Config struct {
	OSRMURL      string
	NominatimURL string

	CacheBackend  string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	RedisTTL      time.Duration

	LogLevel    string
	LogFile     string
	MetricsAddr string

	Planner possibility.Options
	Engine  covoit.Config
}

func defaultConfig() Config {
	return Config{
		OSRMURL:      "https://router.project-osrm.org",
		NominatimURL: "https://nominatim.openstreetmap.org",
		CacheBackend: CacheFile,
		RedisPrefix:  "trip-planner:distance:",
		RedisTTL:     30 * 24 * time.Hour,
		LogLevel:     "info",
		Planner:      possibility.DefaultOptions(),
		Engine:       covoit.DefaultConfig(),
	}
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, relying on environment variables")
	}

	cfg := defaultConfig()
	var errs []error

	setStringFromEnv(&cfg.OSRMURL, "OSRM_URL")
	setStringFromEnv(&cfg.NominatimURL, "NOMINATIM_URL")

	setStringFromEnv(&cfg.CacheBackend, "CACHE_BACKEND")
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)
	setStringFromEnv(&cfg.SQLitePath, "SQLITE_PATH")
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisPrefix, "REDIS_PREFIX")
	setDurationFromEnv(&cfg.RedisTTL, "REDIS_TTL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	setStringFromEnv(&cfg.LogFile, "LOG_FILE")
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")

	setIntFromEnv(&cfg.Planner.Nights, "PLANNER_NIGHTS", &errs)
	setFloatFromEnv(&cfg.Planner.MinPricePerPersonNight, "PLANNER_MIN_PRICE", &errs)
	setFloatFromEnv(&cfg.Planner.MaxPersonsPerBedroom, "PLANNER_MAX_PER_BEDROOM", &errs)
	setIntFromEnv(&cfg.Planner.Concurrency, "PLANNER_CONCURRENCY", &errs)
	setIntFromEnv(&cfg.Planner.PriceFilterCount, "PLANNER_PRICE_FILTER", &errs)
	setIntFromEnv(&cfg.Planner.OutputCount, "PLANNER_OUTPUT", &errs)

	if v := os.Getenv("ENGINE_KEY"); v != "" {
		cfg.Engine.Key = models.CostKey(strings.ToLower(v))
	}
	setDurationFromEnv(&cfg.Engine.TimeBudget, "ENGINE_TIME_BUDGET", &errs)
	setFloatFromEnv(&cfg.Engine.SpanCostCoefficient, "ENGINE_SPAN_COEFFICIENT", &errs)
	setFloatFromEnv(&cfg.Engine.MaxRouteCost, "ENGINE_MAX_ROUTE_COST", &errs)
	setFloatFromEnv(&cfg.Engine.DetourThreshold, "ENGINE_DETOUR_THRESHOLD", &errs)
	setFloatFromEnv(&cfg.Engine.StationRadiusKm, "ENGINE_STATION_RADIUS_KM", &errs)
	setFloatFromEnv(&cfg.Engine.DriverProximityWeight, "ENGINE_DRIVER_WEIGHT", &errs)
	setFloatFromEnv(&cfg.Engine.RailAccessWeight, "ENGINE_RAIL_ACCESS_WEIGHT", &errs)
	setFloatFromEnv(&cfg.Engine.TrainSpeedKmh, "ENGINE_TRAIN_SPEED_KMH", &errs)
	setFloatFromEnv(&cfg.Engine.FuelCostPerKm, "ENGINE_FUEL_COST_PER_KM", &errs)

	switch cfg.CacheBackend {
	case CacheFile, CacheSQLite:
	case CacheRedis:
		if cfg.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis cache backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend))
	}
	if cfg.Planner.Nights <= 0 {
		errs = append(errs, errors.New("PLANNER_NIGHTS must be > 0"))
	}
	if cfg.Planner.Concurrency <= 0 {
		errs = append(errs, errors.New("PLANNER_CONCURRENCY must be > 0"))
	}
	if cfg.Planner.PriceFilterCount <= 0 || cfg.Planner.OutputCount <= 0 {
		errs = append(errs, errors.New("PLANNER_PRICE_FILTER and PLANNER_OUTPUT must be > 0"))
	}
	if err := cfg.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}
