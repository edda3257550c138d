package covoit

import (
	"errors"
	"fmt"
	"time"

	"trip-planner/internal/models"
)

// Config holds the engine tunables
type Config struct {
	Key                 models.CostKey
	TimeBudget          time.Duration
	SpanCostCoefficient float64
	MaxRouteCost        float64

	// DetourThreshold is the share of a driver's route above which a passenger is sent by rail
	DetourThreshold float64
	StationRadiusKm float64

	DriverProximityWeight float64
	RailAccessWeight      float64
	TrainSpeedKmh         float64

	FuelCostPerKm float64
}

// DefaultConfig returns the stock engine settings
func DefaultConfig() Config {
	return Config{
		Key:                   models.KeyDuration,
		TimeBudget:            90 * time.Second,
		SpanCostCoefficient:   100,
		MaxRouteCost:          35 * 3600,
		DetourThreshold:       0.3,
		StationRadiusKm:       30,
		DriverProximityWeight: 1.0,
		RailAccessWeight:      0.5,
		TrainSpeedKmh:         80,
		FuelCostPerKm:         0.12,
	}
}

// Validate reports every invalid field
func (c Config) Validate() error {
	var errs []error
	if c.Key != models.KeyDuration && c.Key != models.KeyDistance {
		errs = append(errs, fmt.Errorf("unknown optimization key %q", c.Key))
	}
	if c.TimeBudget < 0 {
		errs = append(errs, errors.New("time budget must not be negative"))
	}
	if c.SpanCostCoefficient < 0 {
		errs = append(errs, errors.New("span cost coefficient must not be negative"))
	}
	if c.MaxRouteCost < 0 {
		errs = append(errs, errors.New("route cost ceiling must not be negative"))
	}
	if c.DetourThreshold <= 0 {
		errs = append(errs, errors.New("detour threshold must be positive"))
	}
	if c.StationRadiusKm <= 0 {
		errs = append(errs, errors.New("station radius must be positive"))
	}
	if c.TrainSpeedKmh <= 0 {
		errs = append(errs, errors.New("train speed must be positive"))
	}
	if c.FuelCostPerKm < 0 {
		errs = append(errs, errors.New("fuel cost must not be negative"))
	}
	return errors.Join(errs...)
}
