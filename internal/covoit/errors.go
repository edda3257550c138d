package covoit

import "errors"

var (
	// ErrPassengerNotAssigned is returned when a detour is asked for a passenger the driver does not carry
	ErrPassengerNotAssigned = errors.New("passenger not assigned to driver")
	ErrUnknownTraveler      = errors.New("unknown traveler")
	ErrNotDriver            = errors.New("traveler is not a driver")
	// ErrNotSolved is returned by matrix-based queries before the first successful solve
	ErrNotSolved = errors.New("no solution computed yet")
)
