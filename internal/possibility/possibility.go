// Package possibility pairs a gite with the trip participants and drives the
// assignment engine through its stages for that destination.
package possibility

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"trip-planner/internal/covoit"
	"trip-planner/internal/distance"
	"trip-planner/internal/matrix"
	"trip-planner/internal/models"
	"trip-planner/internal/observability"
	"trip-planner/internal/rail"
)

// ErrCandidateInvalid is returned by operations on a candidate found unroutable
var ErrCandidateInvalid = errors.New("candidate is invalid")

// Deps are the collaborators shared by every candidate. Matrix caches are not
// shared: each candidate builds its own.
type Deps struct {
	Matrix   distance.MatrixProvider
	Routes   distance.RouteProvider
	Stations rail.Locator
}

// Possibility is one gite paired with the full traveler set. It is safe for
// concurrent use; work on a single candidate is serialized.
type Possibility struct {
	mu sync.Mutex

	id           string
	gite         models.Gite
	participants []models.Participant
	deps         Deps
	cfg          covoit.Config

	cache   *matrix.Cache
	covoits models.Covoits
	calc    *covoit.Calculator

	invalid  bool
	rejected bool
	number   int
	lastErr  error
}

// New creates a candidate for a gite
func New(gite models.Gite, participants []models.Participant, deps Deps, cfg covoit.Config) *Possibility {
	return &Possibility{
		id:           uuid.NewString(),
		gite:         gite,
		participants: append([]models.Participant{}, participants...),
		deps:         deps,
		cfg:          cfg,
		cache:        matrix.NewCache(deps.Matrix),
	}
}

func (p *Possibility) ID() string        { return p.id }
func (p *Possibility) Gite() models.Gite { return p.gite }

// Number is the display number, zero while the candidate was never shown
func (p *Possibility) Number() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.number
}

// SetNumber marks the candidate as shown under a display number
func (p *Possibility) SetNumber(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.number = n
}

// Shown reports whether the candidate already has a display number
func (p *Possibility) Shown() bool {
	return p.Number() > 0
}

func (p *Possibility) Invalid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invalid
}

func (p *Possibility) Rejected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rejected
}

// Reject excludes the candidate from ranking
func (p *Possibility) Reject() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected = true
}

// Err is the error that invalidated the candidate, if any
func (p *Possibility) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Stage is the progress of the assignment engine
func (p *Possibility) Stage() covoit.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calc == nil {
		return covoit.StageBuilt
	}
	return p.calc.Stage()
}

// Covoits returns the traveler set, building it on first use
func (p *Possibility) Covoits() models.Covoits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.covoitsLocked()
}

func (p *Possibility) covoitsLocked() models.Covoits {
	if p.covoits == nil {
		p.covoits = make(models.Covoits, len(p.participants))
		for _, part := range p.participants {
			p.covoits[part.Name] = models.NewCovoit(part, p.gite.Location)
		}
	}
	return p.covoits
}

func (p *Possibility) calculatorLocked() *covoit.Calculator {
	if p.calc == nil {
		p.calc = covoit.New(p.covoitsLocked(), p.gite.Location, covoit.Deps{
			Matrix:   p.cache,
			Routes:   p.deps.Routes,
			Stations: p.deps.Stations,
		}, p.cfg)
	}
	return p.calc
}

// SetParticipants replaces the traveler source. A changed set drops the
// traveler set and every computed stage.
func (p *Possibility) SetParticipants(participants []models.Participant) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.invalid {
		return ErrCandidateInvalid
	}
	if sameParticipants(p.participants, participants) {
		return nil
	}
	p.participants = append([]models.Participant{}, participants...)
	p.covoits = nil
	p.calc = nil
	log.WithField("gite", p.gite.Name).Debug("[PLANNER] Participants changed, candidate reset")
	return nil
}

// Reset sends the candidate back to its first stage, keeping its participants
// and matrix cache. Invalid candidates stay invalid.
func (p *Possibility) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.invalid {
		return ErrCandidateInvalid
	}
	if p.calc != nil {
		p.calc.Invalidate()
	}
	return nil
}

func sameParticipants(a, b []models.Participant) bool {
	if len(a) != len(b) {
		return false
	}
	byName := make(map[string]models.Participant, len(a))
	for _, part := range a {
		byName[part.Name] = part
	}
	for _, part := range b {
		if prev, ok := byName[part.Name]; !ok || prev != part {
			return false
		}
	}
	return true
}

// EnsureSolution computes the assignment, rail conversion included
func (p *Possibility) EnsureSolution(ctx context.Context) error {
	return p.advance(ctx, covoit.StageResolved)
}

// EnsureRoutes computes the assignment and the finalized routes with their allocation
func (p *Possibility) EnsureRoutes(ctx context.Context) error {
	return p.advance(ctx, covoit.StageRoutesFinalized)
}

func (p *Possibility) advance(ctx context.Context, target covoit.Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.invalid {
		return ErrCandidateInvalid
	}

	err := p.calculatorLocked().Advance(ctx, target)
	if err == nil {
		return nil
	}
	if errors.Is(err, distance.ErrUnroutableLocation) {
		p.invalid = true
		p.rejected = true
		p.lastErr = err
		observability.CandidatesTotal.WithLabelValues("invalid").Inc()
		log.WithField("gite", p.gite.Name).Warnf("[PLANNER] Candidate invalid: %v", err)
	}
	return fmt.Errorf("candidate %s: %w", p.gite.Name, err)
}

// Totals sums trip time and trip cost over the travelers. Routes must be finalized.
func (p *Possibility) Totals() (timeSecs, cost float64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.invalid {
		return 0, 0, ErrCandidateInvalid
	}
	if p.calc == nil || p.calc.Stage() < covoit.StageRoutesFinalized {
		return 0, 0, covoit.ErrNotSolved
	}
	for _, cv := range p.covoits {
		timeSecs += cv.TripTime
		cost += cv.TripCost
	}
	return timeSecs, cost, nil
}
