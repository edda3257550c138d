package possibility

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"trip-planner/internal/covoit"
	"trip-planner/internal/models"
	"trip-planner/internal/observability"
)

// Options tune how the planner filters and ranks gites
type Options struct {
	Nights                 int
	MinPricePerPersonNight float64
	// MaxPersonsPerBedroom bounds participants per bedroom, 0 disables the check
	MaxPersonsPerBedroom float64
	Concurrency          int
	PriceFilterCount     int
	OutputCount          int
}

// DefaultOptions returns the stock planner settings
func DefaultOptions() Options {
	return Options{
		Nights:                 1,
		MinPricePerPersonNight: 10,
		Concurrency:            4,
		PriceFilterCount:       50,
		OutputCount:            10,
	}
}

// Planner owns the participants of a trip and its candidate gites
type Planner struct {
	opts Options
	deps Deps
	cfg  covoit.Config

	mu           sync.Mutex
	participants []models.Participant
	candidates   []*Possibility
}

func NewPlanner(participants []models.Participant, deps Deps, cfg covoit.Config, opts Options) *Planner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Planner{
		opts:         opts,
		deps:         deps,
		cfg:          cfg,
		participants: append([]models.Participant{}, participants...),
	}
}

// TotalBudget sums the participant budgets
func (pl *Planner) TotalBudget() float64 {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return lo.SumBy(pl.participants, func(p models.Participant) float64 { return p.Budget })
}

// FilterGites keeps the gites priced between the minimum stay price and the
// total budget that have enough bedrooms for the group
func (pl *Planner) FilterGites(gites []models.Gite) []models.Gite {
	budget := pl.TotalBudget()
	pl.mu.Lock()
	n := float64(len(pl.participants))
	pl.mu.Unlock()
	minPrice := pl.opts.MinPricePerPersonNight * n * float64(pl.opts.Nights)

	return lo.Filter(gites, func(g models.Gite, _ int) bool {
		if g.Price <= minPrice || g.Price >= budget {
			return false
		}
		if pl.opts.MaxPersonsPerBedroom > 0 {
			if g.Bedrooms <= 0 || n/float64(g.Bedrooms) > pl.opts.MaxPersonsPerBedroom {
				return false
			}
		}
		return true
	})
}

// SetGites replaces the candidates with one per gite passing the filter
func (pl *Planner) SetGites(gites []models.Gite) []*Possibility {
	kept := pl.FilterGites(gites)

	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.candidates = lo.Map(kept, func(g models.Gite, _ int) *Possibility {
		return New(g, pl.participants, pl.deps, pl.cfg)
	})
	log.WithFields(log.Fields{"gites": len(gites), "kept": len(kept)}).Info("[PLANNER] Candidates built")
	return append([]*Possibility{}, pl.candidates...)
}

// AddCandidates registers already built candidates, restored snapshots for instance
func (pl *Planner) AddCandidates(ps ...*Possibility) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.candidates = append(pl.candidates, ps...)
}

// Candidates returns every candidate
func (pl *Planner) Candidates() []*Possibility {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return append([]*Possibility{}, pl.candidates...)
}

// RefreshParticipants pushes a new participant set to every valid candidate
func (pl *Planner) RefreshParticipants(participants []models.Participant) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.participants = append([]models.Participant{}, participants...)
	for _, c := range pl.candidates {
		if err := c.SetParticipants(participants); err != nil && !errors.Is(err, ErrCandidateInvalid) {
			log.WithField("gite", c.Gite().Name).Warnf("[PLANNER] Participant refresh failed: %v", err)
		}
	}
}

// ResetCandidates sends every valid candidate back to its first stage so the
// next Rank recomputes it, after an engine setting changed for instance
func (pl *Planner) ResetCandidates() {
	reset := 0
	for _, c := range pl.Candidates() {
		if err := c.Reset(); err == nil {
			reset++
		}
	}
	log.Infof("[PLANNER] Reset %d candidates", reset)
}

// Rejected lists the rejected candidates
func (pl *Planner) Rejected() []*Possibility {
	return lo.Filter(pl.Candidates(), func(c *Possibility, _ int) bool { return c.Rejected() })
}

// Process finalizes the routes of the candidates with bounded parallelism.
// A failing candidate does not stop the others; the returned error joins every failure.
func (pl *Planner) Process(ctx context.Context, candidates []*Possibility) error {
	start := time.Now()
	errs := make([]error, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pl.opts.Concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			if err := c.EnsureRoutes(ctx); err != nil {
				if !c.Invalid() {
					observability.CandidatesTotal.WithLabelValues("failed").Inc()
				}
				errs[i] = err
				return nil
			}
			observability.CandidatesTotal.WithLabelValues("finalized").Inc()
			return nil
		})
	}
	_ = g.Wait()

	log.WithFields(log.Fields{
		"candidates": len(candidates),
		"failed":     lo.CountBy(errs, func(err error) bool { return err != nil }),
	}).Infof("[TIMING] Candidates processed in %v", time.Since(start).Round(time.Millisecond))
	return errors.Join(errs...)
}

// Rank returns the candidates already shown followed by the new best ones:
// the cheapest PriceFilterCount gites are processed, then the OutputCount
// fastest by total trip time are numbered after the highest shown number.
// Shown candidates reset since their last computation are processed again;
// those that end up rejected or unfinished are left out of the result.
func (pl *Planner) Rank(ctx context.Context) ([]*Possibility, error) {
	all := pl.Candidates()
	shown := lo.Filter(all, func(c *Possibility, _ int) bool { return c.Shown() })
	stale := lo.Filter(shown, func(c *Possibility, _ int) bool {
		return !c.Rejected() && c.Stage() < covoit.StageRoutesFinalized
	})
	pool := lo.Filter(all, func(c *Possibility, _ int) bool { return !c.Shown() && !c.Rejected() })

	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Gite().Price < pool[j].Gite().Price })
	if len(pool) > pl.opts.PriceFilterCount {
		pool = pool[:pl.opts.PriceFilterCount]
	}

	if err := pl.Process(ctx, append(append([]*Possibility{}, stale...), pool...)); err != nil {
		log.Warnf("[PLANNER] Some candidates failed: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type ranked struct {
		c     *Possibility
		total float64
	}
	var ready []ranked
	for _, c := range pool {
		t, _, err := c.Totals()
		if err != nil {
			continue
		}
		ready = append(ready, ranked{c: c, total: t})
	}
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].total < ready[j].total })
	if len(ready) > pl.opts.OutputCount {
		ready = ready[:pl.opts.OutputCount]
	}

	sort.SliceStable(shown, func(i, j int) bool { return shown[i].Number() < shown[j].Number() })
	next := 1
	if len(shown) > 0 {
		next = shown[len(shown)-1].Number() + 1
	}

	out := lo.Filter(shown, func(c *Possibility, _ int) bool {
		if c.Rejected() {
			return false
		}
		_, _, err := c.Totals()
		return err == nil
	})
	kept := len(out)
	for _, r := range ready {
		r.c.SetNumber(next)
		next++
		out = append(out, r.c)
	}
	log.WithFields(log.Fields{
		"shown":      kept,
		"recomputed": len(stale),
		"new":        len(ready),
	}).Info("[PLANNER] Candidates ranked")
	return out, nil
}
