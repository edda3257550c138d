package possibility

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"trip-planner/internal/covoit"
	"trip-planner/internal/database"
	"trip-planner/internal/matrix"
	"trip-planner/internal/models"
)

// Snapshot is the resumable state of a candidate
type Snapshot struct {
	ID           string               `json:"id"`
	Gite         models.Gite          `json:"gite"`
	Participants []models.Participant `json:"participants"`
	Covoits      models.Covoits       `json:"covoits,omitempty"`
	Matrix       matrix.State         `json:"matrix"`
	Stage        covoit.Stage         `json:"stage"`
	Invalid      bool                 `json:"invalid"`
	Rejected     bool                 `json:"rejected"`
	Number       int                  `json:"number,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// Snapshot copies the candidate state
func (p *Possibility) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		ID:           p.id,
		Gite:         p.gite,
		Participants: append([]models.Participant{}, p.participants...),
		Matrix:       p.cache.Snapshot(),
		Invalid:      p.invalid,
		Rejected:     p.rejected,
		Number:       p.number,
	}
	if p.covoits != nil {
		s.Covoits = p.covoits.Clone()
	}
	if p.calc != nil {
		s.Stage = p.calc.Stage()
	}
	if p.lastErr != nil {
		s.Error = p.lastErr.Error()
	}
	return s
}

// FromSnapshot rebuilds a candidate at the stage it was saved in
func FromSnapshot(s Snapshot, deps Deps, cfg covoit.Config) *Possibility {
	p := &Possibility{
		id:           s.ID,
		gite:         s.Gite,
		participants: append([]models.Participant{}, s.Participants...),
		deps:         deps,
		cfg:          cfg,
		cache:        matrix.NewCache(deps.Matrix),
		invalid:      s.Invalid,
		rejected:     s.Rejected,
		number:       s.Number,
	}
	if s.Error != "" {
		p.lastErr = fmt.Errorf("%w: %s", ErrCandidateInvalid, s.Error)
	}
	p.cache.Restore(s.Matrix)
	if s.Covoits != nil {
		p.covoits = s.Covoits.Clone()
		if s.Stage > covoit.StageBuilt {
			p.calculatorLocked().Restore(s.Stage)
		}
	}
	return p
}

// Save stores the candidate snapshot as JSON
func (p *Possibility) Save(ctx context.Context, repo database.SnapshotRepository) error {
	s := p.Snapshot()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", s.ID, err)
	}
	if err := repo.Save(ctx, &database.Snapshot{ID: s.ID, GiteID: s.Gite.ID, Data: data}); err != nil {
		return err
	}
	log.WithFields(log.Fields{"id": s.ID, "stage": s.Stage}).Debug("[PLANNER] Snapshot saved")
	return nil
}

// Load restores a saved candidate
func Load(ctx context.Context, repo database.SnapshotRepository, id string, deps Deps, cfg covoit.Config) (*Possibility, error) {
	stored, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(stored.Data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", id, err)
	}
	return FromSnapshot(s, deps, cfg), nil
}
