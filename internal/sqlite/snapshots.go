package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trip-planner/internal/database"
)

type snapshotRepository struct {
	store *Store
}

func (r *snapshotRepository) Save(ctx context.Context, s *database.Snapshot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}

	_, err := r.store.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (id, gite_id, data, updated_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.GiteID, s.Data, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", s.ID, err)
	}
	return nil
}

func (r *snapshotRepository) Get(ctx context.Context, id string) (*database.Snapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var s database.Snapshot
	err := r.store.db.QueryRowContext(ctx,
		`SELECT id, gite_id, data, updated_at FROM snapshots WHERE id = ?`, id,
	).Scan(&s.ID, &s.GiteID, &s.Data, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", id, err)
	}
	return &s, nil
}

func (r *snapshotRepository) List(ctx context.Context) ([]database.Snapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx, `SELECT id, gite_id, data, updated_at FROM snapshots ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []database.Snapshot{}
	for rows.Next() {
		var s database.Snapshot
		if err := rows.Scan(&s.ID, &s.GiteID, &s.Data, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func (r *snapshotRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	res, err := r.store.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}
