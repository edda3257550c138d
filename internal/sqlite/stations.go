package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trip-planner/internal/database"
	"trip-planner/internal/models"
)

type stationRepository struct {
	store *Store
}

const stationColumns = `s.code, s.name, s.city, s.lat, s.lng, s.affluence`

func scanStation(row interface{ Scan(...any) error }) (models.Station, error) {
	var st models.Station
	err := row.Scan(&st.Code, &st.Name, &st.City, &st.Location.Lat, &st.Location.Lng, &st.Affluence)
	return st, err
}

func (r *stationRepository) UpsertStations(ctx context.Context, stations []models.Station) error {
	if len(stations) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO stations (code, name, city, lat, lng, affluence) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare station insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range stations {
		if _, err := stmt.ExecContext(ctx, st.Code, st.Name, st.City, st.Location.Lat, st.Location.Lng, st.Affluence); err != nil {
			return fmt.Errorf("failed to insert station %s: %w", st.Code, err)
		}
	}

	return tx.Commit()
}

func (r *stationRepository) AddLineStops(ctx context.Context, line string, stationCodes []string) error {
	if len(stationCodes) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO line_stops (line, station_code) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare line stop insert: %w", err)
	}
	defer stmt.Close()

	for _, code := range stationCodes {
		if _, err := stmt.ExecContext(ctx, line, code); err != nil {
			return fmt.Errorf("failed to insert line stop %s/%s: %w", line, code, err)
		}
	}

	return tx.Commit()
}

func (r *stationRepository) ListStations(ctx context.Context) ([]models.Station, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx, `SELECT `+stationColumns+` FROM stations s ORDER BY s.code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	defer rows.Close()

	return collectStations(rows)
}

func (r *stationRepository) GetStation(ctx context.Context, code string) (*models.Station, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	st, err := scanStation(r.store.db.QueryRowContext(ctx, `SELECT `+stationColumns+` FROM stations s WHERE s.code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station %s: %w", code, err)
	}
	return &st, nil
}

func (r *stationRepository) ConnectedStations(ctx context.Context, code string) ([]models.Station, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT DISTINCT ` + stationColumns + `
	          FROM stations s
	          JOIN line_stops ls ON ls.station_code = s.code
	          WHERE ls.line IN (SELECT line FROM line_stops WHERE station_code = ?)
	          ORDER BY s.code`

	rows, err := r.store.db.QueryContext(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query connected stations: %w", err)
	}
	defer rows.Close()

	return collectStations(rows)
}

func collectStations(rows *sql.Rows) ([]models.Station, error) {
	stations := []models.Station{}
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}
