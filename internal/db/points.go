package db

import (
	"context"
	"fmt"

	"dispatch-bot/internal/models"
)

func (db *PostgresDB) ListPoints(ctx context.Context) ([]models.Point, error) {
	query := `SELECT id, name, latitude, longitude FROM points ORDER BY name`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list points: %w", err)
	}
	defer rows.Close()

	var points []models.Point
	for rows.Next() {
		var p models.Point
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// PointsByIDs returns the requested points in the order the ids were given,
// which is the order the driver selected them in.
func (db *PostgresDB) PointsByIDs(ctx context.Context, ids []int64) ([]models.Point, error) {
	query := `SELECT id, name, latitude, longitude FROM points WHERE id = ANY($1)`

	rows, err := db.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get points: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]models.Point, len(ids))
	for rows.Next() {
		var p models.Point
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]models.Point, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}

	return ordered, nil
}
