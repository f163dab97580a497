package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/yourorg/estimator-api/internal/models"
)

// SaveAnalysis persists a finished analysis. The full record goes into the
// payload column; the scalar columns are there for reporting queries.
func (s *Store) SaveAnalysis(ctx context.Context, a models.PropertyAnalysis, propertyKey string) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	var pk sql.NullString
	if propertyKey != "" {
		pk = sql.NullString{String: propertyKey, Valid: true}
	}
	_, err = s.DB.ExecContext(ctx, `
        INSERT INTO property_analyses (id, company_id, property_key, total_windows, total_doors, square_footage, confidence, total_estimate, processing_ms, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.CompanyID, pk, a.TotalWindows, a.TotalDoors, a.EstimatedSquareFootage,
		a.Confidence, a.TotalEstimate, a.ProcessingTime, string(payload), a.CreatedAt,
	)
	return err
}

func (s *Store) GetAnalysis(ctx context.Context, id string) (models.PropertyAnalysis, error) {
	var (
		a       models.PropertyAnalysis
		payload []byte
	)
	err := s.DB.QueryRowContext(ctx, `SELECT payload FROM property_analyses WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	err = json.Unmarshal(payload, &a)
	return a, err
}
