package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PricingConfig is the stored form of a tenant configuration. Pricing and
// Features are opaque JSON documents owned by the tenant package.
type PricingConfig struct {
	CompanyID   string
	CompanyName string
	Pricing     []byte
	Features    []byte
	Version     int
	UpdatedAt   time.Time
}

func (s *Store) GetPricingConfig(ctx context.Context, companyID string) (PricingConfig, error) {
	var pc PricingConfig
	err := s.DB.QueryRowContext(ctx, `
        SELECT c.id, c.name, p.pricing, p.features, p.version, p.updated_at
        FROM companies c
        JOIN pricing_configs p ON p.company_id = c.id
        WHERE c.id = $1`, companyID,
	).Scan(&pc.CompanyID, &pc.CompanyName, &pc.Pricing, &pc.Features, &pc.Version, &pc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pc, ErrNotFound
	}
	return pc, err
}

// UpsertPricingConfig writes the company row and its configuration in one
// transaction and returns the new version number.
func (s *Store) UpsertPricingConfig(ctx context.Context, pc PricingConfig) (version int, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
        INSERT INTO companies (id, name) VALUES ($1,$2)
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, updated_at=now()`,
		pc.CompanyID, pc.CompanyName,
	); err != nil {
		return 0, err
	}

	err = tx.QueryRowContext(ctx, `
        INSERT INTO pricing_configs (company_id, pricing, features)
        VALUES ($1,$2,$3)
        ON CONFLICT (company_id)
        DO UPDATE SET pricing=EXCLUDED.pricing, features=EXCLUDED.features, version=pricing_configs.version + 1, updated_at=now()
        RETURNING version`,
		pc.CompanyID, string(pc.Pricing), string(pc.Features),
	).Scan(&version)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}
