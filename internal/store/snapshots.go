package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
)

type PropertyInput struct {
	PropertyKey   string
	Address1      string
	City          string
	State         string
	Zip           string
	SquareFootage sql.NullInt64
	PropertyType  sql.NullString
	YearBuilt     sql.NullInt64
	RecordID      sql.NullString
	// Raw snapshot
	Provider    string
	Endpoint    string
	ExternalID  string
	PayloadJSON []byte
}

// WriteSnapshotAndUpsert stores the provider payload and the property row it
// was mapped to. Identical payloads are stored once.
func (s *Store) WriteSnapshotAndUpsert(ctx context.Context, in PropertyInput) (propertyID string, err error) {
	if s.DB == nil {
		return "", errors.New("nil db")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, `
        INSERT INTO properties (property_key, address_line1, city, state, zip, square_footage, property_type, year_built, record_id, last_fetch_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
        ON CONFLICT (property_key)
        DO UPDATE SET address_line1=EXCLUDED.address_line1, city=EXCLUDED.city, state=EXCLUDED.state, zip=EXCLUDED.zip, square_footage=EXCLUDED.square_footage, property_type=EXCLUDED.property_type, year_built=EXCLUDED.year_built, record_id=EXCLUDED.record_id, updated_at=now(), last_fetch_at=now()
        RETURNING id`,
		in.PropertyKey, in.Address1, in.City, in.State, in.Zip, in.SquareFootage, in.PropertyType, in.YearBuilt, in.RecordID,
	).Scan(&propertyID)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(in.PayloadJSON)
	sha := hex.EncodeToString(sum[:])
	if _, err = tx.ExecContext(ctx, `
        INSERT INTO provider_raw_snapshots (provider, endpoint, external_id, payload, payload_sha256)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (provider, endpoint, payload_sha256) DO NOTHING`,
		in.Provider, in.Endpoint, in.ExternalID, string(in.PayloadJSON), sha,
	); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return propertyID, nil
}
