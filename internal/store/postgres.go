package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNotFound = errors.New("not found")

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE TABLE IF NOT EXISTS companies (
            id          TEXT PRIMARY KEY,
            name        TEXT NOT NULL,
            created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS pricing_configs (
            company_id  TEXT PRIMARY KEY REFERENCES companies(id) ON DELETE CASCADE,
            pricing     JSONB NOT NULL,
            features    JSONB NOT NULL,
            version     INT NOT NULL DEFAULT 1,
            updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS property_analyses (
            id                 UUID PRIMARY KEY,
            company_id         TEXT NOT NULL,
            property_key       TEXT,
            total_windows      INT NOT NULL,
            total_doors        INT NOT NULL,
            square_footage     INT NOT NULL,
            confidence         DOUBLE PRECISION NOT NULL,
            total_estimate     NUMERIC(12,2) NOT NULL,
            processing_ms      BIGINT NOT NULL,
            payload            JSONB NOT NULL,
            created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_company ON property_analyses(company_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_property ON property_analyses(property_key);`,
		`CREATE TABLE IF NOT EXISTS properties (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            property_key    TEXT NOT NULL,
            address_line1   TEXT NOT NULL,
            city            TEXT NOT NULL,
            state           TEXT NOT NULL,
            zip             TEXT NOT NULL,
            square_footage  INTEGER,
            property_type   TEXT,
            year_built      SMALLINT,
            record_id       TEXT,
            created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
            last_fetch_at   TIMESTAMPTZ
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_properties_property_key ON properties(property_key);`,
		`CREATE TABLE IF NOT EXISTS provider_raw_snapshots (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            provider       TEXT NOT NULL,
            endpoint       TEXT NOT NULL,
            external_id    TEXT,
            payload        JSONB NOT NULL,
            fetched_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
            payload_sha256 TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_provider ON provider_raw_snapshots(provider, endpoint, fetched_at DESC);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_snapshots_dedupe ON provider_raw_snapshots(provider, endpoint, payload_sha256);`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
