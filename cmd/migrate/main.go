// Command migrate applies the Postgres schema and seeds the default company
// configuration when it is missing.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/estimator-api/internal/config"
	"github.com/yourorg/estimator-api/internal/logger"
	"github.com/yourorg/estimator-api/internal/store"
	"github.com/yourorg/estimator-api/internal/tenant"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	lg := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = lg.Sync() }()

	if cfg.Postgres.DSN == "" {
		lg.Fatal("postgres.dsn (POSTGRES_DSN) must be provided")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	st, err := store.Open(cfg.Postgres.DSN)
	if err != nil {
		lg.Fatal("store open error", zap.Error(err))
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		lg.Fatal("postgres ping error", zap.Error(err))
	}
	if err := st.Migrate(ctx); err != nil {
		lg.Fatal("postgres migrate error", zap.Error(err))
	}
	lg.Info("schema up to date")

	seeded, err := seedDefault(ctx, st, tenant.NewRepository(st, nil, 0, lg))
	if err != nil {
		lg.Fatal("seed default company failed", zap.Error(err))
	}
	if seeded {
		lg.Info("seeded default company configuration", zap.String("company_id", tenant.DefaultCompanyID))
	}
}

type pricingReader interface {
	GetPricingConfig(ctx context.Context, companyID string) (store.PricingConfig, error)
}

type configWriter interface {
	Put(ctx context.Context, cfg tenant.Config) (tenant.Config, error)
}

func seedDefault(ctx context.Context, r pricingReader, w configWriter) (bool, error) {
	_, err := r.GetPricingConfig(ctx, tenant.DefaultCompanyID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	cfg := tenant.Default(tenant.DefaultCompanyID)
	cfg.CompanyName = "Default"
	if _, err := w.Put(ctx, cfg); err != nil {
		return false, err
	}
	return true, nil
}
