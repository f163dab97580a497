package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/estimator-api/attom"
	"github.com/yourorg/estimator-api/internal/analyzer"
	"github.com/yourorg/estimator-api/internal/config"
	"github.com/yourorg/estimator-api/internal/events"
	"github.com/yourorg/estimator-api/internal/logger"
	"github.com/yourorg/estimator-api/internal/property"
	"github.com/yourorg/estimator-api/internal/redisx"
	"github.com/yourorg/estimator-api/internal/storage"
	"github.com/yourorg/estimator-api/internal/store"
	"github.com/yourorg/estimator-api/internal/tenant"
	"github.com/yourorg/estimator-api/internal/vision"
	"github.com/yourorg/estimator-api/llm"
	"github.com/yourorg/estimator-api/melissa"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("estimator-api stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	// Optional dependencies stay untyped nil interfaces when unconfigured.
	var (
		analyses analyzer.AnalysisStore
		configs  tenant.ConfigStore
		sink     property.SnapshotSink
	)
	if cfg.Postgres.DSN != "" {
		st, err := openStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer st.Close()
		analyses, configs, sink = st, st, st
	} else {
		lg.Warn("postgres not configured; analyses are not persisted and tenants use default pricing")
	}

	rdb := redisx.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if rdb.Enabled() {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pctx); err != nil {
			lg.Warn("redis ping failed; continuing", zap.Error(err))
		}
		cancel()
		defer rdb.Close()
	}

	var images storage.Store = storage.NewMemory()
	if cfg.AWS.Bucket != "" {
		s3, err := storage.NewS3Store(ctx, cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.Endpoint)
		if err != nil {
			return fmt.Errorf("s3 storage: %w", err)
		}
		images = s3
	} else {
		lg.Warn("aws.bucket not set; images are kept in memory")
	}

	var detector vision.Detector = vision.NewSimulated(nil, cfg.Vision.SimulatedLatency)
	if cfg.Vision.Mode == "llm" {
		detector = vision.NewLLM(llm.NewClient(cfg.LLM.URL, cfg.LLM.Key))
	}

	fallback := property.NewSimulated(nil)
	var provider property.Provider = fallback
	if cfg.ATTOM.APIKey != "" {
		var std property.Standardizer
		if cfg.Melissa.APIKey != "" {
			std = melissa.NewClient(cfg.Melissa.APIKey, cfg.Melissa.BaseURL)
		}
		provider = property.NewRecords(std, attom.NewClient(cfg.ATTOM.APIKey, cfg.ATTOM.BaseURL, cfg.ATTOM.RPS), sink, lg)
	}
	props := property.NewService(provider, fallback, rdb, property.Options{
		CacheTTL:       cfg.Property.CacheTTL,
		StaleAfter:     cfg.Property.StaleAfter,
		NegativeTTL:    cfg.Property.NegativeTTL,
		RefreshWorkers: cfg.Property.RefreshWorkers,
	}, lg)
	defer props.Close()

	tenants := tenant.NewRepository(configs, rdb, cfg.Tenant.CacheTTL, lg)

	bus := events.NewInMemory(256)
	pubs := events.Fanout{bus}
	if len(cfg.Events.KafkaBrokers) > 0 {
		k, err := events.NewKafka(cfg.Events.KafkaBrokers, cfg.Events.Topic)
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		pubs = append(pubs, k)
	}
	defer func() { _ = pubs.Close() }()
	go (&events.Recorder{Sub: bus, Log: lg}).Run(ctx)

	svc := analyzer.New(analyzer.Deps{
		Tenants:    tenants,
		Storage:    images,
		Detector:   detector,
		Properties: props,
		Store:      analyses,
		Events:     pubs,
		Log:        lg,
		Folder:     cfg.AWS.Folder,
	})

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: BuildRouter(RouterDeps{
			Log:        lg,
			Analyzer:   svc,
			Tenants:    tenants,
			Properties: props,
			RateLimit:  cfg.RateLimit,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		lg.Info("estimator-api listening", zap.Int("port", cfg.Port), zap.String("vision", cfg.Vision.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	lg.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func openStore(ctx context.Context, dsn string) (*store.Store, error) {
	st, err := store.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("store open: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return st, nil
}
