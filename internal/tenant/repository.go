package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/yourorg/estimator-api/internal/redisx"
	"github.com/yourorg/estimator-api/internal/store"
	"go.uber.org/zap"
)

const cachePrefix = "tenant:cfg:"

var ErrNoStore = errors.New("tenant configuration store not configured")

type ConfigStore interface {
	GetPricingConfig(ctx context.Context, companyID string) (store.PricingConfig, error)
	UpsertPricingConfig(ctx context.Context, pc store.PricingConfig) (int, error)
}

// Repository reads company configuration through a Redis cache. db and
// cache may both be nil; reads then always return defaults.
type Repository struct {
	db    ConfigStore
	cache *redisx.Client
	ttl   time.Duration
	log   *zap.Logger
}

func NewRepository(db ConfigStore, cache *redisx.Client, ttl time.Duration, log *zap.Logger) *Repository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{db: db, cache: cache, ttl: ttl, log: log}
}

// Get returns the company's configuration, or Default for a company that
// has none. Only store failures are errors.
func (r *Repository) Get(ctx context.Context, companyID string) (Config, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		companyID = DefaultCompanyID
	}
	if val, err := r.cache.Get(ctx, cachePrefix+companyID); err == nil {
		var cfg Config
		if json.Unmarshal([]byte(val), &cfg) == nil {
			return cfg, nil
		}
	} else if !redisx.IsMiss(err) {
		r.log.Warn("tenant cache read failed", zap.String("company_id", companyID), zap.Error(err))
	}

	if r.db == nil {
		return Default(companyID), nil
	}
	pc, err := r.db.GetPricingConfig(ctx, companyID)
	if errors.Is(err, store.ErrNotFound) {
		cfg := Default(companyID)
		r.remember(ctx, cfg)
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}

	cfg := Default(companyID)
	cfg.CompanyName = pc.CompanyName
	cfg.Version = pc.Version
	if err := json.Unmarshal(pc.Pricing, &cfg.Pricing); err != nil {
		return Config{}, err
	}
	if len(pc.Features) > 0 {
		if err := json.Unmarshal(pc.Features, &cfg.Features); err != nil {
			return Config{}, err
		}
	}
	r.remember(ctx, cfg)
	return cfg, nil
}

// Put validates and stores cfg, returning it with its new version.
func (r *Repository) Put(ctx context.Context, cfg Config) (Config, error) {
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	if r.db == nil {
		return Config{}, ErrNoStore
	}
	pricing, err := json.Marshal(cfg.Pricing)
	if err != nil {
		return Config{}, err
	}
	features, err := json.Marshal(cfg.Features)
	if err != nil {
		return Config{}, err
	}
	name := cfg.CompanyName
	if name == "" {
		name = cfg.CompanyID
	}
	v, err := r.db.UpsertPricingConfig(ctx, store.PricingConfig{
		CompanyID:   cfg.CompanyID,
		CompanyName: name,
		Pricing:     pricing,
		Features:    features,
	})
	if err != nil {
		return Config{}, err
	}
	if err := r.cache.Del(ctx, cachePrefix+cfg.CompanyID); err != nil {
		r.log.Warn("tenant cache invalidation failed", zap.String("company_id", cfg.CompanyID), zap.Error(err))
	}
	cfg.CompanyName = name
	cfg.Version = v
	return cfg, nil
}

func (r *Repository) remember(ctx context.Context, cfg Config) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cachePrefix+cfg.CompanyID, string(b), r.ttl); err != nil {
		r.log.Warn("tenant cache write failed", zap.String("company_id", cfg.CompanyID), zap.Error(err))
	}
}
