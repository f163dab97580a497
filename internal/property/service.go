package property

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/yourorg/estimator-api/internal/canon"
	"github.com/yourorg/estimator-api/internal/metrics"
	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/internal/redisx"
	"github.com/yourorg/estimator-api/internal/refresh"
	"go.uber.org/zap"
)

const (
	cachePrefix = "prop:pk:"
	missPrefix  = "prop:miss:"
	lockPrefix  = "prop:lock:"
	lockTTL     = 8 * time.Second
)

type Options struct {
	CacheTTL       time.Duration
	StaleAfter     time.Duration
	NegativeTTL    time.Duration
	RefreshWorkers int
	// LockWait bounds how long Lookup waits for a concurrent fetch of the
	// same key before falling back.
	LockWait time.Duration
}

func (o *Options) defaults() {
	if o.CacheTTL <= 0 {
		o.CacheTTL = 24 * time.Hour
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 6 * time.Hour
	}
	if o.NegativeTTL <= 0 {
		o.NegativeTTL = 10 * time.Minute
	}
	if o.LockWait <= 0 {
		o.LockWait = time.Second
	}
}

type Normalized struct {
	Line1 string `json:"line1"`
	City  string `json:"city"`
	State string `json:"state"`
	Zip   string `json:"zip"`
}

// Result is a resolved property along with where it came from.
type Result struct {
	Data        *models.PropertyData `json:"data"`
	PropertyKey string               `json:"property_key"`
	Source      string               `json:"source"` // cache | fresh | fallback
	Stale       bool                 `json:"stale"`
	Normalized  Normalized           `json:"normalized"`
}

type envelope struct {
	Data    models.PropertyData `json:"data"`
	Address string              `json:"address"`
	Meta    struct {
		LastFetch  time.Time `json:"last_fetch_at"`
		StaleAfter time.Time `json:"stale_after"`
		TTLSeconds int       `json:"ttl_seconds"`
		Source     string    `json:"source"`
	} `json:"meta"`
}

// Service fronts a Provider with a stale-while-revalidate Redis cache.
type Service struct {
	provider  Provider
	fallback  Provider
	cache     *redisx.Client
	refresher *refresh.Refresher
	opts      Options
	log       *zap.Logger
	now       func() time.Time
}

// NewService wires the cache around provider. cache may be nil, in which
// case every lookup goes to the provider. fallback answers whenever the
// provider fails.
func NewService(provider Provider, fallback Provider, cache *redisx.Client, opts Options, log *zap.Logger) *Service {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	if fallback == nil {
		fallback = NewSimulated(nil)
	}
	s := &Service{provider: provider, fallback: fallback, cache: cache, opts: opts, log: log, now: time.Now}
	s.refresher = refresh.New(256, opts.RefreshWorkers, 15*time.Second, log, func(ctx context.Context, j refresh.Job) {
		if _, err := s.fetch(ctx, j.PropertyKey, j.Address); err != nil && !errors.Is(err, ErrNotFound) {
			s.log.Warn("background property refresh failed", zap.String("property_key", j.PropertyKey), zap.Error(err))
		}
	})
	return s
}

func (s *Service) Close() { s.refresher.Close() }

// Resolve returns the property for address, serving cached records (even
// stale ones) first. It reports ErrNotFound, ErrInProgress and provider
// errors to the caller.
func (s *Service) Resolve(ctx context.Context, address string) (Result, error) {
	address = canon.Standardize(address)
	if address == "" {
		return Result{}, ErrAddressRequired
	}
	line1, city, st, zip, key := canon.Canonicalize(canon.SplitOneLine(address))
	res := Result{PropertyKey: key, Normalized: Normalized{Line1: line1, City: city, State: st, Zip: zip}}

	if ok, _ := s.cache.Exists(ctx, missPrefix+key); ok {
		return res, ErrNotFound
	}
	if env, ok := s.cached(ctx, key); ok {
		res.Data = &env.Data
		res.Source = "cache"
		res.Stale = s.now().After(env.Meta.StaleAfter)
		if res.Stale {
			s.refresher.Enqueue(refresh.Job{PropertyKey: key, Address: address})
		}
		return res, nil
	}

	ok, err := s.cache.SetNX(ctx, lockPrefix+key, "1", lockTTL)
	if err != nil {
		s.log.Warn("property lock unavailable", zap.String("property_key", key), zap.Error(err))
	} else if !ok {
		return res, ErrInProgress
	}
	defer func() { _ = s.cache.Del(context.WithoutCancel(ctx), lockPrefix+key) }()

	data, err := s.fetch(ctx, key, address)
	if err != nil {
		return res, err
	}
	res.Data = data
	res.Source = "fresh"
	return res, nil
}

// Lookup is the degrade-only entry used by analyses: an empty address gives
// nil, any failure gives the fallback record.
func (s *Service) Lookup(ctx context.Context, address string) *models.PropertyData {
	if strings.TrimSpace(address) == "" {
		return nil
	}
	res, err := s.Resolve(ctx, address)
	if errors.Is(err, ErrInProgress) {
		res, err = s.awaitInFlight(ctx, res)
	}
	if err == nil && res.Data != nil {
		metrics.PropertyLookups.WithLabelValues(res.Source).Inc()
		return res.Data
	}
	if !errors.Is(err, ErrNotFound) {
		s.log.Warn("property lookup failed, using fallback", zap.String("address", address), zap.Error(err))
	}
	metrics.PropertyLookups.WithLabelValues("fallback").Inc()
	data, ferr := s.fallback.Lookup(ctx, canon.Standardize(address))
	if ferr != nil {
		s.log.Error("fallback property lookup failed", zap.Error(ferr))
		return nil
	}
	return data
}

func (s *Service) awaitInFlight(ctx context.Context, res Result) (Result, error) {
	deadline := s.now().Add(s.opts.LockWait)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for s.now().Before(deadline) {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-tick.C:
		}
		if env, ok := s.cached(ctx, res.PropertyKey); ok {
			res.Data = &env.Data
			res.Source = "cache"
			return res, nil
		}
	}
	return res, ErrInProgress
}

func (s *Service) cached(ctx context.Context, key string) (envelope, bool) {
	var env envelope
	val, err := s.cache.Get(ctx, cachePrefix+key)
	if err != nil || val == "" {
		if err != nil && !redisx.IsMiss(err) {
			s.log.Warn("property cache read failed", zap.String("property_key", key), zap.Error(err))
		}
		return env, false
	}
	if err := json.Unmarshal([]byte(val), &env); err != nil {
		return env, false
	}
	return env, true
}

// fetch asks the provider and writes the outcome to the cache.
func (s *Service) fetch(ctx context.Context, key, address string) (*models.PropertyData, error) {
	data, err := s.provider.Lookup(ctx, address)
	if errors.Is(err, ErrNotFound) {
		_ = s.cache.Set(ctx, missPrefix+key, "1", s.opts.NegativeTTL)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNotFound
	}

	var env envelope
	env.Data = *data
	env.Address = address
	env.Meta.LastFetch = s.now()
	env.Meta.StaleAfter = env.Meta.LastFetch.Add(s.opts.StaleAfter)
	env.Meta.TTLSeconds = int(s.opts.CacheTTL.Seconds())
	env.Meta.Source = data.Source
	b, err := json.Marshal(env)
	if err == nil {
		if err := s.cache.Set(ctx, cachePrefix+key, string(b), s.opts.CacheTTL); err != nil {
			s.log.Warn("property cache write failed", zap.String("property_key", key), zap.Error(err))
		}
	}
	return data, nil
}

// Prefetch queues a background fetch for address so a later analysis finds
// it cached. It reports false when the queue is full or the key is already
// being fetched.
func (s *Service) Prefetch(address string) (string, bool) {
	address = canon.Standardize(address)
	if address == "" {
		return "", false
	}
	key := canon.Key(address)
	return key, s.refresher.Enqueue(refresh.Job{PropertyKey: key, Address: address})
}
