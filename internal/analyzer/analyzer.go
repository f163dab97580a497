package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourorg/estimator-api/internal/canon"
	"github.com/yourorg/estimator-api/internal/estimate"
	"github.com/yourorg/estimator-api/internal/events"
	"github.com/yourorg/estimator-api/internal/metrics"
	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/internal/storage"
	"github.com/yourorg/estimator-api/internal/store"
	"github.com/yourorg/estimator-api/internal/tenant"
	"github.com/yourorg/estimator-api/internal/vision"
	"github.com/yourorg/estimator-api/llm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var defaultSides = []string{"front", "back", "left", "right", "roof"}

type Image struct {
	Data        []byte
	ContentType string
	Filename    string
	Side        string
}

type Request struct {
	Images       []Image
	Address      string
	ServiceTypes []models.ServiceType
	CompanyID    string
}

type Response struct {
	AnalysisID     string                   `json:"analysisId"`
	PropertyData   *models.PropertyData     `json:"propertyData,omitempty"`
	Analysis       models.PropertyAnalysis  `json:"analysis"`
	Estimates      []models.ServiceEstimate `json:"estimates"`
	TotalEstimate  float64                  `json:"totalEstimate"`
	ProcessingTime int64                    `json:"processingTime"`

	metricsLabel string
}

type TenantSource interface {
	Get(ctx context.Context, companyID string) (tenant.Config, error)
}

type PropertyLookup interface {
	Lookup(ctx context.Context, address string) *models.PropertyData
}

type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, a models.PropertyAnalysis, propertyKey string) error
	GetAnalysis(ctx context.Context, id string) (models.PropertyAnalysis, error)
}

// Deps wires the service. Properties, Store and Events are optional.
type Deps struct {
	Tenants    TenantSource
	Storage    storage.Store
	Detector   vision.Detector
	Properties PropertyLookup
	Store      AnalysisStore
	Events     events.Publisher
	Log        *zap.Logger
	Folder     string
	Rand       *rand.Rand
}

type Service struct {
	d   Deps
	mu  sync.Mutex // guards d.Rand
	now func() time.Time
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Folder == "" {
		d.Folder = "property-images"
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Service{d: d, now: time.Now}
}

// Analyze runs a full analysis: store the photos, look the address up,
// detect features, price every requested service and record the result.
func (s *Service) Analyze(ctx context.Context, req Request) (*Response, error) {
	start := s.now()
	resp, err := s.analyze(ctx, req, start)

	var ve *ValidationError
	switch {
	case err == nil:
		metrics.AnalysesTotal.WithLabelValues("success").Inc()
		metrics.AnalysisDuration.WithLabelValues(resp.metricsLabel).Observe(time.Since(start).Seconds())
	case errors.As(err, &ve):
		metrics.AnalysesTotal.WithLabelValues("invalid").Inc()
	default:
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		s.d.Log.Error("property analysis failed", zap.String("company_id", req.CompanyID), zap.Error(err))
		err = ErrAnalysisFailed
	}
	return resp, err
}

func (s *Service) analyze(ctx context.Context, req Request, start time.Time) (resp *Response, err error) {
	if err := validateImages(req.Images); err != nil {
		return nil, err
	}
	cfg, err := s.d.Tenants.Get(ctx, req.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load tenant %q: %w", req.CompanyID, err)
	}
	services, err := validateServices(req.ServiceTypes, cfg)
	if err != nil {
		return nil, err
	}
	address := canon.Standardize(req.Address)
	if address == "" && cfg.Features.RequireAddress {
		return nil, invalid("address_required", "an address is required for this company")
	}

	urls := make([]string, len(req.Images))
	defer func() {
		if err != nil {
			s.discard(ctx, urls)
		}
	}()
	results := make([]vision.Result, len(req.Images))
	var property *models.PropertyData

	g, gctx := errgroup.WithContext(ctx)
	for i, img := range req.Images {
		g.Go(func() error {
			u, err := s.d.Storage.Upload(gctx, storage.File{Data: img.Data, ContentType: img.ContentType, Filename: img.Filename}, s.d.Folder)
			if err != nil {
				return fmt.Errorf("upload image %d: %w", i+1, err)
			}
			urls[i] = u
			res, err := s.d.Detector.Analyze(gctx, vision.Image{
				URL:         u,
				Data:        img.Data,
				ContentType: img.ContentType,
				Filename:    img.Filename,
				Side:        side(img.Side, i),
			})
			if err != nil {
				return fmt.Errorf("analyze image %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if s.lookupEnabled(address, cfg) {
		g.Go(func() error {
			property = s.d.Properties.Lookup(gctx, address)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		features   []models.DetectedFeature
		confidence float64
	)
	for _, r := range results {
		features = append(features, r.Features...)
		confidence += r.Confidence
	}
	confidence /= float64(len(results))

	sqft := s.squareFootage(property, results, features)
	var opts []estimate.Option
	if ft := gutterLength(results); ft > 0 {
		opts = append(opts, estimate.WithGutterLength(ft))
	}

	analysisID := uuid.NewString()
	estimates := make([]models.ServiceEstimate, 0, len(services))
	for _, st := range services {
		e, err := estimate.Estimate(features, sqft, st, cfg.Pricing, opts...)
		if err != nil {
			return nil, err
		}
		e.AnalysisID = analysisID
		estimates = append(estimates, e)
	}
	total := estimate.Total(estimates)

	now := s.now()
	analysis := models.PropertyAnalysis{
		ID:                     analysisID,
		CompanyID:              cfg.CompanyID,
		ImageID:                urls[0],
		Images:                 urls,
		Features:               features,
		TotalWindows:           models.CountFeatures(features, models.FeatureWindow),
		TotalDoors:             models.CountFeatures(features, models.FeatureDoor),
		EstimatedSquareFootage: sqft,
		Confidence:             confidence,
		ProcessingTime:         now.Sub(start).Milliseconds(),
		PropertyData:           property,
		Estimates:              estimates,
		TotalEstimate:          total,
		CreatedAt:              now,
	}

	var propertyKey string
	if address != "" {
		propertyKey = canon.Key(address)
	}
	if s.d.Store != nil {
		if err := s.d.Store.SaveAnalysis(ctx, analysis, propertyKey); err != nil {
			return nil, fmt.Errorf("save analysis: %w", err)
		}
	}
	s.publish(ctx, analysis, propertyKey, len(req.Images), cfg.Version > 0)

	return &Response{
		AnalysisID:     analysisID,
		PropertyData:   property,
		Analysis:       s.signed(ctx, analysis),
		Estimates:      estimates,
		TotalEstimate:  total,
		ProcessingTime: analysis.ProcessingTime,
		metricsLabel:   cfg.MetricsLabel(),
	}, nil
}

// signed swaps stored image references for URLs a client can fetch. A
// reference that cannot be signed is returned as is.
func (s *Service) signed(ctx context.Context, a models.PropertyAnalysis) models.PropertyAnalysis {
	if len(a.Images) == 0 {
		return a
	}
	images := make([]string, len(a.Images))
	for i, ref := range a.Images {
		u, err := s.d.Storage.URL(ctx, ref)
		if err != nil {
			s.d.Log.Warn("sign image url failed", zap.String("analysis_id", a.ID), zap.Error(err))
			u = ref
		}
		images[i] = u
	}
	a.Images = images
	a.ImageID = images[0]
	return a
}

// discard removes images uploaded for an analysis that did not complete.
func (s *Service) discard(ctx context.Context, refs []string) {
	ctx = context.WithoutCancel(ctx)
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := s.d.Storage.Delete(ctx, ref); err != nil {
			s.d.Log.Warn("delete orphaned image failed", zap.String("ref", ref), zap.Error(err))
		}
	}
}

func (s *Service) lookupEnabled(address string, cfg tenant.Config) bool {
	if s.d.Properties == nil || address == "" || !cfg.Features.EnablePropertyLookup {
		return false
	}
	if !canon.ValidAddress(address) {
		s.d.Log.Debug("skipping lookup for malformed address", zap.String("address", address))
		return false
	}
	return true
}

// squareFootage prefers the records value, then the measured wall area,
// then the window-count heuristic.
func (s *Service) squareFootage(p *models.PropertyData, results []vision.Result, features []models.DetectedFeature) int {
	if p != nil && p.SquareFootage != nil && *p.SquareFootage > 0 {
		return *p.SquareFootage
	}
	var (
		wall       float64
		anyMetrics bool
	)
	for _, r := range results {
		if r.Metrics == nil {
			continue
		}
		anyMetrics = true
		if r.Metrics.WallAreaSqFt > 0 {
			wall += r.Metrics.WallAreaSqFt
		}
	}
	if anyMetrics {
		return estimate.SquareFootageFromMetrics(llm.Metrics{WallAreaSqFt: wall})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return estimate.SquareFootage(features, s.d.Rand)
}

func gutterLength(results []vision.Result) float64 {
	var ft float64
	for _, r := range results {
		if r.Metrics != nil && r.Metrics.GutterLengthFt > 0 {
			ft += r.Metrics.GutterLengthFt
		}
	}
	return ft
}

func (s *Service) publish(ctx context.Context, a models.PropertyAnalysis, propertyKey string, images int, storedTenant bool) {
	if s.d.Events == nil {
		return
	}
	evt := events.AnalysisCompleted{
		AnalysisID:     a.ID,
		CompanyID:      a.CompanyID,
		StoredTenant:   storedTenant,
		PropertyKey:    propertyKey,
		TotalEstimate:  a.TotalEstimate,
		SquareFootage:  a.EstimatedSquareFootage,
		TotalWindows:   a.TotalWindows,
		ImageCount:     images,
		ProcessingTime: a.ProcessingTime,
		OccurredAt:     a.CreatedAt,
	}
	for _, e := range a.Estimates {
		evt.Estimates = append(evt.Estimates, events.EstimateSummary{ServiceType: e.ServiceType, TotalPrice: e.TotalPrice})
		evt.ServiceTypes = append(evt.ServiceTypes, e.ServiceType)
	}
	if err := s.d.Events.PublishAnalysisCompleted(ctx, evt); err != nil {
		s.d.Log.Warn("publish analysis.completed failed", zap.String("analysis_id", a.ID), zap.Error(err))
	}
}

// Get returns a stored analysis.
func (s *Service) Get(ctx context.Context, id string) (models.PropertyAnalysis, error) {
	if s.d.Store == nil {
		return models.PropertyAnalysis{}, ErrNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return models.PropertyAnalysis{}, ErrNotFound
	}
	a, err := s.d.Store.GetAnalysis(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	return s.signed(ctx, a), nil
}

func side(s string, i int) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return defaultSides[i%len(defaultSides)]
}
