package analyzer

import (
	"context"

	"github.com/yourorg/estimator-api/internal/estimate"
	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/llm"
	"go.uber.org/zap"
)

// EstimateRequest prices services without photos, either from inference
// metrics or from detections plus a known square footage.
type EstimateRequest struct {
	CompanyID      string
	ServiceTypes   []models.ServiceType
	Metrics        *llm.Metrics
	Features       []models.DetectedFeature
	SquareFootage  int
	GutterLengthFt float64
}

type EstimateResponse struct {
	Estimates     []models.ServiceEstimate `json:"estimates"`
	TotalEstimate float64                  `json:"totalEstimate"`
	SquareFootage int                      `json:"squareFootage"`
}

func (s *Service) Estimate(ctx context.Context, req EstimateRequest) (*EstimateResponse, error) {
	cfg, err := s.d.Tenants.Get(ctx, req.CompanyID)
	if err != nil {
		s.d.Log.Error("load tenant for estimate failed", zap.String("company_id", req.CompanyID), zap.Error(err))
		return nil, ErrAnalysisFailed
	}
	services, err := validateServices(req.ServiceTypes, cfg)
	if err != nil {
		return nil, err
	}

	var sqft int
	switch {
	case req.Metrics != nil:
		sqft = estimate.SquareFootageFromMetrics(*req.Metrics)
	case req.SquareFootage > 0:
		sqft = req.SquareFootage
	default:
		s.mu.Lock()
		sqft = estimate.SquareFootage(req.Features, s.d.Rand)
		s.mu.Unlock()
	}

	out := &EstimateResponse{SquareFootage: sqft, Estimates: make([]models.ServiceEstimate, 0, len(services))}
	for _, st := range services {
		var (
			e   models.ServiceEstimate
			err error
		)
		if req.Metrics != nil {
			e, err = estimate.EstimateFromMetrics(*req.Metrics, st, cfg.Pricing)
		} else {
			e, err = estimate.Estimate(req.Features, sqft, st, cfg.Pricing, estimate.WithGutterLength(req.GutterLengthFt))
		}
		if err != nil {
			return nil, err
		}
		out.Estimates = append(out.Estimates, e)
	}
	out.TotalEstimate = estimate.Total(out.Estimates)
	return out, nil
}
