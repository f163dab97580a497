package events

import (
	"context"

	"github.com/yourorg/estimator-api/internal/metrics"
	"github.com/yourorg/estimator-api/internal/tenant"
	"go.uber.org/zap"
)

// Recorder consumes completed analyses into Prometheus series.
type Recorder struct {
	Sub Subscriber
	Log *zap.Logger
}

func (r *Recorder) Run(ctx context.Context) {
	sub := r.Sub.SubscribeAnalysisCompleted()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			r.record(evt)
		}
	}
}

func (r *Recorder) record(evt AnalysisCompleted) {
	for _, e := range evt.Estimates {
		metrics.EstimatesTotal.WithLabelValues(string(e.ServiceType)).Inc()
	}
	metrics.EstimateValue.WithLabelValues(companyLabel(evt)).Observe(evt.TotalEstimate)
	if r.Log != nil {
		r.Log.Debug("analysis.completed",
			zap.String("analysis_id", evt.AnalysisID),
			zap.String("company_id", evt.CompanyID),
			zap.Float64("total_estimate", evt.TotalEstimate),
			zap.Int("images", evt.ImageCount),
		)
	}
}

// companyLabel keeps series bounded by the companies that have a stored
// configuration. Any other company id comes from the caller.
func companyLabel(evt AnalysisCompleted) string {
	if evt.StoredTenant && evt.CompanyID != "" {
		return evt.CompanyID
	}
	return tenant.DefaultCompanyID
}
