package vision

import (
	"context"
	"math"
	"time"

	"github.com/yourorg/estimator-api/internal/metrics"
	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/llm"
)

const (
	structuredConfidence = 0.9
	fallbackConfidence   = 0.6
	// maxWindows caps runaway counts from the model.
	maxWindows = 200
)

type Analyzer interface {
	Analyze(ctx context.Context, image []byte, contentType, side string) (llm.Result, error)
}

// LLM asks an inference endpoint for façade metrics and converts them into
// detections of the same shape the simulated detector returns.
type LLM struct {
	client Analyzer
}

func NewLLM(client Analyzer) *LLM { return &LLM{client: client} }

func (d *LLM) Analyze(ctx context.Context, img Image) (Result, error) {
	start := time.Now()
	res, err := d.client.Analyze(ctx, img.Data, img.ContentType, img.Side)
	if err != nil {
		return Result{}, err
	}
	metrics.LLMParseTier.WithLabelValues(string(res.Tier)).Inc()

	m := res.Metrics
	if m == nil {
		m = llm.Fallback(img.Side)
	}
	conf := fallbackConfidence
	if res.Tier == llm.TierStructured {
		conf = structuredConfidence
	}
	return Result{
		Features:       FeaturesFromMetrics(*m, conf),
		Confidence:     conf,
		ProcessingTime: time.Since(start),
		Metrics:        m,
		Tier:           res.Tier,
	}, nil
}

// FeaturesFromMetrics lays windowCount windows out on a grid, adds one door
// and one roof, and a wall carrying the measured area when there is one.
func FeaturesFromMetrics(m llm.Metrics, confidence float64) []models.DetectedFeature {
	n := int(math.Round(m.WindowCount))
	n = min(max(n, 0), maxWindows)

	features := make([]models.DetectedFeature, 0, n+3)
	const cols = 8
	const w, h = 80.0, 100.0
	for i := 0; i < n; i++ {
		col, row := i%cols, i/cols
		features = append(features, models.DetectedFeature{
			Type:       models.FeatureWindow,
			Confidence: confidence,
			BoundingBox: models.BoundingBox{
				X:      40 + float64(col)*(FrameWidth-80)/cols,
				Y:      math.Mod(620+float64(row)*(h+20), FrameHeight-h),
				Width:  w,
				Height: h,
			},
			Area: w * h,
		})
	}
	features = append(features,
		models.DetectedFeature{
			Type:        models.FeatureDoor,
			Confidence:  confidence,
			BoundingBox: models.BoundingBox{X: FrameWidth/2 - 40, Y: FrameHeight - 240, Width: 80, Height: 220},
			Area:        80 * 220,
		},
		roofFeature(confidence),
	)
	if m.WallAreaSqFt > 0 {
		features = append(features, models.DetectedFeature{
			Type:        models.FeatureWall,
			Confidence:  confidence,
			BoundingBox: models.BoundingBox{X: 0, Y: 600, Width: FrameWidth, Height: FrameHeight - 600},
			Area:        m.WallAreaSqFt,
		})
	}
	return features
}
