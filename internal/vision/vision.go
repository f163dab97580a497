// Package vision turns a property photo into typed feature detections.
package vision

import (
	"context"
	"time"

	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/llm"
)

const (
	FrameWidth  = 1920
	FrameHeight = 1080
)

// Image is one uploaded photo. URL is the stored reference, Data the
// original bytes.
type Image struct {
	URL         string
	Data        []byte
	ContentType string
	Filename    string
	Side        string
}

type Result struct {
	Features       []models.DetectedFeature
	Confidence     float64
	ProcessingTime time.Duration
	// Metrics is set by detectors backed by an inference endpoint.
	Metrics *llm.Metrics
	Tier    llm.Tier
}

type Detector interface {
	Analyze(ctx context.Context, img Image) (Result, error)
}

func roofFeature(confidence float64) models.DetectedFeature {
	return models.DetectedFeature{
		Type:        models.FeatureRoof,
		Confidence:  confidence,
		BoundingBox: models.BoundingBox{X: 0, Y: 0, Width: FrameWidth, Height: 600},
		Area:        FrameWidth * 600,
	}
}
