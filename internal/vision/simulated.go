package vision

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/yourorg/estimator-api/internal/models"
)

// Simulated produces residential-looking detections without looking at the
// image. Latency, when set, is waited out before answering.
type Simulated struct {
	mu      sync.Mutex
	rng     *rand.Rand
	latency time.Duration
}

func NewSimulated(rng *rand.Rand, latency time.Duration) *Simulated {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulated{rng: rng, latency: latency}
}

func (s *Simulated) Analyze(ctx context.Context, _ Image) (Result, error) {
	start := time.Now()
	if s.latency > 0 {
		t := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return Result{}, ctx.Err()
		case <-t.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	windows := 8 + s.rng.IntN(17)
	doors := 1 + s.rng.IntN(3)
	features := make([]models.DetectedFeature, 0, windows+doors+1)
	for i := 0; i < windows; i++ {
		features = append(features, s.feature(models.FeatureWindow, 0.85, 0.14, 60, 40, 80, 40))
	}
	for i := 0; i < doors; i++ {
		features = append(features, s.feature(models.FeatureDoor, 0.90, 0.09, 70, 20, 100, 40))
	}
	features = append(features, roofFeature(0.94+s.rng.Float64()*0.05))

	return Result{
		Features:       features,
		Confidence:     0.92 + s.rng.Float64()*0.07,
		ProcessingTime: time.Since(start),
	}, nil
}

// feature draws a box of size [w, w+dw) x [h, h+dh) that stays inside the frame.
func (s *Simulated) feature(t models.FeatureType, conf, dconf, w, dw, h, dh float64) models.DetectedFeature {
	width := w + s.rng.Float64()*dw
	height := h + s.rng.Float64()*dh
	return models.DetectedFeature{
		Type:       t,
		Confidence: conf + s.rng.Float64()*dconf,
		BoundingBox: models.BoundingBox{
			X:      s.rng.Float64() * (FrameWidth - width),
			Y:      s.rng.Float64() * (FrameHeight - height),
			Width:  width,
			Height: height,
		},
		Area: width * height,
	}
}
