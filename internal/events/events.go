package events

import (
	"context"
	"time"

	"github.com/yourorg/estimator-api/internal/models"
)

// AnalysisCompleted is emitted once per finished property analysis.
type AnalysisCompleted struct {
	AnalysisID     string               `json:"analysisId"`
	CompanyID      string               `json:"companyId"`
	StoredTenant   bool                 `json:"storedTenant,omitempty"`
	PropertyKey    string               `json:"propertyKey,omitempty"`
	Estimates      []EstimateSummary    `json:"estimates"`
	ServiceTypes   []models.ServiceType `json:"serviceTypes"`
	TotalEstimate  float64              `json:"totalEstimate"`
	SquareFootage  int                  `json:"squareFootage"`
	TotalWindows   int                  `json:"totalWindows"`
	ImageCount     int                  `json:"imageCount"`
	ProcessingTime int64                `json:"processingTimeMs"`
	OccurredAt     time.Time            `json:"occurredAt"`
}

type EstimateSummary struct {
	ServiceType models.ServiceType `json:"serviceType"`
	TotalPrice  float64            `json:"totalPrice"`
}

type Publisher interface {
	PublishAnalysisCompleted(ctx context.Context, evt AnalysisCompleted) error
	Close() error
}

type Subscriber interface {
	SubscribeAnalysisCompleted() <-chan AnalysisCompleted
}

// Bus is an in-process channel of events.
type Bus struct{ ch chan AnalysisCompleted }

// NewInMemory returns a Bus that is both Publisher and Subscriber. Events
// published while the buffer is full are dropped.
func NewInMemory(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{ch: make(chan AnalysisCompleted, buffer)}
}

func (m *Bus) PublishAnalysisCompleted(_ context.Context, evt AnalysisCompleted) error {
	select {
	case m.ch <- evt:
	default:
	}
	return nil
}

func (m *Bus) SubscribeAnalysisCompleted() <-chan AnalysisCompleted { return m.ch }

func (m *Bus) Close() error { return nil }

// Fanout publishes to every publisher and returns the first error.
type Fanout []Publisher

func (f Fanout) PublishAnalysisCompleted(ctx context.Context, evt AnalysisCompleted) error {
	var first error
	for _, p := range f {
		if err := p.PublishAnalysisCompleted(ctx, evt); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f Fanout) Close() error {
	var first error
	for _, p := range f {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
