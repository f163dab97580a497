package estimate

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/llm"
)

var ErrUnsupportedService = errors.New("unsupported service type")

const (
	MinSquareFootage = 800
	MaxSquareFootage = 5000

	roofPitchFactor   = 1.3
	gutterSafetyRatio = 1.2
	sqFtPerWindow     = 125
	sqFtVariation     = 200
)

type options struct {
	gutterLengthFt float64
}

type Option func(*options)

// WithGutterLength replaces the perimeter approximation with a measured
// gutter length. Non-positive values are ignored.
func WithGutterLength(ft float64) Option {
	return func(o *options) {
		if ft > 0 {
			o.gutterLengthFt = ft
		}
	}
}

// Supported reports whether the engine can price serviceType.
func Supported(serviceType models.ServiceType) bool {
	switch serviceType {
	case models.HouseWashing, models.RoofCleaning, models.GutterCleaning:
		return true
	}
	return false
}

// Estimate prices one service for a property.
func Estimate(features []models.DetectedFeature, squareFootage int, serviceType models.ServiceType, pricing Pricing, opts ...Option) (models.ServiceEstimate, error) {
	if !Supported(serviceType) {
		return models.ServiceEstimate{}, fmt.Errorf("%w: %s", ErrUnsupportedService, serviceType)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if squareFootage < 0 {
		squareFootage = 0
	}
	windows := models.CountFeatures(features, models.FeatureWindow)

	switch serviceType {
	case models.HouseWashing:
		return houseWashing(windows, squareFootage, pricing.HouseWashing), nil
	case models.RoofCleaning:
		return roofCleaning(squareFootage, pricing.RoofCleaning), nil
	default:
		return gutterCleaning(squareFootage, o.gutterLengthFt, pricing.GutterCleaning), nil
	}
}

// EstimateFromMetrics prices a service straight from coerced inference
// metrics, without detections.
func EstimateFromMetrics(m llm.Metrics, serviceType models.ServiceType, pricing Pricing) (models.ServiceEstimate, error) {
	if !Supported(serviceType) {
		return models.ServiceEstimate{}, fmt.Errorf("%w: %s", ErrUnsupportedService, serviceType)
	}
	sqft := SquareFootageFromMetrics(m)
	switch serviceType {
	case models.HouseWashing:
		windows := int(math.Round(m.WindowCount))
		if windows < 0 {
			windows = 0
		}
		return houseWashing(windows, sqft, pricing.HouseWashing), nil
	case models.RoofCleaning:
		return roofCleaning(sqft, pricing.RoofCleaning), nil
	default:
		return gutterCleaning(sqft, m.GutterLengthFt, pricing.GutterCleaning), nil
	}
}

func houseWashing(windows, sqft int, p HouseWashingPricing) models.ServiceEstimate {
	sqftCharge := float64(sqft) * p.PricePerSqFt
	windowCharge := float64(windows) * p.PricePerWindow
	lines := []models.EstimateBreakdown{
		baseLine("Base House Washing Service", p.BasePrice),
		{Item: fmt.Sprintf("House Washing (%d sq ft)", sqft), Quantity: float64(sqft), UnitPrice: p.PricePerSqFt, TotalPrice: sqftCharge},
	}
	if windows > 0 {
		lines = append(lines, models.EstimateBreakdown{
			Item:       fmt.Sprintf("Window Cleaning (%d windows)", windows),
			Quantity:   float64(windows),
			UnitPrice:  p.PricePerWindow,
			TotalPrice: windowCharge,
		})
	}
	return build(models.HouseWashing, p.BasePrice, sqftCharge, windowCharge, lines)
}

func roofCleaning(sqft int, p RoofCleaningPricing) models.ServiceEstimate {
	roofArea := int(math.Round(float64(sqft) * roofPitchFactor))
	charge := float64(roofArea) * p.PricePerSqFt
	lines := []models.EstimateBreakdown{
		baseLine("Base Roof Cleaning Service", p.BasePrice),
		{Item: fmt.Sprintf("Roof Cleaning (%d sq ft)", roofArea), Quantity: float64(roofArea), UnitPrice: p.PricePerSqFt, TotalPrice: charge},
	}
	return build(models.RoofCleaning, p.BasePrice, charge, 0, lines)
}

func gutterCleaning(sqft int, measuredFt float64, p GutterCleaningPricing) models.ServiceEstimate {
	linearFeet := math.Round(measuredFt)
	if linearFeet <= 0 {
		linearFeet = float64(PerimeterFeet(sqft))
	}
	charge := linearFeet * p.PricePerLinearFt
	lines := []models.EstimateBreakdown{
		baseLine("Base Gutter Cleaning Service", p.BasePrice),
		{Item: fmt.Sprintf("Gutter Cleaning (%s linear ft)", trimFloat(linearFeet)), Quantity: linearFeet, UnitPrice: p.PricePerLinearFt, TotalPrice: charge},
	}
	return build(models.GutterCleaning, p.BasePrice, charge, 0, lines)
}

// PerimeterFeet approximates gutter run as the perimeter of a square
// footprint plus 20%.
func PerimeterFeet(sqft int) int {
	if sqft <= 0 {
		return 0
	}
	return int(math.Round(math.Sqrt(float64(sqft)) * 4 * gutterSafetyRatio))
}

func baseLine(item string, price float64) models.EstimateBreakdown {
	return models.EstimateBreakdown{Item: item, Quantity: 1, UnitPrice: price, TotalPrice: price}
}

func build(st models.ServiceType, base, sqftPrice, windowPrice float64, lines []models.EstimateBreakdown) models.ServiceEstimate {
	var total float64
	for _, l := range lines {
		total += l.TotalPrice
	}
	return models.ServiceEstimate{
		ID:                 uuid.NewString(),
		ServiceType:        st,
		BasePrice:          base,
		SquareFootagePrice: sqftPrice,
		WindowPrice:        windowPrice,
		TotalPrice:         RoundCents(total),
		Breakdown:          lines,
	}
}

// Total sums estimate totals, rounded to cents.
func Total(estimates []models.ServiceEstimate) float64 {
	var sum float64
	for _, e := range estimates {
		sum += e.TotalPrice
	}
	return RoundCents(sum)
}

func RoundCents(v float64) float64 { return math.Round(v*100) / 100 }

// SquareFootage derives living area from detections when no records lookup
// is available: 125 sq ft per window, ±200 noise, clamped to [800, 5000].
// A nil rng uses the global source.
func SquareFootage(features []models.DetectedFeature, rng *rand.Rand) int {
	windows := models.CountFeatures(features, models.FeatureWindow)
	var u float64
	if rng != nil {
		u = rng.Float64()
	} else {
		u = rand.Float64()
	}
	variation := u*2*sqFtVariation - sqFtVariation
	return Clamp(int(math.Round(float64(windows*sqFtPerWindow) + variation)))
}

// SquareFootageFromMetrics halves the measured wall area, assuming 1600 sq ft
// of siding when the model reported none.
func SquareFootageFromMetrics(m llm.Metrics) int {
	wall := m.WallAreaSqFt
	if wall <= 0 {
		wall = 1600
	}
	return Clamp(int(math.Round(wall / 2)))
}

func Clamp(sqft int) int {
	return max(MinSquareFootage, min(MaxSquareFootage, sqft))
}

func trimFloat(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
