package models

type ServiceType string

const (
	HouseWashing   ServiceType = "house_washing"
	RoofCleaning   ServiceType = "roof_cleaning"
	GutterCleaning ServiceType = "gutter_cleaning"
)

// ServiceTypes lists every service the estimator can price.
var ServiceTypes = []ServiceType{HouseWashing, RoofCleaning, GutterCleaning}

type EstimateBreakdown struct {
	Item       string  `json:"item"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
}

type ServiceEstimate struct {
	ID                 string              `json:"id"`
	AnalysisID         string              `json:"analysisId"`
	ServiceType        ServiceType         `json:"serviceType"`
	BasePrice          float64             `json:"basePrice"`
	SquareFootagePrice float64             `json:"squareFootagePrice"`
	WindowPrice        float64             `json:"windowPrice"`
	TotalPrice         float64             `json:"totalPrice"`
	Breakdown          []EstimateBreakdown `json:"breakdown"`
}
