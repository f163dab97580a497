package models

import "time"

type PropertyAnalysis struct {
	ID                     string            `json:"id"`
	CompanyID              string            `json:"companyId"`
	ImageID                string            `json:"imageId"`
	Images                 []string          `json:"images"`
	Features               []DetectedFeature `json:"features"`
	TotalWindows           int               `json:"totalWindows"`
	TotalDoors             int               `json:"totalDoors"`
	EstimatedSquareFootage int               `json:"estimatedSquareFootage"`
	Confidence             float64           `json:"confidence"`
	ProcessingTime         int64             `json:"processingTime"` // milliseconds
	PropertyData           *PropertyData     `json:"propertyData,omitempty"`
	Estimates              []ServiceEstimate `json:"estimates,omitempty"`
	TotalEstimate          float64           `json:"totalEstimate"`
	CreatedAt              time.Time         `json:"createdAt"`
}
