package models

// PropertyData is what a records lookup knows about an address. Optional
// attributes are pointers so absent values stay out of the JSON.
type PropertyData struct {
	Address       string   `json:"address"`
	SquareFootage *int     `json:"squareFootage,omitempty"`
	PropertyType  string   `json:"propertyType,omitempty"`
	YearBuilt     *int     `json:"yearBuilt,omitempty"`
	Bedrooms      *int     `json:"bedrooms,omitempty"`
	Bathrooms     *float64 `json:"bathrooms,omitempty"`
	LotSize       *int     `json:"lotSize,omitempty"`
	RecordID      string   `json:"recordId,omitempty"`
	Source        string   `json:"source,omitempty"`
	Confidence    float64  `json:"confidence"`
}

func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }
