package attom

// Detail is the subset of a property/detail record the estimator uses.
// Zero values mean ATTOM did not report the attribute.
type Detail struct {
	AttomID      string  `json:"attomId"`
	Line1        string  `json:"line1"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Zip          string  `json:"zip"`
	PropertyType string  `json:"propertyType"`
	LivingSqft   int     `json:"livingSqft"`
	YearBuilt    int     `json:"yearBuilt"`
	Beds         int     `json:"beds"`
	Baths        float64 `json:"baths"`
	LotSqft      int     `json:"lotSqft"`
}
