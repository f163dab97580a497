package estimate

type HouseWashingPricing struct {
	BasePrice      float64 `json:"basePrice"`
	PricePerSqFt   float64 `json:"pricePerSqFt"`
	PricePerWindow float64 `json:"pricePerWindow"`
}

type RoofCleaningPricing struct {
	BasePrice    float64 `json:"basePrice"`
	PricePerSqFt float64 `json:"pricePerSqFt"`
}

type GutterCleaningPricing struct {
	BasePrice        float64 `json:"basePrice"`
	PricePerLinearFt float64 `json:"pricePerLinearFt"`
}

// Pricing is one tenant's rate card. It is passed explicitly into every
// calculation; the engine holds no configuration of its own.
type Pricing struct {
	HouseWashing   HouseWashingPricing   `json:"houseWashing"`
	RoofCleaning   RoofCleaningPricing   `json:"roofCleaning"`
	GutterCleaning GutterCleaningPricing `json:"gutterCleaning"`
}

func DefaultPricing() Pricing {
	return Pricing{
		HouseWashing:   HouseWashingPricing{BasePrice: 150, PricePerSqFt: 0.15, PricePerWindow: 8},
		RoofCleaning:   RoofCleaningPricing{BasePrice: 200, PricePerSqFt: 0.25},
		GutterCleaning: GutterCleaningPricing{BasePrice: 100, PricePerLinearFt: 3.50},
	}
}
