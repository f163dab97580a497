package models

type FeatureType string

const (
	FeatureWindow FeatureType = "window"
	FeatureDoor   FeatureType = "door"
	FeatureRoof   FeatureType = "roof"
	FeatureWall   FeatureType = "wall"
)

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectedFeature is a single typed region found in one photo.
type DetectedFeature struct {
	Type        FeatureType `json:"type"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Area        float64     `json:"area"`
}

// CountFeatures returns how many features have the given type.
func CountFeatures(features []DetectedFeature, t FeatureType) int {
	n := 0
	for _, f := range features {
		if f.Type == t {
			n++
		}
	}
	return n
}
