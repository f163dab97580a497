package attom

import (
	"encoding/json"
	"math"
)

// stringNumber accepts string or number JSON and stores as string
type stringNumber string

func (s *stringNumber) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = stringNumber(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = stringNumber(num.String())
	return nil
}

// MapDetail extracts the first property of a property/detail payload.
// Payload shape differs by plan, so every field is optional.
func MapDetail(raw []byte) (Detail, error) {
	type dProperty struct {
		Identifier struct {
			AttomID stringNumber `json:"attomId"`
			APN     stringNumber `json:"apn"`
		} `json:"identifier"`
		Address struct {
			OneLine string `json:"oneLine"`
			Line1   string `json:"line1"`
			City    string `json:"locality"`
			State   string `json:"countrySubd"`
			Zip     string `json:"postal1"`
		} `json:"address"`
		Summary struct {
			PropClass    string `json:"propclass"`
			PropertyType string `json:"propertyType"`
			YearBuilt    int    `json:"yearbuilt"`
		} `json:"summary"`
		Building struct {
			Size struct {
				Living    float64 `json:"livingsize"`
				Universal float64 `json:"universalsize"`
				Building  float64 `json:"bldgsize"`
			} `json:"size"`
			Rooms struct {
				Beds       int     `json:"beds"`
				BathsTotal float64 `json:"bathstotal"`
				BathsFull  int     `json:"bathsfull"`
			} `json:"rooms"`
		} `json:"building"`
		Lot struct {
			SizeAcres float64 `json:"lotsize1"`
			SizeSqft  float64 `json:"lotsize2"`
		} `json:"lot"`
	}
	var root struct {
		Property []dProperty `json:"property"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return Detail{}, err
	}
	if len(root.Property) == 0 {
		return Detail{}, ErrNotFound
	}
	p := root.Property[0]

	baths := p.Building.Rooms.BathsTotal
	if baths == 0 {
		baths = float64(p.Building.Rooms.BathsFull)
	}
	lot := p.Lot.SizeSqft
	if lot == 0 && p.Lot.SizeAcres > 0 {
		lot = p.Lot.SizeAcres * 43560
	}
	return Detail{
		AttomID:      firstNonEmpty(string(p.Identifier.AttomID), string(p.Identifier.APN)),
		Line1:        firstNonEmpty(p.Address.Line1, p.Address.OneLine),
		City:         p.Address.City,
		State:        p.Address.State,
		Zip:          p.Address.Zip,
		PropertyType: firstNonEmpty(p.Summary.PropertyType, p.Summary.PropClass),
		LivingSqft:   roundPositive(firstPositive(p.Building.Size.Living, p.Building.Size.Universal, p.Building.Size.Building)),
		YearBuilt:    max(p.Summary.YearBuilt, 0),
		Beds:         max(p.Building.Rooms.Beds, 0),
		Baths:        math.Max(baths, 0),
		LotSqft:      roundPositive(lot),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func roundPositive(v float64) int {
	if v <= 0 {
		return 0
	}
	return int(math.Round(v))
}
