package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type Dimensions struct {
	HeightFt float64 `json:"heightFt"`
	WidthFt  float64 `json:"widthFt"`
}

type Difficulty struct {
	Height        string `json:"height"`
	Accessibility string `json:"accessibility"`
	Condition     string `json:"condition"`
}

// Metrics is the strict shape every inference response is coerced into.
type Metrics struct {
	WindowCount    float64    `json:"windowCount"`
	GutterLengthFt float64    `json:"gutterLengthFt"`
	WallAreaSqFt   float64    `json:"wallAreaSqFt"`
	Dimensions     Dimensions `json:"dimensions"`
	Stories        float64    `json:"stories"`
	Difficulty     Difficulty `json:"difficulty"`
	Side           string     `json:"side"`
}

var (
	reNonNumeric  = regexp.MustCompile(`[^0-9.\-]`)
	reFloatPrefix = regexp.MustCompile(`^-?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)`)
)

// Parse coerces text (a JSON document) or an already decoded value into
// Metrics. The second return is false when the input cannot be read as a
// JSON object; it never panics.
func Parse(in any) (*Metrics, bool) {
	switch v := in.(type) {
	case nil:
		return nil, false
	case string:
		return parseText([]byte(v))
	case []byte:
		return parseText(v)
	case json.RawMessage:
		return parseText(v)
	default:
		return ParseValue(v)
	}
}

func parseText(b []byte) (*Metrics, bool) {
	var data any
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, false
	}
	return ParseValue(data)
}

// ParseValue coerces a decoded JSON value. Structs and other typed values are
// round-tripped through encoding/json first so callers can pass a Metrics.
func ParseValue(v any) (*Metrics, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
			return nil, false
		}
	}
	dims := nested(obj, "dimensions")
	diff := nested(obj, "difficulty")
	return &Metrics{
		WindowCount:    field(obj, "windowCount", 0),
		GutterLengthFt: field(obj, "gutterLengthFt", 0),
		WallAreaSqFt:   field(obj, "wallAreaSqFt", 0),
		Dimensions: Dimensions{
			HeightFt: field(dims, "heightFt", 0),
			WidthFt:  field(dims, "widthFt", 0),
		},
		Stories: field(obj, "stories", 1),
		Difficulty: Difficulty{
			Height:        coerceString(diff["height"]),
			Accessibility: coerceString(diff["accessibility"]),
			Condition:     coerceString(diff["condition"]),
		},
		Side: coerceString(obj["side"]),
	}, true
}

func nested(obj map[string]any, key string) map[string]any {
	if m, ok := obj[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// field reads key as a number. An absent key takes fallback; a present
// null reads as zero.
func field(obj map[string]any, key string, fallback float64) float64 {
	v, ok := obj[key]
	if !ok {
		return fallback
	}
	return coerceNumber(v, fallback)
}

func coerceNumber(v any, fallback float64) float64 {
	var n float64
	switch t := v.(type) {
	case nil:
		n = 0
	case bool:
		if t {
			n = 1
		}
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return fallback
		}
		n = f
	case string:
		lead := reFloatPrefix.FindString(reNonNumeric.ReplaceAllString(t, ""))
		f, err := strconv.ParseFloat(lead, 64)
		if err != nil {
			return fallback
		}
		n = f
	default:
		return fallback
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fallback
	}
	return n
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

var reNumber = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// ExtractNumbers is the best-effort reading of free text: the first six
// numbers found fill the numeric fields in declaration order.
func ExtractNumbers(text, side string) *Metrics {
	found := reNumber.FindAllString(text, 6)
	at := func(i int, def float64) float64 {
		if i >= len(found) {
			return def
		}
		f, err := strconv.ParseFloat(found[i], 64)
		if err != nil {
			return def
		}
		return f
	}
	return &Metrics{
		WindowCount:    at(0, 0),
		GutterLengthFt: at(1, 0),
		WallAreaSqFt:   at(2, 0),
		Dimensions:     Dimensions{HeightFt: at(3, 0), WidthFt: at(4, 0)},
		Stories:        at(5, 1),
		Side:           side,
	}
}

// Fallback is the conservative record used when no inference endpoint is
// configured.
func Fallback(side string) *Metrics {
	return &Metrics{
		WindowCount:    12,
		GutterLengthFt: 120,
		WallAreaSqFt:   1800,
		Dimensions:     Dimensions{HeightFt: 18, WidthFt: 40},
		Stories:        2,
		Difficulty:     Difficulty{Height: "moderate", Accessibility: "good", Condition: "average"},
		Side:           side,
	}
}
