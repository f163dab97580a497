package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DecodedObject(t *testing.T) {
	input := map[string]any{
		"windowCount":    14.0,
		"gutterLengthFt": 180.0,
		"wallAreaSqFt":   2200.0,
		"dimensions":     map[string]any{"heightFt": 20.0, "widthFt": 45.0},
		"stories":        2.0,
		"difficulty":     map[string]any{"height": "moderate", "accessibility": "limited", "condition": "weathered"},
	}
	m, ok := Parse(input)
	require.True(t, ok)
	assert.Equal(t, 14.0, m.WindowCount)
	assert.Equal(t, 180.0, m.GutterLengthFt)
	assert.Equal(t, 2200.0, m.WallAreaSqFt)
	assert.Equal(t, 20.0, m.Dimensions.HeightFt)
	assert.Equal(t, 45.0, m.Dimensions.WidthFt)
	assert.Equal(t, 2.0, m.Stories)
	assert.Equal(t, "limited", m.Difficulty.Accessibility)
}

func TestParse_StringifiedUnits(t *testing.T) {
	text := `{"windowCount":"10","gutterLengthFt":"150ft","wallAreaSqFt":"1900 sq ft","dimensions":{"heightFt":"18","widthFt":"40"},"stories":"2"}`
	m, ok := Parse(text)
	require.True(t, ok)
	assert.Equal(t, 10.0, m.WindowCount)
	assert.Equal(t, 150.0, m.GutterLengthFt)
	assert.Equal(t, 1900.0, m.WallAreaSqFt)
	assert.Equal(t, 18.0, m.Dimensions.HeightFt)
	assert.Equal(t, 40.0, m.Dimensions.WidthFt)
	assert.Equal(t, 2.0, m.Stories)
	assert.Equal(t, Difficulty{}, m.Difficulty)
	assert.Equal(t, "", m.Side)
}

func TestParse_Defaults(t *testing.T) {
	m, ok := Parse(`{}`)
	require.True(t, ok)
	assert.Equal(t, 0.0, m.WindowCount)
	assert.Equal(t, 1.0, m.Stories, "stories defaults to one")
	assert.Equal(t, Dimensions{}, m.Dimensions)

	m, ok = Parse(`{"stories":"n/a","windowCount":true,"gutterLengthFt":null,"wallAreaSqFt":false}`)
	require.True(t, ok)
	assert.Equal(t, 1.0, m.Stories, "unparseable strings take the default")
	assert.Equal(t, 1.0, m.WindowCount, "true reads as one")
	assert.Equal(t, 0.0, m.GutterLengthFt)
	assert.Equal(t, 0.0, m.WallAreaSqFt)
}

func TestParse_NullIsZeroMissingIsDefault(t *testing.T) {
	m, ok := Parse(`{"windowCount":4}`)
	require.True(t, ok)
	assert.Equal(t, 1.0, m.Stories)

	m, ok = Parse(`{"windowCount":4,"stories":null,"dimensions":{"heightFt":null}}`)
	require.True(t, ok)
	assert.Equal(t, 0.0, m.Stories, "an explicit null is zero, not the default")
	assert.Equal(t, 0.0, m.Dimensions.HeightFt)

	m, ok = Parse(`{"stories":{"value":2},"windowCount":[3]}`)
	require.True(t, ok)
	assert.Equal(t, 1.0, m.Stories, "objects take the default")
	assert.Equal(t, 0.0, m.WindowCount)
}

func TestInterpret_TopLevelNumberFallsToRegex(t *testing.T) {
	m, ok := Parse(`5`)
	assert.False(t, ok)
	assert.Nil(t, m)

	res := Interpret([]byte("5"), "front")
	assert.Equal(t, TierRegex, res.Tier)
	require.NotNil(t, res.Metrics)
	assert.Equal(t, 5.0, res.Metrics.WindowCount)
	assert.Equal(t, 1.0, res.Metrics.Stories)
	assert.Equal(t, "front", res.Metrics.Side)
}

func TestParse_NegativePassesThrough(t *testing.T) {
	m, ok := Parse(`{"windowCount":-5,"wallAreaSqFt":"-12.5 sq ft"}`)
	require.True(t, ok)
	assert.Equal(t, -5.0, m.WindowCount)
	assert.Equal(t, -12.5, m.WallAreaSqFt)
}

func TestParse_Failures(t *testing.T) {
	for _, in := range []any{nil, "", "not json at all", `[1,2,3]`, `"just a string"`, `null`} {
		m, ok := Parse(in)
		assert.False(t, ok, "input %v", in)
		assert.Nil(t, m)
	}
}

func TestParse_Idempotent(t *testing.T) {
	inputs := []string{
		`{"windowCount":"10","gutterLengthFt":"150ft","wallAreaSqFt":"1900 sq ft","dimensions":{"heightFt":"18","widthFt":"40"},"stories":"2"}`,
		`{"windowCount":3.5,"difficulty":{"height":"high"},"side":"back"}`,
		`{}`,
	}
	for _, in := range inputs {
		first, ok := Parse(in)
		require.True(t, ok)
		b, err := json.Marshal(first)
		require.NoError(t, err)
		second, ok := Parse(string(b))
		require.True(t, ok)
		assert.Equal(t, first, second)

		third, ok := Parse(first)
		require.True(t, ok)
		assert.Equal(t, first, third)
	}
}

func TestExtractNumbers(t *testing.T) {
	m := ExtractNumbers("I see 14 windows, roughly 160.5 ft of gutter, 2100 sq ft of siding, 22 by 48 feet, 2 stories, 9 trees", "front")
	assert.Equal(t, 14.0, m.WindowCount)
	assert.Equal(t, 160.5, m.GutterLengthFt)
	assert.Equal(t, 2100.0, m.WallAreaSqFt)
	assert.Equal(t, 22.0, m.Dimensions.HeightFt)
	assert.Equal(t, 48.0, m.Dimensions.WidthFt)
	assert.Equal(t, 2.0, m.Stories)
	assert.Equal(t, "front", m.Side)

	empty := ExtractNumbers("nothing useful", "left")
	assert.Equal(t, 0.0, empty.WindowCount)
	assert.Equal(t, 1.0, empty.Stories)
}

func TestFallback(t *testing.T) {
	m := Fallback("roof")
	assert.Equal(t, 12.0, m.WindowCount)
	assert.Equal(t, 120.0, m.GutterLengthFt)
	assert.Equal(t, "moderate", m.Difficulty.Height)
	assert.Equal(t, "roof", m.Side)
}
