package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Tier records how a response was turned into Metrics.
type Tier string

const (
	TierStructured Tier = "structured"
	TierRegex      Tier = "regex"
	TierStatic     Tier = "static"
)

type Result struct {
	Metrics *Metrics
	Raw     any
	Tier    Tier
}

type Client struct {
	url  string
	key  string
	http *retryablehttp.Client
}

func NewClient(url, key string) *Client {
	rc := retryablehttp.NewClient()
	// one attempt per call; 5xx responses reach the status mapping below
	rc.RetryMax = 0
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = 45 * time.Second
	rc.Logger = nil

	return &Client{url: url, key: key, http: rc}
}

func (c *Client) Configured() bool { return c != nil && c.url != "" && c.key != "" }

// Analyze sends one exterior photo to the inference endpoint. Without an
// endpoint it answers with Fallback so callers keep working.
func (c *Client) Analyze(ctx context.Context, image []byte, contentType, side string) (Result, error) {
	if !c.Configured() {
		m := Fallback(side)
		return Result{Metrics: m, Raw: m, Tier: TierStatic}, nil
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	body, err := json.Marshal(map[string]any{
		"prompt": Prompt(side),
		"image":  fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image)),
		"side":   side,
	})
	if err != nil {
		return Result{}, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	text, err := readAllLimit(resp.Body, 4<<20)
	if err != nil {
		return Result{}, err
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("llm error %d: %s", resp.StatusCode, truncate(string(text), 256))
	}
	return Interpret(text, side), nil
}

// Interpret applies the structured → regex fallback chain to a response body.
func Interpret(text []byte, side string) Result {
	var decoded any
	if err := json.Unmarshal(text, &decoded); err == nil {
		if m, ok := ParseValue(unwrap(decoded)); ok {
			if m.Side == "" {
				m.Side = side
			}
			return Result{Metrics: m, Raw: decoded, Tier: TierStructured}
		}
	}
	return Result{Metrics: ExtractNumbers(string(text), side), Raw: string(text), Tier: TierRegex}
}

// unwrap handles endpoints that return the model's JSON as a string, either
// bare or under a "text"/"output" key.
func unwrap(v any) any {
	switch t := v.(type) {
	case string:
		var inner any
		if err := json.Unmarshal([]byte(t), &inner); err == nil {
			return inner
		}
	case map[string]any:
		if _, ok := t["windowCount"]; ok {
			return t
		}
		for _, k := range []string{"text", "output", "result"} {
			if s, ok := t[k].(string); ok {
				var inner any
				if err := json.Unmarshal([]byte(s), &inner); err == nil {
					return inner
				}
			}
			if m, ok := t[k].(map[string]any); ok {
				return m
			}
		}
	}
	return v
}

func Prompt(side string) string {
	return `Analyze this house exterior image for cleaning service estimation. Provide detailed measurements and counts:

CRITICAL REQUIREMENTS:
1. Count all visible windows (including different sizes and types)
2. Measure gutter length in linear feet
3. Calculate wall/siding surface area in square feet
4. Estimate building dimensions (height and width in feet)
5. Determine number of stories
6. Assess difficulty factors (height, accessibility, condition)

Return precise measurements suitable for professional service quotes.
Be conservative but accurate in your estimates.

Image side: ` + side + `

Return a valid JSON object with keys: windowCount, gutterLengthFt, wallAreaSqFt, dimensions {heightFt, widthFt}, stories, difficulty {height, accessibility, condition}.`
}

func readAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
