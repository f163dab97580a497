package attom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.gateway.attomdata.com"
	DetailEndpoint = "property/detail"
)

var (
	// ErrNotFound is returned when ATTOM has no record for the address.
	ErrNotFound = errors.New("attom: no property for address")
	// ErrDailyLimitExceeded is returned once the plan quota is spent.
	ErrDailyLimitExceeded = errors.New("attom: daily limit exceeded")
)

type Client struct {
	key     string
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

// NewClient builds a client paced to rps requests per second (burst 2).
// rps <= 0 disables pacing.
func NewClient(apiKey, baseURL string, rps float64) *Client {
	rc := retryablehttp.NewClient()
	// one attempt per call; 5xx responses reach the status mapping below
	rc.RetryMax = 0
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = 6 * time.Second
	rc.Logger = nil
	rc.CheckRetry = checkRetry

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 2)
	}
	return &Client{key: apiKey, baseURL: baseURL, http: rc, limiter: lim}
}

func (c *Client) Configured() bool { return c != nil && c.key != "" }

// PropertyDetail fetches the raw property/detail payload for an address.
// address1 is the street line, address2 "city, state zip".
// Docs: GET /propertyapi/v1.0.0/property/detail
func (c *Client) PropertyDetail(ctx context.Context, address1, address2 string) ([]byte, error) {
	q := url.Values{}
	q.Set("address1", address1)
	if address2 != "" {
		q.Set("address2", address2)
	}
	u := fmt.Sprintf("%s/propertyapi/v1.0.0/%s?%s", c.baseURL, DetailEndpoint, q.Encode())

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("apikey", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrDailyLimitExceeded
	case resp.StatusCode >= 400:
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("attom error %d: %v", resp.StatusCode, body)
	}
	return ioReadAllLimit(resp.Body, 4<<20) // 4MB guard
}

// checkRetry keeps quota responses out of the retry path so they surface
// as ErrDailyLimitExceeded.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}
