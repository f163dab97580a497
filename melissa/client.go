package melissa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const DefaultBaseURL = "https://address.melissadata.net"

// ErrNoResult means Melissa answered but returned no formatted address.
var ErrNoResult = errors.New("melissa: no formatted address")

type Client struct {
	key     string
	baseURL string
	http    *retryablehttp.Client
}

func NewClient(customerID, baseURL string) *Client {
	rc := retryablehttp.NewClient()
	// one attempt per call; 5xx responses reach the status mapping below
	rc.RetryMax = 0
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{key: customerID, baseURL: strings.TrimRight(baseURL, "/"), http: rc}
}

func (c *Client) Configured() bool { return c != nil && c.key != "" }

type record struct {
	RecordID     string `json:"RecordID"`
	AddressLine1 string `json:"AddressLine1"`
	Country      string `json:"Country"`
}

type request struct {
	TransmissionReference string   `json:"TransmissionReference"`
	CustomerID            string   `json:"CustomerID"`
	Records               []record `json:"Records"`
}

type response struct {
	Records []struct {
		FormattedAddress string `json:"FormattedAddress"`
		Results          string `json:"Results"`
	} `json:"Records"`
}

// Standardize returns Melissa's formatted form of a US address.
func (c *Client) Standardize(ctx context.Context, address string) (string, error) {
	body, err := json.Marshal(request{
		TransmissionReference: "estimator-api",
		CustomerID:            c.key,
		Records:               []record{{RecordID: "1", AddressLine1: address, Country: "US"}},
	})
	if err != nil {
		return "", err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/WEB/GlobalAddress/doGlobalAddress", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return "", fmt.Errorf("melissa error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Records) == 0 || strings.TrimSpace(out.Records[0].FormattedAddress) == "" {
		return "", ErrNoResult
	}
	return strings.TrimSpace(out.Records[0].FormattedAddress), nil
}
