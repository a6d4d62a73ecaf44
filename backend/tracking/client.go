// Package tracking wraps a parcel tracking API for the `parcel` command.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/justin-russell/matrix-gptbot/backend"
)

const backendName = "tracking"

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.trackingmore.com"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Configured() bool { return strings.TrimSpace(c.APIKey) != "" }

type Status struct {
	TrackingNumber string
	Carrier        string
	Status         string
	LastEvent      string
	LastUpdate     time.Time
}

type trackRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

type trackResponse struct {
	Data struct {
		TrackingNumber string `json:"tracking_number"`
		CarrierCode    string `json:"carrier_code"`
		Status         string `json:"status"`
		LatestEvent    string `json:"latest_event"`
		UpdatedAt      string `json:"updated_at"`
	} `json:"data"`
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
}

// Track looks up the current status of a tracking number.
func (c *Client) Track(ctx context.Context, trackingNumber string) (Status, error) {
	if !c.Configured() {
		return Status{}, backend.NewError(backend.KindUnsupported, backendName, "no API key configured")
	}
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return Status{}, backend.NewError(backend.KindInvalidRequest, backendName, "empty tracking number")
	}

	b, err := json.Marshal(trackRequest{TrackingNumber: trackingNumber})
	if err != nil {
		return Status{}, backend.NewError(backend.KindInvalidRequest, backendName, "marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v4/trackings/realtime", bytes.NewReader(b))
	if err != nil {
		return Status{}, backend.NewError(backend.KindInvalidRequest, backendName, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Tracking-Api-Key", c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Status{}, backend.NewError(backend.KindUnavailable, backendName, "request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Status{}, backend.NewError(backend.KindUnavailable, backendName, "read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Status{}, backend.NewError(backend.KindFromStatus(resp.StatusCode), backendName, "http %d: %s", resp.StatusCode, string(raw))
	}

	var out trackResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Status{}, backend.NewError(backend.KindUnavailable, backendName, "unparseable response: %v", err)
	}

	st := Status{
		TrackingNumber: out.Data.TrackingNumber,
		Carrier:        out.Data.CarrierCode,
		Status:         out.Data.Status,
		LastEvent:      out.Data.LatestEvent,
	}
	if ts, err := time.Parse(time.RFC3339, out.Data.UpdatedAt); err == nil {
		st.LastUpdate = ts
	}
	return st, nil
}
