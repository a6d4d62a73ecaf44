// Package wolfram wraps the WolframAlpha Short Answers API for the
// `calculate` command. A missing app ID disables the adapter rather than
// failing the process.
package wolfram

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/justin-russell/matrix-gptbot/backend"
)

const backendName = "wolfram"

type Client struct {
	BaseURL string
	AppID   string
	HTTP    *http.Client
}

func New(baseURL, appID string) *Client {
	if baseURL == "" {
		baseURL = "https://api.wolframalpha.com"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		AppID:   appID,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Configured() bool { return strings.TrimSpace(c.AppID) != "" }

// Query sends an expression to the short-answers endpoint and returns the
// plain-text result.
func (c *Client) Query(ctx context.Context, expression string) (string, error) {
	if !c.Configured() {
		return "", backend.NewError(backend.KindUnsupported, backendName, "no app ID configured")
	}
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return "", backend.NewError(backend.KindInvalidRequest, backendName, "empty expression")
	}

	q := url.Values{}
	q.Set("appid", c.AppID)
	q.Set("i", expression)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/result?"+q.Encode(), nil)
	if err != nil {
		return "", backend.NewError(backend.KindInvalidRequest, backendName, "build request: %v", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", backend.NewError(backend.KindUnavailable, backendName, "request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", backend.NewError(backend.KindUnavailable, backendName, "read response: %v", err)
	}
	answer := strings.TrimSpace(string(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The short-answers API returns 501 with a plain-text explanation
		// when it cannot interpret the input.
		if resp.StatusCode == http.StatusNotImplemented {
			return "", backend.NewError(backend.KindInvalidRequest, backendName, "%s", answer)
		}
		return "", backend.NewError(backend.KindFromStatus(resp.StatusCode), backendName, "http %d: %s", resp.StatusCode, answer)
	}
	return answer, nil
}
