// Package matrix is a minimal Matrix client-server API client covering
// what the bot needs: login, long-poll sync, room message and image sends,
// room creation, and invite handling.
package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// MatrixError is the structured error body every Matrix endpoint returns
// on failure. Extract it with errors.As to branch on the error code.
type MatrixError struct {
	Code       string `json:"errcode"`
	Message    string `json:"error"`
	StatusCode int    `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Standard Matrix error codes the bot branches on.
const (
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
)

// IsMatrixError reports whether err carries the given Matrix error code.
func IsMatrixError(err error, code string) bool {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.Code == code
	}
	return false
}

type ClientConfig struct {
	// HomeserverURL is the base URL of the homeserver,
	// e.g. "https://matrix.example.org".
	HomeserverURL string
	// UserID is the bot's fully-qualified Matrix user ID.
	UserID string
	// AccessToken authenticates every request.
	AccessToken string
	// HTTPClient defaults to http.DefaultClient. Its timeout must exceed
	// the sync long-poll timeout.
	HTTPClient *http.Client
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is an authenticated Matrix client for a single account.
type Client struct {
	baseURL     string
	userID      string
	accessToken string
	httpClient  *http.Client
	log         *slog.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.HomeserverURL == "" {
		return nil, fmt.Errorf("matrix: HomeserverURL is required")
	}
	if _, err := url.Parse(cfg.HomeserverURL); err != nil {
		return nil, fmt.Errorf("matrix: invalid HomeserverURL %q: %w", cfg.HomeserverURL, err)
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("matrix: UserID is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("matrix: AccessToken is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.HomeserverURL, "/"),
		userID:      cfg.UserID,
		accessToken: cfg.AccessToken,
		httpClient:  httpClient,
		log:         log,
	}, nil
}

// UserID returns the bot's fully-qualified Matrix user ID.
func (c *Client) UserID() string { return c.userID }

// WhoAmI validates the access token and returns the user ID the server
// associates with it.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", nil, nil)
	if err != nil {
		return "", fmt.Errorf("matrix: whoami failed: %w", err)
	}
	var response struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("matrix: failed to parse whoami response: %w", err)
	}
	return response.UserID, nil
}

// doRequest performs a JSON request against the homeserver. On 2xx it
// returns the body; on 4xx/5xx it returns a *MatrixError. query may be nil.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("matrix: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("matrix: failed to create request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Authorization", "Bearer "+c.accessToken)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("matrix: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("matrix: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	var matrixErr MatrixError
	if jsonErr := json.Unmarshal(responseBody, &matrixErr); jsonErr != nil {
		return nil, fmt.Errorf("matrix: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	matrixErr.StatusCode = response.StatusCode
	return nil, &matrixErr
}

// doRequestRaw performs a request with a non-JSON body, for media upload.
func (c *Client) doRequestRaw(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("matrix: failed to create request: %w", err)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	request.Header.Set("Authorization", "Bearer "+c.accessToken)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("matrix: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("matrix: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	var matrixErr MatrixError
	if jsonErr := json.Unmarshal(responseBody, &matrixErr); jsonErr != nil {
		return nil, fmt.Errorf("matrix: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	matrixErr.StatusCode = response.StatusCode
	return nil, &matrixErr
}
