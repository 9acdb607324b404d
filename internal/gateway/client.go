package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxResponseBytes bounds a single backend reply; rendered plots are the
// largest payloads.
const maxResponseBytes = 32 << 20

// Client talks to the statistics backend over HTTP. Procedures are served at
// POST {baseURL}/{procedure} and plots at POST {baseURL}/plot/{kind}; both
// take and return JSON.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.SugaredLogger
}

// NewClient creates a backend client. The http.Client carries no timeout of
// its own; wrap the client with WithTimeout to bound each call.
func NewClient(baseURL string, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger,
	}
}

// backendError is the body the backend returns when a procedure fails
type backendError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Invoke calls a procedure on the backend
func (c *Client) Invoke(ctx context.Context, proc Procedure, params Params) (json.RawMessage, error) {
	return c.post(ctx, "/"+string(proc), params)
}

// Render asks the backend to draw a plot and returns the encoded image
func (c *Client) Render(ctx context.Context, req PlotRequest) (string, error) {
	raw, err := c.post(ctx, "/plot/"+string(req.Kind), req)
	if err != nil {
		return "", err
	}

	var img string
	if err := json.Unmarshal(raw, &img); err != nil {
		return "", fmt.Errorf("decoding plot: %w", err)
	}
	return img, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to contact statistics backend: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debugw("statistics backend call",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"bytes", len(payload))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var be backendError
		if json.Unmarshal(payload, &be) == nil && be.Error != "" {
			return nil, fmt.Errorf("backend returned %s: %s", resp.Status, be.message())
		}
		return nil, fmt.Errorf("backend returned %s", resp.Status)
	}

	// Some procedures report failure with a 200 and an error object
	if bytes.HasPrefix(bytes.TrimSpace(payload), []byte("{")) {
		var be backendError
		if json.Unmarshal(payload, &be) == nil && be.Error != "" {
			return nil, fmt.Errorf("backend error: %s", be.message())
		}
	}

	return json.RawMessage(payload), nil
}

func (e backendError) message() string {
	if e.Details != "" {
		return e.Error + ": " + e.Details
	}
	return e.Error
}
