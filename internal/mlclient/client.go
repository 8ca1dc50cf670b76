// Package mlclient talks to the external ML service that categorizes transactions,
// scores anomalies, optimizes budgets and runs batch analyses.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every call when the caller does not supply an http.Client.
const DefaultTimeout = 5 * time.Second

// maxErrorBody caps how much of a failed response body is kept on StatusError.
const maxErrorBody = 2048

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ml service %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

// Client is an HTTP client for the ML service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// New creates a client for the service at baseURL.
func New(baseURL string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        log.With().Str("component", "mlclient").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categorize predicts a category for a transaction description.
func (c *Client) Categorize(ctx context.Context, req CategorizeRequest) (*CategorizeResponse, error) {
	var out CategorizeResponse
	if err := c.postJSON(ctx, "/categorize", req, &out); err != nil {
		return nil, fmt.Errorf("Categorize: %w", err)
	}
	return &out, nil
}

// ScoreTransaction rates how anomalous a transaction is against the user's history.
func (c *Client) ScoreTransaction(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	var out ScoreResponse
	if err := c.postJSON(ctx, "/score-transaction", req, &out); err != nil {
		return nil, fmt.Errorf("ScoreTransaction: %w", err)
	}
	return &out, nil
}

// OptimizeBudget asks the optimizer for an allocation plan.
func (c *Client) OptimizeBudget(ctx context.Context, req OptimizeRequest) (*OptimizeResponse, error) {
	var out OptimizeResponse
	if err := c.postJSON(ctx, "/optimize-budget", req, &out); err != nil {
		return nil, fmt.Errorf("OptimizeBudget: %w", err)
	}
	return &out, nil
}

// Cluster returns the raw /cluster response.
func (c *Client) Cluster(ctx context.Context, req ClusterRequest) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.postJSON(ctx, "/cluster", req, &out); err != nil {
		return nil, fmt.Errorf("Cluster: %w", err)
	}
	return out, nil
}

// DetectAnomalies returns the raw /anomalies response.
func (c *Client) DetectAnomalies(ctx context.Context, req AnomaliesRequest) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.postJSON(ctx, "/anomalies", req, &out); err != nil {
		return nil, fmt.Errorf("DetectAnomalies: %w", err)
	}
	return out, nil
}

// Forecast returns the raw /forecast response.
func (c *Client) Forecast(ctx context.Context, req ForecastRequest) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.postJSON(ctx, "/forecast", req, &out); err != nil {
		return nil, fmt.Errorf("Forecast: %w", err)
	}
	return out, nil
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("Health: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return &StatusError{Path: "/health", StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().
			Str("req_id", reqID).
			Str("path", path).
			Err(err).
			Int64("elapsed_ms", time.Since(start).Milliseconds()).
			Msg("ml request failed")
		return fmt.Errorf("send request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn().Str("req_id", reqID).Err(err).Msg("closing ml response body")
		}
	}(resp.Body)

	c.log.Debug().
		Str("req_id", reqID).
		Str("path", path).
		Int("status", resp.StatusCode).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("ml response")

	if resp.StatusCode/100 != 2 {
		return &StatusError{Path: path, StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(raw))
}
