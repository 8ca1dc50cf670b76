// Package gemini implements llm.Completer on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/finance-analytics/internal/llm"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// Config configures the Gemini client.
type Config struct {
	APIKey string
	Model  string
	// Timeout bounds a single GenerateContent call.
	Timeout time.Duration
	// RequestsPerMinute throttles calls client-side. Zero disables throttling.
	RequestsPerMinute int
}

// generator is the slice of the genai SDK the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client is an llm.Completer backed by Gemini.
type Client struct {
	models  generator
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New creates a Gemini client.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini.New: create genai client: %w", err)
	}
	return newClient(gc.Models, cfg, log), nil
}

func newClient(models generator, cfg Config, log zerolog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModelName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	// Unlimited unless a per-minute budget is set.
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{
		models:  models,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: limiter,
		log:     log.With().Str("component", "gemini").Logger(),
	}
}

// Complete sends prompt as a single user turn and returns the response text.
// Quota rejections are reported as llm.ErrRateLimited.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("Complete: waiting for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.4),
	})
	if err != nil {
		if isRateLimit(err) {
			return "", fmt.Errorf("Complete: %w: %v", llm.ErrRateLimited, err)
		}
		return "", fmt.Errorf("Complete: generate content: %w", err)
	}

	text := resp.Text()
	c.log.Debug().
		Str("model", c.model).
		Int("prompt_len", len(prompt)).
		Int("response_len", len(text)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("gemini completion")

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("Complete: empty response from model")
	}
	return text, nil
}

func isRateLimit(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusTooManyRequests
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

var _ llm.Completer = (*Client)(nil)
