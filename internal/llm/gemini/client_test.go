package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	GenerateFunc func(ctx context.Context, model string, contents []*genai.Content) (*genai.GenerateContentResponse, error)
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return f.GenerateFunc(ctx, model, contents)
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: s}}}},
		},
	}
}

func TestComplete(t *testing.T) {
	var gotModel, gotPrompt string
	models := &fakeModels{GenerateFunc: func(ctx context.Context, model string, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
		gotModel = model
		gotPrompt = contents[0].Parts[0].Text
		return textResponse(`[{"type":"tip"}]`), nil
	}}

	c := newClient(models, Config{}, zerolog.Nop())
	out, err := c.Complete(context.Background(), "summarise")
	require.NoError(t, err)

	assert.Equal(t, `[{"type":"tip"}]`, out)
	assert.Equal(t, DefaultModelName, gotModel)
	assert.Equal(t, "summarise", gotPrompt)
}

func TestComplete_RateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"api error", genai.APIError{Code: 429, Message: "quota", Status: "RESOURCE_EXHAUSTED"}},
		{"wrapped text", fmt.Errorf("rpc: Error 429, RESOURCE_EXHAUSTED")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(&fakeModels{GenerateFunc: func(context.Context, string, []*genai.Content) (*genai.GenerateContentResponse, error) {
				return nil, tt.err
			}}, Config{}, zerolog.Nop())

			_, err := c.Complete(context.Background(), "p")
			assert.ErrorIs(t, err, llm.ErrRateLimited)
		})
	}
}

func TestComplete_OtherErrors(t *testing.T) {
	c := newClient(&fakeModels{GenerateFunc: func(context.Context, string, []*genai.Content) (*genai.GenerateContentResponse, error) {
		return nil, genai.APIError{Code: 500, Message: "internal"}
	}}, Config{}, zerolog.Nop())

	_, err := c.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.False(t, errors.Is(err, llm.ErrRateLimited))

	c = newClient(&fakeModels{GenerateFunc: func(context.Context, string, []*genai.Content) (*genai.GenerateContentResponse, error) {
		return textResponse("  "), nil
	}}, Config{}, zerolog.Nop())
	_, err = c.Complete(context.Background(), "p")
	assert.ErrorContains(t, err, "empty response")
}

func TestComplete_Timeout(t *testing.T) {
	c := newClient(&fakeModels{GenerateFunc: func(ctx context.Context, _ string, _ []*genai.Content) (*genai.GenerateContentResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}, Config{Timeout: 10 * time.Millisecond}, zerolog.Nop())

	_, err := c.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestComplete_LimiterHonoursContext(t *testing.T) {
	calls := 0
	c := newClient(&fakeModels{GenerateFunc: func(context.Context, string, []*genai.Content) (*genai.GenerateContentResponse, error) {
		calls++
		return textResponse("ok"), nil
	}}, Config{RequestsPerMinute: 1}, zerolog.Nop())

	_, err := c.Complete(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
