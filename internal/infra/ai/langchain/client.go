package langchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	domai "github.com/bryanwahyu/automaton-review/internal/domain/ai"
)

// Client runs prompts through a langchaingo model.
type Client struct {
	llm         llms.Model
	maxTokens   int
	temperature float64
}

// NewOpenAI builds a langchaingo OpenAI-compatible model.
func NewOpenAI(apiKey, model, baseURL string, maxTokens int, temperature float64) (*Client, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain openai model: %w", err)
	}
	return New(llm, maxTokens, temperature), nil
}

// New wraps any langchaingo model.
func New(llm llms.Model, maxTokens int, temperature float64) *Client {
	return &Client{llm: llm, maxTokens: maxTokens, temperature: temperature}
}

var _ domai.Client = (*Client)(nil)

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(c.temperature),
		llms.WithJSONMode(),
	}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, opts...)
	if err != nil {
		if strings.Contains(err.Error(), "429") || strings.Contains(strings.ToLower(err.Error()), "rate limit") {
			return "", fmt.Errorf("%w: %v", domai.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("langchain generate: %w", err)
	}
	return out, nil
}
