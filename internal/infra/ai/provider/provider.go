// Package provider picks the model adapter named in configuration.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/bryanwahyu/automaton-review/internal/config"
	domai "github.com/bryanwahyu/automaton-review/internal/domain/ai"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai/gemini"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai/langchain"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai/openai"
)

const (
	OpenAI    = "openai"
	LangChain = "langchain"
	Gemini    = "gemini"
)

// New returns the client for cfg.Provider.
func New(ctx context.Context, cfg config.Analyzer) (domai.Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", OpenAI:
		return openai.NewClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens, float32(cfg.Temperature)), nil
	case LangChain:
		c, err := langchain.NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		return c, nil
	case Gemini:
		c, err := gemini.NewClient(ctx, cfg.APIKey, cfg.Model, cfg.MaxTokens, float32(cfg.Temperature))
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown analyzer provider %q", cfg.Provider)
	}
}
