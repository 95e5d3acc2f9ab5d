// Package llm provides the text-generation backends used for reviews.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Model generates a single text completion for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string // optional override, mainly for tests and proxies
}

// New builds the backend named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s api key is not set", cfg.Provider)
	}

	switch cfg.Provider {
	case ProviderGemini, "":
		return NewGemini(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// requestTimeout bounds one model call, including reading the response. It is
// the only timeout on a review run.
const requestTimeout = 120 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
