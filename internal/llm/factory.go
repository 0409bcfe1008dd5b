package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

type Config struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL points the openai and anthropic clients at a compatible endpoint.
	BaseURL string
}

// NewProvider builds the configured provider wrapped with call logging.
func NewProvider(ctx context.Context, c Config) (Provider, error) {
	var (
		p   Provider
		err error
	)

	switch c.Provider {
	case ProviderAnthropic:
		p, err = NewAnthropicProvider(c)
	case ProviderOpenAI:
		p, err = NewOpenAIProvider(c)
	case ProviderGemini:
		p, err = NewGeminiProvider(ctx, c)
	case ProviderMock:
		p = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown provider %q", c.Provider)
	}
	if err != nil {
		return nil, err
	}

	return WithLogging(p), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type logged struct {
	Provider
}

// WithLogging logs every Generate call with its latency and token usage.
func WithLogging(p Provider) Provider {
	return logged{Provider: p}
}

func (l logged) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.Provider.Generate(ctx, req)

	attrs := []any{
		"provider", l.Name(),
		"model", l.ModelID(),
		"latency", time.Since(start),
	}
	if req.Schema != nil {
		attrs = append(attrs, "schema", req.Schema.Name)
	}
	if err != nil {
		slog.ErrorContext(ctx, "llm: generate failed", append(attrs, "error", err)...)
		return nil, err
	}

	slog.InfoContext(ctx, "llm: generated", append(attrs,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop", resp.StopReason,
	)...)
	return resp, nil
}
