package llm

import (
	"context"
	"encoding/json"
)

// Provider turns a prompt into structured JSON.
type Provider interface {
	// Generate sends the request to the model. When req.Schema is set the
	// returned Content has been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name is the provider name as configured, e.g. "openai".
	Name() string
	ModelID() string
}

type Request struct {
	System   string
	Messages []Message
	Schema   *Schema

	MaxTokens   int
	Temperature float64
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a JSON Schema the model output must conform to. Name is used as
// the cache key of the compiled schema and as the schema name sent upstream.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

type Response struct {
	Content json.RawMessage
	Usage   Usage
	Model   string
	// StopReason is normalized to "end" or "max_tokens".
	StopReason string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

func userMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// Prompt builds a single-turn request.
func Prompt(system, user string, schema *Schema) Request {
	return Request{
		System:      system,
		Messages:    userMessage(user),
		Schema:      schema,
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}
