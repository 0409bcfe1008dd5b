package generator

import (
	"fmt"
	"strings"

	"github.com/victornm/avidquiz/internal/llm"
)

var lessonSchema = &llm.Schema{
	Name:        "engineering-lesson",
	Description: "A short software engineering lesson card",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Concise title (3-8 words)",
			},
			"category": map[string]any{"type": "string"},
			"text": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "1-2 sentence overview",
			},
			"explain": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Detailed explanation (2-3 sentences)",
			},
			"useCases": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"tips": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []any{"title", "category", "text", "explain", "useCases", "tips"},
		"additionalProperties": false,
	},
}

const systemPrompt = `You are an expert software engineering instructor. Generate educational content in valid JSON format only.`

func userPrompt(category, topic string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Topic: %s\n", topic)
	fmt.Fprintf(&b, "Category: %s\n", category)
	b.WriteString(`
Write one lesson card about the topic:
1. title: a concise title.
2. text: a 1-2 sentence overview.
3. explain: a detailed explanation in 2-3 sentences.
4. useCases: three practical use cases.
5. tips: three actionable tips.

Use the category given above. Focus on practical, actionable content for intermediate to advanced engineers. Keep it concise but informative.`)

	return b.String()
}
