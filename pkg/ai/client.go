package ai

import (
	"context"
	"strings"
)

// TextGenerator is the capability interface the pipeline consumes: prompt in,
// free text out. Structured tasks ask for JSON but must never trust the
// response shape; callers parse strictly and fall back on failure.
type TextGenerator interface {
	// GenerateText generates free-form text for the prompt.
	GenerateText(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error)
	// GenerateJSON generates text expected (but not guaranteed) to be JSON.
	GenerateJSON(ctx context.Context, prompt string, maxTokens int) (string, error)
	// Close releases any resources held by the provider.
	Close() error
}

// CleanJSONBlock strips markdown code-fence wrappers that models tend to put
// around JSON payloads.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
