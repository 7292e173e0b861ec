package llm

import (
	"context"

	"github.com/tmc/langchaingo/llms"
)

// LangchainCompleter implements Completer on any langchaingo model, so
// providers already wrapped by langchaingo (Ollama, Anthropic, Bedrock)
// plug into the engine without a dedicated adapter.
type LangchainCompleter struct {
	model llms.Model
}

var _ Completer = (*LangchainCompleter)(nil)

// NewLangchain wraps a langchaingo model.
func NewLangchain(model llms.Model) *LangchainCompleter {
	return &LangchainCompleter{model: model}
}

// Complete generates a completion from a single prompt.
func (c *LangchainCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
}
