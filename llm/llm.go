// Package llm defines the language-model collaborator boundary. Nodes
// depend on the Completer interface and receive a concrete client at
// construction time; nothing in the engine knows about a particular
// provider's transport.
package llm

import "context"

// Completer produces a text completion for a prompt. Failures (timeouts,
// malformed responses) are the calling node's concern.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
