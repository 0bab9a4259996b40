package ai

import "context"

// Client is a one-shot text completion service. The returned text is
// expected, not guaranteed, to be JSON.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
