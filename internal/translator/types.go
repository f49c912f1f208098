package translator

import "context"

// Translator maps an ordered list of text fragments to an equal-length
// ordered list of translated fragments. Implementations must never return
// a partial or reordered result.
type Translator interface {
	Translate(ctx context.Context, texts []string, targetLanguage string) ([]string, error)
}

// Backend is one translation model endpoint. A single call translates one
// chunk in one attempt; retry and escalation live above it.
type Backend interface {
	Name() string
	Translate(ctx context.Context, texts []string, targetLanguage string) ([]string, error)
}
