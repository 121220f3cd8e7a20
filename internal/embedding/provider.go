// Package embedding maps text to fixed-family vectors for cosine-similarity
// retrieval. A primary tier calls an OpenAI-compatible /v1/embeddings
// endpoint; a deterministic hash tier stands in whenever the primary is
// unavailable, so every text has some embedding for structural consistency.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the primary embedding tier declined.
// It never escapes the tiered provider: callers always get a fallback vector.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Provider generates a vector embedding for a single text.
// Empty or whitespace-only input yields an empty vector, the sentinel for
// "not embeddable". Callers must treat empty vectors as a no-match.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}
