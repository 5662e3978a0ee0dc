package embedding

import "context"

// Embedder converts free text into a numeric vector representation.
// Implementations are deterministic for a fixed model version.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}
