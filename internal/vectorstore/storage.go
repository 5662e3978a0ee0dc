package vectorstore

import (
	"context"

	"github.com/akshayavb99/offline-rag-cli/internal/domain"
)

// Storage persists chunk vectors and supports similarity search.
// Search returns results ordered by similarity descending, truncated to topK.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
