// Package chromem persists vectors in an embedded chromem-go database.
// The store survives restarts without requiring any external server, which
// makes it the default backend for a fully local setup.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/akshayavb99/offline-rag-cli/internal/domain"
)

// Storage wraps a persistent chromem-go collection.
type Storage struct {
	mu         sync.Mutex
	db         *chromemgo.DB
	collection *chromemgo.Collection
	name       string
	dimension  int
}

// collection metadata follows the chroma convention for the distance metric.
var collectionMetadata = map[string]string{"hnsw:space": "cosine"}

// NewStorage opens (or creates) the persistent database at path.
func NewStorage(path, collection string) (*Storage, error) {
	db, err := chromemgo.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store at %s: %w", path, err)
	}
	col, err := db.GetOrCreateCollection(collection, collectionMetadata, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", collection, err)
	}
	return &Storage{db: db, collection: col, name: collection}, nil
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(chunks))
	metadatas := make([]map[string]string, len(chunks))
	contents := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ChunkID
		metadatas[i] = map[string]string{
			"document_id": ch.DocumentID,
			"index":       strconv.Itoa(ch.Index),
		}
		contents[i] = ch.Text
	}
	if err := s.collection.Add(ctx, ids, vectors, metadatas, contents); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// chromem rejects nResults larger than the collection size
	if n := s.collection.Count(); n == 0 {
		return nil, nil
	} else if topK > n {
		topK = n
	}
	results, err := s.collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		chunk := domain.Chunk{ChunkID: r.ID, Text: r.Content}
		if r.Metadata != nil {
			chunk.DocumentID = r.Metadata["document_id"]
			if idx, err := strconv.Atoi(r.Metadata["index"]); err == nil {
				chunk.Index = idx
			}
		}
		out = append(out, domain.SearchResult{Chunk: chunk, Score: float64(r.Similarity)})
	}
	return out, nil
}

// Clear drops and recreates the collection so a re-index starts from nothing.
func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(s.name, collectionMetadata, nil)
	if err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	s.collection = col
	return nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection.Count(), nil
}
