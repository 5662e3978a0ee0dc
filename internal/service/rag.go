// Package service wires loading, chunking, embedding, and vector storage
// into the indexing and retrieval pipeline.
package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/akshayavb99/offline-rag-cli/internal/domain"
	"github.com/akshayavb99/offline-rag-cli/internal/embedding"
	"github.com/akshayavb99/offline-rag-cli/internal/vectorstore"
)

// DocumentSource yields the raw documents to index.
type DocumentSource interface {
	LoadDirectory(dir string) ([]domain.Document, error)
}

// IndexStats summarizes one indexing run.
type IndexStats struct {
	Documents int
	Chunks    int
}

// RAGService owns the ingest and retrieval operations.
type RAGService struct {
	source   DocumentSource
	chunker  domain.Chunker
	embedder embedding.Embedder
	store    vectorstore.Storage
	logger   *zap.Logger
	dataDir  string
	minScore float64
}

// New assembles the pipeline. minScore filters retrieval results; zero keeps
// everything.
func New(source DocumentSource, chunker domain.Chunker, embedder embedding.Embedder, store vectorstore.Storage, logger *zap.Logger, dataDir string, minScore float64) *RAGService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RAGService{
		source:   source,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logger,
		dataDir:  dataDir,
		minScore: minScore,
	}
}

// Reindex loads all documents, chunks and embeds them, then replaces the
// stored record set. Chunk IDs are content-derived, so running Reindex twice
// on unchanged sources yields the same retrievable content.
func (s *RAGService) Reindex(ctx context.Context) (IndexStats, error) {
	docs, err := s.source.LoadDirectory(s.dataDir)
	if err != nil {
		return IndexStats{}, err
	}
	if len(docs) == 0 {
		return IndexStats{}, fmt.Errorf("no indexable documents found in %s", s.dataDir)
	}

	var chunks []domain.Chunk
	for _, d := range docs {
		cs, err := s.chunker.Chunk(d)
		if err != nil {
			return IndexStats{}, fmt.Errorf("failed to chunk %s: %w", d.Path, err)
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return IndexStats{}, fmt.Errorf("documents in %s produced no chunks", s.dataDir)
	}
	s.logger.Info("chunking complete", zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))

	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		vec, err := s.embedder.Embed(ctx, ch.Text)
		if err != nil {
			return IndexStats{}, fmt.Errorf("failed to embed chunk %s: %w", ch.ChunkID, err)
		}
		vectors[i] = vec
		if (i+1)%25 == 0 {
			s.logger.Info("embedding progress", zap.Int("done", i+1), zap.Int("total", len(chunks)))
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return IndexStats{}, fmt.Errorf("failed to clear vector store: %w", err)
	}
	if err := s.store.Init(ctx, len(vectors[0])); err != nil {
		return IndexStats{}, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	if err := s.store.Upsert(ctx, chunks, vectors); err != nil {
		return IndexStats{}, fmt.Errorf("failed to store vectors: %w", err)
	}
	s.logger.Info("index rebuilt", zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))
	return IndexStats{Documents: len(docs), Chunks: len(chunks)}, nil
}

// Retrieve embeds the query and returns the topK most similar chunks,
// scores descending. Blank queries return nothing without touching the store.
func (s *RAGService) Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := s.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	if s.minScore > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Score >= s.minScore {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	return results, nil
}
